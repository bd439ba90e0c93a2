package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"scholar-rank-go/config"
	"scholar-rank-go/internal/cache"
	"scholar-rank-go/internal/fetcher"
	"scholar-rank-go/internal/handler"
	"scholar-rank-go/internal/service"
)

func main() {
	// 加载 .env 文件（如果存在）
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	datasetCache, err := newCache(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.CacheBackend).Msg("failed to create dataset cache, using memory cache")
		datasetCache = cache.NewMemoryCache(nil)
	}
	if closer, ok := datasetCache.(io.Closer); ok {
		defer closer.Close()
	}
	if pg, ok := datasetCache.(*cache.PostgresCache); ok {
		go cleanExpired(ctx, pg, time.Hour)
	}

	// 数据源：ConferenceRanks 必需，手动数据集可选
	source := fetcher.NewMergedSource(
		fetcher.NewConferenceRanksSource(cfg.ConferenceRanksURL, fetcher.DefaultDatasetScripts(cfg.ERAURL, cfg.QualisURL)),
	)
	if cfg.ManualDatasetPath != "" {
		source = source.WithOptional(fetcher.NewFileSource(afero.NewOsFs(), cfg.ManualDatasetPath))
	}
	cached := fetcher.NewCachingSource(source, datasetCache, "", cfg.DatasetTTL)
	provider := service.NewCachedIndexProvider(cached, cfg.DatasetTTL, clockwork.NewRealClock())

	var matcherOpts []service.MatcherOption
	if cfg.KnownAcronyms {
		matcherOpts = append(matcherOpts, service.WithKnownAcronyms())
	}
	if cfg.TypoSimilarity > 0 {
		matcherOpts = append(matcherOpts, service.WithTypoTolerance(float32(cfg.TypoSimilarity)))
	}

	annotator := service.NewAnnotationService(provider,
		service.WithCitationFetcher(fetcher.NewScholarCitationFetcher(fetcher.DefaultScholarURL, cfg.CitationWait, nil)),
		service.WithQueueInterval(cfg.QueueInterval),
		service.WithMatcherOptions(matcherOpts...),
	)
	annotator.SetEnabled(cfg.Enabled)

	// 预热索引，失败时首个请求会重试
	go func() {
		if _, err := provider.Get(ctx); err != nil {
			log.Warn().Err(err).Msg("initial dataset load failed")
		}
	}()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(handler.NewVenueHandler(annotator)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("cache", cfg.CacheBackend).Msg("Server starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server stopped")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// newCache 按配置创建数据集缓存
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case cache.BackendFile:
		return cache.NewFileCache(afero.NewOsFs(), cfg.CacheDir, nil)
	case cache.BackendPostgres:
		return cache.NewPostgresCache(ctx, cfg.DatabaseURL)
	case cache.BackendBolt:
		return cache.NewBoltCache(cfg.BoltPath, nil)
	case cache.BackendRedis:
		return cache.NewRedisCache(ctx, cfg.RedisURL)
	default:
		return cache.NewMemoryCache(nil), nil
	}
}

// cleanExpired 定期清理Postgres中的过期数据集
func cleanExpired(ctx context.Context, pg *cache.PostgresCache, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := pg.CleanExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("failed to clean expired datasets")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("expired datasets cleaned")
			}
		case <-ctx.Done():
			return
		}
	}
}
