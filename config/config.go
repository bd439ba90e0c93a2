package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"scholar-rank-go/internal/cache"
	"scholar-rank-go/internal/fetcher"
)

// Config 应用配置
type Config struct {
	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=json console"`

	// 数据集
	ConferenceRanksURL string        `validate:"required,url"`
	ERAURL             string        `validate:"omitempty,url"`
	QualisURL          string        `validate:"omitempty,url"`
	ManualDatasetPath  string
	DatasetTTL         time.Duration `validate:"gt=0s"`

	// 缓存
	CacheBackend string `validate:"oneof=memory file postgres bolt redis"`
	CacheDir     string `validate:"required_if=CacheBackend file"`
	DatabaseURL  string `validate:"required_if=CacheBackend postgres"`
	BoltPath     string `validate:"required_if=CacheBackend bolt"`
	RedisURL     string `validate:"required_if=CacheBackend redis"`

	// 标注
	QueueInterval  time.Duration `validate:"gte=0s"`
	CitationWait   time.Duration `validate:"gt=0s"`
	TypoSimilarity float64       `validate:"gte=0,lte=1"`
	KnownAcronyms  bool
	Enabled        bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load 从环境变量加载配置
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ConferenceRanksURL: getEnv("CONFERENCERANKS_URL", fetcher.DefaultConferenceRanksURL),
		ERAURL:             getEnv("ERA_URL", fetcher.DefaultERAURL),
		QualisURL:          getEnv("QUALIS_URL", fetcher.DefaultQualisURL),
		ManualDatasetPath:  getEnv("MANUAL_DATASET_PATH", ""),
		DatasetTTL:         getDuration("DATASET_TTL", fetcher.DefaultDatasetTTL, &errs),

		CacheBackend: getEnv("CACHE_BACKEND", cache.BackendMemory),
		CacheDir:     getEnv("CACHE_DIR", ".cache/datasets"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		BoltPath:     getEnv("BOLT_PATH", "scholar-rank.db"),
		RedisURL:     getEnv("REDIS_URL", ""),

		QueueInterval:  getDuration("QUEUE_INTERVAL", 500*time.Millisecond, &errs),
		CitationWait:   getDuration("CITATION_WAIT", fetcher.DefaultCitationWait, &errs),
		TypoSimilarity: getFloat("TYPO_SIMILARITY", 0, &errs),
		KnownAcronyms:  getBool("KNOWN_ACRONYMS", false, &errs),
		Enabled:        getBool("ENABLED", true, &errs),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}

func getFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return f
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return b
}
