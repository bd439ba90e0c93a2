package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"scholar-rank-go/internal/model"
	"scholar-rank-go/internal/service"
	"scholar-rank-go/internal/sse"
)

// VenueHandler venue匹配与标注的HTTP处理器
type VenueHandler struct {
	service *service.AnnotationService
}

// NewVenueHandler 创建处理器
func NewVenueHandler(svc *service.AnnotationService) *VenueHandler {
	return &VenueHandler{service: svc}
}

// Match 匹配单个片段
// POST /api/venues/match
// Body: {"text": "...", "alternates": [...], "title": "...", "metadata": "...", "citation_venue": "..."}
func (h *VenueHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		matches []model.MatchResult
		err     error
	)
	if req.HasCitationVenue() {
		matches, err = h.service.MatchSnippet(r.Context(), req.Query())
	} else {
		matches, err = h.service.MatchRecord(r.Context(), req.Record())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// Annotate 批量标注，一次性返回
// POST /api/venues/annotate
// Body: {"html": "..."} 或 {"records": [...]}
func (h *VenueHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	var req AnnotateRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	records, err := h.records(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	annotations, err := h.service.Annotate(r.Context(), records, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"annotations": annotations})
}

// AnnotateSSE 批量标注，每完成一条推送一次进度
// POST /api/venues/annotate/sse
func (h *VenueHandler) AnnotateSSE(w http.ResponseWriter, r *http.Request) {
	var req AnnotateRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	records, err := h.records(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	requestID := RequestIDFrom(r.Context())
	writer, err := sse.NewWriter(w, requestID)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	defer writer.StopHeartbeat()

	log.Info().Str("request_id", requestID).Int("records", len(records)).Msg("starting SSE annotation")

	if err := writer.Start(len(records)); err != nil {
		return
	}

	annotations, err := h.service.Annotate(r.Context(), records, func(a model.Annotation) {
		if err := writer.SendAnnotation(a); err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("failed to send annotation")
		}
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("annotation error")
		writer.SendError(err.Error())
		return
	}

	writer.Done(annotations)
	log.Info().Str("request_id", requestID).Int("records", len(annotations)).Msg("SSE annotation completed")
}

func (h *VenueHandler) records(req *AnnotateRequest) ([]model.ScholarRecord, error) {
	if len(req.Records) > 0 {
		return req.Records, nil
	}
	records, err := h.service.ParseHTML(req.HTML)
	if err != nil {
		return nil, errors.Join(ErrInvalidRequest, err)
	}
	return records, nil
}

// Dataset 数据集统计
// GET /api/dataset
func (h *VenueHandler) Dataset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.DatasetStats())
}

// InvalidateDataset 清除数据集缓存，下次匹配时重新加载
// POST /api/dataset/invalidate
func (h *VenueHandler) InvalidateDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.InvalidateDataset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": true})
}

// Settings 当前设置
// GET /api/settings
func (h *VenueHandler) Settings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"enabled": h.service.Enabled()})
}

// UpdateSettings 更新设置
// PUT /api/settings
func (h *VenueHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.service.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"enabled": h.service.Enabled()})
}

// Health 健康检查
func (h *VenueHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// writeError 按错误类型映射状态码
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidBody), errors.Is(err, ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNoDataset):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
