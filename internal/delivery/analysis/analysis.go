package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"go_analysis/internal/bootstrap"
	"go_analysis/internal/domain"
	"go_analysis/internal/httpresponse"
)

// bodyOverhead is the room left for the JSON wrapper around the record.
const bodyOverhead = 64 << 10

type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error)
	AnalyzeStream(ctx context.Context, req domain.AnalysisRequest) (<-chan domain.StreamItem, error)
}

type AnalysisData struct {
	SGF        string `json:"sgf"`
	VisitsUsed int    `json:"visits_used"`
}

type AnalysisHandler struct {
	cfg *bootstrap.Config
	log *zap.SugaredLogger
	uc  Analyzer
}

func NewAnalysisHandler(cfg *bootstrap.Config, log *zap.SugaredLogger, uc Analyzer) *AnalysisHandler {
	return &AnalysisHandler{cfg: cfg, log: log, uc: uc}
}

func (h *AnalysisHandler) Routes(r chi.Router) {
	r.Post("/v1/analyses", h.HandleAnalyze)
	r.Post("/v1/analyses/stream", h.HandleStream)
	r.Get("/v1/analyses/ws", h.HandleWebSocket)
}

func (h *AnalysisHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	h.log.Infow("analysis payload", "visits", req.Visits)

	analyzed, err := h.uc.Analyze(r.Context(), req)
	if err != nil {
		status := httpresponse.StatusFor(err)
		h.log.Errorw("analysis failed", "status", status, "error", err)
		httpresponse.WriteErrorWithStatus(w, status, err.Error())
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusOK, AnalysisData{
		SGF:        analyzed,
		VisitsUsed: h.cfg.ClampVisits(req.Visits),
	})
}

func (h *AnalysisHandler) decode(w http.ResponseWriter, r *http.Request) (domain.AnalysisRequest, bool) {
	var req domain.AnalysisRequest
	limit := int64(h.cfg.MaxSgfBytes) + bodyOverhead
	bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	defer r.Body.Close()
	if err != nil {
		h.log.Warnw("failed to read body", "error", err)
		httpresponse.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge, "Failed to read request body")
		return req, false
	}

	decoder := json.NewDecoder(bytes.NewReader(bodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.log.Warnw("json decode error", "error", err)
		httpresponse.WriteErrorWithStatus(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc+": "+err.Error())
		return req, false
	}
	return req, true
}
