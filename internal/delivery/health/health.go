package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"go_analysis/internal/bootstrap"
	"go_analysis/internal/httpresponse"
)

// KatagoService is the gRPC health service name tracking the engine.
const KatagoService = "katago"

const version = "v1"

type Checker interface {
	IsRunning() bool
}

type Status struct {
	Status        string       `json:"status"`
	Version       string       `json:"version"`
	KatagoRunning bool         `json:"katago_running"`
	KatagoPathsOK bool         `json:"katago_paths_ok"`
	Config        StatusConfig `json:"config"`
}

type StatusConfig struct {
	MaxSgfBytes        int    `json:"max_sgf_bytes"`
	AnalysisStepsRange [2]int `json:"analysis_steps_range"`
}

type HealthHandler struct {
	cfg     *bootstrap.Config
	log     *zap.SugaredLogger
	checker Checker
}

func NewHealthHandler(cfg *bootstrap.Config, log *zap.SugaredLogger, checker Checker) *HealthHandler {
	return &HealthHandler{cfg: cfg, log: log, checker: checker}
}

func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/v1/health", h.HandleHealth)
	r.Get("/v1/ping", h.HandlePing)
}

func (h *HealthHandler) HandlePing(w http.ResponseWriter, _ *http.Request) {
	httpresponse.WriteJSON(h.log, w, http.StatusOK, map[string]string{"message": "pong", "version": version})
}

// HandleHealth always answers 200; a dead engine is reported as degraded.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	running := h.checker.IsRunning()
	status := "up"
	if !running {
		status = "degraded"
	}
	httpresponse.WriteJSON(h.log, w, http.StatusOK, Status{
		Status:        status,
		Version:       version,
		KatagoRunning: running,
		KatagoPathsOK: h.cfg.KatagoPathsOK(),
		Config: StatusConfig{
			MaxSgfBytes:        h.cfg.MaxSgfBytes,
			AnalysisStepsRange: [2]int{h.cfg.MinAnalysisSteps, h.cfg.MaxAnalysisSteps},
		},
	})
}

// Reporter mirrors engine liveness into a gRPC health server.
type Reporter struct {
	checker  Checker
	interval time.Duration
	log      *zap.SugaredLogger
	server   *health.Server
	serving  bool
}

func NewReporter(checker Checker, interval time.Duration, log *zap.SugaredLogger) *Reporter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	r := &Reporter{checker: checker, interval: interval, log: log, server: health.NewServer()}
	r.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	r.server.SetServingStatus(KatagoService, healthpb.HealthCheckResponse_NOT_SERVING)
	return r
}

func (r *Reporter) Server() *health.Server { return r.server }

// Run polls the checker until ctx is done, then marks every service as not serving.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.update()
	for {
		select {
		case <-ctx.Done():
			r.server.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			r.update()
		}
	}
}

func (r *Reporter) update() {
	serving := r.checker.IsRunning()
	if serving == r.serving {
		return
	}
	r.serving = serving
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.log.Infow("katago health changed", "status", status.String())
	r.server.SetServingStatus(KatagoService, status)
}
