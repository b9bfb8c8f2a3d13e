package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"go_analysis/internal/bootstrap"
	"go_analysis/internal/domain"
	apperrors "go_analysis/internal/errors"
	"go_analysis/internal/metrics"
)

// Engine is one analysis backend. The KataGo adapter in repository/katago implements it.
type Engine interface {
	Start(ctx context.Context) error
	Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error)
	AnalyzeStreaming(ctx context.Context, req domain.AnalysisRequest) (<-chan domain.StreamItem, error)
	Close() error
	IsRunning() bool
}

type EngineFactory func() Engine

// Sanitizer checks raw record text before it reaches the engine.
type Sanitizer interface {
	Sanitize(content string) (string, error)
}

// AnalysisUseCase owns the engine for the lifetime of the server. Start, stop, watchdog
// restarts and analysis calls are serialized by one lock; a stream holds it until it ends.
type AnalysisUseCase struct {
	cfg       *bootstrap.Config
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
	factory   EngineFactory
	sanitizer Sanitizer

	lock *semaphore.Weighted

	mu     sync.RWMutex
	engine Engine
}

func NewAnalysisUseCase(cfg *bootstrap.Config, log *zap.SugaredLogger, m *metrics.Metrics,
	factory EngineFactory, sanitizer Sanitizer) *AnalysisUseCase {
	return &AnalysisUseCase{
		cfg:       cfg,
		log:       log,
		metrics:   m,
		factory:   factory,
		sanitizer: sanitizer,
		lock:      semaphore.NewWeighted(1),
	}
}

// Start brings up a fresh engine. On failure the service stays without an engine and the
// watchdog keeps retrying.
func (u *AnalysisUseCase) Start(ctx context.Context) error {
	if err := u.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer u.lock.Release(1)
	return u.startLocked(ctx)
}

func (u *AnalysisUseCase) startLocked(ctx context.Context) error {
	u.log.Infow("starting katago service")
	engine := u.factory()
	if err := engine.Start(ctx); err != nil {
		u.log.Errorw("failed to start katago", "error", err)
		_ = engine.Close()
		u.setEngine(nil)
		return err
	}
	u.setEngine(engine)
	u.log.Infow("katago started and ready for requests")
	return nil
}

func (u *AnalysisUseCase) Stop() error {
	_ = u.lock.Acquire(context.Background(), 1)
	defer u.lock.Release(1)

	engine := u.current()
	if engine == nil {
		return nil
	}
	u.log.Infow("stopping katago")
	u.setEngine(nil)
	return engine.Close()
}

func (u *AnalysisUseCase) IsRunning() bool {
	engine := u.current()
	return engine != nil && engine.IsRunning()
}

func (u *AnalysisUseCase) current() Engine {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.engine
}

func (u *AnalysisUseCase) setEngine(engine Engine) {
	u.mu.Lock()
	u.engine = engine
	u.mu.Unlock()
	u.metrics.SetRunning(engine != nil && engine.IsRunning())
}

// ensureLocked restarts a missing or dead engine. The caller holds the lock.
func (u *AnalysisUseCase) ensureLocked(ctx context.Context) (Engine, error) {
	if engine := u.current(); engine != nil && engine.IsRunning() {
		return engine, nil
	}
	u.log.Warnw("katago engine not running, attempting to restart")
	if prev := u.current(); prev != nil {
		_ = prev.Close()
	}
	if err := u.startLocked(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrEngineUnavailable, err)
	}
	u.metrics.Restarted()
	return u.current(), nil
}

func (u *AnalysisUseCase) prepare(req domain.AnalysisRequest) (domain.AnalysisRequest, error) {
	record, err := u.sanitizer.Sanitize(req.SGF)
	if err != nil {
		return req, err
	}
	req.SGF = record
	req.Visits = u.cfg.ClampVisits(req.Visits)
	return req, nil
}

// Analyze returns the record annotated with the engine's evaluation of every requested turn.
func (u *AnalysisUseCase) Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	req, err := u.prepare(req)
	if err != nil {
		return "", err
	}
	if err := u.lock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer u.lock.Release(1)

	engine, err := u.ensureLocked(ctx)
	if err != nil {
		return "", err
	}
	u.log.Infow("analysis requested", "visits", req.Visits, "bytes", len(req.SGF))
	out, err := engine.Analyze(ctx, req)
	if err != nil {
		u.log.Errorw("error during analysis", "error", err)
		return "", err
	}
	return out, nil
}

// AnalyzeStream yields one item per turn. The lock is released when the stream ends or
// ctx is done, whichever comes first.
func (u *AnalysisUseCase) AnalyzeStream(ctx context.Context, req domain.AnalysisRequest) (<-chan domain.StreamItem, error) {
	req, err := u.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := u.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	engine, err := u.ensureLocked(ctx)
	if err != nil {
		u.lock.Release(1)
		return nil, err
	}
	inner, err := engine.AnalyzeStreaming(ctx, req)
	if err != nil {
		u.lock.Release(1)
		return nil, err
	}

	out := make(chan domain.StreamItem)
	go func() {
		defer close(out)
		defer u.lock.Release(1)
		for item := range inner {
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RunWatchdog checks engine liveness every interval until ctx is done.
func (u *AnalysisUseCase) RunWatchdog(ctx context.Context) error {
	interval := u.cfg.WatchdogInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	u.log.Infow("katago watchdog started", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			u.log.Infow("katago watchdog stopped")
			return ctx.Err()
		case <-ticker.C:
			u.checkEngine(ctx)
		}
	}
}

func (u *AnalysisUseCase) checkEngine(ctx context.Context) {
	if err := u.lock.Acquire(ctx, 1); err != nil {
		return
	}
	defer u.lock.Release(1)

	engine := u.current()
	if engine != nil && engine.IsRunning() {
		return
	}
	if engine != nil {
		u.log.Warnw("watchdog detected katago crash, restarting")
		_ = engine.Close()
		u.setEngine(nil)
	}
	if err := u.startLocked(ctx); err != nil {
		u.log.Errorw("watchdog failed to restart katago", "error", err)
		return
	}
	u.metrics.Restarted()
	u.log.Infow("watchdog successfully restarted katago")
}
