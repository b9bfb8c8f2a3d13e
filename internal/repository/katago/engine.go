package katago

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go_analysis/internal/bootstrap"
	"go_analysis/internal/domain"
	"go_analysis/internal/domain/sgf"
	apperrors "go_analysis/internal/errors"
	"go_analysis/internal/metrics"
)

type Config struct {
	Path       string
	ConfigPath string
	ModelPath  string
	// Args replaces the analysis argument list; Env is appended to the inherited environment.
	Args []string
	Env  []string

	StartupTimeout time.Duration
	StopTimeout    time.Duration
	TurnTimeout    time.Duration
	AnalyzeTimeout time.Duration
	PollInterval   time.Duration

	IncludeOwnership bool
}

func ConfigFrom(cfg *bootstrap.Config) Config {
	return Config{
		Path:             cfg.KatagoPath,
		ConfigPath:       cfg.KatagoConfig,
		ModelPath:        cfg.KatagoModel,
		StartupTimeout:   cfg.KatagoStartupTimeout,
		StopTimeout:      cfg.KatagoStopTimeout,
		TurnTimeout:      cfg.KatagoTurnTimeout,
		AnalyzeTimeout:   cfg.KatagoTimeout,
		PollInterval:     cfg.PollInterval,
		IncludeOwnership: cfg.IncludeOwnership,
	}
}

func (c Config) withDefaults() Config {
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 120 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 30 * time.Second
	}
	if c.AnalyzeTimeout <= 0 {
		c.AnalyzeTimeout = 120 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	return c
}

// SyncEngine drives one KataGo process with blocking calls. Callers that need a channel
// based stream wrap it in an AsyncEngine.
type SyncEngine struct {
	cfg     Config
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
	pending *PendingTable
	newID   func() string

	mu   sync.RWMutex
	proc *Process
	disp *Dispatcher

	active atomic.Int32
}

func NewSyncEngine(cfg Config, log *zap.SugaredLogger, m *metrics.Metrics) *SyncEngine {
	return &SyncEngine{
		cfg:     cfg.withDefaults(),
		log:     log,
		metrics: m,
		pending: NewPendingTable(),
		newID:   uuid.NewString,
	}
}

// Start launches the process and waits for the readiness banner. Calling it on a running
// engine is a no-op.
func (e *SyncEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc != nil && e.proc.IsRunning() {
		return nil
	}
	if e.proc != nil {
		_ = e.proc.Stop()
	}

	proc := NewProcess(e.cfg, e.log)
	if err := proc.Launch(); err != nil {
		e.log.Errorw("failed to launch katago", "error", err)
		return err
	}
	disp := NewDispatcher(proc.stdin, e.pending, e.log, e.metrics)
	disp.Run(proc.stdout, proc.stderr)

	if err := proc.WaitReady(ctx, disp.Ready(), disp.StderrDone(), disp.Diagnostics); err != nil {
		e.log.Errorw("katago startup failed", "error", err)
		_ = proc.Stop()
		return err
	}

	e.proc, e.disp = proc, disp
	e.metrics.SetRunning(true)
	return nil
}

func (e *SyncEngine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.proc != nil && e.proc.IsRunning()
}

// State is StateNotStarted until the first successful Start.
func (e *SyncEngine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.proc == nil {
		return StateNotStarted
	}
	return e.proc.State()
}

// Diagnostics returns recent engine stderr.
func (e *SyncEngine) Diagnostics() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.disp == nil {
		return nil
	}
	return e.disp.Diagnostics()
}

func (e *SyncEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.SetRunning(false)
	if e.proc == nil {
		return nil
	}
	return e.proc.Stop()
}

func (e *SyncEngine) current() (*Process, *Dispatcher, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.proc == nil || !e.proc.IsRunning() {
		var diag []string
		if e.disp != nil {
			diag = e.disp.Diagnostics()
		}
		if len(diag) > 0 {
			e.log.Errorw("katago process is not running", "stderr", diag)
		}
		return nil, nil, apperrors.ErrEngineUnavailable
	}
	return e.proc, e.disp, nil
}

func (e *SyncEngine) plan(record string, visits int, start, end *int, ownership bool) (domain.QueryPlan, error) {
	tree, err := sgf.Parse(record)
	if err != nil {
		return domain.QueryPlan{}, err
	}
	plan := domain.BuildQuery(tree, domain.QueryOptions{
		ID:                    e.newID(),
		MaxVisits:             visits,
		StartTurn:             start,
		EndTurn:               end,
		IncludeOwnership:      ownership,
		IncludePolicy:         ownership,
		ResolveSetupCollision: true,
	})
	if plan.Collided {
		e.log.Infow("first move duplicates a setup stone, skipping it", "id", plan.Query.ID)
	}
	return plan, nil
}

// AnalyzeStreamingGenerator yields one result per analyzed turn. A failure is yielded as
// the final element.
func (e *SyncEngine) AnalyzeStreamingGenerator(ctx context.Context, req domain.AnalysisRequest) iter.Seq2[domain.TurnResult, error] {
	return func(yield func(domain.TurnResult, error) bool) {
		started := time.Now()
		defer e.metrics.ObserveAnalysis("stream", started)

		proc, disp, err := e.current()
		if err != nil {
			yield(domain.TurnResult{}, err)
			return
		}
		plan, err := e.plan(req.SGF, req.Visits, req.StartTurn, req.EndTurn, false)
		if err != nil {
			yield(domain.TurnResult{}, err)
			return
		}

		err = e.runSession(ctx, proc, disp, plan, func(resp domain.AnalysisResponse) bool {
			return yield(domain.NewTurnResult(resp, plan.Offset, plan.Expected), nil)
		})
		if err != nil {
			yield(domain.TurnResult{}, err)
		}
	}
}

// Analyze collects every turn, writes the results into the record and returns it
// serialized.
func (e *SyncEngine) Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	started := time.Now()
	defer e.metrics.ObserveAnalysis("single", started)

	proc, disp, err := e.current()
	if err != nil {
		return "", err
	}
	plan, err := e.plan(req.SGF, req.Visits, req.StartTurn, req.EndTurn, e.cfg.IncludeOwnership)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.AnalyzeTimeout)
	defer cancel()

	results := make([]domain.AnalysisResponse, 0, plan.Expected)
	err = e.runSession(ctx, proc, disp, plan, func(resp domain.AnalysisResponse) bool {
		results = append(results, resp)
		return true
	})
	if err != nil {
		return "", fmt.Errorf("analyze %s: %w", plan.Query.ID, err)
	}

	domain.Annotate(plan.Tree, results, plan.Offset)
	return plan.Tree.SGF(), nil
}

func (e *SyncEngine) busy(proc *Process) func() {
	if e.active.Add(1) == 1 {
		proc.MarkBusy(true)
	}
	return func() {
		if e.active.Add(-1) == 0 {
			proc.MarkBusy(false)
		}
	}
}
