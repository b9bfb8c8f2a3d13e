package katago

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go_analysis/internal/domain"
)

// AsyncEngine exposes a SyncEngine as a channel based stream. Each stream is produced by a
// detached worker: once started it runs the session to completion even if the consumer
// goes away, and items nobody reads any more are dropped.
type AsyncEngine struct {
	engine *SyncEngine
	buffer int
	log    *zap.SugaredLogger
}

func NewAsyncEngine(engine *SyncEngine, buffer int, log *zap.SugaredLogger) *AsyncEngine {
	return &AsyncEngine{engine: engine, buffer: buffer, log: log}
}

func (a *AsyncEngine) Start(ctx context.Context) error {
	a.log.Infow("starting katago engine")
	return a.engine.Start(ctx)
}

func (a *AsyncEngine) Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	return a.engine.Analyze(ctx, req)
}

// AnalyzeStreaming returns a channel that yields one item per turn and is closed at the
// end of the stream. An item with a non-nil Err is always the last one.
func (a *AsyncEngine) AnalyzeStreaming(ctx context.Context, req domain.AnalysisRequest) (<-chan domain.StreamItem, error) {
	out := make(chan domain.StreamItem, a.buffer)
	go a.produce(ctx, req, out)
	return out, nil
}

func (a *AsyncEngine) produce(ctx context.Context, req domain.AnalysisRequest, out chan<- domain.StreamItem) {
	dropped := 0
	send := func(item domain.StreamItem) {
		select {
		case out <- item:
		case <-ctx.Done():
			dropped++
		}
	}

	defer close(out)
	defer func() {
		if r := recover(); r != nil {
			a.log.Errorw("analysis worker panicked", "panic", r)
			send(domain.StreamItem{Err: fmt.Errorf("analysis worker panic: %v", r)})
		}
		if dropped > 0 {
			a.log.Infow("consumer left before the stream ended", "dropped", dropped)
		}
	}()

	for res, err := range a.engine.AnalyzeStreamingGenerator(context.WithoutCancel(ctx), req) {
		if err != nil {
			a.log.Errorw("streaming analysis failed", "error", err)
			send(domain.StreamItem{Err: err})
			continue
		}
		send(domain.StreamItem{Result: res})
	}
}

func (a *AsyncEngine) Close() error {
	return a.engine.Close()
}

func (a *AsyncEngine) IsRunning() bool {
	return a.engine.IsRunning()
}
