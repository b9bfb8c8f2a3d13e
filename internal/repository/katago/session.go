package katago

import (
	"context"
	"fmt"
	"time"

	"go_analysis/internal/domain"
	apperrors "go_analysis/internal/errors"
)

type sessionState int

const (
	sessionBuilt sessionState = iota
	sessionSent
	sessionDraining
	sessionDone
	sessionFailed
)

func (s sessionState) String() string {
	return [...]string{"built", "sent", "draining", "done", "failed"}[s]
}

type session struct {
	id       string
	state    sessionState
	expected int
	received int
	lastSeen time.Time
}

// runSession registers plan, sends it and hands every response to deliver in arrival
// order. A false return from deliver ends the session early without error. The pending
// entry is removed on every exit path.
func (e *SyncEngine) runSession(ctx context.Context, proc *Process, disp *Dispatcher, plan domain.QueryPlan,
	deliver func(domain.AnalysisResponse) bool) error {
	s := &session{id: plan.Query.ID, state: sessionBuilt, expected: plan.Expected}
	log := e.log.With("id", s.id)

	e.pending.Register(s.id, s.expected)
	e.metrics.SetPending(e.pending.Len())
	defer func() {
		e.pending.Remove(s.id)
		e.metrics.SetPending(e.pending.Len())
		log.Debugw("session finished", "state", s.state.String(), "received", s.received, "expected", s.expected)
	}()

	defer e.busy(proc)()

	if err := disp.Send(plan.Query); err != nil {
		s.state = sessionFailed
		return fmt.Errorf("send query: %w", err)
	}
	s.state = sessionSent
	log.Debugw("query sent", "turns", len(plan.Query.AnalyzeTurns), "moves", len(plan.Query.Moves))

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	s.state = sessionDraining
	s.lastSeen = time.Now()
	for s.received < s.expected {
		fresh, failure, ok := e.pending.Since(s.id, s.received)
		if !ok {
			s.state = sessionFailed
			return fmt.Errorf("pending request %s vanished", s.id)
		}
		// results that arrived before an engine error are still delivered
		if len(fresh) > 0 {
			s.lastSeen = time.Now()
			for _, resp := range fresh {
				s.received++
				if !deliver(resp) {
					s.state = sessionDone
					return nil
				}
			}
			continue
		}
		if failure != nil {
			s.state = sessionFailed
			return failure
		}

		if time.Since(s.lastSeen) > e.cfg.TurnTimeout {
			s.state = sessionFailed
			e.metrics.TimedOut()
			log.Warnw("streaming timeout", "received", s.received, "expected", s.expected)
			return &apperrors.TimeoutError{Received: s.received, Expected: s.expected, Window: e.cfg.TurnTimeout}
		}

		select {
		case <-ctx.Done():
			s.state = sessionFailed
			return ctx.Err()
		case <-ticker.C:
		}
	}
	s.state = sessionDone
	return nil
}
