package katago

import (
	"sync"

	"go_analysis/internal/domain"
)

type pendingRequest struct {
	expected int
	results  []domain.AnalysisResponse
	err      error
}

// PendingTable correlates query ids with arriving responses. One lock covers the whole
// table and is never held across I/O.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
}

func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[string]*pendingRequest)}
}

func (t *PendingTable) Register(id string, expected int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &pendingRequest{expected: expected}
}

// Append stores resp under its id; false means no such request is pending.
func (t *PendingTable) Append(resp domain.AnalysisResponse) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.entries[resp.ID]
	if !ok {
		return false
	}
	req.results = append(req.results, resp)
	return true
}

// Fail records a terminal error for id; the owning session reports it on its next poll.
func (t *PendingTable) Fail(id string, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.entries[id]
	if !ok {
		return false
	}
	if req.err == nil {
		req.err = err
	}
	return true
}

// Since returns a copy of the results after the first n, plus any recorded failure.
func (t *PendingTable) Since(id string, n int) ([]domain.AnalysisResponse, error, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.entries[id]
	if !ok {
		return nil, nil, false
	}
	var fresh []domain.AnalysisResponse
	if len(req.results) > n {
		fresh = append(fresh, req.results[n:]...)
	}
	return fresh, req.err, true
}

func (t *PendingTable) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *PendingTable) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}
