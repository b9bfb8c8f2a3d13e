package katago

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go_analysis/internal/domain"
	apperrors "go_analysis/internal/errors"
	"go_analysis/internal/metrics"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type dispatcherFixture struct {
	disp    *Dispatcher
	pending *PendingTable
	metrics *metrics.Metrics
	stdin   *lockedBuffer
	stdout  *io.PipeWriter
	stderr  *io.PipeWriter
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		pending: NewPendingTable(),
		metrics: metrics.New(prometheus.NewRegistry()),
		stdin:   &lockedBuffer{},
	}
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	f.stdout, f.stderr = stdoutW, stderrW
	f.disp = NewDispatcher(f.stdin, f.pending, zap.NewNop().Sugar(), f.metrics)
	f.disp.Run(stdoutR, stderrR)
	t.Cleanup(func() {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		<-f.disp.Done()
	})
	return f
}

func (f *dispatcherFixture) emit(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		_, err := io.WriteString(f.stdout, line+"\n")
		require.NoError(t, err)
	}
}

func response(id string, turn int) string {
	raw, _ := json.Marshal(domain.AnalysisResponse{ID: id, TurnNumber: turn, RootInfo: domain.RootInfo{Winrate: 0.5}})
	return string(raw)
}

func (f *dispatcherFixture) waitFor(t *testing.T, id string, n int) []domain.AnalysisResponse {
	t.Helper()
	var got []domain.AnalysisResponse
	require.Eventually(t, func() bool {
		got, _, _ = f.pending.Since(id, 0)
		return len(got) >= n
	}, 2*time.Second, time.Millisecond)
	return got
}

func TestDispatcherDoesNotCrossDeliver(t *testing.T) {
	f := newDispatcherFixture(t)
	f.pending.Register("a", 3)
	f.pending.Register("b", 3)

	f.emit(t, response("a", 0), response("b", 0), response("b", 1), response("a", 1), response("b", 2), response("a", 2))

	for _, id := range []string{"a", "b"} {
		got := f.waitFor(t, id, 3)
		require.Len(t, got, 3)
		for turn, resp := range got {
			assert.Equal(t, id, resp.ID)
			assert.Equal(t, turn, resp.TurnNumber)
		}
	}
	assert.Equal(t, 6.0, testutil.ToFloat64(f.metrics.ResultsDispatched))
}

func TestDispatcherDropsNoise(t *testing.T) {
	f := newDispatcherFixture(t)
	f.pending.Register("a", 2)

	f.emit(t,
		"not json",
		response("zzz", 0),
		`{"id":"a","isDuringSearch":true,"turnNumber":5}`,
		`{"error":"Could not parse input line as json request"}`,
		`{"id":"a","warning":"Unexpected field","field":"foo"}`,
		response("a", 0),
	)
	got := f.waitFor(t, "a", 1)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].TurnNumber)

	noise := func(reason string) float64 {
		return testutil.ToFloat64(f.metrics.ProtocolNoise.WithLabelValues(reason))
	}
	assert.Equal(t, 1.0, noise(metrics.NoiseInvalidJSON))
	assert.Equal(t, 1.0, noise(metrics.NoiseUnknownID))
	assert.Equal(t, 1.0, noise(metrics.NoiseEngineError))
	assert.Equal(t, 1.0, noise(metrics.NoiseWarning))
}

func TestDispatcherFailsRejectedQuery(t *testing.T) {
	f := newDispatcherFixture(t)
	f.pending.Register("a", 1)
	f.pending.Register("b", 1)

	f.emit(t, `{"id":"a","error":"Illegal move 1: Q16","field":"moves"}`, response("b", 0))
	f.waitFor(t, "b", 1)

	_, err, ok := f.pending.Since("a", 0)
	require.True(t, ok)
	var engineErr *apperrors.EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, "a", engineErr.ID)
	assert.Equal(t, "moves", engineErr.Field)

	_, err, _ = f.pending.Since("b", 0)
	assert.NoError(t, err)
}

func TestDispatcherReadyBannerAndDiagnostics(t *testing.T) {
	f := newDispatcherFixture(t)
	_, err := io.WriteString(f.stderr, "KataGo v1.15.3\nModel loaded\n")
	require.NoError(t, err)

	select {
	case <-f.disp.Ready():
		t.Fatal("ready before banner")
	case <-time.After(20 * time.Millisecond):
	}

	_, err = io.WriteString(f.stderr, ReadyBanner+"\n")
	require.NoError(t, err)
	select {
	case <-f.disp.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("banner not detected")
	}
	assert.Equal(t, []string{"KataGo v1.15.3", "Model loaded", ReadyBanner}, f.disp.Diagnostics())
}

func TestDispatcherDiagnosticsAreBounded(t *testing.T) {
	f := newDispatcherFixture(t)
	var sb strings.Builder
	for i := 0; i < diagnosticLines+50; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	_, err := io.WriteString(f.stderr, sb.String())
	require.NoError(t, err)
	require.NoError(t, f.stderr.Close())
	<-f.disp.StderrDone()

	diag := f.disp.Diagnostics()
	require.Len(t, diag, diagnosticLines)
	assert.Equal(t, "line 50", diag[0])
	assert.Equal(t, fmt.Sprintf("line %d", diagnosticLines+49), diag[len(diag)-1])
}

func TestDispatcherSendWritesOneLinePerQuery(t *testing.T) {
	f := newDispatcherFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, f.disp.Send(domain.AnalysisQuery{ID: fmt.Sprintf("q%d", i), Moves: [][2]string{{"B", "Q16"}}}))
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(f.stdin.String(), "\n"), "\n")
	require.Len(t, lines, 20)
	seen := map[string]bool{}
	for _, line := range lines {
		var q domain.AnalysisQuery
		require.NoError(t, json.Unmarshal([]byte(line), &q))
		seen[q.ID] = true
	}
	assert.Len(t, seen, 20)
}
