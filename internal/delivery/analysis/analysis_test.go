package analysis

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go_analysis/internal/bootstrap"
	"go_analysis/internal/domain"
	apperrors "go_analysis/internal/errors"
	"go_analysis/internal/httpresponse"
)

type fakeAnalyzer struct {
	analyzeErr error
	streamErr  error
	failAfter  int
	turns      int

	mu   sync.Mutex
	last domain.AnalysisRequest
}

func (f *fakeAnalyzer) remember(req domain.AnalysisRequest) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
}

func (f *fakeAnalyzer) lastRequest() domain.AnalysisRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req domain.AnalysisRequest) (string, error) {
	f.remember(req)
	if f.analyzeErr != nil {
		return "", f.analyzeErr
	}
	return "(;C[Winrate: 50.0%, Score: 0.5])", nil
}

func (f *fakeAnalyzer) AnalyzeStream(ctx context.Context, req domain.AnalysisRequest) (<-chan domain.StreamItem, error) {
	f.remember(req)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	out := make(chan domain.StreamItem)
	go func() {
		defer close(out)
		for turn := 1; turn <= f.turns; turn++ {
			item := domain.StreamItem{Result: domain.TurnResult{Turn: turn, Total: f.turns, CurrentPlayer: "B", TopMoves: []domain.TopMove{}}}
			if f.failAfter > 0 && turn > f.failAfter {
				item = domain.StreamItem{Err: fmt.Errorf("analyze: %w", apperrors.ErrStreamingTimeout)}
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
			if item.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

func newServer(t *testing.T, uc Analyzer) *httptest.Server {
	t.Helper()
	cfg := &bootstrap.Config{MinAnalysisSteps: 100, MaxAnalysisSteps: 10000, DefaultAnalysisSteps: 1000, MaxSgfBytes: 1000}
	r := chi.NewRouter()
	NewAnalysisHandler(cfg, zap.NewNop().Sugar(), uc).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) httpresponse.Response[T] {
	t.Helper()
	var env httpresponse.Response[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestHandleAnalyze(t *testing.T) {
	uc := &fakeAnalyzer{}
	srv := newServer(t, uc)

	resp := post(t, srv.URL+"/v1/analyses", `{"sgf":"(;B[pd])","visits":5,"start_turn":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope[AnalysisData](t, resp)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, "(;C[Winrate: 50.0%, Score: 0.5])", env.Body.SGF)
	assert.Equal(t, 100, env.Body.VisitsUsed)

	last := uc.lastRequest()
	assert.Equal(t, "(;B[pd])", last.SGF)
	require.NotNil(t, last.StartTurn)
	assert.Equal(t, 1, *last.StartTurn)
	assert.Nil(t, last.EndTurn)
}

func TestHandleAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad json", `{"sgf":`, nil, http.StatusBadRequest},
		{"unknown field", `{"sgf":"(;)","player":"B"}`, nil, http.StatusBadRequest},
		{"invalid record", `{"sgf":"x"}`, fmt.Errorf("%w: structure", apperrors.ErrInvalidRecord), http.StatusBadRequest},
		{"malformed", `{"sgf":"x"}`, apperrors.ErrMalformedRecord, http.StatusBadRequest},
		{"unavailable", `{"sgf":"x"}`, apperrors.ErrEngineUnavailable, http.StatusServiceUnavailable},
		{"rejected", `{"sgf":"x"}`, &apperrors.EngineError{ID: "q", Message: "Illegal move"}, http.StatusBadGateway},
		{"timeout", `{"sgf":"x"}`, &apperrors.TimeoutError{Expected: 3}, http.StatusGatewayTimeout},
		{"deadline", `{"sgf":"x"}`, context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", `{"sgf":"x"}`, fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &fakeAnalyzer{analyzeErr: tt.err})
			resp := post(t, srv.URL+"/v1/analyses", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			env := decodeEnvelope[httpresponse.ErrorResponse](t, resp)
			assert.Equal(t, tt.status, env.Status)
			assert.NotEmpty(t, env.Body.ErrorDescription)
		})
	}
}

func readEvents(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			events = append(events, line)
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestHandleStream(t *testing.T) {
	srv := newServer(t, &fakeAnalyzer{turns: 3})
	resp := post(t, srv.URL+"/v1/analyses/stream", `{"sgf":"(;B[pd];W[dp])"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	events := readEvents(t, resp)
	require.Len(t, events, 4)
	for i, ev := range events[:3] {
		var res domain.TurnResult
		require.NoError(t, json.Unmarshal([]byte(ev), &res))
		assert.Equal(t, i+1, res.Turn)
		assert.Equal(t, 3, res.Total)
	}
	assert.JSONEq(t, `{"turn":1,"total":3,"winrate":0,"score":0,"currentPlayer":"B","topMoves":[]}`, events[0])
	assert.JSONEq(t, `{"done":true}`, events[3])
}

func TestHandleStreamMidStreamError(t *testing.T) {
	srv := newServer(t, &fakeAnalyzer{turns: 3, failAfter: 1})
	resp := post(t, srv.URL+"/v1/analyses/stream", `{"sgf":"(;B[pd])"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readEvents(t, resp)
	require.Len(t, events, 2)
	var last errorEvent
	require.NoError(t, json.Unmarshal([]byte(events[1]), &last))
	assert.Contains(t, last.Error, apperrors.ErrStreamingTimeout.Error())
}

func TestHandleStreamRefused(t *testing.T) {
	srv := newServer(t, &fakeAnalyzer{streamErr: apperrors.ErrEngineUnavailable})
	resp := post(t, srv.URL+"/v1/analyses/stream", `{"sgf":"(;B[pd])"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/analyses/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHandleWebSocket(t *testing.T) {
	uc := &fakeAnalyzer{turns: 2}
	srv := newServer(t, uc)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(domain.AnalysisRequest{SGF: "(;B[pd])", Visits: 200}))
	for turn := 1; turn <= 2; turn++ {
		var res domain.TurnResult
		require.NoError(t, conn.ReadJSON(&res))
		assert.Equal(t, turn, res.Turn)
	}
	var done doneEvent
	require.NoError(t, conn.ReadJSON(&done))
	assert.True(t, done.Done)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 200, uc.lastRequest().Visits)
}

func TestHandleWebSocketBadRequest(t *testing.T) {
	srv := newServer(t, &fakeAnalyzer{})
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var ev errorEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Contains(t, ev.Error, httpresponse.MALFORMEDJSON_errorDesc)
}
