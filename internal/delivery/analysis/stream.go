package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"go_analysis/internal/domain"
	"go_analysis/internal/httpresponse"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type doneEvent struct {
	Done bool `json:"done"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// HandleStream sends one Server-Sent Event per analyzed turn, then a done or error event.
// Failures before the first event are reported with a regular status code.
func (h *AnalysisHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpresponse.WriteErrorWithStatus(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	stream, err := h.uc.AnalyzeStream(r.Context(), req)
	if err != nil {
		status := httpresponse.StatusFor(err)
		h.log.Errorw("streaming analysis refused", "status", status, "error", err)
		httpresponse.WriteErrorWithStatus(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(v any) bool {
		payload, err := json.Marshal(v)
		if err != nil {
			h.log.Errorw("marshal stream event", "error", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			h.log.Infow("stream client went away", "error", err)
			return false
		}
		flusher.Flush()
		return true
	}

	h.pump(r.Context(), stream, send)
}

// HandleWebSocket reads one request message and answers with one message per turn.
func (h *AnalysisHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(h.cfg.MaxSgfBytes) + bodyOverhead)

	send := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(v); err != nil {
			h.log.Infow("websocket write failed", "error", err)
			return false
		}
		return true
	}

	var req domain.AnalysisRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.log.Warnw("websocket request decode error", "error", err)
		send(errorEvent{Error: httpresponse.MALFORMEDJSON_errorDesc + ": " + err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// the only thing read after the request is the close frame
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	stream, err := h.uc.AnalyzeStream(ctx, req)
	if err != nil {
		h.log.Errorw("streaming analysis refused", "error", err)
		send(errorEvent{Error: err.Error()})
		return
	}
	if h.pump(ctx, stream, send) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
	}
}

// pump forwards stream items through send and reports whether the stream ended normally.
func (h *AnalysisHandler) pump(ctx context.Context, stream <-chan domain.StreamItem, send func(any) bool) bool {
	turns := 0
	for {
		select {
		case <-ctx.Done():
			h.log.Infow("stream abandoned by client", "turns_sent", turns)
			return false
		case item, ok := <-stream:
			if !ok {
				send(doneEvent{Done: true})
				h.log.Infow("stream finished", "turns_sent", turns)
				return true
			}
			if item.Err != nil {
				h.log.Errorw("streaming error", "error", item.Err)
				send(errorEvent{Error: item.Err.Error()})
				return false
			}
			if !send(item.Result) {
				return false
			}
			turns++
		}
	}
}
