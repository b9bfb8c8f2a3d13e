package katago

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"go_analysis/internal/domain"
	apperrors "go_analysis/internal/errors"
	"go_analysis/internal/metrics"
)

const (
	diagnosticLines = 200
	responseBacklog = 256
)

// Dispatcher owns the engine's streams: it serializes query writes and routes response
// lines to the pending table by id.
type Dispatcher struct {
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
	pending *PendingTable

	writeMu sync.Mutex
	stdin   *bufio.Writer

	lines      chan string
	ready      chan struct{}
	readyOnce  sync.Once
	stdoutDone chan struct{}
	stderrDone chan struct{}
	loopDone   chan struct{}

	diagMu sync.Mutex
	diag   []string
}

func NewDispatcher(stdin io.Writer, pending *PendingTable, log *zap.SugaredLogger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		log:        log,
		metrics:    m,
		pending:    pending,
		stdin:      bufio.NewWriter(stdin),
		lines:      make(chan string, responseBacklog),
		ready:      make(chan struct{}),
		stdoutDone: make(chan struct{}),
		stderrDone: make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

// Run starts the stdout and stderr read loops and the dispatch loop. All three end when
// the process closes its streams.
func (d *Dispatcher) Run(stdout, stderr io.Reader) {
	go d.readStdout(stdout)
	go d.readStderr(stderr)
	go d.dispatch()
}

// Ready is closed when the readiness banner shows up on stderr.
func (d *Dispatcher) Ready() <-chan struct{} { return d.ready }

func (d *Dispatcher) StderrDone() <-chan struct{} { return d.stderrDone }

// Done is closed after the last stdout line was dispatched.
func (d *Dispatcher) Done() <-chan struct{} { return d.loopDone }

// Diagnostics returns the most recent stderr lines.
func (d *Dispatcher) Diagnostics() []string {
	d.diagMu.Lock()
	defer d.diagMu.Unlock()
	return append([]string(nil), d.diag...)
}

func (d *Dispatcher) Send(q domain.AnalysisQuery) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal query %s: %w", q.ID, err)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if _, err := d.stdin.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write query %s: %w", q.ID, err)
	}
	if err := d.stdin.Flush(); err != nil {
		return fmt.Errorf("flush query %s: %w", q.ID, err)
	}
	return nil
}

func (d *Dispatcher) readStdout(r io.Reader) {
	defer close(d.stdoutDone)
	defer close(d.lines)
	readLines(r, func(line string) {
		d.lines <- line
	}, d.readError("stdout"))
}

func (d *Dispatcher) readStderr(r io.Reader) {
	defer close(d.stderrDone)
	readLines(r, func(line string) {
		d.log.Debugw("katago_stderr", "line", line)
		d.remember(line)
		if strings.Contains(line, ReadyBanner) {
			d.readyOnce.Do(func() { close(d.ready) })
		}
	}, d.readError("stderr"))
}

func (d *Dispatcher) readError(stream string) func(error) {
	return func(err error) {
		d.log.Warnw("katago stream read failed", "stream", stream, "error", err)
	}
}

// readLines uses a bufio.Reader so that long response lines are never truncated.
func readLines(r io.Reader, handle func(string), onErr func(error)) {
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			handle(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				onErr(err)
			}
			return
		}
	}
}

func (d *Dispatcher) remember(line string) {
	d.diagMu.Lock()
	defer d.diagMu.Unlock()
	if len(d.diag) == diagnosticLines {
		copy(d.diag, d.diag[1:])
		d.diag = d.diag[:diagnosticLines-1]
	}
	d.diag = append(d.diag, line)
}

func (d *Dispatcher) dispatch() {
	defer close(d.loopDone)
	for line := range d.lines {
		d.handle(line)
	}
}

func (d *Dispatcher) handle(line string) {
	var resp domain.AnalysisResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		d.metrics.Noise(metrics.NoiseInvalidJSON)
		d.log.Warnw("katago non-JSON output", "line", line, "error", err)
		return
	}

	switch {
	case resp.Error != "":
		engineErr := &apperrors.EngineError{ID: resp.ID, Message: resp.Error, Field: resp.Field}
		if resp.ID != "" && d.pending.Fail(resp.ID, engineErr) {
			d.log.Errorw("katago rejected query", "id", resp.ID, "error", resp.Error, "field", resp.Field)
			return
		}
		d.metrics.Noise(metrics.NoiseEngineError)
		d.log.Errorw("katago backend error", "id", resp.ID, "error", resp.Error, "field", resp.Field)
	case resp.Warning != "":
		d.metrics.Noise(metrics.NoiseWarning)
		d.log.Warnw("katago warning", "id", resp.ID, "warning", resp.Warning, "field", resp.Field)
	case resp.IsDuringSearch:
		return
	case resp.ID == "" || !d.pending.Append(resp):
		d.metrics.Noise(metrics.NoiseUnknownID)
		d.log.Warnw("no pending request for response", "id", resp.ID, "turn", resp.TurnNumber)
	default:
		d.metrics.Dispatched()
	}
}
