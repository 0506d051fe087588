package speechtotext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"node.town/listen/etc"
)

const (
	maxMessageSize  = 4 << 20
	readChunkSize   = 8 << 10
	eventBufferSize = 64
)

type StreamState int

const (
	StateIdle StreamState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateErrored
)

var stateNames = [...]string{
	"idle",
	"connecting",
	"open",
	"closing",
	"closed",
	"errored",
}

func (s StreamState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("StreamState(%d)", s)
	}
	return stateNames[s]
}

func (s StreamState) terminal() bool {
	return s == StateClosed || s == StateErrored
}

type EventType string

const (
	EventConnected EventType = "connect"
	EventResults   EventType = "results"
	EventError     EventType = "error"
	EventClosed    EventType = "close"
)

// Event is one notification from a stream. Exactly one of Config, Result
// and Err is set for connect, results and error events.
type Event struct {
	Type   EventType
	Config *ConnectionConfig
	Result *TranscriptResult
	Err    *StreamError
}

// ConnectionConfig describes the socket negotiated for a stream.
type ConnectionConfig struct {
	ID                       string
	URL                      string
	Subprotocol              string
	Header                   http.Header
	FragmentOutgoingMessages bool
	FragmentationThreshold   int
	MaxReceivedMessageSize   int64
	PingInterval             time.Duration
}

// RecognizeStream is a duplex recognition channel: audio is written in,
// transcript events come out of Events. It connects on Open or on the first
// Write. Events must be drained until the channel closes, or the stream
// aborted.
type RecognizeStream struct {
	client *Client
	opts   RecognitionOptions
	id     string
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// writeMu orders frames on the socket. It is taken before mu, and mu is
	// never held across a network write.
	writeMu sync.Mutex

	mu             sync.Mutex
	state          StreamState
	pending        [][]byte
	conn           *websocket.Conn
	closeRequested bool
	err            error
	connected      chan struct{}

	emitMu    sync.Mutex
	finished  bool
	events    chan Event
	done      chan struct{}
	abort     chan struct{}
	abortOnce sync.Once
}

// NewRecognizeStream captures opts without validating them; validation
// happens when the stream connects.
func (c *Client) NewRecognizeStream(opts RecognitionOptions) *RecognizeStream {
	opts.Keywords = append([]string(nil), opts.Keywords...)
	id := etc.NewFreshID()
	ctx, cancel := context.WithCancel(context.Background())
	return &RecognizeStream{
		client:    c,
		opts:      opts,
		id:        id,
		logger:    c.logger.WithPrefix("stream").With("id", id),
		ctx:       ctx,
		cancel:    cancel,
		connected: make(chan struct{}),
		events:    make(chan Event, eventBufferSize),
		done:      make(chan struct{}),
		abort:     make(chan struct{}),
	}
}

func (s *RecognizeStream) ID() string {
	return s.id
}

func (s *RecognizeStream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events delivers connect, results, error and close events in arrival
// order. It is closed after the close event.
func (s *RecognizeStream) Events() <-chan Event {
	return s.events
}

// Done is closed once the stream reaches Closed or Errored.
func (s *RecognizeStream) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that put the stream in Errored, if any.
func (s *RecognizeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Open validates the options and performs the handshake. It returns once the
// service has acknowledged the start frame.
func (s *RecognizeStream) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.state = StateConnecting
		s.mu.Unlock()
		return s.connect(ctx)
	case StateConnecting:
		s.mu.Unlock()
		select {
		case <-s.connected:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state.terminal() {
			return s.closedErr()
		}
		return nil
	case StateOpen, StateClosing:
		s.mu.Unlock()
		return nil
	default:
		defer s.mu.Unlock()
		return s.closedErr()
	}
}

func (s *RecognizeStream) closedErr() error {
	if s.err != nil {
		return s.err
	}
	return ErrStreamClosed
}

func (s *RecognizeStream) socketURL() string {
	u := s.client.wsURL + "/v1/recognize"
	if s.opts.Model != "" {
		u = buildPath(u, "model="+url.QueryEscape(s.opts.Model))
	}
	return u
}

func (s *RecognizeStream) connect(ctx context.Context) error {
	defer close(s.connected)

	if err := validate("recognizeStream", &s.opts); err != nil {
		return s.fail(&StreamError{Code: CodeValidation, Err: err})
	}

	header := http.Header{}
	s.client.setAuthHeaders(header)

	u := s.socketURL()
	s.logger.Debug("dial", "url", u)

	conn, resp, err := s.client.dialer.DialContext(ctx, u, header)
	if err != nil {
		return s.fail(dialError(err, resp))
	}
	conn.SetReadLimit(maxMessageSize)

	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		conn.Close()
		return ErrStreamClosed
	}
	s.conn = conn
	err = writeJSON(conn, s.opts.StartFrame())
	s.mu.Unlock()
	if err != nil {
		return s.fail(&StreamError{Code: CodeConnectionReset, Message: "send start frame", Err: err})
	}

	if serr := s.awaitListening(conn); serr != nil {
		return s.fail(serr)
	}

	threshold := s.client.dialer.WriteBufferSize
	if threshold == 0 {
		threshold = 4096
	}
	s.emit(Event{
		Type: EventConnected,
		Config: &ConnectionConfig{
			ID:                       s.id,
			URL:                      u,
			Subprotocol:              conn.Subprotocol(),
			Header:                   resp.Header,
			FragmentOutgoingMessages: true,
			FragmentationThreshold:   threshold,
			MaxReceivedMessageSize:   maxMessageSize,
			PingInterval:             PingInterval,
		},
	})
	s.writeMu.Lock()
	s.mu.Lock()
	if s.state.terminal() {
		err := s.closedErr()
		s.mu.Unlock()
		s.writeMu.Unlock()
		return err
	}
	pending, stop := s.pending, s.closeRequested
	s.pending = nil
	if stop {
		s.state = StateClosing
	} else {
		s.state = StateOpen
	}
	s.mu.Unlock()

	s.logger.Info("open", "queued", len(pending))
	for _, chunk := range pending {
		if err = writeAudio(conn, chunk); err != nil {
			break
		}
	}
	if err == nil && stop {
		err = writeJSON(conn, stopFrame())
	}
	s.writeMu.Unlock()
	if err != nil {
		return s.fail(&StreamError{Code: CodeConnectionReset, Message: "send audio", Err: err})
	}

	go s.readLoop(conn)
	go s.keepAlive(conn)
	return nil
}

// awaitListening reads the service's acknowledgement of the start frame.
func (s *RecognizeStream) awaitListening(conn *websocket.Conn) *StreamError {
	conn.SetReadDeadline(time.Now().Add(PongTimeout))
	defer conn.SetReadDeadline(time.Time{})

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return readError(err)
	}
	if msgType != websocket.TextMessage {
		return &StreamError{Code: CodeProtocol, Message: "binary frame before handshake"}
	}

	msg, err := parseStreamMessage(data)
	switch {
	case err != nil:
		return &StreamError{Code: CodeProtocol, Message: "malformed handshake", Err: err}
	case msg.Error != "":
		return serverError(msg.Error)
	case msg.State != "listening":
		return &StreamError{Code: CodeProtocol, Message: "unexpected handshake: " + string(data)}
	}
	return nil
}

// Write sends audio. Before the stream is open the bytes are queued and
// flushed, in order, once the handshake completes; the first Write on an
// idle stream starts connecting.
func (s *RecognizeStream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.state = StateConnecting
		s.pending = append(s.pending, append([]byte(nil), p...))
		s.mu.Unlock()
		go s.connect(s.ctx)
		return len(p), nil
	case StateConnecting:
		defer s.mu.Unlock()
		if s.closeRequested {
			return 0, ErrStreamClosed
		}
		s.pending = append(s.pending, append([]byte(nil), p...))
		return len(p), nil
	case StateOpen:
		conn := s.conn
		s.mu.Unlock()
		if err := writeAudio(conn, p); err != nil {
			return 0, s.fail(&StreamError{Code: CodeConnectionReset, Message: "send audio", Err: err})
		}
		return len(p), nil
	default:
		s.mu.Unlock()
		return 0, ErrStreamClosed
	}
}

// ReadFrom copies audio from r into the stream until EOF. It does not close
// the stream.
func (s *RecognizeStream) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, readChunkSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := s.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Close signals the end of audio. Queued audio is flushed first; the stream
// then waits for the service to finish before reaching Closed. Close does
// not block; wait on Done or drain Events.
func (s *RecognizeStream) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.state = StateClosed
		s.mu.Unlock()
		s.cancel()
		s.finish(nil)
		return nil
	case StateConnecting:
		s.closeRequested = true
		s.mu.Unlock()
		return nil
	case StateOpen:
		s.state = StateClosing
		conn := s.conn
		s.mu.Unlock()
		if err := writeJSON(conn, stopFrame()); err != nil {
			return s.fail(&StreamError{Code: CodeConnectionReset, Message: "send stop frame", Err: err})
		}
		s.logger.Debug("stop")
		return nil
	default:
		s.mu.Unlock()
		return nil
	}
}

// Abort drops the connection without the stop handshake. Queued audio is
// discarded. A Write blocked on a stalled socket returns ErrStreamClosed.
func (s *RecognizeStream) Abort() {
	s.abortOnce.Do(func() { close(s.abort) })

	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.pending = nil
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.cancel()
	s.finish(nil)
}

func (s *RecognizeStream) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			state := s.state
			s.mu.Unlock()

			switch {
			case state.terminal():
			case state == StateClosing && websocket.IsCloseError(err, websocket.CloseNormalClosure):
				s.complete()
			default:
				s.fail(readError(err))
			}
			return
		}

		if msgType != websocket.TextMessage {
			s.fail(&StreamError{Code: CodeProtocol, Message: "unexpected binary frame"})
			return
		}

		msg, err := parseStreamMessage(data)
		if err != nil {
			s.fail(&StreamError{Code: CodeProtocol, Message: "malformed frame", Err: err})
			return
		}

		switch {
		case msg.Error != "":
			s.fail(serverError(msg.Error))
			return
		case msg.Result != nil:
			s.logger.Debug("hear", "index", msg.Result.ResultIndex, "results", len(msg.Result.Results))
			s.emit(Event{Type: EventResults, Result: msg.Result})
		case msg.State == "listening":
			s.mu.Lock()
			closing := s.state == StateClosing
			s.mu.Unlock()
			if closing {
				s.complete()
				return
			}
			s.logger.Debug("listening")
		case len(msg.Warnings) > 0:
			s.logger.Warn("service", "warnings", msg.Warnings)
		default:
			s.logger.Warn("unhandled frame", "data", string(data))
		}
	}
}

func (s *RecognizeStream) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(PongTimeout)); err != nil {
				s.logger.Error("failed to send ping", "error", err)
				return
			}
		}
	}
}

// complete moves a closing stream to Closed after the service has finished.
func (s *RecognizeStream) complete() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
	s.cancel()
	s.logger.Info("closed")
	s.finish(nil)
}

// fail moves the stream to Errored and reports serr. It returns serr so
// callers can hand it back, or the existing outcome if the stream had
// already ended.
func (s *RecognizeStream) fail(serr *StreamError) error {
	s.mu.Lock()
	if s.state.terminal() {
		err := s.closedErr()
		s.mu.Unlock()
		return err
	}
	s.state = StateErrored
	s.err = serr
	s.pending = nil
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.cancel()
	s.logger.Error("stream", "code", serr.Code, "error", serr)
	s.finish(serr)
	return serr
}

func (s *RecognizeStream) finish(serr *StreamError) {
	if serr != nil {
		s.emit(Event{Type: EventError, Err: serr})
	}
	s.emit(Event{Type: EventClosed})

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if !s.finished {
		s.finished = true
		close(s.events)
		close(s.done)
	}
}

func (s *RecognizeStream) emit(ev Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.finished {
		return
	}
	select {
	case s.events <- ev:
		return
	default:
	}
	select {
	case s.events <- ev:
	case <-s.abort:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(PongTimeout))
	return conn.WriteJSON(v)
}

func writeAudio(conn *websocket.Conn, p []byte) error {
	conn.SetWriteDeadline(time.Now().Add(PongTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, p)
}

type streamMessage struct {
	State    string   `json:"state"`
	Error    string   `json:"error"`
	Warnings []string `json:"warnings"`

	Result *TranscriptResult `json:"-"`
}

func parseStreamMessage(data []byte) (*streamMessage, error) {
	var envelope struct {
		streamMessage
		Results json.RawMessage `json:"results"`
		Single  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	msg := envelope.streamMessage
	if len(envelope.Results) > 0 || len(envelope.Single) > 0 {
		var result TranscriptResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, err
		}
		msg.Result = &result
	}
	return &msg, nil
}

func dialError(err error, resp *http.Response) *StreamError {
	if resp != nil {
		code := CodeServer
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			code = CodeRejected
		}
		return &StreamError{Code: code, Message: "handshake: " + resp.Status, Err: err}
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return &StreamError{Code: CodeConnectionRefused, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &StreamError{Code: CodeTimeout, Err: err}
	}
	return &StreamError{Code: CodeConnectionReset, Err: err}
}

func readError(err error) *StreamError {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch {
		case closeErr.Code == websocket.ClosePolicyViolation,
			closeErr.Code >= 4000 && closeErr.Code < 5000:
			return &StreamError{Code: CodeRejected, Message: closeErr.Text, Err: err}
		case closeErr.Code == websocket.CloseInternalServerErr,
			closeErr.Code == websocket.CloseTryAgainLater:
			return &StreamError{Code: CodeServer, Message: closeErr.Text, Err: err}
		}
		return &StreamError{Code: CodeConnectionReset, Message: closeErr.Text, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &StreamError{Code: CodeTimeout, Err: err}
	}
	return &StreamError{Code: CodeConnectionReset, Err: err}
}

func serverError(message string) *StreamError {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "inactivity") || strings.Contains(lower, "timed out") {
		return &StreamError{Code: CodeTimeout, Message: message}
	}
	return &StreamError{Code: CodeServer, Message: message}
}

func (e Event) String() string {
	switch e.Type {
	case EventResults:
		return fmt.Sprintf("results[%d] %q", e.Result.ResultIndex, e.Result.Text())
	case EventError:
		return fmt.Sprintf("error %s", e.Err.Code)
	}
	return string(e.Type)
}
