package speechtotext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

const (
	listeningFrame = `{"state":"listening"}`
	interimFrame   = `{"results":[{"alternatives":[{"transcript":"hel"}],"final":false}],"result_index":0}`
	finalFrame     = `{"result":[{"alternative":[{"transcript":"hello world"}],"final":true}],"result_index":0}`
)

// serviceLog records what a fake service saw.
type serviceLog struct {
	mu     sync.Mutex
	dials  atomic.Int32
	query  url.Values
	header http.Header
	start  map[string]any
	audio  bytes.Buffer
}

func (l *serviceLog) audioString() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.audio.String()
}

// fakeService upgrades, reads the start frame and hands the socket to
// script. With a nil script it behaves like the real service: an interim
// result per audio chunk, a final result and a listening state on stop.
func fakeService(t *testing.T, log *serviceLog, script func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		log.mu.Lock()
		log.query = r.URL.Query()
		log.header = r.Header.Clone()
		log.mu.Unlock()

		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			t.Errorf("first frame type = %d, want text", typ)
			return
		}
		var start map[string]any
		if err := json.Unmarshal(data, &start); err != nil {
			t.Errorf("start frame: %v", err)
			return
		}
		log.mu.Lock()
		log.start = start
		log.mu.Unlock()

		if script != nil {
			script(conn)
			return
		}

		conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch typ {
			case websocket.BinaryMessage:
				log.mu.Lock()
				log.audio.Write(data)
				log.mu.Unlock()
				conn.WriteMessage(websocket.TextMessage, []byte(interimFrame))
			case websocket.TextMessage:
				var frame ControlFrame
				json.Unmarshal(data, &frame)
				if frame.Action == "stop" {
					conn.WriteMessage(websocket.TextMessage, []byte(finalFrame))
					conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
				}
			}
		}
	}))
}

func newStreamClient(srv *httptest.Server, opts ...Option) *Client {
	opts = append([]Option{WithBaseURL(srv.URL), WithLogger(testLogger())}, opts...)
	return NewClient(opts...)
}

func nextEvent(t *testing.T, s *RecognizeStream) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("events closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func drainEvents(t *testing.T, s *RecognizeStream) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Errorf("timed out draining events, got %v", events)
			return events
		}
	}
}

func streamErrorOf(t *testing.T, events []Event) *StreamError {
	t.Helper()
	var found *StreamError
	for _, ev := range events {
		if ev.Type == EventError {
			if found != nil {
				t.Errorf("more than one error event: %v", events)
			}
			found = ev.Err
		}
	}
	if found == nil {
		t.Fatalf("no error event in %v", events)
	}
	if last := events[len(events)-1]; last.Type != EventClosed {
		t.Errorf("last event = %v, want close", last)
	}
	return found
}

func TestStreamRecognize(t *testing.T) {
	var log serviceLog
	srv := fakeService(t, &log, nil)
	defer srv.Close()

	stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{
		ContentType:    "audio/l16;rate=16000",
		InterimResults: true,
	})

	if _, err := stream.Write([]byte("first ")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	connected := nextEvent(t, stream)
	if connected.Type != EventConnected {
		t.Fatalf("first event = %v, want connect", connected)
	}
	if connected.Config.ID != stream.ID() || connected.Config.MaxReceivedMessageSize == 0 {
		t.Errorf("config = %+v", connected.Config)
	}

	// A result arrives while there is still audio to send.
	interim := nextEvent(t, stream)
	if interim.Type != EventResults || interim.Result.Results[0].Final {
		t.Fatalf("second event = %v, want interim results", interim)
	}

	if _, err := stream.Write([]byte("second")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events := drainEvents(t, stream)
	if len(events) == 0 || events[len(events)-1].Type != EventClosed {
		t.Fatalf("events = %v, want trailing close", events)
	}

	var transcript Transcript
	transcript.Add(interim.Result)
	for _, ev := range events {
		switch ev.Type {
		case EventError:
			t.Errorf("unexpected error event: %v", ev.Err)
		case EventResults:
			transcript.Add(ev.Result)
		}
	}
	if got := transcript.Final(); got != "hello world" {
		t.Errorf("Final() = %q", got)
	}

	if got := log.audioString(); got != "first second" {
		t.Errorf("service received %q", got)
	}
	log.mu.Lock()
	if log.start["action"] != "start" || log.start["content-type"] != "audio/l16;rate=16000" {
		t.Errorf("start frame = %v", log.start)
	}
	if log.start["interim_results"] != true {
		t.Errorf("start frame = %v", log.start)
	}
	log.mu.Unlock()

	if stream.State() != StateClosed {
		t.Errorf("State() = %v, want closed", stream.State())
	}
	if _, err := stream.Write([]byte("late")); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Write() after close error = %v, want ErrStreamClosed", err)
	}
	select {
	case <-stream.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestStreamQueuesAudioUntilOpen(t *testing.T) {
	var log serviceLog
	srv := fakeService(t, &log, nil)
	defer srv.Close()

	stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{ContentType: "audio/flac"})
	for _, chunk := range []string{"a", "b", "c", "d"} {
		if _, err := stream.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write(%q) error = %v", chunk, err)
		}
	}
	stream.Close()

	events := drainEvents(t, stream)
	if events[0].Type != EventConnected {
		t.Errorf("first event = %v, want connect", events[0])
	}
	for _, ev := range events {
		if ev.Type == EventError {
			t.Errorf("unexpected error event: %v", ev.Err)
		}
	}
	if got := log.audioString(); got != "abcd" {
		t.Errorf("service received %q, want abcd", got)
	}
}

func TestStreamOpenSendsModelAndAuth(t *testing.T) {
	var log serviceLog
	srv := fakeService(t, &log, nil)
	defer srv.Close()

	client := newStreamClient(srv, WithBearerToken("tok"))
	stream := client.NewRecognizeStream(RecognitionOptions{
		ContentType: "audio/flac",
		Model:       "en-US_NarrowbandModel",
	})
	if err := stream.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if stream.State() != StateOpen {
		t.Errorf("State() = %v, want open", stream.State())
	}
	if err := stream.Open(context.Background()); err != nil {
		t.Errorf("second Open() error = %v", err)
	}
	stream.Close()
	drainEvents(t, stream)

	log.mu.Lock()
	defer log.mu.Unlock()
	if got := log.query.Get("model"); got != "en-US_NarrowbandModel" {
		t.Errorf("model = %q", got)
	}
	if _, ok := log.start["model"]; ok {
		t.Errorf("model leaked into start frame: %v", log.start)
	}
	if got := log.header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestStreamValidation(t *testing.T) {
	var log serviceLog
	srv := fakeService(t, &log, nil)
	defer srv.Close()

	stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{Continuous: true})
	err := stream.Open(context.Background())

	serr, ok := AsStreamError(err)
	if !ok || serr.Code != CodeValidation {
		t.Fatalf("Open() error = %v, want validation", err)
	}
	if !errors.Is(err, ErrMissingParameters) {
		t.Errorf("validation error does not wrap ErrMissingParameters: %v", err)
	}
	if n := log.dials.Load(); n != 0 {
		t.Errorf("service dialed %d times", n)
	}

	if got := streamErrorOf(t, drainEvents(t, stream)); got.Code != CodeValidation {
		t.Errorf("event code = %s", got.Code)
	}
	if stream.State() != StateErrored {
		t.Errorf("State() = %v, want errored", stream.State())
	}
}

func TestStreamLazyValidation(t *testing.T) {
	var log serviceLog
	srv := fakeService(t, &log, nil)
	defer srv.Close()

	stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{})
	if _, err := stream.Write([]byte("audio")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if got := streamErrorOf(t, drainEvents(t, stream)); got.Code != CodeValidation {
		t.Errorf("code = %s, want validation", got.Code)
	}
	if _, err := stream.Write([]byte("more")); err == nil {
		t.Error("Write() after failure succeeded")
	}
}

func TestStreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		script func(*websocket.Conn)
		audio  bool
		code   ErrorCode
	}{
		{
			name: "connection dropped",
			script: func(conn *websocket.Conn) {
				conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
				conn.ReadMessage()
				conn.NetConn().Close()
			},
			audio: true,
			code:  CodeConnectionReset,
		},
		{
			name: "inactivity",
			script: func(conn *websocket.Conn) {
				conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
				conn.WriteMessage(websocket.TextMessage,
					[]byte(`{"error":"Session timed out due to inactivity after 30 seconds."}`))
				conn.ReadMessage()
			},
			code: CodeTimeout,
		},
		{
			name: "policy close",
			script: func(conn *websocket.Conn) {
				conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "not authorized"))
				conn.ReadMessage()
			},
			code: CodeRejected,
		},
		{
			name: "garbage frame",
			script: func(conn *websocket.Conn) {
				conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
				conn.WriteMessage(websocket.TextMessage, []byte("not json"))
				conn.ReadMessage()
			},
			code: CodeProtocol,
		},
		{
			name: "server error",
			script: func(conn *websocket.Conn) {
				conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
				conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"internal failure"}`))
				conn.ReadMessage()
			},
			code: CodeServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log serviceLog
			srv := fakeService(t, &log, tt.script)
			defer srv.Close()

			stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{ContentType: "audio/flac"})
			if err := stream.Open(context.Background()); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if tt.audio {
				stream.Write([]byte("audio"))
			}

			events := drainEvents(t, stream)
			if events[0].Type != EventConnected {
				t.Errorf("first event = %v, want connect", events[0])
			}
			if got := streamErrorOf(t, events); got.Code != tt.code {
				t.Errorf("code = %s, want %s (%v)", got.Code, tt.code, got)
			}
			if stream.State() != StateErrored {
				t.Errorf("State() = %v, want errored", stream.State())
			}
			if _, err := stream.Write([]byte("x")); err == nil {
				t.Error("Write() after failure succeeded")
			}
		})
	}
}

func TestStreamHandshakeRejected(t *testing.T) {
	tests := []struct {
		name   string
		script func(*websocket.Conn)
		status int
		code   ErrorCode
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, code: CodeRejected},
		{name: "unavailable", status: http.StatusServiceUnavailable, code: CodeServer},
		{
			name: "start refused",
			script: func(conn *websocket.Conn) {
				conn.WriteMessage(websocket.TextMessage,
					[]byte(`{"error":"unable to transcode data stream audio/foo"}`))
			},
			code: CodeServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var srv *httptest.Server
			if tt.status != 0 {
				srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					http.Error(w, http.StatusText(tt.status), tt.status)
				}))
			} else {
				var log serviceLog
				srv = fakeService(t, &log, tt.script)
			}
			defer srv.Close()

			stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{ContentType: "audio/foo"})
			err := stream.Open(context.Background())
			serr, ok := AsStreamError(err)
			if !ok || serr.Code != tt.code {
				t.Fatalf("Open() error = %v, want %s", err, tt.code)
			}

			events := drainEvents(t, stream)
			for _, ev := range events {
				if ev.Type == EventConnected {
					t.Errorf("connect emitted for a rejected stream")
				}
			}
			if got := streamErrorOf(t, events); got.Code != tt.code {
				t.Errorf("event code = %s", got.Code)
			}
		})
	}
}

func TestStreamConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client := NewClient(WithBaseURL("http://"+addr), WithLogger(testLogger()))
	stream := client.NewRecognizeStream(RecognitionOptions{ContentType: "audio/flac"})

	err = stream.Open(context.Background())
	serr, ok := AsStreamError(err)
	if !ok || serr.Code != CodeConnectionRefused {
		t.Fatalf("Open() error = %v, want connection_refused", err)
	}
	drainEvents(t, stream)
}

func TestStreamCloseBeforeOpen(t *testing.T) {
	client := NewClient(WithLogger(testLogger()))
	stream := client.NewRecognizeStream(RecognitionOptions{ContentType: "audio/flac"})

	if err := stream.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	events := drainEvents(t, stream)
	if len(events) != 1 || events[0].Type != EventClosed {
		t.Errorf("events = %v, want only close", events)
	}
	if err := stream.Open(context.Background()); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Open() after close error = %v", err)
	}
}

func TestStreamAbort(t *testing.T) {
	var log serviceLog
	srv := fakeService(t, &log, nil)
	defer srv.Close()

	stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{ContentType: "audio/flac"})
	if err := stream.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	stream.Abort()
	stream.Abort()

	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed after Abort")
	}
	if stream.State() != StateClosed {
		t.Errorf("State() = %v, want closed", stream.State())
	}
	if _, err := stream.Write([]byte("x")); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Write() error = %v", err)
	}
	for range stream.Events() {
	}
}

func TestStreamAbortUnblocksStalledWrite(t *testing.T) {
	release := make(chan struct{})
	var log serviceLog
	srv := fakeService(t, &log, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
		<-release
	})
	defer srv.Close()
	defer close(release)

	stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{ContentType: "audio/flac"})
	if err := stream.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	written := make(chan error, 1)
	go func() {
		_, err := stream.Write(make([]byte, 64<<20))
		written <- err
	}()
	time.Sleep(200 * time.Millisecond)

	aborted := make(chan struct{})
	go func() {
		stream.Abort()
		close(aborted)
	}()
	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatalf("Abort blocked behind a stalled write; state=%v", stream.State())
	}

	select {
	case err := <-written:
		if !errors.Is(err, ErrStreamClosed) {
			t.Errorf("Write() error = %v, want ErrStreamClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stalled Write did not return after Abort")
	}
	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after Abort")
	}
	if stream.State() != StateClosed {
		t.Errorf("State() = %v, want closed", stream.State())
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
	for range stream.Events() {
	}
}

func TestStreamSendsKeywordsVerbatim(t *testing.T) {
	var log serviceLog
	srv := fakeService(t, &log, nil)
	defer srv.Close()

	stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{
		ContentType:       "audio/flac",
		Keywords:          []string{"IBM", "Watson", "mixedCase"},
		KeywordsThreshold: Float(0.5),
	})
	if err := stream.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stream.Close()
	drainEvents(t, stream)

	log.mu.Lock()
	start, query := log.start, log.query
	log.mu.Unlock()

	kw, _ := json.Marshal(start["keywords"])
	if string(kw) != `["IBM","Watson","mixedCase"]` {
		t.Errorf("start keywords = %s", kw)
	}
	if start["keywords_threshold"] != 0.5 {
		t.Errorf("start keywords_threshold = %v", start["keywords_threshold"])
	}
	if got := query.Get("keywords"); got != "" {
		t.Errorf("keywords leaked into the socket query: %q", got)
	}
}

func TestStreamStaysOpenAfterListening(t *testing.T) {
	var log serviceLog
	srv := fakeService(t, &log, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
		chunks := 0
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if typ == websocket.BinaryMessage {
				log.mu.Lock()
				log.audio.Write(data)
				log.mu.Unlock()
				chunks++
				if chunks == 1 {
					// end of utterance: the service is ready for more audio
					conn.WriteMessage(websocket.TextMessage, []byte(finalFrame))
					conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
				} else {
					conn.WriteMessage(websocket.TextMessage, []byte(interimFrame))
				}
				continue
			}
			conn.WriteMessage(websocket.TextMessage, []byte(finalFrame))
			conn.WriteMessage(websocket.TextMessage, []byte(listeningFrame))
		}
	})
	defer srv.Close()

	stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{ContentType: "audio/flac"})
	if err := stream.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if ev := nextEvent(t, stream); ev.Type != EventConnected {
		t.Fatalf("first event = %v", ev)
	}

	if _, err := stream.Write([]byte("one")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if ev := nextEvent(t, stream); ev.Type != EventResults || !ev.Result.Results[0].Final {
		t.Fatalf("event = %v, want final result", ev)
	}

	if _, err := stream.Write([]byte("two")); err != nil {
		t.Fatalf("Write() after listening error = %v", err)
	}
	if ev := nextEvent(t, stream); ev.Type != EventResults || ev.Result.Text() != "hel" {
		t.Fatalf("event = %v, want interim result", ev)
	}
	if stream.State() != StateOpen {
		t.Errorf("State() = %v, want open", stream.State())
	}

	stream.Close()
	events := drainEvents(t, stream)
	if len(events) != 2 || events[0].Type != EventResults || events[1].Type != EventClosed {
		t.Errorf("events after close = %v", events)
	}
	if stream.State() != StateClosed {
		t.Errorf("State() = %v, want closed", stream.State())
	}
	if got := log.audioString(); got != "onetwo" {
		t.Errorf("service received %q", got)
	}
}

func TestStreamStateString(t *testing.T) {
	tests := []struct {
		state StreamState
		want  string
	}{
		{StateIdle, "idle"},
		{StateErrored, "errored"},
		{StreamState(42), "StreamState(42)"},
		{StreamState(-1), "StreamState(-1)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("StreamState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestStreamReadFrom(t *testing.T) {
	var log serviceLog
	srv := fakeService(t, &log, nil)
	defer srv.Close()

	stream := newStreamClient(srv).NewRecognizeStream(RecognitionOptions{ContentType: "audio/flac"})

	pr, pw := io.Pipe()
	go func() {
		for i := 0; i < 3; i++ {
			pw.Write(bytes.Repeat([]byte{byte('a' + i)}, 100))
		}
		pw.Close()
	}()

	done := make(chan []Event)
	go func() { done <- drainEvents(t, stream) }()

	n, err := stream.ReadFrom(pr)
	if err != nil || n != 300 {
		t.Fatalf("ReadFrom() = %d, %v", n, err)
	}
	stream.Close()

	events := <-done
	results := 0
	for _, ev := range events {
		if ev.Type == EventResults {
			results++
		}
	}
	if results == 0 {
		t.Errorf("no results in %v", events)
	}
	if got := log.audioString(); len(got) != 300 || got[0] != 'a' || got[299] != 'c' {
		t.Errorf("service received %d bytes", len(got))
	}
}

func TestParseStreamMessage(t *testing.T) {
	tests := []struct {
		data    string
		state   string
		errMsg  string
		results int
		warn    int
	}{
		{data: listeningFrame, state: "listening"},
		{data: interimFrame, results: 1},
		{data: finalFrame, results: 1},
		{data: `{"error":"boom"}`, errMsg: "boom"},
		{data: `{"warnings":["Unknown arguments: foo."]}`, warn: 1},
	}

	for _, tt := range tests {
		msg, err := parseStreamMessage([]byte(tt.data))
		if err != nil {
			t.Fatalf("parseStreamMessage(%s) error = %v", tt.data, err)
		}
		if msg.State != tt.state || msg.Error != tt.errMsg || len(msg.Warnings) != tt.warn {
			t.Errorf("parseStreamMessage(%s) = %+v", tt.data, msg)
		}
		got := 0
		if msg.Result != nil {
			got = len(msg.Result.Results)
		}
		if got != tt.results {
			t.Errorf("parseStreamMessage(%s) results = %d, want %d", tt.data, got, tt.results)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  *StreamError
		code ErrorCode
	}{
		{"abnormal close", readError(&websocket.CloseError{Code: websocket.CloseAbnormalClosure}), CodeConnectionReset},
		{"eof", readError(io.ErrUnexpectedEOF), CodeConnectionReset},
		{"policy", readError(&websocket.CloseError{Code: websocket.ClosePolicyViolation}), CodeRejected},
		{"app close", readError(&websocket.CloseError{Code: 4401}), CodeRejected},
		{"internal", readError(&websocket.CloseError{Code: websocket.CloseInternalServerErr}), CodeServer},
		{"inactivity", serverError("Session timed out due to inactivity after 30 seconds."), CodeTimeout},
		{"plain", serverError("something broke"), CodeServer},
		{"dial 403", dialError(websocket.ErrBadHandshake, &http.Response{StatusCode: 403, Status: "403 Forbidden"}), CodeRejected},
		{"dial 502", dialError(websocket.ErrBadHandshake, &http.Response{StatusCode: 502, Status: "502 Bad Gateway"}), CodeServer},
		{"dial deadline", dialError(context.DeadlineExceeded, nil), CodeTimeout},
	}

	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("%s: code = %s, want %s", tt.name, tt.err.Code, tt.code)
		}
	}
}
