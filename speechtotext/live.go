package speechtotext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

var errLiveFinished = errors.New("speechtotext: live request finished")

// LiveRequest is an in-flight chunked upload to a session. Audio is written
// with Write, the upload ends with Close, and the service answers once with
// the aggregate result.
type LiveRequest struct {
	req      *http.Request
	pr       *io.PipeReader
	pw       *io.PipeWriter
	onResult func(*TranscriptResult, error)

	done   chan struct{}
	once   sync.Once
	result *TranscriptResult
	err    error
}

// RecognizeLive opens a chunked recognize request on a session and returns
// it before the service has answered. onResult, when not nil, is called
// exactly once with the outcome.
func (c *Client) RecognizeLive(
	ctx context.Context,
	params *RecognizeParams,
	onResult func(*TranscriptResult, error),
) (*LiveRequest, error) {
	if err := validate("recognizeLive", params); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	req, err := c.newRequest(
		ctx,
		http.MethodPost,
		recognizePath(params.RecognitionOptions),
		pr,
	)
	if err != nil {
		return nil, err
	}
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Content-Type", params.ContentType)
	setSessionCookie(req.Header, params.CookieSession)

	live := &LiveRequest{
		req:      req,
		pr:       pr,
		pw:       pw,
		onResult: onResult,
		done:     make(chan struct{}),
	}

	go func() {
		var result TranscriptResult
		_, err := c.send(req, &result)
		if err != nil {
			c.logger.Error("live", "session", params.SessionID, "error", err)
			live.finish(nil, fmt.Errorf("recognize live: %w", err))
			return
		}
		c.logger.Debug("live", "session", params.SessionID, "results", len(result.Results))
		live.finish(&result, nil)
	}()

	return live, nil
}

func (l *LiveRequest) finish(result *TranscriptResult, err error) {
	l.once.Do(func() {
		l.result = result
		l.err = err
		if err != nil {
			l.pr.CloseWithError(err)
		} else {
			l.pr.CloseWithError(errLiveFinished)
		}
		close(l.done)
		if l.onResult != nil {
			l.onResult(result, err)
		}
	})
}

// Request is the request as constructed, for inspection.
func (l *LiveRequest) Request() *http.Request {
	return l.req
}

// Write sends one chunk of audio. It blocks until the transport has taken
// the bytes.
func (l *LiveRequest) Write(p []byte) (int, error) {
	n, err := l.pw.Write(p)
	if err != nil {
		return n, fmt.Errorf("write audio: %w", err)
	}
	return n, nil
}

// Close ends the upload. The result arrives on Done / Wait.
func (l *LiveRequest) Close() error {
	return l.pw.Close()
}

func (l *LiveRequest) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the service has answered or ctx is done.
func (l *LiveRequest) Wait(ctx context.Context) (*TranscriptResult, error) {
	select {
	case <-l.done:
		return l.result, l.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
