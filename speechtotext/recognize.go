package speechtotext

import (
	"context"
	"fmt"
	"net/http"
)

func recognizePath(opts RecognitionOptions) string {
	base := "/v1/recognize"
	if opts.SessionID != "" {
		base = sessionPath(opts.SessionID, "/recognize")
	}
	return buildPath(base, opts.Query())
}

// Recognize uploads a complete audio payload and returns the parsed result.
// With a SessionID the request is bound to that session, otherwise it is
// session-less. Audio is streamed as the request body.
func (c *Client) Recognize(
	ctx context.Context,
	params *RecognizeParams,
) (*TranscriptResult, error) {
	if err := validate("recognize", params); err != nil {
		return nil, err
	}

	req, err := c.newRequest(
		ctx,
		http.MethodPost,
		recognizePath(params.RecognitionOptions),
		params.Audio,
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", params.ContentType)
	setSessionCookie(req.Header, params.CookieSession)

	var result TranscriptResult
	if _, err := c.send(req, &result); err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	c.logger.Debug("recognize", "results", len(result.Results), "index", result.ResultIndex)
	return &result, nil
}
