package speechtotext

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Session is a server-side recognition context. CookieSession is taken from
// the SESSIONID cookie of the creation response and must accompany every
// later call on the session. A Session is not modified after creation.
type Session struct {
	SessionID     string `json:"session_id"`
	NewSessionURI string `json:"new_session_uri"`
	Recognize     string `json:"recognize"`
	ObserveResult string `json:"observe_result"`
	RecognizeWS   string `json:"recognizeWS,omitempty"`
	CookieSession string `json:"cookie_session,omitempty"`

	// Raw is the creation response body, including fields not declared here.
	Raw json.RawMessage `json:"-"`
}

func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Session(v)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the declared fields over the raw creation response, so
// fields the service added survive a round trip.
func (s Session) MarshalJSON() ([]byte, error) {
	type plain Session
	declared, err := json.Marshal(plain(s))
	if err != nil || len(s.Raw) == 0 {
		return declared, err
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(s.Raw, &merged); err != nil {
		return nil, fmt.Errorf("session body: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(declared, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (s *Session) Params() *SessionParams {
	return &SessionParams{SessionID: s.SessionID, CookieSession: s.CookieSession}
}

type Model struct {
	Name        string `json:"name"`
	Language    string `json:"language"`
	Rate        int    `json:"rate"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Sessions    string `json:"sessions,omitempty"`
}

type ModelList struct {
	Models []Model `json:"models"`
}

type SessionStatus struct {
	State         string `json:"state"`
	Model         string `json:"model"`
	Recognize     string `json:"recognize"`
	ObserveResult string `json:"observe_result"`
	RecognizeWS   string `json:"recognizeWS,omitempty"`
}

type RecognizeStatus struct {
	Session SessionStatus `json:"session"`
}

func sessionPath(sessionID string, rest string) string {
	return "/v1/sessions/" + url.PathEscape(sessionID) + rest
}

// CreateSession opens a session. nil params and empty params are the same.
func (c *Client) CreateSession(
	ctx context.Context,
	params *CreateSessionParams,
) (*Session, error) {
	path := "/v1/sessions"
	if params != nil && params.Model != "" {
		path = buildPath(path, "model="+url.QueryEscape(params.Model))
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}

	var session Session
	resp, err := c.send(req, &session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookie {
			session.CookieSession = cookie.Value
		}
	}

	c.logger.Info("session", "id", session.SessionID, "cookie", session.CookieSession != "")
	return &session, nil
}

func (c *Client) DeleteSession(ctx context.Context, params *SessionParams) error {
	if err := validate("deleteSession", params); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodDelete, sessionPath(params.SessionID, ""), nil)
	if err != nil {
		return err
	}
	setSessionCookie(req.Header, params.CookieSession)

	if _, err := c.send(req, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	c.logger.Info("session", "deleted", params.SessionID)
	return nil
}

func (c *Client) GetModels(ctx context.Context) (*ModelList, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return nil, err
	}

	var models ModelList
	if _, err := c.send(req, &models); err != nil {
		return nil, fmt.Errorf("get models: %w", err)
	}
	return &models, nil
}

func (c *Client) GetModel(ctx context.Context, params *GetModelParams) (*Model, error) {
	if err := validate("getModel", params); err != nil {
		return nil, err
	}

	req, err := c.newRequest(
		ctx,
		http.MethodGet,
		"/v1/models/"+url.PathEscape(params.ModelID),
		nil,
	)
	if err != nil {
		return nil, err
	}

	var model Model
	if _, err := c.send(req, &model); err != nil {
		return nil, fmt.Errorf("get model: %w", err)
	}
	return &model, nil
}

// GetRecognizeStatus reports whether the session is initialized, ready or
// busy with a recognition request.
func (c *Client) GetRecognizeStatus(
	ctx context.Context,
	params *SessionParams,
) (*RecognizeStatus, error) {
	if err := validate("getRecognizeStatus", params); err != nil {
		return nil, err
	}

	req, err := c.newRequest(
		ctx,
		http.MethodGet,
		sessionPath(params.SessionID, "/recognize"),
		nil,
	)
	if err != nil {
		return nil, err
	}
	setSessionCookie(req.Header, params.CookieSession)

	var status RecognizeStatus
	if _, err := c.send(req, &status); err != nil {
		return nil, fmt.Errorf("get recognize status: %w", err)
	}
	return &status, nil
}

// ObserveResult long-polls the session for the next result. The call stays
// pending until the service has one or ctx is done.
func (c *Client) ObserveResult(
	ctx context.Context,
	params *ObserveResultParams,
) (*TranscriptResult, error) {
	if err := validate("observeResult", params); err != nil {
		return nil, err
	}

	path := sessionPath(params.SessionID, "/observe_result")
	if params.InterimResults {
		path = buildPath(path, "interim_results=true")
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	setSessionCookie(req.Header, params.CookieSession)

	var result TranscriptResult
	if _, err := c.send(req, &result); err != nil {
		return nil, fmt.Errorf("observe result: %w", err)
	}
	return &result, nil
}
