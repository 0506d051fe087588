package speechtotext

import (
	"io"
	"reflect"
	"strings"
)

type CreateSessionParams struct {
	Model string `json:"model,omitempty"`
}

// SessionParams addresses an existing session. CookieSession is the
// affinity token returned by CreateSession.
type SessionParams struct {
	SessionID     string `json:"session_id"`
	CookieSession string `json:"cookie_session,omitempty"`
}

type GetModelParams struct {
	ModelID string `json:"model_id"`
}

type ObserveResultParams struct {
	SessionID      string `json:"session_id"`
	CookieSession  string `json:"cookie_session,omitempty"`
	InterimResults bool   `json:"interim_results,omitempty"`
}

// RecognizeParams is the input to Recognize and RecognizeLive. Audio is
// ignored by RecognizeLive, which takes its audio through LiveRequest.Write.
type RecognizeParams struct {
	Audio io.Reader `param:"audio"`
	RecognitionOptions
}

var requiredParams = map[string][]string{
	"deleteSession":      {"session_id"},
	"getModel":           {"model_id"},
	"getRecognizeStatus": {"session_id"},
	"observeResult":      {"session_id"},
	"recognize":          {"audio", "content_type"},
	"recognizeLive":      {"session_id", "cookie_session", "content_type"},
	"recognizeStream":    {"content_type"},
}

// validate checks params against the required fields of operation. A nil
// params value is missing every required field.
func validate(operation string, params any) error {
	required := requiredParams[operation]
	if len(required) == 0 {
		return nil
	}

	v := reflect.ValueOf(params)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return &MissingParameterError{
				Operation: operation,
				Params:    append([]string(nil), required...),
			}
		}
		v = v.Elem()
	}

	var missing []string
	for _, name := range required {
		f, ok := fieldByParam(v, name)
		if !ok || f.IsZero() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingParameterError{Operation: operation, Params: missing}
	}
	return nil
}

func fieldByParam(v reflect.Value, name string) (reflect.Value, bool) {
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			if f, ok := fieldByParam(v.Field(i), name); ok {
				return f, true
			}
			continue
		}
		tag := sf.Tag.Get("param")
		if tag == "" {
			tag, _, _ = strings.Cut(sf.Tag.Get("json"), ",")
		}
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}
