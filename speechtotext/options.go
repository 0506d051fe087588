package speechtotext

import (
	"net/url"
	"strconv"
	"strings"
)

// RecognitionOptions configures a recognition request. Unset options are
// left to the service's defaults and never serialized.
type RecognitionOptions struct {
	ContentType string `json:"content_type"`
	Model       string `json:"model,omitempty"`

	Continuous      bool  `json:"continuous,omitempty"`
	Timestamps      bool  `json:"timestamps,omitempty"`
	WordConfidence  bool  `json:"word_confidence,omitempty"`
	ProfanityFilter *bool `json:"profanity_filter,omitempty"`
	SmartFormatting bool  `json:"smart_formatting,omitempty"`

	// InactivityTimeout is in seconds; -1 disables it. It is enforced by
	// the service only.
	InactivityTimeout *int `json:"inactivity_timeout,omitempty"`
	MaxAlternatives   *int `json:"max_alternatives,omitempty"`
	InterimResults    bool `json:"interim_results,omitempty"`

	Keywords                  []string `json:"keywords,omitempty"`
	KeywordsThreshold         *float64 `json:"keywords_threshold,omitempty"`
	WordAlternativesThreshold *float64 `json:"word_alternatives_threshold,omitempty"`

	SessionID     string `json:"session_id,omitempty"`
	CookieSession string `json:"cookie_session,omitempty"`
}

func Bool(v bool) *bool { return &v }
func Int(v int) *int { return &v }
func Float(v float64) *float64 { return &v }

// Query serializes the options into a query string in declaration order.
// ContentType travels as a header and the session fields select the path,
// so none of them appear here.
func (o RecognitionOptions) Query() string {
	var q queryBuilder
	if o.Model != "" {
		q.add("model", o.Model)
	}
	q.flag("continuous", o.Continuous)
	q.flag("timestamps", o.Timestamps)
	q.flag("word_confidence", o.WordConfidence)
	if o.ProfanityFilter != nil {
		q.add("profanity_filter", strconv.FormatBool(*o.ProfanityFilter))
	}
	q.flag("smart_formatting", o.SmartFormatting)
	if o.InactivityTimeout != nil {
		q.add("inactivity_timeout", strconv.Itoa(*o.InactivityTimeout))
	}
	if o.MaxAlternatives != nil {
		q.add("max_alternatives", strconv.Itoa(*o.MaxAlternatives))
	}
	q.flag("interim_results", o.InterimResults)
	if len(o.Keywords) > 0 {
		q.add("keywords", strings.Join(o.Keywords, ","))
	}
	if o.KeywordsThreshold != nil {
		q.add("keywords_threshold", formatFloat(*o.KeywordsThreshold))
	}
	if o.WordAlternativesThreshold != nil {
		q.add("word_alternatives_threshold", formatFloat(*o.WordAlternativesThreshold))
	}
	return q.String()
}

// ControlFrame is a text message on the recognition socket. The start frame
// carries the options; stop carries only the action.
type ControlFrame struct {
	Action                    string   `json:"action"`
	ContentType               string   `json:"content-type,omitempty"`
	Continuous                bool     `json:"continuous,omitempty"`
	Timestamps                bool     `json:"timestamps,omitempty"`
	WordConfidence            bool     `json:"word_confidence,omitempty"`
	ProfanityFilter           *bool    `json:"profanity_filter,omitempty"`
	SmartFormatting           bool     `json:"smart_formatting,omitempty"`
	InactivityTimeout         *int     `json:"inactivity_timeout,omitempty"`
	MaxAlternatives           *int     `json:"max_alternatives,omitempty"`
	InterimResults            bool     `json:"interim_results,omitempty"`
	Keywords                  []string `json:"keywords,omitempty"`
	KeywordsThreshold         *float64 `json:"keywords_threshold,omitempty"`
	WordAlternativesThreshold *float64 `json:"word_alternatives_threshold,omitempty"`
}

// StartFrame builds the handshake frame. Model is not part of it: the model
// selects the endpoint and rides on the socket URL.
func (o RecognitionOptions) StartFrame() ControlFrame {
	var keywords []string
	if len(o.Keywords) > 0 {
		keywords = append(keywords, o.Keywords...)
	}
	return ControlFrame{
		Action:                    "start",
		ContentType:               o.ContentType,
		Continuous:                o.Continuous,
		Timestamps:                o.Timestamps,
		WordConfidence:            o.WordConfidence,
		ProfanityFilter:           o.ProfanityFilter,
		SmartFormatting:           o.SmartFormatting,
		InactivityTimeout:         o.InactivityTimeout,
		MaxAlternatives:           o.MaxAlternatives,
		InterimResults:            o.InterimResults,
		Keywords:                  keywords,
		KeywordsThreshold:         o.KeywordsThreshold,
		WordAlternativesThreshold: o.WordAlternativesThreshold,
	}
}

func stopFrame() ControlFrame {
	return ControlFrame{Action: "stop"}
}

func buildPath(base, query string) string {
	if query == "" {
		return base
	}
	return base + "?" + query
}

type queryBuilder struct {
	strings.Builder
}

func (q *queryBuilder) add(name, value string) {
	if q.Len() > 0 {
		q.WriteByte('&')
	}
	q.WriteString(name)
	q.WriteByte('=')
	q.WriteString(url.QueryEscape(value))
}

func (q *queryBuilder) flag(name string, on bool) {
	if on {
		q.add(name, "true")
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
