package speechtotext

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"node.town/listen/etc"
)

// TranscriptResult is one recognition payload. Raw holds the bytes as the
// service sent them.
type TranscriptResult struct {
	Results     []SpeechResult `json:"results"`
	ResultIndex int            `json:"result_index"`
	Warnings    []string       `json:"warnings,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type SpeechResult struct {
	Alternatives     []Alternative             `json:"alternatives"`
	Final            bool                      `json:"final"`
	KeywordsResult   map[string][]KeywordMatch `json:"keywords_result,omitempty"`
	WordAlternatives []WordAlternativesAtTime  `json:"word_alternatives,omitempty"`
}

type Alternative struct {
	Transcript string          `json:"transcript"`
	Confidence float64         `json:"confidence,omitempty"`
	Timestamps []WordTimestamp `json:"timestamps,omitempty"`
}

type KeywordMatch struct {
	NormalizedText string  `json:"normalized_text"`
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
	Confidence     float64 `json:"confidence"`
}

type WordAlternativesAtTime struct {
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Alternatives []struct {
		Word       string  `json:"word"`
		Confidence float64 `json:"confidence"`
	} `json:"alternatives"`
}

// WordTimestamp is encoded by the service as ["word", start, end].
type WordTimestamp struct {
	Word      string
	StartTime float64
	EndTime   float64
}

func (w *WordTimestamp) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 3 {
		return fmt.Errorf("timestamp: want 3 elements, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &w.Word); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[1], &w.StartTime); err != nil {
		return err
	}
	return json.Unmarshal(tuple[2], &w.EndTime)
}

func (w WordTimestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{w.Word, w.StartTime, w.EndTime})
}

// UnmarshalJSON accepts both "results" and the older singular "result".
func (r *TranscriptResult) UnmarshalJSON(data []byte) error {
	type plain TranscriptResult
	var v struct {
		plain
		Result []SpeechResult `json:"result"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = TranscriptResult(v.plain)
	if r.Results == nil {
		r.Results = v.Result
	}
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// UnmarshalJSON accepts both "alternatives" and the singular "alternative".
func (s *SpeechResult) UnmarshalJSON(data []byte) error {
	type plain SpeechResult
	var v struct {
		plain
		Alternative []Alternative `json:"alternative"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = SpeechResult(v.plain)
	if s.Alternatives == nil {
		s.Alternatives = v.Alternative
	}
	return nil
}

// Text joins the best alternative of every result.
func (r *TranscriptResult) Text() string {
	var parts []string
	for _, res := range r.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(res.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

type Segment struct {
	Index      int
	Text       string
	Final      bool
	Confidence float64
	StartTime  float64
	EndTime    float64
}

// Transcript folds a sequence of results into segments. An interim result at
// a given index is replaced by later results for the same index.
type Transcript struct {
	segments []Segment
}

func (t *Transcript) Add(r *TranscriptResult) {
	for i, res := range r.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		if r.ResultIndex+i < 0 {
			continue
		}
		alt := res.Alternatives[0]
		seg := Segment{
			Index:      r.ResultIndex + i,
			Text:       strings.TrimSpace(alt.Transcript),
			Final:      res.Final,
			Confidence: alt.Confidence,
		}
		if n := len(alt.Timestamps); n > 0 {
			seg.StartTime = alt.Timestamps[0].StartTime
			seg.EndTime = alt.Timestamps[n-1].EndTime
		}

		for seg.Index >= len(t.segments) {
			t.segments = append(t.segments, Segment{Index: len(t.segments)})
		}
		t.segments[seg.Index] = seg
	}
}

func (t *Transcript) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// Final joins the final segments only.
func (t *Transcript) Final() string {
	var parts []string
	for _, seg := range t.segments {
		if seg.Final && seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}

func PrintTranscript(w io.Writer, t *Transcript) {
	for _, seg := range t.segments {
		if seg.Text == "" {
			continue
		}
		marker := "~"
		if seg.Final {
			marker = " "
		}
		if seg.EndTime > 0 {
			fmt.Fprintf(w, "%s-%s%s%s\n",
				etc.FormatOffset(seg.StartTime),
				etc.FormatOffset(seg.EndTime),
				marker,
				seg.Text)
			continue
		}
		fmt.Fprintf(w, "%3d%s%s\n", seg.Index, marker, seg.Text)
	}
}
