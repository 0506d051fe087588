package speechtotext

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestTranscriptResultUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		data string
		text string
	}{
		{
			name: "plural keys",
			data: `{"results":[{"alternatives":[{"transcript":"hello ","confidence":0.9}],"final":true}],"result_index":0}`,
			text: "hello",
		},
		{
			name: "singular keys",
			data: `{"result":[{"alternative":[{"transcript":"good morning"}],"final":true}],"result_index":2}`,
			text: "good morning",
		},
		{
			name: "empty",
			data: `{"results":[],"result_index":0}`,
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r TranscriptResult
			if err := json.Unmarshal([]byte(tt.data), &r); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got := r.Text(); got != tt.text {
				t.Errorf("Text() = %q, want %q", got, tt.text)
			}
			if string(r.Raw) != tt.data {
				t.Errorf("Raw = %s", r.Raw)
			}
		})
	}
}

func TestWordTimestamps(t *testing.T) {
	data := `{"transcript":"hi there","timestamps":[["hi",0.1,0.4],["there",0.5,1.25]]}`

	var alt Alternative
	if err := json.Unmarshal([]byte(data), &alt); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(alt.Timestamps) != 2 {
		t.Fatalf("Timestamps = %v", alt.Timestamps)
	}
	want := WordTimestamp{Word: "there", StartTime: 0.5, EndTime: 1.25}
	if alt.Timestamps[1] != want {
		t.Errorf("Timestamps[1] = %+v, want %+v", alt.Timestamps[1], want)
	}

	out, err := json.Marshal(alt.Timestamps[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `["hi",0.1,0.4]` {
		t.Errorf("Marshal() = %s", out)
	}

	if err := json.Unmarshal([]byte(`["hi",0.1]`), &want); err == nil {
		t.Error("two-element timestamp accepted")
	}
}

func TestTranscriptReplacesInterim(t *testing.T) {
	results := []string{
		`{"results":[{"alternatives":[{"transcript":"hel"}],"final":false}],"result_index":0}`,
		`{"results":[{"alternatives":[{"transcript":"hello"}],"final":true}],"result_index":0}`,
		`{"results":[{"alternatives":[{"transcript":"wor"}],"final":false}],"result_index":1}`,
	}

	var transcript Transcript
	for _, data := range results {
		var r TranscriptResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			t.Fatal(err)
		}
		transcript.Add(&r)
	}

	segs := transcript.Segments()
	if len(segs) != 2 {
		t.Fatalf("Segments() = %+v", segs)
	}
	if segs[0].Text != "hello" || !segs[0].Final {
		t.Errorf("segment 0 = %+v", segs[0])
	}
	if segs[1].Text != "wor" || segs[1].Final {
		t.Errorf("segment 1 = %+v", segs[1])
	}
	if got := transcript.Final(); got != "hello" {
		t.Errorf("Final() = %q", got)
	}

	var buf bytes.Buffer
	PrintTranscript(&buf, &transcript)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], " hello") || !strings.HasSuffix(lines[1], "~wor") {
		t.Errorf("PrintTranscript() =\n%s", buf.String())
	}
}

func TestPrintTranscriptWithTimestamps(t *testing.T) {
	var transcript Transcript
	transcript.Add(&TranscriptResult{
		Results: []SpeechResult{{
			Final: true,
			Alternatives: []Alternative{{
				Transcript: "hi there",
				Timestamps: []WordTimestamp{{"hi", 61.5, 61.9}, {"there", 62, 62.25}},
			}},
		}},
	})

	var buf bytes.Buffer
	PrintTranscript(&buf, &transcript)
	if got := buf.String(); got != "01:01.50-01:02.25 hi there\n" {
		t.Errorf("PrintTranscript() = %q", got)
	}
}
