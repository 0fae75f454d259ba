package models

import "testing"

func sampleTranscript() *Transcript {
	return NewTranscript("dQw4w9WgXcQ", []TranscriptFragment{
		{Start: 0, Text: "A"},
		{Start: 5, Text: "B"},
		{Start: 10, Text: "C"},
	})
}

func TestNewTranscriptJoinsText(t *testing.T) {
	tr := sampleTranscript()
	if tr.FullText != "A B C" {
		t.Errorf("FullText = %q, want %q", tr.FullText, "A B C")
	}
	if tr.Duration() != 10 {
		t.Errorf("Duration = %v, want 10", tr.Duration())
	}

	var empty *Transcript
	if empty.Duration() != 0 {
		t.Error("nil transcript should have zero duration")
	}
}

func TestTranscriptSlice(t *testing.T) {
	tr := sampleTranscript()
	five := 5.0
	ten := 10.0

	tests := []struct {
		name  string
		start float64
		end   *float64
		want  string
	}{
		{"first window", 0, &five, "A"},
		{"middle window", 5, &ten, "B"},
		{"open ended", 5, nil, "B C"},
		{"whole", 0, nil, "A B C"},
		{"start inside last fragment", 11, nil, "C"},
		{"start inside first fragment", 2, &ten, "A B"},
		{"window without fragment start", 6, &ten, "B"},
		{"zero width window", 5, &five, "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.Slice(tt.start, tt.end); got != tt.want {
				t.Errorf("Slice(%v) = %q, want %q", tt.start, got, tt.want)
			}
		})
	}
}

func TestTranscriptSliceEdges(t *testing.T) {
	zero := 0.0
	single := NewTranscript("dQw4w9WgXcQ", []TranscriptFragment{{Start: 0, Text: "only"}})
	if got := single.Slice(0, &zero); got != "only" {
		t.Errorf("zero width window on single fragment = %q", got)
	}

	late := NewTranscript("dQw4w9WgXcQ", []TranscriptFragment{{Start: 2, Text: "late"}, {Start: 4, Text: "later"}})
	one := 1.0
	if got := late.Slice(0, &one); got != "" {
		t.Errorf("window before first fragment = %q", got)
	}

	dup := NewTranscript("dQw4w9WgXcQ", []TranscriptFragment{{Start: 0, Text: "a"}, {Start: 3, Text: "b"}, {Start: 3, Text: "c"}})
	if got := dup.Slice(4, nil); got != "b c" {
		t.Errorf("fragments sharing a start = %q", got)
	}

	var empty *Transcript
	if got := empty.Slice(0, nil); got != "" {
		t.Errorf("nil transcript = %q", got)
	}
}

func TestSectionSetCloneIsDeep(t *testing.T) {
	end := 5.0
	set := &SectionSet{Sections: []*SectionRecord{
		{Index: 0, Title: "Intro", Body: "Intro\nhello", StartTime: 0, EndTime: &end},
	}}

	clone := set.Clone()
	clone.Sections[0].Body = "changed"
	*clone.Sections[0].EndTime = 99

	if set.Sections[0].Body != "Intro\nhello" || *set.Sections[0].EndTime != 5 {
		t.Error("Clone shares state with the original")
	}
	if set.Get(1) != nil || set.Get(-1) != nil {
		t.Error("Get should return nil out of range")
	}
	if set.Len() != 1 {
		t.Errorf("Len = %d", set.Len())
	}
}
