package text

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap/zaptest"
)

const prose = `Distributed systems fail in partial ways. A node may be slow, not dead. Dr. Lamport described clocks in 1978, and the idea stuck.`

func TestSplitter_Sentences(t *testing.T) {
	s := NewSplitter(zaptest.NewLogger(t))
	if s == nil {
		t.Fatal("expected splitter")
	}

	got := s.Split(prose)
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %q", len(got), got)
	}
	if strings.Join(got, "") != prose {
		t.Errorf("sentences do not add up to input: %q", got)
	}
	if !strings.HasPrefix(got[2], "Dr. Lamport") {
		t.Errorf("abbreviation split sentence: %q", got[2])
	}
	if !strings.HasSuffix(got[0], " ") {
		t.Errorf("trailing space expected on first sentence: %q", got[0])
	}
}

func TestSplitter_Nil(t *testing.T) {
	var s *Splitter
	got := s.Split("One. Two.")
	if !slices.Equal(got, []string{"One. Two."}) {
		t.Errorf("nil splitter should return input intact, got %q", got)
	}
	if sum := s.Summary("One. Two.", 0); sum != "One. Two." {
		t.Errorf("unexpected summary %q", sum)
	}
}

func TestSplitter_Words(t *testing.T) {
	var s *Splitter
	got := slices.Collect(s.Words("  alpha\tbeta gamma\n\ndelta "))
	want := []string{"alpha", "beta gamma", "delta"}
	if !slices.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplitter_Summary(t *testing.T) {
	s := NewSplitter(zaptest.NewLogger(t))

	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"empty", "   ", 10, ""},
		{"first only", prose, 0, "Distributed systems fail in partial ways."},
		{"two fit", prose, 80, "Distributed systems fail in partial ways. A node may be slow, not dead."},
		{"everything", prose, 1000, prose},
		{"whitespace collapsed", "Line one\n\n  continues here.", 0, "Line one continues here."},
		{"cut on word", "Distributed systems fail in partial ways.", 25, "Distributed systems fail…"},
		{"long word", "Supercalifragilistic", 6, "Super…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Summary(tt.in, tt.limit)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if tt.limit > 0 && utf8.RuneCountInString(got) > tt.limit {
				t.Errorf("summary %q longer than %d runes", got, tt.limit)
			}
		})
	}
}
