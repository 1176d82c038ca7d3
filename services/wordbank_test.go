package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordBankMatcher_LocalMatch(t *testing.T) {
	tests := []struct {
		name string
		text string
		bank []string
		want []string
	}{
		{
			name: "exact match",
			text: "We sailed across the ocean today.",
			bank: []string{"ocean", "mountain"},
			want: []string{"ocean"},
		},
		{
			name: "plural suffix",
			text: "The oceans are deep.",
			bank: []string{"ocean"},
			want: []string{"ocean"},
		},
		{
			name: "ing suffix",
			text: "He was jumping over the fence.",
			bank: []string{"jump"},
			want: []string{"jump"},
		},
		{
			name: "case insensitive",
			text: "OCEAN waves everywhere!",
			bank: []string{"ocean"},
			want: []string{"ocean"},
		},
		{
			name: "no substring false positive",
			text: "The motion of the boat was smooth.",
			bank: []string{"ocean"},
			want: nil,
		},
		{
			name: "multiple matches in bank order",
			text: "From the mountain you can see the ocean.",
			bank: []string{"ocean", "mountain"},
			want: []string{"ocean", "mountain"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grader := &fakeGrader{}
			matcher := NewWordBankMatcher(grader)
			got := matcher.Match(context.Background(), tt.text, tt.bank)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 0, grader.vocabCalls, "local match must not call the remote service")
		})
	}
}

func TestWordBankMatcher_EscalationGuards(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		bank       []string
		wantRemote bool
	}{
		{
			name:       "short text never escalates",
			text:       "ran fast",
			bank:       []string{"run"},
			wantRemote: false,
		},
		{
			name:       "no shared stem prefix never escalates",
			text:       "the weather was absolutely miserable yesterday",
			bank:       []string{"ocean"},
			wantRemote: false,
		},
		{
			name:       "long ambiguous text with shared stem escalates",
			text:       "yesterday we swam in the swimming pool for hours",
			bank:       []string{"swim"},
			wantRemote: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grader := &fakeGrader{}
			matcher := NewWordBankMatcher(grader)
			matcher.Match(context.Background(), tt.text, tt.bank)
			if tt.wantRemote {
				assert.Equal(t, 1, grader.vocabCalls)
			} else {
				assert.Equal(t, 0, grader.vocabCalls)
			}
		})
	}
}

func TestWordBankMatcher_RemoteHitsRevalidated(t *testing.T) {
	grader := &fakeGrader{
		// Remote claims two words; only "swim" has a stem in the text and
		// "castle" is not even a bank entry.
		vocabWords: []string{"swim", "castle", "ocean"},
	}
	matcher := NewWordBankMatcher(grader)

	text := "yesterday we swam for hours near the shore"
	got := matcher.Match(context.Background(), text, []string{"swim", "ocean"})

	assert.Equal(t, []string{"swim"}, got, "hallucinated matches must be filtered out")
}
