package knowledge

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sarah", "sarah"},
		{"  Sarah  ", "sarah"},
		{"My   Best   Friend", "my best friend"},
		{"the gym", "exercise"},
		{"Gym", "exercise"},
		{"working out", "exercise"},
		{"Mom", "mother"},
		{"mum", "mother"},
		{"Dad", "father"},
		{"the office", "work"},
		{"job!", "work"},
		{"job", "work"},
		{"anxiety", "anxious"},
		{"Anxiety!", "anxious"},
		{"happiness", "happy"},
		{"a walk", "walk"},
		{"an apple", "apple"},
		{"yoga.", "yoga"},
		{"", ""},
		{"   ", ""},
		{"the", "the"}, // bare article is not stripped to nothing
	}

	for _, tt := range tests {
		if got := Canonicalize(tt.in); got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalize_EquivalentMentions(t *testing.T) {
	// Variants of the same real-world entity must share one canonical key
	groups := [][]string{
		{"Sarah", "sarah", "  SARAH  "},
		{"gym", "the gym", "working out", "exercise"},
		{"mom", "Mum", "mother"},
		{"work", "Job", "the office", "workplace"},
	}

	for _, group := range groups {
		first := Canonicalize(group[0])
		for _, variant := range group[1:] {
			if got := Canonicalize(variant); got != first {
				t.Errorf("Canonicalize(%q) = %q, want %q (same as %q)", variant, got, first, group[0])
			}
		}
	}
}
