package executors

import "testing"

func TestCombinePrompt(t *testing.T) {
	tests := []struct {
		name     string
		fragment AppendPrompt
		base     string
		want     string
	}{
		{
			name:     "fragment appended with blank line",
			fragment: "Always run the tests.",
			base:     "Fix the login bug",
			want:     "Fix the login bug\n\nAlways run the tests.",
		},
		{
			name:     "empty fragment leaves base unchanged",
			fragment: "",
			base:     "Fix the login bug",
			want:     "Fix the login bug",
		},
		{
			name:     "empty base still gets fragment",
			fragment: "Follow house style.",
			base:     "",
			want:     "\n\nFollow house style.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fragment.CombinePrompt(tt.base)
			if got != tt.want {
				t.Errorf("CombinePrompt(%q) = %q, want %q", tt.base, got, tt.want)
			}
			// Combination is pure: repeating it yields the same result.
			if again := tt.fragment.CombinePrompt(tt.base); again != got {
				t.Errorf("second call differed: %q vs %q", again, got)
			}
		})
	}
}
