package textutil

import "testing"

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"fits", "short", 10, "short"},
		{"exact", "exact", 5, "exact"},
		{"ascii truncated", "a long recording title", 10, "a long re…"},
		{"wide runes counted double", "会議の録画テスト", 8, "会議の…"},
		{"zero max", "anything", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWidth(tt.input, tt.max)
			if got != tt.want {
				t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
			if w := DisplayWidth(got); w > tt.max && tt.max > 0 {
				t.Errorf("result width %d exceeds max %d", w, tt.max)
			}
		})
	}
}

func TestDisplayWidth(t *testing.T) {
	if w := DisplayWidth("abc"); w != 3 {
		t.Fatalf("DisplayWidth(abc) = %d, want 3", w)
	}
	if w := DisplayWidth("会議"); w != 4 {
		t.Fatalf("DisplayWidth(wide) = %d, want 4", w)
	}
}
