package ascii

import (
	"strings"
	"testing"
)

func TestBox(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{
			name:  "empty",
			lines: nil,
			want:  "",
		},
		{
			name:  "single line",
			lines: []string{"Hello"},
			want:  "┌───────┐\n│ Hello │\n└───────┘\n",
		},
		{
			name:  "multiple lines",
			lines: []string{"Total: 3", "Failed: 1 of 3 servers", "ok"},
			want: "┌────────────────────────┐\n" +
				"│ Total: 3               │\n" +
				"│ Failed: 1 of 3 servers │\n" +
				"│ ok                     │\n" +
				"└────────────────────────┘\n",
		},
		{
			name:  "trailing spaces trimmed",
			lines: []string{"ab   ", "abc"},
			want:  "┌─────┐\n│ ab  │\n│ abc │\n└─────┘\n",
		},
		{
			name:  "wide runes",
			lines: []string{"ab", "日本"},
			want:  "┌──────┐\n│ ab   │\n│ 日本 │\n└──────┘\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Box(tt.lines); got != tt.want {
				t.Errorf("Box() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestBoxLinesShareWidth(t *testing.T) {
	out := Box([]string{"✓ weather", "✗ 日本語-server: install failed", ""})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	want := StringWidth(lines[0])
	for _, l := range lines {
		if got := StringWidth(l); got != want {
			t.Errorf("line %q has width %d, want %d", l, got, want)
		}
	}
}

func TestTruncateForBox(t *testing.T) {
	tests := []struct {
		value string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"日本語テキスト", 7, "日本..."},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateForBox(tt.value, tt.width); got != tt.want {
			t.Errorf("TruncateForBox(%q, %d) = %q, want %q", tt.value, tt.width, got, tt.want)
		}
		if tt.width > 0 && StringWidth(TruncateForBox(tt.value, tt.width)) > tt.width {
			t.Errorf("TruncateForBox(%q, %d) exceeds width", tt.value, tt.width)
		}
	}
}
