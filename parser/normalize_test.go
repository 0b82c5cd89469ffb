package parser

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain collapses whitespace", "  The   common\n\tlaw  ", "The common law"},
		{"plain keeps entities", "Fees &amp; costs", "Fees &amp; costs"},
		{"tags stripped", "<p>Motor <b>vehicles</b></p>", "Motor vehicles"},
		{"entities decoded", "<p>Fees &amp; costs&nbsp;apply</p>", "Fees & costs apply"},
		{"block elements separated", "<li>one</li><li>two</li>", "one two"},
		{"script and style skipped", "<style>p{}</style><p>kept</p><script>var x = 1;</script>", "kept"},
		{"link text kept", `See <a href="/vacode/1-200/">§ 1-200</a>.`, "See § 1-200 ."},
		{"unbalanced markup", "<div><p>open <i>tags", "open tags"},
		{"lone angle bracket", "a < b", "a < b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
