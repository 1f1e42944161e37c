package mirror

import "testing"

func TestPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  Build APIs  ", want: "Build APIs"},
		{name: "paragraphs", in: "<p>One</p><p>Two  three</p>", want: "One\nTwo three"},
		{name: "script dropped", in: "<div>Hi<script>alert(1)</script></div>", want: "Hi"},
		{name: "line break", in: "a<br>b", want: "a\nb"},
		{name: "empty markup", in: "<p> </p>", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PlainText(tt.in); got != tt.want {
				t.Fatalf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
