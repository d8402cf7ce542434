package tui

import "testing"

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Welcome jettro, we received your query: hi", want: "Welcome jettro, we received your query: hi"},
		{name: "emphasis", in: "**bold** and _italic_", want: "bold and italic"},
		{name: "code span", in: "run `make test`", want: "run make test"},
		{name: "heading and body", in: "# Title\n\nBody text", want: "Title\n\nBody text"},
		{name: "soft break joins", in: "line one\nline two", want: "line one line two"},
		{name: "bullets", in: "- a\n- b", want: "• a\n• b"},
		{name: "numbered", in: "3. three\n4. four", want: "3. three\n4. four"},
		{name: "nested list", in: "- a\n  - b", want: "• a\n  • b"},
		{name: "fenced code", in: "```go\nx := 1\n```", want: "    x := 1"},
		{name: "link", in: "[docs](https://example.com)", want: "docs (https://example.com)"},
		{name: "autolink", in: "<https://example.com>", want: "https://example.com"},
		{name: "quote", in: "> careful", want: "│ careful"},
		{name: "intraword underscore", in: "john_doe has 5 days", want: "john_doe has 5 days"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderMarkdown(tt.in); got != tt.want {
				t.Errorf("RenderMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHangIndent(t *testing.T) {
	got := hangIndent("first\n\nsecond", "10. ")
	want := "10. first\n\n    second"
	if got != want {
		t.Errorf("hangIndent = %q, want %q", got, want)
	}
}
