package markup

import (
	"strings"
	"testing"

	"bookpress/images"
)

func TestToMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		contains []string
		absent   []string
	}{
		{
			name:     "structure",
			in:       "<h2>Title</h2><p>Hello <strong>world</strong></p><ul><li>a</li><li>b</li></ul>",
			contains: []string{"## Title", "Hello **world**", "- a", "- b"},
		},
		{
			name:     "table",
			in:       "<table><thead><tr><th>h1</th><th>h2</th></tr></thead><tbody><tr><td>c1</td><td>c2</td></tr></tbody></table>",
			contains: []string{"h1", "c2", "|", "---"},
		},
		{
			name:     "scripts dropped",
			in:       "<p>x</p><script>alert(1)</script><style>p{}</style>",
			contains: []string{"x"},
			absent:   []string{"alert", "p{}"},
		},
		{
			name:     "editor wrappers",
			in:       `<div class="ql-editor"><p><span>plain</span> <font>old</font></p><p><br></p><p>   </p></div>`,
			contains: []string{"plain old"},
			absent:   []string{"<", "ql-editor"},
		},
		{
			name:     "figure collapses to marker",
			in:       images.Figure("Login flowchart", "flow.png", images.SizeOf(images.CategoryFlowchart)),
			contains: []string{"![Login flowchart](flow.png)"},
			absent:   []string{"figcaption", "onerror"},
		},
		{
			name:     "figure caption used as alt",
			in:       `<figure><img src="a.png"><figcaption>From caption</figcaption></figure>`,
			contains: []string{"![From caption](a.png)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ToMarkdown(tt.in)
			if err != nil {
				t.Fatalf("ToMarkdown() error = %v", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("output does not contain %q:\n%s", s, out)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(out, s) {
					t.Errorf("output contains %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	in := `<h1>T</h1><p>One <b>two</b>.</p><ul><li>x <p>nested</p></li></ul><figure><img src="a"><figcaption>cap</figcaption></figure>`
	want := "T\n\nOne two.\n\nx nested"
	if got := PlainText(in); got != want {
		t.Errorf("PlainText() = %q, want %q", got, want)
	}
	if got := PlainText("just text"); got != "just text" {
		t.Errorf("PlainText() = %q", got)
	}
}
