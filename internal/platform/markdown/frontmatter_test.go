package markdown_test

import (
	"testing"

	"timeblock/internal/platform/markdown"
)

func TestRenderThenSplit(t *testing.T) {
	t.Parallel()
	doc, err := markdown.Render(map[string]any{"type": "agenda", "active": 2}, "# Agenda\n")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	meta, body, err := markdown.Split(doc)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if meta["type"] != "agenda" || meta["active"] != 2 || body != "\n# Agenda\n" {
		t.Fatalf("meta=%v body=%q", meta, body)
	}
}

func TestSplitWithoutFrontmatter(t *testing.T) {
	t.Parallel()
	meta, body, err := markdown.Split("plain text")
	if err != nil || len(meta) != 0 || body != "plain text" {
		t.Fatalf("split = %v, %q, %v", meta, body, err)
	}
	if _, _, err := markdown.Split("---\ntype: x\n"); err == nil {
		t.Fatal("unterminated frontmatter should fail")
	}
}
