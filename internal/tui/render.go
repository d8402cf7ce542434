// ABOUTME: Flattens agent markdown into plain terminal text using goldmark's AST
// ABOUTME: Keeps structure (lists, quotes, code indentation) and drops inline markup

package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// RenderMarkdown converts markdown to terminal text. Emphasis markers are
// removed, lists get bullets or numbers, code blocks are indented and link
// targets follow their label.
func RenderMarkdown(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))
	r := &mdRenderer{src: source}
	return strings.TrimRight(r.blocks(doc, "\n\n"), "\n")
}

type mdRenderer struct {
	src []byte
}

func (r *mdRenderer) blocks(parent ast.Node, sep string) string {
	var parts []string
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if s := r.block(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func (r *mdRenderer) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		return r.inlines(n)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return prefixLines(r.rawLines(n), "    ")
	case *ast.Blockquote:
		return prefixLines(r.blocks(n, "\n\n"), "│ ")
	case *ast.List:
		return r.list(n)
	case *ast.ThematicBreak:
		return strings.Repeat("─", 8)
	case *ast.HTMLBlock:
		return ""
	default:
		return r.blocks(n, "\n\n")
	}
}

func (r *mdRenderer) list(l *ast.List) string {
	sep := "\n\n"
	if l.IsTight {
		sep = "\n"
	}

	var items []string
	num := l.Start
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if l.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		items = append(items, hangIndent(r.blocks(item, sep), marker))
	}
	return strings.Join(items, sep)
}

func (r *mdRenderer) rawLines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(r.src))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *mdRenderer) inlines(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(&b, c)
	}
	return b.String()
}

func (r *mdRenderer) inline(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(r.src))
		switch {
		case n.HardLineBreak():
			b.WriteByte('\n')
		case n.SoftLineBreak():
			b.WriteByte(' ')
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.Link:
		label := r.inlines(n)
		b.WriteString(label)
		if dest := string(n.Destination); dest != "" && dest != label {
			fmt.Fprintf(b, " (%s)", dest)
		}
	case *ast.AutoLink:
		b.Write(n.URL(r.src))
	case *ast.RawHTML:
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			r.inline(b, c)
		}
	}
}

// prefixLines prepends prefix to every non-empty line.
func prefixLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// hangIndent puts marker before the first line and aligns the rest under it.
func hangIndent(s, marker string) string {
	pad := strings.Repeat(" ", utf8.RuneCountInString(marker))
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			lines[i] = marker + line
		case line != "":
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}
