package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Flatten renders markdown to plain text with one blank line between blocks,
// the shape Split expects. Headings keep a "## " prefix so they remain
// meaningful retrieval anchors after flattening; tables become pipe-separated
// rows inside a single block.
func Flatten(markdown []byte) string {
	parser := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := parser.Parser().Parse(text.NewReader(markdown))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			if heading := nodeText(node, markdown); heading != "" {
				blocks = append(blocks, "## "+heading)
			}
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph, *ast.Blockquote:
			if body := nodeText(n, markdown); body != "" {
				blocks = append(blocks, body)
			}
			return ast.WalkSkipChildren, nil

		case *ast.List:
			var items []string
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if body := nodeText(item, markdown); body != "" {
					items = append(items, "- "+body)
				}
			}
			if len(items) > 0 {
				blocks = append(blocks, strings.Join(items, "\n"))
			}
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if body := linesText(n, markdown); body != "" {
				blocks = append(blocks, body)
			}
			return ast.WalkSkipChildren, nil

		default:
			// Table extension nodes are only reachable through the kind name.
			kind := n.Kind().String()
			if kind == "Table" {
				if rows := tableText(n, markdown); rows != "" {
					blocks = append(blocks, rows)
				}
				return ast.WalkSkipChildren, nil
			}
			return ast.WalkContinue, nil
		}
	})

	return strings.Join(blocks, "\n\n")
}

// nodeText collects the raw text under a node.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// linesText collects a node's source lines verbatim, used for code blocks.
func linesText(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(source))
	}
	return strings.TrimRight(b.String(), "\n")
}

// tableText renders a goldmark table as pipe-separated rows, one per line.
func tableText(table ast.Node, source []byte) string {
	var rows []string
	_ = ast.Walk(table, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		kind := node.Kind().String()
		if kind != "TableRow" && kind != "TableHeader" {
			return ast.WalkContinue, nil
		}
		var cells []string
		for cell := node.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, nodeText(cell, source))
		}
		rows = append(rows, strings.Join(cells, " | "))
		return ast.WalkSkipChildren, nil
	})
	return strings.Join(rows, "\n")
}
