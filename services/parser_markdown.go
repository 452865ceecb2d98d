package services

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"docchat-platform/models"
)

// MarkdownParser walks a commonmark tree (GFM tables enabled).
type MarkdownParser struct {
	md goldmark.Markdown
}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (p *MarkdownParser) Supports(mimeType string) bool {
	return mimeType == "text/markdown" || mimeType == "text/x-markdown"
}

func (p *MarkdownParser) Parse(data []byte, fileName string) (*models.ParsedDocument, error) {
	root := p.md.Parser().Parse(text.NewReader(data))
	builder := &docBuilder{}

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			title := nodeText(node, data)
			if title != "" {
				builder.StartSection(title, node.Level)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			// Paragraphs inside list items are covered by the list walk.
			if _, inList := node.Parent().(*ast.ListItem); inList {
				return ast.WalkContinue, nil
			}
			builder.AppendText(nodeText(node, data))
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			builder.AppendText("- " + nodeText(node, data))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			builder.AppendText(blockLines(n, data))
			return ast.WalkSkipChildren, nil
		case *extast.Table:
			builder.AddTable(renderMarkdownTable(node, data))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, &models.ParseError{MimeType: "text/markdown", Reason: "walk failed", Err: err}
	}

	return builder.Build(), nil
}

// nodeText collects the text leaves under a node in source order.
func nodeText(n ast.Node, source []byte) string {
	var out []byte
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			out = append(out, t.Segment.Value(source)...)
			if t.SoftLineBreak() || t.HardLineBreak() {
				out = append(out, ' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return string(out)
}

// blockLines reconstructs a code block's raw lines.
func blockLines(n ast.Node, source []byte) string {
	var out []byte
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, seg.Value(source)...)
	}
	return string(out)
}

func renderMarkdownTable(table *extast.Table, source []byte) string {
	var rows [][]string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, nodeText(cell, source))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return pipeTable(rows)
}
