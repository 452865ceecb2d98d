package services

import (
	"encoding/base64"
	"strings"
	"testing"

	"docchat-platform/internal/config"
)

func TestMarkdownSectionsAndBreadcrumbs(t *testing.T) {
	src := []byte(`# Guide

Intro paragraph.

## Install

Run the installer.

## Configure

Edit the config file.
`)
	doc, err := NewMarkdownParser().Parse(src, "guide.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(doc.Sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(doc.Sections))
	}
	if doc.Sections[0].Title != "Guide" || doc.Sections[0].Level != 1 {
		t.Errorf("section 0 = %q level %d", doc.Sections[0].Title, doc.Sections[0].Level)
	}

	install := doc.Sections[1]
	if len(install.Breadcrumb) != 2 || install.Breadcrumb[0] != "Guide" || install.Breadcrumb[1] != "Install" {
		t.Errorf("breadcrumb = %v", install.Breadcrumb)
	}
	if !strings.Contains(install.Content, "Run the installer.") {
		t.Errorf("section content = %q", install.Content)
	}
	if !strings.Contains(doc.FullText, "Edit the config file.") {
		t.Error("paragraph missing from full text")
	}
}

func TestMarkdownSiblingHeadingPopsStack(t *testing.T) {
	src := []byte("# Top\n\n## First\n\nA.\n\n## Second\n\nB.\n")
	doc, err := NewMarkdownParser().Parse(src, "doc.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	last := doc.Sections[len(doc.Sections)-1]
	if len(last.Breadcrumb) != 2 || last.Breadcrumb[1] != "Second" {
		t.Errorf("sibling heading breadcrumb = %v, want [Top Second]", last.Breadcrumb)
	}
}

func TestMarkdownTableRendersPipes(t *testing.T) {
	src := []byte(`| Name | Role |
| --- | --- |
| Ada | Engineer |
| Grace | Admiral |
`)
	doc, err := NewMarkdownParser().Parse(src, "table.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(doc.Tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(doc.Tables))
	}
	md := doc.Tables[0].Markdown
	if !strings.Contains(md, "| Name | Role |") {
		t.Errorf("header row missing:\n%s", md)
	}
	if !strings.Contains(md, "| --- | --- |") {
		t.Errorf("separator row missing:\n%s", md)
	}
	if !strings.Contains(md, "| Ada | Engineer |") {
		t.Errorf("data row missing:\n%s", md)
	}
	if !strings.Contains(doc.FullText, "| Ada | Engineer |") {
		t.Error("table not appended to full text")
	}
}

func TestMarkdownListItems(t *testing.T) {
	doc, err := NewMarkdownParser().Parse([]byte("- alpha\n- beta\n"), "list.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(doc.FullText, "- alpha") || !strings.Contains(doc.FullText, "- beta") {
		t.Errorf("list items missing: %q", doc.FullText)
	}
}

func TestHTMLHeadingsAndTables(t *testing.T) {
	src := []byte(`<!doctype html><html><body>
<h1>Report</h1>
<p>Opening paragraph.</p>
<h2>Results</h2>
<table><tr><th>Metric</th><th>Value</th></tr><tr><td>Latency</td><td>12ms</td></tr></table>
</body></html>`)

	doc, err := NewXHTMLParser().Parse(src, "report.html")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(doc.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(doc.Sections))
	}
	if doc.Sections[1].Title != "Results" || doc.Sections[1].Level != 2 {
		t.Errorf("section = %q level %d", doc.Sections[1].Title, doc.Sections[1].Level)
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(doc.Tables))
	}
	if !strings.Contains(doc.Tables[0].Markdown, "| Latency | 12ms |") {
		t.Errorf("table rendering:\n%s", doc.Tables[0].Markdown)
	}
	// Table cells must not leak as standalone paragraphs.
	if strings.Count(doc.FullText, "Latency") != 1 {
		t.Errorf("table content duplicated in full text:\n%s", doc.FullText)
	}
}

func TestHTMLInlineDataURIImage(t *testing.T) {
	png := pngBytes(t, 6, 6)
	src := []byte(`<html><body><p>Before.</p><img src="data:image/png;base64,` +
		base64.StdEncoding.EncodeToString(png) + `" alt="chart"></body></html>`)

	doc, err := NewXHTMLParser().Parse(src, "page.html")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Images) != 1 {
		t.Fatalf("got %d images, want 1", len(doc.Images))
	}
	img := doc.Images[0]
	if img.MimeType != "image/png" || img.AltText != "chart" {
		t.Errorf("mime/alt = %q / %q", img.MimeType, img.AltText)
	}
	if img.Width != 6 || img.Height != 6 {
		t.Errorf("dimensions = %dx%d", img.Width, img.Height)
	}
	if img.GroupID != -1 {
		t.Errorf("group id = %d, want -1", img.GroupID)
	}
}

func TestHTMLExternalImageSkipped(t *testing.T) {
	src := []byte(`<html><body><img src="https://example.com/x.png"><p>Text.</p></body></html>`)
	doc, err := NewXHTMLParser().Parse(src, "page.html")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Images) != 0 {
		t.Errorf("external image extracted: %d", len(doc.Images))
	}
}

func TestPlainTextFallback(t *testing.T) {
	doc, err := NewXHTMLParser().Parse([]byte("  just some notes\nacross two lines  "), "notes.txt")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.FullText != "just some notes\nacross two lines" {
		t.Errorf("full text = %q", doc.FullText)
	}
}

func TestPipeTableEscapesAndPads(t *testing.T) {
	got := pipeTable([][]string{
		{"A", "B"},
		{"only one cell"},
	})
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), got)
	}
	// Short rows pad to the header width.
	if lines[2] != "| only one cell |  |" {
		t.Errorf("padded row = %q", lines[2])
	}

	if pipeTable(nil) != "" {
		t.Error("empty table rendered output")
	}
}

func TestRegistryDispatchAndTitle(t *testing.T) {
	reg := NewParserRegistry(&config.Config{})

	doc, err := reg.Parse([]byte("# My Title\n\nBody.\n"), "text/markdown", "file.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Title != "My Title" {
		t.Errorf("title = %q, want first heading", doc.Title)
	}

	doc, err = reg.Parse([]byte("no headings here"), "text/plain", "meeting-notes.txt")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Title != "meeting-notes" {
		t.Errorf("title = %q, want file stem", doc.Title)
	}

	if _, err := reg.Parse([]byte("x"), "application/x-unknown", "f.bin"); err == nil {
		t.Error("unknown mime type did not fail")
	}
}
