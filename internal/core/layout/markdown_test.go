package layout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownParserSupports(t *testing.T) {
	p := NewMarkdownParser()

	assert.True(t, p.Supports("text/markdown"))
	assert.True(t, p.Supports("text/x-markdown"))
	assert.True(t, p.Supports("Text/Markdown; charset=utf-8"))
	assert.False(t, p.Supports("application/pdf"))
	assert.False(t, p.Supports("text/plain"))
	assert.False(t, p.Supports(""))
}

func TestMarkdownParserHeadingStack(t *testing.T) {
	doc := `# Guide

Intro paragraph.

## Install

Run the installer.

### Linux

Use the tarball.

## Usage

Start the server.
`

	p := NewMarkdownParser()
	elements, err := p.Parse(context.Background(), []byte(doc), "text/markdown")
	require.NoError(t, err)
	require.Len(t, elements, 4)

	assert.Equal(t, "Intro paragraph.", elements[0].Text)
	assert.Equal(t, []string{"Guide"}, elements[0].Headings)

	assert.Equal(t, "Run the installer.", elements[1].Text)
	assert.Equal(t, []string{"Guide", "Install"}, elements[1].Headings)

	assert.Equal(t, "Use the tarball.", elements[2].Text)
	assert.Equal(t, []string{"Guide", "Install", "Linux"}, elements[2].Headings)

	// A level-2 heading pops the level-3 entry before pushing itself.
	assert.Equal(t, "Start the server.", elements[3].Text)
	assert.Equal(t, []string{"Guide", "Usage"}, elements[3].Headings)
}

func TestMarkdownParserBlankLinesSplitBlocks(t *testing.T) {
	doc := "# H\n\nfirst line\nsecond line\n\nthird block\n"

	p := NewMarkdownParser()
	elements, err := p.Parse(context.Background(), []byte(doc), "text/markdown")
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.Equal(t, "first line\nsecond line", elements[0].Text)
	assert.Equal(t, "third block", elements[1].Text)
}

func TestMarkdownParserNoHeadings(t *testing.T) {
	p := NewMarkdownParser()
	elements, err := p.Parse(context.Background(), []byte("plain text only"), "text/markdown")
	require.NoError(t, err)
	require.Len(t, elements, 1)

	assert.Equal(t, "plain text only", elements[0].Text)
	assert.Empty(t, elements[0].Headings)
	assert.Empty(t, elements[0].PageNumbers)
}

func TestHeadingLine(t *testing.T) {
	cases := []struct {
		line  string
		level int
		title string
	}{
		{"# Title", 1, "Title"},
		{"### Deep", 3, "Deep"},
		{"## Closed ##", 2, "Closed"},
		{"####### Seven", 0, ""},
		{"#NoSpace", 0, ""},
		{"#", 0, ""},
		{"# ", 0, ""},
		{"not a heading", 0, ""},
	}
	for _, tc := range cases {
		level, title := headingLine(tc.line)
		assert.Equal(t, tc.level, level, "line %q", tc.line)
		assert.Equal(t, tc.title, title, "line %q", tc.line)
	}
}

func TestMarkdownParserCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewMarkdownParser()
	_, err := p.Parse(ctx, []byte("# H\n\ntext"), "text/markdown")
	assert.Error(t, err)
}
