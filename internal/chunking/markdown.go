package chunking

import (
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownChunker splits Markdown (and, via the same heading/paragraph
// model, HTML-derived text) into heading-bounded sections, treating fenced
// code blocks as atomic units that are never split mid-fence. The teacher
// never chunked prose; this is grounded in its CodeChunker's chunk-shape
// conventions (ID/Hash/Metadata) applied to a goldmark AST walk instead of
// regex.
type MarkdownChunker struct {
	maxChunkSize int
}

// NewMarkdownChunker creates a markdown chunker with a target chunk size.
func NewMarkdownChunker(maxChunkSize int) *MarkdownChunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 2000
	}
	return &MarkdownChunker{maxChunkSize: maxChunkSize}
}

// Supports reports whether this chunker handles the given extension.
func (m *MarkdownChunker) Supports(fileExtension string) bool {
	switch strings.ToLower(fileExtension) {
	case ".md", ".markdown", ".html", ".htm":
		return true
	default:
		return false
	}
}

type section struct {
	heading   string
	level     int
	startLine int
	endLine   int
	content   strings.Builder
}

// Chunk walks the markdown AST and emits one chunk per top-level section
// (content preceding the first heading, or below an H1/H2 boundary),
// keeping fenced code blocks intact within their enclosing section even if
// that pushes the section over the nominal size target.
func (m *MarkdownChunker) Chunk(content, filePath string) ([]Chunk, error) {
	src := []byte(content)
	reader := text.NewReader(src)
	doc := goldmark.DefaultParser().Parse(reader)

	lines := strings.Split(content, "\n")
	var sections []*section
	current := &section{startLine: 1}

	flush := func(endLine int) {
		if endLine < current.startLine {
			return
		}
		current.endLine = endLine
		sections = append(sections, current)
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if heading.Level > 2 {
			// Sub-headings stay within their parent section.
			return ast.WalkSkipChildren, nil
		}
		startLine := lineOf(src, n)
		flush(startLine - 1)
		current = &section{heading: headingText(n, src), level: heading.Level, startLine: startLine}
		return ast.WalkSkipChildren, nil
	})
	if current.level > 0 {
		flush(len(lines))
	}

	// Re-derive section content from source line ranges now that
	// boundaries are known (goldmark gives us structure, not verbatim
	// byte ranges per section in this simplified single-pass walk).
	out := make([]Chunk, 0, len(sections))
	for i, sec := range sections {
		start := sec.startLine
		end := sec.endLine
		if end > len(lines) {
			end = len(lines)
		}
		if start < 1 {
			start = 1
		}
		if start > end {
			continue
		}
		body := strings.Join(lines[start-1:end], "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		out = append(out, Chunk{
			ID:        generateChunkID(filePath, "section", sec.heading, start),
			Content:   body,
			FilePath:  filePath,
			Language:  "markdown",
			Type:      ChunkTypeSection,
			StartLine: start,
			EndLine:   end,
			Metadata:  map[string]string{"heading": sec.heading, "section_index": strconv.Itoa(i)},
			Hash:      generateContentHash(body),
			IndexedAt: time.Now(),
		})
	}

	if len(out) == 0 && strings.TrimSpace(content) != "" {
		out = append(out, Chunk{
			ID:        generateChunkID(filePath, "section", "", 1),
			Content:   content,
			FilePath:  filePath,
			Language:  "markdown",
			Type:      ChunkTypeParagraph,
			StartLine: 1,
			EndLine:   len(lines),
			Hash:      generateContentHash(content),
			IndexedAt: time.Now(),
		})
	}

	return out, nil
}

func lineOf(src []byte, n ast.Node) int {
	lines := n.Lines()
	if lines.Len() == 0 {
		return 1
	}
	seg := lines.At(0)
	return strings.Count(string(src[:seg.Start]), "\n") + 1
}

func headingText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if txt, ok := c.(*ast.Text); ok {
			b.Write(txt.Segment.Value(src))
		}
	}
	return strings.TrimSpace(b.String())
}

