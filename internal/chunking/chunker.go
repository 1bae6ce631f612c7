package chunking

import (
	"context"
	"path/filepath"
	"strings"
)

// Chunker dispatches content to the code or markdown chunker based on file
// extension, presenting spec.md §4.B's single entry point.
type Chunker struct {
	code     *CodeChunker
	markdown *MarkdownChunker
}

// Config configures chunk sizing shared across strategies.
type Config struct {
	MaxChunkSize int
	OverlapSize  int
}

// New constructs a Chunker from Config.
func New(cfg Config) *Chunker {
	return &Chunker{
		code:     NewCodeChunker(cfg.MaxChunkSize, cfg.OverlapSize),
		markdown: NewMarkdownChunker(cfg.MaxChunkSize),
	}
}

// Supports reports whether any underlying chunker handles the extension.
func (c *Chunker) Supports(fileExtension string) bool {
	return c.code.Supports(fileExtension) || c.markdown.Supports(fileExtension)
}

// Chunk splits content according to its file type. mode only affects code
// files; markdown/HTML always use heading-bounded chunking.
func (c *Chunker) Chunk(ctx context.Context, content, filePath string, mode Mode) ([]Chunk, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if c.markdown.Supports(ext) {
		return c.markdown.Chunk(content, filePath)
	}
	return c.code.Chunk(ctx, content, filePath, mode)
}
