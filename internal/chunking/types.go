// Package chunking splits source and document content into retrieval-sized
// units, matching the semantics (AST-aware code spans, heading-bounded
// markdown sections, sliding-window fallback) of the teacher's own chunker
// generalized to a configurable mode and a markdown/HTML path the teacher
// never had.
package chunking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ChunkType categorizes the semantic type of a chunk.
type ChunkType string

const (
	ChunkTypeFunction  ChunkType = "function"
	ChunkTypeClass     ChunkType = "class"
	ChunkTypeStruct    ChunkType = "struct"
	ChunkTypeInterface ChunkType = "interface"
	ChunkTypeComment   ChunkType = "comment"
	ChunkTypeParagraph ChunkType = "paragraph"
	ChunkTypeSection   ChunkType = "section"
	ChunkTypeCodeBlock ChunkType = "code_block"
	ChunkTypeUnknown   ChunkType = "unknown"
)

// Mode selects the chunking strategy a caller wants for a file, per the
// ast | character | semantic contract.
type Mode string

const (
	ModeAST       Mode = "ast"
	ModeCharacter Mode = "character"
	ModeSemantic  Mode = "semantic"
)

// Chunk is a unit of indexed content with source provenance.
type Chunk struct {
	ID        string
	Content   string
	FilePath  string
	Language  string
	Type      ChunkType
	StartLine int
	EndLine   int
	Metadata  map[string]string
	Hash      string
	IndexedAt time.Time

	// Provenance carried over from the teacher's richer chunk type
	// (spec.md's distillation dropped these; SPEC_FULL.md restores them as
	// free-form metadata rather than first-class columns).
	StoryIDs     []string
	TicketIDs    []string
	PRNumbers    []string
	DiscussionID string
	BranchName   string
}

func generateChunkID(filePath, chunkType, name string, line int) string {
	return fmt.Sprintf("%s:%s:%s:%d", filePath, chunkType, name, line)
}

func generateContentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
