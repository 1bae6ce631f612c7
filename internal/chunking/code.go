package chunking

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// CodeChunker implements semantic code chunking for source files.
type CodeChunker struct {
	maxChunkSize int // target characters per chunk
	overlapSize  int // overlap between sliding-window chunks
}

// NewCodeChunker creates a code chunker with configurable sizing. Values
// <= 0 fall back to the teacher's historical defaults.
func NewCodeChunker(maxChunkSize, overlapSize int) *CodeChunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 2000
	}
	if overlapSize <= 0 {
		overlapSize = 200
	}
	return &CodeChunker{maxChunkSize: maxChunkSize, overlapSize: overlapSize}
}

var supportedCodeExt = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".cpp": true, ".cc": true, ".cxx": true, ".c++": true, ".c": true,
	".rs": true, ".rb": true, ".php": true, ".cs": true, ".scala": true, ".kt": true, ".swift": true,
}

// Supports reports whether this chunker handles the given extension.
func (c *CodeChunker) Supports(fileExtension string) bool {
	return supportedCodeExt[strings.ToLower(fileExtension)]
}

// Chunk splits code content into semantic chunks, dispatching on mode and
// language, then enforces the size invariant every mode must satisfy:
// no chunk exceeds 2x maxChunkSize. Chunks below that cap are left as the
// language chunker produced them; small chunks are not merged.
func (c *CodeChunker) Chunk(ctx context.Context, content, filePath string, mode Mode) ([]Chunk, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var chunks []Chunk
	var err error
	switch {
	case mode == ModeCharacter:
		chunks, err = c.chunkGeneric(content, filePath)
	case ext == ".go" && mode != ModeCharacter:
		chunks, err = c.chunkGo(content, filePath)
	case mode == ModeAST:
		// AST mode requested but no Go parser available for this language;
		// degrade to semantic (brace-counting) rather than silently losing
		// structure.
		chunks, err = c.chunkSemantic(ext, content, filePath)
	default:
		chunks, err = c.chunkSemantic(ext, content, filePath)
	}
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		chunks, err = c.chunkGeneric(content, filePath)
		if err != nil {
			return nil, err
		}
	}

	return c.enforceSizeInvariant(chunks), nil
}

// enforceSizeInvariant splits any chunk exceeding 2x maxChunkSize using the
// sliding-window strategy, so no downstream embedder ever sees an
// oversized unit regardless of which language chunker produced it.
func (c *CodeChunker) enforceSizeInvariant(chunks []Chunk) []Chunk {
	hardCap := 2 * c.maxChunkSize
	out := make([]Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Content) <= hardCap {
			out = append(out, chunk)
			continue
		}
		split, err := c.chunkGeneric(chunk.Content, chunk.FilePath)
		if err != nil || len(split) == 0 {
			out = append(out, chunk)
			continue
		}
		for i := range split {
			split[i].Type = chunk.Type
			split[i].StartLine += chunk.StartLine - 1
			split[i].EndLine += chunk.StartLine - 1
		}
		out = append(out, split...)
	}
	return out
}

func (c *CodeChunker) chunkGo(content, filePath string) ([]Chunk, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, content, parser.ParseComments)
	if err != nil {
		return nil, nil // caller falls back to generic
	}

	var chunks []Chunk
	lines := strings.Split(content, "\n")

	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			startPos := fset.Position(fn.Pos())
			endPos := fset.Position(fn.End())
			fnContent := strings.Join(lines[startPos.Line-1:endPos.Line], "\n")

			chunks = append(chunks, Chunk{
				ID:       generateChunkID(filePath, "function", fn.Name.Name, startPos.Line),
				Content:  fnContent,
				FilePath: filePath,
				Language: "go",
				Type:     ChunkTypeFunction,
				StartLine: startPos.Line,
				EndLine:   endPos.Line - 1,
				Metadata: map[string]string{
					"function_name": fn.Name.Name,
					"receiver":      receiverName(fn),
				},
				Hash:      generateContentHash(fnContent),
				IndexedAt: time.Now(),
			})
		}
	}

	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			if _, ok := typeSpec.Type.(*ast.StructType); !ok {
				continue
			}
			startPos := fset.Position(typeSpec.Pos())
			endPos := fset.Position(typeSpec.End())
			structContent := strings.Join(lines[startPos.Line-1:endPos.Line-1], "\n")

			chunks = append(chunks, Chunk{
				ID:        generateChunkID(filePath, "struct", typeSpec.Name.Name, startPos.Line),
				Content:   structContent,
				FilePath:  filePath,
				Language:  "go",
				Type:      ChunkTypeStruct,
				StartLine: startPos.Line,
				EndLine:   endPos.Line - 1,
				Metadata:  map[string]string{"struct_name": typeSpec.Name.Name},
				Hash:      generateContentHash(structContent),
				IndexedAt: time.Now(),
			})
		}
	}

	return chunks, nil
}

func receiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	recv := fn.Recv.List[0]
	switch t := recv.Type.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
	}
	return ""
}

type braceScanRule struct {
	fnRegex     *regexp.Regexp
	classRegex  *regexp.Regexp
	structRegex *regexp.Regexp
	implRegex   *regexp.Regexp
	language    string
}

var scanRules = map[string]braceScanRule{
	".py": {
		fnRegex:    regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`),
		classRegex: regexp.MustCompile(`^\s*class\s+(\w+)`),
		language:   "python",
	},
	".js": {
		fnRegex:    regexp.MustCompile(`^\s*(?:function\s+(\w+)|(?:const|let|var)\s+(\w+)\s*=\s*(?:\([^)]*\)\s*=>|function))`),
		classRegex: regexp.MustCompile(`^\s*class\s+(\w+)`),
	},
	".java": {
		fnRegex:    regexp.MustCompile(`^\s*(?:public|private|protected)?\s*(?:static)?\s*(?:\w+\s+)+\s*(\w+)\s*\(`),
		classRegex: regexp.MustCompile(`^\s*(?:public|private|protected)?\s*class\s+(\w+)`),
		language:   "java",
	},
	".c": {
		fnRegex:  regexp.MustCompile(`^\s*(?:\w+\s+)+\s*\**\s*(\w+)\s*\(`),
		language: "c",
	},
	".rs": {
		fnRegex:     regexp.MustCompile(`^\s*fn\s+(\w+)\s*\(`),
		structRegex: regexp.MustCompile(`^\s*struct\s+(\w+)`),
		implRegex:   regexp.MustCompile(`^\s*impl\s+(?:\w+::)?(\w+)`),
		language:    "rust",
	},
}

func scanRuleFor(ext string) (braceScanRule, bool) {
	switch ext {
	case ".js", ".jsx", ".ts", ".tsx":
		r := scanRules[".js"]
		return r, true
	case ".cpp", ".cc", ".cxx", ".c++", ".c":
		r := scanRules[".c"]
		return r, true
	default:
		r, ok := scanRules[ext]
		return r, ok
	}
}

// chunkSemantic runs a brace-counting scan for languages without a native
// Go AST, grounded on the same state machine across Python/JS/Java/C/Rust
// the teacher used, collapsed into one parameterized scanner.
func (c *CodeChunker) chunkSemantic(ext, content, filePath string) ([]Chunk, error) {
	rule, ok := scanRuleFor(ext)
	if !ok {
		return nil, nil
	}
	language := rule.language
	if language == "" {
		language = detectLanguage(filePath)
	}

	lines := strings.Split(content, "\n")
	var chunks []Chunk

	current := strings.Builder{}
	currentType := ChunkTypeUnknown
	currentStart := 1
	currentName := ""
	braceCount := 0

	flush := func(endLine int) {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, c.newChunk(current.String(), filePath, language, currentType, currentStart, endLine, currentName))
		current.Reset()
		currentType = ChunkTypeUnknown
		currentName = ""
	}

	for i, line := range lines {
		lineNum := i + 1
		braceCount += strings.Count(line, "{") - strings.Count(line, "}")

		switch {
		case rule.fnRegex != nil && rule.fnRegex.MatchString(line) && !strings.Contains(line, ";"):
			if braceCount <= 0 {
				flush(lineNum - 1)
			}
			m := rule.fnRegex.FindStringSubmatch(line)
			current.WriteString(line + "\n")
			currentType = ChunkTypeFunction
			currentStart = lineNum
			currentName = lastNonEmpty(m)
		case rule.classRegex != nil && rule.classRegex.MatchString(line):
			flush(lineNum - 1)
			m := rule.classRegex.FindStringSubmatch(line)
			current.WriteString(line + "\n")
			currentType = ChunkTypeClass
			currentStart = lineNum
			currentName = lastNonEmpty(m)
		case rule.structRegex != nil && rule.structRegex.MatchString(line):
			flush(lineNum - 1)
			m := rule.structRegex.FindStringSubmatch(line)
			current.WriteString(line + "\n")
			currentType = ChunkTypeStruct
			currentStart = lineNum
			currentName = lastNonEmpty(m)
		case rule.implRegex != nil && rule.implRegex.MatchString(line):
			flush(lineNum - 1)
			m := rule.implRegex.FindStringSubmatch(line)
			current.WriteString(line + "\n")
			currentType = ChunkTypeInterface
			currentStart = lineNum
			currentName = lastNonEmpty(m)
		case current.Len() > 0:
			current.WriteString(line + "\n")
			if braceCount <= 0 && strings.TrimSpace(line) != "" {
				flush(lineNum)
			}
		}
	}
	flush(len(lines))

	return chunks, nil
}

func lastNonEmpty(matches []string) string {
	for i := len(matches) - 1; i > 0; i-- {
		if matches[i] != "" {
			return matches[i]
		}
	}
	return ""
}

// chunkGeneric is the rune-based sliding-window fallback for content with
// no recognized structure.
func (c *CodeChunker) chunkGeneric(content, filePath string) ([]Chunk, error) {
	language := detectLanguage(filePath)
	if len(content) <= c.maxChunkSize {
		return []Chunk{c.newChunk(content, filePath, language, ChunkTypeUnknown, 1, countLines(content), "")}, nil
	}

	var chunks []Chunk
	runes := []rune(content)
	total := len(runes)

	for start := 0; start < total; start += c.maxChunkSize - c.overlapSize {
		end := start + c.maxChunkSize
		if end > total {
			end = total
		}
		if end < total {
			for end > start && !unicode.IsSpace(runes[end-1]) {
				end--
			}
		}

		piece := string(runes[start:end])
		if strings.TrimSpace(piece) == "" {
			continue
		}

		startLine := 1
		endLine := countLines(piece)
		if start > 0 {
			startLine = countLines(string(runes[:start])) + 1
			endLine = startLine + countLines(piece) - 1
		}

		chunks = append(chunks, c.newChunk(piece, filePath, language, ChunkTypeUnknown, startLine, endLine, ""))
		if end >= total {
			break
		}
	}
	return chunks, nil
}

func (c *CodeChunker) newChunk(content, filePath, language string, chunkType ChunkType, startLine, endLine int, name string) Chunk {
	metadata := make(map[string]string)
	if name != "" {
		switch chunkType {
		case ChunkTypeFunction:
			metadata["function_name"] = name
		case ChunkTypeClass, ChunkTypeStruct:
			metadata["type_name"] = name
		case ChunkTypeInterface:
			metadata["interface_name"] = name
		}
	}
	return Chunk{
		ID:        generateChunkID(filePath, string(chunkType), name, startLine),
		Content:   content,
		FilePath:  filePath,
		Language:  language,
		Type:      chunkType,
		StartLine: startLine,
		EndLine:   endLine,
		Metadata:  metadata,
		Hash:      generateContentHash(content),
		IndexedAt: time.Now(),
	}
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func detectLanguage(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".java":
		return "java"
	case ".cpp", ".cc", ".cxx", ".c++":
		return "cpp"
	case ".c":
		return "c"
	case ".rs":
		return "rust"
	case ".rb":
		return "ruby"
	case ".php":
		return "php"
	case ".cs":
		return "csharp"
	case ".md", ".markdown":
		return "markdown"
	case ".html", ".htm":
		return "html"
	default:
		return "text"
	}
}
