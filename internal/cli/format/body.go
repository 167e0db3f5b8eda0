// Package format renders response bodies and headers for the terminal.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
)

const (
	// Bodies above these sizes are printed as received.
	maxHighlightSize = 2 * 1024 * 1024
	maxMarkdownSize  = 5 * 1024 * 1024

	// binarySniffLen is how much of a body IsBinary inspects.
	binarySniffLen = 1024
)

// IsBinary reports whether p looks like binary data: a NUL byte or invalid
// UTF-8 within the first KiB.
func IsBinary(p []byte) bool {
	if len(p) > binarySniffLen {
		p = p[:binarySniffLen]
		// Do not count a rune cut in half by the sniff window.
		for i := 0; i < utf8.UTFMax-1 && len(p) > 0 && !utf8.Valid(p); i++ {
			p = p[:len(p)-1]
		}
	}
	if bytes.IndexByte(p, 0) >= 0 {
		return true
	}
	return !utf8.Valid(p)
}

// IsJSON reports whether mediaType is application/json or a +json suffix type.
func IsJSON(mediaType string) bool {
	mediaType = strings.ToLower(mediaType)
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// JSON pretty-prints content with 2-space indentation.
func JSON(content []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(content), "", "  "); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Body formats a response body of the given media type. Without color it is
// returned unchanged. With color, JSON is indented and highlighted, markdown
// is rendered and other text types are highlighted when a lexer matches.
// Formatting failures fall back to the original bytes.
func Body(content []byte, mediaType string, color bool) []byte {
	if !color || len(content) == 0 || IsBinary(content) {
		return content
	}

	mediaType = strings.ToLower(mediaType)
	switch {
	case IsJSON(mediaType):
		pretty, err := JSON(content)
		if err != nil {
			return content
		}
		return Highlight(pretty, lexers.Get("json"))
	case mediaType == "text/markdown" || mediaType == "text/x-markdown":
		return Markdown(content)
	default:
		return Highlight(content, lexers.MatchMimeType(mediaType))
	}
}

// Highlight colors content with lexer using 256-color terminal escapes.
// A nil lexer or oversized content is returned unchanged.
func Highlight(content []byte, lexer chroma.Lexer) []byte {
	if lexer == nil || len(content) > maxHighlightSize {
		return content
	}

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, string(content))
	if err != nil {
		return content
	}

	var buf bytes.Buffer
	if err := formatters.Get("terminal256").Format(&buf, styles.Get("monokai"), iterator); err != nil {
		return content
	}
	return buf.Bytes()
}

// Markdown renders markdown for the terminal.
func Markdown(content []byte) []byte {
	if len(content) > maxMarkdownSize {
		return content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content
	}

	rendered, err := renderer.RenderBytes(content)
	if err != nil {
		return content
	}
	return rendered
}
