package format

import (
	"bytes"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header block styles
var (
	// StatusOK styles 2xx and 3xx status lines
	StatusOK = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")) // green

	// StatusError styles 4xx and 5xx status lines
	StatusError = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")) // red

	// HeaderName styles header field names
	HeaderName = lipgloss.NewStyle().Foreground(lipgloss.Color("39")) // blue

	// Muted styles interim status lines
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
)

// Headers renders a raw header region for display. Line endings are
// normalized to "\n". With color, status lines and field names are styled.
func Headers(raw []byte, color bool) []byte {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if !color {
		return []byte(text)
	}

	var out bytes.Buffer
	lines := strings.SplitAfter(text, "\n")
	for _, line := range lines {
		content := strings.TrimSuffix(line, "\n")
		eol := line[len(content):]

		switch {
		case strings.HasPrefix(content, "HTTP/"):
			out.WriteString(statusStyle(content).Render(content))
		case strings.Contains(content, ":"):
			name, value, _ := strings.Cut(content, ":")
			out.WriteString(HeaderName.Render(name))
			out.WriteString(":" + value)
		default:
			out.WriteString(content)
		}
		out.WriteString(eol)
	}
	return out.Bytes()
}

// statusStyle picks a style from the status code in line.
func statusStyle(line string) lipgloss.Style {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields[1]) != 3 {
		return Muted
	}
	switch fields[1][0] {
	case '2', '3':
		return StatusOK
	case '4', '5':
		return StatusError
	default:
		return Muted
	}
}
