package format

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// ToUTF8 decodes content from the named charset to UTF-8. An empty name,
// UTF-8 and US-ASCII return content unchanged.
func ToUTF8(content []byte, charset string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return content, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", charset, err)
	}
	return out, nil
}
