package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMaxBytes is the admission size limit.
const DefaultMaxBytes = 10 << 20

// DefaultExtensions lists the file extensions accepted for upload.
var DefaultExtensions = []string{".pdf", ".jpg", ".jpeg", ".png"}

// Guard admits or rejects a file before any network round trip. It
// looks only at the name and declared size, never at content. Zero
// values fall back to the defaults.
type Guard struct {
	MaxBytes   int64
	Extensions []string
}

// Check returns ErrUnsupportedFileType or ErrFileTooLarge when the file
// must not be uploaded, nil when it may.
func (g Guard) Check(fileName string, size int64) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	allowed := false
	for _, a := range g.extensions() {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %q (accepted: %s)",
			ErrUnsupportedFileType, fileName, strings.Join(g.extensions(), ", "))
	}
	if max := g.maxBytes(); size > max {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, max)
	}
	return nil
}

func (g Guard) maxBytes() int64 {
	if g.MaxBytes > 0 {
		return g.MaxBytes
	}
	return DefaultMaxBytes
}

func (g Guard) extensions() []string {
	if len(g.Extensions) > 0 {
		return g.Extensions
	}
	return DefaultExtensions
}
