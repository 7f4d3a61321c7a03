package extract

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s.\-]`)

// SanitizeFilename strips directory components and characters that are
// unsafe in stored filenames. The result is never empty.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "document"
	}
	return name
}

// FormatFileSize renders a byte count with a binary unit, e.g. "1.5 MB".
func FormatFileSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	size := float64(n)
	for _, suffix := range []string{"KB", "MB", "GB"} {
		size /= unit
		if size < unit {
			return fmt.Sprintf("%.1f %s", size, suffix)
		}
	}
	return fmt.Sprintf("%.1f TB", size/unit)
}
