package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Document is a supporting file reference owned by a claim. The bytes live
// in a Store under StoredName.
type Document struct {
	ID           string
	ClaimID      string
	OriginalName string
	StoredName   string
	Size         int64
	ContentType  string
	Description  string
	UploadedBy   string
	UploadedAt   time.Time
}

// SizeFormatted renders the size with up to two decimals, e.g. "1.5 KB".
func (d Document) SizeFormatted() string {
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(d.Size)
	order := 0
	for size >= 1024 && order < len(units)-1 {
		order++
		size /= 1024
	}
	return fmt.Sprintf("%s %s", strconv.FormatFloat(roundTo2(size), 'f', -1, 64), units[order])
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// Icon is the font-awesome class for the content type.
func (d Document) Icon() string {
	ct := strings.ToLower(d.ContentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return "fas fa-file-pdf text-danger"
	case strings.Contains(ct, "word"):
		return "fas fa-file-word text-primary"
	case strings.Contains(ct, "excel"), strings.Contains(ct, "spreadsheet"):
		return "fas fa-file-excel text-success"
	case strings.Contains(ct, "image"):
		return "fas fa-file-image text-info"
	default:
		return "fas fa-file text-secondary"
	}
}

// IsImage reports whether the document can be previewed inline.
func (d Document) IsImage() bool {
	return strings.HasPrefix(d.ContentType, "image/")
}
