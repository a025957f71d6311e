package objectclient

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/markdave123-py/flowdesk/internal/models"
)

// DocumentKey builds the storage key of an uploaded document:
// <workflowID>/<userID>/<unix millis>_<file name>.
func DocumentKey(workflowID, userID, fileName string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s", workflowID, userID, now.UnixMilli(), SafeFileName(fileName))
}

// SafeFileName drops any directory part and replaces characters that are
// awkward in object keys.
func SafeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// ContentType returns the MIME type stored with an object of the given kind.
func ContentType(kind models.FileKind) string {
	switch kind {
	case models.FileKindPDF:
		return "application/pdf"
	case models.FileKindDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case models.FileKindMD:
		return "text/markdown"
	case models.FileKindTXT:
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
