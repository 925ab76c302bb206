package walker

import (
	"path/filepath"
	"strings"
)

// FileType is a document format ingestion can extract text from.
type FileType string

const (
	FileTypeUnknown  FileType = ""
	FileTypeText     FileType = "text"
	FileTypeMarkdown FileType = "markdown"
	FileTypePDF      FileType = "pdf"
)

var extensionToFileType = map[string]FileType{
	".txt":      FileTypeText,
	".text":     FileTypeText,
	".md":       FileTypeMarkdown,
	".markdown": FileTypeMarkdown,
	".pdf":      FileTypePDF,
}

// DetectFileType returns the document type for filename based on its
// extension, or FileTypeUnknown.
func DetectFileType(filename string) FileType {
	ext := strings.ToLower(filepath.Ext(filename))
	return extensionToFileType[ext]
}
