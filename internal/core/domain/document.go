package domain

import "time"

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusComplete   ProcessingStatus = "complete"
	StatusFailed     ProcessingStatus = "failed"
)

type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeEPUB FileType = "epub"
	FileTypeTXT  FileType = "txt"
)

// Chapter marks a section of a document's extracted text. Offsets are rune
// offsets into the raw text; EndOffset is exclusive.
type Chapter struct {
	Label       string `json:"label"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// Contains reports whether the rune offset falls inside this chapter.
func (c Chapter) Contains(offset int) bool {
	return offset >= c.StartOffset && offset < c.EndOffset
}

type Document struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Author      string           `json:"author,omitempty"`
	Subject     string           `json:"subject,omitempty"`
	FileType    FileType         `json:"file_type"`
	StoragePath string           `json:"storage_path"`
	FileSize    int64            `json:"file_size"`
	Tags        []string         `json:"tags,omitempty"`
	Status      ProcessingStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	ChunkCount  int              `json:"chunk_count"`
	Chapters    []Chapter        `json:"chapters,omitempty"`
	UploadedAt  time.Time        `json:"uploaded_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// UploadMetadata is caller-supplied metadata attached to a document at upload.
type UploadMetadata struct {
	Title   string
	Author  string
	Subject string
	Tags    []string
}

// Extraction is what a text extractor returns for a stored document.
type Extraction struct {
	Text      string
	Chapters  []Chapter
	PageCount int
	Metadata  map[string]string
}

// FileTypeForMIME maps an upload content type to a supported file type.
func FileTypeForMIME(mimeType string) (FileType, bool) {
	switch mimeType {
	case "application/pdf":
		return FileTypePDF, true
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FileTypeDOCX, true
	case "application/epub+zip":
		return FileTypeEPUB, true
	case "text/plain":
		return FileTypeTXT, true
	default:
		return "", false
	}
}
