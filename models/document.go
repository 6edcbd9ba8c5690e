package models

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Document is one uploaded file with its extracted text. Documents are
// never edited; a new upload replaces the whole set for that side. Only the
// location of the stored original may move (see Case.RelocateDocument).
type Document struct {
	Filename        string `json:"filename"`
	MediaType       string `json:"mimetype"`
	Size            int64  `json:"size"`
	ExtractedText   string `json:"extractedText"`
	StoragePath     string `json:"storagePath"`
	FileURL         string `json:"fileUrl,omitempty"`
	UploadedToCloud bool   `json:"uploadedToCloud"`
	Checksum        string `json:"checksum"`
}

// DocumentLocation is where the original of a document is stored
type DocumentLocation struct {
	StoragePath     string
	FileURL         string
	UploadedToCloud bool
}

// Checksum returns the hex BLAKE2b-256 digest of raw file bytes
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DocumentSummary is the per-file result reported after intake
type DocumentSummary struct {
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	TextLength int    `json:"textLength"`
}
