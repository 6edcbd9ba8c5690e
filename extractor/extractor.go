// Package extractor converts uploaded documents into normalized plain text.
package extractor

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// DefaultMaxTextSize caps the decompressed document body and the text
// recovered from a single file.
const DefaultMaxTextSize = 32 << 20

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOC  = "application/msword"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeText = "text/plain"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported file type")
	ErrEmptyContent         = errors.New("no text content could be extracted")
	ErrUnreadableDocument   = errors.New("document could not be read")
)

// Extractor turns raw file bytes into normalized text
type Extractor struct {
	logger      *zap.Logger
	maxTextSize int64
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithMaxTextSize overrides DefaultMaxTextSize. Documents that expand past
// the limit are rejected with ErrUnreadableDocument.
func WithMaxTextSize(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTextSize = n
		}
	}
}

// New creates an Extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop(), maxTextSize: DefaultMaxTextSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supported reports whether mediaType can be extracted
func Supported(mediaType string) bool {
	switch baseType(mediaType) {
	case MediaTypePDF, MediaTypeDOC, MediaTypeDOCX:
		return true
	}
	return strings.HasPrefix(baseType(mediaType), "text/")
}

// Extract returns the normalized text of data. It fails with
// ErrUnsupportedMediaType for unknown types, ErrUnreadableDocument for
// corrupt or oversized containers and ErrEmptyContent when nothing but
// whitespace could be recovered.
func (e *Extractor) Extract(data []byte, mediaType string) (string, error) {
	var (
		raw string
		err error
	)
	mt := baseType(mediaType)
	switch {
	case mt == MediaTypePDF:
		raw, err = extractPDF(data, e.maxTextSize)
	case mt == MediaTypeDOCX:
		raw, err = extractDOCX(data, e.maxTextSize)
	case mt == MediaTypeDOC:
		raw, err = extractDOC(data)
	case strings.HasPrefix(mt, "text/"):
		raw = decodeText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}
	if err != nil {
		e.logger.Warn("Text extraction failed", zap.String("media_type", mt), zap.Error(err))
		return "", err
	}

	text := Normalize(raw)
	if text == "" {
		return "", ErrEmptyContent
	}
	e.logger.Debug("Extracted document text",
		zap.String("media_type", mt),
		zap.Int("bytes", len(data)),
		zap.Int("chars", utf8.RuneCountInString(text)))
	return text, nil
}

// Normalize collapses every run of whitespace, line breaks included, to a
// single space and trims the result. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DetectMediaType resolves the media type of an upload. A declared type is
// trusted unless it is empty or generic, in which case the content is
// sniffed and then the file extension consulted.
func DetectMediaType(filename, declared string, data []byte) string {
	declared = baseType(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	sniffed := mimetype.Detect(data)
	for _, candidate := range []string{MediaTypePDF, MediaTypeDOCX, MediaTypeDOC, MediaTypeText} {
		if sniffed.Is(candidate) {
			return candidate
		}
	}
	if byExt := mediaTypeFromExtension(filename); byExt != "" {
		return byExt
	}
	return baseType(sniffed.String())
}

func mediaTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MediaTypePDF
	case ".txt", ".text":
		return MediaTypeText
	case ".doc":
		return MediaTypeDOC
	case ".docx":
		return MediaTypeDOCX
	}
	return ""
}

// baseType strips parameters such as charset from a media type
func baseType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// errTooLarge is wrapped in ErrUnreadableDocument by the format readers
var errTooLarge = errors.New("expanded content exceeds size limit")

// capReader fails once more than limit bytes have been read
type capReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.limit {
		return n, errTooLarge
	}
	return n, err
}

func decodeText(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}
