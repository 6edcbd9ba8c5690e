package extractor

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"unicode/utf16"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces", "  a \t  b  ", "a b"},
		{"newlines become spaces", "line one\nline two \n\n\n\nline three", "line one line two line three"},
		{"blank lines collapse", "para one\n\n\n\n\npara two", "para one para two"},
		{"crlf", "a\r\n\r\n\r\nb\r\nc", "a b c"},
		{"only whitespace", " \n\t\n ", ""},
		{"unicode space", "a\u00a0\u00a0b", "a b"},
		{"already clean", "a b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := Normalize(got); again != got {
				t.Fatalf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestExtractPlainText(t *testing.T) {
	e := New()
	text, err := e.Extract([]byte("\ufeffThe defendant   breached\n\n\n\nthe contract."), "text/plain; charset=utf-8")
	if err != nil {
		t.Fatal(err)
	}
	if text != "The defendant breached the contract." {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractErrors(t *testing.T) {
	e := New()
	if _, err := e.Extract([]byte("GIF89a"), "image/gif"); !errors.Is(err, ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
	if _, err := e.Extract([]byte("   \n\t "), "text/plain"); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := e.Extract([]byte("not a pdf"), MediaTypePDF); !errors.Is(err, ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
	if _, err := e.Extract([]byte("not a zip"), MediaTypeDOCX); !errors.Is(err, ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t,
		`<w:p><w:r><w:t>Lease</w:t></w:r><w:r><w:t xml:space="preserve"> agreement</w:t></w:r></w:p>`+
			`<w:p></w:p>`+
			`<w:p><w:r><w:t>Rent</w:t><w:tab/><w:t>5000</w:t></w:r></w:p>`)

	text, err := New().Extract(data, MediaTypeDOCX)
	if err != nil {
		t.Fatal(err)
	}
	if want := "Lease agreement Rent 5000"; text != want {
		t.Fatalf("text = %q, want %q", text, want)
	}
}

func TestExtractDOCXTooLarge(t *testing.T) {
	data := buildDOCX(t, `<w:p><w:r><w:t>`+strings.Repeat("clause ", 100)+`</w:t></w:r></w:p>`)

	_, err := New(WithMaxTextSize(64)).Extract(data, MediaTypeDOCX)
	if !errors.Is(err, ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
	if _, err := New().Extract(data, MediaTypeDOCX); err != nil {
		t.Fatalf("default limit rejected a small document: %v", err)
	}
}

func TestCapReader(t *testing.T) {
	r := &capReader{r: strings.NewReader(strings.Repeat("x", 400)), limit: 100}
	if _, err := io.ReadAll(r); !errors.Is(err, errTooLarge) {
		t.Fatalf("expected errTooLarge, got %v", err)
	}

	r = &capReader{r: strings.NewReader("short"), limit: 100}
	got, err := io.ReadAll(r)
	if err != nil || string(got) != "short" {
		t.Fatalf("ReadAll = %q, %v", got, err)
	}
}

// buildPDF writes a one-page PDF showing text in Helvetica
func buildPDF(t *testing.T, text string) []byte {
	t.Helper()
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	data := buildPDF(t, "Lease signed on March 1")

	text, err := New().Extract(data, MediaTypePDF)
	if err != nil {
		t.Fatal(err)
	}
	if text != "Lease signed on March 1" {
		t.Fatalf("text = %q", text)
	}

	if _, err := New(WithMaxTextSize(5)).Extract(data, MediaTypePDF); !errors.Is(err, ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument over the limit, got %v", err)
	}
}

func TestExtractDOCXMissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	_ = zw.Close()

	if _, err := New().Extract(buf.Bytes(), MediaTypeDOCX); !errors.Is(err, ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestExtractDOCUTF16(t *testing.T) {
	var data []byte
	data = append(data, 0xD0, 0xCF, 0x11, 0xE0, 0x00, 0x01, 0x02)
	data = append(data, 0x00)
	for _, u := range utf16.Encode([]rune("The tenant failed to pay rent.")) {
		data = append(data, byte(u), byte(u>>8))
	}
	data = append(data, 0x00, 0x00, 0x01, 0x02)

	text, err := New().Extract(data, MediaTypeDOC)
	if err != nil {
		t.Fatal(err)
	}
	if text != "The tenant failed to pay rent." {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractDOC8Bit(t *testing.T) {
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0x00}, []byte("Witness statement of Ms. Rao")...)
	data = append(data, 0x00, 0x01, 'x', 'y', 0x02)

	text, err := New().Extract(data, MediaTypeDOC)
	if err != nil {
		t.Fatal(err)
	}
	if text != "Witness statement of Ms. Rao" {
		t.Fatalf("text = %q", text)
	}
}

func TestDetectMediaType(t *testing.T) {
	if got := DetectMediaType("a.bin", "application/pdf", nil); got != MediaTypePDF {
		t.Fatalf("declared type ignored: %s", got)
	}
	if got := DetectMediaType("brief.pdf", "", []byte("%PDF-1.4\n%...")); got != MediaTypePDF {
		t.Fatalf("sniffed pdf = %s", got)
	}
	if got := DetectMediaType("notes.txt", "application/octet-stream", []byte("plain words")); got != MediaTypeText {
		t.Fatalf("sniffed text = %s", got)
	}
	if !Supported("text/markdown") || Supported("image/png") {
		t.Fatal("Supported mismatch")
	}
}
