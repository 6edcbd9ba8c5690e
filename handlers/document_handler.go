package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"aijudge-backend/models"
	"aijudge-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for form fields and part headers
const multipartOverhead = 1 << 20

// DocumentHandler handles document uploads and downloads
type DocumentHandler struct {
	caseService *service.CaseService
	logger      *zap.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(caseService *service.CaseService, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{
		caseService: caseService,
		logger:      logger,
	}
}

// UploadDocuments handles POST /api/cases/:caseId/documents/:side
func (h *DocumentHandler) UploadDocuments(c *gin.Context) {
	side, err := models.ParseSide(c.Param("side"))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	maxFileSize := h.caseService.MaxFileSize()
	maxFiles := h.caseService.MaxFilesPerUpload()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFileSize*int64(maxFiles)+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "INVALID_REQUEST", "Upload exceeds the maximum request size")
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "No files uploaded")
		return
	}

	headers := form.File["documents"]
	if len(headers) == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "No files uploaded")
		return
	}
	if len(headers) > maxFiles {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("At most %d files may be uploaded at once", maxFiles))
		return
	}

	files := make([]service.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh, maxFileSize)
		if err != nil {
			respondError(c, http.StatusBadRequest, "UPLOAD_FAILED", fmt.Sprintf("Failed to read %s", fh.Filename))
			return
		}
		files = append(files, service.UploadedFile{
			Filename:  fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
			Data:      data,
		})
	}

	var description *string
	if values, ok := form.Value["description"]; ok && len(values) > 0 {
		d := strings.TrimSpace(values[0])
		description = &d
	}

	result, err := h.caseService.AttachDocuments(c.Request.Context(), service.AttachDocumentsRequest{
		CaseID:      c.Param("caseId"),
		Side:        side,
		Description: description,
		Files:       files,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"message":            fmt.Sprintf("Documents uploaded successfully for %s", side.Slug()),
		"caseId":             result.CaseID,
		"side":               result.Side,
		"status":             result.Case.Status,
		"documentsProcessed": result.DocumentsProcessed,
		"documents":          result.Documents,
	})
}

// readPart buffers one part, reading at most one byte past limit so the
// service can reject oversized files without the whole body in memory.
func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

// DownloadDocument handles GET /api/cases/:caseId/documents/:side/:index
func (h *DocumentHandler) DownloadDocument(c *gin.Context) {
	side, err := models.ParseSide(c.Param("side"))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Document index must be an integer")
		return
	}

	reader, doc, err := h.caseService.OpenDocument(c.Request.Context(), c.Param("caseId"), side, index)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	defer reader.Close()

	contentType := doc.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, doc.Size, contentType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.Filename),
	})
}
