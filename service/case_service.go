package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"aijudge-backend/cache"
	"aijudge-backend/extractor"
	"aijudge-backend/models"
	"aijudge-backend/notify"
	"aijudge-backend/repository"
	"aijudge-backend/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxFileSize       = 10 * 1024 * 1024
	DefaultMaxFilesPerUpload = 10

	statsCacheKey     = "stats:all"
	extractionWorkers = 4
)

// ErrOriginalUnavailable means a document has no stored original to serve
var ErrOriginalUnavailable = errors.New("original file is not available")

// Adjudicator is the reasoning side of the workflow
type Adjudicator interface {
	RenderVerdict(ctx context.Context, c *models.Case) (*VerdictResult, error)
	RespondToArgument(ctx context.Context, c *models.Case, side models.Side, argument string) (*ArgumentResponseResult, error)
	SummarizeCase(ctx context.Context, c *models.Case) (string, error)
}

// TextExtractor turns an uploaded file into normalized text
type TextExtractor interface {
	Extract(data []byte, mediaType string) (string, error)
}

// CaseService applies the case lifecycle rules on top of the repository,
// the adjudicator and the notification bus.
type CaseService struct {
	caseRepo    repository.CaseRepository
	adjudicator Adjudicator
	extractor   TextExtractor
	storage     storage.Storage
	publisher   notify.Publisher
	statsCache  cache.Cache
	logger      *zap.Logger
	now         func() time.Time

	statsTTL        time.Duration
	// statsGen moves on every invalidation so a snapshot computed across
	// a mutation is not cached
	statsGen        atomic.Uint64
	maxFileSize     int64
	maxFiles        int
	autoCreateCases bool
}

// CaseServiceOption is a functional option for CaseService
type CaseServiceOption func(*CaseService)

// WithCaseRepository sets the case repository
func WithCaseRepository(repo repository.CaseRepository) CaseServiceOption {
	return func(s *CaseService) {
		s.caseRepo = repo
	}
}

// WithAdjudicator sets the adjudicator
func WithAdjudicator(a Adjudicator) CaseServiceOption {
	return func(s *CaseService) {
		s.adjudicator = a
	}
}

// WithExtractor sets the document text extractor
func WithExtractor(e TextExtractor) CaseServiceOption {
	return func(s *CaseService) {
		s.extractor = e
	}
}

// WithStorage sets the object storage for uploaded originals
func WithStorage(st storage.Storage) CaseServiceOption {
	return func(s *CaseService) {
		s.storage = st
	}
}

// WithPublisher sets the event publisher
func WithPublisher(p notify.Publisher) CaseServiceOption {
	return func(s *CaseService) {
		s.publisher = p
	}
}

// WithStatsCache caches statistics for ttl
func WithStatsCache(c cache.Cache, ttl time.Duration) CaseServiceOption {
	return func(s *CaseService) {
		s.statsCache = c
		s.statsTTL = ttl
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) CaseServiceOption {
	return func(s *CaseService) {
		s.logger = logger
	}
}

// WithUploadLimits sets the per-file size and per-request file count limits
func WithUploadLimits(maxFileSize int64, maxFiles int) CaseServiceOption {
	return func(s *CaseService) {
		if maxFileSize > 0 {
			s.maxFileSize = maxFileSize
		}
		if maxFiles > 0 {
			s.maxFiles = maxFiles
		}
	}
}

// WithAutoCreateCases controls whether uploads to an unknown case id create it
func WithAutoCreateCases(enabled bool) CaseServiceOption {
	return func(s *CaseService) {
		s.autoCreateCases = enabled
	}
}

// NewCaseService creates a new case service
func NewCaseService(opts ...CaseServiceOption) *CaseService {
	s := &CaseService{
		logger:          zap.NewNop(),
		now:             func() time.Time { return time.Now().UTC() },
		maxFileSize:     DefaultMaxFileSize,
		maxFiles:        DefaultMaxFilesPerUpload,
		autoCreateCases: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxFileSize is the largest accepted upload in bytes
func (s *CaseService) MaxFileSize() int64 { return s.maxFileSize }

// MaxFilesPerUpload is the most files accepted in one upload
func (s *CaseService) MaxFilesPerUpload() int { return s.maxFiles }

// CreateCaseRequest represents a request to open a case
type CreateCaseRequest struct {
	Title       string
	Description string
	Country     string
	CaseType    models.CaseType
}

// CreateCase opens a new case with no documents, verdict or arguments
func (s *CaseService) CreateCase(ctx context.Context, req CreateCaseRequest) (*models.Case, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	country := strings.TrimSpace(req.Country)
	if title == "" || description == "" || country == "" {
		return nil, models.Validationf("title, description, and country are required")
	}
	if req.CaseType != "" && !req.CaseType.Valid() {
		return nil, models.Validationf("unknown case type %q", req.CaseType)
	}

	c := models.NewCase(models.NewCaseID(), title, description, country, req.CaseType, s.now())
	if err := s.caseRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logger.Info("Case created", zap.String("case_id", c.CaseID), zap.String("case_type", string(c.CaseType)))
	return c, nil
}

// UploadedFile is one fully buffered file from an upload request
type UploadedFile struct {
	Filename  string
	MediaType string
	Data      []byte
}

// AttachDocumentsRequest represents one side's document submission
type AttachDocumentsRequest struct {
	CaseID      string
	Side        models.Side
	Description *string
	Files       []UploadedFile
}

// AttachDocumentsResult reports what was stored for the side
type AttachDocumentsResult struct {
	CaseID             string                   `json:"caseId"`
	Side               models.Side              `json:"side"`
	DocumentsProcessed int                      `json:"documentsProcessed"`
	Documents          []models.DocumentSummary `json:"documents"`
	Case               *models.Case             `json:"-"`
}

// FileError is the failure of one file in an upload batch
type FileError struct {
	Filename string
	Err      error
}

// BatchError lists every file that failed in an upload. Nothing from the
// batch is committed when it is returned.
type BatchError struct {
	Total    int
	Failures []FileError
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Filename, f.Err))
	}
	return fmt.Sprintf("%d of %d files could not be processed: %s", len(e.Failures), e.Total, strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// AttachDocuments extracts text from every file, stores the originals and
// replaces the side's submission. Any failed file aborts the whole batch.
func (s *CaseService) AttachDocuments(ctx context.Context, req AttachDocumentsRequest) (*AttachDocumentsResult, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}
	if s.extractor == nil {
		return nil, errors.New("extractor not set")
	}

	caseID := strings.TrimSpace(req.CaseID)
	if caseID == "" {
		return nil, models.Validationf("caseId is required")
	}
	if !req.Side.Valid() {
		return nil, models.Validationf("side must be either A or B")
	}
	if len(req.Files) == 0 {
		return nil, models.Validationf("no files uploaded")
	}
	if len(req.Files) > s.maxFiles {
		return nil, models.Validationf("at most %d files may be uploaded at once", s.maxFiles)
	}
	if !s.autoCreateCases {
		if _, err := s.caseRepo.Get(ctx, caseID); err != nil {
			return nil, err
		}
	}

	docs, err := s.extractAll(ctx, req.Files)
	if err != nil {
		return nil, err
	}

	stored := s.storeOriginals(ctx, caseID, req.Side, req.Files, docs)

	updated, err := s.caseRepo.AttachSideDocuments(ctx, caseID, req.Side, req.Description, docs, s.autoCreateCases)
	if err != nil {
		s.deleteOriginals(stored)
		return nil, err
	}

	summaries := make([]models.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, models.DocumentSummary{
			Filename:   doc.Filename,
			Size:       doc.Size,
			TextLength: utf8.RuneCountInString(doc.ExtractedText),
		})
	}

	s.invalidateStats(ctx)
	s.logger.Info("Documents attached",
		zap.String("case_id", caseID),
		zap.String("side", string(req.Side)),
		zap.Int("documents", len(docs)),
		zap.String("status", string(updated.Status)))

	return &AttachDocumentsResult{
		CaseID:             updated.CaseID,
		Side:               req.Side,
		DocumentsProcessed: len(docs),
		Documents:          summaries,
		Case:               updated,
	}, nil
}

// extractAll extracts every file concurrently and reports all failures together
func (s *CaseService) extractAll(ctx context.Context, files []UploadedFile) ([]models.Document, error) {
	docs := make([]models.Document, len(files))
	failures := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractionWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if int64(len(f.Data)) > s.maxFileSize {
				failures[i] = models.Validationf("file exceeds the maximum size of %d bytes", s.maxFileSize)
				return nil
			}
			mediaType := extractor.DetectMediaType(f.Filename, f.MediaType, f.Data)
			text, err := s.extractor.Extract(f.Data, mediaType)
			if err != nil {
				failures[i] = err
				return nil
			}
			docs[i] = models.Document{
				Filename:      f.Filename,
				MediaType:     mediaType,
				Size:          int64(len(f.Data)),
				ExtractedText: text,
				Checksum:      models.Checksum(f.Data),
			}
			return nil
		})
	}
	// per-file failures are collected, so Wait only reports cancellation
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batchErr := &BatchError{Total: len(files)}
	for i, err := range failures {
		if err != nil {
			batchErr.Failures = append(batchErr.Failures, FileError{Filename: files[i].Filename, Err: err})
		}
	}
	if len(batchErr.Failures) > 0 {
		s.logger.Warn("Upload batch rejected", zap.Int("failed", len(batchErr.Failures)), zap.Int("total", len(files)))
		return nil, batchErr
	}
	return docs, nil
}

// storeOriginals uploads each original. Storage failures leave the
// document without a stored copy instead of failing the intake.
func (s *CaseService) storeOriginals(ctx context.Context, caseID string, side models.Side, files []UploadedFile, docs []models.Document) []string {
	if s.storage == nil {
		return nil
	}
	var stored []string
	for i := range docs {
		path := storage.ObjectPath(caseID, side.Slug(), uuid.New(), files[i].Filename)
		obj, err := s.storage.Upload(ctx, path, files[i].Data, docs[i].MediaType)
		if err != nil {
			s.logger.Warn("Failed to store original; keeping extracted text only",
				zap.String("case_id", caseID),
				zap.String("filename", files[i].Filename),
				zap.Error(err))
			continue
		}
		docs[i].StoragePath = obj.Path
		docs[i].FileURL = obj.URL
		docs[i].UploadedToCloud = obj.Remote
		stored = append(stored, obj.Path)
	}
	return stored
}

func (s *CaseService) deleteOriginals(paths []string) {
	if s.storage == nil {
		return
	}
	// the request context may already be cancelled
	ctx := context.Background()
	for _, path := range paths {
		if err := s.storage.Delete(ctx, path); err != nil {
			s.logger.Warn("Failed to delete stored original", zap.String("path", path), zap.Error(err))
		}
	}
}

// RenderVerdictResult carries the recorded verdict and the updated case
type RenderVerdictResult struct {
	Verdict models.Verdict
	Outcome ParseOutcome
	Case    *models.Case
}

// RenderVerdict judges a case whose sides have both filed documents. A
// previous verdict is replaced.
func (s *CaseService) RenderVerdict(ctx context.Context, caseID string) (*RenderVerdictResult, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}
	if s.adjudicator == nil {
		return nil, ErrReasoningEngineUnavailable
	}

	c, err := s.caseRepo.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.BothSidesFiled() {
		return nil, models.ErrDocumentsIncomplete
	}

	result, err := s.adjudicator.RenderVerdict(ctx, c)
	if err != nil {
		s.logger.Error("Verdict generation failed", zap.String("case_id", caseID), zap.Error(err))
		return nil, err
	}

	updated, err := s.caseRepo.RecordVerdict(ctx, caseID, result.Verdict)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.publish(notify.VerdictRendered(caseID, *updated.Verdict))
	s.logger.Info("Verdict rendered",
		zap.String("case_id", caseID),
		zap.String("decision", string(updated.Verdict.Decision)),
		zap.String("outcome", string(result.Outcome)))

	return &RenderVerdictResult{Verdict: *updated.Verdict, Outcome: result.Outcome, Case: updated}, nil
}

// SubmitArgumentRequest represents a follow-up argument from one side
type SubmitArgumentRequest struct {
	CaseID   string
	Side     models.Side
	Argument string
}

// SubmitArgumentResult reports the recorded argument and the remaining quota
type SubmitArgumentResult struct {
	CaseID             string                  `json:"caseId"`
	Side               models.Side             `json:"side"`
	ArgumentNumber     int                     `json:"argumentNumber"`
	Argument           string                  `json:"argument"`
	AIResponse         models.ArgumentResponse `json:"aiResponse"`
	RemainingArguments int                     `json:"remainingArguments"`
	Case               *models.Case            `json:"-"`
}

// SubmitArgument records an argument and the engine's response to it. The
// case must have a verdict and the side must have quota left.
func (s *CaseService) SubmitArgument(ctx context.Context, req SubmitArgumentRequest) (*SubmitArgumentResult, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}

	text := strings.TrimSpace(req.Argument)
	if text == "" || req.Side == "" {
		return nil, models.Validationf("side and argument are required")
	}
	if !req.Side.Valid() {
		return nil, models.Validationf("side must be either A or B")
	}

	c, err := s.caseRepo.Get(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Verdict == nil {
		return nil, models.ErrJudgmentRequired
	}
	if c.ArgumentCount(req.Side) >= models.MaxArgumentsPerSide {
		return nil, models.ErrArgumentQuotaExceeded
	}
	if s.adjudicator == nil {
		return nil, ErrReasoningEngineUnavailable
	}

	result, err := s.adjudicator.RespondToArgument(ctx, c, req.Side, text)
	if err != nil {
		s.logger.Error("Argument response failed", zap.String("case_id", req.CaseID), zap.Error(err))
		return nil, err
	}

	// the repository re-checks the quota under its lock
	stored, updated, err := s.caseRepo.AppendArgument(ctx, req.CaseID, models.Argument{
		Side:       req.Side,
		Argument:   text,
		AIResponse: result.Response,
	}, models.MaxArgumentsPerSide)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.publish(notify.ArgumentAdded(req.CaseID, stored))
	s.logger.Info("Argument recorded",
		zap.String("case_id", req.CaseID),
		zap.String("side", string(req.Side)),
		zap.Int("argument_number", stored.ArgumentNumber),
		zap.String("verdict_change", string(stored.AIResponse.VerdictChange)))

	return &SubmitArgumentResult{
		CaseID:             req.CaseID,
		Side:               req.Side,
		ArgumentNumber:     stored.ArgumentNumber,
		Argument:           stored.Argument,
		AIResponse:         stored.AIResponse,
		RemainingArguments: models.MaxArgumentsPerSide - updated.ArgumentCount(req.Side),
		Case:               updated,
	}, nil
}

// GetCase returns the full case record
func (s *CaseService) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}
	return s.caseRepo.Get(ctx, caseID)
}

// ListCases returns every case summary, most recently active first
func (s *CaseService) ListCases(ctx context.Context) ([]models.CaseSummary, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}
	return s.caseRepo.List(ctx)
}

// SearchCases filters case summaries
func (s *CaseService) SearchCases(ctx context.Context, criteria models.SearchCriteria) ([]models.CaseSummary, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}
	if criteria.Status != "" && !criteria.Status.Valid() {
		return nil, models.Validationf("unknown status %q", criteria.Status)
	}
	if criteria.CaseType != "" && !criteria.CaseType.Valid() {
		return nil, models.Validationf("unknown case type %q", criteria.CaseType)
	}
	if criteria.Limit < 0 || criteria.Offset < 0 {
		return nil, models.Validationf("limit and offset must not be negative")
	}
	return s.caseRepo.Search(ctx, criteria)
}

// DeleteCase removes a case and, best effort, its stored originals
func (s *CaseService) DeleteCase(ctx context.Context, caseID string) error {
	if s.caseRepo == nil {
		return errors.New("case repository not set")
	}

	c, err := s.caseRepo.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if err := s.caseRepo.Delete(ctx, caseID); err != nil {
		return err
	}

	var paths []string
	for _, sub := range []models.SideSubmission{c.SideA, c.SideB} {
		for _, doc := range sub.Documents {
			if doc.StoragePath != "" {
				paths = append(paths, doc.StoragePath)
			}
		}
	}
	s.deleteOriginals(paths)

	s.invalidateStats(ctx)
	s.logger.Info("Case deleted", zap.String("case_id", caseID), zap.Int("originals", len(paths)))
	return nil
}

// GetStatistics aggregates all cases, served from the cache when fresh
func (s *CaseService) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	if s.caseRepo == nil {
		return nil, errors.New("case repository not set")
	}

	if s.statsCache != nil {
		if raw, err := s.statsCache.Get(ctx, statsCacheKey); err == nil {
			var stats models.Statistics
			if err := json.Unmarshal([]byte(raw), &stats); err == nil {
				return &stats, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Statistics cache read failed", zap.Error(err))
		}
	}

	gen := s.statsGen.Load()
	summaries, err := s.caseRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := models.BuildStatistics(summaries)

	// TODO: the counter is per process; replicas sharing Redis can still
	// cache a snapshot that raced another replica's invalidation until the TTL
	if s.statsCache != nil && s.statsTTL > 0 && s.statsGen.Load() == gen {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.statsCache.Set(ctx, statsCacheKey, string(payload), s.statsTTL); err != nil {
				s.logger.Warn("Statistics cache write failed", zap.Error(err))
			}
		}
	}
	return &stats, nil
}

// SummarizeCase returns a short engine-written summary of the dispute
func (s *CaseService) SummarizeCase(ctx context.Context, caseID string) (string, error) {
	if s.caseRepo == nil {
		return "", errors.New("case repository not set")
	}
	if s.adjudicator == nil {
		return "", ErrReasoningEngineUnavailable
	}
	c, err := s.caseRepo.Get(ctx, caseID)
	if err != nil {
		return "", err
	}
	return s.adjudicator.SummarizeCase(ctx, c)
}

// OpenDocument streams the stored original of a side's document. index is
// zero-based. The caller closes the reader.
func (s *CaseService) OpenDocument(ctx context.Context, caseID string, side models.Side, index int) (io.ReadCloser, models.Document, error) {
	if s.caseRepo == nil {
		return nil, models.Document{}, errors.New("case repository not set")
	}
	c, err := s.caseRepo.Get(ctx, caseID)
	if err != nil {
		return nil, models.Document{}, err
	}
	sub := c.Submission(side)
	if sub == nil {
		return nil, models.Document{}, models.Validationf("side must be either A or B")
	}
	if index < 0 || index >= len(sub.Documents) {
		return nil, models.Document{}, models.Validationf("document index %d out of range", index)
	}

	doc := sub.Documents[index]
	if doc.StoragePath == "" || s.storage == nil {
		return nil, doc, ErrOriginalUnavailable
	}
	rc, err := s.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, doc, ErrOriginalUnavailable
		}
		return nil, doc, fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	return rc, doc, nil
}

func (s *CaseService) publish(event notify.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

func (s *CaseService) invalidateStats(ctx context.Context) {
	s.statsGen.Add(1)
	if s.statsCache == nil {
		return
	}
	if err := s.statsCache.Delete(ctx, statsCacheKey); err != nil {
		s.logger.Warn("Statistics cache invalidation failed", zap.Error(err))
	}
}
