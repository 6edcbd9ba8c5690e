package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"aijudge-backend/models"
	"aijudge-backend/repository"
	"aijudge-backend/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type outcome int

const (
	outcomeUploaded outcome = iota
	outcomeSkipped
	outcomeMissing
	outcomeError
)

// summary counts documents by what happened to them
type summary struct {
	Total    int
	Uploaded int
	Skipped  int
	Missing  int
	Errors   int
}

func (s *summary) add(o outcome) {
	s.Total++
	switch o {
	case outcomeUploaded:
		s.Uploaded++
	case outcomeSkipped:
		s.Skipped++
	case outcomeMissing:
		s.Missing++
	default:
		s.Errors++
	}
}

// migrator copies originals that never reached remote storage from the
// local store to the target store and records their new location.
type migrator struct {
	repo   repository.CaseRepository
	source storage.Storage
	target storage.Storage
	logger *zap.Logger
}

func (m *migrator) run(ctx context.Context) (summary, error) {
	var sum summary

	cases, err := m.repo.List(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to list cases: %w", err)
	}
	m.logger.Info("Found cases to process", zap.Int("count", len(cases)))

	for _, cs := range cases {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		c, err := m.repo.Get(ctx, cs.CaseID)
		if err != nil {
			m.logger.Error("Failed to load case", zap.String("case_id", cs.CaseID), zap.Error(err))
			sum.Errors++
			continue
		}
		for _, side := range []models.Side{models.SideA, models.SideB} {
			for i, doc := range c.Submission(side).Documents {
				sum.add(m.migrateDocument(ctx, c.CaseID, side, i, doc))
			}
		}
	}
	return sum, nil
}

func (m *migrator) migrateDocument(ctx context.Context, caseID string, side models.Side, index int, doc models.Document) outcome {
	log := m.logger.With(
		zap.String("case_id", caseID),
		zap.String("side", string(side)),
		zap.String("filename", doc.Filename))

	if doc.UploadedToCloud {
		log.Debug("Already in remote storage")
		return outcomeSkipped
	}
	if doc.StoragePath == "" {
		log.Warn("No stored original to migrate")
		return outcomeMissing
	}

	data, err := m.readSource(ctx, doc.StoragePath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		log.Warn("Local original not found", zap.String("path", doc.StoragePath))
		return outcomeMissing
	}
	if err != nil {
		log.Error("Failed to read local original", zap.Error(err))
		return outcomeError
	}

	contentType := doc.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	path := storage.ObjectPath(caseID, side.Slug(), uuid.New(), doc.Filename)
	obj, err := m.target.Upload(ctx, path, data, contentType)
	if err != nil {
		log.Error("Upload failed", zap.Error(err))
		return outcomeError
	}

	_, err = m.repo.RelocateDocument(ctx, caseID, side, index, doc, models.DocumentLocation{
		StoragePath:     obj.Path,
		FileURL:         obj.URL,
		UploadedToCloud: obj.Remote,
	})
	if err != nil {
		if delErr := m.target.Delete(context.Background(), obj.Path); delErr != nil {
			log.Warn("Failed to remove orphaned upload", zap.String("path", obj.Path), zap.Error(delErr))
		}
		if errors.Is(err, models.ErrDocumentReplaced) {
			log.Info("Side was resubmitted during migration; skipping")
			return outcomeSkipped
		}
		log.Error("Failed to record new location", zap.Error(err))
		return outcomeError
	}

	log.Info("Uploaded original", zap.String("path", obj.Path), zap.String("url", obj.URL))
	return outcomeUploaded
}

func (m *migrator) readSource(ctx context.Context, path string) ([]byte, error) {
	rc, err := m.source.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
