package repository

import (
	"context"
	"fmt"
	"os"

	"aijudge-backend/models"

	"go.uber.org/zap"
)

// CaseRepository owns case records. Every mutation is atomic per case:
// concurrent calls on the same case never lose updates, and each returns
// the case as it stands after the change.
type CaseRepository interface {
	Create(ctx context.Context, c *models.Case) error

	// Import inserts a complete case record unless the id is taken.
	// It reports whether the case was inserted.
	Import(ctx context.Context, c *models.Case) (bool, error)

	Get(ctx context.Context, caseID string) (*models.Case, error)

	// AttachSideDocuments replaces a side's description and documents. When
	// autoCreate is set and the case does not exist, a placeholder case is
	// created under caseID first.
	AttachSideDocuments(ctx context.Context, caseID string, side models.Side, description *string, docs []models.Document, autoCreate bool) (*models.Case, error)

	RecordVerdict(ctx context.Context, caseID string, verdict models.Verdict) (*models.Case, error)

	// AppendArgument appends arg, assigning its id and per-side number.
	// limit caps the arguments per side; limit <= 0 disables the cap.
	AppendArgument(ctx context.Context, caseID string, arg models.Argument, limit int) (models.Argument, *models.Case, error)

	// RelocateDocument moves the recorded location of one stored original.
	// It fails with models.ErrDocumentReplaced when the document at index is
	// no longer the expected one.
	RelocateDocument(ctx context.Context, caseID string, side models.Side, index int, expected models.Document, loc models.DocumentLocation) (*models.Case, error)

	Delete(ctx context.Context, caseID string) error

	// List returns every case, most recently active first.
	List(ctx context.Context) ([]models.CaseSummary, error)

	Search(ctx context.Context, criteria models.SearchCriteria) ([]models.CaseSummary, error)

	Close()
}

// StoreType selects the CaseRepository implementation
type StoreType string

const (
	StoreTypePostgres StoreType = "postgres"
	StoreTypeMemory   StoreType = "memory"
)

// NewCaseRepository creates the repository selected by storeType
func NewCaseRepository(ctx context.Context, storeType StoreType, databaseURL string, logger *zap.Logger) (CaseRepository, error) {
	switch storeType {
	case StoreTypeMemory:
		logger.Warn("Using in-memory case store; data is lost on restart")
		return NewMemoryCaseRepository(), nil

	case StoreTypePostgres:
		if databaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for postgres store")
		}
		pool, err := Connect(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Postgres connection established")
		return NewPostgresCaseRepository(pool), nil

	default:
		return nil, fmt.Errorf("unknown store type: %s", storeType)
	}
}

// NewCaseRepositoryFromEnv creates a repository from STORE_TYPE and DATABASE_URL
func NewCaseRepositoryFromEnv(ctx context.Context, logger *zap.Logger) (CaseRepository, error) {
	storeType := os.Getenv("STORE_TYPE")
	if storeType == "" {
		storeType = string(StoreTypePostgres)
	}
	return NewCaseRepository(ctx, StoreType(storeType), os.Getenv("DATABASE_URL"), logger)
}
