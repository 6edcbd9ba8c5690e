package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"aijudge-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool and verifies the connection
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// PostgresCaseRepository stores one row per case. Sides, verdict, arguments
// and metadata live in JSONB columns; the scalar columns back search and sort.
type PostgresCaseRepository struct {
	db *pgxpool.Pool
}

// NewPostgresCaseRepository creates a new case repository
func NewPostgresCaseRepository(db *pgxpool.Pool) *PostgresCaseRepository {
	return &PostgresCaseRepository{db: db}
}

const caseColumns = `case_id, title, description, country, case_type, status,
		side_a, side_b, verdict, arguments, metadata, created_at, updated_at`

const summaryColumns = `case_id, title, status, country, case_type, created_at, updated_at,
		has_verdict, total_arguments, last_activity`

const insertCase = `
	INSERT INTO cases (
		case_id, title, description, country, case_type, status,
		side_a, side_b, verdict, arguments, metadata,
		has_verdict, total_arguments, last_activity, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
	)`

// Create inserts a new case
func (r *PostgresCaseRepository) Create(ctx context.Context, c *models.Case) error {
	args, err := insertArgs(c)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, insertCase, args...); err != nil {
		return storageErr(err)
	}
	return nil
}

// Import inserts c unless a case with the same id already exists
func (r *PostgresCaseRepository) Import(ctx context.Context, c *models.Case) (bool, error) {
	args, err := insertArgs(c)
	if err != nil {
		return false, err
	}
	tag, err := r.db.Exec(ctx, insertCase+" ON CONFLICT (case_id) DO NOTHING", args...)
	if err != nil {
		return false, storageErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get retrieves a case by id
func (r *PostgresCaseRepository) Get(ctx context.Context, caseID string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE case_id = $1`
	c, err := scanCase(r.db.QueryRow(ctx, query, caseID))
	if err != nil {
		return nil, storageErr(err)
	}
	return c, nil
}

// AttachSideDocuments replaces one side's submission
func (r *PostgresCaseRepository) AttachSideDocuments(ctx context.Context, caseID string, side models.Side, description *string, docs []models.Document, autoCreate bool) (*models.Case, error) {
	var out *models.Case
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		c, err := lockCase(ctx, tx, caseID)
		if errors.Is(err, models.ErrCaseNotFound) && autoCreate {
			c = models.NewPlaceholderCase(caseID, now)
			args, err := insertArgs(c)
			if err != nil {
				return err
			}
			// a concurrent upload may have created it; lock whichever row won
			if _, err := tx.Exec(ctx, insertCase+" ON CONFLICT (case_id) DO NOTHING", args...); err != nil {
				return err
			}
			c, err = lockCase(ctx, tx, caseID)
			if err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := c.AttachDocuments(side, description, docs, now); err != nil {
			return err
		}
		out = c
		return saveCase(ctx, tx, c)
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// RecordVerdict replaces the active verdict
func (r *PostgresCaseRepository) RecordVerdict(ctx context.Context, caseID string, verdict models.Verdict) (*models.Case, error) {
	var out *models.Case
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		c, err := lockCase(ctx, tx, caseID)
		if err != nil {
			return err
		}
		if err := c.SetVerdict(verdict, time.Now().UTC()); err != nil {
			return err
		}
		out = c
		return saveCase(ctx, tx, c)
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// AppendArgument appends an argument under a row lock so counters and
// per-side numbering stay consistent across concurrent calls.
func (r *PostgresCaseRepository) AppendArgument(ctx context.Context, caseID string, arg models.Argument, limit int) (models.Argument, *models.Case, error) {
	var (
		out    *models.Case
		stored models.Argument
	)
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		c, err := lockCase(ctx, tx, caseID)
		if err != nil {
			return err
		}
		stored, err = c.AddArgument(arg, limit, time.Now().UTC())
		if err != nil {
			return err
		}
		out = c
		return saveCase(ctx, tx, c)
	})
	if err != nil {
		return models.Argument{}, nil, storageErr(err)
	}
	return stored, out, nil
}

// RelocateDocument updates where one document's original is stored
func (r *PostgresCaseRepository) RelocateDocument(ctx context.Context, caseID string, side models.Side, index int, expected models.Document, loc models.DocumentLocation) (*models.Case, error) {
	var out *models.Case
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		c, err := lockCase(ctx, tx, caseID)
		if err != nil {
			return err
		}
		if err := c.RelocateDocument(side, index, expected, loc, time.Now().UTC()); err != nil {
			return err
		}
		out = c
		return saveCase(ctx, tx, c)
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// Delete removes a case
func (r *PostgresCaseRepository) Delete(ctx context.Context, caseID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cases WHERE case_id = $1`, caseID)
	if err != nil {
		return storageErr(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrCaseNotFound
	}
	return nil
}

// List returns all case summaries, most recently active first
func (r *PostgresCaseRepository) List(ctx context.Context) ([]models.CaseSummary, error) {
	return r.Search(ctx, models.SearchCriteria{})
}

// Search returns case summaries matching criteria
func (r *PostgresCaseRepository) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.CaseSummary, error) {
	query, args := buildSearchQuery(criteria)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	summaries := []models.CaseSummary{}
	for rows.Next() {
		var s models.CaseSummary
		err := rows.Scan(
			&s.CaseID,
			&s.Title,
			&s.Status,
			&s.Country,
			&s.CaseType,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.HasVerdict,
			&s.TotalArguments,
			&s.LastActivity,
		)
		if err != nil {
			return nil, storageErr(err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return summaries, nil
}

// Close releases the connection pool
func (r *PostgresCaseRepository) Close() {
	r.db.Close()
}

// buildSearchQuery renders criteria as a parameterized SELECT
func buildSearchQuery(criteria models.SearchCriteria) (string, []interface{}) {
	query := `SELECT ` + summaryColumns + ` FROM cases WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	add := func(clause string, value interface{}) {
		query += fmt.Sprintf(" AND "+clause, argIndex)
		args = append(args, value)
		argIndex++
	}

	if criteria.Status != "" {
		add("status = $%d", string(criteria.Status))
	}
	if criteria.Country != "" {
		add(`country ILIKE '%%' || $%d || '%%'`, escapeLike(criteria.Country))
	}
	if criteria.CaseType != "" {
		add("case_type = $%d", string(criteria.CaseType))
	}
	if criteria.Title != "" {
		add(`title ILIKE '%%' || $%d || '%%'`, escapeLike(criteria.Title))
	}
	if criteria.Query != "" {
		add(`(title || ' ' || description) ILIKE '%%' || $%d || '%%'`, escapeLike(criteria.Query))
	}
	if criteria.HasVerdict != nil {
		add("has_verdict = $%d", *criteria.HasVerdict)
	}
	if criteria.ActiveAfter != nil {
		add("last_activity >= $%d", *criteria.ActiveAfter)
	}
	if criteria.ActiveBefore != nil {
		add("last_activity <= $%d", *criteria.ActiveBefore)
	}

	query += " ORDER BY last_activity DESC"

	if criteria.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, criteria.Limit)
		argIndex++
	}
	if criteria.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, criteria.Offset)
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func lockCase(ctx context.Context, tx pgx.Tx, caseID string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE case_id = $1 FOR UPDATE`
	return scanCase(tx.QueryRow(ctx, query, caseID))
}

func saveCase(ctx context.Context, tx pgx.Tx, c *models.Case) error {
	verdict, err := verdictParam(c.Verdict)
	if err != nil {
		return err
	}
	query := `
		UPDATE cases SET
			status = $2,
			side_a = $3,
			side_b = $4,
			verdict = $5,
			arguments = $6,
			metadata = $7,
			has_verdict = $8,
			total_arguments = $9,
			last_activity = $10,
			updated_at = $11
		WHERE case_id = $1`

	_, err = tx.Exec(
		ctx, query,
		c.CaseID,
		string(c.Status),
		c.SideA,
		c.SideB,
		verdict,
		c.Arguments,
		c.Metadata,
		c.Verdict != nil,
		c.Metadata.TotalArguments,
		c.Metadata.LastActivity,
		c.UpdatedAt,
	)
	return err
}

func insertArgs(c *models.Case) ([]interface{}, error) {
	c.RefreshStatus()
	verdict, err := verdictParam(c.Verdict)
	if err != nil {
		return nil, err
	}
	if c.Arguments == nil {
		c.Arguments = models.ArgumentList{}
	}
	return []interface{}{
		c.CaseID,
		c.Title,
		c.Description,
		c.Country,
		string(c.CaseType),
		string(c.Status),
		c.SideA,
		c.SideB,
		verdict,
		c.Arguments,
		c.Metadata,
		c.Verdict != nil,
		c.Metadata.TotalArguments,
		c.Metadata.LastActivity,
		c.CreatedAt,
		c.UpdatedAt,
	}, nil
}

// verdictParam encodes a nullable verdict; nil maps to SQL NULL
func verdictParam(v *models.Verdict) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func scanCase(row pgx.Row) (*models.Case, error) {
	c := &models.Case{}
	var verdictJSON []byte
	err := row.Scan(
		&c.CaseID,
		&c.Title,
		&c.Description,
		&c.Country,
		&c.CaseType,
		&c.Status,
		&c.SideA,
		&c.SideB,
		&verdictJSON,
		&c.Arguments,
		&c.Metadata,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(verdictJSON) > 0 {
		var v models.Verdict
		if err := json.Unmarshal(verdictJSON, &v); err != nil {
			return nil, fmt.Errorf("failed to decode verdict: %w", err)
		}
		c.Verdict = &v
	}
	c.RefreshStatus()
	return c, nil
}

// storageErr tags infrastructure failures with ErrStorage and passes
// domain errors through untouched.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrCaseNotFound),
		errors.Is(err, models.ErrPreconditionFailed),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrStorage):
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrStorage, err)
}
