package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"aijudge-backend/models"
)

// MemoryCaseRepository keeps cases in a map. Cases are copied on the way
// in and out so callers never alias stored state.
type MemoryCaseRepository struct {
	mu    sync.RWMutex
	cases map[string]*models.Case
	now   func() time.Time
}

// NewMemoryCaseRepository creates an empty in-memory repository
func NewMemoryCaseRepository() *MemoryCaseRepository {
	return &MemoryCaseRepository{
		cases: make(map[string]*models.Case),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryCaseRepository) Create(ctx context.Context, c *models.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cases[c.CaseID]; exists {
		return models.Validationf("case %s already exists", c.CaseID)
	}
	c.RefreshStatus()
	r.cases[c.CaseID] = c.Clone()
	return nil
}

func (r *MemoryCaseRepository) Import(ctx context.Context, c *models.Case) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cases[c.CaseID]; exists {
		return false, nil
	}
	c.RefreshStatus()
	r.cases[c.CaseID] = c.Clone()
	return true, nil
}

func (r *MemoryCaseRepository) Get(ctx context.Context, caseID string) (*models.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cases[caseID]
	if !ok {
		return nil, models.ErrCaseNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryCaseRepository) AttachSideDocuments(ctx context.Context, caseID string, side models.Side, description *string, docs []models.Document, autoCreate bool) (*models.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c, ok := r.cases[caseID]
	if !ok {
		if !autoCreate {
			return nil, models.ErrCaseNotFound
		}
		c = models.NewPlaceholderCase(caseID, now)
	}

	updated := c.Clone()
	if description != nil {
		d := *description
		description = &d
	}
	if err := updated.AttachDocuments(side, description, docs, now); err != nil {
		return nil, err
	}
	r.cases[caseID] = updated
	return updated.Clone(), nil
}

func (r *MemoryCaseRepository) RecordVerdict(ctx context.Context, caseID string, verdict models.Verdict) (*models.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cases[caseID]
	if !ok {
		return nil, models.ErrCaseNotFound
	}
	updated := c.Clone()
	if err := updated.SetVerdict(verdict, r.now()); err != nil {
		return nil, err
	}
	r.cases[caseID] = updated.Clone()
	return updated, nil
}

func (r *MemoryCaseRepository) AppendArgument(ctx context.Context, caseID string, arg models.Argument, limit int) (models.Argument, *models.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cases[caseID]
	if !ok {
		return models.Argument{}, nil, models.ErrCaseNotFound
	}
	updated := c.Clone()
	stored, err := updated.AddArgument(arg, limit, r.now())
	if err != nil {
		return models.Argument{}, nil, err
	}
	r.cases[caseID] = updated.Clone()
	return stored, updated, nil
}

func (r *MemoryCaseRepository) RelocateDocument(ctx context.Context, caseID string, side models.Side, index int, expected models.Document, loc models.DocumentLocation) (*models.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cases[caseID]
	if !ok {
		return nil, models.ErrCaseNotFound
	}
	updated := c.Clone()
	if err := updated.RelocateDocument(side, index, expected, loc, r.now()); err != nil {
		return nil, err
	}
	r.cases[caseID] = updated.Clone()
	return updated, nil
}

func (r *MemoryCaseRepository) Delete(ctx context.Context, caseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[caseID]; !ok {
		return models.ErrCaseNotFound
	}
	delete(r.cases, caseID)
	return nil
}

func (r *MemoryCaseRepository) List(ctx context.Context) ([]models.CaseSummary, error) {
	return r.Search(ctx, models.SearchCriteria{})
}

func (r *MemoryCaseRepository) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.CaseSummary, error) {
	r.mu.RLock()
	summaries := []models.CaseSummary{}
	for _, c := range r.cases {
		if matches(c, criteria) {
			summaries = append(summaries, c.Summary())
		}
	}
	r.mu.RUnlock()

	models.SortByActivity(summaries)

	if criteria.Offset > 0 {
		if criteria.Offset >= len(summaries) {
			return []models.CaseSummary{}, nil
		}
		summaries = summaries[criteria.Offset:]
	}
	if criteria.Limit > 0 && len(summaries) > criteria.Limit {
		summaries = summaries[:criteria.Limit]
	}
	return summaries, nil
}

func (r *MemoryCaseRepository) Close() {}

func matches(c *models.Case, criteria models.SearchCriteria) bool {
	if criteria.Status != "" && models.DeriveStatus(c) != criteria.Status {
		return false
	}
	if criteria.CaseType != "" && c.CaseType != criteria.CaseType {
		return false
	}
	if criteria.Country != "" && !containsFold(c.Country, criteria.Country) {
		return false
	}
	if criteria.Title != "" && !containsFold(c.Title, criteria.Title) {
		return false
	}
	if criteria.Query != "" && !containsFold(c.Title+" "+c.Description, criteria.Query) {
		return false
	}
	if criteria.HasVerdict != nil && (c.Verdict != nil) != *criteria.HasVerdict {
		return false
	}
	activity := c.Summary().LastActivity
	if criteria.ActiveAfter != nil && activity.Before(*criteria.ActiveAfter) {
		return false
	}
	if criteria.ActiveBefore != nil && activity.After(*criteria.ActiveBefore) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
