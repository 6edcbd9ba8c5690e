package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"aijudge-backend/models"
)

func seedCase(t *testing.T, repo CaseRepository, title, country string) *models.Case {
	t.Helper()
	c := models.NewCase(models.NewCaseID(), title, "a dispute", country, models.CaseTypeCivil, time.Now().UTC())
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}
	return c
}

func docs(names ...string) []models.Document {
	out := make([]models.Document, 0, len(names))
	for _, n := range names {
		out = append(out, models.Document{Filename: n, MediaType: "text/plain", ExtractedText: "content " + n})
	}
	return out
}

func readyForArguments(t *testing.T, repo CaseRepository, caseID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.AttachSideDocuments(ctx, caseID, models.SideA, nil, docs("a.txt"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.AttachSideDocuments(ctx, caseID, models.SideB, nil, docs("b.txt"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.RecordVerdict(ctx, caseID, models.Verdict{Decision: models.DecisionFavorSideA}); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	repo := NewMemoryCaseRepository()
	c := seedCase(t, repo, "Smith v. Jones", "India")

	got, err := repo.Get(context.Background(), c.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	got.Title = "mutated"

	again, _ := repo.Get(context.Background(), c.CaseID)
	if again.Title != "Smith v. Jones" {
		t.Fatal("stored case was mutated through returned pointer")
	}

	if _, err := repo.Get(context.Background(), "case_missing"); !errors.Is(err, models.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestMemoryAttachSideDocuments(t *testing.T) {
	repo := NewMemoryCaseRepository()
	ctx := context.Background()
	c := seedCase(t, repo, "Smith v. Jones", "India")

	desc := "breach of lease"
	updated, err := repo.AttachSideDocuments(ctx, c.CaseID, models.SideA, &desc, docs("a1.txt", "a2.txt"), false)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.StatusAwaitingDocuments || len(updated.SideA.Documents) != 2 || updated.SideA.UploadedAt == nil {
		t.Fatalf("unexpected case after side A: %+v", updated)
	}

	// a second upload replaces the set
	updated, err = repo.AttachSideDocuments(ctx, c.CaseID, models.SideA, nil, docs("a3.txt"), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.SideA.Documents) != 1 || updated.SideA.Documents[0].Filename != "a3.txt" {
		t.Fatalf("documents not replaced: %+v", updated.SideA.Documents)
	}

	updated, err = repo.AttachSideDocuments(ctx, c.CaseID, models.SideB, nil, docs("b.txt"), false)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.StatusReadyForJudgment {
		t.Fatalf("status = %s", updated.Status)
	}
}

func TestMemoryAttachAutoCreate(t *testing.T) {
	repo := NewMemoryCaseRepository()
	ctx := context.Background()

	if _, err := repo.AttachSideDocuments(ctx, "case_x", models.SideA, nil, docs("a.txt"), false); !errors.Is(err, models.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}

	c, err := repo.AttachSideDocuments(ctx, "case_x", models.SideA, nil, docs("a.txt"), true)
	if err != nil {
		t.Fatal(err)
	}
	if c.CaseID != "case_x" || c.Title != "Case case_x" || c.Country != models.PlaceholderCountry {
		t.Fatalf("unexpected placeholder: %+v", c)
	}
	if c.Status != models.StatusAwaitingDocuments {
		t.Fatalf("status = %s", c.Status)
	}
}

func TestMemoryRecordVerdictRequiresDocuments(t *testing.T) {
	repo := NewMemoryCaseRepository()
	ctx := context.Background()
	c := seedCase(t, repo, "t", "India")
	_, _ = repo.AttachSideDocuments(ctx, c.CaseID, models.SideA, nil, docs("a.txt"), false)

	if _, err := repo.RecordVerdict(ctx, c.CaseID, models.Verdict{Decision: models.DecisionFavorSideA}); !errors.Is(err, models.ErrDocumentsIncomplete) {
		t.Fatalf("expected ErrDocumentsIncomplete, got %v", err)
	}
	got, _ := repo.Get(ctx, c.CaseID)
	if got.Verdict != nil || got.Status != models.StatusAwaitingDocuments {
		t.Fatalf("case changed on failed verdict: %+v", got)
	}
}

func TestMemoryAppendArgumentConcurrent(t *testing.T) {
	repo := NewMemoryCaseRepository()
	ctx := context.Background()
	c := seedCase(t, repo, "t", "India")
	readyForArguments(t, repo, c.CaseID)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted = map[models.Side]int{}
		rejected int
	)
	for i := 0; i < 16; i++ {
		side := models.SideA
		if i%2 == 1 {
			side = models.SideB
		}
		wg.Add(1)
		go func(side models.Side) {
			defer wg.Done()
			_, _, err := repo.AppendArgument(ctx, c.CaseID, models.Argument{Side: side, Argument: "point"}, models.MaxArgumentsPerSide)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted[side]++
			case errors.Is(err, models.ErrArgumentQuotaExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(side)
	}
	wg.Wait()

	if accepted[models.SideA] != 5 || accepted[models.SideB] != 5 || rejected != 6 {
		t.Fatalf("accepted=%v rejected=%d", accepted, rejected)
	}

	got, _ := repo.Get(ctx, c.CaseID)
	m := got.Metadata
	if m.TotalArguments != 10 || m.SideAArguments != 5 || m.SideBArguments != 5 {
		t.Fatalf("metadata = %+v", m)
	}
	seen := map[string]bool{}
	numbers := map[models.Side]map[int]bool{models.SideA: {}, models.SideB: {}}
	for _, arg := range got.Arguments {
		if seen[arg.ID] {
			t.Fatalf("duplicate argument id %s", arg.ID)
		}
		seen[arg.ID] = true
		numbers[arg.Side][arg.ArgumentNumber] = true
	}
	for side, nums := range numbers {
		for n := 1; n <= 5; n++ {
			if !nums[n] {
				t.Fatalf("side %s missing argument number %d", side, n)
			}
		}
	}
	if got.Status != models.StatusArgumentsPhase {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestMemorySearch(t *testing.T) {
	repo := NewMemoryCaseRepository()
	ctx := context.Background()
	first := seedCase(t, repo, "Smith v. Jones", "India")
	seedCase(t, repo, "Acme v. Widget Co", "United States")
	time.Sleep(2 * time.Millisecond)
	readyForArguments(t, repo, first.CaseID)

	res, err := repo.Search(ctx, models.SearchCriteria{Country: "india"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].CaseID != first.CaseID {
		t.Fatalf("country search = %+v", res)
	}

	res, _ = repo.Search(ctx, models.SearchCriteria{Title: "WIDGET"})
	if len(res) != 1 || res[0].Country != "United States" {
		t.Fatalf("title search = %+v", res)
	}

	yes := true
	res, _ = repo.Search(ctx, models.SearchCriteria{HasVerdict: &yes, Status: models.StatusVerdictRendered})
	if len(res) != 1 || !res[0].HasVerdict {
		t.Fatalf("verdict search = %+v", res)
	}

	all, _ := repo.List(ctx)
	if len(all) != 2 || all[0].CaseID != first.CaseID {
		t.Fatalf("list not sorted by activity: %+v", all)
	}

	res, _ = repo.Search(ctx, models.SearchCriteria{Limit: 1, Offset: 1})
	if len(res) != 1 || res[0].CaseID == first.CaseID {
		t.Fatalf("paged search = %+v", res)
	}
}

func TestMemoryDeleteAndImport(t *testing.T) {
	repo := NewMemoryCaseRepository()
	ctx := context.Background()
	c := seedCase(t, repo, "t", "India")

	inserted, err := repo.Import(ctx, c)
	if err != nil || inserted {
		t.Fatalf("import of existing case = %v, %v", inserted, err)
	}

	if err := repo.Delete(ctx, c.CaseID); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, c.CaseID); !errors.Is(err, models.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}

	inserted, err = repo.Import(ctx, c)
	if err != nil || !inserted {
		t.Fatalf("import after delete = %v, %v", inserted, err)
	}
}

func TestBuildSearchQuery(t *testing.T) {
	yes := true
	after := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildSearchQuery(models.SearchCriteria{
		Status:      models.StatusCreated,
		Country:     "in_dia%",
		HasVerdict:  &yes,
		ActiveAfter: &after,
		Limit:       10,
		Offset:      20,
	})

	for _, fragment := range []string{
		"status = $1",
		"country ILIKE '%' || $2 || '%'",
		"has_verdict = $3",
		"last_activity >= $4",
		"ORDER BY last_activity DESC",
		"LIMIT $5",
		"OFFSET $6",
	} {
		if !strings.Contains(query, fragment) {
			t.Errorf("query missing %q:\n%s", fragment, query)
		}
	}
	if len(args) != 6 {
		t.Fatalf("args = %v", args)
	}
	if args[1] != `in\_dia\%` {
		t.Fatalf("country not escaped: %v", args[1])
	}

	query, args = buildSearchQuery(models.SearchCriteria{})
	if len(args) != 0 || strings.Contains(query, "LIMIT") {
		t.Fatalf("empty criteria produced %q %v", query, args)
	}
}

func TestMemoryRelocateDocument(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCaseRepository()
	c := seedCase(t, repo, "Lee v. Park", "Korea")

	filed := docs("deed.txt")
	filed[0].StoragePath = "cases/x/side-a/deed.txt"
	if _, err := repo.AttachSideDocuments(ctx, c.CaseID, models.SideA, nil, filed, false); err != nil {
		t.Fatal(err)
	}
	before, _ := repo.Get(ctx, c.CaseID)

	loc := models.DocumentLocation{StoragePath: "cases/x/side-a/new_deed.txt", FileURL: "https://files/deed.txt", UploadedToCloud: true}
	updated, err := repo.RelocateDocument(ctx, c.CaseID, models.SideA, 0, filed[0], loc)
	if err != nil {
		t.Fatal(err)
	}
	doc := updated.SideA.Documents[0]
	if doc.StoragePath != loc.StoragePath || !doc.UploadedToCloud || doc.ExtractedText != filed[0].ExtractedText {
		t.Fatalf("relocated document = %+v", doc)
	}
	if !updated.Metadata.LastActivity.Equal(before.Metadata.LastActivity) {
		t.Fatal("relocation counted as case activity")
	}

	// the side was resubmitted: the old view no longer matches
	if _, err := repo.AttachSideDocuments(ctx, c.CaseID, models.SideA, nil, docs("other.txt"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.RelocateDocument(ctx, c.CaseID, models.SideA, 0, filed[0], loc); !errors.Is(err, models.ErrDocumentReplaced) {
		t.Fatalf("expected ErrDocumentReplaced, got %v", err)
	}
	if _, err := repo.RelocateDocument(ctx, c.CaseID, models.SideA, 3, filed[0], loc); !errors.Is(err, models.ErrDocumentReplaced) {
		t.Fatalf("expected ErrDocumentReplaced for bad index, got %v", err)
	}
	if _, err := repo.RelocateDocument(ctx, "case_missing", models.SideA, 0, filed[0], loc); !errors.Is(err, models.ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}
