package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func doc(name string) Document {
	return Document{Filename: name, MediaType: "text/plain", Size: 10, ExtractedText: "text of " + name}
}

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	c := NewCase("case_1", "Smith v. Jones", "", "India", "", now)
	if c.Status != StatusCreated {
		t.Fatalf("new case status = %s", c.Status)
	}
	if c.CaseType != CaseTypeCivil {
		t.Fatalf("default case type = %s", c.CaseType)
	}

	if err := c.AttachDocuments(SideA, nil, []Document{doc("a.txt")}, now); err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusAwaitingDocuments {
		t.Fatalf("after side A status = %s", c.Status)
	}

	if err := c.AttachDocuments(SideB, nil, []Document{doc("b.txt")}, now); err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusReadyForJudgment {
		t.Fatalf("after side B status = %s", c.Status)
	}

	if err := c.SetVerdict(Verdict{Decision: DecisionFavorSideA}, now); err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusVerdictRendered {
		t.Fatalf("after verdict status = %s", c.Status)
	}

	if _, err := c.AddArgument(Argument{Side: SideB, Argument: "objection"}, MaxArgumentsPerSide, now); err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusArgumentsPhase {
		t.Fatalf("after argument status = %s", c.Status)
	}

	// re-judgment absorbs the arguments on file
	if err := c.SetVerdict(Verdict{Decision: DecisionSplit}, now); err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusVerdictRendered {
		t.Fatalf("after re-judgment status = %s", c.Status)
	}
	if c.Verdict.ArgumentsConsidered != 1 {
		t.Fatalf("ArgumentsConsidered = %d", c.Verdict.ArgumentsConsidered)
	}
}

func TestSetVerdictRequiresBothSides(t *testing.T) {
	now := time.Now()
	c := NewCase("case_1", "t", "", "India", CaseTypeCivil, now)
	_ = c.AttachDocuments(SideA, nil, []Document{doc("a.txt")}, now)

	err := c.SetVerdict(Verdict{Decision: DecisionFavorSideA}, now)
	if !errors.Is(err, ErrDocumentsIncomplete) || !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("err = %v", err)
	}
	if c.Verdict != nil || c.Status != StatusAwaitingDocuments {
		t.Fatalf("case mutated on failure: %+v", c)
	}
}

func TestAddArgument(t *testing.T) {
	now := time.Now()
	c := NewCase("case_1", "t", "", "India", CaseTypeCivil, now)

	if _, err := c.AddArgument(Argument{Side: SideA}, MaxArgumentsPerSide, now); !errors.Is(err, ErrJudgmentRequired) {
		t.Fatalf("expected ErrJudgmentRequired, got %v", err)
	}

	_ = c.AttachDocuments(SideA, nil, []Document{doc("a")}, now)
	_ = c.AttachDocuments(SideB, nil, []Document{doc("b")}, now)
	_ = c.SetVerdict(Verdict{Decision: DecisionFavorSideA}, now)

	sides := []Side{SideA, SideB, SideA}
	for i, side := range sides {
		arg, err := c.AddArgument(Argument{Side: side, Argument: "x"}, MaxArgumentsPerSide, now)
		if err != nil {
			t.Fatal(err)
		}
		if want := "arg_" + string(rune('1'+i)); arg.ID != want {
			t.Fatalf("id = %s, want %s", arg.ID, want)
		}
	}
	if c.Arguments[2].ArgumentNumber != 2 || c.Arguments[1].ArgumentNumber != 1 {
		t.Fatalf("per-side numbering wrong: %+v", c.Arguments)
	}
	m := c.Metadata
	if m.TotalArguments != 3 || m.SideAArguments != 2 || m.SideBArguments != 1 {
		t.Fatalf("metadata = %+v", m)
	}
	if m.TotalArguments != m.SideAArguments+m.SideBArguments {
		t.Fatal("total does not match per-side counters")
	}

	for i := 0; i < 3; i++ {
		if _, err := c.AddArgument(Argument{Side: SideA}, MaxArgumentsPerSide, now); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.AddArgument(Argument{Side: SideA}, MaxArgumentsPerSide, now); !errors.Is(err, ErrArgumentQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if c.ArgumentCount(SideA) != MaxArgumentsPerSide {
		t.Fatalf("side A count = %d", c.ArgumentCount(SideA))
	}
	if _, err := c.AddArgument(Argument{Side: SideB}, MaxArgumentsPerSide, now); err != nil {
		t.Fatalf("side B should still have quota: %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	desc := "plaintiff claims"
	c := NewCase("case_1", "t", "", "India", CaseTypeCivil, now)
	_ = c.AttachDocuments(SideA, &desc, []Document{doc("a")}, now)

	cp := c.Clone()
	cp.SideA.Documents[0].Filename = "changed"
	*cp.SideA.Description = "changed"
	if c.SideA.Documents[0].Filename != "a" || *c.SideA.Description != desc {
		t.Fatal("clone shares state with original")
	}
}

func TestParseSide(t *testing.T) {
	for _, raw := range []string{"A", "a", "side-a"} {
		if s, err := ParseSide(raw); err != nil || s != SideA {
			t.Fatalf("ParseSide(%q) = %v, %v", raw, s, err)
		}
	}
	if _, err := ParseSide("C"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewCaseID(t *testing.T) {
	id := NewCaseID()
	if !strings.HasPrefix(id, "case_") || len(strings.Split(id, "_")) != 3 {
		t.Fatalf("unexpected id %q", id)
	}
	if id == NewCaseID() {
		t.Fatal("ids should be unique")
	}
}

func TestParseDecision(t *testing.T) {
	cases := map[string]Decision{
		"favor_side_a":          DecisionFavorSideA,
		"Favor-Side-B":          DecisionFavorSideB,
		"split decision":        DecisionSplit,
		"insufficient_evidence": DecisionInsufficientEvidence,
	}
	for raw, want := range cases {
		got, ok := ParseDecision(raw)
		if !ok || got != want {
			t.Errorf("ParseDecision(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := ParseDecision("maybe"); ok {
		t.Error("unknown decision accepted")
	}
}

func TestBuildStatistics(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var summaries []CaseSummary
	for i := 0; i < 7; i++ {
		summaries = append(summaries, CaseSummary{
			CaseID:         string(rune('a' + i)),
			Status:         StatusCreated,
			Country:        "India",
			CaseType:       CaseTypeCivil,
			TotalArguments: i % 2,
			HasVerdict:     i%3 == 0,
			LastActivity:   base.Add(time.Duration(i) * time.Hour),
		})
	}

	stats := BuildStatistics(summaries)
	if stats.TotalCases != 7 || stats.StatusBreakdown["created"] != 7 || stats.CountryBreakdown["India"] != 7 {
		t.Fatalf("unexpected breakdowns: %+v", stats)
	}
	if stats.AverageArgumentsPerCase != 0.43 {
		t.Fatalf("average = %v", stats.AverageArgumentsPerCase)
	}
	if stats.CasesWithVerdict != 3 {
		t.Fatalf("casesWithVerdict = %d", stats.CasesWithVerdict)
	}
	if len(stats.RecentActivity) != RecentActivityLimit || stats.RecentActivity[0].CaseID != "g" {
		t.Fatalf("recent activity = %+v", stats.RecentActivity)
	}

	empty := BuildStatistics(nil)
	if empty.TotalCases != 0 || empty.AverageArgumentsPerCase != 0 || empty.RecentActivity == nil {
		t.Fatalf("empty stats = %+v", empty)
	}
}

func TestJSONBScan(t *testing.T) {
	var sub SideSubmission
	if err := sub.Scan([]byte(`{"description":"x","documents":[{"filename":"a"}]}`)); err != nil {
		t.Fatal(err)
	}
	if len(sub.Documents) != 1 || *sub.Description != "x" {
		t.Fatalf("scan = %+v", sub)
	}

	var args ArgumentList
	if err := args.Scan(`[]`); err != nil || args == nil {
		t.Fatalf("scan empty list = %v, %v", args, err)
	}
	if err := args.Scan(nil); err != nil || len(args) != 0 {
		t.Fatalf("scan nil = %v, %v", args, err)
	}
}
