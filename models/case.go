package models

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxArgumentsPerSide is the follow-up argument quota for each side of a case
const MaxArgumentsPerSide = 5

// CaseStatus represents the lifecycle state of a case.
// It is never set directly; see DeriveStatus.
type CaseStatus string

const (
	StatusCreated           CaseStatus = "created"
	StatusAwaitingDocuments CaseStatus = "awaiting_documents"
	StatusReadyForJudgment  CaseStatus = "ready_for_judgment"
	StatusVerdictRendered   CaseStatus = "verdict_rendered"
	StatusArgumentsPhase    CaseStatus = "arguments_phase"
)

// Valid reports whether s is a known status
func (s CaseStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusAwaitingDocuments, StatusReadyForJudgment, StatusVerdictRendered, StatusArgumentsPhase:
		return true
	}
	return false
}

// CaseType represents the legal area of a case
type CaseType string

const (
	CaseTypeCivil                CaseType = "civil"
	CaseTypeCriminal             CaseType = "criminal"
	CaseTypeConstitutional       CaseType = "constitutional"
	CaseTypeIntellectualProperty CaseType = "intellectual_property"
	CaseTypeFamily               CaseType = "family"
	CaseTypeCorporate            CaseType = "corporate"
	CaseTypeLabor                CaseType = "labor"
	CaseTypeAdministrative       CaseType = "administrative"
)

// Valid reports whether t is a known case type
func (t CaseType) Valid() bool {
	switch t {
	case CaseTypeCivil, CaseTypeCriminal, CaseTypeConstitutional, CaseTypeIntellectualProperty,
		CaseTypeFamily, CaseTypeCorporate, CaseTypeLabor, CaseTypeAdministrative:
		return true
	}
	return false
}

// Side identifies one of the two opposing parties
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// ParseSide accepts "A"/"B" in any case, as well as the "side-a"/"side-b" path form.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "a", "side-a", "sidea":
		return SideA, nil
	case "b", "side-b", "sideb":
		return SideB, nil
	}
	return "", Validationf("side must be either A or B")
}

// Valid reports whether s is A or B
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Label returns the courtroom role used in prompts
func (s Side) Label() string {
	if s == SideA {
		return "Plaintiff"
	}
	return "Defendant"
}

// Slug returns the path segment used for object storage keys
func (s Side) Slug() string {
	return "side-" + strings.ToLower(string(s))
}

// CaseMetadata holds argument counters and the last activity timestamp
type CaseMetadata struct {
	TotalArguments int       `json:"totalArguments"`
	SideAArguments int       `json:"sideAArguments"`
	SideBArguments int       `json:"sideBArguments"`
	LastActivity   time.Time `json:"lastActivity"`
}

// Value implements driver.Valuer for JSONB
func (m CaseMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB
func (m *CaseMetadata) Scan(value interface{}) error {
	bytes, ok := jsonBytes(value)
	if !ok {
		*m = CaseMetadata{}
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// SideSubmission is what one side has filed: a description and its documents
type SideSubmission struct {
	Description *string    `json:"description"`
	Documents   []Document `json:"documents"`
	UploadedAt  *time.Time `json:"uploadedAt"`
}

// HasDocuments reports whether at least one document was filed
func (s SideSubmission) HasDocuments() bool {
	return len(s.Documents) > 0
}

// Value implements driver.Valuer for JSONB
func (s SideSubmission) Value() (driver.Value, error) {
	if s.Documents == nil {
		s.Documents = []Document{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB
func (s *SideSubmission) Scan(value interface{}) error {
	bytes, ok := jsonBytes(value)
	if !ok {
		*s = SideSubmission{Documents: []Document{}}
		return nil
	}
	if err := json.Unmarshal(bytes, s); err != nil {
		return err
	}
	if s.Documents == nil {
		s.Documents = []Document{}
	}
	return nil
}

// Case is the root aggregate of the adjudication workflow
type Case struct {
	CaseID      string         `json:"caseId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Country     string         `json:"country"`
	CaseType    CaseType       `json:"caseType"`
	Status      CaseStatus     `json:"status"`
	SideA       SideSubmission `json:"sideA"`
	SideB       SideSubmission `json:"sideB"`
	Verdict     *Verdict       `json:"verdict"`
	Arguments   ArgumentList   `json:"arguments"`
	Metadata    CaseMetadata   `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// NewCaseID generates a fresh opaque case identifier
func NewCaseID() string {
	id := uuid.New()
	return fmt.Sprintf("case_%s_%d", hex.EncodeToString(id[:8]), time.Now().UnixMilli())
}

// NewCase returns an empty case with zeroed metadata
func NewCase(caseID, title, description, country string, caseType CaseType, now time.Time) *Case {
	if caseType == "" {
		caseType = CaseTypeCivil
	}
	c := &Case{
		CaseID:      caseID,
		Title:       title,
		Description: description,
		Country:     country,
		CaseType:    caseType,
		SideA:       SideSubmission{Documents: []Document{}},
		SideB:       SideSubmission{Documents: []Document{}},
		Arguments:   ArgumentList{},
		Metadata:    CaseMetadata{LastActivity: now},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.RefreshStatus()
	return c
}

// DeriveStatus computes the lifecycle state from the case's documents,
// verdict and arguments.
func DeriveStatus(c *Case) CaseStatus {
	if c.Verdict != nil {
		if len(c.Arguments) > c.Verdict.ArgumentsConsidered {
			return StatusArgumentsPhase
		}
		return StatusVerdictRendered
	}
	if len(c.Arguments) > 0 {
		return StatusArgumentsPhase
	}
	hasA, hasB := c.SideA.HasDocuments(), c.SideB.HasDocuments()
	switch {
	case hasA && hasB:
		return StatusReadyForJudgment
	case hasA || hasB:
		return StatusAwaitingDocuments
	default:
		return StatusCreated
	}
}

// RefreshStatus recomputes Status from the underlying fields
func (c *Case) RefreshStatus() {
	c.Status = DeriveStatus(c)
}

// Submission returns the submission for a side, or nil for an unknown side
func (c *Case) Submission(side Side) *SideSubmission {
	switch side {
	case SideA:
		return &c.SideA
	case SideB:
		return &c.SideB
	}
	return nil
}

// BothSidesFiled reports whether each side has at least one document
func (c *Case) BothSidesFiled() bool {
	return c.SideA.HasDocuments() && c.SideB.HasDocuments()
}

// ArgumentCount counts the arguments submitted by a side
func (c *Case) ArgumentCount(side Side) int {
	n := 0
	for _, arg := range c.Arguments {
		if arg.Side == side {
			n++
		}
	}
	return n
}

// AttachDocuments replaces a side's description and document set.
func (c *Case) AttachDocuments(side Side, description *string, docs []Document, now time.Time) error {
	sub := c.Submission(side)
	if sub == nil {
		return Validationf("side must be either A or B")
	}
	sub.Description = description
	sub.Documents = append([]Document{}, docs...)
	uploadedAt := now
	sub.UploadedAt = &uploadedAt
	c.touch(now)
	return nil
}

// RelocateDocument records a new location for the original of the document
// at index. expected is the document as the caller read it; if the side was
// resubmitted since, ErrDocumentReplaced is returned and nothing changes.
// Case activity is not touched.
func (c *Case) RelocateDocument(side Side, index int, expected Document, loc DocumentLocation, now time.Time) error {
	sub := c.Submission(side)
	if sub == nil {
		return Validationf("side must be either A or B")
	}
	if index < 0 || index >= len(sub.Documents) {
		return ErrDocumentReplaced
	}
	doc := &sub.Documents[index]
	if doc.Filename != expected.Filename || doc.Checksum != expected.Checksum || doc.StoragePath != expected.StoragePath {
		return ErrDocumentReplaced
	}
	doc.StoragePath = loc.StoragePath
	doc.FileURL = loc.FileURL
	doc.UploadedToCloud = loc.UploadedToCloud
	c.UpdatedAt = now
	return nil
}

// SetVerdict replaces the active verdict. Both sides must have filed documents.
func (c *Case) SetVerdict(v Verdict, now time.Time) error {
	if !c.BothSidesFiled() {
		return ErrDocumentsIncomplete
	}
	v.CaseID = c.CaseID
	v.Country = c.Country
	v.CaseType = c.CaseType
	v.ArgumentsConsidered = len(c.Arguments)
	if v.Timestamp.IsZero() {
		v.Timestamp = now
	}
	c.Verdict = &v
	c.touch(now)
	return nil
}

// AddArgument appends an argument, assigning its sequential id and per-side
// number. limit <= 0 disables the quota check.
func (c *Case) AddArgument(arg Argument, limit int, now time.Time) (Argument, error) {
	if !arg.Side.Valid() {
		return Argument{}, Validationf("side must be either A or B")
	}
	if c.Verdict == nil {
		return Argument{}, ErrJudgmentRequired
	}
	count := c.ArgumentCount(arg.Side)
	if limit > 0 && count >= limit {
		return Argument{}, ErrArgumentQuotaExceeded
	}
	arg.ID = fmt.Sprintf("arg_%d", len(c.Arguments)+1)
	arg.ArgumentNumber = count + 1
	if arg.Timestamp.IsZero() {
		arg.Timestamp = now
	}
	c.Arguments = append(c.Arguments, arg)
	c.recount()
	c.touch(now)
	return arg, nil
}

func (c *Case) recount() {
	c.Metadata.SideAArguments = c.ArgumentCount(SideA)
	c.Metadata.SideBArguments = c.ArgumentCount(SideB)
	c.Metadata.TotalArguments = c.Metadata.SideAArguments + c.Metadata.SideBArguments
}

func (c *Case) touch(now time.Time) {
	c.Metadata.LastActivity = now
	c.UpdatedAt = now
	c.RefreshStatus()
}

// Summary projects the case without document and argument bodies
func (c *Case) Summary() CaseSummary {
	lastActivity := c.Metadata.LastActivity
	if lastActivity.IsZero() {
		lastActivity = c.UpdatedAt
	}
	return CaseSummary{
		CaseID:         c.CaseID,
		Title:          c.Title,
		Status:         DeriveStatus(c),
		Country:        c.Country,
		CaseType:       c.CaseType,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		HasVerdict:     c.Verdict != nil,
		TotalArguments: c.Metadata.TotalArguments,
		LastActivity:   lastActivity,
	}
}

// Clone returns a deep copy so callers never share slices with a store
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	out.SideA = c.SideA.clone()
	out.SideB = c.SideB.clone()
	if c.Verdict != nil {
		v := c.Verdict.clone()
		out.Verdict = &v
	}
	out.Arguments = make(ArgumentList, len(c.Arguments))
	for i, arg := range c.Arguments {
		out.Arguments[i] = arg.clone()
	}
	return &out
}

func (s SideSubmission) clone() SideSubmission {
	out := s
	if s.Description != nil {
		d := *s.Description
		out.Description = &d
	}
	if s.UploadedAt != nil {
		t := *s.UploadedAt
		out.UploadedAt = &t
	}
	out.Documents = append([]Document{}, s.Documents...)
	return out
}

// jsonBytes normalizes the types pgx may hand to Scan for a JSONB column
func jsonBytes(value interface{}) ([]byte, bool) {
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil, false
	}
	if len(bytes) == 0 {
		return nil, false
	}
	return bytes, true
}

// Defaults for a case created implicitly by a document upload
const (
	PlaceholderDescription = "Auto-created case from document upload"
	PlaceholderCountry     = "United States"
)

// NewPlaceholderCase returns the case created under a caller-supplied id
// when documents arrive for an id that does not exist yet.
func NewPlaceholderCase(caseID string, now time.Time) *Case {
	return NewCase(caseID, "Case "+caseID, PlaceholderDescription, PlaceholderCountry, CaseTypeCivil, now)
}

// PrepareImport fills defaults on a case loaded from a fixture, assigns
// missing argument ids and numbers, and recomputes counters and status.
func (c *Case) PrepareImport(now time.Time) error {
	if strings.TrimSpace(c.CaseID) == "" || strings.TrimSpace(c.Title) == "" {
		return Validationf("caseId and title are required")
	}
	if c.CaseType == "" {
		c.CaseType = CaseTypeCivil
	}
	if !c.CaseType.Valid() {
		return Validationf("unknown case type %q", c.CaseType)
	}
	if c.SideA.Documents == nil {
		c.SideA.Documents = []Document{}
	}
	if c.SideB.Documents == nil {
		c.SideB.Documents = []Document{}
	}
	if c.Arguments == nil {
		c.Arguments = ArgumentList{}
	}

	perSide := map[Side]int{}
	for i := range c.Arguments {
		arg := &c.Arguments[i]
		if !arg.Side.Valid() {
			return Validationf("argument %d has invalid side %q", i+1, arg.Side)
		}
		perSide[arg.Side]++
		if arg.ID == "" {
			arg.ID = fmt.Sprintf("arg_%d", i+1)
		}
		if arg.ArgumentNumber == 0 {
			arg.ArgumentNumber = perSide[arg.Side]
		}
	}

	for _, side := range []Side{SideA, SideB} {
		if perSide[side] > MaxArgumentsPerSide {
			return Validationf("side %s has %d arguments, more than the limit of %d", side, perSide[side], MaxArgumentsPerSide)
		}
	}
	if c.Verdict != nil && !c.BothSidesFiled() {
		return Validationf("a verdict requires documents from both sides")
	}
	if len(c.Arguments) > 0 && c.Verdict == nil {
		return Validationf("arguments require a verdict")
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Metadata.LastActivity.IsZero() {
		c.Metadata.LastActivity = c.UpdatedAt
	}
	c.recount()
	c.RefreshStatus()
	return nil
}
