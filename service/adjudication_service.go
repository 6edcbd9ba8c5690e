package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aijudge-backend/models"

	"go.uber.org/zap"
)

const (
	// PreviewLimit caps the characters of each document embedded in a prompt
	PreviewLimit    = 2000
	truncatedMarker = "... [truncated]"

	SummaryFailedText = "Case summary generation failed."
)

// AdjudicationService builds prompts from case state, queries the
// reasoning engine and turns its output into verdicts and responses.
type AdjudicationService struct {
	engine ReasoningEngine
	logger *zap.Logger
	now    func() time.Time
}

// AdjudicationServiceOption is a functional option for AdjudicationService
type AdjudicationServiceOption func(*AdjudicationService)

// AdjudicationWithEngine sets the reasoning engine
func AdjudicationWithEngine(engine ReasoningEngine) AdjudicationServiceOption {
	return func(s *AdjudicationService) {
		s.engine = engine
	}
}

// AdjudicationWithLogger sets the logger
func AdjudicationWithLogger(logger *zap.Logger) AdjudicationServiceOption {
	return func(s *AdjudicationService) {
		s.logger = logger
	}
}

// NewAdjudicationService creates a new adjudication service
func NewAdjudicationService(opts ...AdjudicationServiceOption) *AdjudicationService {
	s := &AdjudicationService{
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerdictResult is a parsed verdict plus how it was obtained
type VerdictResult struct {
	Verdict models.Verdict
	Outcome ParseOutcome
	Raw     string
}

// ArgumentResponseResult is a parsed argument response plus how it was obtained
type ArgumentResponseResult struct {
	Response models.ArgumentResponse
	Outcome  ParseOutcome
	Raw      string
}

// RenderVerdict asks the engine for a verdict on c. Unparseable output
// degrades to a fallback verdict; only engine failures are returned.
func (s *AdjudicationService) RenderVerdict(ctx context.Context, c *models.Case) (*VerdictResult, error) {
	if !c.BothSidesFiled() {
		return nil, models.ErrDocumentsIncomplete
	}

	raw, err := s.generate(ctx, BuildVerdictPrompt(c))
	if err != nil {
		return nil, err
	}

	verdict, outcome := ParseVerdict(raw)
	verdict.Timestamp = s.now()
	verdict.CaseID = c.CaseID
	verdict.Country = c.Country
	verdict.CaseType = c.CaseType

	if outcome == OutcomeFallback {
		s.logger.Warn("Verdict response was not structured; using fallback",
			zap.String("case_id", c.CaseID),
			zap.Int("response_chars", len(raw)))
	}
	return &VerdictResult{Verdict: verdict, Outcome: outcome, Raw: raw}, nil
}

// RespondToArgument asks the engine to answer a new argument from side
func (s *AdjudicationService) RespondToArgument(ctx context.Context, c *models.Case, side models.Side, argument string) (*ArgumentResponseResult, error) {
	if c.Verdict == nil {
		return nil, models.ErrJudgmentRequired
	}
	if !side.Valid() {
		return nil, models.Validationf("side must be either A or B")
	}

	raw, err := s.generate(ctx, BuildArgumentPrompt(c, side, argument))
	if err != nil {
		return nil, err
	}

	resp, outcome := ParseArgumentResponse(raw)
	resp.Timestamp = s.now()
	resp.Side = side
	resp.OriginalArgument = argument

	if outcome == OutcomeFallback {
		s.logger.Warn("Argument response was not structured; using fallback",
			zap.String("case_id", c.CaseID),
			zap.String("side", string(side)))
	}
	return &ArgumentResponseResult{Response: resp, Outcome: outcome, Raw: raw}, nil
}

// SummarizeCase returns a short summary of the dispute. Engine errors
// degrade to SummaryFailedText; an unconfigured engine is reported.
func (s *AdjudicationService) SummarizeCase(ctx context.Context, c *models.Case) (string, error) {
	raw, err := s.generate(ctx, BuildSummaryPrompt(c))
	if errors.Is(err, ErrReasoningEngineUnavailable) {
		return "", err
	}
	if err != nil {
		s.logger.Warn("Case summary generation failed", zap.String("case_id", c.CaseID), zap.Error(err))
		return SummaryFailedText, nil
	}
	return strings.TrimSpace(raw), nil
}

func (s *AdjudicationService) generate(ctx context.Context, prompt string) (string, error) {
	if s.engine == nil || !s.engine.Configured() {
		return "", ErrReasoningEngineUnavailable
	}

	start := time.Now()
	raw, err := s.engine.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrReasoningEngineUnavailable) || errors.Is(err, ErrReasoningEngineError) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrReasoningEngineError, err)
	}
	s.logger.Debug("Reasoning engine responded",
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(raw)),
		zap.Duration("elapsed", time.Since(start)))
	return raw, nil
}

// BuildVerdictPrompt renders the judgment prompt for c
func BuildVerdictPrompt(c *models.Case) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an experienced AI Judge trained on the legal system of %s. You are presiding over a %s case: \"%s\".\n\n", c.Country, c.CaseType, c.Title)
	fmt.Fprintf(&b, "CASE DESCRIPTION:\n%s\n\n", c.Description)
	fmt.Fprintf(&b, "CASE TYPE: %s\nJURISDICTION: %s\n\n", c.CaseType, c.Country)

	writeSubmission(&b, "PLAINTIFF/SIDE A SUBMISSIONS", c.SideA)
	b.WriteString("\n")
	writeSubmission(&b, "DEFENDANT/SIDE B SUBMISSIONS", c.SideB)

	fmt.Fprintf(&b, `
INSTRUCTIONS:
As an AI Judge, you must:
1. Analyze all evidence and arguments from both sides objectively
2. Apply the relevant laws and legal principles of %s
3. Consider precedents and established legal doctrines
4. Provide a fair and reasoned judgment
5. Explain your legal reasoning clearly
6. Be open to reconsideration if compelling new arguments are presented

Please provide your initial verdict in the following JSON format:
{
  "decision": "favor_side_a" | "favor_side_b" | "split_decision" | "insufficient_evidence",
  "reasoning": "Detailed explanation of your legal reasoning and analysis",
  "keyFindings": ["List of key factual findings that influenced your decision"],
  "legalPrinciples": ["Relevant laws, statutes, or legal principles applied"],
  "damages": "If applicable, any damages or remedies awarded",
  "notes": "Any additional judicial notes or considerations",
  "confidence": 0.0-1.0,
  "openToReconsideration": true/false
}

Render your verdict based on the evidence presented, applying %s law and legal standards.`, c.Country, c.Country)
	return b.String()
}

// BuildArgumentPrompt renders the prompt answering a new argument from side
func BuildArgumentPrompt(c *models.Case, side models.Side, argument string) string {
	decision, reasoning := "Not yet decided", "No initial reasoning available"
	if c.Verdict != nil {
		if c.Verdict.Decision != "" {
			decision = string(c.Verdict.Decision)
		}
		if c.Verdict.Reasoning != "" {
			reasoning = c.Verdict.Reasoning
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the AI Judge in the case: \"%s\"\n\n", c.Title)
	fmt.Fprintf(&b, "CURRENT VERDICT SUMMARY:\nDecision: %s\nReasoning: %s\n\n", decision, reasoning)
	fmt.Fprintf(&b, "PREVIOUS ARGUMENTS IN THIS CASE:\n%s\n\n", formatPreviousArguments(c.Arguments))
	fmt.Fprintf(&b, "NEW ARGUMENT FROM %s (SIDE %s):\n\"%s\"\n", strings.ToUpper(side.Label()), side, argument)

	fmt.Fprintf(&b, `
INSTRUCTIONS:
1. Consider this new argument in the context of your previous verdict
2. Analyze if this argument presents new evidence, legal precedent, or reasoning
3. Determine if this argument warrants modification of your initial verdict
4. Apply %s legal standards and principles
5. Maintain judicial impartiality and objectivity
6. Be open to changing your mind if the argument is compelling and legally sound

Please respond in the following JSON format:
{
  "response": "Your detailed judicial response to this argument",
  "verdictChange": "none" | "minor_modification" | "significant_change" | "reversal",
  "newReasoning": "If verdict changed, explain the new reasoning",
  "addressedPoints": ["Specific points from the argument you addressed"],
  "remainingConcerns": ["Any concerns or questions still outstanding"],
  "legalCitations": ["Any relevant laws, cases, or precedents referenced"],
  "confidence": 0.0-1.0,
  "requestsClarification": "Any clarification needed from either side"
}

Judge this argument fairly and thoroughly, demonstrating the careful consideration expected in %s courts.`, c.Country, c.Country)
	return b.String()
}

// BuildSummaryPrompt renders the short case summary prompt
func BuildSummaryPrompt(c *models.Case) string {
	return fmt.Sprintf(`Provide a concise legal summary of this case:

Case: %s
Type: %s
Jurisdiction: %s

Description: %s

Summarize in 2-3 sentences the core legal issues and disputes involved.`, c.Title, c.CaseType, c.Country, c.Description)
}

func writeSubmission(b *strings.Builder, heading string, sub models.SideSubmission) {
	description := "No description provided"
	if sub.Description != nil && strings.TrimSpace(*sub.Description) != "" {
		description = *sub.Description
	}
	fmt.Fprintf(b, "%s:\nDescription: %s\nDocuments and Evidence:\n%s\n", heading, description, formatDocuments(sub.Documents))
}

func formatDocuments(docs []models.Document) string {
	if len(docs) == 0 {
		return "No documents submitted."
	}
	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		parts = append(parts, fmt.Sprintf("Document %d: %s\nContent Preview: %s\n---", i+1, doc.Filename, Truncate(doc.ExtractedText, PreviewLimit)))
	}
	return strings.Join(parts, "\n\n")
}

func formatPreviousArguments(args []models.Argument) string {
	if len(args) == 0 {
		return "No previous arguments in this case."
	}
	parts := make([]string, 0, len(args))
	for i, arg := range args {
		response := arg.AIResponse.Response
		if response == "" {
			response = "No response recorded"
		}
		parts = append(parts, fmt.Sprintf("Argument %d - %s:\n\"%s\"\n\nAI Judge Response:\n%s\n---", i+1, arg.Side.Label(), arg.Argument, response))
	}
	return strings.Join(parts, "\n\n")
}

// Truncate shortens text to at most limit characters plus a marker. The
// cut moves back to the last space when that keeps over 80% of the limit.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := runes[:limit]
	if i := lastSpace(cut); i > limit*8/10 {
		cut = cut[:i]
	}
	return string(cut) + truncatedMarker
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
