package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aijudge-backend/models"
	"aijudge-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CaseHandler handles HTTP requests for cases, judgments and arguments
type CaseHandler struct {
	caseService *service.CaseService
	logger      *zap.Logger
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(caseService *service.CaseService, logger *zap.Logger) *CaseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseHandler{
		caseService: caseService,
		logger:      logger,
	}
}

// CreateCaseRequest represents the request body for opening a case
type CreateCaseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Country     string `json:"country"`
	CaseType    string `json:"caseType"`
}

// CreateCase handles POST /api/cases
func (h *CaseHandler) CreateCase(c *gin.Context) {
	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	created, err := h.caseService.CreateCase(c.Request.Context(), service.CreateCaseRequest{
		Title:       req.Title,
		Description: req.Description,
		Country:     req.Country,
		CaseType:    models.CaseType(strings.ToLower(strings.TrimSpace(req.CaseType))),
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusCreated, gin.H{
		"message": "Case created successfully",
		"caseId":  created.CaseID,
		"case":    created,
	})
}

// ListCases handles GET /api/cases
func (h *CaseHandler) ListCases(c *gin.Context) {
	cases, err := h.caseService.ListCases(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, cases)
}

// SearchCases handles GET /api/cases/search
func (h *CaseHandler) SearchCases(c *gin.Context) {
	criteria, err := parseSearchCriteria(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	cases, err := h.caseService.SearchCases(c.Request.Context(), criteria)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, cases)
}

func parseSearchCriteria(c *gin.Context) (models.SearchCriteria, error) {
	criteria := models.SearchCriteria{
		Status:   models.CaseStatus(c.Query("status")),
		Country:  c.Query("country"),
		CaseType: models.CaseType(c.Query("caseType")),
		Title:    c.Query("title"),
		Query:    c.Query("q"),
	}

	if raw := c.Query("hasVerdict"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return criteria, fmt.Errorf("hasVerdict must be true or false")
		}
		criteria.HasVerdict = &v
	}
	for name, target := range map[string]**time.Time{
		"activeAfter":  &criteria.ActiveAfter,
		"activeBefore": &criteria.ActiveBefore,
	} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return criteria, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
		}
		*target = &t
	}
	for name, target := range map[string]*int{
		"limit":  &criteria.Limit,
		"offset": &criteria.Offset,
	} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return criteria, fmt.Errorf("%s must be a non-negative integer", name)
		}
		*target = n
	}
	return criteria, nil
}

// GetStatistics handles GET /api/cases/stats and GET /api/stats
func (h *CaseHandler) GetStatistics(c *gin.Context) {
	stats, err := h.caseService.GetStatistics(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// GetCase handles GET /api/cases/:caseId
func (h *CaseHandler) GetCase(c *gin.Context) {
	found, err := h.caseService.GetCase(c.Request.Context(), c.Param("caseId"))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, found)
}

// DeleteCase handles DELETE /api/cases/:caseId
func (h *CaseHandler) DeleteCase(c *gin.Context) {
	caseID := c.Param("caseId")
	if err := h.caseService.DeleteCase(c.Request.Context(), caseID); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"message": "Case deleted successfully",
		"caseId":  caseID,
	})
}

// RenderVerdict handles POST /api/cases/:caseId/judge
func (h *CaseHandler) RenderVerdict(c *gin.Context) {
	result, err := h.caseService.RenderVerdict(c.Request.Context(), c.Param("caseId"))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"message": "Verdict rendered successfully",
		"caseId":  result.Case.CaseID,
		"status":  result.Case.Status,
		"verdict": result.Verdict,
	})
}

// SubmitArgumentRequest represents the request body for a follow-up argument
type SubmitArgumentRequest struct {
	Side     string `json:"side"`
	Argument string `json:"argument"`
}

// SubmitArgument handles POST /api/cases/:caseId/argue
func (h *CaseHandler) SubmitArgument(c *gin.Context) {
	var req SubmitArgumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.Side) == "" || strings.TrimSpace(req.Argument) == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Side and argument are required")
		return
	}
	side, err := models.ParseSide(req.Side)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	result, err := h.caseService.SubmitArgument(c.Request.Context(), service.SubmitArgumentRequest{
		CaseID:   c.Param("caseId"),
		Side:     side,
		Argument: req.Argument,
	})
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"message":            "Argument submitted successfully",
		"caseId":             result.CaseID,
		"side":               result.Side,
		"argumentNumber":     result.ArgumentNumber,
		"argument":           result.Argument,
		"aiResponse":         result.AIResponse,
		"remainingArguments": result.RemainingArguments,
	})
}

// SummarizeCase handles GET /api/cases/:caseId/summary
func (h *CaseHandler) SummarizeCase(c *gin.Context) {
	caseID := c.Param("caseId")
	summary, err := h.caseService.SummarizeCase(c.Request.Context(), caseID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"caseId":  caseID,
		"summary": summary,
	})
}
