package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the HTTP API on r
func RegisterRoutes(r *gin.Engine, cases *CaseHandler, documents *DocumentHandler, events *EventsHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		// Case endpoints
		api.POST("/cases", cases.CreateCase)
		api.GET("/cases", cases.ListCases)
		api.GET("/cases/search", cases.SearchCases)
		api.GET("/cases/stats", cases.GetStatistics)
		api.GET("/stats", cases.GetStatistics)
		api.GET("/cases/:caseId", cases.GetCase)
		api.DELETE("/cases/:caseId", cases.DeleteCase)
		api.GET("/cases/:caseId/summary", cases.SummarizeCase)

		// Judgment endpoints
		api.POST("/cases/:caseId/judge", cases.RenderVerdict)
		api.POST("/cases/:caseId/argue", cases.SubmitArgument)

		// Document endpoints
		api.POST("/cases/:caseId/documents/:side", documents.UploadDocuments)
		api.GET("/cases/:caseId/documents/:side/:index", documents.DownloadDocument)

		if events != nil {
			api.GET("/events", events.Stream)
		}
	}
}
