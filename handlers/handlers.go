package handlers

import (
	"io"
	"log"
	"net/http"

	"post-ingest-pipeline/config"
	"post-ingest-pipeline/models"
	"post-ingest-pipeline/service"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the pipeline over HTTP.
type Handlers struct {
	service *service.Service
	config  *config.Config
}

// NewHandlers creates HTTP handlers backed by the given service.
func NewHandlers(svc *service.Service, cfg *config.Config) *Handlers {
	return &Handlers{
		service: svc,
		config:  cfg,
	}
}

// ScraperWebhook receives scraper run-finished callbacks. The body may be a
// dataset pointer, a bare item array, or a wrapped item list.
func (h *Handlers) ScraperWebhook(c *gin.Context) {
	if h.config.WebhookSecret != "" {
		if c.GetHeader("X-Webhook-Secret") != h.config.WebhookSecret {
			log.Println("Webhook rejected: bad or missing secret")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	result, err := h.service.IngestPayload(c.Request.Context(), body)
	if err != nil {
		log.Printf("Webhook ingest failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// FetchResultsRequest names a dataset to pull and ingest on demand.
type FetchResultsRequest struct {
	DatasetID string `json:"dataset_id" binding:"required"`
}

// FetchResults manually ingests a scraper dataset, for replays and runs
// whose webhook delivery was missed.
func (h *Handlers) FetchResults(c *gin.Context) {
	var req FetchResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dataset_id is required"})
		return
	}

	body := []byte(`{"resource":{"defaultDatasetId":"` + req.DatasetID + `"}}`)
	result, err := h.service.IngestPayload(c.Request.Context(), body)
	if err != nil {
		log.Printf("Manual fetch of dataset %s failed: %v", req.DatasetID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// AnalyzePreview dry-runs the engagement gate over unanalyzed candidates.
func (h *Handlers) AnalyzePreview(c *gin.Context) {
	preview, err := h.service.PreviewFilters()
	if err != nil {
		log.Printf("Filter preview failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preview)
}

// RecordAnalyzed stores one vision result from the analysis worker.
func (h *Handlers) RecordAnalyzed(c *gin.Context) {
	var img models.AnalyzedImage
	if err := c.ShouldBindJSON(&img); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analyzed image payload"})
		return
	}
	if img.RawPostID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "raw_post_id is required"})
		return
	}

	if err := h.service.RecordAnalyzedImage(&img); err != nil {
		log.Printf("Failed to record analyzed image for post %d: %v", img.RawPostID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": img.ID})
}

// Trends aggregates the recent analysis window.
func (h *Handlers) Trends(c *gin.Context) {
	result, err := h.service.ComputeTrends()
	if err != nil {
		log.Printf("Trend computation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stats reports pipeline counters and the accumulated vision spend.
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := h.service.PipelineStats()
	if err != nil {
		log.Printf("Stats query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Thresholds lists the active engagement gate configuration.
func (h *Handlers) Thresholds(c *gin.Context) {
	rows, err := h.service.Thresholds()
	if err != nil {
		log.Printf("Threshold query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thresholds": rows})
}

// ReloadThresholds re-reads gate thresholds from the store, picking up
// out-of-band recalculations without a restart.
func (h *Handlers) ReloadThresholds(c *gin.Context) {
	if err := h.service.ReloadFilterConfig(); err != nil {
		log.Printf("Threshold reload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "post-ingest-pipeline",
	})
}
