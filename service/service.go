package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"post-ingest-pipeline/config"
	"post-ingest-pipeline/database"
	"post-ingest-pipeline/filters"
	"post-ingest-pipeline/ingest"
	"post-ingest-pipeline/metrics"
	"post-ingest-pipeline/models"
	"post-ingest-pipeline/rabbitmq"
	"post-ingest-pipeline/scraper"
	"post-ingest-pipeline/trends"
)

// Service orchestrates the ingest pipeline: payload resolution,
// normalization, the engagement gate, idempotent persistence, and the
// handoff of surviving posts to the vision-analysis queue.
type Service struct {
	config    *config.Config
	db        *database.Database
	scraper   *scraper.Client
	publisher *rabbitmq.Publisher
	hub       *Hub
	stopChan  chan bool

	mu        sync.RWMutex
	filterCfg *filters.Config
	caps      database.Capabilities
}

// NewService creates the pipeline service.
func NewService(cfg *config.Config, db *database.Database, hub *Hub) *Service {
	var publisher *rabbitmq.Publisher
	if cfg.RabbitMQ.Enabled {
		var err error
		publisher, err = rabbitmq.NewPublisher(
			cfg.RabbitMQ.GetAMQPURL(),
			cfg.RabbitMQ.Exchange,
			cfg.RabbitMQ.FilteredRoutingKey,
		)
		if err != nil {
			log.Printf("Failed to initialize RabbitMQ publisher: %v", err)
			// Continue without publisher - ingestion will still work
			publisher = nil
		}
	}

	return &Service{
		config:    cfg,
		db:        db,
		scraper:   scraper.NewClient(cfg),
		publisher: publisher,
		hub:       hub,
		stopChan:  make(chan bool),
	}
}

// Start prepares the schema, seeds default thresholds, detects which
// optional columns the store has, and loads the filter configuration.
func (s *Service) Start() error {
	log.Println("Starting post ingest pipeline service...")

	if err := s.db.CreateTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.db.SeedEngagementThresholds(); err != nil {
		return fmt.Errorf("failed to seed engagement thresholds: %w", err)
	}

	caps, err := s.db.DetectCapabilities()
	if err != nil {
		return fmt.Errorf("failed to detect schema capabilities: %w", err)
	}
	s.mu.Lock()
	s.caps = caps
	s.mu.Unlock()

	if err := s.ReloadFilterConfig(); err != nil {
		return err
	}

	return nil
}

// Stop shuts down the queue publisher and signals in-flight loops.
func (s *Service) Stop() {
	log.Println("Stopping post ingest pipeline service...")

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Printf("Failed to close RabbitMQ publisher: %v", err)
		}
	}

	close(s.stopChan)
}

// ReloadFilterConfig re-reads the engagement thresholds from the store.
// The recalculation job updates the table out of band, so callers can
// refresh without a restart.
func (s *Service) ReloadFilterConfig() error {
	rows, err := s.db.GetEngagementThresholds()
	if err != nil {
		return fmt.Errorf("failed to load engagement thresholds: %w", err)
	}

	thresholds := make(map[models.FollowerTier]map[models.Platform]float64)
	for _, t := range rows {
		if thresholds[t.FollowerTier] == nil {
			thresholds[t.FollowerTier] = make(map[models.Platform]float64)
		}
		thresholds[t.FollowerTier][t.Platform] = t.MinEngagementRate
	}

	s.mu.Lock()
	s.filterCfg = &filters.Config{
		AbsoluteMinEngagement: s.config.AbsoluteMinEngagement,
		MinLikesNoFollowers:   s.config.MinLikesNoFollowers,
		VisionCostPerImage:    s.config.VisionCostPerImage,
		Thresholds:            thresholds,
	}
	s.mu.Unlock()

	log.Printf("Loaded %d engagement threshold rows", len(rows))
	return nil
}

// FilterConfig returns the currently loaded gate configuration.
func (s *Service) FilterConfig() *filters.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterCfg
}

// Capabilities returns the detected schema capabilities.
func (s *Service) Capabilities() database.Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// IngestPayload resolves a webhook body into items and ingests them. A
// dataset-pointer payload triggers an out-of-band fetch first; a fetch
// failure is fatal to the attempt since no partial data exists to salvage.
func (s *Service) IngestPayload(ctx context.Context, body []byte) (*models.IngestResult, error) {
	envelope, err := ingest.ResolvePayload(body)
	if err != nil {
		return nil, err
	}

	items := envelope.Items
	if envelope.Kind == ingest.EnvelopeDatasetPointer {
		log.Printf("Ingest: fetching dataset %s...", envelope.DatasetID)
		items, err = s.scraper.FetchDatasetItems(ctx, envelope.DatasetID)
		if err != nil {
			return nil, err
		}
		log.Printf("Fetched %d items from dataset %s", len(items), envelope.DatasetID)
	}

	return s.IngestItems(ctx, items)
}

// IngestItems normalizes resolved items, runs the engagement gate over
// every post, upserts the batch, and queues the survivors for vision
// analysis.
func (s *Service) IngestItems(ctx context.Context, items []map[string]interface{}) (*models.IngestResult, error) {
	if len(items) == 0 {
		return &models.IngestResult{Success: true, Format: string(ingest.FormatPost), Message: "No items in payload"}, nil
	}

	now := time.Now().UTC()
	posts, format := ingest.Normalize(items, now)
	metrics.IngestedPostsTotal.WithLabelValues(string(format)).Add(float64(len(posts)))
	if format == ingest.FormatPost && len(items) > len(posts) {
		metrics.DroppedItemsTotal.Add(float64(len(items) - len(posts)))
	}

	if len(posts) == 0 {
		return &models.IngestResult{Success: true, Format: string(format), Message: "No valid posts found in items"}, nil
	}

	cfg := s.FilterConfig()
	for i := range posts {
		result := filters.Evaluate(&posts[i], cfg)
		posts[i].PassedEngagementFilter = result.PassedEngagement
		if result.ShouldAnalyze {
			metrics.FilterResultsTotal.WithLabelValues("analyze").Inc()
		} else {
			metrics.FilterResultsTotal.WithLabelValues("skip").Inc()
		}
	}

	start := time.Now()
	persisted, err := s.db.UpsertRawPosts(posts)
	if err != nil {
		return nil, err
	}
	metrics.UpsertDurationSeconds.Observe(time.Since(start).Seconds())

	s.publishFiltered(persisted)

	sourceNote := fmt.Sprintf("%d items", len(items))
	if format == ingest.FormatProfile {
		sourceNote = fmt.Sprintf("%d profiles", len(items))
	}
	message := fmt.Sprintf("%d posts ingested from %s", len(persisted), sourceNote)
	s.recordActivity("scrape_complete", fmt.Sprintf("Scraper ingest (%s): %s", format, message))

	return &models.IngestResult{
		Success: true,
		Count:   len(persisted),
		Format:  string(format),
		Message: message,
	}, nil
}

// publishFiltered hands posts that passed the gate to the vision queue,
// one at a time. The loop checks the stop flag between iterations so a
// shutdown doesn't wait on a long batch.
func (s *Service) publishFiltered(posts []models.RawPost) {
	if s.publisher == nil {
		return
	}

	for i := range posts {
		select {
		case <-s.stopChan:
			log.Printf("Stop requested, %d posts left unqueued", len(posts)-i)
			return
		default:
		}

		if !posts[i].PassedEngagementFilter || len(posts[i].ImageURLs) == 0 {
			continue
		}
		if err := s.publisher.Publish(posts[i]); err != nil {
			log.Printf("Failed to queue post %s for analysis: %v", posts[i].PlatformPostID, err)
			metrics.QueuePublishTotal.WithLabelValues("error").Inc()
			continue
		}
		metrics.QueuePublishTotal.WithLabelValues("ok").Inc()
	}
}

// recordActivity appends an audit event and broadcasts it to dashboard
// listeners. Auditing is best-effort and never fails the ingest.
func (s *Service) recordActivity(eventType, message string) {
	if err := s.db.InsertActivityEvent(eventType, message); err != nil {
		log.Printf("Failed to record activity event: %v", err)
	}
	if s.hub != nil {
		s.hub.Broadcast(eventType, message)
	}
}

// RecordAnalyzedImage persists one vision result delivered by the analysis
// worker, stamping the source post's engagement rate and follower tier so
// the trend engine never joins back to raw_posts.
func (s *Service) RecordAnalyzedImage(img *models.AnalyzedImage) error {
	post, err := s.db.GetRawPostByID(img.RawPostID)
	if err != nil {
		return err
	}

	img.EngagementRate = post.EngagementRate
	img.FollowerTier = ingest.FollowerTierFor(post.AccountFollowerCount)
	if img.ReviewStatus == "" {
		img.ReviewStatus = "unreviewed"
	}
	if img.AnalyzedAt.IsZero() {
		img.AnalyzedAt = time.Now().UTC()
	}

	if err := s.db.InsertAnalyzedImage(img, s.Capabilities()); err != nil {
		return err
	}

	s.recordActivity("analysis_complete",
		fmt.Sprintf("Vision analysis stored for post %d (@%s)", img.RawPostID, post.AccountHandle))
	return nil
}

// ComputeTrends loads the bounded analysis window and aggregates it. An
// empty window yields the explicit no-data result. The global average is
// best-effort: if the unfiltered corpus can't be read, the window's own
// mean is used instead.
func (s *Service) ComputeTrends() (*trends.LiveTrends, error) {
	start := time.Now()
	caps := s.Capabilities()

	records, err := s.db.GetRecentAnalyzed(s.config.TrendWindowSize, caps)
	if err != nil {
		return nil, err
	}

	globalAvg, err := s.db.GetGlobalAvgEngagement()
	if err != nil {
		log.Printf("Failed to compute global avg engagement: %v", err)
		globalAvg = 0
	}

	result := trends.Compute(records, globalAvg, trends.Capabilities{
		HasTextOverlay: caps.HasTextOverlay,
		HasBrandNames:  caps.HasBrandNames,
	}, s.config.TrendTopN)

	metrics.TrendComputeDurationSeconds.Observe(time.Since(start).Seconds())
	return &result, nil
}

// PipelineStats reports corpus counts and the vision spend so far.
func (s *Service) PipelineStats() (*models.PipelineStats, error) {
	return s.db.GetPipelineStats(s.config.VisionCostPerImage)
}

// Thresholds returns the per-tier, per-platform gate rows.
func (s *Service) Thresholds() ([]models.EngagementThreshold, error) {
	return s.db.GetEngagementThresholds()
}

// PreviewDetail is one row of the dry-run breakdown.
type PreviewDetail struct {
	Handle      string `json:"handle"`
	PostID      string `json:"post_id"`
	Source      string `json:"source"`
	Likes       int    `json:"likes"`
	Comments    int    `json:"comments"`
	Followers   int    `json:"followers"`
	Engagement  string `json:"engagement"`
	WillAnalyze bool   `json:"will_analyze"`
	SkipReason  string `json:"skip_reason,omitempty"`
}

// Preview is the dry-run response: what the gate would do to every
// unanalyzed candidate, without spending anything.
type Preview struct {
	UnanalyzedCandidates int             `json:"unanalyzed_candidates"`
	FilterStats          filters.Stats   `json:"filter_stats"`
	Details              []PreviewDetail `json:"details"`
}

// PreviewFilters dry-runs the engagement gate over all unanalyzed
// candidates. The detail list is capped for response size; the stats
// always cover the full candidate set.
func (s *Service) PreviewFilters() (*Preview, error) {
	candidates, err := s.db.GetUnanalyzedCandidates()
	if err != nil {
		return nil, err
	}

	cfg := s.FilterConfig()
	stats := filters.EvaluateBatch(candidates, cfg)

	limit := s.config.PreviewDetailLimit
	details := make([]PreviewDetail, 0, len(candidates))
	for i := range candidates {
		if limit > 0 && len(details) >= limit {
			break
		}
		result := filters.Evaluate(&candidates[i], cfg)
		details = append(details, PreviewDetail{
			Handle:      candidates[i].AccountHandle,
			PostID:      candidates[i].PlatformPostID,
			Source:      string(candidates[i].PipelineSource),
			Likes:       candidates[i].LikeCount,
			Comments:    candidates[i].CommentCount,
			Followers:   candidates[i].AccountFollowerCount,
			Engagement:  fmt.Sprintf("%.2f%%", candidates[i].EngagementRate*100),
			WillAnalyze: result.ShouldAnalyze,
			SkipReason:  result.SkipReason,
		})
	}

	return &Preview{
		UnanalyzedCandidates: len(candidates),
		FilterStats:          stats,
		Details:              details,
	}, nil
}
