package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"

	"post-ingest-pipeline/config"
	"post-ingest-pipeline/database"
	"post-ingest-pipeline/ingest"
	"post-ingest-pipeline/models"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func testService() *Service {
	cfg := &config.Config{
		AbsoluteMinEngagement: 0.005,
		MinLikesNoFollowers:   50,
		VisionCostPerImage:    0.025,
		TrendWindowSize:       2000,
		TrendTopN:             10,
		PreviewDetailLimit:    50,
	}
	return NewService(cfg, database.NewWithDB(db), nil)
}

func expectThresholdLoad() {
	rows := sqlmock.NewRows([]string{
		"follower_tier", "platform", "min_engagement_rate", "sample_size", "calculated_at",
	}).
		AddRow("micro", "instagram", 0.015, 0, time.Now()).
		AddRow("mid", "instagram", 0.008, 0, time.Now()).
		AddRow("established", "instagram", 0.004, 0, time.Now()).
		AddRow("major", "instagram", 0.002, 0, time.Now())
	mock.ExpectQuery(`SELECT follower_tier, platform, min_engagement_rate(.+)FROM engagement_thresholds`).
		WillReturnRows(rows)
}

var rawPostRowColumns = []string{
	"id", "platform", "platform_post_id", "account_handle",
	"account_follower_count", "pipeline_source", "media_type",
	"carousel_position", "image_urls", "caption", "hashtags", "like_count",
	"comment_count", "save_count", "share_count", "engagement_rate",
	"post_date", "scraped_at", "engagement_updated_at",
	"passed_engagement_filter", "style_cluster",
}

func TestIngestItems(t *testing.T) {
	it(func() {
		svc := testService()
		expectThresholdLoad()
		if err := svc.ReloadFilterConfig(); err != nil {
			t.Fatalf("failed to load filter config: %v", err)
		}

		// Three flat items: one with no identity (dropped by the
		// normalizer), one curated with no engagement signal (passes the
		// gate), one hashtag discovery with too few likes (fails).
		var items []map[string]interface{}
		payload := `[
			{"caption": "no id, dropped"},
			{"id": "c1", "pipelineSource": "curated", "displayUrl": "https://cdn/c1.jpg"},
			{"id": "h1", "likesCount": 10, "displayUrl": "https://cdn/h1.jpg"}
		]`
		if err := json.Unmarshal([]byte(payload), &items); err != nil {
			t.Fatalf("bad test payload: %v", err)
		}

		mock.ExpectExec(`INSERT INTO raw_posts (.+) ON DUPLICATE KEY UPDATE (.+)`).
			WillReturnResult(sqlmock.NewResult(1, 2))

		now := time.Now()
		rows := sqlmock.NewRows(rawPostRowColumns).
			AddRow(1, "instagram", "c1", "", 0, "curated", "image", nil,
				`["https://cdn/c1.jpg"]`, "", `[]`, 0, 0, nil, nil, 0, now, now, nil, true, nil).
			AddRow(2, "instagram", "h1", "", 0, "hashtag", "image", nil,
				`["https://cdn/h1.jpg"]`, "", `[]`, 10, 0, nil, nil, 0, now, now, nil, false, nil)
		mock.ExpectQuery(`SELECT (.+) FROM raw_posts WHERE \(platform, platform_post_id\) IN`).
			WillReturnRows(rows)

		mock.ExpectExec(`INSERT INTO activity_events`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		result, err := svc.IngestItems(context.Background(), items)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Success {
			t.Errorf("expected success")
		}
		if result.Count != 2 {
			t.Errorf("expected 2 ingested posts, got %d", result.Count)
		}
		if result.Format != string(ingest.FormatPost) {
			t.Errorf("expected post format, got %s", result.Format)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestIngestItemsEmpty(t *testing.T) {
	it(func() {
		svc := testService()

		result, err := svc.IngestItems(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Success || result.Count != 0 {
			t.Errorf("empty payload should succeed with zero count: %+v", result)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("no statements should run for an empty payload: %v", err)
		}
	})
}

func TestRecordAnalyzedImage(t *testing.T) {
	it(func() {
		svc := testService()
		now := time.Now()

		rows := sqlmock.NewRows(rawPostRowColumns).
			AddRow(42, "instagram", "p42", "chef_anna", 120000, "curated", "image",
				nil, `["https://cdn/p42.jpg"]`, "", `[]`, 900, 40, nil, nil,
				0.0078, now, now, nil, true, nil)
		mock.ExpectQuery(`SELECT (.+) FROM raw_posts WHERE id = \?`).
			WithArgs(int64(42)).
			WillReturnRows(rows)

		mock.ExpectExec(`INSERT INTO analyzed_images (.+) ON DUPLICATE KEY UPDATE (.+)`).
			WillReturnResult(sqlmock.NewResult(7, 1))
		mock.ExpectExec(`INSERT INTO activity_events`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		img := &models.AnalyzedImage{
			RawPostID: 42,
			ImageURL:  "https://cdn/p42.jpg",
			Style:     "editorial",
			IsCandid:  true,
		}
		if err := svc.RecordAnalyzedImage(img); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if img.EngagementRate != 0.0078 {
			t.Errorf("source post engagement not stamped, got %v", img.EngagementRate)
		}
		if string(img.FollowerTier) != "established" {
			t.Errorf("expected established tier for 120k followers, got %s", img.FollowerTier)
		}
		if img.ReviewStatus != "unreviewed" {
			t.Errorf("expected default review status, got %s", img.ReviewStatus)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestPreviewFilters(t *testing.T) {
	it(func() {
		svc := testService()
		expectThresholdLoad()
		if err := svc.ReloadFilterConfig(); err != nil {
			t.Fatalf("failed to load filter config: %v", err)
		}

		now := time.Now()
		rows := sqlmock.NewRows(rawPostRowColumns).
			AddRow(1, "instagram", "p1", "a", 5000, "hashtag", "image", nil,
				`["u1"]`, "", `[]`, 200, 10, nil, nil, 0.042, now, now, nil, false, nil).
			AddRow(2, "instagram", "p2", "b", 5000, "hashtag", "image", nil,
				`["u2"]`, "", `[]`, 30, 2, nil, nil, 0.0064, now, now, nil, false, nil)
		mock.ExpectQuery(`SELECT (.+) FROM raw_posts r\s+WHERE r.image_urls != '\[\]'`).
			WillReturnRows(rows)

		preview, err := svc.PreviewFilters()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if preview.UnanalyzedCandidates != 2 {
			t.Errorf("expected 2 candidates, got %d", preview.UnanalyzedCandidates)
		}
		if preview.FilterStats.WillAnalyze != 1 || preview.FilterStats.WillSkip != 1 {
			t.Errorf("expected 1 analyze / 1 skip, got %+v", preview.FilterStats)
		}
		if len(preview.Details) != 2 {
			t.Fatalf("expected 2 detail rows, got %d", len(preview.Details))
		}
		if !preview.Details[0].WillAnalyze {
			t.Errorf("p1 at 4.2%% on a micro account should pass")
		}
		if preview.Details[1].WillAnalyze || preview.Details[1].SkipReason == "" {
			t.Errorf("p2 below the micro threshold should be skipped with a reason")
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}
