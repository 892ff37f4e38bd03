package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"post-ingest-pipeline/config"
	"post-ingest-pipeline/models"

	_ "github.com/go-sql-driver/mysql"
)

// Database wraps the MySQL connection used by the pipeline.
type Database struct {
	db *sql.DB
}

// NewDatabase opens the connection and waits for the server to come up.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry
	var waitInterval time.Duration = 1 * time.Second
	for {
		if err := db.Ping(); err == nil {
			break
		} else {
			log.Printf("Database connection failed, retrying in %v: %v", waitInterval, err)
		}
		time.Sleep(waitInterval)
		waitInterval *= 2
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying sql.DB for direct queries
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// rawPostColumns is the column list written on every upsert, in the order
// the value tuples are built by upsertArgs.
var rawPostColumns = []string{
	"platform", "platform_post_id", "account_handle", "account_follower_count",
	"pipeline_source", "media_type", "carousel_position", "image_urls",
	"caption", "hashtags", "like_count", "comment_count", "save_count",
	"share_count", "engagement_rate", "post_date", "scraped_at",
	"passed_engagement_filter",
}

// mutable fields overwritten when the natural key already exists. The
// identity columns and the surrogate id are deliberately absent.
var rawPostUpdateColumns = []string{
	"account_handle", "account_follower_count", "media_type",
	"carousel_position", "image_urls", "caption", "hashtags", "like_count",
	"comment_count", "save_count", "share_count", "engagement_rate",
	"scraped_at", "passed_engagement_filter",
}

// UpsertRawPosts bulk-writes canonical posts, conflict-resolved on
// (platform, platform_post_id). Re-delivery of the same webhook event is
// safe: an existing row keeps its id and gets its mutable fields refreshed.
// Any store error is surfaced verbatim; there is no partial commit.
func (d *Database) UpsertRawPosts(posts []models.RawPost) ([]models.RawPost, error) {
	if len(posts) == 0 {
		return []models.RawPost{}, nil
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(rawPostColumns)), ", ") + ")"
	placeholders := make([]string, 0, len(posts))
	args := make([]interface{}, 0, len(posts)*len(rawPostColumns))

	for i := range posts {
		postArgs, err := upsertArgs(&posts[i])
		if err != nil {
			return nil, err
		}
		placeholders = append(placeholders, placeholder)
		args = append(args, postArgs...)
	}

	updates := make([]string, 0, len(rawPostUpdateColumns)+1)
	for _, col := range rawPostUpdateColumns {
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", col, col))
	}
	// Only re-ingestion refreshes engagement counters, so the conflict
	// branch doubles as the refresh timestamp.
	updates = append(updates, "engagement_updated_at = CURRENT_TIMESTAMP")

	query := fmt.Sprintf(
		"INSERT INTO raw_posts (%s) VALUES %s ON DUPLICATE KEY UPDATE %s",
		strings.Join(rawPostColumns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	if _, err := d.db.Exec(query, args...); err != nil {
		return nil, fmt.Errorf("failed to upsert raw posts: %w", err)
	}

	return d.getRawPostsByKeys(posts)
}

func upsertArgs(p *models.RawPost) ([]interface{}, error) {
	imageURLs, err := json.Marshal(p.ImageURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image urls for %s: %w", p.PlatformPostID, err)
	}
	hashtags, err := json.Marshal(p.Hashtags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode hashtags for %s: %w", p.PlatformPostID, err)
	}

	return []interface{}{
		p.Platform, p.PlatformPostID, p.AccountHandle, p.AccountFollowerCount,
		p.PipelineSource, p.MediaType, p.CarouselPosition, string(imageURLs),
		p.Caption, string(hashtags), p.LikeCount, p.CommentCount, p.SaveCount,
		p.ShareCount, p.EngagementRate, p.PostDate, p.ScrapedAt,
		p.PassedEngagementFilter,
	}, nil
}

// getRawPostsByKeys re-reads the upserted rows so callers see the stored
// surrogate ids, preserving input order.
func (d *Database) getRawPostsByKeys(posts []models.RawPost) ([]models.RawPost, error) {
	tuples := make([]string, 0, len(posts))
	args := make([]interface{}, 0, len(posts)*2)
	for i := range posts {
		tuples = append(tuples, "(?, ?)")
		args = append(args, posts[i].Platform, posts[i].PlatformPostID)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM raw_posts WHERE (platform, platform_post_id) IN (%s)",
		selectRawPostColumns, strings.Join(tuples, ", "),
	)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read back upserted posts: %w", err)
	}
	defer rows.Close()

	byKey := make(map[string]models.RawPost, len(posts))
	for rows.Next() {
		post, err := scanRawPost(rows)
		if err != nil {
			return nil, err
		}
		byKey[string(post.Platform)+"\x00"+post.PlatformPostID] = *post
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upserted posts: %w", err)
	}

	out := make([]models.RawPost, 0, len(posts))
	for i := range posts {
		if stored, ok := byKey[string(posts[i].Platform)+"\x00"+posts[i].PlatformPostID]; ok {
			out = append(out, stored)
		}
	}
	return out, nil
}

const selectRawPostColumns = `id, platform, platform_post_id, account_handle,
	account_follower_count, pipeline_source, media_type, carousel_position,
	image_urls, caption, hashtags, like_count, comment_count, save_count,
	share_count, engagement_rate, post_date, scraped_at,
	engagement_updated_at, passed_engagement_filter, style_cluster`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRawPost(row rowScanner) (*models.RawPost, error) {
	var p models.RawPost
	var carouselPosition, saveCount, shareCount sql.NullInt64
	var styleCluster sql.NullString
	var engagementUpdatedAt sql.NullTime
	var imageURLs, hashtags string

	err := row.Scan(
		&p.ID, &p.Platform, &p.PlatformPostID, &p.AccountHandle,
		&p.AccountFollowerCount, &p.PipelineSource, &p.MediaType,
		&carouselPosition, &imageURLs, &p.Caption, &hashtags,
		&p.LikeCount, &p.CommentCount, &saveCount, &shareCount,
		&p.EngagementRate, &p.PostDate, &p.ScrapedAt,
		&engagementUpdatedAt, &p.PassedEngagementFilter, &styleCluster,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan raw post: %w", err)
	}

	if engagementUpdatedAt.Valid {
		p.EngagementUpdatedAt = &engagementUpdatedAt.Time
	}

	if carouselPosition.Valid {
		n := int(carouselPosition.Int64)
		p.CarouselPosition = &n
	}
	if saveCount.Valid {
		n := int(saveCount.Int64)
		p.SaveCount = &n
	}
	if shareCount.Valid {
		n := int(shareCount.Int64)
		p.ShareCount = &n
	}
	if styleCluster.Valid {
		p.StyleCluster = &styleCluster.String
	}
	if err := json.Unmarshal([]byte(imageURLs), &p.ImageURLs); err != nil {
		p.ImageURLs = []string{}
	}
	if err := json.Unmarshal([]byte(hashtags), &p.Hashtags); err != nil {
		p.Hashtags = []string{}
	}
	return &p, nil
}

// GetUnanalyzedCandidates returns posts that carry at least one image and
// have no analysis row yet, most recently scraped first. These are the
// inputs to the pre-filter preview.
func (d *Database) GetUnanalyzedCandidates() ([]models.RawPost, error) {
	query := fmt.Sprintf(`
	SELECT %s FROM raw_posts r
	WHERE r.image_urls != '[]'
	  AND r.id NOT IN (SELECT raw_post_id FROM analyzed_images)
	ORDER BY r.scraped_at DESC`, selectRawPostColumns)

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unanalyzed candidates: %w", err)
	}
	defer rows.Close()

	var posts []models.RawPost
	for rows.Next() {
		post, err := scanRawPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unanalyzed candidates: %w", err)
	}
	return posts, nil
}

// GetGlobalAvgEngagement computes the mean engagement rate over the whole
// unfiltered raw post corpus (known rates only). The analyzed subset is a
// biased sample, so trend output prefers this figure.
func (d *Database) GetGlobalAvgEngagement() (float64, error) {
	var avg sql.NullFloat64
	err := d.db.QueryRow(
		"SELECT AVG(engagement_rate) FROM raw_posts WHERE engagement_rate > 0").Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute global avg engagement: %w", err)
	}
	if avg.Valid {
		return avg.Float64, nil
	}
	return 0, nil
}

// GetEngagementThresholds reads the configured per-(tier, platform)
// minimum engagement rates.
func (d *Database) GetEngagementThresholds() ([]models.EngagementThreshold, error) {
	rows, err := d.db.Query(`
	SELECT follower_tier, platform, min_engagement_rate, sample_size, calculated_at
	FROM engagement_thresholds`)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement thresholds: %w", err)
	}
	defer rows.Close()

	var thresholds []models.EngagementThreshold
	for rows.Next() {
		var t models.EngagementThreshold
		if err := rows.Scan(&t.FollowerTier, &t.Platform, &t.MinEngagementRate,
			&t.SampleSize, &t.CalculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan engagement threshold: %w", err)
		}
		thresholds = append(thresholds, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating engagement thresholds: %w", err)
	}
	return thresholds, nil
}

// GetRecentAnalyzed returns the most recent analysis window, newest first.
// The overlay/brand columns are only selected when the schema has them.
func (d *Database) GetRecentAnalyzed(limit int, caps Capabilities) ([]models.AnalyzedImage, error) {
	cols := `id, raw_post_id, image_url, style, moment_category, setting,
	lighting, composition, content_type, camera_quality, is_candid,
	is_selfie, editorial_publishable, engagement_rate, follower_tier,
	review_status, analyzed_at`
	if caps.HasTextOverlay {
		cols += ", has_text_overlay, text_overlay_type"
	}
	if caps.HasBrandNames {
		cols += ", brand_logo_visible, brand_names"
	}

	query := fmt.Sprintf(
		"SELECT %s FROM analyzed_images ORDER BY analyzed_at DESC LIMIT ?", cols)

	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyzed window: %w", err)
	}
	defer rows.Close()

	var images []models.AnalyzedImage
	for rows.Next() {
		var img models.AnalyzedImage
		var brandNames sql.NullString
		var overlayType sql.NullString

		dest := []interface{}{
			&img.ID, &img.RawPostID, &img.ImageURL, &img.Style,
			&img.MomentCategory, &img.Setting, &img.Lighting, &img.Composition,
			&img.ContentType, &img.CameraQuality, &img.IsCandid, &img.IsSelfie,
			&img.EditorialPublishable, &img.EngagementRate, &img.FollowerTier,
			&img.ReviewStatus, &img.AnalyzedAt,
		}
		if caps.HasTextOverlay {
			dest = append(dest, &img.HasTextOverlay, &overlayType)
		}
		if caps.HasBrandNames {
			dest = append(dest, &img.BrandLogoVisible, &brandNames)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan analyzed image: %w", err)
		}
		img.TextOverlayType = overlayType.String
		if brandNames.Valid && brandNames.String != "" {
			if err := json.Unmarshal([]byte(brandNames.String), &img.BrandNames); err != nil {
				img.BrandNames = nil
			}
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyzed window: %w", err)
	}
	return images, nil
}

// InsertAnalyzedImage stores one vision result. Optional columns the
// current schema lacks are left out of the statement up front, per the
// detected capabilities, instead of retrying after a failed write. At most
// one analysis exists per post; a second write for the same raw_post_id
// refreshes it.
func (d *Database) InsertAnalyzedImage(img *models.AnalyzedImage, caps Capabilities) error {
	cols := []string{
		"raw_post_id", "image_url", "style", "moment_category", "setting",
		"lighting", "composition", "content_type", "camera_quality",
		"is_candid", "is_selfie", "editorial_publishable", "engagement_rate",
		"follower_tier", "review_status", "analyzed_at",
	}
	args := []interface{}{
		img.RawPostID, img.ImageURL, img.Style, img.MomentCategory,
		img.Setting, img.Lighting, img.Composition, img.ContentType,
		img.CameraQuality, img.IsCandid, img.IsSelfie,
		img.EditorialPublishable, img.EngagementRate, img.FollowerTier,
		img.ReviewStatus, img.AnalyzedAt,
	}

	if caps.HasTextOverlay {
		cols = append(cols, "has_text_overlay", "text_overlay_type")
		args = append(args, img.HasTextOverlay, img.TextOverlayType)
	}
	if caps.HasBrandNames {
		brandNames, err := json.Marshal(img.BrandNames)
		if err != nil {
			return fmt.Errorf("failed to encode brand names: %w", err)
		}
		cols = append(cols, "brand_logo_visible", "brand_names")
		args = append(args, img.BrandLogoVisible, string(brandNames))
	}

	updates := make([]string, 0, len(cols)-1)
	for _, col := range cols {
		if col == "raw_post_id" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", col, col))
	}

	query := fmt.Sprintf(
		"INSERT INTO analyzed_images (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(updates, ", "),
	)

	if _, err := d.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert analyzed image: %w", err)
	}
	return nil
}

// InsertActivityEvent appends one row to the ingest audit trail.
func (d *Database) InsertActivityEvent(eventType, message string) error {
	_, err := d.db.Exec(
		"INSERT INTO activity_events (type, message, ts) VALUES (?, ?, ?)",
		eventType, message, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert activity event: %w", err)
	}
	return nil
}

// GetPipelineStats collects the counters shown on /stats.
func (d *Database) GetPipelineStats(visionCostPerImage float64) (*models.PipelineStats, error) {
	var stats models.PipelineStats

	if err := d.db.QueryRow("SELECT COUNT(*) FROM raw_posts").Scan(&stats.TotalPostsScraped); err != nil {
		return nil, fmt.Errorf("failed to count raw posts: %w", err)
	}
	if err := d.db.QueryRow(
		"SELECT COUNT(*) FROM raw_posts WHERE DATE(scraped_at) = CURDATE()").Scan(&stats.PostsScrapedToday); err != nil {
		return nil, fmt.Errorf("failed to count today's posts: %w", err)
	}
	if err := d.db.QueryRow(
		"SELECT COUNT(*) FROM raw_posts WHERE passed_engagement_filter = FALSE").Scan(&stats.PostsFilteredOut); err != nil {
		return nil, fmt.Errorf("failed to count filtered posts: %w", err)
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM analyzed_images").Scan(&stats.TotalImagesAnalyzed); err != nil {
		return nil, fmt.Errorf("failed to count analyzed images: %w", err)
	}

	stats.PendingAnalysis = stats.TotalPostsScraped - stats.PostsFilteredOut - stats.TotalImagesAnalyzed
	if stats.PendingAnalysis < 0 {
		stats.PendingAnalysis = 0
	}
	stats.EstimatedVisionCost = float64(stats.TotalImagesAnalyzed) * visionCostPerImage

	return &stats, nil
}

// GetRawPostByID fetches one canonical post by surrogate id.
func (d *Database) GetRawPostByID(id int64) (*models.RawPost, error) {
	query := fmt.Sprintf("SELECT %s FROM raw_posts WHERE id = ?", selectRawPostColumns)
	post, err := scanRawPost(d.db.QueryRow(query, id))
	if err != nil {
		if strings.Contains(err.Error(), sql.ErrNoRows.Error()) {
			return nil, fmt.Errorf("raw post %d not found", id)
		}
		return nil, err
	}
	return post, nil
}
