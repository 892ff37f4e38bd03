package database

import (
	"fmt"
	"log"

	"post-ingest-pipeline/models"
)

// Capabilities records which optional analyzed_images columns exist in the
// current schema. Detected once at startup and consulted before every write
// and window read, so a schema predating the overlay/brand tagging
// extension degrades cleanly instead of failing inserts.
type Capabilities struct {
	HasTextOverlay bool
	HasBrandNames  bool
}

// CreateTables creates the pipeline tables if they don't exist.
func (d *Database) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS raw_posts (
			id BIGINT NOT NULL AUTO_INCREMENT,
			platform ENUM('instagram', 'tiktok') NOT NULL DEFAULT 'instagram',
			platform_post_id VARCHAR(255) NOT NULL,
			account_handle VARCHAR(255) NOT NULL DEFAULT '',
			account_follower_count INT NOT NULL DEFAULT 0,
			pipeline_source ENUM('curated', 'hashtag') NOT NULL DEFAULT 'hashtag',
			media_type ENUM('image', 'carousel', 'video', 'reel') NOT NULL DEFAULT 'image',
			carousel_position INT NULL,
			image_urls JSON NOT NULL,
			caption TEXT,
			hashtags JSON NOT NULL,
			like_count INT NOT NULL DEFAULT 0,
			comment_count INT NOT NULL DEFAULT 0,
			save_count INT NULL,
			share_count INT NULL,
			engagement_rate DOUBLE NOT NULL DEFAULT 0,
			post_date TIMESTAMP NULL,
			scraped_at TIMESTAMP NULL,
			engagement_updated_at TIMESTAMP NULL,
			passed_engagement_filter BOOLEAN NOT NULL DEFAULT FALSE,
			style_cluster VARCHAR(255) NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_platform_post (platform, platform_post_id),
			INDEX idx_raw_posts_scraped_at (scraped_at),
			INDEX idx_raw_posts_filter (passed_engagement_filter)
		)`,
		`CREATE TABLE IF NOT EXISTS analyzed_images (
			id BIGINT NOT NULL AUTO_INCREMENT,
			raw_post_id BIGINT NOT NULL,
			image_url TEXT,
			style VARCHAR(64) NOT NULL DEFAULT '',
			moment_category VARCHAR(64) NOT NULL DEFAULT '',
			setting VARCHAR(64) NOT NULL DEFAULT '',
			lighting VARCHAR(64) NOT NULL DEFAULT '',
			composition VARCHAR(64) NOT NULL DEFAULT '',
			content_type VARCHAR(64) NOT NULL DEFAULT '',
			camera_quality VARCHAR(64) NOT NULL DEFAULT '',
			is_candid BOOLEAN NOT NULL DEFAULT FALSE,
			is_selfie BOOLEAN NOT NULL DEFAULT FALSE,
			editorial_publishable BOOLEAN NOT NULL DEFAULT FALSE,
			engagement_rate DOUBLE NOT NULL DEFAULT 0,
			follower_tier ENUM('micro', 'mid', 'established', 'major') NOT NULL DEFAULT 'micro',
			review_status ENUM('unreviewed', 'approved', 'rejected') NOT NULL DEFAULT 'unreviewed',
			analyzed_at TIMESTAMP NULL,
			has_text_overlay BOOLEAN NOT NULL DEFAULT FALSE,
			text_overlay_type VARCHAR(64) NOT NULL DEFAULT 'none',
			brand_logo_visible BOOLEAN NOT NULL DEFAULT FALSE,
			brand_names JSON NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_raw_post (raw_post_id),
			INDEX idx_analyzed_images_analyzed_at (analyzed_at),
			INDEX idx_analyzed_images_review (review_status)
		)`,
		`CREATE TABLE IF NOT EXISTS engagement_thresholds (
			follower_tier ENUM('micro', 'mid', 'established', 'major') NOT NULL,
			platform ENUM('instagram', 'tiktok') NOT NULL,
			min_engagement_rate DOUBLE NOT NULL,
			sample_size INT NOT NULL DEFAULT 0,
			calculated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (follower_tier, platform)
		)`,
		`CREATE TABLE IF NOT EXISTS activity_events (
			id BIGINT NOT NULL AUTO_INCREMENT,
			type VARCHAR(64) NOT NULL,
			message TEXT,
			ts TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			INDEX idx_activity_events_ts (ts)
		)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("pipeline tables created/verified successfully")
	return nil
}

// defaultThresholds are the seed minimum engagement rates per tier. They
// are P25-style benchmarks; a recalculation job replaces them once enough
// real data exists.
var defaultThresholds = map[models.FollowerTier]float64{
	models.TierMicro:       0.015,
	models.TierMid:         0.008,
	models.TierEstablished: 0.004,
	models.TierMajor:       0.002,
}

// SeedEngagementThresholds inserts the default thresholds for every
// (tier, platform) pair that has no row yet. Existing rows, including
// recalculated ones, are left untouched.
func (d *Database) SeedEngagementThresholds() error {
	platforms := []models.Platform{models.PlatformInstagram, models.PlatformTikTok}
	for tier, rate := range defaultThresholds {
		for _, platform := range platforms {
			_, err := d.db.Exec(`
			INSERT IGNORE INTO engagement_thresholds
				(follower_tier, platform, min_engagement_rate, sample_size)
			VALUES (?, ?, ?, 0)`, tier, platform, rate)
			if err != nil {
				return fmt.Errorf("failed to seed threshold for %s/%s: %w", tier, platform, err)
			}
		}
	}
	return nil
}

// columnExists checks if a column exists in a table
func (d *Database) columnExists(tableName, columnName string) (bool, error) {
	query := `
	SELECT COUNT(*)
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = DATABASE()
	AND TABLE_NAME = ?
	AND COLUMN_NAME = ?`

	var count int
	err := d.db.QueryRow(query, tableName, columnName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check if column exists: %w", err)
	}

	return count > 0, nil
}

// DetectCapabilities probes the analyzed_images schema for the optional
// tagging columns. Pre-existing tables from older deployments may lack
// them; writes and trend reads adapt instead of failing.
func (d *Database) DetectCapabilities() (Capabilities, error) {
	var caps Capabilities

	hasOverlay, err := d.columnExists("analyzed_images", "has_text_overlay")
	if err != nil {
		return caps, err
	}
	caps.HasTextOverlay = hasOverlay

	hasBrands, err := d.columnExists("analyzed_images", "brand_names")
	if err != nil {
		return caps, err
	}
	caps.HasBrandNames = hasBrands

	if !caps.HasTextOverlay || !caps.HasBrandNames {
		log.Printf("analyzed_images schema missing optional tag columns (text_overlay=%v, brand_names=%v); writes will omit them",
			caps.HasTextOverlay, caps.HasBrandNames)
	}
	return caps, nil
}
