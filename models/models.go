package models

import (
	"time"
)

// Platform identifies the social network a post was scraped from.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// PipelineSource records how a post entered the pipeline. Curated posts
// come from hand-picked accounts; hashtag posts were discovered by the
// hashtag scraper and get no benefit of the doubt in filtering.
type PipelineSource string

const (
	SourceCurated PipelineSource = "curated"
	SourceHashtag PipelineSource = "hashtag"
)

// MediaType is the normalized media kind of a post.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaCarousel MediaType = "carousel"
	MediaVideo    MediaType = "video"
	MediaReel     MediaType = "reel"
)

// FollowerTier buckets accounts by audience size. Each tier has its own
// engagement threshold in the engagement_thresholds table.
type FollowerTier string

const (
	TierMicro       FollowerTier = "micro"
	TierMid         FollowerTier = "mid"
	TierEstablished FollowerTier = "established"
	TierMajor       FollowerTier = "major"
)

// RawPost is the canonical, provider-agnostic post record produced by the
// normalizer and persisted in the raw_posts table. The natural identity is
// (platform, platform_post_id); ID is the surrogate row key and survives
// re-ingestion of the same post.
type RawPost struct {
	ID                   int64          `json:"id"`
	Platform             Platform       `json:"platform"`
	PlatformPostID       string         `json:"platform_post_id"`
	AccountHandle        string         `json:"account_handle"`
	AccountFollowerCount int            `json:"account_follower_count"` // 0 means unknown
	PipelineSource       PipelineSource `json:"pipeline_source"`
	MediaType            MediaType      `json:"media_type"`
	CarouselPosition     *int           `json:"carousel_position,omitempty"`
	ImageURLs            []string       `json:"image_urls"`
	Caption              string         `json:"caption"`
	Hashtags             []string       `json:"hashtags"`
	LikeCount            int            `json:"like_count"`
	CommentCount         int            `json:"comment_count"`
	SaveCount            *int           `json:"save_count,omitempty"`
	ShareCount           *int           `json:"share_count,omitempty"`
	EngagementRate       float64        `json:"engagement_rate"` // decimal fraction, 0.0594 = 5.94%
	PostDate             time.Time      `json:"post_date"`
	ScrapedAt            time.Time      `json:"scraped_at"`
	EngagementUpdatedAt  *time.Time     `json:"engagement_updated_at,omitempty"`
	PassedEngagementFilter bool         `json:"passed_engagement_filter"`
	StyleCluster         *string        `json:"style_cluster,omitempty"`
}

// AnalyzedImage is one vision-analysis result. At most one exists per
// raw post; the trend engine only ever reads these.
type AnalyzedImage struct {
	ID             int64        `json:"id"`
	RawPostID      int64        `json:"raw_post_id"`
	ImageURL       string       `json:"image_url"`
	Style          string       `json:"style"`
	MomentCategory string       `json:"moment_category"`
	Setting        string       `json:"setting"`
	Lighting       string       `json:"lighting"`
	Composition    string       `json:"composition"`
	ContentType    string       `json:"content_type"`
	CameraQuality  string       `json:"camera_quality"`
	IsCandid       bool         `json:"is_candid"`
	IsSelfie       bool         `json:"is_selfie"`
	EditorialPublishable bool   `json:"editorial_publishable"`
	EngagementRate float64      `json:"engagement_rate"`
	FollowerTier   FollowerTier `json:"follower_tier"`
	ReviewStatus   string       `json:"review_status"`
	AnalyzedAt     time.Time    `json:"analyzed_at"`

	// Optional tagging-schema extension. Only populated when the
	// analyzed_images table carries the overlay/brand columns.
	HasTextOverlay   bool     `json:"has_text_overlay"`
	TextOverlayType  string   `json:"text_overlay_type"`
	BrandLogoVisible bool     `json:"brand_logo_visible"`
	BrandNames       []string `json:"brand_names"`
}

// EngagementThreshold is one configured minimum engagement rate per
// (follower tier, platform). Seeded with defaults and periodically
// recalculated by an external job; the pre-filter only reads it.
type EngagementThreshold struct {
	FollowerTier      FollowerTier `json:"follower_tier"`
	Platform          Platform     `json:"platform"`
	MinEngagementRate float64      `json:"min_engagement_rate"`
	SampleSize        int          `json:"sample_size"`
	CalculatedAt      time.Time    `json:"calculated_at"`
}

// ActivityEvent is one row of the ingest audit trail.
type ActivityEvent struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// IngestResult summarizes one ingestion attempt.
type IngestResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Format  string `json:"format"`
	Message string `json:"message"`
}

// PipelineStats is the aggregate counters surfaced on /stats.
type PipelineStats struct {
	TotalPostsScraped   int     `json:"total_posts_scraped"`
	PostsScrapedToday   int     `json:"posts_scraped_today"`
	PostsFilteredOut    int     `json:"posts_filtered_out"`
	TotalImagesAnalyzed int     `json:"total_images_analyzed"`
	PendingAnalysis     int     `json:"pending_analysis"`
	EstimatedVisionCost float64 `json:"estimated_vision_cost"`
}
