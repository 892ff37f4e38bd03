package ingest

import (
	"strings"
	"time"

	"post-ingest-pipeline/models"
)

// Format tags which scraper produced a payload's items.
type Format string

const (
	// FormatProfile means each item is a profile carrying a latestPosts array.
	FormatProfile Format = "profile-scraper"
	// FormatPost means each item is a single flat post record.
	FormatPost Format = "post-scraper"
)

// DetectItemFormat decides between the profile and flat shapes by probing
// only the first element. Providers are internally consistent within one
// payload, so one element is enough.
func DetectItemFormat(items []map[string]interface{}) Format {
	if len(items) > 0 {
		if _, ok := items[0]["latestPosts"].([]interface{}); ok {
			return FormatProfile
		}
	}
	return FormatPost
}

// Normalize turns raw scraper items into canonical posts. Items without a
// resolvable identity are dropped (they could never be addressed for an
// idempotent upsert); everything else is best-effort. Input order is
// preserved and nothing is mutated.
func Normalize(items []map[string]interface{}, now time.Time) ([]models.RawPost, Format) {
	format := DetectItemFormat(items)
	if format == FormatProfile {
		return flattenProfileItems(items, now), format
	}
	return flattenPostItems(items, now), format
}

// flattenProfileItems emits one post per nested latestPosts entry, stamping
// the owning profile's handle and follower count onto each. Profile scrapes
// only run against hand-picked accounts, so the source is always curated.
func flattenProfileItems(profiles []map[string]interface{}, now time.Time) []models.RawPost {
	var posts []models.RawPost

	for _, profile := range profiles {
		username := stringField(profile, "username", "ownerUsername")
		followers := intField(profile, "followersCount")

		nested, _ := profile["latestPosts"].([]interface{})
		for _, raw := range nested {
			item, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			postID := stringField(item, "id", "shortCode")
			if postID == "" {
				continue
			}

			likes := intField(item, "likesCount", "likeCount")
			comments := intField(item, "commentsCount", "commentCount")

			posts = append(posts, models.RawPost{
				Platform:             models.PlatformInstagram,
				PlatformPostID:       postID,
				AccountHandle:        username,
				AccountFollowerCount: followers,
				PipelineSource:       models.SourceCurated,
				MediaType:            normalizeMediaType(stringField(item, "type")),
				ImageURLs:            collectImageURLs(item),
				Caption:              stringField(item, "caption"),
				Hashtags:             stringSliceField(item, "hashtags"),
				LikeCount:            likes,
				CommentCount:         comments,
				EngagementRate:       ComputeEngagementRate(likes, comments, followers),
				PostDate:             timeField(item, now, "timestamp"),
				ScrapedAt:            now,
			})
		}
	}

	return posts
}

// flattenPostItems handles flat post records. Providers disagree on field
// names, so each field is probed through an ordered list of alternates.
func flattenPostItems(items []map[string]interface{}, now time.Time) []models.RawPost {
	var posts []models.RawPost

	for _, item := range items {
		postID := stringField(item, "id", "shortCode")
		if postID == "" {
			continue
		}

		likes := intField(item, "likesCount", "likeCount")
		comments := intField(item, "commentsCount", "commentCount")
		followers := intField(item, "followersCount", "followerCount")
		rate := ReconcileProvidedRate(floatField(item, "engagementRate"), likes, comments, followers)

		platform := models.Platform(stringField(item, "platform"))
		if platform == "" {
			platform = models.PlatformInstagram
		}
		source := models.PipelineSource(stringField(item, "pipelineSource"))
		if source == "" {
			source = models.SourceHashtag
		}

		posts = append(posts, models.RawPost{
			Platform:             platform,
			PlatformPostID:       postID,
			AccountHandle:        stringField(item, "ownerUsername", "username"),
			AccountFollowerCount: followers,
			PipelineSource:       source,
			MediaType:            normalizeMediaType(stringField(item, "type")),
			CarouselPosition:     optionalIntField(item, "carouselPosition"),
			ImageURLs:            collectImageURLs(item),
			Caption:              stringField(item, "caption"),
			Hashtags:             stringSliceField(item, "hashtags"),
			LikeCount:            likes,
			CommentCount:         comments,
			SaveCount:            optionalIntField(item, "savesCount"),
			ShareCount:           optionalIntField(item, "sharesCount"),
			EngagementRate:       rate,
			PostDate:             timeField(item, now, "timestamp", "takenAt"),
			ScrapedAt:            now,
		})
	}

	return posts
}

// normalizeMediaType maps provider media type strings onto the closed set.
// "Sidecar" is Instagram's name for a carousel. Unknown values become image
// rather than rejecting the post.
func normalizeMediaType(raw string) models.MediaType {
	switch strings.ToLower(raw) {
	case "sidecar", "carousel":
		return models.MediaCarousel
	case "video":
		return models.MediaVideo
	case "reel":
		return models.MediaReel
	default:
		return models.MediaImage
	}
}

// collectImageURLs resolves image URLs in priority order: an explicit images
// list, then child posts' display URLs, then a single displayUrl. The first
// non-empty source wins; sources are never merged.
func collectImageURLs(item map[string]interface{}) []string {
	if raw, ok := item["images"].([]interface{}); ok && len(raw) > 0 {
		urls := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		if len(urls) > 0 {
			return urls
		}
	}

	if children, ok := item["childPosts"].([]interface{}); ok {
		var urls []string
		for _, raw := range children {
			child, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if u := stringField(child, "displayUrl", "imageUrl"); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) > 0 {
			return urls
		}
	}

	if u := stringField(item, "displayUrl"); u != "" {
		return []string{u}
	}

	return []string{}
}

// stringField returns the first non-empty string among the given keys.
func stringField(item map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := item[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// intField returns the first non-zero numeric value among the given keys.
// JSON numbers decode as float64.
func intField(item map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		if f, ok := item[key].(float64); ok && f != 0 {
			return int(f)
		}
	}
	return 0
}

// floatField returns the first non-zero numeric value among the given keys.
func floatField(item map[string]interface{}, keys ...string) float64 {
	for _, key := range keys {
		if f, ok := item[key].(float64); ok && f != 0 {
			return f
		}
	}
	return 0
}

// optionalIntField distinguishes "absent" from "zero": it returns nil only
// when the key is missing or not a number.
func optionalIntField(item map[string]interface{}, key string) *int {
	if f, ok := item[key].(float64); ok {
		n := int(f)
		return &n
	}
	return nil
}

func stringSliceField(item map[string]interface{}, key string) []string {
	raw, ok := item[key].([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// timeField parses the first present timestamp among the given keys,
// falling back to now when missing or unparseable.
func timeField(item map[string]interface{}, now time.Time, keys ...string) time.Time {
	for _, key := range keys {
		s, ok := item[key].(string)
		if !ok || s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02T15:04:05.000Z", s); err == nil {
			return t
		}
	}
	return now
}
