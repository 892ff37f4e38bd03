// Package filters decides, before any money is spent, whether a scraped
// post is worth sending to the vision-analysis service. The checks here are
// cheap number comparisons; a vision call costs real dollars per image.
package filters

import (
	"fmt"

	"post-ingest-pipeline/ingest"
	"post-ingest-pipeline/models"
)

// Config carries the injected thresholds. Tier thresholds come from the
// engagement_thresholds table so a recalculation job can tighten them
// without a redeploy; the floors come from the environment.
type Config struct {
	// AbsoluteMinEngagement is a hard floor. Any post with a known rate
	// below it is rejected regardless of tier, which catches huge accounts
	// with negligible real engagement.
	AbsoluteMinEngagement float64
	// MinLikesNoFollowers is the absolute like-count floor used when the
	// source could not report an audience size.
	MinLikesNoFollowers int
	// VisionCostPerImage prices the downstream call for batch estimates.
	VisionCostPerImage float64
	// Thresholds holds the per-(tier, platform) minimum engagement rates.
	Thresholds map[models.FollowerTier]map[models.Platform]float64
}

// ThresholdFor looks up the minimum engagement rate for a tier on a
// platform. A tier with no row for the platform falls back to any platform
// row for the same tier, then to the absolute floor.
func (c *Config) ThresholdFor(tier models.FollowerTier, platform models.Platform) float64 {
	if byPlatform, ok := c.Thresholds[tier]; ok {
		if rate, ok := byPlatform[platform]; ok {
			return rate
		}
		for _, rate := range byPlatform {
			return rate
		}
	}
	return c.AbsoluteMinEngagement
}

// Result is the gate's verdict for one post. PassedEngagement and
// ShouldAnalyze are equal today; they stay separate fields so a future
// policy (a daily quota, say) can diverge without changing the signature.
type Result struct {
	PassedEngagement bool   `json:"passed_engagement"`
	ShouldAnalyze    bool   `json:"should_analyze"`
	SkipReason       string `json:"skip_reason,omitempty"`
}

// Stats aggregates the per-post verdicts over a batch.
type Stats struct {
	Total               int     `json:"total"`
	PassedEngagement    int     `json:"passed_engagement"`
	FailedEngagement    int     `json:"failed_engagement"`
	WillAnalyze         int     `json:"will_analyze"`
	WillSkip            int     `json:"will_skip"`
	EstimatedVisionCost float64 `json:"estimated_vision_cost"`
}

// Evaluate runs the engagement gate over one post. Precedence:
//
//  1. hard floor: a known rate below AbsoluteMinEngagement is rejected
//     no matter the tier;
//  2. tier threshold: when followers and rate are both known;
//  3. like-count fallback: when followers are unknown but likes are known;
//  4. no signal at all: only curated posts pass (a human already vetted
//     the account; hashtag discoveries with zero signal are rejected).
func Evaluate(post *models.RawPost, cfg *Config) Result {
	followers := post.AccountFollowerCount
	likes := post.LikeCount
	rate := post.EngagementRate

	var passed bool
	var reason string

	switch {
	case rate > 0 && rate < cfg.AbsoluteMinEngagement:
		passed = false
		reason = fmt.Sprintf("Engagement %.2f%% below absolute floor %.2f%%",
			rate*100, cfg.AbsoluteMinEngagement*100)

	case followers > 0 && rate > 0:
		tier := ingest.FollowerTierFor(followers)
		threshold := cfg.ThresholdFor(tier, post.Platform)
		passed = rate >= threshold
		if !passed {
			reason = fmt.Sprintf("Engagement %.2f%% below %s threshold %.1f%%",
				rate*100, tier, threshold*100)
		}

	case followers == 0 && likes > 0:
		passed = likes >= cfg.MinLikesNoFollowers
		if !passed {
			reason = fmt.Sprintf("%d likes below minimum %d", likes, cfg.MinLikesNoFollowers)
		}

	default:
		passed = post.PipelineSource == models.SourceCurated
		if !passed {
			reason = fmt.Sprintf("No engagement signal and source is %s, not curated", post.PipelineSource)
		}
	}

	result := Result{
		PassedEngagement: passed,
		ShouldAnalyze:    passed,
	}
	if !result.ShouldAnalyze {
		result.SkipReason = reason
	}
	return result
}

// EvaluateBatch runs Evaluate over every post and totals the outcomes.
// It is a pure aggregation over the single-post decision, so the preview
// numbers can never drift from what the gate actually does.
func EvaluateBatch(posts []models.RawPost, cfg *Config) Stats {
	stats := Stats{Total: len(posts)}
	for i := range posts {
		result := Evaluate(&posts[i], cfg)
		if result.PassedEngagement {
			stats.PassedEngagement++
		} else {
			stats.FailedEngagement++
		}
		if result.ShouldAnalyze {
			stats.WillAnalyze++
		} else {
			stats.WillSkip++
		}
	}
	stats.EstimatedVisionCost = float64(stats.WillAnalyze) * cfg.VisionCostPerImage
	return stats
}
