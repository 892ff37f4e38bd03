package ingest

import (
	"post-ingest-pipeline/models"
)

// ComputeEngagementRate returns (likes + comments) / followers as a decimal
// fraction (0.0594, not 5.94). Saves and shares are excluded because not
// every provider reports them. A follower count of 0 means "unknown" and
// yields 0; the pre-filter handles that case separately.
func ComputeEngagementRate(likes, comments, followers int) float64 {
	if followers > 0 {
		return float64(likes+comments) / float64(followers)
	}
	return 0
}

// ReconcileProvidedRate converts a provider-supplied engagement figure to the
// canonical decimal convention. Providers report percentages (4.5 meaning
// 4.5%), so a positive supplied value is divided by 100; otherwise the
// likes/comments formula is used.
func ReconcileProvidedRate(provided float64, likes, comments, followers int) float64 {
	if provided > 0 {
		return provided / 100
	}
	return ComputeEngagementRate(likes, comments, followers)
}

// FollowerTierFor maps a follower count to its tier. Total and monotonic:
// every non-negative count lands in exactly one tier, and the boundary is
// inclusive on the upper tier (10,000 followers is mid, not micro).
func FollowerTierFor(count int) models.FollowerTier {
	switch {
	case count >= 500_000:
		return models.TierMajor
	case count >= 100_000:
		return models.TierEstablished
	case count >= 10_000:
		return models.TierMid
	default:
		return models.TierMicro
	}
}
