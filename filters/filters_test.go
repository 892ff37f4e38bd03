package filters

import (
	"math"
	"strings"
	"testing"

	"post-ingest-pipeline/models"
)

func testConfig() *Config {
	return &Config{
		AbsoluteMinEngagement: 0.005,
		MinLikesNoFollowers:   50,
		VisionCostPerImage:    0.025,
		Thresholds: map[models.FollowerTier]map[models.Platform]float64{
			models.TierMicro:       {models.PlatformInstagram: 0.015},
			models.TierMid:         {models.PlatformInstagram: 0.008},
			models.TierEstablished: {models.PlatformInstagram: 0.004},
			models.TierMajor:       {models.PlatformInstagram: 0.002},
		},
	}
}

func TestEvaluate(t *testing.T) {
	cfg := testConfig()

	testCases := []struct {
		name       string
		post       models.RawPost
		wantPass   bool
		reasonPart string
	}{
		{
			name: "Hard floor beats tier threshold",
			post: models.RawPost{
				Platform:             models.PlatformInstagram,
				AccountFollowerCount: 600000,
				LikeCount:            1200,
				EngagementRate:       0.003,
			},
			wantPass:   false,
			reasonPart: "absolute floor",
		},
		{
			name: "Major account above its tier threshold",
			post: models.RawPost{
				Platform:             models.PlatformInstagram,
				AccountFollowerCount: 600000,
				LikeCount:            4000,
				EngagementRate:       0.0065,
			},
			wantPass: true,
		},
		{
			name: "Micro account below its tier threshold",
			post: models.RawPost{
				Platform:             models.PlatformInstagram,
				AccountFollowerCount: 5000,
				LikeCount:            40,
				EngagementRate:       0.009,
			},
			wantPass:   false,
			reasonPart: "micro threshold",
		},
		{
			name: "Threshold boundary is inclusive",
			post: models.RawPost{
				Platform:             models.PlatformInstagram,
				AccountFollowerCount: 5000,
				LikeCount:            70,
				EngagementRate:       0.015,
			},
			wantPass: true,
		},
		{
			name: "Unknown followers, enough likes",
			post: models.RawPost{
				Platform:  models.PlatformInstagram,
				LikeCount: 75,
			},
			wantPass: true,
		},
		{
			name: "Unknown followers, too few likes",
			post: models.RawPost{
				Platform:  models.PlatformInstagram,
				LikeCount: 40,
			},
			wantPass:   false,
			reasonPart: "below minimum 50",
		},
		{
			name: "No signal, curated source passes",
			post: models.RawPost{
				Platform:       models.PlatformInstagram,
				PipelineSource: models.SourceCurated,
			},
			wantPass: true,
		},
		{
			name: "No signal, hashtag source fails",
			post: models.RawPost{
				Platform:       models.PlatformInstagram,
				PipelineSource: models.SourceHashtag,
			},
			wantPass:   false,
			reasonPart: "not curated",
		},
	}

	for _, tc := range testCases {
		result := Evaluate(&tc.post, cfg)
		if result.PassedEngagement != tc.wantPass {
			t.Errorf("%s: expected pass=%v, got %v (reason: %s)",
				tc.name, tc.wantPass, result.PassedEngagement, result.SkipReason)
			continue
		}
		if result.ShouldAnalyze != result.PassedEngagement {
			t.Errorf("%s: should_analyze diverged from passed_engagement", tc.name)
		}
		if tc.wantPass && result.SkipReason != "" {
			t.Errorf("%s: passing post has skip reason %q", tc.name, result.SkipReason)
		}
		if !tc.wantPass && !strings.Contains(result.SkipReason, tc.reasonPart) {
			t.Errorf("%s: skip reason %q missing %q", tc.name, result.SkipReason, tc.reasonPart)
		}
	}
}

func TestThresholdFor(t *testing.T) {
	cfg := testConfig()

	// Exact (tier, platform) row.
	if got := cfg.ThresholdFor(models.TierMid, models.PlatformInstagram); got != 0.008 {
		t.Errorf("expected 0.008, got %v", got)
	}

	// No row for tiktok: falls back to the tier's only other platform row.
	if got := cfg.ThresholdFor(models.TierMid, models.PlatformTikTok); got != 0.008 {
		t.Errorf("expected same-tier fallback 0.008, got %v", got)
	}

	// Unknown tier: falls back to the absolute floor.
	cfg.Thresholds = nil
	if got := cfg.ThresholdFor(models.TierMid, models.PlatformInstagram); got != 0.005 {
		t.Errorf("expected absolute floor 0.005, got %v", got)
	}
}

func TestEvaluateBatch(t *testing.T) {
	cfg := testConfig()
	posts := []models.RawPost{
		{Platform: models.PlatformInstagram, AccountFollowerCount: 5000, EngagementRate: 0.02},
		{Platform: models.PlatformInstagram, AccountFollowerCount: 5000, EngagementRate: 0.009},
		{Platform: models.PlatformInstagram, LikeCount: 100},
		{Platform: models.PlatformInstagram, PipelineSource: models.SourceHashtag},
	}

	stats := EvaluateBatch(posts, cfg)

	if stats.Total != 4 {
		t.Errorf("expected total 4, got %d", stats.Total)
	}
	if stats.PassedEngagement != 2 || stats.FailedEngagement != 2 {
		t.Errorf("expected 2 passed / 2 failed, got %d / %d",
			stats.PassedEngagement, stats.FailedEngagement)
	}
	if stats.WillAnalyze != 2 || stats.WillSkip != 2 {
		t.Errorf("expected 2 analyze / 2 skip, got %d / %d", stats.WillAnalyze, stats.WillSkip)
	}
	if math.Abs(stats.EstimatedVisionCost-0.05) > 1e-9 {
		t.Errorf("expected estimated cost 0.05, got %v", stats.EstimatedVisionCost)
	}

	// Batch totals must agree with the single-post gate.
	passed := 0
	for i := range posts {
		if Evaluate(&posts[i], cfg).PassedEngagement {
			passed++
		}
	}
	if passed != stats.PassedEngagement {
		t.Errorf("batch count %d disagrees with per-post evaluation %d",
			stats.PassedEngagement, passed)
	}
}
