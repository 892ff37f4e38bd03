package trends

import (
	"math"
	"testing"

	"post-ingest-pipeline/models"
)

func allCaps() Capabilities {
	return Capabilities{HasTextOverlay: true, HasBrandNames: true}
}

func TestComputeEmptyWindow(t *testing.T) {
	result := Compute(nil, 0.04, allCaps(), 10)

	if result.TotalAnalyzed != 0 {
		t.Errorf("expected 0 analyzed, got %d", result.TotalAnalyzed)
	}
	if result.AvgEngagement != 0 {
		t.Errorf("empty window must not report an average, got %v", result.AvgEngagement)
	}
	if len(result.TopStyles) != 0 {
		t.Errorf("expected no style stats, got %v", result.TopStyles)
	}
}

func TestComputeAverages(t *testing.T) {
	records := []models.AnalyzedImage{
		{EngagementRate: 0.02, ReviewStatus: "approved", EditorialPublishable: true},
		{EngagementRate: 0.04, ReviewStatus: "unreviewed"},
		{EngagementRate: 0.06, ReviewStatus: "rejected", EditorialPublishable: true},
		{EngagementRate: 0.08, ReviewStatus: "approved"},
	}

	// Global average preferred over the window's own mean.
	result := Compute(records, 0.031, allCaps(), 10)
	if math.Abs(result.AvgEngagement-0.031) > 1e-9 {
		t.Errorf("expected global avg 0.031, got %v", result.AvgEngagement)
	}
	if result.TotalAnalyzed != 4 || result.TotalApproved != 2 {
		t.Errorf("expected 4 analyzed / 2 approved, got %d / %d",
			result.TotalAnalyzed, result.TotalApproved)
	}
	if math.Abs(result.EditorialRate-0.5) > 1e-9 {
		t.Errorf("expected editorial rate 0.5, got %v", result.EditorialRate)
	}

	// Unavailable global average falls back to the window mean.
	result = Compute(records, 0, allCaps(), 10)
	if math.Abs(result.AvgEngagement-0.05) > 1e-9 {
		t.Errorf("expected window mean 0.05, got %v", result.AvgEngagement)
	}
}

func TestTopCategoriesExcludesSentinels(t *testing.T) {
	records := []models.AnalyzedImage{
		{Style: "editorial", EngagementRate: 0.05},
		{Style: "editorial", EngagementRate: 0.03},
		{Style: "candid", EngagementRate: 0.06},
		{Style: "other", EngagementRate: 0.9},
		{Style: "none", EngagementRate: 0.9},
		{Style: "", EngagementRate: 0.9},
	}

	result := Compute(records, 0.04, allCaps(), 10)

	if len(result.TopStyles) != 2 {
		t.Fatalf("expected 2 style groups, got %d: %v", len(result.TopStyles), result.TopStyles)
	}
	// candid (0.06) outranks editorial (mean 0.04).
	if result.TopStyles[0].Value != "candid" || result.TopStyles[1].Value != "editorial" {
		t.Errorf("unexpected ordering: %v", result.TopStyles)
	}
	if result.TopStyles[1].Count != 2 {
		t.Errorf("expected editorial count 2, got %d", result.TopStyles[1].Count)
	}
	if math.Abs(result.TopStyles[1].AvgEngagement-0.04) > 1e-9 {
		t.Errorf("expected editorial mean 0.04, got %v", result.TopStyles[1].AvgEngagement)
	}
}

func TestTopCategoriesTruncation(t *testing.T) {
	records := []models.AnalyzedImage{
		{Style: "a", EngagementRate: 0.01},
		{Style: "b", EngagementRate: 0.02},
		{Style: "c", EngagementRate: 0.03},
	}

	result := Compute(records, 0.02, allCaps(), 2)
	if len(result.TopStyles) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(result.TopStyles))
	}
	if result.TopStyles[0].Value != "c" {
		t.Errorf("expected highest mean first, got %v", result.TopStyles)
	}
}

func TestComparisons(t *testing.T) {
	records := []models.AnalyzedImage{
		{IsCandid: true, EngagementRate: 0.06},
		{IsCandid: true, EngagementRate: 0.04},
		{IsCandid: false, EngagementRate: 0.02},
	}

	result := Compute(records, 0.04, allCaps(), 10)

	c := result.CandidVsPosed
	if c.CountA != 2 || c.CountB != 1 {
		t.Errorf("expected 2 candid / 1 posed, got %d / %d", c.CountA, c.CountB)
	}
	if math.Abs(c.EngagementA-0.05) > 1e-9 || math.Abs(c.EngagementB-0.02) > 1e-9 {
		t.Errorf("unexpected comparison means: %+v", c)
	}
	if c.CountA+c.CountB != len(records) {
		t.Errorf("comparison sides must partition the window")
	}
}

func TestCapabilityDegradation(t *testing.T) {
	records := []models.AnalyzedImage{
		{EngagementRate: 0.04, HasTextOverlay: true, BrandNames: []string{"acme"}, BrandLogoVisible: true},
		{EngagementRate: 0.02, HasTextOverlay: false},
	}

	result := Compute(records, 0.03, Capabilities{}, 10)

	if result.TextOverlay.CountA != 0 || result.TextOverlay.CountB != 0 {
		t.Errorf("overlay comparison should be empty without the column: %+v", result.TextOverlay)
	}
	if result.BrandStats.WithBrand != 0 || len(result.BrandStats.Brands) != 0 {
		t.Errorf("brand stats should be empty without the column: %+v", result.BrandStats)
	}

	// Core groupings still work regardless of capabilities.
	if result.TotalAnalyzed != 2 {
		t.Errorf("expected 2 analyzed, got %d", result.TotalAnalyzed)
	}
}

func TestBrandStats(t *testing.T) {
	records := []models.AnalyzedImage{
		{EngagementRate: 0.02, BrandLogoVisible: true, BrandNames: []string{"acme", "globex"}},
		{EngagementRate: 0.03, BrandLogoVisible: true, BrandNames: []string{"acme"}},
		{EngagementRate: 0.04, BrandNames: []string{"none"}},
		{EngagementRate: 0.05},
	}

	result := Compute(records, 0.03, allCaps(), 10)

	if result.BrandStats.WithBrand != 2 {
		t.Errorf("expected 2 posts with visible brand, got %d", result.BrandStats.WithBrand)
	}
	if len(result.BrandStats.Brands) != 2 {
		t.Fatalf("expected 2 distinct brands, got %v", result.BrandStats.Brands)
	}
	if result.BrandStats.Brands[0].Name != "acme" || result.BrandStats.Brands[0].Count != 2 {
		t.Errorf("expected acme first with count 2, got %+v", result.BrandStats.Brands[0])
	}
}
