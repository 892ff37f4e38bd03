// Package trends aggregates the analyzed corpus into engagement benchmarks
// for the dashboards: grouped category stats, paired comparisons, and brand
// mention tallies. All computation is over a bounded most-recent window so
// cost stays flat as history grows.
package trends

import (
	"sort"

	"post-ingest-pipeline/models"
)

// CategoryStat is one group in a grouped-by-category aggregation.
type CategoryStat struct {
	Value         string  `json:"value"`
	Count         int     `json:"count"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// Comparison is a two-sided split on a boolean predicate. Which side "wins"
// is simply the higher mean; both sides are always reported.
type Comparison struct {
	CountA      int     `json:"count_a"`
	CountB      int     `json:"count_b"`
	EngagementA float64 `json:"engagement_a"`
	EngagementB float64 `json:"engagement_b"`
}

// BrandStat is one brand's mention count across the window.
type BrandStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// BrandStats tallies brand visibility across the window.
type BrandStats struct {
	WithBrand int         `json:"with_brand"`
	Brands    []BrandStat `json:"brands"`
}

// LiveTrends is the full aggregation result.
type LiveTrends struct {
	TotalAnalyzed int     `json:"total_analyzed"`
	TotalApproved int     `json:"total_approved"`
	AvgEngagement float64 `json:"avg_engagement"`
	EditorialRate float64 `json:"editorial_rate"`

	TopStyles        []CategoryStat `json:"top_styles"`
	TopMoments       []CategoryStat `json:"top_moments"`
	TopSettings      []CategoryStat `json:"top_settings"`
	TopLighting      []CategoryStat `json:"top_lighting"`
	TopCompositions  []CategoryStat `json:"top_compositions"`
	TopContentTypes  []CategoryStat `json:"top_content_types"`
	CameraQuality    []CategoryStat `json:"camera_quality_stats"`

	CandidVsPosed Comparison `json:"candid_vs_posed"`
	SelfieStats   Comparison `json:"selfie_stats"`
	TextOverlay   Comparison `json:"text_overlay_stats"`

	BrandStats BrandStats `json:"brand_stats"`
}

// Capabilities reports which optional tagging columns the underlying schema
// has. Records predating the overlay/brand schema extension cannot feed
// those comparisons, so they degrade to empty instead of crashing.
type Capabilities struct {
	HasTextOverlay bool
	HasBrandNames  bool
}

// Compute aggregates a window of analyzed records. globalAvg is the mean
// engagement over the unfiltered raw post corpus; the analyzed window is a
// biased sample (it already passed the pre-filter), so the global mean is
// preferred and the window's own mean is only a fallback. A zero globalAvg
// means "unavailable". An empty window yields an explicit zero-valued
// result, never an error.
func Compute(records []models.AnalyzedImage, globalAvg float64, caps Capabilities, topN int) LiveTrends {
	out := LiveTrends{
		TotalAnalyzed: len(records),
	}
	if len(records) == 0 {
		return out
	}

	var totalEng float64
	var approved, editorial int
	for i := range records {
		totalEng += records[i].EngagementRate
		if records[i].ReviewStatus == "approved" {
			approved++
		}
		if records[i].EditorialPublishable {
			editorial++
		}
	}
	out.TotalApproved = approved
	out.EditorialRate = float64(editorial) / float64(len(records))
	if globalAvg > 0 {
		out.AvgEngagement = globalAvg
	} else {
		out.AvgEngagement = totalEng / float64(len(records))
	}

	out.TopStyles = topCategories(records, topN, func(r *models.AnalyzedImage) string { return r.Style })
	out.TopMoments = topCategories(records, topN, func(r *models.AnalyzedImage) string { return r.MomentCategory })
	out.TopSettings = topCategories(records, topN, func(r *models.AnalyzedImage) string { return r.Setting })
	out.TopLighting = topCategories(records, topN, func(r *models.AnalyzedImage) string { return r.Lighting })
	out.TopCompositions = topCategories(records, topN, func(r *models.AnalyzedImage) string { return r.Composition })
	out.TopContentTypes = topCategories(records, topN, func(r *models.AnalyzedImage) string { return r.ContentType })
	out.CameraQuality = topCategories(records, 0, func(r *models.AnalyzedImage) string { return r.CameraQuality })

	out.CandidVsPosed = compare(records, func(r *models.AnalyzedImage) bool { return r.IsCandid })
	out.SelfieStats = compare(records, func(r *models.AnalyzedImage) bool { return r.IsSelfie })
	if caps.HasTextOverlay {
		out.TextOverlay = compare(records, func(r *models.AnalyzedImage) bool { return r.HasTextOverlay })
	}

	if caps.HasBrandNames {
		out.BrandStats = brandStats(records, topN)
	} else {
		out.BrandStats = BrandStats{Brands: []BrandStat{}}
	}

	return out
}

// topCategories groups records by a categorical field, dropping the
// sentinel values, and returns {value, count, mean} sorted by mean
// engagement descending. A topN of 0 means unbounded.
func topCategories(records []models.AnalyzedImage, topN int, keyFn func(*models.AnalyzedImage) string) []CategoryStat {
	type group struct {
		total float64
		count int
	}
	groups := make(map[string]*group)

	for i := range records {
		key := keyFn(&records[i])
		if key == "" || key == "other" || key == "none" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		g.total += records[i].EngagementRate
		g.count++
	}

	stats := make([]CategoryStat, 0, len(groups))
	for value, g := range groups {
		stats = append(stats, CategoryStat{
			Value:         value,
			Count:         g.count,
			AvgEngagement: g.total / float64(g.count),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].AvgEngagement != stats[j].AvgEngagement {
			return stats[i].AvgEngagement > stats[j].AvgEngagement
		}
		return stats[i].Value < stats[j].Value
	})

	if topN > 0 && len(stats) > topN {
		stats = stats[:topN]
	}
	return stats
}

// compare partitions records on a predicate into an exhaustive, disjoint
// A/B split and reports each side's count and mean engagement.
func compare(records []models.AnalyzedImage, pred func(*models.AnalyzedImage) bool) Comparison {
	var c Comparison
	var totalA, totalB float64
	for i := range records {
		if pred(&records[i]) {
			c.CountA++
			totalA += records[i].EngagementRate
		} else {
			c.CountB++
			totalB += records[i].EngagementRate
		}
	}
	if c.CountA > 0 {
		c.EngagementA = totalA / float64(c.CountA)
	}
	if c.CountB > 0 {
		c.EngagementB = totalB / float64(c.CountB)
	}
	return c
}

// brandStats counts distinct brand mentions across the window, excluding
// the "none" sentinel, sorted by count descending, truncated to topN.
func brandStats(records []models.AnalyzedImage, topN int) BrandStats {
	counts := make(map[string]int)
	withBrand := 0
	for i := range records {
		if records[i].BrandLogoVisible {
			withBrand++
		}
		for _, name := range records[i].BrandNames {
			if name == "none" || name == "" {
				continue
			}
			counts[name]++
		}
	}

	brands := make([]BrandStat, 0, len(counts))
	for name, count := range counts {
		brands = append(brands, BrandStat{Name: name, Count: count})
	}
	sort.Slice(brands, func(i, j int) bool {
		if brands[i].Count != brands[j].Count {
			return brands[i].Count > brands[j].Count
		}
		return brands[i].Name < brands[j].Name
	})
	if topN > 0 && len(brands) > topN {
		brands = brands[:topN]
	}

	return BrandStats{WithBrand: withBrand, Brands: brands}
}
