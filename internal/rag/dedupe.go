package rag

import (
	"sort"
)

// previewLen caps the content preview stored on a UniqueResource.
const previewLen = 300

// UniqueResources collapses retrieved chunks into one record per distinct
// resource ID, preserving first-seen order.
//
// The first chunk encountered for a resource supplies its metadata, content
// preview, and relevance score (1 - distance). Later chunks for the same
// resource are discarded even when they scored better; callers that need a
// relevance ordering re-sort the output. Chunks with an empty resource ID
// never produce a record.
func UniqueResources(chunks []ResourceChunk) []UniqueResource {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]UniqueResource, 0, len(chunks))

	for _, chunk := range chunks {
		id := chunk.Metadata.ResourceID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, materialize(chunk))
	}

	return out
}

// materialize builds a UniqueResource from a chunk's metadata and distance.
func materialize(chunk ResourceChunk) UniqueResource {
	m := chunk.Metadata
	return UniqueResource{
		ResourceID:        m.ResourceID,
		Title:             m.Title,
		URL:               m.URL,
		Category:          m.Category,
		Difficulty:        m.Difficulty,
		ResourceType:      m.ResourceType,
		Source:            m.Source,
		Tags:              m.Tags,
		EstimatedReadTime: m.EstimatedReadTime,
		ContentPreview:    preview(chunk.Content),
		RelevanceScore:    1 - chunk.Distance,
		EngagementScore:   m.EngagementScore,
		ViewCount:         m.ViewCount,
	}
}

// preview returns the first previewLen characters of s, respecting rune
// boundaries.
func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= previewLen {
		return s
	}
	return string(runes[:previewLen])
}

// sortByRelevance orders resources descending by relevance score. The sort is
// stable so equal scores keep their dedup-emission order.
func sortByRelevance(resources []UniqueResource) {
	sort.SliceStable(resources, func(i, j int) bool {
		return resources[i].RelevanceScore > resources[j].RelevanceScore
	})
}

// sortByEngagement orders resources descending by engagement score, falling
// back to view count when no engagement score is recorded. Stable, so
// untracked resources keep their merge order.
func sortByEngagement(resources []UniqueResource) {
	sort.SliceStable(resources, func(i, j int) bool {
		return engagementKey(resources[i]) > engagementKey(resources[j])
	})
}

// engagementKey is the popularity ranking axis for social media resources.
func engagementKey(r UniqueResource) float64 {
	if r.EngagementScore > 0 {
		return r.EngagementScore
	}
	return float64(r.ViewCount)
}

// WeakestCategories returns the names of up to n categories with the lowest
// score/maxScore ratio. Ties keep their original list order (stable sort).
func WeakestCategories(categories []CategoryScore, n int) []string {
	sorted := make([]CategoryScore, len(categories))
	copy(sorted, categories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Ratio() < sorted[j].Ratio()
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	names := make([]string, 0, n)
	for _, c := range sorted[:n] {
		names = append(names, c.Name)
	}
	return names
}
