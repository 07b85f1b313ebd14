package ingestion

import (
	"net/url"
	"strings"
)

// InferredMetadata holds the source platform and resource type inferred from
// a resource URL's structure. JSON fields take precedence over inferred
// values; this is the best-effort fallback when the curator leaves them blank.
type InferredMetadata struct {
	// Source is the publishing platform (youtube, medium, nngroup, ...).
	Source string
	// ResourceType classifies the format (article, video, podcast, tweet, course).
	ResourceType string
}

// hostPlatforms maps well-known content hosts to their platform label and
// default resource type.
var hostPlatforms = map[string]InferredMetadata{
	"youtube.com":            {Source: "youtube", ResourceType: "video"},
	"youtu.be":               {Source: "youtube", ResourceType: "video"},
	"vimeo.com":              {Source: "vimeo", ResourceType: "video"},
	"open.spotify.com":       {Source: "spotify", ResourceType: "podcast"},
	"podcasts.apple.com":     {Source: "apple_podcasts", ResourceType: "podcast"},
	"twitter.com":            {Source: "twitter", ResourceType: "tweet"},
	"x.com":                  {Source: "twitter", ResourceType: "tweet"},
	"medium.com":             {Source: "medium", ResourceType: "article"},
	"uxdesign.cc":            {Source: "medium", ResourceType: "article"},
	"nngroup.com":            {Source: "nngroup", ResourceType: "article"},
	"smashingmagazine.com":   {Source: "smashing_magazine", ResourceType: "article"},
	"interaction-design.org": {Source: "ixdf", ResourceType: "course"},
	"coursera.org":           {Source: "coursera", ResourceType: "course"},
	"udemy.com":              {Source: "udemy", ResourceType: "course"},
}

// InferMetadata inspects a resource URL and returns best-effort platform
// metadata. Unknown hosts default to a generic web article.
func InferMetadata(rawURL string) InferredMetadata {
	m := InferredMetadata{Source: "web", ResourceType: "article"}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return m
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if known, ok := hostPlatforms[host]; ok {
		return known
	}

	// Spotify episode links sometimes live on regional subdomains.
	if strings.HasSuffix(host, ".spotify.com") {
		return InferredMetadata{Source: "spotify", ResourceType: "podcast"}
	}

	return m
}

// readWordsPerMinute is the average adult reading speed used for estimation.
const readWordsPerMinute = 200

// EstimateReadTime returns the estimated consumption time of content in
// minutes, with a floor of one minute for non-empty content.
func EstimateReadTime(content string) int {
	words := len(strings.Fields(content))
	if words == 0 {
		return 0
	}
	minutes := words / readWordsPerMinute
	if minutes == 0 {
		return 1
	}
	return minutes
}
