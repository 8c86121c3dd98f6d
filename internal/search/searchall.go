package search

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}]`)

// SearchAll runs every query against the provider and returns the filtered,
// URL-merged result set. Queries that don't already mention a location get
// the (localised) target location appended, since job engines return nothing
// without geographic context. A single failed query is logged and skipped;
// it never aborts the rest of the run.
func SearchAll(ctx context.Context, p Provider, queries []string, location string, perQuery int, denylist []string) []model.JobListing {
	localLocation := localiseQuery(location)

	// Location keywords from both the original and localised forms.
	locationWords := map[string]struct{}{"remote": {}}
	for _, loc := range []string{location, localLocation} {
		for _, w := range strings.Fields(loc) {
			cleaned := strings.ToLower(nonWordRe.ReplaceAllString(w, ""))
			if len(cleaned) >= 3 {
				locationWords[cleaned] = struct{}{}
			}
		}
	}

	var all []model.JobListing
	for _, query := range queries {
		if ctx.Err() != nil {
			break
		}

		searchQuery := query
		if !mentionsLocation(query, locationWords) && localLocation != "" {
			searchQuery = query + " " + localLocation
		}
		searchQuery = localiseQuery(searchQuery)

		found, err := p.Search(ctx, searchQuery, location, perQuery)
		if err != nil {
			slog.Warn("search query failed, continuing",
				"provider", p.Name(), "query", searchQuery, "err", err)
			continue
		}
		all = append(all, found...)
	}

	return FilterListings(all, denylist)
}

func mentionsLocation(query string, locationWords map[string]struct{}) bool {
	lower := strings.ToLower(query)
	for w := range locationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
