package search

import (
	"strings"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

// DefaultDenylist lists low-quality aggregator domains whose apply links are
// dropped before anything is stored or scored.
var DefaultDenylist = []string{
	"bebee",
	"trabajo",
	"jooble",
	"adzuna",
	"jobrapido",
	"neuvoo",
	"mitula",
	"trovit",
	"jobomas",
	"jobijoba",
	"talent",
	"jobatus",
	"jobsora",
	"studysmarter",
	"jobilize",
	"learn4good",
	"grabjobs",
	"jobtensor",
	"zycto",
	"terra.do",
	"jobzmall",
	"simplyhired",
}

// FilterListings is the pure deduplication filter. In order:
//
//  1. apply options whose URL matches a denylisted domain are dropped;
//  2. listings left with zero apply options are dropped entirely;
//  3. remaining listings are merged by canonical URL, keeping first-seen
//     metadata and discarding exact duplicates.
//
// The same input set always yields the same output set; the URL merge keeps
// the first occurrence in input order.
func FilterListings(listings []model.JobListing, denylist []string) []model.JobListing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]model.JobListing, 0, len(listings))

	for _, j := range listings {
		kept := make([]model.ApplyOption, 0, len(j.ApplyOptions))
		for _, opt := range j.ApplyOptions {
			if !isDenylisted(opt.URL, denylist) {
				kept = append(kept, opt)
			}
		}
		if len(kept) == 0 {
			continue // no actionable application path
		}
		j.ApplyOptions = kept

		url := j.URL()
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, j)
	}

	return out
}

func isDenylisted(rawURL string, denylist []string) bool {
	lower := strings.ToLower(rawURL)
	for _, domain := range denylist {
		if domain != "" && strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}
