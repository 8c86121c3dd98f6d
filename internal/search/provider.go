// Package search implements job-search providers and the pure
// deduplication/denylist filter applied to their results.
package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

// Provider is the capability interface every job-search backend implements.
// Implementations are selected by configuration, never by type inspection.
type Provider interface {
	// Name is the human-readable provider name used in logs and listings.
	Name() string
	// Search runs a single search and returns parsed listings, stopping
	// once maxResults unique listings have been collected.
	Search(ctx context.Context, query, location string, maxResults int) ([]model.JobListing, error)
}

// NewProvider returns the configured search backend.
func NewProvider(name, serpAPIKey string) (Provider, error) {
	switch name {
	case "serpapi":
		return NewSerpAPIProvider(serpAPIKey), nil
	case "bundesagentur":
		return NewBundesagenturProvider(), nil
	}
	return nil, fmt.Errorf("unknown search provider %q", name)
}

// glCodes maps country and major-city names to Google gl= country codes, so
// the search engine doesn't default to "us" and return zero European results.
var glCodes = map[string]string{
	// Countries
	"germany": "de", "deutschland": "de",
	"france":      "fr",
	"netherlands": "nl", "holland": "nl",
	"belgium": "be",
	"austria": "at", "österreich": "at",
	"switzerland": "ch", "schweiz": "ch",
	"spain": "es", "españa": "es",
	"italy": "it", "italia": "it",
	"portugal": "pt",
	"poland":   "pl", "polska": "pl",
	"sweden":  "se",
	"denmark": "dk",
	"finland": "fi",
	"ireland": "ie",
	"czechia": "cz", "czech republic": "cz",
	"uk": "uk", "united kingdom": "uk",
	// Major cities → country
	"berlin": "de", "munich": "de", "münchen": "de", "hamburg": "de",
	"frankfurt": "de", "stuttgart": "de", "köln": "de", "cologne": "de",
	"paris": "fr", "lyon": "fr",
	"amsterdam": "nl", "rotterdam": "nl", "eindhoven": "nl",
	"brussels": "be",
	"vienna":   "at", "wien": "at",
	"zurich": "ch", "zürich": "ch", "geneva": "ch", "basel": "ch",
	"madrid": "es", "barcelona": "es",
	"milan": "it", "rome": "it",
	"lisbon": "pt", "porto": "pt",
	"warsaw": "pl", "kraków": "pl", "krakow": "pl",
	"stockholm":  "se",
	"copenhagen": "dk",
	"helsinki":   "fi",
	"dublin":     "ie",
	"prague":     "cz",
	"london":     "uk", "manchester": "uk",
}

// inferGL infers a Google gl= country code from a free-form location string.
// Falls back to "de" when no country can be determined.
func inferGL(location string) string {
	lower := strings.ToLower(location)
	for name, code := range glCodes {
		if strings.Contains(lower, name) {
			return code
		}
	}
	return "de"
}

// cityLocalise maps English city names to the local names job engines index.
// Searching "Munich" with gl=de returns nothing; "München" works.
var cityLocalise = map[string]string{
	"munich": "München", "cologne": "Köln", "nuremberg": "Nürnberg",
	"hanover": "Hannover", "dusseldorf": "Düsseldorf",
	"vienna": "Wien",
	"zurich": "Zürich", "geneva": "Genève",
	"prague": "Praha",
	"warsaw": "Warszawa", "krakow": "Kraków",
	"copenhagen": "København",
	"milan":      "Milano", "rome": "Roma",
	"lisbon":   "Lisboa",
	"brussels": "Bruxelles", "antwerp": "Antwerpen",
}

var localisePattern = func() *regexp.Regexp {
	names := make([]string, 0, len(cityLocalise))
	for name := range cityLocalise {
		names = append(names, regexp.QuoteMeta(name))
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\b`)
}()

// localiseQuery replaces English city names with their local equivalents.
func localiseQuery(query string) string {
	return localisePattern.ReplaceAllStringFunc(query, func(m string) string {
		return cityLocalise[strings.ToLower(m)]
	})
}
