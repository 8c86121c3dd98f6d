package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

// Bundesagentur für Arbeit job-search API (Germany). Free public REST API;
// the X-API-Key below is the published client key, not a secret.
const (
	baBaseURL    = "https://rest.arbeitsagentur.de/jobboerse/jobsuche-service"
	baAPIKey     = "jobboerse-jobsuche"
	baPageSize   = 25
	baMaxRetries = 3
	baBaseDelay  = 2 * time.Second

	baHTTPTimeout = 30 * time.Second
)

// BundesagenturProvider searches the German Federal Employment Agency's job
// database.
type BundesagenturProvider struct {
	client *http.Client
}

// NewBundesagenturProvider constructs the provider.
func NewBundesagenturProvider() *BundesagenturProvider {
	return &BundesagenturProvider{
		client: &http.Client{Timeout: baHTTPTimeout},
	}
}

// Name implements Provider.
func (p *BundesagenturProvider) Name() string { return "bundesagentur" }

type baSearchResponse struct {
	Stellenangebote []baStub `json:"stellenangebote"`
}

type baStub struct {
	HashID     string `json:"hashId"`
	Beruf      string `json:"beruf"`
	Titel      string `json:"titel"`
	Arbeitgeber string `json:"arbeitgeber"`
	Veroeffentlicht string `json:"aktuelleVeroeffentlichungsdatum"`
	Arbeitsort struct {
		Ort    string `json:"ort"`
		Region string `json:"region"`
		Land   string `json:"land"`
	} `json:"arbeitsort"`
}

type baDetails struct {
	Titel             string `json:"titel"`
	Arbeitgeber       string `json:"arbeitgeber"`
	Beschreibung      string `json:"stellenbeschreibung"`
	AllianzPartnerURL string `json:"allianzPartnerUrl"`
}

// Search implements Provider. It queries the search endpoint, then fetches
// details per listing; a failed detail fetch degrades to the stub data
// rather than dropping the listing.
func (p *BundesagenturProvider) Search(ctx context.Context, query, location string, maxResults int) ([]model.JobListing, error) {
	if maxResults <= 0 || maxResults > serpAPIMaxUnique {
		maxResults = serpAPIMaxUnique
	}

	stubs, err := p.fetchStubs(ctx, query, location, maxResults)
	if err != nil {
		return nil, err
	}

	listings := make([]model.JobListing, 0, len(stubs))
	for _, stub := range stubs {
		details, err := p.fetchDetails(ctx, stub.HashID)
		if err != nil {
			slog.Debug("bundesagentur detail fetch failed", "hashId", stub.HashID, "err", err)
		}
		listings = append(listings, stubToListing(stub, details))
	}
	return listings, nil
}

func (p *BundesagenturProvider) fetchStubs(ctx context.Context, query, location string, maxResults int) ([]baStub, error) {
	var stubs []baStub

	for page := 1; len(stubs) < maxResults; page++ {
		params := url.Values{}
		params.Set("angebotsart", "1") // regular employment
		params.Set("was", query)
		if location != "" {
			params.Set("wo", location)
		}
		params.Set("size", strconv.Itoa(baPageSize))
		params.Set("page", strconv.Itoa(page))

		body, err := p.get(ctx, baBaseURL+"/pc/v4/jobs?"+params.Encode())
		if err != nil {
			return stubs, err
		}

		var resp baSearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return stubs, fmt.Errorf("json unmarshal: %w", err)
		}
		if len(resp.Stellenangebote) == 0 {
			break
		}
		for _, s := range resp.Stellenangebote {
			if s.HashID != "" {
				stubs = append(stubs, s)
			}
		}
		if len(resp.Stellenangebote) < baPageSize {
			break
		}
	}

	if len(stubs) > maxResults {
		stubs = stubs[:maxResults]
	}
	return stubs, nil
}

func (p *BundesagenturProvider) fetchDetails(ctx context.Context, hashID string) (baDetails, error) {
	body, err := p.get(ctx, baBaseURL+"/pc/v2/jobdetails/"+url.PathEscape(hashID))
	if err != nil {
		return baDetails{}, err
	}
	var details baDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return baDetails{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return details, nil
}

// get performs one GET with a small retry loop for transient server errors.
func (p *BundesagenturProvider) get(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < baMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(baBaseDelay * (1 << (attempt - 1))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", baAPIKey)
		req.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http GET: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return body, nil
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable:
			lastErr = fmt.Errorf("bundesagentur returned %d", resp.StatusCode)
			continue
		default:
			return nil, fmt.Errorf("bundesagentur returned %d: %s", resp.StatusCode, body)
		}
	}

	return nil, lastErr
}

func stubToListing(stub baStub, details baDetails) model.JobListing {
	link := "https://www.arbeitsagentur.de/jobsuche/suche?id=" + url.QueryEscape(stub.HashID)

	options := []model.ApplyOption{{Source: "Arbeitsagentur", URL: link}}
	if details.AllianzPartnerURL != "" {
		options = append(options, model.ApplyOption{Source: "Company Website", URL: details.AllianzPartnerURL})
	}

	title := details.Titel
	if title == "" {
		title = stub.Beruf
	}
	if title == "" {
		title = stub.Titel
	}

	company := details.Arbeitgeber
	if company == "" {
		company = stub.Arbeitgeber
	}

	return model.JobListing{
		Title:        orUnknown(title),
		CompanyName:  orUnknown(company),
		Location:     baLocation(stub),
		Description:  details.Beschreibung,
		Link:         link,
		PostedAt:     stub.Veroeffentlicht,
		Source:       "bundesagentur",
		ApplyOptions: options,
	}
}

func baLocation(stub baStub) string {
	var parts []string
	if stub.Arbeitsort.Ort != "" {
		parts = append(parts, stub.Arbeitsort.Ort)
	}
	if stub.Arbeitsort.Region != "" && stub.Arbeitsort.Region != stub.Arbeitsort.Ort {
		parts = append(parts, stub.Arbeitsort.Region)
	}
	if stub.Arbeitsort.Land != "" {
		found := false
		for _, p := range parts {
			if p == stub.Arbeitsort.Land {
				found = true
			}
		}
		if !found {
			parts = append(parts, stub.Arbeitsort.Land)
		}
	}
	if len(parts) == 0 {
		return "Germany"
	}
	return strings.Join(parts, ", ")
}
