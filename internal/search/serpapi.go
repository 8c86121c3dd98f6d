package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

const (
	serpAPIBaseURL = "https://serpapi.com/search.json"
	// Upper bound on unique listings pulled per logical search; the
	// pagination loop stops once this cap is reached.
	serpAPIMaxUnique = 50

	serpHTTPTimeout = 30 * time.Second
)

// SerpAPIProvider searches Google Jobs through the SerpApi service.
type SerpAPIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerpAPIProvider constructs the provider with a shared HTTP client.
func NewSerpAPIProvider(apiKey string) *SerpAPIProvider {
	return &SerpAPIProvider{
		apiKey:  apiKey,
		baseURL: serpAPIBaseURL,
		client:  &http.Client{Timeout: serpHTTPTimeout},
	}
}

// Name implements Provider.
func (p *SerpAPIProvider) Name() string { return "serpapi" }

// serpResponse mirrors the parts of the SerpApi payload we consume.
type serpResponse struct {
	JobsResults []serpJob `json:"jobs_results"`
	Pagination  struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"serpapi_pagination"`
}

type serpJob struct {
	Title       string `json:"title"`
	CompanyName string `json:"company_name"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ShareLink   string `json:"share_link"`
	Link        string `json:"link"`
	Highlights  []struct {
		Items []string `json:"items"`
	} `json:"job_highlights"`
	DetectedExtensions struct {
		PostedAt string `json:"posted_at"`
	} `json:"detected_extensions"`
	ApplyOptions []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"apply_options"`
}

// Search implements Provider. It pages through results via the continuation
// token until maxResults listings are collected or no page remains.
func (p *SerpAPIProvider) Search(ctx context.Context, query, location string, maxResults int) ([]model.JobListing, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("serpapi key not configured")
	}
	if maxResults <= 0 || maxResults > serpAPIMaxUnique {
		maxResults = serpAPIMaxUnique
	}

	gl := inferGL(location)
	localised := localiseQuery(query)

	var all []model.JobListing
	nextPageToken := ""

	for len(all) < maxResults {
		page, token, err := p.fetchPage(ctx, localised, location, gl, nextPageToken)
		if err != nil {
			return all, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		if token == "" {
			break
		}
		nextPageToken = token
	}

	if len(all) > maxResults {
		all = all[:maxResults]
	}
	return all, nil
}

func (p *SerpAPIProvider) fetchPage(ctx context.Context, query, location, gl, pageToken string) ([]model.JobListing, string, error) {
	params := url.Values{}
	params.Set("engine", "google_jobs")
	params.Set("q", query)
	params.Set("gl", gl)
	params.Set("hl", "en")
	params.Set("api_key", p.apiKey)
	if location != "" {
		params.Set("location", location)
	}
	if pageToken != "" {
		params.Set("next_page_token", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("serpapi returned %d: %s", resp.StatusCode, body)
	}

	var apiResp serpResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, "", fmt.Errorf("json unmarshal: %w", err)
	}

	listings := make([]model.JobListing, 0, len(apiResp.JobsResults))
	for _, r := range apiResp.JobsResults {
		description := r.Description
		for _, h := range r.Highlights {
			for _, item := range h.Items {
				description += "\n" + item
			}
		}

		link := r.ShareLink
		if link == "" {
			link = r.Link
		}

		options := make([]model.ApplyOption, 0, len(r.ApplyOptions))
		for _, opt := range r.ApplyOptions {
			if opt.Title != "" && opt.Link != "" {
				options = append(options, model.ApplyOption{Source: opt.Title, URL: opt.Link})
			}
		}

		listings = append(listings, model.JobListing{
			Title:        orUnknown(r.Title),
			CompanyName:  orUnknown(r.CompanyName),
			Location:     orUnknown(r.Location),
			Description:  description,
			Link:         link,
			PostedAt:     r.DetectedExtensions.PostedAt,
			Source:       p.Name(),
			ApplyOptions: options,
		})
	}

	return listings, apiResp.Pagination.NextPageToken, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
