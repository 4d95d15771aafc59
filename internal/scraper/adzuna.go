package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"jobmate/jobfeed-service/internal/logger"
	"jobmate/jobfeed-service/internal/model"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	adzunaMaxPages = 3 // never more than 150 postings per run
	httpTimeout    = 15 * time.Second
)

// ErrMissingCredentials is returned by Fetch when the Adzuna app id or key
// is not configured.
var ErrMissingCredentials = errors.New("ADZUNA_APP_ID / ADZUNA_APP_KEY not set")

// Adzuna fetches postings from the Adzuna public search API.
type Adzuna struct {
	AppID   string
	AppKey  string
	Country string // "fr", "gb", "us", …

	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewAdzuna constructs the adapter with a shared HTTP client.
func NewAdzuna(appID, appKey, country string, log *logger.Logger) *Adzuna {
	if log == nil {
		log = logger.Nop()
	}
	return &Adzuna{
		AppID:   appID,
		AppKey:  appKey,
		Country: country,
		baseURL: adzunaBaseURL,
		client:  &http.Client{Timeout: httpTimeout},
		log:     log,
	}
}

// WithBaseURL points the adapter at another API root. Used by tests.
func (a *Adzuna) WithBaseURL(u string) *Adzuna {
	a.baseURL = u
	return a
}

// Name implements Adapter.
func (a *Adzuna) Name() string { return "adzuna" }

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaCompany  `json:"company"`
	Location     adzunaLocation `json:"location"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
	ContractType string         `json:"contract_type"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// Fetch pages through search results until ResultsWanted postings are
// collected, the API runs dry or adzunaMaxPages is reached.
func (a *Adzuna) Fetch(ctx context.Context, p model.AdapterParams) ([]model.RawPosting, error) {
	if a.AppID == "" || a.AppKey == "" {
		return nil, ErrMissingCredentials
	}

	want := p.ResultsWanted
	if want <= 0 {
		want = adzunaPageSize
	}
	pageSize := min(want, adzunaPageSize)

	var postings []model.RawPosting
	for page := 1; page <= adzunaMaxPages && len(postings) < want; page++ {
		batch, err := a.fetchPage(ctx, p, page, pageSize)
		if err != nil {
			return postings, fmt.Errorf("page %d: %w", page, err)
		}
		postings = append(postings, batch...)
		if len(batch) < pageSize {
			break // last page
		}
	}
	if len(postings) > want {
		postings = postings[:want]
	}

	a.log.Debug().Int("postings", len(postings)).Str("what", p.SearchTerm).Str("where", p.Location).Msg("Adzuna fetch done")
	return postings, nil
}

func (a *Adzuna) fetchPage(ctx context.Context, p model.AdapterParams, page, pageSize int) ([]model.RawPosting, error) {
	country := p.Country
	if country == "" {
		country = a.Country
	}
	endpoint := fmt.Sprintf("%s/%s/search/%d", a.baseURL, country, page)

	params := url.Values{}
	params.Set("app_id", a.AppID)
	params.Set("app_key", a.AppKey)
	params.Set("results_per_page", strconv.Itoa(pageSize))
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")
	if p.SearchTerm != "" {
		params.Set("what", p.SearchTerm)
	}
	if p.Location != "" {
		params.Set("where", p.Location)
	}
	if p.HoursOld > 0 {
		params.Set("max_days_old", strconv.Itoa((p.HoursOld+23)/24))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", endpoint, stripURL(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET %s: %w", endpoint, stripURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("adzuna returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp adzunaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	postings := make([]model.RawPosting, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		postings = append(postings, model.RawPosting{
			Source: a.Name(),
			Fields: map[string]any{
				"external_id": r.ID,
				"title":       r.Title,
				"company":     r.Company.DisplayName,
				"location":    r.Location.DisplayName,
				"description": r.Description,
				"salary_min":  r.SalaryMin,
				"salary_max":  r.SalaryMax,
				"job_url":     r.RedirectURL,
				"created":     r.Created,
				"job_type":    []string{r.ContractTime, r.ContractType},
			},
		})
	}
	return postings, nil
}

// stripURL drops the request URL from a *url.Error. The query string carries
// app_key and the message ends up in run stats and events.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
