// Package model defines shared data structures for the job feed service.
package model

import "time"

// NotAvailable fills required display fields a source did not provide.
const NotAvailable = "N/A"

// JobListing is the canonical, persisted record for one job posting.
// It is stored once per IdentityKey; NumericID is assigned by the store.
type JobListing struct {
	NumericID       uint64     `json:"id"`
	IdentityKey     string     `json:"identityKey" badgerhold:"index"`
	Source          string     `json:"source"`
	Title           string     `json:"title"`
	Company         string     `json:"company"`
	Location        string     `json:"location"`
	JobURL          string     `json:"jobUrl,omitempty"`
	ApplicationURL  string     `json:"applicationUrl,omitempty"`
	JobSiteID       string     `json:"jobSiteId,omitempty"`
	DatePosted      *time.Time `json:"datePosted,omitempty"`
	ScrapedAt       time.Time  `json:"scrapedAt"`
	JobType         string     `json:"jobType,omitempty"`
	SalaryText      string     `json:"salaryText,omitempty"`
	DescriptionText string     `json:"descriptionText,omitempty"`
	Emails          []string   `json:"emails"`
	Status          Status     `json:"status"`
}

// RawPosting is what a source adapter returns: the adapter name plus an
// arbitrary, source-specific bag of fields. Only the normalizer reads Fields.
type RawPosting struct {
	Source string         `json:"source"`
	Fields map[string]any `json:"fields"`
}

// AdapterParams are the knobs handed to a single adapter for one run.
type AdapterParams struct {
	SearchTerm    string `json:"searchTerm"`
	Location      string `json:"location"`
	ResultsWanted int    `json:"resultsWanted"`
	HoursOld      int    `json:"hoursOld"`
	Country       string `json:"country,omitempty"`
}

// IngestStats summarizes one ingest call. Every skipped posting is counted
// as a duplicate, as invalid or as filtered.
type IngestStats struct {
	Total      int      `json:"total"`
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Invalid    int      `json:"invalid"`
	Filtered   int      `json:"filtered"`
	Errors     []string `json:"errors,omitempty"`
}
