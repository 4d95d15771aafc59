// Package scraper drives source adapters and hands their postings to ingest.
package scraper

import (
	"strings"

	"jobmate/jobfeed-service/internal/ingest"
	"jobmate/jobfeed-service/internal/model"
)

// ContainsRedFlag reports whether any red flag term appears (case-insensitive)
// in the listing's title, company or description.
func ContainsRedFlag(l model.JobListing, redFlags []string) bool {
	return matchesAny(l, lowerFlags(redFlags))
}

// RedFlagFilter returns an ingest.Exclude dropping listings that contain a
// red flag term, or nil when there are no terms.
func RedFlagFilter(redFlags []string) ingest.Exclude {
	flags := lowerFlags(redFlags)
	if len(flags) == 0 {
		return nil
	}
	return func(l model.JobListing) bool { return matchesAny(l, flags) }
}

func matchesAny(l model.JobListing, flags []string) bool {
	if len(flags) == 0 {
		return false
	}
	combined := strings.ToLower(l.Title + " " + l.Company + " " + l.DescriptionText)
	for _, flag := range flags {
		if strings.Contains(combined, flag) {
			return true
		}
	}
	return false
}

func lowerFlags(redFlags []string) []string {
	out := make([]string, 0, len(redFlags))
	for _, f := range redFlags {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
