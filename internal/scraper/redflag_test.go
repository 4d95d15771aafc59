package scraper_test

import (
	"testing"

	"jobmate/jobfeed-service/internal/model"
	"jobmate/jobfeed-service/internal/scraper"
)

func job(title, company, description string) model.JobListing {
	return model.JobListing{Title: title, Company: company, DescriptionText: description}
}

// ── ContainsRedFlag ────────────────────────────────────────────────────────

func TestContainsRedFlag_MatchesAnyFieldCaseInsensitive(t *testing.T) {
	flags := []string{"Unpaid", "crypto"}
	cases := []model.JobListing{
		job("UNPAID internship", "Acme", ""),
		job("Engineer", "CryptoCorp", ""),
		job("Engineer", "Acme", "We pay in crypto tokens"),
	}
	for _, l := range cases {
		if !scraper.ContainsRedFlag(l, flags) {
			t.Errorf("ContainsRedFlag(%+v) = false, want true", l)
		}
	}
}

func TestContainsRedFlag_NoFlags(t *testing.T) {
	l := job("Unpaid internship", "Acme", "")
	if scraper.ContainsRedFlag(l, nil) {
		t.Error("no flags must never match")
	}
	if scraper.ContainsRedFlag(l, []string{"", "  "}) {
		t.Error("blank flags must be ignored")
	}
}

func TestRedFlagFilter(t *testing.T) {
	if scraper.RedFlagFilter(nil) != nil {
		t.Error("RedFlagFilter(nil) should be nil")
	}
	exclude := scraper.RedFlagFilter([]string{" MLM "})
	if !exclude(job("Sales", "Acme", "Join our mlm network")) {
		t.Error("expected MLM listing to be excluded")
	}
	if exclude(job("Go Engineer", "Acme", "Backend work")) {
		t.Error("clean listing must not be excluded")
	}
}
