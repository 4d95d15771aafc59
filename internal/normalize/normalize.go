// Package normalize maps raw, source-specific postings onto the canonical
// model.JobListing. It is the only place that reads untyped adapter output.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"jobmate/jobfeed-service/internal/model"
)

// Error reports a posting that cannot be attributed to a source. Every other
// missing field degrades to a default instead.
type Error struct {
	Source string
	Reason string
}

func (e *Error) Error() string {
	if e.Source == "" {
		return "normalize: " + e.Reason
	}
	return fmt.Sprintf("normalize: source %q: %s", e.Source, e.Reason)
}

// Normalizer converts RawPostings into JobListings. It is safe for
// concurrent use.
type Normalizer struct {
	known map[string]struct{}
	now   func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithSources restricts accepted source tags. Without it any non-empty tag
// is accepted.
func WithSources(sources ...string) Option {
	return func(n *Normalizer) {
		for _, s := range sources {
			if s = canonicalSource(s); s != "" {
				n.known[s] = struct{}{}
			}
		}
	}
}

// WithClock overrides the clock used to resolve relative posting dates.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New returns a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		known: make(map[string]struct{}),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds the canonical listing for raw. ScrapedAt and NumericID
// are left zero: the orchestrator and the store own them.
func (n *Normalizer) Normalize(raw model.RawPosting) (model.JobListing, error) {
	fields := raw.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	source := canonicalSource(raw.Source)
	if source == "" {
		source = canonicalSource(str(fields, sourceKeys...))
	}
	if source == "" {
		return model.JobListing{}, &Error{Reason: "missing source tag"}
	}
	if len(n.known) > 0 {
		if _, ok := n.known[source]; !ok {
			return model.JobListing{}, &Error{Source: source, Reason: "unrecognized source"}
		}
	}

	title := orNA(str(fields, titleKeys...))
	company := orNA(str(fields, companyKeys...))
	location := orNA(str(fields, locationKeys...))
	jobURL := str(fields, urlKeys...)

	desc := parseDescription(str(fields, descriptionKeys...))

	var datePosted *time.Time
	for _, k := range dateKeys {
		if v, ok := fields[k]; ok {
			if datePosted = ParseDate(v, n.now()); datePosted != nil {
				break
			}
		}
	}

	return model.JobListing{
		IdentityKey:     IdentityKey(source, jobURL, title, company, location),
		Source:          source,
		Title:           title,
		Company:         company,
		Location:        location,
		JobURL:          jobURL,
		ApplicationURL:  str(fields, applyKeys...),
		JobSiteID:       str(fields, siteIDKeys...),
		DatePosted:      datePosted,
		JobType:         strings.Join(jobTypes(fields), ", "),
		SalaryText:      salary(fields),
		DescriptionText: desc.stored,
		Emails:          extractEmails(desc.plain, desc.mailtos, list(fields["emails"])),
		Status:          model.StatusNew,
	}, nil
}

func jobTypes(fields map[string]any) []string {
	for _, k := range jobTypeKeys {
		if vals := list(fields[k]); len(vals) > 0 {
			return vals
		}
	}
	return nil
}

func canonicalSource(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func orNA(s string) string {
	if s == "" {
		return model.NotAvailable
	}
	return s
}
