package normalize

import (
	"regexp"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	htmlTag      = regexp.MustCompile(`<(?i:p|div|br|ul|ol|li|a|span|strong|b|i|em|h[1-6]|table|section)\b[^>]*>`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// description holds the three views of a posting body the normalizer needs.
type description struct {
	stored  string   // what gets persisted (Markdown when the source sent HTML)
	plain   string   // text used for email scanning
	mailtos []string // addresses from mailto: links
}

func parseDescription(raw string) description {
	raw = strings.TrimSpace(raw)
	if raw == "" || !htmlTag.MatchString(raw) {
		return description{stored: raw, plain: raw}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return description{stored: raw, plain: raw}
	}

	var mailtos []string
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		mailtos = append(mailtos, addr)
	})
	doc.Find("script, style, noscript").Remove()
	plain := strings.TrimSpace(doc.Text())

	stored, err := md.NewConverter("", true, nil).ConvertString(raw)
	if err != nil {
		stored = plain
	}
	stored = strings.TrimSpace(blankLines.ReplaceAllString(stored, "\n\n"))

	return description{stored: stored, plain: plain, mailtos: mailtos}
}

// extractEmails scans text for addresses and merges them with known ones.
// The result is a sorted set of lower-cased addresses.
func extractEmails(text string, known ...[]string) []string {
	seen := make(map[string]struct{})
	add := func(e string) {
		e = strings.ToLower(strings.Trim(strings.TrimSpace(e), ".,;:<>()[]\"'"))
		if e == "" || !emailPattern.MatchString(e) {
			return
		}
		seen[e] = struct{}{}
	}

	for _, m := range emailPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, group := range known {
		for _, e := range group {
			add(e)
		}
	}

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
