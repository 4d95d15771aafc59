package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// trackingParams are query parameters that identify the visit, not the job.
var trackingParams = map[string]bool{
	"gclid":      true,
	"fbclid":     true,
	"msclkid":    true,
	"ref":        true,
	"refid":      true,
	"trk":        true,
	"trackingid": true,
	"src":        true,
	"from":       true,
	"mc_cid":     true,
	"mc_eid":     true,
}

func isTracking(param string) bool {
	p := strings.ToLower(param)
	return strings.HasPrefix(p, "utm_") || trackingParams[p]
}

// NormalizeURL canonicalizes a job URL so that two links to the same posting
// compare equal: scheme and host lower-cased, default port, fragment and
// tracking parameters removed, remaining parameters sorted, trailing slash
// trimmed. Strings that don't parse as absolute URLs are only folded.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fold(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for k := range q {
		if isTracking(k) {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	u.ForceQuery = false

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}

	return u.String()
}

// IdentityKey derives the dedup key for a listing. A URL, when present, wins
// over the descriptive fields; the two key spaces are tagged so they can
// never collide.
func IdentityKey(source, jobURL, title, company, location string) string {
	source = fold(source)

	var parts []string
	if u := NormalizeURL(jobURL); u != "" {
		parts = []string{"url", source, u}
	} else {
		parts = []string{"fields", source, fold(title), fold(company), fold(location)}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// fold lower-cases s and collapses every whitespace run to one space.
func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
