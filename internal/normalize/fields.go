package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field aliases, in priority order. Adapters are free to use any of them.
var (
	urlKeys         = []string{"job_url", "url", "source_url", "sourceUrl", "redirect_url", "link"}
	applyKeys       = []string{"job_url_direct", "application_url", "apply_url", "applicationUrl"}
	siteIDKeys      = []string{"job_site_id", "external_id", "externalId", "id"}
	titleKeys       = []string{"title", "job_title"}
	companyKeys     = []string{"company", "company_name", "companyName"}
	locationKeys    = []string{"location", "job_location"}
	dateKeys        = []string{"date_posted", "datePosted", "posted_at", "publishedAt", "created"}
	jobTypeKeys     = []string{"job_type", "jobType", "contract_type", "contractType"}
	salaryKeys      = []string{"salary_text", "salary", "salaryText"}
	descriptionKeys = []string{"description", "description_text", "descriptionText"}
	sourceKeys      = []string{"source", "site"}
)

// str returns the first non-blank scalar found under keys.
func str(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := scalar(fields[k]); s != "" {
			return s
		}
	}
	return ""
}

// scalar renders a loosely typed value as trimmed text. NaN and nil render
// as "", which is how dataframe-backed adapters encode missing cells.
func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(x)
		if strings.EqualFold(s, "nan") || strings.EqualFold(s, "none") || strings.EqualFold(s, "null") {
			return ""
		}
		return s
	case []byte:
		return strings.TrimSpace(string(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return scalar(float64(x))
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(x)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	case map[string]any:
		return joinNonEmpty(", ", scalar(x["city"]), scalar(x["state"]), scalar(x["country"]), scalar(x["display_name"]))
	}
	return ""
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case float32:
		return number(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && !math.IsNaN(f)
	}
	return 0, false
}

// list flattens a string, []string or []any value into its non-blank parts.
// A string holding a JSON array is decoded; other strings split on commas.
func list(v any) []string {
	var out []string
	switch x := v.(type) {
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range x {
			if s := scalar(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		s := strings.TrimSpace(x)
		if strings.HasPrefix(s, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return list(arr)
			}
		}
		for _, part := range strings.Split(s, ",") {
			if p := scalar(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// salary prefers free text, then composes a range from numeric columns.
func salary(fields map[string]any) string {
	if s := str(fields, salaryKeys...); s != "" {
		return s
	}

	lo, hasLo := number(fields["min_amount"])
	hi, hasHi := number(fields["max_amount"])
	if !hasLo && !hasHi {
		lo, hasLo = number(fields["salary_min"])
		hi, hasHi = number(fields["salary_max"])
	}
	hasLo = hasLo && lo != 0
	hasHi = hasHi && hi != 0
	if !hasLo && !hasHi {
		return ""
	}

	fmtAmount := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	var amount string
	switch {
	case hasLo && hasHi && lo != hi:
		amount = fmtAmount(lo) + "-" + fmtAmount(hi)
	case hasLo:
		amount = fmtAmount(lo)
	default:
		amount = fmtAmount(hi)
	}

	out := joinNonEmpty(" ", strings.ToUpper(scalar(fields["currency"])), amount)
	if interval := scalar(fields["interval"]); interval != "" {
		out += " / " + strings.ToLower(interval)
	}
	return out
}
