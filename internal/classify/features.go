package classify

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NumFeatures is the width of the feature vector. Scorers are trained
// against exactly this many inputs, in the order Vector emits them.
const NumFeatures = 11

// featureNames lists the features in vector order.
var featureNames = [NumFeatures]string{
	"url_length", "num_dots", "has_https", "has_http", "has_ip",
	"has_at_symbol", "num_slashes", "num_hyphens", "is_shortened",
	"num_digits", "has_suspicious_words",
}

// ipv4RE matches a dotted-quad domain segment, anchored at both ends.
// Octets are not range-checked (999.1.1.1 still counts) — the scorers were
// trained against this definition, so tightening it would shift the feature.
var ipv4RE = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

// suspiciousWordRE matches credential-bait words as whole words only,
// bounded by non-alphanumeric characters or string edges. "secure-login.com"
// counts; "blogindex.com" does not.
var suspiciousWordRE = regexp.MustCompile(`(^|[^a-zA-Z0-9])(login|verify|secure|update|account|banking)([^a-zA-Z0-9]|$)`)

// shorteners are domain substrings of known URL-shortening services.
var shorteners = []string{"bit.ly", "tinyurl", "goo.gl", "t.co", "ow.ly"}

// FeatureVector is the fixed eleven-feature numeric encoding of a URL.
// Field order is the positional contract with the scorer; JSON names match
// the wire format of the original Python service.
type FeatureVector struct {
	URLLength          int `json:"url_length"`
	NumDots            int `json:"num_dots"`
	HasHTTPS           int `json:"has_https"`
	HasHTTP            int `json:"has_http"`
	HasIP              int `json:"has_ip"`
	HasAtSymbol        int `json:"has_at_symbol"`
	NumSlashes         int `json:"num_slashes"`
	NumHyphens         int `json:"num_hyphens"`
	IsShortened        int `json:"is_shortened"`
	NumDigits          int `json:"num_digits"`
	HasSuspiciousWords int `json:"has_suspicious_words"`
}

// Vector returns the features as a positional slice for scorer input.
func (f FeatureVector) Vector() []float64 {
	return []float64{
		float64(f.URLLength),
		float64(f.NumDots),
		float64(f.HasHTTPS),
		float64(f.HasHTTP),
		float64(f.HasIP),
		float64(f.HasAtSymbol),
		float64(f.NumSlashes),
		float64(f.NumHyphens),
		float64(f.IsShortened),
		float64(f.NumDigits),
		float64(f.HasSuspiciousWords),
	}
}

// Extract computes the feature vector for a raw URL string. It never fails:
// malformed input degrades to empty segments and zero-valued features rather
// than errors, and extraction is a pure function of its input.
func Extract(rawURL string) FeatureVector {
	lower := strings.ToLower(rawURL)
	domain := DomainSegment(rawURL)

	// has_http and has_https are mutually exclusive by construction.
	hasHTTPS, hasHTTP := 0, 0
	if strings.HasPrefix(lower, "https://") {
		hasHTTPS = 1
	} else if strings.HasPrefix(lower, "http://") {
		hasHTTP = 1
	}

	return FeatureVector{
		URLLength:          utf8.RuneCountInString(rawURL),
		NumDots:            strings.Count(rawURL, "."),
		HasHTTPS:           hasHTTPS,
		HasHTTP:            hasHTTP,
		HasIP:              boolInt(ipv4RE.MatchString(domain)),
		HasAtSymbol:        boolInt(strings.Contains(rawURL, "@")),
		NumSlashes:         strings.Count(rawURL, "/"),
		NumHyphens:         strings.Count(rawURL, "-"),
		IsShortened:        boolInt(containsAny(domain, shorteners)),
		NumDigits:          countDigits(rawURL),
		HasSuspiciousWords: boolInt(suspiciousWordRE.MatchString(lower)),
	}
}

// DomainSegment returns the third '/'-delimited token of the raw URL — the
// host position in scheme://host/path form. Known limitation: URLs without a
// scheme separator yield an empty or unrelated token; callers treat that as
// a degraded value, not an error.
func DomainSegment(rawURL string) string {
	parts := strings.Split(rawURL, "/")
	if len(parts) > 2 {
		return parts[2]
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
