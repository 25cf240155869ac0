package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleLists holds the substring lists behind the allow and deny checks.
// Entries are plain substrings — no globbing, no anchoring.
type RuleLists struct {
	SafeDomains       []string `yaml:"safe_domains" json:"safe_domains"`
	MaliciousPatterns []string `yaml:"malicious_patterns" json:"malicious_patterns"`
}

// DefaultLists are the built-in rule lists. Safe entries keep a trailing dot
// so "google." matches google.com and google.co.uk but not googleish.com.
var DefaultLists = RuleLists{
	SafeDomains: []string{
		"google.", "youtube.", "github.", "wikipedia.", "stackoverflow.",
		"linkedin.", "microsoft.", "apple.", "python.", "ubuntu.", "docker.",
		"nginx.", "apache.", "mongodb.", "postgresql.", "amazon.", "facebook.",
		"twitter.", "instagram.", "netflix.", "reddit.", "gitlab.", "bitbucket.",
		"medium.", "quora.", "spotify.", "discord.", "whatsapp.", "telegram.",
	},
	MaliciousPatterns: []string{
		"login@", "verify@", "secure@", "banking@", "account@",
		"http://192.168.", "http://10.0.", "http://172.16.",
		"http://localhost", "http://127.0.0.1",
		"//fake-bank", "//phishing-login", "//secure-verify",
		".exe?", ".zip?", ".scr?", ".bat?", ".cmd?",
		"user@evil.com", "admin@malicious",
	},
}

// Engine answers the allow and deny checks over a fixed pair of rule lists.
// Both checks lowercase the URL and the entries, so matching is uniformly
// case-insensitive. Lists are copied at construction and never mutated
// after; an Engine is safe for concurrent use. Updated lists mean a new
// Engine, swapped in whole by the caller.
type Engine struct {
	safe      []string
	malicious []string
}

// NewEngine builds an Engine from the given lists. Entries are lowercased
// and blanks dropped.
func NewEngine(lists RuleLists) *Engine {
	return &Engine{
		safe:      normalize(lists.SafeDomains),
		malicious: normalize(lists.MaliciousPatterns),
	}
}

// NewDefaultEngine builds an Engine over the built-in lists.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultLists)
}

// LoadLists reads rule lists from a YAML file. A missing file falls back to
// the built-in lists; invalid YAML is an error.
func LoadLists(path string) (RuleLists, error) {
	if path == "" {
		return DefaultLists, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultLists, nil
		}
		return RuleLists{}, fmt.Errorf("read rule lists: %w", err)
	}

	var lists RuleLists
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return RuleLists{}, fmt.Errorf("parse rule lists: %w", err)
	}
	return lists, nil
}

// IsDefinitelySafe reports whether the URL contains any safe-domain entry.
func (e *Engine) IsDefinitelySafe(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, d := range e.safe {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// IsDefinitelyMalicious reports whether the URL contains any deny-list entry.
func (e *Engine) IsDefinitelyMalicious(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range e.malicious {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// SafeCount returns the number of loaded safe-domain entries.
func (e *Engine) SafeCount() int { return len(e.safe) }

// MaliciousCount returns the number of loaded deny-list entries.
func (e *Engine) MaliciousCount() int { return len(e.malicious) }

func normalize(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		out = append(out, entry)
	}
	return out
}
