package classifier

import (
	"sort"
	"strings"

	"github.com/pbaille/tagvault/internal/domain"
)

// Classifier maps content to the set of tags it should carry
type Classifier interface {
	Classify(content string) []string
}

// DefaultKeywords is the built-in trigger table
var DefaultKeywords = map[string][]string{
	"personal": {
		"face", "fingerprint", "biometric", "passport", "social security",
		"ssn", "date of birth", "home address", "phone number",
	},
	"mac_ip": {
		"mac", "ip address", "ipv4", "ipv6", "hostname",
	},
	"backdoor": {
		"backdoor", "rootkit", "reverse shell", "keylogger", "trojan",
	},
	"telemetry": {
		"telemetry", "tracking", "analytics", "beacon", "usage stats",
	},
}

// Keyword classifies content by case-insensitive substring matching.
// Every tag with at least one matching trigger is returned.
type Keyword struct {
	triggers map[string][]string
	tags     []string
}

// NewKeyword creates a Keyword classifier from a tag -> triggers table.
// Triggers are lowercased; empty triggers are ignored.
func NewKeyword(table map[string][]string) *Keyword {
	k := &Keyword{triggers: make(map[string][]string, len(table))}
	for tag, words := range table {
		var lowered []string
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				lowered = append(lowered, w)
			}
		}
		if len(lowered) == 0 {
			continue
		}
		k.triggers[tag] = lowered
		k.tags = append(k.tags, tag)
	}
	sort.Strings(k.tags)
	return k
}

// Default creates a Keyword classifier over DefaultKeywords
func Default() *Keyword {
	return NewKeyword(DefaultKeywords)
}

// Classify returns the sorted matching tags, or nil when nothing matches.
// Empty content classifies as the general tag.
func (k *Keyword) Classify(content string) []string {
	if content == "" {
		return []string{domain.GeneralTag}
	}
	content = strings.ToLower(content)

	var tags []string
	for _, tag := range k.tags {
		for _, w := range k.triggers[tag] {
			if strings.Contains(content, w) {
				tags = append(tags, tag)
				break
			}
		}
	}
	return tags
}

// Tags returns every tag this classifier can produce
func (k *Keyword) Tags() []string {
	return append([]string(nil), k.tags...)
}
