// Package retention maps entry tags to how long the store keeps them.
package retention

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pbaille/tagvault/internal/domain"
)

// Default TTLs for the built-in tags.
const (
	PersonalTTL  = 24 * time.Hour
	MacIPTTL     = 30 * time.Second
	BackdoorTTL  = 3 * time.Second
	TelemetryTTL = 30 * time.Second
	GeneralTTL   = 60 * time.Second
)

// ConfigurationError reports a policy that cannot be constructed.
// Reason, when set, replaces the negative-TTL message.
type ConfigurationError struct {
	Tag    string
	TTL    time.Duration
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		if e.Tag == "" {
			return fmt.Sprintf("retention: default ttl: %s", e.Reason)
		}
		return fmt.Sprintf("retention: ttl for tag %q: %s", e.Tag, e.Reason)
	}
	if e.Tag == "" {
		return fmt.Sprintf("retention: negative default ttl %s", e.TTL)
	}
	return fmt.Sprintf("retention: negative ttl %s for tag %q", e.TTL, e.Tag)
}

// Policy is an immutable tag -> TTL mapping with a fallback for unknown tags.
type Policy struct {
	ttls       map[string]time.Duration
	defaultTTL time.Duration
}

// New builds a Policy. The map is copied; later changes to it have no effect.
func New(ttls map[string]time.Duration, defaultTTL time.Duration) (*Policy, error) {
	if defaultTTL < 0 {
		return nil, &ConfigurationError{TTL: defaultTTL}
	}
	copied := make(map[string]time.Duration, len(ttls))
	for tag, ttl := range ttls {
		if ttl < 0 {
			return nil, &ConfigurationError{Tag: tag, TTL: ttl}
		}
		copied[tag] = ttl
	}
	return &Policy{ttls: copied, defaultTTL: defaultTTL}, nil
}

// FromSeconds builds a Policy from whole-second values as they appear in config files.
func FromSeconds(ttls map[string]int64, defaultSeconds int64) (*Policy, error) {
	durations := make(map[string]time.Duration, len(ttls))
	for tag, s := range ttls {
		d, err := secondsToDuration(tag, s)
		if err != nil {
			return nil, err
		}
		durations[tag] = d
	}
	def, err := secondsToDuration("", defaultSeconds)
	if err != nil {
		return nil, err
	}
	return New(durations, def)
}

const maxSeconds = math.MaxInt64 / int64(time.Second)

func secondsToDuration(tag string, s int64) (time.Duration, error) {
	if s > maxSeconds {
		return 0, &ConfigurationError{Tag: tag, Reason: fmt.Sprintf("%d seconds exceeds the maximum of %d", s, maxSeconds)}
	}
	if s < -maxSeconds {
		return 0, &ConfigurationError{Tag: tag, TTL: time.Duration(math.MinInt64)}
	}
	return time.Duration(s) * time.Second, nil
}

// Default returns the built-in policy. The general tag has no explicit entry
// and resolves to the default TTL.
func Default() *Policy {
	p, _ := New(map[string]time.Duration{
		"personal":  PersonalTTL,
		"mac_ip":    MacIPTTL,
		"backdoor":  BackdoorTTL,
		"telemetry": TelemetryTTL,
	}, GeneralTTL)
	return p
}

// TTLFor returns the TTL for tag, or the default TTL when the tag is unknown.
func (p *Policy) TTLFor(tag string) time.Duration {
	if ttl, ok := p.ttls[tag]; ok {
		return ttl
	}
	return p.defaultTTL
}

// DefaultTTL returns the fallback TTL.
func (p *Policy) DefaultTTL() time.Duration {
	return p.defaultTTL
}

// EffectiveTTL returns the strictest (smallest) TTL among tags.
// An empty tag set is treated as the general tag.
func (p *Policy) EffectiveTTL(tags []string) time.Duration {
	if len(tags) == 0 {
		return p.TTLFor(domain.GeneralTag)
	}
	ttl := p.TTLFor(tags[0])
	for _, tag := range tags[1:] {
		if t := p.TTLFor(tag); t < ttl {
			ttl = t
		}
	}
	return ttl
}

// Tags lists the explicitly configured tags in sorted order.
func (p *Policy) Tags() []string {
	tags := make([]string, 0, len(p.ttls))
	for tag := range p.ttls {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Seconds returns the configured table in whole seconds, for display.
func (p *Policy) Seconds() map[string]int64 {
	out := make(map[string]int64, len(p.ttls))
	for tag, ttl := range p.ttls {
		out[tag] = int64(ttl / time.Second)
	}
	return out
}
