package retention

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := Default()

	assert.Equal(t, 24*time.Hour, p.TTLFor("personal"))
	assert.Equal(t, 30*time.Second, p.TTLFor("mac_ip"))
	assert.Equal(t, 3*time.Second, p.TTLFor("backdoor"))
	assert.Equal(t, 30*time.Second, p.TTLFor("telemetry"))
	assert.Equal(t, 60*time.Second, p.TTLFor("general"))
	assert.Equal(t, 60*time.Second, p.DefaultTTL())
	assert.Equal(t, 60*time.Second, p.TTLFor("unheard-of"))
}

func TestEffectiveTTL(t *testing.T) {
	p := Default()

	tests := []struct {
		name string
		tags []string
		want time.Duration
	}{
		{"empty falls back to general", nil, 60 * time.Second},
		{"single", []string{"backdoor"}, 3 * time.Second},
		{"strictest wins", []string{"personal", "mac_ip"}, 30 * time.Second},
		{"unknown uses default", []string{"mystery", "personal"}, 60 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.EffectiveTTL(tt.tags))
		})
	}
}

func TestNewRejectsNegativeTTL(t *testing.T) {
	_, err := New(map[string]time.Duration{"personal": -time.Second}, time.Minute)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "personal", cfgErr.Tag)

	_, err = New(nil, -time.Minute)
	require.True(t, errors.As(err, &cfgErr))
	assert.Empty(t, cfgErr.Tag)
}

func TestNewCopiesTable(t *testing.T) {
	table := map[string]time.Duration{"a": time.Second}
	p, err := New(table, time.Minute)
	require.NoError(t, err)

	table["a"] = time.Hour
	assert.Equal(t, time.Second, p.TTLFor("a"))
}

func TestFromSeconds(t *testing.T) {
	p, err := FromSeconds(map[string]int64{"telemetry": 45, "personal": 0}, 90)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, p.TTLFor("telemetry"))
	assert.Equal(t, time.Duration(0), p.TTLFor("personal"))
	assert.Equal(t, 90*time.Second, p.DefaultTTL())
	assert.Equal(t, []string{"personal", "telemetry"}, p.Tags())
	assert.Equal(t, map[string]int64{"telemetry": 45, "personal": 0}, p.Seconds())
}

func TestFromSecondsRejectsOverflow(t *testing.T) {
	var cfgErr *ConfigurationError

	_, err := FromSeconds(map[string]int64{"personal": 10_000_000_000}, 60)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "personal", cfgErr.Tag)
	assert.Contains(t, err.Error(), "exceeds the maximum")

	_, err = FromSeconds(nil, math.MaxInt64)
	require.True(t, errors.As(err, &cfgErr))
	assert.Empty(t, cfgErr.Tag)

	_, err = FromSeconds(map[string]int64{"telemetry": math.MinInt64}, 60)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "telemetry", cfgErr.Tag)

	p, err := FromSeconds(map[string]int64{"archive": maxSeconds}, 60)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(maxSeconds)*time.Second, p.TTLFor("archive"))
}
