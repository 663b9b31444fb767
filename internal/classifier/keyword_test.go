package classifier

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestKeywordClassify(t *testing.T) {
	c := Default()

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"backdoor", "backdoor packet from 10.0.0.9", []string{"backdoor"}},
		{"personal", "face, fingerprint scan data", []string{"personal"}},
		{"no match", "hello world", nil},
		{"empty", "", []string{"general"}},
		{"two tags", "mac 00:1a:2b seen near face camera", []string{"mac_ip", "personal"}},
		{"case insensitive", "TELEMETRY burst", []string{"telemetry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.content))
		})
	}
}

func TestNewKeywordNormalizesTable(t *testing.T) {
	c := NewKeyword(map[string][]string{
		"secret": {"  TopSecret ", ""},
		"empty":  {"", "   "},
	})

	assert.Equal(t, []string{"secret"}, c.Tags())
	assert.Equal(t, []string{"secret"}, c.Classify("this is topsecret"))
}

func TestClassifyFindsEmbeddedTriggers(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	c := Default()

	properties.Property("a trigger anywhere in the content attaches its tag", prop.ForAll(
		func(prefix, suffix string, idx int) bool {
			tags := c.Tags()
			tag := tags[idx%len(tags)]
			words := DefaultKeywords[tag]
			word := words[idx%len(words)]

			for _, got := range c.Classify(prefix + word + suffix) {
				if got == tag {
					return true
				}
			}
			return false
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
