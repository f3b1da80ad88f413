package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"micscribe/internal/ports"
)

type stubProvider struct{ name string }

func (stubProvider) Configure(ports.RecognitionConfig)     {}
func (stubProvider) SetListener(ports.RecognitionListener) {}
func (stubProvider) Start() error                          { return nil }
func (stubProvider) Stop()                                 {}
func (stubProvider) Abort()                                {}

func backend(name string, available bool, built *[]string) Backend {
	return Backend{
		Name:      name,
		Available: func() bool { return available },
		Build: func() ports.RecognitionProvider {
			*built = append(*built, name)
			return stubProvider{name: name}
		},
	}
}

func TestDetectPicksFirstAvailable(t *testing.T) {
	var built []string
	d := NewDetector([]Backend{
		backend("deepgram", false, &built),
		backend("openai", true, &built),
		backend("other", true, &built),
	}, nil)

	provider, ok := d.Detect()
	require.True(t, ok)
	assert.Equal(t, stubProvider{name: "openai"}, provider)
	assert.Equal(t, []string{"openai"}, built)
	assert.Equal(t, "openai", d.Selected())
}

func TestDetectReportsMissingCapability(t *testing.T) {
	var built []string
	d := NewDetector([]Backend{backend("deepgram", false, &built), {Name: "broken"}}, nil)

	provider, ok := d.Detect()
	assert.False(t, ok)
	assert.Nil(t, provider)
	assert.Empty(t, built)
	assert.Empty(t, d.Selected())
}

func TestOrderFollowsPreference(t *testing.T) {
	var built []string
	all := []Backend{backend("deepgram", true, &built), backend("openai", true, &built)}

	ordered := Order(all, []string{" OpenAI ", "unknown", "deepgram", "openai", ""})
	require.Len(t, ordered, 2)
	assert.Equal(t, "openai", ordered[0].Name)
	assert.Equal(t, "deepgram", ordered[1].Name)

	assert.Empty(t, Order(all, nil))
}

func TestCommandAvailable(t *testing.T) {
	assert.False(t, CommandAvailable(""))
	assert.False(t, CommandAvailable("micscribe-definitely-missing-binary"))
	assert.True(t, CommandAvailable("sh"))
}
