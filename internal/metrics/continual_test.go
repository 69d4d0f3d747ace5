package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imishinist/wmg-cli/internal/models"
)

func TestContinualTransfer(t *testing.T) {
	got := ContinualTransfer([]float64{1, 3, 2})
	assert.Equal(t, 1.0, got[ForwardTransfer])
	assert.Equal(t, 1.5, got[BackwardTransfer])
	assert.Equal(t, 1.0, got[Forgetting])
}

func TestContinualTransferEdgeCases(t *testing.T) {
	assert.Equal(t, map[string]float64{
		ForwardTransfer:  0,
		BackwardTransfer: 0,
		Forgetting:       0,
	}, ContinualTransfer(nil))

	single := ContinualTransfer([]float64{2})
	assert.Equal(t, 0.0, single[ForwardTransfer])
	assert.Equal(t, -2.0, single[BackwardTransfer])
	assert.Equal(t, 0.0, single[Forgetting])
}

func TestEpisodeReturns(t *testing.T) {
	episodes := []models.Episode{
		{Steps: []models.Step{{Reward: 1}, {Reward: 2}}},
		{},
	}
	assert.Equal(t, []float64{3, 0}, EpisodeReturns(episodes))
	assert.True(t, EpisodeSucceeded(episodes[0]))
	assert.False(t, EpisodeSucceeded(episodes[1]))
}
