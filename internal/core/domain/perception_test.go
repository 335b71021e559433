package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropagatePerception_InitializeVision(t *testing.T) {
	out := PropagatePerception(0, PerceptionInitializeVision)

	assert.True(t, out.Has(PerceptionRefreshVision))
	assert.True(t, out.Has(PerceptionRefreshTiles))
	assert.True(t, out.Has(PerceptionRefreshLighting))
	assert.True(t, out.Has(PerceptionRefreshLightSources))
	assert.True(t, out.Has(PerceptionRefreshPrimary))
	assert.True(t, out.Has(PerceptionRefreshVisionSources), "transitive via refreshVision")
	assert.False(t, out.Has(PerceptionInitializeSounds))
}

func TestPropagatePerception_Transitive(t *testing.T) {
	out := PropagatePerception(0, PerceptionInitializeLighting)

	assert.True(t, out.Has(PerceptionRefreshLighting))
	assert.True(t, out.Has(PerceptionRefreshLightSources), "initializeLighting implies refreshLighting implies refreshLightSources")
	assert.False(t, out.Has(PerceptionRefreshVision))
}

func TestPropagatePerception_Reset(t *testing.T) {
	pending := PerceptionForceUpdateFog
	out := PropagatePerception(pending, PerceptionInitializeVision)

	assert.False(t, out.Has(PerceptionForceUpdateFog), "full vision rebuild clears the incremental fog commit")
}

func TestPropagatePerception_AccumulatesPending(t *testing.T) {
	out := PropagatePerception(PerceptionRefreshSounds, PerceptionRefreshLighting)

	assert.True(t, out.Has(PerceptionRefreshSounds))
	assert.True(t, out.Has(PerceptionRefreshLighting))
	assert.True(t, out.Has(PerceptionRefreshLightSources))
}
