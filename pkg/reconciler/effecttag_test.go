package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectTagString(t *testing.T) {
	tests := []struct {
		tag  EffectTag
		want string
	}{
		{NoEffect, "NoEffect"},
		{UpdateEffect, "Update"},
		{RefEffect, "Ref"},
		{PlacementAndUpdate, "Placement|Update"},
		{UpdateEffect | Passive, "Update|Passive"},
		{Incomplete | ShouldCapture, "Incomplete|ShouldCapture"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.tag.String())
	}
}

func TestEffectTagMasks(t *testing.T) {
	assert.True(t, PlacementAndUpdate.Has(Placement))
	assert.True(t, PlacementAndUpdate.Has(UpdateEffect))
	assert.False(t, UpdateEffect.Has(PlacementAndUpdate))

	for _, tag := range []EffectTag{UpdateEffect, Callback, RefEffect, Snapshot, Passive} {
		assert.True(t, LifecycleEffectMask.Has(tag), tag.String())
	}
	assert.False(t, LifecycleEffectMask.Has(Placement))
	assert.False(t, LifecycleEffectMask.Has(Deletion))

	assert.Zero(t, HostEffectMask&Incomplete)
	assert.Zero(t, HostEffectMask&ShouldCapture)
	assert.Equal(t, RefEffect, HostEffectMask&RefEffect)
}
