package autopilot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternStore_UpdateCreatesWhenAbsent(t *testing.T) {
	store := NewPatternStore()
	key := PatternKey{Project: "steward-development", Model: "gpt-4"}

	p := store.Update(key, func(p *Pattern) {
		p.Confidence = 0.9
		p.SuccessRate = 0.9
	})

	assert.Equal(t, 1, store.Len())
	assert.True(t, p.Enabled)
	assert.Equal(t, 0.9, p.Confidence)
}

func TestPatternStore_ClampCeiling(t *testing.T) {
	store := NewPatternStore()
	key := PatternKey{Project: "p", Model: "m"}

	p := store.Update(key, func(p *Pattern) {
		p.Confidence = 1.5
		p.SuccessRate = 2.0
	})

	assert.Equal(t, PatternCeiling, p.Confidence)
	assert.Equal(t, PatternCeiling, p.SuccessRate)
}

func TestPatternStore_ClampFloorDisables(t *testing.T) {
	store := NewPatternStore()
	key := PatternKey{Project: "p", Model: "m"}

	p := store.Update(key, func(p *Pattern) {
		p.Confidence = 0.1
		p.SuccessRate = 0.1
	})

	// Clamped to the floor, which is below the minimum success rate.
	assert.Equal(t, PatternFloor, p.Confidence)
	assert.Equal(t, PatternFloor, p.SuccessRate)
	assert.False(t, p.Enabled)
}

func TestPatternStore_DisableIsOneWay(t *testing.T) {
	store := NewPatternStore()
	key := PatternKey{Project: "p", Model: "m"}

	store.Update(key, func(p *Pattern) {
		p.Confidence = 0.9
		p.SuccessRate = 0.80 // below MinSuccessRate, disables
	})

	// Driving the success rate back above the minimum must not re-enable.
	p := store.Update(key, func(p *Pattern) {
		p.SuccessRate = 0.95
	})

	assert.False(t, p.Enabled, "disabled pattern must stay disabled")
}

func TestPatternStore_GetReturnsCopy(t *testing.T) {
	store := NewPatternStore()
	key := PatternKey{Project: "p", Model: "m"}
	store.Update(key, func(p *Pattern) {
		p.Confidence = 0.9
		p.SuccessRate = 0.9
	})

	p1, ok := store.Get(key)
	assert.True(t, ok)
	p1.Confidence = 0.1

	p2, _ := store.Get(key)
	assert.Equal(t, 0.9, p2.Confidence, "mutating a copy must not affect the store")
}

func TestPatternStore_GetMissing(t *testing.T) {
	store := NewPatternStore()
	_, ok := store.Get(PatternKey{Project: "nope", Model: "nope"})
	assert.False(t, ok)
}

func TestPatternStore_All(t *testing.T) {
	store := NewPatternStore()
	store.Update(PatternKey{Project: "a", Model: "m"}, func(p *Pattern) { p.SuccessRate = 0.9 })
	store.Update(PatternKey{Project: "b", Model: "m"}, func(p *Pattern) { p.SuccessRate = 0.9 })

	all := store.All()
	assert.Len(t, all, 2)

	all[0].Confidence = 0.1
	fresh, _ := store.Get(all[0].Key)
	assert.NotEqual(t, 0.1, fresh.Confidence, "All returns copies")
}
