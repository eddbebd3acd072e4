package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3AddSubScale(t *testing.T) {
	v := Vec3{X: 1, Y: 2, Z: 3}
	w := Vec3{X: 4, Y: 5, Z: 6}

	assert.Equal(t, Vec3{X: 5, Y: 7, Z: 9}, v.Add(w))
	assert.Equal(t, Vec3{X: -3, Y: -3, Z: -3}, v.Sub(w))
	assert.Equal(t, Vec3{X: 2, Y: 4, Z: 6}, v.Scale(2))
}

func TestVec3NormAndDist(t *testing.T) {
	v := Vec3{X: 3, Y: 4, Z: 0}
	assert.Equal(t, 5.0, v.Norm())
	assert.Equal(t, 5.0, Vec3{}.Dist(v))
}

func TestVec3ClampLeavesInRangePointsUntouched(t *testing.T) {
	v := Vec3{X: 10, Y: 20, Z: 30}
	assert.Equal(t, v, v.Clamp(100, 100, 100))
}

func TestVec3ClampReflectsBelowZero(t *testing.T) {
	v := Vec3{X: -5, Y: 0, Z: 0}
	assert.Equal(t, Vec3{X: 5, Y: 0, Z: 0}, v.Clamp(100, 100, 100))
}

func TestVec3ClampReflectsAboveMax(t *testing.T) {
	v := Vec3{X: 110, Y: 0, Z: 0}
	assert.Equal(t, Vec3{X: 90, Y: 0, Z: 0}, v.Clamp(100, 100, 100))
}
