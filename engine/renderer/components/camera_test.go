package components

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/stretchr/testify/assert"
)

func TestCameraLooksAtTarget(t *testing.T) {
	c := NewCamera(1280, 720)
	c.Target = math.NewVec3(1, 2, 3)
	c.IsDirty = true

	inView := c.Target.Transform(c.GetView())
	assert.True(t, inView.Compare(math.NewVec3(0, 0, -c.Distance), 1e-4), "got %+v", inView)
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera(800, 600)
	c.Pitch(10)
	assert.InDelta(t, pitchLimit, c.pitch, 1e-6)
	c.Pitch(-20)
	assert.InDelta(t, -pitchLimit, c.pitch, 1e-6)
}

func TestCameraZoomKeepsDistancePositive(t *testing.T) {
	c := NewCamera(800, 600)
	c.Zoom(1000)
	assert.Greater(t, c.Distance, c.Near)
	assert.InDelta(t, float64(c.GetPosition().Sub(c.Target).Length()), float64(c.Distance), 1e-3)
}

func TestCameraIgnoresZeroViewport(t *testing.T) {
	c := NewCamera(800, 400)
	before := c.GetProjection()
	c.SetViewport(0, 400)
	assert.Equal(t, before, c.GetProjection())

	c.SetViewport(400, 400)
	assert.NotEqual(t, before, c.GetProjection())
}

func TestProjectionViewComposesViewThenProjection(t *testing.T) {
	c := NewCamera(1024, 768)
	assert.Equal(t, c.GetView().Mul(c.GetProjection()), c.ProjectionView())
}
