package components

import (
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/tessera/engine/math"
)

/**
 * @brief An orbit camera looking at Target from Distance units away.
 * Yaw and pitch are in radians.
 */
type Camera struct {
	Target   math.Vec3
	Distance float32
	yaw      float32
	pitch    float32

	FOV    float32
	Near   float32
	Far    float32
	aspect float32

	/** @brief Internal flag used to determine when the matrices need to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: Do not read this directly, use GetView() instead
	 * so the view matrix is recalculated when needed.
	 */
	ViewMatrix       math.Mat4
	projectionMatrix math.Mat4
}

// Pitch is clamped just short of the poles so the look-at basis stays valid.
const pitchLimit float32 = 1.55334306 // 89 degrees

func NewCamera(width, height uint32) *Camera {
	camera := &Camera{}
	camera.Reset()
	camera.SetViewport(width, height)
	return camera
}

func (c *Camera) Reset() {
	c.Target = math.NewVec3Zero()
	c.Distance = 10.0
	c.yaw = 0
	c.pitch = 0.5
	c.FOV = math.DegToRad(45.0)
	c.Near = 0.1
	c.Far = 1000.0
	c.aspect = 1.0
	c.IsDirty = true
}

// SetViewport updates the aspect ratio. Zero sizes are ignored.
func (c *Camera) SetViewport(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.aspect = float32(width) / float32(height)
	c.IsDirty = true
}

func (c *Camera) GetPosition() math.Vec3 {
	sy, cy := math32.Sincos(c.yaw)
	sp, cp := math32.Sincos(c.pitch)
	offset := math.NewVec3(c.Distance*cp*sy, c.Distance*sp, c.Distance*cp*cy)
	return c.Target.Add(offset)
}

func (c *Camera) Yaw(amount float32) {
	c.yaw += amount
	c.IsDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.pitch = math.Clamp(c.pitch+amount, -pitchLimit, pitchLimit)
	c.IsDirty = true
}

// Zoom moves the camera towards the target, never closer than the near plane.
func (c *Camera) Zoom(amount float32) {
	c.Distance = math.Clamp(c.Distance-amount, c.Near*2, c.Far*0.5)
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	c.update()
	return c.ViewMatrix
}

func (c *Camera) GetProjection() math.Mat4 {
	c.update()
	return c.projectionMatrix
}

// ProjectionView is the matrix handed to the instance compute pass.
func (c *Camera) ProjectionView() math.Mat4 {
	c.update()
	return c.ViewMatrix.Mul(c.projectionMatrix)
}

func (c *Camera) update() {
	if !c.IsDirty {
		return
	}
	c.ViewMatrix = math.NewMat4LookAt(c.GetPosition(), c.Target, math.NewVec3Up())
	c.projectionMatrix = math.NewMat4Perspective(c.FOV, c.aspect, c.Near, c.Far)
	c.IsDirty = false
}
