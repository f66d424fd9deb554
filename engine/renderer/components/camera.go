package components

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/saeedelsayed/vulkan-playground/engine/math"
)

/**
 * @brief Represents a camera that can be used for
 * a variety of things, especially rendering. Ideally,
 * these are created and managed by the camera system.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position mgl32.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles (pitch, yaw, roll),
	 * applied in Y, X, Z order.
	 * NOTE: Do not set this directly, use SetEulerRotation() instead
	 * so the view matrix is recalculated when needed.
	 */
	EulerRotation mgl32.Vec3
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: IMPORTANT: Do not get this directly, use GetView() instead
	 * so the view matrix is recalculated when needed.
	 */
	ViewMatrix mgl32.Mat4

	/** @brief Vertical field of view in radians. */
	FOV  float32
	Near float32
	Far  float32
}

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

// 89 degrees
const pitchLimit = float32(1.55334306)

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.EulerRotation = mgl32.Vec3{}
	c.Position = mgl32.Vec3{}
	c.IsDirty = false
	c.ViewMatrix = mgl32.Ident4()
	c.FOV = mgl32.DegToRad(50)
	c.Near = 0.1
	c.Far = 100
}

func (c *Camera) GetPosition() mgl32.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) GetEulerRotation() mgl32.Vec3 {
	return c.EulerRotation
}

func (c *Camera) SetEulerRotation(rotation mgl32.Vec3) {
	c.EulerRotation = rotation
	c.IsDirty = true
}

func (c *Camera) rotation() mgl32.Mat4 {
	return mgl32.HomogRotate3DY(c.EulerRotation.Y()).
		Mul4(mgl32.HomogRotate3DX(c.EulerRotation.X())).
		Mul4(mgl32.HomogRotate3DZ(c.EulerRotation.Z()))
}

func (c *Camera) GetView() mgl32.Mat4 {
	if c.IsDirty {
		transform := mgl32.Translate3D(c.Position.X(), c.Position.Y(), c.Position.Z()).Mul4(c.rotation())
		c.ViewMatrix = transform.Inv()
		c.IsDirty = false
	}
	return c.ViewMatrix
}

// Projection is a right handed perspective projection with Vulkan's
// downward Y clip axis and [0, 1] depth.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	f := float32(1 / gomath.Tan(float64(c.FOV)/2))
	var p mgl32.Mat4
	p[0] = f / aspect
	p[5] = -f
	p[10] = c.Far / (c.Near - c.Far)
	p[11] = -1
	p[14] = c.Near * c.Far / (c.Near - c.Far)
	return p
}

// ProjectionView is Projection(aspect) * GetView().
func (c *Camera) ProjectionView(aspect float32) mgl32.Mat4 {
	return c.Projection(aspect).Mul4(c.GetView())
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.rotation().Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3()
}

func (c *Camera) Backward() mgl32.Vec3 {
	return c.Forward().Mul(-1)
}

func (c *Camera) Left() mgl32.Vec3 {
	return c.Right().Mul(-1)
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.rotation().Mul4x1(mgl32.Vec4{1, 0, 0, 0}).Vec3()
}

func (c *Camera) move(direction mgl32.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.Mul(amount))
	c.IsDirty = true
}

func (c *Camera) MoveForward(amount float32) {
	c.move(c.Forward(), amount)
}

func (c *Camera) MoveBackward(amount float32) {
	c.move(c.Backward(), amount)
}

func (c *Camera) MoveLeft(amount float32) {
	c.move(c.Left(), amount)
}

func (c *Camera) MoveRight(amount float32) {
	c.move(c.Right(), amount)
}

func (c *Camera) MoveUp(amount float32) {
	c.move(mgl32.Vec3{0, 1, 0}, amount)
}

func (c *Camera) MoveDown(amount float32) {
	c.move(mgl32.Vec3{0, -1, 0}, amount)
}

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation[1] += amount
	c.IsDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation[0] += amount
	// Clamp to avoid Gimbal lock.
	c.EulerRotation[0] = math.Clamp(c.EulerRotation[0], -pitchLimit, pitchLimit)
	c.IsDirty = true
}

// Orbit places the camera on a circle of the given radius around target,
// raised by height, and turns it to face the target.
func (c *Camera) Orbit(target mgl32.Vec3, radius, height, angle float32) {
	s, co := gomath.Sincos(float64(angle))
	c.Position = target.Add(mgl32.Vec3{float32(s) * radius, height, float32(co) * radius})
	pitch := -float32(gomath.Atan2(float64(height), float64(radius)))
	c.EulerRotation = mgl32.Vec3{math.Clamp(pitch, -pitchLimit, pitchLimit), angle, 0}
	c.IsDirty = true
}
