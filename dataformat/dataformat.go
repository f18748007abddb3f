// Package dataformat holds the payload types plugins exchange over the event
// bus. Payloads are published as shared pointers and must be treated as
// read-only by every subscriber.
package dataformat

import "time"

// Frame buffer dimensions of an eye texture.
const (
	FBWidth  = 2560
	FBHeight = 1440
)

// Well-known topic names.
const (
	TopicSlowPose    = "slow_pose"
	TopicFastPose    = "fast_pose"
	TopicIMU         = "imu"
	TopicTexturePose = "texture_pose"
)

// Vec3 is a position or direction in metres.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a unit quaternion.
type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity returns the identity rotation.
func Identity() Quat { return Quat{W: 1} }

// Pose is a tracked head pose.
type Pose struct {
	SensorTime  time.Duration `json:"sensor_time"`
	Position    Vec3          `json:"position"`
	Orientation Quat          `json:"orientation"`
}

// FastPose is a pose predicted for a future display time.
type FastPose struct {
	Pose                Pose          `json:"pose"`
	PredictComputedTime time.Duration `json:"predict_computed_time"`
	PredictTargetTime   time.Duration `json:"predict_target_time"`
}

// IMUSample is one inertial measurement.
type IMUSample struct {
	Time               time.Duration `json:"time"`
	AngularVelocity    Vec3          `json:"angular_velocity"`
	LinearAcceleration Vec3          `json:"linear_acceleration"`
}

// TexturePose pairs a rendered frame with the poses it was rendered for.
//
// Image is tightly packed RGB8, bottom row first as read back from the
// renderer. Width and Height default to FBWidth and FBHeight when zero.
type TexturePose struct {
	OffloadDuration  time.Duration `json:"offload_duration"`
	Image            []byte        `json:"-"`
	Width            int           `json:"width,omitempty"`
	Height           int           `json:"height,omitempty"`
	PoseTime         time.Duration `json:"pose_time"`
	Position         Vec3          `json:"position"`
	LatestQuaternion Quat          `json:"latest_quaternion"`
	RenderQuaternion Quat          `json:"render_quaternion"`
}

// Size returns the frame dimensions.
func (t *TexturePose) Size() (width, height int) {
	width, height = t.Width, t.Height
	if width == 0 {
		width = FBWidth
	}
	if height == 0 {
		height = FBHeight
	}
	return width, height
}
