package roarm

import (
	"github.com/pkg/errors"
)

// Joint numbering used by the M2-S firmware. The gripper rides on axis 4 and
// is addressed like any other joint.
const (
	JointBase     = 0
	JointShoulder = 1
	JointElbow    = 2
	JointWrist    = 3
	JointGripper  = 4
)

// NumJoints is the number of positional joints in the kinematic chain,
// excluding the gripper.
const NumJoints = 4

// Bounds for the firmware's own units.
const (
	MinSpeed = 0
	MaxSpeed = 100

	GripperClosed = 0
	GripperOpen   = 100

	// DefaultSpeed is slow enough to be safe on a bench.
	DefaultSpeed = 10
)

// ModeJoint is the "m" value for an absolute single-joint position command.
const ModeJoint = 1

// Command is a single request to the arm's web server. T is a millisecond
// timestamp the firmware uses to distinguish commands; the zero value lets
// the client stamp it at send time. The remaining fields are optional and
// stay off the wire when nil.
type Command struct {
	T    int64 `json:"T"`
	Mode *int  `json:"m,omitempty"`
	Axis *int  `json:"axis,omitempty"`
	Cmd  *int  `json:"cmd,omitempty"`
	Spd  *int  `json:"spd,omitempty"`
}

// Int returns a pointer to v, for filling Command's optional fields.
func Int(v int) *int { return &v }

func validateAxis(axis int) error {
	if axis < JointBase || axis > JointGripper {
		return errors.Errorf("axis has to be between %d and %d, got %d", JointBase, JointGripper, axis)
	}
	return nil
}

func validateSpeed(speed int) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return errors.Errorf("speed has to be between %d and %d, got %d", MinSpeed, MaxSpeed, speed)
	}
	return nil
}

func validateGripperValue(value int) error {
	if value < GripperClosed || value > GripperOpen {
		return errors.Errorf("gripper value has to be between %d (closed) and %d (open), got %d",
			GripperClosed, GripperOpen, value)
	}
	return nil
}
