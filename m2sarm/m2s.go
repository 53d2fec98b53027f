// Package m2sarm implements the Waveshare RoArm-M2-S as an arm component,
// driven over the wire protocol in the roarm package.
package m2sarm

import (
	"context"
	// for embedding model file.
	_ "embed"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	pb "go.viam.com/api/component/arm/v1"
	goutils "go.viam.com/utils"

	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/motionplan"
	"go.viam.com/rdk/operation"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-community/roarm-m2s/roarm"
)

// Model is the model used to refer to the RoArm-M2-S arm.
var Model = resource.NewModel("viam-community", "roarm", "m2s")

//go:embed m2s.json
var modeljson []byte

// MakeModelFrame returns the kinematics model of the M2-S, also has all
// Frame information.
func MakeModelFrame(name string) (referenceframe.Model, error) {
	return referenceframe.UnmarshalModelJSON(modeljson, name)
}

type jointRange struct {
	name     string
	min, max float64
}

// Mechanical limits in degrees, matching the embedded kinematics file. The
// firmware clamps silently past these; we reject instead.
var jointRanges = [roarm.NumJoints]jointRange{
	{"base", -180, 180},
	{"shoulder", -90, 90},
	{"elbow", -45, 180},
	{"wrist", -90, 90},
}

// Config is the config for a RoArm-M2-S arm.
type Config struct {
	Host      string `json:"host"`
	Port      int    `json:"port,omitempty"`
	Speed     int    `json:"speed,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Host == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "host")
	}
	if conf.Port < 0 || conf.Port > 65535 {
		return nil, errors.Errorf("port for roarm-m2s has to be a valid tcp port, got %d", conf.Port)
	}
	if conf.Speed < roarm.MinSpeed || conf.Speed > roarm.MaxSpeed {
		return nil, errors.Errorf("speed for roarm-m2s has to be between %d and %d", roarm.MinSpeed, roarm.MaxSpeed)
	}
	if conf.TimeoutMS < 0 {
		return nil, errors.New("timeout_ms for roarm-m2s cannot be negative")
	}
	return []string{}, nil
}

func init() {
	resource.RegisterComponent(arm.API, Model, resource.Registration[arm.Arm, *Config]{
		Constructor: NewM2S,
	})
}

// M2S is an arm.Arm over the M2-S wire protocol. Joint state is tracked on
// the driver side: the firmware's replies are undocumented, so the last
// commanded angles are the source of truth for position.
type M2S struct {
	resource.Named
	resource.TriviallyCloseable
	logger logging.Logger
	opMgr  *operation.SingleOperationManager
	model  referenceframe.Model

	mu     sync.Mutex
	client *roarm.Client
	speed  int
	joints [roarm.NumJoints]float64 // degrees
}

// NewM2S is a constructor to create a new M2S arm. It fails if the arm's web
// server is unreachable.
func NewM2S(ctx context.Context, _ resource.Dependencies, conf resource.Config, logger logging.Logger) (arm.Arm, error) {
	model, err := MakeModelFrame(conf.Name)
	if err != nil {
		return nil, err
	}

	a := &M2S{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		opMgr:  operation.NewSingleOperationManager(),
		model:  model,
	}
	if err := a.Reconfigure(ctx, nil, conf); err != nil {
		return nil, err
	}

	reply, err := a.status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error querying arm status during init")
	}
	logger.Debugf("connected to roarm-m2s: %s", reply)

	return a, nil
}

// Reconfigure swaps the wire client and speed in place based on the new
// config.
func (a *M2S) Reconfigure(ctx context.Context, _ resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}

	speed := newConf.Speed
	if speed == 0 {
		speed = roarm.DefaultSpeed
	}
	var opts []roarm.Option
	if newConf.TimeoutMS > 0 {
		opts = append(opts, roarm.WithTimeout(time.Duration(newConf.TimeoutMS)*time.Millisecond))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.client = roarm.New(newConf.Host, newConf.Port, a.logger, opts...)
	a.speed = speed
	return nil
}

func (a *M2S) status(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client.Status(ctx)
}

// EndPosition computes the pose of the wrist from the cached joint state via
// forward kinematics.
func (a *M2S) EndPosition(ctx context.Context, extra map[string]interface{}) (spatialmath.Pose, error) {
	joints, err := a.JointPositions(ctx, extra)
	if err != nil {
		return nil, err
	}
	return motionplan.ComputeOOBPosition(a.model, joints)
}

// MoveToPosition is unsupported: the firmware has no cartesian command and
// this driver ships no inverse kinematics solver.
func (a *M2S) MoveToPosition(ctx context.Context, pos spatialmath.Pose, extra map[string]interface{}) error {
	return roarm.ErrNoKinematics
}

// MoveToJointPositions moves each positional joint sequentially to the given
// absolute angles, in degrees, base first.
func (a *M2S) MoveToJointPositions(ctx context.Context, pos *pb.JointPositions, extra map[string]interface{}) error {
	ctx, done := a.opMgr.New(ctx)
	defer done()

	if len(pos.Values) > roarm.NumJoints {
		return errors.Errorf("roarm-m2s wrong number of degrees got %d, need at most %d",
			len(pos.Values), roarm.NumJoints)
	}
	for axis, d := range pos.Values {
		if r := jointRanges[axis]; d < r.min || d > r.max {
			return errors.Errorf("%s joint angle %.1f out of range [%.1f, %.1f]", r.name, d, r.min, r.max)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for axis, d := range pos.Values {
		if _, err := a.client.MoveJoint(ctx, axis, int(math.Round(d)), a.speed); err != nil {
			return errors.Wrapf(err, "error moving joint %d", axis)
		}
		a.joints[axis] = d
	}
	return nil
}

// JointPositions returns the last commanded joint state of the arm.
func (a *M2S) JointPositions(ctx context.Context, extra map[string]interface{}) (*pb.JointPositions, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	values := make([]float64, roarm.NumJoints)
	copy(values, a.joints[:])
	return &pb.JointPositions{Values: values}, nil
}

// MoveGripper drives the gripper axis to value, 0 closed through 100 open.
// The gripper component wraps this.
func (a *M2S) MoveGripper(ctx context.Context, value int) error {
	ctx, done := a.opMgr.New(ctx)
	defer done()

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.client.SetGripper(ctx, value, a.speed)
	return err
}

// Stop is unsupported: the firmware offers no halt command, and issued joint
// commands run to completion on the device.
func (a *M2S) Stop(ctx context.Context, extra map[string]interface{}) error {
	return errors.New("roarm-m2s firmware has no stop command")
}

// IsMoving returns whether the arm is moving.
func (a *M2S) IsMoving(ctx context.Context) (bool, error) {
	return a.opMgr.OpRunning(), nil
}

// ModelFrame returns all the information necessary for including the arm in
// a FrameSystem.
func (a *M2S) ModelFrame() referenceframe.Model {
	return a.model
}

// CurrentInputs returns the current inputs of the arm.
func (a *M2S) CurrentInputs(ctx context.Context) ([]referenceframe.Input, error) {
	res, err := a.JointPositions(ctx, nil)
	if err != nil {
		return nil, err
	}
	return a.model.InputFromProtobuf(res), nil
}

// GoToInputs moves the arm through the given inputs in order.
func (a *M2S) GoToInputs(ctx context.Context, inputSteps ...[]referenceframe.Input) error {
	for _, goal := range inputSteps {
		if err := a.MoveToJointPositions(ctx, a.model.ProtobufFromInput(goal), nil); err != nil {
			return err
		}
	}
	return nil
}

// DoCommand exposes the raw wire protocol. {"command": "status"} queries the
// arm; {"command": "raw"} sends the optional T, m, axis, cmd and spd fields
// as-is. The arm's reply comes back under "reply", unparsed.
func (a *M2S) DoCommand(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	cmd, ok := req["command"]
	if !ok {
		return nil, errors.New("missing 'command' string")
	}

	switch cmd {
	case "status":
		reply, err := a.status(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"reply": reply}, nil
	case "raw":
		var wire roarm.Command
		if v, ok := req["T"].(float64); ok {
			wire.T = int64(v)
		}
		if v, ok := req["m"].(float64); ok {
			wire.Mode = roarm.Int(int(v))
		}
		if v, ok := req["axis"].(float64); ok {
			wire.Axis = roarm.Int(int(v))
		}
		if v, ok := req["cmd"].(float64); ok {
			wire.Cmd = roarm.Int(int(v))
		}
		if v, ok := req["spd"].(float64); ok {
			wire.Spd = roarm.Int(int(v))
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		reply, err := a.client.Do(ctx, wire)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"reply": reply}, nil
	}
	return nil, errors.Errorf("unknown command string %v", cmd)
}

// Geometries returns the list of geometries associated with the resource, in
// any order. The poses of the geometries reflect their current location
// relative to the frame of the resource.
func (a *M2S) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	inputs, err := a.CurrentInputs(ctx)
	if err != nil {
		return nil, err
	}
	gif, err := a.model.Geometries(inputs)
	if err != nil {
		return nil, err
	}
	return gif.Geometries(), nil
}
