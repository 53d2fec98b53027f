// Package m2sgripper implements the RoArm-M2-S gripper. The gripper is the
// arm's fifth axis, so this component rides on a configured m2s arm instead
// of opening its own connection.
package m2sgripper

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/operation"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-community/roarm-m2s/m2sarm"
	"github.com/viam-community/roarm-m2s/roarm"
)

// Model is the model used to refer to the RoArm-M2-S gripper.
var Model = resource.NewModel("viam-community", "roarm", "m2s-gripper")

// Config is the config for an M2-S gripper.
type Config struct {
	Arm string `json:"arm"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	var deps []string
	if conf.Arm == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "arm")
	}
	deps = append(deps, conf.Arm)
	return deps, nil
}

func init() {
	resource.RegisterComponent(gripper.API, Model, resource.Registration[gripper.Gripper, *Config]{
		Constructor: newGripper,
	})
}

func newGripper(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (gripper.Gripper, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}

	myArm, err := arm.FromDependencies(deps, newConf.Arm)
	if err != nil {
		return nil, err
	}
	m2sArm, ok := myArm.(*m2sarm.M2S)
	if !ok {
		return nil, fmt.Errorf("m2s gripper needs an m2s arm, got %T", myArm)
	}

	g := &m2sGripper{
		Named:  conf.ResourceName().AsNamed(),
		arm:    m2sArm,
		opMgr:  operation.NewSingleOperationManager(),
		logger: logger,
	}
	if conf.Frame != nil && conf.Frame.Geometry != nil {
		geometry, err := conf.Frame.Geometry.ParseConfig()
		if err != nil {
			return nil, err
		}
		g.geometries = []spatialmath.Geometry{geometry}
	}
	return g, nil
}

type m2sGripper struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable
	arm        *m2sarm.M2S
	opMgr      *operation.SingleOperationManager
	geometries []spatialmath.Geometry
	logger     logging.Logger
}

// Open opens the gripper fully.
func (g *m2sGripper) Open(ctx context.Context, extra map[string]interface{}) error {
	ctx, done := g.opMgr.New(ctx)
	defer done()
	return g.arm.MoveGripper(ctx, roarm.GripperOpen)
}

// Grab closes the gripper fully. The wire protocol carries no grasp
// feedback, so this always reports that nothing was held.
func (g *m2sGripper) Grab(ctx context.Context, extra map[string]interface{}) (bool, error) {
	ctx, done := g.opMgr.New(ctx)
	defer done()
	return false, g.arm.MoveGripper(ctx, roarm.GripperClosed)
}

// Stop is unsupported: the firmware offers no halt command.
func (g *m2sGripper) Stop(ctx context.Context, extra map[string]interface{}) error {
	return errors.New("roarm-m2s firmware has no stop command")
}

// IsMoving returns whether the gripper is moving.
func (g *m2sGripper) IsMoving(ctx context.Context) (bool, error) {
	return g.opMgr.OpRunning(), nil
}

// ModelFrame is nil; the gripper is not part of the arm's kinematic chain.
func (g *m2sGripper) ModelFrame() referenceframe.Model {
	return nil
}

// Geometries returns the geometries associated with the gripper.
func (g *m2sGripper) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	return g.geometries, nil
}
