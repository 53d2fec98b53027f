// Package main is a module serving the RoArm-M2-S arm and gripper models.
package main

import (
	"context"

	"go.viam.com/utils"

	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/module"

	"github.com/viam-community/roarm-m2s/m2sarm"
	"github.com/viam-community/roarm-m2s/m2sgripper"
)

func main() {
	utils.ContextualMain(mainWithArgs, module.NewLoggerFromArgs("roarm-m2s"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	mod, err := module.NewModuleFromArgs(ctx)
	if err != nil {
		return err
	}

	// Both models register themselves in init; the module only has to load them.
	if err := mod.AddModelFromRegistry(ctx, arm.API, m2sarm.Model); err != nil {
		return err
	}
	if err := mod.AddModelFromRegistry(ctx, gripper.API, m2sgripper.Model); err != nil {
		return err
	}

	err = mod.Start(ctx)
	defer mod.Close(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}
