// Package main is roarmctl, a small operator CLI for poking a RoArm-M2-S
// from a workstation.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"go.viam.com/rdk/logging"

	"github.com/viam-community/roarm-m2s/roarm"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:            "roarmctl",
		Usage:           "interact with a RoArm-M2-S robotic arm",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: roarm.DefaultHost,
				Usage: "IP address of the arm",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: roarm.DefaultPort,
				Usage: "port of the arm's web server",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: roarm.DefaultTimeout,
				Usage: "per-request timeout",
			},
			&cli.IntFlag{
				Name:  "speed",
				Value: roarm.DefaultSpeed,
				Usage: "movement speed, 0-100",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "query the arm and print its reply",
				Action: statusAction,
			},
			{
				Name:      "joint",
				Usage:     "move one joint to an absolute angle",
				ArgsUsage: "<axis 0-4> <angle degrees>",
				Action:    jointAction,
			},
			{
				Name:      "joints",
				Usage:     "move all positional joints, base first",
				ArgsUsage: "<base,shoulder,elbow,wrist degrees>",
				Action:    jointsAction,
			},
			{
				Name:  "gripper",
				Usage: "actuate the gripper",
				Subcommands: []*cli.Command{
					{
						Name:   "open",
						Usage:  "open the gripper fully",
						Action: gripperOpenAction,
					},
					{
						Name:   "close",
						Usage:  "close the gripper fully",
						Action: gripperCloseAction,
					},
					{
						Name:      "set",
						Usage:     "drive the gripper to a value, 0 closed through 100 open",
						ArgsUsage: "<value>",
						Action:    gripperSetAction,
					},
				},
			},
			{
				Name:  "raw",
				Usage: "send a raw wire command",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "T", Usage: "timestamp; defaults to now"},
					&cli.IntFlag{Name: "m", Usage: "mode"},
					&cli.IntFlag{Name: "axis", Usage: "axis 0-4"},
					&cli.IntFlag{Name: "cmd", Usage: "command value"},
					&cli.IntFlag{Name: "spd", Usage: "speed 0-100"},
				},
				Action: rawAction,
			},
		},
	}
}

func clientFromContext(c *cli.Context) *roarm.Client {
	logger := logging.NewLogger("roarmctl")
	if c.Bool("debug") {
		logger = logging.NewDebugLogger("roarmctl")
	}
	var opts []roarm.Option
	if d := c.Duration("timeout"); d > 0 {
		opts = append(opts, roarm.WithTimeout(d))
	}
	return roarm.New(c.String("host"), c.Int("port"), logger, opts...)
}

func printReply(reply string) {
	if strings.TrimSpace(reply) != "" {
		fmt.Println(reply)
	}
}

func statusAction(c *cli.Context) error {
	reply, err := clientFromContext(c).Status(c.Context)
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func jointAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("need an axis and an angle, got %d arguments", c.NArg())
	}
	axis, err := strconv.Atoi(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("bad axis %q: %w", c.Args().Get(0), err)
	}
	angle, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("bad angle %q: %w", c.Args().Get(1), err)
	}

	reply, err := clientFromContext(c).MoveJoint(c.Context, axis, angle, c.Int("speed"))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func jointsAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("need one comma-separated list of angles, got %d arguments", c.NArg())
	}
	parts := strings.Split(c.Args().First(), ",")
	angles := make([]int, 0, len(parts))
	for _, part := range parts {
		angle, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("bad angle %q: %w", part, err)
		}
		angles = append(angles, angle)
	}

	replies, err := clientFromContext(c).MoveJoints(c.Context, angles, c.Int("speed"))
	if err != nil {
		return err
	}
	for _, reply := range replies {
		printReply(reply)
	}
	return nil
}

func gripperOpenAction(c *cli.Context) error {
	reply, err := clientFromContext(c).OpenGripper(c.Context, c.Int("speed"))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func gripperCloseAction(c *cli.Context) error {
	reply, err := clientFromContext(c).CloseGripper(c.Context, c.Int("speed"))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func gripperSetAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("need a gripper value, got %d arguments", c.NArg())
	}
	value, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return fmt.Errorf("bad gripper value %q: %w", c.Args().First(), err)
	}

	reply, err := clientFromContext(c).SetGripper(c.Context, value, c.Int("speed"))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func rawAction(c *cli.Context) error {
	cmd := roarm.Command{T: c.Int64("T")}
	if c.IsSet("m") {
		cmd.Mode = roarm.Int(c.Int("m"))
	}
	if c.IsSet("axis") {
		cmd.Axis = roarm.Int(c.Int("axis"))
	}
	if c.IsSet("cmd") {
		cmd.Cmd = roarm.Int(c.Int("cmd"))
	}
	if c.IsSet("spd") {
		cmd.Spd = roarm.Int(c.Int("spd"))
	}

	reply, err := clientFromContext(c).Do(c.Context, cmd)
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}
