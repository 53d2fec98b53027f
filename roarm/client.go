// Package roarm speaks the wire protocol of the Waveshare RoArm-M2-S embedded
// web server: a JSON command object percent-encoded into the query string of
// a GET against /js. Replies are opaque strings the firmware does not
// document, so the client hands them back unparsed.
package roarm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/rdk/logging"
)

// Connection defaults matching the arm in access-point mode.
const (
	DefaultHost    = "192.168.4.1"
	DefaultPort    = 80
	DefaultTimeout = 5 * time.Second
)

// ErrNoKinematics is returned by operations that would need an inverse
// kinematics solver. The M2-S firmware has no cartesian command and this
// client ships no solver; callers should send joint commands instead.
var ErrNoKinematics = errors.New("roarm-m2s does not support cartesian control, use joint commands")

// StatusError is returned when the arm's web server answers with a non-OK
// HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("arm returned unexpected response code %d: %s", e.Code, e.Body)
}

// Client talks to one arm. The firmware processes a single command at a
// time; callers that share a Client across goroutines must serialize access
// themselves.
type Client struct {
	endpoint   string
	httpClient *http.Client
	clock      clock.Clock
	logger     logging.Logger
}

// Option configures a Client at construction.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithClock replaces the time source used to stamp commands. Tests use this
// with a mock clock to get deterministic T values.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// New returns a client for the arm's web server at host:port. An empty host
// or non-positive port falls back to the access-point defaults.
func New(host string, port int, logger logging.Logger, opts ...Option) *Client {
	if host == "" {
		host = DefaultHost
	}
	if port <= 0 {
		port = DefaultPort
	}
	c := &Client{
		endpoint:   fmt.Sprintf("http://%s:%d/js", host, port),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		clock:      clock.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL commands are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Do sends cmd and returns the raw reply body. A zero T is stamped with the
// current time in milliseconds before encoding.
func (c *Client) Do(ctx context.Context, cmd Command) (string, error) {
	if cmd.T == 0 {
		cmd.T = c.clock.Now().UnixMilli()
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", errors.Wrap(err, "error encoding command")
	}
	query := url.Values{"json": []string{string(payload)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}

	c.logger.Debugf("sending command %s", payload)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "error sending command to %s", c.endpoint)
	}
	defer goutils.UncheckedErrorFunc(res.Body.Close)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", errors.Wrap(err, "error reading reply from arm")
	}
	if res.StatusCode != http.StatusOK {
		return "", &StatusError{Code: res.StatusCode, Body: string(body)}
	}
	return string(body), nil
}

// Status queries the arm by sending a bare timestamp; the reply is whatever
// state dump the firmware prints for it.
func (c *Client) Status(ctx context.Context) (string, error) {
	return c.Do(ctx, Command{})
}

// MoveJoint commands a single joint to an absolute angle in degrees at the
// given speed.
func (c *Client) MoveJoint(ctx context.Context, axis, angleDeg, speed int) (string, error) {
	if err := validateAxis(axis); err != nil {
		return "", err
	}
	if err := validateSpeed(speed); err != nil {
		return "", err
	}
	return c.Do(ctx, Command{
		Mode: Int(ModeJoint),
		Axis: Int(axis),
		Cmd:  Int(angleDeg),
		Spd:  Int(speed),
	})
}

// MoveJoints commands the positional joints in chain order, base first. The
// firmware has no multi-joint command, so each joint is its own request; the
// first failure aborts the sweep and the replies gathered so far are
// returned alongside the error.
func (c *Client) MoveJoints(ctx context.Context, anglesDeg []int, speed int) ([]string, error) {
	if len(anglesDeg) > NumJoints {
		return nil, errors.Errorf("wrong number of angles, got %d, need at most %d", len(anglesDeg), NumJoints)
	}
	replies := make([]string, 0, len(anglesDeg))
	for axis, angle := range anglesDeg {
		reply, err := c.MoveJoint(ctx, axis, angle, speed)
		if err != nil {
			return replies, errors.Wrapf(err, "error moving joint %d", axis)
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

// SetGripper drives the gripper to value, 0 fully closed through 100 fully
// open.
func (c *Client) SetGripper(ctx context.Context, value, speed int) (string, error) {
	if err := validateGripperValue(value); err != nil {
		return "", err
	}
	if err := validateSpeed(speed); err != nil {
		return "", err
	}
	return c.Do(ctx, Command{
		Mode: Int(ModeJoint),
		Axis: Int(JointGripper),
		Cmd:  Int(value),
		Spd:  Int(speed),
	})
}

// OpenGripper opens the gripper fully.
func (c *Client) OpenGripper(ctx context.Context, speed int) (string, error) {
	return c.SetGripper(ctx, GripperOpen, speed)
}

// CloseGripper closes the gripper fully.
func (c *Client) CloseGripper(ctx context.Context, speed int) (string, error) {
	return c.SetGripper(ctx, GripperClosed, speed)
}

// MoveToPosition would place the end effector at a cartesian point.
// Unsupported: always fails with ErrNoKinematics.
func (c *Client) MoveToPosition(ctx context.Context, x, y, z float64, speed int) (string, error) {
	return "", ErrNoKinematics
}

// FollowPath would run the end effector through a sequence of cartesian
// points. Unsupported: always fails with ErrNoKinematics.
func (c *Client) FollowPath(ctx context.Context, points [][3]float64, speed int) ([]string, error) {
	return nil, ErrNoKinematics
}
