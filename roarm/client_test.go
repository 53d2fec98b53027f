package roarm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/rdk/logging"
)

// fakeArm stands in for the arm's embedded web server and records everything
// sent to it.
type fakeArm struct {
	mu       sync.Mutex
	payloads []string // url-decoded json query parameters, in order
	queries  []string // raw query strings, in order
	status   int
	reply    string
	delay    time.Duration
}

func (f *fakeArm) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.payloads = append(f.payloads, r.URL.Query().Get("json"))
	f.queries = append(f.queries, r.URL.RawQuery)
	f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
	}
	_, _ = w.Write([]byte(f.reply))
}

func (f *fakeArm) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.payloads...)
}

func newTestClient(t *testing.T, f *fakeArm, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	test.That(t, err, test.ShouldBeNil)
	host, portStr, err := net.SplitHostPort(u.Host)
	test.That(t, err, test.ShouldBeNil)
	port, err := strconv.Atoi(portStr)
	test.That(t, err, test.ShouldBeNil)

	return New(host, port, logging.NewTestLogger(t), opts...)
}

func TestDefaults(t *testing.T) {
	c := New("", 0, logging.NewTestLogger(t))
	test.That(t, c.Endpoint(), test.ShouldEqual, "http://192.168.4.1:80/js")

	c = New("10.0.0.7", 8080, logging.NewTestLogger(t))
	test.That(t, c.Endpoint(), test.ShouldEqual, "http://10.0.0.7:8080/js")
}

func TestCommandStamping(t *testing.T) {
	mock := clk.NewMock()
	mock.Add(42 * time.Second)

	f := &fakeArm{reply: "ok"}
	c := newTestClient(t, f, WithClock(mock))

	reply, err := c.Status(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reply, test.ShouldEqual, "ok")

	sent := f.sent()
	test.That(t, sent, test.ShouldHaveLength, 1)
	test.That(t, sent[0], test.ShouldEqual, `{"T":42000}`)

	// the JSON object must arrive percent-encoded
	test.That(t, f.queries[0], test.ShouldEqual, "json=%7B%22T%22%3A42000%7D")
}

func TestExplicitTimestampKept(t *testing.T) {
	f := &fakeArm{}
	c := newTestClient(t, f)

	_, err := c.Do(context.Background(), Command{T: 99})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.sent()[0], test.ShouldEqual, `{"T":99}`)
}

func TestOptionalFieldsOmitted(t *testing.T) {
	mock := clk.NewMock()
	mock.Add(time.Second)

	f := &fakeArm{}
	c := newTestClient(t, f, WithClock(mock))

	_, err := c.Status(context.Background())
	test.That(t, err, test.ShouldBeNil)

	_, err = c.MoveJoint(context.Background(), JointShoulder, 45, 20)
	test.That(t, err, test.ShouldBeNil)

	sent := f.sent()
	test.That(t, sent[0], test.ShouldEqual, `{"T":1000}`)
	for _, key := range []string{"m", "axis", "cmd", "spd"} {
		test.That(t, strings.Contains(sent[0], key), test.ShouldBeFalse)
	}
	test.That(t, sent[1], test.ShouldEqual, `{"T":1000,"m":1,"axis":1,"cmd":45,"spd":20}`)
}

func TestMoveJoints(t *testing.T) {
	f := &fakeArm{reply: "moved"}
	c := newTestClient(t, f)

	replies, err := c.MoveJoints(context.Background(), []int{10, 20, 30, 40}, 15)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, replies, test.ShouldResemble, []string{"moved", "moved", "moved", "moved"})

	sent := f.sent()
	test.That(t, sent, test.ShouldHaveLength, 4)
	for axis, payload := range sent {
		test.That(t, payload, test.ShouldContainSubstring, `"axis":`+strconv.Itoa(axis))
	}

	_, err = c.MoveJoints(context.Background(), []int{1, 2, 3, 4, 5}, 15)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "at most 4")
}

func TestValidation(t *testing.T) {
	f := &fakeArm{}
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.MoveJoint(ctx, 5, 10, 10)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "axis")

	_, err = c.MoveJoint(ctx, -1, 10, 10)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = c.MoveJoint(ctx, JointBase, 10, 101)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "speed")

	_, err = c.SetGripper(ctx, 150, 10)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "gripper value")

	// nothing invalid may reach the wire
	test.That(t, f.sent(), test.ShouldHaveLength, 0)
}

func TestGripper(t *testing.T) {
	f := &fakeArm{}
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.OpenGripper(ctx, 10)
	test.That(t, err, test.ShouldBeNil)
	_, err = c.CloseGripper(ctx, 10)
	test.That(t, err, test.ShouldBeNil)

	sent := f.sent()
	test.That(t, sent[0], test.ShouldContainSubstring, `"axis":4,"cmd":100`)
	test.That(t, sent[1], test.ShouldContainSubstring, `"axis":4,"cmd":0`)
}

func TestStatusError(t *testing.T) {
	f := &fakeArm{status: http.StatusInternalServerError, reply: "boom"}
	c := newTestClient(t, f)

	_, err := c.Status(context.Background())
	test.That(t, err, test.ShouldNotBeNil)

	var se *StatusError
	test.That(t, errors.As(err, &se), test.ShouldBeTrue)
	test.That(t, se.Code, test.ShouldEqual, http.StatusInternalServerError)
	test.That(t, se.Body, test.ShouldEqual, "boom")
}

func TestTimeout(t *testing.T) {
	f := &fakeArm{delay: 300 * time.Millisecond}
	c := newTestClient(t, f, WithTimeout(50*time.Millisecond))

	_, err := c.Status(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error sending command")
}

func TestContextCancellation(t *testing.T) {
	f := &fakeArm{delay: 300 * time.Millisecond}
	c := newTestClient(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Status(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestNoKinematics(t *testing.T) {
	f := &fakeArm{}
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.MoveToPosition(ctx, 100, 0, 150, 10)
	test.That(t, err, test.ShouldBeError, ErrNoKinematics)

	_, err = c.FollowPath(ctx, [][3]float64{{100, 0, 150}}, 10)
	test.That(t, err, test.ShouldBeError, ErrNoKinematics)

	test.That(t, f.sent(), test.ShouldHaveLength, 0)
}
