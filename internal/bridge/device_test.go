package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Agrid-Dev/venstar-mqtt/internal/events"
	"github.com/Agrid-Dev/venstar-mqtt/internal/health"
	"github.com/Agrid-Dev/venstar-mqtt/internal/metrics"
	"github.com/Agrid-Dev/venstar-mqtt/internal/ports"
	"github.com/Agrid-Dev/venstar-mqtt/internal/venstar"
	"github.com/Agrid-Dev/venstar-mqtt/internal/venstar/venstartest"
)

type deviceEngine struct {
	*Engine
	dev     *venstartest.Device
	health  *health.Monitor
	metrics *metrics.Metrics
	events  <-chan events.Event
}

// newDeviceEngine wires an engine to the real client talking to a simulated thermostat.
func newDeviceEngine(t *testing.T) *deviceEngine {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	dev := venstartest.NewDevice()
	srv := dev.Serve(t)

	m := metrics.New(prometheus.NewRegistry())
	client := venstar.New(srv.URL, venstar.WithHTTPClient(&http.Client{
		Timeout:   time.Second,
		Transport: m.InstrumentTransport(nil),
	}))
	pub := events.NewPublisher(logger)
	de := &deviceEngine{
		dev:     dev,
		health:  health.New(logger),
		metrics: m,
		events:  pub.Subscribe(),
	}
	de.Engine = New(client, de.health, pub, m, 20*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = de.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return de
}

func (de *deviceEngine) status(t *testing.T) ports.Status {
	t.Helper()
	st, err := de.Status(context.Background())
	require.NoError(t, err)
	return st
}

func (de *deviceEngine) pollAndWait(t *testing.T) {
	t.Helper()
	de.PollStatus()
	require.Eventually(t, func() bool { return de.status(t).Polled }, time.Second, 5*time.Millisecond)
}

func TestDevice_TargetTemperatureIsWritten(t *testing.T) {
	de := newDeviceEngine(t)
	de.pollAndWait(t)
	assert.Eventually(t, func() bool { return de.health.Status().Healthy }, time.Second, 5*time.Millisecond)

	require.NoError(t, de.SetMode("auto"))
	require.NoError(t, de.SetTargetTemp(72))

	require.Eventually(t, func() bool { return !de.status(t).Pending }, 2*time.Second, 10*time.Millisecond)
	mode, _, heat, cool := de.dev.Setpoints()
	assert.Equal(t, 3, mode)
	assert.Equal(t, 71.0, heat)
	assert.Equal(t, 73.0, cool)

	controls := de.dev.Controls()
	require.Len(t, controls, 1)
	assert.Equal(t, "71.0", controls[0].Get("heattemp"))
	assert.Equal(t, "73.0", controls[0].Get("cooltemp"))
	assert.Empty(t, controls[0].Get("fan"))

	assert.Positive(t, testutil.ToFloat64(de.metrics.DeviceRequests.WithLabelValues("200", "post")))
}

func TestDevice_FailedWritesAreRetried(t *testing.T) {
	de := newDeviceEngine(t)
	de.pollAndWait(t)
	de.dev.FailControls(2)

	require.NoError(t, de.SetFan("on"))
	require.NoError(t, de.SetCoolTemp(78))

	require.Eventually(t, func() bool { return !de.status(t).Pending }, 2*time.Second, 10*time.Millisecond)
	_, fan, heat, cool := de.dev.Setpoints()
	assert.Equal(t, 1, fan)
	assert.Equal(t, 68.0, heat)
	assert.Equal(t, 78.0, cool)

	controls := de.dev.Controls()
	require.Len(t, controls, 3)
	for _, c := range controls {
		assert.Equal(t, "1", c.Get("fan"))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(de.metrics.ControlWrites.WithLabelValues("failure")))
	assert.True(t, de.health.Status().Healthy)
}

func TestDevice_PollFailureIsUnhealthy(t *testing.T) {
	de := newDeviceEngine(t)
	de.dev.SetInfoStatus(http.StatusServiceUnavailable)

	de.PollStatus()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(de.metrics.PollErrors.WithLabelValues("info")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, de.status(t).Polled)

	de.dev.SetInfoStatus(0)
	de.pollAndWait(t)
	assert.True(t, de.health.Status().Healthy)
}

func TestDevice_ErrorBodyIsPollFailure(t *testing.T) {
	de := newDeviceEngine(t)
	de.dev.SetInfoError("local API disabled")

	de.PollStatus()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(de.metrics.PollErrors.WithLabelValues("info")) == 1
	}, time.Second, 5*time.Millisecond)

	st := de.status(t)
	assert.False(t, st.Polled)
	hs := de.health.Status()
	assert.False(t, hs.Healthy)
	assert.Contains(t, hs.Reason, "local API disabled")

	assert.Empty(t, st.Fields)
	for {
		select {
		case ev := <-de.events:
			if fu, ok := ev.(events.FieldUpdated); ok {
				assert.NotContains(t, []string{"error", "reason"}, fu.Name)
			}
			continue
		default:
		}
		break
	}

	de.dev.SetInfoError("")
	de.pollAndWait(t)
	assert.True(t, de.health.Status().Healthy)
	require.NotNil(t, de.status(t).Snapshot.SetpointDelta)
}

func TestDevice_QueryAndSetting(t *testing.T) {
	de := newDeviceEngine(t)

	require.NoError(t, de.Query("runtime"))
	var rt events.RuntimeUpdated
	require.Eventually(t, func() bool {
		select {
		case ev := <-de.events:
			var ok bool
			rt, ok = ev.(events.RuntimeUpdated)
			return ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.True(t, rt.Query)
	assert.Contains(t, rt.Fields, events.Field{Name: "heat1", Value: 42.0})

	require.NoError(t, de.UpdateSetting("away", "away"))
	require.Eventually(t, func() bool { return len(de.dev.Settings()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "1", de.dev.Settings()[0].Get("away"))
}
