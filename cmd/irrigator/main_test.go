package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/irrigator/internal/analog"
	"github.com/sweeney/irrigator/internal/gpio"
	"github.com/sweeney/irrigator/internal/logic"
	"github.com/sweeney/irrigator/internal/metrics"
	"github.com/sweeney/irrigator/internal/mqtt"
	"github.com/sweeney/irrigator/internal/sensor"
	"github.com/sweeney/irrigator/internal/status"
)

var t0 = time.Date(2026, 6, 1, 5, 0, 0, 0, time.UTC)

func parseTestFlags(t *testing.T, args ...string) config {
	t.Helper()
	fs := flag.NewFlagSet("irrigator", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg, err := parseFlags(fs, args)
	if err != nil {
		t.Fatalf("parseFlags(%v): %v", args, err)
	}
	return cfg
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg := parseTestFlags(t)

	if cfg.poll != 250*time.Millisecond || cfg.cycle != 30*time.Second || cfg.heartbeat != 15*time.Minute {
		t.Errorf("timing defaults: %+v", cfg)
	}
	if cfg.policy != "budget" || cfg.maxDailyLiters != 50 || cfg.litersPerSec != 0.05 {
		t.Errorf("policy defaults: %+v", cfg)
	}
	if cfg.soilCeiling != 20*time.Minute {
		t.Errorf("soil ceiling: got %v", cfg.soilCeiling)
	}
	if cfg.switchDebounce != 50*time.Millisecond || cfg.waterDebounce != 100*time.Millisecond {
		t.Errorf("debounce defaults: %v / %v", cfg.switchDebounce, cfg.waterDebounce)
	}
	if cfg.adcAddr != 0x48 || cfg.httpAddr != ":80" || cfg.chip != "gpiochip0" {
		t.Errorf("device defaults: %+v", cfg)
	}
	if cfg.pins.water != gpio.DefaultPinWater || cfg.pins.relay2 != gpio.DefaultPinRelay2 || !cfg.pins.relayActiveLow || !cfg.pins.waterActiveLow {
		t.Errorf("pin defaults: %+v", cfg.pins)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	tests := [][]string{
		{"-policy", "weekly"},
		{"-poll", "0s"},
		{"-cycle", "500ms"},
		{"-max-daily-liters", "0"},
		{"-adc-volts", "5"},
		{"-adc-volts", "0"},
		{"-bogus"},
	}
	for _, args := range tests {
		fs := flag.NewFlagSet("irrigator", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		if _, err := parseFlags(fs, args); err == nil {
			t.Errorf("parseFlags(%v): expected error", args)
		}
	}
}

func TestPumpPolicy(t *testing.T) {
	p, err := parseTestFlags(t, "-policy", "soil", "-soil-ceiling", "15m").pumpPolicy()
	if err != nil {
		t.Fatalf("pumpPolicy: %v", err)
	}
	if p.Kind != logic.PolicySoil || p.Ceiling != 900 {
		t.Errorf("soil policy: got %+v", p)
	}

	p, err = parseTestFlags(t, "-max-daily-liters", "20", "-liters-per-sec", "0.1").pumpPolicy()
	if err != nil {
		t.Fatalf("pumpPolicy: %v", err)
	}
	if p.Kind != logic.PolicyBudget || p.MaxDailyLiters != 20 || p.LitersPerSec != 0.1 {
		t.Errorf("budget policy: got %+v", p)
	}
}

func TestStatusConfig(t *testing.T) {
	sc := parseTestFlags(t, "-policy", "soil").statusConfig()
	if sc.Policy != "soil" || sc.SoilCeilingSecs != 1200 || sc.MaxDailyLiters != 0 {
		t.Errorf("soil status config: %+v", sc)
	}
	sc = parseTestFlags(t).statusConfig()
	if sc.CycleSeconds != 30 || sc.MaxDailyLiters != 50 || sc.SoilCeilingSecs != 0 || sc.PollMs != 250 {
		t.Errorf("budget status config: %+v", sc)
	}
}

type rig struct {
	cfg  config
	chip *gpio.FakeChip
	air  *analog.FakeAir
	adc  *analog.FakeADC
	knob *analog.Knob
	hw   *hardware
}

// newRig opens the hardware on a fake chip with water present and warm,
// dry air.
func newRig(t *testing.T, args ...string) *rig {
	t.Helper()
	r := &rig{
		cfg:  parseTestFlags(t, append([]string{"-water-debounce", "0", "-switch-debounce", "0"}, args...)...),
		chip: gpio.NewFakeChip(),
		air:  &analog.FakeAir{Reading: sensor.AirReading{TemperatureC: 24, HumidityPct: 45}},
		adc:  &analog.FakeADC{},
	}
	r.chip.Inputs[r.cfg.pins.water] = gpio.NewFakeInput(true)
	r.knob = analog.NewKnob(r.adc, analog.FullScaleFor(3.3))

	hw, err := openHardware(r.chip, r.knob, r.air, r.cfg, t0)
	if err != nil {
		t.Fatalf("openHardware: %v", err)
	}
	r.hw = hw
	return r
}

func (r *rig) relay(n int) *gpio.FakeOutput {
	if n == 1 {
		return r.chip.Outputs[r.cfg.pins.relay1]
	}
	return r.chip.Outputs[r.cfg.pins.relay2]
}

func TestOpenHardwareBudget(t *testing.T) {
	r := newRig(t)

	for _, n := range []int{1, 2} {
		if out := r.relay(n); len(out.Writes) != 1 || out.Writes[0] {
			t.Errorf("relay %d writes = %v, want [false]", n, out.Writes)
		}
	}
	if _, ok := r.chip.Inputs[r.cfg.pins.soil1A]; ok {
		t.Error("budget policy should not request soil probes")
	}
	if !r.hw.water.ShouldWater() {
		t.Error("water should be seeded from the line")
	}
	for _, p := range r.hw.ctrl.Pumps() {
		if p.Policy().Kind != logic.PolicyBudget {
			t.Errorf("pump %d policy = %s", p.ID(), p.Policy().Kind)
		}
	}
}

func TestOpenHardwareSoil(t *testing.T) {
	r := newRig(t, "-policy", "soil")
	for _, pin := range []int{r.cfg.pins.soil1A, r.cfg.pins.soil1B, r.cfg.pins.soil2A, r.cfg.pins.soil2B} {
		if _, ok := r.chip.Inputs[pin]; !ok {
			t.Errorf("soil probe %d not requested", pin)
		}
	}
	if got := len(r.hw.ctrl.Snapshot().Soil); got != 2 {
		t.Errorf("soil segments = %d, want 2", got)
	}
}

func TestOpenHardwareWaterEdge(t *testing.T) {
	r := newRig(t)
	if err := r.chip.Trigger(r.cfg.pins.water, false); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if _, err := r.hw.ctrl.Tick(t0.Add(time.Second)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if r.hw.water.ShouldWater() {
		t.Error("water edge should reach the sensor")
	}
	if !r.chip.Outputs[r.cfg.pins.buzzer].On() {
		t.Error("buzzer should sound without water")
	}
}

func TestOpenHardwareWaterPolarity(t *testing.T) {
	tests := []struct {
		args []string
		want gpio.LineConfig
	}{
		{nil, gpio.LineConfig{Offset: gpio.DefaultPinWater, ActiveLow: true, PullUp: true}},
		{[]string{"-water-active-low=false"}, gpio.LineConfig{Offset: gpio.DefaultPinWater}},
	}
	for _, tt := range tests {
		r := newRig(t, tt.args...)
		if got := r.chip.Configs[r.cfg.pins.water]; got != tt.want {
			t.Errorf("args %v: water line = %+v, want %+v", tt.args, got, tt.want)
		}
	}
}

func TestParseFlagsADCVoltsLimit(t *testing.T) {
	cfg := parseTestFlags(t, "-adc-volts", "4.096")
	if cfg.adcVolts != analog.MaxKnobVolts {
		t.Errorf("adcVolts = %v, want %v", cfg.adcVolts, analog.MaxKnobVolts)
	}
}

func TestOpenHardwareFailureClosesLines(t *testing.T) {
	cfg := parseTestFlags(t)
	chip := gpio.NewFakeChip()
	// A pin conflict makes the water watch fail after the outputs exist.
	cfg.pins.water = cfg.pins.relay1

	_, err := openHardware(chip, analog.NewKnob(&analog.FakeADC{}, 100), &analog.FakeAir{}, cfg, t0)
	if err == nil {
		t.Fatal("expected error")
	}
	for pin, out := range chip.Outputs {
		if !out.Closed {
			t.Errorf("output %d not closed after failure", pin)
		}
	}
}

func TestHardwareClose(t *testing.T) {
	r := newRig(t)
	if err := r.hw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for pin, in := range r.chip.Inputs {
		if !in.Closed {
			t.Errorf("input %d not closed", pin)
		}
	}
	for pin, out := range r.chip.Outputs {
		if !out.Closed || out.On() {
			t.Errorf("output %d not closed off", pin)
		}
	}
}

func TestPrintState(t *testing.T) {
	r := newRig(t)
	r.adc.Set(13200)

	var buf bytes.Buffer
	if err := printState(&buf, r.hw, r.knob, r.air); err != nil {
		t.Fatalf("printState: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"water: present", "knob: 511", "air: 24.0 C, 45 %", "pump 1: BUDGET", "pump 2: BUDGET"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintStateAirError(t *testing.T) {
	r := newRig(t)
	var buf bytes.Buffer
	if err := printState(&buf, r.hw, r.knob, analog.NoAir{}); err != nil {
		t.Fatalf("printState: %v", err)
	}
	if !strings.Contains(buf.String(), "air: "+analog.ErrNoAirSensor.Error()) {
		t.Errorf("output: %s", buf.String())
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// runRunLoop drives runLoop for nTicks and then delivers signal.
func runRunLoop(t *testing.T, r *rig, pub *mqtt.FakePublisher, tracker *status.Tracker, m *metrics.Metrics, heartbeat time.Duration, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	clock := fakeClock(t0, time.Second)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r.hw.ctrl, pub, pub, tracker, m, heartbeat, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func TestRunLoopNoTransitionsDuringWarmup(t *testing.T) {
	r := newRig(t)
	pub := mqtt.NewFakePublisher()

	// Ticks at 0..10s: the air sensor has not been read yet.
	if err := runRunLoop(t, r, pub, nil, nil, 0, 11, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected 0 pump events, got %d", len(pub.Events))
	}
	if names := pub.SystemEventNames(); len(names) != 1 || names[0] != "SHUTDOWN" {
		t.Errorf("system events = %v, want [SHUTDOWN]", names)
	}
}

func TestRunLoopAutoCycle(t *testing.T) {
	r := newRig(t)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(t0, r.cfg.statusConfig())
	m := metrics.New()

	// Air is first read at 16s; both pumps start and time out after 30s.
	if err := runRunLoop(t, r, pub, tracker, m, 0, 48, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 4 {
		t.Fatalf("expected 4 pump events, got %d: %+v", len(pub.Events), pub.Events)
	}
	want := []struct {
		pump   int
		reason logic.Reason
	}{
		{1, logic.ReasonAutoStart},
		{2, logic.ReasonAutoStart},
		{1, logic.ReasonCycleTimeout},
		{2, logic.ReasonCycleTimeout},
	}
	for i, w := range want {
		tr := pub.Events[i].Transition
		if tr.PumpID != w.pump || tr.Reason != w.reason {
			t.Errorf("event %d: got pump %d %s, want pump %d %s", i, tr.PumpID, tr.Reason, w.pump, w.reason)
		}
	}
	if !pub.Events[0].Timestamp.Equal(t0.Add(16 * time.Second)) {
		t.Errorf("start timestamp = %v", pub.Events[0].Timestamp)
	}
	if !pub.Events[2].Timestamp.Equal(t0.Add(47 * time.Second)) {
		t.Errorf("timeout timestamp = %v", pub.Events[2].Timestamp)
	}

	if r.relay(1).On() || r.relay(2).On() {
		t.Error("relays should be off after shutdown")
	}

	snap := tracker.Snapshot()
	p, ok := snap.Pump(1)
	if !ok || p.State != logic.StateOff || p.Activations != 1 {
		t.Errorf("tracked pump 1 = %+v", p)
	}
}

func TestRunLoopWaterLoss(t *testing.T) {
	r := newRig(t)
	pub := mqtt.NewFakePublisher()

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r.hw.ctrl, pub, pub, nil, nil, 0, fakeClock(t0, time.Second), tick, sig)
	}()

	for i := 0; i < 17; i++ {
		tick <- time.Time{}
	}
	if err := r.chip.Trigger(r.cfg.pins.water, false); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	tick <- time.Time{}
	sig <- syscall.SIGTERM
	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 4 {
		t.Fatalf("expected 4 pump events, got %d", len(pub.Events))
	}
	for _, ev := range pub.Events[2:] {
		if ev.Transition.Reason != logic.ReasonWaterLost {
			t.Errorf("got %s, want water_lost", ev.Transition.Reason)
		}
	}
	if r.relay(1).On() || r.relay(2).On() {
		t.Error("relays should be off without water")
	}
}

func TestRunLoopManualSwitch(t *testing.T) {
	r := newRig(t)
	pub := mqtt.NewFakePublisher()
	// Switches are active-low; the fake returns the logical level.
	r.chip.Inputs[r.cfg.pins.switch2].SetLevel(true)

	if err := runRunLoop(t, r, pub, nil, nil, 0, 3, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Events) != 1 || pub.Events[0].Transition.To != logic.StateManualOn || pub.Events[0].Transition.PumpID != 2 {
		t.Fatalf("events = %+v, want pump 2 manual on", pub.Events)
	}
	if pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("shutdown reason = %q, want SIGINT", pub.SystemEvents[0].Reason)
	}
	if r.relay(2).On() {
		t.Error("shutdown should drive relays off")
	}
}

func TestRunLoopPublishErrorContinues(t *testing.T) {
	r := newRig(t)
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker down")

	if err := runRunLoop(t, r, pub, nil, nil, 0, 20, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	for _, n := range []int{1, 2} {
		if w := r.relay(n).Writes; len(w) != 3 || !w[1] {
			t.Errorf("relay %d writes = %v, want off, on, off", n, w)
		}
	}
	if len(pub.SystemEvents) != 1 {
		t.Errorf("expected SHUTDOWN to be published, got %v", pub.SystemEventNames())
	}
}

func TestRunLoopSensorErrorContinues(t *testing.T) {
	r := newRig(t)
	pub := mqtt.NewFakePublisher()
	r.chip.Inputs[r.cfg.pins.switch1].ReadError = errors.New("gpio fault")

	if err := runRunLoop(t, r, pub, nil, nil, 0, 17, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Events) != 2 {
		t.Errorf("expected both pumps to start despite the switch fault, got %d events", len(pub.Events))
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	r := newRig(t)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(t0, r.cfg.statusConfig())

	// Ticks at 0..11s with a 5s heartbeat: heartbeats at 5s and 10s.
	if err := runRunLoop(t, r, pub, tracker, nil, 5*time.Second, 12, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	names := pub.SystemEventNames()
	if len(names) != 3 || names[0] != "HEARTBEAT" || names[1] != "HEARTBEAT" || names[2] != "SHUTDOWN" {
		t.Fatalf("system events = %v", names)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("heartbeat payload: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" || len(parsed.Status.Pumps) != 2 {
		t.Errorf("heartbeat status = %+v", parsed.Status)
	}
	if !pub.SystemEvents[0].Timestamp.Equal(t0.Add(5 * time.Second)) {
		t.Errorf("heartbeat timestamp = %v", pub.SystemEvents[0].Timestamp)
	}
}

func TestRunLoopShutdownPayload(t *testing.T) {
	r := newRig(t)
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(t0, r.cfg.statusConfig())

	if err := runRunLoop(t, r, pub, tracker, nil, 0, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	ev := pub.SystemEvents[0]
	if !ev.Retained || ev.Reason != "SIGTERM" {
		t.Errorf("shutdown event = %+v", ev)
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("shutdown payload: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" || !parsed.Status.MQTT.Connected {
		t.Errorf("shutdown status = %+v", parsed.Status)
	}
}

func TestRunLoopShutdownBeforeFirstTickNotReady(t *testing.T) {
	r := newRig(t)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(t0, r.cfg.statusConfig())

	if err := runRunLoop(t, r, pub, tracker, nil, 0, 0, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("shutdown payload: %v", err)
	}
	if parsed.Status.Ready || len(parsed.Status.Pumps) != 2 {
		t.Errorf("shutdown before any tick: ready = %v, pumps = %d", parsed.Status.Ready, len(parsed.Status.Pumps))
	}
}
