// Command irrigator drives two greenhouse pump channels from water, air and
// soil sensors and reports pump transitions to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sweeney/irrigator/internal/analog"
	"github.com/sweeney/irrigator/internal/controller"
	"github.com/sweeney/irrigator/internal/gpio"
	"github.com/sweeney/irrigator/internal/logic"
	"github.com/sweeney/irrigator/internal/metrics"
	"github.com/sweeney/irrigator/internal/mqtt"
	"github.com/sweeney/irrigator/internal/sensor"
	"github.com/sweeney/irrigator/internal/status"
	"github.com/sweeney/irrigator/internal/web"
)

type pins struct {
	water          int
	buzzer         int
	airLED         int
	switch1        int
	switch2        int
	relay1         int
	relay2         int
	soil1A, soil1B int
	soil2A, soil2B int
	relayActiveLow bool
	waterActiveLow bool
}

type config struct {
	poll           time.Duration
	heartbeat      time.Duration
	switchDebounce time.Duration
	waterDebounce  time.Duration

	chip string
	pins pins

	policy         string
	cycle          time.Duration
	maxDailyLiters float64
	litersPerSec   float64
	soilCeiling    time.Duration

	adcBus     string
	adcAddr    uint
	adcChannel int
	adcVolts   float64
	airIIO     string

	broker     string
	httpAddr   string
	printState bool
}

func parseFlags(fs *flag.FlagSet, args []string) (config, error) {
	var c config
	fs.DurationVar(&c.poll, "poll", 250*time.Millisecond, "Control loop tick interval")
	fs.DurationVar(&c.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	fs.DurationVar(&c.switchDebounce, "switch-debounce", sensor.DefaultSwitchDebounce, "Manual switch debounce window")
	fs.DurationVar(&c.waterDebounce, "water-debounce", 100*time.Millisecond, "Water level debounce window")

	fs.StringVar(&c.chip, "chip", "gpiochip0", "GPIO chip name")
	fs.IntVar(&c.pins.water, "pin-water", gpio.DefaultPinWater, "BCM pin of the reservoir float switch")
	fs.IntVar(&c.pins.buzzer, "pin-buzzer", gpio.DefaultPinBuzzer, "BCM pin of the no-water buzzer")
	fs.IntVar(&c.pins.airLED, "pin-air-led", gpio.DefaultPinAirLED, "BCM pin of the air sensor fault LED")
	fs.IntVar(&c.pins.switch1, "pin-switch1", gpio.DefaultPinSwitch1, "BCM pin of the pump 1 manual switch")
	fs.IntVar(&c.pins.switch2, "pin-switch2", gpio.DefaultPinSwitch2, "BCM pin of the pump 2 manual switch")
	fs.IntVar(&c.pins.relay1, "pin-relay1", gpio.DefaultPinRelay1, "BCM pin of the pump 1 relay")
	fs.IntVar(&c.pins.relay2, "pin-relay2", gpio.DefaultPinRelay2, "BCM pin of the pump 2 relay")
	fs.IntVar(&c.pins.soil1A, "pin-soil1a", gpio.DefaultPinSoil1A, "BCM pin of soil segment 1, probe A")
	fs.IntVar(&c.pins.soil1B, "pin-soil1b", gpio.DefaultPinSoil1B, "BCM pin of soil segment 1, probe B")
	fs.IntVar(&c.pins.soil2A, "pin-soil2a", gpio.DefaultPinSoil2A, "BCM pin of soil segment 2, probe A")
	fs.IntVar(&c.pins.soil2B, "pin-soil2b", gpio.DefaultPinSoil2B, "BCM pin of soil segment 2, probe B")
	fs.BoolVar(&c.pins.relayActiveLow, "relay-active-low", true, "Relays energize when the pin is driven low")
	fs.BoolVar(&c.pins.waterActiveLow, "water-active-low", true, "Float switch pulls the pin low when water is present (enables the pull-up)")

	fs.StringVar(&c.policy, "policy", "budget", `Rest interval policy: "budget" or "soil" (soil attaches the soil sensors)`)
	fs.DurationVar(&c.cycle, "cycle", 30*time.Second, "Maximum watering time per cycle")
	fs.Float64Var(&c.maxDailyLiters, "max-daily-liters", logic.DefaultMaxDailyLiters, "Budget policy: daily volume at knob zero")
	fs.Float64Var(&c.litersPerSec, "liters-per-sec", logic.DefaultLitersPerSecond, "Budget policy: pump delivery rate")
	fs.DurationVar(&c.soilCeiling, "soil-ceiling", time.Duration(logic.DefaultSoilCeiling)*time.Second, "Soil policy: rest interval ceiling")

	fs.StringVar(&c.adcBus, "adc-bus", "", "I2C bus of the knob ADC (empty for the first bus)")
	fs.UintVar(&c.adcAddr, "adc-addr", analog.DefaultADCAddr, "I2C address of the knob ADC")
	fs.IntVar(&c.adcChannel, "adc-channel", 0, "ADC input (0-3) wired to the knob")
	fs.Float64Var(&c.adcVolts, "adc-volts", 3.3, "Knob supply voltage (full travel)")
	fs.StringVar(&c.airIIO, "air-iio", "", "sysfs directory of the dht11 IIO device (empty to run the air sensor fail-safe)")

	fs.StringVar(&c.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	fs.StringVar(&c.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	fs.BoolVar(&c.printState, "print-state", false, "Print current sensor state and exit")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if c.poll <= 0 {
		return config{}, errors.New("-poll must be positive")
	}
	if c.cycle < time.Second {
		return config{}, errors.New("-cycle must be at least 1s")
	}
	if c.adcVolts <= 0 || c.adcVolts > analog.MaxKnobVolts {
		return config{}, fmt.Errorf("-adc-volts must be in (0, %g]; divide a higher knob supply down to the ADC range", analog.MaxKnobVolts)
	}
	if _, err := c.pumpPolicy(); err != nil {
		return config{}, err
	}
	return c, nil
}

func (c config) pumpPolicy() (logic.Policy, error) {
	switch c.policy {
	case "budget":
		if c.maxDailyLiters <= 0 || c.litersPerSec <= 0 {
			return logic.Policy{}, errors.New("-max-daily-liters and -liters-per-sec must be positive")
		}
		return logic.BudgetPolicy(c.maxDailyLiters, c.litersPerSec), nil
	case "soil":
		return logic.SoilPolicy(logic.Seconds(c.soilCeiling / time.Second)), nil
	}
	return logic.Policy{}, fmt.Errorf("unknown -policy %q (want budget or soil)", c.policy)
}

func (c config) statusConfig() status.Config {
	sc := status.Config{
		PollMs:           c.poll.Milliseconds(),
		HeartbeatMs:      c.heartbeat.Milliseconds(),
		SwitchDebounceMs: c.switchDebounce.Milliseconds(),
		WaterDebounceMs:  c.waterDebounce.Milliseconds(),
		Policy:           c.policy,
		CycleSeconds:     int64(c.cycle / time.Second),
		Broker:           c.broker,
		HTTPPort:         c.httpAddr,
	}
	if c.policy == "soil" {
		sc.SoilCeilingSecs = int64(c.soilCeiling / time.Second)
	} else {
		sc.MaxDailyLiters = c.maxDailyLiters
		sc.LitersPerSec = c.litersPerSec
	}
	return sc
}

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config) error {
	chip, err := gpio.NewRealChip(cfg.chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	adc, err := analog.OpenADS1115(cfg.adcBus, uint16(cfg.adcAddr), cfg.adcChannel)
	if err != nil {
		return fmt.Errorf("init knob adc: %w", err)
	}
	defer adc.Close()
	knob := analog.NewKnob(adc, analog.FullScaleFor(cfg.adcVolts))

	var air sensor.AirReader = analog.NoAir{}
	if cfg.airIIO != "" {
		air = analog.NewIIOAir(cfg.airIIO)
	} else {
		log.Printf("no air sensor configured; air sensor will fault and fail safe")
	}

	start := time.Now()
	hw, err := openHardware(chip, knob, air, cfg, start)
	if err != nil {
		return err
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.Printf("close gpio lines: %v", err)
		}
	}()

	if cfg.printState {
		return printState(os.Stdout, hw, knob, air)
	}

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.NopPublisher{}
	if cfg.broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.broker)
		if err != nil {
			log.Printf("mqtt unavailable, continuing without broker: %v", err)
		} else {
			publisher = p
		}
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("mqtt close: %v", err)
		}
	}()

	m := metrics.New()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(start, cfg.statusConfig())
	tracker.Prime(hw.ctrl.Snapshot())
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.httpAddr)
	}

	log.Printf("started: poll=%v policy=%s cycle=%v broker=%s heartbeat=%v",
		cfg.poll, cfg.policy, cfg.cycle, cfg.broker, cfg.heartbeat)

	ticker := time.NewTicker(cfg.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(hw.ctrl, publisher, publisher, tracker, m, cfg.heartbeat, time.Now, ticker.C, sigCh)
}

// hardware holds the requested lines and the controller built on them.
type hardware struct {
	ctrl   *controller.Controller
	water  *sensor.Water
	inputs []gpio.Input
	// Outputs are closed last so the relays stay driven off until the end.
	outputs []gpio.Output
}

func openHardware(chip gpio.Chip, knob controller.Knob, air sensor.AirReader, cfg config, start time.Time) (_ *hardware, err error) {
	hw := &hardware{}
	defer func() {
		if err != nil {
			hw.Close()
		}
	}()

	output := func(offset int, activeLow bool) (gpio.Output, error) {
		out, err := chip.Output(gpio.LineConfig{Offset: offset, ActiveLow: activeLow})
		if err != nil {
			return nil, fmt.Errorf("request output %d: %w", offset, err)
		}
		hw.outputs = append(hw.outputs, out)
		return out, nil
	}
	input := func(cfg gpio.LineConfig) (gpio.Input, error) {
		in, err := chip.Input(cfg)
		if err != nil {
			return nil, fmt.Errorf("request input %d: %w", cfg.Offset, err)
		}
		hw.inputs = append(hw.inputs, in)
		return in, nil
	}

	relay1, err := output(cfg.pins.relay1, cfg.pins.relayActiveLow)
	if err != nil {
		return nil, err
	}
	relay2, err := output(cfg.pins.relay2, cfg.pins.relayActiveLow)
	if err != nil {
		return nil, err
	}
	buzzer, err := output(cfg.pins.buzzer, false)
	if err != nil {
		return nil, err
	}
	led, err := output(cfg.pins.airLED, false)
	if err != nil {
		return nil, err
	}

	// Edges may arrive before the sensor exists; they are dropped and the
	// level is re-read once it is published.
	var water atomic.Pointer[sensor.Water]
	waterCfg := gpio.LineConfig{Offset: cfg.pins.water}
	if cfg.pins.waterActiveLow {
		waterCfg.ActiveLow, waterCfg.PullUp = true, true
	}
	waterLine, err := chip.Watch(waterCfg, func(level bool) {
		if w := water.Load(); w != nil {
			w.Observe(level)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("watch water %d: %w", cfg.pins.water, err)
	}
	hw.inputs = append(hw.inputs, waterLine)
	initial, err := waterLine.Read()
	if err != nil {
		return nil, fmt.Errorf("read water: %w", err)
	}
	hw.water = sensor.NewWater(initial, cfg.waterDebounce, buzzer)
	water.Store(hw.water)
	if level, err := waterLine.Read(); err == nil {
		hw.water.Observe(level)
	}

	switchCfg := func(offset int) gpio.LineConfig {
		return gpio.LineConfig{Offset: offset, ActiveLow: true, PullUp: true}
	}
	sw1, err := input(switchCfg(cfg.pins.switch1))
	if err != nil {
		return nil, err
	}
	sw2, err := input(switchCfg(cfg.pins.switch2))
	if err != nil {
		return nil, err
	}

	policy, err := cfg.pumpPolicy()
	if err != nil {
		return nil, err
	}
	cycle := logic.Seconds(cfg.cycle / time.Second)
	channels := []controller.ChannelConfig{
		{ID: 1, CyclePeriod: cycle, Policy: policy, Relay: relay1, Switch: sensor.NewSwitch(sw1, cfg.switchDebounce)},
		{ID: 2, CyclePeriod: cycle, Policy: policy, Relay: relay2, Switch: sensor.NewSwitch(sw2, cfg.switchDebounce)},
	}

	if policy.Kind == logic.PolicySoil {
		probes := [][2]int{{cfg.pins.soil1A, cfg.pins.soil1B}, {cfg.pins.soil2A, cfg.pins.soil2B}}
		for i, pair := range probes {
			a, err := input(gpio.LineConfig{Offset: pair[0]})
			if err != nil {
				return nil, err
			}
			b, err := input(gpio.LineConfig{Offset: pair[1]})
			if err != nil {
				return nil, err
			}
			channels[i].Soil = sensor.NewSoil(i+1, a, b, start)
		}
	}

	hw.ctrl, err = controller.New(controller.Config{
		Water:    hw.water,
		Air:      sensor.NewAir(air, led, start),
		Knob:     knob,
		Channels: channels,
	}, start)
	if err != nil {
		return nil, err
	}
	return hw, nil
}

// Close releases every line, inputs first.
func (hw *hardware) Close() error {
	var errs []error
	for _, in := range hw.inputs {
		if err := in.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, out := range hw.outputs {
		if err := out.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func printState(w io.Writer, hw *hardware, knob *analog.Knob, air sensor.AirReader) error {
	if err := knob.Sample(); err != nil {
		return err
	}
	fmt.Fprintf(w, "water: %s\n", presence(hw.water.ShouldWater()))
	fmt.Fprintf(w, "knob: %d\n", knob.Level())
	if r, err := air.ReadAir(); err != nil {
		fmt.Fprintf(w, "air: %v\n", err)
	} else {
		fmt.Fprintf(w, "air: %.1f C, %.0f %%, dew point %.1f C\n",
			r.TemperatureC, r.HumidityPct, sensor.DewPoint(r.TemperatureC, r.HumidityPct))
	}
	for _, p := range hw.ctrl.Pumps() {
		fmt.Fprintf(w, "pump %d: %s, rest %ds\n", p.ID(), p.Policy().Kind, p.RestInterval())
	}
	return nil
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}

func runLoop(ctrl *controller.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, m *metrics.Metrics, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	connected := func() bool {
		return mqttStatus != nil && mqttStatus.IsConnected()
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if err := ctrl.Shutdown(); err != nil {
				log.Printf("relay shutdown error: %v", err)
			}
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				tracker.Prime(ctrl.Snapshot())
				tracker.SetMQTTConnected(connected())
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			transitions, err := ctrl.Tick(t)
			if err != nil {
				// Don't stop on sensor or relay failures
				log.Printf("tick error: %v", err)
			}

			for _, tr := range transitions {
				log.Printf("pump %d: %s -> %s (%s)", tr.PumpID, tr.From, tr.To, tr.Reason)
				if err := publisher.Publish(mqtt.PumpEvent{Timestamp: t, Transition: tr}); err != nil {
					log.Printf("publish error: %v", err)
				}
			}

			snap := ctrl.Snapshot()
			if m != nil {
				m.ObserveTransitions(transitions)
				m.ObserveSnapshot(snap)
				m.SetMQTTConnected(connected())
			}
			if tracker != nil {
				tracker.Update(snap)
				tracker.SetMQTTConnected(connected())
			}

			if hb := ctrl.CheckHeartbeat(t, heartbeat); hb != nil {
				log.Printf("heartbeat: uptime=%v water=%s knob=%d", hb.Uptime, presence(hb.Snapshot.WaterPresent), hb.Snapshot.Knob)
				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}
