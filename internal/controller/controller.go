// Package controller owns every sensor and pump of the installation and
// advances them one tick at a time: all sensors first, then every pump in
// channel order, then the relays of pumps that changed.
package controller

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/sweeney/irrigator/internal/logic"
	"github.com/sweeney/irrigator/internal/sensor"
)

// Relay drives a pump output. true energizes the pump.
type Relay interface {
	Set(on bool) error
}

// Knob is sampled once per tick and read by every pump.
type Knob interface {
	Sample() error
	Level() int
}

// ChannelConfig wires one pump channel.
type ChannelConfig struct {
	ID          int
	CyclePeriod logic.Seconds
	Policy      logic.Policy
	Relay       Relay
	Switch      *sensor.Switch
	Soil        *sensor.Soil // nil when the channel has no soil sensor
}

// Config wires the whole installation.
type Config struct {
	Water    *sensor.Water
	Air      *sensor.Air
	Knob     Knob
	Channels []ChannelConfig
}

type channel struct {
	pump       *logic.Pump
	relay      Relay
	sw         *sensor.Switch
	soil       *sensor.Soil
	relayDirty bool
}

// Controller is the single owning context for sensors and pumps.
// Not safe for concurrent use: call Tick and Snapshot from one goroutine.
type Controller struct {
	start    time.Time
	water    *sensor.Water
	air      *sensor.Air
	knob     Knob
	refresh  []namedRefresher
	channels []*channel

	lastHeartbeat time.Time
	counts        TransitionCounts
}

type namedRefresher struct {
	name string
	r    sensor.Refresher
}

// New builds the pumps and drives every relay off. start is the time
// origin for pump timestamps.
func New(cfg Config, start time.Time) (*Controller, error) {
	if cfg.Water == nil || cfg.Air == nil || cfg.Knob == nil {
		return nil, errors.New("controller: water, air and knob are required")
	}
	if len(cfg.Channels) == 0 {
		return nil, errors.New("controller: no pump channels")
	}

	c := &Controller{
		start:         start,
		water:         cfg.Water,
		air:           cfg.Air,
		knob:          cfg.Knob,
		lastHeartbeat: start,
		counts:        TransitionCounts{},
	}
	c.refresh = append(c.refresh,
		namedRefresher{"water", cfg.Water},
		namedRefresher{"air", cfg.Air},
	)

	// A failed first sample leaves the knob at zero; the next tick retries.
	if err := cfg.Knob.Sample(); err != nil {
		log.Printf("controller: initial knob sample failed, using level %d until the next tick: %v", cfg.Knob.Level(), err)
	}

	chans := append([]ChannelConfig(nil), cfg.Channels...)
	sort.Slice(chans, func(i, j int) bool { return chans[i].ID < chans[j].ID })

	seen := map[int]bool{}
	for _, cc := range chans {
		if seen[cc.ID] {
			return nil, fmt.Errorf("controller: duplicate pump id %d", cc.ID)
		}
		seen[cc.ID] = true
		if cc.Relay == nil || cc.Switch == nil {
			return nil, fmt.Errorf("controller: pump %d needs a relay and a switch", cc.ID)
		}

		in := logic.Inputs{Water: cfg.Water, Air: cfg.Air, Switch: cc.Switch, Knob: cfg.Knob}
		if cc.Soil != nil {
			in.Soil = cc.Soil
			c.refresh = append(c.refresh, namedRefresher{fmt.Sprintf("soil %d", cc.ID), cc.Soil})
		}
		c.refresh = append(c.refresh, namedRefresher{fmt.Sprintf("switch %d", cc.ID), cc.Switch})

		ch := &channel{
			pump:  logic.NewPump(logic.PumpConfig{ID: cc.ID, CyclePeriod: cc.CyclePeriod, Policy: cc.Policy}, in),
			relay: cc.Relay,
			sw:    cc.Switch,
			soil:  cc.Soil,
		}
		if err := ch.relay.Set(false); err != nil {
			return nil, fmt.Errorf("controller: pump %d relay off: %w", cc.ID, err)
		}
		c.channels = append(c.channels, ch)
	}
	return c, nil
}

// Tick refreshes every sensor and the knob, then advances every pump. It
// returns the transitions taken. Sensor and relay errors are returned
// joined; they never stop the pumps from being evaluated.
func (c *Controller) Tick(now time.Time) ([]logic.Transition, error) {
	var errs []error
	for _, s := range c.refresh {
		if err := s.r.Refresh(now); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	if err := c.knob.Sample(); err != nil {
		errs = append(errs, err)
	}

	sec := logic.SecondsSince(c.start, now)
	var transitions []logic.Transition
	for _, ch := range c.channels {
		if tr := ch.pump.ControlPump(sec); tr != nil {
			transitions = append(transitions, *tr)
			c.counts[tr.Reason]++
			ch.relayDirty = true
		}
		// A failed relay write is retried every tick until it sticks.
		if ch.relayDirty {
			if err := ch.relay.Set(ch.pump.Pumping()); err != nil {
				errs = append(errs, fmt.Errorf("pump %d relay: %w", ch.pump.ID(), err))
			} else {
				ch.relayDirty = false
			}
		}
	}
	return transitions, errors.Join(errs...)
}

// Shutdown drives every relay off.
func (c *Controller) Shutdown() error {
	var errs []error
	for _, ch := range c.channels {
		if err := ch.relay.Set(false); err != nil {
			errs = append(errs, fmt.Errorf("pump %d relay off: %w", ch.pump.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Pumps returns the pumps in channel order.
func (c *Controller) Pumps() []*logic.Pump {
	out := make([]*logic.Pump, len(c.channels))
	for i, ch := range c.channels {
		out[i] = ch.pump
	}
	return out
}

// StartTime returns the time origin of the pump clock.
func (c *Controller) StartTime() time.Time {
	return c.start
}
