//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealChip requests lines from actual hardware using Linux GPIO character device.
type RealChip struct {
	chip *gpiocdev.Chip
}

// NewRealChip opens the named chip, e.g. "gpiochip0".
func NewRealChip(name string) (*RealChip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer("irrigator"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealChip{chip: chip}, nil
}

func inputOptions(cfg LineConfig) []gpiocdev.LineReqOption {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	// Pull-down matches Pi boot defaults when no pull-up is asked for.
	if cfg.PullUp {
		opts = append(opts, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}
	return opts
}

// Input requests a polled input line.
func (c *RealChip) Input(cfg LineConfig) (Input, error) {
	line, err := c.chip.RequestLine(cfg.Offset, inputOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", cfg.Offset, err)
	}
	return &realInput{line: line, offset: cfg.Offset}, nil
}

// Watch requests an input line with edge events on both edges.
func (c *RealChip) Watch(cfg LineConfig, handler func(level bool)) (Input, error) {
	opts := append(inputOptions(cfg),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			// Edges are reported in logical terms, active-low already applied.
			handler(evt.Type == gpiocdev.LineEventRisingEdge)
		}),
	)
	line, err := c.chip.RequestLine(cfg.Offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request watched pin %d: %w", cfg.Offset, err)
	}
	return &realInput{line: line, offset: cfg.Offset}, nil
}

// Output requests an output line driven inactive.
func (c *RealChip) Output(cfg LineConfig) (Output, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := c.chip.RequestLine(cfg.Offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", cfg.Offset, err)
	}
	return &realOutput{line: line, offset: cfg.Offset}, nil
}

// Close releases the chip.
func (c *RealChip) Close() error {
	if err := c.chip.Close(); err != nil {
		return fmt.Errorf("close chip: %w", err)
	}
	return nil
}

type realInput struct {
	line   *gpiocdev.Line
	offset int
}

func (i *realInput) Read() (bool, error) {
	v, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", i.offset, err)
	}
	return v == 1, nil
}

// Close reconfigures the pin to input with pull-down (matching Pi boot
// defaults) before releasing it.
func (i *realInput) Close() error {
	var errs []error
	if err := i.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", i.offset, err))
	}
	if err := i.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", i.offset, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

type realOutput struct {
	line   *gpiocdev.Line
	offset int
}

func (o *realOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.offset, err)
	}
	return nil
}

// Close drives the line inactive and releases it. Outputs are not
// reconfigured as inputs: a pulled-down active-low relay line would energize.
func (o *realOutput) Close() error {
	var errs []error
	if err := o.Set(false); err != nil {
		errs = append(errs, err)
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", o.offset, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
