package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// FakeInput is a test double that returns scripted or settable levels.
type FakeInput struct {
	mu sync.Mutex

	// Samples contains scripted levels to return. Each call to Read()
	// consumes the next sample; when exhausted the last one repeats.
	// When empty, Level is returned.
	Samples []bool
	index   int

	// Level is returned when no samples are scripted.
	Level bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeInput creates a FakeInput returning level.
func NewFakeInput(level bool) *FakeInput {
	return &FakeInput{Level: level}
}

// Read returns the next scripted level.
func (f *FakeInput) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return f.Level, nil
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// SetLevel changes the level returned when no samples are scripted.
func (f *FakeInput) SetLevel(level bool) {
	f.mu.Lock()
	f.Level = level
	f.mu.Unlock()
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeOutput records every level written.
type FakeOutput struct {
	mu sync.Mutex

	// Level is the last level written.
	Level bool

	// Writes contains every level written, in order.
	Writes []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the level.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Level = on
	f.Writes = append(f.Writes, on)
	return nil
}

// On returns the last level written.
func (f *FakeOutput) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Level
}

// Close drives the output off and marks it closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	f.Level = false
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeChip hands out fake lines keyed by offset.
type FakeChip struct {
	mu       sync.Mutex
	Inputs   map[int]*FakeInput
	Outputs  map[int]*FakeOutput
	Configs  map[int]LineConfig // last config requested per offset
	handlers map[int]func(bool)

	// RequestError, if set, is returned by every request.
	RequestError error

	Closed bool
}

// NewFakeChip creates an empty FakeChip.
func NewFakeChip() *FakeChip {
	return &FakeChip{
		Inputs:   map[int]*FakeInput{},
		Outputs:  map[int]*FakeOutput{},
		Configs:  map[int]LineConfig{},
		handlers: map[int]func(bool){},
	}
}

func (c *FakeChip) input(cfg LineConfig) (*FakeInput, error) {
	if c.RequestError != nil {
		return nil, c.RequestError
	}
	if _, ok := c.Outputs[cfg.Offset]; ok {
		return nil, fmt.Errorf("pin %d already requested as output", cfg.Offset)
	}
	in, ok := c.Inputs[cfg.Offset]
	if !ok {
		in = NewFakeInput(false)
		c.Inputs[cfg.Offset] = in
	}
	c.Configs[cfg.Offset] = cfg
	return in, nil
}

// Input returns the fake input at cfg.Offset, creating it if needed.
func (c *FakeChip) Input(cfg LineConfig) (Input, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input(cfg)
}

// Watch returns the fake input at cfg.Offset and records handler for Trigger.
func (c *FakeChip) Watch(cfg LineConfig, handler func(level bool)) (Input, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	in, err := c.input(cfg)
	if err != nil {
		return nil, err
	}
	c.handlers[cfg.Offset] = handler
	return in, nil
}

// Output returns the fake output at cfg.Offset, driven off.
func (c *FakeChip) Output(cfg LineConfig) (Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RequestError != nil {
		return nil, c.RequestError
	}
	if _, ok := c.Inputs[cfg.Offset]; ok {
		return nil, fmt.Errorf("pin %d already requested as input", cfg.Offset)
	}
	out, ok := c.Outputs[cfg.Offset]
	if !ok {
		out = NewFakeOutput()
		c.Outputs[cfg.Offset] = out
	}
	c.Configs[cfg.Offset] = cfg
	return out, nil
}

// Trigger sets a watched input's level and delivers an edge to its handler.
func (c *FakeChip) Trigger(offset int, level bool) error {
	c.mu.Lock()
	in, ok := c.Inputs[offset]
	h := c.handlers[offset]
	c.mu.Unlock()

	if !ok || h == nil {
		return errors.New("pin not watched")
	}
	in.SetLevel(level)
	h(level)
	return nil
}

// Close marks the chip as closed.
func (c *FakeChip) Close() error {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
	return nil
}
