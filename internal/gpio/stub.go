//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealChip is not available on non-Linux platforms.
type RealChip struct{}

// NewRealChip returns an error on non-Linux platforms.
func NewRealChip(name string) (*RealChip, error) {
	return nil, errUnsupported
}

// Input is not implemented on non-Linux platforms.
func (c *RealChip) Input(cfg LineConfig) (Input, error) { return nil, errUnsupported }

// Output is not implemented on non-Linux platforms.
func (c *RealChip) Output(cfg LineConfig) (Output, error) { return nil, errUnsupported }

// Watch is not implemented on non-Linux platforms.
func (c *RealChip) Watch(cfg LineConfig, handler func(level bool)) (Input, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *RealChip) Close() error {
	return nil
}
