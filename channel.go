// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package m1k

import (
	"fmt"
	"strings"
)

// Mode is a channel's operating configuration. The non-negative values are
// the wire codes the transport expects; ModeUnset is local state meaning the
// channel has never been configured and is never sent to the device.
type Mode int

// Channel modes.
const (
	ModeUnset Mode = iota - 1
	ModeHiZ        // disabled, high impedance
	ModeSVMI       // source voltage, measure current
	ModeSIMV       // source current, measure voltage
)

var modeNames = map[Mode]string{
	ModeUnset: "unset",
	ModeHiZ:   "disabled",
	ModeSVMI:  "voltage-source",
	ModeSIMV:  "current-source",
}

func (m Mode) String() string {
	return modeNames[m]
}

// modeTokens maps the accepted SetMode tokens, lowercased, to modes. Both
// the single-letter and the descriptive form of each mode are accepted.
var modeTokens = map[string]Mode{
	"d":              ModeHiZ,
	"disabled":       ModeHiZ,
	"v":              ModeSVMI,
	"voltage-source": ModeSVMI,
	"i":              ModeSIMV,
	"current-source": ModeSIMV,
}

// Waveform shape codes defined by the transport.
const (
	shapeSquare = iota + 1
	shapeSawtooth
	shapeStairstep
	shapeSine
	shapeTriangle
)

// placeholderDutyCycle is the duty-cycle value sent for waveform shapes that
// have no adjustable duty cycle; only square waves do. The firmware has
// always been sent this value for these shapes, but its unit and meaning
// are undocumented and still need clarification from the vendor.
const placeholderDutyCycle = 42

// Channel is one addressable source/measure line on a device. Channels are
// built by Open and live until the session is closed.
type Channel struct {
	transport Transport

	// Letter is the channel's session-wide identifier.
	Letter string
	// DeviceSerial identifies the device this channel belongs to.
	DeviceSerial string
	// Index is the channel's 0-based position within its device.
	Index int
	// Signals maps signal name to the index the transport uses for it.
	Signals map[string]int

	mode Mode
}

func newChannel(t Transport, letter, serial string, index int, signals []string) *Channel {
	sigMap := make(map[string]int, len(signals))
	for i, name := range signals {
		sigMap[name] = i
	}
	return &Channel{
		transport:    t,
		Letter:       letter,
		DeviceSerial: serial,
		Index:        index,
		Signals:      sigMap,
		mode:         ModeUnset,
	}
}

// Mode returns the channel's last acknowledged mode, or ModeUnset if
// SetMode has never succeeded.
func (ch *Channel) Mode() Mode {
	return ch.mode
}

// SetMode sets the channel's operating mode. The token is case-insensitive;
// valid tokens are "d"/"disabled", "v"/"voltage-source", and
// "i"/"current-source". Any other token fails with ErrInvalidMode without
// touching the transport. The stored mode only changes once the transport
// acknowledges the new one, so a transport failure leaves the channel in its
// previous configuration.
func (ch *Channel) SetMode(token string) error {
	mode, ok := modeTokens[strings.ToLower(token)]
	if !ok {
		return fmt.Errorf("mode %q: %w", token, ErrInvalidMode)
	}
	err := ch.transport.SetChannelMode(ch.DeviceSerial, ch.Index, int(mode))
	if err != nil {
		return fmt.Errorf("setting channel %s to mode %s: %s",
			ch.Letter, mode, err)
	}
	ch.mode = mode
	return nil
}

func (ch *Channel) requireMode() error {
	if ch.mode == ModeUnset {
		return fmt.Errorf("channel %s: %w", ch.Letter, ErrModeNotSet)
	}
	return nil
}

// GetSamples performs a blocking batch read of exactly n samples from this
// channel. On any mid-read failure the samples collected so far are
// discarded and ErrAcquisition is returned; there is no partial result.
func (ch *Channel) GetSamples(n int) ([]Sample, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}
	samples, err := ch.transport.ReadChannel(ch.DeviceSerial, ch.Index, n)
	if err != nil {
		return nil, fmt.Errorf("reading %d samples from channel %s: %s: %w",
			n, ch.Letter, err, ErrAcquisition)
	}
	if len(samples) != n {
		return nil, fmt.Errorf("read %d of %d samples from channel %s: %w",
			len(samples), n, ch.Letter, ErrAcquisition)
	}
	return samples, nil
}

// Constant sets the channel's output to a fixed level. The value's unit
// depends on the mode (volts for SVMI, amps for SIMV) and its range is
// validated by the transport.
func (ch *Channel) Constant(value float64) error {
	if err := ch.requireMode(); err != nil {
		return err
	}
	return ch.transport.SetOutputConstant(
		ch.DeviceSerial, ch.Index, int(ch.mode), value)
}

// Square configures a square-wave output. Square is the only shape with an
// adjustable duty cycle.
func (ch *Channel) Square(midpoint, peak, period, phase, dutyCycle float64) error {
	return ch.outputWave(shapeSquare, midpoint, peak, period, phase, dutyCycle)
}

// Sawtooth configures a sawtooth output.
func (ch *Channel) Sawtooth(midpoint, peak, period, phase float64) error {
	return ch.outputWave(shapeSawtooth, midpoint, peak, period, phase,
		placeholderDutyCycle)
}

// Stairstep configures a stairstep output.
func (ch *Channel) Stairstep(midpoint, peak, period, phase float64) error {
	return ch.outputWave(shapeStairstep, midpoint, peak, period, phase,
		placeholderDutyCycle)
}

// Sine configures a sinusoidal output.
func (ch *Channel) Sine(midpoint, peak, period, phase float64) error {
	return ch.outputWave(shapeSine, midpoint, peak, period, phase,
		placeholderDutyCycle)
}

// Triangle configures a triangle output.
func (ch *Channel) Triangle(midpoint, peak, period, phase float64) error {
	return ch.outputWave(shapeTriangle, midpoint, peak, period, phase,
		placeholderDutyCycle)
}

func (ch *Channel) outputWave(shape int, midpoint, peak, period, phase, dutyCycle float64) error {
	if err := ch.requireMode(); err != nil {
		return err
	}
	return ch.transport.SetOutputWave(ch.DeviceSerial, ch.Index, int(ch.mode),
		shape, midpoint, peak, period, phase, dutyCycle)
}

// Arbitrary uploads a user-defined waveform buffer for output. When repeat
// is true the device loops the buffer indefinitely; otherwise it plays once
// and the terminal output state is left to the transport default.
func (ch *Channel) Arbitrary(waveform []float64, repeat bool) error {
	if err := ch.requireMode(); err != nil {
		return err
	}
	return ch.transport.SetOutputBuffer(
		waveform, ch.DeviceSerial, ch.Index, int(ch.mode), repeat)
}

func (ch *Channel) String() string {
	return fmt.Sprintf("channel %s (device %s, index %d, mode %s)",
		ch.Letter, ch.DeviceSerial, ch.Index, ch.mode)
}
