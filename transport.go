// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package m1k

// Sample holds one time-step of measurement data from one channel. Both
// signals are captured on every conversion regardless of the channel's mode.
type Sample struct {
	Voltage float64
	Current float64
}

// DeviceInfo describes one discovered device: its serial number and, per
// channel in hardware order, the ordered list of signal names the channel
// reports. Signal order defines the native signal indices.
type DeviceInfo struct {
	Serial   string
	Channels [][]string
}

// SampleReader produces an unbounded sequence of samples from one channel.
// Read blocks until the next sample is available and returns io.EOF once the
// transport reports device removal. Close releases the stream; no further
// hardware I/O is issued beyond the request in flight.
type SampleReader interface {
	Read() (Sample, error)
	Close() error
}

// Transport is the native instrument-transport surface this package is built
// on. The usb subpackage provides the production implementation; tests
// substitute fakes. Mode and shape arguments are the wire codes (see Mode and
// the waveform shape constants).
//
// The transport carries no concurrency control of its own. Callers must
// serialize access to a given device from multiple goroutines.
type Transport interface {
	// Setup and Cleanup bracket the process-wide transport lifecycle.
	// Each is invoked exactly once per session.
	Setup() error
	Cleanup() error

	// Discover returns all attached devices in discovery order.
	Discover() ([]DeviceInfo, error)

	FirmwareVersion(serial string) (string, error)
	HardwareVersion(serial string) (string, error)

	// ReadAllChannels performs a blocking batch read of n synchronized
	// samples from every channel of the device. The result has n rows,
	// each with one Sample per channel in channel order.
	ReadAllChannels(serial string, n int) ([][]Sample, error)

	// ReadChannel performs a blocking batch read of n samples from a
	// single channel.
	ReadChannel(serial string, channel, n int) ([]Sample, error)

	// StreamChannel starts a continuous acquisition on one channel.
	StreamChannel(serial string, channel int) (SampleReader, error)

	SetChannelMode(serial string, channel, mode int) error
	SetOutputConstant(serial string, channel, mode int, value float64) error
	SetOutputWave(serial string, channel, mode, shape int,
		midpoint, peak, period, phase, dutyCycle float64) error
	SetOutputBuffer(waveform []float64, serial string, channel, mode int,
		repeat bool) error

	// ReadCalibration returns the device's calibration record as an
	// opaque blob. WriteCalibration sends the calibration file at path to
	// the device; the transport is responsible for rejecting malformed
	// data.
	ReadCalibration(serial string) ([]byte, error)
	WriteCalibration(serial, path string) error

	// ControlTransfer performs a raw USB control transfer and returns the
	// number of bytes transferred. Use Device.CtrlTransfer, which
	// normalizes the direction-dependent argument encoding.
	ControlTransfer(serial string, requestType, request byte,
		value, index uint16, data []byte, length, timeout int) (int, error)
}
