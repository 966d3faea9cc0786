// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package m1k

import (
	"fmt"
	"io"
)

// Device is one physical instrument, identified by its serial number and
// owning its channels in hardware order. Devices are built by Open and are
// immutable afterward except through the channels they own.
type Device struct {
	transport Transport

	Serial   string
	Channels []*Channel
}

// FirmwareVersion returns the device's firmware revision.
func (d *Device) FirmwareVersion() (string, error) {
	ver, err := d.transport.FirmwareVersion(d.Serial)
	if err != nil {
		return "", fmt.Errorf("firmware version of device %s: %s: %w",
			d.Serial, err, ErrDeviceUnreachable)
	}
	return ver, nil
}

// HardwareVersion returns the device's hardware revision.
func (d *Device) HardwareVersion() (string, error) {
	ver, err := d.transport.HardwareVersion(d.Serial)
	if err != nil {
		return "", fmt.Errorf("hardware version of device %s: %s: %w",
			d.Serial, err, ErrDeviceUnreachable)
	}
	return ver, nil
}

// GetSamples performs a blocking batch read of exactly n samples from every
// channel of the device. Each returned row aggregates one time-step across
// all channels in channel order. If the device disconnects or is
// reconfigured mid-read, the data collected so far is discarded and
// ErrAcquisition is returned; there is no partial result.
func (d *Device) GetSamples(n int) ([][]Sample, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", n)
	}
	rows, err := d.transport.ReadAllChannels(d.Serial, n)
	if err != nil {
		return nil, fmt.Errorf("reading %d samples from device %s: %s: %w",
			n, d.Serial, err, ErrAcquisition)
	}
	if len(rows) != n {
		return nil, fmt.Errorf("read %d of %d samples from device %s: %w",
			len(rows), n, d.Serial, ErrAcquisition)
	}
	return rows, nil
}

// Samples starts a streaming acquisition across all channels of the device
// and returns the stream. The stream is unbounded and cannot be rewound; to
// restart from the current hardware state, request a new stream.
func (d *Device) Samples() (*SampleStream, error) {
	readers := make([]SampleReader, len(d.Channels))
	for i, ch := range d.Channels {
		r, err := d.transport.StreamChannel(d.Serial, ch.Index)
		if err != nil {
			for _, open := range readers[:i] {
				open.Close()
			}
			return nil, fmt.Errorf("streaming device %s: %s: %w",
				d.Serial, err, ErrAcquisition)
		}
		readers[i] = r
	}
	return &SampleStream{readers: readers}, nil
}

// Calibration reads the device's calibration record. The blob's format is
// defined by the transport and opaque to this package.
func (d *Device) Calibration() ([]byte, error) {
	return d.transport.ReadCalibration(d.Serial)
}

// WriteCalibration writes the calibration file at path to the device. The
// file's contents are not validated here; malformed calibration data is the
// transport's responsibility to reject.
func (d *Device) WriteCalibration(path string) error {
	return d.transport.WriteCalibration(d.Serial, path)
}

// CtrlTransfer performs a raw USB control transfer against this device. Bit
// 7 of requestType selects the direction. For device-to-host requests the
// caller's data argument is ignored, length sizes the read, and the bytes
// received are returned; the returned count for a read is always the
// requested length. For host-to-device requests data is sent verbatim and
// the returned count is the number of bytes transferred.
func (d *Device) CtrlTransfer(requestType, request byte, value, index uint16,
	data []byte, length, timeout int) ([]byte, int, error) {
	return ctrlTransfer(d.transport, d.Serial, requestType, request,
		value, index, data, length, timeout)
}

func (d *Device) String() string {
	return d.Serial
}

// SampleStream is a lazy, unbounded sequence of synchronized per-channel
// samples from one device. It is not safe for concurrent use.
type SampleStream struct {
	readers []SampleReader
	stopped bool
}

// Next blocks until one sample is available from every channel and returns
// the aggregated time-step in channel order. It returns io.EOF once the
// transport reports device removal or after Stop has been called; any other
// failure is reported as ErrAcquisition.
func (st *SampleStream) Next() ([]Sample, error) {
	if st.stopped {
		return nil, io.EOF
	}
	row := make([]Sample, len(st.readers))
	for i, r := range st.readers {
		s, err := r.Read()
		if err == io.EOF {
			st.Stop()
			return nil, io.EOF
		}
		if err != nil {
			st.Stop()
			return nil, fmt.Errorf("sample stream: %s: %w", err, ErrAcquisition)
		}
		row[i] = s
	}
	return row, nil
}

// Stop abandons the stream and releases the per-channel readers. After Stop
// no further hardware I/O is issued beyond any request already in flight.
// Stop is a no-op on an already stopped stream.
func (st *SampleStream) Stop() error {
	if st.stopped {
		return nil
	}
	st.stopped = true
	var firstErr error
	for _, r := range st.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
