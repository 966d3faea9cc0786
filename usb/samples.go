// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package usb

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/gotmc/m1k"
)

// The ADC and DAC are 16-bit. Voltage spans 0 to 5 V and current spans
// -200 mA to +200 mA over the full word range.
const (
	converter        = 65535
	voltageFullScale = 5.0
	currentSpan      = 0.4
	currentMin       = -0.2
)

func voltsFromWord(w uint16) float64 {
	return float64(w) / converter * voltageFullScale
}

func ampsFromWord(w uint16) float64 {
	return float64(w)/converter*currentSpan + currentMin
}

func wordFromVolts(v float64) uint16 {
	return scaleToWord(v / voltageFullScale)
}

func wordFromAmps(a float64) uint16 {
	return scaleToWord((a - currentMin) / currentSpan)
}

// scaleToWord converts a 0.0 to 1.0 fraction of full scale to a word,
// clamping values outside the representable range.
func scaleToWord(frac float64) uint16 {
	if frac <= 0 {
		return 0
	}
	if frac >= 1 {
		return converter
	}
	return uint16(math.Floor(frac*converter + 0.5))
}

// decodeSample decodes one 4-byte sample record: a little-endian voltage
// word followed by a current word.
func decodeSample(data []byte) m1k.Sample {
	return m1k.Sample{
		Voltage: voltsFromWord(binary.LittleEndian.Uint16(data[0:2])),
		Current: ampsFromWord(binary.LittleEndian.Uint16(data[2:4])),
	}
}

const bytesPerRecord = wordsPerSample * bytesPerWord

// packCaptureData builds the 4-byte capture configuration payload: the
// little-endian sample count, where zero means capture continuously.
func packCaptureData(count uint32) []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, count)
	return data
}

// startCapture arms an acquisition on the selected channel (or allChannels)
// for count samples per channel.
func (t *Transport) startCapture(dev *device, selector uint16, count uint32) error {
	_, err := t.sendCommand(dev, commandStartCapture, selector, 0x0,
		packCaptureData(count))
	return err
}

func (t *Transport) stopCapture(dev *device, selector uint16) error {
	_, err := t.sendCommand(dev, commandStopCapture, selector, 0x0, nil)
	return err
}

// readBulk fills p from the device's bulk IN endpoint, looping until the
// buffer is full. The device streams sample data in packets of up to
// maxBulkTransferPacketSize bytes.
func (t *Transport) readBulk(dev *device, p []byte) error {
	for filled := 0; filled < len(p); {
		n, err := dev.handle.BulkTransfer(
			dev.bulkIn.EndpointAddress, p[filled:], len(p)-filled, t.Timeout)
		if err != nil {
			return fmt.Errorf("error during bulk read: %s", err)
		}
		if n == 0 {
			return fmt.Errorf("bulk read stalled after %d of %d bytes",
				filled, len(p))
		}
		filled += n
	}
	return nil
}

// ReadAllChannels performs a blocking batch read of n synchronized samples
// from every channel. Each frame on the wire carries one record per channel
// in channel order.
func (t *Transport) ReadAllChannels(serial string, n int) ([][]m1k.Sample, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return nil, err
	}
	if err = t.startCapture(dev, allChannels, uint32(n)); err != nil {
		return nil, err
	}
	bytesPerFrame := channelsPerDevice * bytesPerRecord
	data := make([]byte, n*bytesPerFrame)
	if err = t.readBulk(dev, data); err != nil {
		t.stopCapture(dev, allChannels)
		return nil, err
	}
	rows := make([][]m1k.Sample, n)
	for i := 0; i < n; i++ {
		frame := data[i*bytesPerFrame : (i+1)*bytesPerFrame]
		row := make([]m1k.Sample, channelsPerDevice)
		for ch := 0; ch < channelsPerDevice; ch++ {
			row[ch] = decodeSample(frame[ch*bytesPerRecord:])
		}
		rows[i] = row
	}
	return rows, nil
}

// ReadChannel performs a blocking batch read of n samples from a single
// channel.
func (t *Transport) ReadChannel(serial string, channel, n int) ([]m1k.Sample, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return nil, err
	}
	if err = t.startCapture(dev, uint16(channel), uint32(n)); err != nil {
		return nil, err
	}
	data := make([]byte, n*bytesPerRecord)
	if err = t.readBulk(dev, data); err != nil {
		t.stopCapture(dev, uint16(channel))
		return nil, err
	}
	samples := make([]m1k.Sample, n)
	for i := range samples {
		samples[i] = decodeSample(data[i*bytesPerRecord:])
	}
	return samples, nil
}

// StreamChannel starts a continuous acquisition on one channel. The
// returned reader owns the capture; closing it stops the acquisition.
func (t *Transport) StreamChannel(serial string, channel int) (m1k.SampleReader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return nil, err
	}
	if err = t.startCapture(dev, uint16(channel), 0); err != nil {
		return nil, err
	}
	return &channelStream{t: t, dev: dev, channel: channel}, nil
}

// channelStream reads continuous sample data one bulk packet at a time and
// doles it out record by record.
type channelStream struct {
	t       *Transport
	dev     *device
	channel int
	buf     []byte
	off     int
	closed  bool
}

func (cs *channelStream) Read() (m1k.Sample, error) {
	if cs.closed {
		return m1k.Sample{}, io.EOF
	}
	if cs.off >= len(cs.buf) {
		cs.t.mu.Lock()
		packet := make([]byte, maxBulkTransferPacketSize)
		n, err := cs.dev.handle.BulkTransfer(
			cs.dev.bulkIn.EndpointAddress, packet, len(packet), cs.t.Timeout)
		cs.t.mu.Unlock()
		if err != nil {
			return m1k.Sample{}, fmt.Errorf("error during stream read: %s", err)
		}
		if n < bytesPerRecord {
			// A short packet with no full record means the device
			// stopped producing data and has been removed.
			return m1k.Sample{}, io.EOF
		}
		cs.buf = packet[:n-n%bytesPerRecord]
		cs.off = 0
	}
	sample := decodeSample(cs.buf[cs.off:])
	cs.off += bytesPerRecord
	return sample, nil
}

func (cs *channelStream) Close() error {
	if cs.closed {
		return nil
	}
	cs.closed = true
	cs.t.mu.Lock()
	defer cs.t.mu.Unlock()
	return cs.t.stopCapture(cs.dev, uint16(cs.channel))
}
