// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package usb

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Source-voltage and source-current mode codes on the wire. Values the core
// sends for the mode argument; only these two drive the output DAC.
const (
	modeSVMI = 1
	modeSIMV = 2
)

// SetOutputConstant sets a channel's output to a fixed level. The value is
// volts in SVMI mode and amps in SIMV mode.
func (t *Transport) SetOutputConstant(serial string, channel, mode int,
	value float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return err
	}
	data := make([]byte, 4)
	packFloat32(data, value)
	_, err = t.sendCommand(dev, commandSetConstant,
		uint16(channel), uint16(mode), data)
	return err
}

// SetOutputWave configures a periodic output waveform. The payload is the
// shape code followed by the five waveform parameters as little-endian
// IEEE 754 single-precision values.
func (t *Transport) SetOutputWave(serial string, channel, mode, shape int,
	midpoint, peak, period, phase, dutyCycle float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return err
	}
	data := make([]byte, 21)
	data[0] = byte(shape)
	for i, param := range []float64{midpoint, peak, period, phase, dutyCycle} {
		packFloat32(data[1+4*i:], param)
	}
	_, err = t.sendCommand(dev, commandSetWave,
		uint16(channel), uint16(mode), data)
	return err
}

// SetOutputBuffer uploads an arbitrary waveform. The control write carries
// the sample count and repeat flag; the encoded samples follow over the
// bulk OUT endpoint.
func (t *Transport) SetOutputBuffer(waveform []float64, serial string,
	channel, mode int, repeat bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return err
	}
	header := make([]byte, 5)
	binary.LittleEndian.PutUint32(header, uint32(len(waveform)))
	if repeat {
		header[4] = 1
	}
	_, err = t.sendCommand(dev, commandSetBuffer,
		uint16(channel), uint16(mode), header)
	if err != nil {
		return err
	}
	data := encodeWaveform(waveform, mode)
	for sent := 0; sent < len(data); {
		n, err := dev.handle.BulkTransfer(
			dev.bulkOut.EndpointAddress, data[sent:], len(data)-sent, t.Timeout)
		if err != nil {
			return fmt.Errorf("error during bulk write: %s", err)
		}
		if n == 0 {
			return fmt.Errorf("bulk write stalled after %d of %d bytes",
				sent, len(data))
		}
		sent += n
	}
	return nil
}

// encodeWaveform converts waveform values to output DAC words. The unit of
// the values follows the mode, matching SetOutputConstant.
func encodeWaveform(waveform []float64, mode int) []byte {
	data := make([]byte, len(waveform)*bytesPerWord)
	for i, value := range waveform {
		var word uint16
		if mode == modeSIMV {
			word = wordFromAmps(value)
		} else {
			word = wordFromVolts(value)
		}
		binary.LittleEndian.PutUint16(data[i*bytesPerWord:], word)
	}
	return data
}

// packFloat32 encodes a parameter as a little-endian IEEE 754 4-byte value,
// the format the firmware stores waveform parameters in.
func packFloat32(data []byte, f float64) {
	binary.LittleEndian.PutUint32(data, math.Float32bits(float32(f)))
}
