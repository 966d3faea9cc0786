// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package usb

import (
	"encoding/binary"
	"fmt"
	"io/ioutil"
)

// ReadCalibration reads the device's calibration memory. The blob is
// returned as-is; interpreting it is up to the caller.
func (t *Transport) ReadCalibration(serial string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return nil, err
	}
	blob := make([]byte, calMemorySize)
	for address := 0; address < calMemorySize; address += maxBulkTransferPacketSize {
		chunk := blob[address : address+maxBulkTransferPacketSize]
		if _, err := t.readCommand(dev, commandCalibrationMemory,
			uint16(address), 0x0, chunk); err != nil {
			return nil, fmt.Errorf("error reading cal memory at 0x%x: %s",
				address, err)
		}
	}
	return blob, nil
}

// WriteCalibration writes the calibration file at path to the device's
// calibration memory. The memory is unlocked for the duration of the write
// and relocked afterward. The device itself rejects malformed records, so
// no validation happens here beyond the size of the file.
func (t *Transport) WriteCalibration(serial, path string) error {
	blob, err := ioutil.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading calibration file %s: %s", path, err)
	}
	if len(blob) > calMemorySize {
		return fmt.Errorf("calibration file %s is %d bytes; max is %d",
			path, len(blob), calMemorySize)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return err
	}
	if err = t.writeCalLock(dev, calUnlockKey); err != nil {
		return err
	}
	for address := 0; address < len(blob); address += maxBulkTransferPacketSize {
		end := address + maxBulkTransferPacketSize
		if end > len(blob) {
			end = len(blob)
		}
		if _, err := t.sendCommand(dev, commandCalibrationMemory,
			uint16(address), 0x0, blob[address:end]); err != nil {
			t.writeCalLock(dev, calLockValue)
			return fmt.Errorf("error writing cal memory at 0x%x: %s",
				address, err)
		}
	}
	return t.writeCalLock(dev, calLockValue)
}

func (t *Transport) writeCalLock(dev *device, key uint16) error {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, key)
	_, err := t.sendCommand(dev, commandCalibrationMemory,
		calUnlockAddress, 0x0, data)
	return err
}
