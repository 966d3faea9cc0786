// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package usb

type command byte

// Vendor request commands understood by the instrument firmware.
const (
	// Version commands
	commandFirmwareVersion command = 0x00
	commandHardwareVersion command = 0x01
	// Channel configuration commands
	commandSetMode command = 0x10
	// Capture commands
	commandStartCapture command = 0x20
	commandStopCapture  command = 0x21
	// Output commands
	commandSetConstant command = 0x30
	commandSetWave     command = 0x31
	commandSetBuffer   command = 0x32
	// Memory commands
	commandCalibrationMemory command = 0x40
)

var commands = map[command]string{
	commandFirmwareVersion:   "Read firmware version",
	commandHardwareVersion:   "Read hardware version",
	commandSetMode:           "Set channel mode",
	commandStartCapture:      "Start sample capture",
	commandStopCapture:       "Stop sample capture",
	commandSetConstant:       "Set constant output level",
	commandSetWave:           "Set periodic output waveform",
	commandSetBuffer:         "Upload arbitrary output waveform",
	commandCalibrationMemory: "Read/write calibration memory",
}

func (c command) String() string {
	return commands[c]
}

// allChannels selects every channel of a device in a capture command.
const allChannels = 0xffff

const (
	maxBulkTransferPacketSize = 64
	bytesPerWord              = 2
	wordsPerSample            = 2 // voltage word then current word
)

// Calibration memory layout. The EEPROM blob is write protected; writes
// require the unlock key at the unlock address first and any other value
// relocks it.
const (
	calMemorySize    = 0x400
	calUnlockAddress = 0x400
	calUnlockKey     = 0xaa55
	calLockValue     = 0x0000
)
