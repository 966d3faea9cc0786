// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package m1k

import (
	"errors"
	"io"
)

// fakeTransport records every call made through the Transport interface so
// tests can assert on the wire-level traffic without hardware.
type fakeTransport struct {
	infos       []DeviceInfo
	setupErr    error
	discoverErr error

	setupCalls   int
	cleanupCalls int

	fwVersion  string
	hwVersion  string
	versionErr error

	modeCalls []modeCall
	modeErr   error

	constantCalls []constantCall
	waveCalls     []waveCall
	bufferCalls   []bufferCall
	outputErr     error

	readAllRows [][]Sample
	readAllErr  error
	readRows    []Sample
	readErr     error

	streams   map[int]*fakeReader
	streamErr error

	calibration []byte
	calPaths    []string

	ctrlCalls []ctrlCall
	ctrlFill  []byte
	ctrlCount int
	ctrlErr   error
}

type modeCall struct {
	serial        string
	channel, mode int
}

type constantCall struct {
	serial        string
	channel, mode int
	value         float64
}

type waveCall struct {
	serial               string
	channel, mode, shape int
	midpoint, peak       float64
	period, phase, duty  float64
}

type bufferCall struct {
	waveform      []float64
	serial        string
	channel, mode int
	repeat        bool
}

type ctrlCall struct {
	serial               string
	requestType, request byte
	value, index         uint16
	data                 []byte
	length, timeout      int
}

func (f *fakeTransport) Setup() error {
	f.setupCalls++
	return f.setupErr
}

func (f *fakeTransport) Cleanup() error {
	f.cleanupCalls++
	return nil
}

func (f *fakeTransport) Discover() ([]DeviceInfo, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return f.infos, nil
}

func (f *fakeTransport) FirmwareVersion(serial string) (string, error) {
	return f.fwVersion, f.versionErr
}

func (f *fakeTransport) HardwareVersion(serial string) (string, error) {
	return f.hwVersion, f.versionErr
}

func (f *fakeTransport) ReadAllChannels(serial string, n int) ([][]Sample, error) {
	return f.readAllRows, f.readAllErr
}

func (f *fakeTransport) ReadChannel(serial string, channel, n int) ([]Sample, error) {
	return f.readRows, f.readErr
}

func (f *fakeTransport) StreamChannel(serial string, channel int) (SampleReader, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	r, ok := f.streams[channel]
	if !ok {
		return nil, errors.New("no stream configured")
	}
	return r, nil
}

func (f *fakeTransport) SetChannelMode(serial string, channel, mode int) error {
	if f.modeErr != nil {
		return f.modeErr
	}
	f.modeCalls = append(f.modeCalls, modeCall{serial, channel, mode})
	return nil
}

func (f *fakeTransport) SetOutputConstant(serial string, channel, mode int,
	value float64) error {
	if f.outputErr != nil {
		return f.outputErr
	}
	f.constantCalls = append(f.constantCalls,
		constantCall{serial, channel, mode, value})
	return nil
}

func (f *fakeTransport) SetOutputWave(serial string, channel, mode, shape int,
	midpoint, peak, period, phase, dutyCycle float64) error {
	if f.outputErr != nil {
		return f.outputErr
	}
	f.waveCalls = append(f.waveCalls, waveCall{serial, channel, mode, shape,
		midpoint, peak, period, phase, dutyCycle})
	return nil
}

func (f *fakeTransport) SetOutputBuffer(waveform []float64, serial string,
	channel, mode int, repeat bool) error {
	if f.outputErr != nil {
		return f.outputErr
	}
	f.bufferCalls = append(f.bufferCalls,
		bufferCall{waveform, serial, channel, mode, repeat})
	return nil
}

func (f *fakeTransport) ReadCalibration(serial string) ([]byte, error) {
	return f.calibration, nil
}

func (f *fakeTransport) WriteCalibration(serial, path string) error {
	f.calPaths = append(f.calPaths, path)
	return nil
}

func (f *fakeTransport) ControlTransfer(serial string, requestType, request byte,
	value, index uint16, data []byte, length, timeout int) (int, error) {
	recorded := make([]byte, len(data))
	copy(recorded, data)
	f.ctrlCalls = append(f.ctrlCalls, ctrlCall{serial, requestType, request,
		value, index, recorded, length, timeout})
	if f.ctrlErr != nil {
		return 0, f.ctrlErr
	}
	copy(data, f.ctrlFill)
	return f.ctrlCount, nil
}

// fakeReader plays back a fixed sample sequence and then reports io.EOF, as
// a transport does when the device is removed.
type fakeReader struct {
	samples    []Sample
	next       int
	readErr    error
	closeCalls int
}

func (r *fakeReader) Read() (Sample, error) {
	if r.readErr != nil {
		return Sample{}, r.readErr
	}
	if r.next >= len(r.samples) {
		return Sample{}, io.EOF
	}
	s := r.samples[r.next]
	r.next++
	return s, nil
}

func (r *fakeReader) Close() error {
	r.closeCalls++
	return nil
}

// twoSignalChannels builds the channel topology a real device reports.
func twoSignalChannels(n int) [][]string {
	channels := make([][]string, n)
	for i := range channels {
		channels[i] = []string{"voltage", "current"}
	}
	return channels
}
