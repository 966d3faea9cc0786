// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package m1k provides a host-side interface to USB source-measure
// instruments of the ADALM1000 family. A Session discovers the attached
// devices once and names every channel with a letter that is unique across
// all devices; afterward callers work directly with the Device and Channel
// objects it built.
package m1k

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// maxChannels bounds the letter naming scheme at 'A' through 'Z'.
const maxChannels = 26

// letterSequence hands out successive channel letters and fails closed once
// the naming scheme is exhausted rather than wrapping around.
type letterSequence struct {
	next int
}

func (ls *letterSequence) Next() (string, error) {
	if ls.next >= maxChannels {
		return "", fmt.Errorf("more than %d channels attached: %w",
			maxChannels, ErrCapacityExceeded)
	}
	letter := string(rune('A' + ls.next))
	ls.next++
	return letter, nil
}

// Session is the enumeration root for all attached devices. Channel letters
// are assigned consecutively from 'A' in discovery order across the
// flattened (device, channel) stream, so naming is global rather than per
// device. A Session is built once at process start and closed once at
// process exit; the object graph is never rebuilt while it lives.
type Session struct {
	transport Transport
	closeOnce sync.Once

	// Serials maps device index (discovery order) to serial number.
	Serials map[int]string
	// Channels maps channel letter to Channel, across all devices.
	Channels map[string]*Channel
	// Devices maps device index to Device.
	Devices map[int]*Device
}

// Open sets up the transport, discovers all attached devices, and returns
// the fully populated session. Setup or discovery failure aborts
// construction entirely with ErrTransportUnavailable; no partial object
// graph is ever returned. A device that disappears after discovery surfaces
// later as a per-operation error, not here.
//
// Open and Close are expected to run at most once each per process.
// Concurrent calls must be serialized by the caller.
func Open(t Transport) (*Session, error) {
	if err := t.Setup(); err != nil {
		return nil, fmt.Errorf("transport setup failed: %s: %w",
			err, ErrTransportUnavailable)
	}
	infos, err := t.Discover()
	if err != nil {
		t.Cleanup()
		return nil, fmt.Errorf("device discovery failed: %s: %w",
			err, ErrTransportUnavailable)
	}

	s := &Session{
		transport: t,
		Serials:   make(map[int]string),
		Channels:  make(map[string]*Channel),
		Devices:   make(map[int]*Device),
	}
	var letters letterSequence
	for i, info := range infos {
		s.Serials[i] = info.Serial
		dev := &Device{
			transport: t,
			Serial:    info.Serial,
		}
		for chIndex, signals := range info.Channels {
			letter, err := letters.Next()
			if err != nil {
				t.Cleanup()
				return nil, err
			}
			ch := newChannel(t, letter, info.Serial, chIndex, signals)
			s.Channels[letter] = ch
			dev.Channels = append(dev.Channels, ch)
		}
		s.Devices[i] = dev
	}
	return s, nil
}

// Close releases the transport. It is safe to call multiple times; only the
// first call reaches the transport. Callers should defer Close immediately
// after a successful Open so the transport is released on every exit path.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Cleanup()
	})
	return err
}

func (s *Session) String() string {
	indexes := make([]int, 0, len(s.Devices))
	for i := range s.Devices {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	serials := make([]string, 0, len(indexes))
	for _, i := range indexes {
		serials = append(serials, s.Serials[i])
	}
	return "Devices: " + strings.Join(serials, ", ")
}
