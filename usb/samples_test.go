// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package usb

import (
	"fmt"
	"testing"

	c "github.com/smartystreets/goconvey/convey"
)

func TestWordConversions(t *testing.T) {
	testCases := []struct {
		word  uint16
		volts float64
		amps  float64
	}{
		{0, 0.0, -0.2},
		{65535, 5.0, 0.2},
		{32768, 2.500038148, 0.000003052},
	}
	c.Convey("Given the 16-bit measurement encoding", t, func() {
		for _, tc := range testCases {
			conveyance := fmt.Sprintf("When decoding the word 0x%04x", tc.word)
			c.Convey(conveyance, func() {
				c.Convey("Then the voltage and current match", func() {
					c.So(voltsFromWord(tc.word), c.ShouldAlmostEqual,
						tc.volts, 1e-6)
					c.So(ampsFromWord(tc.word), c.ShouldAlmostEqual,
						tc.amps, 1e-6)
				})
			})
		}
	})
}

func TestWordEncodingRoundTrip(t *testing.T) {
	testCases := []struct {
		volts float64
		word  uint16
	}{
		{0.0, 0},
		{2.5, 32768},
		{5.0, 65535},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%.1f volts", tc.volts), func(t *testing.T) {
			if got := wordFromVolts(tc.volts); got != tc.word {
				t.Errorf("Expected word %d, got %d", tc.word, got)
			}
		})
	}
}

func TestWordEncodingClamps(t *testing.T) {
	testCases := []struct {
		name     string
		word     uint16
		expected uint16
	}{
		{"below range", wordFromVolts(-1.0), 0},
		{"above range", wordFromVolts(6.0), converter},
		{"current below range", wordFromAmps(-0.3), 0},
		{"current above range", wordFromAmps(0.3), converter},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.word != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, tc.word)
			}
		})
	}
}

func TestDecodeSample(t *testing.T) {
	c.Convey("Given 4-byte sample records from the bulk endpoint", t, func() {
		c.Convey("When decoding an all-zeros record", func() {
			s := decodeSample([]byte{0x00, 0x00, 0x00, 0x00})
			c.So(s.Voltage, c.ShouldAlmostEqual, 0.0)
			c.So(s.Current, c.ShouldAlmostEqual, -0.2)
		})
		c.Convey("When decoding an all-ones record", func() {
			s := decodeSample([]byte{0xff, 0xff, 0xff, 0xff})
			c.So(s.Voltage, c.ShouldAlmostEqual, 5.0)
			c.So(s.Current, c.ShouldAlmostEqual, 0.2)
		})
		c.Convey("When decoding a mixed record", func() {
			// Voltage word 0x8000, current word 0x0000.
			s := decodeSample([]byte{0x00, 0x80, 0x00, 0x00})
			c.So(s.Voltage, c.ShouldAlmostEqual, 2.500038148, 1e-6)
			c.So(s.Current, c.ShouldAlmostEqual, -0.2)
		})
	})
}

func TestPackCaptureData(t *testing.T) {
	testCases := []struct {
		count    uint32
		expected []byte
	}{
		{0, []byte{0x00, 0x00, 0x00, 0x00}},
		{1, []byte{0x01, 0x00, 0x00, 0x00}},
		{0x12345678, []byte{0x78, 0x56, 0x34, 0x12}},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("count %d", tc.count), func(t *testing.T) {
			got := packCaptureData(tc.count)
			if len(got) != len(tc.expected) {
				t.Fatalf("Expected %d bytes, got %d", len(tc.expected), len(got))
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("Byte %d: expected %#x, got %#x",
						i, tc.expected[i], got[i])
				}
			}
		})
	}
}
