// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package m1k

import "errors"

// Error kinds reported by this package. Operations wrap these sentinels, so
// callers should test with errors.Is rather than comparing directly.
var (
	// ErrTransportUnavailable indicates the transport could not be set up
	// or device discovery failed. Fatal to session construction.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrDeviceUnreachable indicates a previously discovered device no
	// longer responds. Surfaced per call; other devices stay usable.
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrAcquisition indicates a batch or streaming read failed before
	// completing. Samples collected before the failure are discarded.
	ErrAcquisition = errors.New("sample acquisition failed")

	// ErrInvalidMode indicates an unrecognized mode token. Detected
	// locally; the transport is never called.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrModeNotSet indicates an output operation was attempted on a
	// channel whose mode has never been set.
	ErrModeNotSet = errors.New("channel mode not set")

	// ErrCapacityExceeded indicates discovery found more channels than
	// the letter naming scheme supports.
	ErrCapacityExceeded = errors.New("channel capacity exceeded")
)
