// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package m1k

// directionIn is bit 7 of bmRequestType; set means device-to-host.
const directionIn = 0x80

// ctrlTransfer normalizes the direction-dependent argument encoding of raw
// control transfers. The two directions take deliberately separate paths:
//
// Read (bit 7 of requestType set): the caller-supplied data is ignored and a
// fresh buffer of the declared length sizes the native read. The buffer is
// returned along with the byte count, so the caller always gets exactly
// length bytes back. Forwarding the caller's buffer here would let its size
// desync from the declared read length.
//
// Write (bit 7 clear): data is sent verbatim and the wLength passed to the
// native call is forced to zero; the native layer infers the length from the
// payload itself. The transfer count is returned with a nil buffer.
func ctrlTransfer(t Transport, serial string, requestType, request byte,
	value, index uint16, data []byte, length, timeout int) ([]byte, int, error) {
	if requestType&directionIn != 0 {
		buf := make([]byte, length)
		_, err := t.ControlTransfer(serial, requestType, request,
			value, index, buf, length, timeout)
		if err != nil {
			return nil, 0, err
		}
		return buf, len(buf), nil
	}
	count, err := t.ControlTransfer(serial, requestType, request,
		value, index, data, 0, timeout)
	if err != nil {
		return nil, 0, err
	}
	return nil, count, nil
}
