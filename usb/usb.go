// Copyright (c) 2024 The m1k developers. All rights reserved.
// Project site: https://github.com/gotmc/m1k
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package usb implements the m1k transport over libusb for ADALM1000-class
// instruments. Each device exposes two source/measure channels, and every
// channel reports a voltage and a current signal.
package usb

import (
	"bytes"
	"fmt"
	"log"
	"sync"

	"github.com/gotmc/libusb"

	"github.com/gotmc/m1k"
)

const (
	vendorID       = 0x0456
	productID      = 0xcee2
	defaultTimeout = 2000
)

// channelsPerDevice and signalNames describe the fixed channel topology of
// the instrument family.
const channelsPerDevice = 2

var signalNames = []string{"voltage", "current"}

// device holds the libusb state for one open instrument.
type device struct {
	device           *libusb.Device
	deviceDescriptor *libusb.DeviceDescriptor
	handle           *libusb.DeviceHandle
	configDescriptor *libusb.ConfigDescriptor
	bulkIn           *libusb.EndpointDescriptor
	bulkOut          *libusb.EndpointDescriptor
}

// Transport is the production m1k.Transport backed by libusb. The libusb
// handles are process-wide shared state, so all control and bulk transfers
// are serialized on an internal mutex.
type Transport struct {
	Timeout int

	mu      sync.Mutex
	ctx     *libusb.Context
	devices map[string]*device
}

// New returns an unopened transport with the default timeout. Pass it to
// m1k.Open, which calls Setup and Discover.
func New() *Transport {
	return &Transport{
		Timeout: defaultTimeout,
		devices: make(map[string]*device),
	}
}

// Setup initializes the libusb context.
func (t *Transport) Setup() error {
	ctx, err := libusb.NewContext()
	if err != nil {
		return fmt.Errorf("error creating USB context: %s", err)
	}
	t.ctx = ctx
	return nil
}

// Cleanup closes every open device handle and tears down the libusb
// context.
func (t *Transport) Cleanup() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for serial, dev := range t.devices {
		if err := dev.handle.ReleaseInterface(0); err != nil {
			log.Printf("Error releasing interface of %s: %s", serial, err)
		}
		dev.handle.Close()
		delete(t.devices, serial)
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}

// Discover walks the USB bus and opens every attached instrument, returning
// them in bus order.
func (t *Transport) Discover() ([]m1k.DeviceInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	usbDevices, err := t.ctx.GetDeviceList()
	if err != nil {
		return nil, fmt.Errorf("error getting USB device list: %s", err)
	}
	var infos []m1k.DeviceInfo
	for _, usbDevice := range usbDevices {
		usbDeviceDescriptor, err := usbDevice.GetDeviceDescriptor()
		if err != nil {
			return nil, fmt.Errorf("error getting device descriptor: %s", err)
		}
		if usbDeviceDescriptor.VendorID != vendorID ||
			usbDeviceDescriptor.ProductID != productID {
			continue
		}
		dev, serial, err := open(usbDevice, usbDeviceDescriptor)
		if err != nil {
			return nil, err
		}
		t.devices[serial] = dev
		channels := make([][]string, channelsPerDevice)
		for i := range channels {
			channels[i] = signalNames
		}
		infos = append(infos, m1k.DeviceInfo{Serial: serial, Channels: channels})
	}
	return infos, nil
}

func open(usbDevice *libusb.Device, desc *libusb.DeviceDescriptor) (*device, string, error) {
	handle, err := usbDevice.Open()
	if err != nil {
		return nil, "", fmt.Errorf("error getting device handle: %s", err)
	}
	serial, err := handle.GetStringDescriptorASCII(desc.SerialNumberIndex)
	if err != nil {
		handle.Close()
		return nil, "", fmt.Errorf("error reading S/N: %s", err)
	}
	if err = handle.ClaimInterface(0); err != nil {
		handle.Close()
		return nil, "", fmt.Errorf("error claiming the bulk interface of %s: %s",
			serial, err)
	}
	dev := &device{
		device:           usbDevice,
		deviceDescriptor: desc,
		handle:           handle,
	}
	configDescriptor, err := usbDevice.GetActiveConfigDescriptor()
	if err != nil {
		handle.Close()
		return nil, "", fmt.Errorf("error getting active config descriptor: %s", err)
	}
	dev.configDescriptor = configDescriptor
	firstDescriptor := configDescriptor.SupportedInterfaces[0].InterfaceDescriptors[0]
	for _, endpoint := range firstDescriptor.EndpointDescriptors {
		if byte(endpoint.EndpointAddress)&directionIn != 0 {
			dev.bulkIn = endpoint
		} else {
			dev.bulkOut = endpoint
		}
	}
	if dev.bulkIn == nil || dev.bulkOut == nil {
		handle.Close()
		return nil, "", fmt.Errorf("device %s is missing a bulk endpoint", serial)
	}
	return dev, serial, nil
}

// directionIn is bit 7 of both bmRequestType and endpoint addresses.
const directionIn = 0x80

func (t *Transport) lookup(serial string) (*device, error) {
	dev, ok := t.devices[serial]
	if !ok {
		return nil, fmt.Errorf("no device with serial %s", serial)
	}
	return dev, nil
}

// padPayload substitutes a 1-byte zero buffer for a nil or empty payload.
// libusb always dereferences the payload's first byte, so an empty one
// cannot be handed to it directly.
func padPayload(data []byte) []byte {
	if len(data) == 0 {
		return []byte{0}
	}
	return data
}

// sendCommand issues a vendor control write to the device.
func (t *Transport) sendCommand(dev *device, cmd command, value, index uint16,
	data []byte) (int, error) {
	data = padPayload(data)
	requestType := libusb.BitmapRequestType(
		libusb.HostToDevice, libusb.Vendor, libusb.DeviceRecipient)
	count, err := dev.handle.ControlTransfer(
		requestType, byte(cmd), value, index, data, len(data), t.Timeout)
	if err != nil {
		return count, fmt.Errorf("error sending command '%s': %s", cmd, err)
	}
	return count, nil
}

// readCommand issues a vendor control read, filling data.
func (t *Transport) readCommand(dev *device, cmd command, value, index uint16,
	data []byte) (int, error) {
	requestType := libusb.BitmapRequestType(
		libusb.DeviceToHost, libusb.Vendor, libusb.DeviceRecipient)
	count, err := dev.handle.ControlTransfer(
		requestType, byte(cmd), value, index, data, len(data), t.Timeout)
	if err != nil {
		return count, fmt.Errorf("error reading command '%s': %s", cmd, err)
	}
	return count, nil
}

// FirmwareVersion reads the device's firmware revision string.
func (t *Transport) FirmwareVersion(serial string) (string, error) {
	return t.version(serial, commandFirmwareVersion)
}

// HardwareVersion reads the device's hardware revision string.
func (t *Transport) HardwareVersion(serial string) (string, error) {
	return t.version(serial, commandHardwareVersion)
}

func (t *Transport) version(serial string, cmd command) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return "", err
	}
	data := make([]byte, 32)
	if _, err := t.readCommand(dev, cmd, 0x0, 0x0, data); err != nil {
		return "", err
	}
	return trimVersion(data), nil
}

// trimVersion strips the NUL padding from a fixed-size version buffer.
func trimVersion(data []byte) string {
	if i := bytes.IndexByte(data, 0x00); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

// SetChannelMode writes a channel's operating mode to the device.
func (t *Transport) SetChannelMode(serial string, channel, mode int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return err
	}
	_, err = t.sendCommand(dev, commandSetMode,
		uint16(channel), uint16(mode), nil)
	return err
}

// Fields of a raw bmRequestType byte: bit 7 is the direction, bits 5:6 the
// request type, and bits 0:4 the recipient.
const (
	requestTypeShift = 5
	requestTypeMask  = 0x3
	recipientMask    = 0x1f
)

// requestTypeFields splits a raw bmRequestType byte into its direction,
// type, and recipient field values.
func requestTypeFields(requestType byte) (in bool, reqType, recipient byte) {
	in = requestType&directionIn != 0
	reqType = (requestType >> requestTypeShift) & requestTypeMask
	recipient = requestType & recipientMask
	return in, reqType, recipient
}

// ControlTransfer performs a raw control transfer against the device. The
// caller supplies the full bmRequestType as a byte; it is split into its
// fields and rebuilt through libusb's typed constructor. Unlike sendCommand
// and readCommand, nothing else about the request is inferred here.
func (t *Transport) ControlTransfer(serial string, requestType, request byte,
	value, index uint16, data []byte, length, timeout int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dev, err := t.lookup(serial)
	if err != nil {
		return 0, err
	}
	in, reqTypeBits, recipientBits := requestTypeFields(requestType)
	direction := libusb.HostToDevice
	if in {
		direction = libusb.DeviceToHost
	}
	reqType := libusb.Standard
	switch reqTypeBits {
	case 1:
		reqType = libusb.Class
	case 2:
		reqType = libusb.Vendor
	case 3:
		reqType = libusb.Reserved
	}
	recipient := libusb.DeviceRecipient
	switch recipientBits {
	case 1:
		recipient = libusb.InterfaceRecipient
	case 2:
		recipient = libusb.EndpointRecipient
	case 3:
		recipient = libusb.OtherRecipient
	}
	return dev.handle.ControlTransfer(
		libusb.BitmapRequestType(direction, reqType, recipient),
		request, value, index, padPayload(data), length, timeout)
}
