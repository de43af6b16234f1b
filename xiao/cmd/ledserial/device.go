package main

import (
	"fmt"
	"machine"

	"libdb.so/neopixel"
	"libdb.so/neopixel/ledserial"
	"libdb.so/neopixel/xiao"
)

const (
	// spinLoopCycles is the cost of one xiao.Clock spin iteration on the
	// RP2040.
	spinLoopCycles = 3
	// edgeOverhead is the cost of a pin transition in CPU cycles.
	edgeOverhead = 6
)

// Firmware stores the current state of the firmware.
type Firmware struct {
	serial *xiao.Port
	dev    *neopixel.Device
}

// NewFirmware creates a new firmware reading packets from serial and
// driving the strip on ledPin.
func NewFirmware(serial machine.Serialer, ledPin machine.Pin) *Firmware {
	return &Firmware{
		serial: xiao.NewPort(serial),
		dev: neopixel.NewDevice(xiao.Line(ledPin), &neopixel.DeviceOpts{
			Clock:        xiao.NewClock(spinLoopCycles),
			Exclusive:    xiao.Exclusive,
			EdgeOverhead: edgeOverhead,
		}),
	}
}

// Run runs the firmware loop forever.
func (f *Firmware) Run() {
	for {
		p, err := f.readPacket()
		if err != nil {
			f.logError(err)
			continue
		}

		reply, err := f.dev.Handle(p)
		if err != nil {
			f.logError(err)
			continue
		}

		if p.Type() == ledserial.TypeInitializePacket {
			strip := f.dev.Strip()
			f.log(fmt.Sprintf("initialized %d LEDs as %s", strip.NumPixels(), strip.Profile()))
		}

		f.sendPacket(reply)
	}
}

func (f *Firmware) log(msg string) {
	f.sendPacket(ledserial.LogPacket{Message: msg})
}

func (f *Firmware) logError(err error) {
	f.sendPacket(ledserial.ErrorPacket{Message: err.Error()})
}

func (f *Firmware) sendPacket(p ledserial.OutgoingPacket) {
	ledserial.WriteOutgoingPacket(f.serial, p)
}

func (f *Firmware) readPacket() (ledserial.IncomingPacket, error) {
	turnOnMainLED(255, 255, 255)

	p, err := ledserial.ReadIncomingPacket(f.serial, f.dev.ReadContext())

	turnOffMainLED()
	return p, err
}
