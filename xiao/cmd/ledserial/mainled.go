package main

import (
	"machine"

	"libdb.so/neopixel/pixel"
	"tinygo.org/x/drivers/ws2812"
)

// statusLED is the on-board WS2812 of the XIAO RP2040.
// https://wiki.seeedstudio.com/XIAO-RP2040-with-Arduino/
type statusLED struct {
	power  machine.Pin
	led    ws2812.Device
	buffer *pixel.Buffer
}

var mainLED *statusLED

func initMainLED() *statusLED {
	if mainLED == nil {
		power := machine.GPIO11
		power.Configure(machine.PinConfig{Mode: machine.PinOutput})
		power.Low()

		machine.GPIO12.Configure(machine.PinConfig{Mode: machine.PinOutput})

		mainLED = &statusLED{
			power:  power,
			led:    ws2812.New(machine.GPIO12),
			buffer: pixel.New(1, pixel.GRB),
		}
	}
	return mainLED
}

func turnOnMainLED(r, g, b uint8) {
	l := initMainLED()
	l.power.High()
	l.buffer.SetRGB(0, r, g, b)
	l.led.Write(l.buffer.Bytes())
}

func turnOffMainLED() {
	initMainLED().power.Low()
}
