// Command ledserial is the firmware of a Seeed XIAO RP2040 driving a strip
// on D0 as told by a neopixel daemon over USB serial.
package main

import "machine"

func main() {
	NewFirmware(machine.Serial, machine.D0).Run()
}
