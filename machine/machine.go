// Package machine owns the Cpu, Bus and Lcd, drives the per-frame CPU
// bursts and scanout, and exposes the host-facing API: loading
// images, resetting, latching buttons, and running a frame.
package machine

import (
	"github.com/sirupsen/logrus"

	"github.com/nrich/megata/bus"
	"github.com/nrich/megata/cpu"
	"github.com/nrich/megata/lcd"
)

// Burst periods for the three Cpu.Run calls a frame is made of, with
// an IRQ raised after each of the first two. 32768 cycles is half a frame
// at the guest clock; the 7364/32768-7364 split places the second
// interrupt inside the back half.
const (
	periodA int32 = 32768
	periodB int32 = 7364
	periodC int32 = periodA - periodB
)

// Result is what RunFrame hands back to the host.
type Result int

const (
	Presented Result = iota
	Quit
)

// FrameResult carries the outcome of a RunFrame call. Pixels is only
// valid when Status == Presented.
type FrameResult struct {
	Status Result
	Pixels []uint32
}

// Machine wires a Cpu, Bus and Lcd together and drives them through
// one frame at a time. It is not safe for concurrent use: the host
// must not call any method while a previous RunFrame is still
// running.
type Machine struct {
	cpu *cpu.CPU
	bus *bus.Bus
	lcd *lcd.Lcd

	paused bool
	pixels []uint32

	log logrus.FieldLogger

	quit bool
}

// audioForward adapts an optional host AudioSink so Machine can pass
// a non-nil value to bus.New even when the host doesn't care about
// audio register writes.
type audioForward struct {
	sink bus.AudioSink
}

func (a audioForward) OnAudioRegWrite(reg, value uint8) {
	if a.sink != nil {
		a.sink.OnAudioRegWrite(reg, value)
	}
}

// New creates a Machine. audio may be nil if the host does not care
// about forwarded audio register writes. log may be nil to use
// logrus's standard logger.
func New(audio bus.AudioSink, log logrus.FieldLogger) *Machine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := lcd.New()
	b := bus.New(l, audioForward{audio}, log)
	m := &Machine{
		bus:    b,
		lcd:    l,
		pixels: make([]uint32, lcd.ScreenWidth*lcd.ScreenHeight),
		log:    log,
	}
	m.cpu = cpu.New(b, m)
	return m
}

// Tick implements cpu.Ticker: called whenever a burst's cycle budget
// is exhausted outside the late-service quirk. The Machine-driven
// frame loop always wants the burst to end here, so Tick always asks
// the Cpu to return to RunFrame.
func (m *Machine) Tick() cpu.Request {
	return cpu.ReqQuit
}

// LoadRom installs a cartridge image (up to 512 KiB).
func (m *Machine) LoadRom(data []byte) error {
	return m.bus.LoadRom(data)
}

// LoadBios installs the 4 KiB BIOS image.
func (m *Machine) LoadBios(data []byte) error {
	return m.bus.LoadBios(data)
}

// Reset performs the full power-on/reset sequence across Cpu, Bus
// and Lcd; idempotent when called repeatedly.
func (m *Machine) Reset(paused bool) {
	m.bus.Reset()
	m.lcd.Reset()
	m.cpu.SetPeriod(periodA)
	m.cpu.Reset()
	m.paused = paused
	m.quit = false
}

// SetButtons stores the active-low button bitmap (bit 0 up, 1 down,
// 2 left, 3 right, 4 A, 5 B, 6 start, 7 select; idle = 0xFF).
func (m *Machine) SetButtons(mask uint8) {
	m.bus.SetButtons(mask)
}

// SetPalette installs the four colours RunFrame's composited
// pixel buffer will be expressed in.
func (m *Machine) SetPalette(p [4]uint32) {
	m.lcd.Palette = p
}

// RunFrame advances the simulation by one frame: three Cpu.Run
// bursts with an IRQ raised after each of the first two, then asks
// the Lcd to composite the scanout. Each SetPeriod call sits after
// the Run it follows, so a period takes effect one burst late: Run
// reloads count from period at exhaustion, just before it returns.
// The sequence carries across frame boundaries without a reset.
func (m *Machine) RunFrame() FrameResult {
	if m.quit {
		return FrameResult{Status: Quit}
	}

	if m.paused {
		m.lcd.Render(m.pixels)
		return FrameResult{Status: Presented, Pixels: m.pixels}
	}

	m.cpu.Run()
	m.cpu.Interrupt(cpu.ReqIRQ)
	m.cpu.SetPeriod(periodA)

	m.cpu.Run()
	m.cpu.Interrupt(cpu.ReqIRQ)
	m.cpu.SetPeriod(periodB)

	m.cpu.Run()
	m.cpu.SetPeriod(periodC)

	m.lcd.Render(m.pixels)
	return FrameResult{Status: Presented, Pixels: m.pixels}
}

// SetPaused toggles whether RunFrame advances the Cpu at all; a
// paused Machine still composites and returns the last frame.
func (m *Machine) SetPaused(p bool) {
	m.paused = p
}

// RequestQuit makes every subsequent RunFrame call return
// immediately with Status == Quit, the cooperative exit a host (e.g.
// on window close) uses to stop driving the Machine.
func (m *Machine) RequestQuit() {
	m.quit = true
}

// Bus exposes the underlying Bus for diagnostics (e.g. MissCount in
// tests).
func (m *Machine) Bus() *bus.Bus { return m.bus }
