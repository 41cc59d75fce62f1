// Package bus implements the memory-mapped address decode between
// the Cpu and RAM, the LCD controller, audio registers, the button
// latch, bank-switched cartridge ROM and BIOS.
package bus

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	ramSize    = 1024
	ramMirrors = 0x2000 // $0000-$1FFF
	biosBase   = 0xE000
	bankWindow = 0x4000

	bank0Base   = 0x6000
	bank0End    = 0x9FFF
	bank0Select = 0x8000
	bank1Base   = 0xA000
	bank1End    = 0xDFFF
	bank1Select = 0xC000

	// BiosSize and RomMaxSize are the slot sizes of the BIOS and
	// cartridge windows; romimage.Load's maxSize callers use these
	// same values so an oversize image is rejected before it ever
	// reaches LoadRom/LoadBios.
	BiosSize   = 4096
	RomMaxSize = 524288
)

// Lcd is the subset of the LCD controller the bus dispatches
// $5000-$53FF reads and writes to.
type Lcd interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8)
}

// AudioSink receives forwarded writes to the audio register window
// ($4000-$43FF); the core never interprets them.
type AudioSink interface {
	OnAudioRegWrite(reg, value uint8)
}

// Bus decodes the full 16-bit address space.
type Bus struct {
	ram  [ramSize]uint8
	bios [BiosSize]uint8
	rom  []uint8

	bank0Offset uint32
	bank1Offset uint32

	buttonState uint8 // active-low
	protection  int32

	lcd   Lcd
	audio AudioSink
	log   logrus.FieldLogger

	// MissCount counts reads/writes to addresses this decode
	// table does not cover. The table is exhaustive over
	// 0x0000-0xFFFF, so this should stay 0 in normal operation;
	// it exists to catch a decode-table bug.
	MissCount uint64
}

// New creates a Bus with no ROM image installed; the cartridge
// windows read 0xFF until LoadRom installs cartridge data.
func New(lcd Lcd, audio AudioSink, log logrus.FieldLogger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	b := &Bus{lcd: lcd, audio: audio, log: log}
	b.Reset()
	return b
}

// Reset restores power-on bus state: RAM filled with 0xFF, bank
// offsets at their defaults, button state idle, protection sequence
// primed. It does not clear the loaded ROM/BIOS images.
func (b *Bus) Reset() {
	for i := range b.ram {
		b.ram[i] = 0xFF
	}
	b.bank0Offset = 0
	b.bank1Offset = bankWindow
	b.buttonState = 0xFF
	b.protection = 8
	b.MissCount = 0
}

// LoadRom installs a cartridge image. Images over 512 KiB are a
// configuration error; the bus keeps its previous image.
func (b *Bus) LoadRom(data []byte) error {
	if len(data) > RomMaxSize {
		return &ConfigError{What: "rom", Size: len(data), Max: RomMaxSize}
	}
	b.rom = make([]byte, len(data))
	copy(b.rom, data)
	return nil
}

// LoadBios installs the 4 KiB BIOS image. Images over 4 KiB are a
// configuration error; the bus keeps its previous image.
func (b *Bus) LoadBios(data []byte) error {
	if len(data) > BiosSize {
		return &ConfigError{What: "bios", Size: len(data), Max: BiosSize}
	}
	var fresh [BiosSize]uint8
	copy(fresh[:], data)
	b.bios = fresh
	return nil
}

// SetButtons stores the active-low button bitmap the $4400-$47FF
// window returns on read.
func (b *Bus) SetButtons(mask uint8) {
	b.buttonState = mask
}

// ConfigError reports a ROM/BIOS image that exceeds its slot size.
type ConfigError struct {
	What string
	Size int
	Max  int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s image too large: %d bytes (max %d)", e.What, e.Size, e.Max)
}

// Read implements cpu.Bus.
func (b *Bus) Read(addr uint16) uint8 {
	switch {
	case addr < ramMirrors:
		return b.ram[addr%ramSize]
	case addr < 0x4000:
		return 0xFF
	case addr < 0x4400:
		return 0xFF
	case addr < 0x4800:
		return b.buttonState
	case addr < 0x4C00:
		return 0x00
	case addr < 0x5000:
		return 0xFF
	case addr < 0x5400:
		return b.lcd.Read(addr)
	case addr < 0x5800:
		return 0xFF
	case addr < 0x5900:
		return 0xFF
	case addr < 0x5A00:
		return 0xFF
	case addr < 0x6000:
		return 0x5B
	case addr <= bank0End:
		return b.readBank0(addr)
	case addr <= bank1End:
		return b.readBank1(addr)
	case addr >= biosBase:
		return b.bios[addr&0x0FFF]
	default:
		b.MissCount++
		b.log.WithField("addr", addr).Warn("bus: unmapped read")
		return 0xFF
	}
}

// Write implements cpu.Bus.
func (b *Bus) Write(addr uint16, val uint8) {
	switch {
	case addr < ramMirrors:
		b.ram[addr%ramSize] = val
	case addr < 0x4000:
		// ignored
	case addr < 0x4400:
		if b.audio != nil {
			b.audio.OnAudioRegWrite(uint8(addr&0x0F), val)
		}
	case addr < 0x5000:
		// ignored ($4400-$4FFF write side)
	case addr < 0x5400:
		b.lcd.Write(addr, val)
	case addr < 0x6000:
		// ignored ($5400-$5FFF)
	case addr == bank0Select:
		b.bank0Offset = b.maskBankOffset(val)
	case addr <= bank0End:
		// ignored ($6000-$9FFF writes other than the latch)
	case addr == bank1Select:
		b.bank1Offset = b.maskBankOffset(val)
	case addr <= bank1End:
		// ignored ($A000-$DFFF writes other than the latch)
	case addr >= biosBase:
		b.bios[addr&0x0FFF] = val
	default:
		b.MissCount++
		b.log.WithField("addr", addr).Warn("bus: unmapped write")
	}
}

func (b *Bus) maskBankOffset(val uint8) uint32 {
	offset := uint32(val) * bankWindow
	if len(b.rom) == 0 {
		return 0
	}
	return offset % uint32(len(b.rom))
}

// readBank0 serves $6000-$9FFF: the boot-time protection sequence
// while armed, otherwise the bank0 ROM window.
func (b *Bus) readBank0(addr uint16) uint8 {
	if b.protection > 0 {
		b.protection--
		return ((0x47 >> uint(b.protection)) & 1) << 1
	}
	return b.romByte(b.bank0Offset + uint32(addr-bank0Base))
}

func (b *Bus) readBank1(addr uint16) uint8 {
	return b.romByte(b.bank1Offset + uint32(addr-bank1Base))
}

func (b *Bus) romByte(offset uint32) uint8 {
	if int(offset) >= len(b.rom) {
		return 0xFF
	}
	return b.rom[offset]
}
