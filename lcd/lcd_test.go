package lcd

import "testing"

func TestResetBlanksDisplay(t *testing.T) {
	l := New()
	out := make([]uint32, ScreenWidth*ScreenHeight)
	l.Palette = [4]uint32{0x11223344, 0, 0, 0}
	l.Render(out)
	for i, px := range out {
		if px != 0x11223344 {
			t.Fatalf("out[%d] = %#08x, want palette[0] while blanked", i, px)
		}
	}
}

func TestVRAMWriteReadRoundTrip(t *testing.T) {
	l := New()
	l.Write(0x5004, 0x00) // setPositionX: plane 0, low 5 bits 0
	l.Write(0x5005, 0x00) // setPositionY: high bits 0
	l.Write(0x5007, 0xAB)
	l.Write(0x5004, 0x00)
	l.Write(0x5005, 0x00)
	if v := l.Read(0x5007); v != 0xAB {
		t.Fatalf("Read after Write = %#02x, want 0xAB", v)
	}
}

func TestVRAMAddressAutoIncrements(t *testing.T) {
	l := New()
	l.Write(0x5004, 0x00)
	l.Write(0x5005, 0x00)
	l.Write(0x5007, 0x01)
	l.Write(0x5007, 0x02)
	l.Write(0x5004, 0x00)
	l.Write(0x5005, 0x00)
	if v := l.Read(0x5007); v != 0x01 {
		t.Fatalf("first byte = %#02x, want 0x01", v)
	}
	if v := l.Read(0x5007); v != 0x02 {
		t.Fatalf("second byte = %#02x, want 0x02", v)
	}
}

func TestVerticalIncrementMode(t *testing.T) {
	l := New()
	l.Write(0x5001, ctrlIncrementVertical)
	l.Write(0x5004, 0x00)
	l.Write(0x5005, 0x00)
	start := l.vramAddress
	l.Write(0x5007, 0x01)
	if l.vramAddress != (start+0x20)&vramMask {
		t.Fatalf("vramAddress = %#04x, want %#04x (vertical +0x20)", l.vramAddress, (start+0x20)&vramMask)
	}
}

func TestPlaneSelectBit(t *testing.T) {
	l := New()
	l.Write(0x5004, 0x80) // select plane 1
	l.Write(0x5005, 0x00)
	l.Write(0x5007, 0x5A)
	l.Write(0x5004, 0x00) // select plane 0
	l.Write(0x5005, 0x00)
	l.Write(0x5007, 0x00)
	if l.plane[1][0] != 0x5A {
		t.Fatalf("plane[1][0] = %#02x, want 0x5A", l.plane[1][0])
	}
	if l.plane[0][0] != 0x00 {
		t.Fatalf("plane[0][0] = %#02x, want 0x00", l.plane[0][0])
	}
}

func TestResetClearsVRAM(t *testing.T) {
	l := New()
	l.Write(0x5004, 0x00)
	l.Write(0x5005, 0x00)
	l.Write(0x5007, 0xFF)
	l.Reset()
	if l.plane[0][0] != 0 {
		t.Fatalf("plane[0][0] = %#02x after Reset, want 0", l.plane[0][0])
	}
	if !l.displayBlank {
		t.Fatalf("displayBlank = false after Reset, want true")
	}
}

func TestSwapBitPlanesReordersBits(t *testing.T) {
	l := New()
	l.plane[0][0] = 0x80 // bit 7 set in plane 0 (low bit of pixel)
	l.plane[1][0] = 0x00
	l.swapBitPlanes = false
	if got := l.pixel(0, 0); got != 1 {
		t.Fatalf("pixel without swap = %d, want 1", got)
	}
	l.swapBitPlanes = true
	if got := l.pixel(0, 0); got != 2 {
		t.Fatalf("pixel with swap = %d, want 2", got)
	}
}

func TestTranslateNormalScanline(t *testing.T) {
	l := New()
	l.yScroll = 0x10
	l.xScroll = 0x05
	x0, y0 := l.translate(0)
	if x0 != 5 || y0 != 0x10 {
		t.Fatalf("translate(0) = (%d, %d), want (5, 16)", x0, y0)
	}
}

func TestTranslateWindowMode(t *testing.T) {
	l := New()
	l.yScroll = 0x10
	l.windowMode = true
	x0, y0 := l.translate(3)
	if x0 != 0 || y0 != 0xD3 {
		t.Fatalf("translate(3) in window mode = (%d, %d), want (0, 0xD3)", x0, y0)
	}
	// Past the 16-line window the normal scroll path applies.
	x0, y0 = l.translate(0x10)
	if x0 != 0 || y0 != 0x20 {
		t.Fatalf("translate(0x10) = (%d, %d), want (0, 0x20)", x0, y0)
	}
}

func TestTranslateScrollWrapsAtScreenBottom(t *testing.T) {
	l := New()
	l.yScroll = 0xC0
	x0, y0 := l.translate(0x10)
	if y0 != 0x08 {
		t.Fatalf("translate(0x10) with yScroll=0xC0 = (%d, %d), want y0 0x08 (wrapped at 0xC8)", x0, y0)
	}
}

func TestTranslateHighYScroll(t *testing.T) {
	l := New()
	l.xScroll = 0x22

	// Bit 3 set: every line reads row 0.
	l.yScroll = 0xC8
	x0, y0 := l.translate(0x40)
	if x0 != 0x22 || y0 != 0 {
		t.Fatalf("translate(0x40) with yScroll=0xC8 = (%d, %d), want (0x22, 0)", x0, y0)
	}

	// Bit 3 clear: the low bits pin the first lines to the fixed rows.
	l.yScroll = 0xD3 // fixed = 3
	x0, y0 = l.translate(2)
	if x0 != 0 || y0 != 0xF8+2+4 {
		t.Fatalf("translate(2) with yScroll=0xD3 = (%d, %d), want (0, %d)", x0, y0, 0xF8+2+4)
	}
	x0, y0 = l.translate(4)
	if x0 != 0x22 || y0 != 4 {
		t.Fatalf("translate(4) with yScroll=0xD3 = (%d, %d), want (0x22, 4)", x0, y0)
	}
}
