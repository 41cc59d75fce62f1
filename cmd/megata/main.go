// Command megata is the host program for the emulation core: it
// parses CLI flags, loads cartridge/BIOS images, opens an ebiten
// window and drives Machine.RunFrame once per Update, forwarding
// audio register writes to an oto-backed sink and button state from
// the keyboard.
package main

import (
	"fmt"
	"image"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/nrich/megata/bus"
	"github.com/nrich/megata/lcd"
	"github.com/nrich/megata/machine"
	"github.com/nrich/megata/romimage"
)

var (
	logger = logrus.New()

	romPath   string
	biosPath  string
	scale     int
	paletteIn string
)

func main() {
	root := &cobra.Command{
		Use:   "megata",
		Short: "A handheld console emulation core",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Load a ROM and BIOS image and run them",
		RunE:  runMachine,
	}
	run.Flags().StringVar(&romPath, "rom", "", "path to the cartridge image (raw .bin or .zip)")
	run.Flags().StringVar(&biosPath, "bios", "", "path to the BIOS image (raw .bin or .zip)")
	run.Flags().IntVar(&scale, "scale", 3, "integer upscale factor for the display window")
	run.Flags().StringVar(&paletteIn, "palette", "", "four comma-separated 0xAARRGGBB colours, darkest first")
	run.MarkFlagRequired("rom")
	run.MarkFlagRequired("bios")

	root.AddCommand(run)

	if err := root.Execute(); err != nil {
		logger.WithError(err).Fatal("megata: fatal error")
	}
}

func runMachine(cmd *cobra.Command, args []string) error {
	romData, err := romimage.Load(romPath, bus.RomMaxSize)
	if err != nil {
		return fmt.Errorf("loading rom: %w", err)
	}
	biosData, err := romimage.Load(biosPath, bus.BiosSize)
	if err != nil {
		return fmt.Errorf("loading bios: %w", err)
	}

	sink, err := newAudioSink(logger)
	if err != nil {
		return fmt.Errorf("opening audio sink: %w", err)
	}

	m := machine.New(sink, logger)
	if err := m.LoadRom(romData); err != nil {
		return fmt.Errorf("installing rom: %w", err)
	}
	if err := m.LoadBios(biosData); err != nil {
		return fmt.Errorf("installing bios: %w", err)
	}
	m.SetPalette(parsePalette(paletteIn, logger))
	m.Reset(false)

	g := &game{
		m:     m,
		scale: scale,
		src:   image.NewRGBA(image.Rect(0, 0, lcd.ScreenWidth, lcd.ScreenHeight)),
	}

	ebiten.SetWindowSize(lcd.ScreenWidth*scale, lcd.ScreenHeight*scale)
	ebiten.SetWindowTitle("megata")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	return ebiten.RunGame(g)
}

func parsePalette(spec string, log logrus.FieldLogger) [4]uint32 {
	defaultPalette := [4]uint32{0xFF0F380F, 0xFF306230, 0xFF8BAC0F, 0xFF9BBC0F}
	if spec == "" {
		return defaultPalette
	}
	var p [4]uint32
	n, err := fmt.Sscanf(spec, "%v,%v,%v,%v", &p[0], &p[1], &p[2], &p[3])
	if err != nil || n != 4 {
		log.WithError(err).Warn("megata: couldn't parse --palette, using default")
		return defaultPalette
	}
	return p
}

// keys maps ebiten keys to this system's 8 buttons: bit 0 up, 1
// down, 2 left, 3 right, 4 A, 5 B, 6 start, 7 select.
var keys = []ebiten.Key{
	ebiten.KeyUp,
	ebiten.KeyDown,
	ebiten.KeyLeft,
	ebiten.KeyRight,
	ebiten.KeyZ,
	ebiten.KeyX,
	ebiten.KeyEnter,
	ebiten.KeySpace,
}

// game implements ebiten.Game: one goroutine owns the Machine,
// Update drives exactly one RunFrame per tick and Draw blits the
// last composited buffer.
type game struct {
	m      *machine.Machine
	scale  int
	pixels []uint32
	src    *image.RGBA
	dst    *image.RGBA
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return lcd.ScreenWidth * g.scale, lcd.ScreenHeight * g.scale
}

func (g *game) Update() error {
	if ebiten.IsWindowBeingClosed() {
		g.m.RequestQuit()
	}

	var buttons uint8 = 0xFF
	for i, k := range keys {
		if ebiten.IsKeyPressed(k) {
			buttons &^= 1 << uint(i)
		}
	}
	g.m.SetButtons(buttons)

	result := g.m.RunFrame()
	if result.Status == machine.Quit {
		return ebiten.Termination
	}
	g.pixels = result.Pixels
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.pixels == nil {
		return
	}
	for i, px := range g.pixels {
		o := i * 4
		g.src.Pix[o+0] = byte(px >> 16)
		g.src.Pix[o+1] = byte(px >> 8)
		g.src.Pix[o+2] = byte(px)
		g.src.Pix[o+3] = byte(px >> 24)
	}

	if g.dst == nil {
		g.dst = image.NewRGBA(image.Rect(0, 0, lcd.ScreenWidth*g.scale, lcd.ScreenHeight*g.scale))
	}
	draw.NearestNeighbor.Scale(g.dst, g.dst.Bounds(), g.src, g.src.Bounds(), draw.Over, nil)
	screen.WritePixels(g.dst.Pix)
}

// audioSink receives the core's audio register writes. It opens a
// real oto playback context so a PSG synthesiser can be attached
// later; for now register traffic is only logged.
type audioSink struct {
	ctx *oto.Context
	log logrus.FieldLogger
}

func newAudioSink(log logrus.FieldLogger) (*audioSink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   44100,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return &audioSink{ctx: ctx, log: log}, nil
}

func (a *audioSink) OnAudioRegWrite(reg, value uint8) {
	a.log.WithFields(logrus.Fields{"reg": reg, "value": value}).Debug("megata: audio register write")
}
