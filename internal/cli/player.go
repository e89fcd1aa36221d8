package cli

import (
	"context"
	"fmt"
	"image"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"

	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
	"github.com/pixeldrift/spriteforge/pkg/sprite"
)

// defaultViewWidth is the frame width in terminal cells before the
// first WindowSizeMsg arrives.
const defaultViewWidth = 48

// playSheet runs the terminal playback surface until the user quits.
// The player's timer is released on every exit path.
func playSheet(ctx context.Context, sheet *sprite.Sheet, fps float64, title string) error {
	player := sprite.NewPlayer(fps)
	player.Load(sheet.Geom, sheet.Grid.Columns, sheet.Frames)
	defer player.Close()

	m := newPlayerModel(player, sheet, title)
	// A fresh load leaves the clock stopped; start playback explicitly.
	player.Play()

	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// offsetMsg carries the player's render offset into the update loop.
type offsetMsg sprite.Offset

// playerModel is the bubbletea model for sheet playback. It holds no
// playback state of its own beyond the rendered view; the player owns
// the clock, and the model reacts to the offsets it publishes.
type playerModel struct {
	player *sprite.Player
	sheet  *sprite.Sheet
	title  string

	frames []string // ANSI-rendered frames at the current view size
	frame  int
	err    error
}

func newPlayerModel(player *sprite.Player, sheet *sprite.Sheet, title string) playerModel {
	m := playerModel{
		player: player,
		sheet:  sheet,
		title:  title,
	}
	m.renderFrames(defaultViewWidth)
	return m
}

// waitForOffset blocks on the player's offset channel and feeds the
// next value into Update. Re-armed after every received message.
func waitForOffset(ch <-chan sprite.Offset) tea.Cmd {
	return func() tea.Msg {
		off, ok := <-ch
		if !ok {
			return nil
		}
		return offsetMsg(off)
	}
}

func (m playerModel) Init() tea.Cmd {
	return waitForOffset(m.player.Offsets())
}

func (m playerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.player.Close()
			return m, tea.Quit
		case " ":
			m.player.Toggle()
		case "+", "=":
			m.player.SetFPS(min(m.player.FPS()+1, sferrors.MaxFPS))
		case "-":
			m.player.SetFPS(max(m.player.FPS()-1, sferrors.MinFPS))
		case "r":
			// Reload resets to frame 0 stopped; resume immediately so
			// the restart feels like one action.
			m.player.Load(m.sheet.Geom, m.sheet.Grid.Columns, m.sheet.Frames)
			m.player.Play()
			m.frame = 0
		}

	case offsetMsg:
		m.frame = m.player.Frame()
		return m, waitForOffset(m.player.Offsets())

	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > defaultViewWidth*2 {
			width = defaultViewWidth * 2
		}
		if width < 8 {
			width = 8
		}
		m.renderFrames(width)
	}

	return m, nil
}

func (m playerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.title))
	b.WriteString("\n\n")

	if m.frame < len(m.frames) {
		b.WriteString(m.frames[m.frame])
	}

	state := "▶ playing"
	if !m.player.Running() {
		state = "⏸ paused"
	}

	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("frame %d/%d · %g fps · %s",
		m.frame+1, m.sheet.Frames, m.player.FPS(), state)))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("space play/pause · +/- speed · r restart · q quit"))

	return b.String()
}

// renderFrames pre-renders every frame of the sheet as ANSI half-block
// art at the given cell width. Done once per resize, not per tick.
func (m *playerModel) renderFrames(cellWidth int) {
	frames := make([]string, 0, m.sheet.Frames)
	for i := 0; i < m.sheet.Frames; i++ {
		img, err := m.sheet.Frame(i)
		if err != nil {
			m.err = err
			return
		}
		frames = append(frames, renderHalfBlocks(img, cellWidth))
	}
	m.frames = frames
}

// renderHalfBlocks downscales a frame and draws it with "▀" cells,
// packing two pixel rows into each terminal row.
func renderHalfBlocks(img image.Image, cellWidth int) string {
	// Nearest neighbor keeps pixel-art edges crisp.
	small := imaging.Resize(img, cellWidth, 0, imaging.NearestNeighbor)
	b := small.Bounds()

	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexAt(small, x, y))).
				Background(lipgloss.Color(hexAt(small, x, y+1)))
			sb.WriteString(style.Render("▀"))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// hexAt returns the pixel at (x, y) as a hex color, treating
// out-of-bounds rows (odd-height frames) as black.
func hexAt(img image.Image, x, y int) string {
	if y >= img.Bounds().Max.Y {
		return "#000000"
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return fmt.Sprintf("#%02x%02x%02x", uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
