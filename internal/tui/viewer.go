package tui

import (
	"fmt"
	"image"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"turntable/internal/mathutil"
	"turntable/internal/raster"
	"turntable/internal/viewer"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// backdrop is the colour transparent pixels are blended over.
var backdrop = colorful.Color{R: 0.07, G: 0.07, B: 0.09}

const (
	frameInterval = 33 * time.Millisecond
	chromeLines   = 4 // header, progress bar, status, help

	// CellPx is how many viewer pixels one terminal column spans. Pointer
	// positions are scaled by it before they reach the controller.
	CellPx = 8

	pitchStep    = 5.0
	parallaxStep = 0.1
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea model driving a viewer.Controller.
type Model struct {
	ctrl  *viewer.Controller
	title string

	frame   *viewer.CompositeFrame
	lastErr error

	lastFrame time.Time
	fps       float64

	width  int
	height int

	now func() time.Time
}

// New wraps ctrl; title is shown in the header. The controller's viewport
// follows the terminal size from here on.
func New(ctrl *viewer.Controller, title string) Model {
	m := Model{
		ctrl:  ctrl,
		title: title,
		now:   time.Now,
	}
	return m.resize(80, 24)
}

// resize records the terminal size and hands the matching pixel viewport to
// the controller, so drag hit tests and the commit threshold track it.
func (m Model) resize(width, height int) Model {
	m.width, m.height = width, height
	m.ctrl.SetViewport(float64(width*CellPx), float64(height*CellPx*2))
	return m
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg), nil
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil
	case tickMsg:
		now := time.Time(msg)
		if !m.lastFrame.IsZero() {
			if dt := now.Sub(m.lastFrame).Seconds(); dt > 0 {
				m.fps = 1.0 / dt
			}
		}
		m.lastFrame = now
		frame, err := m.ctrl.Tick(now)
		m.lastErr = err
		if err == nil {
			m.frame = frame
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	st := m.ctrl.State()
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "left", "h":
		m.ctrl.Step(-1)
	case "right", "l":
		m.ctrl.Step(1)
	case "up", "k":
		m.ctrl.SetPitch(st.Pitch+pitchStep, false)
	case "down", "j":
		m.ctrl.SetPitch(st.Pitch-pitchStep, false)
	case "+", "=":
		m.ctrl.Wheel(1)
	case "-", "_":
		m.ctrl.Wheel(-1)
	case "0":
		m.ctrl.SetZoom(1)
	case "]":
		m.ctrl.SetParallax(st.Parallax + parallaxStep)
	case "[":
		m.ctrl.SetParallax(st.Parallax - parallaxStep)
	case " ", "p":
		m.ctrl.Toggle()
	case "s":
		m.ctrl.SetYaw(st.Yaw, true)
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) Model {
	x, y := float64(msg.X*CellPx), float64(msg.Y*CellPx*2)
	now := m.now()
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.ctrl.Wheel(1)
	case msg.Button == tea.MouseButtonWheelDown:
		m.ctrl.Wheel(-1)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.ctrl.PointerDown(x, y, now)
	case msg.Action == tea.MouseActionMotion:
		m.ctrl.PointerMove(x, y, now)
	case msg.Action == tea.MouseActionRelease:
		m.ctrl.PointerUp(x, y, now)
	}
	return m
}

// canvasSize returns the square pixel size that fits the terminal. Each cell
// holds one pixel across and two down.
func (m Model) canvasSize() int {
	size := m.width
	if h := 2 * (m.height - chromeLines); h < size {
		size = h
	}
	if size < 2 {
		return 2
	}
	return size &^ 1
}

func (m Model) View() string {
	var b strings.Builder
	st := m.ctrl.State()

	b.WriteString(" " + cyan.Render("turntable") + "  " + white.Render(m.title) + "\n")

	if m.frame != nil {
		b.WriteString(renderHalfBlocks(m.frame.Image, m.canvasSize()))
	} else {
		b.WriteString(dim.Render(" waiting for first frame") + "\n")
	}

	barWidth := 30
	filled := int(st.Yaw / 360 * float64(barWidth))
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf(" %s %s\n", bar, dim.Render(fmt.Sprintf("%.0ffps", m.fps))))

	status := green.Render("● playing")
	if !st.IsPlaying {
		status = yellow.Render("○ paused")
	}
	if st.IsDragging {
		status = cyan.Render("◆ dragging")
	}
	line := fmt.Sprintf(" %s  %s %s  %s %s  %s %s  %s %s  %s",
		status,
		dim.Render("yaw"), white.Render(fmt.Sprintf("%6.1f°", st.Yaw)),
		dim.Render("pitch"), white.Render(fmt.Sprintf("%5.1f°", st.Pitch)),
		dim.Render("zoom"), white.Render(fmt.Sprintf("%.2fx", st.Zoom)),
		dim.Render("parallax"), white.Render(fmt.Sprintf("%.1f", st.Parallax)),
		dim.Render(fmt.Sprintf("ring %d frame %d", st.Ring, st.FrameIndex)))
	if m.frame != nil {
		line += "  " + dim.Render(fmt.Sprintf("seam %.0f°", mathutil.Rad2Deg(m.frame.SeamAngle)))
	}
	if m.lastErr != nil {
		line += "  " + red.Render(m.lastErr.Error())
	}
	b.WriteString(line + "\n")
	b.WriteString(dim.Render(" ←→ step  ↑↓ pitch  ± zoom  [] parallax  space play  s snap  drag orbit  q quit") + "\n")
	return b.String()
}

// renderHalfBlocks draws img as size×size pixels using "▀" cells: the
// foreground carries the upper pixel, the background the lower one.
func renderHalfBlocks(img *image.NRGBA, size int) string {
	small := raster.Downsample(img, size, size)
	var b strings.Builder
	for y := 0; y+1 < size; y += 2 {
		for x := 0; x < size; x++ {
			top := blend(small, x, y)
			bot := blend(small, x, y+1)
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top.Hex())).
				Background(lipgloss.Color(bot.Hex())).
				Render("▀"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// blend composites one pixel over the backdrop.
func blend(img *image.NRGBA, x, y int) colorful.Color {
	px := img.NRGBAAt(img.Rect.Min.X+x, img.Rect.Min.Y+y)
	if px.A == 0 {
		return backdrop
	}
	c := colorful.Color{R: float64(px.R) / 255, G: float64(px.G) / 255, B: float64(px.B) / 255}
	return backdrop.BlendRgb(c, float64(px.A)/255).Clamped()
}

// Run starts the interactive viewer with mouse support.
func Run(ctrl *viewer.Controller, title string) error {
	p := tea.NewProgram(New(ctrl, title), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
