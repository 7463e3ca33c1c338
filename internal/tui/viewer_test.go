package tui

import (
	"image"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turntable/internal/viewer"
)

var epoch = time.Unix(1_700_000_000, 0)

func testModel(t *testing.T) (Model, *viewer.Controller) {
	t.Helper()
	frames := make([]*image.NRGBA, 12)
	for i := range frames {
		img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p] = uint8(20 * i)
			img.Pix[p+3] = 255
		}
		frames[i] = img
	}
	opts := viewer.DefaultOptions()
	opts.Now = func() time.Time { return epoch }
	ctrl, err := viewer.New(viewer.NewFrameSet(viewer.RingFrames{Pitch: 0, Frames: frames}), opts)
	require.NoError(t, err)
	m := New(ctrl, "test")
	m.now = func() time.Time { return epoch }
	return m, ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestQuit(t *testing.T) {
	m, _ := testModel(t)
	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestStepKeys(t *testing.T) {
	m, ctrl := testModel(t)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, cmd := update(t, m, tickMsg(epoch.Add(time.Second)))
	assert.NotNil(t, cmd)
	assert.InDelta(t, 30, ctrl.State().Yaw, 1e-9)
	assert.NotNil(t, m.frame)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	_, _ = update(t, m, tickMsg(epoch.Add(2*time.Second)))
	assert.InDelta(t, 330, ctrl.State().Yaw, 1e-9)
}

func TestViewKeys(t *testing.T) {
	m, ctrl := testModel(t)

	m, _ = update(t, m, key("+"))
	assert.InDelta(t, 1.1, ctrl.State().Zoom, 1e-9)
	m, _ = update(t, m, key("0"))
	assert.Equal(t, 1.0, ctrl.State().Zoom)

	m, _ = update(t, m, key("]"))
	assert.InDelta(t, 0.1, ctrl.State().Parallax, 1e-9)
	m, _ = update(t, m, key("["))
	assert.InDelta(t, 0, ctrl.State().Parallax, 1e-9)

	playing := ctrl.State().IsPlaying
	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, !playing, ctrl.State().IsPlaying)
}

func TestMouseDrag(t *testing.T) {
	m, ctrl := testModel(t)

	m = m.handleMouse(tea.MouseMsg{X: 10, Y: 4, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.True(t, ctrl.State().IsDragging)

	m = m.handleMouse(tea.MouseMsg{X: 20, Y: 4, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	// 10 cells · CellPx · default sensitivity 0.5
	assert.InDelta(t, 40, ctrl.State().Yaw, 1e-9)

	_ = m.handleMouse(tea.MouseMsg{X: 20, Y: 4, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	assert.False(t, ctrl.State().IsDragging)
}

func TestWindowSizeSetsViewport(t *testing.T) {
	m, ctrl := testModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 30, Height: 20})

	// 12 cells = 96px, past a third of the 240px wide terminal.
	m = m.handleMouse(tea.MouseMsg{X: 2, Y: 2, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	require.True(t, ctrl.State().IsDragging)
	m = m.handleMouse(tea.MouseMsg{X: 14, Y: 2, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	m = m.handleMouse(tea.MouseMsg{X: 14, Y: 2, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})

	_, _ = update(t, m, tickMsg(epoch.Add(time.Second)))
	assert.InDelta(t, 60, ctrl.State().Yaw, 1e-9)

	// Outside the resized terminal.
	_ = m.handleMouse(tea.MouseMsg{X: 40, Y: 2, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.False(t, ctrl.State().IsDragging)
}

func TestMouseWheel(t *testing.T) {
	m, ctrl := testModel(t)
	m = m.handleMouse(tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	m = m.handleMouse(tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	assert.InDelta(t, 1.21, ctrl.State().Zoom, 1e-9)
	_ = m.handleMouse(tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	assert.InDelta(t, 1.1, ctrl.State().Zoom, 1e-9)
}

func TestCanvasSize(t *testing.T) {
	tests := []struct {
		w, h, want int
	}{
		{80, 24, 40},
		{30, 24, 30},
		{31, 50, 30},
		{1, 1, 2},
	}
	for _, tt := range tests {
		m := Model{width: tt.w, height: tt.h}
		assert.Equal(t, tt.want, m.canvasSize(), "%dx%d", tt.w, tt.h)
	}
}

func TestView(t *testing.T) {
	m, _ := testModel(t)
	assert.Contains(t, m.View(), "waiting for first frame")

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 14})
	m, _ = update(t, m, tickMsg(epoch))
	out := m.View()
	assert.Contains(t, out, "▀")
	assert.Contains(t, out, "yaw")
	assert.Equal(t, 10, strings.Count(out, "▀")/20)
}
