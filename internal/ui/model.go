// ABOUTME: Bubbletea model for the bridge monitor TUI
// ABOUTME: Level meters with peak hold and decay, plus packet and buffer counters
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vbanbridge/vbanbridge-go/internal/protocol"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio"
	"github.com/vbanbridge/vbanbridge-go/pkg/bridge"
)

const (
	// peakHoldTicks is how many updates a peak marker stays put
	peakHoldTicks = 20
	// decay is applied to levels and released peaks on every update
	decay = 0.95

	meterWidth = 40
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	lowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	midStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	hotStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// Meter is a decaying level with a held peak, both normalized to [0, 1]
type Meter struct {
	Level float64
	Peak  float64
	hold  int
}

// Update folds a new instantaneous peak into the meter
func (m *Meter) Update(v float64) {
	if v >= m.Level {
		m.Level = v
	} else {
		m.Level *= decay
	}

	switch {
	case v >= m.Peak:
		m.Peak = v
		m.hold = peakHoldTicks
	case m.hold > 0:
		m.hold--
	default:
		m.Peak *= decay
	}
}

// Reset clears level and peak
func (m *Meter) Reset() {
	*m = Meter{}
}

// HelloMsg carries the session description
type HelloMsg protocol.SessionHello

// StatsMsg carries a stats snapshot
type StatsMsg bridge.Stats

// DisconnectedMsg reports that the stats source went away
type DisconnectedMsg struct{ Err error }

type tickMsg time.Time

// Model represents the TUI state
type Model struct {
	title     string
	connected bool
	lastErr   error

	hello  protocol.SessionHello
	stats  bridge.Stats
	prev   bridge.Stats
	prevAt time.Time

	rxRate float64
	txRate float64

	capture  Meter
	playback Meter

	showDebug bool
	quitting  bool
	startTime time.Time
	quitChan  chan struct{}

	width int
}

// NewModel creates a model; quitChan is signalled when the user quits
func NewModel(title string, quitChan chan struct{}) Model {
	return Model{
		title:     title,
		startTime: time.Now(),
		quitChan:  quitChan,
	}
}

// Init starts the uptime ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, tickEvery()
	case HelloMsg:
		m.hello = protocol.SessionHello(msg)
		m.connected = true
	case StatsMsg:
		m.applyStats(bridge.Stats(msg), time.Now())
	case DisconnectedMsg:
		m.connected = false
		m.lastErr = msg.Err
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.quitChan != nil {
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	case "r":
		m.capture.Reset()
		m.playback.Reset()
	}
	return m, nil
}

// applyStats updates meters and packet rates from a snapshot taken at now
func (m *Model) applyStats(st bridge.Stats, now time.Time) {
	m.connected = true
	if !m.prevAt.IsZero() {
		if dt := now.Sub(m.prevAt).Seconds(); dt > 0 {
			m.rxRate = float64(st.PacketsReceived-m.prev.PacketsReceived) / dt
			m.txRate = float64(st.PacketsSent-m.prev.PacketsSent) / dt
		}
	}
	m.prev = st
	m.prevAt = now
	m.stats = st

	m.capture.Update(float64(st.CapturePeak))
	m.playback.Update(float64(st.PlaybackPeak))
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	status := "waiting for session"
	if m.connected {
		status = m.stats.State
	} else if m.lastErr != nil {
		status = "disconnected: " + m.lastErr.Error()
	}
	field(&b, "Status:  ", status)
	field(&b, "Stream:  ", fmt.Sprintf("%s  %dHz  %s", m.stats.Stream, m.stats.SampleRate, channelName(m.stats.Channels)))
	field(&b, "Peer:    ", fmt.Sprintf("%s ⇄ %s", m.stats.Local, m.stats.Remote))
	field(&b, "Uptime:  ", time.Since(m.startTime).Round(time.Second).String())
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Capture  "))
	b.WriteString(renderMeter(m.capture, meterWidth))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Playback "))
	b.WriteString(renderMeter(m.playback, meterWidth))
	b.WriteString("\n\n")

	field(&b, "RX:      ", fmt.Sprintf("%d packets (%.0f/s)", m.stats.PacketsReceived, m.rxRate))
	field(&b, "TX:      ", fmt.Sprintf("%d packets (%.0f/s)  frame %d", m.stats.PacketsSent, m.txRate, m.stats.FrameCounter))
	field(&b, "Buffers: ", fmt.Sprintf("capture %d/%d  playback %d/%d",
		m.stats.CaptureBuffered, m.stats.CaptureCapacity, m.stats.PlaybackBuffered, m.stats.PlaybackCapacity))

	drops := fmt.Sprintf("%d (sender %d, invalid %d, stream %d, format %d)  underruns %d",
		m.stats.Dropped(), m.stats.DroppedSender, m.stats.DroppedInvalid,
		m.stats.DroppedStream, m.stats.DroppedFormat, m.stats.Underruns)
	b.WriteString(headerStyle.Render("Dropped: "))
	if m.stats.Dropped() > 0 || m.stats.Underruns > 0 {
		b.WriteString(warnStyle.Render(drops))
	} else {
		b.WriteString(valueStyle.Render(drops))
	}
	b.WriteString("\n")

	if m.showDebug {
		b.WriteString("\n")
		field(&b, "Session: ", m.stats.ID)
		field(&b, "Errors:  ", fmt.Sprintf("read %d  send %d  encode %d",
			m.stats.ReadErrors, m.stats.SendErrors, m.stats.EncodeErrors))
		field(&b, "Evicted: ", fmt.Sprintf("capture %d  playback %d", m.stats.CaptureEvicted, m.stats.PlaybackEvicted))
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("r:Reset peaks  d:Debug  q:Quit"))
	return b.String()
}

func field(b *strings.Builder, label, value string) {
	b.WriteString(headerStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// renderMeter draws the level bar with a peak marker and the peak in dBFS
func renderMeter(m Meter, width int) string {
	filled := clampCells(m.Level, width)
	peakAt := clampCells(m.Peak, width) - 1

	var bar strings.Builder
	for i := 0; i < width; i++ {
		cell := "░"
		if i < filled {
			cell = "█"
		}
		if i == peakAt && m.Peak > 0 {
			cell = "│"
		}
		bar.WriteString(zoneStyle(i, width).Render(cell))
	}
	return fmt.Sprintf("%s %6.1f dB", bar.String(), audio.LinearToDB(m.Peak))
}

func clampCells(v float64, width int) int {
	n := int(v * float64(width))
	if n < 0 {
		return 0
	}
	if n > width {
		return width
	}
	return n
}

func zoneStyle(i, width int) lipgloss.Style {
	switch {
	case i >= width*9/10:
		return hotStyle
	case i >= width*7/10:
		return midStyle
	default:
		return lowStyle
	}
}

func channelName(channels int) string {
	switch channels {
	case 0:
		return ""
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}
