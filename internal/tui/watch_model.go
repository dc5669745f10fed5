package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muratovb/geowatch/internal/tracker"
)

// StatusProvider is what the watch screen needs from the tracker side.
type StatusProvider interface {
	Status() tracker.Snapshot
	UnsyncedCount() (int64, error)
}

// WatchModel is the live presence dashboard: a big countdown clock while a
// grace timer runs, presence details on the right.
type WatchModel struct {
	width  int
	height int

	provider StatusProvider
	events   <-chan tracker.Event

	entryGrace time.Duration
	exitGrace  time.Duration

	snapshot tracker.Snapshot
	unsynced int64
	lastNote string

	bar progress.Model

	// Animation state
	pulse int

	exiting bool
}

// watchTickMsg refreshes the snapshot every second.
type watchTickMsg struct{}

// pulseTickMsg drives the header animation.
type pulseTickMsg struct{}

// trackerEventMsg wraps an event from the tracker feed.
type trackerEventMsg tracker.Event

// NewWatchModel creates a watch model over the given provider.
func NewWatchModel(provider StatusProvider, events <-chan tracker.Event, entryGrace, exitGrace time.Duration) WatchModel {
	bar := progress.New(
		progress.WithSolidFill(ColorAccentBright),
		progress.WithoutPercentage(),
	)
	return WatchModel{
		provider:   provider,
		events:     events,
		entryGrace: entryGrace,
		exitGrace:  exitGrace,
		snapshot:   provider.Status(),
		bar:        bar,
	}
}

// Init starts the refresh and animation tickers plus the event listener.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(
		tea.Tick(time.Second, func(t time.Time) tea.Msg {
			return watchTickMsg{}
		}),
		tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
			return pulseTickMsg{}
		}),
		m.listenForEvents(),
	)
}

func (m WatchModel) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return trackerEventMsg(ev)
	}
}

// Update handles messages
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case watchTickMsg:
		m.snapshot = m.provider.Status()
		if count, err := m.provider.UnsyncedCount(); err == nil {
			m.unsynced = count
		}
		if !m.exiting {
			return m, tea.Tick(time.Second, func(t time.Time) tea.Msg {
				return watchTickMsg{}
			})
		}
		return m, nil

	case pulseTickMsg:
		m.pulse = (m.pulse + 1) % 4
		if !m.exiting {
			return m, tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
				return pulseTickMsg{}
			})
		}
		return m, nil

	case trackerEventMsg:
		m.lastNote = describeEvent(tracker.Event(msg))
		m.snapshot = m.provider.Status()
		return m, m.listenForEvents()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(m.width/2-8, 40)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			// Exit the dashboard, tracking keeps running
			m.exiting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func describeEvent(ev tracker.Event) string {
	switch ev.Type {
	case tracker.EventCheckIn:
		return fmt.Sprintf("Checked in at %s (%s)", ev.LocationID, ev.Timestamp.Format("15:04:05"))
	case tracker.EventCheckOut:
		return fmt.Sprintf("Checked out (%s)", ev.Timestamp.Format("15:04:05"))
	case tracker.EventTimerStart:
		return fmt.Sprintf("%s grace timer started", ev.TimerKind)
	case tracker.EventTimerComplete:
		return fmt.Sprintf("%s grace timer elapsed", ev.TimerKind)
	case tracker.EventTimerCancelled:
		return fmt.Sprintf("%s grace timer cancelled", ev.TimerKind)
	default:
		return ""
	}
}

// View renders the watch TUI
func (m WatchModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	helpBar := m.renderHelpBar()
	contentHeight := m.height - 2

	if m.width < 90 {
		// Narrow view: just the clock panel, full width
		return lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderClockPanel(m.width, contentHeight),
			helpBar,
		)
	}

	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth - 2

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderClockPanel(leftWidth, contentHeight),
		"  ",
		m.renderDetailsPanel(rightWidth, contentHeight),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		content,
		helpBar,
	)
}

// headline returns the animated header text plus the countdown the big
// clock should display.
func (m WatchModel) headline() (string, time.Duration, float64) {
	s := m.snapshot

	switch {
	case s.EntryRemaining > 0:
		frac := 1 - float64(s.EntryRemaining)/float64(m.entryGrace)
		return "ENTERING  ·  CHECK-IN SOON", s.EntryRemaining, frac
	case s.ExitRemaining > 0:
		frac := 1 - float64(s.ExitRemaining)/float64(m.exitGrace)
		return "LEAVING  ·  CHECK-OUT SOON", s.ExitRemaining, frac
	case s.CheckedIn && s.CheckInTime != nil:
		return "CHECKED IN", time.Since(*s.CheckInTime), -1
	default:
		return "WATCHING", 0, -1
	}
}

// renderClockPanel renders the left clock panel
func (m WatchModel) renderClockPanel(width, height int) string {
	var components []string

	head, countdown, frac := m.headline()

	animChars := []string{"◌", "◔", "◑", "◕"}
	headerText := fmt.Sprintf("%s  %s  %s", animChars[m.pulse], head, animChars[m.pulse])

	headerColor := ColorAccentBright
	if m.snapshot.EntryRemaining > 0 || m.snapshot.ExitRemaining > 0 {
		headerColor = ColorWarning
	}
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(headerColor)).
		Bold(true).
		Align(lipgloss.Center).
		Width(width)
	components = append(components, headerStyle.Render(headerText))

	// Region line
	regionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorAccentMain)).
		Bold(true).
		Align(lipgloss.Center).
		Width(width)
	regionText := "outside any work location"
	if m.snapshot.InsideRegion {
		regionText = "inside " + m.snapshot.CurrentRegionID
	}
	components = append(components, regionStyle.Render(regionText))

	// Big clock display
	clockLines := strings.Split(renderBigClock(countdown), "\n")
	clockContent := ""
	for _, line := range clockLines {
		clockContent += lipgloss.NewStyle().
			Align(lipgloss.Center).
			Width(width).
			Render(line) + "\n"
	}
	components = append(components, strings.TrimRight(clockContent, "\n"))

	// Grace progress bar while a timer runs
	if frac >= 0 {
		barStyle := lipgloss.NewStyle().
			Align(lipgloss.Center).
			Width(width)
		components = append(components, barStyle.Render(m.bar.ViewAs(frac)))
	}

	if m.lastNote != "" {
		noteStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSecondaryText)).
			Italic(true).
			Align(lipgloss.Center).
			Width(width)
		components = append(components, noteStyle.Render(m.lastNote))
	}

	content := strings.Join(components, "\n\n")

	panelStyle := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center)

	return panelStyle.Render(content)
}

// renderBigClock renders the ASCII art countdown
func renderBigClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	// ASCII art for digits (5x5 characters each)
	digits := map[rune][]string{
		'0': {" ███ ", "█   █", "█   █", "█   █", " ███ "},
		'1': {"  █  ", " ██  ", "  █  ", "  █  ", "█████"},
		'2': {" ███ ", "█   █", "   █ ", "  █  ", "█████"},
		'3': {" ███ ", "█   █", "  ██ ", "█   █", " ███ "},
		'4': {"█   █", "█   █", "█████", "    █", "    █"},
		'5': {"█████", "█    ", "████ ", "    █", "████ "},
		'6': {" ███ ", "█    ", "████ ", "█   █", " ███ "},
		'7': {"█████", "    █", "   █ ", "  █  ", " █   "},
		'8': {" ███ ", "█   █", " ███ ", "█   █", " ███ "},
		'9': {" ███ ", "█   █", " ████", "    █", " ███ "},
		':': {"     ", "  █  ", "     ", "  █  ", "     "},
	}

	timeStr := fmt.Sprintf("%02d:%02d", minutes, seconds)
	if hours > 0 {
		timeStr = fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}

	var lines [5]strings.Builder
	for _, char := range timeStr {
		if digitArt, ok := digits[char]; ok {
			for i := 0; i < 5; i++ {
				lines[i].WriteString(digitArt[i])
				lines[i].WriteString(" ")
			}
		}
	}

	clockStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorAccentBright)).
		Bold(true)

	var result strings.Builder
	for i := 0; i < 5; i++ {
		result.WriteString(clockStyle.Render(lines[i].String()))
		if i < 4 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// renderDetailsPanel renders the right panel with presence details
func (m WatchModel) renderDetailsPanel(width, height int) string {
	s := m.snapshot
	var b strings.Builder

	b.WriteString("\n")

	logoLines := []string{
		" ██████╗ ███████╗ ██████╗ ",
		"██╔════╝ ██╔════╝██╔═══██╗",
		"██║  ███╗█████╗  ██║   ██║",
		"██║   ██║██╔══╝  ██║   ██║",
		"╚██████╔╝███████╗╚██████╔╝",
		" ╚═════╝ ╚══════╝ ╚═════╝ ",
	}

	logoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorAccentMain)).
		Bold(true).
		Align(lipgloss.Center).
		Width(width - 8)
	b.WriteString(logoStyle.Render(strings.Join(logoLines, "\n")))
	b.WriteString("\n\n")

	separatorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorBorder)).
		Align(lipgloss.Center).
		Width(width - 8)
	b.WriteString(separatorStyle.Render(strings.Repeat("─", min(width-12, 40))))
	b.WriteString("\n\n")

	lineStyle := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(width - 8)

	// Presence
	presenceIcon, presenceColor, presenceText := "○", ColorSecondaryText, "not checked in"
	if s.CheckedIn {
		presenceIcon, presenceColor = "✅", ColorSuccess
		presenceText = "checked in"
		if s.CheckInTime != nil {
			presenceText = fmt.Sprintf("checked in since %s", s.CheckInTime.Format("15:04"))
		}
	}
	b.WriteString(lineStyle.Render(fmt.Sprintf("%s Presence: %s", presenceIcon,
		lipgloss.NewStyle().Foreground(lipgloss.Color(presenceColor)).Bold(true).Render(presenceText))))
	b.WriteString("\n")

	// Region
	regionValue, regionColor := "none", ColorDisabledText
	if s.InsideRegion {
		regionValue, regionColor = s.CurrentRegionID, ColorAccentBright
	}
	b.WriteString(lineStyle.Render(fmt.Sprintf("📍 Region: %s",
		lipgloss.NewStyle().Foreground(lipgloss.Color(regionColor)).Render(regionValue))))
	b.WriteString("\n")

	// Locations
	b.WriteString(lineStyle.Render(fmt.Sprintf("🗺️  Locations: %s",
		lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText)).Render(fmt.Sprintf("%d watched", len(s.Locations))))))
	b.WriteString("\n")

	// Pending sync
	syncValue, syncColor := "all synced", ColorSuccess
	if m.unsynced > 0 {
		syncValue, syncColor = fmt.Sprintf("%d pending", m.unsynced), ColorWarning
	}
	b.WriteString(lineStyle.Render(fmt.Sprintf("📤 Sync: %s",
		lipgloss.NewStyle().Foreground(lipgloss.Color(syncColor)).Render(syncValue))))
	b.WriteString("\n")

	// Override
	overrideValue, overrideColor := "off", ColorDisabledText
	if s.OverrideUntil != nil {
		overrideValue = fmt.Sprintf("until %s", s.OverrideUntil.Format("Jan 02 15:04"))
		overrideColor = ColorWarning
	}
	b.WriteString(lineStyle.Render(fmt.Sprintf("🌙 Override: %s",
		lipgloss.NewStyle().Foreground(lipgloss.Color(overrideColor)).Render(overrideValue))))
	b.WriteString("\n")

	// Last fix
	fixValue, fixColor := "none yet", ColorDisabledText
	if s.LastFixAt != nil {
		fixValue = fmt.Sprintf("%.5f, %.5f at %s", s.LastLatitude, s.LastLongitude, s.LastFixAt.Format("15:04:05"))
		fixColor = ColorSecondaryText
	}
	b.WriteString(lineStyle.Render(fmt.Sprintf("🛰️  Last fix: %s",
		lipgloss.NewStyle().Foreground(lipgloss.Color(fixColor)).Render(fixValue))))

	return b.String()
}

// renderHelpBar renders the help bar at the bottom
func (m WatchModel) renderHelpBar() string {
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Italic(true).
		Align(lipgloss.Center).
		Width(m.width)

	return helpStyle.Render("esc/q close dashboard (tracking keeps running) · ctrl+c quit")
}
