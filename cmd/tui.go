// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type eventKind int

const (
	eventInfo eventKind = iota
	eventReceived
	eventSent
	eventError
)

// Event log entry
type eventEntry struct {
	timestamp time.Time
	message   string
	kind      eventKind
}

// sendRequest is a command typed on the input line, executed by the
// goroutine that owns the messenger
type sendRequest struct {
	id         uint8
	args       []commandArg
	requireAck bool
	text       string
}

// TUI model
type model struct {
	connInfo  string
	stats     *messenger.Statistics
	last      messenger.Snapshot
	events    []eventEntry
	maxEvents int
	input     textinput.Model
	requests  chan<- sendRequest
	width     int
	height    int
	quitting  bool
	closed    bool
}

// Messages
type tickMsg time.Time
type receivedMsg struct {
	line string
}
type sendResultMsg struct {
	text string
	ack  string
	err  error
}
type closedMsg struct {
	err error
}

// formatUptime formats a duration in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	unit := func(n uint64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, unit(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, unit(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// parseInputLine parses "<id> [args...]", or "ack <id> [args...]" to wait
// for the acknowledgment
func parseInputLine(line string) (sendRequest, error) {
	fields := strings.Fields(line)
	req := sendRequest{text: strings.Join(fields, " ")}
	if len(fields) > 0 && fields[0] == "ack" {
		req.requireAck = true
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return req, errors.New("expected: [ack] <id> [args...]")
	}

	id, err := parseCommandID(fields[0])
	if err != nil {
		return req, err
	}
	args, err := parseCommandArgs(fields[1:])
	if err != nil {
		return req, err
	}
	req.id = id
	req.args = args
	return req, nil
}

// errorEvents describes the error counters that moved between two snapshots
func errorEvents(prev, cur messenger.Snapshot) []string {
	var events []string
	add := func(delta uint64, what string) {
		if delta > 0 {
			events = append(events, fmt.Sprintf("%d %s", delta, what))
		}
	}
	add(cur.IntegrityFailures-prev.IntegrityFailures, "CRC error(s)")
	add(cur.FramingOverflows-prev.FramingOverflows, "truncated message(s)")
	add(cur.Dropped-prev.Dropped, "dropped message(s)")
	add(cur.DecodeMismatches-prev.DecodeMismatches, "decode error(s)")
	add(cur.SendFailures-prev.SendFailures, "send failure(s)")
	return events
}

func initialModel(connInfo string, stats *messenger.Statistics, requests chan<- sendRequest) model {
	ti := textinput.New()
	ti.Placeholder = "ack 10 hello int:5"
	ti.Prompt = "> "
	ti.CharLimit = 256
	ti.Width = 60
	ti.Focus()

	return model{
		connInfo:  connInfo,
		stats:     stats,
		last:      stats.Snapshot(),
		events:    make([]eventEntry, 0),
		maxEvents: 100,
		input:     ti,
		requests:  requests,
		width:     80,
		height:    24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		textinput.Blink,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-8)

	case tickMsg:
		cur := m.stats.Snapshot()
		for _, e := range errorEvents(m.last, cur) {
			m.addEvent(e, eventError)
		}
		m.last = cur
		return m, tickCmd()

	case receivedMsg:
		m.addEvent(strings.TrimSuffix(msg.line, "\n"), eventReceived)
		return m, nil

	case sendResultMsg:
		if msg.err != nil {
			m.addEvent(fmt.Sprintf("%s: %v", msg.text, msg.err), eventError)
		} else {
			m.addEvent("sent "+msg.text, eventSent)
			if msg.ack != "" {
				m.addEvent("ack "+strings.TrimSuffix(msg.ack, "\n"), eventReceived)
			}
		}
		return m, nil

	case closedMsg:
		m.closed = true
		if msg.err != nil && !errors.Is(msg.err, io.EOF) && !errors.Is(msg.err, context.Canceled) {
			m.addEvent(fmt.Sprintf("connection closed: %v", msg.err), eventError)
		} else {
			m.addEvent("connection closed", eventInfo)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit parses the input line and queues it for sending
func (m *model) submit() {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return
	}
	m.input.Reset()

	if m.closed {
		m.addEvent("not connected", eventError)
		return
	}
	req, err := parseInputLine(line)
	if err != nil {
		m.addEvent(fmt.Sprintf("%s: %v", line, err), eventError)
		return
	}
	select {
	case m.requests <- req:
	default:
		m.addEvent("send queue full", eventError)
	}
}

func (m *model) addEvent(message string, kind eventKind) {
	m.events = append(m.events, eventEntry{
		timestamp: time.Now(),
		message:   message,
		kind:      kind,
	})

	// Keep only last N entries
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	sentStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("14"))

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("HERALD - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Enter sends | Esc to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Statistics
	snap := m.stats.Snapshot()
	var intactPercent float64
	if snap.Received > 0 {
		intact := snap.Received - min(snap.Received, snap.IntegrityFailures+snap.FramingOverflows)
		intactPercent = float64(intact) * 100.0 / float64(snap.Received)
	}

	stats := strings.Builder{}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Received:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%% intact)", snap.Received, intactPercent)),
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", snap.Sent)),
		labelStyle.Render("Acks:"), valueStyle.Render(fmt.Sprintf("%d (%d timed out)", snap.Acks, snap.AckTimeouts)),
	))

	if errs := snap.Errors(); errs > 0 {
		stats.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d)\n",
			labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", errs)),
			headerStyle.Render("crc"), snap.IntegrityFailures,
			headerStyle.Render("truncated"), snap.FramingOverflows,
			headerStyle.Render("dropped"), snap.Dropped,
		))
	}

	stats.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Message Rate:"), valueStyle.Render(fmt.Sprintf("%.1f msgs/s", snap.MessageRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if snap.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
		}(),
	))
	stats.WriteString(fmt.Sprintf("%s %s",
		labelStyle.Render("Running:"), valueStyle.Render(formatUptime(uint64(snap.Elapsed.Milliseconds()))),
	))

	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 14 // Reserve space for header, stats and input
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.events) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.events) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.events); i++ {
			entry := m.events[i]
			timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
			switch entry.kind {
			case eventError:
				logContent.WriteString(timestamp + " " + errorStyle.Render("✗ "+entry.message) + "\n")
			case eventSent:
				logContent.WriteString(timestamp + " " + sentStyle.Render("→ "+entry.message) + "\n")
			case eventReceived:
				logContent.WriteString(timestamp + " " + valueStyle.Render("← "+entry.message) + "\n")
			default:
				logContent.WriteString(timestamp + " " + infoStyle.Render("ℹ "+entry.message) + "\n")
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.input.View())

	return s.String()
}

// runMonitorTUI runs the monitor with the terminal UI. The messenger is
// driven by one goroutine; typed commands reach it through a queue.
func runMonitorTUI() error {
	// Log lines would corrupt the alternate screen
	log = nil

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	requests := make(chan sendRequest, 8)
	p := tea.NewProgram(initialModel(s.info, s.stats, requests))

	s.m.AttachDefault(func(msg *messenger.Message) {
		p.Send(receivedMsg{line: messenger.FormatMessage(msg)})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := s.run(ctx, func() {
			select {
			case req := <-requests:
				ok, err := sendCommand(s.m, req.id, req.args, false, req.requireAck, ackTimeout)
				result := sendResultMsg{text: req.text, err: err}
				if ok && req.requireAck {
					result.ack = messenger.FormatMessage(s.m.Current())
				}
				p.Send(result)
			default:
			}
		})
		p.Send(closedMsg{err: err})
	}()

	// Run TUI
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
