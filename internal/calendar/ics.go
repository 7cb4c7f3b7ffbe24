package calendar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	icsProdID   = "-//dayflow//EN"
	icsCalName  = "Dayflow Timebox"
	icsLineSize = 75
)

type icsEvent struct {
	Title string
	Start time.Time
	End   time.Time
}

// ICSAdapter mirrors synced events into an RFC 5545 calendar file. The file
// is an export artifact regenerated on every change; event identity lives in
// the plan file's external ids.
type ICSAdapter struct {
	mu     sync.Mutex
	path   string
	events map[string]icsEvent
}

func NewICSAdapter(path string) *ICSAdapter {
	return &ICSAdapter{
		path:   path,
		events: make(map[string]icsEvent),
	}
}

func (a *ICSAdapter) Create(_ context.Context, title string, start, end time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := uuid.NewString()
	a.events[id] = icsEvent{Title: title, Start: start, End: end}
	if err := a.writeLocked(); err != nil {
		delete(a.events, id)
		return "", err
	}
	return id, nil
}

func (a *ICSAdapter) Update(_ context.Context, eventID, title string, start, end time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, ok := a.events[eventID]
	if !ok {
		return "", fmt.Errorf("unknown event id %q", eventID)
	}
	a.events[eventID] = icsEvent{Title: title, Start: start, End: end}
	if err := a.writeLocked(); err != nil {
		a.events[eventID] = prev
		return "", err
	}
	return eventID, nil
}

func (a *ICSAdapter) Delete(_ context.Context, eventID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, ok := a.events[eventID]
	if !ok {
		return nil
	}
	delete(a.events, eventID)
	if err := a.writeLocked(); err != nil {
		a.events[eventID] = prev
		return err
	}
	return nil
}

func (a *ICSAdapter) writeLocked() error {
	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create calendar dir: %w", err)
		}
	}

	ids := make([]string, 0, len(a.events))
	for id := range a.events {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return a.events[ids[i]].Start.Before(a.events[ids[j]].Start)
	})

	now := time.Now()
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + icsProdID,
		"CALSCALE:GREGORIAN",
		"X-WR-CALNAME:" + escapeICS(icsCalName),
	}
	for _, id := range ids {
		ev := a.events[id]
		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+escapeICS(id+"@dayflow"),
			"DTSTAMP:"+formatICSTime(now),
			"SUMMARY:"+escapeICS(ev.Title),
			"DTSTART:"+formatICSTime(ev.Start),
			"DTEND:"+formatICSTime(ev.End),
			"STATUS:CONFIRMED",
			"END:VEVENT",
		)
	}
	lines = append(lines, "END:VCALENDAR")

	var out strings.Builder
	for _, line := range lines {
		out.WriteString(foldICSLine(line))
		out.WriteString("\r\n")
	}

	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("write calendar file: %w", err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("replace calendar file: %w", err)
	}
	return nil
}

func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes text per RFC 5545.
func escapeICS(value string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
	)
	return r.Replace(value)
}

// foldICSLine folds long content lines per RFC 5545. Counts bytes, which is
// close enough for the ASCII-heavy content we emit.
func foldICSLine(line string) string {
	if len(line) <= icsLineSize {
		return line
	}
	var parts []string
	for len(line) > icsLineSize {
		parts = append(parts, line[:icsLineSize])
		line = line[icsLineSize:]
	}
	parts = append(parts, line)
	return strings.Join(parts, "\r\n ")
}
