package plan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dayflowhq/dayflow/internal/calendar"
	"github.com/dayflowhq/dayflow/internal/observability"
	"github.com/dayflowhq/dayflow/internal/timeparse"
)

const syncTimeout = 5 * time.Second

// Manager exposes the day's-plan operations by composing the file store,
// conflict detection, time normalization and the calendar adapter. All
// collaborators are injected; one Manager serves one user's plan directory.
type Manager struct {
	store    *Store
	calendar calendar.Adapter
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewManager(store *Store, cal calendar.Adapter) *Manager {
	return &Manager{
		store:    store,
		calendar: cal,
		now:      time.Now,
	}
}

func (m *Manager) SetMetrics(metrics *observability.Metrics) {
	m.metrics = metrics
}

// SetClock overrides the wall clock; tests use it to pin "now".
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Store exposes the underlying plan store (health reporting, fallbacks).
func (m *Manager) Store() *Store { return m.store }

// CurrentContext returns the current time plus a numbered summary of the
// target date's plan. It never fails: problems are reported inline so the
// text can be injected into a conversation as-is.
func (m *Manager) CurrentContext(targetDate string) string {
	now := m.now()
	header := "Current time: " + now.Format("2006-01-02 15:04 MST (UTC-0700)")

	planDate, ok := timeparse.ParsePlanDate(targetDate, now)
	if !ok {
		return header + "\nDate parse error: unable to parse target date: " + targetDate
	}
	dateStr := planDate.Format(timeparse.LayoutDate)
	if !timeparse.SameDate(planDate, now) {
		header += "\nFocus date: " + dateStr
	}

	unlock := m.store.Lock(dateStr)
	tasks, path, err := m.store.Load(dateStr, false)
	unlock()
	if errors.Is(err, ErrNotFound) || (err == nil && len(tasks) == 0) {
		return header + "\nNo plan file yet: " + path
	}
	if err != nil {
		return header + "\nPlan read failed: " + err.Error()
	}

	return header + "\nPlan:\n" + strings.Join(summaryLines(tasks, planDate, false), "\n")
}

// ListTasks renders the numbered task list for a date.
func (m *Manager) ListTasks(targetDate string) (string, error) {
	now := m.now()
	planDate, ok := timeparse.ParsePlanDate(targetDate, now)
	if !ok {
		return "", validationErrorf("unable to parse target date: %s", targetDate)
	}
	dateStr := planDate.Format(timeparse.LayoutDate)

	unlock := m.store.Lock(dateStr)
	tasks, path, err := m.store.Load(dateStr, false)
	unlock()
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No plan: " + path, nil
	}

	lines := append([]string{"Plan file: " + path}, summaryLines(tasks, planDate, true)...)
	return strings.Join(lines, "\n"), nil
}

// Tasks returns the raw task list for a date.
func (m *Manager) Tasks(targetDate string) ([]Task, string, error) {
	planDate, ok := timeparse.ParsePlanDate(targetDate, m.now())
	if !ok {
		return nil, "", validationErrorf("unable to parse target date: %s", targetDate)
	}
	dateStr := planDate.Format(timeparse.LayoutDate)
	unlock := m.store.Lock(dateStr)
	defer unlock()
	return m.store.Load(dateStr, false)
}

// CreateOrMergePlan upserts a batch of tasks into the target date's plan.
// Existing tasks are matched by id when present, else by title; matched
// tasks are merged rather than overwritten so a partial resubmission cannot
// destroy prior state. Unchanged tasks that already carry an external event
// id skip the calendar round-trip, which makes identical resubmission a
// no-op for both the file and the calendar.
func (m *Manager) CreateOrMergePlan(ctx context.Context, batch []Task, targetDate string) (MergeResult, error) {
	now := m.now()
	planDate, err := m.determineMergeDate(targetDate, batch, now)
	if err != nil {
		return MergeResult{}, err
	}
	dateStr := planDate.Format(timeparse.LayoutDate)
	result := MergeResult{Date: dateStr}

	incoming := make([]Task, 0, len(batch))
	for i, task := range batch {
		task.Title = strings.TrimSpace(task.Title)
		if task.Title == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("task %d has no title", i+1))
			continue
		}
		start, okStart := timeparse.Normalize(task.Start, planDate)
		end, okEnd := timeparse.Normalize(task.End, planDate)
		if !okStart || !okEnd {
			result.Skipped = append(result.Skipped, fmt.Sprintf("task %q has invalid time format", task.Title))
			continue
		}
		if !timeparse.SameDate(start, planDate) || !timeparse.SameDate(end, planDate) {
			result.Skipped = append(result.Skipped, fmt.Sprintf(
				"task %q date %s does not match target date %s",
				task.Title, start.Format(timeparse.LayoutDate), dateStr))
			continue
		}
		task.Start = start.Format(timeparse.LayoutDateTime)
		task.End = end.Format(timeparse.LayoutDateTime)
		incoming = append(incoming, task)
	}
	if len(incoming) == 0 && len(result.Skipped) > 0 {
		return result, validationErrorf("unable to add tasks: %s", strings.Join(result.Skipped, "; "))
	}

	unlock := m.store.Lock(dateStr)
	defer unlock()

	existing, path, err := m.store.Load(dateStr, true)
	if err != nil {
		return result, err
	}

	final := make([]Task, len(existing))
	copy(final, existing)

	for _, newTask := range incoming {
		idx := matchTask(final, newTask)
		hasOld := idx >= 0
		var old Task
		if hasOld {
			old = final[idx]
		}
		merged := mergeTask(old, newTask, hasOld)
		if merged.ID == "" {
			merged.ID = uuid.NewString()
		}

		needsSync := true
		if hasOld {
			unchanged := merged.ExternalEventID != "" &&
				merged.Start == old.Start &&
				merged.End == old.End &&
				merged.Title == old.Title
			needsSync = !unchanged
		}

		if needsSync {
			action := "create"
			if hasOld {
				action = "update"
			}
			eventID, note, synced := m.syncTask(ctx, merged, action, planDate)
			if eventID != "" {
				merged.ExternalEventID = eventID
			}
			if synced {
				result.Synced++
			} else if note != "" && note != syncSkippedNote {
				result.SyncErrors = append(result.SyncErrors, merged.Title+": "+note)
			}
		}

		if hasOld {
			final[idx] = merged
			result.Updated++
		} else {
			final = append(final, merged)
			result.Added++
		}
	}
	sortByStart(final, planDate)

	if err := m.store.Write(path, final); err != nil {
		return result, err
	}
	m.countPlanWrite()
	result.Total = len(final)
	return result, nil
}

// UpdateSchedule moves or inserts one task. The reference resolves by id,
// by exact title, or — when it is a positive integer string — by 1-based
// position in the current start-sorted order. Overlaps surface as a
// ConflictError unless forced; forcing removes the conflicting tasks (with
// calendar deletes) before applying the change.
func (m *Manager) UpdateSchedule(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	now := m.now()
	planDate, err := m.determineUpdateDate(req.NewStart, req.NewEnd, req.TargetDate, now)
	if err != nil {
		return UpdateResult{}, err
	}
	dateStr := planDate.Format(timeparse.LayoutDate)

	unlock := m.store.Lock(dateStr)
	defer unlock()

	tasks, path, err := m.store.Load(dateStr, true)
	if err != nil {
		return UpdateResult{}, err
	}

	start, okStart := timeparse.Normalize(req.NewStart, planDate)
	end, okEnd := timeparse.Normalize(req.NewEnd, planDate)
	if !okStart || !okEnd {
		return UpdateResult{}, validationErrorf("unable to parse time: %s -> %s", req.NewStart, req.NewEnd)
	}
	if !timeparse.SameDate(start, planDate) || !timeparse.SameDate(end, planDate) {
		return UpdateResult{}, validationErrorf("times must fall on %s", dateStr)
	}
	if !end.After(start) {
		return UpdateResult{}, validationErrorf("end time must be after start time")
	}
	if start.Before(now) {
		return UpdateResult{}, validationErrorf("new start time %s is earlier than now", start.Format("15:04"))
	}

	targetIdx := findTask(tasks, req.Ref, planDate)
	excludeKey := ""
	if targetIdx >= 0 {
		excludeKey = tasks[targetIdx].Key()
	}

	conflicts := FindConflicts(tasks, start, end, planDate, excludeKey)
	if len(conflicts) > 0 && !req.Force {
		return UpdateResult{}, &ConflictError{Titles: conflictTitles(conflicts)}
	}
	if len(conflicts) > 0 {
		for _, c := range conflicts {
			// Drop the shadowed calendar events so the forced task does not
			// end up duplicated externally.
			m.syncTask(ctx, c, "delete", planDate)
		}
		tasks = removeTasks(tasks, conflicts)
		targetIdx = indexByKey(tasks, excludeKey)
	}

	startText := start.Format(timeparse.LayoutDateTime)
	endText := end.Format(timeparse.LayoutDateTime)
	created := false

	if targetIdx >= 0 {
		tasks[targetIdx].Start = startText
		tasks[targetIdx].End = endText
		if strings.TrimSpace(req.NewTitle) != "" {
			tasks[targetIdx].Title = strings.TrimSpace(req.NewTitle)
		}
	} else {
		if strings.TrimSpace(req.NewTitle) == "" {
			return UpdateResult{}, notFoundErrorf("task %q; provide new_title to create a new task", req.Ref)
		}
		tasks = append(tasks, Task{
			ID:     req.Ref,
			Title:  strings.TrimSpace(req.NewTitle),
			Start:  startText,
			End:    endText,
			Type:   TypeWork,
			Status: StatusPending,
		})
		targetIdx = len(tasks) - 1
		created = true
	}

	action := "update"
	if created || tasks[targetIdx].ExternalEventID == "" {
		action = "create"
	}
	eventID, note, _ := m.syncTask(ctx, tasks[targetIdx], action, planDate)
	if eventID != "" {
		tasks[targetIdx].ExternalEventID = eventID
	}
	updated := tasks[targetIdx]

	sortByStart(tasks, planDate)
	if err := m.store.Write(path, tasks); err != nil {
		return UpdateResult{}, err
	}
	m.countPlanWrite()

	return UpdateResult{
		Task:     updated,
		Created:  created,
		Replaced: len(conflicts),
		SyncNote: note,
	}, nil
}

// ShiftRemaining extends the anchor task's end by delayMinutes and pushes
// every task starting at or after the anchor's original end forward by the
// same amount. Tasks already underway next to the anchor are left alone so
// shifts do not compound. A zero delay changes nothing and writes nothing.
func (m *Manager) ShiftRemaining(ctx context.Context, anchorRef string, delayMinutes int, targetDate string) (ShiftResult, error) {
	result := ShiftResult{Anchor: anchorRef, DelayMinutes: delayMinutes}
	if delayMinutes == 0 {
		return result, nil
	}

	now := m.now()
	planDate, ok := timeparse.ParsePlanDate(targetDate, now)
	if !ok {
		return result, validationErrorf("unable to parse target date: %s", targetDate)
	}
	dateStr := planDate.Format(timeparse.LayoutDate)

	unlock := m.store.Lock(dateStr)
	defer unlock()

	tasks, path, err := m.store.Load(dateStr, false)
	if err != nil {
		return result, err
	}

	anchorIdx := findTask(tasks, anchorRef, planDate)
	if anchorIdx < 0 {
		return result, notFoundErrorf("task %q", anchorRef)
	}
	anchor := &tasks[anchorIdx]

	anchorEnd, okEnd := timeparse.Normalize(anchor.End, planDate)
	if !okEnd {
		if startDt, okStart := timeparse.Normalize(anchor.Start, planDate); okStart {
			anchorEnd = startDt
		} else {
			anchorEnd = now
		}
	}
	delta := time.Duration(delayMinutes) * time.Minute

	anchor.End = formatLike(anchor.End, anchorEnd.Add(delta), planDate, now)
	anchorKey := anchor.Key()

	for i := range tasks {
		if tasks[i].Key() == anchorKey {
			continue
		}
		startDt, okStart := timeparse.Normalize(tasks[i].Start, planDate)
		if !okStart {
			continue
		}
		// Anything already running alongside the anchor keeps its slot.
		if startDt.Before(anchorEnd) {
			continue
		}
		tasks[i].Start = formatLike(tasks[i].Start, startDt.Add(delta), planDate, now)
		if endDt, okE := timeparse.Normalize(tasks[i].End, planDate); okE {
			tasks[i].End = formatLike(tasks[i].End, endDt.Add(delta), planDate, now)
		}
		result.Shifted++
	}

	if err := m.store.Write(path, tasks); err != nil {
		return result, err
	}
	m.countPlanWrite()
	result.Changed = true
	return result, nil
}

// CompleteTask marks a task done in today's plan (falling back to the most
// recent plan file when today's does not exist yet). The reference matches
// by id or by title substring, case-insensitively.
func (m *Manager) CompleteTask(ref string) (Task, error) {
	now := m.now()
	dateStr := now.Format(timeparse.LayoutDate)
	if _, _, err := m.store.Load(dateStr, false); errors.Is(err, ErrNotFound) {
		if latest := m.store.LatestDate(); latest != "" {
			dateStr = latest
		}
	}

	unlock := m.store.Lock(dateStr)
	defer unlock()

	tasks, path, err := m.store.Load(dateStr, false)
	if err != nil {
		return Task{}, err
	}

	idx := locateByIDOrTitle(tasks, ref)
	if idx < 0 {
		return Task{}, notFoundErrorf("task %q", ref)
	}
	tasks[idx].Status = StatusDone
	tasks[idx].CompletedAt = now.Format(time.RFC3339)

	if err := m.store.Write(path, tasks); err != nil {
		return Task{}, err
	}
	m.countPlanWrite()
	return tasks[idx], nil
}

// DaySummaryFor reports completion counts and total timeboxed hours for a
// date's plan.
func (m *Manager) DaySummaryFor(targetDate string) (DaySummary, error) {
	now := m.now()
	planDate, ok := timeparse.ParsePlanDate(targetDate, now)
	if !ok {
		return DaySummary{}, validationErrorf("unable to parse target date: %s", targetDate)
	}
	dateStr := planDate.Format(timeparse.LayoutDate)

	unlock := m.store.Lock(dateStr)
	tasks, _, err := m.store.Load(dateStr, false)
	unlock()
	if err != nil {
		return DaySummary{}, err
	}

	summary := DaySummary{Date: dateStr, Total: len(tasks)}
	var minutes float64
	for _, p := range parseAll(tasks, planDate) {
		if p.Status.Finished() {
			summary.Done++
		}
		if p.hasTimes && p.end.After(p.start) {
			minutes += p.end.Sub(p.start).Minutes()
		}
	}
	summary.FocusedHours = minutes / 60
	return summary, nil
}

// -- internals --

// matchTask locates the stored task an incoming one refers to: by id when
// the incoming task carries one, otherwise by title.
func matchTask(tasks []Task, in Task) int {
	if in.ID != "" {
		for i := range tasks {
			if tasks[i].ID == in.ID {
				return i
			}
		}
		return -1
	}
	for i := range tasks {
		if tasks[i].Title == in.Title {
			return i
		}
	}
	return -1
}

func mergeTask(old, incoming Task, hasOld bool) Task {
	if !hasOld {
		merged := incoming
		if merged.Type == "" {
			merged.Type = TypeWork
		}
		if merged.Status == "" {
			merged.Status = StatusPending
		}
		return merged
	}

	merged := old
	merged.Title = incoming.Title
	merged.Start = incoming.Start
	merged.End = incoming.End
	if incoming.ID != "" {
		merged.ID = incoming.ID
	}
	if incoming.Type != "" {
		merged.Type = incoming.Type
	}
	// Status survives a merge unless the incoming record explicitly sets it.
	if incoming.Status != "" {
		merged.Status = incoming.Status
	} else if merged.Status == "" {
		merged.Status = StatusPending
	}
	if incoming.ExternalEventID != "" {
		merged.ExternalEventID = incoming.ExternalEventID
	}
	return merged
}

const syncSkippedNote = "sync skipped"

// syncTask propagates one task change to the calendar. It never fails the
// caller: the returned note becomes a message suffix and synced reports
// whether the backend acknowledged the call.
func (m *Manager) syncTask(ctx context.Context, t Task, action string, planDate time.Time) (eventID, note string, synced bool) {
	if m.calendar == nil {
		m.countSync(action, "skipped")
		return "", syncSkippedNote, false
	}

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	if action == "delete" {
		if t.ExternalEventID == "" {
			m.countSync(action, "skipped")
			return "", "", false
		}
		err := m.calendar.Delete(ctx, t.ExternalEventID)
		return m.syncOutcome(action, "", err)
	}

	start, okStart := timeparse.Normalize(t.Start, planDate)
	end, okEnd := timeparse.Normalize(t.End, planDate)
	if !okStart || !okEnd {
		m.countSync(action, "skipped")
		return "", "", false
	}

	if action == "update" && t.ExternalEventID != "" {
		id, err := m.calendar.Update(ctx, t.ExternalEventID, t.Title, start, end)
		if err == nil || errors.Is(err, calendar.ErrUnavailable) {
			return m.syncOutcome(action, id, err)
		}
		// The external event may have been deleted out from under us;
		// recreating recovers a stale or invalid id.
		id, err = m.calendar.Create(ctx, t.Title, start, end)
		return m.syncOutcome("create", id, err)
	}

	id, err := m.calendar.Create(ctx, t.Title, start, end)
	return m.syncOutcome("create", id, err)
}

func (m *Manager) syncOutcome(action, eventID string, err error) (string, string, bool) {
	switch {
	case err == nil:
		m.countSync(action, "ok")
		return eventID, "synced to calendar", true
	case errors.Is(err, calendar.ErrUnavailable):
		m.countSync(action, "skipped")
		return "", syncSkippedNote, false
	default:
		m.countSync(action, "failed")
		return "", "calendar sync failed: " + err.Error(), false
	}
}

func (m *Manager) countSync(action, outcome string) {
	if m.metrics != nil {
		m.metrics.CalendarSyncs.WithLabelValues(action, outcome).Inc()
	}
}

func (m *Manager) countPlanWrite() {
	if m.metrics != nil {
		m.metrics.PlanWrites.Inc()
	}
}

// determineMergeDate resolves which day's plan a batch touches. Explicit
// dates inside the tasks' times win when no target date is given; a batch
// spanning several dates is rejected.
func (m *Manager) determineMergeDate(targetDate string, batch []Task, now time.Time) (time.Time, error) {
	planDate, ok := timeparse.ParsePlanDate(targetDate, now)
	if !ok {
		return time.Time{}, validationErrorf("unable to parse target date: %s (expected YYYY-MM-DD or tomorrow)", targetDate)
	}

	var explicit []time.Time
	for _, task := range batch {
		for _, raw := range []string{task.Start, task.End} {
			if d, found := timeparse.ExtractDate(raw, now.Location()); found && !containsDate(explicit, d) {
				explicit = append(explicit, d)
			}
		}
	}
	if len(explicit) > 0 {
		if strings.TrimSpace(targetDate) == "" {
			planDate = explicit[0]
		}
		for _, d := range explicit {
			if !timeparse.SameDate(d, planDate) {
				return time.Time{}, validationErrorf("tasks span multiple dates: %s; split them or set a single target date",
					joinDates(explicit))
			}
		}
	}
	return planDate, nil
}

func (m *Manager) determineUpdateDate(newStart, newEnd, targetDate string, now time.Time) (time.Time, error) {
	planDate, ok := timeparse.ParsePlanDate(targetDate, now)
	if !ok {
		return time.Time{}, validationErrorf("unable to parse target date: %s", targetDate)
	}

	var explicit []time.Time
	for _, raw := range []string{newStart, newEnd} {
		if d, found := timeparse.ExtractDate(raw, now.Location()); found {
			explicit = append(explicit, d)
		}
	}
	if len(explicit) > 0 {
		base := explicit[0]
		if strings.TrimSpace(targetDate) == "" {
			planDate = base
		}
		for _, d := range explicit {
			if !timeparse.SameDate(d, planDate) {
				return time.Time{}, validationErrorf("start/end times are not on the same day; adjust or set a target date")
			}
		}
	}
	return planDate, nil
}

// findTask resolves a task reference: exact id match, exact title match, or
// a positive integer treated as a 1-based position in the current
// start-sorted order. Index lookups intentionally follow the live sort
// order so they match what list output showed.
func findTask(tasks []Task, ref string, planDate time.Time) int {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1
	}
	for i, t := range tasks {
		if t.ID == ref || t.Title == ref {
			return i
		}
	}
	if n, err := parsePositiveInt(ref); err == nil {
		sorted := parseAll(tasks, planDate)
		if n >= 1 && n <= len(sorted) {
			return sorted[n-1].index
		}
	}
	return -1
}

func locateByIDOrTitle(tasks []Task, ref string) int {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return -1
	}
	for i, t := range tasks {
		if strings.ToLower(t.ID) == ref {
			return i
		}
	}
	for i, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), ref) {
			return i
		}
	}
	return -1
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a positive integer: %q", s)
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return 0, fmt.Errorf("not a positive integer: %q", s)
	}
	return n, nil
}

func removeTasks(tasks []Task, drop []Task) []Task {
	dropKeys := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropKeys[d.Key()] = true
	}
	out := tasks[:0]
	for _, t := range tasks {
		if dropKeys[t.Key()] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func indexByKey(tasks []Task, key string) int {
	if key == "" {
		return -1
	}
	for i, t := range tasks {
		if t.Key() == key {
			return i
		}
	}
	return -1
}

// formatLike writes an instant back in the same shape the field had: full
// date+time when the original carried a date (or the plan is not today's),
// bare clock time otherwise.
func formatLike(original string, t time.Time, planDate, now time.Time) string {
	hasDate := len(original) >= 10 && strings.Contains(original[:10], "-")
	if hasDate || !timeparse.SameDate(planDate, now) {
		return t.Format(timeparse.LayoutDateTime)
	}
	return t.Format("15:04")
}

func summaryLines(tasks []Task, planDate time.Time, alwaysShowStatus bool) []string {
	parsed := parseAll(tasks, planDate)
	lines := make([]string, 0, len(parsed))
	for i, p := range parsed {
		startText, endText := "-", "-"
		if !p.start.IsZero() {
			startText = p.start.Format("15:04")
		} else if p.Start != "" {
			startText = p.Start
		}
		if !p.end.IsZero() {
			endText = p.end.Format("15:04")
		} else if p.End != "" {
			endText = p.End
		}

		duration := ""
		if p.hasTimes {
			if mins := int(p.end.Sub(p.start).Minutes()); mins > 0 {
				duration = fmt.Sprintf(" (%d min)", mins)
			}
		}

		title := p.Title
		if title == "" {
			title = fmt.Sprintf("Task %d", i+1)
		}
		status := p.Status
		if status == "" {
			status = StatusPending
		}
		statusMark := ""
		if alwaysShowStatus || status != StatusPending {
			statusMark = fmt.Sprintf(" [%s]", status)
		}
		lines = append(lines, fmt.Sprintf("%d. %s-%s%s | %s%s", i+1, startText, endText, duration, title, statusMark))
	}
	return lines
}

func containsDate(dates []time.Time, d time.Time) bool {
	for _, existing := range dates {
		if timeparse.SameDate(existing, d) {
			return true
		}
	}
	return false
}

func joinDates(dates []time.Time) string {
	texts := make([]string, 0, len(dates))
	for _, d := range dates {
		texts = append(texts, d.Format(timeparse.LayoutDate))
	}
	sort.Strings(texts)
	return strings.Join(texts, ", ")
}
