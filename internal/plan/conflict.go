package plan

import (
	"sort"
	"time"

	"github.com/dayflowhq/dayflow/internal/timeparse"
)

// FindConflicts returns the tasks whose windows overlap [start, end) under
// half-open semantics: touching endpoints do not conflict. excludeKey names
// the task being updated (if any) so it never conflicts with itself. Tasks
// with unparseable times cannot overlap and are skipped.
func FindConflicts(tasks []Task, start, end time.Time, planDate time.Time, excludeKey string) []Task {
	var conflicts []Task
	for _, task := range tasks {
		if excludeKey != "" && task.Key() == excludeKey {
			continue
		}
		taskStart, okStart := timeparse.Normalize(task.Start, planDate)
		taskEnd, okEnd := timeparse.Normalize(task.End, planDate)
		if !okStart || !okEnd {
			continue
		}
		if start.Before(taskEnd) && end.After(taskStart) {
			conflicts = append(conflicts, task)
		}
	}
	return conflicts
}

// conflictTitles names conflicting tasks for user-facing messages.
func conflictTitles(conflicts []Task) []string {
	titles := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		switch {
		case c.Title != "":
			titles = append(titles, c.Title)
		case c.ID != "":
			titles = append(titles, c.ID)
		default:
			titles = append(titles, "untitled task")
		}
	}
	return titles
}

// parseAll resolves each task's times against the plan date and returns the
// set sorted by start time; tasks without a parseable start sort last in
// their original order.
func parseAll(tasks []Task, planDate time.Time) []parsedTask {
	out := make([]parsedTask, len(tasks))
	for i, task := range tasks {
		p := parsedTask{Task: task, index: i}
		start, okStart := timeparse.Normalize(task.Start, planDate)
		end, okEnd := timeparse.Normalize(task.End, planDate)
		if okStart {
			p.start = start
		}
		if okEnd {
			p.end = end
		}
		p.hasTimes = okStart && okEnd
		out[i] = p
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.start.IsZero() && b.start.IsZero():
			return a.index < b.index
		case a.start.IsZero():
			return false
		case b.start.IsZero():
			return true
		default:
			return a.start.Before(b.start)
		}
	})
	return out
}

// sortByStart orders tasks chronologically in place, unparseable starts last.
func sortByStart(tasks []Task, planDate time.Time) {
	parsed := parseAll(tasks, planDate)
	for i, p := range parsed {
		tasks[i] = p.Task
	}
}
