package plan

import "time"

// Status tracks a task's lifecycle. Several spellings of "finished" exist in
// the wild plan files, so all of them are accepted on read.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDone      Status = "done"
	StatusCompleted Status = "completed"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether the status counts as done for day summaries.
func (s Status) Finished() bool {
	switch s {
	case StatusDone, StatusCompleted, StatusComplete:
		return true
	default:
		return false
	}
}

const (
	TypeWork  = "work"
	TypeChore = "chore"
	TypeBreak = "break"
)

// Task is one time-boxed unit of work inside a day's plan. Start and end are
// stored as text ("YYYY-MM-DD HH:MM" or bare "HH:MM") so hand-edited plan
// files keep working; parsing happens against the plan date.
type Task struct {
	ID              string `json:"id,omitempty"`
	Title           string `json:"title"`
	Start           string `json:"start"`
	End             string `json:"end"`
	Type            string `json:"type,omitempty"`
	Status          Status `json:"status,omitempty"`
	ExternalEventID string `json:"external_event_id,omitempty"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

// Key identifies a task within a plan: the id when present, else the title.
func (t Task) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Title
}

// MergeResult summarizes one CreateOrMergePlan batch.
type MergeResult struct {
	Date       string   `json:"date"`
	Added      int      `json:"added"`
	Updated    int      `json:"updated"`
	Total      int      `json:"total"`
	Skipped    []string `json:"skipped,omitempty"`
	Synced     int      `json:"synced"`
	SyncErrors []string `json:"sync_errors,omitempty"`
}

// UpdateResult summarizes one UpdateSchedule call.
type UpdateResult struct {
	Task     Task   `json:"task"`
	Created  bool   `json:"created"`
	Replaced int    `json:"replaced"`
	SyncNote string `json:"sync_note,omitempty"`
}

// ShiftResult summarizes one ShiftRemaining call.
type ShiftResult struct {
	Anchor       string `json:"anchor"`
	DelayMinutes int    `json:"delay_minutes"`
	Shifted      int    `json:"shifted"`
	Changed      bool   `json:"changed"`
}

// UpdateRequest carries the parameters of a single-task update or insert.
type UpdateRequest struct {
	Ref        string `json:"ref"`
	NewStart   string `json:"new_start"`
	NewEnd     string `json:"new_end"`
	NewTitle   string `json:"new_title,omitempty"`
	Force      bool   `json:"force,omitempty"`
	TargetDate string `json:"target_date,omitempty"`
}

// DaySummary reports the completion state of one day's plan.
type DaySummary struct {
	Date         string  `json:"date"`
	Done         int     `json:"done"`
	Total        int     `json:"total"`
	FocusedHours float64 `json:"focused_hours"`
}

type parsedTask struct {
	Task
	index    int
	start    time.Time
	end      time.Time
	hasTimes bool
}
