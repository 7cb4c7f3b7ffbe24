package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const planFilePrefix = "daily_tasks_"

// Store owns the per-day plan files. Each calendar date maps to one JSON
// file holding the task list; reads and writes of a date are serialized by a
// per-date lock scoped to this Store instance (not cross-process).
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("plan dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plan dir: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the plan directory.
func (s *Store) Dir() string { return s.dir }

// ResolvePath returns the plan file path for an ISO date.
func (s *Store) ResolvePath(date string) string {
	return filepath.Join(s.dir, planFilePrefix+date+".json")
}

// Lock acquires the exclusive lock for a date's plan and returns the unlock
// function. Callers hold it across the full load-mutate-write sequence.
func (s *Store) Lock(date string) func() {
	s.mu.Lock()
	lock, ok := s.locks[date]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[date] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Load reads the task list for a date. A missing file yields an empty list
// when createIfMissing is set, otherwise ErrNotFound. Content that is not a
// JSON task array yields ErrParse.
func (s *Store) Load(date string, createIfMissing bool) ([]Task, string, error) {
	path := s.ResolvePath(date)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if createIfMissing {
				return []Task{}, path, nil
			}
			return nil, path, notFoundErrorf("plan file %s", path)
		}
		return nil, path, fmt.Errorf("read plan file %s: %w", path, err)
	}

	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, path, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return tasks, path, nil
}

// Write persists the task list atomically: the content lands in a temp file
// first and replaces the plan file via rename, so a crash mid-write never
// leaves a partial plan.
func (s *Store) Write(path string, tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".plan-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp plan file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp plan file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp plan file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace plan file %s: %w", path, err)
	}
	return nil
}

// LatestDate returns the most recent date that has a plan file, or "" when
// none exists. Used as a fallback when today's plan is not created yet.
func (s *Store) LatestDate() string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return ""
	}
	var dates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, planFilePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		dates = append(dates, strings.TrimSuffix(strings.TrimPrefix(name, planFilePrefix), ".json"))
	}
	if len(dates) == 0 {
		return ""
	}
	sort.Strings(dates)
	return dates[len(dates)-1]
}
