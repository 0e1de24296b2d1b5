package domain

import (
	"strings"
	"time"
)

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var priorityRewards = map[Priority]int{
	PriorityLow:    10,
	PriorityMedium: 20,
	PriorityHigh:   30,
}

// ParsePriority validates a textual priority. Empty input maps to medium,
// the default of the task form.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PriorityMedium, nil
	}
	if !p.IsValid() {
		return "", ErrInvalidPriority
	}
	return p, nil
}

func (p Priority) IsValid() bool {
	_, ok := priorityRewards[p]
	return ok
}

// Reward is the XP granted for completing a task of this priority.
func (p Priority) Reward() int {
	return priorityRewards[p]
}

// Task represents a user-owned activity item. XPReward is fixed when the
// task is created and never recomputed.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	XPReward    int        `json:"xp_reward"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask validates the input and derives the reward. The ID is assigned by
// the store.
func NewTask(userID, title string, priority Priority) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if !priority.IsValid() {
		return nil, ErrInvalidPriority
	}
	if userID == "" {
		return nil, ErrInvalidPayload
	}
	return &Task{
		UserID:   userID,
		Title:    title,
		Priority: priority,
		XPReward: priority.Reward(),
	}, nil
}

func (t *Task) OwnedBy(userID string) bool {
	return t != nil && userID != "" && t.UserID == userID
}

// Toggled returns a copy of the task with the completion flag inverted.
// CompletedAt is set on false->true and cleared on true->false.
func (t Task) Toggled(at time.Time) Task {
	if t.Completed {
		t.Completed = false
		t.CompletedAt = nil
		return t
	}
	stamp := at.UTC()
	t.Completed = true
	t.CompletedAt = &stamp
	return t
}
