package domain

import (
	"fmt"
	"time"
)

// XPPerLevel is the width of one level band.
const XPPerLevel = 100

// Ledger is the per-user progression record. Level is always derived from
// XP; every mutation goes through ApplyCompletion or ApplyUncompletion and
// returns a new snapshot.
type Ledger struct {
	UserID         string    `json:"user_id"`
	XP             int       `json:"xp"`
	Level          int       `json:"level"`
	TasksCompleted int       `json:"tasks_completed"`
	Streak         int       `json:"streak"`
	LongestStreak  int       `json:"longest_streak"`
	LastTaskDate   Day       `json:"last_task_date"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LevelFor maps an XP total to its level.
func LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// NewLedger returns the zero-progress ledger for a user.
func NewLedger(userID string) Ledger {
	return Ledger{UserID: userID, Level: LevelFor(0)}
}

// ApplyCompletion credits the task reward and advances the streak.
func ApplyCompletion(l Ledger, task Task, today Day) Ledger {
	l.XP += task.XPReward
	l.TasksCompleted++
	l.Level = LevelFor(l.XP)
	l.Streak, l.LastTaskDate = advanceStreak(l.Streak, l.LastTaskDate, today)
	if l.Streak > l.LongestStreak {
		l.LongestStreak = l.Streak
	}
	return l
}

// ApplyUncompletion debits the task reward. XP and the completion count are
// clamped at zero; streak state is left alone.
func ApplyUncompletion(l Ledger, task Task) Ledger {
	l.XP -= task.XPReward
	if l.XP < 0 {
		l.XP = 0
	}
	l.TasksCompleted--
	if l.TasksCompleted < 0 {
		l.TasksCompleted = 0
	}
	l.Level = LevelFor(l.XP)
	return l
}

// Reset clears all progression while keeping identity and version.
func (l Ledger) Reset() Ledger {
	fresh := NewLedger(l.UserID)
	fresh.Version = l.Version
	fresh.CreatedAt = l.CreatedAt
	return fresh
}

// Validate checks a ledger read back from storage.
func (l Ledger) Validate() error {
	switch {
	case l.XP < 0:
		return l.violation("negative xp %d", l.XP)
	case l.TasksCompleted < 0:
		return l.violation("negative tasks_completed %d", l.TasksCompleted)
	case l.Streak < 0 || l.LongestStreak < 0:
		return l.violation("negative streak %d/%d", l.Streak, l.LongestStreak)
	case l.Level != LevelFor(l.XP):
		return l.violation("level %d inconsistent with xp %d", l.Level, l.XP)
	}
	return nil
}

func (l Ledger) violation(format string, args ...interface{}) error {
	return NewError(ErrCodeInvariantViolation,
		fmt.Sprintf("ledger %s: %s", l.UserID, fmt.Sprintf(format, args...)))
}

// LevelProgress describes the position of a ledger inside its level band.
type LevelProgress struct {
	Level     int `json:"level"`
	NextLevel int `json:"next_level"`
	XPInLevel int `json:"xp_in_level"`
	XPNeeded  int `json:"xp_needed"`
	Percent   int `json:"percent"`
}

// Progress reports how far the ledger is into the current level.
func (l Ledger) Progress() LevelProgress {
	level := LevelFor(l.XP)
	into := l.XP - (level-1)*XPPerLevel
	return LevelProgress{
		Level:     level,
		NextLevel: level + 1,
		XPInLevel: into,
		XPNeeded:  XPPerLevel,
		Percent:   into * 100 / XPPerLevel,
	}
}
