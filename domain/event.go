package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a notable progression transition.
type EventKind string

const (
	EventLevelUp             EventKind = "progression.level_up"
	EventAchievementUnlocked EventKind = "progression.achievement_unlocked"
)

// ProgressEvent is emitted after a committed toggle for every transition the
// caller should surface.
type ProgressEvent struct {
	ID          string         `json:"id"`
	Kind        EventKind      `json:"kind"`
	UserID      string         `json:"user_id"`
	TaskID      string         `json:"task_id"`
	Level       int            `json:"level,omitempty"`
	Achievement AchievementKey `json:"achievement,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Transitions is the report returned with every toggle.
type Transitions struct {
	LeveledUp       bool             `json:"leveled_up"`
	PreviousLevel   int              `json:"previous_level"`
	NewLevel        int              `json:"new_level"`
	NewAchievements []AchievementKey `json:"new_achievements"`
}

func (t Transitions) IsEmpty() bool {
	return !t.LeveledUp && len(t.NewAchievements) == 0
}

// Events expands the report into publishable events.
func (t Transitions) Events(userID, taskID string, at time.Time) []ProgressEvent {
	var events []ProgressEvent
	if t.LeveledUp {
		events = append(events, ProgressEvent{
			ID:         uuid.NewString(),
			Kind:       EventLevelUp,
			UserID:     userID,
			TaskID:     taskID,
			Level:      t.NewLevel,
			OccurredAt: at.UTC(),
		})
	}
	for _, key := range t.NewAchievements {
		events = append(events, ProgressEvent{
			ID:          uuid.NewString(),
			Kind:        EventAchievementUnlocked,
			UserID:      userID,
			TaskID:      taskID,
			Achievement: key,
			OccurredAt:  at.UTC(),
		})
	}
	return events
}
