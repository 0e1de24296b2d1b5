package progression

import (
	"time"

	"github.com/fastygo/questlog/domain"
)

// ToggleResult is the outcome of one completion toggle.
type ToggleResult struct {
	Task        domain.Task        `json:"task"`
	Ledger      domain.Ledger      `json:"ledger"`
	Transitions domain.Transitions `json:"transitions"`
}

// Apply computes the state after toggling task at the given instant. It is
// pure: completedToday is the number of the user's tasks completed on the day
// of at before the toggle.
func Apply(task domain.Task, ledger domain.Ledger, completedToday int, at time.Time) ToggleResult {
	today := domain.DayOf(at)
	before := domain.Snapshot{Ledger: ledger, CompletedToday: completedToday}

	wasCompletedToday := task.Completed && task.CompletedAt != nil && today.Contains(*task.CompletedAt)

	next := task.Toggled(at)
	after := before
	if next.Completed {
		after.Ledger = domain.ApplyCompletion(ledger, task, today)
		after.CompletedToday++
	} else {
		after.Ledger = domain.ApplyUncompletion(ledger, task)
		if wasCompletedToday && after.CompletedToday > 0 {
			after.CompletedToday--
		}
	}

	unlocked := domain.NewlyUnlocked(
		domain.EvaluateAchievements(before),
		domain.EvaluateAchievements(after),
	)

	return ToggleResult{
		Task:   next,
		Ledger: after.Ledger,
		Transitions: domain.Transitions{
			LeveledUp:       after.Ledger.Level > ledger.Level,
			PreviousLevel:   ledger.Level,
			NewLevel:        after.Ledger.Level,
			NewAchievements: unlocked,
		},
	}
}
