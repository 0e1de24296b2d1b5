package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/questlog/domain"
)

func day(d int) domain.Day {
	return domain.NewDay(2026, time.March, d)
}

func completeOn(t *testing.T, l domain.Ledger, days ...int) domain.Ledger {
	t.Helper()
	task := newTask(t, domain.PriorityLow)
	for _, d := range days {
		l = domain.ApplyCompletion(l, task, day(d))
	}
	return l
}

func TestStreak_ContiguousThenGap(t *testing.T) {
	l := completeOn(t, domain.NewLedger("user-1"), 1, 2, 3)
	assert.Equal(t, 3, l.Streak)
	assert.Equal(t, 3, l.LongestStreak)

	l = completeOn(t, l, 5)
	assert.Equal(t, 1, l.Streak)
	assert.Equal(t, 3, l.LongestStreak)
	assert.True(t, l.LastTaskDate.Equal(day(5)))
}

func TestStreak_SameDay(t *testing.T) {
	l := completeOn(t, domain.NewLedger("user-1"), 1, 1)
	assert.Equal(t, 1, l.Streak)
	assert.Equal(t, 2, l.TasksCompleted)
}

func TestStreak_OutOfOrderDayIsIgnored(t *testing.T) {
	l := completeOn(t, domain.NewLedger("user-1"), 4, 5)
	l = completeOn(t, l, 2)

	assert.Equal(t, 2, l.Streak)
	assert.True(t, l.LastTaskDate.Equal(day(5)))
}

func TestStreak_LongestNeverShrinks(t *testing.T) {
	l := completeOn(t, domain.NewLedger("user-1"), 1, 2, 3, 4, 10, 11)
	assert.Equal(t, 2, l.Streak)
	assert.Equal(t, 4, l.LongestStreak)
}

func TestStreak_AcrossMonthBoundary(t *testing.T) {
	l := domain.NewLedger("user-1")
	task := newTask(t, domain.PriorityLow)
	l = domain.ApplyCompletion(l, task, domain.NewDay(2026, time.February, 28))
	l = domain.ApplyCompletion(l, task, domain.NewDay(2026, time.March, 1))
	assert.Equal(t, 2, l.Streak)
}
