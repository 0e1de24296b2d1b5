package domain

// AchievementKey is the stable identifier of an achievement.
type AchievementKey string

const (
	AchievementFirstSteps      AchievementKey = "first_steps"
	AchievementGettingStarted  AchievementKey = "getting_started"
	AchievementTaskMaster      AchievementKey = "task_master"
	AchievementStreakStarter   AchievementKey = "streak_starter"
	AchievementConsistencyKing AchievementKey = "consistency_king"
	AchievementXPHunter        AchievementKey = "xp_hunter"
	AchievementDailyWarrior    AchievementKey = "daily_warrior"
	AchievementLegendary       AchievementKey = "legendary"
)

// Metric names the snapshot value a rule is measured against.
type Metric string

const (
	MetricTasksCompleted Metric = "tasks_completed"
	MetricStreak         Metric = "streak"
	MetricXP             Metric = "xp"
	MetricLevel          Metric = "level"
	MetricCompletedToday Metric = "completed_today"
)

// Snapshot is the evaluator input. CompletedToday is counted by the caller
// from task records because the ledger keeps no per-day log.
type Snapshot struct {
	Ledger         Ledger
	CompletedToday int
}

func (s Snapshot) value(m Metric) int {
	switch m {
	case MetricTasksCompleted:
		return s.Ledger.TasksCompleted
	case MetricStreak:
		return s.Ledger.Streak
	case MetricXP:
		return s.Ledger.XP
	case MetricLevel:
		return s.Ledger.Level
	case MetricCompletedToday:
		return s.CompletedToday
	default:
		return 0
	}
}

// AchievementRule unlocks once Metric reaches Threshold.
type AchievementRule struct {
	Key         AchievementKey
	Title       string
	Description string
	Metric      Metric
	Threshold   int
}

// AchievementStatus is the evaluated state of one rule.
type AchievementStatus struct {
	Key         AchievementKey `json:"key"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Unlocked    bool           `json:"unlocked"`
	Progress    int            `json:"progress"`
	Total       int            `json:"total"`
}

var achievementRules = []AchievementRule{
	{AchievementFirstSteps, "First Steps", "Complete your first task", MetricTasksCompleted, 1},
	{AchievementGettingStarted, "Getting Started", "Complete 5 tasks", MetricTasksCompleted, 5},
	{AchievementTaskMaster, "Task Master", "Complete 25 tasks", MetricTasksCompleted, 25},
	{AchievementStreakStarter, "Streak Starter", "Maintain a 3-day streak", MetricStreak, 3},
	{AchievementConsistencyKing, "Consistency King", "Complete tasks 7 days in a row", MetricStreak, 7},
	{AchievementXPHunter, "XP Hunter", "Reach 100 total XP", MetricXP, 100},
	{AchievementDailyWarrior, "Daily Warrior", "Complete 5 tasks in a single day", MetricCompletedToday, 5},
	{AchievementLegendary, "Legendary", "Reach Level 10", MetricLevel, 10},
}

// AchievementRules returns a copy of the rule table in display order.
func AchievementRules() []AchievementRule {
	out := make([]AchievementRule, len(achievementRules))
	copy(out, achievementRules)
	return out
}

func (r AchievementRule) Evaluate(s Snapshot) AchievementStatus {
	v := s.value(r.Metric)
	progress := v
	if progress > r.Threshold {
		progress = r.Threshold
	}
	if progress < 0 {
		progress = 0
	}
	return AchievementStatus{
		Key:         r.Key,
		Title:       r.Title,
		Description: r.Description,
		Unlocked:    v >= r.Threshold,
		Progress:    progress,
		Total:       r.Threshold,
	}
}

// EvaluateAchievements runs every rule against the snapshot.
func EvaluateAchievements(s Snapshot) []AchievementStatus {
	out := make([]AchievementStatus, 0, len(achievementRules))
	for _, rule := range achievementRules {
		out = append(out, rule.Evaluate(s))
	}
	return out
}

// NewlyUnlocked lists keys unlocked in after but not in before, in rule
// order.
func NewlyUnlocked(before, after []AchievementStatus) []AchievementKey {
	was := make(map[AchievementKey]bool, len(before))
	for _, st := range before {
		was[st.Key] = st.Unlocked
	}
	keys := []AchievementKey{}
	for _, st := range after {
		if st.Unlocked && !was[st.Key] {
			keys = append(keys, st.Key)
		}
	}
	return keys
}

// AchievementSummary aggregates a set of statuses for display.
type AchievementSummary struct {
	Unlocked       int `json:"unlocked"`
	Remaining      int `json:"remaining"`
	CompletionRate int `json:"completion_rate"`
}

func SummarizeAchievements(statuses []AchievementStatus) AchievementSummary {
	var sum AchievementSummary
	for _, st := range statuses {
		if st.Unlocked {
			sum.Unlocked++
		} else {
			sum.Remaining++
		}
	}
	if total := len(statuses); total > 0 {
		sum.CompletionRate = (sum.Unlocked*100 + total/2) / total
	}
	return sum
}
