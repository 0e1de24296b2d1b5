package monitor

import "time"

// Status is the last observed state of every registered dependency.
type Status struct {
	Components map[string]bool `json:"components"`
	Outbox     int             `json:"outbox_pending"`
	LastCheck  time.Time       `json:"last_check"`
}

// Healthy reports whether every component answered its last check.
func (s Status) Healthy() bool {
	for _, ok := range s.Components {
		if !ok {
			return false
		}
	}
	return true
}
