package domain

import (
	"encoding/json"
	"time"
)

// DayLayout is the textual form of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date on the UTC day boundary. The zero value means
// "no day recorded".
type Day struct {
	t time.Time
}

// DayOf returns the UTC calendar day containing t.
func DayOf(t time.Time) Day {
	if t.IsZero() {
		return Day{}
	}
	u := t.UTC()
	return Day{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// NewDay builds a day from its calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	if s == "" {
		return Day{}, nil
	}
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return Day{}, err
	}
	return Day{t: t}, nil
}

func (d Day) IsZero() bool { return d.t.IsZero() }

// Start is midnight UTC of the day.
func (d Day) Start() time.Time { return d.t }

// End is midnight UTC of the following day.
func (d Day) End() time.Time { return d.t.AddDate(0, 0, 1) }

func (d Day) AddDays(n int) Day {
	if d.IsZero() {
		return d
	}
	return Day{t: d.t.AddDate(0, 0, n)}
}

func (d Day) Equal(o Day) bool  { return d.t.Equal(o.t) }
func (d Day) Before(o Day) bool { return d.t.Before(o.t) }
func (d Day) After(o Day) bool  { return d.t.After(o.t) }

// Contains reports whether t falls on this day.
func (d Day) Contains(t time.Time) bool {
	return !d.IsZero() && DayOf(t).Equal(d)
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DayLayout)
}

func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Day{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
