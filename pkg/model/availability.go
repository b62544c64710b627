package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the ISO week order, Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var timeOfDayRegex = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

func WeekdayOf(d time.Weekday) Weekday {
	switch d {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// ParseWeekday accepts full English day names in any case.
func ParseWeekday(s string) (Weekday, bool) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, w := range Weekdays {
		if w == d {
			return d, true
		}
	}
	return "", false
}

// ISOIndex returns 0 for Monday through 6 for Sunday.
func (d Weekday) ISOIndex() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// AvailabilityWindow is stored as minutes of the day and travels as HH:MM.
type AvailabilityWindow struct {
	Enabled     bool `bson:"enabled"`
	StartMinute int  `bson:"start_minute" validate:"min=0,max=1439"`
	EndMinute   int  `bson:"end_minute" validate:"min=0,max=1439,gtefield=StartMinute"`
}

type windowJSON struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

func (w AvailabilityWindow) MarshalJSON() ([]byte, error) {
	out := windowJSON{Enabled: w.Enabled}
	if w.Enabled || w.StartMinute != 0 || w.EndMinute != 0 {
		out.Start = FormatTimeOfDay(w.StartMinute)
		out.End = FormatTimeOfDay(w.EndMinute)
	}
	return json.Marshal(out)
}

// UnmarshalJSON is lenient about missing bounds; request payloads go
// through the providers validator, which reports every problem per field.
func (w *AvailabilityWindow) UnmarshalJSON(data []byte) error {
	var in windowJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*w = AvailabilityWindow{Enabled: in.Enabled}
	if in.Start != "" {
		m, err := ParseTimeOfDay(in.Start)
		if err != nil {
			return err
		}
		w.StartMinute = m
	}
	if in.End != "" {
		m, err := ParseTimeOfDay(in.End)
		if err != nil {
			return err
		}
		w.EndMinute = m
	}
	return nil
}

// Contains reports whether minute lies in the window, both ends inclusive.
func (w AvailabilityWindow) Contains(minute int) bool {
	return w.Enabled && minute >= w.StartMinute && minute <= w.EndMinute
}

type WeeklyAvailability map[Weekday]AvailabilityWindow

// Window returns the window for day; a missing day reads as disabled.
func (wa WeeklyAvailability) Window(day Weekday) (AvailabilityWindow, bool) {
	w, ok := wa[day]
	return w, ok
}

// Complete returns a copy holding all seven days, missing ones disabled.
func (wa WeeklyAvailability) Complete() WeeklyAvailability {
	out := make(WeeklyAvailability, len(Weekdays))
	for _, d := range Weekdays {
		out[d] = wa[d]
	}
	return out
}

func ParseTimeOfDay(s string) (int, error) {
	m := timeOfDayRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("time of day must be HH:MM (00:00-23:59), got %q", s)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes, nil
}

func FormatTimeOfDay(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func IsTimeOfDay(s string) bool {
	return timeOfDayRegex.MatchString(strings.TrimSpace(s))
}
