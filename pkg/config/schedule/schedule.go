package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/tauraamui/xerror"
)

// Time is a time of day, stored as the offset from midnight.
type Time time.Duration

const stLayout = "15:04:05"

func ParseTime(value string) (Time, error) {
	nt, err := time.Parse(stLayout, value)
	if err != nil {
		return 0, xerror.Errorf("invalid schedule time %q: %w", value, err)
	}
	return At(nt.Hour(), nt.Minute(), nt.Second()), nil
}

func At(hour, minute, second int) Time {
	return Time(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

func (st *Time) UnmarshalJSON(b []byte) error {
	return st.parse(strings.Trim(string(b), `"`))
}

func (st Time) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", st.String())), nil
}

func (st *Time) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return st.parse(s)
}

func (st Time) MarshalYAML() (interface{}, error) {
	return st.String(), nil
}

func (st *Time) parse(s string) error {
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	*st = t
	return nil
}

func (st Time) Hour() int {
	return int(time.Duration(st) / time.Hour)
}

func (st Time) Minute() int {
	return int(time.Duration(st) % time.Hour / time.Minute)
}

func (st Time) Second() int {
	return int(time.Duration(st) % time.Minute / time.Second)
}

// On places the time of day on the date of day, in day's location.
func (st Time) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), st.Hour(), st.Minute(), st.Second(), 0, day.Location())
}

func (st Time) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", st.Hour(), st.Minute(), st.Second())
}

type Week struct {
	Everyday  OnOffTimes `json:"everyday" yaml:"everyday"`
	Monday    OnOffTimes `json:"monday" yaml:"monday"`
	Tuesday   OnOffTimes `json:"tuesday" yaml:"tuesday"`
	Wednesday OnOffTimes `json:"wednesday" yaml:"wednesday"`
	Thursday  OnOffTimes `json:"thursday" yaml:"thursday"`
	Friday    OnOffTimes `json:"friday" yaml:"friday"`
	Saturday  OnOffTimes `json:"saturday" yaml:"saturday"`
	Sunday    OnOffTimes `json:"sunday" yaml:"sunday"`
}

func (w Week) Empty() bool {
	for _, d := range []OnOffTimes{w.Everyday, w.Monday, w.Tuesday, w.Wednesday, w.Thursday, w.Friday, w.Saturday, w.Sunday} {
		if !d.empty() {
			return false
		}
	}
	return true
}

// day returns the entries for a weekday, falling back to everyday
// when the weekday has none of its own.
func (w Week) day(d time.Weekday) OnOffTimes {
	var times OnOffTimes
	switch d {
	case time.Monday:
		times = w.Monday
	case time.Tuesday:
		times = w.Tuesday
	case time.Wednesday:
		times = w.Wednesday
	case time.Thursday:
		times = w.Thursday
	case time.Friday:
		times = w.Friday
	case time.Saturday:
		times = w.Saturday
	case time.Sunday:
		times = w.Sunday
	}
	if times.empty() {
		return w.Everyday
	}
	return times
}

type Schedule interface {
	IsOn(time.Time) bool
}

func NewSchedule(w Week) Schedule {
	return &schedule{week: w}
}

// Schedule contains each day of the week and it's off and on time entries
type schedule struct {
	week Week
}

// IsOn reports the state set by the most recent on or off entry at or
// before t. An empty schedule is always on.
func (s *schedule) IsOn(t time.Time) bool {
	if s.week.Empty() {
		return true
	}

	// eight days back so the same weekday a week ago is included
	for i := 0; i <= 7; i++ {
		day := t.AddDate(0, 0, -i)
		if state, ok := latestState(t, day, s.week.day(day.Weekday())); ok {
			return state
		}
	}

	return true
}

func latestState(t, day time.Time, times OnOffTimes) (state bool, found bool) {
	var latest time.Time
	consider := func(st *Time, on bool) {
		if st == nil {
			return
		}
		at := st.On(day)
		if at.After(t) {
			return
		}
		if !found || !at.Before(latest) {
			latest, state, found = at, on, true
		}
	}
	consider(times.On, true)
	consider(times.Off, false)
	return state, found
}

// OnOffTimes for loading up on off time entries
type OnOffTimes struct {
	Off *Time `json:"off" yaml:"off"`
	On  *Time `json:"on" yaml:"on"`
}

func (o OnOffTimes) empty() bool {
	return o.On == nil && o.Off == nil
}
