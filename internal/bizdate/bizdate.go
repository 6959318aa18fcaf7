// Package bizdate computes the business date used to bucket a day's ledger.
// The grid and the nightly reset job both go through Calendar so they agree
// on which rows belong to "today".
package bizdate

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/Skarath13/cards/internal/clock"
)

const (
	DefaultTimezone = "America/Los_Angeles"
	DateLayout      = "2006-01-02"
)

// Calendar resolves "now" in a fixed business time zone.
type Calendar struct {
	loc   *time.Location
	clock clock.Clock
}

// New returns a Calendar for the named IANA zone.
func New(timezone string, c clock.Clock) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("bizdate: load location %q: %w", timezone, err)
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Calendar{loc: loc, clock: c}, nil
}

// MustNew is New for static configuration; it panics on an unknown zone.
func MustNew(timezone string, c clock.Clock) *Calendar {
	cal, err := New(timezone, c)
	if err != nil {
		panic(err)
	}
	return cal
}

// Today returns the current business date as YYYY-MM-DD.
func (c *Calendar) Today() string {
	return c.DateOf(c.clock.Now())
}

// DateOf returns the business date t falls on.
func (c *Calendar) DateOf(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

// LocalTime returns the current wall-clock time in the business zone as HH:MM.
func (c *Calendar) LocalTime() string {
	return c.clock.Now().In(c.loc).Format("15:04")
}

// Now returns the current instant from the underlying clock.
func (c *Calendar) Now() time.Time {
	return c.clock.Now()
}

// Clock returns the clock the calendar reads.
func (c *Calendar) Clock() clock.Clock {
	return c.clock
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Valid reports whether s is a well-formed business date.
func Valid(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// Display12h renders a stored "HH:MM" cell as "3:04 PM". Anything that does
// not parse is returned unchanged.
func Display12h(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}
