package bizdate

import (
	"testing"
	"time"

	"github.com/Skarath13/cards/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToday_UsesBusinessZoneNotUTC(t *testing.T) {
	// 05:00 UTC on the 20th is still the evening of the 19th in Los Angeles.
	mc := clock.NewMock(time.Date(2026, 10, 20, 5, 0, 0, 0, time.UTC))
	cal, err := New("America/Los_Angeles", mc)
	require.NoError(t, err)

	assert.Equal(t, "2026-10-19", cal.Today())
	assert.Equal(t, "22:00", cal.LocalTime())

	mc.Advance(2 * time.Hour)
	assert.Equal(t, "2026-10-20", cal.Today())
}

func TestNew_DefaultsAndErrors(t *testing.T) {
	cal, err := New("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimezone, cal.Location().String())

	_, err = New("Mars/Olympus_Mons", nil)
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("2026-01-31"))
	assert.False(t, Valid("1/31/2026"))
	assert.False(t, Valid(""))
}

func TestDisplay12h(t *testing.T) {
	assert.Equal(t, "2:05 PM", Display12h("14:05"))
	assert.Equal(t, "12:00 AM", Display12h("00:00"))
	assert.Equal(t, "9:30 AM", Display12h("09:30"))
	assert.Equal(t, "after lunch", Display12h("after lunch"))
	assert.Equal(t, "", Display12h(""))
}
