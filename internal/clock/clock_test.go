package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, hhmm string, weekday string) *Clock {
	t.Helper()
	layout := "2006-01-02 15:04"
	base := map[string]string{
		"Mon": "2024-01-08", "Sat": "2024-01-06", "Sun": "2024-01-07",
	}[weekday]
	tm, err := time.ParseInLocation(layout, base+" "+hhmm, mustLoc(t))
	require.NoError(t, err)
	c, err := NewFrozen("America/New_York", tm)
	require.NoError(t, err)
	return c
}

func mustLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestClassify_Weekend(t *testing.T) {
	c := at(t, "10:00", "Sat")
	assert.Equal(t, SessionWeekend, c.Classify())
}

func TestClassify_PreMarket(t *testing.T) {
	c := at(t, "07:00", "Mon")
	assert.Equal(t, SessionPreMarket, c.Classify())
}

func TestClassify_Open(t *testing.T) {
	c := at(t, "10:00", "Mon")
	assert.Equal(t, SessionOpen, c.Classify())
	assert.True(t, c.IsOpen())
}

func TestClassify_AfterHours(t *testing.T) {
	c := at(t, "17:00", "Mon")
	assert.Equal(t, SessionAfterHours, c.Classify())
}

func TestClassify_ClosedOvernight(t *testing.T) {
	c := at(t, "02:00", "Mon")
	assert.Equal(t, SessionClosed, c.Classify())
}

func TestValid_RejectsPreY2K(t *testing.T) {
	c, err := NewFrozen("America/New_York", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, c.Valid())
}

func TestTimeUntilNextOpen_ZeroWhenOpen(t *testing.T) {
	c := at(t, "10:00", "Mon")
	assert.Equal(t, time.Duration(0), c.TimeUntilNextOpen())
}

func TestTimeUntilNextClose_ZeroWhenClosed(t *testing.T) {
	c := at(t, "02:00", "Mon")
	assert.Equal(t, time.Duration(0), c.TimeUntilNextClose())
}
