package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery(t *testing.T) {
	s := Every(5 * time.Minute)
	now := time.Now()
	next := s.Next(now)

	assert.Equal(t, now.Add(5*time.Minute), next)
}

func TestEvery_MultipleNext(t *testing.T) {
	s := Every(time.Hour)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	next1 := s.Next(start)
	next2 := s.Next(next1)
	next3 := s.Next(next2)

	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), next1)
	assert.Equal(t, time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), next2)
	assert.Equal(t, time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), next3)
}

func TestParse_Cron(t *testing.T) {
	s, err := Parse("0 3 * * *") // every day at 3 AM
	require.NoError(t, err)

	from := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC), s.Next(from))
}

func TestParse_MultipleFields(t *testing.T) {
	s, err := Parse("30 14 * * 1-5") // weekdays at 2:30 PM
	require.NoError(t, err)

	from := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC) // Saturday
	assert.Equal(t, time.Date(2024, 1, 8, 14, 30, 0, 0, time.UTC), s.Next(from))
}

func TestParse_Descriptors(t *testing.T) {
	from := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	daily, err := Parse("@daily")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), daily.Next(from))

	every, err := Parse("@every 15m")
	require.NoError(t, err)
	assert.Equal(t, from.Add(15*time.Minute), every.Next(from))
}

func TestParse_BareDuration(t *testing.T) {
	s, err := Parse(" 90m ")
	require.NoError(t, err)

	from := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(90*time.Minute), s.Next(from))
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{"", "   ", "not a cron", "61 * * * *", "-5m", "0s"}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			assert.Error(t, err)
		})
	}
}
