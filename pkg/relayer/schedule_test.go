package relayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedule(t *testing.T) {
	_, err := NewSchedule(nil)
	assert.Error(t, err)
	_, err = NewSchedule([]time.Duration{time.Minute, time.Minute})
	assert.Error(t, err, "delays must strictly increase")
	_, err = NewSchedule([]time.Duration{0, time.Minute})
	assert.Error(t, err)

	s, err := NewSchedule([]time.Duration{time.Second, time.Minute})
	require.NoError(t, err)
	assert.Len(t, s, 2)
}

func TestSchedule_Next(t *testing.T) {
	var last time.Duration
	for failures := 1; failures <= len(testSchedule); failures++ {
		d, ok := testSchedule.Next(failures)
		require.True(t, ok, "failure %d", failures)
		assert.Greater(t, d, last)
		last = d
	}

	_, ok := testSchedule.Next(len(testSchedule) + 1)
	assert.False(t, ok)
	_, ok = testSchedule.Next(0)
	assert.False(t, ok)
}
