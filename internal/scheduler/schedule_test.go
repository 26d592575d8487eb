package scheduler

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimesOfDay(t *testing.T) {
	got, err := ParseTimesOfDay([]string{"18:00", " 06:30", "00:00"})
	require.NoError(t, err)
	assert.Equal(t, []TimeOfDay{{0, 0}, {6, 30}, {18, 0}}, got)
	assert.Equal(t, "06:30", got[1].String())

	for _, raw := range []string{"", "24:00", "12:60", "noon", "1:2:3"} {
		_, err := ParseTimeOfDay(raw)
		assert.ErrorIs(t, err, ErrInvalidTimeOfDay, raw)
	}
}

func TestNextDaily(t *testing.T) {
	slots := DefaultConfig().InventorySyncAt
	hk, err := time.LoadLocation("Asia/Hong_Kong")
	require.NoError(t, err)

	cases := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2024, 1, 10, 5, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC),
		},
		{
			name: "exact slot moves on",
			now:  time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "store timezone",
			now:  time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC),
			loc:  hk,
			want: time.Date(2024, 1, 11, 4, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextDaily(tc.now, slots, tc.loc)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}
