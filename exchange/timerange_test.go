package exchange

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSplitRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		g := []Granularity{OneMinute, FiveMinutes, FifteenMinutes, OneHour, SixHours, OneDay}[rnd.Intn(6)]
		maxSpan := g.MaxSpan(1 + rnd.Intn(300))
		start := epoch.Add(time.Duration(rnd.Int63n(int64(365 * 24 * time.Hour))))
		end := start.Add(time.Duration(rnd.Int63n(int64(40 * maxSpan))))
		whole := TimeRange{Start: start, End: end}

		ranges, err := whole.Split(maxSpan)
		require.NoError(t, err)

		if whole.Empty() {
			assert.Empty(t, ranges)
			continue
		}

		joined, err := Join(ranges)
		require.NoError(t, err, "sub-ranges of %s must be contiguous", whole)
		assert.True(t, joined.Start.Equal(whole.Start))
		assert.True(t, joined.End.Equal(whole.End))

		var total time.Duration

		for j, r := range ranges {
			assert.False(t, r.Empty(), "sub-range %d of %s is empty", j, whole)
			assert.LessOrEqual(t, r.Span(), maxSpan)

			if j < len(ranges)-1 {
				assert.Equal(t, maxSpan, r.Span())
			}

			total += r.Span()
		}

		assert.Equal(t, whole.Span(), total, "sub-ranges must neither overlap nor leave gaps")
	}
}

func TestSplitExactlyOneSpan(t *testing.T) {
	maxSpan := OneMinute.MaxSpan(300)
	whole := TimeRange{Start: epoch, End: epoch.Add(maxSpan)}

	ranges, err := whole.Split(maxSpan)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, whole, ranges[0])

	ranges, err = TimeRange{Start: epoch, End: epoch.Add(maxSpan + time.Second)}.Split(maxSpan)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, time.Second, ranges[1].Span())
}

func TestSplitNinetyDaysOfMinutes(t *testing.T) {
	whole := TimeRange{Start: epoch, End: epoch.Add(90 * 24 * time.Hour)}

	ranges, err := whole.Split(OneMinute.MaxSpan(300))
	require.NoError(t, err)
	assert.Len(t, ranges, 90*1440/300)
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	_, err := TimeRange{Start: epoch, End: epoch.Add(-time.Minute)}.Split(time.Hour)
	assert.Error(t, err)

	_, err = TimeRange{Start: epoch, End: epoch.Add(time.Minute)}.Split(0)
	assert.Error(t, err)

	_, err = NewTimeRange(epoch, epoch.Add(-time.Second))
	assert.Error(t, err)
}

func TestJoinDetectsGapsAndOverlaps(t *testing.T) {
	_, err := Join([]TimeRange{
		{Start: epoch, End: epoch.Add(time.Hour)},
		{Start: epoch.Add(2 * time.Hour), End: epoch.Add(3 * time.Hour)},
	})
	assert.Error(t, err)

	_, err = Join([]TimeRange{
		{Start: epoch, End: epoch.Add(time.Hour)},
		{Start: epoch.Add(30 * time.Minute), End: epoch.Add(3 * time.Hour)},
	})
	assert.Error(t, err)

	_, err = Join(nil)
	assert.Error(t, err)
}

func TestContainsIsHalfOpen(t *testing.T) {
	r := TimeRange{Start: epoch, End: epoch.Add(time.Minute)}

	assert.True(t, r.Contains(epoch))
	assert.True(t, r.Contains(epoch.Add(59*time.Second)))
	assert.False(t, r.Contains(epoch.Add(time.Minute)))
	assert.False(t, r.Contains(epoch.Add(-time.Nanosecond)))
}
