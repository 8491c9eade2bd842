package exchange

import (
	"errors"
	"fmt"
	"time"
)

//
// TimeRange is the half-open window [Start, End) of a time-series request.
//
type TimeRange struct {
	Start time.Time
	End   time.Time
}

//
// NewTimeRange instantiates a time range and validates that it does not end before it starts.
//
func NewTimeRange(start time.Time, end time.Time) (TimeRange, error) {
	o := TimeRange{Start: start, End: end}

	return o, o.Validate()
}

func (o TimeRange) Validate() error {
	if o.End.Before(o.Start) {
		return fmt.Errorf("time range ends (%s) before it starts (%s)", o.End, o.Start)
	}

	return nil
}

func (o TimeRange) Span() time.Duration {
	return o.End.Sub(o.Start)
}

func (o TimeRange) Empty() bool {
	return !o.End.After(o.Start)
}

func (o TimeRange) IsZero() bool {
	return o.Start.IsZero() && o.End.IsZero()
}

//
// Contains returns whether or not the provided instant falls within the range.
//
func (o TimeRange) Contains(t time.Time) bool {
	return !t.Before(o.Start) && t.Before(o.End)
}

func (o TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", o.Start.UTC().Format(time.RFC3339), o.End.UTC().Format(time.RFC3339))
}

//
// Split decomposes the range into ordered, contiguous, non-overlapping sub-ranges that each span
// no more than maxSpan. Every sub-range but the last spans exactly maxSpan. An empty range yields
// no sub-ranges.
//
func (o TimeRange) Split(maxSpan time.Duration) ([]TimeRange, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	if maxSpan <= 0 {
		return nil, fmt.Errorf("cannot split a time range into spans of %s", maxSpan)
	}

	if o.Empty() {
		return nil, nil
	}

	count := int((o.Span() + maxSpan - 1) / maxSpan)
	ranges := make([]TimeRange, 0, count)

	for start := o.Start; start.Before(o.End); {
		end := start.Add(maxSpan)
		if end.After(o.End) {
			end = o.End
		}

		ranges = append(ranges, TimeRange{Start: start, End: end})

		start = end
	}

	return ranges, nil
}

//
// Join reassembles contiguous sub-ranges into the range they cover. It fails if any two
// neighbours leave a gap or overlap.
//
func Join(ranges []TimeRange) (TimeRange, error) {
	if len(ranges) == 0 {
		return TimeRange{}, errors.New("cannot join an empty list of time ranges")
	}

	for i := 1; i < len(ranges); i++ {
		if !ranges[i].Start.Equal(ranges[i-1].End) {
			return TimeRange{}, fmt.Errorf(
				"time ranges %d (%s) and %d (%s) are not contiguous",
				i-1, ranges[i-1], i, ranges[i],
			)
		}
	}

	return TimeRange{Start: ranges[0].Start, End: ranges[len(ranges)-1].End}, nil
}
