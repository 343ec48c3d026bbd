package relayer

import (
	"fmt"
	"time"
)

// Schedule is a fixed, strictly increasing list of retry delays
type Schedule []time.Duration

// NewSchedule validates delays
func NewSchedule(delays []time.Duration) (Schedule, error) {
	if len(delays) == 0 {
		return nil, fmt.Errorf("backoff schedule is empty")
	}
	for i, d := range delays {
		if d <= 0 {
			return nil, fmt.Errorf("backoff delay %d is not positive", i)
		}
		if i > 0 && d <= delays[i-1] {
			return nil, fmt.Errorf("backoff delay %d is not greater than the previous one", i)
		}
	}
	return append(Schedule(nil), delays...), nil
}

// Next returns the delay after the given number of consecutive transient failures.
// ok is false once failures exceed the schedule, meaning the job must fail.
func (s Schedule) Next(failures int) (delay time.Duration, ok bool) {
	if failures < 1 || failures > len(s) {
		return 0, false
	}
	return s[failures-1], true
}
