// Package mstime gives block and peer timestamps a millisecond-resolution
// type distinct from time.Time, the way daglabs-btcd/util/mstime does for
// the node this module descends from: DAG timestamps are compared and
// serialized as integer milliseconds, never as wall-clock time.Time values.
package mstime

import "time"

// Time wraps a millisecond-precision instant.
type Time struct {
	milliseconds int64
}

// Now returns the current time truncated to millisecond precision.
func Now() Time {
	return FromTime(time.Now())
}

// FromTime converts a time.Time into a Time.
func FromTime(t time.Time) Time {
	return Time{milliseconds: t.UnixNano() / int64(time.Millisecond)}
}

// FromMilliseconds constructs a Time directly from a millisecond count.
func FromMilliseconds(ms int64) Time {
	return Time{milliseconds: ms}
}

// UnixMilliseconds returns the wrapped millisecond count.
func (t Time) UnixMilliseconds() int64 {
	return t.milliseconds
}

// ToTime converts back to a time.Time.
func (t Time) ToTime() time.Time {
	return time.Unix(0, t.milliseconds*int64(time.Millisecond))
}

// After reports whether t is strictly after other.
func (t Time) After(other Time) bool {
	return t.milliseconds > other.milliseconds
}

// Before reports whether t is strictly before other.
func (t Time) Before(other Time) bool {
	return t.milliseconds < other.milliseconds
}

// Add adds d to t.
func (t Time) Add(d time.Duration) Time {
	return Time{milliseconds: t.milliseconds + d.Milliseconds()}
}

// Sub returns the duration between two Times.
func (t Time) Sub(other Time) time.Duration {
	return time.Duration(t.milliseconds-other.milliseconds) * time.Millisecond
}
