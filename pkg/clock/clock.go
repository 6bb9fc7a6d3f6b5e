// Package clock provides the single injectable time seam used across the
// engine. UTC "now" is only ever read at run_id generation, manifest and
// decision timestamps, and override-expiry comparison — every other call
// site takes a time.Time as a parameter.
package clock

import "time"

// Clock returns the current UTC time. Production code uses Real; tests
// inject a fixed or stepped Clock so runs are byte-reproducible.
type Clock func() time.Time

// Real is the production clock.
func Real() time.Time { return time.Now().UTC() }

// Fixed returns a Clock that always returns t.
func Fixed(t time.Time) Clock {
	u := t.UTC()
	return func() time.Time { return u }
}
