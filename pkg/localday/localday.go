// Package localday computes calendar-day buckets in a user's fixed IANA
// timezone. Daily quotas and credit recharges reset at the user's local
// midnight, never the server's, so two events at the same UTC instant can
// legitimately land in different buckets for users in different zones.
package localday

import (
	"errors"
	"time"
)

// ErrInvalidTimezone indicates the IANA zone name could not be loaded.
var ErrInvalidTimezone = errors.New("localday: invalid IANA timezone")

// Day is a calendar day in a user's timezone, formatted YYYY-MM-DD.
// Used as a composite-key component and as the idempotency token for
// once-per-day operations.
type Day string

// Bucket returns the local calendar day that contains the given instant.
// Falls back to UTC when the zone name is empty; returns an error for a
// malformed zone name so callers do not silently bucket into the wrong day.
func Bucket(at time.Time, timezone string) (Day, error) {
	loc, err := load(timezone)
	if err != nil {
		return "", err
	}
	return Day(at.In(loc).Format(time.DateOnly)), nil
}

// NextReset returns the next local midnight after the given instant, in UTC.
// Quota denials report this so clients can show when the counter resets.
func NextReset(at time.Time, timezone string) (time.Time, error) {
	loc, err := load(timezone)
	if err != nil {
		return time.Time{}, err
	}
	local := at.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, 1).UTC(), nil
}

// SameDay reports whether two instants fall in the same local calendar day.
func SameDay(a, b time.Time, timezone string) (bool, error) {
	loc, err := load(timezone)
	if err != nil {
		return false, err
	}
	al, bl := a.In(loc), b.In(loc)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay(), nil
}

func load(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.Join(ErrInvalidTimezone, err)
	}
	return loc, nil
}
