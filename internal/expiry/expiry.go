// Package expiry holds the lifecycle predicates for memories: TTL expiry,
// soft deletion and purge eligibility. The Go functions and their SQL
// renderings are kept side by side so that search visibility and purge
// always agree on what "gone" means.
package expiry

import "time"

// MaxExpiry is the latest expiry that still formats as a four-digit year.
// Stored timestamps compare as strings, so a longer year would sort before
// every real date and read as already expired.
var MaxExpiry = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// maxTTLDays bounds ttlDays before date arithmetic; any larger value lands
// past MaxExpiry from any representable now.
const maxTTLDays = 10000 * 366

// ComputeExpiry returns now plus ttlDays days at second precision, or nil
// when ttlDays is not positive (no TTL). Results past MaxExpiry are clamped
// to it.
func ComputeExpiry(now time.Time, ttlDays int) *time.Time {
	if ttlDays <= 0 {
		return nil
	}
	if ttlDays > maxTTLDays {
		t := MaxExpiry
		return &t
	}
	t := now.UTC().Truncate(time.Second).AddDate(0, 0, ttlDays)
	if t.After(MaxExpiry) {
		t = MaxExpiry
	}
	return &t
}

// IsExpired reports whether expiresAt is set and not after now.
func IsExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && !expiresAt.After(now)
}

// IsPurgeable reports whether a row is soft-deleted or expired.
func IsPurgeable(deletedAt, expiresAt *time.Time, now time.Time) bool {
	return deletedAt != nil || IsExpired(expiresAt, now)
}

// The SQL renderings below take a table alias ("" for none) and expect
// exactly one bind argument: the current time in model.TimeLayout.

// ExpiredSQL mirrors IsExpired.
func ExpiredSQL(alias string) string {
	c := col(alias)
	return "(" + c("expires_at") + " IS NOT NULL AND " + c("expires_at") + " <= ?)"
}

// NotExpiredSQL is the negation of ExpiredSQL.
func NotExpiredSQL(alias string) string {
	c := col(alias)
	return "(" + c("expires_at") + " IS NULL OR " + c("expires_at") + " > ?)"
}

// PurgeableSQL mirrors IsPurgeable.
func PurgeableSQL(alias string) string {
	return "(" + col(alias)("deleted_at") + " IS NOT NULL OR " + ExpiredSQL(alias) + ")"
}

// ActiveSQL matches rows that are not soft-deleted. It takes no arguments.
func ActiveSQL(alias string) string {
	return col(alias)("deleted_at") + " IS NULL"
}

func col(alias string) func(string) string {
	return func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
}
