package service

import "strconv"

// UnlimitedSetting is the stored value of max_bookings_per_user that
// means "no cap". The column keeps the legacy range 1..999; the value
// never leaks past CapFromSetting.
const UnlimitedSetting = 999

// BookingCap is the per-session booking cap of a DJ: either unlimited or
// a positive limit.
type BookingCap struct {
	limit     int
	unlimited bool
}

// Unlimited returns a cap that allows any number of bookings.
func Unlimited() BookingCap { return BookingCap{unlimited: true} }

// Capped returns a cap of n bookings. n below 1 is treated as 1.
func Capped(n int) BookingCap {
	if n < 1 {
		n = 1
	}
	return BookingCap{limit: n}
}

// CapFromSetting maps the stored DJ setting onto a BookingCap.
func CapFromSetting(maxBookingsPerUser int) BookingCap {
	if maxBookingsPerUser >= UnlimitedSetting || maxBookingsPerUser <= 0 {
		return Unlimited()
	}
	return Capped(maxBookingsPerUser)
}

// Setting is the inverse of CapFromSetting.
func (c BookingCap) Setting() int {
	if c.unlimited {
		return UnlimitedSetting
	}
	return c.limit
}

// IsUnlimited reports whether the cap allows any number of bookings.
func (c BookingCap) IsUnlimited() bool { return c.unlimited }

// Limit returns the cap and true, or 0 and false when unlimited.
func (c BookingCap) Limit() (int, bool) {
	if c.unlimited {
		return 0, false
	}
	return c.limit, true
}

func (c BookingCap) String() string {
	if c.unlimited {
		return "unlimited"
	}
	return strconv.Itoa(c.limit)
}

// Allow reports whether a session that already holds count bookings may
// create another one.
func (c BookingCap) Allow(count int) bool {
	return c.unlimited || count < c.limit
}

// Allow is the free-function form of BookingCap.Allow.
func Allow(count int, c BookingCap) bool { return c.Allow(count) }

// Remaining returns how many more bookings a session holding count may
// create.
func (c BookingCap) Remaining(count int) Remaining {
	if c.unlimited {
		return Remaining{unlimited: true}
	}
	n := c.limit - count
	if n < 0 {
		n = 0
	}
	return Remaining{n: n}
}

// Remaining is the number of bookings a session may still create; it is
// either unlimited or a non-negative count.
type Remaining struct {
	n         int
	unlimited bool
}

// Count returns the remaining count and true, or 0 and false when
// unlimited.
func (r Remaining) Count() (int, bool) {
	if r.unlimited {
		return 0, false
	}
	return r.n, true
}

// IsUnlimited reports whether there is no cap.
func (r Remaining) IsUnlimited() bool { return r.unlimited }

func (r Remaining) String() string {
	if r.unlimited {
		return "unlimited"
	}
	return strconv.Itoa(r.n)
}
