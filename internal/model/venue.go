package model

import "time"

// Venue is a place where a DJ performs. At most one venue per DJ is
// active at any time; attendee sessions are bound to the venue that was
// active when they were created.
type Venue struct {
	ID        uint64    // venues.id
	DJID      uint64    // venues.dj_id
	Name      string    // venues.name
	Address   *string   // venues.address (nullable)
	Capacity  *int      // venues.capacity (nullable)
	Notes     *string   // venues.notes (nullable)
	Active    bool      // venues.active
	CreatedAt time.Time // venues.created_at
}
