package model

import "time"

// Song is an entry of a DJ's catalog. Attendee requests must name a
// title that exists here; FileName holds the title as uploaded.
type Song struct {
	ID        uint64    // songs.id
	DJID      uint64    // songs.dj_id
	FileName  string    // songs.file_name
	CreatedAt time.Time // songs.created_at
}
