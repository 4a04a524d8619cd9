package model

import "time"

// DJ is an account that owns venues, a song catalog and a QR code that
// attendees scan to reach the booking flow. It mirrors a row in the
// `djs` table.
//
// Fields:
//
//	ID                 – primary key identifier.
//	FullName           – legal name of the account holder.
//	StageName          – public name shown to attendees.
//	Email              – unique login email.
//	Phone              – optional contact number.
//	PasswordHash       – bcrypt hash of the password.
//	QRCodeID           – unique public identifier printed in the QR code.
//	MaxBookingsPerUser – per-session booking cap setting (1..999, 999 means no cap).
//	CreatedAt          – timestamp of creation.
//	UpdatedAt          – timestamp of last update.
type DJ struct {
	ID                 uint64    // djs.id
	FullName           string    // djs.full_name
	StageName          string    // djs.stage_name
	Email              string    // djs.email
	Phone              *string   // djs.phone (nullable)
	PasswordHash       string    // djs.password_hash
	QRCodeID           string    // djs.qr_code_id
	MaxBookingsPerUser int       // djs.max_bookings_per_user
	CreatedAt          time.Time // djs.created_at
	UpdatedAt          time.Time // djs.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	DJID      uint64     // refresh_tokens.dj_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
