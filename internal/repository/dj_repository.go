package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/utils"
)

const djColumns = "id, full_name, stage_name, email, phone, password_hash, qr_code_id, max_bookings_per_user, created_at, updated_at"

func scanDJ(row scanner) (*model.DJ, error) {
	var (
		dj    model.DJ
		phone sql.NullString
	)
	if err := row.Scan(&dj.ID, &dj.FullName, &dj.StageName, &dj.Email, &phone, &dj.PasswordHash,
		&dj.QRCodeID, &dj.MaxBookingsPerUser, &dj.CreatedAt, &dj.UpdatedAt); err != nil {
		return nil, err
	}
	dj.Phone = stringPtr(phone)
	return &dj, nil
}

// DJRepo manages DJ accounts.
type DJRepo struct{ DB *sql.DB }

func NewDJRepo(db *sql.DB) *DJRepo { return &DJRepo{DB: db} }

// Create hashes password, inserts dj and fills its ID. A taken email maps
// to ErrEmailExists, a taken QR code to ErrConflict.
func (r *DJRepo) Create(ctx context.Context, dj *model.DJ, password string, cost int) error {
	dj.Email = strings.ToLower(strings.TrimSpace(dj.Email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	dj.PasswordHash = hash
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO djs (full_name, stage_name, email, phone, password_hash, qr_code_id, max_bookings_per_user) VALUES (?,?,?,?,?,?,?)",
		dj.FullName, dj.StageName, dj.Email, nullString(dj.Phone), dj.PasswordHash, dj.QRCodeID, dj.MaxBookingsPerUser)
	if err != nil {
		if isDuplicate(err) {
			if strings.Contains(err.Error(), "email") {
				return ErrEmailExists
			}
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	dj.ID = uint64(id)
	return nil
}

// GetByEmail fetches a DJ by normalized email.
func (r *DJRepo) GetByEmail(ctx context.Context, email string) (*model.DJ, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanDJ(r.DB.QueryRowContext(ctx, "SELECT "+djColumns+" FROM djs WHERE email=? LIMIT 1", email))
}

// GetByID fetches a DJ by id.
func (r *DJRepo) GetByID(ctx context.Context, id uint64) (*model.DJ, error) {
	return (&Queries{db: r.DB}).DJByID(ctx, id)
}

// ProfileUpdate holds the optional fields of a profile change; nil fields
// are left untouched.
type ProfileUpdate struct {
	FullName           *string
	StageName          *string
	Phone              *string
	MaxBookingsPerUser *int
}

// UpdateProfile applies u to the DJ and returns the stored row.
func (r *DJRepo) UpdateProfile(ctx context.Context, id uint64, u ProfileUpdate) (*model.DJ, error) {
	var (
		sets []string
		args []any
	)
	if u.FullName != nil {
		sets, args = append(sets, "full_name=?"), append(args, *u.FullName)
	}
	if u.StageName != nil {
		sets, args = append(sets, "stage_name=?"), append(args, *u.StageName)
	}
	if u.Phone != nil {
		sets, args = append(sets, "phone=?"), append(args, nullString(u.Phone))
	}
	if u.MaxBookingsPerUser != nil {
		sets, args = append(sets, "max_bookings_per_user=?"), append(args, *u.MaxBookingsPerUser)
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := r.DB.ExecContext(ctx, "UPDATE djs SET "+strings.Join(sets, ", ")+" WHERE id=?", args...); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

// UpdatePassword stores a new bcrypt hash for the DJ.
func (r *DJRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, "UPDATE djs SET password_hash=? WHERE id=?", hash, id)
	return err
}

func (q *Queries) DJByID(ctx context.Context, id uint64) (*model.DJ, error) {
	return scanDJ(q.db.QueryRowContext(ctx, "SELECT "+djColumns+" FROM djs WHERE id=? LIMIT 1", id))
}

func (q *Queries) DJByQRCode(ctx context.Context, qrCodeID string) (*model.DJ, error) {
	return scanDJ(q.db.QueryRowContext(ctx, "SELECT "+djColumns+" FROM djs WHERE qr_code_id=? LIMIT 1", qrCodeID))
}

// GetByQRCode fetches a DJ by the public QR code id.
func (r *DJRepo) GetByQRCode(ctx context.Context, qrCodeID string) (*model.DJ, error) {
	return (&Queries{db: r.DB}).DJByQRCode(ctx, qrCodeID)
}
