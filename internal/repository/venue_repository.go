package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/karaoke-booking/internal/model"
)

const venueColumns = "id, dj_id, name, address, capacity, notes, active, created_at"

func scanVenue(row scanner) (*model.Venue, error) {
	var (
		v        model.Venue
		address  sql.NullString
		notes    sql.NullString
		capacity sql.NullInt64
	)
	if err := row.Scan(&v.ID, &v.DJID, &v.Name, &address, &capacity, &notes, &v.Active, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Address = stringPtr(address)
	v.Notes = stringPtr(notes)
	if capacity.Valid {
		c := int(capacity.Int64)
		v.Capacity = &c
	}
	return &v, nil
}

func scanVenues(rows *sql.Rows) ([]model.Venue, error) {
	defer rows.Close()
	var out []model.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// VenueRepo provides CRUD for venues. Activation goes through the venue
// registry, never through this repo.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo returns a VenueRepo bound to db.
func NewVenueRepo(db *sql.DB) *VenueRepo { return &VenueRepo{db: db} }

// Create inserts an inactive venue and fills its ID and CreatedAt.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO venues (dj_id, name, address, capacity, notes, active) VALUES (?, ?, ?, ?, ?, FALSE)",
		v.DJID, v.Name, nullString(v.Address), nullInt(v.Capacity), nullString(v.Notes))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByIDAndDJ(ctx, uint64(id), v.DJID)
	if err != nil {
		return err
	}
	*v = *stored
	return nil
}

// GetByIDAndDJ fetches a venue owned by djID, or sql.ErrNoRows.
func (r *VenueRepo) GetByIDAndDJ(ctx context.Context, id, djID uint64) (*model.Venue, error) {
	return (&Queries{db: r.db}).VenueForDJ(ctx, id, djID)
}

// ListByDJ returns the DJ's venues, active first, then by name.
func (r *VenueRepo) ListByDJ(ctx context.Context, djID uint64) ([]model.Venue, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+venueColumns+" FROM venues WHERE dj_id = ? ORDER BY active DESC, name ASC", djID)
	if err != nil {
		return nil, err
	}
	return scanVenues(rows)
}

// Update overwrites the descriptive fields of a venue owned by djID. It
// returns sql.ErrNoRows when the venue does not exist or is not owned.
func (r *VenueRepo) Update(ctx context.Context, v *model.Venue) error {
	if _, err := r.GetByIDAndDJ(ctx, v.ID, v.DJID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE venues SET name = ?, address = ?, capacity = ?, notes = ? WHERE id = ? AND dj_id = ?",
		v.Name, nullString(v.Address), nullInt(v.Capacity), nullString(v.Notes), v.ID, v.DJID)
	if err != nil {
		return err
	}
	stored, err := r.GetByIDAndDJ(ctx, v.ID, v.DJID)
	if err != nil {
		return err
	}
	*v = *stored
	return nil
}

// DeleteByIDAndDJ removes a venue together with its bookings and the
// sessions bound to it. If the venue does not exist sql.ErrNoRows is
// returned; if it belongs to another DJ, ErrForbidden.
func (r *VenueRepo) DeleteByIDAndDJ(ctx context.Context, id, djID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var owner uint64
	if err := tx.QueryRowContext(ctx, "SELECT dj_id FROM venues WHERE id = ? FOR UPDATE", id).Scan(&owner); err != nil {
		return err
	}
	if owner != djID {
		return ErrForbidden
	}
	for _, stmt := range []string{
		"DELETE FROM bookings WHERE venue_id = ?",
		"DELETE FROM sessions WHERE venue_id = ?",
		"DELETE FROM venues WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (q *Queries) VenueForDJ(ctx context.Context, venueID, djID uint64) (*model.Venue, error) {
	return scanVenue(q.db.QueryRowContext(ctx,
		"SELECT "+venueColumns+" FROM venues WHERE id = ? AND dj_id = ?", venueID, djID))
}

// ActiveVenue returns the DJ's active venue. Should the invariant ever be
// broken the lowest id wins.
func (q *Queries) ActiveVenue(ctx context.Context, djID uint64) (*model.Venue, error) {
	return scanVenue(q.db.QueryRowContext(ctx,
		"SELECT "+venueColumns+" FROM venues WHERE dj_id = ? AND active = TRUE ORDER BY id LIMIT 1", djID))
}

// LockVenuesForDJ reads and row-locks every venue of the DJ in id order,
// so that concurrent toggles for the same DJ queue up behind each other.
func (q *Queries) LockVenuesForDJ(ctx context.Context, djID uint64) ([]model.Venue, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+venueColumns+" FROM venues WHERE dj_id = ? ORDER BY id FOR UPDATE", djID)
	if err != nil {
		return nil, err
	}
	return scanVenues(rows)
}

func (q *Queries) DeactivateVenues(ctx context.Context, djID uint64) error {
	_, err := q.db.ExecContext(ctx, "UPDATE venues SET active = FALSE WHERE dj_id = ? AND active = TRUE", djID)
	return err
}

func (q *Queries) SetVenueActive(ctx context.Context, venueID uint64, active bool) error {
	res, err := q.db.ExecContext(ctx, "UPDATE venues SET active = ? WHERE id = ?", active, venueID)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when the value is unchanged, so only a
	// missing row is treated as an error.
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		err := q.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM venues WHERE id = ?)", venueID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return sql.ErrNoRows
		}
	}
	return nil
}
