package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/karaoke-booking/internal/model"
)

const (
	// MaxPerPage caps the page size of catalog listings.
	MaxPerPage = 1000
	// MaxSearchResults caps how many matches a catalog search counts.
	MaxSearchResults = 1000
)

// SongPage is one page of a DJ's catalog.
type SongPage struct {
	Songs   []model.Song
	Total   int
	Page    int
	PerPage int
	// Limited is set when a search matched more than MaxSearchResults
	// titles and Total was capped.
	Limited bool
}

// SongRepo manages DJ song catalogs.
type SongRepo struct {
	db *sql.DB
}

// NewSongRepo returns a SongRepo bound to db.
func NewSongRepo(db *sql.DB) *SongRepo { return &SongRepo{db: db} }

// likePattern escapes LIKE wildcards in term and wraps it for a contains
// match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// List returns a page of the DJ's catalog ordered by title, optionally
// filtered by a case-insensitive substring.
func (r *SongRepo) List(ctx context.Context, djID uint64, search string, page, perPage int) (SongPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	out := SongPage{Page: page, PerPage: perPage, Songs: []model.Song{}}

	where := "dj_id = ?"
	args := []any{djID}
	if search = strings.TrimSpace(search); search != "" {
		where += " AND file_name LIKE ?"
		args = append(args, likePattern(search))
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs WHERE "+where, args...).Scan(&out.Total); err != nil {
		return SongPage{}, err
	}
	if search != "" && out.Total > MaxSearchResults {
		out.Total = MaxSearchResults
		out.Limited = true
	}

	offset := (page - 1) * perPage
	if offset >= out.Total {
		return out, nil
	}
	limit := perPage
	if offset+limit > out.Total {
		limit = out.Total - offset
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, dj_id, file_name, created_at FROM songs WHERE "+where+" ORDER BY file_name ASC, id ASC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return SongPage{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.Song
		if err := rows.Scan(&s.ID, &s.DJID, &s.FileName, &s.CreatedAt); err != nil {
			return SongPage{}, err
		}
		out.Songs = append(out.Songs, s)
	}
	return out, rows.Err()
}

// Create adds a title to the catalog. A duplicate title maps to
// ErrConflict.
func (r *SongRepo) Create(ctx context.Context, djID uint64, title string) (*model.Song, error) {
	title = strings.TrimSpace(title)
	res, err := r.db.ExecContext(ctx, "INSERT INTO songs (dj_id, file_name) VALUES (?, ?)", djID, title)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	var s model.Song
	err = r.db.QueryRowContext(ctx, "SELECT id, dj_id, file_name, created_at FROM songs WHERE id = ?", id).
		Scan(&s.ID, &s.DJID, &s.FileName, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// BulkCreate adds every non-empty title in one transaction, silently
// skipping titles already in the catalog. It returns how many were added.
func (r *SongRepo) BulkCreate(ctx context.Context, djID uint64, titles []string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT IGNORE INTO songs (dj_id, file_name) VALUES (?, ?)")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var added int64
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, djID, t)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		added += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return added, nil
}

// Delete removes one song of the DJ, or returns sql.ErrNoRows.
func (r *SongRepo) Delete(ctx context.Context, id, djID uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM songs WHERE id = ? AND dj_id = ?", id, djID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Clear empties the DJ's catalog.
func (r *SongRepo) Clear(ctx context.Context, djID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM songs WHERE dj_id = ?", djID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the size of the DJ's catalog.
func (r *SongRepo) Count(ctx context.Context, djID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs WHERE dj_id = ?", djID).Scan(&n)
	return n, err
}

// Search returns up to limit titles of the DJ's catalog for the public
// song picker.
func (r *SongRepo) Search(ctx context.Context, djID uint64, search string, limit int) ([]string, error) {
	if limit < 1 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}
	query := "SELECT file_name FROM songs WHERE dj_id = ?"
	args := []any{djID}
	if search = strings.TrimSpace(search); search != "" {
		query += " AND file_name LIKE ?"
		args = append(args, likePattern(search))
	}
	query += " ORDER BY file_name ASC LIMIT ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		out = append(out, title)
	}
	return out, rows.Err()
}

func (q *Queries) SongExists(ctx context.Context, djID uint64, title string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM songs WHERE dj_id = ? AND file_name = ?)", djID, strings.TrimSpace(title)).Scan(&exists)
	return exists, err
}
