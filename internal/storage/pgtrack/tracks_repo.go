package pgtrack

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/trailshare/trailshare/internal/models"
)

const trackColumns = `
  id, title, description,
  file_name, file_type, file_size,
  track_data, created_at, updated_at
`

// TrackUpdate is a partial update applied as a single conditional UPDATE,
// so the existence check and the write cannot race. Only title and
// description are mutable; updated_at is refreshed on every hit.
type TrackUpdate struct {
	ID int64

	SetTitle bool
	Title    string

	SetDescription bool
	Description    *string
}

func (s *Storage) CreateTrack(ctx context.Context, in models.TrackCreateInput) (*models.Track, error) {
	// now() is evaluated once per statement, so created_at == updated_at
	// exactly, and later updates compare against the same clock.
	row := s.db.QueryRow(ctx, `
INSERT INTO tracks (
  title, description, file_name, file_type, file_size, track_data, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,now(),now())
RETURNING`+trackColumns,
		in.Title, in.Description, in.FileName, in.FileType, in.FileSize, in.TrackData)

	t, err := scanTrack(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert track")
	}
	return t, nil
}

func (s *Storage) ListTracks(ctx context.Context) ([]*models.Track, error) {
	rows, err := s.db.Query(ctx, `SELECT`+trackColumns+`FROM tracks ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "select tracks")
	}
	defer rows.Close()

	out := make([]*models.Track, 0)
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan track")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// GetTrack returns (nil, nil) when no row has the id.
func (s *Storage) GetTrack(ctx context.Context, id int64) (*models.Track, error) {
	row := s.db.QueryRow(ctx, `SELECT`+trackColumns+`FROM tracks WHERE id = $1`, id)
	t, err := scanTrack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select track")
	}
	return t, nil
}

// UpdateTrack returns (nil, nil) when no row has the id.
func (s *Storage) UpdateTrack(ctx context.Context, upd TrackUpdate) (*models.Track, error) {
	row := s.db.QueryRow(ctx, `
UPDATE tracks
SET
  title = CASE WHEN $2 THEN $3 ELSE title END,
  description = CASE WHEN $4 THEN $5 ELSE description END,
  updated_at = now()
WHERE id = $1
RETURNING`+trackColumns,
		upd.ID, upd.SetTitle, upd.Title, upd.SetDescription, upd.Description)

	t, err := scanTrack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "update track")
	}
	return t, nil
}

func (s *Storage) DeleteTrack(ctx context.Context, id int64) error {
	var deleted int64
	err := s.db.QueryRow(ctx, `DELETE FROM tracks WHERE id = $1 RETURNING id`, id).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.NotFoundError{ID: id}
	}
	if err != nil {
		return errors.Wrap(err, "delete track")
	}
	return nil
}

func scanTrack(row pgx.Row) (*models.Track, error) {
	var t models.Track
	var description *string
	if err := row.Scan(
		&t.ID, &t.Title, &description,
		&t.FileName, &t.FileType, &t.FileSize,
		&t.TrackData, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Description = description
	return &t, nil
}
