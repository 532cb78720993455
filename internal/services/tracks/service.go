package tracks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/trailshare/trailshare/internal/broker/messages"
	"github.com/trailshare/trailshare/internal/cache"
	"github.com/trailshare/trailshare/internal/models"
	"github.com/trailshare/trailshare/internal/storage/pgtrack"
)

type Repository interface {
	CreateTrack(ctx context.Context, in models.TrackCreateInput) (*models.Track, error)
	ListTracks(ctx context.Context) ([]*models.Track, error)
	GetTrack(ctx context.Context, id int64) (*models.Track, error)
	UpdateTrack(ctx context.Context, upd pgtrack.TrackUpdate) (*models.Track, error)
	DeleteTrack(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo     Repository
	cache    cache.BytesCache
	cacheTTL time.Duration

	pub   Publisher
	topic string
}

// New wires the service. cache may be nil (or ttl <= 0) to disable the
// per-track cache; pub may be nil to disable change events.
func New(repo Repository, c cache.BytesCache, cacheTTL time.Duration, pub Publisher, topic string) *Service {
	return &Service{repo: repo, cache: c, cacheTTL: cacheTTL, pub: pub, topic: topic}
}

func (s *Service) CreateTrack(ctx context.Context, in models.TrackCreateInput) (*models.Track, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	t, err := s.repo.CreateTrack(ctx, in)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, t)
	s.publish(ctx, t.ID, messages.ActionCreated)
	return t, nil
}

func (s *Service) ListTracks(ctx context.Context) ([]*models.Track, error) {
	return s.repo.ListTracks(ctx)
}

// GetTrack returns (nil, nil) when the id does not exist.
func (s *Service) GetTrack(ctx context.Context, id int64) (*models.Track, error) {
	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, trackKey(id))
		if err == nil && ok {
			var t models.Track
			if json.Unmarshal(b, &t) == nil {
				return &t, nil
			}
		}
	}

	t, err := s.repo.GetTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	if t != nil {
		s.cacheSet(ctx, t)
	}
	return t, nil
}

// UpdateTrack applies the provided fields only and returns (nil, nil) when
// the id does not exist. An update with no optional fields still advances
// updated_at.
func (s *Service) UpdateTrack(ctx context.Context, in models.TrackUpdateInput) (*models.Track, error) {
	if in.ID == 0 {
		return nil, &models.ValidationError{Field: "id", Reason: "is required"}
	}
	if in.Title.Set {
		if in.Title.Value == "" {
			return nil, &models.ValidationError{Field: "title", Reason: "must not be empty"}
		}
		if utf8.RuneCountInString(in.Title.Value) > models.MaxTitleLen {
			return nil, &models.ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", models.MaxTitleLen)}
		}
	}

	t, err := s.repo.UpdateTrack(ctx, pgtrack.TrackUpdate{
		ID:             in.ID,
		SetTitle:       in.Title.Set,
		Title:          in.Title.Value,
		SetDescription: in.Description.Set,
		Description:    in.Description.Ptr(),
	})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}

	s.cacheSet(ctx, t)
	s.publish(ctx, t.ID, messages.ActionUpdated)
	return t, nil
}

// DeleteTrack removes the row and fails with models.NotFoundError when the
// id does not exist, unlike GetTrack/UpdateTrack which return a nil sentinel.
func (s *Service) DeleteTrack(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTrack(ctx, id); err != nil {
		return err
	}

	if s.cacheEnabled() {
		_ = s.cache.Del(ctx, trackKey(id))
	}
	s.publish(ctx, id, messages.ActionDeleted)
	return nil
}

// HandleTrackChanged drops the cached copy of a track mutated elsewhere.
// Wired as the kafka consumer handler.
func (s *Service) HandleTrackChanged(ctx context.Context, msg messages.TrackChanged) error {
	if msg.TrackID == 0 {
		return &models.ValidationError{Field: "track_id", Reason: "is required"}
	}
	if s.cacheEnabled() {
		return s.cache.Del(ctx, trackKey(msg.TrackID))
	}
	return nil
}

func validateCreate(in models.TrackCreateInput) error {
	if in.Title == "" {
		return &models.ValidationError{Field: "title", Reason: "is required"}
	}
	if utf8.RuneCountInString(in.Title) > models.MaxTitleLen {
		return &models.ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", models.MaxTitleLen)}
	}
	if in.FileName == "" {
		return &models.ValidationError{Field: "file_name", Reason: "is required"}
	}
	if !models.ValidFileType(in.FileType) {
		return &models.ValidationError{Field: "file_type", Reason: "must be gpx or kml"}
	}
	if in.FileSize <= 0 {
		return &models.ValidationError{Field: "file_size", Reason: "must be positive"}
	}
	if in.TrackData == "" {
		return &models.ValidationError{Field: "track_data", Reason: "is required"}
	}
	return nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

func (s *Service) cacheSet(ctx context.Context, t *models.Track) {
	if !s.cacheEnabled() {
		return
	}
	b, _ := json.Marshal(t)
	_ = s.cache.Set(ctx, trackKey(t.ID), b, s.cacheTTL)
}

// publish is best effort: a broker failure must not fail the mutation.
func (s *Service) publish(ctx context.Context, id int64, action string) {
	if s.pub == nil || s.topic == "" {
		return
	}
	b, _ := json.Marshal(messages.TrackChanged{TrackID: id, Action: action, At: time.Now().UTC()})
	if err := s.pub.Publish(ctx, s.topic, []byte(strconv.FormatInt(id, 10)), b); err != nil {
		slog.Warn("publish track change failed", "track_id", id, "action", action, "err", err)
	}
}

func trackKey(id int64) string {
	return fmt.Sprintf("track:%d", id)
}
