package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/trailshare/trailshare/internal/models"
	"github.com/trailshare/trailshare/internal/storage/pgtrack"
)

// MockRepository is a mock implementation of tracks.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateTrack(ctx context.Context, in models.TrackCreateInput) (*models.Track, error) {
	args := m.Called(ctx, in)

	var t *models.Track
	if args.Get(0) != nil {
		t = args.Get(0).(*models.Track)
	}
	return t, args.Error(1)
}

func (m *MockRepository) ListTracks(ctx context.Context) ([]*models.Track, error) {
	args := m.Called(ctx)

	var ts []*models.Track
	if args.Get(0) != nil {
		ts = args.Get(0).([]*models.Track)
	}
	return ts, args.Error(1)
}

func (m *MockRepository) GetTrack(ctx context.Context, id int64) (*models.Track, error) {
	args := m.Called(ctx, id)

	var t *models.Track
	if args.Get(0) != nil {
		t = args.Get(0).(*models.Track)
	}
	return t, args.Error(1)
}

func (m *MockRepository) UpdateTrack(ctx context.Context, upd pgtrack.TrackUpdate) (*models.Track, error) {
	args := m.Called(ctx, upd)

	var t *models.Track
	if args.Get(0) != nil {
		t = args.Get(0).(*models.Track)
	}
	return t, args.Error(1)
}

func (m *MockRepository) DeleteTrack(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
