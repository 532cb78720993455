package tracks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	cachemocks "github.com/trailshare/trailshare/internal/cache/mocks"
	"github.com/trailshare/trailshare/internal/broker/messages"
	"github.com/trailshare/trailshare/internal/models"
	"github.com/trailshare/trailshare/internal/storage/pgtrack"

	tracksmocks "github.com/trailshare/trailshare/internal/services/tracks/mocks"
)

func validCreateInput() models.TrackCreateInput {
	return models.TrackCreateInput{
		Title:     "Morning ride",
		FileName:  "ride.gpx",
		FileType:  models.FileTypeGPX,
		FileSize:  1024,
		TrackData: "<gpx></gpx>",
	}
}

type ServiceSuite struct {
	suite.Suite

	repo  *tracksmocks.MockRepository
	cache *cachemocks.MockBytesCache
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &tracksmocks.MockRepository{}
	s.cache = &cachemocks.MockBytesCache{}
	s.svc = New(s.repo, s.cache, 10*time.Minute, nil, "")
}

func (s *ServiceSuite) TestCreateTrack_ValidInput_InsertsAndCaches() {
	in := validCreateInput()
	want := &models.Track{ID: 1, Title: in.Title, FileName: in.FileName, FileType: in.FileType, FileSize: in.FileSize, TrackData: in.TrackData}

	s.repo.On("CreateTrack", mock.Anything, in).Return(want, nil).Once()
	s.cache.On("Set", mock.Anything, "track:1", mock.Anything, 10*time.Minute).Return(nil).Once()

	out, err := s.svc.CreateTrack(context.Background(), in)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), out.ID)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreateTrack_ValidateErrors() {
	cases := []models.TrackCreateInput{
		{},
		func() models.TrackCreateInput { in := validCreateInput(); in.Title = ""; return in }(),
		func() models.TrackCreateInput {
			in := validCreateInput()
			long := make([]rune, models.MaxTitleLen+1)
			for i := range long {
				long[i] = 'x'
			}
			in.Title = string(long)
			return in
		}(),
		func() models.TrackCreateInput { in := validCreateInput(); in.FileName = ""; return in }(),
		func() models.TrackCreateInput { in := validCreateInput(); in.FileType = "tcx"; return in }(),
		func() models.TrackCreateInput { in := validCreateInput(); in.FileSize = 0; return in }(),
		func() models.TrackCreateInput { in := validCreateInput(); in.FileSize = -5; return in }(),
		func() models.TrackCreateInput { in := validCreateInput(); in.TrackData = ""; return in }(),
	}

	for _, in := range cases {
		_, err := s.svc.CreateTrack(context.Background(), in)
		s.Require().Error(err)
		var verr *models.ValidationError
		s.Require().ErrorAs(err, &verr)
	}

	s.repo.AssertNotCalled(s.T(), "CreateTrack", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateTrack_TitleAtLimit_OK() {
	in := validCreateInput()
	long := make([]rune, models.MaxTitleLen)
	for i := range long {
		long[i] = 'x'
	}
	in.Title = string(long)

	s.repo.On("CreateTrack", mock.Anything, in).Return(&models.Track{ID: 2, Title: in.Title}, nil).Once()
	s.cache.On("Set", mock.Anything, "track:2", mock.Anything, 10*time.Minute).Return(nil).Once()

	_, err := s.svc.CreateTrack(context.Background(), in)
	s.Require().NoError(err)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetTrack_CacheHit_NoDB() {
	t := &models.Track{ID: 7, Title: "Cached"}
	b, _ := json.Marshal(t)

	s.cache.On("Get", mock.Anything, "track:7").Return(b, true, nil).Once()

	out, err := s.svc.GetTrack(context.Background(), 7)
	s.Require().NoError(err)
	s.Require().Equal(int64(7), out.ID)

	s.repo.AssertNotCalled(s.T(), "GetTrack", mock.Anything, mock.Anything)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetTrack_CacheMiss_BackfillsCache() {
	want := &models.Track{ID: 3, Title: "From DB"}

	s.cache.On("Get", mock.Anything, "track:3").Return([]byte(nil), false, nil).Once()
	s.repo.On("GetTrack", mock.Anything, int64(3)).Return(want, nil).Once()
	s.cache.On("Set", mock.Anything, "track:3", mock.Anything, 10*time.Minute).Return(nil).Once()

	out, err := s.svc.GetTrack(context.Background(), 3)
	s.Require().NoError(err)
	s.Require().Equal(want, out)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetTrack_Absent_NilSentinel_NotCached() {
	s.cache.On("Get", mock.Anything, "track:404").Return([]byte(nil), false, nil).Once()
	s.repo.On("GetTrack", mock.Anything, int64(404)).Return((*models.Track)(nil), nil).Once()

	out, err := s.svc.GetTrack(context.Background(), 404)
	s.Require().NoError(err)
	s.Require().Nil(out)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetTrack_CacheGetErrorAndBadJSON_BothFallThrough() {
	want := &models.Track{ID: 5}

	s.cache.On("Get", mock.Anything, "track:5").Return([]byte(nil), false, errors.New("redis down")).Once()
	s.repo.On("GetTrack", mock.Anything, int64(5)).Return(want, nil).Once()
	s.cache.On("Set", mock.Anything, "track:5", mock.Anything, 10*time.Minute).Return(nil).Once()

	out, err := s.svc.GetTrack(context.Background(), 5)
	s.Require().NoError(err)
	s.Require().Equal(want, out)

	s.cache.On("Get", mock.Anything, "track:6").Return([]byte("not-json"), true, nil).Once()
	s.repo.On("GetTrack", mock.Anything, int64(6)).Return(&models.Track{ID: 6}, nil).Once()
	s.cache.On("Set", mock.Anything, "track:6", mock.Anything, 10*time.Minute).Return(nil).Once()

	out, err = s.svc.GetTrack(context.Background(), 6)
	s.Require().NoError(err)
	s.Require().Equal(int64(6), out.ID)
}

func (s *ServiceSuite) TestGetTrack_CacheDisabled_GoesToDB() {
	svc := New(s.repo, nil, 0, nil, "")
	want := &models.Track{ID: 1}
	s.repo.On("GetTrack", mock.Anything, int64(1)).Return(want, nil).Once()

	out, err := svc.GetTrack(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().Equal(want, out)
	s.cache.AssertNotCalled(s.T(), "Get", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestUpdateTrack_ValidateErrors() {
	_, err := s.svc.UpdateTrack(context.Background(), models.TrackUpdateInput{})
	s.Require().Error(err)

	_, err = s.svc.UpdateTrack(context.Background(), models.TrackUpdateInput{
		ID:    1,
		Title: models.OptString{Set: true, Value: ""},
	})
	s.Require().Error(err)

	long := make([]rune, models.MaxTitleLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.svc.UpdateTrack(context.Background(), models.TrackUpdateInput{
		ID:    1,
		Title: models.OptString{Set: true, Value: string(long)},
	})
	s.Require().Error(err)

	s.repo.AssertNotCalled(s.T(), "UpdateTrack", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestUpdateTrack_TitleOnly_PassesFlagsThrough() {
	want := &models.Track{ID: 1, Title: "X"}
	s.repo.On("UpdateTrack", mock.Anything, pgtrack.TrackUpdate{
		ID:       1,
		SetTitle: true,
		Title:    "X",
	}).Return(want, nil).Once()
	s.cache.On("Set", mock.Anything, "track:1", mock.Anything, 10*time.Minute).Return(nil).Once()

	out, err := s.svc.UpdateTrack(context.Background(), models.TrackUpdateInput{
		ID:    1,
		Title: models.OptString{Set: true, Value: "X"},
	})
	s.Require().NoError(err)
	s.Require().Equal(want, out)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestUpdateTrack_ExplicitNullDescription_ClearsIt() {
	want := &models.Track{ID: 1, Description: nil}
	s.repo.On("UpdateTrack", mock.Anything, mock.MatchedBy(func(upd pgtrack.TrackUpdate) bool {
		return upd.ID == 1 && !upd.SetTitle && upd.SetDescription && upd.Description == nil
	})).Return(want, nil).Once()
	s.cache.On("Set", mock.Anything, "track:1", mock.Anything, 10*time.Minute).Return(nil).Once()

	out, err := s.svc.UpdateTrack(context.Background(), models.TrackUpdateInput{
		ID:          1,
		Description: models.OptNullString{Set: true, Valid: false},
	})
	s.Require().NoError(err)
	s.Require().Nil(out.Description)
}

func (s *ServiceSuite) TestUpdateTrack_NoFields_StillHitsStore() {
	want := &models.Track{ID: 9}
	s.repo.On("UpdateTrack", mock.Anything, pgtrack.TrackUpdate{ID: 9}).Return(want, nil).Once()
	s.cache.On("Set", mock.Anything, "track:9", mock.Anything, 10*time.Minute).Return(nil).Once()

	out, err := s.svc.UpdateTrack(context.Background(), models.TrackUpdateInput{ID: 9})
	s.Require().NoError(err)
	s.Require().Equal(want, out)
}

func (s *ServiceSuite) TestUpdateTrack_Absent_NilSentinel_NoCacheWrite() {
	s.repo.On("UpdateTrack", mock.Anything, mock.Anything).Return((*models.Track)(nil), nil).Once()

	out, err := s.svc.UpdateTrack(context.Background(), models.TrackUpdateInput{ID: 404})
	s.Require().NoError(err)
	s.Require().Nil(out)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestDeleteTrack_InvalidatesCache() {
	s.repo.On("DeleteTrack", mock.Anything, int64(2)).Return(nil).Once()
	s.cache.On("Del", mock.Anything, "track:2").Return(nil).Once()

	s.Require().NoError(s.svc.DeleteTrack(context.Background(), 2))
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestDeleteTrack_NotFoundPropagates() {
	want := &models.NotFoundError{ID: 404}
	s.repo.On("DeleteTrack", mock.Anything, int64(404)).Return(want).Once()

	err := s.svc.DeleteTrack(context.Background(), 404)
	s.Require().Error(err)
	var nf *models.NotFoundError
	s.Require().ErrorAs(err, &nf)
	s.Require().Equal(int64(404), nf.ID)
	s.cache.AssertNotCalled(s.T(), "Del", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestHandleTrackChanged_DropsCacheEntry() {
	s.cache.On("Del", mock.Anything, "track:11").Return(nil).Once()
	s.Require().NoError(s.svc.HandleTrackChanged(context.Background(), messages.TrackChanged{TrackID: 11, Action: messages.ActionUpdated}))
	s.cache.AssertExpectations(s.T())

	s.Require().Error(s.svc.HandleTrackChanged(context.Background(), messages.TrackChanged{}))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
