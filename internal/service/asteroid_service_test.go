package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"

	"asteroidradar/internal/apperr"
	"asteroidradar/internal/cache"
	"asteroidradar/internal/clients"
	"asteroidradar/internal/clients/mocks"
	"asteroidradar/internal/feed"
	"asteroidradar/internal/models"
	"asteroidradar/internal/repository"
	"asteroidradar/pkg/database"
)

const feedWithOneAsteroid = `{
	"element_count": 1,
	"near_earth_objects": {
		"2024-01-10": [{
			"id": "3",
			"name": "(2024 AB)",
			"absolute_magnitude_h": 21.3,
			"estimated_diameter": {"kilometers": {"estimated_diameter_max": 0.25}},
			"is_potentially_hazardous_asteroid": true,
			"close_approach_data": [{
				"relative_velocity": {"kilometers_per_second": "12.5"},
				"miss_distance": {"astronomical": "0.3"}
			}]
		}]
	}
}`

const feedWithMalformedRecord = `{"near_earth_objects": {"2024-01-11": [{"id": "9", "name": "x"}]}}`

type AsteroidServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	client    *mocks.MockNASAClient
	db        *gorm.DB
	asteroids repository.AsteroidRepository
	pictures  repository.PictureOfDayRepository
	snapshots repository.SnapshotRepository
	cache     cache.Cache

	mu      sync.Mutex
	now     time.Time
	service AsteroidService
	ctx     context.Context
}

func (s *AsteroidServiceTestSuite) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *AsteroidServiceTestSuite) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *AsteroidServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.client = mocks.NewMockNASAClient(s.ctrl)
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)

	db, err := database.Connect(database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(s.T().TempDir(), "service.db"),
	}, zerolog.Nop())
	s.Require().NoError(err)
	s.Require().NoError(database.Migrate(db, zerolog.Nop()))
	s.db = db

	s.asteroids = repository.NewAsteroidRepository(db, zerolog.Nop(), repository.WithClock(s.clock))
	s.pictures = repository.NewPictureOfDayRepository(db, zerolog.Nop())
	s.snapshots = repository.NewSnapshotRepository(db)
	s.cache = cache.NewMemoryCache(64, time.Hour)

	s.service = NewAsteroidService(
		s.asteroids,
		s.pictures,
		s.snapshots,
		s.cache,
		s.client,
		feed.NewParser(zerolog.Nop()),
		Config{
			FeedWindowDays:     7,
			MinRefreshInterval: 10 * time.Minute,
			SnapshotRetention:  72 * time.Hour,
			Now:                s.clock,
		},
		zerolog.Nop(),
	)
}

func (s *AsteroidServiceTestSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func TestAsteroidServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AsteroidServiceTestSuite))
}

func (s *AsteroidServiceTestSuite) TestRefreshAsteroids_StoresParsedFeed() {
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), "2024-01-10", "").Return(feedWithOneAsteroid, nil)

	s.Require().NoError(s.service.RefreshAsteroids(s.ctx))

	asteroids, err := s.service.GetAsteroids(s.ctx, models.FilterToday)
	s.Require().NoError(err)
	s.Require().Len(asteroids, 1)
	s.Equal(models.Asteroid{
		ID:                     3,
		Codename:               "(2024 AB)",
		CloseApproachDate:      "2024-01-10",
		AbsoluteMagnitude:      21.3,
		EstimatedDiameter:      0.25,
		RelativeVelocity:       12.5,
		DistanceFromEarth:      0.3,
		IsPotentiallyHazardous: true,
	}, asteroids[0])

	snapshot, err := s.snapshots.GetLatest(s.ctx, models.SnapshotSourceFeed)
	s.Require().NoError(err)
	s.Require().NotNil(snapshot)
	s.True(snapshot.FetchedAt.Equal(s.clock()))

	status, err := s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), status.Asteroids)
	s.Require().NotNil(status.LastAsteroidRefresh)
	s.Equal(1, status.LastAsteroidRefresh.Count)
	s.Nil(status.LastPictureRefresh)
}

func (s *AsteroidServiceTestSuite) TestRefreshAsteroids_NetworkErrorLeavesStore() {
	s.Require().NoError(s.asteroids.UpsertAll(s.ctx, []models.Asteroid{{ID: 1, Codename: "kept", CloseApproachDate: "2024-01-10"}}))
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").
		Return("", &apperr.NetworkError{Op: "fetch asteroid feed", Err: errors.New("connection refused")})

	err := s.service.RefreshAsteroids(s.ctx)

	var netErr *apperr.NetworkError
	s.Require().True(errors.As(err, &netErr), "got %v", err)

	asteroids, err := s.service.GetAsteroids(s.ctx, models.FilterSaved)
	s.Require().NoError(err)
	s.Require().Len(asteroids, 1)
	s.Equal("kept", asteroids[0].Codename)

	status, err := s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Nil(status.LastAsteroidRefresh, "a failed refresh sets no marker")
}

func (s *AsteroidServiceTestSuite) TestRefreshAsteroids_MalformedRecordWritesNothing() {
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").Return(feedWithMalformedRecord, nil)

	err := s.service.RefreshAsteroids(s.ctx)

	var recErr *apperr.MalformedRecordError
	s.Require().True(errors.As(err, &recErr), "got %v", err)
	s.Equal("2024-01-11", recErr.Date)
	s.Equal(0, recErr.Index)

	count, err := s.asteroids.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)

	snapshot, err := s.snapshots.GetLatest(s.ctx, models.SnapshotSourceFeed)
	s.Require().NoError(err)
	s.Nil(snapshot)
}

func (s *AsteroidServiceTestSuite) TestRefreshAsteroids_DecodeError() {
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").Return(`{"near_earth_objects": []}`, nil)

	err := s.service.RefreshAsteroids(s.ctx)

	var decodeErr *apperr.DecodeError
	s.True(errors.As(err, &decodeErr), "got %v", err)
}

func (s *AsteroidServiceTestSuite) TestRefreshAsteroids_SkipsWithinMinInterval() {
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), "2024-01-10", "").Return(feedWithOneAsteroid, nil).Times(2)

	s.Require().NoError(s.service.RefreshAsteroids(s.ctx))
	s.advance(5 * time.Minute)
	s.Require().NoError(s.service.RefreshAsteroids(s.ctx))
	s.advance(6 * time.Minute)
	s.Require().NoError(s.service.RefreshAsteroids(s.ctx))
}

func (s *AsteroidServiceTestSuite) TestRefreshPictureOfDay_SameURLReplaces() {
	gomock.InOrder(
		s.client.EXPECT().FetchPictureOfDay(gomock.Any()).
			Return(&clients.PictureOfDayResponse{MediaType: "image", Title: "first", URL: "https://apod.nasa.gov/x.jpg"}, nil),
		s.client.EXPECT().FetchPictureOfDay(gomock.Any()).
			Return(&clients.PictureOfDayResponse{MediaType: "image", Title: "second", URL: "https://apod.nasa.gov/x.jpg"}, nil),
	)

	s.Require().NoError(s.service.RefreshPictureOfDay(s.ctx))
	s.advance(time.Hour)
	s.Require().NoError(s.service.RefreshPictureOfDay(s.ctx))

	picture, err := s.service.GetPictureOfDay(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(picture)
	s.Equal("second", picture.Title)
	s.True(picture.CreatedAt.Equal(s.clock()))

	var rows int64
	s.Require().NoError(s.db.Model(&models.PictureOfDay{}).Count(&rows).Error)
	s.Equal(int64(1), rows)
}

func (s *AsteroidServiceTestSuite) TestRefreshPictureOfDay_RemoteError() {
	s.client.EXPECT().FetchPictureOfDay(gomock.Any()).
		Return(nil, &apperr.RemoteError{Op: "fetch picture of day", StatusCode: 503})

	err := s.service.RefreshPictureOfDay(s.ctx)

	var remoteErr *apperr.RemoteError
	s.Require().True(errors.As(err, &remoteErr), "got %v", err)

	picture, err := s.service.GetPictureOfDay(s.ctx)
	s.Require().NoError(err)
	s.Nil(picture)
}

func (s *AsteroidServiceTestSuite) TestRefreshAll_IndependentOperations() {
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").
		Return("", &apperr.RemoteError{Op: "fetch asteroid feed", StatusCode: 429})
	s.client.EXPECT().FetchPictureOfDay(gomock.Any()).
		Return(&clients.PictureOfDayResponse{MediaType: "video", Title: "launch", URL: "https://youtube.com/v"}, nil)

	report := s.service.RefreshAll(s.ctx)

	s.NotEmpty(report.RunID)
	s.Require().Len(report.Results, 2)
	s.Equal(1, report.Failed())
	s.Error(report.Err())

	s.Equal(OpRefreshAsteroids, report.Results[0].Operation)
	s.Equal("remote", report.Results[0].Kind)
	s.Equal(OpRefreshPictureOfDay, report.Results[1].Operation)
	s.NoError(report.Results[1].Err)

	picture, err := s.service.GetPictureOfDay(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(picture)
	s.Equal("launch", picture.Title)

	status, err := s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(status.LastPictureRefresh)
	s.Equal(report.RunID, status.LastPictureRefresh.RunID)
}

func (s *AsteroidServiceTestSuite) TestRefreshAll_ReportsSkipped() {
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").Return(feedWithOneAsteroid, nil).Times(1)
	s.client.EXPECT().FetchPictureOfDay(gomock.Any()).
		Return(&clients.PictureOfDayResponse{MediaType: "image", Title: "t", URL: "u"}, nil).Times(1)

	first := s.service.RefreshAll(s.ctx)
	second := s.service.RefreshAll(s.ctx)

	s.NoError(first.Err())
	s.NoError(second.Err())
	for _, result := range second.Results {
		s.True(result.Skipped, result.Operation)
	}
}

func (s *AsteroidServiceTestSuite) TestCleanupAll() {
	s.Require().NoError(s.asteroids.UpsertAll(s.ctx, []models.Asteroid{
		{ID: 1, Codename: "old", CloseApproachDate: "2024-01-09"},
		{ID: 2, Codename: "today", CloseApproachDate: "2024-01-10"},
	}))
	s.Require().NoError(s.pictures.Upsert(s.ctx, &models.PictureOfDay{URL: "old", CreatedAt: s.clock().Add(-24 * time.Hour)}))
	s.Require().NoError(s.pictures.Upsert(s.ctx, &models.PictureOfDay{URL: "new", CreatedAt: s.clock()}))
	s.Require().NoError(s.snapshots.Create(s.ctx, &models.FeedSnapshot{
		Source:    models.SnapshotSourceFeed,
		FetchedAt: s.clock().Add(-96 * time.Hour),
		Payload:   []byte(`{}`),
	}))

	report := s.service.CleanupAll(s.ctx)

	s.NoError(report.Err())
	s.Len(report.Results, 3)

	asteroids, err := s.service.GetAsteroids(s.ctx, models.FilterSaved)
	s.Require().NoError(err)
	s.Require().Len(asteroids, 1)
	s.Equal(int64(2), asteroids[0].ID)

	var pictures int64
	s.Require().NoError(s.db.Model(&models.PictureOfDay{}).Count(&pictures).Error)
	s.Equal(int64(1), pictures)

	snapshot, err := s.snapshots.GetLatest(s.ctx, models.SnapshotSourceFeed)
	s.Require().NoError(err)
	s.Nil(snapshot)
}

func (s *AsteroidServiceTestSuite) TestClearOldAsteroids_EmptyStore() {
	s.NoError(s.service.ClearOldAsteroids(s.ctx))
	s.NoError(s.service.ClearOldPictureOfDay(s.ctx))
}

func (s *AsteroidServiceTestSuite) TestWatchAsteroids_SeesRefresh() {
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").Return(feedWithOneAsteroid, nil)

	var sizes []int
	unsubscribe, err := s.service.WatchAsteroids(s.ctx, models.FilterWeek, func(asteroids []models.Asteroid) {
		sizes = append(sizes, len(asteroids))
	})
	s.Require().NoError(err)
	defer unsubscribe()

	s.Require().NoError(s.service.RefreshAsteroids(s.ctx))

	s.Equal([]int{0, 1}, sizes)
}

func (s *AsteroidServiceTestSuite) TestWatchPictureOfDay() {
	s.client.EXPECT().FetchPictureOfDay(gomock.Any()).
		Return(&clients.PictureOfDayResponse{MediaType: "image", Title: "t", URL: "u"}, nil)

	var seen []*models.PictureOfDay
	unsubscribe, err := s.service.WatchPictureOfDay(s.ctx, func(picture *models.PictureOfDay) {
		seen = append(seen, picture)
	})
	s.Require().NoError(err)
	defer unsubscribe()

	s.Require().NoError(s.service.RefreshPictureOfDay(s.ctx))

	s.Require().Len(seen, 2)
	s.Nil(seen[0])
	s.Equal("u", seen[1].URL)
}

func (s *AsteroidServiceTestSuite) TestStatus_CountsFailuresUntilSuccess() {
	networkErr := &apperr.NetworkError{Op: "fetch asteroid feed", Err: errors.New("connection refused")}
	gomock.InOrder(
		s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").Return("", networkErr),
		s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").Return("", networkErr),
		s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").Return(feedWithOneAsteroid, nil),
	)

	status, err := s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(StateIdle, status.AsteroidState)
	s.Equal(StateIdle, status.PictureState)

	s.Error(s.service.RefreshAsteroids(s.ctx))
	s.Error(s.service.RefreshAsteroids(s.ctx))

	status, err = s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(StateError, status.AsteroidState)
	s.Equal(int64(2), status.AsteroidFailures)
	s.Equal(int64(0), status.PictureFailures)

	s.Require().NoError(s.service.RefreshAsteroids(s.ctx))

	status, err = s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(StateDone, status.AsteroidState)
	s.Equal(int64(0), status.AsteroidFailures)
}

func (s *AsteroidServiceTestSuite) TestStatus_LoadingWhileRefreshRuns() {
	var during *Status
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").
		DoAndReturn(func(ctx context.Context, start, end string) (string, error) {
			status, err := s.service.Status(ctx)
			s.Require().NoError(err)
			during = status
			return feedWithOneAsteroid, nil
		})

	s.Require().NoError(s.service.RefreshAsteroids(s.ctx))

	s.Require().NotNil(during)
	s.Equal(StateLoading, during.AsteroidState)
	s.Equal(StateIdle, during.PictureState)

	status, err := s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(StateDone, status.AsteroidState)
}

func (s *AsteroidServiceTestSuite) TestLatestSnapshot() {
	s.client.EXPECT().FetchAsteroidFeed(gomock.Any(), gomock.Any(), "").Return(feedWithOneAsteroid, nil)

	snapshot, err := s.service.LatestSnapshot(s.ctx, models.SnapshotSourceFeed)
	s.Require().NoError(err)
	s.Nil(snapshot)

	s.Require().NoError(s.service.RefreshAsteroids(s.ctx))

	snapshot, err = s.service.LatestSnapshot(s.ctx, models.SnapshotSourceFeed)
	s.Require().NoError(err)
	s.Require().NotNil(snapshot)
	s.Contains(string(snapshot.Payload), "(2024 AB)")
	s.True(snapshot.FetchedAt.Equal(s.clock()))

	snapshot, err = s.service.LatestSnapshot(s.ctx, models.SnapshotSourceAPOD)
	s.Require().NoError(err)
	s.Nil(snapshot)
}
