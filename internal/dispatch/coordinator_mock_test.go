package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/clock"
	"github.com/chachabrian/wastepickup-backend/internal/dispatch/mocks"
	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/chachabrian/wastepickup-backend/internal/store"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type CoordinatorMockSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	uploads *mocks.MockUploadChecker
	bus     *fakeBus
	clock   *clock.MockClock
	coord   *Coordinator
}

func (s *CoordinatorMockSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.uploads = mocks.NewMockUploadChecker(s.ctrl)
	s.bus = &fakeBus{}
	s.clock = clock.NewMockClock(t0)
	s.coord = NewCoordinator(s.store, s.bus, s.clock, Config{}, WithUploads(s.uploads))
}

func TestCoordinatorMockSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorMockSuite))
}

func (s *CoordinatorMockSuite) pending() *models.PickupRequest {
	return &models.PickupRequest{
		ID:         "p1",
		CustomerID: "c1",
		Status:     models.PickupStatusPending,
		ExpiresAt:  t0.Add(models.DefaultPickupTTL),
		CreatedAt:  t0,
	}
}

func (s *CoordinatorMockSuite) TestAcceptIsASingleConditionalWrite() {
	ctx := context.Background()
	now := t0.Add(30 * time.Second)
	s.clock.Set(now)

	assigned := s.pending()
	assigned.Status = models.PickupStatusAssigned
	driverID := "d1"
	assigned.DriverID = &driverID
	assigned.DriverInfo = snapshot

	// no Get expectation: the winner is served from the written row
	s.store.EXPECT().Claim(gomock.Any(), "p1", "d1", "", snapshot, now).Return(assigned, nil).Times(1)

	got, err := s.coord.Accept(ctx, "p1", driver1, snapshot)
	s.Require().NoError(err)
	s.Equal(models.PickupStatusAssigned, got.Status)
	events := s.bus.take()
	s.Require().Len(events, 2)
	s.Equal(published{"customer:c1", EventAccepted, assigned.Payload(now)}, events[0])
	s.Equal(published{"drivers", EventAccepted, RemovalPayload{ID: "p1", Status: models.PickupStatusAssigned}}, events[1])
}

func (s *CoordinatorMockSuite) TestAcceptPassesDriverOrgToClaim() {
	orgDriver := models.Principal{ID: "d9", Role: models.RoleDriver, OrgID: "org-a"}
	org := "org-a"
	scoped := s.pending()
	scoped.OrgID = &org
	scoped.Status = models.PickupStatusAssigned

	s.store.EXPECT().Claim(gomock.Any(), "p1", "d9", "org-a", snapshot, t0).Return(scoped, nil)

	_, err := s.coord.Accept(context.Background(), "p1", orgDriver, snapshot)
	s.Require().NoError(err)
	events := s.bus.take()
	s.Require().Len(events, 2)
	s.Equal("drivers:org-a", events[1].room)
}

func (s *CoordinatorMockSuite) TestLostClaimOnOtherOrgIsForbidden() {
	org := "org-a"
	scoped := s.pending()
	scoped.OrgID = &org
	gomock.InOrder(
		s.store.EXPECT().Claim(gomock.Any(), "p1", "d1", "", snapshot, t0).Return(nil, nil),
		s.store.EXPECT().Get(gomock.Any(), "p1").Return(scoped, nil),
	)

	_, err := s.coord.Accept(context.Background(), "p1", driver1, snapshot)
	s.ErrorIs(err, ErrForbidden)
	s.Empty(s.bus.take())
}

func (s *CoordinatorMockSuite) TestStoreFailureSurfacesWithoutPublishing() {
	boom := errors.Mark(errors.New("connection refused"), store.ErrStoreUnavailable)
	s.store.EXPECT().Claim(gomock.Any(), "p1", "d1", "", gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := s.coord.Accept(context.Background(), "p1", driver1, snapshot)
	s.ErrorIs(err, store.ErrStoreUnavailable)
	s.Empty(s.bus.take())
}

func (s *CoordinatorMockSuite) TestForbiddenCancelNeverWrites() {
	s.store.EXPECT().Get(gomock.Any(), "p1").Return(s.pending(), nil)
	// no Cancel expectation: a write would fail the test

	_, err := s.coord.Cancel(context.Background(), "p1", stranger)
	s.ErrorIs(err, ErrForbidden)
}

func (s *CoordinatorMockSuite) TestCancelLosesToConcurrentTransition() {
	completed := s.pending()
	completed.Status = models.PickupStatusCompleted
	gomock.InOrder(
		s.store.EXPECT().Get(gomock.Any(), "p1").Return(s.pending(), nil),
		s.store.EXPECT().Cancel(gomock.Any(), "p1", t0).Return(nil, nil),
		s.store.EXPECT().Get(gomock.Any(), "p1").Return(completed, nil),
	)

	_, err := s.coord.Cancel(context.Background(), "p1", customer)
	s.ErrorIs(err, ErrInvalidState)
	s.Empty(s.bus.take())
}

func (s *CoordinatorMockSuite) TestCancelPublishesTheWrittenRow() {
	cancelled := s.pending()
	cancelled.Status = models.PickupStatusCancelled
	gomock.InOrder(
		s.store.EXPECT().Get(gomock.Any(), "p1").Return(s.pending(), nil).Times(1),
		s.store.EXPECT().Cancel(gomock.Any(), "p1", t0).Return(cancelled, nil),
	)

	got, err := s.coord.Cancel(context.Background(), "p1", customer)
	s.Require().NoError(err)
	s.Equal(models.PickupStatusCancelled, got.Status)
	events := s.bus.take()
	s.Require().Len(events, 2)
	s.Equal(published{"customer:c1", EventStatus, cancelled.Payload(t0)}, events[0])
	s.Equal(published{"drivers", EventCancelled, RemovalPayload{ID: "p1"}}, events[1])
}

func (s *CoordinatorMockSuite) TestUploadCheckFailure() {
	ref := "pickups/1.jpg"
	in := validInput()
	in.UploadRef = &ref
	s.uploads.EXPECT().Exists(gomock.Any(), ref).Return(false, errors.New("s3 timeout"))

	_, err := s.coord.Create(context.Background(), customer, in)
	s.Error(err)
	s.NotErrorIs(err, ErrValidation)
}

func (s *CoordinatorMockSuite) TestCreateStoreFailure() {
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(store.ErrStoreUnavailable)

	_, err := s.coord.Create(context.Background(), customer, validInput())
	s.ErrorIs(err, store.ErrStoreUnavailable)
	s.Empty(s.bus.take())
}
