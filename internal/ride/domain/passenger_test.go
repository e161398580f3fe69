package domain_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/ridemediator/internal/ride/domain"
)

type stubMediator struct {
	candidates []domain.Candidate
	outcomes   map[uuid.UUID]domain.Outcome
	confirms   []uuid.UUID
	location   domain.Location
}

func (s *stubMediator) RequestRide(_ context.Context, _ uuid.UUID, location domain.Location) ([]domain.Candidate, error) {
	s.location = location
	return s.candidates, nil
}

func (s *stubMediator) ConfirmRide(_ context.Context, driverID, _ uuid.UUID) (domain.Outcome, error) {
	s.confirms = append(s.confirms, driverID)
	if outcome, ok := s.outcomes[driverID]; ok {
		return outcome, nil
	}
	return domain.OutcomeRejected, nil
}

func candidates(names ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Candidate{ID: uuid.New(), Name: n})
	}
	return out
}

// scriptedChooser replays names in order and gives up when they run out.
func scriptedChooser(names ...string) domain.ChooseFunc {
	return func(context.Context, uuid.UUID, []domain.Candidate) (string, bool) {
		if len(names) == 0 {
			return "", false
		}
		next := names[0]
		names = names[1:]
		return next, true
	}
}

func TestPassengerRequestRideDelegates(t *testing.T) {
	offered := candidates("Driver 1", "Driver 2")
	med := &stubMediator{candidates: offered}
	p := domain.NewPassenger("Passenger 1", med, nil, nil)

	got, err := p.RequestRide(context.Background(), "Some location")
	require.NoError(t, err)
	require.Equal(t, offered, got)
	require.Equal(t, domain.Location("Some location"), med.location)
}

func TestPassengerShowOptionsCallsHook(t *testing.T) {
	var shown []domain.Candidate
	var who uuid.UUID
	p := domain.NewPassenger("Passenger 1", &stubMediator{}, func(id uuid.UUID, c []domain.Candidate) {
		who = id
		shown = c
	}, nil)

	offered := candidates("Driver 1")
	p.ShowOptions(offered)
	require.Equal(t, p.ID, who)
	require.Equal(t, offered, shown)

	domain.NewPassenger("quiet", &stubMediator{}, nil, nil).ShowOptions(offered)
}

func TestChooseDriverRejectsUnknownName(t *testing.T) {
	med := &stubMediator{}
	p := domain.NewPassenger("Passenger 1", med, nil, nil)

	_, err := p.ChooseDriver(context.Background(), candidates("Driver 1"), "Driver 9")
	require.ErrorIs(t, err, domain.ErrInvalidSelection)
	require.Empty(t, med.confirms)
}

func TestSelectRideRetriesAfterRejection(t *testing.T) {
	offered := candidates("Driver 1", "Driver 2")
	med := &stubMediator{outcomes: map[uuid.UUID]domain.Outcome{
		offered[0].ID: domain.OutcomeRejected,
		offered[1].ID: domain.OutcomeConfirmed,
	}}
	p := domain.NewPassenger("Passenger 1", med, nil, scriptedChooser("Driver 1", "Driver 2"))

	ok, err := p.SelectRide(context.Background(), offered)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []uuid.UUID{offered[0].ID, offered[1].ID}, med.confirms)
}

func TestSelectRideRepromptsOnInvalidName(t *testing.T) {
	offered := candidates("Driver 1")
	med := &stubMediator{outcomes: map[uuid.UUID]domain.Outcome{offered[0].ID: domain.OutcomeConfirmed}}
	p := domain.NewPassenger("Passenger 1", med, nil, scriptedChooser("nobody", "Driver 1"))

	ok, err := p.SelectRide(context.Background(), offered)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, med.confirms, 1)
}

func TestSelectRideGivesUpAfterRepeatedInvalidNames(t *testing.T) {
	p := domain.NewPassenger("Passenger 1", &stubMediator{}, nil, scriptedChooser("a", "b", "c", "d"))

	ok, err := p.SelectRide(context.Background(), candidates("Driver 1"))
	require.ErrorIs(t, err, domain.ErrInvalidSelection)
	require.False(t, ok)
}

func TestSelectRideStopsWhenQueued(t *testing.T) {
	offered := candidates("Driver 1", "Driver 2")
	med := &stubMediator{outcomes: map[uuid.UUID]domain.Outcome{offered[0].ID: domain.OutcomeQueued}}
	p := domain.NewPassenger("Passenger 1", med, nil, scriptedChooser("Driver 1", "Driver 2"))

	ok, err := p.SelectRide(context.Background(), offered)
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, med.confirms, 1, "queued requests are not retried automatically")
}

func TestSelectRideRunsOutOfCandidates(t *testing.T) {
	offered := candidates("Driver 1")
	p := domain.NewPassenger("Passenger 1", &stubMediator{}, nil, scriptedChooser("Driver 1", "Driver 1"))

	ok, err := p.SelectRide(context.Background(), offered)
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, offered, 1, "caller's slice is left intact")
}

func TestSelectRideWithoutChooser(t *testing.T) {
	p := domain.NewPassenger("Passenger 1", &stubMediator{}, nil, nil)
	_, err := p.SelectRide(context.Background(), candidates("Driver 1"))
	require.ErrorIs(t, err, domain.ErrSelectionAbandoned)
}

func TestPassengerAssignAndClearDriver(t *testing.T) {
	p := domain.NewPassenger("Passenger 1", &stubMediator{}, nil, nil)
	_, ok := p.AssignedDriver()
	require.False(t, ok)

	driverID := uuid.New()
	p.AssignDriver(driverID)
	got, ok := p.AssignedDriver()
	require.True(t, ok)
	require.Equal(t, driverID, got)

	p.ClearDriver()
	_, ok = p.AssignedDriver()
	require.False(t, ok)
}
