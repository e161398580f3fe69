package domain_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/ridemediator/internal/ride/domain"
)

func accept(context.Context, uuid.UUID, uuid.UUID) bool  { return true }
func decline(context.Context, uuid.UUID, uuid.UUID) bool { return false }

func TestDriverAcceptReservesInsideDecision(t *testing.T) {
	d := domain.NewDriver("Driver 1", accept)
	require.True(t, d.Available())
	require.Equal(t, domain.DriverAvailable, d.State())

	require.True(t, d.DecideOnRide(context.Background(), uuid.New()))
	require.False(t, d.Available())
	require.Equal(t, domain.DriverAssigned, d.State())
}

func TestDriverDeclineKeepsAvailability(t *testing.T) {
	d := domain.NewDriver("Driver 1", decline)
	require.False(t, d.DecideOnRide(context.Background(), uuid.New()))
	require.True(t, d.Available())
	_, ok := d.CurrentPassenger()
	require.False(t, ok)
}

func TestDriverFailsClosedWhenUnavailable(t *testing.T) {
	calls := 0
	d := domain.NewDriver("Driver 1", func(context.Context, uuid.UUID, uuid.UUID) bool {
		calls++
		return true
	})
	d.AssignPassenger(uuid.New())

	require.False(t, d.DecideOnRide(context.Background(), uuid.New()))
	require.Zero(t, calls, "hook must not be asked while on a ride")
}

func TestDriverNilHookDeclines(t *testing.T) {
	d := domain.NewDriver("Driver 1", nil)
	require.False(t, d.DecideOnRide(context.Background(), uuid.New()))
	require.True(t, d.Available())
}

func TestDriverReportsDecidingWhileHookRuns(t *testing.T) {
	var d *domain.Driver
	var during domain.DriverState
	d = domain.NewDriver("Driver 1", func(context.Context, uuid.UUID, uuid.UUID) bool {
		during = d.State()
		return false
	})
	d.DecideOnRide(context.Background(), uuid.New())
	require.Equal(t, domain.DriverDeciding, during)
	require.Equal(t, domain.DriverAvailable, d.State())
}

func TestDriverCompleteRideResets(t *testing.T) {
	d := domain.NewDriver("Driver 1", accept)
	passengerID := uuid.New()
	require.True(t, d.DecideOnRide(context.Background(), passengerID))
	d.AssignPassenger(passengerID)

	current, ok := d.CurrentPassenger()
	require.True(t, ok)
	require.Equal(t, passengerID, current)

	dropped, ok := d.CompleteRide()
	require.True(t, ok)
	require.Equal(t, passengerID, dropped)
	require.True(t, d.Available())
	_, ok = d.CurrentPassenger()
	require.False(t, ok)

	_, ok = d.CompleteRide()
	require.False(t, ok, "completing an idle driver drops nobody")
}

func TestDriverReleaseAccept(t *testing.T) {
	d := domain.NewDriver("Driver 1", accept)
	require.True(t, d.DecideOnRide(context.Background(), uuid.New()))
	d.ReleaseAccept()
	require.True(t, d.Available())

	bound := uuid.New()
	d.AssignPassenger(bound)
	d.ReleaseAccept()
	require.False(t, d.Available(), "assigned driver stays taken")
	current, ok := d.CurrentPassenger()
	require.True(t, ok)
	require.Equal(t, bound, current)
}
