package requestbus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/humanlogica/internal/ledger"
	"github.com/user/humanlogica/internal/speaker"
)

func counterClock() Clock {
	var n int64
	return func() int64 {
		n++
		return n
	}
}

func TestCheckTimeoutsExpiresOverdueRequestAndLedgersIt(t *testing.T) {
	l := ledger.NewWithClock(ledger.Clock(counterClock()))
	b := New(counterClock(), l)

	r := b.CreateRequest(1, 2, "grade", nil, false, 5, true)
	require.Equal(t, StatusPending, r.Status)

	expired := b.CheckTimeouts(100)
	require.Len(t, expired, 1)
	require.Equal(t, r.ID, expired[0].ID)
	require.Equal(t, StatusExpired, r.Status)

	entries := l.Search(ledger.Filter{HasOperation: true, Operation: ledger.OpRequestExpired})
	require.Len(t, entries, 1)
	require.Equal(t, speaker.RootID, entries[0].SpeakerID)
	require.Equal(t, ledger.StatusBroken, entries[0].Status)
}

func TestCheckTimeoutsIgnoresRequestsWithoutDeadlineOrNotYetDue(t *testing.T) {
	l := ledger.NewWithClock(ledger.Clock(counterClock()))
	b := New(counterClock(), l)

	b.CreateRequest(1, 2, "grade", nil, false, 0, false)
	b.CreateRequest(1, 2, "grade", nil, false, 1000, true)

	expired := b.CheckTimeouts(10)
	require.Empty(t, expired)
	require.Empty(t, l.Search(ledger.Filter{HasOperation: true, Operation: ledger.OpRequestExpired}))
}

func TestCheckTimeoutsToleratesNilLedger(t *testing.T) {
	b := New(counterClock(), nil)
	b.CreateRequest(1, 2, "grade", nil, false, 1, true)
	require.NotPanics(t, func() {
		b.CheckTimeouts(100)
	})
}
