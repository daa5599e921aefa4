package mary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/humanlogica/internal/evaluator"
	"github.com/user/humanlogica/internal/ledger"
	"github.com/user/humanlogica/internal/speaker"
	"github.com/user/humanlogica/internal/value"
)

func counterClock() Clock {
	var n int64
	return func() int64 {
		n++
		return n
	}
}

func bootTestKernel(t *testing.T) *Mary {
	t.Helper()
	return Boot(WithClock(counterClock()), WithLoopBound(10000))
}

func TestBootMintsRoot(t *testing.T) {
	m := bootTestKernel(t)
	root, ok := m.Registry.Get(speaker.RootID)
	require.True(t, ok)
	require.Equal(t, speaker.RootName, root.Name)
	require.True(t, m.Ledger.VerifyIntegrity())
}

func TestCreateSpeakerCreatesPartitionAndLogs(t *testing.T) {
	m := bootTestKernel(t)
	before := m.Ledger.Count()

	s, err := m.CreateSpeaker(speaker.RootID, "Jared")
	require.NoError(t, err)
	require.Equal(t, "Jared", s.Name)
	require.True(t, m.Memory.HasPartition(s.ID))
	require.Greater(t, m.Ledger.Count(), before)
}

// TestWriteOwnershipInvariant proves spec.md §8 invariant 2: WriteTo from a
// non-owner caller always fails, leaves memory unchanged, and logs a broken
// write_violation entry.
func TestWriteOwnershipInvariant(t *testing.T) {
	m := bootTestKernel(t)
	jared, _ := m.CreateSpeaker(speaker.RootID, "Jared")
	maria, _ := m.CreateSpeaker(speaker.RootID, "Maria")

	err := m.WriteTo(maria.ID, jared.ID, "grade", value.Int(100))
	require.Error(t, err)

	v, _ := m.Read(speaker.RootID, jared.ID, "grade")
	require.Equal(t, value.None{}, v, "memory must be unchanged")

	violations := m.Ledger.Search(ledger.Filter{HasOperation: true, Operation: ledger.OpWriteViolation})
	require.Len(t, violations, 1)
	require.Equal(t, ledger.StatusBroken, violations[0].Status)
}

func TestOwnWriteSucceedsThroughWriteTo(t *testing.T) {
	m := bootTestKernel(t)
	jared, _ := m.CreateSpeaker(speaker.RootID, "Jared")

	err := m.WriteTo(jared.ID, jared.ID, "grade", value.Int(100))
	require.NoError(t, err)

	v, _ := m.Read(speaker.RootID, jared.ID, "grade")
	require.Equal(t, value.Int(100), v)
}

// TestWriteEmitsExactlyOnePrecedingLedgerEntry proves invariant 3 (A10):
// every state change has exactly one immediately preceding write entry.
func TestWriteEmitsExactlyOnePrecedingLedgerEntry(t *testing.T) {
	m := bootTestKernel(t)
	jared, _ := m.CreateSpeaker(speaker.RootID, "Jared")

	before := m.Ledger.Count()
	require.NoError(t, m.Write(jared.ID, "x", value.Int(1)))
	after := m.Ledger.Count()
	require.Equal(t, before+1, after)

	entries := m.Ledger.Read(after-1, after)
	require.Len(t, entries, 1)
	require.Equal(t, ledger.OpWrite, entries[0].Operation)
	require.Equal(t, jared.ID, entries[0].SpeakerID)
}

func TestSuspendedSpeakerCannotAct(t *testing.T) {
	m := bootTestKernel(t)
	jared, _ := m.CreateSpeaker(speaker.RootID, "Jared")
	require.NoError(t, m.SuspendSpeaker(speaker.RootID, jared.ID))

	err := m.Write(jared.ID, "x", value.Int(1))
	require.Error(t, err)
}

func TestOnlyRootMaySuspend(t *testing.T) {
	m := bootTestKernel(t)
	jared, _ := m.CreateSpeaker(speaker.RootID, "Jared")
	maria, _ := m.CreateSpeaker(speaker.RootID, "Maria")

	err := m.SuspendSpeaker(jared.ID, maria.ID)
	require.Error(t, err)
}

// TestSupersession proves spec.md §8 invariant 7.
func TestSupersession(t *testing.T) {
	m := bootTestKernel(t)
	jared, _ := m.CreateSpeaker(speaker.RootID, "Jared")

	first := &evaluator.Expression{ConditionLabel: "ok", ActionLabel: "speak"}
	_, err := m.Submit(jared.ID, first)
	require.NoError(t, err)

	second := &evaluator.Expression{ConditionLabel: "ok", ActionLabel: "speak"}
	_, err = m.Submit(jared.ID, second)
	require.NoError(t, err)

	status, err := m.ExpressionStatus(jared.ID, first.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusInactive, status)
	require.Equal(t, evaluator.VersionSuperseded, first.Version)

	supersedes := m.Ledger.Search(ledger.Filter{HasOperation: true, Operation: ledger.OpSupersede})
	require.Len(t, supersedes, 1)
}

// TestRequestRefusal proves spec.md §8 scenario 6.
func TestRequestRefusal(t *testing.T) {
	m := bootTestKernel(t)
	a, _ := m.CreateSpeaker(speaker.RootID, "A")
	b, _ := m.CreateSpeaker(speaker.RootID, "B")

	_, err := m.Request(a.ID, b.ID, "r", nil, false, 0, false)
	require.NoError(t, err)

	r, err := m.Respond(b.ID, "", false, nil, false)
	require.NoError(t, err)
	require.Equal(t, "refused", string(r.Status))

	// No partition of A was written by B.
	v, _ := m.Read(speaker.RootID, a.ID, "anything")
	require.Equal(t, value.None{}, v)
}

func TestOnlyTargetMayRespond(t *testing.T) {
	m := bootTestKernel(t)
	a, _ := m.CreateSpeaker(speaker.RootID, "A")
	b, _ := m.CreateSpeaker(speaker.RootID, "B")
	c, _ := m.CreateSpeaker(speaker.RootID, "C")

	_, err := m.Request(a.ID, b.ID, "r", nil, false, 0, false)
	require.NoError(t, err)

	_, err = m.Respond(c.ID, "", true, nil, false)
	require.Error(t, err)
}

func TestCheckTimeoutsExpiresOverdueRequestThroughFacade(t *testing.T) {
	m := bootTestKernel(t)
	a, _ := m.CreateSpeaker(speaker.RootID, "A")
	b, _ := m.CreateSpeaker(speaker.RootID, "B")

	_, err := m.Request(a.ID, b.ID, "r", nil, false, 1, true)
	require.NoError(t, err)

	expired := m.CheckTimeouts()
	require.Len(t, expired, 1)

	entries := m.Ledger.Search(ledger.Filter{HasOperation: true, Operation: ledger.OpRequestExpired})
	require.Len(t, entries, 1)
}

func TestLedgerVerifyAfterActivity(t *testing.T) {
	m := bootTestKernel(t)
	jared, _ := m.CreateSpeaker(speaker.RootID, "Jared")
	m.Write(jared.ID, "x", value.Int(1))
	m.Submit(jared.ID, &evaluator.Expression{ActionLabel: "noop"})

	ok, err := m.LedgerVerify(speaker.RootID)
	require.NoError(t, err)
	require.True(t, ok)
}
