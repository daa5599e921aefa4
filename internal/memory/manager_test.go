package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/humanlogica/internal/value"
)

func TestCreatePartitionIsIdempotent(t *testing.T) {
	m := New()
	m.CreatePartition(1)
	m.CreatePartition(1)
	require.True(t, m.HasPartition(1))
}

func TestReadNeverFails(t *testing.T) {
	m := New()
	require.Equal(t, value.None{}, m.Read(1, "grade")) // no partition at all
	m.CreatePartition(1)
	require.Equal(t, value.None{}, m.Read(1, "grade")) // partition exists, var doesn't
}

func TestWriteRequiresOwnerPartition(t *testing.T) {
	m := New()
	ok, _ := m.Write(1, "grade", value.Int(100))
	require.False(t, ok, "write without a partition must fail")

	m.CreatePartition(1)
	ok, old := m.Write(1, "grade", value.Int(100))
	require.True(t, ok)
	require.Equal(t, value.None{}, old)

	ok, old = m.Write(1, "grade", value.Int(90))
	require.True(t, ok)
	require.Equal(t, value.Int(100), old)
}

// TestNoWriteOnBehalfOfAnotherSpeaker proves invariant 2's memory half:
// Write only ever takes a single callerID, which is also the partition it
// mutates — there is no owner parameter distinct from caller, so
// cross-speaker writes are not expressible through this API at all.
func TestNoWriteOnBehalfOfAnotherSpeaker(t *testing.T) {
	m := New()
	m.CreatePartition(1)
	m.CreatePartition(2)

	m.Write(1, "x", value.Int(1))
	require.Equal(t, value.None{}, m.Read(2, "x"))
}

func TestListVarsPreservesWriteOrder(t *testing.T) {
	m := New()
	m.CreatePartition(1)
	m.Write(1, "b", value.Int(2))
	m.Write(1, "a", value.Int(1))
	m.Write(1, "b", value.Int(3)) // rewrite, should not duplicate or reorder

	require.Equal(t, []string{"b", "a"}, m.ListVars(1))
}

func TestSnapshotIsSortedAndDeterministic(t *testing.T) {
	m := New()
	m.CreatePartition(1)
	m.Write(1, "zeta", value.Int(1))
	m.Write(1, "alpha", value.Int(2))

	snap := m.Snapshot(1)
	require.Equal(t, "1", snap["alpha"])
	require.Equal(t, "2", snap["zeta"])
}
