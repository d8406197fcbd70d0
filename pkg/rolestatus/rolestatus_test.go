package rolestatus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keyki/hoya/pkg/types"
)

func newTestStatus() *RoleStatus {
	return New(types.Role{Name: "worker", ID: 5})
}

func TestDeltaArithmetic(t *testing.T) {
	tests := []struct {
		name      string
		desired   int
		requested int
		actual    int
		releasing int
		want      int
	}{
		{"nothing yet", 3, 0, 0, 0, 3},
		{"fully satisfied", 3, 0, 3, 0, 0},
		{"requests outstanding", 3, 2, 1, 0, 0},
		{"over capacity", 2, 0, 4, 0, -2},
		{"releasing counted back in", 2, 0, 3, 1, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rs := newTestStatus()
			rs.SetDesired(tc.desired)
			for i := 0; i < tc.requested; i++ {
				rs.IncRequested()
			}
			for i := 0; i < tc.actual; i++ {
				rs.IncActual()
			}
			for i := 0; i < tc.releasing; i++ {
				rs.IncReleasing()
			}
			assert.Equal(t, tc.want, rs.Delta())
		})
	}
}

func TestNoteFailedRecordsMessage(t *testing.T) {
	rs := newTestStatus()
	assert.Equal(t, "", rs.FailureMessage())

	n := rs.NoteFailed("container crashed")
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, rs.Failed())
	assert.Equal(t, "container crashed", rs.FailureMessage())

	rs.NoteFailed("")
	assert.Equal(t, 2, rs.Failed())
	assert.Equal(t, "container crashed", rs.FailureMessage(), "empty message must not overwrite the last one")
}

func TestBuildStatistics(t *testing.T) {
	rs := newTestStatus()
	rs.SetDesired(4)
	rs.IncActual()
	rs.IncRequested()
	rs.IncStarted()
	rs.NoteFailed("boom")

	stats := rs.BuildStatistics()
	assert.Equal(t, 4, stats["desired"])
	assert.Equal(t, 1, stats["actual"])
	assert.Equal(t, 1, stats["requested"])
	assert.Equal(t, 1, stats["started"])
	assert.Equal(t, 1, stats["failed"])
}

func TestExcludeFromFlexing(t *testing.T) {
	rs := newTestStatus()
	assert.False(t, rs.ExcludeFromFlexing())
	rs.SetExcludeFromFlexing(true)
	assert.True(t, rs.ExcludeFromFlexing())
}
