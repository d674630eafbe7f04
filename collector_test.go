package refit

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/refit/internal/analysis"
)

func TestResultSet_ConcurrentAdd(t *testing.T) {
	t.Parallel()

	rs := NewResultSet()
	var wg sync.WaitGroup
	for w := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				assert.NoError(t, rs.Add(analysis.Finding{Rule: fmt.Sprintf("w%d", w), Message: fmt.Sprint(i)}))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, rs.Len())
	findings, err := rs.Drain()
	require.NoError(t, err)
	assert.Len(t, findings, 800)

	seen := map[string]bool{}
	for _, f := range findings {
		seen[f.Rule+"/"+f.Message] = true
	}
	assert.Len(t, seen, 800)
}

func TestResultSet_AddAfterDrain(t *testing.T) {
	t.Parallel()

	rs := NewResultSet()
	require.NoError(t, rs.Add(analysis.Finding{Rule: "a"}, analysis.Finding{Rule: "b"}))

	findings, err := rs.Drain()
	require.NoError(t, err)
	assert.Len(t, findings, 2)

	require.ErrorIs(t, rs.Add(analysis.Finding{Rule: "c"}), ErrResultSetDrained)
	_, err = rs.Drain()
	require.ErrorIs(t, err, ErrResultSetDrained)
}

func TestResultSet_Empty(t *testing.T) {
	t.Parallel()

	rs := NewResultSet()
	require.NoError(t, rs.Add())
	findings, err := rs.Drain()
	require.NoError(t, err)
	assert.Empty(t, findings)
}
