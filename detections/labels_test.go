package detections

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	table := NewLabelTable([]string{"cat", "dog"})
	require.Equal(t, "cat", table.Resolve(0))
	require.Equal(t, "dog", table.Resolve(1))
	require.Equal(t, UnknownLabel, table.Resolve(5))
	require.Equal(t, UnknownLabel, table.Resolve(2))
	require.Equal(t, UnknownLabel, table.Resolve(-1))
}

func TestResolveClass(t *testing.T) {
	table := NewLabelTable([]string{"cat", "dog"})
	cases := []struct {
		class float32
		want  string
	}{
		{0, "cat"},
		{1, "dog"},
		{1.9, "dog"},
		{0.5, "cat"},
		{2, UnknownLabel},
		{-1, UnknownLabel},
		{-1.5, UnknownLabel},
		{float32(math.NaN()), UnknownLabel},
		{float32(math.Inf(1)), UnknownLabel},
		{float32(math.Inf(-1)), UnknownLabel},
		{1e20, UnknownLabel},
	}
	for _, c := range cases {
		require.Equal(t, c.want, table.ResolveClass(c.class), "class %v", c.class)
	}
}

func TestLabelTableIsImmutable(t *testing.T) {
	names := []string{"cat", "dog"}
	table := NewLabelTable(names)
	names[0] = "mouse"
	require.Equal(t, "cat", table.Resolve(0))

	out := table.Names()
	out[1] = "horse"
	require.Equal(t, "dog", table.Resolve(1))
}

func TestEmptyLabelTable(t *testing.T) {
	var table LabelTable
	require.Equal(t, 0, table.Len())
	require.Equal(t, UnknownLabel, table.Resolve(0))
}
