package gate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeMatcher_Contains(t *testing.T) {
	t.Parallel()

	m, err := NewRangeMatcher([]string{"52.0.0.0/11", "2600:1f00::/24", " 34.64.0.0/10 ", ""})
	require.NoError(t, err)

	require.True(t, m.Contains("52.10.20.30"))
	require.True(t, m.Contains("34.100.0.1"))
	require.True(t, m.Contains("2600:1f01::1"))
	require.False(t, m.Contains("198.51.100.10"))
	require.False(t, m.Contains("not-an-address"))
	require.False(t, m.Contains(""))
}

func TestRangeMatcher_RejectsMalformedCIDR(t *testing.T) {
	t.Parallel()

	_, err := NewRangeMatcher([]string{"52.0.0.0/11", "bogus"})
	require.Error(t, err)
}

func TestRangeMatcher_NilAndEmpty(t *testing.T) {
	t.Parallel()

	var m *RangeMatcher
	require.False(t, m.Contains("52.10.20.30"))

	empty, err := NewRangeMatcher(nil)
	require.NoError(t, err)
	require.False(t, empty.Contains("52.10.20.30"))
}
