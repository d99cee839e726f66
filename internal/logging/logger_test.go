package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	for _, development := range []bool{true, false} {
		logger, err := New(development)
		require.NoError(t, err)
		require.Equal(t, "shopharvest", logger.Name())
		require.NoError(t, logger.Sync())
	}
}
