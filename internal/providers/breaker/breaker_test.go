package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicewise/insights/internal/logger"
)

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.MinRequests = 3
	cfg.Timeout = time.Minute
	cb := New(cfg, logger.Discard())

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := Execute(cb, func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	}

	_, err := Execute(cb, func() (int, error) { return 1, nil })
	require.Error(t, err)
	assert.True(t, Open(err))
}

func TestExecuteReturnsTypedValue(t *testing.T) {
	cb := New(DefaultConfig("ok"), logger.Discard())
	v, err := Execute(cb, func() ([]float32, error) { return []float32{1, 2}, nil })
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.False(t, Open(nil))
}
