package signing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewExpiryScheduler(t *testing.T) {
	e := newEnv(t)

	_, err := NewExpiryScheduler(e.o, "not a schedule")
	require.Error(t, err)

	s, err := NewExpiryScheduler(e.o, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
