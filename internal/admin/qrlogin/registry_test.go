package qrlogin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, b Backend, idle time.Duration) (*Registry, *FakeClock) {
	t.Helper()
	clock := NewFakeClock(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewRegistry(b, Options{Clock: clock, PollInterval: 2 * time.Second, AutoRefresh: -1}, idle), clock
}

func TestRegistryReusesControllerPerSession(t *testing.T) {
	reg, _ := newTestRegistry(t, newScriptedBackend(), time.Minute)

	a := reg.Get("sess-1", "tok")
	require.Same(t, a, reg.Get("sess-1", "tok"))
	require.NotSame(t, a, reg.Get("sess-2", "tok"))
	require.Equal(t, 2, reg.Len())
}

func TestRegistryReplacesControllerOnTokenChange(t *testing.T) {
	reg, clock := newTestRegistry(t, newScriptedBackend(), time.Minute)

	old := reg.Get("sess-1", "tok-a")
	_, err := old.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, clock.Pending())

	fresh := reg.Get("sess-1", "tok-b")
	require.NotSame(t, old, fresh)
	require.Equal(t, "tok-b", fresh.Token())
	require.Zero(t, clock.Pending())

	_, err = old.Start(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestRegistryFlagsAccountsChangedOnce(t *testing.T) {
	b := newScriptedBackend()
	b.script("S1", "success")
	reg, clock := newTestRegistry(t, b, time.Minute)

	ctrl := reg.Get("sess-1", "tok")
	_, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	require.False(t, reg.ConsumeAccountsChanged("sess-1"))

	clock.Advance(2 * time.Second)
	require.True(t, reg.ConsumeAccountsChanged("sess-1"))
	require.False(t, reg.ConsumeAccountsChanged("sess-1"))
	require.False(t, reg.ConsumeAccountsChanged("unknown"))
}

func TestRegistryForgetAndSweep(t *testing.T) {
	reg, clock := newTestRegistry(t, newScriptedBackend(), time.Minute)

	ctrl := reg.Get("sess-1", "tok")
	_, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	reg.Forget("sess-1")
	require.Zero(t, reg.Len())
	require.Zero(t, clock.Pending())

	reg.Get("sess-2", "tok")
	clock.Advance(30 * time.Second)
	reg.Get("sess-3", "tok")
	clock.Advance(45 * time.Second)

	require.Equal(t, 1, reg.Sweep())
	require.Equal(t, 1, reg.Len())
}

func TestRegistryRunClosesOnShutdown(t *testing.T) {
	reg, clock := newTestRegistry(t, newScriptedBackend(), time.Minute)
	_, err := reg.Get("sess-1", "tok").Start(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done

	require.Zero(t, reg.Len())
	require.Zero(t, clock.Pending())
}

func TestRegistrySharesClockAndInterval(t *testing.T) {
	reg, clock := newTestRegistry(t, newScriptedBackend(), time.Minute)
	require.Equal(t, 2*time.Second, reg.PollInterval())
	clock.Advance(5 * time.Second)
	require.Equal(t, clock.Now(), reg.Now())

	bare := NewRegistry(newScriptedBackend(), Options{}, 0)
	require.Equal(t, DefaultPollInterval, bare.PollInterval())
}
