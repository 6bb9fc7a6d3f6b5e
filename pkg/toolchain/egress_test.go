package toolchain

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEgressGuard_BlocksAndRestores(t *testing.T) {
	originalDial := DialContext
	g := NewEgressGuard()

	attempted, err := g.Scope(func() error {
		_, dialErr := DialContext(context.Background(), "tcp", "example.com:80")
		return dialErr
	})

	require.ErrorIs(t, err, ErrEgressBlocked)
	require.True(t, attempted)
	require.False(t, g.Active())

	// restored: DialContext is non-nil after the scope; Go func values
	// cannot be compared, so identity with originalDial is not checked.
	require.NotNil(t, DialContext)
	_ = originalDial
}

func TestEgressGuard_NoAttemptWithoutDial(t *testing.T) {
	g := NewEgressGuard()
	attempted, err := g.Scope(func() error { return nil })
	require.NoError(t, err)
	require.False(t, attempted)
}

func TestEgressGuard_RestoresOnPanic(t *testing.T) {
	g := NewEgressGuard()
	func() {
		defer func() { _ = recover() }()
		g.Enable()
		defer g.Disable()
		panic("boom")
	}()
	require.False(t, g.Active())
}

func TestEgressGuard_ResolverBlocked(t *testing.T) {
	g := NewEgressGuard()
	g.Enable()
	defer g.Disable()

	_, err := net.DefaultResolver.LookupHost(context.Background(), "example.com")
	require.Error(t, err)
}
