package toolchain

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
)

// ErrEgressBlocked is returned by every network primitive trapped while an
// EgressGuard scope is active.
var ErrEgressBlocked = errors.New("toolchain: egress blocked by offline scope")

// DialContext is the process-wide dial function the egress guard traps.
// Enable swaps it for a blocking stand-in and Disable restores the
// original. Only calls made through this variable, net.DefaultResolver or
// http.DefaultTransport are trapped; a direct net.Dial is not.
var DialContext func(ctx context.Context, network, addr string) (net.Conn, error) = (&net.Dialer{}).DialContext

// EgressGuard is the scoped offline-mode acquisition described in §4.1. Its
// zero value is an inactive guard ready for use, the same value
// NewEgressGuard returns. Restoration on scope exit is unconditional —
// Scope calls Disable from a deferred call so it fires on panic paths too.
type EgressGuard struct {
	active     int32
	attempted  int32
	prevDial   func(ctx context.Context, network, addr string) (net.Conn, error)
	prevResolver *net.Resolver
	prevTransport http.RoundTripper
}

// NewEgressGuard constructs an inactive guard.
func NewEgressGuard() *EgressGuard {
	return &EgressGuard{}
}

// Enable activates offline enforcement: all subsequent DialContext calls,
// net.DefaultResolver lookups, and http.DefaultTransport round trips fail
// with ErrEgressBlocked until Disable is called.
func (g *EgressGuard) Enable() {
	if !atomic.CompareAndSwapInt32(&g.active, 0, 1) {
		return
	}
	atomic.StoreInt32(&g.attempted, 0)

	g.prevDial = DialContext
	g.prevResolver = net.DefaultResolver
	g.prevTransport = http.DefaultTransport

	DialContext = g.blockedDial
	net.DefaultResolver = &net.Resolver{PreferGo: true, Dial: g.blockedDial}
	http.DefaultTransport = blockedRoundTripper{g: g}
}

// Disable restores the original network primitives unconditionally. It is
// safe to call more than once and safe to call from a defer after a panic.
func (g *EgressGuard) Disable() {
	if !atomic.CompareAndSwapInt32(&g.active, 1, 0) {
		return
	}
	DialContext = g.prevDial
	net.DefaultResolver = g.prevResolver
	http.DefaultTransport = g.prevTransport
}

// Attempted reports whether any trapped call was made while the scope was
// active (§4.1 "attempted" flag).
func (g *EgressGuard) Attempted() bool {
	return atomic.LoadInt32(&g.attempted) == 1
}

// Active reports whether the guard is currently enforcing offline mode.
func (g *EgressGuard) Active() bool {
	return atomic.LoadInt32(&g.active) == 1
}

func (g *EgressGuard) blockedDial(ctx context.Context, network, addr string) (net.Conn, error) {
	atomic.StoreInt32(&g.attempted, 1)
	return nil, ErrEgressBlocked
}

type blockedRoundTripper struct{ g *EgressGuard }

func (b blockedRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.StoreInt32(&b.g.attempted, 1)
	return nil, ErrEgressBlocked
}

// Scope runs fn with offline enforcement active and guarantees restoration
// even if fn panics, per the "scoped egress guard" design note.
func (g *EgressGuard) Scope(fn func() error) (attempted bool, err error) {
	g.Enable()
	defer g.Disable()
	err = fn()
	attempted = g.Attempted()
	return attempted, err
}
