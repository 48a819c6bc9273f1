package client

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/senslink/pkg/codec"
)

func TestCorrelator_ResolveMatchesExpectedType(t *testing.T) {
	corr := newCorrelator()
	p := corr.register(codec.TypeGetAttribute | codec.ResponseFlag)

	// A response of a different type does not match.
	assert.False(t, corr.resolve(&codec.HeartbeatResponse{}))

	resp := &codec.GetAttributeResponse{AttributeID: codec.AttrBatteryLevel, Value: []byte{80}}
	assert.True(t, corr.resolve(resp))

	got, err := corr.await(p, time.Second)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
	assert.Equal(t, 0, corr.outstanding())
}

func TestCorrelator_FIFOPerResponseType(t *testing.T) {
	corr := newCorrelator()
	first := corr.register(codec.TypeHeartbeat | codec.ResponseFlag)
	second := corr.register(codec.TypeHeartbeat | codec.ResponseFlag)

	r1 := &codec.HeartbeatResponse{}
	r2 := &codec.HeartbeatResponse{}
	assert.True(t, corr.resolve(r1))
	assert.True(t, corr.resolve(r2))

	got1, err := corr.await(first, time.Second)
	require.NoError(t, err)
	got2, err := corr.await(second, time.Second)
	require.NoError(t, err)

	// Oldest registration gets the first matching response.
	assert.Same(t, r1, got1)
	assert.Same(t, r2, got2)
}

func TestCorrelator_AtMostOneMatchPerResponse(t *testing.T) {
	corr := newCorrelator()
	p := corr.register(codec.TypeHeartbeat | codec.ResponseFlag)

	assert.True(t, corr.resolve(&codec.HeartbeatResponse{}))
	// The pending call is gone; a second response finds nothing.
	assert.False(t, corr.resolve(&codec.HeartbeatResponse{}))

	_, err := corr.await(p, time.Second)
	require.NoError(t, err)
}

func TestCorrelator_TimeoutRemovesPendingCall(t *testing.T) {
	corr := newCorrelator()
	p := corr.register(codec.TypeHeartbeat | codec.ResponseFlag)

	_, err := corr.await(p, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, corr.outstanding())

	// The late response is unmatched, exactly as if no call ever existed.
	assert.False(t, corr.resolve(&codec.HeartbeatResponse{}))
}

func TestCorrelator_FailUnblocksWaiter(t *testing.T) {
	corr := newCorrelator()
	p := corr.register(codec.TypeHeartbeat | codec.ResponseFlag)

	sentinel := errors.New("boom")
	corr.fail(p, sentinel)

	_, err := corr.await(p, time.Second)
	assert.ErrorIs(t, err, sentinel)

	// Failing again is a no-op, not a double close.
	corr.fail(p, sentinel)
}

func TestCorrelator_FailAll(t *testing.T) {
	corr := newCorrelator()
	p1 := corr.register(codec.TypeHeartbeat | codec.ResponseFlag)
	p2 := corr.register(codec.TypeGetAttribute | codec.ResponseFlag)

	corr.failAll(ErrConnectionClosed)

	for _, p := range []*pendingCall{p1, p2} {
		_, err := corr.await(p, time.Second)
		assert.ErrorIs(t, err, ErrConnectionClosed)
	}
	assert.Equal(t, 0, corr.outstanding())
}

func TestCorrelator_ResolveWinsRaceAgainstTimeout(t *testing.T) {
	corr := newCorrelator()

	// Resolve from a concurrent goroutine while await spins on a very
	// short timeout; whichever side wins, the result must be coherent:
	// either the response or ErrTimeout, never both or neither.
	for i := 0; i < 50; i++ {
		p := corr.register(codec.TypeHeartbeat | codec.ResponseFlag)
		go corr.resolve(&codec.HeartbeatResponse{})

		got, err := corr.await(p, time.Millisecond)
		if err != nil {
			assert.ErrorIs(t, err, ErrTimeout)
		} else {
			assert.IsType(t, &codec.HeartbeatResponse{}, got)
		}
		corr.failAll(ErrConnectionClosed) // clear any unresolved leftover
	}
}
