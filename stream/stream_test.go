package stream

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"modpipe/payload"
	"modpipe/status"
)

func TestFIFOOrder(t *testing.T) {
	tx, rx := New()

	const n = 100
	for i := 0; i < n; i++ {
		require.True(t, tx.Send(payload.Payload(fmt.Sprintf("chunk-%d", i))))
	}
	tx.Close()

	for i := 0; i < n; i++ {
		c, ok := rx.Recv()
		require.True(t, ok)
		require.Nil(t, c.Status)
		require.Equal(t, fmt.Sprintf("chunk-%d", i), string(c.Data))
	}

	_, ok := rx.Recv()
	require.False(t, ok, "closed and drained stream must report clean end")
}

func TestCleanCloseIsNotAnError(t *testing.T) {
	tx, rx := New()
	tx.Close()

	c, ok := rx.Recv()
	require.False(t, ok)
	require.Nil(t, c.Status, "no synthetic error may be fabricated on silent close")
}

func TestFailIsTerminal(t *testing.T) {
	tx, rx := New()
	require.True(t, tx.Send(payload.Payload("data")))
	require.True(t, tx.Fail(status.New(status.Internal, "disk vanished")))

	// Nothing lands after the terminal chunk.
	require.False(t, tx.Send(payload.Payload("late")))
	require.False(t, tx.Fail(status.New(status.Internal, "again")))
	tx.Close() // no-op

	c, ok := rx.Recv()
	require.True(t, ok)
	require.Equal(t, "data", string(c.Data))

	c, ok = rx.Recv()
	require.True(t, ok)
	require.NotNil(t, c.Status)
	require.Equal(t, status.Internal, c.Status.Code)

	_, ok = rx.Recv()
	require.False(t, ok)
}

func TestSendAfterCloseDropped(t *testing.T) {
	tx, rx := New()
	tx.Close()
	require.False(t, tx.Send(payload.Payload("ghost")))

	_, ok := rx.Recv()
	require.False(t, ok)
}

func TestSenderNeverBlocks(t *testing.T) {
	tx, rx := New()

	// No consumer is draining. Every send must return immediately.
	const n = 10000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			tx.Send(payload.Payload("x"))
		}
		tx.Close()
	}()
	<-done

	count := 0
	for {
		if _, ok := rx.Recv(); !ok {
			break
		}
		count++
	}
	require.Equal(t, n, count)
}

func TestConcurrentProducers(t *testing.T) {
	tx, rx := New()

	const producers = 8
	const perProducer = 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				tx.Send(payload.Payload("x"))
			}
		}()
	}
	go func() {
		wg.Wait()
		tx.Close()
	}()

	count := 0
	for {
		if _, ok := rx.Recv(); !ok {
			break
		}
		count++
	}
	require.Equal(t, producers*perProducer, count)
}

func TestTryRecv(t *testing.T) {
	tx, rx := New()

	_, ok, done := rx.TryRecv()
	require.False(t, ok)
	require.False(t, done)

	tx.Send(payload.Payload("one"))
	c, ok, done := rx.TryRecv()
	require.True(t, ok)
	require.False(t, done)
	require.Equal(t, "one", string(c.Data))

	tx.Close()
	_, ok, done = rx.TryRecv()
	require.False(t, ok)
	require.True(t, done)
}
