package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/LukaGiorgadze/gonull"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	eventuallyTick    = time.Millisecond
	eventuallyTimeout = 2 * time.Second
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tcpPair establishes two Conns over a loopback TCP connection.
func tcpPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		nc, err := ln.Accept()
		if err == nil {
			accepted <- nc
		}
	}()

	clientNC, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	serverNC := <-accepted

	type res struct {
		c   *Conn
		err error
	}
	serverRes := make(chan res, 1)
	go func() {
		c, err := Establish(context.Background(), serverNC, Info{
			Name: gonull.NewNullable("server"),
		}, time.Second, discardLogger())
		serverRes <- res{c, err}
	}()

	client, err := Establish(context.Background(), clientNC, Info{
		Name: gonull.NewNullable("client"),
	}, time.Second, discardLogger())
	require.NoError(t, err)

	sr := <-serverRes
	require.NoError(t, sr.err)

	t.Cleanup(func() {
		client.Close()
		sr.c.Close()
	})
	return client, sr.c
}

func TestEstablishExchangesInfo(t *testing.T) {
	client, server := tcpPair(t)

	assert.Equal(t, "server", client.PeerInfo().Name.Val)
	assert.Equal(t, "client", server.PeerInfo().Name.Val)

	assert.NotEmpty(t, client.PeerInfo().SessionID)
	assert.NotEqual(t, client.PeerInfo().SessionID, server.PeerInfo().SessionID)
}

func TestSendReceiveOrdered(t *testing.T) {
	client, server := tcpPair(t)

	require.True(t, client.Send([]byte{1}))
	require.True(t, client.Send([]byte{2}))
	require.True(t, client.Send([]byte{3}))

	var got [][]byte
	assert.Eventually(t, func() bool {
		for {
			b, ok := server.Receive()
			if !ok {
				return len(got) == 3
			}
			got = append(got, b)
		}
	}, eventuallyTimeout, eventuallyTick)

	assert.Equal(t, [][]byte{{1}, {2}, {3}}, got)
}

func TestEmptyFrame(t *testing.T) {
	client, server := tcpPair(t)

	require.True(t, client.Send([]byte{}))

	assert.Eventually(t, func() bool {
		b, ok := server.Receive()
		return ok && len(b) == 0
	}, eventuallyTimeout, eventuallyTick)
}

func TestHalfClose(t *testing.T) {
	client, server := tcpPair(t)

	require.True(t, client.Send([]byte{42}))
	require.NoError(t, client.CloseWrite())

	assert.True(t, client.LocalClosedWrite())
	assert.False(t, client.Send([]byte{43}))

	// The frame sent before the half-close still arrives.
	assert.Eventually(t, func() bool {
		b, ok := server.Receive()
		return ok && b[0] == 42
	}, eventuallyTimeout, eventuallyTick)

	// The server observes the peer's write half going away...
	assert.Eventually(t, server.PeerClosedWrite, eventuallyTimeout, eventuallyTick)

	// ...while its own direction keeps working.
	require.True(t, server.Send([]byte{7}))
	assert.Eventually(t, func() bool {
		b, ok := client.Receive()
		return ok && b[0] == 7
	}, eventuallyTimeout, eventuallyTick)
}

func TestReceiveNeverBlocks(t *testing.T) {
	client, _ := tcpPair(t)

	done := make(chan struct{})
	go func() {
		_, ok := client.Receive()
		assert.False(t, ok)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Receive blocked")
	}
}
