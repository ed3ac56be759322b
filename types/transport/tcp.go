package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

type frameType byte

const (
	frameHello frameType = iota // json Info
	frameData                   // one framed unit handed to Send
)

const (
	maxFrameLen = 1 << 20

	sendQueueDepth = 64
	recvQueueDepth = 64
)

var (
	errInvalidFrameType = errors.New("invalid frame type")
	errFrameTooLarge    = errors.New("frame too large")
)

// Conn adapts a TCP stream (or any net.Conn) to the Transport contract.
//
// A reader and a writer goroutine move complete frames between the socket
// and bounded queues; Send and Receive only ever touch the queues, so they
// never block. Frames are delimited with a type byte and a uint32 length.
type Conn struct {
	ctx context.Context
	ccc context.CancelCauseFunc

	nc net.Conn

	reader *bufio.Reader
	writer *bufio.Writer

	localInfo Info
	peerInfo  Info

	sendCh chan []byte

	recvMu    sync.Mutex
	recvQueue [][]byte

	stateMu     sync.Mutex
	peerClosed  bool
	localClosed bool

	log *slog.Logger
}

// Establish wraps nc in a Conn, exchanging hello frames before returning.
// Both sides write their hello first and then read the peer's, so neither
// end deadlocks. If the handshake does not complete before timeout the
// connection is closed and an error returned.
func Establish(parentCtx context.Context, nc net.Conn, info Info, timeout time.Duration, logger *slog.Logger) (*Conn, error) {
	ctx, ccc := context.WithCancelCause(parentCtx)

	if info.SessionID == "" {
		info.SessionID = uuid.NewString()
	}

	c := &Conn{
		ctx: ctx,
		ccc: ccc,

		nc: nc,

		reader: bufio.NewReader(nc),
		writer: bufio.NewWriter(nc),

		localInfo: info,

		sendCh: make(chan []byte, sendQueueDepth),

		log: logger.With("session", info.SessionID),
	}

	if err := nc.SetDeadline(time.Now().Add(timeout)); err != nil {
		ccc(err)
		return nil, fmt.Errorf("could not set deadline: %w", err)
	}

	if err := c.sendHello(); err != nil {
		ccc(err)
		nc.Close()
		return nil, fmt.Errorf("error sending hello: %w", err)
	}

	if err := c.recvHello(); err != nil {
		ccc(err)
		nc.Close()
		return nil, fmt.Errorf("error receiving hello: %w", err)
	}

	if err := nc.SetDeadline(time.Time{}); err != nil {
		ccc(err)
		nc.Close()
		return nil, fmt.Errorf("could not reset deadline: %w", err)
	}

	c.log.Debug("link established", "peer-session", c.peerInfo.SessionID)

	go c.readLoop()
	go c.writeLoop()

	go func() {
		<-ctx.Done()
		nc.Close()
	}()

	return c, nil
}

// PeerInfo returns the Info the remote end sent in its hello.
func (c *Conn) PeerInfo() Info { return c.peerInfo }

func (c *Conn) sendHello() error {
	m, err := json.Marshal(c.localInfo)
	if err != nil {
		return err
	}
	if err := writeFrameHeader(c.writer, frameHello, uint32(len(m))); err != nil {
		return err
	}
	if _, err := c.writer.Write(m); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *Conn) recvHello() error {
	typ, frameLen, err := readFrameHeader(c.reader)
	if err != nil {
		return err
	}
	if typ != frameHello {
		return errInvalidFrameType
	}
	if frameLen > maxFrameLen {
		return errFrameTooLarge
	}

	buf := make([]byte, frameLen)
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		return err
	}

	return json.Unmarshal(buf, &c.peerInfo)
}

func (c *Conn) readLoop() {
	for {
		typ, frameLen, err := readFrameHeader(c.reader)
		if err != nil {
			c.readFailed(err)
			return
		}
		if frameLen > maxFrameLen {
			c.readFailed(errFrameTooLarge)
			return
		}

		buf := make([]byte, frameLen)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			c.readFailed(err)
			return
		}

		if typ != frameData {
			c.log.Warn("dropping frame of unexpected type", "type", typ)
			continue
		}

		c.recvMu.Lock()
		if len(c.recvQueue) < recvQueueDepth {
			c.recvQueue = append(c.recvQueue, buf)
		} else {
			// The core has stopped ticking; nothing sane to do but shed.
			c.log.Warn("inbound queue full, dropping frame", "len", frameLen)
		}
		c.recvMu.Unlock()
	}
}

func (c *Conn) readFailed(err error) {
	c.stateMu.Lock()
	c.peerClosed = true
	c.stateMu.Unlock()

	if errors.Is(err, io.EOF) {
		// Orderly half-close from the peer; the link may still be
		// writable in our direction.
		c.log.Debug("peer closed for writing")
		return
	}

	c.log.Debug("read failed, tearing down", "err", err)
	c.ccc(err)
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case b := <-c.sendCh:
			if err := c.writeFrame(b); err != nil {
				c.log.Debug("write failed, tearing down", "err", err)
				c.ccc(err)
				return
			}
		}
	}
}

func (c *Conn) writeFrame(b []byte) error {
	if err := writeFrameHeader(c.writer, frameData, uint32(len(b))); err != nil {
		return err
	}
	if _, err := c.writer.Write(b); err != nil {
		return err
	}

	// Flush whatever is queued before blocking on the channel again.
	for {
		select {
		case next := <-c.sendCh:
			if err := writeFrameHeader(c.writer, frameData, uint32(len(next))); err != nil {
				return err
			}
			if _, err := c.writer.Write(next); err != nil {
				return err
			}
		default:
			return c.writer.Flush()
		}
	}
}

func (c *Conn) Send(b []byte) bool {
	c.stateMu.Lock()
	closed := c.localClosed
	c.stateMu.Unlock()
	if closed || c.ctx.Err() != nil {
		return false
	}

	frame := make([]byte, len(b))
	copy(frame, b)

	select {
	case c.sendCh <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) Receive() ([]byte, bool) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	if len(c.recvQueue) == 0 {
		return nil, false
	}
	b := c.recvQueue[0]
	c.recvQueue = c.recvQueue[1:]
	return b, true
}

func (c *Conn) PeerClosedWrite() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.peerClosed
}

func (c *Conn) LocalClosedWrite() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.localClosed
}

// CloseWrite shuts down the writing half of the link after the send queue
// has been handed to the socket, leaving the reading half open.
func (c *Conn) CloseWrite() error {
	c.stateMu.Lock()
	c.localClosed = true
	c.stateMu.Unlock()

	type closeWriter interface{ CloseWrite() error }
	if cw, ok := c.nc.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (c *Conn) Close() error {
	c.ccc(net.ErrClosed)

	c.stateMu.Lock()
	c.localClosed = true
	c.stateMu.Unlock()

	return c.nc.Close()
}

// Done is closed when the link has been torn down.
func (c *Conn) Done() <-chan struct{} { return c.ctx.Done() }

// Err returns the teardown cause, if the link is down.
func (c *Conn) Err() error { return context.Cause(c.ctx) }

func readFrameHeader(reader *bufio.Reader) (typ frameType, frameLen uint32, err error) {
	tb, err := reader.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	var b [4]byte
	for i := range &b {
		c, err := reader.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		b[i] = c
	}
	return frameType(tb), binary.BigEndian.Uint32(b[:]), nil
}

func writeFrameHeader(bw *bufio.Writer, typ frameType, frameLen uint32) error {
	if err := bw.WriteByte(byte(typ)); err != nil {
		return err
	}

	var b [4]byte
	binary.BigEndian.PutUint32(b[:], frameLen)
	for _, c := range &b {
		if err := bw.WriteByte(c); err != nil {
			return err
		}
	}
	return nil
}
