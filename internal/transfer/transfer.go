// Package transfer implements the per-RRQ state machine: option
// negotiation, OACK, lock-step DATA/ACK with retransmission, and
// block-number wraparound.
package transfer

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rtftp/rtftpd/internal/logger"
	"github.com/rtftp/rtftpd/internal/vfs"
	"github.com/rtftp/rtftpd/internal/wire"
	"github.com/rtftp/rtftpd/pkg/bufpool"
	"github.com/rtftp/rtftpd/pkg/metrics"
)

// Reader abstracts the two ResolvedFile backends (local os.File, guest
// session) behind the one shape the transfer loop needs. The transfer
// engine holds the associated guest session reference (if any) for the
// entire RRQ, released by Close.
type Reader interface {
	ReadAt(buf []byte, offset int64) (int, error)
	Close() error
}

// Config holds the per-server defaults transfers negotiate against.
type Config struct {
	RetryBudget   int
	PacketTimeout time.Duration

	// Metrics is optional; a nil value disables metrics collection with
	// zero overhead.
	Metrics metrics.TransferMetrics
}

// DefaultConfig matches pkg/config's ServerConfig defaults.
func DefaultConfig() Config {
	return Config{RetryBudget: 5, PacketTimeout: 3 * time.Second}
}

// Run drives one RRQ to completion: negotiates options, optionally sends
// OACK, then lock-steps DATA/ACK until the file is exhausted or an
// unrecoverable error occurs. conn is an unconnected per-transfer socket:
// Run writes to clientAddr and ignores datagrams from any other endpoint,
// and never touches the listener's own socket.
func Run(ctx context.Context, conn net.PacketConn, clientAddr net.Addr, req *wire.ReadRequest, resolved *vfs.ResolvedFile, reader Reader, cfg Config) {
	defer reader.Close()

	start := time.Now()
	if cfg.Metrics != nil {
		cfg.Metrics.RecordTransferStart()
	}

	n, oackOpts := negotiate(req.Options, resolved.Size)
	if cfg.Metrics != nil {
		for _, opt := range oackOpts {
			if v, ok := wire.OptionInt(oackOpts, opt.Name); ok {
				cfg.Metrics.RecordOptionNegotiated(opt.Name, v)
			}
		}
	}

	recvBuf := make([]byte, 4+n.blksize)

	// Only a client-negotiated timeout (advertised back in the OACK) can
	// override the configured default: n.timeout otherwise holds an
	// internal bookkeeping value nothing was told to expect.
	packetTimeout := cfg.PacketTimeout
	if _, ok := wire.OptionInt(oackOpts, "timeout"); ok {
		packetTimeout = time.Duration(n.timeout) * time.Second
	}

	if len(oackOpts) > 0 {
		if !sendOACKReliably(conn, clientAddr, oackOpts, recvBuf, packetTimeout, cfg) {
			if cfg.Metrics != nil {
				cfg.Metrics.RecordTransferEnd("timeout", 0, 0, time.Since(start))
			}
			return
		}
	}

	sentBytes, sentBlocks, outcome := sendDataLoop(ctx, conn, clientAddr, reader, n, recvBuf, packetTimeout, cfg)
	if cfg.Metrics != nil {
		cfg.Metrics.RecordTransferEnd(outcome, sentBytes, sentBlocks, time.Since(start))
	}
}

func sendOACKReliably(conn net.PacketConn, clientAddr net.Addr, opts []wire.Option, recvBuf []byte, timeout time.Duration, cfg Config) bool {
	packet := wire.EncodeOptionAck(&wire.OptionAck{Options: opts})

	for attempt := 1; attempt <= cfg.RetryBudget; attempt++ {
		if _, err := conn.WriteTo(packet, clientAddr); err != nil {
			logger.Warn("oack send failed", logger.Attempt(attempt), logger.Err(err))
			return false
		}

		block, err := readAck(conn, clientAddr, recvBuf, timeout)
		switch {
		case err == nil && block == 0:
			return true
		case err == nil:
			sendError(conn, clientAddr, wire.ErrIllegalOp, "unexpected ACK during option negotiation")
			return false
		case errors.Is(err, errTimeout):
			logger.Debug("oack ack timeout, retrying", logger.Attempt(attempt))
			if cfg.Metrics != nil {
				cfg.Metrics.RecordRetransmit("oack")
			}
			continue
		default:
			logger.Debug("oack negotiation ended", logger.Err(err))
			return false
		}
	}

	logger.Warn("timed out negotiating options")
	return false
}

// sendDataLoop sends DATA blocks until the file is exhausted or the
// transfer is abandoned, returning the bytes and blocks actually sent and
// an outcome label suitable for metrics ("ok", "timeout", "client_error",
// "io_error", "cancelled").
func sendDataLoop(ctx context.Context, conn net.PacketConn, clientAddr net.Addr, reader Reader, n negotiated, recvBuf []byte, timeout time.Duration, cfg Config) (int64, int, string) {
	buf := bufpool.Get(4 + n.blksize)
	defer bufpool.Put(buf)

	var block uint16 = 1
	var offset int64
	var blocksSent int

	for {
		select {
		case <-ctx.Done():
			return offset, blocksSent, "cancelled"
		default:
		}

		payload := buf[4 : 4+n.blksize]
		readLen, err := reader.ReadAt(payload, offset)
		if err != nil && !errors.Is(err, io.EOF) {
			sendError(conn, clientAddr, wire.ErrUndefined, "read error")
			return offset, blocksSent, "io_error"
		}

		binaryPutDataHeader(buf, block)
		packet := buf[:4+readLen]

		outcome, ok := sendBlockReliably(conn, clientAddr, packet, block, recvBuf, timeout, cfg)
		if !ok {
			return offset, blocksSent, outcome
		}
		blocksSent++
		offset += int64(readLen)

		if readLen < n.blksize {
			return offset, blocksSent, "ok"
		}

		block++ // wraps naturally: uint16
	}
}

// sendBlockReliably sends one DATA block, retransmitting on ACK timeout up
// to cfg.RetryBudget times. Returns (outcome, true) once acked; on failure
// returns ("timeout", false), ("client_error", false) or ("io_error", false).
func sendBlockReliably(conn net.PacketConn, clientAddr net.Addr, packet []byte, block uint16, recvBuf []byte, timeout time.Duration, cfg Config) (string, bool) {
attemptLoop:
	for attempt := 1; attempt <= cfg.RetryBudget; attempt++ {
		if _, err := conn.WriteTo(packet, clientAddr); err != nil {
			logger.Warn("data send failed", logger.BlockNum(block), logger.Err(err))
			return "io_error", false
		}

		for {
			ackBlock, err := readAck(conn, clientAddr, recvBuf, timeout)
			switch {
			case err == nil && ackBlock == block:
				return "ok", true
			case err == nil:
				// Sorcerer's Apprentice: a duplicate ACK for a prior block
				// is ignored, not treated as a protocol error.
				logger.Debug("ignoring stale ack", logger.BlockNum(ackBlock), logger.Attempt(int(block)))
				continue
			case errors.Is(err, errTimeout):
				logger.Debug("data ack timeout, retransmitting", logger.BlockNum(block), logger.Attempt(attempt))
				if cfg.Metrics != nil {
					cfg.Metrics.RecordRetransmit("data")
				}
				continue attemptLoop
			default:
				logger.Debug("transfer ended by client", logger.BlockNum(block), logger.Err(err))
				return "client_error", false
			}
		}
	}

	logger.Warn("timed out waiting for ack", logger.BlockNum(block))
	return "timeout", false
}

var errTimeout = errors.New("ack wait timeout")

// errClientAbort wraps an ERROR packet the client sent during a transfer,
// terminating it early without that being treated as a server-side fault.
var errClientAbort = errors.New("client sent error, terminating transfer")

func readAck(conn net.PacketConn, clientAddr net.Addr, buf []byte, timeout time.Duration) (uint16, error) {
	deadline := time.Now().Add(timeout)

	for {
		_ = conn.SetReadDeadline(deadline)
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return 0, errTimeout
			}
			return 0, err
		}

		if !sameHost(from, clientAddr) {
			continue
		}

		opcode, err := wire.DecodeOpcode(buf[:n])
		if err != nil {
			continue
		}

		switch opcode {
		case wire.OpACK:
			ack, err := wire.DecodeAck(buf[:n])
			if err != nil {
				continue
			}
			return ack.Block, nil
		case wire.OpERROR:
			return 0, errClientAbort
		default:
			continue
		}
	}
}

func sameHost(a, b net.Addr) bool {
	ua, ok1 := a.(*net.UDPAddr)
	ub, ok2 := b.(*net.UDPAddr)
	if !ok1 || !ok2 {
		return a.String() == b.String()
	}
	return ua.IP.Equal(ub.IP) && ua.Port == ub.Port
}

func sendError(conn net.PacketConn, clientAddr net.Addr, code wire.ErrorCode, message string) {
	packet := wire.EncodeError(&wire.ErrorPacket{Code: code, Message: message})
	_, _ = conn.WriteTo(packet, clientAddr)
}

func binaryPutDataHeader(buf []byte, block uint16) {
	buf[0] = 0
	buf[1] = byte(wire.OpDATA)
	buf[2] = byte(block >> 8)
	buf[3] = byte(block)
}
