// Package listener implements the single well-known-port UDP front door: it
// decodes each inbound datagram, rejects anything that isn't a read
// request, and spins up an independent transfer on its own ephemeral
// socket for every RRQ. It never blocks on path resolution, NBD attach, or
// file I/O itself.
package listener

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rtftp/rtftpd/internal/logger"
	"github.com/rtftp/rtftpd/internal/pathsafe"
	"github.com/rtftp/rtftpd/internal/rtftperr"
	"github.com/rtftp/rtftpd/internal/transfer"
	"github.com/rtftp/rtftpd/internal/vfs"
	"github.com/rtftp/rtftpd/internal/wire"
)

const maxDatagramSize = 65507

// Listener owns the well-known-port socket and dispatches each RRQ to its
// own transfer goroutine on a fresh ephemeral socket.
type Listener struct {
	conn      *net.UDPConn
	resolver  *vfs.Resolver
	cfg       transfer.Config
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New binds addr (e.g. "0.0.0.0:69") and returns a Listener ready for Serve.
func New(addr string, resolver *vfs.Resolver, cfg transfer.Config) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	return &Listener{conn: conn, resolver: resolver, cfg: cfg}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Serve reads datagrams off the well-known-port socket until ctx is
// cancelled or the socket is closed. Each accepted RRQ is dispatched to its
// own goroutine; Serve itself never blocks on anything but the next read.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)

	for {
		n, remote, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				l.wg.Wait()
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			l.wg.Wait()
			return err
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		l.handleDatagram(ctx, datagram, remote)
	}
}

// Close unblocks a pending Serve call and releases the bound socket.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.conn.Close()
	})
	return err
}

func (l *Listener) handleDatagram(ctx context.Context, datagram []byte, remote *net.UDPAddr) {
	opcode, err := wire.DecodeOpcode(datagram)
	if err != nil {
		l.reject(remote, wire.ErrIllegalOp, "malformed packet")
		return
	}

	if opcode != wire.OpRRQ {
		logger.Debug("rejecting non-RRQ datagram", logger.Opcode(opcode.String()), logger.ClientIP(remote.IP.String()))
		l.reject(remote, wire.ErrIllegalOp, "only read requests are supported")
		return
	}

	req, err := wire.DecodeReadRequest(datagram)
	if err != nil {
		l.reject(remote, wire.ErrIllegalOp, "malformed read request")
		return
	}

	relPath, err := pathsafe.Sanitize(req.Filename)
	if err != nil {
		logger.Warn("rejecting unsafe request path", logger.Filename(req.Filename), logger.ClientIP(remote.IP.String()))
		l.reject(remote, wire.ErrAccessViolation, "illegal path")
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.serveTransfer(ctx, req, relPath, remote)
	}()
}

// serveTransfer resolves the requested file and, if found, runs the
// transfer to completion on a brand-new ephemeral socket fixed to remote.
// Any resolution failure is reported back to the client as an ERROR packet
// on that same fresh socket, never on the listener's own.
func (l *Listener) serveTransfer(ctx context.Context, req *wire.ReadRequest, relPath string, remote *net.UDPAddr) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: l.conn.LocalAddr().(*net.UDPAddr).IP})
	if err != nil {
		logger.Error("failed to open ephemeral transfer socket", logger.Err(err), logger.ClientIP(remote.IP.String()))
		return
	}
	defer func() { _ = conn.Close() }()

	resolved, err := l.resolver.Resolve(ctx, remote.IP.String(), relPath)
	if err != nil {
		code, ok := rtftperr.WireCode(err)
		if !ok {
			code = wire.ErrUndefined
		}
		logger.Info("resolve failed", logger.Filename(relPath), logger.ClientIP(remote.IP.String()), logger.Err(err))
		packet := wire.EncodeError(&wire.ErrorPacket{Code: code, Message: err.Error()})
		_, _ = conn.WriteTo(packet, remote)
		return
	}

	reader, err := transfer.OpenResolved(resolved)
	if err != nil {
		logger.Error("failed to open resolved file", logger.Err(err), logger.Filename(relPath))
		packet := wire.EncodeError(&wire.ErrorPacket{Code: wire.ErrUndefined, Message: "failed to open file"})
		_, _ = conn.WriteTo(packet, remote)
		return
	}

	logger.Info("starting transfer",
		logger.Filename(relPath),
		logger.ClientIP(remote.IP.String()),
		logger.ClientPort(remote.Port),
		logger.Size(resolved.Size))

	transfer.Run(ctx, conn, remote, req, resolved, reader, l.cfg)
}

// reject answers a non-RRQ or malformed datagram with an ERROR packet sent
// from the listener's own socket, since no per-transfer socket was ever
// opened for it.
func (l *Listener) reject(remote *net.UDPAddr, code wire.ErrorCode, message string) {
	packet := wire.EncodeError(&wire.ErrorPacket{Code: code, Message: message})
	_, _ = l.conn.WriteTo(packet, remote)
}
