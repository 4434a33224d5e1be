package listener

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rtftp/rtftpd/internal/nbdconfig"
	"github.com/rtftp/rtftpd/internal/session"
	"github.com/rtftp/rtftpd/internal/transfer"
	"github.com/rtftp/rtftpd/internal/vfs"
	"github.com/rtftp/rtftpd/internal/wire"
	"github.com/stretchr/testify/require"
)

func newTestListener(t *testing.T, tftpRoot string) *Listener {
	t.Helper()
	resolver := vfs.New(tftpRoot, nbdconfig.NewStore(tftpRoot), session.NewRegistry(nil, nil))
	l, err := New("127.0.0.1:0", resolver, transfer.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func buildRRQ(filename string) []byte {
	buf := []byte{0, byte(wire.OpRRQ)}
	buf = append(buf, []byte(filename)...)
	buf = append(buf, 0)
	buf = append(buf, []byte("octet")...)
	buf = append(buf, 0)
	return buf
}

func TestServeRejectsNonRRQ(t *testing.T) {
	root := t.TempDir()
	l := newTestListener(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Serve(ctx) }()

	client, err := net.DialUDP("udp", nil, l.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))

	ack := wire.EncodeAck(&wire.AckPacket{Block: 1})
	_, err = client.Write(ack)
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := client.Read(buf)
	require.NoError(t, err)

	opcode, err := wire.DecodeOpcode(buf[:n])
	require.NoError(t, err)
	require.Equal(t, wire.OpERROR, opcode)

	errPkt, err := wire.DecodeError(buf[:n])
	require.NoError(t, err)
	require.Equal(t, wire.ErrIllegalOp, errPkt.Code)
}

func TestServeRejectsUnsafePath(t *testing.T) {
	root := t.TempDir()
	l := newTestListener(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Serve(ctx) }()

	client, err := net.DialUDP("udp", nil, l.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, err = client.Write(buildRRQ("../../etc/passwd"))
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := client.Read(buf)
	require.NoError(t, err)

	errPkt, err := wire.DecodeError(buf[:n])
	require.NoError(t, err)
	require.Equal(t, wire.ErrAccessViolation, errPkt.Code)
}

func TestServeReturnsNotFoundFromFreshSocket(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "default"), 0755))
	l := newTestListener(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Serve(ctx) }()

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))

	wellKnown := l.Addr().(*net.UDPAddr).Port

	_, err = client.WriteToUDP(buildRRQ("missing.img"), l.Addr().(*net.UDPAddr))
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, from, err := client.ReadFromUDP(buf)
	require.NoError(t, err)

	errPkt, err := wire.DecodeError(buf[:n])
	require.NoError(t, err)
	require.Equal(t, wire.ErrNotFound, errPkt.Code)

	require.NotEqual(t, wellKnown, from.Port, "error for a resolved-but-missing file must come from a fresh per-transfer socket")
}

func TestServeTransfersExistingFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "default"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "default", "kernel.img"), []byte("hello world"), 0644))

	l := newTestListener(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Serve(ctx) }()

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, err = client.WriteToUDP(buildRRQ("kernel.img"), l.Addr().(*net.UDPAddr))
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, from, err := client.ReadFromUDP(buf)
	require.NoError(t, err)

	data, err := wire.DecodeData(buf[:n])
	require.NoError(t, err)
	require.EqualValues(t, 1, data.Block)
	require.Equal(t, []byte("hello world"), data.Data)

	ack := wire.EncodeAck(&wire.AckPacket{Block: 1})
	_, err = client.WriteToUDP(ack, from)
	require.NoError(t, err)
}

