package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Option is a single negotiated option/value pair, in request order.
type Option struct {
	Name  string
	Value string
}

// ReadRequest is a decoded RRQ packet.
type ReadRequest struct {
	Filename string
	Mode     string
	Options  []Option
}

// DataPacket is a decoded or to-be-encoded DATA packet.
type DataPacket struct {
	Block uint16
	Data  []byte
}

// AckPacket is a decoded or to-be-encoded ACK packet.
type AckPacket struct {
	Block uint16
}

// ErrorPacket is a decoded or to-be-encoded ERROR packet.
type ErrorPacket struct {
	Code    ErrorCode
	Message string
}

// OptionAck is a to-be-encoded OACK packet; only accepted options appear.
type OptionAck struct {
	Options []Option
}

// ErrProtocolFraming is returned for any malformed packet: truncated
// opcode, missing NUL terminators, or an unrecognized opcode.
var ErrProtocolFraming = fmt.Errorf("malformed TFTP packet framing")

// DecodeOpcode reads only the two-byte opcode, for dispatch before a full
// decode.
func DecodeOpcode(buf []byte) (Opcode, error) {
	if len(buf) < 2 {
		return 0, ErrProtocolFraming
	}
	return Opcode(binary.BigEndian.Uint16(buf[:2])), nil
}

// DecodeReadRequest parses an RRQ packet body (opcode already stripped is
// NOT assumed — buf includes the 2-byte opcode prefix, matching DecodeOpcode's
// convention for symmetry with Encode*).
func DecodeReadRequest(buf []byte) (*ReadRequest, error) {
	if len(buf) < 4 {
		return nil, ErrProtocolFraming
	}
	if Opcode(binary.BigEndian.Uint16(buf[:2])) != OpRRQ {
		return nil, ErrProtocolFraming
	}

	fields, err := splitNulTerminatedFields(buf[2:])
	if err != nil {
		return nil, err
	}
	if len(fields) < 2 {
		return nil, ErrProtocolFraming
	}

	filename := fields[0]
	mode := fields[1]
	if !strings.EqualFold(mode, "octet") {
		return nil, fmt.Errorf("%w: unsupported mode %q", ErrProtocolFraming, mode)
	}

	rest := fields[2:]
	if len(rest)%2 != 0 {
		return nil, ErrProtocolFraming
	}

	opts := make([]Option, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		opts = append(opts, Option{Name: strings.ToLower(rest[i]), Value: rest[i+1]})
	}

	return &ReadRequest{Filename: filename, Mode: "octet", Options: opts}, nil
}

// splitNulTerminatedFields splits buf on NUL bytes. A trailing byte after
// the last NUL (i.e. the buffer not ending in NUL) is a framing error.
func splitNulTerminatedFields(buf []byte) ([]string, error) {
	if len(buf) == 0 || buf[len(buf)-1] != 0 {
		return nil, ErrProtocolFraming
	}
	parts := bytes.Split(buf[:len(buf)-1], []byte{0})
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = string(p)
	}
	return fields, nil
}

// DecodeData parses a DATA packet body.
func DecodeData(buf []byte) (*DataPacket, error) {
	if len(buf) < 4 {
		return nil, ErrProtocolFraming
	}
	if Opcode(binary.BigEndian.Uint16(buf[:2])) != OpDATA {
		return nil, ErrProtocolFraming
	}
	block := binary.BigEndian.Uint16(buf[2:4])
	data := make([]byte, len(buf)-4)
	copy(data, buf[4:])
	return &DataPacket{Block: block, Data: data}, nil
}

// DecodeAck parses an ACK packet body.
func DecodeAck(buf []byte) (*AckPacket, error) {
	if len(buf) != 4 {
		return nil, ErrProtocolFraming
	}
	if Opcode(binary.BigEndian.Uint16(buf[:2])) != OpACK {
		return nil, ErrProtocolFraming
	}
	return &AckPacket{Block: binary.BigEndian.Uint16(buf[2:4])}, nil
}

// EncodeData encodes a DATA packet.
func EncodeData(p *DataPacket) []byte {
	out := make([]byte, 4+len(p.Data))
	binary.BigEndian.PutUint16(out[0:2], uint16(OpDATA))
	binary.BigEndian.PutUint16(out[2:4], p.Block)
	copy(out[4:], p.Data)
	return out
}

// EncodeAck encodes an ACK packet.
func EncodeAck(p *AckPacket) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint16(out[0:2], uint16(OpACK))
	binary.BigEndian.PutUint16(out[2:4], p.Block)
	return out
}

// DecodeError parses an ERROR packet body.
func DecodeError(buf []byte) (*ErrorPacket, error) {
	if len(buf) < 5 {
		return nil, ErrProtocolFraming
	}
	if Opcode(binary.BigEndian.Uint16(buf[:2])) != OpERROR {
		return nil, ErrProtocolFraming
	}
	code := ErrorCode(binary.BigEndian.Uint16(buf[2:4]))

	msg := buf[4:]
	nul := bytes.IndexByte(msg, 0)
	if nul < 0 {
		return nil, ErrProtocolFraming
	}

	return &ErrorPacket{Code: code, Message: string(msg[:nul])}, nil
}

// EncodeError encodes an ERROR packet.
func EncodeError(p *ErrorPacket) []byte {
	var buf bytes.Buffer
	var opBytes [2]byte
	binary.BigEndian.PutUint16(opBytes[:], uint16(OpERROR))
	buf.Write(opBytes[:])
	binary.BigEndian.PutUint16(opBytes[:], uint16(p.Code))
	buf.Write(opBytes[:])
	buf.WriteString(p.Message)
	buf.WriteByte(0)
	return buf.Bytes()
}

// EncodeOptionAck encodes an OACK packet, listing only accepted options.
func EncodeOptionAck(p *OptionAck) []byte {
	var buf bytes.Buffer
	var opBytes [2]byte
	binary.BigEndian.PutUint16(opBytes[:], uint16(OpOACK))
	buf.Write(opBytes[:])
	for _, opt := range p.Options {
		buf.WriteString(opt.Name)
		buf.WriteByte(0)
		buf.WriteString(opt.Value)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// OptionInt parses a decimal option value, used for blksize/timeout/tsize.
func OptionInt(opts []Option, name string) (int, bool) {
	for _, o := range opts {
		if o.Name == name {
			n, err := strconv.Atoi(o.Value)
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}
