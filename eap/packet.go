// Package eap implements the EAP (RFC 3748) packet wire codec: decoding the
// concatenated octet buffer reconstructed from one or more RADIUS EAP-Message
// attributes into a Packet, and encoding a Packet back into that buffer for
// the RADIUS layer to fragment at 253-octet boundaries.
package eap

import (
	"encoding/binary"
	"fmt"
)

// Code is the EAP packet code (RFC 3748 §4).
type Code byte

const (
	CodeRequest  Code = 1
	CodeResponse Code = 2
	CodeSuccess  Code = 3
	CodeFailure  Code = 4
)

func (c Code) String() string {
	switch c {
	case CodeRequest:
		return "Request"
	case CodeResponse:
		return "Response"
	case CodeSuccess:
		return "Success"
	case CodeFailure:
		return "Failure"
	default:
		return fmt.Sprintf("Code(%d)", byte(c))
	}
}

// Type is the EAP method type number (RFC 3748 §5).
type Type byte

const (
	TypeIdentity      Type = 1
	TypeNotification  Type = 2
	TypeNak           Type = 3
	TypeMD5Challenge  Type = 4
	TypeOTP           Type = 5
	TypeGTC           Type = 6
	TypeTLS           Type = 13
	TypeLEAP          Type = 17
	TypeTTLS          Type = 21
	TypePEAP          Type = 25
	TypeMSCHAPV2      Type = 26
	TypePWD           Type = 52
	MinType           Type = TypeMD5Challenge
	MaxType           Type = 253
)

// MalformedError reports that the decoded attribute buffer does not form a
// well-formed EAP packet.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string { return "malformed EAP packet: " + e.Reason }

// Packet is the decoded form of an EAP wire packet.
type Packet struct {
	Code       Code
	Identifier byte
	Type       Type   // only meaningful for Request/Response
	TypeData   []byte // type-data for Request/Response; nil for Success/Failure
}

// Round is a single request/response pair in an ongoing EAP conversation.
// At least one of Request, Response must be non-nil.
type Round struct {
	Request  *Packet
	Response *Packet
}

// NakData is the ordered list of alternative EAP types a peer is willing to
// negotiate, as decoded from a Nak response's type-data. A value of 0 is the
// sentinel "no acceptable alternative" (RFC 3748 §5.3.2).
type NakData []Type

// Decode concatenates the EAP-Message attribute fragments in order and parses
// the resulting buffer as a single EAP packet.
func Decode(attrs [][]byte) (*Packet, error) {
	if len(attrs) == 0 {
		return nil, &MalformedError{Reason: "no EAP-Message attributes present"}
	}

	var buf []byte
	for _, a := range attrs {
		buf = append(buf, a...)
	}

	if len(buf) < 4 {
		return nil, &MalformedError{Reason: "buffer shorter than the 4-octet EAP header"}
	}

	p := &Packet{
		Code:       Code(buf[0]),
		Identifier: buf[1],
	}
	declaredLen := binary.BigEndian.Uint16(buf[2:4])
	if int(declaredLen) > len(buf) {
		return nil, &MalformedError{Reason: fmt.Sprintf("declared length %d exceeds buffer length %d", declaredLen, len(buf))}
	}
	// Trailing octets beyond the declared length (RADIUS padding) are ignored.
	buf = buf[:declaredLen]

	switch p.Code {
	case CodeSuccess, CodeFailure:
		if len(buf) != 4 {
			return nil, &MalformedError{Reason: "Success/Failure packet must carry no type or data"}
		}
		return p, nil
	case CodeRequest, CodeResponse:
		if declaredLen < 5 {
			// A zero-length Response body is used as the "EAP-Start" probe
			// by the dispatcher; it carries no type byte.
			return p, nil
		}
		p.Type = Type(buf[4])
		if len(buf) > 5 {
			p.TypeData = append([]byte(nil), buf[5:]...)
		}
		return p, nil
	default:
		return nil, &MalformedError{Reason: fmt.Sprintf("unknown EAP code %d", buf[0])}
	}
}

// Encode serialises p into a single contiguous buffer, to be fragmented by
// the RADIUS layer into ≤253-octet EAP-Message attributes.
func Encode(p *Packet) []byte {
	var length int
	switch p.Code {
	case CodeSuccess, CodeFailure:
		length = 4
	default:
		if p.Type == 0 {
			length = 4 // EAP-Start probe: zero-length Response
		} else {
			length = 5 + len(p.TypeData)
		}
	}

	buf := make([]byte, length)
	buf[0] = byte(p.Code)
	buf[1] = p.Identifier
	binary.BigEndian.PutUint16(buf[2:4], uint16(length))
	if length > 4 {
		buf[4] = byte(p.Type)
		copy(buf[5:], p.TypeData)
	}
	return buf
}

// Fragment splits a previously-encoded EAP buffer into chunks of at most
// maxLen octets, suitable for one EAP-Message attribute each. The RADIUS
// layer (an external collaborator) is responsible for turning each chunk
// into an actual attribute.
func Fragment(buf []byte, maxLen int) [][]byte {
	if maxLen <= 0 {
		maxLen = 253
	}
	if len(buf) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for len(buf) > 0 {
		n := maxLen
		if n > len(buf) {
			n = len(buf)
		}
		out = append(out, buf[:n])
		buf = buf[n:]
	}
	return out
}

// DecodeNak parses a Nak response's type-data as an ordered list of proposed
// alternative EAP types.
func DecodeNak(p *Packet) (NakData, error) {
	if p.Type != TypeNak {
		return nil, fmt.Errorf("packet is not a Nak (type %d)", p.Type)
	}
	nak := make(NakData, len(p.TypeData))
	for i, b := range p.TypeData {
		nak[i] = Type(b)
	}
	return nak, nil
}

// NewIdentityRequest synthesises an EAP Identity Request with the given
// identifier, used by the dispatcher's Authorize hook EAP-Start probe.
func NewIdentityRequest(identifier byte) *Packet {
	return &Packet{Code: CodeRequest, Identifier: identifier, Type: TypeIdentity}
}

// NewSuccess synthesises an EAP-Success packet.
func NewSuccess(identifier byte) *Packet {
	return &Packet{Code: CodeSuccess, Identifier: identifier}
}

// NewFailure synthesises an EAP-Failure packet.
func NewFailure(identifier byte) *Packet {
	return &Packet{Code: CodeFailure, Identifier: identifier}
}

// IsStart reports whether p is the EAP-Start probe the Authorize hook looks
// for: a zero-length Response (no type byte at all).
func IsStart(p *Packet) bool {
	return p.Code == CodeResponse && p.Type == 0 && len(p.TypeData) == 0
}
