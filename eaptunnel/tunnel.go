// Package eaptunnel implements the tunnelled-method skeleton shared by
// TLS-based EAP types (EAP-TLS and the PEAP/TTLS family): driving a
// crypto/tls.Conn handshake and record layer across successive EAP rounds,
// and handing the decapsulated inner conversation to an InnerVirtualServer.
// Grounded on rlm_eap_peap.c's mod_process state machine, generalised from
// FreeRADIUS's own dirty_in/clean_in buffering to Go's net.Conn + crypto/tls.
package eaptunnel

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/francistor/radeap/core"
	"github.com/francistor/radeap/eap"
)

// Flags are the leading octet of a TLS-family EAP type-data (RFC 5216 §3.1).
const (
	flagLengthIncluded byte = 0x80
	flagMoreFragments  byte = 0x40
	flagStart          byte = 0x20
)

// ResumptionState is the tri-state session-resumption flag PEAP's tunnel
// state carries across rounds, grounded on rlm_eap_peap.c's
// PEAP_RESUMPTION_MAYBE/YES/NO.
type ResumptionState int

const (
	ResumptionMaybe ResumptionState = iota
	ResumptionYes
	ResumptionNo
)

// Config is a tunnelled method's per-instance configuration.
type Config struct {
	TLSConfig                 *tls.Config
	InnerEAPModule            string // default "eap"
	VirtualServer             string // required
	SOH                       bool
	SOHVirtualServer          string
	RequireClientCert         bool
	ProxyTunneledRequestAsEAP bool // not read by the tunnel code; no default applied
	MaxFragmentSize           int  // default 253 minus the flags/length overhead
}

// InnerVirtualServer processes the decapsulated inner conversation once the
// TLS tunnel is established. Implementations may run an inner EAP exchange,
// SOH, or any other protocol the tunnel decapsulates.
type InnerVirtualServer interface {
	ProcessInner(ctx context.Context, session *TunnelState, plaintext []byte) (reply []byte, done bool, success bool, err error)
}

// State is where a tunnel round handler currently sits.
type State int

const (
	StateHandshaking State = iota
	StateEstablished
	StateDone
)

// TunnelState is the per-EapSession opaque state a TLS-family method stores
// in EapSession.Opaque.
type TunnelState struct {
	config *Config
	ivs    InnerVirtualServer

	local  *pump
	remote *pump
	tlsConn *tls.Conn

	handshakeDone chan struct{}
	handshakeErr  error

	outbound     []byte // TLS bytes not yet delivered to the peer, pending fragmentation
	state        State
	resumption   ResumptionState
	clientCertOK bool
}

// NewTunnelState allocates a fresh tunnel and starts driving the TLS
// handshake in the background, fed by successive calls to HandleRound.
func NewTunnelState(config *Config, ivs InnerVirtualServer, isServer bool) *TunnelState {
	local, remote := newDuplexPair()
	ts := &TunnelState{
		config:        config,
		ivs:           ivs,
		local:         newPump(local),
		remote:        newPump(remote),
		handshakeDone: make(chan struct{}),
		resumption:    ResumptionMaybe,
	}
	if isServer {
		ts.tlsConn = tls.Server(remote, config.TLSConfig)
	} else {
		ts.tlsConn = tls.Client(remote, config.TLSConfig)
	}
	go func() {
		ts.handshakeErr = ts.tlsConn.Handshake()
		close(ts.handshakeDone)
	}()
	return ts
}

// Close releases the tunnel's duplex connections. Safe to call once, from
// the EapSession.OpaqueDestructor hook.
func (ts *TunnelState) Close() {
	ts.local.Close()
	ts.remote.Close()
}

// handshakeComplete reports whether the background handshake goroutine has
// finished, without blocking.
func (ts *TunnelState) handshakeComplete() bool {
	select {
	case <-ts.handshakeDone:
		return true
	default:
		return false
	}
}

// HandleRound implements the tunnel round-handler algorithm: reassemble a
// peer fragment, drive the TLS conn or the inner virtual server, and
// produce the next outbound fragment (or an ack-only continuation).
func (ts *TunnelState) HandleRound(ctx context.Context, typeData []byte) ([]byte, Result, error) {
	if len(ts.outbound) > 0 {
		// Still delivering a previous flight's fragments; this round's
		// type-data is just the peer's fragment ack.
		return ts.nextFragment(), ResultContinue, nil
	}

	flags, payload, err := decodeFrame(typeData)
	if err != nil {
		return nil, ResultInvalid, err
	}
	if flags&flagMoreFragments != 0 {
		// Peer is still sending us a multi-fragment flight; ack with an
		// empty type-data and wait for the rest.
		return nil, ResultAckFragment, nil
	}

	if len(payload) > 0 {
		if err := ts.local.Feed(payload); err != nil {
			return nil, ResultInvalid, fmt.Errorf("feeding TLS record to tunnel: %w", err)
		}
	}

	if !ts.handshakeComplete() {
		out, drainErr := ts.local.Drain()
		if drainErr != nil {
			return nil, ResultInvalid, drainErr
		}
		if ts.handshakeComplete() && ts.handshakeErr != nil {
			return nil, ResultInvalid, fmt.Errorf("TLS handshake failed: %w", ts.handshakeErr)
		}
		if len(out) == 0 && ts.handshakeComplete() {
			ts.state = StateEstablished
			core.GetLogger().Debugw("EAP tunnel handshake complete")
			return ts.runInner(ctx, nil)
		}
		ts.outbound = out
		return ts.nextFragment(), ResultContinue, nil
	}

	return ts.runInner(ctx, payload)
}

// runInner decrypts payload (if any) through the established TLS
// connection and hands the plaintext to the InnerVirtualServer.
func (ts *TunnelState) runInner(ctx context.Context, payload []byte) ([]byte, Result, error) {
	if len(payload) > 0 {
		if err := ts.local.Feed(payload); err != nil {
			return nil, ResultInvalid, err
		}
	}

	var plaintext bytes.Buffer
	buf := make([]byte, 4096)
	for {
		ts.tlsConn.SetReadDeadline(time.Now().Add(drainTimeout))
		n, err := ts.tlsConn.Read(buf)
		if n > 0 {
			plaintext.Write(buf[:n])
		}
		if err != nil {
			break
		}
		if n < len(buf) {
			break
		}
	}
	ts.tlsConn.SetReadDeadline(time.Time{})

	reply, done, success, err := ts.ivs.ProcessInner(ctx, ts, plaintext.Bytes())
	if err != nil {
		return nil, ResultInvalid, err
	}
	if len(reply) > 0 {
		if _, err := ts.tlsConn.Write(reply); err != nil {
			return nil, ResultInvalid, err
		}
	}

	out, err := ts.local.Drain()
	if err != nil {
		return nil, ResultInvalid, err
	}
	ts.outbound = out

	if done {
		ts.state = StateDone
		if success {
			return ts.nextFragment(), ResultSuccess, nil
		}
		return ts.nextFragment(), ResultFailure, nil
	}
	return ts.nextFragment(), ResultContinue, nil
}

// Result tells the owning method what EAP code/flow to use for the reply
// this round produced.
type Result int

const (
	ResultContinue Result = iota
	ResultAckFragment
	ResultSuccess
	ResultFailure
	ResultInvalid
)

// nextFragment pops the next chunk off ts.outbound, encoding the
// flags/length octet(s) per RFC 5216 §3.1.
func (ts *TunnelState) nextFragment() []byte {
	maxLen := ts.config.MaxFragmentSize
	if maxLen <= 0 {
		maxLen = 253 - 1
	}
	if len(ts.outbound) == 0 {
		return []byte{0x00}
	}
	chunks := eap.Fragment(ts.outbound, maxLen)
	chunk := chunks[0]
	more := len(chunks) > 1
	ts.outbound = ts.outbound[len(chunk):]

	var flags byte
	if more {
		flags |= flagMoreFragments
	}
	return append([]byte{flags}, chunk...)
}

// decodeFrame splits a TLS-family type-data buffer into its flags octet and
// TLS payload, skipping the optional 4-octet total-length field.
func decodeFrame(data []byte) (flags byte, payload []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	flags = data[0]
	rest := data[1:]
	if flags&flagLengthIncluded != 0 {
		if len(rest) < 4 {
			return 0, nil, fmt.Errorf("length-included flag set but frame too short")
		}
		rest = rest[4:]
	}
	return flags, rest, nil
}
