package eapdispatch

import (
	"github.com/francistor/radeap/core"
	"github.com/francistor/radeap/eap"
	"github.com/francistor/radeap/eapmethod"
	"github.com/francistor/radeap/eapsession"
)

// selectAndRun dispatches Identity/NAK/module-call by packet type and
// returns the reply packet the selected method produced. A nil reply with
// ResultInvalid means an EAP-Failure must be synthesised by the caller.
func (d *Dispatcher) selectAndRun(req Request, session *eapsession.EapSession, pkt *eap.Packet) (Result, *eap.Packet, error) {
	if pkt.Type == 0 || pkt.Type > eap.MaxType {
		return ResultInvalid, nil, nil
	}

	if req.ParentDepth() >= 2 && !req.OutermostParentHasHomeServer() {
		core.GetLogger().Warnw("rejecting invalid multi-level EAP tunnel", "correlator", session.Correlator)
		return ResultInvalid, nil, nil
	}

	var handle *eapmethod.Handle

	switch pkt.Type {
	case eap.TypeIdentity:
		next := d.registry.DefaultType()
		if pinned, ok := req.ControlString("EAP-Type"); ok {
			if t, valid := parsePinnedType(pinned); valid {
				next = t
			}
		}
		handle = d.registry.Lookup(next)
		if handle == nil {
			return ResultInvalid, nil, nil
		}
		session.SetMethod(next)
		acquireHandle(session, handle)
		return d.initiateAndRun(req, session, handle)

	case eap.TypeNak:
		nak, err := eap.DecodeNak(pkt)
		if err != nil {
			return ResultInvalid, nil, nil
		}
		session.ReleaseHandle()
		session.FreeOpaque()
		next, ok := d.negotiateNak(req, session.Type, nak)
		if !ok {
			return ResultInvalid, nil, nil
		}
		handle = d.registry.Lookup(next)
		if handle == nil {
			return ResultInvalid, nil, nil
		}
		session.SetMethod(next)
		acquireHandle(session, handle)
		return d.initiateAndRun(req, session, handle)

	default:
		handle = d.registry.Lookup(pkt.Type)
		if handle == nil {
			return ResultInvalid, nil, nil
		}
		if pkt.Type != session.Type {
			// A bare module-call round must match the session's already
			// running type; anything else should have arrived as a Nak.
			return ResultInvalid, nil, nil
		}
		return d.moduleCall(req, session, handle)
	}
}

// acquireHandle binds session to handle: it takes the registry reference
// that keeps the method loaded for as long as the session runs it, installs
// the release hook the store invokes on destruction, and wires Process.
func acquireHandle(session *eapsession.EapSession, handle *eapmethod.Handle) {
	handle.Acquire()
	session.ReleaseMethod = handle.Release
	session.Process = handle.Method().Process
}

// initiateAndRun runs the method's SessionInit once: the packet it leaves in
// session.ThisRound.Request (typically the method's first challenge) is this
// round's reply. Process is not invoked here — it has nothing to validate
// yet, since the round that triggered initiation (Identity or Nak) carries
// no response to this method's own challenge. Process starts running on the
// round after this one.
func (d *Dispatcher) initiateAndRun(req Request, session *eapsession.EapSession, handle *eapmethod.Handle) (Result, *eap.Packet, error) {
	previous, hadPrevious := req.AuthType()
	req.SetAuthType(handle.Name())
	ok, err := handle.Method().SessionInit(session)
	if hadPrevious {
		req.SetAuthType(previous)
	}
	if err != nil {
		return ResultFail, nil, newErr(ErrMethodFailure, "method SessionInit", err)
	}
	if !ok {
		return ResultInvalid, nil, nil
	}

	var reply *eap.Packet
	if session.ThisRound != nil {
		reply = session.ThisRound.Request
	}
	return ResultOK, reply, nil
}

// moduleCall tags the request with the module's name for the duration of
// the call, invokes the method's round handler, and maps its outcome to a
// Result.
func (d *Dispatcher) moduleCall(req Request, session *eapsession.EapSession, handle *eapmethod.Handle) (Result, *eap.Packet, error) {
	previous, hadPrevious := req.AuthType()
	req.SetAuthType(handle.Name())

	ok, err := handle.Method().Process(session)

	if hadPrevious {
		req.SetAuthType(previous)
	}

	if err != nil {
		return ResultFail, nil, newErr(ErrMethodFailure, "method Process", err)
	}
	if !ok {
		return ResultInvalid, nil, nil
	}

	var reply *eap.Packet
	if session.ThisRound != nil {
		reply = session.ThisRound.Request
	}
	return ResultOK, reply, nil
}

// negotiateNak picks the next EAP type from the peer's NAK proposal list,
// honoring a pinned control:EAP-Type and refusing to re-select the type
// the peer just NAK-ed.
func (d *Dispatcher) negotiateNak(req Request, current eap.Type, nak eap.NakData) (eap.Type, bool) {
	pinned, hasPin := req.ControlString("EAP-Type")
	var pinnedType eap.Type
	if hasPin {
		pinnedType, hasPin = parsePinnedType(pinned)
	}

	for _, proposed := range nak {
		switch {
		case proposed == 0:
			return 0, false
		case proposed < eap.MinType:
			return 0, false
		case proposed >= eap.MaxType || !d.registry.IsRegistered(proposed):
			continue
		case proposed == current:
			core.GetLogger().Warnw("peer NAK-ed back to its own currently running EAP type", "type", proposed)
			continue
		case hasPin && proposed != pinnedType:
			continue
		default:
			return proposed, true
		}
	}
	return 0, false
}

// parsePinnedType resolves a control:EAP-Type string value (a method name
// or a decimal type number) to its numeric eap.Type, if recognised.
func parsePinnedType(value string) (eap.Type, bool) {
	switch value {
	case "md5", "MD5":
		return eap.TypeMD5Challenge, true
	case "tls", "TLS":
		return eap.TypeTLS, true
	case "ttls", "TTLS":
		return eap.TypeTTLS, true
	case "peap", "PEAP":
		return eap.TypePEAP, true
	case "leap", "LEAP":
		return eap.TypeLEAP, true
	case "mschapv2", "MSCHAPV2":
		return eap.TypeMSCHAPV2, true
	case "pwd", "PWD":
		return eap.TypePWD, true
	default:
		return 0, false
	}
}
