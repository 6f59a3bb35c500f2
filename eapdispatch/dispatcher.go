// Package eapdispatch implements the EAP dispatcher: the Authorize,
// Authenticate, Post-Proxy and Post-Auth hooks, Identity/NAK handling,
// method selection and the post-auth failure synthesiser, grounded
// directly on the original rlm_eap.c's
// mod_authorize/mod_authenticate/mod_post_proxy/mod_post_auth.
package eapdispatch

import (
	"github.com/francistor/radeap/core"
	"github.com/francistor/radeap/eap"
	"github.com/francistor/radeap/eapcrypto"
	"github.com/francistor/radeap/eapmethod"
	"github.com/francistor/radeap/eapsession"
	"github.com/prometheus/client_golang/prometheus"
)

// Config is the dispatcher's top-level configuration.
type Config struct {
	DefaultEAPType             string
	IgnoreUnknownEAPTypes      bool
	CiscoAccountingUsernameBug bool
	// TimerExpire, MaxSessions are accepted for config-file compatibility
	// with older deployments but otherwise unused: the session store's own
	// bounded-lifetime eviction supersedes them.
	TimerExpire int
	MaxSessions int
}

// Dispatcher ties together the method registry and session store behind the
// four externally visible hooks.
type Dispatcher struct {
	name     string
	config   Config
	registry *eapmethod.Registry
	store    *eapsession.Store

	hookCounter *prometheus.CounterVec
}

// NewDispatcher builds a Dispatcher named name (used as the Auth-Type marker
// value) over the given registry and session store.
func NewDispatcher(name string, config Config, registry *eapmethod.Registry, store *eapsession.Store) *Dispatcher {
	return &Dispatcher{
		name:     name,
		config:   config,
		registry: registry,
		store:    store,
		hookCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eap_dispatcher_hook_total",
			Help: "EAP dispatcher hook invocations by hook and result.",
		}, []string{"hook", "result"}),
	}
}

// Collectors exposes this dispatcher's Prometheus metrics for registration.
func (d *Dispatcher) Collectors() []prometheus.Collector {
	return []prometheus.Collector{d.hookCounter}
}

func (d *Dispatcher) record(hook string, r Result) Result {
	d.hookCounter.WithLabelValues(hook, r.String()).Inc()
	return r
}

// Authorize probes for an EAP-Start and synthesises an Identity Request,
// otherwise pins the Auth-Type so Authenticate runs for this request.
func (d *Dispatcher) Authorize(req Request) (Result, error) {
	if req.IsProxyReply() {
		return d.record("authorize", ResultNoop), nil
	}

	frags := req.EAPMessageFragments()
	if len(frags) > 0 {
		if pkt, err := eap.Decode(frags); err == nil && eap.IsStart(pkt) {
			reply := eap.NewIdentityRequest(pkt.Identifier)
			req.SetReplyEAPMessage(eap.Encode(reply))
			return d.record("authorize", ResultHandled), nil
		}
	}

	if _, set := req.AuthType(); !set {
		req.SetAuthType(d.name)
		return d.record("authorize", ResultUpdated), nil
	}
	return d.record("authorize", ResultOK), nil
}

// Authenticate decodes the inbound EAP-Message, thaws or creates the
// session it correlates to, runs the selected method for one round, and
// composes the reply.
func (d *Dispatcher) Authenticate(req Request) (Result, error) {
	frags := req.EAPMessageFragments()
	if len(frags) == 0 {
		return d.record("authenticate", ResultInvalid), nil
	}

	pkt, err := eap.Decode(frags)
	if err != nil {
		return d.record("authenticate", ResultFail), newErr(ErrMalformed, "decoding EAP-Message", err)
	}

	session, isNew, err := d.thawOrCreate(req)
	if err != nil {
		return d.record("authenticate", ResultFail), err
	}

	session.ThisRound = &eap.Round{Response: pkt}
	if !isNew && session.PrevRound != nil {
		session.ThisRound.Request = session.PrevRound.Request
	}
	session.Username = req.Username()
	session.RequestRef = req

	result, reply, selErr := d.selectAndRun(req, session, pkt)
	if selErr != nil || result == ResultInvalid {
		failure := eap.NewFailure(pkt.Identifier)
		req.SetReplyEAPMessage(eap.Encode(failure))
		session.MarkTerminal(false, false)
		d.freeze(req, session)
		if selErr != nil {
			return d.record("authenticate", ResultFail), selErr
		}
		return d.record("authenticate", ResultInvalid), nil
	}

	if reply != nil {
		req.SetReplyEAPMessage(eap.Encode(reply))
		session.ThisRound.Request = reply
		d.applyContinuationRule(session, reply)
	}

	if req.IsAccessAccept() {
		req.SetReplyUsername(req.Username(), d.config.CiscoAccountingUsernameBug)
	}

	d.freeze(req, session)
	return d.record("authenticate", result), nil
}

// applyContinuationRule decides whether the session continues for another
// round, based on the reply code and type just produced.
func (d *Dispatcher) applyContinuationRule(session *eapsession.EapSession, reply *eap.Packet) {
	switch {
	case reply.Code == eap.CodeRequest && reply.Type >= eap.MinType:
		session.AdvanceRound()
	case session.Type == eap.TypeLEAP && reply.Code == eap.CodeSuccess:
		// LEAP exception: retain the session for the trailing Response round
		// even though Success has already been emitted.
		session.MarkTerminal(true, true)
	case reply.Code == eap.CodeSuccess:
		session.MarkTerminal(true, false)
	case reply.Code == eap.CodeFailure:
		session.MarkTerminal(false, false)
	}
}

func (d *Dispatcher) thawOrCreate(req Request) (session *eapsession.EapSession, isNew bool, err error) {
	if correlator, ok := req.Correlator(); ok {
		s, thawErr := d.store.Thaw(correlator)
		if thawErr != nil {
			return nil, false, newErr(ErrStateLost, "thawing session", thawErr)
		}
		if s != nil {
			return s, false, nil
		}
	}
	s, createErr := d.store.Create()
	if createErr != nil {
		return nil, false, newErr(ErrStateLost, "creating session", createErr)
	}
	return s, true, nil
}

func (d *Dispatcher) freeze(req Request, session *eapsession.EapSession) {
	req.SetReplyCorrelator(session.Correlator)
	session.RequestRef = nil
	if err := d.store.Freeze(session); err != nil {
		core.GetLogger().Warnw("error freezing eap session", "correlator", session.Correlator, "error", err)
	}
}

// PostProxy resumes a session once its proxied request's reply arrives, and
// rewraps a proxied LEAP session key under the client-facing secret.
func (d *Dispatcher) PostProxy(req Request) (Result, error) {
	if req.IsProxyReply() {
		correlator, ok := req.Correlator()
		if !ok {
			return d.record("post_proxy", ResultNoop), nil
		}
		session, err := d.store.Thaw(correlator)
		if err != nil || session == nil {
			return d.record("post_proxy", ResultNoop), newErr(ErrStateLost, "thawing session for post-proxy", err)
		}
		cbAny, ok := req.RequestDataGet(d.name, "proxy-callback")
		if !ok {
			d.freeze(req, session)
			return d.record("post_proxy", ResultNoop), nil
		}
		cb, ok := cbAny.(ProxyCallback)
		if !ok {
			d.freeze(req, session)
			return d.record("post_proxy", ResultNoop), nil
		}

		result, err := cb(req, true)
		if err != nil || result == ResultReject {
			failure := eap.NewFailure(0)
			req.SetReplyEAPMessage(eap.Encode(failure))
			session.MarkTerminal(false, false)
			d.freeze(req, session)
			return d.record("post_proxy", ResultReject), err
		}
		session.ResumeFromProxy()
		if req.IsAccessAccept() {
			req.SetReplyUsername(req.Username(), d.config.CiscoAccountingUsernameBug)
		}
		d.freeze(req, session)
		return d.record("post_proxy", result), nil
	}

	if avpair, ok := req.ProxyReplyCiscoAVPair("leap:session-key"); ok {
		rewrapped, err := eapcrypto.RewrapLeapSessionKey(
			avpair,
			req.HomeServerSecret(), req.ProxyRequestAuthenticator(),
			req.ClientSecret(), req.OriginalRequestAuthenticator(),
		)
		if err != nil {
			return d.record("post_proxy", ResultFail), newErr(ErrCryptoFailure, "rewrapping leap:session-key", err)
		}
		req.SetProxyReplyCiscoAVPair("leap:session-key", rewrapped)
		return d.record("post_proxy", ResultOK), nil
	}

	return d.record("post_proxy", ResultNoop), nil
}

// PostAuth synthesises an EAP-Failure body when the RADIUS policy engine
// rejects a request the dispatcher has been running an EAP conversation
// over, so the peer sees a proper EAP-Failure rather than a bare Reject.
func (d *Dispatcher) PostAuth(req Request) (Result, error) {
	if !req.IsPostAuthReject() {
		return d.record("post_auth", ResultNoop), nil
	}

	frags := req.EAPMessageFragments()
	if len(frags) == 0 || req.HasReplyEAPMessage() {
		return d.record("post_auth", ResultNoop), nil
	}

	correlator, ok := req.Correlator()
	if !ok {
		// Nothing to thaw; the caller already rejected. Failing silently
		// here matches a plain RADIUS reject with no EAP conversation.
		return d.record("post_auth", ResultNoop), nil
	}
	session, err := d.store.Thaw(correlator)
	if err != nil || session == nil {
		// The session expired or was never started; nothing to synthesise.
		return d.record("post_auth", ResultNoop), nil
	}

	pkt, decErr := eap.Decode(frags)
	identifier := byte(0)
	if decErr == nil {
		identifier = pkt.Identifier
	}
	failure := eap.NewFailure(identifier)
	req.SetReplyEAPMessage(eap.Encode(failure))
	req.SetReplyMessageAuthenticatorPlaceholder()

	session.MarkTerminal(false, false)
	d.freeze(req, session)

	return d.record("post_auth", ResultOK), nil
}
