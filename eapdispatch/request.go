package eapdispatch

// Result is the outcome code the four dispatcher hooks return to the
// server's policy engine.
type Result int

const (
	ResultOK Result = iota
	ResultUpdated
	ResultHandled
	ResultNoop
	ResultReject
	ResultFail
	ResultInvalid
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultUpdated:
		return "updated"
	case ResultHandled:
		return "handled"
	case ResultNoop:
		return "noop"
	case ResultReject:
		return "reject"
	case ResultFail:
		return "fail"
	case ResultInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ProxyCallback is parked in a request's RequestData by a method that has
// proxied an inner exchange, to be invoked by PostProxy when the proxied
// reply arrives.
type ProxyCallback func(req Request, success bool) (Result, error)

// Request stands in for the RADIUS host's request object: the attribute
// lists, username, secrets/authenticators, and parent-chain state the
// dispatcher consumes. RADIUS attribute parsing is treated as an external
// collaborator; production wiring adapts a *core.RadiusPacket-backed
// implementation of this interface instead of this package depending on one.
type Request interface {
	// EAPMessageFragments returns the decoded EAP-Message attribute values,
	// in attribute order, or nil if none are present.
	EAPMessageFragments() [][]byte
	// SetReplyEAPMessage installs buf (already fragment-ready bytes; the
	// RADIUS layer performs the actual 253-octet fragmentation) as the
	// reply's EAP-Message attribute(s).
	SetReplyEAPMessage(buf []byte)

	// IsProxyReply reports whether this request already carries a "proxied
	// reply" marker (Post-Proxy is being invoked on the resumed request).
	IsProxyReply() bool

	// Correlator returns the RADIUS State attribute (or equivalent) used to
	// thaw a previously frozen session, if present.
	Correlator() (string, bool)
	// SetReplyCorrelator installs the session's correlator as the reply's
	// State attribute, so the next round can thaw it.
	SetReplyCorrelator(string)

	// AuthType returns the current Auth-Type marker, if any.
	AuthType() (name string, set bool)
	// SetAuthType pins Auth-Type to name, replacing any marker already set.
	// Callers that must not override an existing marker check AuthType first.
	SetAuthType(name string)

	// Username returns the request's User-Name value.
	Username() string
	// SetReplyUsername sets the reply's User-Name, optionally padded with
	// one extra trailing NUL (the Cisco accounting-username-bug).
	SetReplyUsername(value string, ciscoBugPad bool)
	// IsAccessAccept reports whether the reply currently being composed is
	// an Access-Accept.
	IsAccessAccept() bool
	// HasReplyEAPMessage reports whether the reply already carries an
	// EAP-Message attribute (used by PostAuth).
	HasReplyEAPMessage() bool
	// SetReplyMessageAuthenticatorPlaceholder ensures a zeroed
	// Message-Authenticator attribute exists in the reply.
	SetReplyMessageAuthenticatorPlaceholder()
	// IsPostAuthReject reports whether the pipeline has reached
	// Post-Auth-Type := Reject.
	IsPostAuthReject() bool

	// ControlString returns a control:-namespace value, e.g. "EAP-Type" or
	// "EAP-TLS-Require-Client-Cert".
	ControlString(key string) (string, bool)

	// ParentDepth returns how many proxy-parent requests this request has
	// (0, 1 or 2+), used by the multi-nested-tunnel check.
	ParentDepth() int
	// OutermostParentHasHomeServer reports whether, when ParentDepth() >= 2,
	// the outermost parent is bound to a home server.
	OutermostParentHasHomeServer() bool

	// ProxyReplyCiscoAVPair returns the named Cisco-AVPair value from the
	// proxy reply, if present.
	ProxyReplyCiscoAVPair(name string) (string, bool)
	// SetProxyReplyCiscoAVPair rewrites the named Cisco-AVPair value in the
	// proxy reply in place.
	SetProxyReplyCiscoAVPair(name, value string)

	// HomeServerSecret, ProxyRequestAuthenticator, ClientSecret and
	// OriginalRequestAuthenticator provide the cryptographic material
	// needed for the post-proxy leap:session-key= rewrap.
	HomeServerSecret() string
	ProxyRequestAuthenticator() [16]byte
	ClientSecret() string
	OriginalRequestAuthenticator() [16]byte

	// RequestDataGet/Put park arbitrary values (proxy callbacks, tunnel
	// handles) keyed by (moduleInstance, kind).
	RequestDataGet(moduleInstance, kind string) (interface{}, bool)
	RequestDataPut(moduleInstance, kind string, value interface{})
}
