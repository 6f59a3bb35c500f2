// Package eapradius adapts a *core.RadiusPacket request/reply pair to the
// eapdispatch.Request interface: the dispatcher stays agnostic of the
// RADIUS codec, while this package is the one piece of the tree that
// bridges it to the wire-level core.RadiusPacket codec.
package eapradius

import (
	"strings"
	"sync"

	"github.com/francistor/radeap/core"
	"github.com/francistor/radeap/eap"
)

// requestDataKey keys stashed per-request values by (module instance, kind),
// matching how the policy engine's other per-request state is addressed.
type requestDataKey struct {
	moduleInstance string
	kind           string
}

// Adapter implements eapdispatch.Request over a live RADIUS exchange.
type Adapter struct {
	Request *core.RadiusPacket
	Reply   *core.RadiusPacket

	// ProxyReply, when non-nil, is the reply received from the home
	// server this request was proxied to; its presence is what
	// IsProxyReply reports.
	ProxyReply *core.RadiusPacket

	ClientSecretValue      string
	HomeServerSecretValue  string
	OriginalRequestAuthVal [16]byte
	ProxyRequestAuthVal    [16]byte
	ParentDepthValue       int
	OutermostHasHomeServer bool
	PostAuthRejectValue    bool

	control map[string]string

	authType    string
	authTypeSet bool

	mu          sync.Mutex
	requestData map[requestDataKey]interface{}
}

// NewAdapter builds an Adapter for a freshly received Access-Request,
// pre-building the reply as an Access-Accept per core.RadiusPacket's usual
// convention (the policy engine downgrades it to Reject as needed).
func NewAdapter(request *core.RadiusPacket) *Adapter {
	reply := core.NewRadiusResponse(request, true)
	return &Adapter{
		Request:     request,
		Reply:       reply,
		control:     make(map[string]string),
		requestData: make(map[requestDataKey]interface{}),
	}
}

// SetControlString lets the policy engine pin administrator control:
// values (e.g. control:EAP-Type) before invoking the dispatcher.
func (a *Adapter) SetControlString(key, value string) {
	a.control[key] = value
}

func (a *Adapter) EAPMessageFragments() [][]byte {
	avps := a.Request.GetAllAVP("EAP-Message")
	if len(avps) == 0 {
		return nil
	}
	out := make([][]byte, len(avps))
	for i := range avps {
		out[i] = avps[i].GetOctets()
	}
	return out
}

func (a *Adapter) SetReplyEAPMessage(buf []byte) {
	a.Reply.DeleteAllAVP("EAP-Message")
	for _, chunk := range eap.Fragment(buf, 253) {
		a.Reply.Add("EAP-Message", chunk)
	}
}

func (a *Adapter) HasReplyEAPMessage() bool {
	return len(a.Reply.GetAllAVP("EAP-Message")) > 0
}

func (a *Adapter) IsProxyReply() bool { return a.ProxyReply != nil }

func (a *Adapter) Correlator() (string, bool) {
	v := a.Request.GetStringAVP("State")
	return v, v != ""
}

func (a *Adapter) SetReplyCorrelator(correlator string) {
	a.Reply.Replace("State", correlator)
}

func (a *Adapter) AuthType() (string, bool) { return a.authType, a.authTypeSet }

func (a *Adapter) SetAuthType(name string) {
	a.authType = name
	a.authTypeSet = true
}

func (a *Adapter) Username() string {
	return a.Request.GetStringAVP("User-Name")
}

func (a *Adapter) SetReplyUsername(value string, ciscoBugPad bool) {
	if ciscoBugPad {
		value = value + "\x00"
	}
	a.Reply.Replace("User-Name", value)
}

func (a *Adapter) IsAccessAccept() bool {
	return a.Reply.Code == core.ACCESS_ACCEPT
}

func (a *Adapter) SetReplyMessageAuthenticatorPlaceholder() {
	a.Reply.AddIfNotPresent("Message-Authenticator", make([]byte, 16))
}

func (a *Adapter) IsPostAuthReject() bool { return a.PostAuthRejectValue }

func (a *Adapter) ControlString(key string) (string, bool) {
	v, ok := a.control[key]
	return v, ok
}

func (a *Adapter) ParentDepth() int { return a.ParentDepthValue }

func (a *Adapter) OutermostParentHasHomeServer() bool { return a.OutermostHasHomeServer }

func (a *Adapter) ProxyReplyCiscoAVPair(name string) (string, bool) {
	if a.ProxyReply == nil {
		return "", false
	}
	v := a.ProxyReply.GetCiscoAVPair(name)
	return v, v != ""
}

func (a *Adapter) SetProxyReplyCiscoAVPair(name, value string) {
	if a.ProxyReply == nil {
		return
	}
	for i := range a.ProxyReply.AVPs {
		avp := &a.ProxyReply.AVPs[i]
		if avp.Name != "Cisco-AVPair" {
			continue
		}
		if before, _, found := strings.Cut(avp.GetString(), "="); found && strings.TrimSpace(before) == name {
			avp.Value = name + "=" + value
			return
		}
	}
	a.ProxyReply.Add("Cisco-AVPair", name+"="+value)
}

func (a *Adapter) HomeServerSecret() string { return a.HomeServerSecretValue }

func (a *Adapter) ProxyRequestAuthenticator() [16]byte { return a.ProxyRequestAuthVal }

func (a *Adapter) ClientSecret() string { return a.ClientSecretValue }

func (a *Adapter) OriginalRequestAuthenticator() [16]byte { return a.OriginalRequestAuthVal }

func (a *Adapter) RequestDataGet(moduleInstance, kind string) (interface{}, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.requestData[requestDataKey{moduleInstance, kind}]
	return v, ok
}

func (a *Adapter) RequestDataPut(moduleInstance, kind string, value interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requestData[requestDataKey{moduleInstance, kind}] = value
}
