package eapdispatch

import (
	"crypto/md5"
	"testing"
	"time"

	"github.com/francistor/radeap/eap"
	"github.com/francistor/radeap/eapmethod"
	md5method "github.com/francistor/radeap/eapmethods/md5"
	"github.com/francistor/radeap/eapsession"
)

// fakeRequest is a minimal in-memory Request, standing in for a RADIUS host
// request/reply pair in tests.
type fakeRequest struct {
	reqEAPMessage [][]byte
	replyEAP      []byte
	proxyReply    bool
	correlator    string
	replyCorr     string
	authType      string
	authTypeSet   bool
	username      string
	replyUsername string
	accessAccept  bool
	parentDepth   int
	outermostHome bool
	control       map[string]string
	requestData   map[[2]string]interface{}
}

func newFakeRequest() *fakeRequest {
	return &fakeRequest{
		control:     map[string]string{},
		requestData: map[[2]string]interface{}{},
	}
}

func (f *fakeRequest) EAPMessageFragments() [][]byte { return f.reqEAPMessage }
func (f *fakeRequest) SetReplyEAPMessage(buf []byte) { f.replyEAP = buf }
func (f *fakeRequest) HasReplyEAPMessage() bool      { return f.replyEAP != nil }
func (f *fakeRequest) IsProxyReply() bool            { return f.proxyReply }
func (f *fakeRequest) Correlator() (string, bool)    { return f.correlator, f.correlator != "" }
func (f *fakeRequest) SetReplyCorrelator(c string)   { f.replyCorr = c }
func (f *fakeRequest) AuthType() (string, bool)      { return f.authType, f.authTypeSet }
func (f *fakeRequest) SetAuthType(name string) {
	f.authType = name
	f.authTypeSet = true
}
func (f *fakeRequest) Username() string { return f.username }
func (f *fakeRequest) SetReplyUsername(value string, ciscoBugPad bool) {
	if ciscoBugPad {
		value += "\x00"
	}
	f.replyUsername = value
}
func (f *fakeRequest) IsAccessAccept() bool                    { return f.accessAccept }
func (f *fakeRequest) SetReplyMessageAuthenticatorPlaceholder() {}
func (f *fakeRequest) IsPostAuthReject() bool                  { return false }
func (f *fakeRequest) ControlString(key string) (string, bool) {
	v, ok := f.control[key]
	return v, ok
}
func (f *fakeRequest) ParentDepth() int                       { return f.parentDepth }
func (f *fakeRequest) OutermostParentHasHomeServer() bool     { return f.outermostHome }
func (f *fakeRequest) ProxyReplyCiscoAVPair(string) (string, bool) { return "", false }
func (f *fakeRequest) SetProxyReplyCiscoAVPair(string, string)     {}
func (f *fakeRequest) HomeServerSecret() string                    { return "" }
func (f *fakeRequest) ProxyRequestAuthenticator() [16]byte         { return [16]byte{} }
func (f *fakeRequest) ClientSecret() string                        { return "" }
func (f *fakeRequest) OriginalRequestAuthenticator() [16]byte      { return [16]byte{} }
func (f *fakeRequest) RequestDataGet(moduleInstance, kind string) (interface{}, bool) {
	v, ok := f.requestData[[2]string{moduleInstance, kind}]
	return v, ok
}
func (f *fakeRequest) RequestDataPut(moduleInstance, kind string, value interface{}) {
	f.requestData[[2]string{moduleInstance, kind}] = value
}

// stubMethod immediately succeeds on its first Process call, used to give
// the NAK negotiation test a second registered type distinct from md5.
type stubMethod struct{}

func (stubMethod) Name() string { return "stub" }
func (stubMethod) SessionInit(s *eapsession.EapSession) (bool, error) {
	s.ThisRound = &eap.Round{Request: &eap.Packet{
		Code: eap.CodeRequest, Identifier: 1, Type: eap.TypeOTP, TypeData: []byte{0x01},
	}}
	return true, nil
}
func (stubMethod) Process(s *eapsession.EapSession) (bool, error) {
	s.ThisRound.Request = eap.NewSuccess(s.ThisRound.Response.Identifier)
	return true, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *eapsession.Store) {
	t.Helper()
	registry, err := eapmethod.NewRegistry(map[eap.Type]eapmethod.Method{
		eap.TypeMD5Challenge: md5method.NewMethod(md5method.MapCredentialStore{"alice": "secret"}),
		eap.TypeOTP:          stubMethod{},
	}, "md5")
	if err != nil {
		t.Fatalf("registry bootstrap: %v", err)
	}
	store := eapsession.NewStore(time.Minute)
	t.Cleanup(store.Close)
	return NewDispatcher("eap", Config{DefaultEAPType: "md5"}, registry, store), store
}

func TestAuthorizeEAPStartSynthesizesIdentityRequest(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := newFakeRequest()
	req.reqEAPMessage = [][]byte{eap.Encode(&eap.Packet{Code: eap.CodeResponse, Identifier: 7})}

	result, err := d.Authorize(req)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result != ResultHandled {
		t.Fatalf("expected ResultHandled, got %v", result)
	}
	reply, err := eap.Decode([][]byte{req.replyEAP})
	if err != nil {
		t.Fatalf("decoding synthesised reply: %v", err)
	}
	if reply.Code != eap.CodeRequest || reply.Type != eap.TypeIdentity || reply.Identifier != 7 {
		t.Fatalf("unexpected synthesised reply: %+v", reply)
	}
}

func TestAuthenticateIdentityThenMD5ChallengeRoundTrip(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := newFakeRequest()
	req.username = "alice"
	req.reqEAPMessage = [][]byte{eap.Encode(&eap.Packet{
		Code: eap.CodeResponse, Identifier: 1, Type: eap.TypeIdentity, TypeData: []byte("alice"),
	})}

	result, err := d.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate (identity round): %v", err)
	}
	if result != ResultOK {
		t.Fatalf("expected ResultOK, got %v", result)
	}
	challenge, err := eap.Decode([][]byte{req.replyEAP})
	if err != nil {
		t.Fatalf("decoding challenge: %v", err)
	}
	if challenge.Code != eap.CodeRequest || challenge.Type != eap.TypeMD5Challenge {
		t.Fatalf("expected an MD5 challenge request, got %+v", challenge)
	}
	if req.replyCorr == "" {
		t.Fatal("expected a correlator to be set on the reply for the next round to thaw")
	}

	// Second round: the peer answers with a correct MD5 response.
	value := md5Response(challenge.Identifier+1, "secret", challenge.TypeData[1:])
	resp := &eap.Packet{
		Code: eap.CodeResponse, Identifier: challenge.Identifier + 1, Type: eap.TypeMD5Challenge,
		TypeData: append([]byte{byte(len(value))}, value...),
	}
	req2 := newFakeRequest()
	req2.username = "alice"
	req2.correlator = req.replyCorr
	req2.reqEAPMessage = [][]byte{eap.Encode(resp)}

	result2, err := d.Authenticate(req2)
	if err != nil {
		t.Fatalf("Authenticate (MD5 round): %v", err)
	}
	if result2 != ResultOK {
		t.Fatalf("expected ResultOK, got %v", result2)
	}
	final, err := eap.Decode([][]byte{req2.replyEAP})
	if err != nil {
		t.Fatalf("decoding final reply: %v", err)
	}
	if final.Code != eap.CodeSuccess {
		t.Fatalf("expected EAP-Success, got %+v", final)
	}
}

func TestNakNegotiatesAlternateType(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := newFakeRequest()
	req.username = "alice"
	req.reqEAPMessage = [][]byte{eap.Encode(&eap.Packet{
		Code: eap.CodeResponse, Identifier: 1, Type: eap.TypeIdentity, TypeData: []byte("alice"),
	})}
	if _, err := d.Authenticate(req); err != nil {
		t.Fatalf("Authenticate (identity round): %v", err)
	}

	nak := &eap.Packet{
		Code: eap.CodeResponse, Identifier: 2, Type: eap.TypeNak, TypeData: []byte{byte(eap.TypeOTP)},
	}
	req2 := newFakeRequest()
	req2.username = "alice"
	req2.correlator = req.replyCorr
	req2.reqEAPMessage = [][]byte{eap.Encode(nak)}

	result, err := d.Authenticate(req2)
	if err != nil {
		t.Fatalf("Authenticate (nak round): %v", err)
	}
	if result != ResultOK {
		t.Fatalf("expected ResultOK, got %v", result)
	}
	reply, err := eap.Decode([][]byte{req2.replyEAP})
	if err != nil {
		t.Fatalf("decoding post-nak reply: %v", err)
	}
	if reply.Type != eap.TypeOTP {
		t.Fatalf("expected dispatcher to switch to the NAK-proposed type, got %+v", reply)
	}
}

func TestAuthenticateRejectsMultiLevelTunnelWithoutHomeServer(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := newFakeRequest()
	req.username = "alice"
	req.parentDepth = 2
	req.outermostHome = false
	req.reqEAPMessage = [][]byte{eap.Encode(&eap.Packet{
		Code: eap.CodeResponse, Identifier: 1, Type: eap.TypeIdentity, TypeData: []byte("alice"),
	})}

	result, err := d.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result != ResultInvalid {
		t.Fatalf("expected ResultInvalid for a nested tunnel with no home server, got %v", result)
	}
	failure, err := eap.Decode([][]byte{req.replyEAP})
	if err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if failure.Code != eap.CodeFailure {
		t.Fatalf("expected EAP-Failure, got %+v", failure)
	}
}

func md5Response(identifier byte, password string, challenge []byte) []byte {
	h := md5.New()
	h.Write([]byte{identifier})
	h.Write([]byte(password))
	h.Write(challenge)
	return h.Sum(nil)
}
