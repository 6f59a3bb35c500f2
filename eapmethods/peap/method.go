// Package peap wires the eaptunnel package into the method registry for the
// PEAP EAP type, grounded on rlm_eap_peap.c's mod_process / peap_alloc.
// It does no session-resumption book-keeping and runs no SOH round.
package peap

import (
	"context"
	"fmt"

	"github.com/francistor/radeap/eap"
	"github.com/francistor/radeap/eapsession"
	"github.com/francistor/radeap/eaptunnel"
)

// Method implements eapmethod.Method for PEAP.
type Method struct {
	config *eaptunnel.Config
	ivs    eaptunnel.InnerVirtualServer
}

// NewMethod builds a PEAP method that hands its decapsulated inner
// conversation to ivs once the TLS tunnel is established.
func NewMethod(config *eaptunnel.Config, ivs eaptunnel.InnerVirtualServer) *Method {
	if config.InnerEAPModule == "" {
		config.InnerEAPModule = "eap"
	}
	return &Method{config: config, ivs: ivs}
}

func (m *Method) Name() string { return "peap" }

// SessionInit allocates the tunnel state and issues the first empty
// EAP-TLS Request with the Start flag set, prompting the peer's ClientHello.
func (m *Method) SessionInit(s *eapsession.EapSession) (bool, error) {
	tunnel := eaptunnel.NewTunnelState(m.config, m.ivs, true)
	s.Opaque = tunnel
	s.OpaqueDestructor = func(o interface{}) {
		if t, ok := o.(*eaptunnel.TunnelState); ok {
			t.Close()
		}
	}
	s.TLS = true

	identifier := byte(0)
	if s.ThisRound != nil && s.ThisRound.Response != nil {
		identifier = s.ThisRound.Response.Identifier + 1
	}
	s.ThisRound = &eap.Round{Request: &eap.Packet{
		Code:       eap.CodeRequest,
		Identifier: identifier,
		Type:       eap.TypePEAP,
		TypeData:   []byte{0x20}, // Start flag, no payload yet
	}}
	return true, nil
}

// Process drives one round of the tunnel.
func (m *Method) Process(s *eapsession.EapSession) (bool, error) {
	resp := s.ThisRound.Response
	if resp == nil || resp.Type != eap.TypePEAP {
		return false, nil
	}
	tunnel, ok := s.Opaque.(*eaptunnel.TunnelState)
	if !ok || tunnel == nil {
		return false, fmt.Errorf("peap session missing tunnel state")
	}

	reply, result, err := tunnel.HandleRound(context.Background(), resp.TypeData)
	if err != nil {
		return false, err
	}

	switch result {
	case eaptunnel.ResultInvalid:
		return false, nil
	case eaptunnel.ResultSuccess:
		s.ThisRound.Request = eap.NewSuccess(resp.Identifier)
		_ = reply // the final tunnel record (if any) has already been flushed in prior rounds
	case eaptunnel.ResultFailure:
		s.ThisRound.Request = eap.NewFailure(resp.Identifier)
	default:
		s.ThisRound.Request = &eap.Packet{
			Code:       eap.CodeRequest,
			Identifier: resp.Identifier + 1,
			Type:       eap.TypePEAP,
			TypeData:   reply,
		}
	}
	return true, nil
}
