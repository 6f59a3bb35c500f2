package eapmethod

import (
	"testing"

	"github.com/francistor/radeap/eap"
	"github.com/francistor/radeap/eapsession"
)

type stubMethod struct{ name string }

func (m *stubMethod) Name() string { return m.name }
func (m *stubMethod) SessionInit(s *eapsession.EapSession) (bool, error) { return true, nil }
func (m *stubMethod) Process(s *eapsession.EapSession) (bool, error)     { return true, nil }

func TestRegistryBootstrapAndLookup(t *testing.T) {
	reg, err := NewRegistry(map[eap.Type]Method{
		eap.TypeMD5Challenge: &stubMethod{name: "md5"},
		eap.TypePEAP:         &stubMethod{name: "peap"},
	}, "md5")
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if reg.DefaultType() != eap.TypeMD5Challenge {
		t.Fatalf("expected default type md5, got %v", reg.DefaultType())
	}
	if h := reg.Lookup(eap.TypePEAP); h == nil || h.Name() != "peap" {
		t.Fatalf("expected to find peap handle")
	}
	if reg.IsRegistered(eap.TypeTTLS) {
		t.Fatal("ttls was not registered")
	}
}

func TestRegistryBootstrapFailsOnBadDefault(t *testing.T) {
	_, err := NewRegistry(map[eap.Type]Method{
		eap.TypeMD5Challenge: &stubMethod{name: "md5"},
	}, "tls")
	if err == nil {
		t.Fatal("expected bootstrap failure for unresolved default_eap_type")
	}
}

func TestRegistryBootstrapFailsWithNoMethods(t *testing.T) {
	_, err := NewRegistry(map[eap.Type]Method{}, "md5")
	if err == nil {
		t.Fatal("expected bootstrap failure with zero registered methods")
	}
}
