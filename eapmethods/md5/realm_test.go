package md5

import "testing"

func TestMultiRealmCredentialStoreRoutesByRealm(t *testing.T) {
	realmA := MapCredentialStore{"bob": "realmapass"}
	fallback := MapCredentialStore{"alice": "fallbackpass"}
	store := NewMultiRealmCredentialStore(map[string]CredentialStore{"a.example": realmA}, fallback)

	pw, found, err := store.Password("bob@a.example")
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	if !found || pw != "realmapass" {
		t.Fatalf("expected bob@a.example to resolve via the realm store, got %q found=%v", pw, found)
	}

	pw, found, err = store.Password("alice")
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	if !found || pw != "fallbackpass" {
		t.Fatalf("expected bare username to fall through to the default store, got %q found=%v", pw, found)
	}
}

func TestMultiRealmCredentialStoreUnknownRealmFallsThrough(t *testing.T) {
	fallback := MapCredentialStore{"carol@unknown.example": "stillfallback"}
	store := NewMultiRealmCredentialStore(map[string]CredentialStore{}, fallback)

	pw, found, err := store.Password("carol@unknown.example")
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	if !found || pw != "stillfallback" {
		t.Fatalf("expected unknown realm to fall through, got %q found=%v", pw, found)
	}
}

func TestMultiRealmCredentialStoreNoFallbackMisses(t *testing.T) {
	store := NewMultiRealmCredentialStore(map[string]CredentialStore{}, nil)
	_, found, err := store.Password("dave@nowhere.example")
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	if found {
		t.Fatal("expected a miss with no fallback configured")
	}
}
