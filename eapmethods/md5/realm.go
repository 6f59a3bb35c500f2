package md5

import (
	"fmt"
	"strings"

	"github.com/francistor/radeap/core"
)

// sqlDSNParams is the per-realm substitution set for the DSN template: the
// fields a deployment varies across realms backed by distinct MySQL
// instances or schemas.
type sqlDSNParams struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Schema   string `json:"schema"`
}

// sqlDSNConfig is the templated object built for each realm: the resolved
// DSN and, optionally, a realm-specific lookup query (falls back to
// SQLCredentialStore's radcheck default when empty).
type sqlDSNConfig struct {
	DSN   string `json:"dsn"`
	Query string `json:"query"`
}

// MultiRealmCredentialStore routes a NAI username (user@realm, RFC 2486) to
// the CredentialStore configured for that realm, which is queried with the
// user part alone, falling back to a default store (usually the in-memory one
// from server.json), queried with the full username, for bare usernames or
// realms with no dedicated store.
type MultiRealmCredentialStore struct {
	byRealm  map[string]CredentialStore
	fallback CredentialStore
}

// NewMultiRealmCredentialStore builds a realm router. fallback may be nil,
// in which case usernames with no matching realm store simply miss.
func NewMultiRealmCredentialStore(byRealm map[string]CredentialStore, fallback CredentialStore) *MultiRealmCredentialStore {
	return &MultiRealmCredentialStore{byRealm: byRealm, fallback: fallback}
}

func (m *MultiRealmCredentialStore) Password(username string) (string, bool, error) {
	user, realm, found := strings.Cut(username, "@")
	if found {
		if store, ok := m.byRealm[realm]; ok {
			return store.Password(user)
		}
	}
	if m.fallback == nil {
		return "", false, nil
	}
	return m.fallback.Password(username)
}

// BuildRealmCredentialStores renders templateName once per entry of
// paramsName (a map of realm name to sqlDSNParams) and opens a
// SQLCredentialStore for each, grounded on core.TemplatedMapConfigObject's
// per-key template rendering. A realm whose rendered DSN cannot be opened
// is skipped with an error collected in the returned slice rather than
// aborting the rest of the realms.
func BuildRealmCredentialStores(cm *core.ConfigurationManager, templateName, paramsName string) (map[string]CredentialStore, []error) {
	tco := core.NewTemplatedMapConfigObject[sqlDSNConfig, sqlDSNParams](templateName, paramsName)
	if err := tco.Update(cm); err != nil {
		return nil, []error{fmt.Errorf("building realm credential stores: %w", err)}
	}

	stores := make(map[string]CredentialStore)
	var errs []error
	for realm, dsnConfig := range tco.Get() {
		store, err := NewSQLCredentialStore(dsnConfig.DSN, dsnConfig.Query)
		if err != nil {
			errs = append(errs, fmt.Errorf("realm %s: %w", realm, err))
			continue
		}
		stores[realm] = store
	}

	return stores, errs
}
