// Package md5 implements the EAP-MD5 challenge/response method (RFC 3748
// §5.4), the dispatcher's always-available fallback method. Grounded on
// rlm_eap.c's simplest submodule shape: an instance holding its own
// credential lookup, a SessionInit producing the challenge, and a Process
// validating the response.
package md5

import (
	"crypto/md5"
	"crypto/rand"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/francistor/radeap/eap"
	"github.com/francistor/radeap/eapsession"
)

// CredentialStore resolves a username to its cleartext password. The
// in-memory map and the optional MySQL-backed store both implement it.
type CredentialStore interface {
	Password(username string) (string, bool, error)
}

// MapCredentialStore is a fixed in-memory credential store, the fallback
// used when no MySQL DSN is configured.
type MapCredentialStore map[string]string

func (m MapCredentialStore) Password(username string) (string, bool, error) {
	pw, ok := m[username]
	return pw, ok, nil
}

// SQLCredentialStore looks passwords up in a `radcheck`-shaped MySQL table,
// the schema convention shared across SQL-backed RADIUS deployments.
type SQLCredentialStore struct {
	db    *sql.DB
	query string
}

// NewSQLCredentialStore opens a MySQL connection pool using dsn and the
// given lookup query, which must take the username as its sole placeholder
// and return a single password column.
func NewSQLCredentialStore(dsn string, query string) (*SQLCredentialStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	if query == "" {
		query = "SELECT value FROM radcheck WHERE username = ? AND attribute = 'Cleartext-Password' LIMIT 1"
	}
	return &SQLCredentialStore{db: db, query: query}, nil
}

func (s *SQLCredentialStore) Password(username string) (string, bool, error) {
	var password string
	err := s.db.QueryRow(s.query, username).Scan(&password)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return password, true, nil
}

// opaque is the per-session state Method stores in EapSession.Opaque: the
// challenge this session issued, needed to validate the peer's response.
type opaque struct {
	challenge []byte
}

// Method implements eapmethod.Method for EAP-MD5.
type Method struct {
	credentials CredentialStore
}

// NewMethod builds an EAP-MD5 method backed by the given credential store.
func NewMethod(credentials CredentialStore) *Method {
	return &Method{credentials: credentials}
}

func (m *Method) Name() string { return "md5" }

// SessionInit issues the MD5 challenge.
func (m *Method) SessionInit(s *eapsession.EapSession) (bool, error) {
	challenge := make([]byte, 16)
	if _, err := rand.Read(challenge); err != nil {
		return false, fmt.Errorf("generating MD5 challenge: %w", err)
	}
	s.Opaque = &opaque{challenge: challenge}

	identifier := byte(0)
	if s.ThisRound != nil && s.ThisRound.Response != nil {
		identifier = s.ThisRound.Response.Identifier + 1
	}
	s.ThisRound = &eap.Round{Request: &eap.Packet{
		Code:       eap.CodeRequest,
		Identifier: identifier,
		Type:       eap.TypeMD5Challenge,
		TypeData:   append([]byte{byte(len(challenge))}, challenge...),
	}}
	return true, nil
}

// Process validates the peer's challenge response.
func (m *Method) Process(s *eapsession.EapSession) (bool, error) {
	resp := s.ThisRound.Response
	if resp == nil || resp.Type != eap.TypeMD5Challenge {
		return false, nil
	}
	state, ok := s.Opaque.(*opaque)
	if !ok || state == nil {
		return false, fmt.Errorf("md5 session missing challenge state")
	}
	if len(resp.TypeData) < 1 {
		return false, nil
	}
	valueLen := int(resp.TypeData[0])
	if len(resp.TypeData) < 1+valueLen {
		return false, nil
	}
	responseValue := resp.TypeData[1 : 1+valueLen]

	password, found, err := m.credentials.Password(s.Username)
	if err != nil {
		return false, fmt.Errorf("looking up credentials: %w", err)
	}

	success := false
	if found {
		hasher := md5.New()
		hasher.Write([]byte{resp.Identifier})
		hasher.Write([]byte(password))
		hasher.Write(state.challenge)
		expected := hasher.Sum(nil)
		success = len(expected) == len(responseValue) && constantTimeEqual(expected, responseValue)
	}

	if success {
		s.ThisRound.Request = eap.NewSuccess(resp.Identifier)
	} else {
		s.ThisRound.Request = eap.NewFailure(resp.Identifier)
	}
	return true, nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
