package eaptunnel

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

// echoInnerVirtualServer is a test InnerVirtualServer stub that completes
// the inner conversation successfully on its first call.
type echoInnerVirtualServer struct{ calls int }

func (s *echoInnerVirtualServer) ProcessInner(ctx context.Context, _ *TunnelState, plaintext []byte) ([]byte, bool, bool, error) {
	s.calls++
	return nil, true, true, nil
}

func selfSignedServerConfig(t *testing.T) *tls.Config {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "eap-tunnel-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

// TestTunnelHandshakeCompletesAndInvokesInnerServer drives a TunnelState
// server through a real TLS handshake against a bare tls.Client, fragment
// by fragment, the way successive EAP rounds would, and checks that the
// inner virtual server is invoked once the tunnel is established.
func TestTunnelHandshakeCompletesAndInvokesInnerServer(t *testing.T) {
	serverCfg := selfSignedServerConfig(t)
	ivs := &echoInnerVirtualServer{}
	server := NewTunnelState(&Config{TLSConfig: serverCfg, MaxFragmentSize: 4096}, ivs, true)
	defer server.Close()

	clientConn, clientRemote := net.Pipe()
	clientPump := newPump(clientConn)
	clientTLS := tls.Client(clientRemote, &tls.Config{InsecureSkipVerify: true})
	go clientTLS.Handshake()

	ctx := context.Background()
	frame := []byte{flagStart}
	established := false

	for round := 0; round < 20; round++ {
		reply, result, err := server.HandleRound(ctx, frame)
		if err != nil {
			t.Fatalf("round %d: HandleRound: %v", round, err)
		}
		if result == ResultInvalid {
			t.Fatalf("round %d: tunnel reported invalid", round)
		}

		_, payload, err := decodeFrame(reply)
		if err != nil {
			t.Fatalf("round %d: decoding server reply: %v", round, err)
		}
		if err := clientPump.Feed(payload); err != nil {
			t.Fatalf("round %d: feeding client: %v", round, err)
		}

		if result == ResultSuccess {
			established = true
			break
		}

		clientOut, err := clientPump.Drain()
		if err != nil {
			t.Fatalf("round %d: draining client: %v", round, err)
		}
		frame = append([]byte{0x00}, clientOut...)
	}

	if !established {
		t.Fatal("tunnel never reported success")
	}
	if ivs.calls == 0 {
		t.Fatal("inner virtual server was never invoked")
	}
}
