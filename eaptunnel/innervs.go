package eaptunnel

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// innerRequest/innerResponse are the wire shapes posted to/from the
// configured inner virtual server, carrying the decapsulated inner-protocol
// bytes as a JSON envelope.
type innerRequest struct {
	Plaintext []byte `json:"plaintext"`
}

type innerResponse struct {
	Reply   []byte `json:"reply"`
	Done    bool   `json:"done"`
	Success bool   `json:"success"`
}

// HTTPInnerVirtualServer posts the decapsulated tunnel conversation to an
// external virtual server reachable over HTTP/2, the Go-native analogue of
// handing the inner request off to a configured virtual server process,
// grounded on the reference router package's h2c client.
type HTTPInnerVirtualServer struct {
	url    string
	client *http.Client
}

// NewHTTPInnerVirtualServer builds a client posting to url over HTTP/2 with
// client-side TLS configured by tlsConfig (nil for cleartext h2c).
func NewHTTPInnerVirtualServer(url string, tlsConfig *tls.Config) *HTTPInnerVirtualServer {
	transport := &http2.Transport{}
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	} else {
		// h2c: the virtual server is reached over cleartext HTTP/2, the
		// common case for an inner virtual server colocated on the same
		// trusted host as the EAP dispatcher.
		transport.AllowHTTP = true
		transport.DialTLSContext = func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		}
	}
	return &HTTPInnerVirtualServer{
		url:    url,
		client: &http.Client{Transport: transport, Timeout: 10 * time.Second},
	}
}

// ProcessInner implements InnerVirtualServer by POSTing the plaintext and
// decoding the JSON reply envelope.
func (s *HTTPInnerVirtualServer) ProcessInner(ctx context.Context, _ *TunnelState, plaintext []byte) ([]byte, bool, bool, error) {
	body, err := json.Marshal(innerRequest{Plaintext: plaintext})
	if err != nil {
		return nil, false, false, fmt.Errorf("encoding inner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, false, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, false, fmt.Errorf("inner virtual server request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, false, fmt.Errorf("inner virtual server returned status %d", resp.StatusCode)
	}

	var out innerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, false, fmt.Errorf("decoding inner response: %w", err)
	}
	return out.Reply, out.Done, out.Success, nil
}
