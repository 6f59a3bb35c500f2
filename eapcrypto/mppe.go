package eapcrypto

import (
	"crypto/tls"
	"fmt"
)

// mppeExportLabel is the PRF label RFC 5216 §2.3 assigns EAP-TLS key export.
const mppeExportLabel = "client EAP encryption"

// MPPEKeys holds the send/receive pair RADIUS carries in MS-MPPE-Send-Key
// and MS-MPPE-Recv-Key.
type MPPEKeys struct {
	SendKey [32]byte
	RecvKey [32]byte
}

// DeriveMPPEKeys exports 64 octets of keying material from a completed TLS
// handshake and splits it into the send/receive key pair an EAP-TLS-family
// tunnel hands to the RADIUS layer. Per RFC 5216 §2.3, for the server side
// the first 32 octets are the peer's (client's) send key and the send/recv
// ordering is reversed relative to the client's view; this function returns
// the server-side split.
func DeriveMPPEKeys(state tls.ConnectionState) (MPPEKeys, error) {
	material, err := state.ExportKeyingMaterial(mppeExportLabel, nil, 64)
	if err != nil {
		return MPPEKeys{}, fmt.Errorf("exporting keying material: %w", err)
	}
	var keys MPPEKeys
	copy(keys.RecvKey[:], material[:32])
	copy(keys.SendKey[:], material[32:64])
	return keys, nil
}
