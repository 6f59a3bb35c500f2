package eap

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*Packet{
		{Code: CodeRequest, Identifier: 1, Type: TypeIdentity},
		{Code: CodeResponse, Identifier: 2, Type: TypeIdentity, TypeData: []byte("bob")},
		{Code: CodeRequest, Identifier: 3, Type: TypeMD5Challenge, TypeData: []byte{16, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}},
		{Code: CodeResponse, Identifier: 4, Type: TypeNak, TypeData: []byte{4, 25}},
		{Code: CodeSuccess, Identifier: 5},
		{Code: CodeFailure, Identifier: 6},
	}

	for _, want := range cases {
		encoded := Encode(want)
		got, err := Decode([][]byte{encoded})
		if err != nil {
			t.Fatalf("decode of re-encoded packet failed: %v", err)
		}
		if got.Code != want.Code || got.Identifier != want.Identifier || got.Type != want.Type {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
		}
		if len(got.TypeData) != len(want.TypeData) {
			t.Fatalf("type-data length mismatch: got %d want %d", len(got.TypeData), len(want.TypeData))
		}
		reEncoded := Encode(got)
		if string(reEncoded) != string(encoded) {
			t.Fatalf("encode(decode(bytes)) != bytes")
		}
	}
}

func TestDecodeFragmented(t *testing.T) {
	p := &Packet{Code: CodeResponse, Identifier: 9, Type: TypeIdentity, TypeData: []byte("a-fairly-long-identity-string")}
	whole := Encode(p)
	frags := Fragment(whole, 10)
	if len(frags) < 2 {
		t.Fatalf("expected fragmentation into multiple attributes")
	}
	got, err := Decode(frags)
	if err != nil {
		t.Fatalf("decode of fragmented packet failed: %v", err)
	}
	if string(got.TypeData) != string(p.TypeData) {
		t.Fatalf("fragmented decode mismatch: got %q want %q", got.TypeData, p.TypeData)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected error for empty attribute list")
	}
	if _, err := Decode([][]byte{{1, 2}}); err == nil {
		t.Fatal("expected error for buffer shorter than header")
	}
	if _, err := Decode([][]byte{{1, 2, 0, 99}}); err == nil {
		t.Fatal("expected error for declared length exceeding buffer")
	}
}

func TestIsStart(t *testing.T) {
	start := &Packet{Code: CodeResponse, Identifier: 1}
	if !IsStart(start) {
		t.Fatal("expected zero-length Response to be recognised as EAP-Start")
	}
	notStart := &Packet{Code: CodeResponse, Identifier: 1, Type: TypeIdentity, TypeData: []byte("x")}
	if IsStart(notStart) {
		t.Fatal("did not expect Identity response to be recognised as EAP-Start")
	}
}

func TestDecodeNak(t *testing.T) {
	p := &Packet{Code: CodeResponse, Identifier: 1, Type: TypeNak, TypeData: []byte{byte(TypePEAP), byte(TypeTTLS)}}
	nak, err := DecodeNak(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nak) != 2 || nak[0] != TypePEAP || nak[1] != TypeTTLS {
		t.Fatalf("unexpected nak data: %v", nak)
	}
}
