package invocation

import (
	"encoding/json"
	"fmt"

	"github.com/multiformats/go-multibase"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// validNonceLengths are the only byte lengths the core accepts for a
// normalized nonce, per the open question in spec.md §9.
var validNonceLengths = map[int]bool{0: true, 12: true, 16: true}

// NormalizeNonce accepts the three equivalent wire encodings named in
// §6 (empty string, base32hex-lower string, or a byte object) and
// returns the canonical byte form, refusing anything that doesn't
// normalize to 0, 12, or 16 bytes.
func NormalizeNonce(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return normalizeNonceString(asString)
	}

	var asBytesObject struct {
		Bytes struct {
			Bytes string `json:"bytes"`
		} `json:"/"`
	}
	if err := json.Unmarshal(raw, &asBytesObject); err == nil && asBytesObject.Bytes.Bytes != "" {
		return decodeAndValidate(asBytesObject.Bytes.Bytes)
	}

	return nil, fmt.Errorf("nonce: unrecognized encoding")
}

func normalizeNonceString(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return decodeAndValidate(s)
}

// decodeAndValidate decodes a base32hex-lower (multibase prefix 'v') or
// bare base32hex-lower string into bytes and validates its length.
func decodeAndValidate(s string) ([]byte, error) {
	var decoded []byte
	if len(s) > 0 && s[0] == multibase.Base32hex {
		_, b, err := multibase.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("nonce: multibase decode: %w", err)
		}
		decoded = b
	} else {
		b, err := multibase.Decode(string(multibase.Base32hex) + s)
		if err != nil {
			return nil, fmt.Errorf("nonce: base32hex decode: %w", err)
		}
		decoded = b
	}

	if !validNonceLengths[len(decoded)] {
		return nil, fmt.Errorf("nonce: invalid length %d, must be 0, 12, or 16 bytes", len(decoded))
	}
	return decoded, nil
}

// NonceFromValue normalizes a nonce already decoded into an ipld.Value
// (via DAG-JSON, where the byte-object encoding decodes straight to
// KindBytes) rather than raw JSON. A bare string is handled the same
// way NormalizeNonce handles its string case; bytes are validated and
// passed through unchanged.
func NonceFromValue(v ipld.Value) ([]byte, error) {
	switch v.Kind() {
	case ipld.KindNull, ipld.KindInvalid:
		return nil, nil
	case ipld.KindString:
		s, _ := v.AsString()
		return normalizeNonceString(s)
	case ipld.KindBytes:
		b, _ := v.AsBytes()
		if !validNonceLengths[len(b)] {
			return nil, fmt.Errorf("nonce: invalid length %d, must be 0, 12, or 16 bytes", len(b))
		}
		return b, nil
	default:
		return nil, fmt.Errorf("nonce: unrecognized value kind %v", v.Kind())
	}
}

// EncodeNonce renders a normalized nonce back to its base32hex-lower
// string wire form for inclusion in DAG-JSON output.
func EncodeNonce(nonce []byte) string {
	if len(nonce) == 0 {
		return ""
	}
	s, err := multibase.Encode(multibase.Base32hex, nonce)
	if err != nil {
		return ""
	}
	return s
}
