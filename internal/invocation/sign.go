package invocation

import (
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"

	"github.com/ipvm-wg/homestar/internal/ipld"
)

// KeyType selects the peer identity's signature algorithm.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "ed25519"
	KeyTypeSecp256k1 KeyType = "secp256k1"
)

// multicodec prefixes for did:key, per the multiformats did:key spec.
const (
	codecEd25519Pub   = 0xed
	codecSecp256k1Pub = 0xe7
)

// Signer signs receipt payloads and exposes the issuer's DID. The same
// keypair doubles as the node's libp2p host identity, so PrivKey
// exposes it for that purpose rather than loading a second keypair.
type Signer interface {
	DID() IssuerDID
	Sign(payload []byte) ([]byte, error)
	Verify(payload, signature []byte) error
	PrivKey() libp2pcrypto.PrivKey
}

type keySigner struct {
	priv    libp2pcrypto.PrivKey
	keyType KeyType
	did     IssuerDID
}

// LoadSigner loads a peer keypair from a PKCS#8 PEM file, or derives
// one deterministically from a seed if path is empty, per §6.
func LoadSigner(keyType KeyType, pemPath, seed string) (Signer, error) {
	var priv libp2pcrypto.PrivKey
	var err error

	switch {
	case pemPath != "":
		priv, err = loadPEMKey(pemPath, keyType)
	case seed != "":
		priv, err = deriveFromSeed(keyType, seed)
	default:
		priv, _, err = generateKey(keyType)
	}
	if err != nil {
		return nil, err
	}

	pub := priv.GetPublic()
	did, err := didKeyFromPublic(pub, keyType)
	if err != nil {
		return nil, err
	}

	return &keySigner{priv: priv, keyType: keyType, did: did}, nil
}

func generateKey(keyType KeyType) (libp2pcrypto.PrivKey, libp2pcrypto.PubKey, error) {
	switch keyType {
	case KeyTypeSecp256k1:
		return libp2pcrypto.GenerateSecp256k1Key(rand.Reader)
	default:
		priv, pub, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
		return priv, pub, err
	}
}

func loadPEMKey(path string, keyType KeyType) (libp2pcrypto.PrivKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sign: read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("sign: no PEM block found in %s", path)
	}

	priv, err := libp2pcrypto.UnmarshalPKCS8PrivateKey(block.Bytes, keyType == KeyTypeSecp256k1)
	if err != nil {
		return nil, fmt.Errorf("sign: unmarshal PKCS8 key: %w", err)
	}
	return priv, nil
}

// deriveFromSeed deterministically derives a keypair from a seed
// string, so two nodes configured with the same seed always get the
// same identity — useful for test fixtures and reproducible local dev.
func deriveFromSeed(keyType KeyType, seed string) (libp2pcrypto.PrivKey, error) {
	seeded := seedReader{seed: []byte(seed)}
	priv, _, err := generateKeyFromReader(keyType, &seeded)
	return priv, err
}

func generateKeyFromReader(keyType KeyType, r *seedReader) (libp2pcrypto.PrivKey, libp2pcrypto.PubKey, error) {
	switch keyType {
	case KeyTypeSecp256k1:
		return libp2pcrypto.GenerateSecp256k1Key(r)
	default:
		return libp2pcrypto.GenerateEd25519Key(r)
	}
}

// seedReader is a deterministic io.Reader that expands a short seed
// into an arbitrarily long keystream via repetition; good enough for
// local/dev identity derivation, never used for production key material.
type seedReader struct {
	seed []byte
	pos  int
}

func (s *seedReader) Read(p []byte) (int, error) {
	if len(s.seed) == 0 {
		return 0, fmt.Errorf("sign: empty seed")
	}
	for i := range p {
		p[i] = s.seed[s.pos%len(s.seed)]
		s.pos++
	}
	return len(p), nil
}

func didKeyFromPublic(pub libp2pcrypto.PubKey, keyType KeyType) (IssuerDID, error) {
	raw, err := pub.Raw()
	if err != nil {
		return "", fmt.Errorf("sign: raw public key: %w", err)
	}

	var codec uint64
	switch keyType {
	case KeyTypeSecp256k1:
		codec = codecSecp256k1Pub
	default:
		codec = codecEd25519Pub
	}

	prefixed := append(varint.ToUvarint(codec), raw...)
	encoded, err := multibase.Encode(multibase.Base58BTC, prefixed)
	if err != nil {
		return "", fmt.Errorf("sign: multibase encode: %w", err)
	}
	return IssuerDID("did:key:" + encoded), nil
}

func (k *keySigner) DID() IssuerDID { return k.did }

func (k *keySigner) PrivKey() libp2pcrypto.PrivKey { return k.priv }

func (k *keySigner) Sign(payload []byte) ([]byte, error) {
	return k.priv.Sign(payload)
}

func (k *keySigner) Verify(payload, signature []byte) error {
	pub := k.priv.GetPublic()
	ok, err := pub.Verify(payload, signature)
	if err != nil {
		return fmt.Errorf("sign: verify: %w", err)
	}
	if !ok {
		return fmt.Errorf("sign: signature verification failed")
	}
	return nil
}

// SignReceipt signs a Receipt's canonical (unsigned) encoding and
// returns a copy with Signature and Iss populated.
func SignReceipt(signer Signer, r Receipt) (Receipt, error) {
	did := signer.DID()
	r.Iss = &did

	payload, err := EncodeUnsigned(r)
	if err != nil {
		return Receipt{}, err
	}

	sig, err := signer.Sign(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("sign receipt: %w", err)
	}
	r.Signature = sig
	return r, nil
}

// EncodeUnsigned returns the canonical DAG-CBOR encoding of a
// Receipt's ran/out/meta/iss/prf fields, i.e. the bytes a Signer signs
// and Verify checks.
func EncodeUnsigned(r Receipt) ([]byte, error) {
	return ipld.EncodeDagCBOR(r.ToValue())
}
