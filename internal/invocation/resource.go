package invocation

import (
	"fmt"
	"strings"
)

// ResourceScheme identifies how a Resource's Wasm bytes are fetched.
type ResourceScheme string

const (
	SchemeIPFS  ResourceScheme = "ipfs"
	SchemeHTTPS ResourceScheme = "https"
)

// Resource names a Wasm component by URI, per §3.
type Resource struct {
	URI string
}

// Scheme parses the resource's URI scheme.
func (r Resource) Scheme() (ResourceScheme, error) {
	switch {
	case strings.HasPrefix(r.URI, "ipfs://"):
		return SchemeIPFS, nil
	case strings.HasPrefix(r.URI, "https://"):
		return SchemeHTTPS, nil
	default:
		return "", fmt.Errorf("resource: unsupported scheme in %q", r.URI)
	}
}

// CIDString returns the CID portion of an ipfs:// resource URI.
func (r Resource) CIDString() (string, error) {
	scheme, err := r.Scheme()
	if err != nil {
		return "", err
	}
	if scheme != SchemeIPFS {
		return "", fmt.Errorf("resource: %q is not an ipfs:// resource", r.URI)
	}
	return strings.TrimPrefix(r.URI, "ipfs://"), nil
}
