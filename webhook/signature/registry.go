package signature

import (
	"net/http"
	"strings"
	"sync"
)

// Fallback is used for providers without a registered scheme
var Fallback Scheme = HMACHex{HeaderName: "X-Hub-Signature-256", Prefix: "sha256="}

// Registry maps provider identifiers to their signing scheme
type Registry struct {
	mu      sync.RWMutex
	schemes map[string]Scheme
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{schemes: make(map[string]Scheme)}
}

// DefaultRegistry returns a registry with the built-in provider schemes
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("github", HMACHex{HeaderName: "X-Hub-Signature-256", Prefix: "sha256="})
	r.Register("shopify", HMACBase64{HeaderName: "X-Shopify-Hmac-Sha256"})
	r.Register("woocommerce", HMACBase64{HeaderName: "X-WC-Webhook-Signature"})
	r.Register("hubspot", HexDigest{HeaderName: "X-HubSpot-Signature"})
	r.Register("salesforce", Token{})
	return r
}

// Register adds or replaces the scheme for a provider
func (r *Registry) Register(provider string, s Scheme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes[strings.ToLower(provider)] = s
}

// For returns the provider's scheme or the fallback
func (r *Registry) For(provider string) Scheme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.schemes[strings.ToLower(provider)]; ok {
		return s
	}
	return Fallback
}

// Validate checks payload against the signature header value for the provider
func (r *Registry) Validate(payload []byte, signature, secret, provider string) bool {
	return r.For(provider).Verify(payload, signature, secret)
}

// FromHeaders reads the provider's signature header
func (r *Registry) FromHeaders(provider string, h http.Header) string {
	return h.Get(r.For(provider).Header())
}
