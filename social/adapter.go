package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownProvider is returned for names no adapter is registered under.
var ErrUnknownProvider = errors.New("unknown social provider")

// Profile is the raw user-info document returned by a provider.
type Profile map[string]any

// Identity is a provider profile reduced to what the identity store keys on.
type Identity struct {
	Provider      string
	SubjectID     string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// Adapter performs the external identity exchange for one provider.
type Adapter interface {
	Name() string
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)
	UserInfo(ctx context.Context, accessToken string) (Profile, error)
	Normalize(profile Profile) (Identity, error)
}

// Registry maps provider names to adapters. It is built once and never
// mutated, so concurrent lookups need no locking.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry returns a registry of adapters keyed by their lowercase name.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return nil, errors.New("social: nil adapter")
		}
		name := strings.ToLower(strings.TrimSpace(a.Name()))
		if name == "" {
			return nil, errors.New("social: adapter must have a provider name")
		}
		if _, dup := m[name]; dup {
			return nil, fmt.Errorf("social: duplicate adapter for provider %q", name)
		}
		m[name] = a
	}
	return &Registry{adapters: m}, nil
}

// Adapter returns the adapter registered under name.
func (r *Registry) Adapter(name string) (Adapter, error) {
	if r == nil {
		return nil, ErrUnknownProvider
	}
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return a, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String reads key from p, returning "" when absent or not a string.
func (p Profile) String(key string) string {
	v, _ := p[key].(string)
	return v
}

// Bool reads key from p. Providers that encode booleans as strings are
// accepted.
func (p Profile) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}
