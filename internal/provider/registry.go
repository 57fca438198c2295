package provider

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kivu-auth/kivu_auth/internal/autherr"
	"github.com/kivu-auth/kivu_auth/internal/storage"
)

// activeProviderKey is the durable-scope key the active provider name
// is persisted under.
const activeProviderKey = "auth_provider"

// Registry holds the provider instances, tracks which one is active
// and persists that choice so restarts resume the same strategy.
type Registry struct {
	durable storage.Scope
	logger  *slog.Logger

	mu        sync.Mutex
	providers map[string]Provider
	order     []string
	active    string
}

// NewRegistry builds an empty registry whose active provider defaults
// to defaultName.
func NewRegistry(durable storage.Scope, defaultName string, logger *slog.Logger) *Registry {
	if defaultName == "" {
		defaultName = NameTraditional
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		durable:   durable,
		logger:    logger,
		providers: make(map[string]Provider),
		active:    defaultName,
	}
}

// Register adds a provider. Later registrations with the same name
// replace earlier ones but keep the original scan position.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Provider returns the named provider.
func (r *Registry) Provider(name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, autherr.UnknownProvider(name)
	}
	return p, nil
}

// activeLocked resolves the provider serving requests. When the
// tracked name is stale it falls back to the traditional provider, or
// to the first registered provider when traditional is not registered.
// Callers must hold r.mu.
func (r *Registry) activeLocked() (string, Provider) {
	if p, ok := r.providers[r.active]; ok {
		return r.active, p
	}
	if p, ok := r.providers[NameTraditional]; ok {
		return NameTraditional, p
	}
	if len(r.order) > 0 {
		return r.order[0], r.providers[r.order[0]]
	}
	return r.active, nil
}

// Active returns the provider currently serving requests.
func (r *Registry) Active() Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, p := r.activeLocked()
	return p
}

// ActiveName returns the name of the provider currently serving
// requests.
func (r *Registry) ActiveName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, _ := r.activeLocked()
	return name
}

// SetActive switches the active provider and persists the choice to
// the durable scope.
func (r *Registry) SetActive(ctx context.Context, name string) error {
	r.mu.Lock()
	_, ok := r.providers[name]
	if ok {
		r.active = name
	}
	r.mu.Unlock()
	if !ok {
		return autherr.UnknownProvider(name)
	}
	return r.durable.Set(ctx, activeProviderKey, name)
}

// InitFromStorage restores the persisted active provider choice.
// Unknown or absent names leave the default in place.
func (r *Registry) InitFromStorage(ctx context.Context) error {
	name, ok, err := r.durable.Get(ctx, activeProviderKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, registered := r.providers[name]; registered {
		r.active = name
	}
	return nil
}

// Names returns the provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// StoredSession scans providers for a valid stored session: the active
// provider first, then the rest in registration order. When a
// non-active provider supplies the match, that provider is promoted to
// active so a user who switched strategies is recognized without an
// explicit re-login. The promotion is in-memory only; it is not
// persisted to the durable scope.
func (r *Registry) StoredSession(ctx context.Context) (*AuthResult, string, error) {
	r.mu.Lock()
	active := r.active
	scan := make([]Provider, 0, len(r.order))
	if p, ok := r.providers[active]; ok {
		scan = append(scan, p)
	}
	for _, name := range r.order {
		if name == active {
			continue
		}
		scan = append(scan, r.providers[name])
	}
	r.mu.Unlock()

	for _, p := range scan {
		result, err := p.StoredSession(ctx)
		if err != nil {
			return nil, "", err
		}
		if result == nil {
			continue
		}
		if p.Name() != active {
			r.mu.Lock()
			r.active = p.Name()
			r.mu.Unlock()
			r.logger.Debug("promoted provider after session match", "provider", p.Name())
		}
		return result, p.Name(), nil
	}
	return nil, "", nil
}
