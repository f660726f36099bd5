package behavior

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
)

// ErrNotFound indicates a lookup for a behavior name that was never
// registered.
var ErrNotFound = errors.New("behavior not found")

// Registry maps behavior names to implementations. It is safe for
// concurrent use: lookups happen from the inbound-write context while
// registration typically happens once at startup, but nothing enforces
// that ordering.
type Registry struct {
	behaviors *hashmap.Map[string, Behavior]
	logger    *logrus.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		behaviors: hashmap.New[string, Behavior](),
		logger:    logger,
	}
}

// Register adds a behavior under the given name. Registering a name
// twice is rejected so a typo cannot silently shadow an earlier
// registration.
func (r *Registry) Register(name string, b Behavior) error {
	if name == "" {
		return fmt.Errorf("behavior name must not be empty")
	}
	if !r.behaviors.Insert(name, b) {
		return fmt.Errorf("behavior %q already registered", name)
	}
	r.logger.WithField("behavior", name).Debug("Registered behavior")
	return nil
}

// Get resolves a behavior by name.
func (r *Registry) Get(name string) (Behavior, error) {
	b, ok := r.behaviors.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b, nil
}

// Names returns the registered behavior names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.behaviors.Len())
	r.behaviors.Range(func(name string, _ Behavior) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
