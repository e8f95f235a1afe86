// Package routing maintains where events of each type must be delivered and
// the control plane that keeps that table in sync with processing units.
package routing

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"cybnity/internal/validator"
)

// RouteRecipientList maps supported event type names to the path of the
// channel or stream that receives them. Safe for concurrent use.
type RouteRecipientList struct {
	mu     sync.RWMutex
	routes map[string]string
}

func NewRouteRecipientList() *RouteRecipientList {
	return &RouteRecipientList{routes: make(map[string]string)}
}

// Change describes the effect of merging one route into the table.
type Change string

const (
	Unchanged Change = "unchanged"
	Added     Change = "added"
	Updated   Change = "updated"
	Removed   Change = "removed"
)

// AddRoute adds, replaces or removes the route of typeName and reports
// whether the table changed. An empty recipient removes the route.
func (l *RouteRecipientList) AddRoute(typeName, recipient string) (bool, error) {
	change, err := l.merge(typeName, recipient)
	return change != Unchanged, err
}

func (l *RouteRecipientList) merge(typeName, recipient string) (Change, error) {
	if typeName == "" {
		return Unchanged, fmt.Errorf("event type name is required: %w", validator.ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, exists := l.routes[typeName]
	switch {
	case recipient == "" && exists:
		delete(l.routes, typeName)
		return Removed, nil
	case recipient == "":
		return Unchanged, nil
	case !exists:
		l.routes[typeName] = recipient
		return Added, nil
	case current != recipient:
		l.routes[typeName] = recipient
		return Updated, nil
	default:
		return Unchanged, nil
	}
}

// Recipient returns the path routed for typeName.
func (l *RouteRecipientList) Recipient(typeName string) (string, bool) {
	if typeName == "" {
		return "", false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	recipient, ok := l.routes[typeName]
	return recipient, ok
}

// SupportedEventTypeNames returns the routed type names, sorted.
func (l *RouteRecipientList) SupportedEventTypeNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.routes))
}

func (l *RouteRecipientList) RoutesCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.routes)
}

// Routes returns a copy of the table.
func (l *RouteRecipientList) Routes() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.routes)
}
