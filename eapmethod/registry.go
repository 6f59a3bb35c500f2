// Package eapmethod implements the method registry: bootstrap-time loading,
// instantiation and reference counting of the configured EAP method
// handlers, stored in a dense array indexed by numeric EAP type.
package eapmethod

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/francistor/radeap/core"
	"github.com/francistor/radeap/eap"
	"github.com/francistor/radeap/eapsession"
	"golang.org/x/exp/slices"
)

// Method is the contract a pluggable EAP method backend must satisfy.
type Method interface {
	// Name is the method's configuration-section / log-tag name.
	Name() string
	// SessionInit is invoked once, the first time this method is selected
	// for a session (on Identity, or on a NAK switching methods).
	SessionInit(s *eapsession.EapSession) (ok bool, err error)
	// Process drives one round of the method's conversation.
	Process(s *eapsession.EapSession) (ok bool, err error)
}

// Handle is a reference-counted registry entry; the count tracks how many
// EapSessions reference it. The registry has no unload or Unregister
// operation, so a handle stays registered whatever its count.
type Handle struct {
	name   string
	typ    eap.Type
	method Method
	refs   atomic.Int32
}

func (h *Handle) Name() string   { return h.name }
func (h *Handle) Type() eap.Type { return h.typ }
func (h *Handle) Method() Method { return h.method }

// Acquire increments the reference count; a session must call this when it
// starts depending on the handle and Release when it stops (NAK switching
// method, or session destruction).
func (h *Handle) Acquire() { h.refs.Add(1) }

// Release decrements the reference count.
func (h *Handle) Release() { h.refs.Add(-1) }

// Registry is the bootstrap-built, immutable-after-bootstrap table of method
// handles, indexed densely by EAP type number. Grounded on the reference
// router package's table-of-handles-with-availability-flag pattern,
// generalized from server endpoints to method handles.
type Registry struct {
	mu          sync.RWMutex
	handles     [eap.MaxType + 1]*Handle
	defaultType eap.Type
}

// NewRegistry bootstraps a Registry from the given methods, keyed by their
// numeric EAP type. defaultTypeName must resolve to one of the registered
// methods. At least one method must register successfully or bootstrap fails.
func NewRegistry(methods map[eap.Type]Method, defaultTypeName string) (*Registry, error) {
	r := &Registry{}
	registered := 0
	for t, m := range methods {
		if t < eap.MinType || t > eap.MaxType {
			return nil, fmt.Errorf("method %s: type %d outside valid range [%d, %d]", m.Name(), t, eap.MinType, eap.MaxType)
		}
		r.handles[t] = &Handle{name: m.Name(), typ: t, method: m}
		registered++
		core.GetLogger().Infow("registered eap method", "name", m.Name(), "type", t)
	}
	if registered == 0 {
		return nil, fmt.Errorf("bootstrap failed: no method could be registered")
	}

	for t, h := range r.handles {
		if h != nil && h.name == defaultTypeName {
			r.defaultType = eap.Type(t)
			return r, nil
		}
	}
	return nil, fmt.Errorf("bootstrap failed: default_eap_type %q did not resolve to a registered method", defaultTypeName)
}

// DefaultType returns the bootstrap-configured default method type.
func (r *Registry) DefaultType() eap.Type { return r.defaultType }

// Lookup returns the handle registered for t, or nil if the slot is empty or
// t is out of range.
func (r *Registry) Lookup(t eap.Type) *Handle {
	if t < eap.MinType || t > eap.MaxType {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[t]
}

// IsRegistered reports whether t names a loaded method.
func (r *Registry) IsRegistered(t eap.Type) bool {
	return r.Lookup(t) != nil
}

// RegisteredTypes returns the sorted list of types currently registered.
func (r *Registry) RegisteredTypes() []eap.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []eap.Type
	for t, h := range r.handles {
		if h != nil {
			out = append(out, eap.Type(t))
		}
	}
	slices.Sort(out)
	return out
}
