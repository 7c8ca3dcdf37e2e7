// Copyright (c) 2019 The vom-agent authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package inspect keeps a registry of named show handlers. Object types
// register under stable names so an external inspector (the REST plugin,
// the ctl binary) can trigger their dumps without knowing the types.
package inspect

import (
	"io"
	"sort"
	"sync"
)

// Handler renders one store to a stream. Show must not mutate state.
type Handler interface {
	Show(w io.Writer)
}

// Info describes one registered handler.
type Info struct {
	Names       []string `json:"names"`
	Description string   `json:"description"`
}

type handlerEntry struct {
	info Info
	h    Handler
}

// Registry maps handler names to show handlers.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*handlerEntry
	ordered []*handlerEntry
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*handlerEntry)}
}

// DefaultRegistry is the process-wide registry object types register with
// at plugin init.
var DefaultRegistry = NewRegistry()

// RegisterHandler registers the handler under each of the given names.
// A later registration under an existing name wins.
func (r *Registry) RegisterHandler(names []string, description string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &handlerEntry{
		info: Info{Names: names, Description: description},
		h:    h,
	}
	for _, name := range names {
		r.byName[name] = e
	}
	r.ordered = append(r.ordered, e)
}

// Lookup returns the handler registered under the name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, found := r.byName[name]
	if !found {
		return nil, false
	}
	return e.h, true
}

// List returns descriptions of all registered handlers, sorted by their
// first name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.ordered))
	for _, e := range r.ordered {
		infos = append(infos, e.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Names[0] < infos[j].Names[0]
	})
	return infos
}

// ShowAll runs every registered handler once, in List order.
func (r *Registry) ShowAll(w io.Writer) {
	r.mu.RLock()
	handlers := make([]*handlerEntry, len(r.ordered))
	copy(handlers, r.ordered)
	r.mu.RUnlock()

	for _, e := range handlers {
		e.h.Show(w)
	}
}
