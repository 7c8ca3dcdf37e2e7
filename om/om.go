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

// Package om coordinates populate, replay and dump across all registered
// object types. Each type registers one listener carrying a rank; the
// registry drives every pass in ascending rank order so that objects are
// never asserted before the lower-level objects they depend on.
package om

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/go-errors/errors"
	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/logging/logrus"
)

// Rank is a total order over object types, not instances. Lower ranks are
// populated and replayed first.
type Rank int

// Well known ranks, lowest first.
const (
	RankGlobal Rank = iota
	RankInterface
	RankTable
	RankACL
	RankBinding
)

// Listener is implemented once per object type.
type Listener interface {
	// Order returns the rank of the object type.
	Order() Rank
	// HandlePopulate discovers state already held by the device and adopts
	// it into the type's store without issuing commands.
	HandlePopulate(ctx context.Context) error
	// HandleReplay re-pushes every cached instance of the type after the
	// device is known to have lost its state.
	HandleReplay() error
	// Show dumps the type's store to the stream. It must not mutate state.
	Show(w io.Writer)
}

// Registry drives the listeners. Registration happens at plugin init;
// there is no teardown beyond process exit.
type Registry struct {
	log logging.Logger

	mu        sync.Mutex
	listeners []Listener
}

// NewRegistry creates an empty registry.
func NewRegistry(log logging.Logger) *Registry {
	return &Registry{log: log}
}

// DefaultRegistry is the process-wide registry used by plugins that do not
// inject their own.
var DefaultRegistry = NewRegistry(logrus.DefaultLogger())

// RegisterListener adds the listener for one object type. Registration
// order is irrelevant; dispatch order is decided by rank alone.
func (r *Registry) RegisterListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, l)
}

// ranked returns a snapshot of the listeners sorted by ascending rank.
func (r *Registry) ranked() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := make([]Listener, len(r.listeners))
	copy(sorted, r.listeners)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order() < sorted[j].Order()
	})
	return sorted
}

// Populate runs the state discovery pass. Invoked once at startup, before
// any desired state is applied, so that objects the device already holds
// are adopted instead of re-programmed.
func (r *Registry) Populate(ctx context.Context) error {
	for _, l := range r.ranked() {
		r.log.Debugf("populate pass: rank %d", l.Order())
		if err := l.HandlePopulate(ctx); err != nil {
			return errors.WrapPrefix(err, "populate failed", 0)
		}
	}
	return nil
}

// Replay re-asserts all cached state, rank by rank. Invoked after a
// reconnect, once the caller knows the device has lost its configuration.
func (r *Registry) Replay() error {
	for _, l := range r.ranked() {
		r.log.Debugf("replay pass: rank %d", l.Order())
		if err := l.HandleReplay(); err != nil {
			return errors.WrapPrefix(err, "replay failed", 0)
		}
	}
	return nil
}

// Show dumps every registered store to the stream in rank order.
func (r *Registry) Show(w io.Writer) {
	for _, l := range r.ranked() {
		l.Show(w)
	}
}
