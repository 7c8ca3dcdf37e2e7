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

// Package singular provides the keyed singleton store: at most one live
// instance of a configuration object exists per key, no matter how many
// call sites reference it. References are counted; when the last one is
// released the object is swept and dropped from the store.
package singular

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ligato/cn-infra/logging"
)

// Object is a configuration object held by the store. Sweep tears the
// object down on the device and is invoked by the store when the last
// reference to it is released.
type Object interface {
	Key() string
	Sweep() error
	String() string
}

type entry struct {
	obj  Object
	refs int
}

// DB is the per-type keyed singleton store. Lookups may run concurrently
// with each other; mutation of a single key is expected to be serialized
// by the caller.
type DB struct {
	log   logging.Logger
	title string

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewDB creates an empty store. The title names the store in logs and dumps.
func NewDB(log logging.Logger, title string) *DB {
	return &DB{
		log:     log,
		title:   title,
		entries: make(map[string]*entry),
	}
}

// FindOrAdd returns the live instance for the key, taking a new reference.
// If none exists the candidate becomes the live instance; otherwise the
// candidate is discarded and the existing instance returned.
func (db *DB) FindOrAdd(key string, candidate Object) Object {
	db.mu.Lock()
	defer db.mu.Unlock()

	if e, found := db.entries[key]; found {
		e.refs++
		return e.obj
	}
	db.entries[key] = &entry{obj: candidate, refs: 1}
	db.log.Debugf("%s: added %q", db.title, key)
	return candidate
}

// Find returns the live instance for the key without taking a reference.
func (db *DB) Find(key string) (Object, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	e, found := db.entries[key]
	if !found {
		return nil, false
	}
	return e.obj, true
}

// Release drops one reference to the instance held under the key. When the
// last reference goes, the instance is swept and removed. The entry is
// only removed if it still identifies the exact instance passed in, so a
// release racing a re-insertion under the same key cannot evict the newer
// instance.
func (db *DB) Release(key string, obj Object) error {
	db.mu.Lock()
	e, found := db.entries[key]
	if !found || e.obj != obj {
		db.mu.Unlock()
		db.log.Debugf("%s: release of %q ignored, entry replaced or gone", db.title, key)
		return nil
	}
	e.refs--
	if e.refs > 0 {
		db.mu.Unlock()
		return nil
	}
	delete(db.entries, key)
	db.mu.Unlock()

	// Sweep outside the lock; teardown flushes the command channel.
	db.log.Debugf("%s: sweeping %q", db.title, key)
	return obj.Sweep()
}

// Size returns the number of distinct keys currently live.
func (db *DB) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.entries)
}

// ListKeys returns all live keys in sorted order.
func (db *DB) ListKeys() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	keys := make([]string, 0, len(db.entries))
	for key := range db.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ForEach invokes the callback for every live instance, in key order.
// The store must not be mutated from within the callback.
func (db *DB) ForEach(fn func(key string, obj Object)) {
	db.mu.RLock()
	keys := make([]string, 0, len(db.entries))
	for key := range db.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	objs := make([]Object, len(keys))
	for n, key := range keys {
		objs[n] = db.entries[key].obj
	}
	db.mu.RUnlock()

	for n, key := range keys {
		fn(key, objs[n])
	}
}

// Dump writes every live instance to the stream, one per line.
func (db *DB) Dump(w io.Writer) {
	db.ForEach(func(key string, obj Object) {
		fmt.Fprintf(w, "%s: %s\n", key, obj)
	})
}
