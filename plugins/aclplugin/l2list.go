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

package aclplugin

import (
	"fmt"
	"io"

	"github.com/ligato/cn-infra/logging"

	"github.com/vppom/vom-agent/cmdqueue"
	"github.com/vppom/vom-agent/plugins/aclplugin/aclidx"
	"github.com/vppom/vom-agent/plugins/aclplugin/model/acl"
	"github.com/vppom/vom-agent/plugins/aclplugin/vppcalls"
	"github.com/vppom/vom-agent/singular"
)

// L2List is one L2 ACL as the client knows it: the application key, the
// device handle (valid only while programmed) and the cached rule set.
// Mutation of a single list is serialized by the caller; the type carries
// no locking of its own.
type L2List struct {
	db *L2ListDB

	key   string
	hdl   cmdqueue.Item
	rules acl.Rules
}

// Key returns the application key of the list.
func (l *L2List) Key() string {
	return l.key
}

// Handle returns a copy of the device handle item.
func (l *L2List) Handle() cmdqueue.Item {
	return l.hdl
}

// Rules returns a copy of the cached rule set.
func (l *L2List) Rules() acl.Rules {
	return l.rules.Copy()
}

// Equivalent compares two lists by key and rule set. The handle is a
// device-assigned artifact and takes no part in equality.
func (l *L2List) Equivalent(other *L2List) bool {
	return l.key == other.key && l.rules.Equivalent(other.rules)
}

// String returns the list in dump format.
func (l *L2List) String() string {
	return fmt.Sprintf("acl-list:[%s hdl:%v,%v rules:[%v]]",
		l.key, l.hdl.Value(), l.hdl.RC(), l.rules)
}

// Update reconciles the list against the desired rule set. A programming
// command is enqueued only when the list is not yet programmed or the
// desired rules differ from the cached ones. The cached rule set is
// replaced with the desired one either way: the per-rule priority cannot
// be read back from the device, so the local copy stays authoritative for
// it rather than spending a command on a cosmetic change.
func (l *L2List) Update(desired acl.Rules) {
	if !l.hdl.Ok() || !l.rules.Equivalent(desired) {
		l.db.enqueueAddReplace(l, desired.Copy())
	}
	l.rules = desired.Copy()
}

// Sweep tears the list down: a delete command is enqueued if the list is
// programmed, and the command channel is flushed before returning so the
// teardown observes completion.
func (l *L2List) Sweep() error {
	if l.hdl.Ok() {
		l.db.enqueueDelete(l)
	}
	return l.db.queue.Write()
}

// Replay re-asserts the list after the device lost its state: the handle
// is invalidated and a fresh programming command enqueued with the cached
// rules. A list that was never programmed is left alone.
func (l *L2List) Replay() {
	if !l.hdl.Ok() {
		return
	}
	l.db.idx.Unbind(l.hdl.Value())
	l.hdl.Invalidate()
	l.db.enqueueAddReplace(l, l.rules.Copy())
}

// L2ListDB is the typed singleton store for L2 ACLs together with the
// collaborators the lists program themselves through.
type L2ListDB struct {
	log   logging.Logger
	queue *cmdqueue.Queue
	dev   vppcalls.DeviceAPI
	idx   aclidx.ACLIndexRW

	store *singular.DB
}

// NewL2ListDB creates an empty L2 ACL store.
func NewL2ListDB(log logging.Logger, queue *cmdqueue.Queue, dev vppcalls.DeviceAPI,
	idx aclidx.ACLIndexRW) *L2ListDB {
	return &L2ListDB{
		log:   log,
		queue: queue,
		dev:   dev,
		idx:   idx,
		store: singular.NewDB(log, "l2-acl-list"),
	}
}

// FindOrAdd returns the live list for the key, taking a reference. If none
// exists a fresh, not-yet-programmed list is created from the rules.
func (db *L2ListDB) FindOrAdd(key string, rules acl.Rules) *L2List {
	candidate := &L2List{
		db:    db,
		key:   key,
		hdl:   cmdqueue.NewItem(),
		rules: rules.Copy(),
	}
	return db.store.FindOrAdd(key, candidate).(*L2List)
}

// Find returns the live list for the key without taking a reference.
func (db *L2ListDB) Find(key string) (*L2List, bool) {
	obj, found := db.store.Find(key)
	if !found {
		return nil, false
	}
	return obj.(*L2List), true
}

// FindByHandle resolves a device handle back to the live list. The handle
// index holds only the key, so a list destroyed since the handle was bound
// resolves to a miss, never to a stale instance.
func (db *L2ListDB) FindByHandle(handle uint32) (*L2List, bool) {
	key, found := db.idx.LookupByHandle(handle)
	if !found {
		return nil, false
	}
	return db.Find(key)
}

// Adopt commits a list discovered on the device into the store: the handle
// is already valid and no command is issued. If a live list already exists
// under the key, a reference to it is returned instead.
func (db *L2ListDB) Adopt(key string, handle uint32, rules acl.Rules) *L2List {
	candidate := &L2List{
		db:    db,
		key:   key,
		hdl:   cmdqueue.NewItemWith(handle),
		rules: rules.Copy(),
	}
	list := db.store.FindOrAdd(key, candidate).(*L2List)
	if list == candidate {
		db.idx.Bind(key, handle)
	}
	return list
}

// Release drops one reference to the list; the last release sweeps it.
func (db *L2ListDB) Release(list *L2List) error {
	return db.store.Release(list.key, list)
}

// Replay re-asserts every live list and flushes the resulting batch.
func (db *L2ListDB) Replay() error {
	db.store.ForEach(func(key string, obj singular.Object) {
		obj.(*L2List).Replay()
	})
	return db.queue.Write()
}

// Size returns the number of live lists.
func (db *L2ListDB) Size() int {
	return db.store.Size()
}

// ListKeys returns the keys of all live lists in sorted order.
func (db *L2ListDB) ListKeys() []string {
	return db.store.ListKeys()
}

// Dump writes all live lists to the stream.
func (db *L2ListDB) Dump(w io.Writer) {
	db.store.Dump(w)
}

func (db *L2ListDB) enqueueAddReplace(l *L2List, rules acl.Rules) {
	key := l.key
	db.queue.Enqueue(vppcalls.NewL2AddReplaceCmd(db.dev, db.log, &l.hdl, key, rules,
		func(handle uint32) {
			db.idx.Bind(key, handle)
		}))
}

func (db *L2ListDB) enqueueDelete(l *L2List) {
	db.queue.Enqueue(vppcalls.NewL2DeleteCmd(db.dev, db.log, &l.hdl, l.key,
		func(handle uint32) {
			db.idx.Unbind(handle)
		}))
}
