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

// Package aclidx maps device-assigned ACL handles back to ACL keys.
// Device-originated notifications identify ACLs only by handle; this index
// translates back to application identity. It never holds the instance
// itself, only the key, so it cannot keep an ACL alive: resolution goes
// through the singleton store and a stale entry is simply a miss.
package aclidx

import (
	"strconv"
	"time"

	"github.com/ligato/cn-infra/idxmap"
	"github.com/ligato/cn-infra/idxmap/mem"
	"github.com/ligato/cn-infra/infra"
	"github.com/ligato/cn-infra/logging"
)

const (
	// handleIdxKey is the secondary index on the device-assigned handle.
	handleIdxKey = "acl_handle"

	notifTimeout = 2 * time.Second
)

// WithHandle is implemented by items indexed by ACL handle.
type WithHandle interface {
	// GetHandle returns the device-assigned ACL handle of the item.
	GetHandle() uint32
}

// OnlyHandle can be used to store a bare handle against a key.
type OnlyHandle struct {
	Handle uint32
}

// GetHandle returns the handle of the item.
func (h *OnlyHandle) GetHandle() uint32 {
	return h.Handle
}

// ACLIdxDto represents one change of the index sent through a watch channel.
type ACLIdxDto struct {
	idxmap.NamedMappingEvent
	Handle uint32
}

// ACLIndex is the read-only API of the handle index.
type ACLIndex interface {
	// GetMapping returns the underlying named mapping.
	GetMapping() idxmap.NamedMapping

	// LookupHandle returns the handle bound to the given ACL key.
	LookupHandle(key string) (handle uint32, exists bool)

	// LookupByHandle returns the ACL key the handle is bound to.
	LookupByHandle(handle uint32) (key string, exists bool)

	// WatchACLs subscribes to notifications about index changes.
	WatchACLs(subscriber infra.PluginName, channel chan<- ACLIdxDto)
}

// ACLIndexRW is the owner API of the handle index.
type ACLIndexRW interface {
	ACLIndex

	// Bind records the association handle->key, replacing any prior
	// association for that handle.
	Bind(key string, handle uint32)

	// Unbind removes the association for the handle, if any.
	Unbind(handle uint32)
}

// aclIndex implements the handle index on top of a named mapping with a
// secondary index on the handle value.
type aclIndex struct {
	mapping idxmap.NamedMappingRW
	log     logging.Logger
}

// NewACLIndex creates a new, empty handle index.
func NewACLIndex(log logging.Logger, title string) ACLIndexRW {
	return &aclIndex{
		mapping: mem.NewNamedMapping(log, title, indexFunction),
		log:     log,
	}
}

// GetMapping returns the underlying named mapping.
func (idx *aclIndex) GetMapping() idxmap.NamedMapping {
	return idx.mapping
}

// Bind records the association handle->key. A handle identifies at most one
// key at a time, so any key previously bound to the handle is unbound first.
func (idx *aclIndex) Bind(key string, handle uint32) {
	for _, name := range idx.mapping.ListNames(handleIdxKey, handleToStr(handle)) {
		if name != key {
			idx.mapping.Delete(name)
		}
	}
	idx.mapping.Put(key, &OnlyHandle{Handle: handle})
}

// Unbind removes the association for the handle.
func (idx *aclIndex) Unbind(handle uint32) {
	for _, name := range idx.mapping.ListNames(handleIdxKey, handleToStr(handle)) {
		idx.mapping.Delete(name)
	}
}

// LookupHandle returns the handle bound to the given ACL key.
func (idx *aclIndex) LookupHandle(key string) (uint32, bool) {
	value, found := idx.mapping.GetValue(key)
	if !found {
		return 0, false
	}
	item, ok := value.(WithHandle)
	if !ok {
		return 0, false
	}
	return item.GetHandle(), true
}

// LookupByHandle returns the ACL key the handle is bound to.
func (idx *aclIndex) LookupByHandle(handle uint32) (string, bool) {
	names := idx.mapping.ListNames(handleIdxKey, handleToStr(handle))
	if len(names) != 1 {
		return "", false
	}
	return names[0], true
}

// WatchACLs subscribes to notifications about index changes.
func (idx *aclIndex) WatchACLs(subscriber infra.PluginName, channel chan<- ACLIdxDto) {
	watcher := func(dto idxmap.NamedMappingGenericEvent) {
		item, ok := dto.Value.(WithHandle)
		if !ok {
			return
		}
		msg := ACLIdxDto{
			NamedMappingEvent: dto.NamedMappingEvent,
			Handle:            item.GetHandle(),
		}
		select {
		case channel <- msg:
		case <-time.After(notifTimeout):
			idx.log.Warn("Unable to deliver ACL index notification")
		}
	}
	idx.mapping.Watch(subscriber, watcher)
}

func handleToStr(handle uint32) string {
	return strconv.FormatUint(uint64(handle), 10)
}

// indexFunction extracts the handle as a secondary index.
func indexFunction(item interface{}) map[string][]string {
	indexes := map[string][]string{}
	withHandle, ok := item.(WithHandle)
	if !ok || withHandle == nil {
		return indexes
	}
	indexes[handleIdxKey] = []string{handleToStr(withHandle.GetHandle())}
	return indexes
}
