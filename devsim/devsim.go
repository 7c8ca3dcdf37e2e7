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

// Package devsim provides an in-memory forwarding plane implementing the
// L2 ACL device API. It stands in for a real device in unit tests and in
// the demo agent: it allocates handles, keeps the programmed tables,
// and can inject per-command failures or drop the connection.
package devsim

import (
	"errors"
	"sort"
	"sync"

	"github.com/ligato/cn-infra/logging"

	"github.com/vppom/vom-agent/cmdqueue"
	"github.com/vppom/vom-agent/plugins/aclplugin/model/acl"
	"github.com/vppom/vom-agent/plugins/aclplugin/vppcalls"
)

// ErrDisconnected is returned by every call while the device connection
// is down. The command channel treats it as a batch-fatal failure.
var ErrDisconnected = errors.New("device not connected")

// RetvalInvalidIndex is reported when a replace or delete names an index
// the device does not hold.
const RetvalInvalidIndex = int32(-1)

type aclEntry struct {
	tag   string
	rules acl.Rules
}

// Device is the simulated forwarding plane.
type Device struct {
	log logging.Logger

	mu        sync.Mutex
	connected bool
	nextIndex uint32
	acls      map[uint32]aclEntry
	failNext  []int32

	addReplaceCalls int
	delCalls        int
	dumpCalls       int
}

// New creates a connected device with no ACLs programmed.
func New(log logging.Logger) *Device {
	return &Device{
		log:       log,
		connected: true,
		acls:      make(map[uint32]aclEntry),
	}
}

// L2ACLAddReplace implements vppcalls.DeviceAPI.
func (d *Device) L2ACLAddReplace(aclIndex uint32, tag string, rules acl.Rules) (uint32, int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.addReplaceCalls++
	if !d.connected {
		return 0, 0, ErrDisconnected
	}
	if retval := d.popInjectedRetval(); retval != 0 {
		return aclIndex, retval, nil
	}

	if aclIndex == cmdqueue.InvalidIndex {
		aclIndex = d.nextIndex
		d.nextIndex++
	} else if _, found := d.acls[aclIndex]; !found {
		return aclIndex, RetvalInvalidIndex, nil
	}
	d.acls[aclIndex] = aclEntry{tag: tag, rules: rules.Copy()}
	d.log.Debugf("devsim: programmed ACL %q at index %v (%d rules)", tag, aclIndex, len(rules))
	return aclIndex, 0, nil
}

// L2ACLDel implements vppcalls.DeviceAPI.
func (d *Device) L2ACLDel(aclIndex uint32) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.delCalls++
	if !d.connected {
		return 0, ErrDisconnected
	}
	if retval := d.popInjectedRetval(); retval != 0 {
		return retval, nil
	}

	if _, found := d.acls[aclIndex]; !found {
		return RetvalInvalidIndex, nil
	}
	delete(d.acls, aclIndex)
	d.log.Debugf("devsim: deleted ACL at index %v", aclIndex)
	return 0, nil
}

// L2ACLDump implements vppcalls.DeviceAPI.
func (d *Device) L2ACLDump() ([]vppcalls.L2ACLDetails, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dumpCalls++
	if !d.connected {
		return nil, ErrDisconnected
	}

	indexes := make([]uint32, 0, len(d.acls))
	for index := range d.acls {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	records := make([]vppcalls.L2ACLDetails, 0, len(indexes))
	for _, index := range indexes {
		e := d.acls[index]
		records = append(records, vppcalls.L2ACLDetails{
			ACLIndex: index,
			Tag:      e.tag,
			Rules:    e.rules.Copy(),
		})
	}
	return records, nil
}

// Program installs an ACL directly into the device tables, bypassing the
// command path. Used to model state that pre-exists the client.
func (d *Device) Program(tag string, rules acl.Rules) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	index := d.nextIndex
	d.nextIndex++
	d.acls[index] = aclEntry{tag: tag, rules: rules.Copy()}
	return index
}

// ProgramAt installs an ACL at a fixed index, bypassing the command path.
func (d *Device) ProgramAt(index uint32, tag string, rules acl.Rules) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.acls[index] = aclEntry{tag: tag, rules: rules.Copy()}
	if index >= d.nextIndex {
		d.nextIndex = index + 1
	}
}

// Disconnect drops the connection; every call fails until Connect.
func (d *Device) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connected = false
}

// Connect restores the connection.
func (d *Device) Connect() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connected = true
}

// Restart models a device restart: the connection comes back up but all
// programmed state is gone.
func (d *Device) Restart() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connected = true
	d.acls = make(map[uint32]aclEntry)
}

// FailNext injects a device result code for the next add-replace or delete.
func (d *Device) FailNext(retval int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.failNext = append(d.failNext, retval)
}

func (d *Device) popInjectedRetval() int32 {
	if len(d.failNext) == 0 {
		return 0
	}
	retval := d.failNext[0]
	d.failNext = d.failNext[1:]
	return retval
}

// NumACLs returns the number of ACLs currently programmed.
func (d *Device) NumACLs() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.acls)
}

// AddReplaceCalls returns how many add-replace commands reached the device.
func (d *Device) AddReplaceCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.addReplaceCalls
}

// DelCalls returns how many delete commands reached the device.
func (d *Device) DelCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.delCalls
}

// DumpCalls returns how many dumps reached the device.
func (d *Device) DumpCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dumpCalls
}
