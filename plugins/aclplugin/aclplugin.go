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

// Package aclplugin manages L2 access lists on the device: it keeps one
// live instance per ACL key, programs the delta between desired and
// programmed rule sets through the command channel, adopts device state on
// populate and re-asserts cached state on replay.
package aclplugin

import (
	"context"
	"fmt"
	"io"

	"github.com/ligato/cn-infra/logging"

	"github.com/vppom/vom-agent/cmdqueue"
	"github.com/vppom/vom-agent/inspect"
	"github.com/vppom/vom-agent/om"
	"github.com/vppom/vom-agent/plugins/aclplugin/aclidx"
	"github.com/vppom/vom-agent/plugins/aclplugin/model/acl"
	"github.com/vppom/vom-agent/plugins/aclplugin/vppcalls"
)

// ACLPlugin owns the client-side state of L2 ACLs. It registers itself as
// the om listener for the ACL rank and as an inspect handler.
type ACLPlugin struct {
	Deps

	idx   aclidx.ACLIndexRW
	lists *L2ListDB
}

// Deps are the dependencies of the ACL plugin.
type Deps struct {
	Log     logging.Logger
	Queue   *cmdqueue.Queue
	Device  vppcalls.DeviceAPI
	OM      *om.Registry
	Inspect *inspect.Registry
}

// Init builds the mappings and registers the plugin with the object model
// and the inspect registry.
func (plugin *ACLPlugin) Init() error {
	plugin.Log.Infof("Initializing ACL plugin")

	if plugin.OM == nil {
		plugin.OM = om.DefaultRegistry
	}
	if plugin.Inspect == nil {
		plugin.Inspect = inspect.DefaultRegistry
	}

	plugin.idx = aclidx.NewACLIndex(plugin.Log, "l2-acl-handles")
	plugin.lists = NewL2ListDB(plugin.Log, plugin.Queue, plugin.Device, plugin.idx)

	plugin.OM.RegisterListener(plugin)
	plugin.Inspect.RegisterHandler([]string{"l2-acl-list"}, "L2 ACL lists", plugin)

	return nil
}

// Close releases plugin resources. The stores need no teardown beyond
// process exit.
func (plugin *ACLPlugin) Close() error {
	return nil
}

// ConfigureACL creates or updates the access list with the provided rules
// and flushes the command channel. A list that is already programmed with
// an equivalent rule set produces no device command.
func (plugin *ACLPlugin) ConfigureACL(name string, rules acl.Rules) error {
	plugin.Log.Infof("Configuring ACL %v", name)

	if err := rules.Validate(); err != nil {
		return fmt.Errorf("invalid rules for ACL %v: %v", name, err)
	}

	list, found := plugin.lists.Find(name)
	if !found {
		list = plugin.lists.FindOrAdd(name, rules)
	}
	list.Update(rules)

	return plugin.Queue.Write()
}

// DeleteACL releases the access list; the last reference sweeps it off the
// device.
func (plugin *ACLPlugin) DeleteACL(name string) error {
	plugin.Log.Infof("Deleting ACL %v", name)

	list, found := plugin.lists.Find(name)
	if !found {
		return fmt.Errorf("ACL %v not found, cannot be removed", name)
	}
	return plugin.lists.Release(list)
}

// DumpACLs reads the L2 ACL tables back from the device.
func (plugin *ACLPlugin) DumpACLs() ([]vppcalls.L2ACLDetails, error) {
	dump := vppcalls.NewL2DumpCmd(plugin.Device, plugin.Log)
	plugin.Queue.Enqueue(dump)
	if err := plugin.Queue.Write(); err != nil {
		return nil, err
	}
	return dump.Records(), nil
}

// LookupACL returns the live list for the key.
func (plugin *ACLPlugin) LookupACL(name string) (*L2List, bool) {
	return plugin.lists.Find(name)
}

// LookupByHandle resolves a device handle to the live list, or reports a
// miss if the list is gone or the handle is stale.
func (plugin *ACLPlugin) LookupByHandle(handle uint32) (*L2List, bool) {
	return plugin.lists.FindByHandle(handle)
}

// Lists exposes the typed store.
func (plugin *ACLPlugin) Lists() *L2ListDB {
	return plugin.lists
}

// Order places ACLs after the interfaces and tables they may reference.
func (plugin *ACLPlugin) Order() om.Rank {
	return om.RankACL
}

// HandlePopulate dumps the L2 ACLs the device already holds and commits
// them into the store as adopted state. No programming commands are issued
// for adopted lists.
func (plugin *ACLPlugin) HandlePopulate(ctx context.Context) error {
	dump := vppcalls.NewL2DumpCmd(plugin.Device, plugin.Log)
	plugin.Queue.Enqueue(dump)
	if err := plugin.Queue.Write(); err != nil {
		return err
	}

	for _, record := range dump.Records() {
		if err := ctx.Err(); err != nil {
			return err
		}
		list := plugin.lists.Adopt(record.Tag, record.ACLIndex, record.Rules)
		plugin.Log.Debugf("populate: %v", list)
	}
	return nil
}

// HandleReplay re-pushes every cached list after a reconnect.
func (plugin *ACLPlugin) HandleReplay() error {
	return plugin.lists.Replay()
}

// Show dumps the ACL store to the stream.
func (plugin *ACLPlugin) Show(w io.Writer) {
	fmt.Fprintf(w, "l2-acl-list: %d entries\n", plugin.lists.Size())
	plugin.lists.Dump(w)
}
