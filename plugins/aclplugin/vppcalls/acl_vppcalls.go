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

// Package vppcalls holds the device commands used to program L2 ACLs.
// The wire encoding of each command lives behind the DeviceAPI interface;
// this package only decides what to send and how to record the outcome.
package vppcalls

import (
	"fmt"

	"github.com/ligato/cn-infra/logging"

	"github.com/vppom/vom-agent/cmdqueue"
	"github.com/vppom/vom-agent/plugins/aclplugin/model/acl"
)

// DeviceAPI is the device-side execution path for L2 ACL commands.
// An aclIndex equal to cmdqueue.InvalidIndex on add-replace asks the device
// to allocate a fresh one.
type DeviceAPI interface {
	// L2ACLAddReplace creates or replaces an L2 ACL and returns the
	// device-assigned index together with the device result code.
	L2ACLAddReplace(aclIndex uint32, tag string, rules acl.Rules) (newIndex uint32, retval int32, err error)

	// L2ACLDel removes the L2 ACL identified by the index.
	L2ACLDel(aclIndex uint32) (retval int32, err error)

	// L2ACLDump returns all L2 ACLs currently programmed on the device.
	L2ACLDump() ([]L2ACLDetails, error)
}

// L2ACLDetails is one record returned by the device dump.
type L2ACLDetails struct {
	ACLIndex uint32
	Tag      string
	Rules    acl.Rules
}

// L2AddReplaceCmd programs the rule set of one ACL. If the handle item is
// not valid the command creates a new ACL, otherwise it replaces the rules
// of the programmed one.
type L2AddReplaceCmd struct {
	dev DeviceAPI
	log logging.Logger

	hdl   *cmdqueue.Item
	tag   string
	rules acl.Rules

	rejected bool

	// bound on success with the device-assigned handle
	onSuccess func(handle uint32)
}

// NewL2AddReplaceCmd creates an add-replace command. The onSuccess callback,
// if any, runs after the device accepted the command, with the assigned
// handle.
func NewL2AddReplaceCmd(dev DeviceAPI, log logging.Logger, hdl *cmdqueue.Item,
	tag string, rules acl.Rules, onSuccess func(handle uint32)) *L2AddReplaceCmd {
	return &L2AddReplaceCmd{
		dev:       dev,
		log:       log,
		hdl:       hdl,
		tag:       tag,
		rules:     rules,
		onSuccess: onSuccess,
	}
}

// Exec issues the command. A device-level rejection is recorded on the
// handle item; only a channel failure returns an error.
func (c *L2AddReplaceCmd) Exec() error {
	aclIndex := cmdqueue.InvalidIndex
	if c.hdl.Ok() {
		aclIndex = c.hdl.Value()
	}

	newIndex, retval, err := c.dev.L2ACLAddReplace(aclIndex, c.tag, c.rules)
	if err != nil {
		c.hdl.Set(aclIndex, cmdqueue.RCTimeout)
		return err
	}
	if retval != 0 {
		c.rejected = true
		c.hdl.Set(aclIndex, cmdqueue.RCFailed)
		c.log.Warnf("device rejected ACL %v with retval %v", c.tag, retval)
		return nil
	}

	c.hdl.Set(newIndex, cmdqueue.RCOK)
	c.log.Debugf("%v rule(s) written for ACL %v with index %v", len(c.rules), c.tag, newIndex)
	if c.onSuccess != nil {
		c.onSuccess(newIndex)
	}
	return nil
}

// Rejected tells whether the device refused the command.
func (c *L2AddReplaceCmd) Rejected() bool {
	return c.rejected
}

// String returns a description of the command.
func (c *L2AddReplaceCmd) String() string {
	return fmt.Sprintf("l2-acl-add-replace:[%s hdl:%v rules:%v]", c.tag, c.hdl.Value(), c.rules)
}

// L2DeleteCmd removes one programmed ACL from the device.
type L2DeleteCmd struct {
	dev DeviceAPI
	log logging.Logger

	hdl *cmdqueue.Item
	tag string

	rejected bool

	// run on success with the handle that was just freed
	onSuccess func(handle uint32)
}

// NewL2DeleteCmd creates a delete command for the ACL behind the handle.
func NewL2DeleteCmd(dev DeviceAPI, log logging.Logger, hdl *cmdqueue.Item,
	tag string, onSuccess func(handle uint32)) *L2DeleteCmd {
	return &L2DeleteCmd{
		dev:       dev,
		log:       log,
		hdl:       hdl,
		tag:       tag,
		onSuccess: onSuccess,
	}
}

// Exec issues the command. On success the handle item is invalidated.
func (c *L2DeleteCmd) Exec() error {
	aclIndex := c.hdl.Value()

	retval, err := c.dev.L2ACLDel(aclIndex)
	if err != nil {
		c.hdl.Set(aclIndex, cmdqueue.RCTimeout)
		return err
	}
	if retval != 0 {
		c.rejected = true
		c.hdl.Set(aclIndex, cmdqueue.RCFailed)
		c.log.Warnf("device refused to delete ACL %v (index %v), retval %v", c.tag, aclIndex, retval)
		return nil
	}

	c.hdl.Invalidate()
	c.log.Debugf("ACL %v (index %v) deleted", c.tag, aclIndex)
	if c.onSuccess != nil {
		c.onSuccess(aclIndex)
	}
	return nil
}

// Rejected tells whether the device refused the command.
func (c *L2DeleteCmd) Rejected() bool {
	return c.rejected
}

// String returns a description of the command.
func (c *L2DeleteCmd) String() string {
	return fmt.Sprintf("l2-acl-delete:[%s hdl:%v]", c.tag, c.hdl.Value())
}

// L2DumpCmd reads back all L2 ACLs the device holds. Used by the populate
// pass to adopt pre-existing state.
type L2DumpCmd struct {
	dev DeviceAPI
	log logging.Logger

	records []L2ACLDetails
}

// NewL2DumpCmd creates a dump command.
func NewL2DumpCmd(dev DeviceAPI, log logging.Logger) *L2DumpCmd {
	return &L2DumpCmd{dev: dev, log: log}
}

// Exec issues the dump and keeps the returned records.
func (c *L2DumpCmd) Exec() error {
	records, err := c.dev.L2ACLDump()
	if err != nil {
		return err
	}
	c.records = records
	c.log.Debugf("dumped %v L2 ACL(s)", len(records))
	return nil
}

// Records returns the dumped ACL records. Valid after Exec.
func (c *L2DumpCmd) Records() []L2ACLDetails {
	return c.records
}

// String returns a description of the command.
func (c *L2DumpCmd) String() string {
	return "l2-acl-dump"
}
