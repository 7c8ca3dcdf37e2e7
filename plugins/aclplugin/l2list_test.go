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
	"testing"

	"github.com/ligato/cn-infra/logging/logrus"
	. "github.com/onsi/gomega"

	"github.com/vppom/vom-agent/cmdqueue"
	"github.com/vppom/vom-agent/devsim"
	"github.com/vppom/vom-agent/inspect"
	"github.com/vppom/vom-agent/om"
	"github.com/vppom/vom-agent/plugins/aclplugin/model/acl"
)

var (
	rulePermit = acl.MacIPRule{
		Index:      0,
		Action:     acl.ActionPermit,
		SrcIP:      "10.0.0.0/8",
		SrcMac:     "aa:bb:cc:dd:ee:ff",
		SrcMacMask: "ff:ff:00:00:00:00",
	}
	ruleDeny = acl.MacIPRule{
		Index:      1,
		Action:     acl.ActionDeny,
		SrcIP:      "192.168.0.0/16",
		SrcMac:     "11:22:33:44:55:66",
		SrcMacMask: "ff:ff:ff:ff:ff:ff",
	}
)

type testCtx struct {
	dev    *devsim.Device
	queue  *cmdqueue.Queue
	om     *om.Registry
	plugin *ACLPlugin
}

func setupTest(t *testing.T) *testCtx {
	RegisterTestingT(t)

	log := logrus.DefaultLogger()
	ctx := &testCtx{
		dev:   devsim.New(log),
		queue: cmdqueue.NewQueue(log),
		om:    om.NewRegistry(log),
	}
	ctx.plugin = &ACLPlugin{Deps: Deps{
		Log:     log,
		Queue:   ctx.queue,
		Device:  ctx.dev,
		OM:      ctx.om,
		Inspect: inspect.NewRegistry(),
	}}
	Expect(ctx.plugin.Init()).To(Succeed())

	return ctx
}

func TestUpdateProgramsUnprogrammedList(t *testing.T) {
	ctx := setupTest(t)
	lists := ctx.plugin.Lists()

	list := lists.FindOrAdd("acl2", nil)
	Expect(list.Handle().Ok()).To(BeFalse())

	list.Update(acl.Rules{rulePermit})
	Expect(ctx.queue.Write()).To(Succeed())

	Expect(ctx.dev.AddReplaceCalls()).To(Equal(1))
	Expect(list.Handle().Ok()).To(BeTrue())
	Expect(list.Rules()).To(HaveLen(1))
}

func TestUpdateIsNoopWhenProgrammedAndEqual(t *testing.T) {
	ctx := setupTest(t)
	lists := ctx.plugin.Lists()

	list := lists.FindOrAdd("acl1", nil)
	list.Update(acl.Rules{rulePermit, ruleDeny})
	Expect(ctx.queue.Write()).To(Succeed())
	Expect(ctx.dev.AddReplaceCalls()).To(Equal(1))

	// same set in a different order: no command may be constructed
	list.Update(acl.Rules{ruleDeny, rulePermit})
	Expect(ctx.queue.Len()).To(BeZero())
	Expect(ctx.queue.Write()).To(Succeed())
	Expect(ctx.dev.AddReplaceCalls()).To(Equal(1))
}

func TestUpdateCachesDesiredRegardlessOfCommand(t *testing.T) {
	ctx := setupTest(t)
	lists := ctx.plugin.Lists()

	list := lists.FindOrAdd("acl1", nil)
	list.Update(acl.Rules{rulePermit})
	Expect(ctx.queue.Write()).To(Succeed())

	reordered := acl.Rules{rulePermit}
	list.Update(reordered)
	Expect(list.Rules().Equivalent(reordered)).To(BeTrue())

	changed := acl.Rules{ruleDeny}
	list.Update(changed)
	Expect(list.Rules().Equivalent(changed)).To(BeTrue())
	Expect(ctx.queue.Len()).To(Equal(1))
	Expect(ctx.queue.Write()).To(Succeed())
}

func TestFailedUpdateKeepsLocalRules(t *testing.T) {
	ctx := setupTest(t)
	lists := ctx.plugin.Lists()

	ctx.dev.FailNext(devsim.RetvalInvalidIndex)

	list := lists.FindOrAdd("acl1", nil)
	desired := acl.Rules{rulePermit}
	list.Update(desired)
	Expect(ctx.queue.Write()).To(Succeed())

	// the device rejected the command; the local cache still holds the
	// desired rules and the handle stays invalid until the next update
	Expect(list.Handle().Ok()).To(BeFalse())
	Expect(list.Rules().Equivalent(desired)).To(BeTrue())
	Expect(ctx.dev.NumACLs()).To(BeZero())

	list.Update(desired)
	Expect(ctx.queue.Write()).To(Succeed())
	Expect(ctx.dev.AddReplaceCalls()).To(Equal(2))
	Expect(list.Handle().Ok()).To(BeTrue())
}

func TestSweepDeletesProgrammedList(t *testing.T) {
	ctx := setupTest(t)
	lists := ctx.plugin.Lists()

	list := lists.FindOrAdd("acl1", nil)
	list.Update(acl.Rules{rulePermit})
	Expect(ctx.queue.Write()).To(Succeed())
	handle := list.Handle().Value()

	_, found := lists.FindByHandle(handle)
	Expect(found).To(BeTrue())

	Expect(lists.Release(list)).To(Succeed())
	Expect(ctx.dev.DelCalls()).To(Equal(1))
	Expect(ctx.dev.NumACLs()).To(BeZero())

	// the handle association must be gone
	_, found = lists.FindByHandle(handle)
	Expect(found).To(BeFalse())
}

func TestSweepOfUnprogrammedListIssuesNothing(t *testing.T) {
	ctx := setupTest(t)
	lists := ctx.plugin.Lists()

	list := lists.FindOrAdd("acl1", acl.Rules{rulePermit})
	Expect(lists.Release(list)).To(Succeed())

	Expect(ctx.dev.DelCalls()).To(BeZero())
	Expect(ctx.dev.AddReplaceCalls()).To(BeZero())
}

func TestReplayReprogramsProgrammedList(t *testing.T) {
	ctx := setupTest(t)
	lists := ctx.plugin.Lists()

	list := lists.FindOrAdd("acl1", nil)
	list.Update(acl.Rules{rulePermit})
	Expect(ctx.queue.Write()).To(Succeed())
	Expect(list.Handle().Ok()).To(BeTrue())

	ctx.dev.Restart()

	list.Replay()
	// the handle is invalidated before the fresh command runs
	Expect(list.Handle().Ok()).To(BeFalse())
	Expect(ctx.queue.Len()).To(Equal(1))

	Expect(ctx.queue.Write()).To(Succeed())
	Expect(list.Handle().Ok()).To(BeTrue())
	Expect(ctx.dev.NumACLs()).To(Equal(1))
	Expect(ctx.dev.AddReplaceCalls()).To(Equal(2))
}

func TestReplayOfUnprogrammedListIsNoop(t *testing.T) {
	ctx := setupTest(t)
	lists := ctx.plugin.Lists()

	list := lists.FindOrAdd("acl1", acl.Rules{rulePermit})
	list.Replay()

	Expect(ctx.queue.Len()).To(BeZero())
}

func TestEquivalenceExcludesHandle(t *testing.T) {
	ctx := setupTest(t)
	lists := ctx.plugin.Lists()

	programmed := lists.FindOrAdd("acl1", nil)
	programmed.Update(acl.Rules{rulePermit})
	Expect(ctx.queue.Write()).To(Succeed())

	// adopted twin with a different handle but the same key and rules
	other := &L2List{
		db:    lists,
		key:   "acl1",
		hdl:   cmdqueue.NewItemWith(99),
		rules: acl.Rules{rulePermit},
	}
	Expect(programmed.Equivalent(other)).To(BeTrue())

	other.rules = acl.Rules{ruleDeny}
	Expect(programmed.Equivalent(other)).To(BeFalse())
}
