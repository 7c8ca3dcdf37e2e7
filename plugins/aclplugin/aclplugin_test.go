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
	"bytes"
	"context"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/vppom/vom-agent/plugins/aclplugin/model/acl"
)

func TestPopulateAdoptsDeviceState(t *testing.T) {
	ctx := setupTest(t)

	// the device already holds one ACL the client knows nothing about
	ctx.dev.ProgramAt(7, "acl1", acl.Rules{rulePermit})

	Expect(ctx.om.Populate(context.Background())).To(Succeed())

	list, found := ctx.plugin.LookupACL("acl1")
	Expect(found).To(BeTrue())
	Expect(list.Handle().Ok()).To(BeTrue())
	Expect(list.Handle().Value()).To(Equal(uint32(7)))
	Expect(list.Rules().Equivalent(acl.Rules{rulePermit})).To(BeTrue())

	// reachable through the handle index as well
	byHandle, found := ctx.plugin.LookupByHandle(7)
	Expect(found).To(BeTrue())
	Expect(byHandle).To(BeIdenticalTo(list))

	// adopted state is not re-programmed
	Expect(ctx.dev.DumpCalls()).To(Equal(1))
	Expect(ctx.dev.AddReplaceCalls()).To(BeZero())
	Expect(ctx.dev.DelCalls()).To(BeZero())
}

func TestConfigureACLProgramsDevice(t *testing.T) {
	ctx := setupTest(t)

	Expect(ctx.plugin.ConfigureACL("acl2", acl.Rules{rulePermit})).To(Succeed())

	list, found := ctx.plugin.LookupACL("acl2")
	Expect(found).To(BeTrue())
	Expect(list.Rules()).To(HaveLen(1))
	Expect(list.Handle().Ok()).To(BeTrue())

	// the handle comes from the device command result
	byHandle, found := ctx.plugin.LookupByHandle(list.Handle().Value())
	Expect(found).To(BeTrue())
	Expect(byHandle).To(BeIdenticalTo(list))

	Expect(ctx.dev.AddReplaceCalls()).To(Equal(1))
	Expect(ctx.dev.NumACLs()).To(Equal(1))
}

func TestConfigureACLTwiceIssuesOneCommand(t *testing.T) {
	ctx := setupTest(t)

	rules := acl.Rules{rulePermit, ruleDeny}
	Expect(ctx.plugin.ConfigureACL("acl1", rules)).To(Succeed())
	Expect(ctx.plugin.ConfigureACL("acl1", rules)).To(Succeed())

	Expect(ctx.dev.AddReplaceCalls()).To(Equal(1))
}

func TestConfigureACLRejectsInvalidRules(t *testing.T) {
	ctx := setupTest(t)

	broken := acl.Rules{{Action: "drop", SrcIP: "10.0.0.0/8",
		SrcMac: "aa:bb:cc:dd:ee:ff", SrcMacMask: "ff:ff:ff:ff:ff:ff"}}
	Expect(ctx.plugin.ConfigureACL("acl1", broken)).NotTo(Succeed())
	Expect(ctx.dev.AddReplaceCalls()).To(BeZero())
}

func TestDeleteACLUnknownKey(t *testing.T) {
	ctx := setupTest(t)

	err := ctx.plugin.DeleteACL("missing")
	Expect(err).To(HaveOccurred())
}

func TestChannelFailurePropagates(t *testing.T) {
	ctx := setupTest(t)

	ctx.dev.Disconnect()
	err := ctx.plugin.ConfigureACL("acl1", acl.Rules{rulePermit})
	Expect(err).To(HaveOccurred())
}

func TestReplayRestoresDeviceAfterRestart(t *testing.T) {
	ctx := setupTest(t)

	Expect(ctx.plugin.ConfigureACL("acl1", acl.Rules{rulePermit})).To(Succeed())
	Expect(ctx.plugin.ConfigureACL("acl2", acl.Rules{ruleDeny})).To(Succeed())
	Expect(ctx.dev.NumACLs()).To(Equal(2))

	// the device restarts and forgets everything
	ctx.dev.Restart()
	Expect(ctx.dev.NumACLs()).To(BeZero())

	Expect(ctx.om.Replay()).To(Succeed())
	Expect(ctx.dev.NumACLs()).To(Equal(2))

	// handles are valid again and resolve through the index
	for _, key := range []string{"acl1", "acl2"} {
		list, found := ctx.plugin.LookupACL(key)
		Expect(found).To(BeTrue())
		Expect(list.Handle().Ok()).To(BeTrue())

		byHandle, found := ctx.plugin.LookupByHandle(list.Handle().Value())
		Expect(found).To(BeTrue())
		Expect(byHandle).To(BeIdenticalTo(list))
	}
}

func TestShowDumpsStore(t *testing.T) {
	ctx := setupTest(t)

	Expect(ctx.plugin.ConfigureACL("acl1", acl.Rules{rulePermit})).To(Succeed())

	var buf bytes.Buffer
	ctx.plugin.Show(&buf)
	Expect(buf.String()).To(ContainSubstring("acl1"))
	Expect(buf.String()).To(ContainSubstring("permit"))
}
