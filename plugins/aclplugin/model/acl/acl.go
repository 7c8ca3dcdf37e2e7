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

// Package acl defines the northbound model of L2 (MAC-IP) access lists.
package acl

import (
	"fmt"
	"net"
	"strings"
)

// Action decides the fate of a frame matching the rule.
type Action string

// Known rule actions.
const (
	ActionDeny   Action = "deny"
	ActionPermit Action = "permit"
)

// MacIPRule is one ordered element of an L2 ACL. The index is the per-rule
// sequence carried on the rule itself; the rule set as a whole is unordered.
type MacIPRule struct {
	Index      uint32 `json:"index"`
	Action     Action `json:"action"`
	SrcIP      string `json:"src-ip"`
	SrcMac     string `json:"src-mac"`
	SrcMacMask string `json:"src-mac-mask"`
}

// Validate checks that the rule fields parse.
func (r MacIPRule) Validate() error {
	switch r.Action {
	case ActionDeny, ActionPermit:
	default:
		return fmt.Errorf("unknown rule action %q", r.Action)
	}
	if _, _, err := net.ParseCIDR(r.SrcIP); err != nil {
		return fmt.Errorf("invalid source prefix %q: %v", r.SrcIP, err)
	}
	if _, err := net.ParseMAC(r.SrcMac); err != nil {
		return fmt.Errorf("invalid source MAC %q: %v", r.SrcMac, err)
	}
	if _, err := net.ParseMAC(r.SrcMacMask); err != nil {
		return fmt.Errorf("invalid source MAC mask %q: %v", r.SrcMacMask, err)
	}
	return nil
}

// String returns the rule in dump format.
func (r MacIPRule) String() string {
	return fmt.Sprintf("[%d %s %s mac:%s mask:%s]",
		r.Index, r.Action, r.SrcIP, r.SrcMac, r.SrcMacMask)
}

// Rules is the rule set of one ACL. Equality of rule sets is set equality;
// the per-rule index does not impose an order on the collection.
type Rules []MacIPRule

// Validate checks every rule in the set.
func (rs Rules) Validate() error {
	for n, r := range rs {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d: %v", n, err)
		}
	}
	return nil
}

// Equivalent compares two rule sets as multisets, ignoring order.
func (rs Rules) Equivalent(other Rules) bool {
	if len(rs) != len(other) {
		return false
	}
	counts := make(map[MacIPRule]int, len(rs))
	for _, r := range rs {
		counts[r]++
	}
	for _, r := range other {
		counts[r]--
		if counts[r] < 0 {
			return false
		}
	}
	return true
}

// Copy returns an independent copy of the rule set.
func (rs Rules) Copy() Rules {
	if rs == nil {
		return nil
	}
	cp := make(Rules, len(rs))
	copy(cp, rs)
	return cp
}

// String returns the rule set in dump format.
func (rs Rules) String() string {
	parts := make([]string, len(rs))
	for n, r := range rs {
		parts[n] = r.String()
	}
	return strings.Join(parts, " ")
}
