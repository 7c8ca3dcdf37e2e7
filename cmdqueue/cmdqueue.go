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

// Package cmdqueue implements the ordered batching queue between the object
// model and the device. Commands are enqueued as the object model computes
// the delta against programmed state and are executed as one ordered batch
// on Write.
package cmdqueue

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/ligato/cn-infra/logging"
)

// RC is the result code of a single command within a batch.
type RC int

const (
	// RCUnset means the command has not been executed yet. A handle item
	// with RCUnset is not valid on the device.
	RCUnset RC = iota
	// RCOK means the device accepted the command.
	RCOK
	// RCFailed means the device rejected the command. The failure is
	// attached to this command only and does not abort the batch.
	RCFailed
	// RCTimeout means the device did not respond to the command before the
	// channel gave up on it.
	RCTimeout
)

// String returns a human readable name of the result code.
func (rc RC) String() string {
	switch rc {
	case RCUnset:
		return "unset"
	case RCOK:
		return "ok"
	case RCFailed:
		return "failed"
	case RCTimeout:
		return "timeout"
	}
	return "unknown"
}

// InvalidIndex is the device index carried by handle items that are not
// programmed. It doubles as the "create new entry" marker on the wire
// (the device allocates an index when it sees it).
const InvalidIndex = ^uint32(0)

// Item couples a device-assigned value (an ACL index, an interface index...)
// with the result code of the command that produced it. The item is valid
// only while its result code is RCOK.
type Item struct {
	value uint32
	rc    RC
}

// NewItem returns an item that is not yet programmed.
func NewItem() Item {
	return Item{value: InvalidIndex, rc: RCUnset}
}

// NewItemWith returns an item holding a known-good device value. Used when
// adopting state discovered on the device.
func NewItemWith(value uint32) Item {
	return Item{value: value, rc: RCOK}
}

// Set stores the result of a command execution.
func (i *Item) Set(value uint32, rc RC) {
	i.value = value
	i.rc = rc
}

// Invalidate resets the item to the not-programmed state. Called before a
// replay re-programs the owning object.
func (i *Item) Invalidate() {
	i.value = InvalidIndex
	i.rc = RCUnset
}

// Value returns the device-assigned value. Value receiver: the getters
// must be callable on item copies handed out by owners.
func (i Item) Value() uint32 {
	return i.value
}

// RC returns the result code of the last command that touched the item.
func (i Item) RC() RC {
	return i.rc
}

// Ok tells whether the item holds a valid, programmed device value.
func (i Item) Ok() bool {
	return i.rc == RCOK
}

// Cmd is a single device command. Exec issues the command against the device
// and records its outcome on the owning item. A non-nil error from Exec
// means the channel itself is down; per-command failures are reported
// through the item's result code instead.
type Cmd interface {
	Exec() error
	String() string
}

// RejectionReporter is implemented by commands that can tell a device
// rejection apart from a clean execution. Rejected is only meaningful
// after Exec returned nil.
type RejectionReporter interface {
	Rejected() bool
}

// Queue is the ordered command batch. Enqueue is non-blocking; Write
// executes all pending commands in enqueue order and blocks until the device
// has responded to every one of them.
type Queue struct {
	log logging.Logger

	mu      sync.Mutex
	pending []Cmd
}

// NewQueue creates an empty command queue.
func NewQueue(log logging.Logger) *Queue {
	return &Queue{log: log}
}

// Enqueue appends a command to the pending batch.
func (q *Queue) Enqueue(cmd Cmd) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, cmd)
	q.log.Debugf("enqueued command: %v", cmd)
}

// Len returns the number of commands waiting for the next Write.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Write flushes the batch. Commands execute in enqueue order; a command
// whose result code is a failure does not stop the ones behind it. If the
// channel reports a connectivity failure the batch is abandoned, remaining
// commands are dropped and the error is propagated to the caller, which is
// expected to reconnect and replay.
func (q *Queue) Write() error {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	batchesWritten.Inc()
	for n, cmd := range batch {
		if err := cmd.Exec(); err != nil {
			commandsExecuted.WithLabelValues(resultFatal).Inc()
			q.log.Errorf("command channel down, dropping %d remaining command(s): %v",
				len(batch)-n-1, err)
			return errors.WrapPrefix(err, "command channel write failed", 0)
		}
		result := resultDone
		if r, ok := cmd.(RejectionReporter); ok && r.Rejected() {
			result = resultRejected
		}
		commandsExecuted.WithLabelValues(result).Inc()
		q.log.Debugf("executed command: %v", cmd)
	}

	return nil
}
