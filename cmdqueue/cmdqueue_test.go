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

package cmdqueue

import (
	"errors"
	"testing"

	"github.com/ligato/cn-infra/logging/logrus"
	. "github.com/onsi/gomega"
	dto "github.com/prometheus/client_model/go"
)

type recordingCmd struct {
	name string
	err  error
	runs *[]string
}

func (c *recordingCmd) Exec() error {
	*c.runs = append(*c.runs, c.name)
	return c.err
}

func (c *recordingCmd) String() string {
	return c.name
}

func TestItemLifecycle(t *testing.T) {
	RegisterTestingT(t)

	item := NewItem()
	Expect(item.Ok()).To(BeFalse())
	Expect(item.Value()).To(Equal(InvalidIndex))
	Expect(item.RC()).To(Equal(RCUnset))

	item.Set(7, RCOK)
	Expect(item.Ok()).To(BeTrue())
	Expect(item.Value()).To(Equal(uint32(7)))

	item.Invalidate()
	Expect(item.Ok()).To(BeFalse())
	Expect(item.Value()).To(Equal(InvalidIndex))

	item.Set(3, RCFailed)
	Expect(item.Ok()).To(BeFalse())
	Expect(item.RC()).To(Equal(RCFailed))

	adopted := NewItemWith(9)
	Expect(adopted.Ok()).To(BeTrue())
	Expect(adopted.Value()).To(Equal(uint32(9)))
}

func TestItemGettersWorkOnCopies(t *testing.T) {
	RegisterTestingT(t)

	// owners hand out the item by value; the getters must be callable on
	// a non-addressable copy
	item := NewItemWith(7)
	handle := func() Item { return item }

	Expect(handle().Ok()).To(BeTrue())
	Expect(handle().Value()).To(Equal(uint32(7)))
	Expect(handle().RC()).To(Equal(RCOK))
}

func TestWriteExecutesInEnqueueOrder(t *testing.T) {
	RegisterTestingT(t)

	queue := NewQueue(logrus.DefaultLogger())
	var runs []string

	queue.Enqueue(&recordingCmd{name: "first", runs: &runs})
	queue.Enqueue(&recordingCmd{name: "second", runs: &runs})
	queue.Enqueue(&recordingCmd{name: "third", runs: &runs})
	Expect(queue.Len()).To(Equal(3))

	Expect(queue.Write()).To(Succeed())
	Expect(runs).To(Equal([]string{"first", "second", "third"}))
	Expect(queue.Len()).To(BeZero())
}

func TestWriteOnEmptyQueueIsNoop(t *testing.T) {
	RegisterTestingT(t)

	queue := NewQueue(logrus.DefaultLogger())
	Expect(queue.Write()).To(Succeed())
}

type rejectedCmd struct {
	recordingCmd
}

func (c *rejectedCmd) Rejected() bool { return true }

func executedCount(result string) float64 {
	counter, err := commandsExecuted.GetMetricWithLabelValues(result)
	Expect(err).NotTo(HaveOccurred())

	m := &dto.Metric{}
	Expect(counter.Write(m)).To(Succeed())
	return m.GetCounter().GetValue()
}

func TestWriteCountsRejectionsSeparately(t *testing.T) {
	RegisterTestingT(t)

	queue := NewQueue(logrus.DefaultLogger())
	var runs []string

	doneBefore := executedCount(resultDone)
	rejectedBefore := executedCount(resultRejected)

	queue.Enqueue(&recordingCmd{name: "accepted", runs: &runs})
	queue.Enqueue(&rejectedCmd{recordingCmd{name: "refused", runs: &runs}})
	Expect(queue.Write()).To(Succeed())

	// a rejection is not a clean execution and must not count as one
	Expect(executedCount(resultDone) - doneBefore).To(BeNumerically("==", 1))
	Expect(executedCount(resultRejected) - rejectedBefore).To(BeNumerically("==", 1))
}

func TestFatalErrorAbandonsBatch(t *testing.T) {
	RegisterTestingT(t)

	queue := NewQueue(logrus.DefaultLogger())
	var runs []string

	queue.Enqueue(&recordingCmd{name: "first", runs: &runs})
	queue.Enqueue(&recordingCmd{name: "second", err: errors.New("connection down"), runs: &runs})
	queue.Enqueue(&recordingCmd{name: "third", runs: &runs})

	err := queue.Write()
	Expect(err).To(HaveOccurred())
	// the failing command ran, the one behind it was dropped
	Expect(runs).To(Equal([]string{"first", "second"}))
	Expect(queue.Len()).To(BeZero())
}
