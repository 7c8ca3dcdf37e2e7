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

import "github.com/prometheus/client_golang/prometheus"

const (
	resultDone     = "done"
	resultRejected = "rejected"
	resultFatal    = "fatal"
)

var (
	commandsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vom_commands_executed_total",
		Help: "Number of device commands executed, by outcome.",
	}, []string{"result"})

	batchesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vom_command_batches_written_total",
		Help: "Number of command batches flushed to the device.",
	})
)

func init() {
	prometheus.MustRegister(commandsExecuted, batchesWritten)
}
