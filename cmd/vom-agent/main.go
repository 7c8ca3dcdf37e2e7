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

// vom-agent is a demo agent keeping L2 ACL configuration synchronized with
// a (simulated) forwarding device. It adopts existing device state, applies
// the desired ACLs from the configuration file and serves the inspect REST
// API until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/ligato/cn-infra/utils/safeclose"
	"github.com/namsral/flag"

	"github.com/vppom/vom-agent/cmdqueue"
	"github.com/vppom/vom-agent/devsim"
	"github.com/vppom/vom-agent/inspect"
	"github.com/vppom/vom-agent/om"
	"github.com/vppom/vom-agent/plugins/aclplugin"
)

func main() {
	var (
		configFile string
		httpAddr   string
		debug      bool
	)
	flag.StringVar(&configFile, "config", "", "path to the agent YAML configuration")
	flag.StringVar(&httpAddr, "http-addr", "", "inspect REST listen address (overrides config)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	log := logrus.DefaultLogger()
	if debug {
		log.SetLevel(logging.DebugLevel)
	}

	if err := runAgent(log, configFile, httpAddr); err != nil {
		log.Errorf("agent failed: %v", err)
		os.Exit(1)
	}
}

func runAgent(log logging.Logger, configFile, httpAddr string) error {
	config, err := ConfigFromFile(configFile)
	if err != nil {
		return err
	}
	if httpAddr != "" {
		config.HTTPAddr = httpAddr
	}

	device := devsim.New(log)
	queue := cmdqueue.NewQueue(log)

	plugin := &aclplugin.ACLPlugin{Deps: aclplugin.Deps{
		Log:    log,
		Queue:  queue,
		Device: device,
	}}
	if err := plugin.Init(); err != nil {
		return err
	}
	defer safeclose.Close(plugin)

	// aggregated dump of every object store, in rank order
	inspect.DefaultRegistry.RegisterHandler([]string{"object-model", "om"},
		"All object stores in rank order", om.DefaultRegistry)

	rest := &inspect.RESTPlugin{Deps: inspect.Deps{
		Log:  log,
		Addr: config.HTTPAddr,
	}}
	if err := rest.Init(); err != nil {
		return err
	}
	if err := rest.AfterInit(); err != nil {
		return err
	}
	defer safeclose.Close(rest)

	// read existing device state before pushing anything
	if err := om.DefaultRegistry.Populate(context.Background()); err != nil {
		return err
	}

	for _, a := range config.ACLs {
		if err := plugin.ConfigureACL(a.Name, a.Rules); err != nil {
			return err
		}
	}
	log.Infof("agent ready, %d ACLs configured", len(config.ACLs))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	log.Infof("received %v, shutting down", <-sig)

	return nil
}
