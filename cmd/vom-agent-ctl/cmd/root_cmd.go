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

// Package cmd implements the vom-agent-ctl commands. They talk to a running
// agent over its inspect REST API.
package cmd

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
)

// GlobalFlags holds the cobra global flags.
type GlobalFlags struct {
	Endpoint string
}

var globalFlags GlobalFlags

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "vom-agent-ctl",
	Short: "A CLI tool for the vom-agent",
	Long: `
A CLI tool to inspect the state of a running vom-agent. Use the
'VOM_AGENT_ENDPOINT' environment variable or the 'endpoint' flag to point
it at the agent's inspect REST API.`,
	Example: `List the inspect handlers the agent exposes:
  $ ./vom-agent-ctl --endpoint 172.17.0.1:9191 list

Dump the L2 ACL store:
  $ ./vom-agent-ctl show l2-acl-list
`,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the inspect handlers registered in the agent",
	RunE:  listFunction,
}

var showCmd = &cobra.Command{
	Use:     "show <handler>",
	Aliases: []string{"s", "sh"},
	Short:   "Show the state dump of one inspect handler",
	Args:    cobra.ExactArgs(1),
	RunE:    showFunction,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&globalFlags.Endpoint,
		"endpoint", "e", "127.0.0.1:9191", "Address of the agent inspect REST API.")
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(showCmd)
}

type handlerInfo struct {
	Names       []string `json:"names"`
	Description string   `json:"description"`
}

func listFunction(cmd *cobra.Command, args []string) error {
	body, err := httpGet("/inspect")
	if err != nil {
		return err
	}

	var infos []handlerInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		return fmt.Errorf("malformed handler index: %v", err)
	}

	for _, info := range infos {
		fmt.Printf("%s", aurora.Bold(info.Names[0]))
		for _, alias := range info.Names[1:] {
			fmt.Printf(" (%s)", alias)
		}
		fmt.Printf(" - %s\n", aurora.Green(info.Description))
	}
	return nil
}

func showFunction(cmd *cobra.Command, args []string) error {
	body, err := httpGet("/inspect/" + args[0])
	if err != nil {
		return err
	}
	fmt.Print(string(body))
	return nil
}

func httpGet(path string) ([]byte, error) {
	resp, err := http.Get("http://" + globalFlags.Endpoint + path)
	if err != nil {
		return nil, fmt.Errorf("cannot reach agent at %v: %v", globalFlags.Endpoint, err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent returned %s: %s",
			aurora.Red(resp.Status), string(body))
	}
	return body, nil
}
