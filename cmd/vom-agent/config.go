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

package main

import (
	"io/ioutil"

	"github.com/ghodss/yaml"

	"github.com/vppom/vom-agent/plugins/aclplugin/model/acl"
)

// ACLConfig is one desired access list from the configuration file.
type ACLConfig struct {
	Name  string    `json:"name"`
	Rules acl.Rules `json:"rules"`
}

// Config is the agent configuration file layout.
type Config struct {
	HTTPAddr string      `json:"http-addr"`
	ACLs     []ACLConfig `json:"acls"`
}

const defaultHTTPAddr = "0.0.0.0:9191"

// ConfigFromFile loads the agent configuration from the specified file.
// An empty path yields the default configuration.
func ConfigFromFile(fpath string) (*Config, error) {
	config := &Config{HTTPAddr: defaultHTTPAddr}

	if fpath == "" {
		return config, nil
	}

	b, err := ioutil.ReadFile(fpath)
	if err != nil {
		return config, err
	}

	yamlConfig := Config{}
	if err := yaml.Unmarshal(b, &yamlConfig); err != nil {
		return config, err
	}

	if yamlConfig.HTTPAddr != "" {
		config.HTTPAddr = yamlConfig.HTTPAddr
	}
	config.ACLs = yamlConfig.ACLs
	return config, nil
}
