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

package inspect

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/utils/safeclose"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
)

const (
	handlerVarName = "handler"
)

// RESTPlugin exposes the inspect registry over HTTP. One GET endpoint per
// concern: the handler index, individual store dumps and process metrics.
type RESTPlugin struct {
	Deps

	router    *mux.Router
	formatter *render.Render
	server    *http.Server
}

// Deps are the dependencies of the REST plugin.
type Deps struct {
	Log      logging.Logger
	Registry *Registry
	Addr     string
}

type indexItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Init builds the route table.
func (plugin *RESTPlugin) Init() error {
	if plugin.Registry == nil {
		plugin.Registry = DefaultRegistry
	}
	plugin.formatter = render.New(render.Options{IndentJSON: true})

	plugin.router = mux.NewRouter()
	plugin.router.HandleFunc("/", plugin.indexHandler).Methods("GET")
	plugin.router.HandleFunc("/inspect", plugin.listHandler).Methods("GET")
	plugin.router.HandleFunc(fmt.Sprintf("/inspect/{%s}", handlerVarName),
		plugin.showHandler).Methods("GET")
	plugin.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return nil
}

// AfterInit starts serving. The listener error, if any, is only logged;
// the agent keeps running without introspection.
func (plugin *RESTPlugin) AfterInit() error {
	plugin.server = &http.Server{Addr: plugin.Addr, Handler: plugin.router}

	go func() {
		if err := plugin.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			plugin.Log.Errorf("inspect REST server failed: %v", err)
		}
	}()
	plugin.Log.Infof("inspect REST API listening on %v", plugin.Addr)

	return nil
}

// Close stops the HTTP server.
func (plugin *RESTPlugin) Close() error {
	return safeclose.Close(plugin.server)
}

func (plugin *RESTPlugin) indexHandler(w http.ResponseWriter, req *http.Request) {
	plugin.formatter.JSON(w, http.StatusOK, []indexItem{
		{Name: "Inspect handlers", Path: "/inspect"},
		{Name: "Metrics", Path: "/metrics"},
	})
}

func (plugin *RESTPlugin) listHandler(w http.ResponseWriter, req *http.Request) {
	plugin.formatter.JSON(w, http.StatusOK, plugin.Registry.List())
}

func (plugin *RESTPlugin) showHandler(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)[handlerVarName]

	h, found := plugin.Registry.Lookup(name)
	if !found {
		plugin.formatter.JSON(w, http.StatusNotFound,
			fmt.Sprintf("no inspect handler registered under %q", name))
		return
	}

	var buf bytes.Buffer
	h.Show(&buf)
	plugin.formatter.Text(w, http.StatusOK, buf.String())
}
