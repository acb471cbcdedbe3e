/*******************************************************************************
*
* Copyright 2024 pod-placement-ai contributors
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/asquaree/pod-placement-ai/pkg/api"
	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
)

func main() {
	if len(os.Args) < 2 {
		printUsageAndExit()
	}
	cataloguePath := os.Args[1]

	cat, err := catalogue.Load(cataloguePath)
	if err != nil {
		logg.Fatal(err.Error())
	}

	listenAddress := ":8080"
	if len(os.Args) >= 3 {
		listenAddress = os.Args[2]
	}
	allowedOrigins := strings.Split(os.Getenv("VDU_CORS_ALLOWED_ORIGINS"), ",")

	mainRouter := mux.NewRouter()
	v1Router, v1VersionData := api.NewV1Router(cat)
	mainRouter.PathPrefix("/v1/").Handler(v1Router)
	mainRouter.Path("/healthz").Handler(v1Router)
	mainRouter.Handle("/metrics", promhttp.Handler())

	mainRouter.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondwith.JSON(w, http.StatusMultipleChoices, struct {
			Versions []api.VersionData `json:"versions"`
		}{[]api.VersionData{v1VersionData}})
	})

	var handler http.Handler = mainRouter
	if len(allowedOrigins) > 0 && allowedOrigins[0] != "" {
		handler = cors.New(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		}).Handler(handler)
	}

	logg.Info("listening on " + listenAddress)
	if err := http.ListenAndServe(listenAddress, handler); err != nil {
		logg.Fatal(err.Error())
	}
}

func printUsageAndExit() {
	fmt.Fprintf(os.Stderr, "Usage:\n\t%s <catalogue-file> [listen-address]\n", os.Args[0])
	os.Exit(1)
}
