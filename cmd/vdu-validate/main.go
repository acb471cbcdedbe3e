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

// Command vdu-validate runs one deployment request through the vDU
// placement engine from the command line, for local testing of a rule
// catalogue without standing up the HTTP host in cmd/vdu-serve.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sapcc/go-bits/logg"

	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/engine"
	"github.com/asquaree/pod-placement-ai/pkg/reports"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

func main() {
	if len(os.Args) != 3 {
		printUsageAndExit()
	}
	cataloguePath, requestPath := os.Args[1], os.Args[2]

	cat, err := catalogue.Load(cataloguePath)
	if err != nil {
		logg.Fatal(err.Error())
	}

	requestFile, err := os.Open(requestPath)
	if err != nil {
		logg.Fatal("cannot open deployment request %s: %s", requestPath, err.Error())
	}
	defer requestFile.Close()

	var req vdu.DeploymentInput
	dec := json.NewDecoder(requestFile)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logg.Fatal("cannot parse deployment request %s: %s", requestPath, err.Error())
	}

	outcome := engine.Run(req, cat)
	report := reports.Explain(outcome, cat)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logg.Fatal(err.Error())
	}

	if !outcome.Success {
		os.Exit(1)
	}
}

func printUsageAndExit() {
	fmt.Fprintf(os.Stderr, "Usage:\n\t%s <catalogue-file> <deployment-request-file>\n", os.Args[0])
	os.Exit(1)
}
