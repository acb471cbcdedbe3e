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

// Package api hosts the vDU placement engine behind an HTTP API: a single
// validation endpoint plus version advertisement, catalogue search and health
// endpoints (/metrics is served by cmd/vdu-serve, not here), in the same v1Provider-and-mux.Router shape the wider corpus
// uses for its own API hosts. Persistence, authentication and policy
// enforcement are out of scope for this engine (see spec Non-goals), so
// unlike the corpus's token/policy-gated handlers, these are open
// unauthenticated endpoints; an operator fronting this with auth middleware
// is expected to do so outside this package.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/engine"
	"github.com/asquaree/pod-placement-ai/pkg/reports"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// VersionData is used by the version advertisement handler.
type VersionData struct {
	Status string            `json:"status"`
	ID     string            `json:"id"`
	Links  []VersionLinkData `json:"links"`
}

// VersionLinkData is part of VersionData.
type VersionLinkData struct {
	URL      string `json:"href"`
	Relation string `json:"rel"`
}

// v1Provider holds the dependencies every v1 handler needs: the rule
// catalogue loaded once at startup, read-only thereafter (see §5).
type v1Provider struct {
	Catalogue   *catalogue.Catalogue
	VersionData VersionData
}

// NewV1Router builds the http.Handler for the engine's v1 API and returns the
// VersionData needed for the "/" version advertisement.
func NewV1Router(cat *catalogue.Catalogue) (http.Handler, VersionData) {
	p := &v1Provider{Catalogue: cat}
	p.VersionData = VersionData{
		Status: "CURRENT",
		ID:     "v1",
		Links: []VersionLinkData{
			{Relation: "self", URL: "/v1/"},
		},
	}

	r := mux.NewRouter()
	r.Methods("GET").Path("/v1/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondwith.JSON(w, http.StatusOK, map[string]interface{}{"version": p.VersionData})
	})
	r.Methods("POST").Path("/v1/validate").HandlerFunc(p.Validate)
	r.Methods("GET").Path("/v1/catalogue/search").HandlerFunc(p.CatalogueSearch)
	r.Methods("GET").Path("/healthz").HandlerFunc(p.Healthz)
	return r, p.VersionData
}

// responseBody is the wire shape of a validation outcome: the primary output
// of §6, plus the full Explainer report.
type responseBody struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	ViolatedRules []string        `json:"violated_rules"`
	Report        *reports.Report `json:"report"`
	CorrelationID string          `json:"correlation_id"`
}

// Validate handles POST /v1/validate: decode a deployment request, run it
// through the Orchestrator, and respond with the validation outcome and its
// Explainer report.
func (p *v1Provider) Validate(w http.ResponseWriter, r *http.Request) {
	correlationID := requestCorrelationID(r)

	var req vdu.DeploymentInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logg.Error("[%s] could not decode validation request: %s", correlationID, err.Error())
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	outcome := engine.Run(req, p.Catalogue)
	report := reports.Explain(outcome, p.Catalogue)

	violatedRules := make([]string, 0, len(outcome.Violations))
	for _, v := range outcome.Violations {
		violatedRules = append(violatedRules, v.Tag)
	}

	message := "validation succeeded"
	status := http.StatusOK
	if !outcome.Success {
		message = "validation failed"
		status = http.StatusUnprocessableEntity
		if outcome.Fatal {
			status = http.StatusBadRequest
		}
	}

	respondwith.JSON(w, status, responseBody{
		Success:       outcome.Success,
		Message:       message,
		ViolatedRules: violatedRules,
		Report:        report,
		CorrelationID: correlationID,
	})
}

// CatalogueSearch handles GET /v1/catalogue/search?operator=X&feature=Y: it
// exposes the catalogue's search_keys reverse indexes so a caller can ask
// "which rules apply to this operator / this feature flag" without scanning
// the whole rule set. This exists purely to exercise
// Catalogue.RulesForOperator/RulesForFeature; it performs no natural-language
// interpretation of the query itself.
func (p *v1Provider) CatalogueSearch(w http.ResponseWriter, r *http.Request) {
	result := map[string][]string{}
	if op := r.URL.Query().Get("operator"); op != "" {
		result["operator_rules"] = p.Catalogue.RulesForOperator(vdu.Operator(op))
	}
	if feature := r.URL.Query().Get("feature"); feature != "" {
		result["feature_rules"] = p.Catalogue.RulesForFeature(feature)
	}
	respondwith.JSON(w, http.StatusOK, result)
}

// Healthz handles GET /healthz: a liveness probe confirming the catalogue
// loaded successfully at startup. It performs no validation work itself.
func (p *v1Provider) Healthz(w http.ResponseWriter, r *http.Request) {
	if p.Catalogue == nil {
		http.Error(w, "catalogue not loaded", http.StatusServiceUnavailable)
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestCorrelationID returns the caller-supplied X-Request-Id if present,
// or mints a new v4 UUID otherwise. Only the validation handler uses it: the
// id is returned in the validation response body and prefixes the log line
// written when a request body cannot be decoded.
func requestCorrelationID(r *http.Request) string {
	if existing := r.Header.Get("X-Request-Id"); existing != "" {
		return existing
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "unavailable"
	}
	return id.String()
}
