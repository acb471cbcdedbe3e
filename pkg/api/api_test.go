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

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
)

func testCatalogue(t *testing.T) *catalogue.Catalogue {
	t.Helper()
	doc := `
mandatory_pods: [DPP, DIP, RMP, CMP, DMP, PMP]
caas_cores_per_socket: {VOS: 4, Verizon: 4, Boost: 0}
shared_cores_per_socket:
  operator_specific: {VOS: 2.0, Verizon: 1.0, Boost: 1.0}
  global_minimum: 1.0
`
	dir := t.TempDir()
	path := filepath.Join(dir, "cat.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalogue.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func TestHealthzReportsOK(t *testing.T) {
	router, _ := NewV1Router(testCatalogue(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestVersionAdvertisement(t *testing.T) {
	router, version := NewV1Router(testCatalogue(t))
	if version.ID != "v1" {
		t.Fatalf("expected version id v1, got %q", version.ID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestValidateRejectsMalformedBody(t *testing.T) {
	router, _ := NewV1Router(testCatalogue(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", bytes.NewBufferString(`{"unknown_field": true}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown field, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestValidateFatalInputGets400(t *testing.T) {
	router, _ := NewV1Router(testCatalogue(t))
	body := `{
		"operator": "VOS",
		"vdu_flavor_name": "medium-regular-spr-t23",
		"pod_requirements": [{"kind": "DPP", "vcores": 1, "quantity": 1}],
		"server_configs": [],
		"feature_flags": {}
	}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", bytes.NewBufferString(body))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a fatal V3 failure (no servers), got %d: %s", rec.Code, rec.Body.String())
	}

	var decoded responseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("could not decode response: %s", err)
	}
	if decoded.Success {
		t.Error("expected success=false")
	}
	if decoded.CorrelationID == "" {
		t.Error("expected a minted correlation id when none was supplied")
	}
}

func TestCatalogueSearchByOperator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cat.yaml")
	doc := `
mandatory_pods: [DPP, DIP, RMP, CMP, DMP, PMP]
caas_cores_per_socket: {VOS: 4}
shared_cores_per_socket: {global_minimum: 1.0}
rule_categories: {C1: capacity, O1: operator_specific}
search_keys:
  by_operator: {VOS: [O1, O2, O3]}
  by_feature: {ha_enabled: [M4]}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalogue.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	router, _ := NewV1Router(cat)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/catalogue/search?operator=VOS&feature=ha_enabled", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var decoded map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("could not decode response: %s", err)
	}
	if len(decoded["operator_rules"]) != 3 {
		t.Errorf("expected 3 operator rules, got %v", decoded["operator_rules"])
	}
	if len(decoded["feature_rules"]) != 1 {
		t.Errorf("expected 1 feature rule, got %v", decoded["feature_rules"])
	}
}

func TestValidateSucceedsAndEchoesCorrelationID(t *testing.T) {
	router, _ := NewV1Router(testCatalogue(t))
	body := `{
		"operator": "Verizon",
		"vdu_flavor_name": "medium-uni-light-gnr-hcc",
		"pod_requirements": [
			{"kind": "DPP", "vcores": 10, "quantity": 1},
			{"kind": "DIP", "vcores": 1, "quantity": 1},
			{"kind": "DMP", "vcores": 0.2, "quantity": 1},
			{"kind": "CMP", "vcores": 0.2, "quantity": 1},
			{"kind": "PMP", "vcores": 0.1, "quantity": 1},
			{"kind": "RMP", "vcores": 0.5, "quantity": 1}
		],
		"server_configs": [{"pcores": 24, "vcores": 48, "sockets": 2}],
		"feature_flags": {}
	}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", bytes.NewBufferString(body))
	req.Header.Set("X-Request-Id", "test-correlation-id")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var decoded responseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("could not decode response: %s", err)
	}
	if !decoded.Success {
		t.Errorf("expected success, got violated rules %v", decoded.ViolatedRules)
	}
	if decoded.CorrelationID != "test-correlation-id" {
		t.Errorf("expected the supplied correlation id to be echoed back, got %q", decoded.CorrelationID)
	}
	if decoded.Report == nil {
		t.Error("expected a report to be attached to the response")
	}
}
