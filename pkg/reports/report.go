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

// Package reports implements the Explainer/Formatter: it turns one
// engine.ValidationOutcome into the structured, six-section report the
// specification requires, with stable JSON field ordering so report bytes
// are comparable across identical runs.
package reports

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/asquaree/pod-placement-ai/pkg/capacity"
	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/engine"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// InputParameters mirrors the request fields the report renders; it is kept
// separate from vdu.DeploymentInput so the report's JSON shape does not
// change if the domain type grows fields the Explainer has no opinion about.
type InputParameters struct {
	Operator      vdu.Operator `json:"operator"`
	VduFlavorName string       `json:"vdu_flavor_name"`
	ServerCount   int          `json:"server_count"`
	SocketCount   int          `json:"socket_count"`
	PodCount      int          `json:"pod_count"`
	FeatureFlags  vdu.FeatureFlags `json:"feature_flags"`
}

// PodLine is one pod requirement rendered for the Calculation section.
type PodLine struct {
	Kind     vdu.PodKind `json:"kind"`
	Vcores   float64     `json:"vcores"`
	Quantity int         `json:"quantity"`
	Total    float64     `json:"total_vcores"`
}

// Calculation is the fleet-level arithmetic breakdown: total vCores, the
// per-rule deductions (C3 CaaS reservation, C4 shared-core reservation), net
// available, and what the enriched pod set requires.
type Calculation struct {
	TotalPcores     int       `json:"total_pcores"`
	TotalVcores     int       `json:"total_vcores"`
	TotalSockets    int       `json:"total_sockets"`
	CaaSDeduction   float64   `json:"caas_deduction"`
	SharedDeduction float64   `json:"shared_deduction"`
	NetAvailable    float64   `json:"net_available"`
	PodLines        []PodLine `json:"pod_lines"`
	RequiredVcores  float64   `json:"required_vcores"`
}

// Result is the final comparison the Calculation feeds into.
type Result struct {
	Success   bool    `json:"success"`
	Required  float64 `json:"required_vcores"`
	Available float64 `json:"available_vcores"`
	Shortfall float64 `json:"shortfall_vcores,omitempty"`
}

// IssueGroup is one category's de-duplicated violation messages.
type IssueGroup struct {
	Category vdu.Category `json:"category"`
	Messages []string     `json:"messages"`
}

// IssuesFound groups violations by category (sorted for determinism) and
// carries the recommendation the Explainer attaches to a failing outcome.
type IssuesFound struct {
	Groups         []IssueGroup `json:"groups"`
	Recommendation string       `json:"recommendation,omitempty"`
}

// Report is the complete six-section Explainer output.
type Report struct {
	Objective        string              `json:"objective"`
	InputParameters  InputParameters     `json:"input_parameters"`
	RulesApplied     []string            `json:"rules_applied"`
	Calculation      Calculation         `json:"calculation"`
	Result           Result              `json:"result"`
	IssuesFound      IssuesFound         `json:"issues_found"`
	InformationalNotes []vdu.RecommendationNote `json:"informational_notes,omitempty"`
}

// rulesApplied lists, in pipeline order, the rule groups the Orchestrator ran
// for a given outcome. It does not vary by request beyond the fatal/
// placement-attempted split, since §4.7's pipeline order is fixed.
func rulesApplied(out engine.ValidationOutcome) []string {
	if out.Fatal && len(out.Violations) > 0 && out.Violations[0].Tag == "V3" {
		return []string{"V3"}
	}
	rules := []string{"V3", "Enrichment", "C2", "Socket feasibility", "RMP/DPP co-location", "C1"}
	if out.Plan != nil {
		rules = append(rules, "Placement", "M1-M4", "O1-O5")
	} else {
		rules = append(rules, "Placement", "M1")
	}
	return append(rules, "V2", "V1")
}

// Explain builds the structured report for one pipeline outcome.
func Explain(out engine.ValidationOutcome, cat *catalogue.Catalogue) *Report {
	req := out.EnrichedRequest

	var podLines []PodLine
	var notes []vdu.RecommendationNote
	var required float64
	for _, p := range req.PodRequirements {
		total := p.TotalVcores()
		podLines = append(podLines, PodLine{Kind: p.Kind, Vcores: p.Vcores, Quantity: p.Quantity, Total: total})
		if p.Vcores == 0 {
			notes = append(notes, vdu.RecommendationNote{
				Tag:     string(p.Kind),
				Message: fmt.Sprintf("%s carries 0.0 vCores and is excluded from calculation", p.Kind),
			})
			continue
		}
		required += total
	}

	calc := Calculation{PodLines: podLines, RequiredVcores: required}
	var available float64
	for i, s := range req.ServerConfigs {
		calc.TotalPcores += s.Pcores
		calc.TotalVcores += s.Vcores
		calc.TotalSockets += s.Sockets
		for _, sc := range capacity.ForServer(s, i, req.Operator, cat) {
			calc.CaaSDeduction += sc.CaaSReserved
			calc.SharedDeduction += sc.SharedReserved
			available += sc.Available
		}
	}
	calc.NetAvailable = available

	result := Result{Success: out.Success, Required: required, Available: available}
	if required > available {
		result.Shortfall = required - available
	}

	return &Report{
		Objective: fmt.Sprintf("Validate placement of vDU flavour %q for operator %s across %d server(s)", req.VduFlavorName, req.Operator, req.NumberOfServers()),
		InputParameters: InputParameters{
			Operator:      req.Operator,
			VduFlavorName: req.VduFlavorName,
			ServerCount:   req.NumberOfServers(),
			SocketCount:   req.TotalSockets(),
			PodCount:      len(req.PodRequirements),
			FeatureFlags:  req.FeatureFlags,
		},
		RulesApplied:       rulesApplied(out),
		Calculation:        calc,
		Result:             result,
		IssuesFound:        dedupeIssues(out.Violations),
		InformationalNotes: notes,
	}
}

// dedupeIssues groups violations by category, in sorted category order, and
// within each group collapses violations that share the same Tag and Detail
// down to the single longest (most specific) message. A socket-capacity
// message ("DPP pod exceeds maximum socket capacity") is strictly longer and
// more informative than the server-level message it causes ("capacity
// exceeded"), so keeping the longest message per key keeps the more specific
// one without the Explainer needing to know which rule subsumes which. The
// key carries no pod or socket identity: violations with the same Tag and an
// empty Detail collapse to one message even when they concern different pods
// or servers.
func dedupeIssues(violations []vdu.Violation) IssuesFound {
	byCategory := map[vdu.Category][]vdu.Violation{}
	var categories []vdu.Category
	seen := map[vdu.Category]bool{}
	for _, v := range violations {
		if !seen[v.Category] {
			seen[v.Category] = true
			categories = append(categories, v.Category)
		}
		byCategory[v.Category] = append(byCategory[v.Category], v)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var groups []IssueGroup
	var recommendation string
	for _, cat := range categories {
		msgs := longestPerChain(byCategory[cat])
		groups = append(groups, IssueGroup{Category: cat, Messages: msgs})
		if recommendation == "" && len(msgs) > 0 {
			recommendation = recommendationFor(cat, msgs[0])
		}
	}
	return IssuesFound{Groups: groups, Recommendation: recommendation}
}

// longestPerChain de-duplicates violations that share the same tag+detail
// pairing by keeping only the longest rendered message, and otherwise
// preserves pipeline order.
func longestPerChain(violations []vdu.Violation) []string {
	type entry struct {
		key string
		msg string
	}
	var order []string
	best := map[string]string{}
	for _, v := range violations {
		key := v.Tag + "|" + v.Detail
		msg := v.String()
		if existing, ok := best[key]; !ok {
			best[key] = msg
			order = append(order, key)
		} else if len(msg) > len(existing) {
			best[key] = msg
		}
	}
	out := make([]string, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func recommendationFor(cat vdu.Category, firstMessage string) string {
	switch cat {
	case vdu.CategoryCapacity:
		return "Increase server or socket capacity, or reduce the requested pod footprint: " + firstMessage
	case vdu.CategoryAntiAffinity:
		return "Add sockets or servers so anti-affinity pods can be spread as required: " + firstMessage
	case vdu.CategoryCoLocation:
		return "Ensure co-located pods fit together on one socket, or disable switch-connection mode: " + firstMessage
	case vdu.CategoryMandatoryPods:
		return "Supply the missing mandatory pod(s) in the deployment request: " + firstMessage
	case vdu.CategoryOperatorSpecific:
		return "Review the operator-specific catalogue entries (flavour mapping, special flavours): " + firstMessage
	case vdu.CategoryServerConfig:
		return "Correct the server configuration so vcores/pcores/sockets agree: " + firstMessage
	case vdu.CategoryInputValidation:
		return "Correct the malformed input fields before resubmitting: " + firstMessage
	default:
		return "Review the reported issue: " + firstMessage
	}
}

// MarshalJSON implements json.Marshaler with deterministic map-free output;
// Report's fields are already slices and structs, but this override exists so
// a struct literal built by tests and handlers alike always serializes the
// same way regardless of Go map iteration anywhere upstream.
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(alias(r))
}
