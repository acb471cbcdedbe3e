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

// Package engine implements the Orchestrator: the fixed ten-step pipeline
// that runs input validation, enrichment, the capacity pre-checks, placement,
// rule validation and final categorization in the order the specification
// requires, and assembles the result into one ValidationOutcome.
package engine

import (
	"github.com/sapcc/go-bits/logg"

	"github.com/asquaree/pod-placement-ai/pkg/capacity"
	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/enrich"
	"github.com/asquaree/pod-placement-ai/pkg/planner"
	"github.com/asquaree/pod-placement-ai/pkg/validators"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// ValidationOutcome is the complete result of running the pipeline once.
type ValidationOutcome struct {
	Success bool

	// EnrichedRequest is the request after the Requirement Enricher ran; the
	// Explainer renders its pod list, not the caller's original one.
	EnrichedRequest vdu.DeploymentInput

	// Plan is nil when placement could not be attempted or did not complete:
	// a fatal V3 failure, or any placement failure (Step-0 anti-affinity
	// infeasibility, an anti-affinity, DirectX2 or IIP-separation stratum
	// that found no socket, or an unplaceable residual). No partial plan is
	// kept in any of these cases.
	Plan *planner.Plan

	// Violations accumulates every rule failure seen, in pipeline order,
	// after V2's diagnostic re-categorization has attached its phrased
	// sentence to each one as an Annotation; Tag, Category, Message and
	// Detail are left as the raising rule set them.
	Violations []vdu.Violation

	// Fatal is true when V3 failed, or when placement failed and left no
	// plan, so M2-M4 and O1-O5 did not run.
	Fatal bool
}

// Run executes the fixed ten-step pipeline against req using cat as the Rule
// Catalogue. It never mutates req.
//
//  1. V3 input validation (fatal on failure: no further stage runs)
//  2. Requirement enrichment
//  3. C2 core-conversion check
//  4. Socket-feasibility pre-check
//  5. RMP-DPP co-location pre-check
//  6. C1 per-server capacity pre-check
//  7. Placement planning (fatal on any planner failure, which leaves no
//     plan; M1 and V2 still run over what was accumulated so far)
//  8. M1-M4 mandatory-placement validation
//  9. O1-O5 operator-specific validation
//  10. V1/V2 final categorization
func Run(req vdu.DeploymentInput, cat *catalogue.Catalogue) ValidationOutcome {
	// Step 1: V3 is fatal. Nothing downstream can be trusted to run over an
	// input this malformed.
	if v3 := validators.V3(req); len(v3) > 0 {
		logg.Info("vDU validation request rejected at input validation: %d issue(s)", len(v3))
		recordOutcome(false, true)
		return ValidationOutcome{
			Success:         false,
			EnrichedRequest: req,
			Violations:      v3,
			Fatal:           true,
		}
	}

	// Step 2: enrichment.
	enriched := enrich.Enrich(req, cat)

	var all []vdu.Violation

	// Step 3: C2.
	all = append(all, capacity.CheckCoreConversion(enriched)...)

	// Step 4: socket feasibility.
	all = append(all, capacity.CheckSocketFeasibility(enriched, cat)...)

	// Step 5: RMP-DPP co-location pre-check.
	all = append(all, capacity.CheckRMPDPPCoLocation(enriched, cat)...)

	// Step 6: C1 per-server capacity.
	all = append(all, capacity.CheckTotalCapacity(enriched, cat)...)

	// Step 7: placement.
	plan, planViolations := planner.Build(enriched, cat)
	all = append(all, planViolations...)

	fatal := plan == nil && len(planViolations) > 0

	if plan != nil {
		// Step 8: mandatory placement.
		all = append(all, validators.AllMandatory(enriched, plan, cat)...)
		// Step 9: operator-specific.
		all = append(all, validators.AllOperatorSpecific(enriched, plan, cat)...)
	} else {
		// No plan to check cardinality or co-location against, but M1 (pod
		// presence, independent of placement) is still meaningful.
		all = append(all, validators.M1(enriched)...)
	}

	// Step 10: V2 diagnostic re-categorization, then V1 meta-success.
	categorized, err := validators.V2(all)
	if err != nil {
		logg.Error("V2 policy evaluation failed, falling back to uncategorized violations: %s", err.Error())
		categorized = all
	}

	success := validators.V1(categorized)
	recordOutcome(success, fatal)

	return ValidationOutcome{
		Success:         success,
		EnrichedRequest: enriched,
		Plan:            plan,
		Violations:      categorized,
		Fatal:           fatal,
	}
}
