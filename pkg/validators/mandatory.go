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

// Package validators implements the Rule Validators: M1-M4 (placement),
// O1-O5 (operator-specific), and V1-V3 (meta/input validation). Every
// validator is a pure function of the enriched request and, where needed,
// the computed Plan; none of them mutate either.
package validators

import (
	"fmt"

	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/planner"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// M1 checks that every base-mandatory pod kind is present in the enriched
// request.
func M1(req vdu.DeploymentInput) []vdu.Violation {
	present := make(map[vdu.PodKind]bool)
	for _, p := range req.PodRequirements {
		present[p.Kind] = true
	}

	var missing []vdu.PodKind
	for _, kind := range vdu.MandatoryPodKinds() {
		if !present[kind] {
			missing = append(missing, kind)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []vdu.Violation{{
		Tag:      "M1",
		Category: vdu.CategoryMandatoryPods,
		Message:  fmt.Sprintf("missing mandatory pods: %v", missing),
	}}
}

// M2 checks DPP placement cardinality per socket.
func M2(req vdu.DeploymentInput, plan *planner.Plan) []vdu.Violation {
	if plan == nil {
		return nil
	}

	if req.FeatureFlags.InServiceUpgrade {
		for _, sock := range plan.Sockets {
			count := countInSocket(plan, sock, vdu.PodDPP)
			if count > 1 {
				return []vdu.Violation{{
					Tag:      "M2",
					Category: vdu.CategoryPlacement,
					Message:  fmt.Sprintf("DPP anti-affinity violated on socket %s (%d DPP instances)", sock, count),
				}}
			}
		}
		return nil
	}

	if req.FeatureFlags.HAEnabled {
		// No per-socket constraint beyond existence (covered by M1).
		return nil
	}

	// Default: exactly one DPP per socket that hosts any DPP.
	for _, sock := range plan.Sockets {
		count := countInSocket(plan, sock, vdu.PodDPP)
		if count > 1 {
			return []vdu.Violation{{
				Tag:      "M2",
				Category: vdu.CategoryPlacement,
				Message:  fmt.Sprintf("socket %s hosts %d DPP instances, expected at most 1", sock, count),
			}}
		}
	}
	return nil
}

// M3 checks RMP placement: exactly one total in switch mode, or paired
// one-to-one by socket with DPP otherwise.
func M3(req vdu.DeploymentInput, plan *planner.Plan) []vdu.Violation {
	if plan == nil {
		return nil
	}

	if req.FeatureFlags.VduRuSwitchConnection {
		count := plan.CountOf(vdu.PodRMP)
		if count != 1 {
			return []vdu.Violation{{
				Tag:      "M3",
				Category: vdu.CategoryPlacement,
				Message:  fmt.Sprintf("switch mode requires exactly 1 RMP total, found %d", count),
			}}
		}
		return nil
	}

	rmpCount := plan.CountOf(vdu.PodRMP)
	dppCount := plan.CountOf(vdu.PodDPP)
	if rmpCount != dppCount {
		return []vdu.Violation{{
			Tag:      "M3",
			Category: vdu.CategoryPlacement,
			Message:  fmt.Sprintf("RMP count (%d) must equal DPP count (%d)", rmpCount, dppCount),
		}}
	}

	for _, sock := range plan.Sockets {
		hasDPP := countInSocket(plan, sock, vdu.PodDPP) > 0
		hasRMP := countInSocket(plan, sock, vdu.PodRMP) > 0
		if hasRMP && !hasDPP {
			return []vdu.Violation{{
				Tag:      "M3",
				Category: vdu.CategoryPlacement,
				Message:  fmt.Sprintf("socket %s hosts RMP without a paired DPP", sock),
			}}
		}
		if hasDPP && !hasRMP {
			return []vdu.Violation{{
				Tag:      "M3",
				Category: vdu.CategoryPlacement,
				Message:  fmt.Sprintf("socket %s hosts DPP without a paired RMP", sock),
			}}
		}
	}
	return nil
}

// M4 checks CMP placement cardinality when HA is enabled.
func M4(req vdu.DeploymentInput, plan *planner.Plan) []vdu.Violation {
	if plan == nil || !req.FeatureFlags.HAEnabled {
		return nil
	}

	count := plan.CountOf(vdu.PodCMP)
	if count != 2 {
		return []vdu.Violation{{
			Tag:      "M4",
			Category: vdu.CategoryPlacement,
			Message:  fmt.Sprintf("HA requires exactly 2 CMP instances, found %d", count),
		}}
	}

	sockets := plan.SocketsHosting(vdu.PodCMP)
	seen := make(map[vdu.SocketID]bool)
	for _, s := range sockets {
		if seen[s] {
			return []vdu.Violation{{
				Tag:      "M4",
				Category: vdu.CategoryAntiAffinity,
				Message:  fmt.Sprintf("HA CMP anti-affinity violated: two CMP instances on socket %s", s),
			}}
		}
		seen[s] = true
	}
	return nil
}

func countInSocket(plan *planner.Plan, sock vdu.SocketID, kind vdu.PodKind) int {
	n := 0
	for _, p := range plan.Assignments[sock] {
		if p.Kind == kind {
			n++
		}
	}
	return n
}

// AllMandatory runs M1-M4 in order and concatenates their violations.
func AllMandatory(req vdu.DeploymentInput, plan *planner.Plan, cat *catalogue.Catalogue) []vdu.Violation {
	var out []vdu.Violation
	out = append(out, M1(req)...)
	out = append(out, M2(req, plan)...)
	out = append(out, M3(req, plan)...)
	out = append(out, M4(req, plan)...)
	return out
}
