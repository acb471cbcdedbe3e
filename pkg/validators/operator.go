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

package validators

import (
	"fmt"

	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/planner"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// O1 validates the VOS IPsec pod rules: exactly one IPP, and IIP cardinality
// and server separation appropriate to server count and special flavour.
func O1(req vdu.DeploymentInput, plan *planner.Plan, cat *catalogue.Catalogue) []vdu.Violation {
	if req.Operator != vdu.OperatorVOS {
		return nil
	}

	var violations []vdu.Violation

	ippCount := countKindReq(req, vdu.PodIPP)
	if ippCount != 1 {
		violations = append(violations, vdu.Violation{
			Tag:      "O1",
			Category: vdu.CategoryOperatorSpecific,
			Message:  fmt.Sprintf("VOS operator requires exactly 1 IPP pod per vDU, found %d", ippCount),
		})
	}

	iipCount := countKindReq(req, vdu.PodIIP)
	special := cat.IsSpecialFlavor(req.VduFlavorName)
	serverCount := req.NumberOfServers()

	if serverCount > 1 {
		ippServers := 0
		if plan != nil {
			servers := make(map[int]bool)
			for _, sock := range plan.SocketsHosting(vdu.PodIPP) {
				servers[sock.ServerIndex] = true
			}
			ippServers = len(servers)
		}
		expected := serverCount - ippServers
		if special && expected < 1 {
			expected = 1
		}
		if iipCount != expected {
			violations = append(violations, vdu.Violation{
				Tag:      "O1",
				Category: vdu.CategoryOperatorSpecific,
				Message:  fmt.Sprintf("multi-server vDU expected %d IIP pods (1 per server without IPP), found %d", expected, iipCount),
			})
		}
		if plan != nil {
			for _, sock := range plan.Sockets {
				hasIPP := countInSocket(plan, sock, vdu.PodIPP) > 0
				hasIIP := countInSocket(plan, sock, vdu.PodIIP) > 0
				if hasIPP && hasIIP {
					violations = append(violations, vdu.Violation{
						Tag:      "O1",
						Category: vdu.CategoryOperatorSpecific,
						Message:  fmt.Sprintf("socket %s hosts both IPP and IIP, violating placement separation", sock),
					})
				}
			}
		}
	} else {
		if special {
			if iipCount == 0 {
				violations = append(violations, vdu.Violation{
					Tag:      "O1",
					Category: vdu.CategoryOperatorSpecific,
					Message:  fmt.Sprintf("special flavor %s automatically includes IIP, but none found", req.VduFlavorName),
				})
			}
		} else if iipCount > 0 {
			violations = append(violations, vdu.Violation{
				Tag:      "O1",
				Category: vdu.CategoryOperatorSpecific,
				Message:  fmt.Sprintf("single-server vDU needs no IIP pods, found %d", iipCount),
			})
		}
	}

	return violations
}

// O2 validates vCU sizing against the catalogue, when vCU deployment was
// requested.
func O2(req vdu.DeploymentInput, cat *catalogue.Catalogue) []vdu.Violation {
	if req.Operator != vdu.OperatorVOS || !req.FeatureFlags.VcuDeploymentRequired {
		return nil
	}

	vcuPods := podsOfKind(req, vdu.PodVCU)
	if len(vcuPods) == 0 {
		return []vdu.Violation{{
			Tag:      "O2",
			Category: vdu.CategoryOperatorSpecific,
			Message:  "vCU deployment required but no vCU pods found",
		}}
	}

	expected := cat.VCUVcores(req.VduFlavorName)
	expectedType := cat.VCUType(req.VduFlavorName)

	var violations []vdu.Violation
	for _, p := range vcuPods {
		if int(p.Vcores) != expected {
			violations = append(violations, vdu.Violation{
				Tag:      "O2",
				Category: vdu.CategoryOperatorSpecific,
				Message:  fmt.Sprintf("vCU deployment validation failed (%s, %d vcores) for flavor %s", expectedType, expected, req.VduFlavorName),
			})
		}
	}
	return violations
}

// O3 checks that special flavours carry an IIP pod.
func O3(req vdu.DeploymentInput, cat *catalogue.Catalogue) []vdu.Violation {
	if req.Operator != vdu.OperatorVOS {
		return nil
	}
	if !cat.IsSpecialFlavor(req.VduFlavorName) {
		return nil
	}
	if countKindReq(req, vdu.PodIIP) == 0 {
		return []vdu.Violation{{
			Tag:      "O3",
			Category: vdu.CategoryOperatorSpecific,
			Message:  fmt.Sprintf("special flavor %s automatically includes IIP, but no IIP pods found", req.VduFlavorName),
		}}
	}
	return nil
}

// O4 validates DirectX2 co-location: IPP, CSP and UPP present and all placed
// on the same socket.
func O4(req vdu.DeploymentInput, plan *planner.Plan) []vdu.Violation {
	if req.Operator != vdu.OperatorVOS || !req.FeatureFlags.DirectX2Required {
		return nil
	}

	mandatory := []vdu.PodKind{vdu.PodIPP, vdu.PodCSP, vdu.PodUPP}
	var missing []vdu.PodKind
	for _, kind := range mandatory {
		if countKindReq(req, kind) == 0 {
			missing = append(missing, kind)
		}
	}
	if len(missing) > 0 {
		return []vdu.Violation{{
			Tag:      "O4",
			Category: vdu.CategoryCoLocation,
			Message:  fmt.Sprintf("DirectX2 required, missing mandatory pods: %v", missing),
		}}
	}

	if plan == nil {
		return nil
	}

	var commonSockets []vdu.SocketID
	for i, kind := range mandatory {
		sockets := plan.SocketsHosting(kind)
		if i == 0 {
			commonSockets = sockets
			continue
		}
		commonSockets = intersectSockets(commonSockets, sockets)
	}

	if len(commonSockets) == 0 {
		return []vdu.Violation{{
			Tag:      "O4",
			Category: vdu.CategoryCoLocation,
			Message:  "DirectX2 co-location failed: IPP/CSP/UPP are not all on the same socket",
		}}
	}
	if len(commonSockets) > 1 {
		return []vdu.Violation{{
			Tag:      "O4",
			Category: vdu.CategoryCoLocation,
			Message:  fmt.Sprintf("DirectX2 co-location failed: mandatory pods spread across sockets %v", commonSockets),
		}}
	}
	return nil
}

func intersectSockets(a, b []vdu.SocketID) []vdu.SocketID {
	set := make(map[vdu.SocketID]bool)
	for _, s := range b {
		set[s] = true
	}
	var out []vdu.SocketID
	for _, s := range a {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

// O5 validates vCSR sizing and the minimum server shape required to host it.
func O5(req vdu.DeploymentInput, cat *catalogue.Catalogue) []vdu.Violation {
	if req.Operator != vdu.OperatorVOS || !req.FeatureFlags.VcsrDeploymentRequired {
		return nil
	}

	expected := cat.VCSRVcores(req.VduFlavorName)
	if expected == 0 {
		return []vdu.Violation{{
			Tag:      "O5",
			Category: vdu.CategoryOperatorSpecific,
			Message:  fmt.Sprintf("vCSR deployment is not supported for flavor %s", req.VduFlavorName),
		}}
	}

	vcsrPods := podsOfKind(req, vdu.PodVCSR)
	if len(vcsrPods) == 0 {
		return []vdu.Violation{{
			Tag:      "O5",
			Category: vdu.CategoryOperatorSpecific,
			Message:  "vCSR deployment required but no vCSR pods found",
		}}
	}

	var violations []vdu.Violation
	for _, p := range vcsrPods {
		if int(p.Vcores) != expected {
			violations = append(violations, vdu.Violation{
				Tag:      "O5",
				Category: vdu.CategoryOperatorSpecific,
				Message:  fmt.Sprintf("vCSR deployment validation failed (%d vcores) for flavor %s", expected, req.VduFlavorName),
			})
		}
	}

	if def := cat.VCSRDefaultServerConfig(); def != nil {
		matched := false
		for _, s := range req.ServerConfigs {
			if s.Pcores >= def.Pcores && s.Sockets >= def.Sockets {
				matched = true
				break
			}
		}
		if !matched {
			violations = append(violations, vdu.Violation{
				Tag:      "O5",
				Category: vdu.CategoryOperatorSpecific,
				Message:  fmt.Sprintf("vCSR deployment requires a server with at least %d pcores and %d sockets", def.Pcores, def.Sockets),
			})
		}
	}

	return violations
}

func countKindReq(req vdu.DeploymentInput, kind vdu.PodKind) int {
	n := 0
	for _, p := range req.PodRequirements {
		if p.Kind == kind {
			n += p.Quantity
		}
	}
	return n
}

func podsOfKind(req vdu.DeploymentInput, kind vdu.PodKind) []vdu.PodRequirement {
	var out []vdu.PodRequirement
	for _, p := range req.PodRequirements {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// AllOperatorSpecific runs O1-O5 in order and concatenates their violations.
func AllOperatorSpecific(req vdu.DeploymentInput, plan *planner.Plan, cat *catalogue.Catalogue) []vdu.Violation {
	var out []vdu.Violation
	out = append(out, O1(req, plan, cat)...)
	out = append(out, O2(req, cat)...)
	out = append(out, O3(req, cat)...)
	out = append(out, O4(req, plan)...)
	out = append(out, O5(req, cat)...)
	return out
}
