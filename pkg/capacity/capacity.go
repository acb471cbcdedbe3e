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

// Package capacity implements rules C1-C4: pCore/vCore conversion, the
// per-socket usable-capacity formula, and the two pre-checks (socket
// feasibility, RMP-DPP co-location) that the Orchestrator runs before
// attempting to build a placement.
package capacity

import (
	"fmt"
	"sort"

	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// SocketCapacity is the computed C1/C3/C4 breakdown for one socket.
type SocketCapacity struct {
	Socket         vdu.SocketID
	TotalVcores    float64
	CaaSReserved   float64
	SharedReserved float64
	Available      float64
}

// ForServer computes the per-socket capacity breakdown of one server (rules
// C3, C4). Total vCores per socket is integer division of the server's
// vcores by its socket count, matching the reference "total = vcores /
// sockets" formula.
func ForServer(server vdu.ServerConfig, serverIndex int, op vdu.Operator, cat *catalogue.Catalogue) []SocketCapacity {
	perSocket := float64(server.VcoresPerSocket())
	caas := float64(cat.CaaSCoresPerSocket(op))
	shared := cat.SharedCoresPerSocket(op)

	out := make([]SocketCapacity, server.Sockets)
	for i := 0; i < server.Sockets; i++ {
		out[i] = SocketCapacity{
			Socket:         vdu.SocketID{ServerIndex: serverIndex, SocketIndex: i},
			TotalVcores:    perSocket,
			CaaSReserved:   caas,
			SharedReserved: shared,
			Available:      perSocket - caas - shared,
		}
	}
	return out
}

// AllSockets computes the capacity breakdown for every server in canonical
// (server_index, socket_index) order.
func AllSockets(req vdu.DeploymentInput, cat *catalogue.Catalogue) []SocketCapacity {
	var out []SocketCapacity
	for i, s := range req.ServerConfigs {
		out = append(out, ForServer(s, i, req.Operator, cat)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Socket.Less(out[j].Socket) })
	return out
}

// ServerAvailable sums the available capacity across one server's sockets.
func ServerAvailable(server vdu.ServerConfig, op vdu.Operator, cat *catalogue.Catalogue) float64 {
	var total float64
	for _, sc := range ForServer(server, 0, op, cat) {
		total += sc.Available
	}
	return total
}

// FleetAvailable sums available capacity across every server in the request.
func FleetAvailable(req vdu.DeploymentInput, cat *catalogue.Catalogue) float64 {
	var total float64
	for _, s := range req.ServerConfigs {
		total += ServerAvailable(s, req.Operator, cat)
	}
	return total
}

// RequiredVcores sums quantity*vcores across a set of pod requirements. Pods
// carried at 0.0 vcores (catalogue "not applicable" or unparsable `nan`/`BE`
// cells) contribute nothing, matching the open-question resolution in the
// specification's design notes.
func RequiredVcores(pods []vdu.PodRequirement) float64 {
	var total float64
	for _, p := range pods {
		total += p.TotalVcores()
	}
	return total
}

// CheckCoreConversion implements C2: vcores must equal pcores*2, and when a
// server has more than one socket, pcores_per_socket*sockets must equal
// pcores.
func CheckCoreConversion(req vdu.DeploymentInput) []vdu.Violation {
	var violations []vdu.Violation
	for i, s := range req.ServerConfigs {
		if s.Vcores != s.Pcores*2 {
			violations = append(violations, vdu.Violation{
				Tag:      "C2",
				Category: vdu.CategoryServerConfig,
				Message:  fmt.Sprintf("server %d core conversion error (%d vcores != %d pcores * 2)", i, s.Vcores, s.Pcores),
			})
			continue
		}
		if s.Sockets > 1 && s.PcoresPerSocket != 0 && s.PcoresPerSocket*s.Sockets != s.Pcores {
			violations = append(violations, vdu.Violation{
				Tag:      "C2",
				Category: vdu.CategoryServerConfig,
				Message:  fmt.Sprintf("server %d pcores_per_socket (%d) * sockets (%d) != pcores (%d)", i, s.PcoresPerSocket, s.Sockets, s.Pcores),
			})
		}
	}
	return violations
}

// CheckTotalCapacity implements C1: applied per-server, the sum of all pod
// vCore requests must not exceed that server's available capacity.
func CheckTotalCapacity(req vdu.DeploymentInput, cat *catalogue.Catalogue) []vdu.Violation {
	required := RequiredVcores(req.PodRequirements)

	var violations []vdu.Violation
	for i, s := range req.ServerConfigs {
		available := ServerAvailable(s, req.Operator, cat)
		if required > available {
			violations = append(violations, vdu.Violation{
				Tag:      "C1",
				Category: vdu.CategoryCapacity,
				Message:  fmt.Sprintf("server %d capacity exceeded (required %.1f > available %.1f)", i, required, available),
			})
		}
	}
	return violations
}

// CheckSocketFeasibility implements the C1-extension socket-feasibility
// pre-check: every individual pod requirement, taken as one block of
// vcores*quantity, must fit on at least one socket's available capacity.
func CheckSocketFeasibility(req vdu.DeploymentInput, cat *catalogue.Catalogue) []vdu.Violation {
	sockets := AllSockets(req, cat)

	var maxAvailable float64
	for _, sc := range sockets {
		if sc.Available > maxAvailable {
			maxAvailable = sc.Available
		}
	}

	var violations []vdu.Violation
	for _, pod := range req.PodRequirements {
		block := pod.TotalVcores()
		if block == 0 {
			continue
		}
		fits := false
		for _, sc := range sockets {
			if block <= sc.Available {
				fits = true
				break
			}
		}
		if !fits {
			violations = append(violations, vdu.Violation{
				Tag:      "C1",
				Category: vdu.CategoryCapacity,
				Message: fmt.Sprintf(
					"socket capacity constraint violated: %s (%.1f vCores) exceeds maximum socket capacity (%.1f vCores)",
					pod.Kind, block, maxAvailable,
				),
			})
		}
	}
	return violations
}

// CheckRMPDPPCoLocation implements the RMP-DPP co-location pre-check: unless
// in switch mode, the combined requested RMP+DPP vCores must fit on at least
// one socket.
func CheckRMPDPPCoLocation(req vdu.DeploymentInput, cat *catalogue.Catalogue) []vdu.Violation {
	if req.FeatureFlags.VduRuSwitchConnection {
		return nil
	}

	var combined float64
	for _, pod := range req.PodRequirements {
		if pod.Kind == vdu.PodRMP || pod.Kind == vdu.PodDPP {
			combined += pod.TotalVcores()
		}
	}
	if combined == 0 {
		return nil
	}

	sockets := AllSockets(req, cat)
	for _, sc := range sockets {
		if combined <= sc.Available {
			return nil
		}
	}

	var shortfalls []string
	for _, sc := range sockets {
		shortfalls = append(shortfalls, fmt.Sprintf("%s: short by %.1f", sc.Socket, combined-sc.Available))
	}
	return []vdu.Violation{{
		Tag:      "C1",
		Category: vdu.CategoryCoLocation,
		Message:  fmt.Sprintf("RMP-DPP co-location capacity constraint violated: no socket fits combined %.1f vCores", combined),
		Detail:   fmt.Sprintf("per-socket shortfalls: %v", shortfalls),
	}}
}
