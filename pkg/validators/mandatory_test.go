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
	"testing"

	"github.com/asquaree/pod-placement-ai/pkg/planner"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

func TestM1MissingMandatoryPods(t *testing.T) {
	req := vdu.DeploymentInput{
		PodRequirements: []vdu.PodRequirement{
			{Kind: vdu.PodDPP, Vcores: 1, Quantity: 1},
		},
	}
	violations := M1(req)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %v", violations)
	}
}

func TestM1AllMandatoryPresent(t *testing.T) {
	var reqs []vdu.PodRequirement
	for _, k := range vdu.MandatoryPodKinds() {
		reqs = append(reqs, vdu.PodRequirement{Kind: k, Vcores: 1, Quantity: 1})
	}
	req := vdu.DeploymentInput{PodRequirements: reqs}
	if violations := M1(req); len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
}

func TestM2InServiceUpgradeRejectsTwoDPPOnOneSocket(t *testing.T) {
	plan := &planner.Plan{
		Sockets: []vdu.SocketID{{ServerIndex: 0, SocketIndex: 0}},
		Assignments: map[vdu.SocketID][]planner.PlacedPod{
			{ServerIndex: 0, SocketIndex: 0}: {
				{Kind: vdu.PodDPP}, {Kind: vdu.PodDPP},
			},
		},
	}
	req := vdu.DeploymentInput{FeatureFlags: vdu.FeatureFlags{InServiceUpgrade: true}}
	if violations := M2(req, plan); len(violations) != 1 {
		t.Fatalf("expected anti-affinity violation, got %v", violations)
	}
}

func TestM3SwitchModeRequiresExactlyOneRMP(t *testing.T) {
	plan := &planner.Plan{
		Sockets: []vdu.SocketID{{ServerIndex: 0, SocketIndex: 0}},
		Assignments: map[vdu.SocketID][]planner.PlacedPod{
			{ServerIndex: 0, SocketIndex: 0}: {
				{Kind: vdu.PodRMP}, {Kind: vdu.PodRMP},
			},
		},
	}
	req := vdu.DeploymentInput{FeatureFlags: vdu.FeatureFlags{VduRuSwitchConnection: true}}
	if violations := M3(req, plan); len(violations) != 1 {
		t.Fatalf("expected switch-mode RMP cardinality violation, got %v", violations)
	}
}

// TestM3RejectsDPPSocketWithoutPairedRMP is the M3-side defense-in-depth for
// the RMP/DPP pairing bug: a plan with RMP count == DPP count overall, and
// no orphan RMP, can still leave one DPP-hosting socket without its own RMP
// if two RMP units land on the same socket. M3 must flag that, not just
// check aggregate counts and orphan RMP.
func TestM3RejectsDPPSocketWithoutPairedRMP(t *testing.T) {
	sock0 := vdu.SocketID{ServerIndex: 0, SocketIndex: 0}
	sock1 := vdu.SocketID{ServerIndex: 1, SocketIndex: 0}
	plan := &planner.Plan{
		Sockets: []vdu.SocketID{sock0, sock1},
		Assignments: map[vdu.SocketID][]planner.PlacedPod{
			sock0: {{Kind: vdu.PodDPP}, {Kind: vdu.PodRMP}, {Kind: vdu.PodRMP}},
			sock1: {{Kind: vdu.PodDPP}},
		},
	}
	req := vdu.DeploymentInput{}
	violations := M3(req, plan)
	if len(violations) != 1 {
		t.Fatalf("expected a violation for the unpaired DPP socket, got %v", violations)
	}
}

func TestM4HARequiresTwoCMPOnDistinctSockets(t *testing.T) {
	sock0 := vdu.SocketID{ServerIndex: 0, SocketIndex: 0}
	plan := &planner.Plan{
		Sockets: []vdu.SocketID{sock0},
		Assignments: map[vdu.SocketID][]planner.PlacedPod{
			sock0: {{Kind: vdu.PodCMP}, {Kind: vdu.PodCMP}},
		},
	}
	req := vdu.DeploymentInput{FeatureFlags: vdu.FeatureFlags{HAEnabled: true}}
	violations := M4(req, plan)
	if len(violations) != 1 {
		t.Fatalf("expected HA anti-affinity violation for co-located CMP, got %v", violations)
	}
}
