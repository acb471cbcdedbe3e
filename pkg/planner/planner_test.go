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

package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
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
	os.WriteFile(path, []byte(doc), 0o644)
	cat, err := catalogue.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func TestAntiAffinityInfeasibility(t *testing.T) {
	cat := testCatalogue(t)
	req := vdu.DeploymentInput{
		Operator:      vdu.OperatorVOS,
		ServerConfigs: []vdu.ServerConfig{{Pcores: 32, Vcores: 64, Sockets: 1}},
		PodRequirements: []vdu.PodRequirement{
			{Kind: vdu.PodCMP, Vcores: 0.2, Quantity: 2},
		},
		FeatureFlags: vdu.FeatureFlags{HAEnabled: true},
	}
	_, violations := Build(req, cat)
	if len(violations) != 1 {
		t.Fatalf("expected anti-affinity infeasibility violation, got %v", violations)
	}
}

func TestHAEnabledTwoSocketsSeparatesCMP(t *testing.T) {
	cat := testCatalogue(t)
	req := vdu.DeploymentInput{
		Operator: vdu.OperatorVOS,
		ServerConfigs: []vdu.ServerConfig{
			{Pcores: 24, Vcores: 48, Sockets: 1},
			{Pcores: 24, Vcores: 48, Sockets: 1},
		},
		PodRequirements: []vdu.PodRequirement{
			{Kind: vdu.PodCMP, Vcores: 0.2, Quantity: 2},
		},
		FeatureFlags: vdu.FeatureFlags{HAEnabled: true},
	}
	plan, violations := Build(req, cat)
	if len(violations) != 0 {
		t.Fatalf("expected successful plan, got violations %v", violations)
	}
	sockets := plan.SocketsHosting(vdu.PodCMP)
	if len(sockets) != 2 || sockets[0] == sockets[1] {
		t.Errorf("expected 2 CMP instances on 2 distinct sockets, got %v", sockets)
	}
}

func TestInServiceUpgradeSeparatesDPPAndPairsRMP(t *testing.T) {
	cat := testCatalogue(t)
	req := vdu.DeploymentInput{
		Operator: vdu.OperatorVOS,
		ServerConfigs: []vdu.ServerConfig{
			{Pcores: 24, Vcores: 48, Sockets: 1},
			{Pcores: 24, Vcores: 48, Sockets: 1},
		},
		PodRequirements: []vdu.PodRequirement{
			{Kind: vdu.PodDPP, Vcores: 10, Quantity: 2},
			{Kind: vdu.PodRMP, Vcores: 0.5, Quantity: 2},
		},
		FeatureFlags: vdu.FeatureFlags{InServiceUpgrade: true},
	}
	plan, violations := Build(req, cat)
	if len(violations) != 0 {
		t.Fatalf("expected successful plan, got violations %v", violations)
	}
	for _, sock := range plan.SocketsHosting(vdu.PodDPP) {
		hasRMP := false
		for _, p := range plan.Assignments[sock] {
			if p.Kind == vdu.PodRMP {
				hasRMP = true
			}
		}
		if !hasRMP {
			t.Errorf("expected socket %s hosting DPP to also host a paired RMP", sock)
		}
	}
}

// TestResidualRMPPairsEveryDPPSocketBeforeDoublingUp exercises the bug
// report's concrete scenario: two single-socket servers, two separate DPP
// requirements (one per server, pure capacity spill rather than
// anti-affinity), and two RMP residual units. Before the fix,
// placeRMPResiduals always walked sockets in canonical order and stopped at
// the first DPP-hosting socket with room, so both RMP units landed on socket
// 0 and socket 1's DPP went unpaired -- yet M3 only checked RMP count ==
// DPP count and for an orphan RMP, never for an orphan DPP, so the plan
// reported success. This asserts every DPP-hosting socket gets its own RMP.
func TestResidualRMPPairsEveryDPPSocketBeforeDoublingUp(t *testing.T) {
	cat := testCatalogue(t)
	req := vdu.DeploymentInput{
		Operator: vdu.OperatorVOS,
		ServerConfigs: []vdu.ServerConfig{
			{Pcores: 24, Vcores: 48, Sockets: 1},
			{Pcores: 24, Vcores: 48, Sockets: 1},
		},
		PodRequirements: []vdu.PodRequirement{
			{Kind: vdu.PodDPP, Vcores: 40, Quantity: 1},
			{Kind: vdu.PodDPP, Vcores: 40, Quantity: 1},
			{Kind: vdu.PodRMP, Vcores: 0.5, Quantity: 2},
		},
	}
	plan, violations := Build(req, cat)
	if len(violations) != 0 {
		t.Fatalf("expected a successful plan, got violations %v", violations)
	}
	dppSockets := plan.SocketsHosting(vdu.PodDPP)
	if len(dppSockets) != 2 {
		t.Fatalf("expected DPP spilled across both sockets (capacity, not anti-affinity), got %v", dppSockets)
	}
	for _, sock := range dppSockets {
		hasRMP := false
		for _, p := range plan.Assignments[sock] {
			if p.Kind == vdu.PodRMP {
				hasRMP = true
			}
		}
		if !hasRMP {
			t.Errorf("expected socket %s hosting DPP to also host its own paired RMP, got assignments %v", sock, plan.Assignments[sock])
		}
	}
}

func TestSwitchModeSingleRMPAnySocket(t *testing.T) {
	cat := testCatalogue(t)
	req := vdu.DeploymentInput{
		Operator:      vdu.OperatorVOS,
		ServerConfigs: []vdu.ServerConfig{{Pcores: 24, Vcores: 48, Sockets: 1}},
		PodRequirements: []vdu.PodRequirement{
			{Kind: vdu.PodDPP, Vcores: 5, Quantity: 1},
			{Kind: vdu.PodRMP, Vcores: 0.5, Quantity: 1},
		},
		FeatureFlags: vdu.FeatureFlags{VduRuSwitchConnection: true},
	}
	plan, violations := Build(req, cat)
	if len(violations) != 0 {
		t.Fatalf("expected successful plan, got %v", violations)
	}
	if plan.CountOf(vdu.PodRMP) != 1 {
		t.Errorf("expected exactly 1 RMP placed, got %d", plan.CountOf(vdu.PodRMP))
	}
}

func TestDirectX2CoLocation(t *testing.T) {
	cat := testCatalogue(t)
	req := vdu.DeploymentInput{
		Operator: vdu.OperatorVOS,
		ServerConfigs: []vdu.ServerConfig{
			{Pcores: 24, Vcores: 48, Sockets: 2},
		},
		PodRequirements: []vdu.PodRequirement{
			{Kind: vdu.PodIPP, Vcores: 4, Quantity: 1},
			{Kind: vdu.PodCSP, Vcores: 2, Quantity: 1},
			{Kind: vdu.PodUPP, Vcores: 2, Quantity: 1},
		},
		FeatureFlags: vdu.FeatureFlags{DirectX2Required: true},
	}
	plan, violations := Build(req, cat)
	if len(violations) != 0 {
		t.Fatalf("expected successful plan, got %v", violations)
	}
	ippSockets := plan.SocketsHosting(vdu.PodIPP)
	cspSockets := plan.SocketsHosting(vdu.PodCSP)
	uppSockets := plan.SocketsHosting(vdu.PodUPP)
	if len(ippSockets) != 1 || len(cspSockets) != 1 || len(uppSockets) != 1 || ippSockets[0] != cspSockets[0] || cspSockets[0] != uppSockets[0] {
		t.Errorf("expected IPP/CSP/UPP co-located on one socket, got %v %v %v", ippSockets, cspSockets, uppSockets)
	}
}
