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

// Package enrich implements the Requirement Enricher: the idempotent,
// non-mutating transformation from a base DeploymentInput's pod list to the
// operator-mandated enriched pod list (IPP, IIP fan-out, vCU, DirectX2's
// CSP/UPP, vCSR).
package enrich

import (
	"github.com/mohae/deepcopy"

	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// Enrich returns a new DeploymentInput whose PodRequirements include every
// operator-mandated derived pod. The caller's request, and its pod slice in
// particular, is never mutated -- Enrich deep-copies the slice before
// appending, so callers may safely pass the same request through Enrich
// repeatedly (idempotence, property 6) without corrupting a shared base
// request.
func Enrich(req vdu.DeploymentInput, cat *catalogue.Catalogue) vdu.DeploymentInput {
	copied := deepcopy.Copy(req.PodRequirements).([]vdu.PodRequirement)
	out := req
	out.PodRequirements = copied

	if req.Operator != vdu.OperatorVOS {
		// Non-VOS operators pass through unchanged; their base requirements
		// are trusted as-is.
		return out
	}

	out.PodRequirements = enrichIPP(out.PodRequirements)
	out.PodRequirements = enrichIIP(out.PodRequirements, req, cat)
	out.PodRequirements = enrichVCU(out.PodRequirements, req, cat)
	out.PodRequirements = enrichDirectX2(out.PodRequirements, req)
	out.PodRequirements = enrichVCSR(out.PodRequirements, req, cat)

	return out
}

func hasKind(pods []vdu.PodRequirement, kind vdu.PodKind) bool {
	for _, p := range pods {
		if p.Kind == kind {
			return true
		}
	}
	return false
}

func countKind(pods []vdu.PodRequirement, kind vdu.PodKind) int {
	total := 0
	for _, p := range pods {
		if p.Kind == kind {
			total += p.Quantity
		}
	}
	return total
}

// enrichIPP appends exactly one IPP pod if not already present.
func enrichIPP(pods []vdu.PodRequirement) []vdu.PodRequirement {
	if hasKind(pods, vdu.PodIPP) {
		return pods
	}
	return append(pods, vdu.PodRequirement{Kind: vdu.PodIPP, Vcores: 4.0, Quantity: 1})
}

// enrichIIP implements the special-flavour and multi-server IIP fan-out
// rules. Idempotent: if any IIP is already present, nothing is added; the
// quantity of the existing IIP is not checked here.
func enrichIIP(pods []vdu.PodRequirement, base vdu.DeploymentInput, cat *catalogue.Catalogue) []vdu.PodRequirement {
	if countKind(pods, vdu.PodIIP) > 0 {
		return pods
	}

	if cat.IsSpecialFlavor(base.VduFlavorName) {
		return append(pods, vdu.PodRequirement{Kind: vdu.PodIIP, Vcores: 4.0, Quantity: 1})
	}

	serverCount := base.NumberOfServers()
	if serverCount > 1 {
		return append(pods, vdu.PodRequirement{Kind: vdu.PodIIP, Vcores: 4.0, Quantity: serverCount - 1})
	}

	return pods
}

// enrichVCU appends one vCU pod, sized per the catalogue's flavour table,
// when vCU deployment was requested.
func enrichVCU(pods []vdu.PodRequirement, base vdu.DeploymentInput, cat *catalogue.Catalogue) []vdu.PodRequirement {
	if !base.FeatureFlags.VcuDeploymentRequired {
		return pods
	}
	if hasKind(pods, vdu.PodVCU) {
		return pods
	}
	vcores := cat.VCUVcores(base.VduFlavorName)
	return append(pods, vdu.PodRequirement{Kind: vdu.PodVCU, Vcores: float64(vcores), Quantity: 1})
}

// enrichDirectX2 appends CSP and UPP (2.0 vCores each) if DirectX2 was
// requested and they are not already present.
func enrichDirectX2(pods []vdu.PodRequirement, base vdu.DeploymentInput) []vdu.PodRequirement {
	if !base.FeatureFlags.DirectX2Required {
		return pods
	}
	if !hasKind(pods, vdu.PodCSP) {
		pods = append(pods, vdu.PodRequirement{Kind: vdu.PodCSP, Vcores: 2.0, Quantity: 1})
	}
	if !hasKind(pods, vdu.PodUPP) {
		pods = append(pods, vdu.PodRequirement{Kind: vdu.PodUPP, Vcores: 2.0, Quantity: 1})
	}
	return pods
}

// enrichVCSR appends one vCSR pod when requested and the flavour supports
// it. When the catalogue has no vCSR sizing for the flavour, no pod is
// added here; rule O5 later raises the "unsupported flavour" violation.
func enrichVCSR(pods []vdu.PodRequirement, base vdu.DeploymentInput, cat *catalogue.Catalogue) []vdu.PodRequirement {
	if !base.FeatureFlags.VcsrDeploymentRequired {
		return pods
	}
	if hasKind(pods, vdu.PodVCSR) {
		return pods
	}
	vcores := cat.VCSRVcores(base.VduFlavorName)
	if vcores == 0 {
		return pods
	}
	return append(pods, vdu.PodRequirement{Kind: vdu.PodVCSR, Vcores: float64(vcores), Quantity: 1})
}
