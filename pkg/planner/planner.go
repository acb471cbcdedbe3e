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

// Package planner implements the Placement Planner: it assigns the enriched
// pod set to sockets in a fixed, deterministic sequence of strata (anti-
// affinity, RMP/DPP pairing, DirectX2 co-location, IIP server separation,
// residual bin-packing), honoring canonical (server_index, socket_index)
// socket ordering and input-order pod iteration throughout.
package planner

import (
	"fmt"
	"sort"

	"github.com/asquaree/pod-placement-ai/pkg/capacity"
	"github.com/asquaree/pod-placement-ai/pkg/catalogue"
	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// PlacedPod is one instance (one unit of a PodRequirement's quantity) placed
// onto a socket.
type PlacedPod struct {
	Kind   vdu.PodKind
	Vcores float64
}

// Plan is the planner's output: a mapping of socket to its ordered list of
// placed pod instances. The plan owns its assignment lists exclusively until
// the Orchestrator moves it into a ValidationOutcome.
type Plan struct {
	Sockets     []vdu.SocketID
	Assignments map[vdu.SocketID][]PlacedPod
	capacities  map[vdu.SocketID]capacity.SocketCapacity
}

// SocketsHosting returns, in canonical order, the sockets that host at least
// one instance of kind.
func (p *Plan) SocketsHosting(kind vdu.PodKind) []vdu.SocketID {
	var out []vdu.SocketID
	for _, sock := range p.Sockets {
		for _, placed := range p.Assignments[sock] {
			if placed.Kind == kind {
				out = append(out, sock)
				break
			}
		}
	}
	return out
}

// CountOf returns how many instances of kind the plan has placed in total.
func (p *Plan) CountOf(kind vdu.PodKind) int {
	n := 0
	for _, sock := range p.Sockets {
		for _, placed := range p.Assignments[sock] {
			if placed.Kind == kind {
				n++
			}
		}
	}
	return n
}

// Used returns the vCores already assigned to sock.
func (p *Plan) Used(sock vdu.SocketID) float64 {
	var total float64
	for _, placed := range p.Assignments[sock] {
		total += placed.Vcores
	}
	return total
}

// Available returns the socket's usable capacity (C3/C4 formula), regardless
// of how much of it has been consumed by the plan so far.
func (p *Plan) Available(sock vdu.SocketID) float64 {
	return p.capacities[sock].Available
}

// Remaining returns the socket's unused capacity.
func (p *Plan) Remaining(sock vdu.SocketID) float64 {
	return p.Available(sock) - p.Used(sock)
}

func (p *Plan) place(sock vdu.SocketID, kind vdu.PodKind, vcores float64) {
	p.Assignments[sock] = append(p.Assignments[sock], PlacedPod{Kind: kind, Vcores: vcores})
}

type unit struct {
	kind   vdu.PodKind
	vcores float64
}

// expand turns a list of PodRequirements into one unit per quantity
// increment, preserving input order within and across kinds.
func expand(pods []vdu.PodRequirement) []unit {
	var out []unit
	for _, p := range pods {
		for i := 0; i < p.Quantity; i++ {
			out = append(out, unit{kind: p.Kind, vcores: p.Vcores})
		}
	}
	return out
}

func newPlan(req vdu.DeploymentInput, cat *catalogue.Catalogue) *Plan {
	p := &Plan{
		Assignments: make(map[vdu.SocketID][]PlacedPod),
		capacities:  make(map[vdu.SocketID]capacity.SocketCapacity),
	}
	for _, sc := range capacity.AllSockets(req, cat) {
		p.Sockets = append(p.Sockets, sc.Socket)
		p.capacities[sc.Socket] = sc
	}
	sort.Slice(p.Sockets, func(i, j int) bool { return p.Sockets[i].Less(p.Sockets[j]) })
	return p
}

// Build runs the fixed placement pipeline (Steps 0-4 of the specification)
// and returns either a complete plan or the violations that made placement
// infeasible.
func Build(req vdu.DeploymentInput, cat *catalogue.Catalogue) (*Plan, []vdu.Violation) {
	plan := newPlan(req, cat)

	// Step 0: anti-affinity feasibility.
	dppCount := countPods(req.PodRequirements, vdu.PodDPP)
	cmpCount := countPods(req.PodRequirements, vdu.PodCMP)
	required := 0
	if req.FeatureFlags.InServiceUpgrade && dppCount > required {
		required = dppCount
	}
	if req.FeatureFlags.HAEnabled && cmpCount > required {
		required = cmpCount
	}
	if required > len(plan.Sockets) {
		return nil, []vdu.Violation{{
			Tag:      "PLAN",
			Category: vdu.CategoryAntiAffinity,
			Message:  fmt.Sprintf("anti-affinity infeasible: need %d sockets, have %d", required, len(plan.Sockets)),
		}}
	}

	remaining := expand(req.PodRequirements)
	remaining, dppSockets, violation := placeAntiAffinity(plan, remaining, vdu.PodDPP, req.FeatureFlags.InServiceUpgrade)
	if violation != nil {
		return nil, []vdu.Violation{*violation}
	}
	remaining, _, violation = placeAntiAffinity(plan, remaining, vdu.PodCMP, req.FeatureFlags.HAEnabled)
	if violation != nil {
		return nil, []vdu.Violation{*violation}
	}

	// Step 1b: RMP paired one-to-one with anti-affinity-placed DPP, in
	// normal (non-switch) mode.
	if !req.FeatureFlags.VduRuSwitchConnection && len(dppSockets) > 0 {
		remaining = pairRMPWithDPP(plan, remaining, dppSockets)
	}

	// Step 2: DirectX2 co-location stratum.
	if req.FeatureFlags.DirectX2Required {
		var violation *vdu.Violation
		remaining, violation = placeDirectX2(plan, remaining)
		if violation != nil {
			return nil, []vdu.Violation{*violation}
		}
	}

	// Step 2b: IIP server separation. IPP must already be placed before this
	// stratum runs, or its server is indistinguishable from an unplaced one;
	// place it now (unless DirectX2 co-location already did so above).
	remaining = placeIPPIfAbsent(plan, remaining)
	ippServers := serversHosting(plan, vdu.PodIPP)
	var violation2 *vdu.Violation
	remaining, violation2 = placeIIPSeparated(plan, remaining, ippServers)
	if violation2 != nil {
		return nil, []vdu.Violation{*violation2}
	}

	// Step 3: non-RMP residuals.
	remaining = placeResiduals(plan, remaining, func(k vdu.PodKind) bool { return k != vdu.PodRMP })

	// Step 4: RMP residuals.
	remaining = placeRMPResiduals(plan, remaining, req.FeatureFlags.VduRuSwitchConnection)

	if len(remaining) > 0 {
		return nil, []vdu.Violation{unplacedViolation(plan, remaining)}
	}

	return plan, nil
}

func countPods(pods []vdu.PodRequirement, kind vdu.PodKind) int {
	n := 0
	for _, p := range pods {
		if p.Kind == kind {
			n += p.Quantity
		}
	}
	return n
}

// placeAntiAffinity assigns each instance of kind to a distinct socket in
// canonical order, round-robining if there are more sockets than instances.
// It returns the remaining (non-kind) units, the sockets chosen (in
// placement order), and a violation if capacity ran out.
func placeAntiAffinity(plan *Plan, units []unit, kind vdu.PodKind, active bool) ([]unit, []vdu.SocketID, *vdu.Violation) {
	if !active {
		return units, nil, nil
	}

	var kindUnits []unit
	var rest []unit
	for _, u := range units {
		if u.kind == kind {
			kindUnits = append(kindUnits, u)
		} else {
			rest = append(rest, u)
		}
	}
	if len(kindUnits) == 0 {
		return units, nil, nil
	}

	var chosen []vdu.SocketID
	socketIdx := 0
	usedSockets := make(map[vdu.SocketID]bool)
	for _, u := range kindUnits {
		placed := false
		for attempts := 0; attempts < len(plan.Sockets); attempts++ {
			sock := plan.Sockets[socketIdx%len(plan.Sockets)]
			socketIdx++
			if usedSockets[sock] {
				continue
			}
			if plan.Remaining(sock) >= u.vcores {
				plan.place(sock, kind, u.vcores)
				usedSockets[sock] = true
				chosen = append(chosen, sock)
				placed = true
				break
			}
		}
		if !placed {
			return nil, nil, &vdu.Violation{
				Tag:      "PLAN",
				Category: vdu.CategoryAntiAffinity,
				Message:  fmt.Sprintf("could not place %s instance under anti-affinity: no socket with sufficient distinct capacity", kind),
			}
		}
	}

	return rest, chosen, nil
}

// pairRMPWithDPP places one RMP instance on each socket that hosts an
// anti-affinity-placed DPP, consuming RMP units from the remaining pool
// (oldest first) to avoid double-counting the aggregate RMP requirement.
func pairRMPWithDPP(plan *Plan, units []unit, dppSockets []vdu.SocketID) []unit {
	var rmpUnits []unit
	var rest []unit
	for _, u := range units {
		if u.kind == vdu.PodRMP {
			rmpUnits = append(rmpUnits, u)
		} else {
			rest = append(rest, u)
		}
	}

	vcores := 0.5
	if len(rmpUnits) > 0 {
		vcores = rmpUnits[0].vcores
	}

	consumed := 0
	for _, sock := range dppSockets {
		if consumed >= len(rmpUnits) {
			break
		}
		plan.place(sock, vdu.PodRMP, vcores)
		consumed++
	}

	rest = append(rest, rmpUnits[consumed:]...)
	return rest
}

// directX2Kinds is the mandatory DirectX2 co-location set.
var directX2Kinds = map[vdu.PodKind]bool{vdu.PodIPP: true, vdu.PodCSP: true, vdu.PodUPP: true}

// placeDirectX2 finds the first socket (canonical order) whose remaining
// capacity accommodates the combined vCores of every DirectX2-mandatory pod
// still unplaced, and places them all there.
func placeDirectX2(plan *Plan, units []unit) ([]unit, *vdu.Violation) {
	var group []unit
	var rest []unit
	for _, u := range units {
		if directX2Kinds[u.kind] {
			group = append(group, u)
		} else {
			rest = append(rest, u)
		}
	}
	if len(group) == 0 {
		return units, nil
	}

	var combined float64
	for _, u := range group {
		combined += u.vcores
	}

	for _, sock := range plan.Sockets {
		if plan.Remaining(sock) >= combined {
			for _, u := range group {
				plan.place(sock, u.kind, u.vcores)
			}
			return rest, nil
		}
	}

	return nil, &vdu.Violation{
		Tag:      "O4",
		Category: vdu.CategoryCoLocation,
		Message:  fmt.Sprintf("DirectX2 co-location failed: no socket fits combined %.1f vCores for IPP+CSP+UPP", combined),
	}
}

// placeIPPIfAbsent places any still-pending IPP units on the first socket
// (canonical order) with sufficient capacity. IPP participates in no
// anti-affinity or co-location stratum of its own outside DirectX2, but its
// server must be known before Step 2b can separate IIP from it.
func placeIPPIfAbsent(plan *Plan, units []unit) []unit {
	if len(plan.SocketsHosting(vdu.PodIPP)) > 0 {
		return units
	}
	return placeResiduals(plan, units, func(k vdu.PodKind) bool { return k == vdu.PodIPP })
}

func serversHosting(plan *Plan, kind vdu.PodKind) map[int]bool {
	servers := make(map[int]bool)
	for _, sock := range plan.SocketsHosting(kind) {
		servers[sock.ServerIndex] = true
	}
	return servers
}

// placeIIPSeparated places each pending IIP unit on some socket whose server
// does not already host IPP.
func placeIIPSeparated(plan *Plan, units []unit, ippServers map[int]bool) ([]unit, *vdu.Violation) {
	var iipUnits []unit
	var rest []unit
	for _, u := range units {
		if u.kind == vdu.PodIIP {
			iipUnits = append(iipUnits, u)
		} else {
			rest = append(rest, u)
		}
	}
	if len(iipUnits) == 0 {
		return units, nil
	}

	usedServers := make(map[int]bool)
	for _, u := range iipUnits {
		placed := false
		for _, sock := range plan.Sockets {
			if ippServers[sock.ServerIndex] || usedServers[sock.ServerIndex] {
				continue
			}
			if plan.Remaining(sock) >= u.vcores {
				plan.place(sock, vdu.PodIIP, u.vcores)
				usedServers[sock.ServerIndex] = true
				placed = true
				break
			}
		}
		if !placed {
			return nil, &vdu.Violation{
				Tag:      "O1",
				Category: vdu.CategoryPlacement,
				Message:  "could not place IIP on a server separate from IPP with sufficient capacity",
			}
		}
	}

	return rest, nil
}

// placeResiduals iterates sockets in canonical order, greedily placing
// whichever pending units (matching the given filter) fit.
func placeResiduals(plan *Plan, units []unit, filter func(vdu.PodKind) bool) []unit {
	var rest []unit
	for _, u := range units {
		if !filter(u.kind) {
			rest = append(rest, u)
			continue
		}
		placed := false
		for _, sock := range plan.Sockets {
			if plan.Remaining(sock) >= u.vcores {
				plan.place(sock, u.kind, u.vcores)
				placed = true
				break
			}
		}
		if !placed {
			rest = append(rest, u)
		}
	}
	return rest
}

// placeRMPResiduals places RMP units only on sockets that already host a DPP
// (the M3 co-location requirement), unless switch mode relaxes that to any
// socket with capacity. M3 requires RMP and DPP to pair one-to-one by
// socket, so every DPP-hosting socket must receive its own RMP before a
// second RMP is ever allowed onto a socket that already has one: each RMP
// unit first tries only sockets with zero RMP so far, and only falls back to
// an already-paired socket (or, in switch mode, any socket) once no
// still-unpaired socket has room for it.
func placeRMPResiduals(plan *Plan, units []unit, switchMode bool) []unit {
	dppSockets := make(map[vdu.SocketID]bool)
	for _, sock := range plan.SocketsHosting(vdu.PodDPP) {
		dppSockets[sock] = true
	}
	rmpPerSocket := make(map[vdu.SocketID]int)
	for _, sock := range plan.Sockets {
		rmpPerSocket[sock] = countInSocket(plan, sock, vdu.PodRMP)
	}

	var rest, rmpUnits []unit
	for _, u := range units {
		if u.kind != vdu.PodRMP {
			rest = append(rest, u)
			continue
		}
		rmpUnits = append(rmpUnits, u)
	}

	for _, u := range rmpUnits {
		sock, ok := pickRMPSocket(plan, dppSockets, rmpPerSocket, u.vcores, switchMode, true)
		if !ok {
			sock, ok = pickRMPSocket(plan, dppSockets, rmpPerSocket, u.vcores, switchMode, false)
		}
		if !ok {
			rest = append(rest, u)
			continue
		}
		plan.place(sock, vdu.PodRMP, u.vcores)
		rmpPerSocket[sock]++
	}
	return rest
}

// pickRMPSocket returns the first socket, in canonical order, with enough
// remaining capacity for one RMP unit. When preferUnpaired is true, only
// DPP-hosting sockets with no RMP placed yet are considered; otherwise any
// eligible socket (DPP-hosting, or any socket under switch mode) is.
func pickRMPSocket(plan *Plan, dppSockets map[vdu.SocketID]bool, rmpPerSocket map[vdu.SocketID]int, vcores float64, switchMode, preferUnpaired bool) (vdu.SocketID, bool) {
	for _, sock := range plan.Sockets {
		if !switchMode && !dppSockets[sock] {
			continue
		}
		if preferUnpaired && rmpPerSocket[sock] > 0 {
			continue
		}
		if plan.Remaining(sock) >= vcores {
			return sock, true
		}
	}
	return vdu.SocketID{}, false
}

// countInSocket returns how many instances of kind are assigned to sock.
func countInSocket(plan *Plan, sock vdu.SocketID, kind vdu.PodKind) int {
	n := 0
	for _, placed := range plan.Assignments[sock] {
		if placed.Kind == kind {
			n++
		}
	}
	return n
}

func unplacedViolation(plan *Plan, units []unit) vdu.Violation {
	byKind := make(map[vdu.PodKind]int)
	for _, u := range units {
		byKind[u.kind]++
	}
	var kinds []string
	for k, n := range byKind {
		kinds = append(kinds, fmt.Sprintf("%s x%d", k, n))
	}
	sort.Strings(kinds)

	var socketLoads []string
	for _, sock := range plan.Sockets {
		socketLoads = append(socketLoads, fmt.Sprintf("%s: %.1f/%.1f", sock, plan.Used(sock), plan.Available(sock)))
	}

	return vdu.Violation{
		Tag:      "PLAN",
		Category: vdu.CategoryPlacement,
		Message:  fmt.Sprintf("unable to place all pods: unplaced %v", kinds),
		Detail:   fmt.Sprintf("final socket capacities: %v", socketLoads),
	}
}
