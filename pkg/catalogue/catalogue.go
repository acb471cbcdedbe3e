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

// Package catalogue loads the Rule Catalogue: the operator-keyed tables of
// supported server shapes, CaaS/shared core reservations and per-flavor pod
// sizing that the rest of the engine treats as read-only facts. Loading
// follows the same two-stage shape as a typical YAML-backed config package:
// an unexported "in file" struct that mirrors the document on disk, and a
// compiled, validated public Catalogue built from it.
//
// The catalogue file itself, and how it reaches the process, is an external
// collaborator: this package defines the YAML shape, reads and parses one
// file in Load, and exposes the query surface.
package catalogue

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sapcc/go-bits/errext"
	"gopkg.in/yaml.v2"

	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// serverConfigInFile is the raw YAML shape of one supported server option.
type serverConfigInFile struct {
	Pcores          int    `yaml:"pcores"`
	Vcores          int    `yaml:"vcores"`
	Sockets         int    `yaml:"sockets"`
	PcoresPerSocket int    `yaml:"pcores_per_socket"`
	Description     string `yaml:"description"`
}

type flavorVcoresInFile struct {
	Vcores int `yaml:"vcores"`
}

type vcsrDefaultServerConfigInFile struct {
	Pcores  int `yaml:"pcores"`
	Sockets int `yaml:"sockets"`
}

type sharedCoreRulesInFile struct {
	OperatorSpecific map[string]float64 `yaml:"operator_specific"`
	GlobalMinimum    float64            `yaml:"global_minimum"`
}

// catalogueInFile is the raw, unvalidated shape of the on-disk catalogue
// document. It is deliberately permissive (maps of strings) so that loading
// never panics on an operator name; compile() turns it into typed,
// cross-checked data.
type catalogueInFile struct {
	MandatoryPods []string `yaml:"mandatory_pods"`

	ServerConfigurations map[string][]serverConfigInFile `yaml:"server_configurations"`

	CaaSCoresPerSocket map[string]int `yaml:"caas_cores_per_socket"`

	SharedCores sharedCoreRulesInFile `yaml:"shared_cores_per_socket"`

	SpecialFlavors []string `yaml:"special_flavors"`

	VCUFlavorMapping map[string]flavorVcoresInFile `yaml:"vcu_flavor_mapping"`

	VCSRFlavorMapping     map[string]flavorVcoresInFile `yaml:"vcsr_flavor_mapping"`
	VCSRDefaultServerConf *vcsrDefaultServerConfigInFile `yaml:"vcsr_default_server_config"`

	RuleCategories map[string]string `yaml:"rule_categories"`

	SearchKeys searchKeysInFile `yaml:"search_keys"`
}

type searchKeysInFile struct {
	ByOperator map[string][]string `yaml:"by_operator"`
	ByFeature  map[string][]string `yaml:"by_feature"`
}

// Catalogue is the compiled, validated Rule Catalogue used by the rest of
// the engine. All lookups are pure map reads: no file I/O happens after Load.
type Catalogue struct {
	mandatoryPods []vdu.PodKind

	serverConfigs map[vdu.Operator][]vdu.ServerConfig

	caasCoresPerSocket map[vdu.Operator]int

	sharedCoresOperatorSpecific map[vdu.Operator]float64
	sharedCoresGlobalMinimum    float64

	specialFlavors map[string]bool

	vcuVcoresByFlavor  map[string]int
	vcsrVcoresByFlavor map[string]int

	vcsrDefaultServerConfig *vdu.ServerConfig

	ruleCategories map[string]string

	rulesByOperator map[vdu.Operator][]string
	rulesByFeature  map[string][]string
}

// Load reads and compiles a catalogue document from path.
func Load(path string) (*Catalogue, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read rule catalogue %s: %w", path, err)
	}

	var raw catalogueInFile
	err = yaml.UnmarshalStrict(buf, &raw)
	if err != nil {
		return nil, fmt.Errorf("cannot parse rule catalogue %s: %w", path, err)
	}

	cat, errs := compile(raw)
	if !errs.IsEmpty() {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid rule catalogue %s: %s", path, strings.Join(msgs, "; "))
	}
	return cat, nil
}

// compile validates the raw document and builds the typed Catalogue,
// accumulating every problem found rather than failing on the first one --
// the same pattern the rest of the engine uses for reporting violations.
func compile(raw catalogueInFile) (*Catalogue, errext.ErrorSet) {
	var errs errext.ErrorSet

	cat := &Catalogue{
		serverConfigs:               make(map[vdu.Operator][]vdu.ServerConfig),
		caasCoresPerSocket:          make(map[vdu.Operator]int),
		sharedCoresOperatorSpecific: make(map[vdu.Operator]float64),
		specialFlavors:              make(map[string]bool),
		vcuVcoresByFlavor:           make(map[string]int),
		vcsrVcoresByFlavor:         make(map[string]int),
		ruleCategories:              make(map[string]string),
		rulesByOperator:             make(map[vdu.Operator][]string),
		rulesByFeature:              make(map[string][]string),
	}

	if len(raw.MandatoryPods) == 0 {
		errs.Addf("missing configuration value: mandatory_pods")
	}
	for _, name := range raw.MandatoryPods {
		cat.mandatoryPods = append(cat.mandatoryPods, vdu.PodKind(name))
	}

	for opName, configs := range raw.ServerConfigurations {
		op := vdu.Operator(opName)
		if !op.Valid() {
			errs.Addf("unknown operator in server_configurations: %s", opName)
			continue
		}
		for i, c := range configs {
			sc := vdu.ServerConfig{
				Pcores:          c.Pcores,
				Vcores:          c.Vcores,
				Sockets:         c.Sockets,
				PcoresPerSocket: c.PcoresPerSocket,
				Description:     c.Description,
			}.Normalize()
			if fieldErrs := sc.Validate(); len(fieldErrs) > 0 {
				errs.Addf("server_configurations.%s[%d]: %s", opName, i, fieldErrs[0])
				continue
			}
			cat.serverConfigs[op] = append(cat.serverConfigs[op], sc)
		}
	}

	for opName, cores := range raw.CaaSCoresPerSocket {
		op := vdu.Operator(opName)
		if !op.Valid() {
			errs.Addf("unknown operator in caas_cores_per_socket: %s", opName)
			continue
		}
		cat.caasCoresPerSocket[op] = cores
	}

	for opName, vcores := range raw.SharedCores.OperatorSpecific {
		op := vdu.Operator(opName)
		if !op.Valid() {
			errs.Addf("unknown operator in shared_cores_per_socket.operator_specific: %s", opName)
			continue
		}
		cat.sharedCoresOperatorSpecific[op] = vcores
	}
	cat.sharedCoresGlobalMinimum = raw.SharedCores.GlobalMinimum
	if cat.sharedCoresGlobalMinimum < 1.0 {
		// C4's floor is a hard invariant of the engine, not of the document.
		cat.sharedCoresGlobalMinimum = 1.0
	}

	for _, name := range raw.SpecialFlavors {
		cat.specialFlavors[name] = true
	}

	for name, v := range raw.VCUFlavorMapping {
		cat.vcuVcoresByFlavor[name] = v.Vcores
	}
	for name, v := range raw.VCSRFlavorMapping {
		cat.vcsrVcoresByFlavor[name] = v.Vcores
	}

	if raw.VCSRDefaultServerConf != nil {
		cat.vcsrDefaultServerConfig = &vdu.ServerConfig{
			Pcores:  raw.VCSRDefaultServerConf.Pcores,
			Sockets: raw.VCSRDefaultServerConf.Sockets,
		}
	}

	for tag, category := range raw.RuleCategories {
		cat.ruleCategories[tag] = category
	}

	for opName, tags := range raw.SearchKeys.ByOperator {
		op := vdu.Operator(opName)
		if !op.Valid() {
			errs.Addf("unknown operator in search_keys.by_operator: %s", opName)
			continue
		}
		cat.rulesByOperator[op] = tags
	}
	for feature, tags := range raw.SearchKeys.ByFeature {
		cat.rulesByFeature[feature] = tags
	}

	return cat, errs
}

// MandatoryPods returns the base pods every vDU requires, independent of
// operator (VOS adds IPP on top of this list; see rule O1).
func (c *Catalogue) MandatoryPods() []vdu.PodKind {
	if len(c.mandatoryPods) == 0 {
		return vdu.MandatoryPodKinds()
	}
	out := make([]vdu.PodKind, len(c.mandatoryPods))
	copy(out, c.mandatoryPods)
	return out
}

// ServerConfigs returns the supported server shapes for op, in catalogue
// order (the order they were declared, which callers may rely on for
// "first matching config" style lookups).
func (c *Catalogue) ServerConfigs(op vdu.Operator) []vdu.ServerConfig {
	return c.serverConfigs[op]
}

// CaaSCoresPerSocket returns the C3 reservation for op.
func (c *Catalogue) CaaSCoresPerSocket(op vdu.Operator) int {
	return c.caasCoresPerSocket[op]
}

// SharedCoresPerSocket returns the C4 reservation for op, falling back to the
// catalogue's global minimum (itself floored at 1.0 vCore).
func (c *Catalogue) SharedCoresPerSocket(op vdu.Operator) float64 {
	if v, ok := c.sharedCoresOperatorSpecific[op]; ok {
		return v
	}
	return c.sharedCoresGlobalMinimum
}

// IsSpecialFlavor reports whether flavor automatically includes an IIP pod
// (rule O3).
func (c *Catalogue) IsSpecialFlavor(flavor string) bool {
	return c.specialFlavors[flavor]
}

// VCUVcores returns the vCU sizing for flavor (rule O2), falling back to the
// catalogue's "all_other_flavors" entry, then to the engine-wide default of
// 18 (tiny-dran) when the catalogue has no opinion at all.
func (c *Catalogue) VCUVcores(flavor string) int {
	if v, ok := c.vcuVcoresByFlavor[flavor]; ok {
		return v
	}
	if v, ok := c.vcuVcoresByFlavor["all_other_flavors"]; ok {
		return v
	}
	return 18
}

// VCUType returns the human-readable vCU flavour name used in diagnostics.
func (c *Catalogue) VCUType(flavor string) string {
	if c.VCUVcores(flavor) == 15 {
		return "tiny-dran-mini"
	}
	return "tiny-dran"
}

// VCSRVcores returns the vCSR sizing for flavor (rule O5), or 0 if vCSR is
// not supported for that flavor at all.
func (c *Catalogue) VCSRVcores(flavor string) int {
	return c.vcsrVcoresByFlavor[flavor]
}

// VCSRDefaultServerConfig returns the minimum server shape vCSR requires, if
// the catalogue declares one.
func (c *Catalogue) VCSRDefaultServerConfig() *vdu.ServerConfig {
	return c.vcsrDefaultServerConfig
}

// Operators returns every operator the catalogue has server configurations
// for, sorted for deterministic iteration in reports and tests.
func (c *Catalogue) Operators() []vdu.Operator {
	out := make([]vdu.Operator, 0, len(c.serverConfigs))
	for op := range c.serverConfigs {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SupportedServerConfigs is an alias of ServerConfigs; both names query the
// same reverse-index-free lookup. The catalogue-search endpoint in pkg/api
// does not call it and does not return server configurations.
func (c *Catalogue) SupportedServerConfigs(op vdu.Operator) []vdu.ServerConfig {
	return c.ServerConfigs(op)
}

// RuleCategory returns the declared category for a rule tag (e.g. "C1" ->
// "capacity"), or "" if the catalogue does not declare one.
func (c *Catalogue) RuleCategory(tag string) string {
	return c.ruleCategories[tag]
}

// RulesForOperator returns the rule tags the catalogue's
// search_keys.by_operator reverse index associates with op, sorted for
// deterministic output. This backs the catalogue-search endpoint and the
// (out-of-scope) natural-language query layer named in the specification;
// it is a plain map read, not a query planner.
func (c *Catalogue) RulesForOperator(op vdu.Operator) []string {
	out := append([]string(nil), c.rulesByOperator[op]...)
	sort.Strings(out)
	return out
}

// RulesForFeature returns the rule tags associated with a feature flag name
// (e.g. "ha_enabled") via search_keys.by_feature, sorted for deterministic
// output.
func (c *Catalogue) RulesForFeature(flag string) []string {
	out := append([]string(nil), c.rulesByFeature[flag]...)
	sort.Strings(out)
	return out
}
