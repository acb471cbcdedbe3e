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
	"strings"

	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// V3 validates the raw input before any other rule runs: non-empty server
// list, sane per-server shapes, sane per-pod requirements, a known operator
// and a non-empty flavour name. V3 failures are fatal: the Orchestrator runs
// no other validator when this list is non-empty.
func V3(req vdu.DeploymentInput) []vdu.Violation {
	var violations []vdu.Violation

	if len(req.ServerConfigs) == 0 {
		violations = append(violations, vdu.Violation{
			Tag:      "V3",
			Category: vdu.CategoryInputValidation,
			Message:  "server configuration not provided",
		})
	} else {
		for i, s := range req.ServerConfigs {
			if s.Pcores <= 0 {
				violations = append(violations, vdu.Violation{
					Tag: "V3", Category: vdu.CategoryInputValidation,
					Message: fmt.Sprintf("server %d has invalid pcores: %d", i, s.Pcores),
				})
			}
			if s.Vcores <= 0 {
				violations = append(violations, vdu.Violation{
					Tag: "V3", Category: vdu.CategoryInputValidation,
					Message: fmt.Sprintf("server %d has invalid vcores: %d", i, s.Vcores),
				})
			}
			if s.Sockets != 1 && s.Sockets != 2 {
				violations = append(violations, vdu.Violation{
					Tag: "V3", Category: vdu.CategoryInputValidation,
					Message: fmt.Sprintf("server %d has invalid socket count: %d", i, s.Sockets),
				})
			}
		}
	}

	if len(req.PodRequirements) == 0 {
		violations = append(violations, vdu.Violation{
			Tag:      "V3",
			Category: vdu.CategoryInputValidation,
			Message:  "pod vcore requirements not provided",
		})
	} else {
		for i, p := range req.PodRequirements {
			// A pod requirement with vcores == 0 is a catalogue "not
			// applicable" entry (or an unparsable nan/BE source cell,
			// see the specification's design notes) and is intentionally
			// exempt from this check; it is reported as an informational
			// note by the Explainer instead of a violation here.
			if p.Vcores < 0 {
				violations = append(violations, vdu.Violation{
					Tag: "V3", Category: vdu.CategoryInputValidation,
					Message: fmt.Sprintf("pod %d (%s) has invalid vcores: %.1f", i, p.Kind, p.Vcores),
				})
			}
			if p.Quantity <= 0 {
				violations = append(violations, vdu.Violation{
					Tag: "V3", Category: vdu.CategoryInputValidation,
					Message: fmt.Sprintf("pod %d (%s) has invalid quantity: %d", i, p.Kind, p.Quantity),
				})
			}
		}
	}

	if !req.Operator.Valid() {
		violations = append(violations, vdu.Violation{
			Tag:      "V3",
			Category: vdu.CategoryInputValidation,
			Message:  "invalid operator type provided",
		})
	}

	if strings.TrimSpace(req.VduFlavorName) == "" {
		violations = append(violations, vdu.Violation{
			Tag:      "V3",
			Category: vdu.CategoryInputValidation,
			Message:  "vDU flavor name not provided or invalid",
		})
	}

	return violations
}

// V1 is the meta-success rule: the outcome succeeds iff no violation was
// raised anywhere in the pipeline. It carries no logic of its own; it exists
// so the Explainer has a rule tag to attach to the overall success message.
func V1(allViolations []vdu.Violation) bool {
	return len(allViolations) == 0
}
