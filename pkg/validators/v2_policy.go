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
	"context"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/rego"

	"github.com/asquaree/pod-placement-ai/pkg/vdu"
)

// v2Module is the diagnostic re-categorization policy for rule V2. All
// arithmetic and categorization decisions have already been made in Go by
// the time a violation reaches this module; the policy's only job is to turn
// a violation's category into the phrased sentence the Explainer renders
// under "Issues Found". This is a deliberately narrow use of OPA: declarative
// labeling of a precomputed fact, not a decision engine -- V2 does not
// replace a violation's identity (its Tag/Category/Message), it only adds
// the phrased sentence as supplementary detail.
const v2Module = `
package vdurules.v2

default label = "OTHER"

label = "CAPACITY" { input.category == "capacity" }
label = "ANTI_AFFINITY" { input.category == "anti_affinity" }
label = "CO_LOCATION" { input.category == "co_location" }
label = "MANDATORY_PODS" { input.category == "mandatory_pods" }
label = "OPERATOR_SPECIFIC" { input.category == "operator_specific" }
label = "SERVER_CONFIG" { input.category == "server_config" }
label = "PLACEMENT" { input.category == "placement" }

phrase = sprintf("V2:%s - %s", [label, input.message])
`

var (
	v2PreparedOnce sync.Once
	v2Prepared     rego.PreparedEvalQuery
	v2PrepareErr   error
)

func v2Query() (rego.PreparedEvalQuery, error) {
	v2PreparedOnce.Do(func() {
		v2Prepared, v2PrepareErr = rego.New(
			rego.Query("data.vdurules.v2.phrase"),
			rego.Module("vdu_v2.rego", v2Module),
		).PrepareForEval(context.Background())
	})
	return v2Prepared, v2PrepareErr
}

// V2 runs the embedded Rego policy over every already-accumulated violation
// and returns the same violations -- same Tag, Category, Message and Detail
// -- each carrying the policy's phrased "V2:CATEGORY - ..." sentence in its
// Annotation field. It never discards or renames a violation's identity:
// spec.md requires that a violated rule's own tag (e.g. "C1", "M3", "O1")
// surface in the outcome, and V2 is a diagnostic overlay on top of that, not
// a replacement for it. Annotation is kept separate from Detail because
// Detail is also used as a stable chain-grouping key by the Explainer's
// de-duplication (pkg/reports); overwriting it with a per-violation phrase
// would make every violation's key unique and defeat that grouping.
//
// Returns an error only if the embedded policy itself fails to prepare or
// evaluate -- a condition that indicates a programming error in this
// package, not a request-level failure.
func V2(accumulated []vdu.Violation) ([]vdu.Violation, error) {
	if len(accumulated) == 0 {
		return nil, nil
	}

	query, err := v2Query()
	if err != nil {
		return nil, fmt.Errorf("could not prepare V2 policy: %w", err)
	}

	categorized := make([]vdu.Violation, len(accumulated))
	for i, v := range accumulated {
		input := map[string]any{
			"category": string(v.Category),
			"message":  v.Message,
		}
		results, err := query.Eval(context.Background(), rego.EvalInput(input))
		if err != nil {
			return nil, fmt.Errorf("could not evaluate V2 policy for %s: %w", v.Tag, err)
		}

		phrase := v.Message
		for _, result := range results {
			for _, expr := range result.Expressions {
				if s, ok := expr.Value.(string); ok {
					phrase = s
				}
			}
		}

		categorized[i] = v
		categorized[i].Annotation = phrase
	}
	return categorized, nil
}
