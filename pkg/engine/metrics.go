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

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdu_validation_runs_total",
			Help: "Number of times the vDU placement pipeline has run, by outcome.",
		},
		[]string{"outcome"},
	)

	fatalRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vdu_validation_fatal_runs_total",
			Help: "Number of pipeline runs that stopped early on a fatal stage (V3 or placement infeasibility).",
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, fatalRunsTotal)
}

func recordOutcome(success, fatal bool) {
	if success {
		runsTotal.WithLabelValues("success").Inc()
	} else {
		runsTotal.WithLabelValues("failure").Inc()
	}
	if fatal {
		fatalRunsTotal.Inc()
	}
}
