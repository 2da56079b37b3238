// Package fusion combines rule-engine output and weighted probabilistic
// evidence into one calibrated score via log-odds summation.
package fusion

import (
	"math"
	"sort"

	"github.com/homewatch-io/homewatch/internal/feature"
)

// Weights applied to the two branches and the chain adjustment. Chain
// patterns carry multi-event context no single-event factor can see, so
// their deltas get the largest lever.
const (
	ruleBranchWeight = 1.0
	chainDeltaWeight = 4.0
	explanationTopN  = 8
)

// Inputs is everything fusion consumes for one assessment. Identical Inputs
// always produce an identical Result.
type Inputs struct {
	Features   feature.Map
	RuleScore  float64  // rule-engine risk in [0,1]
	RuleHits   []string // matched rule IDs, for the explanation
	ChainDelta float64  // signed pattern adjustment, zero when no pattern
}

// Result is the fused assessment, immutable once created.
type Result struct {
	FinalScore           float64          `json:"final_score"`
	Confidence           float64          `json:"confidence"`
	BayesianContribution float64          `json:"bayesian_contribution"`
	RuleContribution     float64          `json:"rule_contribution"`
	Explanation          []EvidenceFactor `json:"explanation"`
	RuleHits             []string         `json:"rule_hits,omitempty"`
}

// Fuse runs the catalog over the feature map and folds both branches
// together in log-odds space. Total function: every input yields a finite,
// clamped result.
func Fuse(in Inputs) Result {
	evaluated := evaluateCatalog(in.Features)

	bayesLogOdds := in.ChainDelta * chainDeltaWeight
	for _, f := range evaluated {
		bayesLogOdds += f.Weight * logit(f.Present)
	}

	ruleLogOdds := logit(in.RuleScore) * ruleBranchWeight

	finalScore := sigmoid(bayesLogOdds + ruleLogOdds)

	bayesProb := sigmoid(bayesLogOdds)
	ruleProb := clamp01(in.RuleScore)

	// Contribution shares: how much of the movement away from neutral each
	// branch supplied. Guarded so the shares always sum to 1.
	bayesMag := math.Abs(bayesLogOdds)
	ruleMag := math.Abs(ruleLogOdds)
	var bayesShare float64
	if total := bayesMag + ruleMag; total > 1e-9 {
		bayesShare = bayesMag / total
	} else {
		bayesShare = 0.5
	}

	// Confidence rises when both branches lean the same direction.
	agreement := 1 - math.Abs(bayesProb-ruleProb)
	confidence := clamp01(0.3 + 0.65*agreement)

	return Result{
		FinalScore:           clamp01(finalScore),
		Confidence:           confidence,
		BayesianContribution: bayesShare,
		RuleContribution:     1 - bayesShare,
		Explanation:          topFactors(evaluated),
		RuleHits:             in.RuleHits,
	}
}

// topFactors selects the strongest non-neutral factors, heaviest first.
func topFactors(evaluated []EvidenceFactor) []EvidenceFactor {
	present := make([]EvidenceFactor, 0, len(evaluated))
	for _, f := range evaluated {
		if f.Present > off {
			present = append(present, f)
		}
	}
	sort.SliceStable(present, func(i, j int) bool {
		return math.Abs(present[i].Weight) > math.Abs(present[j].Weight)
	})
	if len(present) > explanationTopN {
		present = present[:explanationTopN]
	}
	return present
}

// logitBound keeps every transform finite; probabilities are squeezed into
// [eps, 1-eps] before the transform.
const logitEps = 0.02

func logit(p float64) float64 {
	if p < logitEps {
		p = logitEps
	}
	if p > 1-logitEps {
		p = 1 - logitEps
	}
	return math.Log(p / (1 - p))
}

func sigmoid(l float64) float64 {
	return 1 / (1 + math.Exp(-l))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
