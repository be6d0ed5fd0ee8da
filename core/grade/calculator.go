package grade

import (
	"github.com/trezcool/academia/core"
)

const (
	MaxScore     = 5.0
	PassingGrade = 3.0
)

type Verdict string

const (
	Passed Verdict = "Passed"
	Failed Verdict = "Failed"
)

// ErrBlockNotConfigured is returned when a block has no weights to compute an average with.
var ErrBlockNotConfigured = core.NewError(core.KindConfigurationMissing, "evaluation block percentages are not configured")

// Scores are the raw component scores of a Grade, each on a 0-5 scale.
type Scores struct {
	Quiz    float64 `json:"quiz" db:"quiz_score"`
	Midterm float64 `json:"midterm" db:"midterm_score"`
	Project float64 `json:"project" db:"project_score"`
}

// Weights are the percentages (30 means 30%) applied to each component score.
type Weights struct {
	Quiz    float64 `json:"quiz" db:"quiz_pct" validate:"min=0,max=100,decimals2"`
	Midterm float64 `json:"midterm" db:"midterm_pct" validate:"min=0,max=100,decimals2"`
	Project float64 `json:"project" db:"project_pct" validate:"min=0,max=100,decimals2"`
}

func (w Weights) Total() float64 {
	return w.Quiz + w.Midterm + w.Project
}

// ComputeBlockAverage weights scores by the block's percentages and rounds the result to 2 decimals.
func ComputeBlockAverage(scores Scores, weights *Weights) (float64, error) {
	if weights == nil {
		return 0, ErrBlockNotConfigured
	}
	sum := scores.Quiz*weights.Quiz + scores.Midterm*weights.Midterm + scores.Project*weights.Project
	return core.Round2(sum / 100), nil
}

func VerdictFor(avg float64) Verdict {
	if avg >= PassingGrade {
		return Passed
	}
	return Failed
}
