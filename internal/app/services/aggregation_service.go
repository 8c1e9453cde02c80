package services

import (
	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/survey"
)

// AggregationService turns matched cohorts into report statistics
type AggregationService interface {
	Build(course, similar *survey.CohortAggregate) *models.ReportStatistics
}

type aggregationServiceImpl struct {
	alpha float64
}

// NewAggregationService creates an aggregation service for significance level alpha
func NewAggregationService(alpha float64) AggregationService {
	if alpha <= 0 || alpha >= 1 {
		alpha = survey.DefaultSignificance
	}
	return &aggregationServiceImpl{alpha: alpha}
}

type instrumentView struct {
	key   string
	items int
	pick  func(*survey.CohortAggregate) *survey.ResponseAggregate
}

var instrumentViews = []instrumentView{
	{"you_pre", survey.BeliefItems, func(c *survey.CohortAggregate) *survey.ResponseAggregate { return c.YouPre }},
	{"you_post", survey.BeliefItems, func(c *survey.CohortAggregate) *survey.ResponseAggregate { return c.YouPost }},
	{"expert_pre", survey.BeliefItems, func(c *survey.CohortAggregate) *survey.ResponseAggregate { return c.ExpertPre }},
	{"expert_post", survey.BeliefItems, func(c *survey.CohortAggregate) *survey.ResponseAggregate { return c.ExpertPost }},
	{"mark", survey.ImportanceItems, func(c *survey.CohortAggregate) *survey.ResponseAggregate { return c.Mark }},
}

// Build computes per-question estimates, pre/post shifts and overall fractions
// for the course and the similar-course pool. Questions are never pooled.
func (s *aggregationServiceImpl) Build(course, similar *survey.CohortAggregate) *models.ReportStatistics {
	if course == nil {
		course = survey.NewCohortAggregate(nil)
	}
	if similar == nil {
		similar = survey.NewCohortAggregate(nil)
	}

	stats := &models.ReportStatistics{
		Significance: s.alpha,
		CourseSize:   course.Size(),
		SimilarSize:  similar.Size(),
		Instruments:  make(map[string]models.InstrumentStatistics, len(instrumentViews)),
		Overall:      make(map[string]models.OverallStatistics, len(instrumentViews)),
	}

	for _, v := range instrumentViews {
		c, sim := v.pick(course), v.pick(similar)
		stats.Instruments[v.key] = models.InstrumentStatistics{
			Course:  survey.ColumnEstimates(c, v.items, s.alpha),
			Similar: survey.ColumnEstimates(sim, v.items, s.alpha),
		}
		stats.Overall[v.key] = models.OverallStatistics{
			CourseMean:    survey.OverallMean(c),
			CourseStdErr:  survey.OverallStdErr(c),
			SimilarMean:   survey.OverallMean(sim),
			SimilarStdErr: survey.OverallStdErr(sim),
		}
	}

	stats.YouShift = shift(course.YouPre, course.YouPost, similar.YouPre, similar.YouPost)
	stats.ExpertShift = shift(course.ExpertPre, course.ExpertPost, similar.ExpertPre, similar.ExpertPost)
	return stats
}

func shift(pre, post, simPre, simPost *survey.ResponseAggregate) models.ShiftStatistics {
	n := survey.BeliefItems
	return models.ShiftStatistics{
		Course:  survey.MeanShift(survey.ColumnMeans(pre, n), survey.ColumnMeans(post, n)),
		Similar: survey.MeanShift(survey.ColumnMeans(simPre, n), survey.ColumnMeans(simPost, n)),
	}
}
