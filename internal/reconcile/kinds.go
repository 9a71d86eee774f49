package reconcile

import (
	"travel-planner-workers/internal/models"
	"travel-planner-workers/internal/reconcile/schemas"
)

// NewTravelPlanPipeline reconciles completions into travel plans.
func NewTravelPlanPipeline(opts Options) (*Pipeline[models.TravelResponse], error) {
	return NewPipeline[models.TravelResponse](models.KindTravelPlan, schemas.TravelPlan, opts)
}

// NewQuizPipeline reconciles completions into quiz batches.
func NewQuizPipeline(opts Options) (*Pipeline[models.QuizBatch], error) {
	return NewPipeline[models.QuizBatch](models.KindQuiz, schemas.QuizBatch, opts)
}
