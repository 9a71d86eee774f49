package generation

import "travel-planner-workers/internal/models"

type (
	TravelPlanService = Service[*models.TravelRequest, models.TravelResponse]
	QuizService       = Service[*models.QuizRequest, models.QuizBatch]
)
