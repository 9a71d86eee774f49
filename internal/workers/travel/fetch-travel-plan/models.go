package fetchtravelplan

import "travel-planner-workers/internal/models"

type Input struct {
	Email     string `json:"email"`
	StartDate string `json:"startDate"`
}

type Output struct {
	TravelPlan *models.TravelResponse `json:"travelPlan"`
	RecordKey  string                 `json:"recordKey"`
	CreatedAt  string                 `json:"createdAt"`
}
