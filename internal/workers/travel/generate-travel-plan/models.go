package generatetravelplan

import "travel-planner-workers/internal/models"

type Input struct {
	Email             string   `json:"email"`
	Location          string   `json:"location"`
	NumberOfDays      int      `json:"numberOfDays"`
	StartDate         string   `json:"startDate"`
	PreferredLanguage string   `json:"preferredLanguage,omitempty"`
	Interests         []string `json:"interests,omitempty"`
	BudgetLevel       string   `json:"budgetLevel,omitempty"`
}

type Output struct {
	TravelPlan *models.TravelResponse `json:"travelPlan"`
	RecordKey  string                 `json:"recordKey"`
	Repaired   bool                   `json:"repaired"`
}
