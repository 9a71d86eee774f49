// internal/models/travel.go
package models

// TravelResponse is a validated travel plan produced by the model.
type TravelResponse struct {
	Location          string             `json:"location"`
	TripDuration      int                `json:"trip_duration"`
	StartDate         Date               `json:"start_date"`
	EndDate           Date               `json:"end_date"`
	Language          string             `json:"language"`
	Overview          string             `json:"overview"`
	SightseeingPlaces []SightseeingPlace `json:"sightseeing_places"`
	Itinerary         []DayItinerary     `json:"itinerary"`
	TravelTips        []string           `json:"travel_tips,omitempty"`
	EstimatedBudget   *string            `json:"estimated_budget,omitempty"`
	WeatherInfo       *string            `json:"weather_info,omitempty"`
}

type SightseeingPlace struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Category          string  `json:"category"`
	EstimatedDuration string  `json:"estimated_duration"`
	ApproximateCost   *string `json:"approximate_cost,omitempty"`
	LocationDetails   *string `json:"location_details,omitempty"`
	BestTimeToVisit   *string `json:"best_time_to_visit,omitempty"`
}

type DayItinerary struct {
	DayNumber         int             `json:"day_number"`
	Date              Date            `json:"date"`
	Title             string          `json:"title"`
	Activities        []DailyActivity `json:"activities"`
	MealsSuggestions  []string        `json:"meals_suggestions,omitempty"`
	AccommodationNote *string         `json:"accommodation_note,omitempty"`
}

type DailyActivity struct {
	Time        string   `json:"time"`
	Activity    string   `json:"activity"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Duration    string   `json:"duration"`
	Tips        []string `json:"tips,omitempty"`
}

// TravelRecord is the listing and export view of a stored plan.
type TravelRecord struct {
	Email        string `json:"email"`
	Location     string `json:"location"`
	NumberOfDays int    `json:"number_of_days"`
	StartDate    Date   `json:"start_date"`
	EndDate      Date   `json:"end_date"`
}
