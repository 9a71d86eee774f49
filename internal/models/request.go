// internal/models/request.go
package models

import (
	"errors"
	"sort"
	"strings"
	"time"

	"travel-planner-workers/internal/common/validation"

	"github.com/samber/lo"
)

// Result kinds. They scope duplicate detection and storage.
const (
	KindTravelPlan = "travel_plan"
	KindQuiz       = "quiz"
)

// ErrInvalidRequest is wrapped by every request validation failure.
var ErrInvalidRequest = errors.New("INVALID_REQUEST")

// RequestValidationError lists every violated constraint of a request.
type RequestValidationError struct {
	Violations []string
}

func (e *RequestValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Violations, "; ")
}

func (e *RequestValidationError) Unwrap() error {
	return ErrInvalidRequest
}

func checkRequest(fields map[string]interface{}, schema validation.JSONSchema, extra ...string) error {
	violations := validation.ValidateInput(fields, schema).GetErrorMessages()
	// map iteration order is random; keep messages stable
	sort.Strings(violations)
	violations = append(violations, extra...)
	if len(violations) == 0 {
		return nil
	}
	return &RequestValidationError{Violations: violations}
}

var languages = []string{"english", "tamil", "hindi"}

// ==========================
// Travel plan request
// ==========================

// TravelRequest asks for a day-by-day itinerary.
type TravelRequest struct {
	Location          string   `json:"location"`
	NumberOfDays      int      `json:"number_of_days"`
	StartDate         Date     `json:"start_date"`
	PreferredLanguage string   `json:"preferred_language"`
	Interests         []string `json:"interests,omitempty"`
	BudgetLevel       string   `json:"budget_level"`
}

func (r *TravelRequest) Kind() string { return KindTravelPlan }

// DistinguishingKey is the trip start date: one plan per user per start date.
func (r *TravelRequest) DistinguishingKey() string { return r.StartDate.String() }

// Normalize trims input and applies defaults.
func (r *TravelRequest) Normalize() {
	r.Location = strings.TrimSpace(r.Location)
	r.PreferredLanguage = strings.ToLower(strings.TrimSpace(r.PreferredLanguage))
	if r.PreferredLanguage == "" {
		r.PreferredLanguage = "english"
	}
	r.BudgetLevel = strings.ToLower(strings.TrimSpace(r.BudgetLevel))
	if r.BudgetLevel == "" {
		r.BudgetLevel = "medium"
	}
	r.Interests = lo.Compact(lo.Map(r.Interests, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

// EndDate is the last day of the trip.
func (r *TravelRequest) EndDate() Date {
	return r.StartDate.AddDays(r.NumberOfDays - 1)
}

var travelRequestSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"location":           {Type: "string", MinLength: validation.Int(2), MaxLength: validation.Int(100)},
		"number_of_days":     {Type: "integer", Minimum: validation.Float(1), Maximum: validation.Float(30)},
		"start_date":         {Type: "string", Format: "date"},
		"preferred_language": {Type: "string", Enum: languages},
		"budget_level":       {Type: "string", Enum: []string{"budget", "medium", "luxury"}},
		"interests": {
			Type:     "array",
			MaxItems: validation.Int(10),
			Items:    &validation.Property{Type: "string", MinLength: validation.Int(1), MaxLength: validation.Int(50)},
		},
	},
	Required: []string{"location", "number_of_days", "start_date"},
}

// Validate checks every constraint; the start date may not be before the
// UTC calendar date of now.
func (r *TravelRequest) Validate(now time.Time) error {
	fields := map[string]interface{}{
		"location":           r.Location,
		"number_of_days":     r.NumberOfDays,
		"preferred_language": r.PreferredLanguage,
		"budget_level":       r.BudgetLevel,
		"interests":          lo.ToAnySlice(r.Interests),
	}
	var extra []string
	if !r.StartDate.IsZero() {
		fields["start_date"] = r.StartDate.String()
		if r.StartDate.Before(NewDate(now)) {
			extra = append(extra, "start_date: cannot be in the past")
		}
	}
	return checkRequest(fields, travelRequestSchema, extra...)
}

// ==========================
// Quiz request
// ==========================

// QuizRequest asks for a batch of multiple choice questions on a subject.
type QuizRequest struct {
	Subject           string   `json:"subject"`
	NumberOfQuestions int      `json:"number_of_questions"`
	Difficulty        string   `json:"difficulty"`
	PreferredLanguage string   `json:"preferred_language"`
	Topics            []string `json:"topics,omitempty"`
}

func (r *QuizRequest) Kind() string { return KindQuiz }

// DistinguishingKey is the normalized subject: one quiz per user per subject.
func (r *QuizRequest) DistinguishingKey() string {
	return strings.ToLower(strings.TrimSpace(r.Subject))
}

func (r *QuizRequest) Normalize() {
	r.Subject = strings.TrimSpace(r.Subject)
	r.Difficulty = strings.ToLower(strings.TrimSpace(r.Difficulty))
	if r.Difficulty == "" {
		r.Difficulty = "medium"
	}
	r.PreferredLanguage = strings.ToLower(strings.TrimSpace(r.PreferredLanguage))
	if r.PreferredLanguage == "" {
		r.PreferredLanguage = "english"
	}
	r.Topics = lo.Compact(lo.Map(r.Topics, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

var quizRequestSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"subject":             {Type: "string", MinLength: validation.Int(2), MaxLength: validation.Int(100)},
		"number_of_questions": {Type: "integer", Minimum: validation.Float(1), Maximum: validation.Float(30)},
		"difficulty":          {Type: "string", Enum: []string{"easy", "medium", "hard"}},
		"preferred_language":  {Type: "string", Enum: languages},
		"topics": {
			Type:     "array",
			MaxItems: validation.Int(10),
			Items:    &validation.Property{Type: "string", MinLength: validation.Int(1), MaxLength: validation.Int(50)},
		},
	},
	Required: []string{"subject", "number_of_questions"},
}

// Validate checks every constraint. now is unused; quizzes have no dates.
func (r *QuizRequest) Validate(_ time.Time) error {
	return checkRequest(map[string]interface{}{
		"subject":             r.Subject,
		"number_of_questions": r.NumberOfQuestions,
		"difficulty":          r.Difficulty,
		"preferred_language":  r.PreferredLanguage,
		"topics":              lo.ToAnySlice(r.Topics),
	}, quizRequestSchema)
}
