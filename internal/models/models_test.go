package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)

func mustDate(t *testing.T, s string) Date {
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

// ==========================
// Date
// ==========================

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-11-01"`), &d))
	assert.Equal(t, "2026-11-01", d.String())

	out, err := json.Marshal(d.AddDays(2))
	require.NoError(t, err)
	assert.Equal(t, `"2026-11-03"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`"01/11/2026"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`20261101`), &d))
}

func TestNewDate_TruncatesToUTCDay(t *testing.T) {
	assert.Equal(t, "2026-10-17", NewDate(fixedNow).String())
}

// ==========================
// TravelRequest
// ==========================

func validTravelRequest(t *testing.T) *TravelRequest {
	return &TravelRequest{
		Location:     "  Paris ",
		NumberOfDays: 3,
		StartDate:    mustDate(t, "2026-11-01"),
		Interests:    []string{" food ", ""},
	}
}

func TestTravelRequest_NormalizeAndValidate(t *testing.T) {
	req := validTravelRequest(t)
	req.Normalize()

	assert.Equal(t, "Paris", req.Location)
	assert.Equal(t, "english", req.PreferredLanguage)
	assert.Equal(t, "medium", req.BudgetLevel)
	assert.Equal(t, []string{"food"}, req.Interests)
	assert.Equal(t, "2026-11-01", req.DistinguishingKey())
	assert.Equal(t, "2026-11-03", req.EndDate().String())
	assert.Equal(t, KindTravelPlan, req.Kind())

	assert.NoError(t, req.Validate(fixedNow))
}

func TestTravelRequest_TodayIsAllowed(t *testing.T) {
	req := validTravelRequest(t)
	req.StartDate = NewDate(fixedNow)
	req.Normalize()
	assert.NoError(t, req.Validate(fixedNow))
}

func TestTravelRequest_Violations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TravelRequest)
		message string
	}{
		{"short location", func(r *TravelRequest) { r.Location = "P" }, "location"},
		{"zero days", func(r *TravelRequest) { r.NumberOfDays = 0 }, "number_of_days"},
		{"too many days", func(r *TravelRequest) { r.NumberOfDays = 31 }, "number_of_days"},
		{"past start", func(r *TravelRequest) { r.StartDate = NewDate(fixedNow.AddDate(0, 0, -1)) }, "cannot be in the past"},
		{"missing start", func(r *TravelRequest) { r.StartDate = Date{} }, "start_date"},
		{"language", func(r *TravelRequest) { r.PreferredLanguage = "french" }, "preferred_language"},
		{"budget", func(r *TravelRequest) { r.BudgetLevel = "extreme" }, "budget_level"},
		{"long interest", func(r *TravelRequest) { r.Interests = []string{strings.Repeat("x", 51)} }, "interests[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validTravelRequest(t)
			req.Normalize()
			tt.mutate(req)

			err := req.Validate(fixedNow)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestTravelRequest_AllViolationsListed(t *testing.T) {
	req := &TravelRequest{Location: "P", NumberOfDays: 40, StartDate: mustDate(t, "2020-01-01")}
	req.Normalize()

	var verr *RequestValidationError
	require.True(t, errors.As(req.Validate(fixedNow), &verr))
	assert.Len(t, verr.Violations, 3)
}

// ==========================
// QuizRequest
// ==========================

func TestQuizRequest(t *testing.T) {
	req := &QuizRequest{Subject: "  World History ", NumberOfQuestions: 5}
	req.Normalize()

	assert.Equal(t, "world history", req.DistinguishingKey())
	assert.Equal(t, "medium", req.Difficulty)
	assert.Equal(t, KindQuiz, req.Kind())
	assert.NoError(t, req.Validate(fixedNow))

	req.Difficulty = "impossible"
	req.NumberOfQuestions = 0
	err := req.Validate(fixedNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "difficulty")
	assert.Contains(t, err.Error(), "number_of_questions")
}
