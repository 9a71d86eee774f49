// internal/workers/travel/generate-travel-plan/handler_test.go
package generatetravelplan

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"travel-planner-workers/internal/common/config"
	apperrors "travel-planner-workers/internal/common/errors"
	"travel-planner-workers/internal/common/llm"
	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/generation"
	"travel-planner-workers/internal/idempotency"
	"travel-planner-workers/internal/models"
	"travel-planner-workers/internal/prompts"
	"travel-planner-workers/internal/reconcile"
	"travel-planner-workers/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var now = time.Date(2025, 11, 20, 8, 0, 0, 0, time.UTC)

func createTestInput() *Input {
	return &Input{
		Email:        "a@example.com",
		Location:     "Tenkasi",
		NumberOfDays: 2,
		StartDate:    "2025-12-01",
		Interests:    []string{"waterfalls"},
	}
}

const completion = "Here is your itinerary:\n```json\n" + `{
  "location": "Tenkasi",
  "trip_duration": 2,
  "start_date": "2025-12-01",
  "end_date": "2025-12-02",
  "language": "english",
  "overview": "Waterfalls and temples at the foot of the Western Ghats."
  "sightseeing_places": [
    {"name": "Courtallam Falls", "description": "Main falls", "category": "nature", "estimated_duration": "2 hours"},
    {"name": "Kasi Viswanathar Temple", "description": "Pandya era temple", "category": "cultural_site", "estimated_duration": "1 hour"}
  ],
  "itinerary": [
    {"day_number": 1, "date": "2025-12-01", "title": "Falls", "activities": [
      {"time": "08:30 AM", "activity": "Main falls", "description": "Bathe at the falls", "location": "Courtallam", "duration": "2 hours", "tips": ["Go early",]}
    ]}
  ]
}` + "\n```"

type testEnv struct {
	handler   *Handler
	sqlMock   sqlmock.Sqlmock
	redis     *miniredis.Miniredis
	completer *countingCompleter
}

type countingCompleter struct {
	raw   string
	calls int
}

func (c *countingCompleter) Complete(context.Context, llm.Request) (string, error) {
	c.calls++
	return c.raw, nil
}

func newTestEnv(t *testing.T, raw string) *testEnv {
	t.Helper()
	log := logger.NewTestLogger(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	pg := store.NewPostgresStore(db)
	pipeline, err := reconcile.NewTravelPlanPipeline(reconcile.Options{Logger: log})
	require.NoError(t, err)
	renderer, err := prompts.New(config.PromptsConfig{})
	require.NoError(t, err)

	completer := &countingCompleter{raw: raw}
	service := generation.NewService(generation.Dependencies[*models.TravelRequest, models.TravelResponse]{
		Guard:     idempotency.NewGuard(pg, rdb, idempotency.Config{}, log),
		Completer: completer,
		Prompt:    renderer.TravelPlan,
		Parser:    pipeline,
		Store:     pg,
		Clock:     func() time.Time { return now },
		Logger:    log,
	})

	return &testEnv{
		handler:   NewHandler(LoadConfig(), service, log),
		sqlMock:   mock,
		redis:     mr,
		completer: completer,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	env := newTestEnv(t, completion)

	env.sqlMock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(models.KindTravelPlan, "a@example.com", "2025-12-01").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	env.sqlMock.ExpectExec(`INSERT INTO generated_results`).
		WithArgs(sqlmock.AnyArg(), models.KindTravelPlan, "a@example.com", "2025-12-01",
			sqlmock.AnyArg(), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	output, err := env.handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, "Tenkasi", output.TravelPlan.Location)
	assert.Len(t, output.TravelPlan.SightseeingPlaces, 2)
	assert.True(t, output.Repaired)
	assert.NotEmpty(t, output.RecordKey)
	assert.True(t, env.redis.Exists("generated:travel_plan:a@example.com:2025-12-01"))
	assert.NoError(t, env.sqlMock.ExpectationsWereMet())

	// output is what the job completes with
	vars, err := json.Marshal(output)
	require.NoError(t, err)
	assert.Contains(t, string(vars), `"travelPlan":{"location":"Tenkasi"`)
}

func TestHandler_Execute_DuplicateFromMarker(t *testing.T) {
	env := newTestEnv(t, completion)
	require.NoError(t, env.redis.Set("generated:travel_plan:a@example.com:2025-12-01", "1"))

	_, err := env.handler.Execute(context.Background(), createTestInput())
	require.ErrorIs(t, err, idempotency.ErrDuplicateRequest)
	assert.Equal(t, 0, env.completer.calls)

	stdErr := generation.StandardError(err)
	assert.Equal(t, apperrors.ErrCodeDuplicateRequest, stdErr.Code)
	assert.NoError(t, env.sqlMock.ExpectationsWereMet())
}

func TestHandler_Execute_SchemaViolation(t *testing.T) {
	raw := strings.Replace(completion, `"overview": "Waterfalls and temples at the foot of the Western Ghats."`+"\n", "", 1)
	env := newTestEnv(t, raw)

	env.sqlMock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := env.handler.Execute(context.Background(), createTestInput())
	require.Error(t, err)

	stdErr := generation.StandardError(err)
	assert.Equal(t, apperrors.ErrCodeSchemaValidationFailed, stdErr.Code)
	assert.Equal(t, []string{"overview"}, stdErr.Metadata["fieldPaths"])
	assert.Equal(t, 0, apperrors.ConvertToBPMNError(stdErr).Retries)
	assert.NoError(t, env.sqlMock.ExpectationsWereMet())
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *Input)
		violation string
	}{
		{"missing email", func(in *Input) { in.Email = "" }, "email"},
		{"bad email", func(in *Input) { in.Email = "traveller" }, "email"},
		{"bad date", func(in *Input) { in.StartDate = "01/12/2025" }, "startDate"},
		{"past date", func(in *Input) { in.StartDate = "2025-01-01" }, "start_date"},
		{"too many days", func(in *Input) { in.NumberOfDays = 31 }, "number_of_days"},
		{"missing location", func(in *Input) { in.Location = "" }, "location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, completion)
			input := createTestInput()
			tt.mutate(input)

			_, err := env.handler.Execute(context.Background(), input)
			require.ErrorIs(t, err, models.ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.violation)

			assert.Equal(t, apperrors.ErrCodeInputValidationFailed, generation.StandardError(err).Code)
			assert.Equal(t, 0, env.completer.calls)
		})
	}
}

func TestInput_ToRequest(t *testing.T) {
	req, err := createTestInput().toRequest()
	require.NoError(t, err)
	assert.Equal(t, "2025-12-01", req.DistinguishingKey())
	assert.Equal(t, []string{"waterfalls"}, req.Interests)

	input := createTestInput()
	input.StartDate = ""
	req, err = input.toRequest()
	require.NoError(t, err)
	assert.True(t, req.StartDate.IsZero())
	assert.Error(t, req.Validate(now))
}
