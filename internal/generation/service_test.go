package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"travel-planner-workers/internal/common/config"
	"travel-planner-workers/internal/common/llm"
	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/idempotency"
	"travel-planner-workers/internal/models"
	"travel-planner-workers/internal/prompts"
	"travel-planner-workers/internal/reconcile"
	"travel-planner-workers/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type fakeGuard struct {
	exists  bool
	err     error
	checks  int
	markers []string
}

func (g *fakeGuard) AlreadyGenerated(_ context.Context, _, _, _ string) (bool, error) {
	g.checks++
	return g.exists, g.err
}

func (g *fakeGuard) MarkGenerated(_ context.Context, kind, identity, key string) {
	g.markers = append(g.markers, idempotency.MarkerKey(kind, identity, key))
}

type fakeStore struct {
	err     error
	records []store.Record
}

func (s *fakeStore) Insert(_ context.Context, rec store.Record) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type fakeIndexer struct {
	err     error
	indexed []uuid.UUID
}

func (i *fakeIndexer) Index(_ context.Context, rec store.Record, _ *models.TravelResponse) error {
	i.indexed = append(i.indexed, rec.ID)
	return i.err
}

type fakeCompleter struct {
	raw   string
	err   error
	calls int
	last  llm.Request
}

func (c *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	c.calls++
	c.last = req
	return c.raw, c.err
}

// ==========================
// Helpers
// ==========================

var (
	now      = time.Date(2025, 11, 20, 9, 30, 0, 0, time.UTC)
	recordID = uuid.MustParse("0b6c7a52-3c55-4d0f-8f83-2b0bb1a0b8d4")
)

func travelPlanJSON(t *testing.T) string {
	t.Helper()
	start, err := models.ParseDate("2025-12-01")
	require.NoError(t, err)

	activity := func(name string) models.DailyActivity {
		return models.DailyActivity{Time: "09:00 AM", Activity: name, Description: name + " visit", Location: "Tenkasi", Duration: "2 hours"}
	}
	plan := models.TravelResponse{
		Location:     "Tenkasi",
		TripDuration: 2,
		StartDate:    start,
		EndDate:      start.AddDays(1),
		Language:     "english",
		Overview:     "Waterfalls, temples and quiet villages at the foot of the Western Ghats.",
		SightseeingPlaces: []models.SightseeingPlace{
			{Name: "Courtallam Falls", Description: "Main falls", Category: "nature", EstimatedDuration: "2 hours"},
			{Name: "Kasi Viswanathar Temple", Description: "Pandya era temple", Category: "cultural_site", EstimatedDuration: "1 hour"},
			{Name: "Five Falls", Description: "Five streams", Category: "nature", EstimatedDuration: "2 hours"},
		},
		Itinerary: []models.DayItinerary{
			{DayNumber: 1, Date: start, Title: "Falls", Activities: []models.DailyActivity{activity("Courtallam Falls")}},
			{DayNumber: 2, Date: start.AddDays(1), Title: "Temples", Activities: []models.DailyActivity{activity("Kasi Viswanathar Temple")}},
		},
	}
	out, err := json.MarshalIndent(plan, "", "  ")
	require.NoError(t, err)
	return string(out)
}

func travelRequest(t *testing.T) *models.TravelRequest {
	t.Helper()
	start, err := models.ParseDate("2025-12-01")
	require.NoError(t, err)
	return &models.TravelRequest{Location: "Tenkasi", NumberOfDays: 2, StartDate: start}
}

type fixture struct {
	guard     *fakeGuard
	completer *fakeCompleter
	store     *fakeStore
	indexer   *fakeIndexer
	service   *TravelPlanService
}

func newFixture(t *testing.T, raw string) *fixture {
	t.Helper()
	f := &fixture{
		guard:     &fakeGuard{},
		completer: &fakeCompleter{raw: raw},
		store:     &fakeStore{},
		indexer:   &fakeIndexer{},
	}
	f.service = newTravelService(t, f.guard, f.completer, f.store, f.indexer)
	return f
}

func newTravelService(t *testing.T, guard Guard, completer llm.Completer, persister Persister, indexer Indexer[models.TravelResponse]) *TravelPlanService {
	t.Helper()
	log := logger.NewTestLogger(t)

	pipeline, err := reconcile.NewTravelPlanPipeline(reconcile.Options{Logger: log})
	require.NoError(t, err)
	renderer, err := prompts.New(config.PromptsConfig{})
	require.NoError(t, err)

	return NewService(Dependencies[*models.TravelRequest, models.TravelResponse]{
		Guard:     guard,
		Completer: completer,
		Prompt:    renderer.TravelPlan,
		Parser:    pipeline,
		Store:     persister,
		Indexer:   indexer,
		Clock:     func() time.Time { return now },
		NewID:     func() uuid.UUID { return recordID },
		Logger:    log,
	})
}

// ==========================
// Scenarios
// ==========================

func TestGenerate_ValidCompletion(t *testing.T) {
	f := newFixture(t, travelPlanJSON(t))

	out, err := f.service.Generate(context.Background(), " A@Example.com ", travelRequest(t))
	require.NoError(t, err)

	assert.Equal(t, "Tenkasi", out.Result.Location)
	assert.False(t, out.Trace.Repaired)
	assert.Contains(t, f.completer.last.Prompt, "Destination: Tenkasi")

	require.Len(t, f.store.records, 1)
	rec := f.store.records[0]
	assert.Equal(t, recordID, rec.ID)
	assert.Equal(t, models.KindTravelPlan, rec.Kind)
	assert.Equal(t, "a@example.com", rec.Identity)
	assert.Equal(t, "2025-12-01", rec.DistinguishingKey)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Contains(t, string(rec.Request), `"budget_level":"medium"`)
	assert.Contains(t, string(rec.Result), `"location":"Tenkasi"`)

	assert.Equal(t, []string{"generated:travel_plan:a@example.com:2025-12-01"}, f.guard.markers)
	assert.Equal(t, []uuid.UUID{recordID}, f.indexer.indexed)
}

func TestGenerate_RepairsMissingComma(t *testing.T) {
	raw := strings.Replace(travelPlanJSON(t), `"location": "Tenkasi",`, `"location": "Tenkasi"`, 1)
	f := newFixture(t, "```json\n"+raw+"\n```")

	out, err := f.service.Generate(context.Background(), "a@example.com", travelRequest(t))
	require.NoError(t, err)

	assert.True(t, out.Trace.Repaired)
	require.Len(t, out.Trace.Attempts, 1)
	assert.Equal(t, 2, out.Result.TripDuration)
	assert.Len(t, f.store.records, 1)
}

func TestGenerate_InvalidCompletionStoresNothing(t *testing.T) {
	raw := "I'm sorry, here is the plan: {\"location\": \"Tenkasi\", \"itinerary\": [ {day 1} ]}"
	f := newFixture(t, raw)

	_, err := f.service.Generate(context.Background(), "a@example.com", travelRequest(t))
	require.ErrorIs(t, err, reconcile.ErrInvalidCompletion)

	var invalid *reconcile.InvalidCompletionError
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, invalid.Attempts, 2)
	assert.Equal(t, raw, invalid.Raw)

	assert.Empty(t, f.store.records)
	assert.Empty(t, f.guard.markers)
	assert.Empty(t, f.indexer.indexed)
}

func TestGenerate_SchemaViolationStoresNothing(t *testing.T) {
	var plan map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(travelPlanJSON(t)), &plan))
	delete(plan, "overview")
	raw, err := json.Marshal(plan)
	require.NoError(t, err)

	f := newFixture(t, string(raw))

	_, err = f.service.Generate(context.Background(), "a@example.com", travelRequest(t))
	var schemaErr *reconcile.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"overview"}, schemaErr.Paths())
	assert.Empty(t, f.store.records)
	assert.Empty(t, f.guard.markers)
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	f := newFixture(t, "   ")

	_, err := f.service.Generate(context.Background(), "a@example.com", travelRequest(t))
	assert.ErrorIs(t, err, reconcile.ErrEmptyCompletion)
	assert.Empty(t, f.store.records)
}

func TestGenerate_DuplicateSkipsCompletion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(models.KindTravelPlan, "a@example.com", "2025-12-01").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	pg := store.NewPostgresStore(db)
	guard := idempotency.NewGuard(pg, nil, idempotency.Config{}, logger.NewTestLogger(t))
	completer := &fakeCompleter{raw: travelPlanJSON(t)}
	service := newTravelService(t, guard, completer, pg, nil)

	_, err = service.Generate(context.Background(), "a@example.com", travelRequest(t))
	require.ErrorIs(t, err, idempotency.ErrDuplicateRequest)

	var dup *idempotency.DuplicateRequestError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a@example.com", dup.Identity)
	assert.Equal(t, "2025-12-01", dup.Key)

	assert.Equal(t, 0, completer.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerate_LostInsertRaceIsDuplicate(t *testing.T) {
	f := newFixture(t, travelPlanJSON(t))
	f.store.err = store.ErrAlreadyExists

	_, err := f.service.Generate(context.Background(), "a@example.com", travelRequest(t))
	assert.ErrorIs(t, err, idempotency.ErrDuplicateRequest)
	assert.Empty(t, f.guard.markers)
}

func TestGenerate_CollaboratorFailures(t *testing.T) {
	t.Run("guard", func(t *testing.T) {
		f := newFixture(t, travelPlanJSON(t))
		f.guard.err = errors.New("db down")

		_, err := f.service.Generate(context.Background(), "a@example.com", travelRequest(t))
		assert.ErrorIs(t, err, ErrGuardFailed)
		assert.ErrorContains(t, err, "db down")
		assert.Equal(t, 0, f.completer.calls)
	})

	t.Run("completion", func(t *testing.T) {
		f := newFixture(t, "")
		f.completer.err = context.DeadlineExceeded

		_, err := f.service.Generate(context.Background(), "a@example.com", travelRequest(t))
		assert.ErrorIs(t, err, ErrGenerationFailed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, f.store.records)
	})

	t.Run("persist", func(t *testing.T) {
		f := newFixture(t, travelPlanJSON(t))
		f.store.err = errors.New("connection reset")

		_, err := f.service.Generate(context.Background(), "a@example.com", travelRequest(t))
		assert.ErrorIs(t, err, ErrPersistFailed)
		assert.Empty(t, f.guard.markers)
		assert.Empty(t, f.indexer.indexed)
	})

	t.Run("index is best effort", func(t *testing.T) {
		f := newFixture(t, travelPlanJSON(t))
		f.indexer.err = errors.New("es unavailable")

		out, err := f.service.Generate(context.Background(), "a@example.com", travelRequest(t))
		require.NoError(t, err)
		assert.NotNil(t, out.Result)
		assert.Len(t, f.store.records, 1)
	})
}

func TestGenerate_CancelledBeforePersist(t *testing.T) {
	f := newFixture(t, travelPlanJSON(t))
	ctx, cancel := context.WithCancel(context.Background())
	service := newTravelService(t, f.guard, llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		cancel()
		return travelPlanJSON(t), nil
	}), f.store, f.indexer)

	_, err := service.Generate(ctx, "a@example.com", travelRequest(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.records)
	assert.Empty(t, f.guard.markers)
}

func TestGenerate_InvalidRequest(t *testing.T) {
	f := newFixture(t, travelPlanJSON(t))

	past := travelRequest(t)
	past.StartDate = past.StartDate.AddDays(-30)

	_, err := f.service.Generate(context.Background(), "a@example.com", past)
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.ErrorContains(t, err, "start_date")

	_, err = f.service.Generate(context.Background(), "  ", travelRequest(t))
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	assert.Equal(t, 0, f.guard.checks)
	assert.Equal(t, 0, f.completer.calls)
}

func TestGenerate_Quiz(t *testing.T) {
	guard := &fakeGuard{}
	persister := &fakeStore{}
	completer := &fakeCompleter{raw: `{"subject": "Go", "difficulty": "easy", "language": "english", "questions": [
		{"question": "Which keyword starts a goroutine?", "options": ["go", "async"], "answer": "go"},
	]}`}

	pipeline, err := reconcile.NewQuizPipeline(reconcile.Options{})
	require.NoError(t, err)
	renderer, err := prompts.New(config.PromptsConfig{})
	require.NoError(t, err)

	service := NewService(Dependencies[*models.QuizRequest, models.QuizBatch]{
		Guard:     guard,
		Completer: completer,
		Prompt:    renderer.Quiz,
		Parser:    pipeline,
		Store:     persister,
		Clock:     func() time.Time { return now },
	})

	out, err := service.Generate(context.Background(), "a@example.com", &models.QuizRequest{Subject: " Go ", NumberOfQuestions: 1})
	require.NoError(t, err)
	assert.True(t, out.Trace.Repaired)
	require.Len(t, persister.records, 1)
	assert.Equal(t, "go", persister.records[0].DistinguishingKey)
	assert.Equal(t, []string{"generated:quiz:a@example.com:go"}, guard.markers)
}
