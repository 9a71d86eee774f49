// Package search keeps a summary of every stored travel plan in
// Elasticsearch for the admin and search tooling. Indexing is best effort:
// the relational store stays the source of truth.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/models"
	"travel-planner-workers/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/samber/lo"
)

// TravelPlanDocument is the indexed view of a stored plan.
type TravelPlanDocument struct {
	Email        string    `json:"email"`
	Location     string    `json:"location"`
	TripDuration int       `json:"tripDuration"`
	StartDate    string    `json:"startDate"`
	EndDate      string    `json:"endDate"`
	Language     string    `json:"language"`
	Overview     string    `json:"overview"`
	Places       []string  `json:"places"`
	Categories   []string  `json:"categories"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewTravelPlanDocument summarizes plan as stored under rec.
func NewTravelPlanDocument(rec store.Record, plan *models.TravelResponse) TravelPlanDocument {
	return TravelPlanDocument{
		Email:        rec.Identity,
		Location:     plan.Location,
		TripDuration: plan.TripDuration,
		StartDate:    plan.StartDate.String(),
		EndDate:      plan.EndDate.String(),
		Language:     plan.Language,
		Overview:     plan.Overview,
		Places: lo.Map(plan.SightseeingPlaces, func(p models.SightseeingPlace, _ int) string {
			return p.Name
		}),
		Categories: lo.Uniq(lo.Map(plan.SightseeingPlaces, func(p models.SightseeingPlace, _ int) string {
			return p.Category
		})),
		CreatedAt: rec.CreatedAt,
	}
}

type Indexer struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(es *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

// Index writes the plan summary under the record ID, so re-indexing the
// same record overwrites rather than duplicates.
func (i *Indexer) Index(ctx context.Context, rec store.Record, plan *models.TravelResponse) error {
	body, err := json.Marshal(NewTravelPlanDocument(rec, plan))
	if err != nil {
		return fmt.Errorf("marshal travel plan document: %w", err)
	}

	res, err := i.es.Index(
		i.index,
		bytes.NewReader(body),
		i.es.Index.WithDocumentID(rec.ID.String()),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index travel plan: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("index travel plan: %s: %s", res.Status(), detail)
	}

	i.logger.Debug("travel plan indexed", map[string]interface{}{
		"recordId": rec.ID.String(),
		"email":    rec.Identity,
	})
	return nil
}
