// Package schemas holds the JSON Schema contracts generated results must
// satisfy before they are decoded.
package schemas

import _ "embed"

//go:embed travel_plan.json
var TravelPlan []byte

//go:embed quiz_batch.json
var QuizBatch []byte
