// Package prompts renders the model instructions for each result kind.
// Built-in templates are embedded; a configured path replaces one.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"travel-planner-workers/internal/common/config"
	"travel-planner-workers/internal/common/llm"
	"travel-planner-workers/internal/models"
)

//go:embed templates/*.tmpl
var builtin embed.FS

const (
	travelPlanSystem = "You are a professional travel planner who writes detailed, practical itineraries. You always answer with valid JSON only."
	quizSystem       = "You are an experienced teacher who writes clear, unambiguous quizzes. You always answer with valid JSON only."

	// used when the traveller lists no interests
	defaultInterests = "general tourism"
)

// Renderer turns requests into completion requests.
type Renderer struct {
	travelPlan *template.Template
	quiz       *template.Template
}

// New parses the built-in templates, replacing any whose override path is
// set in cfg.
func New(cfg config.PromptsConfig) (*Renderer, error) {
	travelPlan, err := load("travel_plan", cfg.TravelPlanPath)
	if err != nil {
		return nil, err
	}
	quiz, err := load("quiz", cfg.QuizPath)
	if err != nil {
		return nil, err
	}
	return &Renderer{travelPlan: travelPlan, quiz: quiz}, nil
}

func load(name, overridePath string) (*template.Template, error) {
	var (
		src []byte
		err error
	)
	if overridePath != "" {
		src, err = os.ReadFile(overridePath)
	} else {
		src, err = builtin.ReadFile("templates/" + name + ".tmpl")
	}
	if err != nil {
		return nil, fmt.Errorf("read %s prompt template: %w", name, err)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse %s prompt template: %w", name, err)
	}
	return tmpl, nil
}

type travelPlanData struct {
	Location     string
	NumberOfDays int
	StartDate    string
	EndDate      string
	Language     string
	Interests    string
	BudgetLevel  string
}

// TravelPlan renders the itinerary prompt for a normalized request.
func (r *Renderer) TravelPlan(req *models.TravelRequest) (llm.Request, error) {
	interests := strings.Join(req.Interests, ", ")
	if interests == "" {
		interests = defaultInterests
	}

	return render(r.travelPlan, travelPlanSystem, travelPlanData{
		Location:     req.Location,
		NumberOfDays: req.NumberOfDays,
		StartDate:    req.StartDate.String(),
		EndDate:      req.EndDate().String(),
		Language:     req.PreferredLanguage,
		Interests:    interests,
		BudgetLevel:  req.BudgetLevel,
	})
}

type quizData struct {
	Subject           string
	NumberOfQuestions int
	Difficulty        string
	Language          string
	Topics            string
}

// Quiz renders the quiz prompt for a normalized request.
func (r *Renderer) Quiz(req *models.QuizRequest) (llm.Request, error) {
	return render(r.quiz, quizSystem, quizData{
		Subject:           req.Subject,
		NumberOfQuestions: req.NumberOfQuestions,
		Difficulty:        req.Difficulty,
		Language:          req.PreferredLanguage,
		Topics:            strings.Join(req.Topics, ", "),
	})
}

func render(tmpl *template.Template, system string, data interface{}) (llm.Request, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return llm.Request{}, fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return llm.Request{System: system, Prompt: buf.String()}, nil
}
