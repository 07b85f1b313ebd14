// Package insights generates personalized improvement plans from assessment
// results. Plans are served from the pre-generated store when one exists for
// the user's score; otherwise a chat model composes one, grounded on the
// learning resources the retriever surfaces for the user's weak areas.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/uxlens/uxlens-go/internal/budget"
	"github.com/uxlens/uxlens-go/internal/pregen"
	"github.com/uxlens/uxlens-go/internal/rag"
)

// ChatModel is the narrow slice of the eino chat model used here.
// model.ToolCallingChatModel satisfies it.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Assessment is the self-assessment result a plan is derived from.
type Assessment struct {
	// Stage is the user's career stage (junior, mid, senior, lead).
	Stage string `json:"stage"`
	// OverallScore is the total points achieved.
	OverallScore float64 `json:"overall_score"`
	// MaxScore is the total points possible.
	MaxScore float64 `json:"max_score"`
	// Categories is the per-category score breakdown.
	Categories []rag.CategoryScore `json:"categories"`
}

// NormalizedScore returns the assessment as a whole-number score in [0, 100],
// the key space of the pre-generated plan store.
func (a Assessment) NormalizedScore() int {
	if a.MaxScore <= 0 {
		return 0
	}
	score := int(math.Round(a.OverallScore / a.MaxScore * 100))
	if score < 0 {
		return 0
	}
	if score > pregen.MaxScore {
		return pregen.MaxScore
	}
	return score
}

// Plan is an improvement plan for one assessment.
type Plan struct {
	// Source records how the plan was produced: "pregenerated" or "generated".
	Source string `json:"source"`
	// Stage echoes the assessment stage.
	Stage string `json:"stage"`
	// Score is the normalized whole-number score the plan targets.
	Score int `json:"score"`
	// Advice is the plan text.
	Advice string `json:"advice"`
	// FocusAreas are the categories the plan concentrates on.
	FocusAreas []string `json:"focus_areas"`
	// Resources are the learning resources grounding the plan.
	Resources []rag.UniqueResource `json:"resources"`
}

// pregenPayload is the JSON shape stored in the pre-generated plan store.
type pregenPayload struct {
	Advice     string   `json:"advice"`
	FocusAreas []string `json:"focus_areas"`
}

// Config holds Generator construction parameters.
type Config struct {
	// MaxContextTokens bounds the prompt budget (default: budget.DefaultMaxContextTokens).
	MaxContextTokens int
	// Logger is the structured logger. If nil, slog.Default is used.
	Logger *slog.Logger
}

// Generator produces improvement plans. Model and plan store are optional:
// without a plan store every plan is generated, and without a model a pregen
// miss is an error.
type Generator struct {
	model     ChatModel
	retriever *rag.Retriever
	plans     pregen.PlanStore
	maxTokens int
	log       *slog.Logger
}

// NewGenerator constructs a Generator over the given retriever.
func NewGenerator(chatModel ChatModel, retriever *rag.Retriever, plans pregen.PlanStore, cfg *Config) (*Generator, error) {
	if retriever == nil {
		return nil, fmt.Errorf("insights: retriever must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	maxTokens := cfg.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = budget.DefaultMaxContextTokens
	}
	return &Generator{
		model:     chatModel,
		retriever: retriever,
		plans:     plans,
		maxTokens: maxTokens,
		log:       log,
	}, nil
}

// ImprovementPlan returns the plan for an assessment, preferring the
// pre-generated store and falling back to model generation. The retrieved
// resources are attached in both cases so the response always carries fresh
// recommendations.
func (g *Generator) ImprovementPlan(ctx context.Context, a Assessment) (Plan, error) {
	score := a.NormalizedScore()
	resources := g.retriever.RetrieveResourcesForUser(ctx, a.Stage, a.Categories, 5)
	focus := rag.WeakestCategories(a.Categories, 2)

	if g.plans != nil {
		raw, ok, err := g.plans.Get(ctx, score)
		if err != nil {
			g.log.Warn("insights: pregen lookup failed, generating instead",
				slog.Int("score", score),
				slog.Any("error", err),
			)
		} else if ok {
			var payload pregenPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				g.log.Warn("insights: malformed pregen plan, generating instead",
					slog.Int("score", score),
					slog.Any("error", err),
				)
			} else {
				plan := Plan{
					Source:     "pregenerated",
					Stage:      a.Stage,
					Score:      score,
					Advice:     payload.Advice,
					FocusAreas: payload.FocusAreas,
					Resources:  resources,
				}
				if len(plan.FocusAreas) == 0 {
					plan.FocusAreas = focus
				}
				return plan, nil
			}
		}
	}

	if g.model == nil {
		return Plan{}, fmt.Errorf("insights: no pre-generated plan for score %d and no model configured", score)
	}

	advice, err := g.generateAdvice(ctx, a, score, focus, resources)
	if err != nil {
		return Plan{}, err
	}

	return Plan{
		Source:     "generated",
		Stage:      a.Stage,
		Score:      score,
		Advice:     advice,
		FocusAreas: focus,
		Resources:  resources,
	}, nil
}

// CategoryReadup composes a short narrative introduction to one skill
// category for a designer at the given stage, grounded on retrieved
// resources. Unlike ImprovementPlan there is no pre-generated path: readups
// always need a model.
func (g *Generator) CategoryReadup(ctx context.Context, category, stage string) (string, error) {
	if category == "" {
		return "", fmt.Errorf("insights: category must not be empty")
	}
	if g.model == nil {
		return "", fmt.Errorf("insights: no model configured for category readups")
	}

	resources := g.retriever.SemanticSearch(ctx,
		fmt.Sprintf("%s in UX design", category),
		rag.SearchFilter{Category: category},
		5,
	)

	var req strings.Builder
	fmt.Fprintf(&req, "Skill category: %s\n", category)
	if stage != "" {
		fmt.Fprintf(&req, "Career stage: %s\n", stage)
	}
	req.WriteString("\nWrite a short readup introducing this skill area and how to get better at it.")

	blocks := make([]string, len(resources))
	for i, r := range resources {
		blocks[i] = fmt.Sprintf("- %s (%s, %s): %s", r.Title, r.Category, r.Difficulty, r.ContentPreview)
	}
	blocks = budget.TrimResourceBlocks(systemPrompt+req.String(), blocks, g.maxTokens)
	if len(blocks) > 0 {
		req.WriteString("\n\nGround the readup in these resources:\n")
		req.WriteString(strings.Join(blocks, "\n"))
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(req.String()),
	}
	out, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("insights: model generation failed: %w", err)
	}
	return strings.TrimSpace(out.Content), nil
}

// systemPrompt frames the model as a UX career coach. Deliberately minimal.
const systemPrompt = "You are a UX design career coach. Write a concise, actionable improvement plan grounded in the provided resources. Plain text, no markdown headings."

// generateAdvice composes the prompt, trims the grounding material to the
// token budget, and calls the chat model.
func (g *Generator) generateAdvice(ctx context.Context, a Assessment, score int, focus []string, resources []rag.UniqueResource) (string, error) {
	var req strings.Builder
	fmt.Fprintf(&req, "Career stage: %s\n", a.Stage)
	fmt.Fprintf(&req, "Assessment score: %d/100\n", score)
	if len(focus) > 0 {
		fmt.Fprintf(&req, "Weakest skill areas: %s\n", strings.Join(focus, ", "))
	}
	req.WriteString("\nWrite an improvement plan for this designer.")

	blocks := make([]string, len(resources))
	for i, r := range resources {
		blocks[i] = fmt.Sprintf("- %s (%s, %s): %s", r.Title, r.Category, r.Difficulty, r.ContentPreview)
	}
	blocks = budget.TrimResourceBlocks(systemPrompt+req.String(), blocks, g.maxTokens)
	if len(blocks) < len(resources) {
		g.log.Debug("insights: trimmed grounding resources to fit budget",
			slog.Int("kept", len(blocks)),
			slog.Int("total", len(resources)),
		)
	}
	if len(blocks) > 0 {
		req.WriteString("\n\nGround your advice in these resources:\n")
		req.WriteString(strings.Join(blocks, "\n"))
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(req.String()),
	}
	out, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("insights: model generation failed: %w", err)
	}
	return strings.TrimSpace(out.Content), nil
}
