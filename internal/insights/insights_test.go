package insights

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/uxlens/uxlens-go/internal/pregen"
	"github.com/uxlens/uxlens-go/internal/rag"
)

// fakeModel returns a canned reply and records the prompt it received.
type fakeModel struct {
	reply  string
	fail   bool
	prompt string
	calls  int
}

func (m *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	if m.fail {
		return nil, errors.New("model down")
	}
	for _, msg := range input {
		if msg.Role == schema.User {
			m.prompt = msg.Content
		}
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

// fakeSearchStore serves one fixed chunk per query so the retriever has
// something to ground plans on.
type fakeSearchStore struct{}

func (fakeSearchStore) Search(ctx context.Context, query string, filter rag.SearchFilter, topK int) ([]rag.ResourceChunk, error) {
	return []rag.ResourceChunk{{
		ChunkID:  "c1",
		Content:  "Contrast and hierarchy drive usable layouts.",
		Distance: 0.2,
		Metadata: rag.ResourceMetadata{
			ResourceID: "r-" + filter.Category + query[:1],
			Title:      "Layout Foundations",
			URL:        "https://example.com/layout",
			Category:   "Visual Design",
			Difficulty: "Beginner",
		},
	}}, nil
}

func (fakeSearchStore) ExistsByID(ctx context.Context, resourceID string) (bool, error) {
	return false, nil
}

func (fakeSearchStore) Upsert(ctx context.Context, chunks []rag.ResourceChunk, embeddings [][]float32) error {
	return nil
}

func (fakeSearchStore) Delete(ctx context.Context, resourceID string) error { return nil }

func (fakeSearchStore) Stats(ctx context.Context) (rag.StoreStats, error) {
	return rag.StoreStats{}, nil
}

func (fakeSearchStore) Close() error { return nil }

// newTestRetriever builds a retriever over the fake store with hermetic metrics.
func newTestRetriever(t *testing.T) *rag.Retriever {
	t.Helper()
	r, err := rag.NewRetriever(fakeSearchStore{}, &rag.Config{
		Logger:     slog.New(slog.DiscardHandler),
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	return r
}

// openPlanStore opens an in-memory pregen store.
func openPlanStore(t *testing.T) *pregen.SQLiteStore {
	t.Helper()
	s, err := pregen.Open(":memory:")
	if err != nil {
		t.Fatalf("open pregen store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testAssessment is a 60/100 assessment with Visual Design weakest.
func testAssessment() Assessment {
	return Assessment{
		Stage:        "mid",
		OverallScore: 60,
		MaxScore:     100,
		Categories: []rag.CategoryScore{
			{Name: "User Research", Score: 80, MaxScore: 100},
			{Name: "Visual Design", Score: 40, MaxScore: 100},
			{Name: "Prototyping", Score: 60, MaxScore: 100},
		},
	}
}

// TestNormalizedScore verifies rounding and clamping into [0, 100].
func TestNormalizedScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		overall float64
		max     float64
		want    int
	}{
		{"exact", 60, 100, 60},
		{"rounds up", 125.2, 200, 63},
		{"rounds down", 124.4, 200, 62},
		{"zero max", 50, 0, 0},
		{"over max clamps", 120, 100, 100},
		{"negative clamps", -10, 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := Assessment{OverallScore: tc.overall, MaxScore: tc.max}
			if got := a.NormalizedScore(); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

// TestImprovementPlan_PregeneratedHit verifies a stored plan short-circuits
// model generation while still carrying fresh resources.
func TestImprovementPlan_PregeneratedHit(t *testing.T) {
	t.Parallel()

	plans := openPlanStore(t)
	if err := plans.Put(context.Background(), 60,
		[]byte(`{"advice":"Practice layout critiques weekly.","focus_areas":["Visual Design"]}`)); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	m := &fakeModel{reply: "unused"}
	g, err := NewGenerator(m, newTestRetriever(t), plans, &Config{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	plan, err := g.ImprovementPlan(context.Background(), testAssessment())
	if err != nil {
		t.Fatalf("ImprovementPlan: %v", err)
	}
	if plan.Source != "pregenerated" {
		t.Errorf("expected pregenerated source, got %q", plan.Source)
	}
	if plan.Advice != "Practice layout critiques weekly." {
		t.Errorf("unexpected advice %q", plan.Advice)
	}
	if m.calls != 0 {
		t.Errorf("expected no model calls on pregen hit, got %d", m.calls)
	}
	if len(plan.Resources) == 0 {
		t.Error("expected retrieved resources attached to pregenerated plan")
	}
}

// TestImprovementPlan_GeneratedOnMiss verifies the model fallback and that
// the prompt carries stage, score, and weak areas.
func TestImprovementPlan_GeneratedOnMiss(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "Focus on visual hierarchy first.\n"}
	g, err := NewGenerator(m, newTestRetriever(t), openPlanStore(t), &Config{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	plan, err := g.ImprovementPlan(context.Background(), testAssessment())
	if err != nil {
		t.Fatalf("ImprovementPlan: %v", err)
	}
	if plan.Source != "generated" {
		t.Errorf("expected generated source, got %q", plan.Source)
	}
	if plan.Advice != "Focus on visual hierarchy first." {
		t.Errorf("expected trimmed model reply, got %q", plan.Advice)
	}
	if len(plan.FocusAreas) != 2 || plan.FocusAreas[0] != "Visual Design" {
		t.Errorf("unexpected focus areas %v", plan.FocusAreas)
	}

	for _, want := range []string{"mid", "60/100", "Visual Design"} {
		if !strings.Contains(m.prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, m.prompt)
		}
	}
}

// TestImprovementPlan_NoStoreNoModel verifies the error path when neither a
// pregenerated plan nor a model is available.
func TestImprovementPlan_NoStoreNoModel(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(nil, newTestRetriever(t), nil, &Config{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	if _, err := g.ImprovementPlan(context.Background(), testAssessment()); err == nil {
		t.Error("expected error without plan store and model")
	}
}

// TestImprovementPlan_ModelFailure verifies model errors surface to the caller.
func TestImprovementPlan_ModelFailure(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(&fakeModel{fail: true}, newTestRetriever(t), openPlanStore(t),
		&Config{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	if _, err := g.ImprovementPlan(context.Background(), testAssessment()); err == nil {
		t.Error("expected error when model fails")
	}
}

// TestCategoryReadup verifies readup generation grounds the prompt in the
// category and that a missing model is an error.
func TestCategoryReadup(t *testing.T) {
	t.Parallel()

	m := &fakeModel{reply: "Visual design is about hierarchy."}
	g, err := NewGenerator(m, newTestRetriever(t), nil, &Config{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	got, err := g.CategoryReadup(context.Background(), "Visual Design", "mid")
	if err != nil {
		t.Fatalf("CategoryReadup: %v", err)
	}
	if got != "Visual design is about hierarchy." {
		t.Errorf("unexpected readup %q", got)
	}
	if !strings.Contains(m.prompt, "Visual Design") {
		t.Errorf("prompt missing category:\n%s", m.prompt)
	}

	noModel, err := NewGenerator(nil, newTestRetriever(t), nil, &Config{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, err := noModel.CategoryReadup(context.Background(), "Visual Design", "mid"); err == nil {
		t.Error("expected error without a model")
	}
}

// TestImprovementPlan_MalformedPregenFallsBack verifies a corrupt stored plan
// degrades to generation rather than failing the request.
func TestImprovementPlan_MalformedPregenFallsBack(t *testing.T) {
	t.Parallel()

	plans := openPlanStore(t)
	// Valid JSON for the store, wrong shape for a plan payload.
	if err := plans.Put(context.Background(), 60, []byte(`"just a string"`)); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	m := &fakeModel{reply: "Generated fallback."}
	g, err := NewGenerator(m, newTestRetriever(t), plans, &Config{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	plan, err := g.ImprovementPlan(context.Background(), testAssessment())
	if err != nil {
		t.Fatalf("ImprovementPlan: %v", err)
	}
	if plan.Source != "generated" {
		t.Errorf("expected generated fallback, got %q", plan.Source)
	}
}
