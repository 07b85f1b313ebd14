package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"

	"github.com/uxlens/uxlens-go/internal/pregen"
)

// ModelPinger probes a chat model backend by sending a minimal generate
// request. It satisfies the Pinger interface and is used by GET /api/ready.
// The probe consumes a handful of tokens, so /api/ready should not be polled
// aggressively when a paid backend is configured.
type ModelPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewModelPinger constructs a ModelPinger for the given model and backend name.
func NewModelPinger(m model.ToolCallingChatModel, name string) *ModelPinger {
	return &ModelPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *ModelPinger) Name() string { return p.name }

// Ping sends a one-word generate request to the backend.
func (p *ModelPinger) Ping(ctx context.Context) error {
	msgs := []*schema.Message{
		schema.UserMessage("ping"),
	}
	resp, err := p.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// PlanStorePinger probes the pre-generated plan store with a stats query.
type PlanStorePinger struct {
	// store is the plan store to probe.
	store pregen.PlanStore
}

// NewPlanStorePinger constructs a PlanStorePinger for the given store.
func NewPlanStorePinger(store pregen.PlanStore) *PlanStorePinger {
	return &PlanStorePinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *PlanStorePinger) Name() string { return "pregen" }

// Ping runs a stats query against the plan store.
func (p *PlanStorePinger) Ping(ctx context.Context) error {
	if _, err := p.store.Stats(ctx); err != nil {
		return fmt.Errorf("stats query failed: %w", err)
	}
	return nil
}
