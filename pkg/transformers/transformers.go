// Package transformers maps decoded logs of known contract roles to signals:
// draft domain events that the transform engine stamps, aggregates and
// reconciles.
package transformers

import (
	"fmt"
	"sort"

	"github.com/Layr-Labs/sidecar-events/pkg/contractStore"
	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"go.uber.org/zap"
)

// Signal is a draft event produced from one log.
type Signal struct {
	Role            contractStore.ContractRole
	SourceEvent     string
	ContractAddress string
	LogIndex        uint64
	// Draft carries the business fields; metadata is filled in by the engine.
	Draft domainEvents.DomainEvent
	// Expansions are the child events of a one_to_many rule.
	Expansions []domainEvents.DomainEvent
}

type HandlerContext struct {
	Transaction *parser.Transaction
	Binding     *contractStore.TransformerBinding
}

type HandlerFunc func(ctx *HandlerContext, lg *parser.DecodedLog) ([]*Signal, error)

// Handler handles a single event name and declares the kind it drafts.
type Handler struct {
	EventName string
	Produces  domainEvents.EventKind
	Handle    HandlerFunc
}

type Transformer interface {
	Role() contractStore.ContractRole
	Handlers() []*Handler
}

type baseTransformer struct {
	role     contractStore.ContractRole
	handlers []*Handler
}

func (t *baseTransformer) Role() contractStore.ContractRole { return t.role }
func (t *baseTransformer) Handlers() []*Handler             { return t.handlers }

func NewTransformer(role contractStore.ContractRole, handlers ...*Handler) Transformer {
	return &baseTransformer{role: role, handlers: handlers}
}

type registeredTransformer struct {
	transformer Transformer
	handlers    map[string]*Handler
}

// Registry resolves the handler for a (role, event name) pair. It is built
// once at startup and read concurrently afterwards.
type Registry struct {
	transformers map[contractStore.ContractRole]*registeredTransformer
	logger       *zap.Logger
}

func NewRegistry(l *zap.Logger) *Registry {
	return &Registry{
		transformers: make(map[contractStore.ContractRole]*registeredTransformer),
		logger:       l,
	}
}

func (r *Registry) Register(t Transformer) error {
	if _, ok := r.transformers[t.Role()]; ok {
		return fmt.Errorf("transformer for role '%s' is already registered", t.Role())
	}
	handlers := make(map[string]*Handler, len(t.Handlers()))
	for _, h := range t.Handlers() {
		if _, ok := handlers[h.EventName]; ok {
			return fmt.Errorf("transformer '%s' has two handlers for event '%s'", t.Role(), h.EventName)
		}
		handlers[h.EventName] = h
	}
	r.transformers[t.Role()] = &registeredTransformer{transformer: t, handlers: handlers}
	r.logger.Sugar().Debugw("Registered transformer",
		zap.String("role", string(t.Role())),
		zap.Int("handlers", len(handlers)),
	)
	return nil
}

func (r *Registry) GetTransformer(role contractStore.ContractRole) (Transformer, bool) {
	rt, ok := r.transformers[role]
	if !ok {
		return nil, false
	}
	return rt.transformer, true
}

func (r *Registry) GetHandler(role contractStore.ContractRole, eventName string) (*Handler, bool) {
	rt, ok := r.transformers[role]
	if !ok {
		return nil, false
	}
	h, ok := rt.handlers[eventName]
	return h, ok
}

// Roles returns the registered roles, sorted.
func (r *Registry) Roles() []contractStore.ContractRole {
	roles := make([]contractStore.ContractRole, 0, len(r.transformers))
	for role := range r.transformers {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// NewDefaultRegistry registers a transformer for every builtin role.
func NewDefaultRegistry(l *zap.Logger) (*Registry, error) {
	r := NewRegistry(l)
	for _, t := range []Transformer{
		NewTokenTransformer(),
		NewPoolV2Transformer(),
		NewPoolV3Transformer(),
		NewRouterTransformer(),
		NewAggregatorTransformer(),
		NewRewardsTransformer(),
	} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func singleSignal(ctx *HandlerContext, lg *parser.DecodedLog, draft domainEvents.DomainEvent, expansions ...domainEvents.DomainEvent) []*Signal {
	return []*Signal{{
		Role:            ctx.Binding.Role,
		SourceEvent:     lg.EventName,
		ContractAddress: lg.Address,
		LogIndex:        lg.LogIndex,
		Draft:           draft,
		Expansions:      expansions,
	}}
}
