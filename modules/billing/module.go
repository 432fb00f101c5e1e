package billing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storyloom/entitlement/pkg/billing"
	"github.com/storyloom/entitlement/pkg/character"
	"github.com/storyloom/entitlement/pkg/checkout"
	"github.com/storyloom/entitlement/pkg/credits"
	"github.com/storyloom/entitlement/pkg/reconcile"
	"github.com/storyloom/entitlement/pkg/subscription"
	"github.com/storyloom/entitlement/pkg/usage"
)

// Authenticator guards the user-facing routes. The engine does not own
// authentication; the host application injects whatever it uses.
type Authenticator interface {
	// Middleware rejects unauthenticated requests before they reach a handler.
	Middleware(next http.Handler) http.Handler
	// UserID extracts the authenticated user from a request context.
	UserID(ctx context.Context) (uuid.UUID, bool)
}

// SubscriptionFetcher retrieves live subscription state from a provider's
// REST API, used by the link flow when no webhook has arrived yet.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, subscriptionID string) (*billing.Event, error)
}

// Config holds the module's own settings.
type Config struct {
	SweepSecret string `env:"BILLING_SWEEP_SECRET,required"`
}

// Module wires the services into HTTP handlers.
type Module struct {
	cfg        Config
	providers  map[string]billing.Provider
	subs       *subscription.Service
	characters *character.Service
	usage      *usage.Service
	credits    *credits.Service
	bridge     checkout.Store
	sweeper    *reconcile.Sweeper
	auth       Authenticator
	fetchers   map[string]SubscriptionFetcher
	log        *slog.Logger
	now        func() time.Time
}

// Deps carries the required collaborators. Every field must be set.
type Deps struct {
	Providers     []billing.Provider
	Subscriptions *subscription.Service
	Characters    *character.Service
	Usage         *usage.Service
	Credits       *credits.Service
	Bridge        checkout.Store
	Sweeper       *reconcile.Sweeper
	Auth          Authenticator
	Log           *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Module)

// WithFetcher registers a provider REST fetcher for the link flow.
func WithFetcher(provider string, f SubscriptionFetcher) Option {
	return func(m *Module) { m.fetchers[provider] = f }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Module) {
		if now != nil {
			m.now = now
		}
	}
}

// New panics on missing dependencies so wiring mistakes surface at startup.
func New(cfg Config, deps Deps, opts ...Option) *Module {
	switch {
	case len(deps.Providers) == 0:
		panic("billing module: at least one Provider is required")
	case deps.Subscriptions == nil:
		panic("billing module: subscription.Service is required")
	case deps.Characters == nil:
		panic("billing module: character.Service is required")
	case deps.Usage == nil:
		panic("billing module: usage.Service is required")
	case deps.Credits == nil:
		panic("billing module: credits.Service is required")
	case deps.Bridge == nil:
		panic("billing module: checkout.Store is required")
	case deps.Sweeper == nil:
		panic("billing module: reconcile.Sweeper is required")
	case deps.Auth == nil:
		panic("billing module: Authenticator is required")
	case deps.Log == nil:
		panic("billing module: logger is required")
	case cfg.SweepSecret == "":
		panic("billing module: sweep secret is required")
	}

	m := &Module{
		cfg:        cfg,
		providers:  make(map[string]billing.Provider, len(deps.Providers)),
		subs:       deps.Subscriptions,
		characters: deps.Characters,
		usage:      deps.Usage,
		credits:    deps.Credits,
		bridge:     deps.Bridge,
		sweeper:    deps.Sweeper,
		auth:       deps.Auth,
		fetchers:   make(map[string]SubscriptionFetcher),
		log:        deps.Log,
		now:        time.Now,
	}
	for _, p := range deps.Providers {
		m.providers[p.Name()] = p
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Router mounts all module routes.
func Router(m *Module) chi.Router {
	r := chi.NewRouter()

	r.Post("/webhooks/{provider}", m.handleWebhook)
	r.Post("/internal/sweep", m.handleSweep)

	r.Group(func(authed chi.Router) {
		authed.Use(m.auth.Middleware)
		authed.Post("/checkout/start", m.handleCheckoutStart)
		authed.Post("/subscription/link", m.handleLink)
		authed.Get("/me/entitlement", m.handleEntitlement)
		authed.Get("/me/usage", m.handleUsage)
		authed.Get("/me/credits", m.handleCredits)
		authed.Post("/me/credits/starter-kit", m.handleStarterKitPurchase)
	})

	return r
}
