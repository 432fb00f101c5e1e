package billing

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storyloom/entitlement/pkg/billing"
	"github.com/storyloom/entitlement/pkg/credits"
	"github.com/storyloom/entitlement/pkg/logger"
	"github.com/storyloom/entitlement/pkg/subscription"
)

// maxWebhookBody bounds webhook payloads; providers send kilobytes.
const maxWebhookBody = 1 << 20

// handleWebhook is the intake for all providers. The provider name in the
// route selects the adapter; the adapter owns signature verification and
// payload mapping. Events that cannot be attributed to a user are
// acknowledged and dropped so the provider does not redeliver them forever.
func (m *Module) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider, ok := m.providers[chi.URLParam(r, "provider")]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown provider")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	events, err := provider.VerifyAndParse(r.Context(), payload, r.Header.Get(provider.SignatureHeader()))
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		m.log.WarnContext(r.Context(), "webhook signature rejected", logger.Provider(provider.Name()))
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	case errors.Is(err, billing.ErrMalformedPayload):
		respondError(w, http.StatusBadRequest, "malformed payload")
		return
	case errors.Is(err, billing.ErrMalformedEvent):
		// Authenticated but unusable; a retry would deliver the same bytes,
		// so acknowledge and drop.
		m.log.WarnContext(r.Context(), "dropping unmappable webhook event",
			logger.Provider(provider.Name()))
		respondJSON(w, http.StatusOK, map[string]int{"received": 0, "applied": 0})
		return
	case err != nil:
		m.log.ErrorContext(r.Context(), "webhook parse failed",
			logger.Provider(provider.Name()), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	applied := 0
	for _, ev := range events {
		err := m.subs.Apply(r.Context(), ev)
		switch {
		case err == nil:
			applied++
		case errors.Is(err, subscription.ErrUnresolvableUser):
			// Already logged by the service; acknowledged on purpose.
		default:
			m.log.ErrorContext(r.Context(), "failed to apply billing event",
				logger.Provider(ev.Provider),
				logger.SubscriptionID(ev.SubscriptionID),
				logger.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]int{"received": len(events), "applied": applied})
}

// handleCheckoutStart records that the user is heading to a provider's
// checkout, so a metadata-free webhook arriving in the next minutes can be
// attributed to them.
func (m *Module) handleCheckoutStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := m.auth.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if err := m.bridge.Begin(r.Context(), userID, m.now()); err != nil {
		m.log.ErrorContext(r.Context(), "failed to record pending checkout",
			logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

type linkRequest struct {
	Provider       string `json:"provider"`
	SubscriptionID string `json:"subscription_id"`
}

// handleLink attaches a subscription id the client obtained out of band
// (a post-checkout redirect, typically). When the provider exposes a REST
// fetcher the current state is pulled immediately instead of waiting for
// the first webhook.
func (m *Module) handleLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := m.auth.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.SubscriptionID == "" {
		respondError(w, http.StatusBadRequest, "subscription_id is required")
		return
	}
	if _, known := m.providers[req.Provider]; !known {
		respondError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	var fetched *billing.Event
	if fetcher, ok := m.fetchers[req.Provider]; ok {
		ev, err := fetcher.FetchSubscription(r.Context(), req.SubscriptionID)
		if err != nil {
			// The link still proceeds; the next webhook carries the state.
			m.log.WarnContext(r.Context(), "provider subscription fetch failed",
				logger.Provider(req.Provider),
				logger.SubscriptionID(req.SubscriptionID),
				logger.Error(err))
		} else {
			fetched = ev
		}
	}

	err := m.subs.Link(r.Context(), userID, req.Provider, req.SubscriptionID, fetched)
	switch {
	case errors.Is(err, subscription.ErrAlreadyLinked):
		respondJSON(w, http.StatusOK, map[string]string{"status": "already_linked"})
	case errors.Is(err, subscription.ErrNotFound):
		respondError(w, http.StatusNotFound, "unknown user")
	case err != nil:
		m.log.ErrorContext(r.Context(), "subscription link failed",
			logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "linked"})
	}
}

type entitlementResponse struct {
	Plan    string     `json:"plan"`
	Status  string     `json:"status"`
	Premium bool       `json:"premium"`
	Slots   int        `json:"character_slots"`
	EndsAt  *time.Time `json:"ends_at,omitempty"`
}

func (m *Module) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := m.auth.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	ent, err := m.subs.Entitlement(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := entitlementResponse{Premium: ent.Premium, Slots: ent.Slots}
	rec, err := m.subs.Get(r.Context(), userID)
	switch {
	case err == nil:
		resp.Plan = string(rec.Plan)
		resp.Status = string(rec.Status)
		resp.EndsAt = rec.EndsAt
	case errors.Is(err, subscription.ErrNotFound):
		resp.Plan = "free"
		resp.Status = "free"
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type usageEntry struct {
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}

func (m *Module) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := m.auth.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	timezone, premium, err := m.userContext(r, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	access, err := m.characters.Access(r.Context(), userID)
	if err != nil {
		m.log.ErrorContext(r.Context(), "character access query failed",
			logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	decisions, err := m.usage.Usage(r.Context(), userID, timezone, premium, access.ActiveID)
	if err != nil {
		m.log.ErrorContext(r.Context(), "usage query failed",
			logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make(map[string]usageEntry, len(decisions))
	for typ, d := range decisions {
		resp[string(typ)] = usageEntry{
			Used:      d.Used,
			Limit:     d.Limit,
			Remaining: d.Remaining(),
			ResetsAt:  d.ResetsAt,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type creditsResponse struct {
	Balance             int  `json:"balance"`
	StarterKitAvailable bool `json:"starter_kit_available"`
}

func (m *Module) handleCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := m.auth.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	// Balance runs the lazy daily recharge before reporting.
	balance, err := m.credits.Balance(r.Context(), userID)
	if err != nil {
		m.log.ErrorContext(r.Context(), "credit balance query failed",
			logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	eligible, err := m.credits.CanPurchaseStarterKit(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, creditsResponse{Balance: balance, StarterKitAvailable: eligible})
}

// handleStarterKitPurchase performs the one-time starter-kit purchase.
// A repeat attempt conflicts rather than double-granting.
func (m *Module) handleStarterKitPurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := m.auth.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	balance, err := m.credits.PurchaseStarterKit(r.Context(), userID)
	switch {
	case errors.Is(err, credits.ErrStarterKitOwned):
		respondError(w, http.StatusConflict, "starter kit already purchased")
	case err != nil:
		m.log.ErrorContext(r.Context(), "starter kit purchase failed",
			logger.UserID(userID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	default:
		respondJSON(w, http.StatusOK, creditsResponse{Balance: balance})
	}
}

// handleSweep triggers the reconciliation sweep. Guarded by a shared
// secret rather than user auth: the caller is a scheduler, not a person.
func (m *Module) handleSweep(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Sweep-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(m.cfg.SweepSecret)) != 1 {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := m.sweeper.Run(r.Context()); err != nil {
		m.log.ErrorContext(r.Context(), "reconciliation sweep failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userContext loads the timezone and premium flag the quota checks need.
// A user without a record yet is free tier in UTC.
func (m *Module) userContext(r *http.Request, userID uuid.UUID) (string, bool, error) {
	timezone := "UTC"
	rec, err := m.subs.Get(r.Context(), userID)
	switch {
	case err == nil:
		if rec.Timezone != "" {
			timezone = rec.Timezone
		}
	case !errors.Is(err, subscription.ErrNotFound):
		return "", false, err
	}

	ent, err := m.subs.Entitlement(r.Context(), userID)
	if err != nil {
		return "", false, err
	}
	return timezone, ent.Premium, nil
}
