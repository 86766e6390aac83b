package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/baanhub/baanhub-backend/api/responses"
	omisewebhook "github.com/baanhub/baanhub-backend/internal/webhooks/omise"
	pkgerrors "github.com/baanhub/baanhub-backend/pkg/errors"
	"github.com/baanhub/baanhub-backend/pkg/logger"
	"github.com/baanhub/baanhub-backend/pkg/metrics"
	"github.com/baanhub/baanhub-backend/pkg/omise"
)

const maxWebhookBody = 1 << 20

type OmiseWebhookService interface {
	HandleEvent(ctx context.Context, event *omise.Event) (omisewebhook.Outcome, error)
}

type omiseWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type signingSecretSource interface {
	SigningSecret() string
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// OmiseWebhook verifies and reconciles Omise event deliveries.
func OmiseWebhook(svc OmiseWebhookService, secrets signingSecretSource, guard omiseWebhookGuard, m *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		secret := ""
		if secrets != nil {
			secret = secrets.SigningSecret()
		}
		if secret == "" {
			m.IncWebhook(metrics.OutcomeFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if err := omise.VerifySignature(payload, secret, r.Header.Get(omise.SignatureHeader)); err != nil {
			m.IncWebhook(metrics.OutcomeInvalid)
			msg := "invalid signature"
			if errors.Is(err, omise.ErrSignatureMissing) {
				msg = "missing signature"
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg))
			return
		}

		var event omise.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event payload"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_key": event.Key})
		}

		if event.ID != "" {
			seen, err := guard.CheckAndMark(ctx, event.ID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if seen {
				m.IncWebhook(metrics.OutcomeDuplicate)
				if logg != nil {
					logg.Info(ctx, "omise.webhook.duplicate")
				}
				responses.WriteSuccess(w, receivedResponse{Received: true})
				return
			}
		}

		outcome, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			if event.ID != "" {
				if releaseErr := guard.Release(ctx, event.ID); releaseErr != nil && logg != nil {
					logg.Error(ctx, "omise.webhook.release_failed", releaseErr)
				}
			}
			m.IncWebhook(metrics.OutcomeFailed)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		m.IncWebhook(string(outcome))
		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "omise.webhook.processed")
		}
		responses.WriteSuccess(w, receivedResponse{Received: true})
	}
}
