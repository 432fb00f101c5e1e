package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/storyloom/entitlement/pkg/billing"
)

// PaddleAPIConfig holds the REST client settings for the link-flow fetch.
type PaddleAPIConfig struct {
	APIKey      string `env:"PADDLE_API_KEY,required"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleFetcher pulls live subscription state from Paddle's REST API so a
// just-linked subscription gets real state before its first webhook lands.
type PaddleFetcher struct {
	client *paddle.SDK
}

// NewPaddleFetcher creates the REST fetcher.
func NewPaddleFetcher(cfg PaddleAPIConfig) (*PaddleFetcher, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("billing module: paddle API key is required")
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("billing module: invalid paddle environment %q", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("billing module: create paddle client: %w", err)
	}
	return &PaddleFetcher{client: client}, nil
}

// FetchSubscription retrieves the subscription and maps it into the
// canonical event shape via the same document paths the webhook adapter
// uses, so both paths derive identical state.
func (f *PaddleFetcher) FetchSubscription(ctx context.Context, subscriptionID string) (*billing.Event, error) {
	sub, err := f.client.SubscriptionsClient.GetSubscription(ctx, &paddle.GetSubscriptionRequest{
		SubscriptionID: subscriptionID,
	})
	if err != nil {
		return nil, fmt.Errorf("billing module: fetch paddle subscription: %w", err)
	}

	raw, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("billing module: encode paddle subscription: %w", err)
	}
	ev, err := billing.PaddleSubscriptionEvent(raw)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
