package services

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"delivering/internal/pkg/errs"
)

// StripeProvider authorizes and captures card payments through Stripe
// using manual-capture payment intents: funds are held at authorization and
// only moved on capture after delivery.
type StripeProvider struct {
	api *client.API
}

func NewStripeProvider(apiKey string) *StripeProvider {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeProvider{api: api}
}

// Name identifies the provider on payment records.
func (s *StripeProvider) Name() string { return "stripe" }

// Authorize places a hold for the amount and returns the provider
// transaction id. amountCents is in the currency's smallest unit.
func (s *StripeProvider) Authorize(ctx context.Context, amountCents int64, currency, paymentMethod string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(paymentMethod),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return "", errs.External("stripe authorize", err)
	}
	if intent.Status != stripe.PaymentIntentStatusRequiresCapture {
		return intent.ID, errs.External("stripe authorize", fmt.Errorf("unexpected intent status %s", intent.Status))
	}
	return intent.ID, nil
}

// Capture settles a previously authorized payment.
func (s *StripeProvider) Capture(ctx context.Context, providerTxID string, amountCents int64) error {
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(amountCents),
	}
	params.Context = ctx

	if _, err := s.api.PaymentIntents.Capture(providerTxID, params); err != nil {
		return errs.External("stripe capture", err)
	}
	return nil
}

// Refund returns a captured payment, or releases an uncaptured hold.
func (s *StripeProvider) Refund(ctx context.Context, providerTxID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(providerTxID),
	}
	params.Context = ctx

	if _, err := s.api.Refunds.New(params); err != nil {
		return errs.External("stripe refund", err)
	}
	return nil
}
