package subscriptions

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

const (
	defaultAmountCents = 9900 // 99.00 CNY for a 2-month term
	defaultCurrency    = "cny"
	productName        = "C3安全员题库会员（2个月）"
)

// StripeService creates checkout sessions and verifies webhook payloads.
// Without STRIPE_SECRET_KEY it runs in offline mode: a local session id is
// issued and the ledger path stays identical, so the webhook flow can be
// exercised end to end in development.
type StripeService struct {
	ledger        Ledger
	webhookSecret string
	successURL    string
	cancelURL     string
	amountCents   int64
	currency      string
	sc            *client.API
}

func NewStripeFromEnv(ledger Ledger) *StripeService {
	s := &StripeService{
		ledger:        ledger,
		webhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		successURL:    envOr("STRIPE_SUCCESS_URL", "https://example.com/checkout/success"),
		cancelURL:     envOr("STRIPE_CANCEL_URL", "https://example.com/checkout/cancel"),
		amountCents:   defaultAmountCents,
		currency:      defaultCurrency,
	}
	if v, err := strconv.ParseInt(os.Getenv("SUBSCRIPTION_PRICE_CENTS"), 10, 64); err == nil && v > 0 {
		s.amountCents = v
	}
	if c := os.Getenv("SUBSCRIPTION_CURRENCY"); c != "" {
		s.currency = c
	}
	if key := os.Getenv("STRIPE_SECRET_KEY"); key != "" {
		sc := &client.API{}
		sc.Init(key, nil)
		s.sc = sc
	} else {
		log.Printf("[STRIPE] STRIPE_SECRET_KEY not set, running in offline mode")
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// CreateCheckout opens a one-off payment session for the fixed 2-month term
// and records the pending ledger row keyed by the session id.
func (s *StripeService) CreateCheckout(userID int) (sessionID, url string, err error) {
	if s.sc == nil {
		sessionID = "cs_local_" + uuid.NewString()
		url = s.successURL
	} else {
		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(s.successURL),
			CancelURL:  stripe.String(s.cancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems: []*stripe.CheckoutSessionLineItemParams{{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.currency),
					UnitAmount: stripe.Int64(s.amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName),
					},
				},
				Quantity: stripe.Int64(1),
			}},
			Metadata: map[string]string{"user_id": strconv.Itoa(userID)},
		}
		sess, err := s.sc.CheckoutSessions.New(params)
		if err != nil {
			log.Printf("[STRIPE] checkout session failed for user %d: %v", userID, err)
			return "", "", err
		}
		sessionID, url = sess.ID, sess.URL
	}

	sub := &Subscription{
		UserID:    userID,
		SessionID: sessionID,
		Amount:    s.amountCents,
		Currency:  s.currency,
		Status:    StatusPending,
	}
	if err := s.ledger.Create(sub); err != nil {
		return "", "", err
	}
	return sessionID, url, nil
}

var errBadSignature = errors.New("签名验证失败")

// VerifyWebhook checks the Stripe-Signature header against the raw payload.
// The secret is not optional: an unset STRIPE_WEBHOOK_SECRET rejects every
// delivery rather than silently skipping verification.
func (s *StripeService) VerifyWebhook(payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET 未配置")
	}
	if _, err := webhook.ConstructEvent(payload, signature, s.webhookSecret); err != nil {
		return fmt.Errorf("%w: %v", errBadSignature, err)
	}
	return nil
}
