package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avdotin/psychodetective/internal/database"
)

// Plan is one purchasable subscription option.
type Plan struct {
	Tier     database.SubscriptionType
	Months   int
	PriceRUB float64
}

// Price list in rubles, keyed by tier and duration in months. Longer plans
// carry a built-in discount.
var plans = map[database.SubscriptionType]map[int]float64{
	database.SubscriptionPremium: {1: 299, 3: 799, 12: 2990},
	database.SubscriptionVIP:     {1: 599, 3: 1599, 12: 5990},
}

// Plans returns the full price list in display order.
func Plans() []Plan {
	var out []Plan
	for _, tier := range []database.SubscriptionType{database.SubscriptionPremium, database.SubscriptionVIP} {
		for _, months := range []int{1, 3, 12} {
			out = append(out, Plan{Tier: tier, Months: months, PriceRUB: plans[tier][months]})
		}
	}
	return out
}

// PriceFor returns the price for a tier/duration pair.
func PriceFor(tier database.SubscriptionType, months int) (float64, error) {
	price, ok := plans[tier][months]
	if !ok {
		return 0, fmt.Errorf("%w: %s for %d months", ErrUnknownPlan, tier, months)
	}
	return price, nil
}

// SubscriptionService manages the purchase and expiry lifecycle.
type SubscriptionService struct {
	store  database.Store
	logger *slog.Logger
}

// NewSubscriptionService creates a subscription service.
func NewSubscriptionService(store database.Store, logger *slog.Logger) *SubscriptionService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SubscriptionService{
		store:  store,
		logger: logger.With("component", "subscription_service"),
	}
}

// Purchase creates a pending subscription for the user. The subscription
// becomes active only after ConfirmPayment.
func (s *SubscriptionService) Purchase(ctx context.Context, user *database.User, tier database.SubscriptionType, months int) (*database.Subscription, error) {
	price, err := PriceFor(tier, months)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &database.Subscription{
		UserID:           user.ID,
		SubscriptionType: tier,
		Price:            price,
		Currency:         "RUB",
		StartDate:        now,
		EndDate:          now.AddDate(0, months, 0),
		DurationDays:     int(now.AddDate(0, months, 0).Sub(now).Hours() / 24),
		PaymentStatus:    database.PaymentPending,
	}
	if err := s.store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.logger.InfoContext(ctx, "Subscription created",
		"user_id", user.ID, "tier", tier, "months", months, "price", price)
	return sub, nil
}

// ConfirmPayment marks a subscription paid, activates it and upgrades the
// user's tier. A subscription belonging to another user is reported as not
// found.
func (s *SubscriptionService) ConfirmPayment(ctx context.Context, userID, subscriptionID int64, paymentID string) error {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub == nil || sub.UserID != userID {
		return fmt.Errorf("%w: subscription %d", ErrNotFound, subscriptionID)
	}
	return s.store.ActivateSubscription(ctx, subscriptionID, paymentID)
}

// Cancel disables auto-renewal and records the reason. The subscription
// stays active until its end date.
func (s *SubscriptionService) Cancel(ctx context.Context, userID int64, reason string) error {
	sub, err := s.store.GetActiveSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("%w: no active subscription for user %d", ErrNotFound, userID)
	}

	sub.IsCancelled = true
	sub.AutoRenewal = false
	sub.CancellationReason = reason
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Subscription cancelled", "subscription_id", sub.ID, "user_id", userID)
	return nil
}

// Active returns the user's active subscription, or nil.
func (s *SubscriptionService) Active(ctx context.Context, userID int64) (*database.Subscription, error) {
	return s.store.GetActiveSubscription(ctx, userID)
}

// ExpireDue runs the expiry sweep: every active subscription past its end
// date is deactivated and its owner downgraded to the free tier.
func (s *SubscriptionService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	count, err := s.store.ExpireDueSubscriptions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expiry sweep failed: %w", err)
	}
	if count > 0 {
		s.logger.InfoContext(ctx, "Expiry sweep completed", "expired", count)
	}
	return count, nil
}
