package payment

import (
	"context"
	"errors"
	"fmt"

	"gearted/internal/models"
	"gearted/internal/repositories"
)

// EnsurePayoutAccount returns the seller's payout account, creating one
// with the provider on first use.
func (s *Service) EnsurePayoutAccount(ctx context.Context, userID uint) (*models.SellerPayoutAccount, error) {
	account, err := s.payouts.GetByUserID(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("payout account lookup: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	providerID, err := s.provider.CreateAccount(ctx, userID, user.Email)
	if err != nil {
		return nil, err
	}

	account = &models.SellerPayoutAccount{
		UserID:            userID,
		ProviderAccountID: providerID,
	}
	if err := s.payouts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("creating payout account: %w", err)
	}

	s.log.WithField("user_id", userID).Info("payout account created")
	return account, nil
}

// PayoutOnboardingLink returns a fresh hosted-onboarding URL for the
// seller, creating the account first if needed.
func (s *Service) PayoutOnboardingLink(ctx context.Context, userID uint, returnURL, refreshURL string) (string, error) {
	account, err := s.EnsurePayoutAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.provider.OnboardingLink(ctx, account.ProviderAccountID, returnURL, refreshURL)
}

// PayoutDashboardLink returns a login link to the seller's hosted
// provider dashboard. Unlike onboarding, this never creates an account.
func (s *Service) PayoutDashboardLink(ctx context.Context, userID uint) (string, error) {
	account, err := s.payouts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrNoPayoutAccount
		}
		return "", fmt.Errorf("payout account lookup: %w", err)
	}
	return s.provider.DashboardLink(ctx, account.ProviderAccountID)
}

// PayoutStatus re-reads the account's capability flags from the
// provider and persists them.
func (s *Service) PayoutStatus(ctx context.Context, userID uint) (*models.SellerPayoutAccount, error) {
	account, err := s.payouts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNoPayoutAccount
		}
		return nil, fmt.Errorf("payout account lookup: %w", err)
	}

	state, err := s.provider.AccountStatus(ctx, account.ProviderAccountID)
	if err != nil {
		return nil, err
	}

	account.ChargesEnabled = state.ChargesEnabled
	account.PayoutsEnabled = state.PayoutsEnabled
	account.DetailsSubmitted = state.DetailsSubmitted
	account.OnboardingComplete = state.ChargesEnabled && state.PayoutsEnabled
	if err := s.payouts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("updating payout account: %w", err)
	}
	return account, nil
}
