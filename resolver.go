package authbase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OAuthProfile is the normalized identity a provider callback hands to the
// resolver.
type OAuthProfile struct {
	Provider          Provider
	ProviderAccountID string
	Email             string
	Name              string
	Image             string
}

// LinkOutcome tags what the resolver decided to do.
type LinkOutcome int

const (
	// LinkOutcomeCreated: no account existed, a new pre-verified one was
	// created for this provider identity.
	LinkOutcomeCreated LinkOutcome = iota

	// LinkOutcomeLinked: an existing verified account gained a link to a
	// provider kind it had no link for.
	LinkOutcomeLinked

	// LinkOutcomeSignedIn: the provider was already linked; nothing changed
	// besides the image refresh.
	LinkOutcomeSignedIn

	// LinkOutcomeRejected: sign-in refused.  Reason carries the gate error;
	// no account state was mutated.
	LinkOutcomeRejected
)

// LinkResult is the resolver's tagged result.  The boundary layer maps
// Rejected to a user-facing denial; it is not an infrastructure error.
type LinkResult struct {
	Outcome LinkOutcome
	Account *Account
	Reason  error // set only for LinkOutcomeRejected
}

// Resolver decides, on every OAuth sign-in callback, whether to create a
// new account, link the provider to an existing one, or reject.
type Resolver struct {
	Accounts AccountStore
}

// ResolveOAuthSignIn runs the account-linking state machine:
//
//   - no account for the email: create one with EmailVerified=true (the
//     provider attests the address), no password, this provider linked
//   - account exists but its email is unverified: reject.  Auto-linking
//     here would let whoever controls the provider identity take over an
//     account whose mailbox they may not own.
//   - account exists and is verified: link the provider if that kind is
//     not linked yet, and refresh the image from the provider either way.
//
// Repeating the same sign-in with unchanged data converges to the same
// state: no duplicate accounts and no clobbered provider ids.
//
// The error return is reserved for infrastructure failures; policy
// rejections come back as LinkOutcomeRejected.
func (r *Resolver) ResolveOAuthSignIn(ctx context.Context, profile OAuthProfile) (*LinkResult, error) {
	email := NormalizeEmail(profile.Email)

	existing, err := r.Accounts.GetAccountByEmail(ctx, email, false)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	if existing == nil {
		now := time.Now()
		account := &Account{
			ID:              uuid.NewString(),
			Email:           email,
			Name:            profile.Name,
			Image:           profile.Image,
			EmailVerified:   true,
			LinkedProviders: map[Provider]string{profile.Provider: profile.ProviderAccountID},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := r.Accounts.CreateAccount(ctx, account); err != nil {
			if errors.Is(err, ErrAccountExists) {
				// Lost a race with a concurrent first sign-in; fall back to
				// the link path against whoever won.
				return r.linkExisting(ctx, email, profile)
			}
			return nil, err
		}
		return &LinkResult{Outcome: LinkOutcomeCreated, Account: account}, nil
	}

	if !existing.EmailVerified {
		return &LinkResult{Outcome: LinkOutcomeRejected, Reason: ErrUnverifiedAccountConflict}, nil
	}

	return r.link(ctx, existing, profile)
}

func (r *Resolver) linkExisting(ctx context.Context, email string, profile OAuthProfile) (*LinkResult, error) {
	existing, err := r.Accounts.GetAccountByEmail(ctx, email, false)
	if err != nil {
		return nil, err
	}
	if !existing.EmailVerified {
		return &LinkResult{Outcome: LinkOutcomeRejected, Reason: ErrUnverifiedAccountConflict}, nil
	}
	return r.link(ctx, existing, profile)
}

func (r *Resolver) link(ctx context.Context, existing *Account, profile OAuthProfile) (*LinkResult, error) {
	_, alreadyLinked := existing.ProviderID(profile.Provider)

	// LinkProvider adds the link only when the kind is absent; the image
	// always tracks the provider's, which serves the freshest value.
	updated, err := r.Accounts.LinkProvider(ctx, existing.ID, profile.Provider, profile.ProviderAccountID, profile.Image)
	if err != nil {
		return nil, err
	}

	outcome := LinkOutcomeLinked
	if alreadyLinked {
		outcome = LinkOutcomeSignedIn
	}
	return &LinkResult{Outcome: outcome, Account: updated}, nil
}
