//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	ab "github.com/panyam/authbase"
)

// Kind constants for Datastore entities
const (
	KindAccount      = "Account"
	KindAccountEmail = "AccountEmail"
)

// AccountStore implements ab.AccountStore using Google Cloud Datastore
type AccountStore struct {
	client    *datastore.Client
	namespace string
}

var _ ab.AccountStore = (*AccountStore)(nil)

// NewAccountStore creates a new Datastore-backed AccountStore
func NewAccountStore(client *datastore.Client, namespace string) *AccountStore {
	return &AccountStore{
		client:    client,
		namespace: namespace,
	}
}

func (s *AccountStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *ab.Account) error {
	accountKey := s.namespacedKey(KindAccount, account.ID)
	emailKey := s.namespacedKey(KindAccountEmail, ab.NormalizeEmail(account.Email))

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing EmailEntity
		err := tx.Get(emailKey, &existing)
		if err == nil {
			return ab.ErrAccountExists
		}
		if err != datastore.ErrNoSuchEntity {
			return err
		}
		if _, err := tx.Put(emailKey, &EmailEntity{
			Key:       emailKey,
			AccountID: account.ID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		_, err = tx.Put(accountKey, AccountToEntity(account, accountKey))
		return err
	})
	if err != nil {
		if errors.Is(err, ab.ErrAccountExists) {
			return ab.ErrAccountExists
		}
		return ab.NewStoreError("create account", err)
	}
	return nil
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string, withSecrets bool) (*ab.Account, error) {
	emailKey := s.namespacedKey(KindAccountEmail, ab.NormalizeEmail(email))
	var emailEntity EmailEntity
	if err := s.client.Get(ctx, emailKey, &emailEntity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, ab.ErrAccountNotFound
		}
		return nil, ab.NewStoreError("get account by email", err)
	}

	account, err := s.getAccount(ctx, emailEntity.AccountID)
	if err != nil {
		return nil, err
	}
	if !withSecrets {
		blankSecrets(account)
	}
	return account, nil
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*ab.Account, error) {
	account, err := s.getAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	blankSecrets(account)
	return account, nil
}

func (s *AccountStore) getAccount(ctx context.Context, id string) (*ab.Account, error) {
	key := s.namespacedKey(KindAccount, id)
	var entity AccountEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, ab.ErrAccountNotFound
		}
		return nil, ab.NewStoreError("get account", err)
	}
	return entity.ToAccount(), nil
}

// UpdateAccount rewrites only the mutable profile fields.  The entity is
// re-read inside the transaction so secrets on the stored record survive
// updates made from a secret-blanked read.
func (s *AccountStore) UpdateAccount(ctx context.Context, account *ab.Account) error {
	return s.mutate(ctx, account.ID, "update account", func(entity *AccountEntity) {
		entity.Name = account.Name
		entity.Image = account.Image
		entity.EmailVerified = account.EmailVerified
	})
}

func (s *AccountStore) SetVerificationToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	return s.mutate(ctx, id, "set verification token", func(entity *AccountEntity) {
		entity.EmailVerificationToken = tokenHash
		entity.EmailVerificationExpires = expires
	})
}

func (s *AccountStore) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	return s.mutate(ctx, id, "set reset token", func(entity *AccountEntity) {
		entity.PasswordResetToken = tokenHash
		entity.PasswordResetExpires = expires
	})
}

// mutate applies fn to the account entity inside a transaction
func (s *AccountStore) mutate(ctx context.Context, id, op string, fn func(entity *AccountEntity)) error {
	key := s.namespacedKey(KindAccount, id)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity AccountEntity
		if err := tx.Get(key, &entity); err != nil {
			return err
		}
		fn(&entity)
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(key, &entity)
		return err
	})
	if err != nil {
		if err == datastore.ErrNoSuchEntity {
			return ab.ErrAccountNotFound
		}
		return ab.NewStoreError(op, err)
	}
	return nil
}

func (s *AccountStore) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*ab.Account, error) {
	id, err := s.findByVerificationToken(ctx, tokenHash)
	if err != nil {
		return nil, err
	}

	key := s.namespacedKey(KindAccount, id)
	var consumed AccountEntity
	_, err = s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity AccountEntity
		if err := tx.Get(key, &entity); err != nil {
			return err
		}
		// token may have been consumed or rotated since the query
		if entity.EmailVerificationToken != tokenHash || !entity.EmailVerificationExpires.After(now) {
			return ab.ErrTokenInvalid
		}
		entity.EmailVerified = true
		entity.EmailVerificationToken = ""
		entity.EmailVerificationExpires = time.Time{}
		entity.UpdatedAt = time.Now()
		if _, err := tx.Put(key, &entity); err != nil {
			return err
		}
		consumed = entity
		return nil
	})
	if err != nil {
		if errors.Is(err, ab.ErrTokenInvalid) || err == datastore.ErrNoSuchEntity {
			return nil, ab.ErrTokenInvalid
		}
		return nil, ab.NewStoreError("consume verification token", err)
	}

	account := consumed.ToAccount()
	blankSecrets(account)
	return account, nil
}

func (s *AccountStore) CheckResetToken(ctx context.Context, tokenHash string, now time.Time) error {
	id, err := s.findByResetToken(ctx, tokenHash)
	if err != nil {
		return err
	}

	key := s.namespacedKey(KindAccount, id)
	var entity AccountEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return ab.ErrTokenInvalid
		}
		return ab.NewStoreError("check reset token", err)
	}
	if entity.PasswordResetToken != tokenHash || !entity.PasswordResetExpires.After(now) {
		return ab.ErrTokenInvalid
	}
	return nil
}

func (s *AccountStore) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (*ab.Account, error) {
	id, err := s.findByResetToken(ctx, tokenHash)
	if err != nil {
		return nil, err
	}

	key := s.namespacedKey(KindAccount, id)
	var consumed AccountEntity
	_, err = s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity AccountEntity
		if err := tx.Get(key, &entity); err != nil {
			return err
		}
		if entity.PasswordResetToken != tokenHash || !entity.PasswordResetExpires.After(now) {
			return ab.ErrTokenInvalid
		}
		entity.PasswordHash = newPasswordHash
		entity.PasswordResetToken = ""
		entity.PasswordResetExpires = time.Time{}
		entity.UpdatedAt = time.Now()
		if _, err := tx.Put(key, &entity); err != nil {
			return err
		}
		consumed = entity
		return nil
	})
	if err != nil {
		if errors.Is(err, ab.ErrTokenInvalid) || err == datastore.ErrNoSuchEntity {
			return nil, ab.ErrTokenInvalid
		}
		return nil, ab.NewStoreError("consume reset token", err)
	}

	account := consumed.ToAccount()
	blankSecrets(account)
	return account, nil
}

func (s *AccountStore) LinkProvider(ctx context.Context, id string, provider ab.Provider, providerAccountID, image string) (*ab.Account, error) {
	key := s.namespacedKey(KindAccount, id)
	var linked AccountEntity
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity AccountEntity
		if err := tx.Get(key, &entity); err != nil {
			return err
		}
		account := entity.ToAccount()
		if account.LinkedProviders == nil {
			account.LinkedProviders = make(map[ab.Provider]string)
		}
		if _, ok := account.LinkedProviders[provider]; !ok {
			account.LinkedProviders[provider] = providerAccountID
		}
		if image != "" {
			account.Image = image
		}
		account.UpdatedAt = time.Now()
		updated := AccountToEntity(account, key)
		if _, err := tx.Put(key, updated); err != nil {
			return err
		}
		linked = *updated
		return nil
	})
	if err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, ab.ErrAccountNotFound
		}
		return nil, ab.NewStoreError("link provider", err)
	}

	account := linked.ToAccount()
	blankSecrets(account)
	return account, nil
}

func (s *AccountStore) findByVerificationToken(ctx context.Context, tokenHash string) (string, error) {
	return s.findByTokenField(ctx, "email_verification_token", tokenHash)
}

func (s *AccountStore) findByResetToken(ctx context.Context, tokenHash string) (string, error) {
	return s.findByTokenField(ctx, "password_reset_token", tokenHash)
}

func (s *AccountStore) findByTokenField(ctx context.Context, field, tokenHash string) (string, error) {
	if tokenHash == "" {
		return "", ab.ErrTokenInvalid
	}
	query := datastore.NewQuery(KindAccount).
		FilterField(field, "=", tokenHash).
		KeysOnly().
		Limit(1)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	it := s.client.Run(ctx, query)
	key, err := it.Next(nil)
	if err == iterator.Done {
		return "", ab.ErrTokenInvalid
	}
	if err != nil {
		return "", ab.NewStoreError("find account by token", err)
	}
	return key.Name, nil
}

func blankSecrets(account *ab.Account) {
	account.PasswordHash = ""
	account.EmailVerificationToken = ""
	account.PasswordResetToken = ""
}
