package stores

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	ab "github.com/panyam/authbase"
)

// FSAccountStore stores accounts as JSON files, one per account, keyed by
// normalized email with an id index alongside.  A single mutex serializes
// mutations, which gives this store the per-account serialization and
// conditional-consume semantics the AccountStore contract requires.
// Suitable for development and tests.
type FSAccountStore struct {
	StoragePath string

	mu sync.Mutex
}

var _ ab.AccountStore = (*FSAccountStore)(nil)

func NewFSAccountStore(storagePath string) *FSAccountStore {
	return &FSAccountStore{StoragePath: storagePath}
}

func (s *FSAccountStore) accountPath(email string) string {
	return filepath.Join(s.StoragePath, "accounts", email+".json")
}

func (s *FSAccountStore) idIndexPath(id string) string {
	return filepath.Join(s.StoragePath, "account_ids", id+".json")
}

func (s *FSAccountStore) CreateAccount(ctx context.Context, account *ab.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.accountPath(account.Email)
	if _, err := os.Stat(path); err == nil {
		return ab.ErrAccountExists
	}
	return s.save(account)
}

func (s *FSAccountStore) GetAccountByEmail(ctx context.Context, email string, withSecrets bool) (*ab.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.load(email)
	if err != nil {
		return nil, err
	}
	if !withSecrets {
		blankSecrets(account)
	}
	return account, nil
}

func (s *FSAccountStore) GetAccountByID(ctx context.Context, id string) (*ab.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.loadByID(id)
	if err != nil {
		return nil, err
	}
	blankSecrets(account)
	return account, nil
}

func (s *FSAccountStore) UpdateAccount(ctx context.Context, account *ab.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(account.Email)
	if err != nil {
		return err
	}
	existing.Name = account.Name
	existing.Image = account.Image
	existing.EmailVerified = account.EmailVerified
	return s.save(existing)
}

func (s *FSAccountStore) SetVerificationToken(ctx context.Context, id string, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.loadByID(id)
	if err != nil {
		return err
	}
	account.EmailVerificationToken = tokenHash
	account.EmailVerificationExpires = expires
	return s.save(account)
}

func (s *FSAccountStore) SetResetToken(ctx context.Context, id string, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.loadByID(id)
	if err != nil {
		return err
	}
	account.PasswordResetToken = tokenHash
	account.PasswordResetExpires = expires
	return s.save(account)
}

func (s *FSAccountStore) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*ab.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.findByToken(func(a *ab.Account) bool {
		return a.EmailVerificationToken == tokenHash && a.EmailVerificationExpires.After(now)
	})
	if err != nil {
		return nil, err
	}

	account.EmailVerified = true
	account.EmailVerificationToken = ""
	account.EmailVerificationExpires = time.Time{}
	if err := s.save(account); err != nil {
		return nil, err
	}
	blankSecrets(account)
	return account, nil
}

func (s *FSAccountStore) CheckResetToken(ctx context.Context, tokenHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.findByToken(func(a *ab.Account) bool {
		return a.PasswordResetToken == tokenHash && a.PasswordResetExpires.After(now)
	})
	return err
}

func (s *FSAccountStore) ConsumeResetToken(ctx context.Context, tokenHash string, newPasswordHash string, now time.Time) (*ab.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.findByToken(func(a *ab.Account) bool {
		return a.PasswordResetToken == tokenHash && a.PasswordResetExpires.After(now)
	})
	if err != nil {
		return nil, err
	}

	account.PasswordHash = newPasswordHash
	account.PasswordResetToken = ""
	account.PasswordResetExpires = time.Time{}
	if err := s.save(account); err != nil {
		return nil, err
	}
	blankSecrets(account)
	return account, nil
}

func (s *FSAccountStore) LinkProvider(ctx context.Context, id string, provider ab.Provider, providerAccountID string, image string) (*ab.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.loadByID(id)
	if err != nil {
		return nil, err
	}
	if account.LinkedProviders == nil {
		account.LinkedProviders = make(map[ab.Provider]string)
	}
	if _, linked := account.LinkedProviders[provider]; !linked {
		account.LinkedProviders[provider] = providerAccountID
	}
	if image != "" {
		account.Image = image
	}
	if err := s.save(account); err != nil {
		return nil, err
	}
	blankSecrets(account)
	return account, nil
}

// load reads an account by email.  Callers hold the mutex.
func (s *FSAccountStore) load(email string) (*ab.Account, error) {
	data, err := os.ReadFile(s.accountPath(email))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ab.ErrAccountNotFound
		}
		return nil, ab.NewStoreError("read", err)
	}

	var account ab.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, ab.NewStoreError("decode", err)
	}
	return &account, nil
}

func (s *FSAccountStore) loadByID(id string) (*ab.Account, error) {
	data, err := os.ReadFile(s.idIndexPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ab.ErrAccountNotFound
		}
		return nil, ab.NewStoreError("read", err)
	}
	var index struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, ab.NewStoreError("decode", err)
	}
	return s.load(index.Email)
}

// findByToken scans accounts for one matching the token predicate.
func (s *FSAccountStore) findByToken(match func(*ab.Account) bool) (*ab.Account, error) {
	dir := filepath.Join(s.StoragePath, "accounts")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ab.ErrTokenInvalid
		}
		return nil, ab.NewStoreError("scan", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		email := entry.Name()[:len(entry.Name())-len(".json")]
		account, err := s.load(email)
		if err != nil {
			continue
		}
		if match(account) {
			return account, nil
		}
	}
	return nil, ab.ErrTokenInvalid
}

// save persists the account and its id index.  Callers hold the mutex.
func (s *FSAccountStore) save(account *ab.Account) error {
	account.UpdatedAt = time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = account.UpdatedAt
	}

	path := s.accountPath(account.Email)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return ab.NewStoreError("mkdir", err)
	}
	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return ab.NewStoreError("encode", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return ab.NewStoreError("write", err)
	}

	indexPath := s.idIndexPath(account.ID)
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return ab.NewStoreError("mkdir", err)
	}
	indexData, _ := json.Marshal(map[string]string{"email": account.Email})
	if err := writeFileAtomic(indexPath, indexData); err != nil {
		return ab.NewStoreError("write", err)
	}
	return nil
}

// writeFileAtomic stages data in a temp file and renames it over path, so a
// crashed write never leaves a truncated account record behind.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".account-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func blankSecrets(account *ab.Account) {
	account.PasswordHash = ""
	account.EmailVerificationToken = ""
	account.PasswordResetToken = ""
}
