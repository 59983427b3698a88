package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"tubebatch/internal/credentials"
	"tubebatch/internal/store"
)

var (
	ErrAlreadyLinked = errors.New("account is already linked")
	ErrNotFound      = errors.New("account not found")
)

type Account struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CredentialRef string `json:"token_file"`
}

// Linked is the result of a successful consent flow.
type Linked struct {
	ID    string
	Title string
	Token *oauth2.Token
}

// Linker performs the interactive authorization for one channel.
type Linker interface {
	Link(ctx context.Context) (*Linked, error)
}

func DisplayName(title, id string) string {
	return fmt.Sprintf("%s (%s)", title, id)
}

type Store struct {
	doc    *store.Document[[]Account]
	creds  credentials.Store
	logger *slog.Logger
}

func Open(path string, creds credentials.Store, logger *slog.Logger) (*Store, error) {
	doc, err := store.Open(path, func() []Account { return []Account{} })
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{doc: doc, creds: creds, logger: logger}, nil
}

func (s *Store) List() []Account {
	var result []Account
	s.doc.Read(func(list []Account) {
		result = make([]Account, len(list))
		copy(result, list)
	})
	return result
}

func (s *Store) Get(id string) (Account, bool) {
	return s.find(func(a Account) bool { return a.ID == id })
}

func (s *Store) FindByRef(ref string) (Account, bool) {
	if ref == "" {
		return Account{}, false
	}
	return s.find(func(a Account) bool { return a.CredentialRef == ref })
}

// Lookup accepts an account id, a credential ref or a display name.
func (s *Store) Lookup(key string) (Account, bool) {
	if key == "" {
		return Account{}, false
	}
	return s.find(func(a Account) bool {
		return a.ID == key || a.CredentialRef == key || a.Name == key
	})
}

func (s *Store) find(match func(Account) bool) (Account, bool) {
	var (
		found Account
		ok    bool
	)
	s.doc.Read(func(list []Account) {
		for _, a := range list {
			if match(a) {
				found, ok = a, true
				return
			}
		}
	})
	return found, ok
}

// Add links a new channel through linker, stores its token and records the
// account. A channel that is already linked is rejected and its new token is
// discarded.
func (s *Store) Add(ctx context.Context, linker Linker) (Account, error) {
	linked, err := linker.Link(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("failed to link account: %w", err)
	}
	if linked.ID == "" {
		return Account{}, errors.New("linked account has no channel id")
	}

	account := Account{
		ID:            linked.ID,
		Name:          DisplayName(linked.Title, linked.ID),
		CredentialRef: s.creds.RefFor(linked.ID),
	}

	if _, exists := s.Get(account.ID); exists {
		return Account{}, fmt.Errorf("%w: %s", ErrAlreadyLinked, account.Name)
	}

	if err := s.creds.Save(ctx, account.CredentialRef, linked.Token); err != nil {
		return Account{}, fmt.Errorf("failed to save credential: %w", err)
	}

	err = s.doc.Update(func(list []Account) ([]Account, error) {
		for _, a := range list {
			if a.ID == account.ID {
				return nil, fmt.Errorf("%w: %s", ErrAlreadyLinked, account.Name)
			}
		}
		return append(list, account), nil
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyLinked) {
			if delErr := s.creds.Delete(ctx, account.CredentialRef); delErr != nil {
				s.logger.Warn("Failed to clean up credential", "ref", account.CredentialRef, "error", delErr)
			}
		}
		return Account{}, err
	}

	s.logger.Info("Account linked", "account", account.Name)
	return account, nil
}

// Remove forgets the account and deletes its stored credential. A credential
// that is already gone is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	var removed Account
	err := s.doc.Update(func(list []Account) ([]Account, error) {
		for i, a := range list {
			if a.ID == id {
				removed = a
				return append(list[:i], list[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	})
	if err != nil {
		return err
	}

	if err := s.creds.Delete(ctx, removed.CredentialRef); err != nil && !errors.Is(err, credentials.ErrNotFound) {
		return fmt.Errorf("account removed but credential cleanup failed: %w", err)
	}

	s.logger.Info("Account removed", "account", removed.Name)
	return nil
}
