package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inboxops/brevo-console/internal/config"
)

// Store is the persistence contract shared by all account backends.
// Update treats empty name or apiKey as "keep the current value" so the
// console can edit one field without re-submitting the credential.
type Store interface {
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, name, apiKey string) (*Account, error)
	Update(ctx context.Context, id, name, apiKey string) (*Account, error)
	Delete(ctx context.Context, id string) error
	ActiveID(ctx context.Context) (string, error)
	SetActive(ctx context.Context, id string) error
	Close() error
}

// New creates the account store selected by cfg.Type
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "", "file":
		return NewFileStore(cfg.FilePath)

	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("pinging postgres: %w", err)
		}

		store := NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return store, nil

	case "s3":
		return NewS3Store(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// document is the on-disk and in-bucket shape shared by the file and S3
// backends: the full account set plus the active selection in one object.
type document struct {
	Accounts        []Account `json:"accounts"`
	ActiveAccountID string    `json:"activeAccountId"`
}

// FileStore keeps accounts in a single JSON file, loaded at startup and
// rewritten on every mutation
type FileStore struct {
	path string

	mu  sync.RWMutex
	doc document
}

// NewFileStore loads (or initializes) the JSON file at path
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	s := &FileStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading accounts file: %w", err)
	}

	// A corrupt credentials file is a hard error. Starting empty here
	// would silently orphan every stored account.
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return fmt.Errorf("parsing accounts file %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) save() error {
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("writing accounts file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s.doc)
}

// List returns all accounts
func (s *FileStore) List(ctx context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Account, len(s.doc.Accounts))
	copy(out, s.doc.Accounts)
	return out, nil
}

// Get returns one account by ID
func (s *FileStore) Get(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.doc.Accounts {
		if s.doc.Accounts[i].ID == id {
			account := s.doc.Accounts[i]
			return &account, nil
		}
	}
	return nil, ErrNotFound
}

// Create adds a new account and persists the file
func (s *FileStore) Create(ctx context.Context, name, apiKey string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	account := Account{
		ID:        uuid.New().String(),
		Name:      name,
		APIKey:    apiKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.doc.Accounts = append(s.doc.Accounts, account)

	if err := s.save(); err != nil {
		return nil, err
	}
	return &account, nil
}

// Update changes an account's name and/or API key
func (s *FileStore) Update(ctx context.Context, id, name, apiKey string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Accounts {
		if s.doc.Accounts[i].ID != id {
			continue
		}
		if name != "" {
			s.doc.Accounts[i].Name = name
		}
		if apiKey != "" {
			s.doc.Accounts[i].APIKey = apiKey
		}
		s.doc.Accounts[i].UpdatedAt = time.Now().UTC()

		if err := s.save(); err != nil {
			return nil, err
		}
		account := s.doc.Accounts[i]
		return &account, nil
	}
	return nil, ErrNotFound
}

// Delete removes an account. Deleting the active account clears the
// active selection.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Accounts {
		if s.doc.Accounts[i].ID != id {
			continue
		}
		s.doc.Accounts = append(s.doc.Accounts[:i], s.doc.Accounts[i+1:]...)
		if s.doc.ActiveAccountID == id {
			s.doc.ActiveAccountID = ""
		}
		return s.save()
	}
	return ErrNotFound
}

// ActiveID returns the active account ID, empty when none is selected
func (s *FileStore) ActiveID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.ActiveAccountID, nil
}

// SetActive selects the active account. An empty ID clears the selection.
func (s *FileStore) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		found := false
		for i := range s.doc.Accounts {
			if s.doc.Accounts[i].ID == id {
				found = true
				break
			}
		}
		if !found {
			return ErrNotFound
		}
	}

	s.doc.ActiveAccountID = id
	return s.save()
}

// Close is a no-op for the file backend
func (s *FileStore) Close() error { return nil }
