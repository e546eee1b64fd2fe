package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	appconfig "github.com/inboxops/brevo-console/internal/config"
)

// s3API is the slice of the S3 client the store uses, kept small so tests
// can substitute a fake
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps the whole account document as one JSON object in S3,
// loaded at startup and rewritten on every mutation. A single console
// instance is assumed to own the object.
type S3Store struct {
	client s3API
	bucket string
	key    string

	mu  sync.RWMutex
	doc document
}

// NewS3Store connects to S3 and loads the account document. Credentials
// resolve in order: static keys from config, a shared config profile,
// then the default provider chain.
func NewS3Store(ctx context.Context, cfg appconfig.StorageConfig) (*S3Store, error) {
	var awsCfg aws.Config
	var err error

	switch {
	case cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "":
		creds := credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, "")
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.AWSRegion),
			config.WithCredentialsProvider(creds),
		)
	case cfg.GetAWSProfile() != "":
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.AWSRegion),
			config.WithSharedConfigProfile(cfg.GetAWSProfile()),
		)
	default:
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.AWSRegion),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return newS3Store(ctx, s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Key)
}

func newS3Store(ctx context.Context, client s3API, bucket, key string) (*S3Store, error) {
	s := &S3Store{client: client, bucket: bucket, key: key}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *S3Store) load(ctx context.Context) error {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		// A missing object means first run. Anything else is fatal, an
		// empty start after a transient error would clobber real data on
		// the next save.
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil
		}
		return fmt.Errorf("getting accounts object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("reading S3 object body: %w", err)
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return fmt.Errorf("parsing accounts object s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *S3Store) save(ctx context.Context) error {
	jsonData, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling accounts: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting accounts object to S3: %w", err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Account, len(s.doc.Accounts))
	copy(out, s.doc.Accounts)
	return out, nil
}

func (s *S3Store) Get(ctx context.Context, id string) (*Account, error) {
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

func (s *S3Store) Create(ctx context.Context, name, apiKey string) (*Account, error) {
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

	if err := s.save(ctx); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *S3Store) Update(ctx context.Context, id, name, apiKey string) (*Account, error) {
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

		if err := s.save(ctx); err != nil {
			return nil, err
		}
		account := s.doc.Accounts[i]
		return &account, nil
	}
	return nil, ErrNotFound
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
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
		return s.save(ctx)
	}
	return ErrNotFound
}

func (s *S3Store) ActiveID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.ActiveAccountID, nil
}

func (s *S3Store) SetActive(ctx context.Context, id string) error {
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
	return s.save(ctx)
}

func (s *S3Store) Close() error { return nil }
