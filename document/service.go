package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("document: not found")
	ErrClaimNotFound = errors.New("document: claim not found")
	ErrForbidden     = errors.New("document: only the claim's lecturer may upload documents")
)

// OwnerLookup resolves the lecturer who submitted a claim.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, claimID string) (string, error)
}

// Service stores supporting documents and their references.
type Service struct {
	repo        Repository
	store       Store
	owners      OwnerLookup
	logger      *slog.Logger
	now         func() time.Time
	idGenerator func() string
}

func NewService(repo Repository, store Store, owners OwnerLookup) *Service {
	return &Service{
		repo:        repo,
		store:       store,
		owners:      owners,
		logger:      slog.Default(),
		now:         time.Now,
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// UploadParams describes one incoming file.
type UploadParams struct {
	ClaimID     string
	UploaderID  string
	FileName    string
	Size        int64
	Description string
	Body        io.Reader
}

// Upload checks the policy and ownership, writes the bytes to the store and
// records the reference. The stored name is a fresh identifier plus the
// original extension.
func (s *Service) Upload(ctx context.Context, p UploadParams) (Document, error) {
	name := filepath.Base(strings.TrimSpace(p.FileName))
	description := strings.TrimSpace(p.Description)
	if err := CheckUpload(name, p.Size, description); err != nil {
		return Document{}, err
	}
	contentType, err := ContentTypeFor(name)
	if err != nil {
		return Document{}, err
	}

	owner, err := s.owners.OwnerOf(ctx, p.ClaimID)
	if err != nil {
		return Document{}, err
	}
	if owner != p.UploaderID {
		return Document{}, ErrForbidden
	}

	id := s.idGenerator()
	doc := Document{
		ID:           id,
		ClaimID:      p.ClaimID,
		OriginalName: name,
		StoredName:   id + Extension(name),
		Size:         p.Size,
		ContentType:  contentType,
		Description:  description,
		UploadedBy:   p.UploaderID,
		UploadedAt:   s.now(),
	}

	if err := s.store.Put(ctx, doc.StoredName, p.Body, p.Size, contentType); err != nil {
		s.logger.Error("document store put failed",
			slog.String("claim_id", p.ClaimID),
			slog.String("key", doc.StoredName),
			slog.Any("error", err),
		)
		return Document{}, err
	}

	if err := s.repo.Insert(ctx, doc); err != nil {
		if derr := s.store.Delete(ctx, doc.StoredName); derr != nil {
			s.logger.Warn("orphaned stored document",
				slog.String("key", doc.StoredName),
				slog.Any("error", derr),
			)
		}
		return Document{}, err
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, claimID string) ([]Document, error) {
	return s.repo.ListByClaim(ctx, claimID)
}

func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	return s.repo.Get(ctx, id)
}

// Open returns the reference and a reader over the stored bytes. The caller
// closes the reader.
func (s *Service) Open(ctx context.Context, id string) (Document, io.ReadCloser, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Document{}, nil, err
	}
	rc, err := s.store.Open(ctx, doc.StoredName)
	if err != nil {
		return Document{}, nil, fmt.Errorf("document: open %s: %w", doc.ID, err)
	}
	return doc, rc, nil
}
