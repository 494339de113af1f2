package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
	"github.com/onetarget777/kachra-site/internal/nsfw"
	"github.com/onetarget777/kachra-site/internal/quota"
	"github.com/onetarget777/kachra-site/internal/storage"
)

// UploadService runs the content admission pipeline: quota check,
// byte persistence, NSFW classification, metadata record, optional
// share-link mint, ledger refresh, audit. Steps run strictly in order;
// the first failure aborts without compensating completed steps.
type UploadService struct {
	db         *gorm.DB
	store      storage.Storage
	classifier nsfw.Classifier
	ledger     *quota.Ledger
	minter     *LinkMinter
}

// NewUploadService wires the admission pipeline.
func NewUploadService(db *gorm.DB, store storage.Storage, classifier nsfw.Classifier, minter *LinkMinter) *UploadService {
	return &UploadService{
		db:         db,
		store:      store,
		classifier: classifier,
		ledger:     quota.NewLedger(db),
		minter:     minter,
	}
}

// UploadOptions are the caller-supplied flags for one upload.
type UploadOptions struct {
	// AccountID is nil for guest uploads.
	AccountID *string

	// SelfDeclaredNSFW skips classification and forces score 100.
	SelfDeclaredNSFW bool

	Private       bool
	MintShareLink bool
	Meta          RequestMeta
}

// UploadResult is what flows back to the client after admission.
type UploadResult struct {
	Content  *models.Content
	ShareURL string // empty unless a link was minted
	IsGuest  bool
}

// Upload admits one file through the pipeline.
func (s *UploadService) Upload(ctx context.Context, fileHeader *multipart.FileHeader, opts UploadOptions) (*UploadResult, error) {
	principal := quota.Guest()
	if opts.AccountID != nil {
		principal = quota.ForAccount(*opts.AccountID)
	}

	// QUOTA_CHECK
	admission, err := s.ledger.Admit(principal, fileHeader.Size)
	if err != nil {
		return nil, err
	}

	// PERSIST_BYTES. The stored name is the upload timestamp plus the
	// original extension; millisecond-extension collisions are assumed
	// impossible in practice.
	key := fmt.Sprintf("%d%s", time.Now().UnixMilli(), filepath.Ext(fileHeader.Filename))

	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	storedKey, err := s.store.Save(ctx, src, key, fileHeader.Size)
	src.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to persist upload: %w", err)
	}

	// CLASSIFY. Never fails the pipeline: self-declaration bypasses the
	// call entirely, and classifier faults degrade to the safe default
	// inside the adapter.
	var result nsfw.Result
	if opts.SelfDeclaredNSFW {
		result = nsfw.Result{Score: 100, Flagged: true}
	} else {
		result = s.classify(ctx, fileHeader)
	}

	// RECORD_METADATA
	content := &models.Content{
		Filename:  fileHeader.Filename,
		FileType:  fileHeader.Header.Get("Content-Type"),
		FileSize:  fileHeader.Size,
		FilePath:  storedKey,
		IsNSFW:    result.Flagged,
		NSFWScore: result.Score,
		IsPrivate: opts.Private,
		AccountID: opts.AccountID,
	}
	if err := s.db.Create(content).Error; err != nil {
		return nil, fmt.Errorf("failed to record content metadata: %w", err)
	}

	// MINT_LINK
	var shareURL string
	if opts.MintShareLink {
		link, err := s.minter.Mint(content.ID, opts.AccountID)
		if err != nil {
			return nil, err
		}
		shareURL = s.minter.URL(link.ShortCode)
	}

	// UPDATE_LEDGER. Advisory only; gating always re-derives usage.
	if id, ok := principal.AccountID(); ok {
		if err := s.ledger.RefreshAdvisory(id, admission.UsedBytes); err != nil {
			log.Error().Err(err).Str("account", id).Msg("Failed to refresh storage counter")
		}
	}

	// AUDIT
	Audit(s.db, "upload", map[string]any{
		"filename":  content.Filename,
		"size":      content.FileSize,
		"isNSFW":    content.IsNSFW,
		"isPrivate": content.IsPrivate,
		"isGuest":   principal.IsGuest(),
	}, opts.Meta, opts.AccountID, &content.ID)

	log.Info().
		Str("content", content.ID).
		Str("filename", content.Filename).
		Int64("size", content.FileSize).
		Bool("nsfw", content.IsNSFW).
		Bool("guest", principal.IsGuest()).
		Msg("Upload admitted")

	return &UploadResult{
		Content:  content,
		ShareURL: shareURL,
		IsGuest:  principal.IsGuest(),
	}, nil
}

// classify re-reads the upload and scores it. Read failures count as
// classifier failures and fall back to the safe default.
func (s *UploadService) classify(ctx context.Context, fileHeader *multipart.FileHeader) nsfw.Result {
	src, err := fileHeader.Open()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to reopen upload for classification")
		return nsfw.Result{}
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read upload for classification")
		return nsfw.Result{}
	}

	return s.classifier.Classify(ctx, data, fileHeader.Header.Get("Content-Type"))
}
