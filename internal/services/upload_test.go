package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/onetarget777/kachra-site/internal/models"
	"github.com/onetarget777/kachra-site/internal/nsfw"
	"github.com/onetarget777/kachra-site/internal/quota"
	"github.com/onetarget777/kachra-site/internal/storage"
)

// stubClassifier records whether it was called and returns a canned
// result, standing in for the vision endpoint.
type stubClassifier struct {
	result nsfw.Result
	called bool
}

func (s *stubClassifier) Classify(ctx context.Context, data []byte, mimeType string) nsfw.Result {
	s.called = true
	return s.result
}

type UploadPipelineTestSuite struct {
	suite.Suite
	db         *gorm.DB
	dataDir    string
	classifier *stubClassifier
	service    *UploadService
}

func (s *UploadPipelineTestSuite) SetupTest() {
	s.db = newTestDB(s.T())

	var err error
	s.dataDir, err = os.MkdirTemp("", "upload-pipeline-*")
	s.Require().NoError(err)

	store, err := storage.NewLocalStorage(s.dataDir)
	s.Require().NoError(err)

	// Scaled-down limits keep test payloads small: guest 1 MB,
	// registered 5 MB.
	s.Require().NoError(s.db.Create(&models.SiteSettings{
		GuestUploadLimitMB: 1,
		UserUploadLimitMB:  5,
		PoolDays:           30,
	}).Error)

	s.classifier = &stubClassifier{}
	minter := NewLinkMinter(s.db, "https://kachra.example")
	s.service = NewUploadService(s.db, store, s.classifier, minter)
}

func (s *UploadPipelineTestSuite) TearDownTest() {
	os.RemoveAll(s.dataDir)
}

func (s *UploadPipelineTestSuite) createAccount() *models.Account {
	username := "uploader"
	account := &models.Account{
		Email:        "uploader@example.com",
		Username:     &username,
		PasswordHash: "x",
		PoolDays:     30,
	}
	s.Require().NoError(s.db.Create(account).Error)
	return account
}

func (s *UploadPipelineTestSuite) upload(size int, opts UploadOptions) (*UploadResult, error) {
	fh := makeFileHeader(s.T(), "photo.png", "image/png", make([]byte, size))
	return s.service.Upload(context.Background(), fh, opts)
}

func (s *UploadPipelineTestSuite) TestGuestUploadAdmitted() {
	result, err := s.upload(512*1024, UploadOptions{})
	s.Require().NoError(err)

	s.True(result.IsGuest)
	s.Empty(result.ShareURL)

	content := result.Content
	s.Nil(content.AccountID)
	s.False(content.IsPrivate)
	s.Equal("photo.png", content.Filename)
	s.Equal("image/png", content.FileType)
	s.Equal(int64(512*1024), content.FileSize)

	// Bytes are on disk under the stored key.
	info, err := os.Stat(filepath.Join(s.dataDir, content.FilePath))
	s.Require().NoError(err)
	s.Equal(int64(512*1024), info.Size())

	// No share link was minted without the opt-in.
	var links int64
	s.db.Model(&models.ShareLink{}).Count(&links)
	s.Zero(links)
}

func (s *UploadPipelineTestSuite) TestGuestOverLimitRejected() {
	_, err := s.upload(2*1024*1024, UploadOptions{})

	var capacity *quota.CapacityError
	s.Require().ErrorAs(err, &capacity)
	s.Equal(int64(1), capacity.GuestLimitMB)
	s.Equal(int64(5), capacity.UserLimitMB)

	// Nothing was recorded.
	var contents, logs int64
	s.db.Model(&models.Content{}).Count(&contents)
	s.db.Model(&models.ActivityLog{}).Count(&logs)
	s.Zero(contents)
	s.Zero(logs)
}

func (s *UploadPipelineTestSuite) TestUnknownAccountRejected() {
	unknown := "no-such-account"
	_, err := s.upload(1024, UploadOptions{AccountID: &unknown})
	s.ErrorIs(err, quota.ErrAccountNotFound)
}

func (s *UploadPipelineTestSuite) TestSelfDeclaredNSFWBypassesClassifier() {
	// Even a classifier that would report safe is never consulted.
	s.classifier.result = nsfw.Result{Score: 0, Flagged: false}

	result, err := s.upload(1024, UploadOptions{SelfDeclaredNSFW: true})
	s.Require().NoError(err)

	s.True(result.Content.IsNSFW)
	s.Equal(100, result.Content.NSFWScore)
	s.False(s.classifier.called)
}

func (s *UploadPipelineTestSuite) TestClassifierOutcomeRecorded() {
	s.classifier.result = nsfw.Result{Score: 87, Flagged: true}

	result, err := s.upload(1024, UploadOptions{})
	s.Require().NoError(err)

	s.True(s.classifier.called)
	s.True(result.Content.IsNSFW)
	s.Equal(87, result.Content.NSFWScore)
}

func (s *UploadPipelineTestSuite) TestClassifierFailSafeDefault() {
	// The adapter degrades failures to the zero Result; the pipeline
	// records it as safe.
	s.classifier.result = nsfw.Result{}

	result, err := s.upload(1024, UploadOptions{})
	s.Require().NoError(err)

	s.False(result.Content.IsNSFW)
	s.Equal(0, result.Content.NSFWScore)
}

func (s *UploadPipelineTestSuite) TestShareLinkMintedOnOptIn() {
	result, err := s.upload(1024, UploadOptions{MintShareLink: true})
	s.Require().NoError(err)

	var link models.ShareLink
	s.Require().NoError(s.db.First(&link, "content_id = ?", result.Content.ID).Error)
	s.Len(link.ShortCode, 8)
	s.Equal("https://kachra.example/s/"+link.ShortCode, result.ShareURL)
	s.Zero(link.Views)
}

func (s *UploadPipelineTestSuite) TestAccountUploadRefreshesAdvisoryCounter() {
	account := s.createAccount()

	_, err := s.upload(1536*1024, UploadOptions{AccountID: &account.ID})
	s.Require().NoError(err)

	var reloaded models.Account
	s.Require().NoError(s.db.First(&reloaded, "id = ?", account.ID).Error)
	s.Equal(int64(2), reloaded.StorageUsedMB) // ceil(1.5MB)
}

func (s *UploadPipelineTestSuite) TestQuotaCountsPriorUploads() {
	account := s.createAccount()

	for i := 0; i < 5; i++ {
		_, err := s.upload(1024*1024, UploadOptions{AccountID: &account.ID})
		s.Require().NoError(err)
	}

	_, err := s.upload(1, UploadOptions{AccountID: &account.ID})
	var capacity *quota.CapacityError
	s.ErrorAs(err, &capacity)
}

func (s *UploadPipelineTestSuite) TestAuditEntryRecorded() {
	result, err := s.upload(1024, UploadOptions{
		Private: true,
		Meta:    RequestMeta{IPAddress: "10.0.0.9", UserAgent: "test-agent"},
	})
	s.Require().NoError(err)

	var entry models.ActivityLog
	s.Require().NoError(s.db.First(&entry, "action = ?", "upload").Error)
	s.Equal("10.0.0.9", entry.IPAddress)
	s.Equal("test-agent", entry.UserAgent)
	s.Require().NotNil(entry.ContentID)
	s.Equal(result.Content.ID, *entry.ContentID)

	var details map[string]interface{}
	s.Require().NoError(json.Unmarshal([]byte(entry.Details), &details))
	s.Equal("photo.png", details["filename"])
	s.Equal(true, details["isPrivate"])
	s.Equal(true, details["isGuest"])
}

func TestUploadPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(UploadPipelineTestSuite))
}
