package app

import (
	"context"
	"path"
	"strings"
	"time"

	"realtime_chat_service/internal/chat/domain"
	errprocess "realtime_chat_service/pkg/err"

	"github.com/google/uuid"
)

// attachmentURLExpiry presigned GET links stay valid this long (S3 maximum)
const attachmentURLExpiry = 7 * 24 * time.Hour

// Presigner object storage presigned urls
type Presigner interface {
	PresignPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// UploadTicket where to upload and what url to put in the message
type UploadTicket struct {
	ObjectName string                `json:"objectName"`
	Type       domain.AttachmentType `json:"type"`
	UploadURL  string                `json:"uploadUrl"`
	URL        string                `json:"url"`
	ExpiresAt  time.Time             `json:"expiresAt"`
}

// AttachmentUseCase issues upload urls for message attachments
type AttachmentUseCase struct {
	storage      Presigner
	uploadExpiry time.Duration
}

// NewAttachmentUseCase storage may be nil when attachments are disabled
func NewAttachmentUseCase(storage Presigner, uploadExpiry time.Duration) *AttachmentUseCase {
	return &AttachmentUseCase{storage: storage, uploadExpiry: uploadExpiry}
}

// Enabled object storage configured
func (uc *AttachmentUseCase) Enabled() bool {
	return uc != nil && uc.storage != nil
}

// PresignUpload ticket for one attachment of userID
func (uc *AttachmentUseCase) PresignUpload(ctx context.Context, userID, fileName string, kind domain.AttachmentType) (*UploadTicket, error) {
	if !kind.Valid() {
		return nil, errprocess.Wrap(domain.ErrValidation, "unknown attachment type %q", kind)
	}
	ext := strings.ToLower(path.Ext(path.Base(fileName)))
	object := path.Join("attachments", userID, uuid.New().String()+ext)

	uploadURL, err := uc.storage.PresignPutURL(ctx, object, uc.uploadExpiry)
	if err != nil {
		return nil, err
	}
	getURL, err := uc.storage.PresignGetURL(ctx, object, attachmentURLExpiry)
	if err != nil {
		return nil, err
	}

	return &UploadTicket{
		ObjectName: object,
		Type:       kind,
		UploadURL:  uploadURL,
		URL:        getURL,
		ExpiresAt:  time.Now().Add(uc.uploadExpiry),
	}, nil
}
