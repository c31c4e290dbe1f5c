package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"realtime_chat_service/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOClient attachment bucket
type MinIOClient struct {
	Client     *minio.Client
	BucketName string
}

// NewMinIOConnection connect and make sure the bucket exists, retried per d
func NewMinIOConnection(d MinIOConnection) (*MinIOClient, error) {
	return retry("minio", d.RetryCount, d.RetryInterval, func() (*MinIOClient, error) {
		return openBucket(d)
	})
}

func openBucket(d MinIOConnection) (*MinIOClient, error) {
	client, err := minio.New(d.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(d.User, d.Password, ""),
		Secure: d.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio %s: %w", d.Endpoint, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, d.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket [%s]: %w", d.BucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, d.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket [%s]: %w", d.BucketName, err)
		}
		logger.Log.Info("attachment bucket created", zap.String("bucket", d.BucketName))
	}

	return &MinIOClient{Client: client, BucketName: d.BucketName}, nil
}

// PresignPutURL 上傳用 URL, 由 client 直接 PUT 到 bucket
func (m *MinIOClient) PresignPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.Client.PresignedPutObject(ctx, m.BucketName, objectName, expiry)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", objectName, err)
	}
	return u.String(), nil
}

// PresignGetURL 放進 attachment.url 的讀取 URL
func (m *MinIOClient) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.Client.PresignedGetObject(ctx, m.BucketName, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", objectName, err)
	}
	return u.String(), nil
}
