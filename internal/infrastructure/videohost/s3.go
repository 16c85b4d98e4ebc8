// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package videohost

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-live-session-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-live-session-service/pkg/constants"
)

const (
	// DefaultS3Prefix is the key prefix of ingested recordings.
	DefaultS3Prefix = "recordings"
	// DefaultPartSize is the multipart chunk size used while streaming.
	DefaultPartSize = 5 * 1024 * 1024

	defaultRecordingContentType = "video/mp4"
)

// S3Uploader is the part of manager.Uploader the S3 video host uses.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config configures the S3 video host.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3VideoHost streams a recording download straight into an S3 multipart upload.
// The object key is the media id.
type S3VideoHost struct {
	uploader   S3Uploader
	httpClient *http.Client
	bucket     string
	prefix     string
	now        func() time.Time
}

var _ domain.VideoHost = (*S3VideoHost)(nil)

// NewS3VideoHost creates an S3 video host from the default AWS credential chain,
// or from static credentials when both keys are given.
func NewS3VideoHost(ctx context.Context, cfg S3Config) (*S3VideoHost, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
		slog.InfoContext(ctx, "S3 video host using static credentials", "region", cfg.Region, "bucket", cfg.Bucket)
	} else {
		slog.InfoContext(ctx, "S3 video host using the default credential chain", "region", cfg.Region, "bucket", cfg.Bucket)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = DefaultPartSize
	})

	return newS3VideoHost(uploader, &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}, cfg.Bucket, cfg.Prefix), nil
}

func newS3VideoHost(uploader S3Uploader, httpClient *http.Client, bucket, prefix string) *S3VideoHost {
	if prefix == "" {
		prefix = DefaultS3Prefix
	}
	return &S3VideoHost{
		uploader:   uploader,
		httpClient: httpClient,
		bucket:     bucket,
		prefix:     prefix,
		now:        time.Now,
	}
}

// RecordingKey returns the object key {prefix}/{yyyy}/{mm}/{id}.mp4.
func RecordingKey(prefix string, at time.Time, id string) string {
	return path.Join(prefix, at.UTC().Format("2006"), at.UTC().Format("01"), id+".mp4")
}

// IngestFromURL downloads the recording and pipes the body into the uploader
// without buffering the whole file.
func (h *S3VideoHost) IngestFromURL(ctx context.Context, downloadURL string, title string) (*models.IngestResult, error) {
	if downloadURL == "" {
		return nil, domain.NewValidationError("recording url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, domain.NewValidationError("invalid recording url", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to download recording", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.NewNotFoundError("recording download returned 404")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewUnauthorizedError(fmt.Sprintf("recording download rejected (status %d)", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, domain.NewUnavailableError(fmt.Sprintf("recording download failed (status %d)", resp.StatusCode))
	}

	contentType := resp.Header.Get(constants.ContentTypeHeader)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = defaultRecordingContentType
	}

	key := RecordingKey(h.prefix, h.now(), uuid.NewString())
	input := &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        resp.Body,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			// header values must stay ASCII
			"title": url.QueryEscape(title),
		},
	}
	if resp.ContentLength > 0 {
		input.ContentLength = aws.Int64(resp.ContentLength)
	}

	if _, err := h.uploader.Upload(ctx, input); err != nil {
		return nil, domain.NewUnavailableError("failed to upload recording to S3", err)
	}

	slog.InfoContext(ctx, "recording uploaded to S3",
		"bucket", h.bucket,
		"key", key,
		"content_length", resp.ContentLength,
	)
	return &models.IngestResult{MediaID: key}, nil
}
