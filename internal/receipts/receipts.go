// Package receipts archives payment receipts to S3-compatible object storage.
package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/finsec-io/finsec-api/internal/config"
	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/rs/zerolog"
)

// Receipt is the archived record of one completed bill payment.
type Receipt struct {
	TransactionID string
	UserID        string
	BillID        string
	BillName      string
	CardID        string
	CardLast4     string
	AmountCents   int64
	BalanceCents  int64
	PaidAt        time.Time
}

type receiptDocument struct {
	TransactionID string      `json:"transaction_id"`
	BillID        string      `json:"bill_id"`
	BillName      string      `json:"bill_name"`
	CardID        string      `json:"card_id"`
	CardLast4     string      `json:"card_last4"`
	Amount        json.Number `json:"amount"`
	BalanceAfter  json.Number `json:"balance_after"`
	PaidAt        time.Time   `json:"paid_at"`
}

// Archiver stores receipts.
type Archiver interface {
	Archive(ctx context.Context, r Receipt) (string, error)
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes one private JSON object per receipt.
type S3Archiver struct {
	client objectPutter
	bucket string
	logger zerolog.Logger
}

// NewS3Archiver builds an S3 client from config. A custom endpoint switches
// to path-style addressing for S3-compatible stores.
func NewS3Archiver(ctx context.Context, cfg config.ReceiptsConfig, logger zerolog.Logger) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info().Str("bucket", cfg.Bucket).Str("region", cfg.Region).Msg("receipt archive initialized")
	return newS3Archiver(client, cfg.Bucket, logger), nil
}

func newS3Archiver(client objectPutter, bucket string, logger zerolog.Logger) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "receipts").Logger(),
	}
}

// Key returns the object key for a receipt: receipts/<user>/<yyyy>/<mm>/<transaction>.json
func Key(r Receipt) string {
	paid := r.PaidAt.UTC()
	return fmt.Sprintf("receipts/%s/%04d/%02d/%s.json", r.UserID, paid.Year(), int(paid.Month()), r.TransactionID)
}

// Archive uploads the receipt and returns its key.
func (a *S3Archiver) Archive(ctx context.Context, r Receipt) (string, error) {
	body, err := json.Marshal(receiptDocument{
		TransactionID: r.TransactionID,
		BillID:        r.BillID,
		BillName:      r.BillName,
		CardID:        r.CardID,
		CardLast4:     r.CardLast4,
		Amount:        models.AmountJSON(r.AmountCents),
		BalanceAfter:  models.AmountJSON(r.BalanceCents),
		PaidAt:        r.PaidAt.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}

	key := Key(r)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload receipt %s: %w", key, err)
	}

	a.logger.Debug().Str("key", key).Msg("receipt archived")
	return key, nil
}

// Discard drops receipts. It is used when archiving is disabled.
type Discard struct{}

func (Discard) Archive(context.Context, Receipt) (string, error) { return "", nil }

// New returns an S3Archiver when receipts are enabled and Discard otherwise.
func New(ctx context.Context, cfg config.ReceiptsConfig, logger zerolog.Logger) (Archiver, error) {
	if !cfg.Enabled {
		return Discard{}, nil
	}
	return NewS3Archiver(ctx, cfg, logger)
}
