package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/config"
)

// ObjectAPI is the subset of *s3.Client used by the transport
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Transport drops each message as a JSON object for batch style partners.
// The bucket is settings["bucket"], falling back to the connector endpoint.
type S3Transport struct {
	client ObjectAPI
}

// NewS3Transport builds an S3 client from configuration. Any S3 compatible
// store works when an endpoint is set.
func NewS3Transport(ctx context.Context, cfg config.S3Config) (*S3Transport, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3TransportWithClient(client), nil
}

// NewS3TransportWithClient wraps an existing client
func NewS3TransportWithClient(client ObjectAPI) *S3Transport {
	return &S3Transport{client: client}
}

// ObjectKey returns {prefix}/{targetConnector}/{type}/{messageId}.json, the
// prefix omitted when empty
func ObjectKey(prefix string, msg *integration.IntegrationMessage) string {
	key := path.Join(msg.TargetConnector, msg.DeliveryType(), msg.MessageID+".json")
	if p := strings.Trim(prefix, "/"); p != "" {
		key = p + "/" + key
	}
	return key
}

// Send writes the delivery payload object
func (t *S3Transport) Send(ctx context.Context, connector *integration.Connector, msg *integration.IntegrationMessage) (*integration.DeliveryReceipt, error) {
	bucket := connector.Setting("bucket", connector.Endpoint)
	if bucket == "" {
		return nil, integration.NewPermanentDeliveryError(0, errors.New("s3 bucket is not configured"))
	}
	body, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}

	key := ObjectKey(connector.Setting("prefix", ""), msg)
	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"message-type":     msg.DeliveryType(),
			"source-connector": msg.SourceConnector,
			"idempotency-key":  msg.IdempotencyKey,
		},
	})
	if err != nil {
		return nil, classifyS3Error(err)
	}
	return &integration.DeliveryReceipt{StatusCode: http.StatusOK, Reference: "s3://" + bucket + "/" + key}, nil
}

// Probe checks the bucket exists and is accessible
func (t *S3Transport) Probe(ctx context.Context, connector *integration.Connector) error {
	bucket := connector.Setting("bucket", connector.Endpoint)
	if _, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("bucket %s is not accessible: %w", bucket, err)
	}
	return nil
}

func classifyS3Error(err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return classifyStatus(respErr.HTTPStatusCode(), err)
	}
	return integration.NewRetryableDeliveryError(0, err)
}
