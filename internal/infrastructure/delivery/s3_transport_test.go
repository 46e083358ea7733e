package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjectAPI struct {
	mock.Mock
}

func (m *mockObjectAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockObjectAPI) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadBucketOutput)
	return out, args.Error(1)
}

func apiResponseError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("api error"),
		},
	}
}

func TestObjectKey(t *testing.T) {
	msg := newMessage(t)
	assert.Equal(t, "erp-sap/SALES_ORDER/order-12345.json", ObjectKey("", msg))
	assert.Equal(t, "inbound/erp-sap/SALES_ORDER/order-12345.json", ObjectKey("/inbound/", msg))
}

func TestS3Transport_Send(t *testing.T) {
	api := &mockObjectAPI{}
	var input *s3.PutObjectInput
	api.On("PutObject", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { input = args.Get(1).(*s3.PutObjectInput) }).
		Return(&s3.PutObjectOutput{}, nil)

	connector := newConnector(t, integration.TransportS3, "partner-drop")
	connector.Settings["prefix"] = "edi"
	receipt, err := NewS3TransportWithClient(api).Send(context.Background(), connector, newMessage(t))
	require.NoError(t, err)
	assert.Equal(t, "s3://partner-drop/edi/erp-sap/SALES_ORDER/order-12345.json", receipt.Reference)
	require.NotNil(t, input)
	assert.Equal(t, "partner-drop", aws.ToString(input.Bucket))
	assert.Equal(t, "edi/erp-sap/SALES_ORDER/order-12345.json", aws.ToString(input.Key))
	assert.Equal(t, "application/json", aws.ToString(input.ContentType))
	assert.Equal(t, "idem-1", input.Metadata["idempotency-key"])
	body, err := io.ReadAll(input.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"VBELN":"12345"}`, string(body))
	api.AssertExpectations(t)
}

func TestS3Transport_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"access denied", apiResponseError(http.StatusForbidden), false},
		{"throttled", apiResponseError(http.StatusServiceUnavailable), true},
		{"network", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockObjectAPI{}
			api.On("PutObject", mock.Anything, mock.Anything).Return(nil, tt.err)
			_, err := NewS3TransportWithClient(api).Send(context.Background(),
				newConnector(t, integration.TransportS3, "bucket"), newMessage(t))
			require.Error(t, err)
			assert.Equal(t, tt.retryable, integration.IsRetryableDeliveryError(err))
		})
	}
}

func TestS3Transport_Probe(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("HeadBucket", mock.Anything, mock.MatchedBy(func(in *s3.HeadBucketInput) bool {
		return aws.ToString(in.Bucket) == "ok-bucket"
	})).Return(&s3.HeadBucketOutput{}, nil)
	api.On("HeadBucket", mock.Anything, mock.Anything).Return(nil, apiResponseError(http.StatusNotFound))

	transport := NewS3TransportWithClient(api)
	assert.NoError(t, transport.Probe(context.Background(), newConnector(t, integration.TransportS3, "ok-bucket")))
	assert.ErrorContains(t, transport.Probe(context.Background(), newConnector(t, integration.TransportS3, "gone")), "gone")
}
