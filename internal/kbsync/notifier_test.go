package kbsync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	awsclient "cqa-workers/internal/common/aws"
)

type mockSNS struct {
	mock.Mock
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sns.PublishOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSNSNotifier_Notify(t *testing.T) {
	api := new(mockSNS)
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var event StatusEvent
		if err := json.Unmarshal([]byte(aws.ToString(in.Message)), &event); err != nil {
			return false
		}
		return aws.ToString(in.TopicArn) == "arn:aws:sns:eu-west-1:1:kb" &&
			aws.ToString(in.Subject) == "kb export faq" &&
			aws.ToString(in.MessageAttributes["project"].StringValue) == "faq" &&
			event.Message == "Upload started" &&
			event.RunID == "run-1"
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	n := NewSNSNotifier(awsclient.NewSNSClientWithAPI(api, "arn:aws:sns:eu-west-1:1:kb"))
	err := n.Notify(context.Background(), StatusEvent{
		RunID:     "run-1",
		Project:   "faq",
		Direction: DirectionExport,
		Message:   "Upload started",
		Timestamp: time.Now().UTC(),
	})

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestSNSNotifier_Notify_PublishError(t *testing.T) {
	api := new(mockSNS)
	api.On("Publish", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	n := NewSNSNotifier(awsclient.NewSNSClientWithAPI(api, "arn:aws:sns:eu-west-1:1:kb"))
	err := n.Notify(context.Background(), StatusEvent{RunID: "run-2", Project: "faq", Direction: DirectionImport})

	assert.ErrorIs(t, err, assert.AnError)
}
