package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

type mockSQS struct {
	sent     []*sqs.SendMessageInput
	deleted  []string
	messages []sqstypes.Message
	err      error
}

func (m *mockSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (m *mockSQS) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := &sqs.ReceiveMessageOutput{Messages: m.messages}
	m.messages = nil
	return out, nil
}

func (m *mockSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	m.deleted = append(m.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestPublisherRejectsInvalidEvents(t *testing.T) {
	queue := NewMemoryQueue(1)
	pub := NewPublisher(queue, logging.Discard())

	err := pub.EnqueueEvent(context.Background(), messaging.InboundEvent{ID: "e1", Identity: "u1", Kind: messaging.KindImage})
	require.Error(t, err)
	assert.Zero(t, queue.Len())
}

func TestPublisherUsesIdentityAsFIFOGroup(t *testing.T) {
	client := &mockSQS{}
	pub := NewPublisher(NewSQSQueue(client, "https://sqs.local/000/events.fifo"), logging.Discard())

	require.NoError(t, pub.EnqueueEvent(context.Background(), textEvent("wamid.9", "966500000001", "1")))

	require.Len(t, client.sent, 1)
	in := client.sent[0]
	assert.Equal(t, "966500000001", aws.ToString(in.MessageGroupId))
	assert.Equal(t, "wamid.9", aws.ToString(in.MessageDeduplicationId))

	payload, err := decodePayload(aws.ToString(in.MessageBody))
	require.NoError(t, err)
	assert.Equal(t, "1", payload.Event.Text)
}

func TestSQSQueueStandardQueueHasNoGroup(t *testing.T) {
	client := &mockSQS{}
	q := NewSQSQueue(client, "https://sqs.local/000/events")

	require.NoError(t, q.Send(context.Background(), queueSend{Body: "{}", GroupID: "u1", DedupeID: "d1"}))
	assert.Nil(t, client.sent[0].MessageGroupId)
	assert.Nil(t, client.sent[0].MessageDeduplicationId)
}

func TestSQSQueueReceiveAndDelete(t *testing.T) {
	client := &mockSQS{messages: []sqstypes.Message{{
		MessageId:     aws.String("m-1"),
		Body:          aws.String("body"),
		ReceiptHandle: aws.String("rh-1"),
	}}}
	q := NewSQSQueue(client, "https://sqs.local/000/events")

	msgs, err := q.Receive(context.Background(), 5, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "body", msgs[0].Body)

	require.NoError(t, q.Delete(context.Background(), msgs[0].ReceiptHandle))
	require.NoError(t, q.Delete(context.Background(), ""))
	assert.Equal(t, []string{"rh-1"}, client.deleted)
}

func TestSQSQueueWrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	q := NewSQSQueue(&mockSQS{err: boom}, "https://sqs.local/000/events")

	err := q.Send(context.Background(), queueSend{Body: "{}"})
	assert.ErrorIs(t, err, boom)
	_, err = q.Receive(context.Background(), 1, 0)
	assert.ErrorIs(t, err, boom)
}
