package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/christosporios/strategic-investments-gr/internal/model"
	"github.com/christosporios/strategic-investments-gr/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
}

func TestClassifyRelevant_FiltersToKnownADAs(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(textResponse(`{"relevant": ["ADA1", "HALLUCINATED", "ADA3"]}`), nil).Once()

	c := NewLLMClassifier(client, "claude-haiku-4-5-20251001")
	codes, err := c.ClassifyRelevant(context.Background(), []model.Candidate{
		{ADA: "ADA1", Subject: "Έγκριση στρατηγικής επένδυσης"},
		{ADA: "ADA2", Subject: "Διορισμός υπαλλήλου"},
		{ADA: "ADA3", Subject: "Τροποποίηση στρατηγικής επένδυσης"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"ADA1", "ADA3"}, codes)
	client.AssertExpectations(t)
}

func TestClassifyRelevant_EmptyInputNoCall(t *testing.T) {
	client := &mockAnthropicClient{}
	c := NewLLMClassifier(client, "claude-haiku-4-5-20251001")

	codes, err := c.ClassifyRelevant(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, codes)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestClassifyRelevant_MalformedResponse(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I think they are all relevant."), nil).Once()

	c := NewLLMClassifier(client, "claude-haiku-4-5-20251001")
	_, err := c.ClassifyRelevant(context.Background(), []model.Candidate{{ADA: "ADA1"}})

	assert.Error(t, err)
}

func TestArbitrate_ParsesVerdict(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("```json\n{\"isDuplicate\": true, \"matchedAda\": \"ADA9\", \"confidence\": \"high\"}\n```"), nil).Once()

	c := NewLLMClassifier(client, "claude-haiku-4-5-20251001")
	v, err := c.Arbitrate(context.Background(),
		model.Investment{Name: "Hotel Resort Epsilon", Beneficiary: "Epsilon AE", TotalAmount: 5_000_000},
		[]model.Investment{{Name: "Hotel Resort Epsilon Development", Beneficiary: "Epsilon AE", TotalAmount: 4_950_000, Reference: model.Reference{DiavgeiaADA: "ADA9"}}},
	)

	require.NoError(t, err)
	assert.True(t, v.IsDuplicate)
	assert.Equal(t, "ADA9", v.MatchedADA)
	assert.Equal(t, TierHigh, v.Confidence)
}

func TestArbitrate_UnknownTierDowngradedToLow(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"isDuplicate": true, "matchedAda": "ADA9", "confidence": "certain"}`), nil).Once()

	c := NewLLMClassifier(client, "claude-haiku-4-5-20251001")
	v, err := c.Arbitrate(context.Background(), model.Investment{}, nil)

	require.NoError(t, err)
	assert.Equal(t, TierLow, v.Confidence)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON(`Here is the result: {"a":1}`))
	assert.Equal(t, `{"a":1}`, cleanJSON(`{"a":1}`))
}
