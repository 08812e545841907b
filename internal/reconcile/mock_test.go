package reconcile

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/christosporios/strategic-investments-gr/internal/classify"
	"github.com/christosporios/strategic-investments-gr/internal/model"
)

type mockPrimarySource struct {
	mock.Mock
}

func (m *mockPrimarySource) Search(ctx context.Context, r model.DateRange) ([]model.Candidate, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Candidate), args.Error(1)
}

type mockSecondarySource struct {
	mock.Mock
}

func (m *mockSecondarySource) Fetch(ctx context.Context) ([]model.Candidate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Candidate), args.Error(1)
}

type mockRevisionDetector struct {
	mock.Mock
}

func (m *mockRevisionDetector) Detect(ctx context.Context, cand model.Candidate) model.RevisionResult {
	args := m.Called(ctx, cand)
	return args.Get(0).(model.RevisionResult)
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) ClassifyRelevant(ctx context.Context, cands []model.Candidate) ([]string, error) {
	args := m.Called(ctx, cands)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockClassifier) Arbitrate(ctx context.Context, cand model.Investment, shortlist []model.Investment) (*classify.Verdict, error) {
	args := m.Called(ctx, cand, shortlist)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classify.Verdict), args.Error(1)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, cand model.Candidate) (*model.Investment, error) {
	args := m.Called(ctx, cand)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Investment), args.Error(1)
}

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, text string) (float64, float64, bool, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(float64), args.Get(1).(float64), args.Bool(2), args.Error(3)
}
