package dedupe

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/christosporios/strategic-investments-gr/internal/classify"
	"github.com/christosporios/strategic-investments-gr/internal/model"
)

type mockArbiter struct {
	mock.Mock
}

func (m *mockArbiter) Arbitrate(ctx context.Context, cand model.Investment, shortlist []model.Investment) (*classify.Verdict, error) {
	args := m.Called(ctx, cand, shortlist)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classify.Verdict), args.Error(1)
}

func primaryHotel() model.Investment {
	return model.Investment{
		Name:        "Hotel Resort Epsilon Development",
		Beneficiary: "Epsilon AE",
		TotalAmount: 4_950_000,
		Reference:   model.Reference{DiavgeiaADA: "ADA9"},
	}
}

func secondaryHotel() model.Investment {
	return model.Investment{
		Name:        "Hotel Resort Epsilon",
		Beneficiary: "Epsilon AE",
		TotalAmount: 5_000_000,
		Reference:   model.Reference{URL: "https://www.enterprisegreece.gov.gr/project/epsilon"},
	}
}

func TestDedupe_DropsHighConfidenceDuplicate(t *testing.T) {
	arb := &mockArbiter{}
	arb.On("Arbitrate", mock.Anything, mock.Anything, mock.Anything).
		Return(&classify.Verdict{IsDuplicate: true, MatchedADA: "ADA9", Confidence: classify.TierHigh}, nil).Once()

	merged, exclusions := Dedupe(context.Background(), []model.Investment{primaryHotel()}, []model.Investment{secondaryHotel()}, arb)

	require.Len(t, merged, 1)
	assert.Equal(t, "ADA9", merged[0].ADA())
	assert.Equal(t, 4_950_000.0, merged[0].TotalAmount) // primary untouched
	require.Len(t, exclusions, 1)
	assert.Equal(t, "ADA9", exclusions[0].MatchedADA)
	arb.AssertExpectations(t)
}

func TestDedupe_LowConfidenceKeepsCandidate(t *testing.T) {
	arb := &mockArbiter{}
	arb.On("Arbitrate", mock.Anything, mock.Anything, mock.Anything).
		Return(&classify.Verdict{IsDuplicate: true, MatchedADA: "ADA9", Confidence: classify.TierLow}, nil).Once()

	merged, exclusions := Dedupe(context.Background(), []model.Investment{primaryHotel()}, []model.Investment{secondaryHotel()}, arb)

	assert.Len(t, merged, 2)
	assert.Empty(t, exclusions)
}

func TestDedupe_ArbitrationFailureKeepsCandidate(t *testing.T) {
	arb := &mockArbiter{}
	arb.On("Arbitrate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, eris.New("model unavailable")).Once()

	merged, exclusions := Dedupe(context.Background(), []model.Investment{primaryHotel()}, []model.Investment{secondaryHotel()}, arb)

	assert.Len(t, merged, 2)
	assert.Empty(t, exclusions)
}

func TestDedupe_EmptyShortlistSkipsArbitration(t *testing.T) {
	arb := &mockArbiter{}
	unrelated := model.Investment{
		Name:        "Αιολικό Πάρκο Βορείου Αιγαίου",
		Beneficiary: "Anemos IKE",
		TotalAmount: 120_000_000,
		Reference:   model.Reference{URL: "https://example.gr/wind"},
	}

	merged, exclusions := Dedupe(context.Background(), []model.Investment{primaryHotel()}, []model.Investment{unrelated}, arb)

	assert.Len(t, merged, 2)
	assert.Empty(t, exclusions)
	arb.AssertNotCalled(t, "Arbitrate", mock.Anything, mock.Anything, mock.Anything)
}

func TestDedupe_SecondaryWithADANeverReconsidered(t *testing.T) {
	arb := &mockArbiter{}
	withCode := secondaryHotel()
	withCode.Reference.DiavgeiaADA = "ADA5"

	merged, _ := Dedupe(context.Background(), []model.Investment{primaryHotel()}, []model.Investment{withCode}, arb)

	assert.Len(t, merged, 2)
	arb.AssertNotCalled(t, "Arbitrate", mock.Anything, mock.Anything, mock.Anything)
}

func TestDedupe_MatchedADAOutsideShortlistRejected(t *testing.T) {
	arb := &mockArbiter{}
	arb.On("Arbitrate", mock.Anything, mock.Anything, mock.Anything).
		Return(&classify.Verdict{IsDuplicate: true, MatchedADA: "ADA404", Confidence: classify.TierHigh}, nil).Once()

	merged, exclusions := Dedupe(context.Background(), []model.Investment{primaryHotel()}, []model.Investment{secondaryHotel()}, arb)

	assert.Len(t, merged, 2)
	assert.Empty(t, exclusions)
}

func TestShortlist_TitlePrefixAndAmountHeuristics(t *testing.T) {
	cand := secondaryHotel()
	primary := []model.Investment{
		primaryHotel(), // title prefix + amount delta match
		{Name: "Μονάδα Logistics", Beneficiary: "Alpha AE", TotalAmount: 5_100_000, Reference: model.Reference{DiavgeiaADA: "ADA2"}}, // amount within 20%
		{Name: "Άσχετο Έργο", Beneficiary: "Beta AE", TotalAmount: 90_000_000, Reference: model.Reference{DiavgeiaADA: "ADA3"}},     // no overlap
	}

	got := Shortlist(cand, primary)

	require.Len(t, got, 2)
	assert.Equal(t, "ADA9", got[0].ADA())
	assert.Equal(t, "ADA2", got[1].ADA())
}

func TestShortlist_CapsAtTwenty(t *testing.T) {
	cand := secondaryHotel()
	var primary []model.Investment
	for i := 0; i < 30; i++ {
		primary = append(primary, primaryHotel())
	}

	assert.Len(t, Shortlist(cand, primary), 20)
}

func TestPrefixOverlap_GreekAccentFolding(t *testing.T) {
	assert.True(t, prefixOverlap("Ξενοδοχείο Αστέρας", "ΞΕΝΟΔΟΧΕΙΟ ΑΣΤΕΡΑΣ ΑΕ"))
	assert.True(t, prefixOverlap("Hotel Resort Epsilon", "hotel resort epsilon development"))
	assert.False(t, prefixOverlap("", "anything"))
}

func TestAmountsClose(t *testing.T) {
	assert.True(t, amountsClose(5_000_000, 4_950_000))
	assert.False(t, amountsClose(5_000_000, 3_000_000))
	assert.False(t, amountsClose(0, 100))
}
