package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/christosporios/strategic-investments-gr/internal/model"
)

func TestIdentify_PrefersADA(t *testing.T) {
	inv := &model.Investment{
		Name:      "Resort",
		Reference: model.Reference{DiavgeiaADA: "ΨΞ4Τ46ΜΤΛΡ-ΑΒΓ", URL: "https://example.gr/a"},
	}

	id := Identify(inv)

	assert.Equal(t, KindCode, id.Kind)
	assert.Equal(t, "ΨΞ4Τ46ΜΤΛΡ-ΑΒΓ", id.Value)
	assert.False(t, id.Weak())
}

func TestIdentify_FallsBackToURL(t *testing.T) {
	inv := &model.Investment{
		Name:      "Resort",
		Reference: model.Reference{URL: "https://www.enterprisegreece.gov.gr/project/42"},
	}

	id := Identify(inv)

	assert.Equal(t, KindURL, id.Kind)
	assert.Len(t, id.Value, 64)
	assert.False(t, id.Weak())
}

func TestIdentify_ContentHashLastResort(t *testing.T) {
	inv := &model.Investment{Name: "Resort", Beneficiary: "Epsilon AE", TotalAmount: 5_000_000}

	id := Identify(inv)

	assert.Equal(t, KindHash, id.Kind)
	assert.True(t, id.Weak())
}

func TestIdentify_Deterministic(t *testing.T) {
	inv := &model.Investment{Name: "Resort", Beneficiary: "Epsilon AE", TotalAmount: 5_000_000.5}

	assert.Equal(t, Identify(inv), Identify(inv))

	// Same content on a distinct value must yield the same hash.
	clone := *inv
	assert.Equal(t, Identify(inv), Identify(&clone))
}

func TestIdentify_DistinctContentDistinctHash(t *testing.T) {
	a := &model.Investment{Name: "Resort", Beneficiary: "Epsilon AE", TotalAmount: 5_000_000}
	b := &model.Investment{Name: "Resort", Beneficiary: "Epsilon AE", TotalAmount: 4_950_000}

	assert.NotEqual(t, Identify(a), Identify(b))
}

func TestIdentify_TrimsWhitespace(t *testing.T) {
	inv := &model.Investment{Reference: model.Reference{DiavgeiaADA: "  ΨΞ4Τ46ΜΤΛΡ-ΑΒΓ "}}

	id := Identify(inv)

	assert.Equal(t, "ΨΞ4Τ46ΜΤΛΡ-ΑΒΓ", id.Value)
}
