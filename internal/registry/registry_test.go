package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlabs/momenta/models"
)

func testUniverse() []models.Instrument {
	return []models.Instrument{
		{ID: "wbtc", Symbol: "WBTC", DisplayName: "Wrapped Bitcoin", Category: models.CategoryWrappedBTC},
		{ID: "paxg", Symbol: "PAXG", DisplayName: "Pax Gold", Category: models.CategoryGoldToken},
		{ID: "aaplx", Symbol: "AAPLX", DisplayName: "Apple xStock", Category: models.CategoryTokenizedStock},
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := New(testUniverse())

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"by id", "wbtc", "wbtc"},
		{"by id uppercase", "WBTC", "wbtc"},
		{"by symbol", "PAXG", "paxg"},
		{"by symbol lowercase", "aaplx", "aaplx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := r.Get(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, inst.ID)
		})
	}
}

func TestRegistry_MixedCaseConfiguredID(t *testing.T) {
	r := New([]models.Instrument{
		{ID: "WbTc", Symbol: "WBTC", DisplayName: "Wrapped Bitcoin", Category: models.CategoryWrappedBTC},
	})

	for _, query := range []string{"WbTc", "wbtc", "WBTC"} {
		inst, err := r.Get(query)
		require.NoError(t, err, "query %q", query)
		assert.Equal(t, "WbTc", inst.ID)
	}
}

func TestRegistry_NotFound(t *testing.T) {
	r := New(testUniverse())

	_, err := r.Get("doge")
	var notFound *models.InstrumentNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "doge", notFound.Query)
}

func TestRegistry_ByCategory(t *testing.T) {
	r := New(testUniverse())

	gold := r.ByCategory(models.CategoryGoldToken)
	require.Len(t, gold, 1)
	assert.Equal(t, "paxg", gold[0].ID)

	assert.Len(t, r.All(), 3)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_AllOrderedByID(t *testing.T) {
	r := New(testUniverse())
	all := r.All()
	assert.Equal(t, []string{"aaplx", "paxg", "wbtc"}, []string{all[0].ID, all[1].ID, all[2].ID})
}
