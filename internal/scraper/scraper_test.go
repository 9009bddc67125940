package scraper_test

import (
	"context"
	"testing"

	"github.com/Haasie/huizen-zoeker/internal/platform"
	"github.com/Haasie/huizen-zoeker/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAdapter struct {
	sourceID string
}

func (a *staticAdapter) SourceID() string {
	return a.sourceID
}

func (a *staticAdapter) FetchCandidates(context.Context, scraper.Hints) ([]scraper.Candidate, error) {
	return nil, nil
}

func newTestRegistry() *scraper.Registry {
	return scraper.NewRegistry(
		&staticAdapter{sourceID: "ooms"},
		&staticAdapter{sourceID: "klipenvw"},
		&staticAdapter{sourceID: "bijdevaate"},
	)
}

func TestUnitRegistryGet(t *testing.T) {
	registry := newTestRegistry()

	t.Run("registered source", func(t *testing.T) {
		adapter, err := registry.Get("ooms")

		require.NoError(t, err)
		assert.Equal(t, "ooms", adapter.SourceID())
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := registry.Get("funda")

		require.ErrorIs(t, err, platform.ErrUnknownSource)
	})
}

func TestUnitRegistryEnabled(t *testing.T) {
	registry := newTestRegistry()

	tests := map[string]struct {
		sourceIDs []string
		want      []string
		wantErr   error
	}{
		"subset in deterministic order": {
			sourceIDs: []string{"ooms", "bijdevaate"},
			want:      []string{"bijdevaate", "ooms"},
		},
		"all sources": {
			sourceIDs: []string{"klipenvw", "ooms", "bijdevaate"},
			want:      []string{"bijdevaate", "klipenvw", "ooms"},
		},
		"unknown id rejects the whole set": {
			sourceIDs: []string{"ooms", "funda"},
			wantErr:   platform.ErrUnknownSource,
		},
		"empty set": {
			sourceIDs: nil,
			want:      []string{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			adapters, err := registry.Enabled(tt.sourceIDs)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			ids := make([]string, 0, len(adapters))
			for _, adapter := range adapters {
				ids = append(ids, adapter.SourceID())
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestUnitRegistrySourceIDs(t *testing.T) {
	registry := newTestRegistry()

	assert.Equal(t, []string{"bijdevaate", "klipenvw", "ooms"}, registry.SourceIDs())
}
