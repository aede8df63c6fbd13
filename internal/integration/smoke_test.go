package integration

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"organcore/internal/blob"
	"organcore/internal/cache"
	"organcore/internal/core"
	"organcore/internal/infra/persistence/relational"
	reltest "organcore/internal/infra/persistence/relational/testutil"
	"organcore/internal/observability"
	"organcore/pkg/domain"
)

// TestIntegrationSmoke runs a write/read cycle through the fully wired
// service for each in-process document backend.
func TestIntegrationSmoke(t *testing.T) {
	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{
			name: "memory-blob",
			open: func(*testing.T) blob.Store { return blob.NewMemory() },
		},
		{
			name: "filesystem-blob",
			open: func(t *testing.T) blob.Store {
				fs, err := blob.NewFilesystem(t.TempDir())
				require.NoError(t, err)
				return fs
			},
		},
	}

	for _, bv := range blobVariants {
		t.Run(bv.name, func(t *testing.T) {
			ctx := context.Background()
			collector := observability.NewCollector()
			identity, err := cache.New(cache.WithObserver(collector))
			require.NoError(t, err)
			db := reltest.OpenSQLite(t, relational.Options{})
			store := bv.open(t)
			svc, err := core.NewService(db, blob.NewDocuments(store),
				core.WithLogger(zaptest.NewLogger(t)),
				core.WithMetrics(collector),
				core.WithCache(identity),
			)
			require.NoError(t, err)

			ada, err := svc.People.Create(ctx, core.PersonDraft{FirstName: "Ada", LastName: "Lovelace", Bio: "Wrote the first program."})
			require.NoError(t, err)
			london, err := svc.Locations.Create(ctx, core.LocationDraft{Name: "London"})
			require.NoError(t, err)
			uk, err := svc.Nations.Create(ctx, core.NationDraft{
				OrganizationDraft: core.OrganizationDraft{Name: "United Kingdom"},
				Capital:           &london.ID,
			})
			require.NoError(t, err)
			citizen, err := svc.Roles.Create(ctx, "Citizen")
			require.NoError(t, err)
			_, err = svc.Memberships.Create(ctx, core.MembershipDraft{
				Organ: ada.ID, Organization: uk.ID, Role: citizen.ID,
				Since: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
			})
			require.NoError(t, err)
			ev, err := svc.Events.Create(ctx, core.EventDraft{
				Name:         "Notes published",
				Desc:         "Translation of Menabrea's memoir with notes.",
				Participants: []int64{ada.ID},
			})
			require.NoError(t, err)

			keys, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, keys, 3, "two biographies and one event description")

			svc.Cache().Purge()
			organ, err := svc.Resolver.MustResolve(ctx, ada.ID)
			require.NoError(t, err)
			assert.Equal(t, "Wrote the first program.", organ.Biography())

			organ, err = svc.Resolver.MustResolve(ctx, uk.ID)
			require.NoError(t, err)
			nation, ok := organ.(domain.Nation)
			require.True(t, ok, "got %T", organ)
			require.NotNil(t, nation.Capital)
			assert.Equal(t, "London", nation.Capital.Name)

			held, err := svc.Memberships.ForOrgan(ctx, ada.ID)
			require.NoError(t, err)
			require.Len(t, held, 1)
			assert.Equal(t, domain.KindNation, held[0].Organization.Kind())

			got, found, err := svc.Events.Get(ctx, ev.ID)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "Translation of Menabrea's memoir with notes.", got.Desc)

			removed, err := svc.People.Remove(ctx, ada.ID)
			require.NoError(t, err)
			assert.True(t, removed)
			keys, err = store.List(ctx, blob.OrganDocuments)
			require.NoError(t, err)
			require.Len(t, keys, 1, "biography removed with the person")
			assert.Equal(t, blob.DocumentKey(blob.OrganDocuments, uk.ID), keys[0].Key)

			for _, name := range []string{"organcore_operations_total", "organcore_cache_misses_total", "organcore_cache_hits_total"} {
				series, err := testutil.GatherAndCount(collector.Registry(), name)
				require.NoError(t, err)
				assert.Positive(t, series, name)
			}
		})
	}
}
