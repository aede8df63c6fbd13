package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organcore/pkg/domain"
)

func TestResolveEveryKind(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	ada := mustPerson(t, svc, "Ada", "Lovelace")
	rs := mustOrganization(t, svc, "Royal Society")
	fr, err := svc.Nations.Create(ctx, NationDraft{OrganizationDraft: OrganizationDraft{Name: "France"}})
	require.NoError(t, err)
	co, err := svc.Businesses.Create(ctx, OrganizationDraft{Name: "Babbage & Co"})
	require.NoError(t, err)

	want := map[int64]domain.Kind{
		ada.ID: domain.KindPerson,
		rs.ID:  domain.KindOrganization,
		fr.ID:  domain.KindNation,
		co.ID:  domain.KindBusiness,
	}
	for _, cached := range []bool{true, false} {
		if !cached {
			svc.Cache().Purge()
		}
		for id, kind := range want {
			organ, ok, err := svc.Resolver.Resolve(ctx, id)
			require.NoError(t, err)
			require.True(t, ok, "id %d", id)
			assert.Equal(t, kind, organ.Kind(), "id %d cached=%v", id, cached)
			assert.Equal(t, id, organ.OrganID())
		}
	}

	_, ok, err := svc.Resolver.Resolve(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = svc.Resolver.MustResolve(ctx, 999)
	assert.True(t, domain.IsNotFound(err))
}

func TestRepresentationIsSupersetOfOrgan(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	ada := mustPerson(t, svc, "Ada", "Lovelace")
	rs := mustOrganization(t, svc, "Royal Society")

	for _, id := range []int64{ada.ID, rs.ID} {
		organ, err := svc.Resolver.MustResolve(ctx, id)
		require.NoError(t, err)
		raw, err := json.Marshal(organ.Representation())
		require.NoError(t, err)
		var fields map[string]any
		require.NoError(t, json.Unmarshal(raw, &fields))
		assert.Contains(t, fields, "id")
		assert.Contains(t, fields, "bio")
	}
}

func TestSearchMergesPeopleAndOrganizations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	ada := mustPerson(t, svc, "Ada", "Lovelace")
	mustPerson(t, svc, "Charles", "Babbage")
	soc := mustOrganization(t, svc, "Ada Lovelace Society")

	organs, err := svc.Resolver.Search(ctx, "lovelace")
	require.NoError(t, err)
	require.Len(t, organs, 2)
	assert.Equal(t, ada.ID, organs[0].OrganID())
	assert.Equal(t, soc.ID, organs[1].OrganID())
}

func TestResolveUsesCacheFirst(t *testing.T) {
	ctx := context.Background()
	metrics := &recordingMetrics{}
	svc := newTestService(t, WithMetrics(metrics))
	ada := mustPerson(t, svc, "Ada", "Lovelace")

	_, ok, err := svc.Resolver.Resolve(ctx, ada.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, metrics.outcomes("organ.resolve"), "served from the organ tier")

	svc.Cache().Purge()
	_, ok, err = svc.Resolver.Resolve(ctx, ada.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []bool{true}, metrics.outcomes("organ.resolve"))
}
