package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organcore/pkg/domain"
)

func TestNewServiceRequiresStores(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}

func TestPersonLifecycle(t *testing.T) {
	ctx := context.Background()
	metrics := &recordingMetrics{}
	svc := newTestService(t, WithMetrics(metrics))

	ada, err := svc.People.Create(ctx, PersonDraft{
		FirstName: " Ada ",
		LastName:  "Lovelace",
		BirthDate: ptr(day(1815, 12, 10)),
		Bio:       "Analyst of the engine.",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ada.ID)
	assert.Equal(t, "Ada", ada.FirstName)
	assert.Equal(t, []bool{true}, metrics.outcomes("person.create"))

	got, ok, err := svc.People.Get(ctx, ada.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ada, got, "get returns what create returned")

	svc.Cache().Purge()
	fresh, ok, err := svc.People.Get(ctx, ada.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Analyst of the engine.", fresh.Bio)
	assert.True(t, fresh.BirthDate.Equal(ada.BirthDate))
	assert.True(t, fresh.DeathDate.IsZero())

	updated, err := svc.People.Update(ctx, ada.ID, func(p *domain.Person) error {
		p.DeathDate = domain.At(day(1852, 11, 27))
		p.BirthDate = domain.Cleared()
		p.Bio = "Wrote the first program."
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.DeathDate.IsSet())

	raw, err := json.Marshal(updated.Representation())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"birthdate":null`)
	assert.Contains(t, string(raw), `"deathdate":"1852-11-27T00:00:00.000Z"`)

	svc.Cache().Purge()
	fresh, _, err = svc.People.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wrote the first program.", fresh.Bio)
	assert.False(t, fresh.BirthDate.IsSet())

	removed, err := svc.People.Remove(ctx, ada.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.People.Remove(ctx, ada.ID)
	require.NoError(t, err)
	assert.False(t, removed, "second remove is a no-op")

	_, ok, err = svc.People.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersonValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.People.Create(ctx, PersonDraft{FirstName: "Ada"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "lastname is required")

	_, err = svc.People.Update(ctx, 99, func(*domain.Person) error { return nil })
	assert.True(t, domain.IsNotFound(err))

	ada := mustPerson(t, svc, "Ada", "Lovelace")
	_, err = svc.People.Update(ctx, ada.ID, func(p *domain.Person) error {
		p.FirstName = ""
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	got, _, err := svc.People.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName, "rejected update leaves the cache untouched")
}

func TestPersonFind(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	ada := mustPerson(t, svc, "Ada", "Lovelace")
	mustPerson(t, svc, "Charles", "Babbage")
	mustOrganization(t, svc, "Ada Society")

	for _, q := range []string{"ada", "LOVELACE", "ada love", "lovelace ada"} {
		found, err := svc.People.Find(ctx, q)
		require.NoError(t, err, q)
		require.Len(t, found, 1, q)
		assert.Equal(t, ada.ID, found[0].ID, q)
	}

	found, err := svc.People.Find(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, found, "wildcards are matched literally")
}

func TestPersonIDIsNotAnOrganization(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	ada := mustPerson(t, svc, "Ada", "Lovelace")

	_, ok, err := svc.Organizations.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := svc.Organizations.Remove(ctx, ada.ID)
	require.NoError(t, err)
	assert.False(t, removed, "organization remove ignores person ids")
	_, ok, err = svc.People.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
