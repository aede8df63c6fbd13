package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organcore/pkg/domain"
)

func TestEventLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	ada := mustPerson(t, svc, "Ada", "Lovelace")
	charles := mustPerson(t, svc, "Charles", "Babbage")
	london, err := svc.Locations.Create(ctx, LocationDraft{Name: "London"})
	require.NoError(t, err)

	ev, err := svc.Events.Create(ctx, EventDraft{
		Name:         "First meeting",
		Desc:         "Met at a party.",
		Date:         ptr(time.Date(1833, 6, 5, 20, 0, 0, 0, time.UTC)),
		Location:     &london.ID,
		Participants: []int64{ada.ID, charles.ID, ada.ID},
		Sources:      []string{"https://example.org/meeting"},
	})
	require.NoError(t, err)
	require.NotNil(t, ev.Location)

	svc.Cache().Purge()
	got, ok, err := svc.Events.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Met at a party.", got.Desc)
	assert.Equal(t, "London", got.Location.Name)
	assert.True(t, got.Date.Equal(ev.Date))

	participants, err := svc.Events.Participants(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, ada.ID, participants[0].OrganID())

	err = svc.Events.AddParticipant(ctx, ev.ID, ada.ID)
	assert.True(t, domain.IsConflict(err))
	err = svc.Events.AddParticipant(ctx, ev.ID, 404)
	assert.True(t, domain.IsNotFound(err))
	err = svc.Events.AddParticipant(ctx, 404, ada.ID)
	assert.True(t, domain.IsNotFound(err))

	removed, err := svc.Events.RemoveParticipant(ctx, ev.ID, charles.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	participants, err = svc.Events.Participants(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)

	byAda, err := svc.Events.ForParticipant(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, byAda, 1)
	byCharles, err := svc.Events.ForParticipant(ctx, charles.ID)
	require.NoError(t, err)
	assert.Empty(t, byCharles)

	updated, err := svc.Events.Update(ctx, ev.ID, func(e *domain.Event) error {
		e.Desc = "Met at Babbage's soirée."
		e.Location = nil
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Location)
	svc.Cache().Purge()
	got, _, err = svc.Events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Met at Babbage's soirée.", got.Desc)
	assert.Nil(t, got.Location)

	removed, err = svc.Events.Remove(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.Events.Remove(ctx, ev.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestEventDateQueries(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	create := func(name string, at *time.Time) {
		t.Helper()
		_, err := svc.Events.Create(ctx, EventDraft{Name: name, Date: at})
		require.NoError(t, err)
	}
	create("Morning lecture", ptr(time.Date(1843, 9, 1, 9, 0, 0, 0, time.UTC)))
	create("Evening dinner", ptr(time.Date(1843, 9, 1, 19, 30, 0, 0, time.UTC)))
	create("Notes published", ptr(day(1843, 10, 1)))
	create("Undated", nil)
	create("Engine demo", ptr(day(1843, 12, 24)))

	onDay, err := svc.Events.OnDate(ctx, day(1843, 9, 1))
	require.NoError(t, err)
	require.Len(t, onDay, 2)
	assert.Equal(t, "Morning lecture", onDay[0].Name)
	assert.Equal(t, "Evening dinner", onDay[1].Name)

	dates, err := svc.Events.RecentDates(ctx, day(1843, 11, 1), 2)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].Equal(day(1843, 10, 1)))
	assert.True(t, dates[1].Equal(time.Date(1843, 9, 1, 19, 30, 0, 0, time.UTC)))

	_, err = svc.Events.RecentDates(ctx, day(1843, 11, 1), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	found, err := svc.Events.Find(ctx, "DINNER")
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = svc.Events.Create(ctx, EventDraft{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestOrganSourcesAndSocials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	ada := mustPerson(t, svc, "Ada", "Lovelace")

	src, err := svc.OrganSources.Add(ctx, ada.ID, " https://example.org/ada ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/ada", src.URL)

	_, err = svc.OrganSources.Add(ctx, ada.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.OrganSources.Add(ctx, 404, "https://example.org/ghost")
	assert.True(t, domain.IsNotFound(err))

	updated, err := svc.OrganSources.Update(ctx, ada.ID, src.ID, "https://example.org/ada-lovelace")
	require.NoError(t, err)
	got, ok, err := svc.OrganSources.Get(ctx, ada.ID, src.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, updated, got)

	_, err = svc.OrganSources.Update(ctx, ada.ID, 404, "https://example.org/x")
	assert.True(t, domain.IsNotFound(err))

	handle, err := svc.Socials.Add(ctx, ada.ID, domain.PlatformWebsite, "https://ada.example")
	require.NoError(t, err)
	_, err = svc.Socials.Add(ctx, ada.ID, domain.Platform(99), "https://x.example")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	list, err := svc.Socials.List(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Socials{handle}, list)

	handle, err = svc.Socials.Update(ctx, ada.ID, handle.ID, domain.PlatformEmail, "mailto:ada@example.org")
	require.NoError(t, err)
	list, err = svc.Socials.List(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "email", list[0].Platform.String())

	removed, err := svc.Socials.Remove(ctx, ada.ID, handle.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.OrganSources.Remove(ctx, ada.ID, src.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	sources, err := svc.OrganSources.List(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestCachedListsAreCopies(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	ada := mustPerson(t, svc, "Ada", "Lovelace")
	_, err := svc.OrganSources.Add(ctx, ada.ID, "https://example.org/a")
	require.NoError(t, err)

	first, err := svc.OrganSources.List(ctx, ada.ID)
	require.NoError(t, err)
	first[0].URL = "mutated"
	second, err := svc.OrganSources.List(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/a", second[0].URL)
}

func TestFailedEventUpdateLeavesLocationIntact(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	london, err := svc.Locations.Create(ctx, LocationDraft{Name: "London", Lat: ptr(51.51)})
	require.NoError(t, err)
	ev, err := svc.Events.Create(ctx, EventDraft{Name: "Exhibition", Location: &london.ID})
	require.NoError(t, err)

	_, err = svc.Events.Update(ctx, ev.ID, func(e *domain.Event) error {
		e.Location.Name = "Paris"
		*e.Location.Lat = 0
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	got, ok, err := svc.Events.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.Location)
	assert.Equal(t, "London", got.Location.Name)
	assert.InDelta(t, 51.51, *got.Location.Lat, 1e-9)
}
