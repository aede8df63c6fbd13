package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"organcore/internal/blob"
	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
	"organcore/pkg/domain"
)

// EventDraft carries the fields of an event to create.
type EventDraft struct {
	Name         string
	Desc         string
	Date         *time.Time
	Location     *int64
	Participants []int64
	Sources      []string
}

// Events manages dated happenings and their participants.
type Events struct {
	*env
	locations *Locations
	resolver  *Resolver
	sources   *Sources
}

const eventSelect = `SELECT eid, name, date, location FROM event`

// participantKey names a participation in conflict errors.
type participantKey struct{ event, organ int64 }

func (k participantKey) String() string { return fmt.Sprintf("(event=%d, organ=%d)", k.event, k.organ) }

// Create inserts the event, its participants and sources on one connection and
// writes the description document.
func (e *Events) Create(ctx context.Context, d EventDraft) (event domain.Event, err error) {
	defer e.observe(ctx, "event.create", time.Now(), &err)
	event = domain.Event{Name: strings.TrimSpace(d.Name), Desc: d.Desc, Date: domain.DateOf(d.Date)}
	if err = e.check(event); err != nil {
		return domain.Event{}, err
	}
	if d.Location != nil {
		if event.Location, err = e.locations.resolve(ctx, *d.Location); err != nil {
			return domain.Event{}, err
		}
		if event.Location == nil {
			return domain.Event{}, domain.NotFoundError{Kind: domain.KindLocation, ID: *d.Location}
		}
	}
	err = e.db.With(ctx, func(c *relational.Conn) error {
		id, err := c.Insert(ctx, `INSERT INTO event (name, date, location) VALUES (?, ?, ?) RETURNING eid`,
			event.Name, event.Date, d.Location)
		if err != nil {
			return dangling(err, "location")
		}
		event.ID = id
		seen := make(map[int64]struct{}, len(d.Participants))
		for _, organ := range d.Participants {
			if _, dup := seen[organ]; dup {
				continue
			}
			seen[organ] = struct{}{}
			if err := e.insertParticipant(ctx, c, id, organ); err != nil {
				return err
			}
		}
		_, err = e.sources.add(ctx, c, id, d.Sources)
		return err
	})
	if err != nil {
		if event.ID != 0 {
			e.logger.Warn("event created partially", zap.Int64("id", event.ID), zap.Error(err))
			e.cache.DropAttr(event.ID)
		}
		return domain.Event{}, err
	}
	if err = e.docs.Write(ctx, blob.EventDocuments, event.ID, event.Desc); err != nil {
		return domain.Event{}, err
	}
	e.cache.Put(cache.TierEvent, event.ID, event)
	return event, nil
}

func (e *Events) insertParticipant(ctx context.Context, c *relational.Conn, event, organ int64) error {
	_, err := c.Exec(ctx, `INSERT INTO event_participant (event, organ) VALUES (?, ?)`, event, organ)
	switch {
	case relational.IsUniqueViolation(err):
		return domain.ConflictError{Kind: domain.KindEvent, Key: participantKey{event, organ}.String(), Err: err}
	case relational.IsReferenceViolation(err):
		return domain.NotFoundError{Kind: domain.KindOrgan, ID: organ}
	}
	return err
}

// Get returns the event with id.
func (e *Events) Get(ctx context.Context, id int64) (event domain.Event, found bool, err error) {
	if cached, ok := cache.Lookup[domain.Event](e.cache, cache.TierEvent, id); ok {
		event, err = e.refresh(ctx, cached)
		return event, err == nil, err
	}
	defer e.observe(ctx, "event.get", time.Now(), &err)
	events, err := e.query(ctx, `WHERE eid = ?`, id)
	if err != nil || len(events) == 0 {
		return domain.Event{}, false, err
	}
	return events[0], true, nil
}

// Find returns events whose name contains q, ordered by date then id.
func (e *Events) Find(ctx context.Context, q string) (events []domain.Event, err error) {
	defer e.observe(ctx, "event.find", time.Now(), &err)
	return e.query(ctx, `WHERE LOWER(name) LIKE ? ESCAPE '\' ORDER BY date, eid`, relational.Like(q))
}

// OnDate returns the events dated within the UTC calendar day of day.
func (e *Events) OnDate(ctx context.Context, day time.Time) (events []domain.Event, err error) {
	defer e.observe(ctx, "event.on_date", time.Now(), &err)
	start := day.UTC().Truncate(24 * time.Hour)
	return e.query(ctx, `WHERE date >= ? AND date < ? ORDER BY date, eid`, start, start.Add(24*time.Hour))
}

// ForParticipant returns the events organ takes part in.
func (e *Events) ForParticipant(ctx context.Context, organ int64) (events []domain.Event, err error) {
	defer e.observe(ctx, "event.for_participant", time.Now(), &err)
	return e.query(ctx, `WHERE eid IN (SELECT event FROM event_participant WHERE organ = ?) ORDER BY date, eid`, organ)
}

// RecentDates returns up to n distinct event dates at or before before, newest first.
func (e *Events) RecentDates(ctx context.Context, before time.Time, n int) (dates []time.Time, err error) {
	defer e.observe(ctx, "event.recent_dates", time.Now(), &err)
	if n <= 0 {
		return nil, domain.Invalid("n must be positive, got %d", n)
	}
	dates = []time.Time{}
	err = e.db.Select(ctx, `SELECT DISTINCT date FROM event WHERE date IS NOT NULL AND date <= ? ORDER BY date DESC LIMIT ?`,
		[]any{before.UTC(), n}, func(s relational.Scanner) error {
			var ts domain.Timestamp
			if err := s.Scan(&ts); err != nil {
				return err
			}
			dates = append(dates, ts.Time)
			return nil
		})
	return dates, err
}

// Update applies mutator to the event and persists name, date and location;
// the description document is rewritten when it changed. Setting Location to
// nil clears it; otherwise only the location id is read.
func (e *Events) Update(ctx context.Context, id int64, mutator func(*domain.Event) error) (event domain.Event, err error) {
	defer e.observe(ctx, "event.update", time.Now(), &err)
	current, ok, err := e.Get(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	if !ok {
		return domain.Event{}, domain.NotFoundError{Kind: domain.KindEvent, ID: id}
	}
	event = current.Clone()
	if err = mutator(&event); err != nil {
		return domain.Event{}, err
	}
	event.ID = id
	var location *int64
	if event.Location != nil {
		lid := event.Location.ID
		location = &lid
		if event.Location, err = e.locations.resolve(ctx, lid); err != nil {
			return domain.Event{}, err
		}
		if event.Location == nil {
			return domain.Event{}, domain.NotFoundError{Kind: domain.KindLocation, ID: lid}
		}
	}
	if err = e.check(event); err != nil {
		return domain.Event{}, err
	}
	n, err := e.db.Exec(ctx, `UPDATE event SET name = ?, date = ?, location = ? WHERE eid = ?`,
		event.Name, event.Date, location, id)
	if err != nil {
		return domain.Event{}, dangling(err, "location")
	}
	if n == 0 {
		e.cache.Delete(cache.TierEvent, id)
		return domain.Event{}, domain.NotFoundError{Kind: domain.KindEvent, ID: id}
	}
	if event.Desc != current.Desc {
		if err = e.docs.Write(ctx, blob.EventDocuments, id, event.Desc); err != nil {
			return domain.Event{}, err
		}
	}
	e.cache.Put(cache.TierEvent, id, event)
	return event, nil
}

// Remove deletes the event with its participants and sources.
func (e *Events) Remove(ctx context.Context, id int64) (removed bool, err error) {
	defer e.observe(ctx, "event.remove", time.Now(), &err)
	n, err := e.db.Exec(ctx, `DELETE FROM event WHERE eid = ?`, id)
	if err != nil {
		return false, err
	}
	e.cache.Delete(cache.TierEvent, id)
	e.cache.DropAttr(id, cache.AttrEventParticipants, cache.AttrEventSources)
	if n == 0 {
		return false, nil
	}
	if err := e.docs.Remove(ctx, blob.EventDocuments, id); err != nil {
		e.logger.Warn("description not removed", zap.Int64("id", id), zap.Error(err))
	}
	return true, nil
}

// Participants returns the organs taking part in the event, ordered by id.
func (e *Events) Participants(ctx context.Context, id int64) (organs []domain.Organ, err error) {
	ids, ok := cache.LookupAttr[[]int64](e.cache, cache.AttrEventParticipants, id)
	if !ok {
		defer e.observe(ctx, "event.participants", time.Now(), &err)
		ids = []int64{}
		err = e.db.Select(ctx, `SELECT organ FROM event_participant WHERE event = ? ORDER BY organ`, []any{id},
			func(s relational.Scanner) error {
				var organ int64
				if err := s.Scan(&organ); err != nil {
					return err
				}
				ids = append(ids, organ)
				return nil
			})
		if err != nil {
			return nil, err
		}
		e.cache.PutAttr(cache.AttrEventParticipants, id, ids)
	}
	organs = make([]domain.Organ, 0, len(ids))
	for _, organID := range ids {
		organ, ok, err := e.resolver.Resolve(ctx, organID)
		if err != nil {
			return nil, err
		}
		if ok {
			organs = append(organs, organ)
		}
	}
	return organs, nil
}

// AddParticipant adds organ to the event. Adding an existing participant is a
// conflict.
func (e *Events) AddParticipant(ctx context.Context, id, organ int64) (err error) {
	defer e.observe(ctx, "event.add_participant", time.Now(), &err)
	if _, ok, err := e.Get(ctx, id); err != nil || !ok {
		if err == nil {
			err = domain.NotFoundError{Kind: domain.KindEvent, ID: id}
		}
		return err
	}
	err = e.db.With(ctx, func(c *relational.Conn) error {
		return e.insertParticipant(ctx, c, id, organ)
	})
	e.cache.DropAttr(id, cache.AttrEventParticipants)
	return err
}

// RemoveParticipant removes organ from the event and reports whether it took part.
func (e *Events) RemoveParticipant(ctx context.Context, id, organ int64) (removed bool, err error) {
	defer e.observe(ctx, "event.remove_participant", time.Now(), &err)
	n, err := e.db.Exec(ctx, `DELETE FROM event_participant WHERE event = ? AND organ = ?`, id, organ)
	if err != nil {
		return false, err
	}
	e.cache.DropAttr(id, cache.AttrEventParticipants)
	return n > 0, nil
}

// Sources returns the citation component for events.
func (e *Events) Sources() *Sources { return e.sources }

func (e *Events) query(ctx context.Context, where string, args ...any) ([]domain.Event, error) {
	type row struct {
		event    domain.Event
		location sql.NullInt64
	}
	var rows []row
	err := e.db.Select(ctx, eventSelect+` `+where, args, func(s relational.Scanner) error {
		var r row
		if err := s.Scan(&r.event.ID, &r.event.Name, &r.event.Date, &r.location); err != nil {
			return err
		}
		if r.location.Valid {
			r.event.Location = &domain.Location{ID: r.location.Int64}
		}
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		if cached, ok := cache.Lookup[domain.Event](e.cache, cache.TierEvent, r.event.ID); ok {
			r.event = cached
		} else {
			if r.event.Desc, err = e.docs.Read(ctx, blob.EventDocuments, r.event.ID); err != nil {
				return nil, err
			}
			e.cache.Put(cache.TierEvent, r.event.ID, r.event)
		}
		event, err := e.refresh(ctx, r.event)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// refresh re-reads the event location through the location tier.
func (e *Events) refresh(ctx context.Context, event domain.Event) (domain.Event, error) {
	if event.Location == nil {
		return event, nil
	}
	loc, err := e.locations.resolve(ctx, event.Location.ID)
	if err != nil {
		return domain.Event{}, err
	}
	event.Location = loc
	return event, nil
}
