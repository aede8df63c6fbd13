package core

import (
	"context"
	"strings"
	"time"

	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
	"organcore/pkg/domain"
)

// LocationDraft carries the fields of a location to create.
type LocationDraft struct {
	Name string
	Lat  *float64
	Lng  *float64
}

// Locations manages named geographic points.
type Locations struct {
	*env
}

// Create inserts a location.
func (l *Locations) Create(ctx context.Context, d LocationDraft) (loc domain.Location, err error) {
	defer l.observe(ctx, "location.create", time.Now(), &err)
	loc = domain.Location{Name: strings.TrimSpace(d.Name), Lat: d.Lat, Lng: d.Lng}
	if err = l.check(loc); err != nil {
		return domain.Location{}, err
	}
	loc.ID, err = l.db.Insert(ctx, `INSERT INTO location (name, lat, lng) VALUES (?, ?, ?) RETURNING lid`,
		loc.Name, loc.Lat, loc.Lng)
	if err != nil {
		return domain.Location{}, err
	}
	l.cache.Put(cache.TierLocation, loc.ID, loc)
	return loc, nil
}

// Get returns the location with id.
func (l *Locations) Get(ctx context.Context, id int64) (loc domain.Location, found bool, err error) {
	if loc, ok := cache.Lookup[domain.Location](l.cache, cache.TierLocation, id); ok {
		return loc, true, nil
	}
	defer l.observe(ctx, "location.get", time.Now(), &err)
	var rows []domain.Location
	if err = l.db.Select(ctx, `SELECT lid, name, lat, lng FROM location WHERE lid = ?`, []any{id}, collectLocation(&rows)); err != nil {
		return domain.Location{}, false, err
	}
	if len(rows) == 0 {
		return domain.Location{}, false, nil
	}
	l.cache.Put(cache.TierLocation, id, rows[0])
	return rows[0], true, nil
}

// Find returns locations whose name contains q, case-insensitively.
func (l *Locations) Find(ctx context.Context, q string) (locs []domain.Location, err error) {
	defer l.observe(ctx, "location.find", time.Now(), &err)
	err = l.db.Select(ctx, `SELECT lid, name, lat, lng FROM location WHERE LOWER(name) LIKE ? ESCAPE '\' ORDER BY lid`,
		[]any{relational.Like(q)}, collectLocation(&locs))
	for _, loc := range locs {
		l.cache.Put(cache.TierLocation, loc.ID, loc)
	}
	return locs, err
}

// Update applies mutator and persists name and coordinates.
func (l *Locations) Update(ctx context.Context, id int64, mutator func(*domain.Location) error) (loc domain.Location, err error) {
	defer l.observe(ctx, "location.update", time.Now(), &err)
	loc, ok, err := l.Get(ctx, id)
	if err != nil {
		return domain.Location{}, err
	}
	if !ok {
		return domain.Location{}, domain.NotFoundError{Kind: domain.KindLocation, ID: id}
	}
	loc = loc.Clone()
	if err = mutator(&loc); err != nil {
		return domain.Location{}, err
	}
	loc.ID = id
	loc.Name = strings.TrimSpace(loc.Name)
	if err = l.check(loc); err != nil {
		return domain.Location{}, err
	}
	n, err := l.db.Exec(ctx, `UPDATE location SET name = ?, lat = ?, lng = ? WHERE lid = ?`, loc.Name, loc.Lat, loc.Lng, id)
	if err != nil {
		return domain.Location{}, err
	}
	if n == 0 {
		l.cache.Delete(cache.TierLocation, id)
		return domain.Location{}, domain.NotFoundError{Kind: domain.KindLocation, ID: id}
	}
	l.cache.Put(cache.TierLocation, id, loc)
	return loc, nil
}

// Remove deletes the location. Nations and events referring to it lose the
// reference.
func (l *Locations) Remove(ctx context.Context, id int64) (removed bool, err error) {
	defer l.observe(ctx, "location.remove", time.Now(), &err)
	n, err := l.db.Exec(ctx, `DELETE FROM location WHERE lid = ?`, id)
	if err != nil {
		return false, err
	}
	l.cache.Delete(cache.TierLocation, id)
	return n > 0, nil
}

// resolve returns a pointer to the location with id, or nil when it is gone.
func (l *Locations) resolve(ctx context.Context, id int64) (*domain.Location, error) {
	loc, ok, err := l.Get(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return &loc, nil
}

func collectLocation(out *[]domain.Location) func(relational.Scanner) error {
	return func(s relational.Scanner) error {
		var loc domain.Location
		if err := s.Scan(&loc.ID, &loc.Name, &loc.Lat, &loc.Lng); err != nil {
			return err
		}
		*out = append(*out, loc)
		return nil
	}
}
