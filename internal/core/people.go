package core

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"organcore/internal/blob"
	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
	"organcore/pkg/domain"
)

// PersonDraft carries the fields of a person to create.
type PersonDraft struct {
	FirstName string
	LastName  string
	BirthDate *time.Time
	DeathDate *time.Time
	Bio       string
}

// People manages natural persons.
type People struct {
	*env
}

const personColumns = `pid, firstname, lastname, birthdate, deathdate`

// Create inserts the organ and person rows on one connection, then writes the
// biography document.
func (p *People) Create(ctx context.Context, d PersonDraft) (person domain.Person, err error) {
	defer p.observe(ctx, "person.create", time.Now(), &err)
	person = domain.Person{
		OrganBase: domain.OrganBase{Bio: d.Bio},
		FirstName: strings.TrimSpace(d.FirstName),
		LastName:  strings.TrimSpace(d.LastName),
		BirthDate: domain.DateOf(d.BirthDate),
		DeathDate: domain.DateOf(d.DeathDate),
	}
	if err = p.check(person); err != nil {
		return domain.Person{}, err
	}
	err = p.db.With(ctx, func(c *relational.Conn) error {
		id, err := c.Insert(ctx, `INSERT INTO organ DEFAULT VALUES RETURNING oid`)
		if err != nil {
			return err
		}
		person.ID = id
		_, err = c.Exec(ctx, `INSERT INTO person (`+personColumns+`) VALUES (?, ?, ?, ?, ?)`,
			id, person.FirstName, person.LastName, person.BirthDate, person.DeathDate)
		return err
	})
	if err != nil {
		return domain.Person{}, err
	}
	if err = p.docs.Write(ctx, blob.OrganDocuments, person.ID, person.Bio); err != nil {
		return domain.Person{}, err
	}
	p.cache.Put(cache.TierOrgan, person.ID, person)
	p.logger.Debug("person created", zap.Int64("id", person.ID))
	return person, nil
}

// Get returns the person with id. It reports false when no person claims the
// id, including when the id belongs to another organ kind.
func (p *People) Get(ctx context.Context, id int64) (person domain.Person, found bool, err error) {
	if v, ok := p.cache.Get(cache.TierOrgan, id); ok {
		person, found = v.(domain.Person)
		return person, found, nil
	}
	defer p.observe(ctx, "person.get", time.Now(), &err)
	var rows []personRow
	err = p.db.Select(ctx, `SELECT `+personColumns+` FROM person WHERE pid = ?`, []any{id}, collectPerson(&rows))
	if err != nil || len(rows) == 0 {
		return domain.Person{}, false, err
	}
	person, err = p.hydrate(ctx, rows[0])
	return person, err == nil, err
}

// Find returns persons whose "first last" or "last first" name contains q,
// case-insensitively, ordered by id.
func (p *People) Find(ctx context.Context, q string) (people []domain.Person, err error) {
	defer p.observe(ctx, "person.find", time.Now(), &err)
	pattern := relational.Like(q)
	var rows []personRow
	err = p.db.Select(ctx, `SELECT `+personColumns+` FROM person
		WHERE LOWER(firstname || ' ' || lastname) LIKE ? ESCAPE '\'
		   OR LOWER(lastname || ' ' || firstname) LIKE ? ESCAPE '\'
		ORDER BY pid`, []any{pattern, pattern}, collectPerson(&rows))
	if err != nil {
		return nil, err
	}
	people = make([]domain.Person, 0, len(rows))
	for _, r := range rows {
		person, err := p.hydrate(ctx, r)
		if err != nil {
			return nil, err
		}
		people = append(people, person)
	}
	return people, nil
}

// Update applies mutator to the current person and persists every mutable
// field. The id cannot change.
func (p *People) Update(ctx context.Context, id int64, mutator func(*domain.Person) error) (person domain.Person, err error) {
	defer p.observe(ctx, "person.update", time.Now(), &err)
	current, ok, err := p.Get(ctx, id)
	if err != nil {
		return domain.Person{}, err
	}
	if !ok {
		return domain.Person{}, domain.NotFoundError{Kind: domain.KindPerson, ID: id}
	}
	person = current
	if err = mutator(&person); err != nil {
		return domain.Person{}, err
	}
	person.ID = id
	person.FirstName = strings.TrimSpace(person.FirstName)
	person.LastName = strings.TrimSpace(person.LastName)
	if err = p.check(person); err != nil {
		return domain.Person{}, err
	}
	n, err := p.db.Exec(ctx, `UPDATE person SET firstname = ?, lastname = ?, birthdate = ?, deathdate = ? WHERE pid = ?`,
		person.FirstName, person.LastName, person.BirthDate, person.DeathDate, id)
	if err != nil {
		return domain.Person{}, err
	}
	if n == 0 {
		p.forgetOrgan(id)
		return domain.Person{}, domain.NotFoundError{Kind: domain.KindPerson, ID: id}
	}
	if person.Bio != current.Bio {
		if err = p.docs.Write(ctx, blob.OrganDocuments, id, person.Bio); err != nil {
			return domain.Person{}, err
		}
	}
	p.cache.Put(cache.TierOrgan, id, person)
	return person, nil
}

// Remove deletes the person together with memberships, relations, sources,
// socials and event participations. It reports false when nothing was removed.
func (p *People) Remove(ctx context.Context, id int64) (removed bool, err error) {
	defer p.observe(ctx, "person.remove", time.Now(), &err)
	removed, err = removeOrganRow(ctx, p.db, "person", "pid", id)
	if err != nil || !removed {
		return false, err
	}
	p.forgetOrgan(id)
	if err = p.docs.Remove(ctx, blob.OrganDocuments, id); err != nil {
		p.logger.Warn("biography not removed", zap.Int64("id", id), zap.Error(err))
	}
	return true, nil
}

type personRow struct {
	id          int64
	first, last string
	birth       domain.Date
	death       domain.Date
}

func collectPerson(out *[]personRow) func(relational.Scanner) error {
	return func(s relational.Scanner) error {
		var r personRow
		if err := s.Scan(&r.id, &r.first, &r.last, &r.birth, &r.death); err != nil {
			return err
		}
		*out = append(*out, r)
		return nil
	}
}

// hydrate prefers the cached instance so identity stays stable across reads.
func (p *People) hydrate(ctx context.Context, r personRow) (domain.Person, error) {
	if person, ok := cache.Lookup[domain.Person](p.cache, cache.TierOrgan, r.id); ok {
		return person, nil
	}
	bio, err := p.docs.Read(ctx, blob.OrganDocuments, r.id)
	if err != nil {
		return domain.Person{}, err
	}
	person := domain.Person{
		OrganBase: domain.OrganBase{ID: r.id, Bio: bio},
		FirstName: r.first,
		LastName:  r.last,
		BirthDate: r.birth,
		DeathDate: r.death,
	}
	p.cache.Put(cache.TierOrgan, r.id, person)
	return person, nil
}
