package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
	"organcore/pkg/domain"
)

// RelationDraft carries the fields of a relation to create. The row reads
// "To is From's <Type>".
type RelationDraft struct {
	Type    domain.RelationType
	From    int64
	To      int64
	Since   time.Time
	Until   *time.Time
	Sources []string
}

// Relations manages typed relations between persons.
type Relations struct {
	*env
	people  *People
	sources *Sources
}

const relationColumns = `rid, person, relative, relation, since, until`

// relationKey names a relation in conflict errors.
type relationKey struct {
	from, to int64
	since    time.Time
}

func (k relationKey) String() string {
	return fmt.Sprintf("(person=%d, relative=%d, since=%s)", k.from, k.to, domain.At(k.since))
}

// Create inserts a relation and its sources. Self-relations are rejected, and
// for FRIEND and ROMANTIC the mirrored row counts as a duplicate.
func (r *Relations) Create(ctx context.Context, d RelationDraft) (view domain.RelationView, err error) {
	defer r.observe(ctx, "relation.create", time.Now(), &err)
	rec := domain.Relation{Type: d.Type, From: d.From, To: d.To, Since: d.Since.UTC(), Until: domain.DateOf(d.Until)}
	if err = validRelation(rec); err != nil {
		return domain.RelationView{}, err
	}
	if view, err = r.resolve(ctx, rec); err != nil {
		return domain.RelationView{}, err
	}
	if err = r.checkMirror(ctx, rec); err != nil {
		return domain.RelationView{}, err
	}
	err = r.db.With(ctx, func(c *relational.Conn) error {
		id, err := c.Insert(ctx, `INSERT INTO relation (person, relative, relation, since, until) VALUES (?, ?, ?, ?, ?) RETURNING rid`,
			rec.From, rec.To, int64(rec.Type), rec.Since, rec.Until)
		if err != nil {
			return conflict(dangling(err, "relation"), domain.KindRelation, relationKey{rec.From, rec.To, rec.Since})
		}
		view.ID = id
		_, err = r.sources.add(ctx, c, id, d.Sources)
		return err
	})
	if view.ID != 0 {
		r.invalidate(rec)
	}
	if err != nil {
		if view.ID != 0 {
			r.logger.Warn("relation created without all sources", zap.Int64("id", view.ID), zap.Error(err))
		}
		return domain.RelationView{}, err
	}
	return view, nil
}

// Between returns the relation between a and b starting at since, in either
// stored orientation, read from a's side.
func (r *Relations) Between(ctx context.Context, a, b int64, since time.Time) (view domain.RelationView, found bool, err error) {
	defer r.observe(ctx, "relation.between", time.Now(), &err)
	recs, err := r.records(ctx, `WHERE ((person = ? AND relative = ?) OR (person = ? AND relative = ?)) AND since = ? ORDER BY rid`,
		a, b, b, a, since.UTC())
	if err != nil || len(recs) == 0 {
		return domain.RelationView{}, false, err
	}
	rec := recs[0]
	if rec.From != a {
		rec = rec.Flip()
	}
	return r.view(ctx, rec)
}

// All returns the relations of person with type t. Directed types only match
// rows recorded from person's side; undirected types match both orientations
// and are read from person's side.
func (r *Relations) All(ctx context.Context, person int64, t domain.RelationType) (views []domain.RelationView, err error) {
	if !t.Valid() {
		return nil, domain.Invalid("unknown relation type %d", int(t))
	}
	recs, ok := cache.LookupAttr[[]domain.Relation](r.cache, cache.AttrRelations, person)
	if !ok {
		defer r.observe(ctx, "relation.list", time.Now(), &err)
		if recs, err = r.records(ctx, `WHERE person = ? OR relative = ? ORDER BY rid`, person, person); err != nil {
			return nil, err
		}
		r.cache.PutAttr(cache.AttrRelations, person, recs)
	}
	seen := make(map[int64]struct{}, len(recs))
	views = []domain.RelationView{}
	for _, rec := range recs {
		if rec.Type != t {
			continue
		}
		switch {
		case rec.From == person:
		case !t.Directed() && rec.To == person:
			rec = rec.Flip()
		default:
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		view, ok, err := r.view(ctx, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			views = append(views, view)
		}
	}
	return views, nil
}

// Get returns the relation with id in its stored orientation.
func (r *Relations) Get(ctx context.Context, rid int64) (domain.RelationView, bool, error) {
	rec, ok, err := r.record(ctx, rid)
	if err != nil || !ok {
		return domain.RelationView{}, false, err
	}
	return r.view(ctx, rec)
}

// Update applies mutator to the relation record. Type, since and until may
// change; the persons may not.
func (r *Relations) Update(ctx context.Context, rid int64, mutator func(*domain.Relation) error) (view domain.RelationView, err error) {
	defer r.observe(ctx, "relation.update", time.Now(), &err)
	current, ok, err := r.record(ctx, rid)
	if err != nil {
		return domain.RelationView{}, err
	}
	if !ok {
		return domain.RelationView{}, domain.NotFoundError{Kind: domain.KindRelation, ID: rid}
	}
	next := current
	if err = mutator(&next); err != nil {
		return domain.RelationView{}, err
	}
	if next.From != current.From || next.To != current.To {
		return domain.RelationView{}, domain.Invalid("relation %d: persons are immutable", rid)
	}
	next.ID = rid
	next.Since = next.Since.UTC()
	if err = validRelation(next); err != nil {
		return domain.RelationView{}, err
	}
	if view, err = r.resolve(ctx, next); err != nil {
		return domain.RelationView{}, err
	}
	if err = r.checkMirror(ctx, next); err != nil {
		return domain.RelationView{}, err
	}
	n, err := r.db.Exec(ctx, `UPDATE relation SET relation = ?, since = ?, until = ? WHERE rid = ?`,
		int64(next.Type), next.Since, next.Until, rid)
	if err != nil {
		return domain.RelationView{}, conflict(err, domain.KindRelation, relationKey{next.From, next.To, next.Since})
	}
	r.invalidate(current)
	if n == 0 {
		return domain.RelationView{}, domain.NotFoundError{Kind: domain.KindRelation, ID: rid}
	}
	view.ID = rid
	return view, nil
}

// Remove deletes the relation and its sources.
func (r *Relations) Remove(ctx context.Context, rid int64) (removed bool, err error) {
	defer r.observe(ctx, "relation.remove", time.Now(), &err)
	rec, ok, err := r.record(ctx, rid)
	if err != nil || !ok {
		return false, err
	}
	n, err := r.db.Exec(ctx, `DELETE FROM relation WHERE rid = ?`, rid)
	if err != nil {
		return false, err
	}
	r.invalidate(rec)
	r.cache.DropAttr(rid, cache.AttrRelationSources)
	return n > 0, nil
}

// Sources returns the citation component for relations.
func (r *Relations) Sources() *Sources { return r.sources }

func validRelation(rec domain.Relation) error {
	switch {
	case !rec.Type.Valid():
		return domain.Invalid("unknown relation type %d", int(rec.Type))
	case rec.From == rec.To:
		return domain.Invalid("person %d cannot be related to themselves", rec.From)
	case rec.Since.IsZero():
		return domain.Invalid("since is required")
	}
	return nil
}

// checkMirror rejects an undirected relation whose pair already holds an
// undirected row in the other orientation at the same since. The
// relation_undirected_uq index enforces the same rule for concurrent writers.
func (r *Relations) checkMirror(ctx context.Context, rec domain.Relation) error {
	if rec.Type.Directed() {
		return nil
	}
	exists, err := r.db.Exists(ctx, `SELECT 1 FROM relation WHERE person = ? AND relative = ? AND since = ? AND relation IN (?, ?) AND rid <> ?`,
		rec.To, rec.From, rec.Since, int64(domain.RelationRomantic), int64(domain.RelationFriend), rec.ID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ConflictError{Kind: domain.KindRelation, Key: relationKey{rec.To, rec.From, rec.Since}.String()}
	}
	return nil
}

func (r *Relations) invalidate(rec domain.Relation) {
	r.cache.DropAttr(rec.From, cache.AttrRelations)
	r.cache.DropAttr(rec.To, cache.AttrRelations)
}

func (r *Relations) resolve(ctx context.Context, rec domain.Relation) (domain.RelationView, error) {
	from, ok, err := r.people.Get(ctx, rec.From)
	if err != nil {
		return domain.RelationView{}, err
	}
	if !ok {
		return domain.RelationView{}, domain.NotFoundError{Kind: domain.KindPerson, ID: rec.From}
	}
	to, ok, err := r.people.Get(ctx, rec.To)
	if err != nil {
		return domain.RelationView{}, err
	}
	if !ok {
		return domain.RelationView{}, domain.NotFoundError{Kind: domain.KindPerson, ID: rec.To}
	}
	return domain.RelationView{ID: rec.ID, Type: rec.Type, From: from, To: to, Since: rec.Since, Until: rec.Until}, nil
}

func (r *Relations) view(ctx context.Context, rec domain.Relation) (domain.RelationView, bool, error) {
	view, err := r.resolve(ctx, rec)
	if domain.IsNotFound(err) {
		return domain.RelationView{}, false, nil
	}
	if err != nil {
		return domain.RelationView{}, false, err
	}
	return view, true, nil
}

func (r *Relations) record(ctx context.Context, rid int64) (domain.Relation, bool, error) {
	recs, err := r.records(ctx, `WHERE rid = ?`, rid)
	if err != nil || len(recs) == 0 {
		return domain.Relation{}, false, err
	}
	return recs[0], true, nil
}

func (r *Relations) records(ctx context.Context, where string, args ...any) ([]domain.Relation, error) {
	recs := []domain.Relation{}
	err := r.db.Select(ctx, `SELECT `+relationColumns+` FROM relation `+where, args, func(s relational.Scanner) error {
		var (
			rec   domain.Relation
			since domain.Timestamp
		)
		if err := s.Scan(&rec.ID, &rec.From, &rec.To, &rec.Type, &since, &rec.Until); err != nil {
			return err
		}
		rec.Since = since.Time
		recs = append(recs, rec)
		return nil
	})
	return recs, err
}
