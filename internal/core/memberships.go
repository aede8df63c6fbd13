package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
	"organcore/pkg/domain"
)

// MembershipDraft carries the fields of a membership to create.
type MembershipDraft struct {
	Organ        int64
	Organization int64
	Role         int64
	Since        time.Time
	Until        *time.Time
	Sources      []string
}

// Memberships manages role assignments of organs within organizations.
type Memberships struct {
	*env
	resolver *Resolver
	orgs     *Organizations
	roles    *Roles
	sources  *Sources
}

const membershipColumns = `mid, organ, organization, role, since, until`

// Create inserts a membership and its sources on one connection. A membership
// with the same organ, organization, role and since is a conflict.
func (m *Memberships) Create(ctx context.Context, d MembershipDraft) (view domain.MembershipView, err error) {
	defer m.observe(ctx, "membership.create", time.Now(), &err)
	if d.Since.IsZero() {
		return domain.MembershipView{}, domain.Invalid("since is required")
	}
	rec := domain.Membership{
		Organ:        domain.Ref{ID: d.Organ, Kind: domain.KindOrgan},
		Organization: domain.Ref{ID: d.Organization, Kind: domain.KindOrganization},
		Role:         d.Role,
		Since:        d.Since.UTC(),
		Until:        domain.DateOf(d.Until),
	}
	if view, err = m.resolve(ctx, rec); err != nil {
		return domain.MembershipView{}, err
	}
	err = m.db.With(ctx, func(c *relational.Conn) error {
		id, err := c.Insert(ctx, `INSERT INTO membership (organ, organization, role, since, until) VALUES (?, ?, ?, ?, ?) RETURNING mid`,
			rec.Organ.ID, rec.Organization.ID, rec.Role, rec.Since, rec.Until)
		if err != nil {
			return conflict(err, domain.KindMembership, rec.Key())
		}
		view.ID = id
		_, err = m.sources.add(ctx, c, id, d.Sources)
		return err
	})
	if err != nil {
		if view.ID != 0 {
			m.logger.Warn("membership created without all sources", zap.Int64("id", view.ID), zap.Error(err))
			m.invalidate(rec)
		}
		return domain.MembershipView{}, err
	}
	m.invalidate(rec)
	return view, nil
}

// Get returns the membership with surrogate id mid.
func (m *Memberships) Get(ctx context.Context, mid int64) (domain.MembershipView, bool, error) {
	rec, ok, err := m.record(ctx, `WHERE mid = ?`, mid)
	if err != nil || !ok {
		return domain.MembershipView{}, false, err
	}
	return m.view(ctx, rec)
}

// Lookup returns the membership identified by its natural key.
func (m *Memberships) Lookup(ctx context.Context, key domain.MembershipKey) (domain.MembershipView, bool, error) {
	rec, ok, err := m.record(ctx, `WHERE organ = ? AND organization = ? AND role = ? AND since = ?`,
		key.Organ, key.Organization, key.Role, key.Since.UTC())
	if err != nil || !ok {
		return domain.MembershipView{}, false, err
	}
	return m.view(ctx, rec)
}

// ForOrgan returns every membership the organ holds, resolving organization
// and role.
func (m *Memberships) ForOrgan(ctx context.Context, organ int64) ([]domain.MembershipView, error) {
	return m.list(ctx, cache.AttrOrganMemberships, "organ", organ)
}

// ForOrganization returns every membership within the organization,
// resolving member and role.
func (m *Memberships) ForOrganization(ctx context.Context, organization int64) ([]domain.MembershipView, error) {
	return m.list(ctx, cache.AttrOrgMemberships, "organization", organization)
}

func (m *Memberships) list(ctx context.Context, attr cache.Attr, column string, owner int64) (views []domain.MembershipView, err error) {
	recs, ok := cache.LookupAttr[[]domain.Membership](m.cache, attr, owner)
	if !ok {
		defer m.observe(ctx, "membership.list", time.Now(), &err)
		if recs, err = m.records(ctx, `WHERE `+column+` = ? ORDER BY mid`, owner); err != nil {
			return nil, err
		}
		m.cache.PutAttr(attr, owner, recs)
	}
	views = make([]domain.MembershipView, 0, len(recs))
	for _, rec := range recs {
		view, ok, err := m.view(ctx, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			views = append(views, view)
		}
	}
	return views, nil
}

// Update applies mutator to the membership record. Role, since and until may
// change; organ and organization may not.
func (m *Memberships) Update(ctx context.Context, mid int64, mutator func(*domain.Membership) error) (view domain.MembershipView, err error) {
	defer m.observe(ctx, "membership.update", time.Now(), &err)
	current, ok, err := m.record(ctx, `WHERE mid = ?`, mid)
	if err != nil {
		return domain.MembershipView{}, err
	}
	if !ok {
		return domain.MembershipView{}, domain.NotFoundError{Kind: domain.KindMembership, ID: mid}
	}
	next := current
	if err = mutator(&next); err != nil {
		return domain.MembershipView{}, err
	}
	next.ID = mid
	next.Since = next.Since.UTC()
	if next.Organ.ID != current.Organ.ID || next.Organization.ID != current.Organization.ID {
		return domain.MembershipView{}, domain.Invalid("membership %d: organ and organization are immutable", mid)
	}
	next.Organ, next.Organization = current.Organ, current.Organization
	if next.Since.IsZero() {
		return domain.MembershipView{}, domain.Invalid("since is required")
	}
	if view, err = m.resolve(ctx, next); err != nil {
		return domain.MembershipView{}, err
	}
	view.ID = mid
	n, err := m.db.Exec(ctx, `UPDATE membership SET role = ?, since = ?, until = ? WHERE mid = ?`,
		next.Role, next.Since, next.Until, mid)
	if err != nil {
		return domain.MembershipView{}, conflict(err, domain.KindMembership, next.Key())
	}
	m.invalidate(current)
	if n == 0 {
		return domain.MembershipView{}, domain.NotFoundError{Kind: domain.KindMembership, ID: mid}
	}
	return view, nil
}

// Remove deletes the membership and its sources.
func (m *Memberships) Remove(ctx context.Context, mid int64) (removed bool, err error) {
	defer m.observe(ctx, "membership.remove", time.Now(), &err)
	rec, ok, err := m.record(ctx, `WHERE mid = ?`, mid)
	if err != nil || !ok {
		return false, err
	}
	n, err := m.db.Exec(ctx, `DELETE FROM membership WHERE mid = ?`, mid)
	if err != nil {
		return false, err
	}
	m.invalidate(rec)
	m.cache.DropAttr(mid, cache.AttrMembershipSources)
	return n > 0, nil
}

// Sources returns the citation component for memberships.
func (m *Memberships) Sources() *Sources { return m.sources }

func (m *Memberships) invalidate(rec domain.Membership) {
	m.cache.DropAttr(rec.Organ.ID, cache.AttrOrganMemberships)
	m.cache.DropAttr(rec.Organization.ID, cache.AttrOrgMemberships)
}

// resolve loads both sides and the role of rec, failing with NotFoundError
// for whichever is missing.
func (m *Memberships) resolve(ctx context.Context, rec domain.Membership) (domain.MembershipView, error) {
	organ, err := m.resolver.MustResolve(ctx, rec.Organ.ID)
	if err != nil {
		return domain.MembershipView{}, err
	}
	org, ok, err := m.orgs.Get(ctx, rec.Organization.ID)
	if err != nil {
		return domain.MembershipView{}, err
	}
	if !ok {
		return domain.MembershipView{}, domain.NotFoundError{Kind: domain.KindOrganization, ID: rec.Organization.ID}
	}
	role, ok, err := m.roles.Get(ctx, rec.Role)
	if err != nil {
		return domain.MembershipView{}, err
	}
	if !ok {
		return domain.MembershipView{}, domain.NotFoundError{Kind: domain.KindRole, ID: rec.Role}
	}
	return domain.MembershipView{
		ID:           rec.ID,
		Organ:        organ,
		Organization: org,
		Role:         role,
		Since:        rec.Since,
		Until:        rec.Until,
	}, nil
}

// view resolves rec, reporting false when a side vanished concurrently.
func (m *Memberships) view(ctx context.Context, rec domain.Membership) (domain.MembershipView, bool, error) {
	view, err := m.resolve(ctx, rec)
	if domain.IsNotFound(err) {
		m.logger.Debug("membership skipped", zap.Int64("id", rec.ID), zap.Error(err))
		return domain.MembershipView{}, false, nil
	}
	if err != nil {
		return domain.MembershipView{}, false, err
	}
	return view, true, nil
}

func (m *Memberships) record(ctx context.Context, where string, args ...any) (domain.Membership, bool, error) {
	recs, err := m.records(ctx, where, args...)
	if err != nil || len(recs) == 0 {
		return domain.Membership{}, false, err
	}
	return recs[0], true, nil
}

func (m *Memberships) records(ctx context.Context, where string, args ...any) ([]domain.Membership, error) {
	recs := []domain.Membership{}
	err := m.db.Select(ctx, `SELECT `+membershipColumns+` FROM membership `+where, args, func(s relational.Scanner) error {
		var (
			rec   domain.Membership
			since domain.Timestamp
		)
		if err := s.Scan(&rec.ID, &rec.Organ.ID, &rec.Organization.ID, &rec.Role, &since, &rec.Until); err != nil {
			return err
		}
		rec.Organ.Kind = domain.KindOrgan
		rec.Organization.Kind = domain.KindOrganization
		rec.Since = since.Time
		recs = append(recs, rec)
		return nil
	})
	return recs, err
}
