package core

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"organcore/internal/blob"
	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
	"organcore/pkg/domain"
)

// OrganizationDraft carries the fields of an organization to create.
type OrganizationDraft struct {
	Name        string
	Established *time.Time
	Dissolved   *time.Time
	Bio         string
}

func (d OrganizationDraft) organization() domain.Organization {
	return domain.Organization{
		OrganBase:   domain.OrganBase{Bio: d.Bio},
		Name:        strings.TrimSpace(d.Name),
		Established: domain.DateOf(d.Established),
		Dissolved:   domain.DateOf(d.Dissolved),
	}
}

// NationDraft adds the optional capital location.
type NationDraft struct {
	OrganizationDraft
	Capital *int64
}

// Organizations manages organizations of every kind. Reads return the most
// specific kind claiming the id: Nation, Business or plain Organization.
type Organizations struct {
	*env
	locations *Locations
}

const organizationSelect = `SELECT o.oid, o.name, o.established, o.dissolved, n.oid, n.capital, b.oid
	FROM organization o
	LEFT JOIN nation n ON n.oid = o.oid
	LEFT JOIN business b ON b.oid = o.oid`

// Create inserts a plain organization.
func (o *Organizations) Create(ctx context.Context, d OrganizationDraft) (org domain.Organization, err error) {
	defer o.observe(ctx, "organization.create", time.Now(), &err)
	org, err = o.create(ctx, d.organization(), nil)
	if err != nil {
		return domain.Organization{}, err
	}
	o.cache.Put(cache.TierOrgan, org.ID, org)
	return org, nil
}

// create inserts the organ and organization rows, then runs extra on the same
// connection for subtype rows, then writes the biography.
func (o *Organizations) create(ctx context.Context, org domain.Organization, extra func(*relational.Conn, int64) error) (domain.Organization, error) {
	if err := o.check(org); err != nil {
		return domain.Organization{}, err
	}
	err := o.db.With(ctx, func(c *relational.Conn) error {
		id, err := c.Insert(ctx, `INSERT INTO organ DEFAULT VALUES RETURNING oid`)
		if err != nil {
			return err
		}
		org.ID = id
		if _, err = c.Exec(ctx, `INSERT INTO organization (oid, name, established, dissolved) VALUES (?, ?, ?, ?)`,
			id, org.Name, org.Established, org.Dissolved); err != nil {
			return err
		}
		if extra != nil {
			return extra(c, id)
		}
		return nil
	})
	if err != nil {
		return domain.Organization{}, err
	}
	if err := o.docs.Write(ctx, blob.OrganDocuments, org.ID, org.Bio); err != nil {
		return domain.Organization{}, err
	}
	o.logger.Debug("organization created", zap.Int64("id", org.ID))
	return org, nil
}

// Get returns the organization-kind organ with id. It reports false when no
// organization claims the id.
func (o *Organizations) Get(ctx context.Context, id int64) (org domain.Organizational, found bool, err error) {
	if v, ok := o.cache.Get(cache.TierOrgan, id); ok {
		org, found = v.(domain.Organizational)
		if !found {
			return nil, false, nil
		}
		org, err = o.refresh(ctx, org)
		return org, err == nil, err
	}
	defer o.observe(ctx, "organization.get", time.Now(), &err)
	orgs, err := o.query(ctx, `WHERE o.oid = ?`, id)
	if err != nil || len(orgs) == 0 {
		return nil, false, err
	}
	return orgs[0], true, nil
}

// Find returns organizations of every kind whose name contains q.
func (o *Organizations) Find(ctx context.Context, q string) (orgs []domain.Organizational, err error) {
	defer o.observe(ctx, "organization.find", time.Now(), &err)
	return o.query(ctx, `WHERE LOWER(o.name) LIKE ? ESCAPE '\' ORDER BY o.oid`, relational.Like(q))
}

// Update applies mutator to the organization fields of any organization kind
// and returns the updated organ in its concrete kind.
func (o *Organizations) Update(ctx context.Context, id int64, mutator func(*domain.Organization) error) (org domain.Organizational, err error) {
	defer o.observe(ctx, "organization.update", time.Now(), &err)
	current, ok, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFoundError{Kind: domain.KindOrganization, ID: id}
	}
	next := current.Org()
	if err = mutator(&next); err != nil {
		return nil, err
	}
	next.ID = id
	switch v := current.(type) {
	case domain.Nation:
		v.Organization = next
		org = v
	case domain.Business:
		v.Organization = next
		org = v
	default:
		org = next
	}
	if err = o.persist(ctx, current.Org(), org, nil); err != nil {
		return nil, err
	}
	return org, nil
}

// persist validates org, writes the organization row and any subtype columns
// via extra, rewrites the biography when it changed and refreshes the cache.
func (o *Organizations) persist(ctx context.Context, before domain.Organization, org domain.Organizational, extra func(*relational.Conn) error) error {
	if err := o.check(org); err != nil {
		return err
	}
	fields := org.Org()
	id := fields.ID
	err := o.db.With(ctx, func(c *relational.Conn) error {
		n, err := c.Exec(ctx, `UPDATE organization SET name = ?, established = ?, dissolved = ? WHERE oid = ?`,
			fields.Name, fields.Established, fields.Dissolved, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NotFoundError{Kind: org.Kind(), ID: id}
		}
		if extra != nil {
			return extra(c)
		}
		return nil
	})
	if domain.IsNotFound(err) {
		o.forgetOrgan(id)
	}
	if err != nil {
		return err
	}
	if fields.Bio != before.Bio {
		if err := o.docs.Write(ctx, blob.OrganDocuments, id, fields.Bio); err != nil {
			return err
		}
	}
	o.cache.Put(cache.TierOrgan, id, org)
	return nil
}

// Remove deletes an organization of any kind with its memberships, sources,
// socials and event participations.
func (o *Organizations) Remove(ctx context.Context, id int64) (removed bool, err error) {
	defer o.observe(ctx, "organization.remove", time.Now(), &err)
	return o.remove(ctx, "organization", id)
}

func (o *Organizations) remove(ctx context.Context, kindTable string, id int64) (bool, error) {
	removed, err := removeOrganRow(ctx, o.db, kindTable, "oid", id)
	if err != nil || !removed {
		return false, err
	}
	o.forgetOrgan(id)
	if err := o.docs.Remove(ctx, blob.OrganDocuments, id); err != nil {
		o.logger.Warn("biography not removed", zap.Int64("id", id), zap.Error(err))
	}
	return true, nil
}

// query loads organizations matching where, building the concrete kind of
// each row and caching it.
func (o *Organizations) query(ctx context.Context, where string, args ...any) ([]domain.Organizational, error) {
	type row struct {
		org      domain.Organization
		nation   sql.NullInt64
		capital  sql.NullInt64
		business sql.NullInt64
	}
	var rows []row
	err := o.db.Select(ctx, organizationSelect+` `+where, args, func(s relational.Scanner) error {
		var r row
		if err := s.Scan(&r.org.ID, &r.org.Name, &r.org.Established, &r.org.Dissolved, &r.nation, &r.capital, &r.business); err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Organizational, 0, len(rows))
	for _, r := range rows {
		if cached, ok := cache.Lookup[domain.Organizational](o.cache, cache.TierOrgan, r.org.ID); ok {
			org, err := o.refresh(ctx, cached)
			if err != nil {
				return nil, err
			}
			out = append(out, org)
			continue
		}
		bio, err := o.docs.Read(ctx, blob.OrganDocuments, r.org.ID)
		if err != nil {
			return nil, err
		}
		r.org.Bio = bio
		var org domain.Organizational = r.org
		switch {
		case r.nation.Valid:
			n := domain.Nation{Organization: r.org}
			if r.capital.Valid {
				if n.Capital, err = o.locations.resolve(ctx, r.capital.Int64); err != nil {
					return nil, err
				}
			}
			org = n
		case r.business.Valid:
			org = domain.Business{Organization: r.org}
		}
		o.cache.Put(cache.TierOrgan, r.org.ID, org)
		out = append(out, org)
	}
	return out, nil
}

// refresh re-reads a cached nation's capital through the location tier so
// location edits are visible without evicting the nation.
func (o *Organizations) refresh(ctx context.Context, org domain.Organizational) (domain.Organizational, error) {
	n, ok := org.(domain.Nation)
	if !ok || n.Capital == nil {
		return org, nil
	}
	capital, err := o.locations.resolve(ctx, n.Capital.ID)
	if err != nil {
		return nil, err
	}
	n.Capital = capital
	return n, nil
}

// Nations manages organizations with an optional capital.
type Nations struct {
	orgs *Organizations
}

// Create inserts a nation. A capital, when given, must exist.
func (n *Nations) Create(ctx context.Context, d NationDraft) (nation domain.Nation, err error) {
	o := n.orgs
	defer o.observe(ctx, "nation.create", time.Now(), &err)
	if d.Capital != nil {
		if nation.Capital, err = o.locations.resolve(ctx, *d.Capital); err != nil {
			return domain.Nation{}, err
		}
		if nation.Capital == nil {
			return domain.Nation{}, domain.NotFoundError{Kind: domain.KindLocation, ID: *d.Capital}
		}
	}
	nation.Organization, err = o.create(ctx, d.organization(), func(c *relational.Conn, id int64) error {
		_, err := c.Exec(ctx, `INSERT INTO nation (oid, capital) VALUES (?, ?)`, id, d.Capital)
		return dangling(err, "capital")
	})
	if err != nil {
		return domain.Nation{}, err
	}
	o.cache.Put(cache.TierOrgan, nation.ID, nation)
	return nation, nil
}

// Get returns the nation with id.
func (n *Nations) Get(ctx context.Context, id int64) (domain.Nation, bool, error) {
	org, ok, err := n.orgs.Get(ctx, id)
	if err != nil || !ok {
		return domain.Nation{}, false, err
	}
	nation, ok := org.(domain.Nation)
	return nation, ok, nil
}

// Find returns nations whose name contains q.
func (n *Nations) Find(ctx context.Context, q string) (nations []domain.Nation, err error) {
	o := n.orgs
	defer o.observe(ctx, "nation.find", time.Now(), &err)
	orgs, err := o.query(ctx, `WHERE n.oid IS NOT NULL AND LOWER(o.name) LIKE ? ESCAPE '\' ORDER BY o.oid`, relational.Like(q))
	if err != nil {
		return nil, err
	}
	for _, org := range orgs {
		if nation, ok := org.(domain.Nation); ok {
			nations = append(nations, nation)
		}
	}
	return nations, nil
}

// Update applies mutator to the nation, including its capital. Setting
// Capital to nil clears it; otherwise only the capital id is read.
func (n *Nations) Update(ctx context.Context, id int64, mutator func(*domain.Nation) error) (nation domain.Nation, err error) {
	o := n.orgs
	defer o.observe(ctx, "nation.update", time.Now(), &err)
	current, ok, err := n.Get(ctx, id)
	if err != nil {
		return domain.Nation{}, err
	}
	if !ok {
		return domain.Nation{}, domain.NotFoundError{Kind: domain.KindNation, ID: id}
	}
	nation = current.Clone()
	if err = mutator(&nation); err != nil {
		return domain.Nation{}, err
	}
	nation.ID = id
	var capital *int64
	if nation.Capital != nil {
		capitalID := nation.Capital.ID
		capital = &capitalID
		if nation.Capital, err = o.locations.resolve(ctx, capitalID); err != nil {
			return domain.Nation{}, err
		}
		if nation.Capital == nil {
			return domain.Nation{}, domain.NotFoundError{Kind: domain.KindLocation, ID: capitalID}
		}
	}
	err = o.persist(ctx, current.Organization, nation, func(c *relational.Conn) error {
		_, err := c.Exec(ctx, `UPDATE nation SET capital = ? WHERE oid = ?`, capital, id)
		return dangling(err, "capital")
	})
	if err != nil {
		return domain.Nation{}, err
	}
	return nation, nil
}

// Remove deletes the nation. Ids held by other organization kinds are left alone.
func (n *Nations) Remove(ctx context.Context, id int64) (removed bool, err error) {
	defer n.orgs.observe(ctx, "nation.remove", time.Now(), &err)
	return n.orgs.remove(ctx, "nation", id)
}

// Businesses manages organizations tagged as commercial entities.
type Businesses struct {
	orgs *Organizations
}

// Create inserts a business.
func (b *Businesses) Create(ctx context.Context, d OrganizationDraft) (business domain.Business, err error) {
	o := b.orgs
	defer o.observe(ctx, "business.create", time.Now(), &err)
	business.Organization, err = o.create(ctx, d.organization(), func(c *relational.Conn, id int64) error {
		_, err := c.Exec(ctx, `INSERT INTO business (oid) VALUES (?)`, id)
		return err
	})
	if err != nil {
		return domain.Business{}, err
	}
	o.cache.Put(cache.TierOrgan, business.ID, business)
	return business, nil
}

// Get returns the business with id.
func (b *Businesses) Get(ctx context.Context, id int64) (domain.Business, bool, error) {
	org, ok, err := b.orgs.Get(ctx, id)
	if err != nil || !ok {
		return domain.Business{}, false, err
	}
	business, ok := org.(domain.Business)
	return business, ok, nil
}

// Find returns businesses whose name contains q.
func (b *Businesses) Find(ctx context.Context, q string) (businesses []domain.Business, err error) {
	o := b.orgs
	defer o.observe(ctx, "business.find", time.Now(), &err)
	orgs, err := o.query(ctx, `WHERE b.oid IS NOT NULL AND LOWER(o.name) LIKE ? ESCAPE '\' ORDER BY o.oid`, relational.Like(q))
	if err != nil {
		return nil, err
	}
	for _, org := range orgs {
		if business, ok := org.(domain.Business); ok {
			businesses = append(businesses, business)
		}
	}
	return businesses, nil
}

// Update applies mutator to the business.
func (b *Businesses) Update(ctx context.Context, id int64, mutator func(*domain.Business) error) (business domain.Business, err error) {
	o := b.orgs
	defer o.observe(ctx, "business.update", time.Now(), &err)
	current, ok, err := b.Get(ctx, id)
	if err != nil {
		return domain.Business{}, err
	}
	if !ok {
		return domain.Business{}, domain.NotFoundError{Kind: domain.KindBusiness, ID: id}
	}
	business = current
	if err = mutator(&business); err != nil {
		return domain.Business{}, err
	}
	business.ID = id
	if err = o.persist(ctx, current.Organization, business, nil); err != nil {
		return domain.Business{}, err
	}
	return business, nil
}

// Remove deletes the business.
func (b *Businesses) Remove(ctx context.Context, id int64) (removed bool, err error) {
	defer b.orgs.observe(ctx, "business.remove", time.Now(), &err)
	return b.orgs.remove(ctx, "business", id)
}
