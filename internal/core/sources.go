package core

import (
	"context"
	"strings"
	"time"

	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
	"organcore/pkg/domain"
)

// sourceTable describes where the citations of one owner kind live.
type sourceTable struct {
	owner  domain.Kind
	table  string
	column string
	attr   cache.Attr
}

var (
	organSources      = sourceTable{owner: domain.KindOrgan, table: "organ_source", column: "organ", attr: cache.AttrOrganSources}
	membershipSources = sourceTable{owner: domain.KindMembership, table: "membership_source", column: "mid", attr: cache.AttrMembershipSources}
	relationSources   = sourceTable{owner: domain.KindRelation, table: "relation_source", column: "rid", attr: cache.AttrRelationSources}
	eventSources      = sourceTable{owner: domain.KindEvent, table: "event_source", column: "event", attr: cache.AttrEventSources}
)

// Sources manages URL citations for one owner kind.
type Sources struct {
	*env
	table sourceTable
}

func (s *Sources) op(name string) string { return string(s.table.owner) + "_source." + name }

// List returns the sources of owner ordered by id.
func (s *Sources) List(ctx context.Context, owner int64) (sources []domain.Source, err error) {
	if cached, ok := cache.LookupAttr[[]domain.Source](s.cache, s.table.attr, owner); ok {
		return append([]domain.Source(nil), cached...), nil
	}
	defer s.observe(ctx, s.op("list"), time.Now(), &err)
	sources = []domain.Source{}
	err = s.db.Select(ctx, `SELECT sid, url FROM `+s.table.table+` WHERE `+s.table.column+` = ? ORDER BY sid`,
		[]any{owner}, func(r relational.Scanner) error {
			var src domain.Source
			if err := r.Scan(&src.ID, &src.URL); err != nil {
				return err
			}
			sources = append(sources, src)
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.cache.PutAttr(s.table.attr, owner, append([]domain.Source(nil), sources...))
	return sources, nil
}

// Get returns one source of owner.
func (s *Sources) Get(ctx context.Context, owner, sid int64) (domain.Source, bool, error) {
	sources, err := s.List(ctx, owner)
	if err != nil {
		return domain.Source{}, false, err
	}
	for _, src := range sources {
		if src.ID == sid {
			return src, true, nil
		}
	}
	return domain.Source{}, false, nil
}

// Add attaches a source to owner. An unknown owner is reported as not found.
func (s *Sources) Add(ctx context.Context, owner int64, url string) (src domain.Source, err error) {
	defer s.observe(ctx, s.op("add"), time.Now(), &err)
	err = s.db.With(ctx, func(c *relational.Conn) error {
		added, err := s.add(ctx, c, owner, []string{url})
		if err == nil {
			src = added[0]
		}
		return err
	})
	return src, err
}

// add inserts urls for owner on c. Callers creating the owner on the same
// connection use it to attach the initial sources.
func (s *Sources) add(ctx context.Context, c *relational.Conn, owner int64, urls []string) ([]domain.Source, error) {
	out := make([]domain.Source, 0, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if err := s.checkURL(url); err != nil {
			return out, err
		}
		sid, err := c.Insert(ctx, `INSERT INTO `+s.table.table+` (`+s.table.column+`, url) VALUES (?, ?) RETURNING sid`, owner, url)
		if relational.IsReferenceViolation(err) {
			return out, domain.NotFoundError{Kind: s.table.owner, ID: owner}
		}
		if err != nil {
			return out, err
		}
		out = append(out, domain.Source{ID: sid, URL: url})
	}
	s.cache.DropAttr(owner, s.table.attr)
	return out, nil
}

// Update replaces the URL of one source.
func (s *Sources) Update(ctx context.Context, owner, sid int64, url string) (src domain.Source, err error) {
	defer s.observe(ctx, s.op("update"), time.Now(), &err)
	url = strings.TrimSpace(url)
	if err = s.checkURL(url); err != nil {
		return domain.Source{}, err
	}
	n, err := s.db.Exec(ctx, `UPDATE `+s.table.table+` SET url = ? WHERE sid = ? AND `+s.table.column+` = ?`, url, sid, owner)
	if err != nil {
		return domain.Source{}, err
	}
	s.cache.DropAttr(owner, s.table.attr)
	if n == 0 {
		return domain.Source{}, domain.NotFoundError{Kind: domain.KindSource, ID: sid}
	}
	return domain.Source{ID: sid, URL: url}, nil
}

// Remove deletes one source and reports whether it existed.
func (s *Sources) Remove(ctx context.Context, owner, sid int64) (removed bool, err error) {
	defer s.observe(ctx, s.op("remove"), time.Now(), &err)
	n, err := s.db.Exec(ctx, `DELETE FROM `+s.table.table+` WHERE sid = ? AND `+s.table.column+` = ?`, sid, owner)
	if err != nil {
		return false, err
	}
	s.cache.DropAttr(owner, s.table.attr)
	return n > 0, nil
}

// Socials manages the social media handles of organs.
type Socials struct {
	*env
}

// List returns the handles of organ ordered by id.
func (s *Socials) List(ctx context.Context, organ int64) (socials []domain.Socials, err error) {
	if cached, ok := cache.LookupAttr[[]domain.Socials](s.cache, cache.AttrSocials, organ); ok {
		return append([]domain.Socials(nil), cached...), nil
	}
	defer s.observe(ctx, "socials.list", time.Now(), &err)
	socials = []domain.Socials{}
	err = s.db.Select(ctx, `SELECT sid, platform, url FROM socials WHERE organ = ? ORDER BY sid`,
		[]any{organ}, func(r relational.Scanner) error {
			var h domain.Socials
			if err := r.Scan(&h.ID, &h.Platform, &h.URL); err != nil {
				return err
			}
			socials = append(socials, h)
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.cache.PutAttr(cache.AttrSocials, organ, append([]domain.Socials(nil), socials...))
	return socials, nil
}

// Add attaches a handle to organ.
func (s *Socials) Add(ctx context.Context, organ int64, platform domain.Platform, url string) (h domain.Socials, err error) {
	defer s.observe(ctx, "socials.add", time.Now(), &err)
	h = domain.Socials{Platform: platform, URL: strings.TrimSpace(url)}
	if err = s.checkHandle(h); err != nil {
		return domain.Socials{}, err
	}
	h.ID, err = s.db.Insert(ctx, `INSERT INTO socials (organ, platform, url) VALUES (?, ?, ?) RETURNING sid`,
		organ, int64(h.Platform), h.URL)
	if relational.IsReferenceViolation(err) {
		return domain.Socials{}, domain.NotFoundError{Kind: domain.KindOrgan, ID: organ}
	}
	if err != nil {
		return domain.Socials{}, err
	}
	s.cache.DropAttr(organ, cache.AttrSocials)
	return h, nil
}

// Update replaces platform and URL of one handle.
func (s *Socials) Update(ctx context.Context, organ, sid int64, platform domain.Platform, url string) (h domain.Socials, err error) {
	defer s.observe(ctx, "socials.update", time.Now(), &err)
	h = domain.Socials{ID: sid, Platform: platform, URL: strings.TrimSpace(url)}
	if err = s.checkHandle(h); err != nil {
		return domain.Socials{}, err
	}
	n, err := s.db.Exec(ctx, `UPDATE socials SET platform = ?, url = ? WHERE sid = ? AND organ = ?`,
		int64(h.Platform), h.URL, sid, organ)
	if err != nil {
		return domain.Socials{}, err
	}
	s.cache.DropAttr(organ, cache.AttrSocials)
	if n == 0 {
		return domain.Socials{}, domain.NotFoundError{Kind: domain.KindSocials, ID: sid}
	}
	return h, nil
}

// Remove deletes one handle and reports whether it existed.
func (s *Socials) Remove(ctx context.Context, organ, sid int64) (removed bool, err error) {
	defer s.observe(ctx, "socials.remove", time.Now(), &err)
	n, err := s.db.Exec(ctx, `DELETE FROM socials WHERE sid = ? AND organ = ?`, sid, organ)
	if err != nil {
		return false, err
	}
	s.cache.DropAttr(organ, cache.AttrSocials)
	return n > 0, nil
}

func (s *Socials) checkHandle(h domain.Socials) error {
	if !h.Platform.Valid() {
		return domain.Invalid("unknown platform %d", int(h.Platform))
	}
	return s.checkURL(h.URL)
}
