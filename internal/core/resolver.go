package core

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"organcore/internal/cache"
	"organcore/pkg/domain"
)

// kindLookup is one typed lookup attempted by the resolver.
type kindLookup struct {
	kind   domain.Kind
	lookup func(ctx context.Context, id int64) (domain.Organ, bool, error)
}

// Resolver turns an organ id of unknown kind into its concrete entity.
type Resolver struct {
	*env
	lookups []kindLookup
	people  *People
	orgs    *Organizations
}

// Resolve consults the organ tier first and then tries Person, Nation,
// Business and Organization in that order. It reports false when no kind
// claims the id.
func (r *Resolver) Resolve(ctx context.Context, id int64) (organ domain.Organ, found bool, err error) {
	if v, ok := r.cache.Get(cache.TierOrgan, id); ok {
		if org, ok := v.(domain.Organizational); ok {
			organ, err = r.orgs.refresh(ctx, org)
			return organ, err == nil, err
		}
		organ, found = v.(domain.Organ)
		return organ, found, nil
	}
	defer r.observe(ctx, "organ.resolve", time.Now(), &err)
	for _, p := range r.lookups {
		organ, found, err = p.lookup(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if found {
			r.logger.Debug("organ resolved", zap.Int64("id", id), zap.String("kind", string(p.kind)))
			return organ, true, nil
		}
	}
	return nil, false, nil
}

// MustResolve is Resolve with a NotFoundError for unknown ids.
func (r *Resolver) MustResolve(ctx context.Context, id int64) (domain.Organ, error) {
	organ, ok, err := r.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFoundError{Kind: domain.KindOrgan, ID: id}
	}
	return organ, nil
}

// Search returns persons and organizations whose names contain q, ordered by id.
func (r *Resolver) Search(ctx context.Context, q string) (organs []domain.Organ, err error) {
	defer r.observe(ctx, "organ.search", time.Now(), &err)
	people, err := r.people.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	orgs, err := r.orgs.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	organs = make([]domain.Organ, 0, len(people)+len(orgs))
	for _, p := range people {
		organs = append(organs, p)
	}
	for _, o := range orgs {
		organs = append(organs, o)
	}
	sort.Slice(organs, func(i, j int) bool { return organs[i].OrganID() < organs[j].OrganID() })
	return organs, nil
}
