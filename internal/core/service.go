// Package core implements the organ registry: typed CRUD over the relational
// store, with every read fronted by the tiered cache and long-form text kept in
// the document store.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"organcore/internal/blob"
	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
	"organcore/pkg/domain"
)

// MetricsRecorder receives the outcome of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// Option customises a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger  *zap.Logger
	metrics MetricsRecorder
	cache   *cache.Cache
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(o *serviceOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the operation metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithCache supplies a preconfigured cache, typically one wired to a metrics
// observer. The default is a cache with DefaultCapacity on every tier.
func WithCache(c *cache.Cache) Option {
	return func(o *serviceOptions) {
		if c != nil {
			o.cache = c
		}
	}
}

// env is the shared plumbing handed to every entity component.
type env struct {
	db       *relational.DB
	cache    *cache.Cache
	docs     *blob.Documents
	logger   *zap.Logger
	metrics  MetricsRecorder
	validate *validator.Validate
}

// named returns a copy of e whose logger carries the component name.
func (e *env) named(component string) *env {
	c := *e
	c.logger = e.logger.Named(component)
	return &c
}

// observe records an operation; call it deferred with a pointer to the named
// error result.
func (e *env) observe(ctx context.Context, op string, start time.Time, err *error) {
	success := err == nil || *err == nil
	e.metrics.Observe(ctx, op, success, time.Since(start))
	if !success {
		e.logger.Debug("operation failed", zap.String("op", op), zap.Error(*err))
	}
}

// Service aggregates the entity components over one store.
type Service struct {
	env *env

	People        *People
	Organizations *Organizations
	Nations       *Nations
	Businesses    *Businesses
	Locations     *Locations
	Roles         *Roles
	Memberships   *Memberships
	Relations     *Relations
	Events        *Events
	Socials       *Socials
	Resolver      *Resolver

	OrganSources      *Sources
	MembershipSources *Sources
	RelationSources   *Sources
	EventSources      *Sources
}

// NewService wires the components over db and docs.
func NewService(db *relational.DB, docs *blob.Documents, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("core: nil store")
	}
	if docs == nil {
		return nil, errors.New("core: nil document store")
	}
	o := serviceOptions{logger: zap.NewNop(), metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		c, err := cache.New()
		if err != nil {
			return nil, fmt.Errorf("core: %w", err)
		}
		o.cache = c
	}
	e := &env{
		db:       db,
		cache:    o.cache,
		docs:     docs,
		logger:   o.logger,
		metrics:  o.metrics,
		validate: newValidator(),
	}

	s := &Service{env: e}
	s.Locations = &Locations{env: e.named("location")}
	s.Roles = &Roles{env: e.named("role")}
	s.People = &People{env: e.named("person")}
	s.Organizations = &Organizations{env: e.named("organization"), locations: s.Locations}
	s.Nations = &Nations{orgs: s.Organizations}
	s.Businesses = &Businesses{orgs: s.Organizations}
	s.Resolver = &Resolver{env: e.named("resolver"), lookups: []kindLookup{
		{domain.KindPerson, func(ctx context.Context, id int64) (domain.Organ, bool, error) {
			p, ok, err := s.People.Get(ctx, id)
			return p, ok, err
		}},
		{domain.KindNation, func(ctx context.Context, id int64) (domain.Organ, bool, error) {
			n, ok, err := s.Nations.Get(ctx, id)
			return n, ok, err
		}},
		{domain.KindBusiness, func(ctx context.Context, id int64) (domain.Organ, bool, error) {
			b, ok, err := s.Businesses.Get(ctx, id)
			return b, ok, err
		}},
		{domain.KindOrganization, func(ctx context.Context, id int64) (domain.Organ, bool, error) {
			org, ok, err := s.Organizations.Get(ctx, id)
			return org, ok, err
		}},
	}, people: s.People, orgs: s.Organizations}

	sources := e.named("source")
	s.OrganSources = &Sources{env: sources, table: organSources}
	s.MembershipSources = &Sources{env: sources, table: membershipSources}
	s.RelationSources = &Sources{env: sources, table: relationSources}
	s.EventSources = &Sources{env: sources, table: eventSources}
	s.Socials = &Socials{env: e.named("socials")}

	s.Memberships = &Memberships{env: e.named("membership"), resolver: s.Resolver, orgs: s.Organizations, roles: s.Roles, sources: s.MembershipSources}
	s.Relations = &Relations{env: e.named("relation"), people: s.People, sources: s.RelationSources}
	s.Events = &Events{env: e.named("event"), locations: s.Locations, resolver: s.Resolver, sources: s.EventSources}
	return s, nil
}

// Cache exposes the identity map, mainly for diagnostics.
func (s *Service) Cache() *cache.Cache { return s.env.cache }

// DB returns the underlying store.
func (s *Service) DB() *relational.DB { return s.env.db }

// forgetOrgan drops everything cached for a removed organ. Cascaded deletes
// reach memberships and relations owned by other ids, so their list and
// source sets are dropped wholesale.
func (e *env) forgetOrgan(id int64) {
	e.cache.Delete(cache.TierOrgan, id)
	e.cache.DropAttr(id)
	e.cache.DropAttrSet(cache.AttrOrganMemberships)
	e.cache.DropAttrSet(cache.AttrOrgMemberships)
	e.cache.DropAttrSet(cache.AttrRelations)
	e.cache.DropAttrSet(cache.AttrEventParticipants)
	e.cache.DropAttrSet(cache.AttrMembershipSources)
	e.cache.DropAttrSet(cache.AttrRelationSources)
}

// conflict maps a unique-key violation to a ConflictError and leaves other
// errors untouched.
func conflict(err error, kind domain.Kind, key fmt.Stringer) error {
	if relational.IsUniqueViolation(err) {
		return domain.ConflictError{Kind: kind, Key: key.String(), Err: err}
	}
	return err
}

// dangling maps a foreign-key or check violation to ErrInvalidArgument.
func dangling(err error, what string) error {
	if relational.IsReferenceViolation(err) || relational.IsCheckViolation(err) {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, what, err)
	}
	return err
}

// removeOrganRow deletes an organ whose id is present in kindTable and reports
// whether a row went away. Kind rows and every dependent row cascade.
func removeOrganRow(ctx context.Context, db *relational.DB, kindTable, kindColumn string, id int64) (bool, error) {
	n, err := db.Exec(ctx,
		`DELETE FROM organ WHERE oid = ? AND oid IN (SELECT `+kindColumn+` FROM `+kindTable+`)`, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
