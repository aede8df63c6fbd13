// Package cache implements the process-wide identity map that fronts the
// relational store. Each tier is an independent bounded LRU so that, for
// example, a burst of location lookups cannot evict organs.
package cache

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Tier names an independently bounded partition of the cache.
type Tier string

// Entity tiers. Person, Organization, Nation and Business share TierOrgan
// because their ids come from one sequence.
const (
	TierOrgan      Tier = "organ"
	TierLocation   Tier = "location"
	TierRole       Tier = "role"
	TierEvent      Tier = "event"
	TierAttributes Tier = "attributes"
)

// DefaultCapacity bounds every tier that is not configured explicitly.
const DefaultCapacity = 1000

// Attr names a sub-entity set memoized for its owner.
type Attr string

// Attribute sets held in TierAttributes.
const (
	AttrOrganSources      Attr = "organ_sources"
	AttrSocials           Attr = "socials"
	AttrOrganMemberships  Attr = "organ_memberships"
	AttrOrgMemberships    Attr = "organization_memberships"
	AttrMembershipSources Attr = "membership_sources"
	AttrRelations         Attr = "relations"
	AttrRelationSources   Attr = "relation_sources"
	AttrEventSources      Attr = "event_sources"
	AttrEventParticipants Attr = "event_participants"
)

// AttrKey addresses one attribute set.
type AttrKey struct {
	Attr  Attr
	Owner int64
}

// Observer receives cache outcomes, typically to export metrics.
type Observer interface {
	Hit(tier Tier)
	Miss(tier Tier)
	Evict(tier Tier)
}

type nopObserver struct{}

func (nopObserver) Hit(Tier)   {}
func (nopObserver) Miss(Tier)  {}
func (nopObserver) Evict(Tier) {}

// Option configures a Cache.
type Option func(*Cache)

// WithObserver routes hit/miss/evict notifications to o.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithCapacity overrides the capacity of one tier.
func WithCapacity(t Tier, size int) Option {
	return func(c *Cache) { c.capacity[t] = size }
}

// Cache is safe for concurrent use. It is not the source of truth: a miss
// only means the caller must consult the store.
type Cache struct {
	capacity map[Tier]int
	entities map[Tier]*lru.Cache[int64, any]
	attrs    *lru.Cache[AttrKey, any]
	observer Observer
}

// New builds a cache with one LRU per entity tier plus the attribute tier.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		capacity: make(map[Tier]int),
		entities: make(map[Tier]*lru.Cache[int64, any]),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, t := range []Tier{TierOrgan, TierLocation, TierRole, TierEvent} {
		l, err := lru.New[int64, any](c.size(t))
		if err != nil {
			return nil, fmt.Errorf("cache tier %s: %w", t, err)
		}
		c.entities[t] = l
	}
	attrs, err := lru.New[AttrKey, any](c.size(TierAttributes))
	if err != nil {
		return nil, fmt.Errorf("cache tier %s: %w", TierAttributes, err)
	}
	c.attrs = attrs
	return c, nil
}

func (c *Cache) size(t Tier) int {
	if n, ok := c.capacity[t]; ok {
		return n
	}
	return DefaultCapacity
}

func (c *Cache) tier(t Tier) *lru.Cache[int64, any] {
	l, ok := c.entities[t]
	if !ok {
		panic(fmt.Sprintf("cache: unknown tier %q", t))
	}
	return l
}

// Get returns the cached entity for id.
func (c *Cache) Get(t Tier, id int64) (any, bool) {
	v, ok := c.tier(t).Get(id)
	if ok {
		c.observer.Hit(t)
	} else {
		c.observer.Miss(t)
	}
	return v, ok
}

// Put stores or refreshes the entry for id.
func (c *Cache) Put(t Tier, id int64, v any) {
	if c.tier(t).Add(id, v) {
		c.observer.Evict(t)
	}
}

// Delete evicts id. Deleting an absent id is a no-op.
func (c *Cache) Delete(t Tier, id int64) {
	c.tier(t).Remove(id)
}

// Len reports the number of entries in a tier.
func (c *Cache) Len(t Tier) int {
	if t == TierAttributes {
		return c.attrs.Len()
	}
	return c.tier(t).Len()
}

// Tiers lists the tier names in a stable order.
func (c *Cache) Tiers() []Tier {
	out := make([]Tier, 0, len(c.entities)+1)
	for t := range c.entities {
		out = append(out, t)
	}
	out = append(out, TierAttributes)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GetAttr returns a memoized attribute set.
func (c *Cache) GetAttr(a Attr, owner int64) (any, bool) {
	v, ok := c.attrs.Get(AttrKey{Attr: a, Owner: owner})
	if ok {
		c.observer.Hit(TierAttributes)
	} else {
		c.observer.Miss(TierAttributes)
	}
	return v, ok
}

// PutAttr memoizes an attribute set.
func (c *Cache) PutAttr(a Attr, owner int64, v any) {
	if c.attrs.Add(AttrKey{Attr: a, Owner: owner}, v) {
		c.observer.Evict(TierAttributes)
	}
}

// DropAttr invalidates attribute sets for owner. With no attrs given every
// set owned by owner is dropped.
func (c *Cache) DropAttr(owner int64, attrs ...Attr) {
	if len(attrs) > 0 {
		for _, a := range attrs {
			c.attrs.Remove(AttrKey{Attr: a, Owner: owner})
		}
		return
	}
	for _, k := range c.attrs.Keys() {
		if k.Owner == owner {
			c.attrs.Remove(k)
		}
	}
}

// DropAttrSet invalidates one attribute set for every owner.
func (c *Cache) DropAttrSet(a Attr) {
	for _, k := range c.attrs.Keys() {
		if k.Attr == a {
			c.attrs.Remove(k)
		}
	}
}

// Purge empties every tier.
func (c *Cache) Purge() {
	for _, l := range c.entities {
		l.Purge()
	}
	c.attrs.Purge()
}

// Lookup is Get with a type assertion. A cached value of another type is
// reported as a miss.
func Lookup[T any](c *Cache, t Tier, id int64) (T, bool) {
	v, ok := c.Get(t, id)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// LookupAttr is GetAttr with a type assertion.
func LookupAttr[T any](c *Cache, a Attr, owner int64) (T, bool) {
	v, ok := c.GetAttr(a, owner)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}
