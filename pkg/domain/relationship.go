package domain

import (
	"fmt"
	"strings"
	"time"
)

// Membership assigns a role to an organ within an organization. The natural
// key is (Organ, Organization, Role, Since).
type Membership struct {
	ID           int64
	Organ        Ref
	Organization Ref
	Role         int64
	Since        time.Time
	Until        Date
}

// MembershipKey is the natural key of a membership.
type MembershipKey struct {
	Organ        int64
	Organization int64
	Role         int64
	Since        time.Time
}

func (k MembershipKey) String() string {
	return fmt.Sprintf("(organ=%d, organization=%d, role=%d, since=%s)",
		k.Organ, k.Organization, k.Role, k.Since.UTC().Format(time.RFC3339Nano))
}

// Key returns the natural key of m.
func (m Membership) Key() MembershipKey {
	return MembershipKey{Organ: m.Organ.ID, Organization: m.Organization.ID, Role: m.Role, Since: m.Since}
}

// MembershipView is a membership with both sides and the role resolved.
type MembershipView struct {
	ID           int64
	Organ        Organ
	Organization Organizational
	Role         Role
	Since        time.Time
	Until        Date
}

// MembershipRepr nests the entity representations rather than ids.
type MembershipRepr struct {
	ID           int64    `json:"id"`
	Organ        any      `json:"organ"`
	Organization any      `json:"organization"`
	Role         RoleRepr `json:"role"`
	Since        Date     `json:"since,omitzero"`
	Until        Date     `json:"until,omitzero"`
}

func (m MembershipView) Repr() MembershipRepr {
	return MembershipRepr{
		ID:           m.ID,
		Organ:        m.Organ.Representation(),
		Organization: m.Organization.Representation(),
		Role:         m.Role.Repr(),
		Since:        At(m.Since),
		Until:        m.Until,
	}
}

func (m MembershipView) String() string {
	s := fmt.Sprintf("%s in %s as %s (%s", m.Organ, m.Organization, m.Role, At(m.Since))
	if m.Until.IsSet() {
		s += " - " + m.Until.String()
	}
	return s + ")"
}

// RelationType classifies a relation between two persons.
type RelationType int

const (
	RelationParent RelationType = iota + 1
	RelationRomantic
	RelationFriend
	RelationChild
)

var relationNames = map[RelationType]string{
	RelationParent:   "PARENT",
	RelationRomantic: "ROMANTIC",
	RelationFriend:   "FRIEND",
	RelationChild:    "CHILD",
}

// Valid reports whether t is a known relation type.
func (t RelationType) Valid() bool {
	_, ok := relationNames[t]
	return ok
}

// Name returns the upper-case enum name.
func (t RelationType) Name() string {
	if n, ok := relationNames[t]; ok {
		return n
	}
	return fmt.Sprintf("RELATION(%d)", int(t))
}

// String returns the lower-case name used in representations.
func (t RelationType) String() string { return strings.ToLower(t.Name()) }

// Directed reports whether the relation reads differently from each side.
// PARENT and CHILD are directed; ROMANTIC and FRIEND are not.
func (t RelationType) Directed() bool {
	return t == RelationParent || t == RelationChild
}

// Inverse returns the type read from the other participant: PARENT and CHILD
// swap, undirected types are their own inverse.
func (t RelationType) Inverse() RelationType {
	switch t {
	case RelationParent:
		return RelationChild
	case RelationChild:
		return RelationParent
	}
	return t
}

// ParseRelationType resolves a relation type name, case-insensitively.
func ParseRelationType(name string) (RelationType, error) {
	for t, n := range relationNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return 0, Invalid("unknown relation type %q", name)
}

// Relation links two persons. A row (From, To, PARENT) records To as a parent
// of From; (From, To, CHILD) records To as a child of From.
type Relation struct {
	ID    int64
	Type  RelationType
	From  int64
	To    int64
	Since time.Time
	Until Date
}

// Flip returns the relation as seen from the other participant.
func (r Relation) Flip() Relation {
	r.From, r.To = r.To, r.From
	r.Type = r.Type.Inverse()
	return r
}

// RelationView is a relation with both persons resolved.
type RelationView struct {
	ID    int64
	Type  RelationType
	From  Person
	To    Person
	Since time.Time
	Until Date
}

// RelationRepr is the JSON shape of a relation. From is omitted in the
// abbreviated form used when the caller already knows the origin.
type RelationRepr struct {
	ID    int64       `json:"id"`
	Type  string      `json:"type"`
	From  *PersonRepr `json:"from,omitempty"`
	To    PersonRepr  `json:"to"`
	Since Date        `json:"since,omitzero"`
	Until Date        `json:"until,omitzero"`
}

// Repr returns the representation; abbrev drops the From person.
func (r RelationView) Repr(abbrev bool) RelationRepr {
	out := RelationRepr{
		ID:    r.ID,
		Type:  r.Type.String(),
		To:    r.To.Repr(),
		Since: At(r.Since),
		Until: r.Until,
	}
	if !abbrev {
		from := r.From.Repr()
		out.From = &from
	}
	return out
}

func (r RelationView) String() string {
	return fmt.Sprintf("%s -[%s %s]-> %s", r.From, r.Type.Name(), At(r.Since), r.To)
}

// Event is a dated happening with participants drawn from the organ id space.
type Event struct {
	ID       int64
	Name     string `validate:"required,max=255"`
	Desc     string
	Date     Date
	Location *Location
}

// Clone returns a copy whose location is not shared with e.
func (e Event) Clone() Event {
	e.Location = cloneLocation(e.Location)
	return e
}

// EventRepr is the JSON shape of an Event.
type EventRepr struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Desc     string        `json:"desc"`
	Date     Date          `json:"date,omitzero"`
	Location *LocationRepr `json:"location,omitempty"`
}

func (e Event) Repr() EventRepr {
	r := EventRepr{ID: e.ID, Name: e.Name, Desc: e.Desc, Date: e.Date}
	if e.Location != nil {
		loc := e.Location.Repr()
		r.Location = &loc
	}
	return r
}

func (e Event) String() string { return fmt.Sprintf("%q (Event#%d)", e.Name, e.ID) }
