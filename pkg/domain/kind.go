// Package domain defines the entity hierarchy, relationship records and value
// types shared by the organcore store, resolver and command line tools.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the concrete type of a record.
type Kind string

// Supported kinds. Person, Organization, Nation and Business share the organ
// id space; every other kind owns its own sequence.
const (
	KindOrgan        Kind = "organ"
	KindPerson       Kind = "person"
	KindOrganization Kind = "organization"
	KindNation       Kind = "nation"
	KindBusiness     Kind = "business"
	KindLocation     Kind = "location"
	KindRole         Kind = "role"
	KindMembership   Kind = "membership"
	KindRelation     Kind = "relation"
	KindEvent        Kind = "event"
	KindSource       Kind = "source"
	KindSocials      Kind = "socials"
)

// IsOrgan reports whether ids of this kind live in the shared organ id space.
func (k Kind) IsOrgan() bool {
	switch k {
	case KindOrgan, KindPerson, KindOrganization, KindNation, KindBusiness:
		return true
	}
	return false
}

// IsOrganization reports whether the kind is an organization or one of its subtypes.
func (k Kind) IsOrganization() bool {
	return k == KindOrganization || k == KindNation || k == KindBusiness
}

// Ref is a narrow cross-kind pointer. It names a record without loading it;
// callers resolve it to a full entity only where the entity is needed.
type Ref struct {
	ID   int64 `json:"id"`
	Kind Kind  `json:"kind"`
}

func (r Ref) String() string { return fmt.Sprintf("%s#%d", r.Kind, r.ID) }

// ParseID converts a textual identifier into a store id.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed id %q", ErrInvalidArgument, s)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: id must be positive, got %d", ErrInvalidArgument, id)
	}
	return id, nil
}

// MustParseID is ParseID for ids that are known to be well formed. It panics
// on malformed input.
func MustParseID(s string) int64 {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}
