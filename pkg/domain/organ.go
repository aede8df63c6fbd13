package domain

import "fmt"

// Organ is any participant held in the shared organ id space: a natural
// person or an organization of some kind.
type Organ interface {
	OrganID() int64
	Kind() Kind
	Biography() string
	// Representation returns the layered JSON shape of the concrete kind.
	Representation() any
	String() string
}

// Organizational is implemented by Organization and its subtypes.
type Organizational interface {
	Organ
	Org() Organization
}

// RefOf returns the narrow reference for an organ.
func RefOf(o Organ) Ref { return Ref{ID: o.OrganID(), Kind: o.Kind()} }

// OrganBase holds the fields every organ carries.
type OrganBase struct {
	ID  int64
	Bio string
}

func (o OrganBase) OrganID() int64    { return o.ID }
func (o OrganBase) Biography() string { return o.Bio }

// OrganRepr is the base JSON shape shared by every organ kind.
type OrganRepr struct {
	ID  int64  `json:"id"`
	Bio string `json:"bio"`
}

func (o OrganBase) organRepr() OrganRepr { return OrganRepr{ID: o.ID, Bio: o.Bio} }

// Person is a natural person.
type Person struct {
	OrganBase
	FirstName string `validate:"required,max=255"`
	LastName  string `validate:"required,max=255"`
	BirthDate Date
	DeathDate Date
}

// PersonRepr extends OrganRepr with personal fields.
type PersonRepr struct {
	OrganRepr
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	BirthDate Date   `json:"birthdate,omitzero"`
	DeathDate Date   `json:"deathdate,omitzero"`
}

func (p Person) Kind() Kind { return KindPerson }

// FullName joins first and last name.
func (p Person) FullName() string { return p.FirstName + " " + p.LastName }

// Repr returns the typed representation.
func (p Person) Repr() PersonRepr {
	return PersonRepr{
		OrganRepr: p.organRepr(),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		BirthDate: p.BirthDate,
		DeathDate: p.DeathDate,
	}
}

func (p Person) Representation() any { return p.Repr() }

func (p Person) String() string {
	return fmt.Sprintf("%q (Person#%d)", p.FullName(), p.ID)
}

// Organization is a grouping of natural or non-natural persons.
type Organization struct {
	OrganBase
	Name        string `validate:"required,max=255"`
	Established Date
	Dissolved   Date
}

// OrganizationRepr extends OrganRepr with organization fields.
type OrganizationRepr struct {
	OrganRepr
	Name        string `json:"name"`
	Established Date   `json:"established,omitzero"`
	Dissolved   Date   `json:"dissolved,omitzero"`
}

func (o Organization) Kind() Kind        { return KindOrganization }
func (o Organization) Org() Organization { return o }

// Repr returns the typed representation.
func (o Organization) Repr() OrganizationRepr {
	return OrganizationRepr{
		OrganRepr:   o.organRepr(),
		Name:        o.Name,
		Established: o.Established,
		Dissolved:   o.Dissolved,
	}
}

func (o Organization) Representation() any { return o.Repr() }

func (o Organization) String() string {
	return fmt.Sprintf("%q (Organization#%d)", o.Name, o.ID)
}

// Nation is an organization with an optional capital.
type Nation struct {
	Organization
	Capital *Location
}

// NationRepr extends OrganizationRepr with the capital location.
type NationRepr struct {
	OrganizationRepr
	Location *LocationRepr `json:"location,omitempty"`
}

func (n Nation) Kind() Kind { return KindNation }

// Clone returns a copy whose capital is not shared with n.
func (n Nation) Clone() Nation {
	n.Capital = cloneLocation(n.Capital)
	return n
}

// Repr returns the typed representation.
func (n Nation) Repr() NationRepr {
	r := NationRepr{OrganizationRepr: n.Organization.Repr()}
	if n.Capital != nil {
		loc := n.Capital.Repr()
		r.Location = &loc
	}
	return r
}

func (n Nation) Representation() any { return n.Repr() }

func (n Nation) String() string {
	return fmt.Sprintf("%q (Nation#%d)", n.Name, n.ID)
}

// Business tags an organization as a commercial entity.
type Business struct {
	Organization
}

func (b Business) Kind() Kind { return KindBusiness }

func (b Business) Representation() any { return b.Organization.Repr() }

func (b Business) String() string {
	return fmt.Sprintf("%q (Business#%d)", b.Name, b.ID)
}
