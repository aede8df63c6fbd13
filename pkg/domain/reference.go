package domain

import (
	"fmt"
	"strings"
)

// Location is a named geographic point.
type Location struct {
	ID   int64
	Name string   `validate:"required,max=255"`
	Lat  *float64 `validate:"omitempty,latitude"`
	Lng  *float64 `validate:"omitempty,longitude"`
}

// LocationRepr is the JSON shape of a Location.
type LocationRepr struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

func (l Location) Repr() LocationRepr {
	return LocationRepr{ID: l.ID, Name: l.Name, Lat: l.Lat, Lng: l.Lng}
}

func (l Location) String() string { return fmt.Sprintf("%q (Location#%d)", l.Name, l.ID) }

// Clone returns a copy that shares no coordinates with l.
func (l Location) Clone() Location {
	if l.Lat != nil {
		lat := *l.Lat
		l.Lat = &lat
	}
	if l.Lng != nil {
		lng := *l.Lng
		l.Lng = &lng
	}
	return l
}

func cloneLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := l.Clone()
	return &c
}

// Role names a position held within an organization.
type Role struct {
	ID   int64
	Name string `validate:"required,max=255"`
}

// RoleRepr is the JSON shape of a Role.
type RoleRepr struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (r Role) Repr() RoleRepr { return RoleRepr{ID: r.ID, Name: r.Name} }
func (r Role) String() string { return fmt.Sprintf("%q (Role#%d)", r.Name, r.ID) }

// Source is a URL citation attached to an organ, membership, relation or event.
type Source struct {
	ID  int64  `json:"sid"`
	URL string `json:"url"`
}

// Platform enumerates social media services.
type Platform int

const (
	PlatformOther Platform = iota + 1
	PlatformEmail
	PlatformPhone
	PlatformFacebook
	PlatformInstagram
	PlatformTwitter
	PlatformTelegram
	PlatformYouTube
	PlatformTikTok
	PlatformLinkedIn
	PlatformXing
	PlatformWebsite
)

var platformNames = map[Platform]string{
	PlatformOther:     "OTHER",
	PlatformEmail:     "EMAIL",
	PlatformPhone:     "PHONE",
	PlatformFacebook:  "FACEBOOK",
	PlatformInstagram: "INSTAGRAM",
	PlatformTwitter:   "TWITTER",
	PlatformTelegram:  "TELEGRAM",
	PlatformYouTube:   "YOUTUBE",
	PlatformTikTok:    "TIKTOK",
	PlatformLinkedIn:  "LINKEDIN",
	PlatformXing:      "XING",
	PlatformWebsite:   "WEBSITE",
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	_, ok := platformNames[p]
	return ok
}

// Name returns the upper-case enum name.
func (p Platform) Name() string {
	if n, ok := platformNames[p]; ok {
		return n
	}
	return fmt.Sprintf("PLATFORM(%d)", int(p))
}

// String returns the lower-case name used in representations.
func (p Platform) String() string { return strings.ToLower(p.Name()) }

// ParsePlatform resolves a platform name, case-insensitively.
func ParsePlatform(name string) (Platform, error) {
	for p, n := range platformNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return 0, Invalid("unknown platform %q", name)
}

// Socials is a social media handle owned by an organ.
type Socials struct {
	ID       int64
	Platform Platform
	URL      string
}

// SocialsRepr is the JSON shape of Socials.
type SocialsRepr struct {
	ID       int64  `json:"id"`
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

func (s Socials) Repr() SocialsRepr {
	return SocialsRepr{ID: s.ID, Platform: s.Platform.String(), URL: s.URL}
}
