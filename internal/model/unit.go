package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Unit is a target city and the number of reviews wanted for it.
type Unit struct {
	Name              string `json:"name"`
	TargetCount       int    `json:"targetCount"`
	ExternalReference string `json:"externalReference"`
}

// Location is a resolved place for a candidate.
type Location struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	PlaceID          string  `json:"placeId"`
	DisplayName      string  `json:"displayName,omitempty"`
	FormattedAddress string  `json:"formattedAddress,omitempty"`
}

// Candidate is a cafe proposed by the generation service for a unit.
// Location is attached once resolution succeeds.
type Candidate struct {
	Name          string    `json:"cafeName"`
	Address       string    `json:"cafeAddress"`
	Excerpt       string    `json:"excerpt"`
	Unit          string    `json:"city"`
	UnitReference string    `json:"cityReference,omitempty"`
	Location      *Location `json:"location,omitempty"`
}

// Key returns a stable identity for the candidate within its unit.
func (c Candidate) Key() string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	sum := sha256.Sum256([]byte(norm(c.Unit) + "|" + norm(c.Name) + "|" + norm(c.Address)))
	return hex.EncodeToString(sum[:])
}

// PlaceID returns the resolved place id, or "" when unresolved.
func (c Candidate) PlaceID() string {
	if c.Location == nil {
		return ""
	}
	return c.Location.PlaceID
}

// FileSlug renders a unit name for use in artifact file names: lowercase,
// with every rune that is not a letter or digit replaced by an underscore so
// names such as "Winston/Salem" stay in one directory.
func FileSlug(unit string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, strings.ToLower(strings.TrimSpace(unit)))
}
