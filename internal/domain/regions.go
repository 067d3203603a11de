package domain

import "strings"

// Province enumerates the ten Zambian provinces accepted at checkout.
type Province string

const (
	ProvinceCentral      Province = "Central"
	ProvinceCopperbelt   Province = "Copperbelt"
	ProvinceEastern      Province = "Eastern"
	ProvinceLuapula      Province = "Luapula"
	ProvinceLusaka       Province = "Lusaka"
	ProvinceMuchinga     Province = "Muchinga"
	ProvinceNorthern     Province = "Northern"
	ProvinceNorthWestern Province = "North-Western"
	ProvinceSouthern     Province = "Southern"
	ProvinceWestern      Province = "Western"
)

// Provinces lists every accepted province in display order.
var Provinces = []Province{
	ProvinceCentral,
	ProvinceCopperbelt,
	ProvinceEastern,
	ProvinceLuapula,
	ProvinceLusaka,
	ProvinceMuchinga,
	ProvinceNorthern,
	ProvinceNorthWestern,
	ProvinceSouthern,
	ProvinceWestern,
}

// Region is the coarse shipping tier a province maps to.
type Region string

const (
	// RegionLusaka covers same-city delivery.
	RegionLusaka Region = "LUSAKA"
	// RegionCopperbelt covers the Copperbelt corridor.
	RegionCopperbelt Region = "COPPERBELT"
	// RegionOther covers every remaining province and unmapped input.
	RegionOther Region = "OTHER"
)

// ParseProvince normalises free-form input to a known province.
func ParseProvince(value string) (Province, bool) {
	trimmed := strings.TrimSpace(value)
	for _, p := range Provinces {
		if strings.EqualFold(string(p), trimmed) {
			return p, true
		}
	}
	return "", false
}

// RegionForProvince maps a province to its shipping tier. Anything that is
// not Lusaka or Copperbelt, including unmapped input, falls back to OTHER.
func RegionForProvince(p Province) Region {
	switch p {
	case ProvinceLusaka:
		return RegionLusaka
	case ProvinceCopperbelt:
		return RegionCopperbelt
	default:
		return RegionOther
	}
}
