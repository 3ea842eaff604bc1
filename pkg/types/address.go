package types

import (
	"fmt"
	"strings"
)

const DefaultCountry = "Thailand"

// Address is the shipping address value object frozen onto an order.
type Address struct {
	ContactName string `json:"contactName" validate:"required"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Line1       string `json:"line1" validate:"required"`
	Line2       string `json:"line2,omitempty"`
	Subdistrict string `json:"subdistrict,omitempty"`
	District    string `json:"district,omitempty"`
	Province    string `json:"province" validate:"required"`
	ZipCode     string `json:"zipCode" validate:"required"`
	Country     string `json:"country,omitempty"`
}

// Normalize trims every field and applies the default country.
func (a Address) Normalize() Address {
	out := Address{
		ContactName: strings.TrimSpace(a.ContactName),
		PhoneNumber: strings.TrimSpace(a.PhoneNumber),
		Line1:       strings.TrimSpace(a.Line1),
		Line2:       strings.TrimSpace(a.Line2),
		Subdistrict: strings.TrimSpace(a.Subdistrict),
		District:    strings.TrimSpace(a.District),
		Province:    strings.TrimSpace(a.Province),
		ZipCode:     strings.TrimSpace(a.ZipCode),
		Country:     strings.TrimSpace(a.Country),
	}
	if out.Country == "" {
		out.Country = DefaultCountry
	}
	return out
}

// Validate checks the fields a carrier needs to deliver.
func (a Address) Validate() error {
	required := map[string]string{
		"contactName": a.ContactName,
		"line1":       a.Line1,
		"province":    a.Province,
		"zipCode":     a.ZipCode,
	}
	for _, field := range []string{"contactName", "line1", "province", "zipCode"} {
		if strings.TrimSpace(required[field]) == "" {
			return fmt.Errorf("address: missing %s", field)
		}
	}
	return nil
}

// City returns the most specific locality available for gateways that expect a city.
func (a Address) City() string {
	if a.District != "" {
		return a.District
	}
	return a.Province
}
