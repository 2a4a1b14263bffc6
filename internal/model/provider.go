// Package model defines the shared record types that flow through the
// monthly licensing pipeline.
package model

import "strings"

// ProviderRecord is one licensed facility observed in one month.
type ProviderRecord struct {
	ProviderName string   `json:"provider_name"`
	Address      string   `json:"address"`
	City         string   `json:"city,omitempty"`
	Zip          string   `json:"zip,omitempty"`
	ProviderType string   `json:"provider_type"`
	Capacity     *int     `json:"capacity,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	County       string   `json:"county,omitempty"`
	Month        int      `json:"month"`
	Year         int      `json:"year"`
}

// ProviderKey is the durable month-over-month identity of a license:
// provider type, provider name and street address. It is not globally
// unique; the same name and address under two provider types are two keys.
type ProviderKey struct {
	ProviderType string
	ProviderName string
	Address      string
}

// RecordKey is the (provider name, address) pair used as the grouping unit.
type RecordKey struct {
	ProviderName string
	Address      string
}

// Key returns the record's durable identity with whitespace and case
// normalized.
func (r ProviderRecord) Key() ProviderKey {
	return ProviderKey{
		ProviderType: normField(r.ProviderType),
		ProviderName: normField(r.ProviderName),
		Address:      normField(r.Address),
	}
}

// RecordKey returns the record's grouping pair.
func (r ProviderRecord) RecordKey() RecordKey {
	return RecordKey{ProviderName: normField(r.ProviderName), Address: normField(r.Address)}
}

// AddressKey returns the normalized street address.
func (r ProviderRecord) AddressKey() string {
	return normField(r.Address)
}

// Period returns the calendar month the record was observed in.
func (r ProviderRecord) Period() Period {
	return NewPeriod(r.Year, r.Month)
}

// FullAddress joins street, city and zip for display.
func (r ProviderRecord) FullAddress() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Address, r.City, r.Zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func normField(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}
