package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderRecord_KeyNormalizes(t *testing.T) {
	t.Parallel()

	a := ProviderRecord{ProviderType: "nursing_home", ProviderName: "Provider  A", Address: "123 main st"}
	b := ProviderRecord{ProviderType: "NURSING_HOME", ProviderName: "PROVIDER A ", Address: "123 MAIN ST"}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, a.RecordKey(), b.RecordKey())
	assert.Equal(t, "123 MAIN ST", a.AddressKey())
}

func TestProviderRecord_KeyIncludesType(t *testing.T) {
	t.Parallel()

	a := ProviderRecord{ProviderType: "NURSING_HOME", ProviderName: "A", Address: "1 X"}
	b := ProviderRecord{ProviderType: "ASSISTED_LIVING_HOME", ProviderName: "A", Address: "1 X"}
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.RecordKey(), b.RecordKey())
}

func TestProviderRecord_FullAddress(t *testing.T) {
	t.Parallel()

	r := ProviderRecord{Address: "123 MAIN ST", City: "PHOENIX", Zip: "85001"}
	assert.Equal(t, "123 MAIN ST, PHOENIX, 85001", r.FullAddress())
	assert.Equal(t, "123 MAIN ST", ProviderRecord{Address: "123 MAIN ST"}.FullAddress())
	assert.Equal(t, NewPeriod(2025, 3), ProviderRecord{Year: 2025, Month: 3}.Period())
}
