// Package change classifies each month's provider records against the
// previous month and the full history into status transitions and lead
// types.
package change

import "github.com/rotisserie/eris"

// Status is the month-over-month classification of one license.
type Status string

const (
	NewTypeNewAddress              Status = "NEW_TYPE_NEW_ADDRESS"
	NewTypeExistingAddress         Status = "NEW_TYPE_EXISTING_ADDRESS"
	ExistingTypeNewAddress         Status = "EXISTING_TYPE_NEW_ADDRESS"
	ExistingTypeExistingAddress    Status = "EXISTING_TYPE_EXISTING_ADDRESS"
	LostTypeExistingAddress        Status = "LOST_TYPE_EXISTING_ADDRESS"
	LostTypeLostAddress0Remain     Status = "LOST_TYPE_LOST_ADDRESS_0_REMAIN"
	LostTypeLostAddress1PlusRemain Status = "LOST_TYPE_LOST_ADDRESS_1PLUS_REMAIN"
	ReinstatedExistingAddress      Status = "REINSTATED_EXISTING_ADDRESS"
)

// LeadType is the outreach classification derived from a Status.
type LeadType string

const (
	NoLead           LeadType = ""
	SurveyLead       LeadType = "SURVEY_LEAD"
	SellerLead       LeadType = "SELLER_LEAD"
	SellerSurveyLead LeadType = "SELLER_SURVEY_LEAD"
)

var leadTypes = map[Status]LeadType{
	NewTypeNewAddress:              SurveyLead,
	NewTypeExistingAddress:         SurveyLead,
	ExistingTypeNewAddress:         SurveyLead,
	ExistingTypeExistingAddress:    SurveyLead,
	ReinstatedExistingAddress:      SurveyLead,
	LostTypeExistingAddress:        SellerSurveyLead,
	LostTypeLostAddress0Remain:     SellerLead,
	LostTypeLostAddress1PlusRemain: SellerLead,
}

// AllStatuses lists every status in reporting order.
func AllStatuses() []Status {
	return []Status{
		NewTypeNewAddress,
		NewTypeExistingAddress,
		ExistingTypeNewAddress,
		ExistingTypeExistingAddress,
		LostTypeExistingAddress,
		LostTypeLostAddress0Remain,
		LostTypeLostAddress1PlusRemain,
		ReinstatedExistingAddress,
	}
}

// LeadType maps the status to its lead type. Unknown statuses map to NoLead.
func (s Status) LeadType() LeadType {
	return leadTypes[s]
}

// IsLost reports whether the status describes a license that disappeared
// this month.
func (s Status) IsLost() bool {
	switch s {
	case LostTypeExistingAddress, LostTypeLostAddress0Remain, LostTypeLostAddress1PlusRemain:
		return true
	}
	return false
}

// ParseStatus validates a stored status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := leadTypes[st]; !ok {
		return "", eris.Errorf("change: unknown status %q", s)
	}
	return st, nil
}
