// Package domain holds the lead lifecycle vocabulary and the trigger
// condition predicates shared by the rule engine, workflow, and repositories.
package domain

// LeadStatus is one value from the closed lead status vocabulary.
type LeadStatus string

const (
	StatusNew                     LeadStatus = "new"
	StatusContacted               LeadStatus = "contacted"
	StatusInterested              LeadStatus = "interested"
	StatusToured                  LeadStatus = "toured"
	StatusWaitlisted              LeadStatus = "waitlisted"
	StatusOfferSent               LeadStatus = "offer_sent"
	StatusConfirmed               LeadStatus = "confirmed"
	StatusEnrolled                LeadStatus = "enrolled"
	StatusLost                    LeadStatus = "lost"
	StatusNotInterested           LeadStatus = "not_interested"
	StatusApproveForRegistration  LeadStatus = "approve_for_registration"
	StatusApprovedForRegistration LeadStatus = "approved_for_registration"
	StatusInvoiceSent             LeadStatus = "invoice_sent"
	StatusRegistered              LeadStatus = "registered"
	StatusDeclined                LeadStatus = "declined"
)

// statusOrder is the declaration order, used for display and reporting.
// The vocabulary declares no transition graph: any status is reachable from
// any other, and legality is enforced as policy by the workflow package,
// not structurally here.
var statusOrder = []LeadStatus{
	StatusNew,
	StatusContacted,
	StatusInterested,
	StatusToured,
	StatusWaitlisted,
	StatusOfferSent,
	StatusConfirmed,
	StatusEnrolled,
	StatusLost,
	StatusNotInterested,
	StatusApproveForRegistration,
	StatusApprovedForRegistration,
	StatusInvoiceSent,
	StatusRegistered,
	StatusDeclined,
}

var knownStatuses = func() map[LeadStatus]struct{} {
	m := make(map[LeadStatus]struct{}, len(statusOrder))
	for _, s := range statusOrder {
		m[s] = struct{}{}
	}
	return m
}()

// IsKnownStatus reports whether s is part of the status vocabulary.
func IsKnownStatus(s LeadStatus) bool {
	_, ok := knownStatuses[s]
	return ok
}

// AllStatuses returns the status vocabulary in declaration order.
// The returned slice is a copy and safe to mutate.
func AllStatuses() []LeadStatus {
	out := make([]LeadStatus, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// LeadSource describes the acquisition channel of a lead. Immutable after
// lead creation; used for reporting and rule conditions only.
type LeadSource string

const (
	SourceWebsite     LeadSource = "website"
	SourcePhone       LeadSource = "phone"
	SourceWalkIn      LeadSource = "walk_in"
	SourceReferral    LeadSource = "referral"
	SourceSocialMedia LeadSource = "social_media"
	SourceAdvertising LeadSource = "advertising"
	SourceEvent       LeadSource = "event"
	SourceOther       LeadSource = "other"
)

var sourceOrder = []LeadSource{
	SourceWebsite,
	SourcePhone,
	SourceWalkIn,
	SourceReferral,
	SourceSocialMedia,
	SourceAdvertising,
	SourceEvent,
	SourceOther,
}

var knownSources = func() map[LeadSource]struct{} {
	m := make(map[LeadSource]struct{}, len(sourceOrder))
	for _, s := range sourceOrder {
		m[s] = struct{}{}
	}
	return m
}()

// IsKnownSource reports whether s is part of the source vocabulary.
func IsKnownSource(s LeadSource) bool {
	_, ok := knownSources[s]
	return ok
}

// AllSources returns the source vocabulary in declaration order.
func AllSources() []LeadSource {
	out := make([]LeadSource, len(sourceOrder))
	copy(out, sourceOrder)
	return out
}
