package model

import "fmt"

// PlanTier is a named entitlement bundle.
type PlanTier string

const (
	PlanStarter PlanTier = "starter"
	PlanBasic   PlanTier = "basic"
	PlanPro     PlanTier = "pro"
)

// ProTTSLimit is the premium voice character allowance granted per pro activation.
const ProTTSLimit = 90000

// ProActivationDays is the fixed activation window applied on approval.
const ProActivationDays = 30

// Entitlements are the numeric caps attached to a tier.
type Entitlements struct {
	ChatsPerDay            int  `json:"chatsPerDay"`
	ImagesPerDay           int  `json:"imagesPerDay"`
	PremiumVoiceEligible   bool `json:"premiumTTS"`
	PremiumVoiceChars      int  `json:"premiumTTSChars"`
	MonthlyPriceMinorUnits int  `json:"monthlyPrice"`
}

// AllPlans lists the catalog in ascending order.
var AllPlans = []PlanTier{PlanStarter, PlanBasic, PlanPro}

// ParsePlanTier converts a stored or requested plan name into a tier.
func ParsePlanTier(name string) (PlanTier, error) {
	switch p := PlanTier(name); p {
	case PlanStarter, PlanBasic, PlanPro:
		return p, nil
	default:
		return "", fmt.Errorf("unknown plan %q", name)
	}
}

// Valid reports whether p is one of the catalog tiers.
func (p PlanTier) Valid() bool {
	_, err := ParsePlanTier(string(p))
	return err == nil
}

// Entitlements returns the catalog row for p. Tiers the code does not
// recognise get basic entitlements.
func (p PlanTier) Entitlements() Entitlements {
	switch p {
	case PlanStarter:
		return Entitlements{ChatsPerDay: 15, ImagesPerDay: 2, MonthlyPriceMinorUnits: 50}
	case PlanPro:
		return Entitlements{
			ChatsPerDay:            70,
			ImagesPerDay:           12,
			PremiumVoiceEligible:   true,
			PremiumVoiceChars:      ProTTSLimit,
			MonthlyPriceMinorUnits: 199,
		}
	default:
		return Entitlements{ChatsPerDay: 40, ImagesPerDay: 6, MonthlyPriceMinorUnits: 99}
	}
}

// LookupEntitlements resolves a raw plan name, falling back to basic.
func LookupEntitlements(name string) (PlanTier, Entitlements) {
	p, err := ParsePlanTier(name)
	if err != nil {
		return PlanBasic, PlanBasic.Entitlements()
	}
	return p, p.Entitlements()
}

// DailyLimit returns the per-day cap for the given usage type.
func (e Entitlements) DailyLimit(t UsageType) int {
	if t == UsageImage {
		return e.ImagesPerDay
	}
	return e.ChatsPerDay
}
