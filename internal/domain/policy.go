package domain

import (
	"strings"
	"unicode"
)

// NormalizeReference reduces a raw extracted reference number to the city case
// number alone. Extraction often tacks related planning case numbers onto the
// end ("260021; 2024-011561CUA"); only the first token identifies the appeal.
// Returns "" when no usable reference is present.
func NormalizeReference(raw string) string {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || unicode.IsSpace(r)
	})
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

var validStatuses = map[AppealStatus]bool{
	AppealFiled:     true,
	AppealPending:   true,
	AppealHeard:     true,
	AppealDecided:   true,
	AppealWithdrawn: true,
}

// AdvanceStatus applies the status ratchet: an already-known appeal never
// regresses to "filed" on re-extraction, and unknown status strings are
// ignored. Status otherwise follows whatever the latest hearing reported.
func AdvanceStatus(current, proposed AppealStatus) AppealStatus {
	if proposed == AppealFiled || !validStatuses[proposed] {
		return current
	}
	return proposed
}

var validDecisions = map[Decision]bool{
	DecisionGranted:   true,
	DecisionDenied:    true,
	DecisionContinued: true,
	DecisionWithdrawn: true,
}

// ParseDecision maps an extracted decision string to a Decision, or nil when
// the item carries no (or an unrecognized) decision.
func ParseDecision(raw string) *Decision {
	d := Decision(strings.TrimSpace(strings.ToLower(raw)))
	if !validDecisions[d] {
		return nil
	}
	return &d
}

// ParseHearingType maps an extracted hearing type to a HearingType, defaulting
// to "other" for anything outside the known set.
func ParseHearingType(raw string) HearingType {
	switch h := HearingType(strings.TrimSpace(strings.ToLower(raw))); h {
	case HearingFiling, HearingInitial, HearingContinued, HearingAction,
		HearingPublicComment, HearingDecision, HearingCommunication, HearingOther:
		return h
	}
	return HearingOther
}

// ParseAppealStatus maps an extracted status string to an AppealStatus,
// defaulting to "filed" when unrecognized.
func ParseAppealStatus(raw string) AppealStatus {
	s := AppealStatus(strings.TrimSpace(strings.ToLower(raw)))
	if !validStatuses[s] {
		return AppealFiled
	}
	return s
}
