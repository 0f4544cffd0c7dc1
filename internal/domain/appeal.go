package domain

import (
	"fmt"
	"time"
)

// City is the jurisdiction an appeal belongs to.
type City struct {
	ID        int64
	Name      string
	Slug      string
	County    string
	StateCode string
}

// Source is one city's configured agenda website plus scraping parameters.
type Source struct {
	ID             int64
	CityID         int64
	City           City
	Fetcher        string
	BaseURL        string
	ListingPath    string
	MaxPages       int
	LookbackMonths int
	Active         bool
	LastFetchedAt  *time.Time
}

// MeetingStatus tracks a meeting through the ingestion pipeline.
type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingProcessed MeetingStatus = "processed"
	MeetingError     MeetingStatus = "error"
)

// MeetingType distinguishes regular sessions from special ones.
type MeetingType string

const (
	MeetingRegular       MeetingType = "regular"
	MeetingSpecial       MeetingType = "special"
	MeetingClosedSession MeetingType = "closed_session"
)

// BlobRef points at a stored agenda PDF.
type BlobRef struct {
	Key         string
	Filename    string
	ContentType string
	ByteSize    int64
}

// Meeting is one council session on one date, unique per (source, date).
type Meeting struct {
	ID        int64
	SourceID  int64
	Date      time.Time
	Type      MeetingType
	Status    MeetingStatus
	PDFURL    string
	PDF       *BlobRef
	FetchedAt *time.Time
}

// AgendaItem is one line entry on a meeting's agenda, before reconciliation.
type AgendaItem struct {
	ID             int64
	MeetingID      int64
	ItemNumber     *int
	Title          string
	Description    string
	ItemType       string
	ProjectAddress string
	APN            string
}

// AppealStatus is the lifecycle state of a housing appeal.
type AppealStatus string

const (
	AppealFiled     AppealStatus = "filed"
	AppealPending   AppealStatus = "pending"
	AppealHeard     AppealStatus = "heard"
	AppealDecided   AppealStatus = "decided"
	AppealWithdrawn AppealStatus = "withdrawn"
)

// Decision is the council's final disposition of an appeal.
type Decision string

const (
	DecisionGranted   Decision = "granted"
	DecisionDenied    Decision = "denied"
	DecisionContinued Decision = "continued"
	DecisionWithdrawn Decision = "withdrawn"
)

// GroundsCategories are the allowed classifications of why a project is appealed.
var GroundsCategories = []string{
	"CEQA", "design_review", "use_permit", "neighborhood_impact", "procedural", "other",
}

// Appeal is the canonical, cross-meeting record for one housing appeal case.
// Identity is (city, reference number) when a reference number exists; appeals
// without one are created once and never merged.
type Appeal struct {
	ID                 int64
	CityID             int64
	AgendaItemID       *int64
	ReferenceNumber    string
	ProjectName        string
	ProjectAddress     string
	APN                string
	AppellantName      string
	GroundsCategory    string
	GroundsDescription string
	Description        string
	Status             AppealStatus
	Decision           *Decision
	FiledDate          time.Time
}

// Active reports whether the appeal still belongs in the working set fed to
// extraction prompts.
func (a Appeal) Active() bool {
	return a.Status != AppealDecided && a.Status != AppealWithdrawn
}

// HearingType classifies what happened to an appeal at one meeting.
type HearingType string

const (
	HearingFiling        HearingType = "filing"
	HearingInitial       HearingType = "initial"
	HearingContinued     HearingType = "continued"
	HearingAction        HearingType = "action"
	HearingPublicComment HearingType = "public_comment"
	HearingDecision      HearingType = "decision"
	HearingCommunication HearingType = "communication"
	HearingOther         HearingType = "other"
)

// Hearing records what happened to one appeal at one specific meeting.
// Unique per (appeal, meeting); re-extraction must not duplicate it.
type Hearing struct {
	ID                 int64
	AppealID           int64
	MeetingID          int64
	Type               HearingType
	ActionTaken        string
	Description        string
	GroundsDescription string
	PageNumber         *int
}

// Substantive reports whether this hearing carried new content worth showing
// in full, as opposed to a compact timeline entry.
func (h Hearing) Substantive() bool {
	switch h.Type {
	case HearingInitial, HearingDecision, HearingAction:
		return true
	}
	return false
}

// PDFURLWithPage deep-links into the meeting's agenda PDF at this hearing's page.
func (h Hearing) PDFURLWithPage(meetingPDFURL string) string {
	if meetingPDFURL == "" {
		return ""
	}
	if h.PageNumber == nil {
		return meetingPDFURL
	}
	return fmt.Sprintf("%s#page=%d", meetingPDFURL, *h.PageNumber)
}

// ActiveAppealContext is the per-appeal snapshot included in extraction prompts
// so the model can recognize continuations of known appeals.
type ActiveAppealContext struct {
	ReferenceNumber   string
	ProjectAddress    string
	Summary           string
	LastHearingDate   *time.Time
	LastHearingAction string
}
