package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"unicode/utf8"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/ports"
)

// Reconciler folds extracted agenda items into canonical appeal state: each
// item becomes an agenda-item row, resolves to a new or existing appeal, and
// records one hearing for (appeal, meeting).
type Reconciler struct {
	items    ports.AgendaItemRepository
	appeals  ports.AppealRepository
	hearings ports.HearingRepository
	logger   *slog.Logger
}

// NewReconciler wires the persistence ports.
func NewReconciler(items ports.AgendaItemRepository, appeals ports.AppealRepository, hearings ports.HearingRepository, logger *slog.Logger) *Reconciler {
	return &Reconciler{items: items, appeals: appeals, hearings: hearings, logger: logger}
}

// ItemResult is the per-item outcome of a reconciliation batch. A failed item
// carries its error and does not abort the siblings.
type ItemResult struct {
	Item   domain.ExtractedItem
	Appeal *domain.Appeal
	Err    error
}

// TouchedAppeals collects the appeals created or updated across a batch.
func TouchedAppeals(results []ItemResult) []domain.Appeal {
	var appeals []domain.Appeal
	for _, res := range results {
		if res.Appeal != nil {
			appeals = append(appeals, *res.Appeal)
		}
	}
	return appeals
}

// Reconcile processes items strictly in extraction order so that a later item
// in the same response sees appeals created by an earlier one.
func (r *Reconciler) Reconcile(ctx context.Context, city domain.City, meeting domain.Meeting, items []domain.ExtractedItem) []ItemResult {
	results := make([]ItemResult, 0, len(items))
	for _, item := range items {
		appeal, err := r.reconcileItem(ctx, city, meeting, item)
		if err != nil {
			r.warn("skipping appeal item", "city", city.Slug, "meeting", meeting.Date.Format("2006-01-02"), "error", err)
			results = append(results, ItemResult{Item: item, Err: err})
			continue
		}
		results = append(results, ItemResult{Item: item, Appeal: appeal})
	}
	return results
}

func (r *Reconciler) reconcileItem(ctx context.Context, city domain.City, meeting domain.Meeting, item domain.ExtractedItem) (*domain.Appeal, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}

	agendaItem, err := r.items.GetOrCreate(ctx, domain.AgendaItem{
		MeetingID:      meeting.ID,
		ItemNumber:     item.ItemNumber,
		Title:          truncate(item.Title, 255),
		Description:    item.Description,
		ItemType:       "appeal",
		ProjectAddress: item.ProjectAddress,
		APN:            item.APN,
	})
	if err != nil {
		return nil, fmt.Errorf("agenda item: %w", err)
	}

	appeal, err := r.resolveAppeal(ctx, city, meeting, agendaItem, item)
	if err != nil {
		return nil, err
	}

	hearing := domain.Hearing{
		AppealID:           appeal.ID,
		MeetingID:          meeting.ID,
		Type:               domain.ParseHearingType(item.HearingType),
		ActionTaken:        item.ActionTaken,
		Description:        item.AppealDescription,
		GroundsDescription: item.GroundsDescription,
		PageNumber:         item.PageNumber,
	}
	if _, _, err := r.hearings.GetOrCreate(ctx, hearing); err != nil {
		return nil, fmt.Errorf("hearing: %w", err)
	}

	return appeal, nil
}

// resolveAppeal finds or creates the canonical appeal for one item. Appeals
// without a normalized reference number are always created fresh; a recurring
// appeal with no extractable file number fragments into duplicates over time,
// which is the accepted trade-off over fuzzy matching.
func (r *Reconciler) resolveAppeal(ctx context.Context, city domain.City, meeting domain.Meeting, agendaItem domain.AgendaItem, item domain.ExtractedItem) (*domain.Appeal, error) {
	defaults := domain.Appeal{
		CityID:             city.ID,
		AgendaItemID:       &agendaItem.ID,
		ReferenceNumber:    domain.NormalizeReference(item.ReferenceNumber),
		ProjectName:        item.ProjectName,
		ProjectAddress:     coalesce(item.ProjectAddress, agendaItem.ProjectAddress),
		APN:                coalesce(item.APN, agendaItem.APN),
		AppellantName:      item.AppellantName,
		GroundsCategory:    item.GroundsCategory,
		GroundsDescription: item.GroundsDescription,
		Description:        item.AppealDescription,
		Status:             domain.ParseAppealStatus(item.AppealStatus),
		Decision:           domain.ParseDecision(item.Decision),
		FiledDate:          meeting.Date,
	}

	if defaults.ReferenceNumber == "" {
		appeal, err := r.appeals.Create(ctx, defaults)
		if err != nil {
			return nil, fmt.Errorf("create appeal: %w", err)
		}
		return &appeal, nil
	}

	appeal, created, err := r.appeals.GetOrCreateByReference(ctx, defaults)
	if err != nil {
		return nil, fmt.Errorf("resolve appeal %s: %w", defaults.ReferenceNumber, err)
	}
	if created {
		return &appeal, nil
	}

	// Known appeal: apply the one-way state ratchet, guarded against
	// out-of-order meetings reporting stale status.
	if meeting.Date.Before(appeal.FiledDate) {
		return &appeal, nil
	}

	status := domain.AdvanceStatus(appeal.Status, domain.ParseAppealStatus(item.AppealStatus))
	decision := domain.ParseDecision(item.Decision)
	if status == appeal.Status && decision == nil {
		return &appeal, nil
	}

	if err := r.appeals.UpdateProgress(ctx, appeal.ID, status, decision); err != nil {
		return nil, fmt.Errorf("advance appeal %s: %w", appeal.ReferenceNumber, err)
	}
	appeal.Status = status
	if decision != nil {
		appeal.Decision = decision
	}

	return &appeal, nil
}

func validateItem(item domain.ExtractedItem) error {
	if item.Title == "" {
		return fmt.Errorf("item has no title")
	}
	if item.GroundsCategory != "" && !slices.Contains(domain.GroundsCategories, item.GroundsCategory) {
		return fmt.Errorf("unknown grounds category %q", item.GroundsCategory)
	}
	return nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// truncate caps s at n bytes without splitting a multi-byte character, so the
// result is always valid UTF-8 for the text column.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (r *Reconciler) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
