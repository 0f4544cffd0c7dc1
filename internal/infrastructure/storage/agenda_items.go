package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/ports"
)

// AgendaItemRepository persists raw agenda entries in Postgres.
type AgendaItemRepository struct {
	db *sqlx.DB
}

var _ ports.AgendaItemRepository = (*AgendaItemRepository)(nil)

// NewAgendaItemRepository wires a connection pool.
func NewAgendaItemRepository(db *sqlx.DB) *AgendaItemRepository {
	return &AgendaItemRepository{db: db}
}

type agendaItemRow struct {
	ID             int64  `db:"id"`
	MeetingID      int64  `db:"council_meeting_id"`
	ItemNumber     *int   `db:"item_number"`
	Title          string `db:"title"`
	Description    string `db:"description"`
	ItemType       string `db:"item_type"`
	ProjectAddress string `db:"project_address"`
	APN            string `db:"apn"`
}

func (r agendaItemRow) toDomain() domain.AgendaItem {
	return domain.AgendaItem{
		ID:             r.ID,
		MeetingID:      r.MeetingID,
		ItemNumber:     r.ItemNumber,
		Title:          r.Title,
		Description:    r.Description,
		ItemType:       r.ItemType,
		ProjectAddress: r.ProjectAddress,
		APN:            r.APN,
	}
}

const agendaItemColumns = `id, council_meeting_id, item_number, title, description, item_type, project_address, apn`

// GetOrCreate resolves the item for (meeting, item number), seeding it from
// the extracted payload on first sight. Stored fields win on lookup. Items
// with a null number are matched with IS NOT DISTINCT FROM, which keeps
// sequential reprocessing idempotent even though the unique index treats
// nulls as distinct.
func (r *AgendaItemRepository) GetOrCreate(ctx context.Context, item domain.AgendaItem) (domain.AgendaItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM agenda_items
		WHERE council_meeting_id = $1 AND item_number IS NOT DISTINCT FROM $2`, agendaItemColumns)

	var row agendaItemRow
	err := r.db.GetContext(ctx, &row, query, item.MeetingID, item.ItemNumber)
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.AgendaItem{}, fmt.Errorf("select agenda item: %w", err)
	}

	insert, args, err := psql.Insert("agenda_items").
		Columns("council_meeting_id", "item_number", "title", "description", "item_type", "project_address", "apn").
		Values(item.MeetingID, item.ItemNumber, item.Title, item.Description, item.ItemType, item.ProjectAddress, item.APN).
		Suffix("ON CONFLICT (council_meeting_id, item_number) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.AgendaItem{}, fmt.Errorf("build agenda item insert: %w", err)
	}

	err = r.db.QueryRowContext(ctx, insert, args...).Scan(&item.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost a race to a concurrent cycle; re-read the winner.
		if err := r.db.GetContext(ctx, &row, query, item.MeetingID, item.ItemNumber); err != nil {
			return domain.AgendaItem{}, fmt.Errorf("reselect agenda item: %w", err)
		}
		return row.toDomain(), nil
	}
	if err != nil {
		return domain.AgendaItem{}, fmt.Errorf("insert agenda item: %w", err)
	}

	return item, nil
}
