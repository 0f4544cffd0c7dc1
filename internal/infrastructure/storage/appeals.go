package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/ports"
)

// AppealRepository persists canonical appeals in Postgres.
type AppealRepository struct {
	db *sqlx.DB
}

var _ ports.AppealRepository = (*AppealRepository)(nil)

// NewAppealRepository wires a connection pool.
func NewAppealRepository(db *sqlx.DB) *AppealRepository {
	return &AppealRepository{db: db}
}

type appealRow struct {
	ID                 int64     `db:"id"`
	CityID             int64     `db:"city_id"`
	AgendaItemID       *int64    `db:"agenda_item_id"`
	ReferenceNumber    *string   `db:"reference_number"`
	ProjectName        string    `db:"project_name"`
	ProjectAddress     string    `db:"project_address"`
	APN                string    `db:"apn"`
	AppellantName      string    `db:"appellant_name"`
	GroundsCategory    string    `db:"grounds_category"`
	GroundsDescription string    `db:"grounds_description"`
	Description        string    `db:"description"`
	Status             string    `db:"status"`
	Decision           *string   `db:"decision"`
	FiledDate          time.Time `db:"filed_date"`
}

func (r appealRow) toDomain() domain.Appeal {
	a := domain.Appeal{
		ID:                 r.ID,
		CityID:             r.CityID,
		AgendaItemID:       r.AgendaItemID,
		ProjectName:        r.ProjectName,
		ProjectAddress:     r.ProjectAddress,
		APN:                r.APN,
		AppellantName:      r.AppellantName,
		GroundsCategory:    r.GroundsCategory,
		GroundsDescription: r.GroundsDescription,
		Description:        r.Description,
		Status:             domain.AppealStatus(r.Status),
		FiledDate:          r.FiledDate,
	}
	if r.ReferenceNumber != nil {
		a.ReferenceNumber = *r.ReferenceNumber
	}
	if r.Decision != nil {
		d := domain.Decision(*r.Decision)
		a.Decision = &d
	}
	return a
}

const appealColumns = `id, city_id, agenda_item_id, reference_number, project_name, project_address,
	apn, appellant_name, grounds_category, grounds_description, description, status, decision, filed_date`

// GetOrCreateByReference resolves an appeal by its city-scoped reference
// number, inserting the given defaults when no appeal exists yet. Fields on an
// existing appeal are never overwritten here; progression goes through
// UpdateProgress. Returns whether a new row was created.
func (r *AppealRepository) GetOrCreateByReference(ctx context.Context, appeal domain.Appeal) (domain.Appeal, bool, error) {
	if appeal.ReferenceNumber == "" {
		return domain.Appeal{}, false, fmt.Errorf("appeal has no reference number")
	}

	insert, args, err := psql.Insert("housing_appeals").
		Columns("city_id", "agenda_item_id", "reference_number", "project_name", "project_address",
			"apn", "appellant_name", "grounds_category", "grounds_description", "description",
			"status", "decision", "filed_date").
		Values(appeal.CityID, appeal.AgendaItemID, appeal.ReferenceNumber, appeal.ProjectName,
			appeal.ProjectAddress, appeal.APN, appeal.AppellantName, appeal.GroundsCategory,
			appeal.GroundsDescription, appeal.Description, appeal.Status, decisionArg(appeal.Decision),
			appeal.FiledDate).
		Suffix("ON CONFLICT (city_id, reference_number) WHERE reference_number IS NOT NULL DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.Appeal{}, false, fmt.Errorf("build appeal insert: %w", err)
	}

	created := true
	err = r.db.QueryRowContext(ctx, insert, args...).Scan(&appeal.ID)
	if errors.Is(err, sql.ErrNoRows) {
		created = false
	} else if err != nil {
		return domain.Appeal{}, false, fmt.Errorf("insert appeal: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM housing_appeals WHERE city_id = $1 AND reference_number = $2`, appealColumns)
	var row appealRow
	if err := r.db.GetContext(ctx, &row, query, appeal.CityID, appeal.ReferenceNumber); err != nil {
		return domain.Appeal{}, false, fmt.Errorf("select appeal: %w", err)
	}

	return row.toDomain(), created, nil
}

// Create inserts an appeal that has no extractable reference number. Such
// appeals can never be merged across meetings, so every call makes a new row.
func (r *AppealRepository) Create(ctx context.Context, appeal domain.Appeal) (domain.Appeal, error) {
	insert, args, err := psql.Insert("housing_appeals").
		Columns("city_id", "agenda_item_id", "reference_number", "project_name", "project_address",
			"apn", "appellant_name", "grounds_category", "grounds_description", "description",
			"status", "decision", "filed_date").
		Values(appeal.CityID, appeal.AgendaItemID, nil, appeal.ProjectName,
			appeal.ProjectAddress, appeal.APN, appeal.AppellantName, appeal.GroundsCategory,
			appeal.GroundsDescription, appeal.Description, appeal.Status, decisionArg(appeal.Decision),
			appeal.FiledDate).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return domain.Appeal{}, fmt.Errorf("build appeal insert: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, insert, args...).Scan(&appeal.ID); err != nil {
		return domain.Appeal{}, fmt.Errorf("insert appeal: %w", err)
	}
	return appeal, nil
}

// UpdateProgress advances the appeal's status and, when supplied, its decision.
func (r *AppealRepository) UpdateProgress(ctx context.Context, appealID int64, status domain.AppealStatus, decision *domain.Decision) error {
	update := psql.Update("housing_appeals").
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", appealID)
	if decision != nil {
		update = update.Set("decision", string(*decision))
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build progress query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update appeal %d progress: %w", appealID, err)
	}
	return nil
}

// ListActive returns the prompt snapshot for every appeal in the city that is
// neither decided nor withdrawn, with each appeal's most recent hearing.
func (r *AppealRepository) ListActive(ctx context.Context, cityID int64) ([]domain.ActiveAppealContext, error) {
	const query = `
		SELECT a.reference_number, a.project_address, a.description,
		       m.meeting_date AS last_hearing_date, h.action_taken AS last_hearing_action
		FROM housing_appeals a
		LEFT JOIN LATERAL (
			SELECT hh.action_taken, hh.council_meeting_id
			FROM housing_appeal_hearings hh
			JOIN council_meetings cm ON cm.id = hh.council_meeting_id
			WHERE hh.housing_appeal_id = a.id
			ORDER BY cm.meeting_date DESC
			LIMIT 1
		) h ON TRUE
		LEFT JOIN council_meetings m ON m.id = h.council_meeting_id
		WHERE a.city_id = $1 AND a.status NOT IN ('decided', 'withdrawn')
		ORDER BY a.filed_date DESC`

	type activeRow struct {
		ReferenceNumber   *string    `db:"reference_number"`
		ProjectAddress    string     `db:"project_address"`
		Description       string     `db:"description"`
		LastHearingDate   *time.Time `db:"last_hearing_date"`
		LastHearingAction *string    `db:"last_hearing_action"`
	}

	var rows []activeRow
	if err := r.db.SelectContext(ctx, &rows, query, cityID); err != nil {
		return nil, fmt.Errorf("list active appeals: %w", err)
	}

	active := make([]domain.ActiveAppealContext, 0, len(rows))
	for _, row := range rows {
		a := domain.ActiveAppealContext{
			ProjectAddress:  row.ProjectAddress,
			Summary:         row.Description,
			LastHearingDate: row.LastHearingDate,
		}
		if row.ReferenceNumber != nil {
			a.ReferenceNumber = *row.ReferenceNumber
		}
		if row.LastHearingAction != nil {
			a.LastHearingAction = *row.LastHearingAction
		}
		active = append(active, a)
	}
	return active, nil
}

func decisionArg(d *domain.Decision) any {
	if d == nil {
		return nil
	}
	return string(*d)
}
