package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarseek/engine/internal/models"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const opportunityCols = `id, title, organization, description, category, type,
	amount, stipend, deadline, requirements, website, created_at, updated_at`

func scanOpportunity(scan func(dest ...any) error) (models.Opportunity, error) {
	var o models.Opportunity
	err := scan(
		&o.ID, &o.Title, &o.Organization, &o.Description, &o.Category, &o.Type,
		&o.Amount, &o.Stipend, &o.Deadline, &o.Requirements, &o.Website,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// aliasedCols prefixes every column in opportunityCols with a table alias
// for use in joins.
func aliasedCols(alias string) string {
	cols := strings.Split(opportunityCols, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

// activeClause keeps opportunities whose deadline has not passed. Missing
// deadlines count as active; many awards run on a rolling basis.
func activeClause() string {
	return "(deadline IS NULL OR deadline >= NOW())"
}

// ListOpportunities returns the catalog, optionally restricted to active
// entries. Filtering and ranking happen in process; the catalog is small
// enough that the engine works on full snapshots.
func (s *Store) ListOpportunities(ctx context.Context, activeOnly bool) ([]models.Opportunity, error) {
	query := fmt.Sprintf("SELECT %s FROM opportunities", opportunityCols)
	if activeOnly {
		query += " WHERE " + activeClause()
	}
	query += " ORDER BY deadline ASC NULLS LAST, title ASC"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing opportunities: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// ActiveOpportunities is the catalog snapshot shape the alert radar
// consumes.
func (s *Store) ActiveOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	return s.ListOpportunities(ctx, true)
}

func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	query := fmt.Sprintf("SELECT %s FROM opportunities WHERE id = $1", opportunityCols)
	o, err := scanOpportunity(s.pool.QueryRow(ctx, query, id).Scan)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) UpsertOpportunity(ctx context.Context, o models.Opportunity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (id, title, organization, description, category, type,
			amount, stipend, deadline, requirements, website, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			organization = EXCLUDED.organization,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			type = EXCLUDED.type,
			amount = EXCLUDED.amount,
			stipend = EXCLUDED.stipend,
			deadline = EXCLUDED.deadline,
			requirements = EXCLUDED.requirements,
			website = EXCLUDED.website,
			updated_at = EXCLUDED.updated_at
	`, o.ID, o.Title, o.Organization, o.Description, o.Category, o.Type,
		o.Amount, o.Stipend, o.Deadline, o.Requirements, o.Website,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting opportunity %s: %w", o.ID, err)
	}
	return nil
}

// Saved opportunities

func (s *Store) SaveOpportunity(ctx context.Context, userID, oppID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO saved_opportunities (user_id, opportunity_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, opportunity_id) DO NOTHING
	`, userID, oppID)
	return err
}

func (s *Store) UnsaveOpportunity(ctx context.Context, userID, oppID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM saved_opportunities
		WHERE user_id = $1 AND opportunity_id = $2
	`, userID, oppID)
	return err
}

func (s *Store) ClearSaved(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM saved_opportunities WHERE user_id = $1", userID)
	return err
}

func (s *Store) CountSaved(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM saved_opportunities WHERE user_id = $1", userID).Scan(&count)
	return count, err
}

func (s *Store) GetSavedIDs(ctx context.Context, userID uuid.UUID) (models.SavedSet, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT opportunity_id FROM saved_opportunities WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	saved := models.NewSavedSet()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		saved.Add(id)
	}
	return saved, rows.Err()
}

func (s *Store) GetSavedOpportunities(ctx context.Context, userID uuid.UUID) ([]models.Opportunity, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM opportunities o
		JOIN saved_opportunities so ON o.id = so.opportunity_id
		WHERE so.user_id = $1
		ORDER BY so.saved_at DESC
	`, aliasedCols("o")), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// Profiles

func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, name, field_of_study, grade_level, gpa, country, gender, avatar, updated_at
		FROM profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Name, &p.FieldOfStudy, &p.GradeLevel, &p.GPA,
		&p.Country, &p.Gender, &p.Avatar, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p models.UserProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, name, field_of_study, grade_level, gpa, country, gender, avatar, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			field_of_study = EXCLUDED.field_of_study,
			grade_level = EXCLUDED.grade_level,
			gpa = EXCLUDED.gpa,
			country = EXCLUDED.country,
			gender = EXCLUDED.gender,
			avatar = EXCLUDED.avatar,
			updated_at = NOW()
	`, p.UserID, p.Name, p.FieldOfStudy, p.GradeLevel, p.GPA, p.Country, p.Gender, p.Avatar)
	return err
}

// Alert settings

func (s *Store) GetAlertSettings(ctx context.Context, userID uuid.UUID) (models.AlertSettings, error) {
	var settings models.AlertSettings
	var categories, urgencies []string
	err := s.pool.QueryRow(ctx, `
		SELECT min_amount, max_amount, categories, urgencies,
			push_notifications, email_notifications, scan_frequency
		FROM alert_settings WHERE user_id = $1
	`, userID).Scan(&settings.MinAmount, &settings.MaxAmount, &categories, &urgencies,
		&settings.PushNotifications, &settings.EmailNotifications, &settings.ScanFrequency)
	if err == pgx.ErrNoRows {
		return models.DefaultAlertSettings(), nil
	}
	if err != nil {
		return settings, err
	}

	for _, c := range categories {
		settings.Categories = append(settings.Categories, models.Category(c))
	}
	for _, u := range urgencies {
		settings.Urgencies = append(settings.Urgencies, models.Urgency(u))
	}
	return settings, nil
}

func (s *Store) UpsertAlertSettings(ctx context.Context, userID uuid.UUID, settings models.AlertSettings) error {
	categories := make([]string, 0, len(settings.Categories))
	for _, c := range settings.Categories {
		categories = append(categories, string(c))
	}
	urgencies := make([]string, 0, len(settings.Urgencies))
	for _, u := range settings.Urgencies {
		urgencies = append(urgencies, string(u))
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_settings (user_id, min_amount, max_amount, categories, urgencies,
			push_notifications, email_notifications, scan_frequency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			min_amount = EXCLUDED.min_amount,
			max_amount = EXCLUDED.max_amount,
			categories = EXCLUDED.categories,
			urgencies = EXCLUDED.urgencies,
			push_notifications = EXCLUDED.push_notifications,
			email_notifications = EXCLUDED.email_notifications,
			scan_frequency = EXCLUDED.scan_frequency,
			updated_at = NOW()
	`, userID, settings.MinAmount, settings.MaxAmount, categories, urgencies,
		settings.PushNotifications, settings.EmailNotifications, settings.ScanFrequency)
	return err
}

// Alerts

func (s *Store) InsertAlert(ctx context.Context, userID uuid.UUID, a models.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (id, user_id, opportunity_id, name, amount, description,
			deadline, match_percent, urgency, is_urgent, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, userID, a.OpportunityID, a.Name, a.Amount, a.Description,
		a.Deadline, a.MatchPercent, a.Urgency, a.IsUrgent, a.Read, a.CreatedAt)
	return err
}

func (s *Store) ListAlerts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, opportunity_id, name, amount, description, deadline,
			match_percent, urgency, is_urgent, read, created_at
		FROM alerts WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.OpportunityID, &a.Name, &a.Amount, &a.Description,
			&a.Deadline, &a.MatchPercent, &a.Urgency, &a.IsUrgent, &a.Read, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *Store) MarkAlertRead(ctx context.Context, userID, alertID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE alerts SET read = TRUE WHERE id = $1 AND user_id = $2", alertID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStats returns catalog-level counts for the stats endpoint.
func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total, active int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities").Scan(&total); err != nil {
		return nil, err
	}
	query := "SELECT COUNT(*) FROM opportunities WHERE " + activeClause()
	if err := s.pool.QueryRow(ctx, query).Scan(&active); err != nil {
		return nil, err
	}
	stats["total_opportunities"] = total
	stats["active_opportunities"] = active

	rows, err := s.pool.Query(ctx,
		"SELECT category, COUNT(*) FROM opportunities GROUP BY category ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byCategory := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		byCategory[category] = count
	}
	stats["by_category"] = byCategory

	typeRows, err := s.pool.Query(ctx,
		"SELECT type, COUNT(*) FROM opportunities GROUP BY type ORDER BY type")
	if err != nil {
		return nil, err
	}
	defer typeRows.Close()

	byType := make(map[string]int)
	for typeRows.Next() {
		var typ string
		var count int
		if err := typeRows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		byType[typ] = count
	}
	stats["by_type"] = byType

	var nearest *time.Time
	err = s.pool.QueryRow(ctx,
		"SELECT MIN(deadline) FROM opportunities WHERE deadline >= NOW()").Scan(&nearest)
	if err != nil {
		return nil, err
	}
	if nearest != nil {
		stats["next_deadline"] = nearest.UTC()
	}

	return stats, nil
}
