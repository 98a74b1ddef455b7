package repository

import (
	"context"

	"github.com/voluntrack/voluntrack/internal/models"
)

type RegistrationRepository struct {
	db DBTX
}

func NewRegistrationRepository(db DBTX) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create registers a volunteer for an event. A second registration for the
// same pair fails with a unique violation.
func (r *RegistrationRepository) Create(ctx context.Context, eventID, volunteerID int64) (*models.Registration, error) {
	var registration models.Registration
	err := r.db.QueryRow(ctx, `
		INSERT INTO registrations (event_id, volunteer_id, status)
		VALUES ($1, $2, 'registered')
		RETURNING id, event_id, volunteer_id, status, created_at
	`, eventID, volunteerID).Scan(
		&registration.ID,
		&registration.EventID,
		&registration.VolunteerID,
		&registration.Status,
		&registration.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &registration, nil
}

func (r *RegistrationRepository) Get(ctx context.Context, eventID, volunteerID int64) (*models.Registration, error) {
	var registration models.Registration
	err := r.db.QueryRow(ctx, `
		SELECT id, event_id, volunteer_id, status, created_at
		FROM registrations
		WHERE event_id = $1 AND volunteer_id = $2
	`, eventID, volunteerID).Scan(
		&registration.ID,
		&registration.EventID,
		&registration.VolunteerID,
		&registration.Status,
		&registration.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &registration, nil
}

func (r *RegistrationRepository) UpdateStatus(
	ctx context.Context,
	eventID int64,
	volunteerID int64,
	status models.RegistrationState,
) (*models.Registration, error) {
	var registration models.Registration
	err := r.db.QueryRow(ctx, `
		UPDATE registrations
		SET status = $3, updated_at = NOW()
		WHERE event_id = $1 AND volunteer_id = $2
		RETURNING id, event_id, volunteer_id, status, created_at
	`, eventID, volunteerID, status).Scan(
		&registration.ID,
		&registration.EventID,
		&registration.VolunteerID,
		&registration.Status,
		&registration.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &registration, nil
}

func (r *RegistrationRepository) ListVolunteers(ctx context.Context, eventID int64) ([]models.EventVolunteer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.name, u.email, u.phone, r.status, r.created_at
		FROM registrations r
		JOIN users u ON u.id = r.volunteer_id
		WHERE r.event_id = $1 AND r.status <> 'cancelled'
		ORDER BY r.created_at ASC, r.id ASC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	volunteers := make([]models.EventVolunteer, 0)
	for rows.Next() {
		var volunteer models.EventVolunteer
		if err := rows.Scan(
			&volunteer.UserID,
			&volunteer.Name,
			&volunteer.Email,
			&volunteer.Phone,
			&volunteer.Status,
			&volunteer.RegisteredAt,
		); err != nil {
			return nil, err
		}
		volunteers = append(volunteers, volunteer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return volunteers, nil
}

func (r *RegistrationRepository) ListForVolunteer(ctx context.Context, volunteerID int64) ([]models.RegistrationDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			r.id, r.event_id, r.volunteer_id, r.status, r.created_at,
			e.id, e.organizer_id, COALESCE(u.name, ''), e.title, e.description, e.location, e.category,
			e.start_date, e.end_date, e.volunteers_needed,
			(SELECT COUNT(*) FROM registrations x WHERE x.event_id = e.id AND x.status <> 'cancelled'),
			e.created_at, e.updated_at
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		LEFT JOIN users u ON u.id = e.organizer_id
		WHERE r.volunteer_id = $1
		ORDER BY e.start_date ASC, r.id ASC
	`, volunteerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]models.RegistrationDetail, 0)
	for rows.Next() {
		var detail models.RegistrationDetail
		if err := rows.Scan(
			&detail.ID,
			&detail.EventID,
			&detail.VolunteerID,
			&detail.Status,
			&detail.CreatedAt,
			&detail.Event.ID,
			&detail.Event.OrganizerID,
			&detail.Event.OrganizerName,
			&detail.Event.Title,
			&detail.Event.Description,
			&detail.Event.Location,
			&detail.Event.Category,
			&detail.Event.StartDate,
			&detail.Event.EndDate,
			&detail.Event.VolunteersNeeded,
			&detail.Event.RegisteredCount,
			&detail.Event.CreatedAt,
			&detail.Event.UpdatedAt,
		); err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
