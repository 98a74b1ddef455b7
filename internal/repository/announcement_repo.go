package repository

import (
	"context"

	"github.com/voluntrack/voluntrack/internal/models"
)

type AnnouncementRepository struct {
	db DBTX
}

func NewAnnouncementRepository(db DBTX) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO announcements (author_id, title, body, audience)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, announcement.AuthorID, announcement.Title, announcement.Body, announcement.Audience).
		Scan(&announcement.ID, &announcement.CreatedAt)
}

// ListForAudiences returns announcements addressed to any of audiences,
// newest first.
func (r *AnnouncementRepository) ListForAudiences(ctx context.Context, audiences []models.Audience) ([]models.Announcement, error) {
	values := make([]string, 0, len(audiences))
	for _, audience := range audiences {
		values = append(values, string(audience))
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(author_id, 0), title, body, audience, created_at
		FROM announcements
		WHERE audience = ANY($1)
		ORDER BY created_at DESC, id DESC
	`, values)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	announcements := make([]models.Announcement, 0)
	for rows.Next() {
		var announcement models.Announcement
		if err := rows.Scan(
			&announcement.ID,
			&announcement.AuthorID,
			&announcement.Title,
			&announcement.Body,
			&announcement.Audience,
			&announcement.CreatedAt,
		); err != nil {
			return nil, err
		}
		announcements = append(announcements, announcement)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return announcements, nil
}
