package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/voluntrack/voluntrack/internal/models"
)

type EventSort string

const (
	EventSortDate  EventSort = "date"
	EventSortTitle EventSort = "title"
)

type EventListFilter struct {
	Search      string
	Category    string
	OrganizerID int64
	UpcomingAt  *time.Time
	Sort        EventSort
	Limit       int
	Offset      int
}

type EventInput struct {
	Title            string
	Description      string
	Location         string
	Category         string
	StartDate        time.Time
	EndDate          time.Time
	VolunteersNeeded int
}

type EventRepository struct {
	db DBTX
}

func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func eventSelect() squirrel.SelectBuilder {
	return psql.Select(
		"e.id",
		"e.organizer_id",
		"COALESCE(u.name, '')",
		"e.title",
		"e.description",
		"e.location",
		"e.category",
		"e.start_date",
		"e.end_date",
		"e.volunteers_needed",
		"(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status <> 'cancelled')",
		"e.created_at",
		"e.updated_at",
	).
		From("events e").
		LeftJoin("users u ON u.id = e.organizer_id")
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var event models.Event
	err := row.Scan(
		&event.ID,
		&event.OrganizerID,
		&event.OrganizerName,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.Category,
		&event.StartDate,
		&event.EndDate,
		&event.VolunteersNeeded,
		&event.RegisteredCount,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func applyEventFilter(builder squirrel.SelectBuilder, filter EventListFilter) squirrel.SelectBuilder {
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		builder = builder.Where(squirrel.Or{
			squirrel.ILike{"e.title": pattern},
			squirrel.ILike{"e.description": pattern},
			squirrel.ILike{"e.location": pattern},
		})
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		builder = builder.Where(squirrel.Expr("lower(e.category) = lower(?)", category))
	}
	if filter.OrganizerID > 0 {
		builder = builder.Where(squirrel.Eq{"e.organizer_id": filter.OrganizerID})
	}
	if filter.UpcomingAt != nil {
		builder = builder.Where(squirrel.GtOrEq{"e.end_date": *filter.UpcomingAt})
	}
	return builder
}

// List returns one page of events matching filter and the total number of
// matches.
func (r *EventRepository) List(ctx context.Context, filter EventListFilter) ([]models.Event, int, error) {
	countSQL, countArgs, err := applyEventFilter(psql.Select("COUNT(*)").From("events e"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build event count query: %w", err)
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	builder := applyEventFilter(eventSelect(), filter)
	switch filter.Sort {
	case EventSortTitle:
		builder = builder.OrderBy("lower(e.title) ASC", "e.id ASC")
	default:
		builder = builder.OrderBy("e.start_date ASC", "e.id ASC")
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build event list query: %w", err)
	}
	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	sqlStr, args, err := eventSelect().Where(squirrel.Eq{"e.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event query: %w", err)
	}
	return scanEvent(r.db.QueryRow(ctx, sqlStr, args...))
}

func (r *EventRepository) Create(ctx context.Context, organizerID int64, input EventInput) (*models.Event, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO events (organizer_id, title, description, location, category, start_date, end_date, volunteers_needed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		organizerID,
		input.Title,
		input.Description,
		input.Location,
		input.Category,
		input.StartDate.UTC(),
		input.EndDate.UTC(),
		input.VolunteersNeeded,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Update overwrites the event's editable fields. It returns pgx.ErrNoRows
// when the event does not exist.
func (r *EventRepository) Update(ctx context.Context, id int64, input EventInput) (*models.Event, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE events
		SET title = $2,
			description = $3,
			location = $4,
			category = $5,
			start_date = $6,
			end_date = $7,
			volunteers_needed = $8,
			updated_at = NOW()
		WHERE id = $1
	`,
		id,
		input.Title,
		input.Description,
		input.Location,
		input.Category,
		input.StartDate.UTC(),
		input.EndDate.UTC(),
		input.VolunteersNeeded,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return r.GetByID(ctx, id)
}
