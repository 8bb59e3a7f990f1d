package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/plantcare/internal/domain"
	"github.com/ErlanBelekov/plantcare/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const plantColumns = `id, user_id, name, species, interval_days, reminder_hour, reminder_minute,
		       last_watered_at, created_at, updated_at`

// invalid_text_representation: a malformed uuid can never match a row.
const pgInvalidTextRepresentation = "22P02"

// querier is the part of pgxpool.Pool and pgxpool.Conn the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type lockedConnKey struct{}

type PlantRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPlantRepository(pool *pgxpool.Pool, logger *slog.Logger) *PlantRepository {
	return &PlantRepository{pool: pool, logger: logger.With("component", "plant_repo")}
}

// db returns the connection holding the current plant lock, if any, so work
// done under WithPlantLock does not need a second pool connection.
func (r *PlantRepository) db(ctx context.Context) querier {
	if conn, ok := ctx.Value(lockedConnKey{}).(*pgxpool.Conn); ok {
		return conn
	}
	return r.pool
}

// WithPlantLock holds a session advisory lock keyed on the plant id for the
// duration of fn. The API server and cmd/resync take the same lock.
func (r *PlantRepository) WithPlantLock(ctx context.Context, plantID string, fn func(ctx context.Context) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1))`, plantID); err != nil {
		return fmt.Errorf("lock plant %s: %w", plantID, err)
	}
	defer func() {
		_, err := conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock(hashtext($1))`, plantID)
		if err != nil {
			// A session lock must not go back to the pool; closing the
			// connection drops it and Release discards the conn.
			r.logger.ErrorContext(ctx, "unlock plant", "plant_id", plantID, "error", err)
			_ = conn.Conn().Close(context.WithoutCancel(ctx))
		}
	}()

	return fn(context.WithValue(ctx, lockedConnKey{}, conn))
}

func (r *PlantRepository) GetWateringState(ctx context.Context, id string) (domain.WateringState, error) {
	query := `SELECT ` + plantColumns + `
		FROM plants
		WHERE id = $1`

	p, err := scanPlant(r.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return domain.WateringState{}, err
	}
	return p.WateringState(), nil
}

func (r *PlantRepository) Create(ctx context.Context, p *domain.Plant) (*domain.Plant, error) {
	interval, hour, minute := cadenceColumns(p.Cadence)

	query := `
		INSERT INTO plants (
			user_id, name, species, interval_days, reminder_hour, reminder_minute, last_watered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + plantColumns

	row := r.db(ctx).QueryRow(ctx, query,
		p.UserID, p.Name, p.Species, interval, hour, minute, p.LastWateredAt,
	)
	return scanPlant(row)
}

func (r *PlantRepository) GetByID(ctx context.Context, id, userID string) (*domain.Plant, error) {
	query := `SELECT ` + plantColumns + `
		FROM plants
		WHERE id = $1 AND user_id = $2`

	return scanPlant(r.db(ctx).QueryRow(ctx, query, id, userID))
}

func (r *PlantRepository) List(ctx context.Context, input repository.ListPlantsInput) ([]*domain.Plant, error) {
	args := []any{input.UserID}
	where := []string{"user_id = $1"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM plants
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		plantColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		if isInvalidText(err) {
			return nil, domain.ErrInvalidCursor
		}
		return nil, fmt.Errorf("list plants: %w", err)
	}
	defer rows.Close()

	var plants []*domain.Plant
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, err
		}
		plants = append(plants, p)
	}
	if err := rows.Err(); err != nil {
		if isInvalidText(err) {
			return nil, domain.ErrInvalidCursor
		}
		return nil, fmt.Errorf("iterate plants: %w", err)
	}
	return plants, nil
}

func (r *PlantRepository) SetCadence(ctx context.Context, id, userID string, cadence *domain.CadenceSpec) (*domain.Plant, error) {
	interval, hour, minute := cadenceColumns(cadence)

	query := `
		UPDATE plants
		SET interval_days = $3, reminder_hour = $4, reminder_minute = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + plantColumns

	return scanPlant(r.db(ctx).QueryRow(ctx, query, id, userID, interval, hour, minute))
}

func (r *PlantRepository) RecordWatering(ctx context.Context, id, userID string, at time.Time) (*domain.Plant, error) {
	query := `
		UPDATE plants
		SET last_watered_at = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + plantColumns

	return scanPlant(r.db(ctx).QueryRow(ctx, query, id, userID, at))
}

func (r *PlantRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM plants WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		if isInvalidText(err) {
			return domain.ErrPlantNotFound
		}
		return fmt.Errorf("delete plant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlantNotFound
	}
	return nil
}

func (r *PlantRepository) ListWateringStates(ctx context.Context, afterID string, limit int) ([]domain.WateringState, error) {
	args := []any{}
	where := "TRUE"
	if afterID != "" {
		args = append(args, afterID)
		where = "id > $1"
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM plants
		WHERE %s
		ORDER BY id ASC
		LIMIT $%d`, plantColumns, where, len(args))

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list watering states: %w", err)
	}
	defer rows.Close()

	var states []domain.WateringState
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, p.WateringState())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watering states: %w", err)
	}
	r.logger.DebugContext(ctx, "loaded watering states", "after_id", afterID, "count", len(states))
	return states, nil
}

func cadenceColumns(c *domain.CadenceSpec) (interval, hour, minute *int) {
	if c == nil {
		return nil, nil, nil
	}
	i, h, m := c.IntervalDays, c.ReminderTime.Hour, c.ReminderTime.Minute
	return &i, &h, &m
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlant(row rowScanner) (*domain.Plant, error) {
	var p domain.Plant
	var interval, hour, minute *int
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Species, &interval, &hour, &minute,
		&p.LastWateredAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, domain.ErrPlantNotFound
		}
		return nil, fmt.Errorf("scan plant: %w", err)
	}

	// The table's CHECK keeps the three cadence columns all-null or all-set.
	if interval != nil && hour != nil && minute != nil {
		c, err := domain.NewCadence(*interval, domain.TimeOfDay{Hour: *hour, Minute: *minute})
		if err != nil {
			return nil, fmt.Errorf("stored cadence for plant %s: %w", p.ID, err)
		}
		p.Cadence = &c
	}
	return &p, nil
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation
}
