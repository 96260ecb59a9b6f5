package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore keeps each collection in a table; id arrays are TEXT[]
// columns so push and pull are single-row UPDATE statements.
type PostgresStore struct {
	db *sql.DB
	q  dbtx
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const uniqueViolation = "23505"

func classifyWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func decodeArray(raw []byte) []string {
	items := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &items)
	}
	if items == nil {
		items = []string{}
	}
	return items
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.q.QueryRowContext(ctx, `
		SELECT id, email, password_hash, to_json(projects), created_at, updated_at
		FROM users WHERE id=$1
	`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.q.QueryRowContext(ctx, `
		SELECT id, email, password_hash, to_json(projects), created_at, updated_at
		FROM users WHERE email=LOWER($1)
	`, email))
}

func (s *PostgresStore) scanUser(row *sql.Row) (User, error) {
	var user User
	var projectsRaw []byte
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &projectsRaw, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}
	user.Projects = decodeArray(projectsRaw)
	return user, nil
}

func (s *PostgresStore) InsertUser(ctx context.Context, user User) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, projects, created_at, updated_at)
		VALUES ($1, LOWER($2), $3, $4::text[], $5, $6)
	`, user.ID, user.Email, user.PasswordHash, cloneStrings(user.Projects), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", classifyWriteErr(err))
	}
	return nil
}

const projectColumns = `id, title, description, to_json(columns), to_json(assigned_users), created_at, updated_at`

func scanProject(scan func(dest ...any) error) (Project, error) {
	var project Project
	var columnsRaw, assigneesRaw []byte
	if err := scan(&project.ID, &project.Title, &project.Description, &columnsRaw, &assigneesRaw, &project.CreatedAt, &project.UpdatedAt); err != nil {
		return Project{}, err
	}
	project.Columns = decodeArray(columnsRaw)
	project.AssignedUsers = decodeArray(assigneesRaw)
	return project, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (Project, error) {
	project, err := scanProject(s.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("read project: %w", err)
	}
	return project, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, ids []string) ([]Project, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ANY($1::text[])`, cloneStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0, len(ids))
	for rows.Next() {
		project, err := scanProject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return orderByIDs(ids, items, func(p Project) string { return p.ID }), nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (id, title, description, columns, assigned_users, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text[], $5::text[], $6, $7)
	`, project.ID, project.Title, project.Description, cloneStrings(project.Columns), cloneStrings(project.AssignedUsers), project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", classifyWriteErr(err))
	}
	return nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, project Project) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE projects SET title=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, project.ID, project.Title, project.Description)
	return affectedOrNotFound(result, err, "update project")
}

const columnColumns = `id, title, icon, project_id, to_json(tasks), created_at, updated_at`

func scanColumn(scan func(dest ...any) error) (Column, error) {
	var column Column
	var tasksRaw []byte
	if err := scan(&column.ID, &column.Title, &column.Icon, &column.ProjectID, &tasksRaw, &column.CreatedAt, &column.UpdatedAt); err != nil {
		return Column{}, err
	}
	column.Tasks = decodeArray(tasksRaw)
	return column, nil
}

func (s *PostgresStore) GetColumn(ctx context.Context, id string) (Column, error) {
	column, err := scanColumn(s.q.QueryRowContext(ctx, `SELECT `+columnColumns+` FROM columns WHERE id=$1`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Column{}, ErrNotFound
	}
	if err != nil {
		return Column{}, fmt.Errorf("read column: %w", err)
	}
	return column, nil
}

func (s *PostgresStore) ListColumns(ctx context.Context, ids []string) ([]Column, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+columnColumns+` FROM columns WHERE id = ANY($1::text[])`, cloneStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	items := make([]Column, 0, len(ids))
	for rows.Next() {
		column, err := scanColumn(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		items = append(items, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return orderByIDs(ids, items, func(c Column) string { return c.ID }), nil
}

func (s *PostgresStore) InsertColumn(ctx context.Context, column Column) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO columns (id, title, icon, project_id, tasks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::text[], $6, $7)
	`, column.ID, column.Title, column.Icon, column.ProjectID, cloneStrings(column.Tasks), column.CreatedAt, column.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert column: %w", classifyWriteErr(err))
	}
	return nil
}

func (s *PostgresStore) UpdateColumn(ctx context.Context, column Column) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE columns SET title=$2, icon=$3, updated_at=NOW() WHERE id=$1
	`, column.ID, column.Title, column.Icon)
	return affectedOrNotFound(result, err, "update column")
}

const taskColumns = `id, title, description, column_title, label, label_type, expire_at, to_json(assigned_users), created_at, updated_at`

func scanTask(scan func(dest ...any) error) (Task, error) {
	var task Task
	var expireAt sql.NullTime
	var assigneesRaw []byte
	if err := scan(&task.ID, &task.Title, &task.Description, &task.ColumnTitle, &task.Label, &task.LabelType, &expireAt, &assigneesRaw, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return Task{}, err
	}
	if expireAt.Valid {
		at := expireAt.Time.UTC()
		task.ExpireAt = &at
	}
	task.AssignedUsers = decodeArray(assigneesRaw)
	return task, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (Task, error) {
	task, err := scanTask(s.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("read task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, ids []string) ([]Task, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ANY($1::text[])`, cloneStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0, len(ids))
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return orderByIDs(ids, items, func(t Task) string { return t.ID }), nil
}

func nullTime(at *time.Time) sql.NullTime {
	if at == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: at.UTC(), Valid: true}
}

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, column_title, label, label_type, expire_at, assigned_users, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text[], $9, $10)
	`, task.ID, task.Title, task.Description, task.ColumnTitle, task.Label, task.LabelType, nullTime(task.ExpireAt), cloneStrings(task.AssignedUsers), task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", classifyWriteErr(err))
	}
	return nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task Task) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE tasks
		SET title=$2, description=$3, column_title=$4, label=$5, label_type=$6, expire_at=$7, updated_at=NOW()
		WHERE id=$1
	`, task.ID, task.Title, task.Description, task.ColumnTitle, task.Label, task.LabelType, nullTime(task.ExpireAt))
	return affectedOrNotFound(result, err, "update task")
}

func affectedOrNotFound(result sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Push appends in one statement: the row lock taken by the CTE serialises
// concurrent pushes, so the cardinality check cannot be raced past.
func (s *PostgresStore) Push(ctx context.Context, field ArrayField, id, value string, limit int) (bool, error) {
	if err := checkField(field); err != nil {
		return false, err
	}
	table, col := string(field.Collection), field.Name
	query := fmt.Sprintf(`
		WITH cur AS (SELECT %[2]s AS items FROM %[1]s WHERE id=$1 FOR UPDATE)
		UPDATE %[1]s t SET %[2]s = array_append(t.%[2]s, $2::text), updated_at=NOW()
		FROM cur
		WHERE t.id=$1
			AND NOT ($2::text = ANY(cur.items))
			AND ($3::int <= 0 OR cardinality(cur.items) < $3::int)
	`, table, col)
	result, err := s.q.ExecContext(ctx, query, id, value, limit)
	if err != nil {
		return false, fmt.Errorf("push %s: %w", field, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("push %s rows: %w", field, err)
	}
	if affected > 0 {
		return true, nil
	}

	var present bool
	var size int
	err = s.q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT $2::text = ANY(%[2]s), cardinality(%[2]s) FROM %[1]s WHERE id=$1`, table, col),
		id, value,
	).Scan(&present, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", field, err)
	}
	if present {
		return false, nil
	}
	if limit > 0 && size >= limit {
		return false, ErrLimitReached
	}
	return false, fmt.Errorf("push %s: no row updated", field)
}

func (s *PostgresStore) Pull(ctx context.Context, field ArrayField, id, value string) (bool, error) {
	if err := checkField(field); err != nil {
		return false, err
	}
	table, col := string(field.Collection), field.Name
	result, err := s.q.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %[1]s SET %[2]s = array_remove(%[2]s, $2::text), updated_at=NOW() WHERE id=$1 AND $2::text = ANY(%[2]s)`, table, col),
		id, value,
	)
	if err != nil {
		return false, fmt.Errorf("pull %s: %w", field, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pull %s rows: %w", field, err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	if err := s.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id=$1)`, table), id).Scan(&exists); err != nil {
		return false, fmt.Errorf("inspect %s: %w", field, err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *PostgresStore) PullEverywhere(ctx context.Context, field ArrayField, value string) (int64, error) {
	if err := checkField(field); err != nil {
		return 0, err
	}
	result, err := s.q.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %[1]s SET %[2]s = array_remove(%[2]s, $1::text), updated_at=NOW() WHERE $1::text = ANY(%[2]s)`, field.Collection, field.Name),
		value,
	)
	if err != nil {
		return 0, fmt.Errorf("pull %s everywhere: %w", field, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pull %s everywhere rows: %w", field, err)
	}
	return affected, nil
}

func (s *PostgresStore) Referencing(ctx context.Context, field ArrayField, value string) ([]string, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %[1]s WHERE $1::text = ANY(%[2]s) ORDER BY id`, field.Collection, field.Name),
		value,
	)
	if err != nil {
		return nil, fmt.Errorf("referencing %s: %w", field, err)
	}
	return collectIDs(rows)
}

func (s *PostgresStore) Delete(ctx context.Context, collection Collection, id string) (int64, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	result, err := s.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, collection), id)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete from %s rows: %w", collection, err)
	}
	return affected, nil
}

func (s *PostgresStore) ListIDs(ctx context.Context, collection Collection) ([]string, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, collection))
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", collection, err)
	}
	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &PostgresStore{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}
