package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memState struct {
	users    map[string]User
	projects map[string]Project
	columns  map[string]Column
	tasks    map[string]Task
}

func newMemState() *memState {
	return &memState{
		users:    make(map[string]User),
		projects: make(map[string]Project),
		columns:  make(map[string]Column),
		tasks:    make(map[string]Task),
	}
}

func (s *memState) clone() *memState {
	next := newMemState()
	for id, user := range s.users {
		user.Projects = cloneStrings(user.Projects)
		next.users[id] = user
	}
	for id, project := range s.projects {
		project.Columns = cloneStrings(project.Columns)
		project.AssignedUsers = cloneStrings(project.AssignedUsers)
		next.projects[id] = project
	}
	for id, column := range s.columns {
		column.Tasks = cloneStrings(column.Tasks)
		next.columns[id] = column
	}
	for id, task := range s.tasks {
		task.AssignedUsers = cloneStrings(task.AssignedUsers)
		next.tasks[id] = task
	}
	return next
}

// MemoryStore keeps every collection in process. Transactions take the store
// lock for their whole duration and work on a copy that replaces the live
// state only when the callback succeeds.
type MemoryStore struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.Mutex{}, state: newMemState()}
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	defer m.lock()()
	user, ok := m.state.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	user.Projects = cloneStrings(user.Projects)
	return user, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	defer m.lock()()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range m.state.users {
		if user.Email == email {
			user.Projects = cloneStrings(user.Projects)
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemoryStore) InsertUser(_ context.Context, user User) error {
	defer m.lock()()
	if _, exists := m.state.users[user.ID]; exists {
		return ErrDuplicate
	}
	user.Email = strings.ToLower(user.Email)
	for _, existing := range m.state.users {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	user.Projects = cloneStrings(user.Projects)
	m.state.users[user.ID] = user
	return nil
}

func (m *MemoryStore) GetProject(_ context.Context, id string) (Project, error) {
	defer m.lock()()
	project, ok := m.state.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return copyProject(project), nil
}

func (m *MemoryStore) ListProjects(_ context.Context, ids []string) ([]Project, error) {
	defer m.lock()()
	items := make([]Project, 0, len(ids))
	for _, id := range ids {
		if project, ok := m.state.projects[id]; ok {
			items = append(items, copyProject(project))
		}
	}
	return orderByIDs(ids, items, func(p Project) string { return p.ID }), nil
}

func (m *MemoryStore) InsertProject(_ context.Context, project Project) error {
	defer m.lock()()
	if _, exists := m.state.projects[project.ID]; exists {
		return ErrDuplicate
	}
	m.state.projects[project.ID] = copyProject(project)
	return nil
}

func (m *MemoryStore) UpdateProject(_ context.Context, project Project) error {
	defer m.lock()()
	current, ok := m.state.projects[project.ID]
	if !ok {
		return ErrNotFound
	}
	current.Title = project.Title
	current.Description = project.Description
	current.UpdatedAt = time.Now().UTC()
	m.state.projects[project.ID] = current
	return nil
}

func (m *MemoryStore) GetColumn(_ context.Context, id string) (Column, error) {
	defer m.lock()()
	column, ok := m.state.columns[id]
	if !ok {
		return Column{}, ErrNotFound
	}
	column.Tasks = cloneStrings(column.Tasks)
	return column, nil
}

func (m *MemoryStore) ListColumns(_ context.Context, ids []string) ([]Column, error) {
	defer m.lock()()
	items := make([]Column, 0, len(ids))
	for _, id := range ids {
		if column, ok := m.state.columns[id]; ok {
			column.Tasks = cloneStrings(column.Tasks)
			items = append(items, column)
		}
	}
	return orderByIDs(ids, items, func(c Column) string { return c.ID }), nil
}

func (m *MemoryStore) InsertColumn(_ context.Context, column Column) error {
	defer m.lock()()
	if _, exists := m.state.columns[column.ID]; exists {
		return ErrDuplicate
	}
	column.Tasks = cloneStrings(column.Tasks)
	m.state.columns[column.ID] = column
	return nil
}

func (m *MemoryStore) UpdateColumn(_ context.Context, column Column) error {
	defer m.lock()()
	current, ok := m.state.columns[column.ID]
	if !ok {
		return ErrNotFound
	}
	current.Title = column.Title
	current.Icon = column.Icon
	current.UpdatedAt = time.Now().UTC()
	m.state.columns[column.ID] = current
	return nil
}

func (m *MemoryStore) GetTask(_ context.Context, id string) (Task, error) {
	defer m.lock()()
	task, ok := m.state.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	task.AssignedUsers = cloneStrings(task.AssignedUsers)
	return task, nil
}

func (m *MemoryStore) ListTasks(_ context.Context, ids []string) ([]Task, error) {
	defer m.lock()()
	items := make([]Task, 0, len(ids))
	for _, id := range ids {
		if task, ok := m.state.tasks[id]; ok {
			task.AssignedUsers = cloneStrings(task.AssignedUsers)
			items = append(items, task)
		}
	}
	return orderByIDs(ids, items, func(t Task) string { return t.ID }), nil
}

func (m *MemoryStore) InsertTask(_ context.Context, task Task) error {
	defer m.lock()()
	if _, exists := m.state.tasks[task.ID]; exists {
		return ErrDuplicate
	}
	task.AssignedUsers = cloneStrings(task.AssignedUsers)
	m.state.tasks[task.ID] = task
	return nil
}

func (m *MemoryStore) UpdateTask(_ context.Context, task Task) error {
	defer m.lock()()
	current, ok := m.state.tasks[task.ID]
	if !ok {
		return ErrNotFound
	}
	current.Title = task.Title
	current.Description = task.Description
	current.ColumnTitle = task.ColumnTitle
	current.Label = task.Label
	current.LabelType = task.LabelType
	current.ExpireAt = task.ExpireAt
	current.UpdatedAt = time.Now().UTC()
	m.state.tasks[task.ID] = current
	return nil
}

func (m *MemoryStore) Push(_ context.Context, field ArrayField, id, value string, limit int) (bool, error) {
	if err := checkField(field); err != nil {
		return false, err
	}
	defer m.lock()()
	items, ok := m.state.array(field, id)
	if !ok {
		return false, ErrNotFound
	}
	if containsString(items, value) {
		return false, nil
	}
	if limit > 0 && len(items) >= limit {
		return false, ErrLimitReached
	}
	m.state.setArray(field, id, append(cloneStrings(items), value))
	return true, nil
}

func (m *MemoryStore) Pull(_ context.Context, field ArrayField, id, value string) (bool, error) {
	if err := checkField(field); err != nil {
		return false, err
	}
	defer m.lock()()
	items, ok := m.state.array(field, id)
	if !ok {
		return false, ErrNotFound
	}
	next, removed := without(items, value)
	if removed {
		m.state.setArray(field, id, next)
	}
	return removed, nil
}

func (m *MemoryStore) PullEverywhere(_ context.Context, field ArrayField, value string) (int64, error) {
	if err := checkField(field); err != nil {
		return 0, err
	}
	defer m.lock()()
	var changed int64
	for _, id := range m.state.ids(field.Collection) {
		items, _ := m.state.array(field, id)
		if next, removed := without(items, value); removed {
			m.state.setArray(field, id, next)
			changed++
		}
	}
	return changed, nil
}

func (m *MemoryStore) Referencing(_ context.Context, field ArrayField, value string) ([]string, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	defer m.lock()()
	ids := make([]string, 0)
	for _, id := range m.state.ids(field.Collection) {
		items, _ := m.state.array(field, id)
		if containsString(items, value) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryStore) Delete(_ context.Context, collection Collection, id string) (int64, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	defer m.lock()()
	switch collection {
	case Users:
		if _, ok := m.state.users[id]; ok {
			delete(m.state.users, id)
			return 1, nil
		}
	case Projects:
		if _, ok := m.state.projects[id]; ok {
			delete(m.state.projects, id)
			return 1, nil
		}
	case Columns:
		if _, ok := m.state.columns[id]; ok {
			delete(m.state.columns, id)
			return 1, nil
		}
	case Tasks:
		if _, ok := m.state.tasks[id]; ok {
			delete(m.state.tasks, id)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *MemoryStore) ListIDs(_ context.Context, collection Collection) ([]string, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	defer m.lock()()
	return m.state.ids(collection), nil
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if m.inTx {
		return fn(ctx, m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryStore{mu: m.mu, state: m.state.clone(), inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *memState) ids(collection Collection) []string {
	var ids []string
	switch collection {
	case Users:
		for id := range s.users {
			ids = append(ids, id)
		}
	case Projects:
		for id := range s.projects {
			ids = append(ids, id)
		}
	case Columns:
		for id := range s.columns {
			ids = append(ids, id)
		}
	case Tasks:
		for id := range s.tasks {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *memState) array(field ArrayField, id string) ([]string, bool) {
	switch field {
	case UserProjects:
		user, ok := s.users[id]
		return user.Projects, ok
	case ProjectColumns:
		project, ok := s.projects[id]
		return project.Columns, ok
	case ProjectAssignees:
		project, ok := s.projects[id]
		return project.AssignedUsers, ok
	case ColumnTasks:
		column, ok := s.columns[id]
		return column.Tasks, ok
	case TaskAssignees:
		task, ok := s.tasks[id]
		return task.AssignedUsers, ok
	}
	return nil, false
}

func (s *memState) setArray(field ArrayField, id string, items []string) {
	now := time.Now().UTC()
	switch field {
	case UserProjects:
		user := s.users[id]
		user.Projects, user.UpdatedAt = items, now
		s.users[id] = user
	case ProjectColumns:
		project := s.projects[id]
		project.Columns, project.UpdatedAt = items, now
		s.projects[id] = project
	case ProjectAssignees:
		project := s.projects[id]
		project.AssignedUsers, project.UpdatedAt = items, now
		s.projects[id] = project
	case ColumnTasks:
		column := s.columns[id]
		column.Tasks, column.UpdatedAt = items, now
		s.columns[id] = column
	case TaskAssignees:
		task := s.tasks[id]
		task.AssignedUsers, task.UpdatedAt = items, now
		s.tasks[id] = task
	}
}

func copyProject(project Project) Project {
	project.Columns = cloneStrings(project.Columns)
	project.AssignedUsers = cloneStrings(project.AssignedUsers)
	return project
}

func without(items []string, value string) ([]string, bool) {
	next := make([]string, 0, len(items))
	removed := false
	for _, item := range items {
		if item == value {
			removed = true
			continue
		}
		next = append(next, item)
	}
	return next, removed
}
