// Package board implements the kanban use cases on top of the document
// store: containment-based access checks, creation quotas, keeping parent
// id arrays consistent with their children, and cascading deletes.
package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"taskboard/internal/access"
	"taskboard/internal/search"
	"taskboard/internal/store"
	"taskboard/internal/util"
)

// CleanupScheduler removes a deleted project from every member's list
// outside the request that deleted it.
type CleanupScheduler interface {
	ScheduleProjectCleanup(ctx context.Context, projectID string) error
}

type TaskIndex interface {
	SearchTasks(ctx context.Context, q search.Query) ([]string, error)
	IndexTasks(tasks []search.TaskDocument)
	RemoveTasks(ids []string)
}

type Options struct {
	Limits  Limits
	Cleanup CleanupScheduler
	Index   TaskIndex
}

type Service struct {
	store    store.Store
	access   *access.Resolver
	limits   *LimitEnforcer
	linker   *Linker
	cascade  *CascadeDeleter
	repairer *Repairer
	cleanup  CleanupScheduler
	index    TaskIndex
	now      func() time.Time
}

func NewService(s store.Store, opts Options) *Service {
	limits := opts.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	enforcer := NewLimitEnforcer(limits)
	linker := NewLinker(enforcer)
	cascade := NewCascadeDeleter(linker)
	return &Service{
		store:    s,
		access:   access.NewResolver(s),
		limits:   enforcer,
		linker:   linker,
		cascade:  cascade,
		repairer: NewRepairer(s, cascade),
		cleanup:  opts.Cleanup,
		index:    opts.Index,
		now:      time.Now,
	}
}

// Principal loads the caller's membership list. Callers treat
// store.ErrNotFound as an unknown user.
func (s *Service) Principal(ctx context.Context, userID string) (access.Principal, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return access.Principal{}, fmt.Errorf("load principal: %w", err)
	}
	return access.Principal{UserID: user.ID, Email: user.Email, Projects: user.Projects}, nil
}

func (s *Service) deny(p access.Principal, action, resource, message string) error {
	log.Printf("access: denied user=%s action=%s resource=%s", p.UserID, action, resource)
	return accessDenied(message)
}

func (s *Service) canAccessColumn(ctx context.Context, p access.Principal, columnID string) (bool, error) {
	ok, err := s.access.CanAccessColumn(ctx, p, columnID)
	if err != nil {
		return false, fmt.Errorf("check column access: %w", err)
	}
	return ok, nil
}

func (s *Service) canAccessTask(ctx context.Context, p access.Principal, columnID, taskID string) (bool, error) {
	ok, err := s.access.CanAccessTask(ctx, p, columnID, taskID)
	if err != nil {
		return false, fmt.Errorf("check task access: %w", err)
	}
	return ok, nil
}

var defaultColumns = []struct{ title, icon string }{
	{"To-Do", "todo"},
	{"In Progress", "inprogress"},
	{"Done", "done"},
}

// CreateProject stores the project with its default columns and an example
// task, and adds it to the creator's projects, all in one transaction.
func (s *Service) CreateProject(ctx context.Context, p access.Principal, in ProjectInput) (ProjectView, error) {
	in, err := in.normalize()
	if err != nil {
		return ProjectView{}, err
	}
	if err := s.limits.CheckProjectQuota(p); err != nil {
		return ProjectView{}, err
	}

	now := s.now().UTC()
	project := store.Project{ID: util.NewID(), Title: in.Title, Description: in.Description, CreatedAt: now, UpdatedAt: now}
	example := store.Task{
		ID:        util.NewID(),
		Title:     "Example Task",
		Label:     "feature",
		LabelType: "info",
		ExpireAt:  &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var todoID string

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.InsertProject(ctx, project); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if err := s.linker.LinkChild(ctx, tx, store.UserProjects, p.UserID, project.ID, s.limits.Limits().ProjectsPerUser); err != nil {
			return err
		}
		for _, def := range defaultColumns {
			column := store.Column{ID: util.NewID(), Title: def.title, Icon: def.icon, ProjectID: project.ID, CreatedAt: now, UpdatedAt: now}
			if err := tx.InsertColumn(ctx, column); err != nil {
				return fmt.Errorf("insert column: %w", err)
			}
			if err := s.linker.LinkChild(ctx, tx, store.ProjectColumns, project.ID, column.ID, s.limits.Limits().ColumnsPerProject); err != nil {
				return err
			}
			if todoID == "" {
				todoID = column.ID
			}
		}
		if err := tx.InsertTask(ctx, example); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return s.linker.LinkChild(ctx, tx, store.ColumnTasks, todoID, example.ID, 0)
	})
	if err != nil {
		return ProjectView{}, err
	}

	s.syncIndex(example.ID)
	return s.populateProject(ctx, project.ID)
}

func (s *Service) GetProject(ctx context.Context, p access.Principal, projectID string) (ProjectView, error) {
	if err := requireID(projectID, "project_id"); err != nil {
		return ProjectView{}, err
	}
	if !s.access.CanAccessProject(p, projectID) {
		return ProjectView{}, s.deny(p, "read", "project:"+projectID, "Can't access that project.")
	}
	return s.populateProject(ctx, projectID)
}

// ListProjects returns every project the principal belongs to, in
// membership order.
func (s *Service) ListProjects(ctx context.Context, p access.Principal) ([]ProjectView, error) {
	projects, err := s.store.ListProjects(ctx, p.Projects)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	views := make([]ProjectView, 0, len(projects))
	for _, project := range projects {
		view, err := s.populate(ctx, project)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// UpdateProject writes the patched fields over the stored project.
func (s *Service) UpdateProject(ctx context.Context, p access.Principal, projectID string, patch ProjectPatch) (ProjectView, error) {
	if err := requireID(projectID, "project_id"); err != nil {
		return ProjectView{}, err
	}
	if !s.access.CanAccessProject(p, projectID) {
		return ProjectView{}, s.deny(p, "update", "project:"+projectID, "Can't access that project.")
	}
	current, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return ProjectView{}, notFound("Project is not exists.")
	}
	if err != nil {
		return ProjectView{}, fmt.Errorf("load project: %w", err)
	}
	in, err := patch.onto(current).normalize()
	if err != nil {
		return ProjectView{}, err
	}
	err = s.store.UpdateProject(ctx, store.Project{ID: projectID, Title: in.Title, Description: in.Description})
	if errors.Is(err, store.ErrNotFound) {
		return ProjectView{}, notFound("Project is not exists.")
	}
	if err != nil {
		return ProjectView{}, fmt.Errorf("update project: %w", err)
	}
	return s.populateProject(ctx, projectID)
}

// DeleteProject cascades synchronously and leaves removing the project from
// other members to the cleanup job.
func (s *Service) DeleteProject(ctx context.Context, p access.Principal, projectID string) error {
	if err := requireID(projectID, "project_id"); err != nil {
		return err
	}
	if !s.access.CanAccessProject(p, projectID) {
		return s.deny(p, "delete", "project:"+projectID, "Can't access that project.")
	}

	var deleted []string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		deleted, err = s.cascade.DeleteProject(ctx, tx, projectID, p.UserID)
		return err
	})
	if err != nil {
		return err
	}

	s.scheduleCleanup(projectID)
	s.syncIndex(deleted...)
	return nil
}

func (s *Service) scheduleCleanup(projectID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.cleanup != nil {
		err := s.cleanup.ScheduleProjectCleanup(ctx, projectID)
		if err == nil {
			return
		}
		log.Printf("cleanup: schedule project %s failed, scrubbing inline: %v", projectID, err)
	}
	if _, err := s.store.PullEverywhere(ctx, store.UserProjects, projectID); err != nil {
		log.Printf("cleanup: scrub project %s: %v", projectID, err)
	}
}

func (s *Service) CreateColumn(ctx context.Context, p access.Principal, projectID string, in ColumnInput) (ColumnView, error) {
	if err := requireID(projectID, "project_id"); err != nil {
		return ColumnView{}, err
	}
	if !s.access.CanAccessProject(p, projectID) {
		return ColumnView{}, s.deny(p, "create_column", "project:"+projectID, "Can't mutate that project.")
	}
	in, err := in.normalize()
	if err != nil {
		return ColumnView{}, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return ColumnView{}, notFound("Project is not exists.")
	}
	if err != nil {
		return ColumnView{}, fmt.Errorf("load project: %w", err)
	}
	if err := s.limits.CheckColumnQuota(project); err != nil {
		return ColumnView{}, err
	}

	now := s.now().UTC()
	column := store.Column{ID: util.NewID(), Title: in.Title, Icon: in.Icon, ProjectID: projectID, CreatedAt: now, UpdatedAt: now}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.InsertColumn(ctx, column); err != nil {
			return fmt.Errorf("insert column: %w", err)
		}
		return s.linker.LinkChild(ctx, tx, store.ProjectColumns, projectID, column.ID, s.limits.Limits().ColumnsPerProject)
	})
	if err != nil {
		return ColumnView{}, err
	}
	return columnView(column, nil), nil
}

func (s *Service) GetColumn(ctx context.Context, p access.Principal, columnID string) (ColumnView, error) {
	if err := requireID(columnID, "column_id"); err != nil {
		return ColumnView{}, err
	}
	ok, err := s.canAccessColumn(ctx, p, columnID)
	if err != nil {
		return ColumnView{}, err
	}
	if !ok {
		return ColumnView{}, s.deny(p, "read", "column:"+columnID, "Can't access that column.")
	}
	column, err := s.store.GetColumn(ctx, columnID)
	if errors.Is(err, store.ErrNotFound) {
		return ColumnView{}, notFound("Column is not exists.")
	}
	if err != nil {
		return ColumnView{}, fmt.Errorf("load column: %w", err)
	}
	tasks, err := s.taskMap(ctx, column.Tasks)
	if err != nil {
		return ColumnView{}, err
	}
	return columnView(column, tasks), nil
}

func (s *Service) UpdateColumn(ctx context.Context, p access.Principal, columnID string, patch ColumnPatch) (ColumnView, error) {
	if err := requireID(columnID, "column_id"); err != nil {
		return ColumnView{}, err
	}
	ok, err := s.canAccessColumn(ctx, p, columnID)
	if err != nil {
		return ColumnView{}, err
	}
	if !ok {
		return ColumnView{}, s.deny(p, "update", "column:"+columnID, "Column not exists or cannot be mutated")
	}
	current, err := s.store.GetColumn(ctx, columnID)
	if errors.Is(err, store.ErrNotFound) {
		return ColumnView{}, notFound("Column is not exists.")
	}
	if err != nil {
		return ColumnView{}, fmt.Errorf("load column: %w", err)
	}
	in, err := patch.onto(current).normalize()
	if err != nil {
		return ColumnView{}, err
	}
	err = s.store.UpdateColumn(ctx, store.Column{ID: columnID, Title: in.Title, Icon: in.Icon})
	if errors.Is(err, store.ErrNotFound) {
		return ColumnView{}, notFound("Column is not exists.")
	}
	if err != nil {
		return ColumnView{}, fmt.Errorf("update column: %w", err)
	}
	return s.GetColumn(ctx, p, columnID)
}

// DeleteColumn requires the column to be listed by the given project, not
// just by some project the principal can reach.
func (s *Service) DeleteColumn(ctx context.Context, p access.Principal, columnID, projectID string) error {
	if err := requireID(columnID, "column_id"); err != nil {
		return err
	}
	if err := requireID(projectID, "project_id"); err != nil {
		return err
	}
	if !s.access.CanAccessProject(p, projectID) {
		return s.deny(p, "delete", "project:"+projectID, "Can't mutate that project and its objects.")
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load project: %w", err)
	}
	if errors.Is(err, store.ErrNotFound) || !contains(project.Columns, columnID) {
		return s.deny(p, "delete", "column:"+columnID, "Can't mutate that column and its objects.")
	}

	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load column: %w", err)
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		_, err := s.cascade.DeleteColumn(ctx, tx, columnID, projectID)
		return err
	})
	if err != nil {
		return err
	}
	// covers deleted tasks and shared ones that lost a column
	s.syncIndex(column.Tasks...)
	return nil
}

func (s *Service) CreateTask(ctx context.Context, p access.Principal, columnID string, in TaskInput) (TaskView, error) {
	if err := requireID(columnID, "column_id"); err != nil {
		return TaskView{}, err
	}
	ok, err := s.canAccessColumn(ctx, p, columnID)
	if err != nil {
		return TaskView{}, err
	}
	if !ok {
		return TaskView{}, s.deny(p, "create_task", "column:"+columnID, "Column not exists or cannot be mutated")
	}
	fields, err := in.normalize()
	if err != nil {
		return TaskView{}, err
	}

	now := s.now().UTC()
	task := store.Task{
		ID:          util.NewID(),
		Title:       fields.title,
		Description: fields.description,
		ColumnTitle: fields.columnTitle,
		Label:       fields.label,
		LabelType:   fields.labelType,
		ExpireAt:    fields.expireAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.InsertTask(ctx, task); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return s.linker.LinkChild(ctx, tx, store.ColumnTasks, columnID, task.ID, 0)
	})
	if err != nil {
		return TaskView{}, err
	}
	s.syncIndex(task.ID)
	return taskView(task), nil
}

func (s *Service) UpdateTask(ctx context.Context, p access.Principal, columnID, taskID string, patch TaskPatch) (TaskView, error) {
	if err := s.authorizeTask(ctx, p, "update", columnID, taskID); err != nil {
		return TaskView{}, err
	}
	current, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return TaskView{}, notFound("Task is not exists.")
	}
	if err != nil {
		return TaskView{}, fmt.Errorf("load task: %w", err)
	}
	fields, err := patch.onto(current).normalize()
	if err != nil {
		return TaskView{}, err
	}
	err = s.store.UpdateTask(ctx, store.Task{
		ID:          taskID,
		Title:       fields.title,
		Description: fields.description,
		ColumnTitle: fields.columnTitle,
		Label:       fields.label,
		LabelType:   fields.labelType,
		ExpireAt:    fields.expireAt,
	})
	if errors.Is(err, store.ErrNotFound) {
		return TaskView{}, notFound("Task is not exists.")
	}
	if err != nil {
		return TaskView{}, fmt.Errorf("update task: %w", err)
	}
	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return TaskView{}, notFound("Task is not exists.")
	}
	if err != nil {
		return TaskView{}, fmt.Errorf("load task: %w", err)
	}
	s.syncIndex(taskID)
	return taskView(task), nil
}

// DeleteTask removes the task record and every column reference to it.
func (s *Service) DeleteTask(ctx context.Context, p access.Principal, columnID, taskID string) error {
	if err := s.authorizeTask(ctx, p, "delete", columnID, taskID); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		return s.cascade.DeleteTask(ctx, tx, taskID)
	})
	if err != nil {
		return err
	}
	s.syncIndex(taskID)
	return nil
}

// authorizeTask checks column access first so the caller learns which half
// of the containment chain failed.
func (s *Service) authorizeTask(ctx context.Context, p access.Principal, action, columnID, taskID string) error {
	if err := requireID(taskID, "task_id"); err != nil {
		return err
	}
	if err := requireID(columnID, "column_id"); err != nil {
		return err
	}
	ok, err := s.canAccessColumn(ctx, p, columnID)
	if err != nil {
		return err
	}
	if !ok {
		return s.deny(p, action, "column:"+columnID, "Column not exists or cannot be mutated")
	}
	ok, err = s.canAccessTask(ctx, p, columnID, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return s.deny(p, action, "task:"+taskID, "Task not exists or cannot be mutated")
	}
	return nil
}

// AddTaskToColumn links an existing task the principal can already reach
// into another accessible column.
func (s *Service) AddTaskToColumn(ctx context.Context, p access.Principal, columnID, taskID string) error {
	if err := requireID(columnID, "column_id"); err != nil {
		return err
	}
	if err := requireID(taskID, "task_id"); err != nil {
		return err
	}
	ok, err := s.canAccessColumn(ctx, p, columnID)
	if err != nil {
		return err
	}
	if !ok {
		return s.deny(p, "link_task", "column:"+columnID, "Column not exists or cannot be mutated")
	}
	if _, err := s.store.GetTask(ctx, taskID); errors.Is(err, store.ErrNotFound) {
		return notFound("Task is not exists.")
	} else if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	ok, err = s.access.CanAccessTaskViaAnyColumn(ctx, p, taskID)
	if err != nil {
		return fmt.Errorf("check task access: %w", err)
	}
	if !ok {
		return s.deny(p, "link_task", "task:"+taskID, "Task not exists or cannot be mutated")
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		return s.linker.LinkChild(ctx, tx, store.ColumnTasks, columnID, taskID, 0)
	})
	if err != nil {
		return err
	}
	s.syncIndex(taskID)
	return nil
}

// RemoveTaskFromColumn unlinks the task and deletes it once no column holds
// it anymore.
func (s *Service) RemoveTaskFromColumn(ctx context.Context, p access.Principal, columnID, taskID string) error {
	if err := s.authorizeTask(ctx, p, "unlink_task", columnID, taskID); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := s.linker.UnlinkChild(ctx, tx, store.ColumnTasks, columnID, taskID); err != nil {
			return err
		}
		_, err := s.cascade.deleteIfUnreferenced(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return err
	}
	s.syncIndex(taskID)
	return nil
}

// AddUserToProject makes an existing user a member of the project and
// records their email as a collaborator.
func (s *Service) AddUserToProject(ctx context.Context, p access.Principal, projectID, email string) (string, error) {
	if err := requireID(projectID, "currentProjectId"); err != nil {
		return "", err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", validationError("emailForAddUserInProject is required.")
	}
	if !s.access.CanAccessProject(p, projectID) {
		return "", s.deny(p, "invite", "project:"+projectID, "Can't access that project.")
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", notFound("User Doesn't exist")
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if contains(user.Projects, projectID) {
		return "", conflict("User Already assigned in this project")
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := s.linker.LinkChild(ctx, tx, store.UserProjects, user.ID, projectID, 0); err != nil {
			return err
		}
		return s.linker.LinkChild(ctx, tx, store.ProjectAssignees, projectID, email, 0)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(" %q this User assign in this Project", email), nil
}

// ListProjectCollaborators returns the emails invited into the project.
func (s *Service) ListProjectCollaborators(ctx context.Context, p access.Principal, projectID string) ([]string, error) {
	if err := requireID(projectID, "currentProjectId"); err != nil {
		return nil, err
	}
	if !s.access.CanAccessProject(p, projectID) {
		return nil, s.deny(p, "read", "project:"+projectID, "Can't access that project.")
	}
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Project is not exists.")
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return project.AssignedUsers, nil
}

// AssignUserToTask works without a column id by checking access through any
// column that lists the task.
func (s *Service) AssignUserToTask(ctx context.Context, p access.Principal, columnID, taskID, who string) error {
	if err := requireID(taskID, "task_id"); err != nil {
		return err
	}
	who = strings.TrimSpace(who)
	if who == "" {
		return validationError("selectedUserForTask is required.")
	}

	var ok bool
	var err error
	if columnID != "" {
		if err := requireID(columnID, "column_id"); err != nil {
			return err
		}
		ok, err = s.canAccessTask(ctx, p, columnID, taskID)
	} else {
		ok, err = s.access.CanAccessTaskViaAnyColumn(ctx, p, taskID)
	}
	if err != nil {
		return fmt.Errorf("check task access: %w", err)
	}
	if !ok {
		return s.deny(p, "assign", "task:"+taskID, "Task not exists or cannot be mutated")
	}

	added, err := s.store.Push(ctx, store.TaskAssignees, taskID, who, 0)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Task is not exists.")
	}
	if err != nil {
		return fmt.Errorf("assign user: %w", err)
	}
	if !added {
		return conflict("User already assigned in this task.")
	}
	return nil
}

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchTasks matches tasks in columns the principal can reach. Without a
// usable index it scans those columns in process.
func (s *Service) SearchTasks(ctx context.Context, p access.Principal, query string, limit int) ([]TaskView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError("q is required.")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	projects, err := s.store.ListProjects(ctx, p.Projects)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var columnIDs []string
	for _, project := range projects {
		columnIDs = append(columnIDs, project.Columns...)
	}
	if len(columnIDs) == 0 {
		return []TaskView{}, nil
	}

	if s.index != nil {
		ids, err := s.index.SearchTasks(ctx, search.Query{Text: query, ColumnIDs: columnIDs, Limit: limit})
		if err == nil {
			return s.loadReachable(ctx, columnIDs, ids)
		}
		if !errors.Is(err, search.ErrUnavailable) {
			log.Printf("search: falling back to store scan: %v", err)
		}
	}
	return s.scanTasks(ctx, columnIDs, query, limit)
}

// loadReachable loads index hits and drops any the given columns no longer
// list. The index is updated asynchronously and may lag behind moves.
func (s *Service) loadReachable(ctx context.Context, columnIDs, ids []string) ([]TaskView, error) {
	columns, err := s.store.ListColumns(ctx, columnIDs)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	reachable := make(map[string]bool)
	for _, column := range columns {
		for _, id := range column.Tasks {
			reachable[id] = true
		}
	}
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if reachable[id] {
			kept = append(kept, id)
		}
	}
	tasks, err := s.store.ListTasks(ctx, kept)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return taskViews(tasks), nil
}

func (s *Service) scanTasks(ctx context.Context, columnIDs []string, query string, limit int) ([]TaskView, error) {
	columns, err := s.store.ListColumns(ctx, columnIDs)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	var taskIDs []string
	for _, column := range columns {
		taskIDs = append(taskIDs, column.Tasks...)
	}
	tasks, err := s.store.ListTasks(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	needle := strings.ToLower(query)
	matched := make([]store.Task, 0)
	for _, task := range tasks {
		haystack := strings.ToLower(task.Title + "\n" + task.Description + "\n" + task.Label)
		if strings.Contains(haystack, needle) {
			matched = append(matched, task)
			if len(matched) == limit {
				break
			}
		}
	}
	return taskViews(matched), nil
}

// Repair runs the dangling reference scan and drops deleted tasks from the
// index.
func (s *Service) Repair(ctx context.Context) (RepairReport, error) {
	report, err := s.repairer.Run(ctx)
	s.syncIndex(report.DeletedTaskIDs...)
	return report, err
}

// syncIndex re-reads the tasks after commit and pushes their current state
// (or their absence) to the index. It never blocks the caller.
func (s *Service) syncIndex(taskIDs ...string) {
	if s.index == nil || len(taskIDs) == 0 {
		return
	}
	ids := append([]string(nil), taskIDs...)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var docs []search.TaskDocument
		var removed []string
		for _, id := range ids {
			task, err := s.store.GetTask(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				removed = append(removed, id)
				continue
			}
			if err != nil {
				log.Printf("search: load task %s: %v", id, err)
				continue
			}
			columns, err := s.store.Referencing(ctx, store.ColumnTasks, id)
			if err != nil {
				log.Printf("search: task %s columns: %v", id, err)
				continue
			}
			docs = append(docs, search.TaskDocument{
				ID:          task.ID,
				Title:       task.Title,
				Description: task.Description,
				Label:       task.Label,
				LabelType:   task.LabelType,
				ColumnIDs:   columns,
			})
		}
		s.index.IndexTasks(docs)
		s.index.RemoveTasks(removed)
	}()
}

func (s *Service) populateProject(ctx context.Context, projectID string) (ProjectView, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return ProjectView{}, notFound("Project is not exists.")
	}
	if err != nil {
		return ProjectView{}, fmt.Errorf("load project: %w", err)
	}
	return s.populate(ctx, project)
}

func (s *Service) populate(ctx context.Context, project store.Project) (ProjectView, error) {
	columns, err := s.store.ListColumns(ctx, project.Columns)
	if err != nil {
		return ProjectView{}, fmt.Errorf("list columns: %w", err)
	}
	var taskIDs []string
	for _, column := range columns {
		taskIDs = append(taskIDs, column.Tasks...)
	}
	tasks, err := s.taskMap(ctx, taskIDs)
	if err != nil {
		return ProjectView{}, err
	}
	return projectView(project, columns, tasks), nil
}

func (s *Service) taskMap(ctx context.Context, ids []string) (map[string]store.Task, error) {
	tasks, err := s.store.ListTasks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	byID := make(map[string]store.Task, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
	}
	return byID, nil
}

func taskViews(tasks []store.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, taskView(task))
	}
	return views
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
