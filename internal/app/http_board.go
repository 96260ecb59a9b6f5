package app

import (
	"net/http"

	"taskboard/internal/access"
	"taskboard/internal/board"
)

func (s *HTTPServer) handleCreateProject(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	project, err := s.board.CreateProject(r.Context(), principal, projectInput(p))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Project successfully created.", project)
}

// handleGetProjects returns one project when project_id is given, every
// member project otherwise.
func (s *HTTPServer) handleGetProjects(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if projectID := p.str("project_id"); projectID != "" {
		project, err := s.board.GetProject(r.Context(), principal, projectID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeOK(w, "", project)
		return
	}
	projects, err := s.board.ListProjects(r.Context(), principal)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "results": projects})
}

func (s *HTTPServer) handleUpdateProject(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	project, err := s.board.UpdateProject(r.Context(), principal, p.str("project_id"), projectPatch(p))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Project successfully updated.", project)
}

func (s *HTTPServer) handleDeleteProject(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	projectID := p.str("project_id")
	if err := s.board.DeleteProject(r.Context(), principal, projectID); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Project successfully deleted.", map[string]any{"_id": projectID, "deletedCount": 1})
}

func (s *HTTPServer) handleCreateColumn(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	column, err := s.board.CreateColumn(r.Context(), principal, p.str("project_id"), columnInput(p))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Column successfully created.", column)
}

func (s *HTTPServer) handleGetColumn(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	column, err := s.board.GetColumn(r.Context(), principal, p.str("column_id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "", column)
}

func (s *HTTPServer) handleUpdateColumn(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	column, err := s.board.UpdateColumn(r.Context(), principal, p.str("column_id"), columnPatch(p))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Column successfully updated.", column)
}

func (s *HTTPServer) handleDeleteColumn(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	columnID := p.str("column_id")
	if err := s.board.DeleteColumn(r.Context(), principal, columnID, p.str("project_id")); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Column successfully deleted.", map[string]any{"_id": columnID, "deletedCount": 1})
}

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	task, err := s.board.CreateTask(r.Context(), principal, p.str("column_id"), taskInput(p))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Task successfully created.", task)
}

func (s *HTTPServer) handleUpdateTask(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	task, err := s.board.UpdateTask(r.Context(), principal, p.str("column_id"), p.str("task_id"), taskPatch(p))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Task successfully updated.", task)
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	taskID := p.str("task_id")
	if err := s.board.DeleteTask(r.Context(), principal, p.str("column_id"), taskID); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Task successfully deleted.", map[string]any{"_id": taskID, "deletedCount": 1})
}

func (s *HTTPServer) handleAddToColumn(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := s.board.AddTaskToColumn(r.Context(), principal, p.str("column_id"), p.str("task_id")); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Task successfully added to specified column.", nil)
}

func (s *HTTPServer) handleRemoveFromColumn(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := s.board.RemoveTaskFromColumn(r.Context(), principal, p.str("column_id"), p.str("task_id")); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Task successfully removed from specified column.", nil)
}

// handleAddUserInProject accepts the fields at the top level or wrapped in
// a "data" object.
func (s *HTTPServer) handleAddUserInProject(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	p = p.nested("data")
	message, err := s.board.AddUserToProject(r.Context(), principal, p.str("currentProjectId"), p.str("emailForAddUserInProject"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, message, nil)
}

func (s *HTTPServer) handleGetAssignUserInProject(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	users, err := s.board.ListProjectCollaborators(r.Context(), principal, p.str("currentProjectId"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if len(users) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  false,
			"message": "unavailable user's in this project",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        true,
		"message":       "users",
		"assignedUsers": users,
	})
}

func (s *HTTPServer) handleAssignUserInTask(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	err = s.board.AssignUserToTask(r.Context(), principal, p.str("column_id"), p.str("task_id"), p.str("selectedUserForTask"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeOK(w, "Add user in this task.", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, principal access.Principal) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	limit, err := p.number("limit")
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	tasks, err := s.board.SearchTasks(r.Context(), principal, p.str("q"), limit)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "results": tasks})
}

func projectInput(p params) board.ProjectInput {
	return board.ProjectInput{
		Title:       p.str("title"),
		Description: p.str("description"),
	}
}

func columnInput(p params) board.ColumnInput {
	return board.ColumnInput{
		Title: p.str("title"),
		Icon:  p.str("icon"),
	}
}

func taskInput(p params) board.TaskInput {
	return board.TaskInput{
		Title:       p.str("title"),
		Description: p.str("description"),
		ColumnTitle: p.str("column_title"),
		Label:       p.str("label"),
		LabelType:   p.str("labelType"),
		ExpireAt:    p.str("expireAt"),
	}
}

func projectPatch(p params) board.ProjectPatch {
	return board.ProjectPatch{
		Title:       p.opt("title"),
		Description: p.opt("description"),
	}
}

func columnPatch(p params) board.ColumnPatch {
	return board.ColumnPatch{
		Title: p.opt("title"),
		Icon:  p.opt("icon"),
	}
}

func taskPatch(p params) board.TaskPatch {
	return board.TaskPatch{
		Title:       p.opt("title"),
		Description: p.opt("description"),
		ColumnTitle: p.opt("column_title"),
		Label:       p.opt("label"),
		LabelType:   p.opt("labelType"),
		ExpireAt:    p.opt("expireAt"),
	}
}
