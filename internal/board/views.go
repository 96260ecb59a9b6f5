package board

import (
	"time"

	"taskboard/internal/store"
)

type TaskView struct {
	ID               string     `json:"_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	ColumnTitle      string     `json:"column_title,omitempty"`
	Label            string     `json:"label,omitempty"`
	LabelType        string     `json:"labelType,omitempty"`
	ExpireAt         *time.Time `json:"expireAt,omitempty"`
	AssignUserInTask []string   `json:"assignUserInTask"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type ColumnView struct {
	ID        string     `json:"_id"`
	Title     string     `json:"title"`
	Icon      string     `json:"icon"`
	ProjectID string     `json:"project_id"`
	Tasks     []TaskView `json:"tasks"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type ProjectView struct {
	ID                    string       `json:"_id"`
	Title                 string       `json:"title"`
	Description           string       `json:"description"`
	Columns               []ColumnView `json:"columns"`
	AssignedUserInProject []string     `json:"assignedUserInProject"`
	CreatedAt             time.Time    `json:"createdAt"`
	UpdatedAt             time.Time    `json:"updatedAt"`
}

func taskView(t store.Task) TaskView {
	assignees := t.AssignedUsers
	if assignees == nil {
		assignees = []string{}
	}
	return TaskView{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		ColumnTitle:      t.ColumnTitle,
		Label:            t.Label,
		LabelType:        t.LabelType,
		ExpireAt:         t.ExpireAt,
		AssignUserInTask: assignees,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func columnView(c store.Column, tasks map[string]store.Task) ColumnView {
	view := ColumnView{
		ID:        c.ID,
		Title:     c.Title,
		Icon:      c.Icon,
		ProjectID: c.ProjectID,
		Tasks:     make([]TaskView, 0, len(c.Tasks)),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, id := range c.Tasks {
		// dangling ids are skipped, as a populate would
		if task, ok := tasks[id]; ok {
			view.Tasks = append(view.Tasks, taskView(task))
		}
	}
	return view
}

func projectView(p store.Project, columns []store.Column, tasks map[string]store.Task) ProjectView {
	assignees := p.AssignedUsers
	if assignees == nil {
		assignees = []string{}
	}
	view := ProjectView{
		ID:                    p.ID,
		Title:                 p.Title,
		Description:           p.Description,
		Columns:               make([]ColumnView, 0, len(columns)),
		AssignedUserInProject: assignees,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
	for _, column := range columns {
		view.Columns = append(view.Columns, columnView(column, tasks))
	}
	return view
}
