package store

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Projects     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Project struct {
	ID            string
	Title         string
	Description   string
	Columns       []string
	AssignedUsers []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Column struct {
	ID        string
	Title     string
	Icon      string
	ProjectID string
	Tasks     []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Task struct {
	ID            string
	Title         string
	Description   string
	ColumnTitle   string
	Label         string
	LabelType     string
	ExpireAt      *time.Time
	AssignedUsers []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Collection names a document collection (a table on SQL backends).
type Collection string

const (
	Users    Collection = "users"
	Projects Collection = "projects"
	Columns  Collection = "columns"
	Tasks    Collection = "tasks"
)

// ArrayField identifies one of the id/value arrays a document carries.
// Only the fields declared below are valid; backends reject anything else.
type ArrayField struct {
	Collection Collection
	Name       string
}

var (
	UserProjects     = ArrayField{Collection: Users, Name: "projects"}
	ProjectColumns   = ArrayField{Collection: Projects, Name: "columns"}
	ProjectAssignees = ArrayField{Collection: Projects, Name: "assigned_users"}
	ColumnTasks      = ArrayField{Collection: Columns, Name: "tasks"}
	TaskAssignees    = ArrayField{Collection: Tasks, Name: "assigned_users"}
)

func (f ArrayField) String() string {
	return string(f.Collection) + "." + f.Name
}

func (f ArrayField) valid() bool {
	switch f {
	case UserProjects, ProjectColumns, ProjectAssignees, ColumnTasks, TaskAssignees:
		return true
	default:
		return false
	}
}

func validCollection(c Collection) bool {
	switch c {
	case Users, Projects, Columns, Tasks:
		return true
	default:
		return false
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
