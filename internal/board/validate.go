package board

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"taskboard/internal/store"
	"taskboard/internal/util"
)

type ProjectInput struct {
	Title       string
	Description string
}

type ColumnInput struct {
	Title string
	Icon  string
}

// TaskInput carries expireAt as received; it must be RFC 3339 when set.
type TaskInput struct {
	Title       string
	Description string
	ColumnTitle string
	Label       string
	LabelType   string
	ExpireAt    string
}

// Patches carry only the fields an update request sent. A nil field keeps
// the stored value; a pointer to "" clears it.
type ProjectPatch struct {
	Title       *string
	Description *string
}

type ColumnPatch struct {
	Title *string
	Icon  *string
}

type TaskPatch struct {
	Title       *string
	Description *string
	ColumnTitle *string
	Label       *string
	LabelType   *string
	ExpireAt    *string
}

func overlay(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func (pt ProjectPatch) onto(current store.Project) ProjectInput {
	in := ProjectInput{Title: current.Title, Description: current.Description}
	overlay(&in.Title, pt.Title)
	overlay(&in.Description, pt.Description)
	return in
}

func (pt ColumnPatch) onto(current store.Column) ColumnInput {
	in := ColumnInput{Title: current.Title, Icon: current.Icon}
	overlay(&in.Title, pt.Title)
	overlay(&in.Icon, pt.Icon)
	return in
}

func (pt TaskPatch) onto(current store.Task) TaskInput {
	in := TaskInput{
		Title:       current.Title,
		Description: current.Description,
		ColumnTitle: current.ColumnTitle,
		Label:       current.Label,
		LabelType:   current.LabelType,
	}
	if current.ExpireAt != nil {
		in.ExpireAt = current.ExpireAt.UTC().Format(time.RFC3339Nano)
	}
	overlay(&in.Title, pt.Title)
	overlay(&in.Description, pt.Description)
	overlay(&in.ColumnTitle, pt.ColumnTitle)
	overlay(&in.Label, pt.Label)
	overlay(&in.LabelType, pt.LabelType)
	overlay(&in.ExpireAt, pt.ExpireAt)
	return in
}

var labelTypes = map[string]bool{
	"danger":  true,
	"warning": true,
	"primary": true,
	"info":    true,
	"dark":    true,
	"success": true,
}

func requireID(id, name string) error {
	if strings.TrimSpace(id) == "" {
		return validationError(name + " is required.")
	}
	if !util.ValidID(id) {
		return validationError(name + " is malformed.")
	}
	return nil
}

func checkLength(name, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return validationError(fmt.Sprintf("%s must be between %d and %d characters.", name, min, max))
	}
	return nil
}

func (in ProjectInput) normalize() (ProjectInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := checkLength("title", in.Title, 1, 60); err != nil {
		return in, err
	}
	return in, nil
}

func (in ColumnInput) normalize() (ColumnInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Icon = strings.TrimSpace(in.Icon)
	if err := checkLength("title", in.Title, 1, 60); err != nil {
		return in, err
	}
	return in, nil
}

type taskFields struct {
	title       string
	description string
	columnTitle string
	label       string
	labelType   string
	expireAt    *time.Time
}

func (in TaskInput) normalize() (taskFields, error) {
	f := taskFields{
		title:       strings.TrimSpace(in.Title),
		description: strings.TrimSpace(in.Description),
		columnTitle: strings.TrimSpace(in.ColumnTitle),
		label:       strings.TrimSpace(in.Label),
		labelType:   strings.TrimSpace(in.LabelType),
	}
	if err := checkLength("title", f.title, 3, 60); err != nil {
		return f, err
	}
	if f.label != "" {
		if err := checkLength("label", f.label, 3, 15); err != nil {
			return f, err
		}
	}
	if f.labelType != "" && !labelTypes[f.labelType] {
		return f, validationError("labelType must be one of danger, warning, primary, info, dark, success.")
	}
	if raw := strings.TrimSpace(in.ExpireAt); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, validationError("expireAt must be an RFC 3339 date.")
		}
		at = at.UTC()
		f.expireAt = &at
	}
	return f, nil
}
