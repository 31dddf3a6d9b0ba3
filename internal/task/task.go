// Package task defines the task record the view engine queries, and the
// field registry that exposes it.
package task

import (
	"time"

	"github.com/matthewbaird/taskviews/internal/schema"
)

// Status is the task lifecycle state.
type Status int

const (
	StatusUnassigned Status = iota
	StatusTodo
	StatusCompleted
	StatusAbandoned
)

// Label returns the display name of the status.
func (s Status) Label() string {
	switch s {
	case StatusUnassigned:
		return "待分配"
	case StatusTodo:
		return "待办"
	case StatusCompleted:
		return "已完成"
	case StatusAbandoned:
		return "已放弃"
	default:
		return "未知"
	}
}

// Name returns the symbolic name of the status, e.g. "TODO".
func (s Status) Name() string {
	switch s {
	case StatusUnassigned:
		return "UNASSIGNED"
	case StatusTodo:
		return "TODO"
	case StatusCompleted:
		return "COMPLETED"
	case StatusAbandoned:
		return "ABANDONED"
	default:
		return ""
	}
}

// Priority orders tasks by urgency.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

// Label returns the display name of the priority.
func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "低"
	case PriorityMedium:
		return "中"
	case PriorityHigh:
		return "高"
	case PriorityUrgent:
		return "紧急"
	default:
		return "未知"
	}
}

// Name returns the symbolic name of the priority, e.g. "HIGH".
func (p Priority) Name() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityUrgent:
		return "URGENT"
	default:
		return ""
	}
}

// Project is the relation a task belongs to.
type Project struct {
	UID  string `json:"uid" yaml:"uid"`
	Name string `json:"name" yaml:"name"`
}

// Tag labels a task. A task may carry many tags.
type Tag struct {
	UID   string `json:"uid,omitempty" yaml:"uid,omitempty"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Task is one record of the collection a view is materialized over.
type Task struct {
	UID                    string     `json:"uid" yaml:"uid"`
	Title                  string     `json:"title" yaml:"title"`
	Content                string     `json:"content,omitempty" yaml:"content,omitempty"`
	Status                 Status     `json:"status" yaml:"status"`
	Priority               Priority   `json:"priority" yaml:"priority"`
	Project                *Project   `json:"project,omitempty" yaml:"project,omitempty"`
	Tags                   []Tag      `json:"tags,omitempty" yaml:"tags,omitempty"`
	ParentUID              string     `json:"parent_uid,omitempty" yaml:"parent_uid,omitempty"`
	IsAllDay               bool       `json:"is_all_day" yaml:"is_all_day"`
	StartDate              *time.Time `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	DueDate                *time.Time `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	CompletedTime          *time.Time `json:"completed_time,omitempty" yaml:"completed_time,omitempty"`
	SortOrder              float64    `json:"sort_order" yaml:"sort_order"`
	SubtasksCount          int        `json:"subtasks_count" yaml:"subtasks_count"`
	CompletedSubtasksCount int        `json:"completed_subtasks_count" yaml:"completed_subtasks_count"`
	CreatedAt              time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Completed reports whether the task is done.
func (t Task) Completed() bool {
	return t.Status == StatusCompleted
}

// IsSubtask reports whether the task has a parent.
func (t Task) IsSubtask() bool {
	return t.ParentUID != ""
}

// Value exposes the task's fields by registry key.
func (t Task) Value(key string) schema.Value {
	switch key {
	case FieldStatus:
		return schema.Number(float64(t.Status))
	case FieldPriority:
		return schema.Number(float64(t.Priority))
	case FieldTitle:
		return schema.Text(t.Title)
	case FieldContent:
		if t.Content == "" {
			return schema.Null()
		}
		return schema.Text(t.Content)
	case FieldProject:
		if t.Project == nil {
			return schema.Null()
		}
		return schema.Text(t.Project.Name)
	case FieldTags:
		names := make([]string, len(t.Tags))
		for i, tag := range t.Tags {
			names[i] = tag.Name
		}
		return schema.Texts(names...)
	case FieldStartDate:
		return schema.TimePtr(t.StartDate)
	case FieldDueDate:
		return schema.TimePtr(t.DueDate)
	case FieldCompletedTime:
		return schema.TimePtr(t.CompletedTime)
	case FieldCreatedAt:
		return schema.Time(t.CreatedAt)
	case FieldUpdatedAt:
		return schema.Time(t.UpdatedAt)
	case FieldIsCompleted:
		return schema.Bool(t.Completed())
	case FieldSortOrder:
		return schema.Number(t.SortOrder)
	case FieldSubtasksCount:
		return schema.Number(float64(t.SubtasksCount))
	case FieldCompletedSubtasksCount:
		return schema.Number(float64(t.CompletedSubtasksCount))
	}
	return schema.Null()
}

// Records adapts a task slice to the engine's record interface.
func Records(tasks []Task) []schema.Record {
	out := make([]schema.Record, len(tasks))
	for i := range tasks {
		out[i] = tasks[i]
	}
	return out
}
