package task

import (
	"sync"
	"time"

	"github.com/matthewbaird/taskviews/internal/schema"
)

// Field keys of the task registry.
const (
	FieldStatus                 = "status"
	FieldPriority               = "priority"
	FieldTitle                  = "title"
	FieldContent                = "content"
	FieldProject                = "project"
	FieldTags                   = "tags"
	FieldStartDate              = "start_date"
	FieldDueDate                = "due_date"
	FieldCompletedTime          = "completed_time"
	FieldCreatedAt              = "created_at"
	FieldUpdatedAt              = "updated_at"
	FieldIsCompleted            = "is_completed"
	FieldIsOverdue              = "is_overdue"
	FieldSortOrder              = "sort_order"
	FieldSubtasksCount          = "subtasks_count"
	FieldCompletedSubtasksCount = "completed_subtasks_count"
)

// Fields returns the task field catalogue in builder order.
func Fields() []schema.Field {
	statusOpts := make([]schema.Option, 0, 4)
	for s := StatusUnassigned; s <= StatusAbandoned; s++ {
		statusOpts = append(statusOpts, schema.Option{Value: schema.Number(float64(s)), Label: s.Label(), Name: s.Name()})
	}
	priorityOpts := make([]schema.Option, 0, 4)
	for p := PriorityLow; p <= PriorityUrgent; p++ {
		priorityOpts = append(priorityOpts, schema.Option{Value: schema.Number(float64(p)), Label: p.Label(), Name: p.Name()})
	}

	return []schema.Field{
		{Key: FieldStatus, Label: "状态", Type: schema.FieldSelect, Options: statusOpts},
		{Key: FieldPriority, Label: "优先级", Type: schema.FieldSelect, Options: priorityOpts},
		{Key: FieldTitle, Label: "标题", Type: schema.FieldText},
		{Key: FieldContent, Label: "内容", Type: schema.FieldText},
		{Key: FieldProject, Label: "项目", Type: schema.FieldRelation, Aliases: []string{"project__name"}},
		{Key: FieldTags, Label: "标签", Type: schema.FieldMultiSelect, Aliases: []string{"tags__name"}},
		{Key: FieldStartDate, Label: "开始日期", Type: schema.FieldDate},
		{Key: FieldDueDate, Label: "截止日期", Type: schema.FieldDate},
		{Key: FieldCompletedTime, Label: "完成时间", Type: schema.FieldDateTime},
		{Key: FieldCreatedAt, Label: "创建时间", Type: schema.FieldDateTime},
		{Key: FieldUpdatedAt, Label: "更新时间", Type: schema.FieldDateTime},
		{Key: FieldIsCompleted, Label: "是否完成", Type: schema.FieldBoolean},
		{Key: FieldIsOverdue, Label: "是否逾期", Type: schema.FieldBoolean, Computed: computeOverdue},
		{Key: FieldSortOrder, Label: "排序值", Type: schema.FieldNumber},
		{Key: FieldSubtasksCount, Label: "子任务数", Type: schema.FieldNumber},
		{Key: FieldCompletedSubtasksCount, Label: "已完成子任务数", Type: schema.FieldNumber},
	}
}

// computeOverdue: due day strictly before today and not completed. now
// carries the engine location.
func computeOverdue(r schema.Record, now time.Time) schema.Value {
	due, ok := r.Value(FieldDueDate).Time()
	if !ok || r.Completed() {
		return schema.Bool(false)
	}
	loc := now.Location()
	return schema.Bool(schema.DayOf(due, loc) < schema.DayOf(now, loc))
}

// NewRegistry builds the task field registry with the default operators.
func NewRegistry() (*schema.Registry, error) {
	return schema.NewRegistry(Fields(), schema.DefaultOperators())
}

var defaultRegistry = sync.OnceValue(func() *schema.Registry {
	reg, err := NewRegistry()
	if err != nil {
		panic("task: building registry: " + err.Error())
	}
	return reg
})

// Registry returns the shared task registry.
func Registry() *schema.Registry {
	return defaultRegistry()
}
