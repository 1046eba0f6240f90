// Package view derives renderable task rows from raw entity
// collections. Everything here is a pure function of its inputs; the
// filter and sort selections are plain UI-level values owned by the
// caller, never cached alongside server state.
package view

import (
	"sort"
	"strings"
	"time"

	"collabhive-sync/domain"
)

// Filter selects which tasks appear in the projected list.
type Filter string

const (
	FilterAll          Filter = "all"
	FilterCompleted    Filter = "completed"
	FilterInProgress   Filter = "inProgress"
	FilterTodo         Filter = "todo"
	FilterHighPriority Filter = "highPriority"
)

// Match reports whether the task satisfies the filter predicate.
// Unknown filters behave like FilterAll.
func (f Filter) Match(t domain.Task) bool {
	switch f {
	case FilterCompleted:
		return t.Status == domain.StatusCompleted
	case FilterInProgress:
		return t.Status == domain.StatusInProgress
	case FilterTodo:
		return t.Status == domain.StatusTodo
	case FilterHighPriority:
		return t.Priority == domain.PriorityHigh
	}
	return true
}

// Sort selects the ordering of the projected list.
type Sort string

const (
	SortDueDate  Sort = "dueDate"
	SortPriority Sort = "priority"
	SortTitle    Sort = "title"
)

// DueBucket classifies a due date relative to the render-time "today".
type DueBucket string

const (
	DueNone     DueBucket = ""
	DueOverdue  DueBucket = "overdue"
	DueToday    DueBucket = "dueToday"
	DueTomorrow DueBucket = "dueTomorrow"
	DueThisWeek DueBucket = "dueThisWeek"
	DueLater    DueBucket = "dueLater"
)

// UnassignedLabel is rendered for the empty sentinel and for ids that
// no longer resolve to a member.
const UnassignedLabel = "Unassigned"

// Row is a single renderable task entry with its display labels
// precomputed.
type Row struct {
	Task         domain.Task
	AssigneeName string
	OwnerName    string
	DueBucket    DueBucket
	DueLabel     string
	PriorityRank int
}

// Rows filters, sorts and decorates the given tasks. The result is a
// subsequence of tasks (no additions, no duplicates); equal sort keys
// keep their input order. Due buckets are computed against now with
// time-of-day truncated to midnight.
func Rows(tasks []domain.Task, members []domain.Member, f Filter, s Sort, now time.Time) []Row {
	rows := make([]Row, 0, len(tasks))
	for _, t := range tasks {
		if !f.Match(t) {
			continue
		}
		rows = append(rows, decorate(t, members, now))
	}

	switch s {
	case SortDueDate:
		sort.SliceStable(rows, func(i, j int) bool {
			di, iok := rows[i].Task.Due()
			dj, jok := rows[j].Task.Due()
			if iok != jok {
				// Tasks without a due date sort after all dated ones.
				return iok
			}
			if !iok {
				return false
			}
			return di.Before(dj)
		})
	case SortPriority:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].PriorityRank > rows[j].PriorityRank
		})
	case SortTitle:
		sort.SliceStable(rows, func(i, j int) bool {
			return strings.ToLower(rows[i].Task.Title) < strings.ToLower(rows[j].Task.Title)
		})
	}
	return rows
}

func decorate(t domain.Task, members []domain.Member, now time.Time) Row {
	row := Row{
		Task:         t,
		AssigneeName: memberName(members, t.Assignee),
		OwnerName:    memberName(members, t.Owner),
		PriorityRank: t.Priority.Rank(),
	}
	row.DueBucket, row.DueLabel = dueDisplay(t, now)
	return row
}

// memberName is total over any id: the sentinel, a live member, or a
// reference left dangling by a member removal all produce a label.
func memberName(members []domain.Member, id string) string {
	m, ok := domain.FindMember(members, domain.NormalizeAssignee(id))
	if !ok {
		return UnassignedLabel
	}
	return m.Name
}

func dueDisplay(t domain.Task, now time.Time) (DueBucket, string) {
	due, ok := t.Due()
	if !ok {
		return DueNone, ""
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(due.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		return DueOverdue, "Overdue"
	case days == 0:
		return DueToday, "Due today"
	case days == 1:
		return DueTomorrow, "Due tomorrow"
	case days <= 7:
		return DueThisWeek, "Due this week"
	}
	return DueLater, due.Format("Jan 2, 2006")
}
