package storage

import (
	"time"
)

// Deadline is a dated obligation. WorkloadMagnitude and WorkloadUnit are
// either both set or both absent.
type Deadline struct {
	ID                int           `db:"deadline_id" json:"deadlineId"`
	OwnerID           int           `db:"owner_id" json:"ownerId"`
	CategoryID        int           `db:"category_id" json:"categoryId"`
	Title             string        `db:"title" json:"title"`
	Description       *string       `db:"description" json:"description,omitempty"`
	DueDate           time.Time     `db:"due_date" json:"dueDate"`
	Priority          PriorityLevel `db:"priority" json:"priority"`
	WorkloadMagnitude *int          `db:"workload_magnitude" json:"workloadMagnitude,omitempty"`
	WorkloadUnit      *WorkloadUnit `db:"workload_unit" json:"workloadUnit,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updatedAt"`
	DeletedAt         *time.Time    `db:"deleted_at" json:"deletedAt,omitempty"`
}

type Category struct {
	ID        int        `db:"category_id" json:"categoryId"`
	OwnerID   int        `db:"owner_id" json:"ownerId"`
	Name      string     `db:"name" json:"name"`
	Color     string     `db:"color" json:"color"`
	IsVisible bool       `db:"is_visible" json:"isVisible"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}
