package models

import "time"

// Student represents a learner account that uploads documents for grading.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	Class     string    `gorm:"column:class;size:50;not null" json:"class"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the historical table name.
func (Student) TableName() string {
	return "student"
}
