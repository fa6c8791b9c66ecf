package models

// Class is a major taught by a teacher. Students reference it by free-text label only.
type Class struct {
	ID      uint   `gorm:"primaryKey;column:class_id" json:"class_id"`
	Major   string `gorm:"size:50;not null" json:"major"`
	Teacher string `gorm:"size:50;not null" json:"teacher"`
}

// TableName keeps the historical table name.
func (Class) TableName() string {
	return "s_class"
}
