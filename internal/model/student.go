package model

// 学生借阅资格
const (
	MembershipActive    = "active"
	MembershipSuspended = "suspended"
)

// Student 学生表 — 对应 students
type Student struct {
	StudentID        uint64 `gorm:"primaryKey;autoIncrement"                    json:"student_id"`
	Name             string `gorm:"type:varchar(100);not null"                  json:"name"`
	MembershipStatus string `gorm:"type:varchar(20);not null;default:'active'"  json:"membership_status"` // active | suspended
	BaseModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }
