package model

// 图书可借状态
const (
	BookAvailable = "Available"
	BookBorrowed  = "Borrowed"
)

// Book 图书表 — 对应 books
type Book struct {
	BookID       uint64 `gorm:"primaryKey;autoIncrement"                        json:"book_id"`
	Title        string `gorm:"type:varchar(255);not null"                      json:"title"`
	Author       string `gorm:"type:varchar(255);not null"                      json:"author"`
	Category     string `gorm:"type:varchar(50);not null"                       json:"category"`
	Availability string `gorm:"type:varchar(20);not null;default:'Available'"   json:"availability"` // Available | Borrowed（随借阅记录同步）
	BaseModel

	// 关联
	FeeCategory *FeeCategory `gorm:"foreignKey:Category;references:Name" json:"fee_category,omitempty"`
}

// TableName 指定表名
func (Book) TableName() string { return "books" }
