package model

// FeeCategory 图书费用分类表 — 对应 fee_categories
type FeeCategory struct {
	Name           string `gorm:"type:varchar(50);primaryKey" json:"name"`
	FeePerDayCents int64  `gorm:"not null"                    json:"fee_per_day_cents"` // 每逾期一天的费用（分）
	BaseModel
}

// TableName 指定表名
func (FeeCategory) TableName() string { return "fee_categories" }
