package lending

// PenaltyCents 逾期费用 = 逾期天数 × 分类日费率（单位：分）
func PenaltyCents(overdueDays int, feePerDayCents int64) int64 {
	if overdueDays <= 0 || feePerDayCents <= 0 {
		return 0
	}
	return int64(overdueDays) * feePerDayCents
}
