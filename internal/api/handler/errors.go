package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "library-lending/pkg/errors"
	"library-lending/pkg/response"
)

type errorMapping struct {
	target  error
	status  int
	code    int
	message string
}

// 按顺序匹配，RecordNotFound 包装了 NotFound，需排在前面
var errorMappings = []errorMapping{
	{pkgerrors.ErrStudentSuspended, http.StatusUnprocessableEntity, response.CodeStudentSuspended, "学生账号已停用"},
	{pkgerrors.ErrBookUnavailable, http.StatusUnprocessableEntity, response.CodeBookUnavailable, "图书当前不可借"},
	{pkgerrors.ErrBorrowLimitReached, http.StatusUnprocessableEntity, response.CodeBorrowLimitReached, "已达到最大借阅数量"},
	{pkgerrors.ErrHasOverdueBooks, http.StatusUnprocessableEntity, response.CodeHasOverdueBooks, "存在逾期未还的图书"},
	{pkgerrors.ErrRecordNotFound, http.StatusNotFound, response.CodeRecordNotFound, "借阅记录不存在"},
	{pkgerrors.ErrNotFound, http.StatusNotFound, response.CodeNotFound, "记录不存在"},
	{pkgerrors.ErrOwnershipMismatch, http.StatusUnprocessableEntity, response.CodeOwnershipMismatch, "借阅记录不属于该学生"},
	{pkgerrors.ErrContention, http.StatusConflict, response.CodeContention, "资源竞争，请稍后重试"},
	{pkgerrors.ErrRecordHasPenalty, http.StatusConflict, response.CodeRecordHasPenalty, "借阅记录已产生罚金，不可删除"},
	{pkgerrors.ErrInvalidThreshold, http.StatusBadRequest, response.CodeInvalidThreshold, "停用阈值不能为负数"},
}

// writeError 将业务错误映射为 HTTP 状态码与业务码
// 批量归还失败时 details 给出失败项的位置
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var details string
	var batchErr *pkgerrors.BatchError
	if errors.As(err, &batchErr) {
		details = batchErr.Error()
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if details == "" {
				details = err.Error()
			}
			response.ErrorWithDetails(c, m.status, m.code, m.message, details)
			return
		}
	}
	response.InternalError(c)
}
