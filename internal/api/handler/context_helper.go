package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"library-lending/internal/api/middleware"
	"library-lending/pkg/response"
)

// MustGetOperatorID 从上下文提取操作员 ID，缺失时写入 401 响应
// 调用方应在 ok=false 时直接 return
func MustGetOperatorID(c *gin.Context) (string, bool) {
	id := c.GetString(middleware.ContextOperatorID)
	if id == "" {
		response.Unauthorized(c, response.CodeUnauthorized, "未认证")
		return "", false
	}
	return id, true
}

// parseIDParam 解析路径中的正整数 ID，失败时写入 400 响应
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, response.CodeInvalidParam, "ID 格式无效")
		return 0, false
	}
	return id, true
}
