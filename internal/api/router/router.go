package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-lending/internal/api/handler"
	"library-lending/internal/api/middleware"
	"library-lending/pkg/jwt"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// Setup 初始化并返回 Gin 路由引擎
func Setup(h *handler.Handler, jwtMgr *jwt.Manager, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		admin := middleware.RoleAuth(jwt.RoleAdmin)

		// 借阅
		borrowings := v1.Group("/borrowings")
		{
			borrowings.POST("", h.Lending.Borrow)
			borrowings.GET("/count", h.Lending.CurrentlyBorrowedCount)
			borrowings.POST("/:id/penalty", h.Lending.SettlePenalty)
			borrowings.DELETE("/:id", admin, h.Lending.DeleteBorrowing)
		}

		// 归还
		v1.POST("/returns", h.Lending.ReturnBooks)

		// 扫描任务（仅管理员）
		sweeps := v1.Group("/sweeps", admin)
		{
			sweeps.POST("/suspension", h.Sweep.Suspension)
			sweeps.POST("/notifications", h.Sweep.Notifications)
		}

		// 报表
		v1.GET("/students/:id/history", h.Report.StudentHistory)
		v1.GET("/reports/books", h.Report.BookReport)
	}

	return r
}
