package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers はルーティング対象のハンドラ一式です。
type Handlers struct {
	Employees   *EmployeeHandler
	Departments *DepartmentHandler
	ChangeLogs  *ChangeLogHandler
	Backups     *BackupHandler
	Files       *FileHandler
}

// Register は API ルートと /metrics を登録します。
func Register(e *echo.Echo, h Handlers) {
	api := e.Group("/api")

	employees := api.Group("/employees")
	employees.POST("", h.Employees.Create)
	employees.GET("", h.Employees.List)
	employees.GET("/count", h.Employees.Count)
	employees.GET("/:id", h.Employees.Get)
	employees.PATCH("/:id", h.Employees.Update)
	employees.DELETE("/:id", h.Employees.Delete)

	departments := api.Group("/departments")
	departments.POST("", h.Departments.Create)
	departments.GET("", h.Departments.List)
	departments.GET("/:id", h.Departments.Get)
	departments.PATCH("/:id", h.Departments.Update)
	departments.DELETE("/:id", h.Departments.Delete)

	changeLogs := api.Group("/change-logs")
	changeLogs.POST("", h.ChangeLogs.Register)
	changeLogs.GET("", h.ChangeLogs.List)
	changeLogs.GET("/:id", h.ChangeLogs.Get)
	changeLogs.GET("/:id/diffs", h.ChangeLogs.Diffs)

	backups := api.Group("/backups")
	backups.POST("", h.Backups.Create)
	backups.GET("", h.Backups.List)
	backups.GET("/latest", h.Backups.Latest)

	api.GET("/files/:id/download", h.Files.Download)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
