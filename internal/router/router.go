package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/questlog/api/handler"
)

type Handlers struct {
	Task     *apiHandler.TaskHandler
	Progress *apiHandler.ProgressHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Protected routes
	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.GetTasks))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.GET("/api/v1/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	r.POST("/api/v1/tasks/{id}/toggle", authMiddleware(handlers.Task.ToggleTask))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))

	r.GET("/api/v1/progress", authMiddleware(handlers.Progress.GetProgress))
	r.POST("/api/v1/progress", authMiddleware(handlers.Progress.Provision))
	r.POST("/api/v1/progress/reset", authMiddleware(handlers.Progress.Reset))
	r.GET("/api/v1/achievements", authMiddleware(handlers.Progress.GetAchievements))
	r.GET("/api/v1/leaderboard", authMiddleware(handlers.Progress.GetLeaderboard))

	return r
}
