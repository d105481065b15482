package router

import (
	"net/http"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	apiHandler "github.com/taskpilot/backend/api/handler"
	"github.com/taskpilot/backend/internal/metrics"
)

type Handlers struct {
	Health   *apiHandler.HealthHandler
	Webhook  *apiHandler.WebhookHandler
	Task     *apiHandler.TaskHandler
	Summary  *apiHandler.SummaryHandler
	Backup   *apiHandler.BackupHandler
	Calendar *apiHandler.CalendarHandler
}

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

func New(handlers Handlers, auth Middleware, telegramSecret Middleware) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	r.GET("/metrics", metricsHandler())

	// Webhooks acknowledge fast; processing happens off the request path.
	r.POST("/webhook/telegram", telegramSecret(handlers.Webhook.Telegram))
	r.POST("/webhook/gmail", handlers.Webhook.Gmail)
	r.POST("/webhook/calendar", handlers.Webhook.Calendar)

	r.GET("/api/v1/tasks", handlers.Task.GetTasks)
	r.GET("/api/v1/tasks/{id}", handlers.Task.GetTask)
	r.POST("/api/v1/tasks", auth(handlers.Task.CreateTask))
	r.PUT("/api/v1/tasks/{id}", auth(handlers.Task.UpdateTask))

	r.GET("/api/v1/daily-summary", handlers.Summary.Get)
	r.GET("/api/v1/cron/daily-summary", handlers.Summary.Trigger)

	r.GET("/api/v1/calendar/events", handlers.Calendar.ListEvents)
	r.POST("/api/v1/calendar/events", auth(handlers.Calendar.CreateEvent))

	// Protected routes
	r.POST("/api/v1/backup", auth(handlers.Backup.Create))
	r.GET("/api/v1/backups", auth(handlers.Backup.List))
	r.POST("/api/v1/backups/restore", auth(handlers.Backup.Restore))

	return r
}

func metricsHandler() fasthttp.RequestHandler {
	h := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
	return fasthttpadaptor.NewFastHTTPHandler(http.HandlerFunc(h.ServeHTTP))
}
