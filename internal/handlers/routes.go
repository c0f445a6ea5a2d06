package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Routes bundles the handlers mounted on the API. Nil members leave their
// routes unregistered.
type Routes struct {
	Upload   *UploadHandler
	Jobs     *JobsHandler
	Speakers *SpeakersHandler
	Stream   *StatusStreamHandler
	Sidecar  HealthChecker
	Logs     LogSource
}

// Register mounts every route on app.
func (r Routes) Register(app *fiber.App) {
	app.Get("/health", Health(r.Sidecar))

	if r.Upload != nil {
		app.Post("/upload", r.Upload.Handle)
	}
	if r.Jobs != nil {
		app.Get("/jobs/:id", r.Jobs.Status)
		app.Get("/transcripts", r.Jobs.List)
		app.Get("/transcripts/:id/text", r.Jobs.Text)
		app.Get("/transcripts/:id/hierarchy", r.Jobs.Hierarchy)
	}
	if r.Stream != nil {
		app.Use("/ws", r.Stream.Upgrade)
		app.Get("/ws/jobs", websocket.New(r.Stream.Handle))
	}
	if r.Speakers != nil {
		app.Get("/speakers", r.Speakers.List)
		app.Post("/speakers/enroll", r.Speakers.Enroll)
		app.Get("/speakers/suggestions", r.Speakers.Suggestions)
		app.Post("/speakers/promote", r.Speakers.Promote)
		app.Delete("/speakers/:name", r.Speakers.Remove)
	}
	if r.Logs != nil {
		app.Get("/logs", Logs(r.Logs))
	}
}
