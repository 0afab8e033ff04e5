package server

import (
	"portfolio/app/api"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// Server owns the fiber app and the route table. All collaborators are
// injected by app/cmd at startup.
type Server struct {
	listenAddr string
	app        *fiber.App
}

func New(listenAddr string, chat *api.ChatHandler, contact *api.ContactHandler) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
	})

	// The portfolio frontend is served from a different origin.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/health", api.NewCheckHandler().HandleHealthy)

	apiv1 := app.Group("/api/v1")
	apiv1.Post("/qns-ans", chat.HandleChat)
	apiv1.Post("/contact", contact.HandleContact)

	return &Server{
		listenAddr: listenAddr,
		app:        app,
	}
}

func (s *Server) Run() error {
	return s.app.Listen(s.listenAddr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
