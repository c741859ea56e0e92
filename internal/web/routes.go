package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	d := s.deps
	healthHandler := handlers.NewHealthHandler(d.Service, d.Embeddings, d.DB, s.logger)
	usersHandler := handlers.NewUsersHandler(d.Users, d.Embeddings, d.Service, s.logger)
	coursesHandler := handlers.NewCoursesHandler(d.Courses, d.Users, s.logger)
	lecturesHandler := handlers.NewLecturesHandler(d.Lectures, d.Courses, s.logger)
	attendanceHandler := handlers.NewAttendanceHandler(d.Service, d.Attendance, s.logger)

	s.router.Get("/healthz", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		// Users and enrollment
		r.Post("/users", usersHandler.Create)
		r.Get("/users", usersHandler.List)
		r.Get("/users/{id}", usersHandler.Get)
		r.Post("/register", usersHandler.Register)

		// Courses
		r.Post("/courses", coursesHandler.Create)
		r.Get("/courses", coursesHandler.List)
		r.Post("/courses/enroll", coursesHandler.Enroll)

		// Lectures
		r.Post("/lectures", lecturesHandler.Create)
		r.Get("/lectures", lecturesHandler.List)

		// Attendance
		r.Post("/identify", attendanceHandler.Identify)
		r.Post("/attendance/mark", attendanceHandler.Mark)
		r.Post("/attendance/image", attendanceHandler.MarkFromImage)
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/present", attendanceHandler.Present)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})
}
