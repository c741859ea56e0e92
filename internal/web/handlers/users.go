package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// UsersHandler handles user records and face enrollment
type UsersHandler struct {
	users      database.UserWriter
	embeddings database.EmbeddingReader
	service    *attendance.Service
	logger     *slog.Logger
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(users database.UserWriter, embeddings database.EmbeddingReader, service *attendance.Service, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{users: users, embeddings: embeddings, service: service, logger: logger}
}

// UserDetail is a user with a summary of their stored embeddings
type UserDetail struct {
	database.User
	EmbeddingsStored int      `json:"embeddings_stored"`
	Models           []string `json:"models"`
}

// CreateUserRequest is the body of POST /users. Password is accepted for
// compatibility with existing clients and not stored.
type CreateUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         string `json:"role"`
	ProfileImage string `json:"profile_image"`
}

// Create adds a user without face images
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	user := &database.User{
		Email:        database.NormalizeEmail(req.Email),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         database.Role(strings.ToLower(strings.TrimSpace(req.Role))),
		ProfileImage: req.ProfileImage,
	}
	if user.Role == "" {
		user.Role = database.RoleStudent
	}
	if user.Email == "" || user.FirstName == "" || user.LastName == "" {
		respondError(w, http.StatusBadRequest, "email, first_name and last_name are required")
		return
	}
	if !user.Role.Valid() {
		respondError(w, http.StatusBadRequest, "role must be one of student, doctor, admin")
		return
	}

	if err := h.users.CreateUser(r.Context(), user); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// List returns users, filtered by name when q is given
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// Get returns one user
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	embeddings, err := h.embeddings.EmbeddingsForUser(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	detail := UserDetail{User: *user, EmbeddingsStored: len(embeddings), Models: []string{}}
	seen := make(map[string]bool)
	for _, e := range embeddings {
		if e.Model != "" && !seen[e.Model] {
			seen[e.Model] = true
			detail.Models = append(detail.Models, e.Model)
		}
	}
	respondJSON(w, http.StatusOK, detail)
}

// Register creates a user from a multipart form and enrolls the face
// images sent as "images"
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}

	req := attendance.RegisterRequest{
		Email:     r.FormValue("email"),
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Role:      database.Role(r.FormValue("role")),
	}
	for _, fh := range formFiles(r, "images", "files") {
		upload, err := readUpload(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Images = append(req.Images, upload)
	}

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}
