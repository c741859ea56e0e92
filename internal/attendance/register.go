package attendance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/matching"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// Upload is one enrollment image.
type Upload struct {
	Filename string
	Data     []byte
}

// RegisterRequest enrolls a new user with face images.
type RegisterRequest struct {
	Email     string
	FirstName string
	LastName  string
	Role      database.Role
	Images    []Upload
}

// SkippedImage is an enrollment image that produced no embedding.
type SkippedImage struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// RegisterResult summarizes an enrollment.
type RegisterResult struct {
	UserID           int64          `json:"user_id"`
	Email            string         `json:"email"`
	FullName         string         `json:"full_name"`
	EmbeddingsStored int            `json:"embeddings_stored"`
	Skipped          []SkippedImage `json:"skipped,omitempty"`
}

// Register creates the user and stores one embedding per usable image.
// Students must supply exactly the required number of images. Images that
// fail to decode or contain no face are skipped and reported.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req.Email = database.NormalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Role == "" {
		req.Role = database.RoleStudent
	}
	req.Role = database.Role(strings.ToLower(string(req.Role)))

	if req.Email == "" || req.FirstName == "" || req.LastName == "" {
		return nil, fmt.Errorf("%w: email, first_name and last_name are required", ErrInvalidInput)
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w %q: must be one of student, doctor, admin", ErrInvalidRole, req.Role)
	}
	if req.Role == database.RoleStudent && len(req.Images) != s.opts.RequiredStudentImages {
		return nil, fmt.Errorf("%w: for students, exactly %d images are required, got %d",
			ErrImageCount, s.opts.RequiredStudentImages, len(req.Images))
	}

	if _, err := s.deps.Users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, database.ErrDuplicateEmail
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	user := &database.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}
	if err := s.deps.Users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log := s.log.With("user_id", user.ID)

	result := &RegisterResult{UserID: user.ID, Email: user.Email, FullName: user.FullName()}
	profileSet := false
	for _, img := range req.Images {
		path, reason, err := s.enrollImage(ctx, user.ID, img)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			log.Info("enrollment image skipped", "filename", img.Filename, "reason", reason)
			result.Skipped = append(result.Skipped, SkippedImage{Filename: img.Filename, Reason: reason})
			continue
		}
		result.EmbeddingsStored++
		if !profileSet {
			if err := s.deps.Users.SetProfileImage(ctx, user.ID, path); err != nil {
				return nil, fmt.Errorf("failed to set profile image: %w", err)
			}
			profileSet = true
		}
	}

	log.Info("user registered", "role", user.Role, "embeddings", result.EmbeddingsStored, "skipped", len(result.Skipped))
	return result, nil
}

// enrollImage stores the embedding of the largest face in img. A non-empty
// reason means the image was skipped; err is reserved for store failures.
func (s *Service) enrollImage(ctx context.Context, userID int64, img Upload) (path, reason string, err error) {
	info, err := vision.DecodeImage(img.Data)
	if err != nil {
		return "", "invalid image file", nil
	}

	face, ok := vision.LargestFace(s.detect(ctx, img.Data))
	if !ok {
		return "", "no face detected", nil
	}
	if s.opts.ExpectedDim > 0 && len(face.Embedding) != s.opts.ExpectedDim {
		return "", fmt.Sprintf("embedding has %d dimensions, want %d", len(face.Embedding), s.opts.ExpectedDim), nil
	}

	path, err = s.saveUpload(userID, info, img.Data)
	if err != nil {
		return "", "", err
	}

	emb := &database.StoredEmbedding{
		UserID:    userID,
		Vector:    face.Embedding,
		ImagePath: path,
		Model:     s.opts.Model,
	}
	if err := s.deps.Embeddings.SaveEmbedding(ctx, emb); err != nil {
		return "", "", fmt.Errorf("failed to store embedding: %w", err)
	}
	s.deps.Source.EmbeddingAdded(matching.Candidate{
		Identity:    userID,
		EmbeddingID: emb.ID,
		Vector:      face.Embedding,
	})
	return path, "", nil
}

// saveUpload writes the image under UploadDir/<user>/<uuid><ext>. Without an
// upload directory only the generated name is returned.
func (s *Service) saveUpload(userID int64, info vision.ImageInfo, data []byte) (string, error) {
	name := uuid.NewString() + info.Extension()
	if s.opts.UploadDir == "" {
		return name, nil
	}
	dir := filepath.Join(s.opts.UploadDir, fmt.Sprintf("%d", userID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return path, nil
}
