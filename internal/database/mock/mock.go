// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockUserStore is a mock implementation of database.UserWriter
type MockUserStore struct {
	mu     sync.RWMutex
	users  map[int64]*database.User
	nextID int64

	// Error injection
	GetError    error
	ListError   error
	CreateError error
	UpdateError error
}

// NewMockUserStore creates a new mock user store
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[int64]*database.User)}
}

// AddUser adds a user to the mock store, assigning an ID if unset
func (m *MockUserStore) AddUser(u database.User) *database.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		m.nextID++
		u.ID = m.nextID
	} else if u.ID > m.nextID {
		m.nextID = u.ID
	}
	m.users[u.ID] = &u
	return &u
}

// GetUser retrieves a user by ID
func (m *MockUserStore) GetUser(ctx context.Context, id int64) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := *u
	return &out, nil
}

// GetUserByEmail retrieves a user by case-insensitive email
func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := database.NormalizeEmail(email)
	for _, u := range m.users {
		if database.NormalizeEmail(u.Email) == want {
			out := *u
			return &out, nil
		}
	}
	return nil, database.ErrNotFound
}

// ListUsers returns users ordered by ID, filtered by name
func (m *MockUserStore) ListUsers(ctx context.Context, query string) ([]database.User, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.User, 0, len(m.users))
	for _, u := range m.users {
		if database.NameMatches(u.FullName(), query) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateUser inserts a user, rejecting duplicate emails
func (m *MockUserStore) CreateUser(ctx context.Context, user *database.User) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	want := database.NormalizeEmail(user.Email)
	for _, u := range m.users {
		if database.NormalizeEmail(u.Email) == want {
			return database.ErrDuplicateEmail
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

// SetProfileImage records the profile image of a user
func (m *MockUserStore) SetProfileImage(ctx context.Context, userID int64, path string) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return database.ErrNotFound
	}
	u.ProfileImage = path
	return nil
}

// MockEmbeddingStore is a mock implementation of database.EmbeddingWriter.
// Rows are kept in their raw text form so tests can inject corrupt vectors.
type MockEmbeddingStore struct {
	mu         sync.RWMutex
	rows       []database.RawEmbedding
	meta       map[int64]database.StoredEmbedding
	nextID     int64
	fetchCalls int

	// Error injection
	FetchError   error
	CountError   error
	SaveError    error
	ForUserError error
}

// NewMockEmbeddingStore creates a new mock embedding store
func NewMockEmbeddingStore() *MockEmbeddingStore {
	return &MockEmbeddingStore{meta: make(map[int64]database.StoredEmbedding)}
}

// AddRaw appends a raw row as-is
func (m *MockEmbeddingStore) AddRaw(row database.RawEmbedding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID > m.nextID {
		m.nextID = row.ID
	}
	m.rows = append(m.rows, row)
}

// FetchCalls returns how many times FetchAllEmbeddings was called
func (m *MockEmbeddingStore) FetchCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchCalls
}

// FetchAllEmbeddings returns copies of all raw rows in insertion order
func (m *MockEmbeddingStore) FetchAllEmbeddings(ctx context.Context) ([]database.RawEmbedding, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()
	if m.FetchError != nil {
		return nil, m.FetchError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.RawEmbedding, len(m.rows))
	for i, r := range m.rows {
		r.Raw = append([]byte(nil), r.Raw...)
		out[i] = r
	}
	return out, nil
}

// CountEmbeddings returns the number of stored rows
func (m *MockEmbeddingStore) CountEmbeddings(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows), nil
}

// EmbeddingsForUser returns the embeddings saved through SaveEmbedding for a user
func (m *MockEmbeddingStore) EmbeddingsForUser(ctx context.Context, userID int64) ([]database.StoredEmbedding, error) {
	if m.ForUserError != nil {
		return nil, m.ForUserError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.StoredEmbedding
	for _, r := range m.rows {
		if e, ok := m.meta[r.ID]; ok && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// SaveEmbedding appends an embedding in pgvector text form
func (m *MockEmbeddingStore) SaveEmbedding(ctx context.Context, emb *database.StoredEmbedding) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	emb.ID = m.nextID
	emb.CreatedAt = time.Now()
	m.rows = append(m.rows, database.RawEmbedding{
		ID:     emb.ID,
		UserID: emb.UserID,
		Raw:    []byte(pgvector.NewVector(emb.Vector).String()),
	})
	m.meta[emb.ID] = *emb
	return nil
}

// MockCourseStore is a mock implementation of database.CourseStore
type MockCourseStore struct {
	mu          sync.RWMutex
	courses     map[int64]*database.Course
	enrollments map[int64]map[int64]struct{} // course -> students
	nextID      int64

	// Error injection
	CreateError error
	GetError    error
	EnrollError error
	RosterError error
}

// NewMockCourseStore creates a new mock course store
func NewMockCourseStore() *MockCourseStore {
	return &MockCourseStore{
		courses:     make(map[int64]*database.Course),
		enrollments: make(map[int64]map[int64]struct{}),
	}
}

// CreateCourse inserts a course, rejecting duplicate codes
func (m *MockCourseStore) CreateCourse(ctx context.Context, course *database.Course) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.courses {
		if c.Code == course.Code {
			return database.ErrDuplicateCourseCode
		}
	}
	m.nextID++
	course.ID = m.nextID
	course.CreatedAt = time.Now()
	stored := *course
	m.courses[course.ID] = &stored
	return nil
}

// GetCourse retrieves a course by ID
func (m *MockCourseStore) GetCourse(ctx context.Context, id int64) (*database.Course, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := *c
	return &out, nil
}

// ListCourses returns courses ordered by ID
func (m *MockCourseStore) ListCourses(ctx context.Context) ([]database.Course, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Enroll adds a student to a course; repeated calls are no-ops
func (m *MockCourseStore) Enroll(ctx context.Context, studentID, courseID int64) error {
	if m.EnrollError != nil {
		return m.EnrollError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[courseID]; !ok {
		return database.ErrNotFound
	}
	if m.enrollments[courseID] == nil {
		m.enrollments[courseID] = make(map[int64]struct{})
	}
	m.enrollments[courseID][studentID] = struct{}{}
	return nil
}

// RosterIDs returns the sorted student IDs enrolled in a course
func (m *MockCourseStore) RosterIDs(ctx context.Context, courseID int64) ([]int64, error) {
	if m.RosterError != nil {
		return nil, m.RosterError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int64, 0, len(m.enrollments[courseID]))
	for id := range m.enrollments[courseID] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// MockLectureStore is a mock implementation of database.LectureStore
type MockLectureStore struct {
	mu       sync.RWMutex
	lectures map[int64]*database.Lecture
	nextID   int64

	// Error injection
	CreateError error
	GetError    error
	ListError   error
}

// NewMockLectureStore creates a new mock lecture store
func NewMockLectureStore() *MockLectureStore {
	return &MockLectureStore{lectures: make(map[int64]*database.Lecture)}
}

// CreateLecture inserts a lecture
func (m *MockLectureStore) CreateLecture(ctx context.Context, lecture *database.Lecture) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	lecture.ID = m.nextID
	stored := *lecture
	m.lectures[lecture.ID] = &stored
	return nil
}

// GetLecture retrieves a lecture by ID
func (m *MockLectureStore) GetLecture(ctx context.Context, id int64) (*database.Lecture, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lectures[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := *l
	return &out, nil
}

// ListLectures returns lectures ordered by ID, optionally for one course
func (m *MockLectureStore) ListLectures(ctx context.Context, courseID *int64) ([]database.Lecture, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Lecture, 0, len(m.lectures))
	for _, l := range m.lectures {
		if courseID != nil && l.CourseID != *courseID {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type attendanceKey struct {
	lectureID, studentID int64
}

// MockAttendanceStore is a mock implementation of database.AttendanceStore.
// It resolves names and courses for PresentStudents through the given stores.
type MockAttendanceStore struct {
	mu          sync.RWMutex
	records     map[attendanceKey]*database.Attendance
	upsertCalls int

	Users    *MockUserStore
	Courses  *MockCourseStore
	Lectures *MockLectureStore

	// Error injection
	UpsertError error
	ListError   error
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore(users *MockUserStore, courses *MockCourseStore, lectures *MockLectureStore) *MockAttendanceStore {
	return &MockAttendanceStore{
		records:  make(map[attendanceKey]*database.Attendance),
		Users:    users,
		Courses:  courses,
		Lectures: lectures,
	}
}

// UpsertCalls returns how many times UpsertAttendance was called
func (m *MockAttendanceStore) UpsertCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upsertCalls
}

// UpsertAttendance inserts or updates the record keyed by (lecture, student)
func (m *MockAttendanceStore) UpsertAttendance(ctx context.Context, lectureID, studentID int64, status database.AttendanceStatus) (time.Time, error) {
	if m.UpsertError != nil {
		return time.Time{}, m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	now := time.Now().UTC()
	m.records[attendanceKey{lectureID, studentID}] = &database.Attendance{
		LectureID: lectureID,
		StudentID: studentID,
		Status:    status,
		MarkedAt:  now,
	}
	return now, nil
}

// ListAttendance returns records ordered by lecture then student
func (m *MockAttendanceStore) ListAttendance(ctx context.Context, filter database.AttendanceFilter) ([]database.Attendance, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Attendance, 0, len(m.records))
	for _, a := range m.records {
		if filter.LectureID != nil && a.LectureID != *filter.LectureID {
			continue
		}
		if filter.StudentID != nil && a.StudentID != *filter.StudentID {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LectureID != out[j].LectureID {
			return out[i].LectureID < out[j].LectureID
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

// PresentStudents joins present records with users, lectures and courses
func (m *MockAttendanceStore) PresentStudents(ctx context.Context, filter database.PresentFilter) ([]database.PresentStudent, error) {
	records, err := m.ListAttendance(ctx, database.AttendanceFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]database.PresentStudent, 0)
	for _, a := range records {
		if a.Status != database.StatusPresent {
			continue
		}
		lecture, err := m.Lectures.GetLecture(ctx, a.LectureID)
		if err != nil {
			continue
		}
		if filter.CourseID != nil && lecture.CourseID != *filter.CourseID {
			continue
		}
		if filter.DoctorID != nil {
			course, err := m.Courses.GetCourse(ctx, lecture.CourseID)
			if err != nil || course.DoctorID != *filter.DoctorID {
				continue
			}
		}
		user, err := m.Users.GetUser(ctx, a.StudentID)
		if err != nil {
			continue
		}
		out = append(out, database.PresentStudent{
			StudentID: a.StudentID,
			Name:      user.FullName(),
			Email:     user.Email,
			LectureID: a.LectureID,
			CourseID:  lecture.CourseID,
			MarkedAt:  a.MarkedAt,
		})
	}
	return out, nil
}
