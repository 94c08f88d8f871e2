package bot

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/schoolbot/internal/models"
	"github.com/noah-isme/schoolbot/internal/notify"
	"github.com/noah-isme/schoolbot/internal/repository"
	"github.com/noah-isme/schoolbot/internal/scraper"
)

// memStore is an in-memory stand-in for the whole persistence layer. It backs
// the router tests so a complete conversation can run without a database.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	assignments []*models.Assignment
	teachers    map[string]*models.Teacher
	students    map[string]*models.Student
	classes     map[string]*models.Class // keyed teacher + "/" + normalized name
	members     map[string][]string      // same key -> usernames
}

func newMemStore() *memStore {
	return &memStore{
		teachers: map[string]*models.Teacher{},
		students: map[string]*models.Student{},
		classes:  map[string]*models.Class{},
		members:  map[string][]string{},
	}
}

func classKey(teacher, name string) string {
	return teacher + "/" + repository.NormalizeClassName(name)
}

// --- service.AssignmentRepo ---

func (s *memStore) Insert(ctx context.Context, a *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	a.Status = models.StatusActive
	a.CreatedAt = time.Now().UTC()
	copied := *a
	s.assignments = append(s.assignments, &copied)
	return nil
}

func (s *memStore) UpdateActiveAttachment(ctx context.Context, teacher, student, body string, att *models.Attachment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := false
	for _, a := range s.assignments {
		if a.TeacherUsername == teacher && a.StudentUsername == student && a.Body == body &&
			a.Kind == models.KindIndividual && a.Status == models.StatusActive && a.Grade == nil {
			a.FileID, a.FileType, a.FileName = nil, nil, nil
			if att != nil {
				fid := att.FileID
				ft := string(att.Type)
				a.FileID, a.FileType, a.FileName = &fid, &ft, att.Name
			}
			updated = true
		}
	}
	return updated, nil
}

func (s *memStore) ActiveByStudent(ctx context.Context, student string) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Assignment
	for _, a := range s.assignments {
		if a.StudentUsername == student && a.Status == models.StatusActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) ActiveByIDAndStudent(ctx context.Context, id int64, student string) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ID == id && a.StudentUsername == student && a.Status == models.StatusActive {
			copied := *a
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) SubmitResponse(ctx context.Context, id int64, student, text string, att *models.Attachment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ID == id && a.StudentUsername == student && a.Status == models.StatusActive {
			a.Status = models.StatusSubmitted
			now := time.Now().UTC()
			a.SubmittedAt = &now
			if text != "" {
				a.ResponseText = &text
			}
			if att != nil {
				fid := att.FileID
				ft := string(att.Type)
				a.ResponseFileID, a.ResponseFileType = &fid, &ft
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) SubmittedByTeacher(ctx context.Context, teacher string, limit int) ([]models.SubmittedWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SubmittedWork
	for _, a := range s.assignments {
		if a.TeacherUsername == teacher && a.Status == models.StatusSubmitted {
			out = append(out, models.SubmittedWork{Assignment: *a, StudentName: s.studentName(a.StudentUsername)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(*out[j].SubmittedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) SubmittedByIDAndTeacher(ctx context.Context, id int64, teacher string) (*models.SubmittedWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ID == id && a.TeacherUsername == teacher && a.Status == models.StatusSubmitted {
			return &models.SubmittedWork{Assignment: *a, StudentName: s.studentName(a.StudentUsername)}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) SetGrade(ctx context.Context, id int64, teacher string, grade int) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ID == id && a.TeacherUsername == teacher && a.Status == models.StatusSubmitted {
			g := grade
			now := time.Now().UTC()
			a.Grade, a.GradedAt = &g, &now
			return a.StudentUsername, a.Body, nil
		}
	}
	return "", "", sql.ErrNoRows
}

func (s *memStore) CompletedByStudent(ctx context.Context, student string, limit int) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Assignment
	for _, a := range s.assignments {
		if a.StudentUsername == student && a.Status == models.StatusSubmitted {
			out = append(out, *a)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) studentName(username string) string {
	if st, ok := s.students[username]; ok && st.DisplayName != nil {
		return *st.DisplayName
	}
	return username
}

// --- teacher / student directories and rosters ---

type memTeachers struct{ s *memStore }

func (m memTeachers) Exists(ctx context.Context, username string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.teachers[username]
	return ok, nil
}

func (m memTeachers) IsRegistered(ctx context.Context, username string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.teachers[username]
	return ok && t.ChatID != nil, nil
}

func (m memTeachers) Create(ctx context.Context, username string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.teachers[username] = &models.Teacher{Username: username}
	return nil
}

func (m memTeachers) Register(ctx context.Context, username string, chatID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.teachers[username]
	if !ok {
		t = &models.Teacher{Username: username}
		m.s.teachers[username] = t
	}
	t.ChatID = &chatID
	return nil
}

func (m memTeachers) ChatID(ctx context.Context, username string) (*int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t, ok := m.s.teachers[username]; ok {
		return t.ChatID, nil
	}
	return nil, sql.ErrNoRows
}

func (m memTeachers) ClassesWithStudents(ctx context.Context, username string) ([]models.ClassRoster, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.ClassRoster
	for key, class := range m.s.classes {
		if class.TeacherUsername == username {
			out = append(out, models.ClassRoster{Name: class.Name, Students: m.s.members[key]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memStudents struct{ s *memStore }

func (m memStudents) Exists(ctx context.Context, username string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.students[username]
	return ok, nil
}

func (m memStudents) IsRegistered(ctx context.Context, username string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st, ok := m.s.students[username]
	return ok && st.ChatID != nil, nil
}

func (m memStudents) Create(ctx context.Context, username string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.students[username] = &models.Student{Username: username}
	return nil
}

func (m memStudents) Register(ctx context.Context, username string, chatID int64, displayName string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st, ok := m.s.students[username]
	if !ok {
		st = &models.Student{Username: username}
		m.s.students[username] = st
	}
	st.ChatID = &chatID
	if displayName != "" {
		st.DisplayName = &displayName
	}
	return nil
}

func (m memStudents) Find(ctx context.Context, username string) (*models.Student, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if st, ok := m.s.students[username]; ok {
		copied := *st
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m memStudents) ClassesWithActiveCounts(ctx context.Context, username string) ([]models.StudentClass, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.StudentClass
	for key, class := range m.s.classes {
		for _, member := range m.s.members[key] {
			if member != username {
				continue
			}
			count := 0
			for _, a := range m.s.assignments {
				if a.StudentUsername == username && a.Status == models.StatusActive &&
					a.ClassName != nil && *a.ClassName == class.Name {
					count++
				}
			}
			out = append(out, models.StudentClass{Name: class.Name, ActiveCount: count})
		}
	}
	return out, nil
}

type memClasses struct{ s *memStore }

func (m memClasses) Create(ctx context.Context, class models.Class) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.classes[classKey(class.TeacherUsername, class.Name)] = &class
	return nil
}

func (m memClasses) FindByName(ctx context.Context, teacher, name string) (*models.Class, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if class, ok := m.s.classes[classKey(teacher, name)]; ok {
		copied := *class
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m memClasses) ListByTeacher(ctx context.Context, teacher string) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var names []string
	for _, class := range m.s.classes {
		if class.TeacherUsername == teacher {
			names = append(names, class.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m memClasses) AddMember(ctx context.Context, student string, class models.Class) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := classKey(class.TeacherUsername, class.Name)
	m.s.members[key] = append(m.s.members[key], student)
	return nil
}

func (m memClasses) IsMember(ctx context.Context, student string, class models.Class) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, member := range m.s.members[classKey(class.TeacherUsername, class.Name)] {
		if member == student {
			return true, nil
		}
	}
	return false, nil
}

func (m memClasses) Members(ctx context.Context, class models.Class) ([]models.ClassMember, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.ClassMember
	for _, member := range m.s.members[classKey(class.TeacherUsername, class.Name)] {
		var chatID *int64
		if st, ok := m.s.students[member]; ok {
			chatID = st.ChatID
		}
		out = append(out, models.ClassMember{StudentUsername: member, ChatID: chatID})
	}
	return out, nil
}

// --- delivery fakes ---

// syncNotifier delivers synchronously so tests observe notifications
// immediately instead of waiting on queue workers.
type syncNotifier struct {
	sent []notify.Notification
}

func (n *syncNotifier) Notify(notification notify.Notification) {
	n.sent = append(n.sent, notification)
}

func (n *syncNotifier) NotifyAll(batch []notify.Notification) {
	n.sent = append(n.sent, batch...)
}

// recordingTransport captures every outbound reply per chat.
type recordingTransport struct {
	replies map[int64][]string
	files   []string
	nextID  int64
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{replies: map[int64][]string{}}
}

func (t *recordingTransport) send(chatID int64, text string) (int64, error) {
	t.replies[chatID] = append(t.replies[chatID], text)
	t.nextID++
	return t.nextID, nil
}

func (t *recordingTransport) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	return t.send(chatID, text)
}

func (t *recordingTransport) SendDocument(ctx context.Context, chatID int64, fileID, caption string) (int64, error) {
	return t.send(chatID, "[document "+fileID+"] "+caption)
}

func (t *recordingTransport) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (int64, error) {
	return t.send(chatID, "[photo "+fileID+"] "+caption)
}

func (t *recordingTransport) SendFile(ctx context.Context, chatID int64, filename string, data []byte, caption string) (int64, error) {
	t.files = append(t.files, filename)
	return t.send(chatID, "[file "+filename+"] "+caption)
}

func (t *recordingTransport) last(chatID int64) string {
	msgs := t.replies[chatID]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type stubSchool struct {
	info  string
	links []scraper.Link
	err   error
}

func (s *stubSchool) SchoolInfo(ctx context.Context) (string, error) {
	return s.info, s.err
}

func (s *stubSchool) ScheduleLinks(ctx context.Context) ([]scraper.Link, error) {
	return s.links, s.err
}

func containsAll(text string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(text, p) {
			return false
		}
	}
	return true
}
