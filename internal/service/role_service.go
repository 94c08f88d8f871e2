package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/schoolbot/internal/models"
	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

const (
	roleCacheTTL        = 10 * time.Minute
	roleCacheMaxEntries = 4096
)

// TeacherChecker answers whether a username belongs to a teacher and whether
// that teacher has completed the chat handshake.
type TeacherChecker interface {
	Exists(ctx context.Context, username string) (bool, error)
	IsRegistered(ctx context.Context, username string) (bool, error)
}

// StudentChecker answers whether a username belongs to a student and whether
// that student has completed the chat handshake.
type StudentChecker interface {
	Exists(ctx context.Context, username string) (bool, error)
	IsRegistered(ctx context.Context, username string) (bool, error)
}

// RoleCacheRecorder counts role cache lookups.
type RoleCacheRecorder interface {
	RoleCacheLookup(hit bool)
}

// RoleService resolves the role of an inbound user. Precedence is fixed:
// director beats teacher beats student; anyone else is unknown. Teacher and
// student roles require a bound chat id, so an enrolled user who has never
// opened the bot stays unknown until their handshake.
type RoleService struct {
	directorUsername string
	teachers         TeacherChecker
	students         StudentChecker
	cache            *redis.Client
	metrics          RoleCacheRecorder

	mu   sync.Mutex
	memo map[string]models.Role
}

// NewRoleService constructs a RoleService. The redis client is optional; when
// nil, resolution falls back to the in-process memo only.
func NewRoleService(directorUsername string, teachers TeacherChecker, students StudentChecker, cache *redis.Client, metrics RoleCacheRecorder) *RoleService {
	return &RoleService{
		directorUsername: normalizeHandle(directorUsername),
		teachers:         teachers,
		students:         students,
		cache:            cache,
		metrics:          metrics,
		memo:             make(map[string]models.Role),
	}
}

func roleKey(username string) string {
	return "role:" + username
}

// Resolve determines the user's role.
func (s *RoleService) Resolve(ctx context.Context, username string) (models.Role, error) {
	username = normalizeHandle(username)
	if username == "" {
		return models.RoleUnknown, nil
	}

	role, err := s.fromCache(ctx, username)
	if err == nil {
		s.recordLookup(true)
		return role, nil
	}
	s.recordLookup(false)

	role, err = s.lookup(ctx, username)
	if err != nil {
		return models.RoleUnknown, err
	}

	// Unknown is never cached: the user may be added as a student or teacher
	// at any moment and must pick up the new role on their next message.
	if role != models.RoleUnknown {
		s.store(ctx, username, role)
	}
	return role, nil
}

// Eligible reports the role the username would hold once registered, ignoring
// the handshake requirement. The /start handler uses it to decide whether an
// unregistered sender may bind a chat id. Never cached.
func (s *RoleService) Eligible(ctx context.Context, username string) (models.Role, error) {
	username = normalizeHandle(username)
	if username == "" {
		return models.RoleUnknown, nil
	}
	if username == s.directorUsername && s.directorUsername != "" {
		return models.RoleDirector, nil
	}
	isTeacher, err := s.teachers.Exists(ctx, username)
	if err != nil {
		return models.RoleUnknown, fmt.Errorf("check eligibility: %w", err)
	}
	if isTeacher {
		return models.RoleTeacher, nil
	}
	isStudent, err := s.students.Exists(ctx, username)
	if err != nil {
		return models.RoleUnknown, fmt.Errorf("check eligibility: %w", err)
	}
	if isStudent {
		return models.RoleStudent, nil
	}
	return models.RoleUnknown, nil
}

// Invalidate drops any cached role for the user. Call after role-changing
// writes such as adding a teacher, enrolling a student, or binding a chat id.
func (s *RoleService) Invalidate(ctx context.Context, username string) {
	username = normalizeHandle(username)
	s.mu.Lock()
	delete(s.memo, username)
	s.mu.Unlock()
	if s.cache != nil {
		_ = s.cache.Del(ctx, roleKey(username)).Err()
	}
}

func (s *RoleService) lookup(ctx context.Context, username string) (models.Role, error) {
	if username == s.directorUsername && s.directorUsername != "" {
		return models.RoleDirector, nil
	}
	isTeacher, err := s.teachers.IsRegistered(ctx, username)
	if err != nil {
		return models.RoleUnknown, fmt.Errorf("resolve role: %w", err)
	}
	if isTeacher {
		return models.RoleTeacher, nil
	}
	isStudent, err := s.students.IsRegistered(ctx, username)
	if err != nil {
		return models.RoleUnknown, fmt.Errorf("resolve role: %w", err)
	}
	if isStudent {
		return models.RoleStudent, nil
	}
	return models.RoleUnknown, nil
}

func (s *RoleService) fromCache(ctx context.Context, username string) (models.Role, error) {
	s.mu.Lock()
	role, ok := s.memo[username]
	s.mu.Unlock()
	if ok {
		return role, nil
	}
	if s.cache == nil {
		return models.RoleUnknown, apperrors.ErrCacheMiss
	}
	val, err := s.cache.Get(ctx, roleKey(username)).Result()
	if err != nil {
		return models.RoleUnknown, apperrors.Wrap(err,
			apperrors.ErrCacheMiss.Code, apperrors.ErrCacheMiss.Status, apperrors.ErrCacheMiss.Message)
	}
	return models.Role(val), nil
}

func (s *RoleService) store(ctx context.Context, username string, role models.Role) {
	s.mu.Lock()
	if len(s.memo) >= roleCacheMaxEntries {
		s.memo = make(map[string]models.Role)
	}
	s.memo[username] = role
	s.mu.Unlock()
	if s.cache != nil {
		_ = s.cache.Set(ctx, roleKey(username), string(role), roleCacheTTL).Err()
	}
}

func (s *RoleService) recordLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.RoleCacheLookup(hit)
	}
}
