package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookstore-api/logger"
	"bookstore-api/model"
	"bookstore-api/repository"
)

var (
	ErrEmailTaken   = errors.New("email is already registered")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidRole  = errors.New("invalid role specified")
)

const userCacheTTL = 10 * time.Minute

// UserService handles user-related business logic: registration, profile
// reads and updates, role changes and soft deletion.
type UserService struct {
	userRepo    repository.IUserRepository
	tokenRepo   repository.ITokenRepository
	authService *AuthService
	cache       ICacheClient
}

func NewUserService(userRepo repository.IUserRepository, tokenRepo repository.ITokenRepository, authService *AuthService, cache ICacheClient) *UserService {
	return &UserService{
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		authService: authService,
		cache:       cache,
	}
}

func userCacheKey(id int) string {
	return fmt.Sprintf("users:%d", id)
}

// Register creates a new member account with a hashed password.
func (s *UserService) Register(req model.RegisterRequest) (*model.User, error) {
	if _, err := s.userRepo.GetUserByEmail(req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("could not look up user: %w", err)
	}

	hashedPassword, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:        req.Name,
		Email:       req.Email,
		Password:    hashedPassword,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
		Role:        string(model.RoleMember),
	}
	if err := s.userRepo.CreateUser(user); err != nil {
		return nil, fmt.Errorf("could not create user: %w", err)
	}

	logger.Log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// GetUserByID fetches a user, preferring the cache. A miss reads the database
// and populates the cache for subsequent requests.
func (s *UserService) GetUserByID(id int) (*model.User, error) {
	ctx := context.Background()
	cacheKey := userCacheKey(id)

	if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
		user := &model.User{}
		if err := json.Unmarshal([]byte(cached), user); err == nil {
			return user, nil
		}
	}

	user, err := s.userRepo.GetUserByID(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("could not look up user: %w", err)
	}

	if data, err := json.Marshal(user); err == nil {
		s.cache.Set(ctx, cacheKey, data, userCacheTTL)
	}

	return user, nil
}

func (s *UserService) GetAllUsers() ([]*model.User, error) {
	return s.userRepo.GetAllUsers()
}

// UpdateUser applies a partial profile update. A new password is re-hashed
// before storage; the user's cache entry is invalidated.
func (s *UserService) UpdateUser(id int, req model.UpdateUserRequest) (*model.User, error) {
	user, err := s.userRepo.GetUserByID(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("could not look up user: %w", err)
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Address != "" {
		user.Address = req.Address
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.Password != "" {
		hashedPassword, err := s.authService.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashedPassword
	}

	if err := s.userRepo.UpdateUser(user); err != nil {
		return nil, fmt.Errorf("could not update user: %w", err)
	}

	s.cache.Del(context.Background(), userCacheKey(id))
	return user, nil
}

// UpdateUserRole validates the role and calls the repository to update it.
func (s *UserService) UpdateUserRole(userID int, newRole model.Role) error {
	if newRole != model.RoleAdmin && newRole != model.RoleMember {
		return ErrInvalidRole
	}

	if err := s.userRepo.UpdateUserRole(userID, string(newRole)); err != nil {
		return err
	}

	s.cache.Del(context.Background(), userCacheKey(userID))
	return nil
}

// DeleteUser soft-deletes the account and revokes its refresh tokens. The
// token cascade is explicit here rather than left to the schema: a marked-
// deleted user row keeps its token rows alive, so they must be revoked.
func (s *UserService) DeleteUser(id int) error {
	deleted, err := s.userRepo.SoftDeleteUser(id)
	if err != nil {
		return fmt.Errorf("could not delete user: %w", err)
	}
	if !deleted {
		return ErrUserNotFound
	}

	if err := s.tokenRepo.RevokeAllByUserID(id); err != nil {
		return fmt.Errorf("could not revoke refresh tokens: %w", err)
	}

	s.cache.Del(context.Background(), userCacheKey(id))
	logger.Log.WithField("user_id", id).Info("User soft-deleted")
	return nil
}
