package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/homework-grader/internal/dto"
	"github.com/noah-isme/homework-grader/internal/models"
	"github.com/noah-isme/homework-grader/internal/repository"
)

var (
	// ErrUsernameTaken indicates the username belongs to another account.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrInvalidCredentials indicates the username or password did not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrStudentNotFound indicates the session refers to a missing account.
	ErrStudentNotFound = errors.New("student not found")
)

// AuthService manages student accounts.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.StudentProfile, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.StudentProfile, error)
	Profile(ctx context.Context, studentID uint) (dto.StudentProfile, error)
}

type authService struct {
	students  repository.StudentRepository
	validator *validator.Validate
	logger    zerolog.Logger
	hashCost  int
}

// NewAuthService constructs an account service.
func NewAuthService(students repository.StudentRepository, validate *validator.Validate, logger zerolog.Logger) AuthService {
	return &authService{
		students:  students,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		hashCost:  bcrypt.DefaultCost,
	}
}

func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.StudentProfile, error) {
	payload.Username = strings.TrimSpace(payload.Username)
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Class = strings.TrimSpace(payload.Class)

	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentProfile{}, err
	}

	exists, err := s.students.ExistsByUsername(ctx, payload.Username)
	if err != nil {
		return dto.StudentProfile{}, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return dto.StudentProfile{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), s.hashCost)
	if err != nil {
		return dto.StudentProfile{}, fmt.Errorf("hash password: %w", err)
	}

	student := models.Student{
		Username: payload.Username,
		Password: string(hash),
		Name:     payload.Name,
		Class:    payload.Class,
	}
	if err := s.students.Create(ctx, &student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.StudentProfile{}, ErrUsernameTaken
		}
		return dto.StudentProfile{}, fmt.Errorf("create student: %w", err)
	}

	s.logger.Info().Uint("student_id", student.ID).Str("username", student.Username).Msg("student registered")
	return dto.NewStudentProfile(student), nil
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.StudentProfile, error) {
	payload.Username = strings.TrimSpace(payload.Username)
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentProfile{}, err
	}

	student, err := s.students.GetByUsername(ctx, payload.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentProfile{}, ErrInvalidCredentials
		}
		return dto.StudentProfile{}, fmt.Errorf("load student: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(student.Password), []byte(payload.Password)); err != nil {
		return dto.StudentProfile{}, ErrInvalidCredentials
	}

	return dto.NewStudentProfile(student), nil
}

func (s *authService) Profile(ctx context.Context, studentID uint) (dto.StudentProfile, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentProfile{}, ErrStudentNotFound
		}
		return dto.StudentProfile{}, fmt.Errorf("load student: %w", err)
	}

	return dto.NewStudentProfile(student), nil
}
