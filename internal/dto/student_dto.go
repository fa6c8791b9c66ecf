package dto

import (
	"time"

	"github.com/noah-isme/homework-grader/internal/models"
)

// RegisterRequest is the payload for creating a student account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Password string `json:"password" validate:"required,min=6,max=20"`
	Name     string `json:"name" validate:"required,max=50"`
	Class    string `json:"class" validate:"required,max=50"`
}

// LoginRequest is the payload for signing in.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// StudentProfile is the public view of a student account.
type StudentProfile struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Class     string    `json:"class"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStudentProfile maps a student model to its public view.
func NewStudentProfile(student models.Student) StudentProfile {
	return StudentProfile{
		ID:        student.ID,
		Username:  student.Username,
		Name:      student.Name,
		Class:     student.Class,
		CreatedAt: student.CreatedAt,
	}
}

// LoginResponse is returned after register and login.
type LoginResponse struct {
	Student   StudentProfile `json:"student"`
	Token     string         `json:"token,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// ClassResponse lists a class offering.
type ClassResponse struct {
	ID      uint   `json:"class_id"`
	Major   string `json:"major"`
	Teacher string `json:"teacher"`
}

// NewClassResponses converts class models.
func NewClassResponses(classes []models.Class) []ClassResponse {
	responses := make([]ClassResponse, 0, len(classes))
	for _, class := range classes {
		responses = append(responses, ClassResponse{ID: class.ID, Major: class.Major, Teacher: class.Teacher})
	}
	return responses
}
