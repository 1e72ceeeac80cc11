package services

import (
	"errors"

	"patchpilot/backend/app/models"
	"patchpilot/backend/app/repo"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct{ users *repo.UserRepository }

func NewUserService(users *repo.UserRepository) *UserService { return &UserService{users: users} }

func (s *UserService) EnsureAdmin(username, password string) error {
	count, err := s.users.CountByUsername(username)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.Create(&models.User{Username: username, PasswordHash: string(hash), Role: "admin"})
}

func (s *UserService) ValidateCredentials(username, password string) (*models.User, error) {
	u, err := s.users.FindByUsername(username)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
