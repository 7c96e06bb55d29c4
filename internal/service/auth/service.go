package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/startup-vision/backend/internal/model/profile"
)

var (
	ErrUserExists         = errors.New("registration number already taken")
	ErrInvalidCredentials = errors.New("invalid registration number or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrMissingFields      = errors.New("name, email, registration number and password are required")
)

// SignupInput is the payload of a new account.
type SignupInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	RegNumber string `json:"regNumber"`
	Password  string `json:"password"`
}

// Service implements the simulated student accounts.
type Service struct {
	users profile.Store
	cost  int
}

// NewService returns a Service hashing passwords with the given bcrypt cost.
func NewService(users profile.Store, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, cost: cost}
}

// Signup registers a new account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (profile.Profile, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.RegNumber = strings.TrimSpace(in.RegNumber)
	if in.Name == "" || in.Email == "" || in.RegNumber == "" || in.Password == "" {
		return profile.Profile{}, ErrMissingFields
	}

	if _, exists, err := s.users.Find(ctx, in.RegNumber); err != nil {
		return profile.Profile{}, err
	} else if exists {
		return profile.Profile{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	record := profile.Record{
		Profile:      profile.Profile{RegNumber: in.RegNumber, Name: in.Name, Email: in.Email},
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, record); err != nil {
		if errors.Is(err, profile.ErrExists) {
			return profile.Profile{}, ErrUserExists
		}
		return profile.Profile{}, err
	}

	log.Printf("[auth] registered %s", in.RegNumber)
	return record.Profile, nil
}

// Login checks the password of regNumber.
func (s *Service) Login(ctx context.Context, regNumber, password string) (profile.Profile, error) {
	record, ok, err := s.users.Find(ctx, strings.TrimSpace(regNumber))
	if err != nil {
		return profile.Profile{}, err
	}
	if !ok {
		return profile.Profile{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return profile.Profile{}, ErrInvalidCredentials
	}
	return record.Profile, nil
}

// Profile returns the public profile of regNumber.
func (s *Service) Profile(ctx context.Context, regNumber string) (profile.Profile, error) {
	record, ok, err := s.users.Find(ctx, regNumber)
	if err != nil {
		return profile.Profile{}, err
	}
	if !ok {
		return profile.Profile{}, ErrUserNotFound
	}
	return record.Profile, nil
}

// UpdateProfile merges update into the stored profile. The registration number cannot change.
func (s *Service) UpdateProfile(ctx context.Context, regNumber string, update profile.Update) (profile.Profile, error) {
	record, ok, err := s.users.Find(ctx, regNumber)
	if err != nil {
		return profile.Profile{}, err
	}
	if !ok {
		return profile.Profile{}, ErrUserNotFound
	}

	record.Profile = update.Apply(record.Profile)
	if err := s.users.Put(ctx, record); err != nil {
		return profile.Profile{}, err
	}
	return record.Profile, nil
}
