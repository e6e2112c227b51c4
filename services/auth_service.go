//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-sync/auth"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/plan"
	"chat-sync/repositories"

	"github.com/google/uuid"
)

type IAuthService interface {
	Register(email, displayName, password string) (domain.User, Token, error)
	Login(email, password string) (domain.User, Token, error)
	Logout(userID string)
	UpdateProfile(userID, displayName, status string) (domain.User, error)
	ChangePlan(userID string, p domain.Plan) (domain.User, error)
	Transitions() (<-chan event.AuthTransition, func())
}

type Token string

type AuthService struct {
	users  repositories.IUserRepository
	signer *auth.TokenSigner
	log    *slog.Logger

	mu      sync.RWMutex
	nextSub int
	subs    map[int]chan event.AuthTransition
}

func NewAuthService(users repositories.IUserRepository, signer *auth.TokenSigner, log *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		signer: signer,
		log:    log,
		subs:   make(map[int]chan event.AuthTransition),
	}
}

// Register validates the request, hashes the credential and creates the
// account on the free tier. Password work happens here so the repository
// never sees a plain password.
func (s *AuthService) Register(email, displayName, password string) (domain.User, Token, error) {
	req := auth.RegisterRequest{
		Email:       email,
		DisplayName: displayName,
		Password:    password,
	}
	if err := auth.ValidateRegister(req); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        repositories.NormalizeEmail(email),
		DisplayName:  displayName,
		PasswordHash: hashed,
		Plan:         domain.PlanFree,
		UploadLimit:  plan.MaxUploadBytes(domain.PlanFree),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(user); err != nil {
		return domain.User{}, "", err
	}

	token, err := s.signer.Generate(user.ID, user.Email)
	if err != nil {
		return domain.User{}, "", errors.ErrTokenGeneration
	}

	s.log.Info("user registered", slog.String("user_id", user.ID))
	s.broadcast(user.ID, true)
	return user, Token(token), nil
}

// Login returns a generic credentials error on any failure so callers
// cannot probe which emails exist.
func (s *AuthService) Login(email, password string) (domain.User, Token, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	token, err := s.signer.Generate(user.ID, user.Email)
	if err != nil {
		return domain.User{}, "", errors.ErrTokenGeneration
	}

	s.log.Info("user logged in", slog.String("user_id", user.ID))
	s.broadcast(user.ID, true)
	return user, Token(token), nil
}

func (s *AuthService) Logout(userID string) {
	s.broadcast(userID, false)
}

func (s *AuthService) UpdateProfile(userID, displayName, status string) (domain.User, error) {
	return s.users.UpdateProfile(userID, displayName, status)
}

// ChangePlan moves the account to another tier and refreshes the cached
// upload ceiling in the same write.
func (s *AuthService) ChangePlan(userID string, p domain.Plan) (domain.User, error) {
	if !p.Valid() {
		return domain.User{}, fmt.Errorf("unknown plan %q", p)
	}
	return s.users.UpdatePlan(userID, p, plan.MaxUploadBytes(p))
}

// Transitions streams sign-in and sign-out events. The cancel func must
// be called to release the subscription.
func (s *AuthService) Transitions() (<-chan event.AuthTransition, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan event.AuthTransition, 8)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// broadcast is best-effort: a subscriber that stopped draining loses
// transitions instead of blocking auth operations.
func (s *AuthService) broadcast(userID string, signedIn bool) {
	t := event.AuthTransition{UserID: userID, SignedIn: signedIn, At: time.Now().UTC()}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- t:
		default:
		}
	}
}
