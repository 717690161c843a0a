package services

import (
	"errors"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/services/repositories"
	"github.com/current-see/solar_api/shared"
)

// AuthService handles registration, login and the request auth middleware.
// Registration opens a Solar account with the signup bonus and retires the
// visitor session the user registered from.
type AuthService struct {
	context.DefaultService

	sqlSvc     SqlStore
	jwtSvc     *JWTService
	ledgerSvc  *LedgerService
	sessionSvc *SessionService

	userRepo *repositories.UserRepository
}

const AUTH_SVC = "auth_svc"

func (svc AuthService) Id() string {
	return AUTH_SVC
}

func (svc *AuthService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *AuthService) Start() error {
	svc.sqlSvc = svc.Service(StoreID()).(SqlStore)
	svc.jwtSvc = svc.Service(JWT_SVC).(*JWTService)
	svc.ledgerSvc = svc.Service(LEDGER_SVC).(*LedgerService)
	svc.sessionSvc = svc.Service(SESSION_SVC).(*SessionService)

	svc.userRepo = repositories.NewUserRepository(svc.sqlSvc.Db())
	return nil
}

func (svc *AuthService) Register(req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := svc.userRepo.GetUserByEmail(email); err == nil {
		return nil, shared.NewConflictError(errors.New("email taken"), "Email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewServiceUnavailableError(err, "User store unavailable")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to hash password")
	}

	user, err := svc.userRepo.CreateUser(&model.User{
		Email:     email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  string(hash),
	})
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to create user")
	}

	account, err := svc.ledgerSvc.CreateAccountWithBonus(user.ID)
	if err != nil {
		return nil, err
	}

	if req.SessionID != "" {
		if err := svc.sessionSvc.Promote(req.SessionID, user.ID); err != nil {
			log.WithError(err).WithField("session_id", req.SessionID).Warn("Failed to retire visitor session")
		}
	}

	tokens, err := svc.jwtSvc.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to issue tokens")
	}

	log.WithFields(log.Fields{
		"user_id":    user.ID,
		"account_id": account.ID,
	}).Info("User registered")

	return &dto.RegisterResponse{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Profile: dto.ProfileResponse{
			UserID:       user.ID,
			Email:        user.Email,
			FirstName:    user.FirstName,
			LastName:     user.LastName,
			SolarBalance: account.Balance,
			TotalEarned:  account.TotalEarned,
			TotalSpent:   account.TotalSpent,
		},
		Tokens:  tokens,
		Message: "Registration successful",
	}, nil
}

func (svc *AuthService) Login(req dto.LoginRequest) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := svc.userRepo.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewUnauthorizedError(err, "Invalid credentials")
		}
		return nil, shared.NewServiceUnavailableError(err, "User store unavailable")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, shared.NewUnauthorizedError(err, "Invalid credentials")
	}

	now := time.Now()
	user.LastLogin = &now
	if err := svc.userRepo.UpdateUser(user); err != nil {
		log.WithError(err).Warn("Failed to record last login")
	}

	tokens, err := svc.jwtSvc.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to issue tokens")
	}

	return &dto.LoginResponse{UserID: user.ID, Tokens: tokens}, nil
}

func (svc *AuthService) GetProfile(userID string) (*dto.ProfileResponse, error) {
	user, err := svc.userRepo.GetUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "User not found")
		}
		return nil, shared.NewServiceUnavailableError(err, "User store unavailable")
	}

	account, err := svc.ledgerSvc.GetAccountForUser(userID)
	if err != nil {
		return nil, err
	}

	return &dto.ProfileResponse{
		UserID:       user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		SolarBalance: account.Balance,
		TotalEarned:  account.TotalEarned,
		TotalSpent:   account.TotalSpent,
	}, nil
}

func (svc *AuthService) GetUser(userID string) (*model.User, error) {
	return svc.userRepo.GetUser(userID)
}

// RequiredAuth rejects requests without a valid bearer token.
func (svc *AuthService) RequiredAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := svc.jwtSvc.ExtractTokenFromHeader(c.Get("Authorization"))
		if err != nil {
			return shared.NewUnauthorizedError(err, "Authentication required")
		}

		userID, err := svc.jwtSvc.VerifyJWTToken(token)
		if err != nil {
			return shared.NewUnauthorizedError(err, "Invalid or expired token")
		}

		c.Locals(shared.UserID, userID)
		return c.Next()
	}
}

// OptionalAuth resolves identity when present without requiring it. A bearer
// token wins; otherwise an X-Session-ID header identifies an anonymous
// visitor. Requests with neither proceed unidentified and get rejected at the
// operation level where identity matters.
func (svc *AuthService) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, err := svc.jwtSvc.ExtractTokenFromHeader(c.Get("Authorization")); err == nil {
			if userID, err := svc.jwtSvc.VerifyJWTToken(token); err == nil {
				c.Locals(shared.UserID, userID)
				return c.Next()
			}
		}

		if sessionID := c.Get("X-Session-ID"); sessionID != "" {
			c.Locals(shared.SessionID, sessionID)
		}

		return c.Next()
	}
}

// RequireAdmin sits behind RequiredAuth on the admin surface.
func (svc *AuthService) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(shared.UserID).(string)
		if !ok || userID == "" {
			return shared.NewUnauthorizedError(errors.New("no identity"), "Authentication required")
		}

		user, err := svc.userRepo.GetUser(userID)
		if err != nil {
			return shared.NewUnauthorizedError(err, "Authentication required")
		}
		if user.Role != "admin" {
			return shared.NewForbiddenError(errors.New("admin role required"), "Forbidden")
		}

		return c.Next()
	}
}
