package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightmesh/querycore/internal/apperror"
	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/repository"
)

// AuthUsecase registers organizations and their first user, and
// authenticates existing users with an HS256 JWT.
type AuthUsecase struct {
	orgs   repository.OrganizationRepository
	users  repository.UserRepository
	jwtKey []byte
	jwtTTL time.Duration
}

func NewAuthUsecase(orgs repository.OrganizationRepository, users repository.UserRepository, jwtKey []byte, jwtTTL time.Duration) *AuthUsecase {
	return &AuthUsecase{orgs: orgs, users: users, jwtKey: jwtKey, jwtTTL: jwtTTL}
}

// AuthResult is returned by both Register and Login.
type AuthResult struct {
	User  *domain.User
	Token string
}

// Register creates a new Organization and its first User as owner.
// orgSlug must be unique; email is unique within the organization (and,
// since login resolves purely by email, globally unique in practice).
func (u *AuthUsecase) Register(ctx context.Context, orgName, orgSlug, email, password string) (*AuthResult, error) {
	if len(password) < 8 {
		return nil, apperror.BadRequest("password must be at least 8 characters")
	}

	org, err := u.orgs.Create(ctx, &domain.Organization{Name: orgName, Slug: orgSlug})
	if err != nil {
		return nil, apperror.Conflict("organization slug already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("hashing password: %w", err))
	}

	user, err := u.users.Create(ctx, &domain.User{
		OrganizationID: org.ID,
		Email:          email,
		PasswordHash:   string(hash),
		Role:           domain.RoleOwner,
	})
	if err != nil {
		return nil, apperror.Conflict("email already registered")
	}

	token, err := u.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies the password for the user registered under email (email
// is resolved globally since the caller does not yet know their org ID)
// and returns a fresh token.
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := u.users.GetByEmailGlobal(ctx, email)
	if err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	token, err := u.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (u *AuthUsecase) issueToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": user.ID,
		"org": user.OrganizationID,
		"iat": now.Unix(),
		"exp": now.Add(u.jwtTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(u.jwtKey)
	if err != nil {
		return "", apperror.Internal(fmt.Errorf("signing token for user %s: %w", user.ID, err))
	}
	return signed, nil
}
