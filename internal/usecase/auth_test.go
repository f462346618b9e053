package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightmesh/querycore/internal/domain"
	"github.com/brightmesh/querycore/internal/usecase"
)

// ---- fakes ----

type fakeOrgRepo struct {
	create func(ctx context.Context, org *domain.Organization) (*domain.Organization, error)
}

func (r *fakeOrgRepo) Create(ctx context.Context, org *domain.Organization) (*domain.Organization, error) {
	return r.create(ctx, org)
}

func (r *fakeOrgRepo) GetByID(_ context.Context, id string) (*domain.Organization, error) {
	return &domain.Organization{ID: id}, nil
}

type fakeAuthUserRepo struct {
	create           func(ctx context.Context, u *domain.User) (*domain.User, error)
	getByID          func(ctx context.Context, id string) (*domain.User, error)
	getByEmail       func(ctx context.Context, orgID, email string) (*domain.User, error)
	getByEmailGlobal func(ctx context.Context, email string) (*domain.User, error)
}

func (r *fakeAuthUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	return r.create(ctx, u)
}
func (r *fakeAuthUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getByID(ctx, id)
}
func (r *fakeAuthUserRepo) GetByEmail(ctx context.Context, orgID, email string) (*domain.User, error) {
	return r.getByEmail(ctx, orgID, email)
}
func (r *fakeAuthUserRepo) GetByEmailGlobal(ctx context.Context, email string) (*domain.User, error) {
	return r.getByEmailGlobal(ctx, email)
}

// ---- helpers ----

const testJWTKey = "test-jwt-secret-at-least-32-chars!!"

func newAuthUsecase(orgs *fakeOrgRepo, users *fakeAuthUserRepo) *usecase.AuthUsecase {
	return usecase.NewAuthUsecase(orgs, users, []byte(testJWTKey), time.Hour)
}

// ---- Register ----

func TestRegister_CreatesOrgAndOwnerUser(t *testing.T) {
	var createdUser *domain.User

	orgs := &fakeOrgRepo{
		create: func(_ context.Context, org *domain.Organization) (*domain.Organization, error) {
			org.ID = "org-1"
			return org, nil
		},
	}
	users := &fakeAuthUserRepo{
		create: func(_ context.Context, u *domain.User) (*domain.User, error) {
			u.ID = "user-1"
			createdUser = u
			return u, nil
		},
	}

	result, err := newAuthUsecase(orgs, users).Register(context.Background(), "Acme", "acme", "owner@acme.test", "supersecret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if createdUser.Role != domain.RoleOwner {
		t.Errorf("role = %q, want owner", createdUser.Role)
	}
	if createdUser.OrganizationID != "org-1" {
		t.Errorf("organization_id = %q, want org-1", createdUser.OrganizationID)
	}
	if bcrypt.CompareHashAndPassword([]byte(createdUser.PasswordHash), []byte("supersecret1")) != nil {
		t.Error("stored hash does not match the submitted password")
	}
	if result.Token == "" {
		t.Error("expected a non-empty token")
	}
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	orgs := &fakeOrgRepo{}
	users := &fakeAuthUserRepo{}

	_, err := newAuthUsecase(orgs, users).Register(context.Background(), "Acme", "acme", "owner@acme.test", "short")
	if err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestRegister_DuplicateSlug_ReturnsConflict(t *testing.T) {
	orgs := &fakeOrgRepo{
		create: func(_ context.Context, _ *domain.Organization) (*domain.Organization, error) {
			return nil, domain.ErrConflict
		},
	}
	users := &fakeAuthUserRepo{}

	_, err := newAuthUsecase(orgs, users).Register(context.Background(), "Acme", "acme", "owner@acme.test", "supersecret1")
	if err == nil {
		t.Fatal("expected conflict error")
	}
}

// ---- Login ----

func TestLogin_ValidCredentials_ReturnsSignedJWT(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret1"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	testUser := &domain.User{ID: "user-1", OrganizationID: "org-1", Email: "owner@acme.test", PasswordHash: string(hash)}

	users := &fakeAuthUserRepo{
		getByEmailGlobal: func(_ context.Context, email string) (*domain.User, error) {
			if email != testUser.Email {
				return nil, domain.ErrNotFound
			}
			return testUser, nil
		},
	}

	result, err := newAuthUsecase(&fakeOrgRepo{}, users).Login(context.Background(), testUser.Email, "supersecret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, parseErr := jwt.Parse(result.Token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(testJWTKey), nil
	})
	if parseErr != nil || !token.Valid {
		t.Fatalf("returned JWT is invalid: %v", parseErr)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("could not cast claims")
	}
	if claims["sub"] != testUser.ID {
		t.Errorf("sub = %v, want %q", claims["sub"], testUser.ID)
	}
	if claims["org"] != testUser.OrganizationID {
		t.Errorf("org = %v, want %q", claims["org"], testUser.OrganizationID)
	}
}

func TestLogin_WrongPassword_ReturnsUnauthorized(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("supersecret1"), bcrypt.DefaultCost)
	testUser := &domain.User{ID: "user-1", Email: "owner@acme.test", PasswordHash: string(hash)}

	users := &fakeAuthUserRepo{
		getByEmailGlobal: func(_ context.Context, _ string) (*domain.User, error) {
			return testUser, nil
		},
	}

	_, err := newAuthUsecase(&fakeOrgRepo{}, users).Login(context.Background(), testUser.Email, "wrongpassword")
	if err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestLogin_UnknownEmail_ReturnsUnauthorized(t *testing.T) {
	users := &fakeAuthUserRepo{
		getByEmailGlobal: func(_ context.Context, _ string) (*domain.User, error) {
			return nil, domain.ErrNotFound
		},
	}

	_, err := newAuthUsecase(&fakeOrgRepo{}, users).Login(context.Background(), "nobody@acme.test", "whatever1")
	if err == nil {
		t.Fatal("expected error for unknown email")
	}
}
