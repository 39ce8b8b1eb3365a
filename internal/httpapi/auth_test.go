package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"puntoventa/internal/domain"
	"puntoventa/internal/store"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func adminOnlyStore() *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	users := adminOnlyStore()
	ctx := context.Background()

	manager := NewAuthManager(ctx, "test-secret", time.Hour, "123456", users)
	if _, err := manager.Login(ctx, domain.LoginRequest{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	stored, err := users.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 user, got %d", len(stored))
	}
	if !strings.HasPrefix(stored[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", stored[0].Password)
	}
}

func TestLoginIsCaseInsensitiveOnUsername(t *testing.T) {
	ctx := context.Background()
	manager := NewAuthManager(ctx, "test-secret", time.Hour, "123456", adminOnlyStore())

	resp, err := manager.Login(ctx, domain.LoginRequest{Username: " Admin ", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}

	if _, err := manager.Login(ctx, domain.LoginRequest{Username: "admin", Password: "nope"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	ctx := context.Background()
	issuer := NewAuthManager(ctx, "secret-one", time.Hour, "123456", adminOnlyStore())
	verifier := NewAuthManager(ctx, "secret-two", time.Hour, "123456", adminOnlyStore())

	resp, err := issuer.Login(ctx, domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestCreateUserStoresPasswordHash(t *testing.T) {
	users := adminOnlyStore()
	ctx := context.Background()
	manager := NewAuthManager(ctx, "test-secret", time.Hour, "123456", users)

	created, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "CajeraDos", Password: "pass1234"})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if created.Username != "cajerados" || created.Role != domain.RoleCashier {
		t.Fatalf("unexpected user %+v", created)
	}

	stored := users.users["cajerados"]
	if !strings.HasPrefix(stored.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %q", stored.Password)
	}

	if _, err := manager.Login(ctx, domain.LoginRequest{Username: "cajerados", Password: "pass1234"}); err != nil {
		t.Fatalf("login with new user failed: %v", err)
	}

	if _, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "cajerados", Password: "pass1234"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "jefe", Password: "pass1234", Role: "owner"}); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}

	list := manager.ListUsers(ctx)
	if len(list) != 2 || list[0].Username != "admin" || list[1].Username != "cajerados" {
		t.Fatalf("unexpected user list %+v", list)
	}
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, "654321", &userStoreStub{})

	if manager.managerPIN == "654321" {
		t.Fatalf("expected manager pin to be stored as hash, got plain-text")
	}
	if !manager.ValidateManagerPIN("654321") {
		t.Fatalf("expected manager pin validation to succeed")
	}
	if manager.ValidateManagerPIN("111111") {
		t.Fatalf("expected wrong manager pin to fail")
	}
}
