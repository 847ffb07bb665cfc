package httpapi

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/DiegoBT27/VenPos/internal/domain"
	"github.com/DiegoBT27/VenPos/internal/store"
)

type fakeUserStore struct {
	users map[string]domain.UserAccount
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	copia := user
	return &copia, nil
}

func newFakeUserStore(t *testing.T) *fakeUserStore {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secreto123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return &fakeUserStore{users: map[string]domain.UserAccount{
		"cajero@venpos.local": {
			UID:      "uid-1",
			Email:    "cajero@venpos.local",
			Nombre:   "Cajera Uno",
			Password: string(hash),
			Rol:      domain.RolCajero,
			Activo:   true,
		},
		"inactivo@venpos.local": {
			UID:      "uid-2",
			Email:    "inactivo@venpos.local",
			Nombre:   "Inactivo",
			Password: string(hash),
			Rol:      domain.RolCajero,
			Activo:   false,
		},
	}}
}

func TestLoginAndParseToken(t *testing.T) {
	auth := NewAuthManager("test-secret-test-secret-test-secret", time.Hour, newFakeUserStore(t))

	resp, err := auth.Login(context.Background(), domain.LoginRequest{
		Email:    "Cajero@VenPos.local",
		Password: "secreto123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.UID != "uid-1" || resp.Rol != domain.RolCajero {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.UID != "uid-1" || actor.Nombre != "Cajera Uno" || actor.Rol != domain.RolCajero {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejectsBadCredentialsAndInactive(t *testing.T) {
	auth := NewAuthManager("test-secret-test-secret-test-secret", time.Hour, newFakeUserStore(t))

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Email: "cajero@venpos.local", Password: "wrong"}); err == nil {
		t.Fatalf("wrong password must fail")
	}
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Email: "nadie@venpos.local", Password: "secreto123"}); err == nil {
		t.Fatalf("unknown email must fail")
	}
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Email: "inactivo@venpos.local", Password: "secreto123"}); err == nil {
		t.Fatalf("inactive account must fail")
	}
}

func TestParseTokenRejectsForgedToken(t *testing.T) {
	auth := NewAuthManager("test-secret-test-secret-test-secret", time.Hour, newFakeUserStore(t))
	other := NewAuthManager("other-secret-other-secret-other-sec", time.Hour, newFakeUserStore(t))

	resp, err := other.Login(context.Background(), domain.LoginRequest{
		Email:    "cajero@venpos.local",
		Password: "secreto123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
	if _, err := auth.ParseToken("not-a-token"); err == nil {
		t.Fatalf("garbage token must be rejected")
	}
}

func TestNewUserAccountValidation(t *testing.T) {
	auth := NewAuthManager("test-secret-test-secret-test-secret", time.Hour, newFakeUserStore(t))

	account, err := auth.NewUserAccount(domain.UserCreateRequest{
		Email:    "Nueva@VenPos.local",
		Password: "clave123",
		Nombre:   "Nueva Cajera",
		Rol:      domain.RolCajero,
	})
	if err != nil {
		t.Fatalf("valid request failed: %v", err)
	}
	if account.Email != "nueva@venpos.local" || !account.Activo {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.Password == "clave123" {
		t.Fatalf("password must be stored hashed")
	}

	bad := []domain.UserCreateRequest{
		{Email: "no-arroba", Password: "clave123", Nombre: "X", Rol: domain.RolCajero},
		{Email: "x@y.z", Password: "corta", Nombre: "X", Rol: domain.RolCajero},
		{Email: "x@y.z", Password: "clave123", Nombre: "", Rol: domain.RolCajero},
		{Email: "x@y.z", Password: "clave123", Nombre: "X", Rol: "gerente"},
	}
	for i, req := range bad {
		if _, err := auth.NewUserAccount(req); err == nil {
			t.Fatalf("request %d must be rejected", i)
		}
	}
}
