package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/DiegoBT27/VenPos/internal/domain"
	"github.com/DiegoBT27/VenPos/internal/store"
	"github.com/DiegoBT27/VenPos/internal/xid"
)

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
}

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Nombre string `json:"nombre"`
	Rol    string `json:"rol"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Password) == "" {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	user, err := a.userStore.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, errors.New("invalid credentials")
		}
		return domain.LoginResponse{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !user.Activo {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		UID:         user.UID,
		Nombre:      user.Nombre,
		Rol:         user.Rol,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UID: sub, Nombre: claims.Nombre, Rol: claims.Rol}, nil
}

func (a *AuthManager) sign(user *domain.UserAccount, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.UID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "venpos",
		},
		Nombre: user.Nombre,
		Rol:    user.Rol,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// NewUserAccount validates a creation request and builds the account with
// a hashed password. Authorization and persistence stay in the service.
func (a *AuthManager) NewUserAccount(req domain.UserCreateRequest) (domain.UserAccount, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.UserAccount{}, fmt.Errorf("valid email required")
	}
	if strings.TrimSpace(req.Password) == "" || len(req.Password) < 6 {
		return domain.UserAccount{}, fmt.Errorf("password must be at least 6 characters")
	}
	nombre := strings.TrimSpace(req.Nombre)
	if nombre == "" {
		return domain.UserAccount{}, fmt.Errorf("nombre required")
	}
	rol := strings.TrimSpace(req.Rol)
	if rol != domain.RolAdmin && rol != domain.RolCajero && rol != domain.RolSupervisor {
		return domain.UserAccount{}, fmt.Errorf("unknown rol %q", rol)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("failed to hash password")
	}

	return domain.UserAccount{
		UID:           xid.New("user"),
		Email:         email,
		Nombre:        nombre,
		Password:      string(hash),
		Rol:           rol,
		Activo:        true,
		FechaRegistro: time.Now().UTC(),
	}, nil
}
