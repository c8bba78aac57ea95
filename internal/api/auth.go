package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dan-divy/spruce/internal/database"
	"github.com/dan-divy/spruce/internal/types"
)

const (
	tokenCookieKey       = "token"
	defaultJwtExpiration = time.Hour * 24

	userIdClaim = "user-id"
	jtiClaim    = "jti"
	expClaim    = "exp"
)

var (
	// ErrTokenRequired means no credential accompanied the request.
	ErrTokenRequired = errors.New("token required")
	// ErrInvalidToken means the credential failed signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRevokedToken means a once-valid credential was revoked by logout.
	ErrRevokedToken = errors.New("token revoked")
)

// Session is the authenticated identity recovered from a request.
type Session struct {
	UserId    int
	TokenId   string
	ExpiresAt time.Time
}

// SessionResolver recovers the HTTP session carried by an inbound
// request. The websocket upgrade handler depends on this capability
// rather than on any particular session implementation.
type SessionResolver interface {
	Resolve(r *http.Request) (Session, error)
}

// jwtSessionResolver verifies a signed token taken from the bearer
// header or the session cookie, then checks it against the revocation
// store.
type jwtSessionResolver struct {
	signingKey []byte
	db         database.SpruceRepository
}

func NewJwtSessionResolver(signingKey []byte, db database.SpruceRepository) SessionResolver {
	return &jwtSessionResolver{signingKey: signingKey, db: db}
}

func (j *jwtSessionResolver) Resolve(r *http.Request) (Session, error) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		cookie, err := r.Cookie(tokenCookieKey)
		if err != nil || cookie.Value == "" {
			return Session{}, ErrTokenRequired
		}
		tokenString = cookie.Value
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.signingKey, nil
	})
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, ErrInvalidToken
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return Session{}, ErrInvalidToken
	}

	jti, ok := claims[jtiClaim].(string)
	if !ok {
		return Session{}, ErrInvalidToken
	}

	exp, ok := claims[expClaim].(float64)
	if !ok {
		return Session{}, ErrInvalidToken
	}

	revoked, err := j.db.IsTokenRevoked(jti)
	if err != nil {
		return Session{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Session{}, ErrRevokedToken
	}

	return Session{
		UserId:    int(userId),
		TokenId:   jti,
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return ""
}

type contextKey string

const sessionKey contextKey = "session"

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

func UserId(ctx context.Context) (int, bool) {
	s, ok := SessionFrom(ctx)
	return s.UserId, ok
}

func (s *SpruceApp) createJwtForSession(user types.User, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: user.Id,
		jtiClaim:    uuid.NewString(),
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(s.signingKey)
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
