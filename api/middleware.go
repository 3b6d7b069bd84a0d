package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/civil-defense-api/config"
	"github.com/linesmerrill/civil-defense-api/databases"
	"github.com/linesmerrill/civil-defense-api/models"
)

// credentialCacheTTL bounds how long a verified credential is trusted
// without going back to the token and the users collection
const credentialCacheTTL = time.Minute

// Auth authenticates api requests. Login takes http basic credentials and
// hands out a signed bearer token, every other route takes the token.
type Auth struct {
	DB      databases.UserDatabase
	Secret  []byte
	TTL     time.Duration
	Metrics *Metrics
	Now     func() time.Time

	authenticator auth.Authenticator
	basic         auth.Strategy
	bearer        auth.Strategy
	revoked       *revocationList
}

// NewAuth builds an Auth backed by the users collection
func NewAuth(db databases.UserDatabase, secret string, ttl time.Duration, m *Metrics) *Auth {
	a := &Auth{
		DB:      db,
		Secret:  []byte(secret),
		TTL:     ttl,
		Metrics: m,
		Now:     time.Now,
		revoked: &revocationList{tokens: make(map[string]time.Time)},
	}
	a.SetupGoGuardian()
	return a
}

// SetupGoGuardian sets up the go-guardian strategies
func (a *Auth) SetupGoGuardian() {
	a.authenticator = auth.New()
	a.basic = basic.New(a.ValidateUser, store.NewFIFO(context.Background(), credentialCacheTTL))
	a.bearer = bearer.New(a.VerifyToken, store.NewFIFO(context.Background(), credentialCacheTTL))
	a.authenticator.EnableStrategy(bearer.CachedStrategyKey, a.bearer)
}

// Middleware rejects requests without a valid bearer token and stores the
// authenticated user in the request context
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.authenticator.Authenticate(r)
		if err != nil {
			a.Metrics.IncrementAuthFailures()
			zap.S().Debugw("unauthorized", "url", r.URL.String(), "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugf("user %s authenticated", user.UserName())
		ctx := WithActor(r.Context(), Actor{ID: user.ID(), Username: user.UserName()})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Login checks the basic credentials and returns a new access token
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		a.Metrics.IncrementAuthFailures()
		config.ErrorStatus("basic auth credentials required", http.StatusUnauthorized, w, errors.New("missing credentials"))
		return
	}

	info, err := a.basic.Authenticate(r.Context(), r)
	if err != nil {
		a.Metrics.IncrementAuthFailures()
		config.ErrorStatus("invalid credentials", http.StatusUnauthorized, w, err)
		return
	}

	user, err := a.userByID(r.Context(), info.ID())
	if err != nil {
		config.ErrorStatus("failed to get user", http.StatusUnauthorized, w, err)
		return
	}

	token, err := signJWT(a.Secret, info.ID(), info.UserName(), a.Now(), a.TTL)
	if err != nil {
		config.ErrorStatus("failed to sign token", http.StatusInternalServerError, w, err)
		return
	}
	auth.Append(a.bearer, token, info, r)

	zap.S().Infow("user logged in", "userId", info.ID(), "username", info.UserName())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.LoginResponse{AccessToken: token, User: *user})
}

// Logout revokes the bearer token of the request
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		config.ErrorStatus("bearer token required", http.StatusUnauthorized, w, errors.New("missing token"))
		return
	}
	claims, err := parseJWT(a.Secret, token, a.Now)
	if err != nil {
		config.ErrorStatus("invalid token", http.StatusUnauthorized, w, err)
		return
	}

	a.revoked.add(claims.ID, claims.Expires, a.Now())
	auth.Revoke(a.bearer, token, r)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.MessageResponse{Message: "token revoked"})
}

// ValidateUser checks a username (or email) and password against the users collection
func (a *Auth) ValidateUser(ctx context.Context, r *http.Request, username, password string) (auth.Info, error) {
	user, err := a.DB.FindOne(ctx, bson.M{"$or": []bson.M{{"username": username}, {"email": username}}})
	if err != nil {
		return nil, fmt.Errorf("no matching user found")
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("user is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return auth.NewDefaultUser(user.Username, user.ID.Hex(), nil, nil), nil
}

// VerifyToken validates a bearer token minted by Login
func (a *Auth) VerifyToken(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
	claims, err := parseJWT(a.Secret, token, a.Now)
	if err != nil {
		return nil, err
	}
	if a.revoked.has(claims.ID) {
		return nil, fmt.Errorf("token revoked")
	}
	user, err := a.userByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("token subject not found")
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("user is inactive")
	}
	return auth.NewDefaultUser(user.Username, claims.Subject, nil, nil), nil
}

func (a *Auth) userByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return a.DB.FindOne(ctx, bson.M{"_id": oid})
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// revocationList remembers logged out token ids until they expire
type revocationList struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func (l *revocationList) add(id string, expires, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, exp := range l.tokens {
		if exp.Before(now) {
			delete(l.tokens, k)
		}
	}
	l.tokens[id] = expires
}

func (l *revocationList) has(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tokens[id]
	return ok
}
