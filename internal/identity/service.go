package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const credentialsCollection = "credentials"

// maxPasswordBytes is the longest input bcrypt hashes.
const maxPasswordBytes = 72

// FirebaseAuth is the subset of *auth.Client used for federated sign-in.
type FirebaseAuth interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
}

// Profiles creates the profile document of a user on first sign-in and returns
// the stored profile otherwise.
type Profiles interface {
	EnsureProfile(ctx context.Context, u *models.User) (*models.User, error)
}

// AuthResult is returned by every successful sign-in.
type AuthResult struct {
	Token   string       `json:"token"`
	Session *Session     `json:"session"`
	User    *models.User `json:"user"`
}

type credential struct {
	UID          string           `json:"uid"`
	PasswordHash string           `json:"password_hash"`
	CreatedAt    models.Timestamp `json:"created_at"`
}

// Service signs users in and out.
type Service struct {
	store    docstore.Store
	firebase FirebaseAuth
	tokens   *TokenIssuer
	revoker  Revoker
	events   *Events
	profiles Profiles
	logger   *slog.Logger
}

// NewService wires the identity flows. firebase may be nil, which disables federated sign-in.
func NewService(store docstore.Store, firebase FirebaseAuth, tokens *TokenIssuer, revoker Revoker,
	events *Events, profiles Profiles, logger *slog.Logger) *Service {
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	if events == nil {
		events = NewEvents()
	}
	return &Service{
		store:    store,
		firebase: firebase,
		tokens:   tokens,
		revoker:  revoker,
		events:   events,
		profiles: profiles,
		logger:   logger.With("component", "identity"),
	}
}

// Events returns the session change hub.
func (s *Service) Events() *Events { return s.events }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a password user and signs them in.
func (s *Service) SignUp(ctx context.Context, req models.SignUpRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.DisplayName)
	if len(req.Password) > maxPasswordBytes {
		return nil, models.NewValidationError(fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("hash password: %w", err))
	}

	uid := uuid.NewString()
	cred := credential{UID: uid, PasswordHash: string(hash), CreatedAt: models.Now()}
	path := docstore.Path(credentialsCollection, email)
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(path); err == nil {
			return models.NewConflictError("User with this email already registered")
		} else if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		return tx.Set(path, docstore.MustEncode(cred))
	})
	if err != nil {
		if models.ErrorCode(err) != "" {
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}

	user, err := s.profiles.EnsureProfile(ctx, &models.User{
		UID:              uid,
		DisplayName:      name,
		DisplayNameLower: models.NormalizeName(name),
		Email:            email,
		Provider:         models.ProviderPassword,
		CreatedAt:        models.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", "user_id", uid)
	return s.issue(user, models.ProviderPassword)
}

// SignIn verifies email and password.
func (s *Service) SignIn(ctx context.Context, req models.SignInRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	doc, err := s.store.Get(ctx, docstore.Path(credentialsCollection, email))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var cred credential
	if err := doc.DataTo(&cred); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}

	user, err := s.profiles.EnsureProfile(ctx, &models.User{
		UID:       cred.UID,
		Email:     email,
		Provider:  models.ProviderPassword,
		CreatedAt: models.Now(),
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user, models.ProviderPassword)
}

// FirebaseSignIn accepts an ID token obtained by the browser SDK after an
// OAuth or Firebase password sign-in.
func (s *Service) FirebaseSignIn(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.firebase == nil {
		return nil, models.NewUnauthorizedError("Federated sign-in is not configured")
	}
	token, err := s.firebase.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Warn("firebase token rejected", "error", err)
		return nil, models.NewUnauthorizedError("Invalid Firebase ID token")
	}

	email, _ := token.Claims["email"].(string)
	name, _ := token.Claims["name"].(string)
	picture, _ := token.Claims["picture"].(string)

	user, err := s.profiles.EnsureProfile(ctx, &models.User{
		UID:              token.UID,
		DisplayName:      name,
		DisplayNameLower: models.NormalizeName(name),
		Email:            normalizeEmail(email),
		PhotoURL:         picture,
		Provider:         models.ProviderFirebase,
		CreatedAt:        models.Now(),
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user, models.ProviderFirebase)
}

func (s *Service) issue(user *models.User, provider string) (*AuthResult, error) {
	token, sess, err := s.tokens.Issue(user.UID, user.Email, user.DisplayName, user.PhotoURL, provider)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	s.events.Publish(Event{Type: SignedIn, UserID: user.UID, TokenID: sess.TokenID})
	return &AuthResult{Token: token, Session: sess, User: user}, nil
}

// Authenticate resolves a bearer token into a live session.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	sess, err := s.tokens.Parse(token)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	revoked, err := s.revoker.IsRevoked(ctx, sess.TokenID)
	if err != nil {
		s.logger.Error("revocation check failed", "error", err)
		return nil, models.NewInternalError(err)
	}
	if revoked {
		return nil, models.NewUnauthorizedError("Session has been signed out")
	}
	return sess, nil
}

// SignOut revokes the session token and notifies the live streams opened with it.
func (s *Service) SignOut(ctx context.Context, sess *Session) error {
	if sess == nil {
		return models.NewUnauthorizedError("Not signed in")
	}
	if err := s.revoker.Revoke(ctx, sess.TokenID, sess.ExpiresAt); err != nil {
		return models.NewInternalError(err)
	}
	s.events.Publish(Event{Type: SignedOut, UserID: sess.UserID, TokenID: sess.TokenID})
	s.logger.Info("user signed out", "user_id", sess.UserID)
	return nil
}

// SyncProfile copies a profile change to Firebase Auth for federated users.
func (s *Service) SyncProfile(ctx context.Context, sess *Session, displayName, photoURL string) error {
	if s.firebase == nil || sess == nil || sess.Provider != models.ProviderFirebase {
		return nil
	}
	if displayName == "" && photoURL == "" {
		return nil
	}
	update := &auth.UserToUpdate{}
	if displayName != "" {
		update = update.DisplayName(displayName)
	}
	if photoURL != "" {
		update = update.PhotoURL(photoURL)
	}
	if _, err := s.firebase.UpdateUser(ctx, sess.UserID, update); err != nil {
		return fmt.Errorf("identity: update firebase user: %w", err)
	}
	return nil
}
