package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/repository"
	"arichat/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrBadCredentials covers both unknown emails and wrong passwords,
	// surfaced to the end user as-is, no retry.
	ErrBadCredentials = errors.New("Wrong email or password")
	// ErrEmailTaken is returned on duplicate registration.
	ErrEmailTaken = errors.New("An account with this email already exists")
)

// AuthStateListener is notified of sign-in (signedIn true) and sign-out
// transitions; presence activation hangs off these.
type AuthStateListener func(user *entity.User, signedIn bool)

type AuthService interface {
	Register(email, password string) (*entity.User, error)
	Login(email, password string) (*entity.User, error)
	SignOut(user *entity.User)
	OnAuthStateChanged(listener AuthStateListener)
}

// localAuthService keeps credentials in the relational database and
// mirrors the public profile into the store on first appearance.
type localAuthService struct {
	creds  repository.CredentialRepository
	st     *store.Store
	logger nlog.Logger

	mu        sync.Mutex
	listeners []AuthStateListener
}

func NewAuthService(creds repository.CredentialRepository, st *store.Store, logger nlog.Logger) AuthService {
	return &localAuthService{creds: creds, st: st, logger: logger}
}

func (a *localAuthService) OnAuthStateChanged(listener AuthStateListener) {
	a.mu.Lock()
	a.listeners = append(a.listeners, listener)
	a.mu.Unlock()
}

func (a *localAuthService) notify(user *entity.User, signedIn bool) {
	a.mu.Lock()
	listeners := append([]AuthStateListener(nil), a.listeners...)
	a.mu.Unlock()
	for _, l := range listeners {
		l(user, signedIn)
	}
}

func (a *localAuthService) Register(email, password string) (*entity.User, error) {
	norm := NormalizeEmail(email)
	if norm == "" || password == "" {
		return nil, ErrBadCredentials
	}

	if _, err := a.creds.GetByEmail(norm); err == nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		a.logger.Logf("Could not calculate hash {%v}", err)
		return nil, err
	}

	user := entity.NewUser(uuid.NewString(), norm)
	cred := &entity.Credential{
		UID:       user.UID,
		Email:     norm,
		Hash:      string(hash),
		CreatedAt: time.Now(),
	}
	if err := a.creds.Create(cred); err != nil {
		// two registrations can race past the lookup above; the unique
		// index is the arbiter
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("Registration failed {%v}", err)
	}

	if err := a.writeProfile(user); err != nil {
		// the account exists; the profile is re-materialized on login
		a.logger.Logf("Profile write for new user %s failed {%v}", user.UID, err)
	}

	a.logger.Logf("User %s registered as %s", norm, user.UID)
	a.notify(user, true)
	return user, nil
}

func (a *localAuthService) Login(email, password string) (*entity.User, error) {
	norm := NormalizeEmail(email)
	cred, err := a.creds.GetByEmail(norm)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.Hash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}

	user := entity.NewUser(cred.UID, cred.Email)
	if err := a.ensureProfile(user); err != nil {
		a.logger.Logf("Profile check for %s failed {%v}", user.UID, err)
	}

	a.logger.Logf("User %s logged in", user.UID)
	a.notify(user, true)
	return user, nil
}

func (a *localAuthService) SignOut(user *entity.User) {
	a.logger.Logf("User %s signed out", user.UID)
	a.notify(user, false)
}

// ensureProfile materializes users/{uid} on first authenticated
// appearance; accounts created before the store existed get their record
// here.
func (a *localAuthService) ensureProfile(user *entity.User) error {
	v, err := a.st.Get(userPath(user.UID))
	if err != nil {
		return err
	}
	if v != nil {
		return nil
	}
	return a.writeProfile(user)
}

func (a *localAuthService) writeProfile(user *entity.User) error {
	return a.st.Update(map[string]any{
		userPath(user.UID): map[string]any{
			"email": user.Email,
			"name":  user.Name,
		},
		emailIndexPath(EmailIndexKey(user.Email)): user.UID,
	})
}
