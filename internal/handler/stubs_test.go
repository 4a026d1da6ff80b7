package handler

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/oauth"
	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/utils"
)

var testCfg = config.Config{
	JWTSecret:     "handler-secret",
	SessionCookie: "session",
	BaseURL:       "http://localhost:8080",
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

var errStub = errors.New("stub: not configured")

type stubAuth struct {
	register       func(service.RegisterInput) (service.RegisterResult, error)
	resend         func(email string) error
	verify         func(email, code string) (service.VerifyResult, error)
	exists         func(email string) (bool, error)
	forgot         func(email string) (bool, error)
	reset          func(email, code, password string) error
	login          func(email, password string) (service.Session, error)
	refresh        func(raw string) (service.Session, error)
	refreshAccess  func(raw string) (utils.AccessToken, utils.SessionClaims, error)
	revokeRefresh  func(raw string) error
	revokeAll      func(userID uint64) error
	currentSession func(userID uint64) (utils.AccessToken, utils.SessionClaims, error)
	signIn         func(oauth.Identity) (service.Session, error)
}

func (s *stubAuth) Register(_ context.Context, in service.RegisterInput) (service.RegisterResult, error) {
	if s.register == nil {
		return service.RegisterResult{}, errStub
	}
	return s.register(in)
}

func (s *stubAuth) ResendCode(_ context.Context, email string) error {
	if s.resend == nil {
		return errStub
	}
	return s.resend(email)
}

func (s *stubAuth) Verify(_ context.Context, email, code string) (service.VerifyResult, error) {
	if s.verify == nil {
		return service.VerifyResult{}, errStub
	}
	return s.verify(email, code)
}

func (s *stubAuth) UserExists(_ context.Context, email string) (bool, error) {
	if s.exists == nil {
		return false, errStub
	}
	return s.exists(email)
}

func (s *stubAuth) ForgotPassword(_ context.Context, email string) (bool, error) {
	if s.forgot == nil {
		return false, errStub
	}
	return s.forgot(email)
}

func (s *stubAuth) ResetPassword(_ context.Context, email, code, password string) error {
	if s.reset == nil {
		return errStub
	}
	return s.reset(email, code, password)
}

func (s *stubAuth) Login(_ context.Context, email, password string) (service.Session, error) {
	if s.login == nil {
		return service.Session{}, errStub
	}
	return s.login(email, password)
}

func (s *stubAuth) Refresh(_ context.Context, raw string) (service.Session, error) {
	if s.refresh == nil {
		return service.Session{}, errStub
	}
	return s.refresh(raw)
}

func (s *stubAuth) RefreshAccess(_ context.Context, raw string) (utils.AccessToken, utils.SessionClaims, error) {
	if s.refreshAccess == nil {
		return utils.AccessToken{}, utils.SessionClaims{}, errStub
	}
	return s.refreshAccess(raw)
}

func (s *stubAuth) RevokeRefresh(_ context.Context, raw string) error {
	if s.revokeRefresh == nil {
		return errStub
	}
	return s.revokeRefresh(raw)
}

func (s *stubAuth) RevokeAll(_ context.Context, userID uint64) error {
	if s.revokeAll == nil {
		return errStub
	}
	return s.revokeAll(userID)
}

func (s *stubAuth) CurrentSession(_ context.Context, userID uint64) (utils.AccessToken, utils.SessionClaims, error) {
	if s.currentSession == nil {
		return utils.AccessToken{}, utils.SessionClaims{}, errStub
	}
	return s.currentSession(userID)
}

func (s *stubAuth) OAuthSignIn(_ context.Context, id oauth.Identity) (service.Session, error) {
	if s.signIn == nil {
		return service.Session{}, errStub
	}
	return s.signIn(id)
}

func testSession(u model.User) service.Session {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return service.Session{
		User:    u,
		Access:  utils.AccessToken{Token: "access-jwt", Exp: exp},
		Refresh: utils.RefreshToken{Raw: "refresh-raw", Exp: exp},
	}
}

type stubProfile struct {
	user     model.User
	err      error
	gotInput service.ProfileInput
	gotImage []byte
	imageURL string
}

func (s *stubProfile) Profile(_ context.Context, id uint64) (model.User, error) {
	u := s.user
	u.ID = id
	return u, s.err
}

func (s *stubProfile) UpdateProfile(_ context.Context, id uint64, in service.ProfileInput) (model.User, error) {
	s.gotInput = in
	u := s.user
	u.ID = id
	if in.Username != nil {
		u.Username = in.Username
	}
	return u, s.err
}

func (s *stubProfile) UpdateProfileImage(_ context.Context, _ uint64, data []byte) (string, error) {
	s.gotImage = data
	return s.imageURL, s.err
}

func (s *stubProfile) Activities(_ context.Context, id uint64, _ int) ([]model.Activity, error) {
	return []model.Activity{{ID: 1, UserID: id, Action: model.ActivityLogin}}, s.err
}

type stubAdmin struct {
	page       service.UserPage
	user       model.User
	err        error
	gotRole    model.Role
	gotActive  bool
	gotUntil   *time.Time
	gotPage    [2]int
	maint      service.MaintenanceResult
	settings   model.Settings
	gotSetting string
}

func (s *stubAdmin) ListUsers(_ context.Context, page, limit int) (service.UserPage, error) {
	s.gotPage = [2]int{page, limit}
	return s.page, s.err
}

func (s *stubAdmin) ChangeRole(_ context.Context, _, _ uint64, role model.Role) (model.User, error) {
	s.gotRole = role
	u := s.user
	u.Role = role
	return u, s.err
}

func (s *stubAdmin) SetActivation(_ context.Context, _, _ uint64, active bool, until *time.Time) (model.User, error) {
	s.gotActive, s.gotUntil = active, until
	u := s.user
	u.IsActive = active
	return u, s.err
}

func (s *stubAdmin) Stats(context.Context) (model.UserStats, error) {
	return model.UserStats{Total: 4, Active: 3, Admins: 1, Verified: 2}, s.err
}

func (s *stubAdmin) RecentActivities(context.Context, int) ([]model.Activity, error) {
	return nil, s.err
}

func (s *stubAdmin) CurrentSettings(context.Context) (model.Settings, error) {
	return s.settings, s.err
}

func (s *stubAdmin) UpdateSetting(_ context.Context, name string, value bool) (model.Settings, error) {
	s.gotSetting = name
	st := s.settings
	if name == model.SettingAllowRegistration {
		st.AllowRegistration = value
	}
	return st, s.err
}

func (s *stubAdmin) Maintenance(_ context.Context, op string) (service.MaintenanceResult, error) {
	if s.err != nil {
		return service.MaintenanceResult{}, s.err
	}
	res := s.maint
	res.Operation = op
	return res, nil
}

type stubProvider struct {
	id  oauth.Identity
	err error
}

func (p stubProvider) Name() string { return "google" }

func (p stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (p stubProvider) Exchange(context.Context, string) (oauth.Identity, error) {
	return p.id, p.err
}
