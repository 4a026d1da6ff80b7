package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/account-service/internal/mail"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeUsers struct {
	mu     sync.Mutex
	rows   map[uint64]*model.User
	nextID uint64
	links  *fakeLinks
	now    func() time.Time
}

func (f *fakeUsers) insert(u repository.NewUser) (uint64, error) {
	email := repository.NormalizeEmail(u.Email)
	for _, r := range f.rows {
		if r.Email == email {
			return 0, repository.ErrEmailExists
		}
		if u.Username != nil && r.Username != nil && *r.Username == *u.Username {
			return 0, repository.ErrUsernameExists
		}
	}
	f.nextID++
	role := u.Role
	if role == "" {
		role = model.RoleUser
	}
	f.rows[f.nextID] = &model.User{
		ID: f.nextID, Email: email, Username: u.Username, Name: u.Name, ProfileImage: u.ProfileImage,
		PasswordHash: u.PasswordHash, IsVerified: u.IsVerified, Role: role, IsActive: u.IsActive,
		CreatedAt: f.now().Add(time.Duration(f.nextID) * time.Second),
	}
	return f.nextID, nil
}

func (f *fakeUsers) Create(ctx context.Context, u repository.NewUser) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(u)
}

func (f *fakeUsers) CreateWithAccount(ctx context.Context, u repository.NewUser, a model.Account) (uint64, error) {
	f.mu.Lock()
	id, err := f.insert(u)
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	a.UserID = id
	return id, f.links.Create(ctx, a)
}

func (f *fakeUsers) find(match func(*model.User) bool) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if match(r) {
			return *r, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = repository.NormalizeEmail(email)
	return f.find(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return f.find(func(u *model.User) bool { return model.Str(u.Username) == username })
}

func (f *fakeUsers) update(id uint64, fn func(*model.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok {
		fn(r)
	}
	return nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, id uint64, p repository.ProfileUpdate) error {
	return f.update(id, func(u *model.User) { u.Email, u.Username, u.Name = p.Email, p.Username, p.Name })
}

func (f *fakeUsers) SetProfileImage(ctx context.Context, id uint64, url *string) error {
	return f.update(id, func(u *model.User) { u.ProfileImage = url })
}

func (f *fakeUsers) MarkVerified(ctx context.Context, id uint64) error {
	return f.update(id, func(u *model.User) { u.IsVerified = true })
}

func (f *fakeUsers) Promote(ctx context.Context, id uint64) error {
	return f.update(id, func(u *model.User) {
		u.Role, u.IsVerified, u.IsActive, u.ActiveUntil = model.RoleAdmin, true, true, nil
	})
}

func (f *fakeUsers) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Role == model.RoleAdmin && role != model.RoleAdmin {
		admins := 0
		for _, u := range f.rows {
			if u.Role == model.RoleAdmin {
				admins++
			}
		}
		if admins <= 1 {
			return repository.ErrLastAdmin
		}
	}
	r.Role = role
	return nil
}

func (f *fakeUsers) SetActivation(ctx context.Context, id uint64, active bool, until *time.Time) error {
	if !active {
		until = nil
	}
	return f.update(id, func(u *model.User) { u.IsActive, u.ActiveUntil = active, until })
}

func (f *fakeUsers) sorted() []model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeUsers) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	all := f.sorted()
	if offset >= len(all) {
		return []model.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeUsers) Count(ctx context.Context) (int, error) { return len(f.sorted()), nil }

func (f *fakeUsers) Stats(ctx context.Context, now time.Time) (model.UserStats, error) {
	var s model.UserStats
	for _, u := range f.sorted() {
		s.Total++
		if u.ActiveAt(now) {
			s.Active++
		}
		if u.Role == model.RoleAdmin {
			s.Admins++
		}
		if u.IsVerified {
			s.Verified++
		}
	}
	return s, nil
}

type liveCode struct {
	code    string
	expires time.Time
}

type fakeCodes struct {
	mu    sync.Mutex
	live  map[string]liveCode
	users *fakeUsers
}

func codeKey(userID uint64, p model.CodePurpose) string { return uitoa(userID) + "/" + string(p) }

func (f *fakeCodes) Issue(ctx context.Context, userID uint64, purpose model.CodePurpose, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[codeKey(userID, purpose)] = liveCode{code: code, expires: expiresAt}
	return nil
}

// last returns the outstanding code, as the user would read it from the mail.
func (f *fakeCodes) last(userID uint64, purpose model.CodePurpose) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[codeKey(userID, purpose)].code
}

func (f *fakeCodes) consume(userID uint64, purpose model.CodePurpose, code string, now time.Time, apply func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := codeKey(userID, purpose)
	c, ok := f.live[k]
	if !ok || c.code != code || !c.expires.After(now) {
		return repository.ErrCodeInvalid
	}
	prefix := uitoa(userID) + "/"
	for key := range f.live {
		if strings.HasPrefix(key, prefix) {
			delete(f.live, key)
		}
	}
	apply()
	return nil
}

func (f *fakeCodes) ConsumeEmailVerification(ctx context.Context, userID uint64, code string, now time.Time) error {
	return f.consume(userID, model.PurposeVerifyEmail, code, now, func() { _ = f.users.MarkVerified(ctx, userID) })
}

func (f *fakeCodes) ConsumePasswordReset(ctx context.Context, userID uint64, code, hash string, now time.Time) error {
	return f.consume(userID, model.PurposeResetPassword, code, now, func() {
		_ = f.users.update(userID, func(u *model.User) { u.PasswordHash, u.IsVerified = &hash, true })
	})
}

func (f *fakeCodes) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, c := range f.live {
		if !c.expires.After(now) {
			delete(f.live, k)
			n++
		}
	}
	return n, nil
}

type tokenRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type fakeTokens struct {
	mu   sync.Mutex
	rows map[string]*tokenRow
}

func (f *fakeTokens) StoreRefresh(ctx context.Context, userID uint64, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[hash] = &tokenRow{userID: userID, exp: exp}
	return nil
}

func (f *fakeTokens) ValidateRefresh(ctx context.Context, hash string, now time.Time) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[hash]
	if !ok || r.revoked || !r.exp.After(now) {
		return 0, repository.ErrNotFound
	}
	return r.userID, nil
}

func (f *fakeTokens) RevokeByHash(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[hash]; ok {
		r.revoked = true
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(ctx context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.userID == userID {
			r.revoked = true
		}
	}
	return nil
}

func (f *fakeTokens) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, r := range f.rows {
		if r.revoked || r.exp.Before(cutoff) {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

type fakeLinks struct {
	mu     sync.Mutex
	rows   map[string]model.Account
	nextID uint64
}

func (f *fakeLinks) GetByProvider(ctx context.Context, provider, sub string) (model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[provider+"/"+sub]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeLinks) Create(ctx context.Context, a model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := a.Provider + "/" + a.ProviderAccountID
	if _, ok := f.rows[k]; ok {
		return repository.ErrAccountLinked
	}
	f.nextID++
	a.ID = f.nextID
	f.rows[k] = a
	return nil
}

func (f *fakeLinks) UpdateTokens(ctx context.Context, id uint64, access, refresh *string) error {
	return nil
}

type fakeActivity struct {
	mu   sync.Mutex
	rows []model.Activity
}

func (f *fakeActivity) Log(ctx context.Context, a model.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, a)
	return nil
}

func (f *fakeActivity) actions(userID uint64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, a.Action)
		}
	}
	return out
}

func (f *fakeActivity) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Activity, error) {
	var out []model.Activity
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeActivity) ListRecent(ctx context.Context, limit int) ([]model.Activity, error) {
	return f.rows, nil
}

type fakeSettings struct{ s model.Settings }

func (f *fakeSettings) Get(ctx context.Context) (model.Settings, error) { return f.s, nil }

func (f *fakeSettings) Set(ctx context.Context, name string, value bool) error {
	switch name {
	case model.SettingAllowRegistration:
		f.s.AllowRegistration = value
	case model.SettingRequireVerification:
		f.s.RequireVerification = value
	}
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(ctx context.Context, m mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *recordingMailer) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.sent {
		out = append(out, m.Kind)
	}
	return out
}

type fakeThrottle struct {
	held map[string]time.Time
	now  func() time.Time
}

func (f *fakeThrottle) Allow(ctx context.Context, key string, window time.Duration) (bool, time.Duration) {
	now := f.now()
	if until, ok := f.held[key]; ok && until.After(now) {
		return false, until.Sub(now)
	}
	f.held[key] = now.Add(window)
	return true, 0
}

func (f *fakeThrottle) Release(ctx context.Context, key string) { delete(f.held, key) }

type fakeStorage struct {
	objects map[string][]byte
	deleted []string
}

func (f *fakeStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	f.objects[key] = buf.Bytes()
	return "/uploads/" + key, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, "/uploads/") {
		return "", false
	}
	return strings.TrimPrefix(url, "/uploads/"), true
}

type env struct {
	clock    *clock
	users    *fakeUsers
	codes    *fakeCodes
	tokens   *fakeTokens
	links    *fakeLinks
	activity *fakeActivity
	settings *fakeSettings
	mailer   *recordingMailer
	storage  *fakeStorage
	deps     Deps
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c := &clock{t: time.Now().UTC().Truncate(time.Second)}
	links := &fakeLinks{rows: map[string]model.Account{}}
	users := &fakeUsers{rows: map[uint64]*model.User{}, links: links, now: c.Now}
	composer, err := mail.NewComposer("Account Service", "http://localhost:8080")
	require.NoError(t, err)

	e := &env{
		clock:    c,
		users:    users,
		codes:    &fakeCodes{live: map[string]liveCode{}, users: users},
		tokens:   &fakeTokens{rows: map[string]*tokenRow{}},
		links:    links,
		activity: &fakeActivity{},
		settings: &fakeSettings{s: model.DefaultSettings()},
		mailer:   &recordingMailer{},
		storage:  &fakeStorage{objects: map[string][]byte{}},
	}
	e.deps = Deps{
		Users: e.users, Codes: e.codes, Tokens: e.tokens, Links: e.links,
		Activity: e.activity, Settings: e.settings,
		Mail: e.mailer, Composer: composer,
		Throttle: &fakeThrottle{held: map[string]time.Time{}, now: c.Now},
		Storage:  e.storage,
		Now:      c.Now,
		Opts: Options{
			JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7,
			BcryptCost: bcrypt.MinCost, CodeLength: 6,
			CodeTTL: 30 * time.Minute, ResendInterval: time.Minute,
		},
	}
	return e
}

func (e *env) accounts() *Accounts { return NewAccounts(e.deps) }
func (e *env) admin() *Admin       { return NewAdmin(e.deps) }

// seedUser inserts a user with password "Passw0rd!" directly.
func (e *env) seedUser(t *testing.T, email string, role model.Role, verified bool) model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.MinCost)
	require.NoError(t, err)
	h := string(hash)
	name := strings.Split(email, "@")[0]
	id, err := e.users.Create(context.Background(), repository.NewUser{
		Email: email, Username: &name, PasswordHash: &h, IsVerified: verified, Role: role, IsActive: true,
	})
	require.NoError(t, err)
	u, err := e.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}
