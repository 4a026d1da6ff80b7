// Package service implements the account flows on top of the repositories:
// registration and code verification, sign-in and session claims, OAuth,
// profile editing and the admin panel.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/mail"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/storage"
)

// Options are the tunables shared by the services.
type Options struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	CodeLength     int
	CodeTTL        time.Duration
	ResendInterval time.Duration
}

// OptionsFrom picks the service options out of the loaded config.
func OptionsFrom(cfg config.Config) Options {
	return Options{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
		CodeLength:     cfg.Codes.Length,
		CodeTTL:        cfg.Codes.TTL,
		ResendInterval: cfg.Codes.ResendInterval,
	}
}

// Deps wires the stores and side channels into a service.
type Deps struct {
	Users    UserStore
	Codes    CodeStore
	Tokens   TokenStore
	Links    AccountStore
	Activity ActivityStore
	Settings SettingsStore
	Mail     mail.Sender
	Composer *mail.Composer
	Throttle Throttle
	Storage  storage.Storage
	Logger   *slog.Logger
	Now      func() time.Time
	Opts     Options
}

func (d *Deps) defaults() {
	if d.Users == nil || d.Codes == nil || d.Tokens == nil || d.Activity == nil || d.Settings == nil {
		panic("service: nil store")
	}
	if d.Mail == nil || d.Composer == nil {
		panic("service: nil mail sender or composer")
	}
	if d.Throttle == nil {
		d.Throttle = (*RedisThrottle)(nil)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Opts.CodeTTL <= 0 {
		d.Opts.CodeTTL = 30 * time.Minute
	}
}

func (d *Deps) now() time.Time { return d.Now().UTC() }

// ClientInfo is the request origin recorded with activities.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type clientInfoKey struct{}

// WithClientInfo attaches the caller's address and agent to ctx.
func WithClientInfo(ctx context.Context, ci ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, ci)
}

func clientInfoFrom(ctx context.Context) ClientInfo {
	ci, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return ci
}

// logActivity records an audit line. Failures are logged and swallowed.
func (d *Deps) logActivity(ctx context.Context, userID uint64, action, details string) {
	ci := clientInfoFrom(ctx)
	err := d.Activity.Log(ctx, model.Activity{
		UserID:    userID,
		Action:    action,
		Details:   model.StrPtr(details),
		IPAddress: model.StrPtr(ci.IP),
		UserAgent: model.StrPtr(ci.UserAgent),
	})
	if err != nil {
		d.Logger.WarnContext(ctx, "activity log failed", "user_id", userID, "action", action, "err", err)
	}
}

// send delivers a composed message; compose errors count as send errors.
func (d *Deps) send(ctx context.Context, m mail.Message, err error) error {
	if err != nil {
		return err
	}
	return d.Mail.Send(ctx, m)
}

// sendBestEffort is send for notifications whose loss must not fail the request.
func (d *Deps) sendBestEffort(ctx context.Context, m mail.Message, err error) {
	if err := d.send(ctx, m, err); err != nil {
		d.Logger.WarnContext(ctx, "notification mail failed", "kind", m.Kind, "to", m.To, "err", err)
	}
}

func uitoa(n uint64) string { return strconv.FormatUint(n, 10) }
