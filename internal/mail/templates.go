package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

const (
	KindVerification    = "verification"
	KindPasswordReset   = "password_reset"
	KindPasswordChanged = "password_changed"
	KindWelcome         = "welcome"
	KindAccountStatus   = "account_status"
)

type templatePair struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

const layoutHTML = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;line-height:1.5;color:#222">
<div style="max-width:560px;margin:0 auto;padding:24px">
{{template "content" .}}
<p style="color:#888;font-size:12px;margin-top:32px">{{.AppName}}</p>
</div></body></html>`

var sources = map[string]struct{ subject, html, text string }{
	KindVerification: {
		subject: "Verify your email address",
		html: `{{define "content"}}<p>Hello {{.Name}},</p>
<p>Use this code to verify your email address:</p>
<p style="font-size:28px;font-weight:bold;letter-spacing:6px">{{.Code}}</p>
<p>The code expires in {{.Minutes}} minutes. If you did not create an account, ignore this email.</p>{{end}}`,
		text: "Hello {{.Name}},\n\nYour verification code is {{.Code}}.\nIt expires in {{.Minutes}} minutes.\n",
	},
	KindPasswordReset: {
		subject: "Reset your password",
		html: `{{define "content"}}<p>Hello {{.Name}},</p>
<p>We received a request to reset your password. Your reset code is:</p>
<p style="font-size:28px;font-weight:bold;letter-spacing:6px">{{.Code}}</p>
<p>The code expires in {{.Minutes}} minutes. If you did not ask for this, you can ignore this email.</p>{{end}}`,
		text: "Hello {{.Name}},\n\nYour password reset code is {{.Code}}.\nIt expires in {{.Minutes}} minutes.\n",
	},
	KindPasswordChanged: {
		subject: "Your password was changed",
		html: `{{define "content"}}<p>Hello {{.Name}},</p>
<p>The password for your account was changed on {{.When}}.</p>
<p>If this was not you, reset your password immediately.</p>{{end}}`,
		text: "Hello {{.Name}},\n\nThe password for your account was changed on {{.When}}.\nIf this was not you, reset your password immediately.\n",
	},
	KindWelcome: {
		subject: "Welcome aboard",
		html: `{{define "content"}}<p>Hello {{.Name}},</p>
<p>Your email is verified and your account is ready.</p>
<p><a href="{{.URL}}">Open your dashboard</a></p>{{end}}`,
		text: "Hello {{.Name}},\n\nYour email is verified and your account is ready: {{.URL}}\n",
	},
	KindAccountStatus: {
		subject: "Your account status changed",
		html: `{{define "content"}}<p>Hello {{.Name}},</p>
{{if .Active}}<p>Your account has been activated{{if .Until}} until {{.Until}}{{end}}.</p>{{else}}<p>Your account has been deactivated by an administrator.</p>{{end}}{{end}}`,
		text: "Hello {{.Name}},\n\n{{if .Active}}Your account has been activated{{if .Until}} until {{.Until}}{{end}}.{{else}}Your account has been deactivated by an administrator.{{end}}\n",
	},
}

// Composer renders the account emails. It is safe for concurrent use.
type Composer struct {
	appName string
	baseURL string
	tpls    map[string]templatePair
}

// NewComposer parses all templates up front.
func NewComposer(appName, baseURL string) (*Composer, error) {
	c := &Composer{appName: appName, baseURL: strings.TrimRight(baseURL, "/"), tpls: map[string]templatePair{}}
	for kind, src := range sources {
		h, err := htmltemplate.New(kind).Parse(layoutHTML)
		if err == nil {
			_, err = h.Parse(src.html)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s html: %w", kind, err)
		}
		t, err := texttemplate.New(kind).Parse(src.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s text: %w", kind, err)
		}
		c.tpls[kind] = templatePair{subject: src.subject, html: h, text: t}
	}
	return c, nil
}

type data struct {
	AppName string
	Name    string
	Code    string
	Minutes int
	When    string
	URL     string
	Active  bool
	Until   string
}

func (c *Composer) render(kind, to string, d data) (Message, error) {
	p, ok := c.tpls[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail kind %q", kind)
	}
	d.AppName = c.appName
	if d.Name == "" {
		d.Name = "there"
	}
	var hb, tb bytes.Buffer
	if err := p.html.Execute(&hb, d); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}
	if err := p.text.Execute(&tb, d); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}
	return Message{To: to, Subject: p.subject, HTML: hb.String(), Text: tb.String(), Kind: kind}, nil
}

func (c *Composer) Verification(to, name, code string, ttl time.Duration) (Message, error) {
	return c.render(KindVerification, to, data{Name: name, Code: code, Minutes: int(ttl.Minutes())})
}

func (c *Composer) PasswordReset(to, name, code string, ttl time.Duration) (Message, error) {
	return c.render(KindPasswordReset, to, data{Name: name, Code: code, Minutes: int(ttl.Minutes())})
}

func (c *Composer) PasswordChanged(to, name string, when time.Time) (Message, error) {
	return c.render(KindPasswordChanged, to, data{Name: name, When: when.UTC().Format("2006-01-02 15:04 MST")})
}

func (c *Composer) Welcome(to, name string) (Message, error) {
	return c.render(KindWelcome, to, data{Name: name, URL: c.baseURL + "/dashboard"})
}

func (c *Composer) AccountStatus(to, name string, active bool, until *time.Time) (Message, error) {
	d := data{Name: name, Active: active}
	if until != nil {
		d.Until = until.UTC().Format("2006-01-02 15:04 MST")
	}
	return c.render(KindAccountStatus, to, d)
}
