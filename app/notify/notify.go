// Package notify announces new job postings to chat webhooks
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/jobboard/app/store"
)

const defaultTemplate = `New job: {{.Job.Title}} at {{.Job.Company}} ({{.Job.Location}}){{if .URL}} {{.URL}}{{end}}`

// Params for the announcer
type Params struct {
	Webhooks    []string      // destination urls, http or https
	Headers     []string      // extra request headers, "Key:Value"
	Timeout     time.Duration // per-request timeout
	SiteURL     string        // public site url, used to build the job link
	Template    string        // text/template for the message, default used if empty
	Concurrency int           // max parallel sends
}

// Sender is a subset of notify.Notifier used to deliver a message to a single destination
type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

// Announcer sends a short text to every configured webhook when a job is posted
type Announcer struct {
	Params
	sender Sender
	tmpl   *template.Template
}

// NewAnnouncer makes an announcer. Returns nil if no webhooks configured, nil Announcer
// is safe to use and does nothing.
func NewAnnouncer(p Params) (*Announcer, error) {
	if len(p.Webhooks) == 0 {
		return nil, nil
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}
	if p.Concurrency <= 0 {
		p.Concurrency = 4
	}
	tmplText := p.Template
	if tmplText == "" {
		tmplText = defaultTemplate
	}
	tmpl, err := template.New("announce").Parse(tmplText)
	if err != nil {
		return nil, fmt.Errorf("can't parse announcement template: %w", err)
	}
	wh := notify.NewWebhook(notify.WebhookParams{Timeout: p.Timeout, Headers: p.Headers})
	return &Announcer{Params: p, sender: wh, tmpl: tmpl}, nil
}

// Announce sends the job announcement to all webhooks. Returns joined errors of failed
// destinations, successful ones are not affected.
func (a *Announcer) Announce(ctx context.Context, job store.Job) error {
	if a == nil {
		return nil
	}
	text, err := a.Message(job)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var errs []error
	gr := syncs.NewSizedGroup(a.Concurrency)
	for _, dest := range a.Webhooks {
		gr.Go(func(context.Context) {
			sendCtx, cancel := context.WithTimeout(ctx, a.Timeout)
			defer cancel()
			if err := a.sender.Send(sendCtx, dest, text); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("failed to send to %s: %w", redact(dest), err))
				mu.Unlock()
			}
		})
	}
	gr.Wait()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Printf("[DEBUG] job %d announced to %d webhook(s)", job.ID, len(a.Webhooks))
	return nil
}

// Message renders the announcement text for the job
func (a *Announcer) Message(job store.Job) (string, error) {
	data := struct {
		Job store.Job
		URL string
	}{Job: job}
	if a.SiteURL != "" {
		data.URL = strings.TrimSuffix(a.SiteURL, "/") + "/job/" + strconv.FormatInt(job.ID, 10)
	}
	buf := bytes.Buffer{}
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply announcement template: %w", err)
	}
	return buf.String(), nil
}

// redact drops query and user info from the webhook url, those often carry tokens
func redact(dest string) string {
	if i := strings.IndexAny(dest, "?#"); i >= 0 {
		dest = dest[:i]
	}
	if i := strings.Index(dest, "@"); i >= 0 {
		if j := strings.Index(dest, "://"); j >= 0 && j < i {
			dest = dest[:j+3] + "***" + dest[i:]
		}
	}
	return dest
}
