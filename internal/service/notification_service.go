package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/mentormatch-api/internal/models"
	"github.com/noah-isme/mentormatch-api/pkg/jobs"
)

// MailMessage is a plain-text email.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg MailMessage) error {
	m.logger.Info("mail", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay using PLAIN auth when credentials are set.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer builds an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&body, "To: %s\r\n", headerLine.Replace(msg.To))
	fmt.Fprintf(&body, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	body.WriteString(msg.Body)
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	return m.send(addr, auth, m.cfg.From, []string{headerLine.Replace(msg.To)}, []byte(body.String()))
}

var headerLine = strings.NewReplacer("\r", "", "\n", "")

type notificationMetrics interface {
	ObserveNotification(event string, err error)
}

// NotificationService turns application events into emails on a background queue.
// Events are delivered at most once and dropped when the queue is full or stopped.
type NotificationService struct {
	mailer  Mailer
	queue   *jobs.Queue
	metrics notificationMetrics
	logger  *zap.Logger
}

// NotificationConfig sizes the worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
}

// NewNotificationService builds the service and its queue. Call Start before publishing.
func NewNotificationService(mailer Mailer, metrics notificationMetrics, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	svc := &NotificationService{mailer: mailer, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return svc
}

// Start launches the workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains in-flight work and stops the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Stats exposes queue counters.
func (s *NotificationService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// Publish implements EventPublisher. It never blocks on delivery.
func (s *NotificationService) Publish(_ context.Context, event models.ApplicationEvent) error {
	if err := s.queue.Enqueue(jobs.Job{Type: event.Type, Payload: event}); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveNotification(event.Type, err)
		}
		return err
	}
	return nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.ApplicationEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	messages := composeMessages(event)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, msg := range messages {
		wg.Add(1)
		go func(msg MailMessage) {
			defer wg.Done()
			err := s.mailer.Send(ctx, msg)
			if s.metrics != nil {
				s.metrics.ObserveNotification(event.Type, err)
			}
			if err != nil {
				s.logger.Warn("notification delivery failed",
					zap.String("event", event.Type),
					zap.String("application_id", event.ApplicationID),
					zap.String("to", msg.To),
					zap.Error(err),
				)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(msg)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// composeMessages builds one plain-text email per recipient.
func composeMessages(event models.ApplicationEvent) []MailMessage {
	switch event.Type {
	case models.EventApplicationStatusChanged:
		subject := fmt.Sprintf("Your application \"%s\" is now %s", event.ProjectTitle, humanStatus(event.NewStatus))
		var body strings.Builder
		fmt.Fprintf(&body, "%s changed the status of your application \"%s\" from %s to %s.\n",
			event.SupervisorName, event.ProjectTitle, humanStatus(event.PreviousStatus), humanStatus(event.NewStatus))
		if event.Feedback != nil && *event.Feedback != "" {
			fmt.Fprintf(&body, "\nFeedback:\n%s\n", *event.Feedback)
		}
		return studentRecipients(event, subject, body.String())
	case models.EventApplicationResubmitted:
		if event.SupervisorEmail == "" {
			return nil
		}
		return []MailMessage{{
			To:      event.SupervisorEmail,
			Subject: fmt.Sprintf("Application \"%s\" was resubmitted", event.ProjectTitle),
			Body:    fmt.Sprintf("%s resubmitted the application \"%s\" after revision. It is pending your review.\n", event.StudentName, event.ProjectTitle),
		}}
	}
	return nil
}

func studentRecipients(event models.ApplicationEvent, subject, body string) []MailMessage {
	out := make([]MailMessage, 0, 2)
	if event.StudentEmail != "" {
		out = append(out, MailMessage{To: event.StudentEmail, Subject: subject, Body: body})
	}
	if event.PartnerEmail != nil && *event.PartnerEmail != "" && *event.PartnerEmail != event.StudentEmail {
		out = append(out, MailMessage{To: *event.PartnerEmail, Subject: subject, Body: body})
	}
	return out
}

func humanStatus(status models.ApplicationStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}
