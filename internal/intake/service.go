// Package intake runs the contact pipeline: validate, persist, notify.
package intake

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zachkp/portfolio/internal/mailer"
	"github.com/Zachkp/portfolio/internal/submission"
)

// Input is the contact form as posted by the browser.
type Input struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate checks required fields first, then the email syntax.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" ||
		strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Message) == "" {
		return &ValidationError{Reason: ReasonMissingFields}
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.Email)) {
		return &ValidationError{Reason: ReasonInvalidEmail}
	}
	return nil
}

// draft keeps the fields exactly as posted.
func (in Input) draft() submission.Draft {
	return submission.Draft{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	}
}

type ServiceOptions struct {
	Store         submission.Store
	Sender        mailer.Sender // nil when the deployment has no mail credentials
	Recipient     string
	SubjectPrefix string
	SendTimeout   time.Duration
	Logger        zerolog.Logger
	Metrics       *Metrics
}

type Service struct {
	store         submission.Store
	sender        mailer.Sender
	recipient     string
	subjectPrefix string
	sendTimeout   time.Duration
	log           zerolog.Logger
	metrics       *Metrics
	compose       func(sub submission.Submission, to, subjectPrefix string) (mailer.Message, error)
}

func NewService(opts ServiceOptions) *Service {
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		store:         opts.Store,
		sender:        opts.Sender,
		recipient:     opts.Recipient,
		subjectPrefix: opts.SubjectPrefix,
		sendTimeout:   timeout,
		log:           opts.Logger.With().Str("component", "intake").Logger(),
		metrics:       opts.Metrics,
		compose:       composeNotification,
	}
}

// Submit validates in, records it and notifies the site owner.
//
// Mail configuration is checked before anything is written, so a deployment
// without credentials never records submissions it cannot forward. Once the
// record is written, a failed send still returns a *DeliveryError.
func (s *Service) Submit(ctx context.Context, in Input) (submission.Submission, error) {
	if err := in.Validate(); err != nil {
		s.metrics.observe(err.(*ValidationError).Reason)
		return submission.Submission{}, err
	}

	if err := s.checkConfigured(); err != nil {
		s.metrics.observe(outcomeConfiguration)
		s.log.Error().Err(err).Msg("contact submission rejected")
		return submission.Submission{}, err
	}

	sub, err := s.store.Append(ctx, in.draft())
	if err != nil {
		s.metrics.observe(outcomePersistence)
		s.log.Error().Err(err).Msg("unable to store contact submission")
		return submission.Submission{}, &PersistenceError{Err: err}
	}

	if err := s.notify(ctx, sub); err != nil {
		return sub, err
	}

	s.metrics.observe(outcomeAccepted)
	s.log.Info().Str("submission_id", sub.ID).Msg("contact submission delivered")
	return sub, nil
}

// List returns every stored submission in creation order.
func (s *Service) List(ctx context.Context) ([]submission.Submission, error) {
	return s.store.List(ctx)
}

func (s *Service) checkConfigured() error {
	switch {
	case s.sender == nil:
		return &ConfigurationError{Detail: "SMTP credentials not configured"}
	case s.recipient == "":
		return &ConfigurationError{Detail: "notification recipient not configured"}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, sub submission.Submission) error {
	msg, err := s.compose(sub, s.recipient, s.subjectPrefix)
	if err != nil {
		s.metrics.observe("delivery_" + string(mailer.KindOther))
		s.log.Error().Err(err).
			Str("submission_id", sub.ID).
			Str("kind", string(mailer.KindOther)).
			Msg("submission stored but notification could not be composed")
		return &DeliveryError{Kind: mailer.KindOther, SubmissionID: sub.ID, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.sender.Send(ctx, msg); err != nil {
		kind := mailer.Classify(err)
		s.metrics.observe("delivery_" + string(kind))
		s.log.Error().Err(err).
			Str("submission_id", sub.ID).
			Str("kind", string(kind)).
			Msg("submission stored but notification failed")
		return &DeliveryError{Kind: kind, SubmissionID: sub.ID, Err: err}
	}
	return nil
}
