package order

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/antonminaichev/linkcard/internal/apperr"
	"github.com/antonminaichev/linkcard/internal/logger"
	"github.com/antonminaichev/linkcard/internal/rbac"
	"github.com/antonminaichev/linkcard/internal/storage"
	"github.com/antonminaichev/linkcard/internal/types/order"
	"github.com/antonminaichev/linkcard/internal/types/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxQuantity = 10

var (
	ErrOrderNotFound     = apperr.NotFound("order not found")
	ErrInvalidStatus     = apperr.Validation("invalid status")
	ErrInvalidEmailType  = apperr.Validation("invalid email type")
	ErrMobileNotVerified = apperr.Validation("mobile number is not verified")
)

type Service struct {
	repo     OrderRepository
	notifier Notifier
	policy   Policy
	verifier VerificationChecker
	now      func() time.Time
}

type Option func(*Service)

func WithPolicy(p Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithVerifiedMobiles makes CreateOrder reject card configs whose mobile
// number has not passed verification.
func WithVerifiedMobiles(v VerificationChecker) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

func NewService(r OrderRepository, n Notifier, opts ...Option) *Service {
	s := &Service{
		repo:     r,
		notifier: n,
		policy:   AllowAll,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func authorize(p user.Principal, perm rbac.Permission) error {
	if rbac.HasPermission(p.Role, perm) {
		return nil
	}
	logger.Log.Warn("permission denied",
		zap.String("role", string(p.Role)),
		zap.String("permission", string(perm)),
	)
	return apperr.Forbidden()
}

func (s *Service) find(ctx context.Context, ref string) (*order.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrOrderNotFound
	}
	o, err := s.repo.FindOrder(ctx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperr.External("order store unavailable", err)
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, p user.Principal) ([]order.Order, error) {
	if err := authorize(p, rbac.ViewOrders); err != nil {
		return nil, err
	}
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, apperr.External("order store unavailable", err)
	}
	if orders == nil {
		orders = []order.Order{}
	}
	return orders, nil
}

// validateDraft checks d and returns the customer's bare email address, so
// "Asha <asha@example.com>" is stored as asha@example.com.
func validateDraft(d order.Draft) (string, error) {
	if strings.TrimSpace(d.CustomerName) == "" {
		return "", apperr.Validation("customer name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(d.Email))
	if err != nil {
		return "", apperr.Validation("invalid customer email")
	}
	if q := d.CardConfig.Quantity; q < 0 || q > maxQuantity {
		return "", apperr.Validation(fmt.Sprintf("quantity must be at most %d (0 means 1)", maxQuantity))
	}
	if d.Pricing.Total < 0 {
		return "", apperr.Validation("total must not be negative")
	}
	return addr.Address, nil
}

// CreateOrder places a new pending order built from d.
func (s *Service) CreateOrder(ctx context.Context, p user.Principal, d order.Draft) (*order.Order, error) {
	if err := authorize(p, rbac.CreateOrders); err != nil {
		return nil, err
	}
	email, err := validateDraft(d)
	if err != nil {
		return nil, err
	}

	cfg := d.CardConfig
	if cfg.Quantity == 0 {
		cfg.Quantity = 1
	}
	if s.verifier != nil && cfg.Mobile != "" {
		ok, err := s.verifier.IsVerified(ctx, cfg.Mobile)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrMobileNotVerified
		}
		cfg.MobileVerified = true
	}

	o := &order.Order{
		ID:             uuid.NewString(),
		Status:         order.StatusPending,
		CustomerName:   strings.TrimSpace(d.CustomerName),
		Email:          email,
		CardConfig:     cfg,
		Pricing:        d.Pricing,
		CreatedAt:      s.now().UTC(),
		TrackingNumber: d.TrackingNumber,
		EmailsSent:     []order.EmailSend{},
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, apperr.External("failed to create order", err)
	}
	logger.Log.Info("order created", zap.String("order", o.Number), zap.String("role", string(p.Role)))
	return o, nil
}

// UpdateStatus moves the order named by ref to status. Concurrent updates are
// serialized by the store: a lost compare-and-swap re-reads and tries again
// until it wins or ctx is done, so every successful call was applied and the
// last one applied is what later reads observe.
func (s *Service) UpdateStatus(ctx context.Context, p user.Principal, ref, status string) (*order.Order, error) {
	if err := authorize(p, rbac.UpdateOrders); err != nil {
		return nil, err
	}
	next, ok := order.ParseStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, apperr.External("order store busy", err)
		}
		o, err := s.find(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !s.policy(o.Status, next) {
			return nil, apperr.Validation(fmt.Sprintf("transition from %s to %s is not allowed", o.Status, next))
		}
		swapped, err := s.repo.CompareAndSwapStatus(ctx, o.ID, o.Version, next)
		if err != nil {
			return nil, apperr.External("order store unavailable", err)
		}
		if !swapped {
			continue
		}
		logger.Log.Info("order status changed",
			zap.String("order", o.Number),
			zap.String("from", string(o.Status)),
			zap.String("to", string(next)),
			zap.String("role", string(p.Role)),
		)
		o.Status = next
		o.Version++
		return o, nil
	}
}

// ResendNotification dispatches a kind email for the order and appends the
// outcome to its audit list, failed sends included. It is not idempotent.
func (s *Service) ResendNotification(ctx context.Context, p user.Principal, ref, kind string) (order.SendResult, error) {
	if err := authorize(p, rbac.SendEmails); err != nil {
		return order.SendResult{}, err
	}
	k, ok := order.ParseNotificationKind(kind)
	if !ok {
		return order.SendResult{}, ErrInvalidEmailType
	}
	o, err := s.find(ctx, ref)
	if err != nil {
		return order.SendResult{}, err
	}

	sendErr := s.notifier.SendOrderEmail(ctx, *o, k)
	rec := order.EmailSend{
		Kind:    k,
		SentAt:  s.now().UTC(),
		Success: sendErr == nil,
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	res := order.SendResult{
		OrderID: o.ID,
		Kind:    k,
		Success: rec.Success,
		SentAt:  rec.SentAt,
	}

	// the send already happened, so record it even if the caller went away
	if err := s.repo.AppendEmailSend(context.WithoutCancel(ctx), o.ID, rec); err != nil {
		logger.Log.Error("failed to record email send",
			zap.String("order", o.Number),
			zap.String("kind", string(k)),
			zap.Bool("success", rec.Success),
			zap.Error(err),
		)
		return res, apperr.External("failed to record notification", err)
	}

	if sendErr != nil {
		logger.Log.Warn("order email failed", zap.String("order", o.Number), zap.String("kind", string(k)), zap.Error(sendErr))
		res.Error = "notification dispatch failed"
		return res, apperr.External(res.Error, sendErr)
	}
	logger.Log.Info("order email sent", zap.String("order", o.Number), zap.String("kind", string(k)))
	return res, nil
}
