package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-seat-reservation/internal/model"
	"github.com/iliyamo/dorm-seat-reservation/internal/repository"
)

// Policy carries the behaviour switches that differ between deployments.
type Policy struct {
	PasswordPolicy           bool          // reject weak passwords on create
	SelfCancelRequiresWindow bool          // owners may only cancel while the window is open
	StrictDeviceBinding      bool          // unbound records also require a device id match
	AuditCancellations       bool          // snapshot cancelled reservations
	StoreTimeout             time.Duration // bound for the store calls of one operation
}

// Deps groups the collaborators shared by the reservation and moderation
// services.  Reservations, Settings, Admins and Hasher are required;
// the rest default to no-ops.
type Deps struct {
	Reservations ReservationStore
	Settings     SettingsStore
	Admins       *AdminVerifier
	Hasher       Hasher
	Notifier     Notifier
	Journal      Journal
	Policy       Policy
	Log          *zap.Logger
	Now          func() time.Time
}

func (d *Deps) fill() {
	if d.Reservations == nil || d.Settings == nil || d.Admins == nil || d.Hasher == nil {
		panic("service: nil dependency")
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Journal == nil {
		d.Journal = nopJournal{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Policy.StoreTimeout <= 0 {
		d.Policy.StoreTimeout = 5 * time.Second
	}
}

func (d *Deps) now() time.Time { return d.Now().UTC() }

// bound limits the store work of one operation.
func (d *Deps) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.Policy.StoreTimeout)
}

// detached returns a context for post-commit work that must not be cut
// short by the caller going away.
func (d *Deps) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d.Policy.StoreTimeout)
}

// settings loads the window settings, mapping "never written" to nil.
func (d *Deps) settings(ctx context.Context) (*model.AdminSetting, error) {
	s, err := d.Settings.GetSettings(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("load settings", err)
	}
	return &s, nil
}

func (d *Deps) requireOpen(ctx context.Context) error {
	s, err := d.settings(ctx)
	if err != nil {
		return err
	}
	if !IsBookingOpen(s, d.now()) {
		return errWindowClosed
	}
	return nil
}

func (d *Deps) broadcast(ctx context.Context, event string, payload any, to Audience) {
	if err := d.Notifier.Broadcast(ctx, event, payload, to); err != nil {
		d.Log.Warn("broadcast failed", zap.String("event", event), zap.Error(err))
	}
}

// failed logs unexpected errors once, at the boundary where they become an
// opaque StoreFailure.
func (d *Deps) failed(op string, err error) error {
	if err == nil {
		return nil
	}
	if k := KindOf(err); k == KindStore || k == KindMisconfigured {
		d.Log.Error("operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}
