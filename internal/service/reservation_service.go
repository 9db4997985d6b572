package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/dorm-seat-reservation/internal/model"
	"github.com/iliyamo/dorm-seat-reservation/internal/queue"
	"github.com/iliyamo/dorm-seat-reservation/internal/repository"
	"github.com/iliyamo/dorm-seat-reservation/internal/utils"
)

// Field limits, matching the column sizes of the reservations table.
const (
	maxRoomNo    = 32
	maxName      = 64
	maxDormitory = 32
	maxFloor     = 16
	maxDeviceID  = 128
	minPassword  = 4
	maxPassword  = 72 // bcrypt ignores anything longer
)

// BookingRequest is a create-or-move submission keyed by identity.
type BookingRequest struct {
	model.Identity
	model.Placement
	Password string
	DeviceID string
	Honeypot string // must stay empty; filled only by bots
}

// MoveRequest moves an existing reservation by id.  Either Password (owner)
// or Admin must be supplied.
type MoveRequest struct {
	model.Placement
	Password string
	DeviceID string
	Admin    AdminCredential
}

// CancelRequest cancels a reservation by id.  Either Password (owner) or
// Admin must be supplied.
type CancelRequest struct {
	Password string
	DeviceID string
	Admin    AdminCredential
}

// ReservationService decides whether reservation mutations are admitted.
// It keeps no reservation state between calls: every decision re-reads the
// store, and the store's unique indexes settle races between requests.
type ReservationService struct {
	d Deps

	// publishMu orders list-and-broadcast so a listing taken before a
	// later commit is never delivered after that commit's listing.
	publishMu sync.Mutex
}

// NewReservationService constructs the admission controller.  It panics if
// a required dependency is missing.
func NewReservationService(d Deps) *ReservationService {
	d.fill()
	return &ReservationService{d: d}
}

func checkLen(field, v string, max int) error {
	if v == "" {
		return invalid("%s is required", field)
	}
	if utf8.RuneCountInString(v) > max {
		return invalid("%s must be at most %d characters", field, max)
	}
	return nil
}

func normalizePlacement(p model.Placement) model.Placement {
	p.Dormitory = strings.TrimSpace(p.Dormitory)
	p.Floor = strings.TrimSpace(p.Floor)
	return p
}

func validatePlacement(p model.Placement) error {
	if err := checkLen("dormitory", p.Dormitory, maxDormitory); err != nil {
		return err
	}
	if err := checkLen("floor", p.Floor, maxFloor); err != nil {
		return err
	}
	if p.Seat <= 0 {
		return invalid("seat must be a positive number")
	}
	return nil
}

func validateDevice(id string) error {
	if utf8.RuneCountInString(id) > maxDeviceID {
		return invalid("deviceId must be at most %d characters", maxDeviceID)
	}
	return nil
}

func (r *BookingRequest) normalize() {
	r.RoomNo = strings.TrimSpace(r.RoomNo)
	r.Name = strings.TrimSpace(r.Name)
	r.Placement = normalizePlacement(r.Placement)
	r.DeviceID = strings.TrimSpace(r.DeviceID)
}

func (r BookingRequest) validate() error {
	if r.Honeypot != "" {
		return invalid("request rejected")
	}
	if err := checkLen("roomNo", r.RoomNo, maxRoomNo); err != nil {
		return err
	}
	if err := checkLen("name", r.Name, maxName); err != nil {
		return err
	}
	if err := validatePlacement(r.Placement); err != nil {
		return err
	}
	if n := len(r.Password); n < minPassword || n > maxPassword {
		return invalid("password must be %d to %d characters", minPassword, maxPassword)
	}
	return validateDevice(r.DeviceID)
}

// optional turns ErrNotFound into a nil result.
func optional(r model.Reservation, err error) (*model.Reservation, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns every reservation.
func (s *ReservationService) List(ctx context.Context) ([]model.Reservation, error) {
	ctx, cancel := s.d.bound(ctx)
	defer cancel()
	list, err := s.d.Reservations.ListAll(ctx)
	if err != nil {
		return nil, s.d.failed("list", storeErr("list reservations", err))
	}
	return list, nil
}

// CreateOrMove books the requested seat for the identity.  When the
// identity already holds a reservation, the reservation is moved after its
// password is verified.  It reports whether a new reservation was created.
func (s *ReservationService) CreateOrMove(ctx context.Context, req BookingRequest) (model.Reservation, bool, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return model.Reservation{}, false, err
	}
	ctx, cancel := s.d.bound(ctx)
	defer cancel()

	if err := s.d.requireOpen(ctx); err != nil {
		return model.Reservation{}, false, s.d.failed("create", err)
	}
	if s.d.Policy.PasswordPolicy && utils.IsWeakPassword(req.Password) {
		return model.Reservation{}, false, errWeakPassword
	}

	existing, conflict, err := s.probe(ctx, req.Identity, req.Placement)
	if err != nil {
		return model.Reservation{}, false, s.d.failed("create", storeErr("lookup", err))
	}
	// A placement conflict is only forgivable when the occupant is the
	// requester's own reservation.
	if conflict != nil && (existing == nil || conflict.ID != existing.ID) {
		return model.Reservation{}, false, errPlacementTaken
	}

	if existing != nil {
		res, err := s.moveOwned(ctx, *existing, req.Placement, req.Password, req.DeviceID)
		return res, false, s.d.failed("move", err)
	}

	hash, err := s.d.Hasher.Hash(req.Password)
	if err != nil {
		return model.Reservation{}, false, s.d.failed("create", storeErr("hash password", err))
	}
	res := model.Reservation{
		Identity:     req.Identity,
		Placement:    req.Placement,
		PasswordHash: hash,
		DeviceID:     req.DeviceID,
		CreatedAt:    s.d.now(),
	}
	if err := s.d.Reservations.Insert(ctx, &res); err != nil {
		return model.Reservation{}, false, s.d.failed("create", writeErr("insert reservation", err))
	}
	s.afterChange(ctx, queue.ActionCreated, model.CancelledByOwner, &res, 0)
	return res, true, nil
}

// probe reads the identity's reservation and the seat's occupant in
// parallel.  Both are read-only, so their order does not matter.
func (s *ReservationService) probe(ctx context.Context, who model.Identity, at model.Placement) (existing, conflict *model.Reservation, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		existing, err = optional(s.d.Reservations.FindByIdentity(gctx, who))
		return err
	})
	g.Go(func() error {
		var err error
		conflict, err = optional(s.d.Reservations.FindByPlacement(gctx, at))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return existing, conflict, nil
}

// moveOwned is the owner path of a move: password, then device binding,
// then the placement update.  The password is never re-hashed.
func (s *ReservationService) moveOwned(ctx context.Context, cur model.Reservation, to model.Placement, password, deviceID string) (model.Reservation, error) {
	if !s.d.Hasher.Verify(cur.PasswordHash, password) {
		return model.Reservation{}, credentialMismatch(KindAuthentication)
	}
	if err := s.checkDevice(cur, deviceID); err != nil {
		return model.Reservation{}, err
	}
	return s.applyMove(ctx, cur, to, deviceID, model.CancelledByOwner)
}

func (s *ReservationService) applyMove(ctx context.Context, cur model.Reservation, to model.Placement, deviceID, actor string) (model.Reservation, error) {
	bind := ""
	if !cur.Bound() && deviceID != "" && actor == model.CancelledByOwner {
		bind = deviceID
	}
	if cur.Placement == to && bind == "" {
		return cur, nil
	}
	res, err := s.d.Reservations.UpdatePlacement(ctx, cur.ID, to, bind, s.d.now())
	if err != nil {
		return model.Reservation{}, writeErr("update placement", err)
	}
	s.afterChange(ctx, queue.ActionMoved, actor, &res, 0)
	return res, nil
}

// checkDevice enforces the device binding of cur.  Records without a
// binding are legacy records and pass unless strict binding is on.
func (s *ReservationService) checkDevice(cur model.Reservation, deviceID string) error {
	if !cur.Bound() {
		if s.d.Policy.StrictDeviceBinding && deviceID == "" {
			return errDeviceMismatch
		}
		return nil
	}
	if deviceID != cur.DeviceID {
		return errDeviceMismatch
	}
	return nil
}

// Move relocates reservation id.  Admins bypass the window, password and
// device checks; owners go through all three.
func (s *ReservationService) Move(ctx context.Context, id uint64, req MoveRequest) (model.Reservation, error) {
	req.Placement = normalizePlacement(req.Placement)
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if id == 0 {
		return model.Reservation{}, invalid("invalid reservation id")
	}
	if err := validatePlacement(req.Placement); err != nil {
		return model.Reservation{}, err
	}
	if err := validateDevice(req.DeviceID); err != nil {
		return model.Reservation{}, err
	}
	admin := req.Admin.Present()
	if !admin && req.Password == "" {
		return model.Reservation{}, invalid("password is required")
	}
	ctx, cancel := s.d.bound(ctx)
	defer cancel()

	cur, err := optional(s.d.Reservations.FindByID(ctx, id))
	if err != nil {
		return model.Reservation{}, s.d.failed("move", storeErr("find reservation", err))
	}
	if cur == nil {
		return model.Reservation{}, errNotFound
	}

	actor := model.CancelledByOwner
	if admin {
		if _, err := s.d.Admins.Verify(req.Admin); err != nil {
			return model.Reservation{}, s.d.failed("move", err)
		}
		actor = model.CancelledByAdmin
	} else {
		if err := s.d.requireOpen(ctx); err != nil {
			return model.Reservation{}, s.d.failed("move", err)
		}
		if !s.d.Hasher.Verify(cur.PasswordHash, req.Password) {
			return model.Reservation{}, credentialMismatch(KindAuthentication)
		}
		if err := s.checkDevice(*cur, req.DeviceID); err != nil {
			return model.Reservation{}, err
		}
	}

	conflict, err := optional(s.d.Reservations.FindByPlacementExcluding(ctx, req.Placement, id))
	if err != nil {
		return model.Reservation{}, s.d.failed("move", storeErr("lookup placement", err))
	}
	if conflict != nil {
		return model.Reservation{}, errPlacementTaken
	}
	res, err := s.applyMove(ctx, *cur, req.Placement, req.DeviceID, actor)
	return res, s.d.failed("move", err)
}

// Cancel deletes reservation id on behalf of its owner or an admin.
func (s *ReservationService) Cancel(ctx context.Context, id uint64, req CancelRequest) error {
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if id == 0 {
		return invalid("invalid reservation id")
	}
	admin := req.Admin.Present()
	if !admin && req.Password == "" {
		return invalid("password is required")
	}
	ctx, cancel := s.d.bound(ctx)
	defer cancel()

	cur, err := optional(s.d.Reservations.FindByID(ctx, id))
	if err != nil {
		return s.d.failed("cancel", storeErr("find reservation", err))
	}
	if cur == nil {
		return errNotFound
	}

	actor := model.CancelledByOwner
	if admin {
		if _, err := s.d.Admins.Verify(req.Admin); err != nil {
			return s.d.failed("cancel", err)
		}
		actor = model.CancelledByAdmin
	} else {
		if s.d.Policy.SelfCancelRequiresWindow {
			if err := s.d.requireOpen(ctx); err != nil {
				return s.d.failed("cancel", err)
			}
		}
		if !s.d.Hasher.Verify(cur.PasswordHash, req.Password) {
			return credentialMismatch(KindAuthorization)
		}
		if err := s.checkDevice(*cur, req.DeviceID); err != nil {
			return err
		}
	}

	if err := s.d.Reservations.Delete(ctx, *cur, s.cancellation(actor)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errNotFound
		}
		return s.d.failed("cancel", storeErr("delete reservation", err))
	}
	s.afterChange(ctx, queue.ActionCancelled, actor, cur, 0)
	return nil
}

// BulkCancel deletes every reservation.  Only admins may call it, and
// individual reservation passwords are ignored.
func (s *ReservationService) BulkCancel(ctx context.Context, cred AdminCredential) (int64, error) {
	if _, err := s.d.Admins.Verify(cred); err != nil {
		return 0, s.d.failed("bulk cancel", err)
	}
	ctx, cancel := s.d.bound(ctx)
	defer cancel()

	n, err := s.d.Reservations.DeleteAll(ctx, s.cancellation(model.CancelledByAdminBulk))
	if err != nil {
		return 0, s.d.failed("bulk cancel", storeErr("delete all reservations", err))
	}
	s.afterChange(ctx, queue.ActionBulkCancelled, model.CancelledByAdminBulk, nil, n)
	return n, nil
}

func (s *ReservationService) cancellation(actor string) *model.Cancellation {
	if !s.d.Policy.AuditCancellations {
		return nil
	}
	return &model.Cancellation{By: actor, At: s.d.now()}
}

// afterChange runs once a mutation is committed: it broadcasts a fresh
// full listing and journals the change.  Failures here are logged only.
func (s *ReservationService) afterChange(ctx context.Context, action, actor string, res *model.Reservation, deleted int64) {
	ctx, cancel := s.d.detached(ctx)
	defer cancel()

	s.publishMu.Lock()
	list, err := s.d.Reservations.ListAll(ctx)
	if err != nil {
		s.d.Log.Warn("post-commit listing failed", zap.String("action", action), zap.Error(err))
	} else {
		s.d.broadcast(ctx, EventReservationsUpdated, list, AudienceAll)
	}
	s.publishMu.Unlock()

	ev := queue.ReservationEvent{
		Action:     action,
		Actor:      actor,
		Deleted:    deleted,
		OccurredAt: s.d.now().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if res != nil {
		ev.ReservationID = res.ID
		ev.RoomNo, ev.Name = res.RoomNo, res.Name
		ev.Dormitory, ev.Floor, ev.Seat = res.Dormitory, res.Floor, res.Seat
	}
	if err := s.d.Journal.Publish(ctx, ev); err != nil {
		s.d.Log.Warn("journal publish failed", zap.String("action", action), zap.Error(err))
	}
}

func credentialMismatch(kind Kind) *Error {
	return newErr(kind, CodeCredentialMismatch, "password does not match this reservation")
}

// writeErr interprets a failed Insert/UpdatePlacement.  A unique index
// rejection that slipped past the pre-check is a conflict, not a failure.
func writeErr(op string, err error) error {
	var uv *repository.UniqueViolation
	if errors.As(err, &uv) {
		msg := "this seat was just reserved by someone else"
		if uv.Index == repository.IndexIdentity {
			msg = "a reservation for this room and name was just created"
		}
		return &Error{Kind: KindConflict, Code: CodeDuplicateDetected, Message: msg, Err: err}
	}
	if errors.Is(err, repository.ErrNotFound) {
		return errNotFound
	}
	return storeErr(op, err)
}
