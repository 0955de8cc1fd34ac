// Package booking ties the slot engine to storage.  It validates requests
// against the opening hours, checks capacity and performs the write through
// the repository's capacity-guarded calls, which repeat the capacity check
// under a per-slot lock.  A write that loses the race is re-checked before
// it is retried, so a full slot is reported as such instead of being
// overwritten.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/restaurant-reservation/internal/availability"
	"github.com/iliyamo/restaurant-reservation/internal/holiday"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/queue"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/schedule"
)

// DefaultMaxAttempts bounds the number of write attempts for one request.
const DefaultMaxAttempts = 3

// Repository is the storage the service needs.  Both
// repository.ReservationRepo and repository.MemoryReservationRepo satisfy it.
type Repository interface {
	availability.Store
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ListByDate(ctx context.Context, date time.Time) ([]model.Reservation, error)
	CreateWithinCapacity(ctx context.Context, res *model.Reservation, maxCapacity int) error
	UpdateWithinCapacity(ctx context.Context, res *model.Reservation, maxCapacity int) (*model.Reservation, error)
	Cancel(ctx context.Context, id uint64) (*model.Reservation, error)
	Delete(ctx context.Context, id uint64) (*model.Reservation, error)
}

// Publisher delivers reservation events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Invalidator drops cached availability of a date (YYYY-MM-DD).
type Invalidator interface {
	InvalidateDate(ctx context.Context, date string) error
}

// Options configures a Service.  Zero values select the defaults.
type Options struct {
	MaxCapacity    int
	MaxAttempts    int
	PublishTimeout time.Duration
	Events         Publisher
	Cache          Invalidator
	Logger         *slog.Logger
}

// Service implements reservation use cases.
type Service struct {
	rules    schedule.Rules
	repo     Repository
	checker  *availability.Checker
	attempts int
	timeout  time.Duration
	events   Publisher
	cache    Invalidator
	log      *slog.Logger
}

// NewService wires a Service.  repo must not be nil.
func NewService(repo Repository, rules schedule.Rules, opts Options) *Service {
	if repo == nil {
		panic("nil repository passed to NewService")
	}
	s := &Service{
		rules:    rules,
		repo:     repo,
		checker:  availability.NewChecker(repo, opts.MaxCapacity),
		attempts: opts.MaxAttempts,
		timeout:  opts.PublishTimeout,
		events:   opts.Events,
		cache:    opts.Cache,
		log:      opts.Logger,
	}
	if s.attempts <= 0 {
		s.attempts = DefaultMaxAttempts
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Rules returns the opening-hour rules in force.
func (s *Service) Rules() schedule.Rules { return s.rules }

// MaxCapacity returns the per-slot seat ceiling.
func (s *Service) MaxCapacity() int { return s.checker.MaxCapacity() }

// Request is the guest-facing reservation payload.  Status is only honoured
// by Update.
type Request struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	PartySize int    `json:"number_of_people"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Notes     string `json:"notes"`
	Status    string `json:"status,omitempty"`
}

// OpeningHours describes the service of one day.
type OpeningHours struct {
	Date       string `json:"date"`
	Weekday    string `json:"weekday"`
	Open       string `json:"open"`
	Close      string `json:"close"`
	LateNight  bool   `json:"late_night"`
	Holiday    string `json:"holiday,omitempty"`
	HolidayEve bool   `json:"holiday_eve"`
}

// SlotAvailability is one slot of DaySlots.
type SlotAvailability struct {
	Time              string `json:"time"`
	NextDay           bool   `json:"next_day"`
	IsPast            bool   `json:"is_past"`
	Available         bool   `json:"available"`
	RemainingCapacity int    `json:"remaining_capacity"`
}

// DaySlots lists the slots of a day with their remaining capacity.
type DaySlots struct {
	Date      string             `json:"date"`
	Open      string             `json:"open"`
	Close     string             `json:"close"`
	LateNight bool               `json:"late_night"`
	Slots     []SlotAvailability `json:"slots"`
}

// Availability answers a single capacity question.
type Availability struct {
	Date              string `json:"date"`
	Time              string `json:"time"`
	PartySize         int    `json:"number_of_people"`
	Available         bool   `json:"available"`
	RemainingCapacity int    `json:"remaining_capacity"`
	Reason            string `json:"reason,omitempty"`
}

// OpeningHours returns the window of date.
func (s *Service) OpeningHours(date string) (*OpeningHours, error) {
	d, err := schedule.ParseDate(date)
	if err != nil {
		return nil, err
	}
	w := s.rules.WindowFor(d)
	out := &OpeningHours{
		Date:      d.Format(schedule.DateLayout),
		Weekday:   d.Weekday().String(),
		Open:      w.Open.String(),
		Close:     w.Close.String(),
		LateNight: s.rules.IsLateNight(d),
	}
	if s.rules.Holidays != nil {
		out.HolidayEve = s.rules.Holidays.IsHolidayEve(d)
	} else {
		out.HolidayEve = holiday.IsHolidayEve(d)
	}
	if name, ok := holiday.Lookup(d); ok {
		out.Holiday = name
	}
	return out, nil
}

// AvailableSlots lists the bookable slots of date as seen at now, each with
// its remaining capacity.  The day's bookings are read once.
func (s *Service) AvailableSlots(ctx context.Context, date string, now time.Time) (*DaySlots, error) {
	d, err := schedule.ParseDate(date)
	if err != nil {
		return nil, err
	}
	occ, err := s.checker.Snapshot(ctx, d)
	if err != nil {
		return nil, err
	}
	w := s.rules.WindowFor(d)
	slots := s.rules.GenerateSlots(d, now)
	out := &DaySlots{
		Date:      d.Format(schedule.DateLayout),
		Open:      w.Open.String(),
		Close:     w.Close.String(),
		LateNight: s.rules.IsLateNight(d),
		Slots:     make([]SlotAvailability, 0, len(slots)),
	}
	for _, slot := range slots {
		left := occ.Remaining(slot.Time)
		out.Slots = append(out.Slots, SlotAvailability{
			Time:              slot.Time,
			NextDay:           slot.NextDay,
			IsPast:            slot.IsPast,
			Available:         !slot.IsPast && left > 0,
			RemainingCapacity: left,
		})
	}
	return out, nil
}

// CheckAvailability reports whether partySize guests can book date at t.
// A time outside the opening hours or too close to now is reported as
// unavailable with a reason rather than as an error.
func (s *Service) CheckAvailability(ctx context.Context, date, t string, partySize int, now time.Time) (*Availability, error) {
	d, wall, err := parseSlot(date, t)
	if err != nil {
		return nil, err
	}
	if partySize < 1 {
		return nil, &ValidationError{Field: "number_of_people", Message: "must be at least 1"}
	}
	out := &Availability{
		Date:      d.Format(schedule.DateLayout),
		Time:      wall.String(),
		PartySize: partySize,
	}
	if _, err := s.rules.ValidateSlot(d, wall, now); err != nil {
		out.Reason = err.Error()
		return out, nil
	}
	occ, err := s.checker.Snapshot(ctx, d)
	if err != nil {
		return nil, err
	}
	out.RemainingCapacity = occ.Remaining(out.Time)
	out.Available = occ.Fits(out.Time, partySize)
	return out, nil
}

// Create books a table.  It returns *schedule.InvalidDateError,
// *ValidationError, *SlotUnavailableError or *ConcurrencyConflictError for
// requests that cannot be honoured.
func (s *Service) Create(ctx context.Context, req Request, now time.Time) (*model.Reservation, error) {
	d, wall, err := parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if err := s.validateGuest(req); err != nil {
		return nil, err
	}
	if _, err := s.rules.ValidateSlot(d, wall, now); err != nil {
		return nil, slotError(err)
	}
	res := &model.Reservation{
		Date:      d,
		Time:      wall.String(),
		PartySize: req.PartySize,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Notes:     strings.TrimSpace(req.Notes),
		Status:    model.StatusConfirmed,
	}
	err = s.writeWithinCapacity(ctx, res, 0, func() error {
		return s.repo.CreateWithinCapacity(ctx, res, s.MaxCapacity())
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "reservation created",
		"id", res.ID, "date", res.DateString(), "time", res.Time, "party_size", res.PartySize)
	s.publish(ctx, queue.ReservationCreatedQueue, res, now)
	s.invalidate(ctx, res.DateString())
	return res, nil
}

// Update rewrites reservation id.  Moving it to another slot, or growing
// the party, goes through the same capacity-guarded path as Create with the
// reservation's own seats left out of the count.
func (s *Service) Update(ctx context.Context, id uint64, req Request, now time.Time) (*model.Reservation, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, wall, err := parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if err := s.validateGuest(req); err != nil {
		return nil, err
	}
	status := current.Status
	if req.Status != "" {
		status = strings.ToUpper(strings.TrimSpace(req.Status))
		switch status {
		case model.StatusPending, model.StatusConfirmed, model.StatusCancelled:
		default:
			return nil, &ValidationError{Field: "status", Message: "must be PENDING, CONFIRMED or CANCELLED"}
		}
	}
	res := &model.Reservation{
		ID:        id,
		Date:      d,
		Time:      wall.String(),
		PartySize: req.PartySize,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Notes:     strings.TrimSpace(req.Notes),
		Status:    status,
	}
	sameSlot := current.DateString() == res.DateString() &&
		availability.NormalizeTime(current.Time) == res.Time
	if !sameSlot {
		if _, err := s.rules.ValidateSlot(d, wall, now); err != nil {
			return nil, slotError(err)
		}
	}

	var before *model.Reservation
	write := func() error {
		prev, err := s.repo.UpdateWithinCapacity(ctx, res, s.MaxCapacity())
		before = prev
		return err
	}
	if res.Active() {
		own := 0
		if sameSlot && current.Active() {
			own = current.PartySize
		}
		err = s.writeWithinCapacity(ctx, res, own, write)
	} else {
		err = write()
	}
	if err != nil {
		return nil, err
	}
	if before == nil {
		before = current
	}
	s.log.InfoContext(ctx, "reservation updated",
		"id", res.ID, "date", res.DateString(), "time", res.Time, "status", res.Status)
	if before.Active() && !res.Active() {
		s.publish(ctx, queue.ReservationCancelledQueue, res, now)
	}
	if before.DateString() != res.DateString() {
		s.invalidate(ctx, before.DateString())
	}
	s.invalidate(ctx, res.DateString())
	return res, nil
}

// Cancel releases the seats of reservation id.  Cancelling an already
// cancelled reservation returns it unchanged.
func (s *Service) Cancel(ctx context.Context, id uint64, now time.Time) (*model.Reservation, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Active() {
		return current, nil
	}
	res, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "reservation cancelled", "id", id, "date", res.DateString(), "time", res.Time)
	s.publish(ctx, queue.ReservationCancelledQueue, res, now)
	s.invalidate(ctx, res.DateString())
	return res, nil
}

// Delete removes reservation id.  Deleting an active reservation is
// announced as a cancellation.
func (s *Service) Delete(ctx context.Context, id uint64, now time.Time) error {
	res, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "reservation deleted", "id", id, "date", res.DateString(), "time", res.Time)
	if res.Active() {
		res.Status = model.StatusCancelled
		s.publish(ctx, queue.ReservationCancelledQueue, res, now)
	}
	s.invalidate(ctx, res.DateString())
	return nil
}

// Get returns reservation id.
func (s *Service) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every reservation of date, cancelled ones included, in
// service order: slots after midnight come after the evening ones.
func (s *Service) List(ctx context.Context, date string) ([]model.Reservation, error) {
	d, err := schedule.ParseDate(date)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListByDate(ctx, d)
	if err != nil {
		return nil, err
	}
	order := func(t string) schedule.Clock {
		c, err := schedule.ParseTime(t)
		if err != nil {
			return 0
		}
		return s.rules.Resolve(d, c)
	}
	sort.SliceStable(list, func(i, j int) bool { return order(list[i].Time) < order(list[j].Time) })
	return list, nil
}

// writeWithinCapacity checks that res fits next to the seats already booked
// at its slot, own seats excepted, and runs write.  When write reports that
// the slot filled up or the transaction lost a race the check is run again:
// a full slot ends in *SlotUnavailableError, otherwise the write is retried
// up to the attempt limit.
func (s *Service) writeWithinCapacity(ctx context.Context, res *model.Reservation, own int, write func() error) error {
	ceiling := s.MaxCapacity()
	for attempt := 1; attempt <= s.attempts; attempt++ {
		occ, err := s.checker.Snapshot(ctx, res.Date)
		if err != nil {
			return err
		}
		taken := occ.Occupied(res.Time) - own
		if taken < 0 {
			taken = 0
		}
		if !availability.Fits(ceiling, taken, res.PartySize) {
			return &SlotUnavailableError{
				Date:      res.DateString(),
				Time:      res.Time,
				PartySize: res.PartySize,
				Remaining: availability.Remaining(ceiling, taken),
			}
		}
		err = write()
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrCapacityExceeded) && !errors.Is(err, repository.ErrConflict) {
			return err
		}
		s.log.WarnContext(ctx, "slot write lost a race",
			"date", res.DateString(), "time", res.Time, "attempt", attempt, "err", err)
	}
	return &ConcurrencyConflictError{Date: res.DateString(), Time: res.Time, Attempts: s.attempts}
}

func (s *Service) validateGuest(req Request) error {
	if req.PartySize < 1 {
		return &ValidationError{Field: "number_of_people", Message: "must be at least 1"}
	}
	if req.PartySize > s.MaxCapacity() {
		return &ValidationError{Field: "number_of_people", Message: "exceeds the restaurant capacity"}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		return &ValidationError{Field: "name", Message: "is required (at most 100 characters)"}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Phone)) > 32 {
		return &ValidationError{Field: "phone", Message: "is too long"}
	}
	if utf8.RuneCountInString(req.Notes) > 1000 {
		return &ValidationError{Field: "notes", Message: "is too long"}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, typ string, res *model.Reservation, now time.Time) {
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.events.Publish(pctx, queue.NewReservationEvent(typ, res, now)); err != nil {
		s.log.WarnContext(ctx, "publish reservation event failed", "type", typ, "id", res.ID, "err", err)
	}
}

func (s *Service) invalidate(ctx context.Context, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDate(ctx, date); err != nil {
		s.log.WarnContext(ctx, "availability cache invalidation failed", "date", date, "err", err)
	}
}

func parseSlot(date, t string) (time.Time, schedule.Clock, error) {
	d, err := schedule.ParseDate(date)
	if err != nil {
		return time.Time{}, 0, err
	}
	wall, err := schedule.ParseTime(t)
	if err != nil {
		return time.Time{}, 0, &ValidationError{Field: "time", Message: "expected HH:MM"}
	}
	return d, wall, nil
}

func slotError(err error) error {
	if errors.Is(err, schedule.ErrOutsideOpeningHours) || errors.Is(err, schedule.ErrSlotInPast) {
		return &ValidationError{Field: "time", Message: err.Error()}
	}
	return err
}
