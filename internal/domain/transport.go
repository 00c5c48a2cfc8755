package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/dispatch-board/internal/pkg/errors"
)

// TransportType - вид перевозки
type TransportType string

const (
	TransportImport TransportType = "IMPORT"
	TransportExport TransportType = "EXPORT"
	TransportShunt  TransportType = "SHUNT"
)

func (t TransportType) Valid() bool {
	return t == TransportImport || t == TransportExport || t == TransportShunt
}

// Destination is one ordered stop. Order is unique per transport.
type Destination struct {
	Order       int        `json:"order"`
	LocationRef string     `json:"location_ref"`
	Date        Date       `json:"date"`
	Time        *string    `json:"time"`
	ETA         *time.Time `json:"eta"`
}

// Transport - транспортное задание. Nullable fields are serialized as explicit
// nulls so that snapshot merges can tell "cleared" from "not sent".
type Transport struct {
	ID               int64         `json:"id"`
	Reference        string        `json:"reference"`
	Type             TransportType `json:"type"`
	ContainerRef     *string       `json:"container_ref"`
	ContainerSubtype string        `json:"container_subtype"`
	NeedsTrailer     bool          `json:"needs_trailer"`
	ADR              bool          `json:"adr"`
	Destinations     []Destination `json:"destinations"`
	DepartureDate    *Date         `json:"departure_date"`
	ReturnDate       *Date         `json:"return_date"`
	TrailerID        *int64        `json:"trailer_id"`
	Lifecycle        Lifecycle     `json:"lifecycle"`
	Notes            string        `json:"notes"`
	Version          int64         `json:"version"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// reeferMarkers are container subtype fragments that imply a reefer box.
var reeferMarkers = []string{"RF", "RH", "REEFER"}

// RequiresGenset is derived from the container subtype: reefers (e.g. 40RF,
// 45RH, ISO group R like 45R1) need a power unit.
func (t *Transport) RequiresGenset() bool {
	sub := strings.ToUpper(strings.TrimSpace(t.ContainerSubtype))
	if sub == "" {
		return false
	}
	for _, m := range reeferMarkers {
		if strings.Contains(sub, m) {
			return true
		}
	}
	return len(sub) == 4 && sub[2] == 'R'
}

// HasWindow reports advanced planning mode.
func (t *Transport) HasWindow() bool {
	return t.DepartureDate != nil && t.ReturnDate != nil
}

// PlanningDates are the dates the transport can be slotted on: the
// departure..return window when present, destination dates otherwise, plus the
// restore date of a resolved cut.
func (t *Transport) PlanningDates() []Date {
	var dates []Date
	if t.HasWindow() {
		dates = DateRange(*t.DepartureDate, *t.ReturnDate)
	} else {
		for _, d := range t.Destinations {
			dates = append(dates, d.Date)
		}
	}
	if end := t.restoreDate(); end != nil {
		dates = append(dates, *end)
	}
	return UniqueDates(dates)
}

// TouchedDates are destination, departure and return dates (plus restore
// date); used for trailer exclusivity.
func (t *Transport) TouchedDates() []Date {
	var dates []Date
	for _, d := range t.Destinations {
		dates = append(dates, d.Date)
	}
	if t.DepartureDate != nil {
		dates = append(dates, *t.DepartureDate)
	}
	if t.ReturnDate != nil {
		dates = append(dates, *t.ReturnDate)
	}
	if end := t.restoreDate(); end != nil {
		dates = append(dates, *end)
	}
	return UniqueDates(dates)
}

func (t *Transport) HasPlanningDate(d Date) bool {
	return containsDate(t.PlanningDates(), d)
}

func (t *Transport) TouchesDate(d Date) bool {
	return containsDate(t.TouchedDates(), d)
}

func (t *Transport) restoreDate() *Date {
	if !t.Lifecycle.IsRestored() {
		return nil
	}
	return t.Lifecycle.cut.EndDate
}

// SortDestinations orders destinations by Order.
func (t *Transport) SortDestinations() {
	sort.SliceStable(t.Destinations, func(i, j int) bool {
		return t.Destinations[i].Order < t.Destinations[j].Order
	})
}

// ValidateDestinations checks unique orders and non-decreasing dates along
// order, plus a sane departure/return window.
func (t *Transport) ValidateDestinations() error {
	t.SortDestinations()
	seen := make(map[int]bool, len(t.Destinations))
	for i, d := range t.Destinations {
		if seen[d.Order] {
			return errors.InvalidInput(errors.CodeInvalidInput, "duplicate destination order %d", d.Order)
		}
		seen[d.Order] = true
		if !d.Date.Valid() {
			return errors.InvalidInput(errors.CodeInvalidInput, "destination %d has no valid date", d.Order)
		}
		if i > 0 && d.Date.Before(t.Destinations[i-1].Date) {
			return errors.SequenceViolation(errors.CodeDestinationOrder,
				"destination %d date %s is before destination %d date %s",
				d.Order, d.Date, t.Destinations[i-1].Order, t.Destinations[i-1].Date)
		}
	}
	if (t.DepartureDate == nil) != (t.ReturnDate == nil) {
		return errors.InvalidInput(errors.CodeInvalidInput, "departure and return dates must be given together")
	}
	if t.HasWindow() && t.ReturnDate.Before(*t.DepartureDate) {
		return errors.SequenceViolation(errors.CodePlanWindowOrder,
			"return date %s is before departure date %s", *t.ReturnDate, *t.DepartureDate)
	}
	return nil
}

func (t *Transport) destinationIndex(order int) int {
	for i, d := range t.Destinations {
		if d.Order == order {
			return i
		}
	}
	return -1
}

// SetETA sets or clears one destination ETA while keeping the set ETAs a prefix
// of the destinations sorted by order.
func (t *Transport) SetETA(order int, eta *time.Time) error {
	t.SortDestinations()
	idx := t.destinationIndex(order)
	if idx < 0 {
		return errors.NotFound(errors.CodeDestinationMissing, "destination %d not found", order)
	}
	if eta != nil {
		for i := 0; i < idx; i++ {
			if t.Destinations[i].ETA == nil {
				return errors.SequenceViolation(errors.CodeETAChain,
					"destination %d has no ETA yet", t.Destinations[i].Order)
			}
		}
		v := *eta
		t.Destinations[idx].ETA = &v
		return nil
	}
	for i := idx + 1; i < len(t.Destinations); i++ {
		if t.Destinations[i].ETA != nil {
			return errors.SequenceViolation(errors.CodeETASuccessorSet,
				"destination %d still has an ETA", t.Destinations[i].Order)
		}
	}
	t.Destinations[idx].ETA = nil
	return nil
}

// ETAChainValid reports whether set ETAs form a prefix along order.
func (t *Transport) ETAChainValid() bool {
	t.SortDestinations()
	gap := false
	for _, d := range t.Destinations {
		if d.ETA == nil {
			gap = true
			continue
		}
		if gap {
			return false
		}
	}
	return true
}

// ClearETAs drops every ETA on the transport.
func (t *Transport) ClearETAs() {
	for i := range t.Destinations {
		t.Destinations[i].ETA = nil
	}
}

// DetachFromDriver resets dispatch to PLANNED and clears ETAs.
func (t *Transport) DetachFromDriver() {
	t.Lifecycle = t.Lifecycle.Detach()
	t.ClearETAs()
}

// DatePlan is a fresh set of dates for reactivation or replanning.
type DatePlan struct {
	Destinations  []DestinationDate `json:"destinations"`
	DepartureDate *Date             `json:"departure_date"`
	ReturnDate    *Date             `json:"return_date"`
}

// DestinationDate re-dates one destination by order.
type DestinationDate struct {
	Order int     `json:"order"`
	Date  Date    `json:"date"`
	Time  *string `json:"time"`
}

// ApplyPlan re-dates destinations and the window, validating the result. On
// error t is left unchanged.
func (t *Transport) ApplyPlan(plan DatePlan) error {
	next := t.Clone()
	for _, dd := range plan.Destinations {
		idx := next.destinationIndex(dd.Order)
		if idx < 0 {
			return errors.NotFound(errors.CodeDestinationMissing, "destination %d not found", dd.Order)
		}
		next.Destinations[idx].Date = dd.Date
		next.Destinations[idx].Time = cloneString(dd.Time)
	}
	next.DepartureDate = cloneDate(plan.DepartureDate)
	next.ReturnDate = cloneDate(plan.ReturnDate)
	if err := next.ValidateDestinations(); err != nil {
		return err
	}
	*t = *next
	return nil
}

// Clone returns a deep copy.
func (t *Transport) Clone() *Transport {
	if t == nil {
		return nil
	}
	cp := *t
	cp.ContainerRef = cloneString(t.ContainerRef)
	cp.DepartureDate = cloneDate(t.DepartureDate)
	cp.ReturnDate = cloneDate(t.ReturnDate)
	cp.TrailerID = cloneInt64(t.TrailerID)
	cp.Lifecycle.cut = t.Lifecycle.cut.clone()
	if t.Destinations != nil {
		cp.Destinations = make([]Destination, len(t.Destinations))
		for i, d := range t.Destinations {
			d.Time = cloneString(d.Time)
			if d.ETA != nil {
				eta := *d.ETA
				d.ETA = &eta
			}
			cp.Destinations[i] = d
		}
	}
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneDate(d *Date) *Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneInt64(i *int64) *int64 {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// SameID compares optional ids.
func SameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
