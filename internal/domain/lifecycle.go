package domain

import (
	"encoding/json"
	"fmt"

	"github.com/dispatch-board/internal/pkg/errors"
)

// LifecycleState is the tag of the Lifecycle variant.
type LifecycleState string

const (
	StateActive  LifecycleState = "active"
	StateOnHold  LifecycleState = "on_hold"
	StateCut     LifecycleState = "cut"
	StateDeleted LifecycleState = "deleted"
)

// Status is the coarse scheduling availability.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusOnHold Status = "ON_HOLD"
)

// CurrentStatus is the dispatch lifecycle of an active transport.
type CurrentStatus string

const (
	CurrentPlanned   CurrentStatus = "PLANNED"
	CurrentOngoing   CurrentStatus = "ONGOING"
	CurrentCompleted CurrentStatus = "COMPLETED"
)

func (s CurrentStatus) Valid() bool {
	return s == CurrentPlanned || s == CurrentOngoing || s == CurrentCompleted
}

// DispatchState exists only inside an Active lifecycle.
type DispatchState struct {
	Status       CurrentStatus `json:"status"`
	SentToDriver bool          `json:"sent_to_driver"`
}

// Dispatched reports whether the transport is attached to a driver
// (ONGOING or COMPLETED).
func (d DispatchState) Dispatched() bool {
	return d.Status == CurrentOngoing || d.Status == CurrentCompleted
}

// CutType says which piece of cargo equipment was dropped.
type CutType string

const (
	CutTrailer   CutType = "TRAILER"
	CutContainer CutType = "CONTAINER"
	CutBoth      CutType = "BOTH"
)

func (c CutType) Valid() bool {
	return c == CutTrailer || c == CutContainer || c == CutBoth
}

// BlocksTrailer reports whether an unresolved cut of this type keeps the
// trailer out of circulation.
func (c CutType) BlocksTrailer() bool {
	return c == CutTrailer || c == CutBoth
}

// CutInfo describes a suspension. EndDate is set on restore.
type CutInfo struct {
	Type         CutType `json:"type"`
	CutDate      Date    `json:"cut_date"`
	EndDate      *Date   `json:"end_date"`
	LocationID   *int64  `json:"location_id"`
	LocationText string  `json:"location_text"`
	Notes        string  `json:"notes"`
}

func (c *CutInfo) clone() *CutInfo {
	if c == nil {
		return nil
	}
	cp := *c
	if c.EndDate != nil {
		d := *c.EndDate
		cp.EndDate = &d
	}
	if c.LocationID != nil {
		id := *c.LocationID
		cp.LocationID = &id
	}
	return &cp
}

// Lifecycle is a tagged variant:
//
//	Active{dispatch, restoredFrom}  OnHold  Cut{info}  Deleted{lastCut}
//
// Fields are unexported so that combinations such as "cut and ongoing" cannot
// be built; transitions go through the methods below.
type Lifecycle struct {
	state    LifecycleState
	dispatch DispatchState
	cut      *CutInfo
}

// NewLifecycle is the state of a freshly created transport: ACTIVE / PLANNED.
func NewLifecycle() Lifecycle {
	return Lifecycle{state: StateActive, dispatch: DispatchState{Status: CurrentPlanned}}
}

// RestoreLifecycle rebuilds a lifecycle from stored parts and rejects
// combinations the variant cannot hold.
func RestoreLifecycle(state LifecycleState, dispatch DispatchState, cut *CutInfo) (Lifecycle, error) {
	switch state {
	case StateActive:
		if !dispatch.Status.Valid() {
			return Lifecycle{}, fmt.Errorf("invalid dispatch status %q", dispatch.Status)
		}
		if dispatch.SentToDriver && dispatch.Status == CurrentPlanned {
			return Lifecycle{}, fmt.Errorf("planned transport cannot be sent to driver")
		}
		if cut != nil && cut.EndDate == nil {
			return Lifecycle{}, fmt.Errorf("active transport carries an unresolved cut")
		}
		return Lifecycle{state: state, dispatch: dispatch, cut: cut.clone()}, nil
	case StateOnHold:
		return Lifecycle{state: state, dispatch: DispatchState{Status: CurrentPlanned}, cut: cut.clone()}, nil
	case StateCut:
		if cut == nil {
			return Lifecycle{}, fmt.Errorf("cut state without cut info")
		}
		if cut.EndDate != nil {
			return Lifecycle{}, fmt.Errorf("cut state with restore date")
		}
		return Lifecycle{state: state, dispatch: DispatchState{Status: CurrentPlanned}, cut: cut.clone()}, nil
	case StateDeleted:
		return Lifecycle{state: state, dispatch: DispatchState{Status: CurrentPlanned}, cut: cut.clone()}, nil
	default:
		return Lifecycle{}, fmt.Errorf("unknown lifecycle state %q", state)
	}
}

func (l Lifecycle) State() LifecycleState {
	if l.state == "" {
		return StateActive
	}
	return l.state
}

func (l Lifecycle) Status() Status {
	if l.State() == StateOnHold {
		return StatusOnHold
	}
	return StatusActive
}

func (l Lifecycle) CurrentStatus() CurrentStatus {
	if l.State() != StateActive || l.dispatch.Status == "" {
		return CurrentPlanned
	}
	return l.dispatch.Status
}

func (l Lifecycle) Dispatch() DispatchState {
	return DispatchState{Status: l.CurrentStatus(), SentToDriver: l.SentToDriver()}
}

func (l Lifecycle) SentToDriver() bool {
	return l.State() == StateActive && l.dispatch.SentToDriver
}

// IsCut stays true after restore/delete; the cut is part of the history.
func (l Lifecycle) IsCut() bool { return l.cut != nil }

func (l Lifecycle) IsRestored() bool {
	return l.cut != nil && l.cut.EndDate != nil && l.State() != StateCut
}

func (l Lifecycle) IsDeleted() bool { return l.State() == StateDeleted }

// IsSuspended is the unresolved cut: cut, not restored, not deleted.
func (l Lifecycle) IsSuspended() bool { return l.State() == StateCut }

// Schedulable reports whether the transport may hold slot assignments.
func (l Lifecycle) Schedulable() bool { return l.State() == StateActive }

// Cut returns a copy of the cut info, if any.
func (l Lifecycle) Cut() *CutInfo { return l.cut.clone() }

// BlocksTrailer reports whether this lifecycle keeps its trailer out of use
// irrespective of date.
func (l Lifecycle) BlocksTrailer() bool {
	return l.State() == StateCut && l.cut.Type.BlocksTrailer()
}

// RequireSchedulable maps non-active states onto their InvalidState errors.
func (l Lifecycle) RequireSchedulable() error {
	switch l.State() {
	case StateOnHold:
		return errors.InvalidState(errors.CodeTransportOnHold, "transport is on hold")
	case StateCut:
		return errors.InvalidState(errors.CodeTransportCut, "transport is cut and not restored")
	case StateDeleted:
		return errors.InvalidState(errors.CodeTransportDeleted, "transport is deleted")
	}
	return nil
}

func illegal(from, to string) error {
	return errors.InvalidState(errors.CodeIllegalTransition, "cannot move from %s to %s", from, to)
}

// SendToDriver: PLANNED -> ONGOING, sentToDriver set.
func (l Lifecycle) SendToDriver() (Lifecycle, error) {
	if err := l.RequireSchedulable(); err != nil {
		return l, err
	}
	if l.CurrentStatus() != CurrentPlanned {
		return l, illegal(string(l.CurrentStatus()), string(CurrentOngoing))
	}
	next := l
	next.dispatch = DispatchState{Status: CurrentOngoing, SentToDriver: true}
	return next, nil
}

// Complete: ONGOING -> COMPLETED.
func (l Lifecycle) Complete() (Lifecycle, error) {
	if err := l.RequireSchedulable(); err != nil {
		return l, err
	}
	if l.CurrentStatus() != CurrentOngoing {
		return l, illegal(string(l.CurrentStatus()), string(CurrentCompleted))
	}
	next := l
	next.dispatch.Status = CurrentCompleted
	return next, nil
}

// Reopen is the manual correction COMPLETED -> ONGOING.
func (l Lifecycle) Reopen() (Lifecycle, error) {
	if err := l.RequireSchedulable(); err != nil {
		return l, err
	}
	if l.CurrentStatus() != CurrentCompleted {
		return l, illegal(string(l.CurrentStatus()), string(CurrentOngoing))
	}
	next := l
	next.dispatch.Status = CurrentOngoing
	return next, nil
}

// Detach resets dispatch to PLANNED / not sent. No-op for other states.
func (l Lifecycle) Detach() Lifecycle {
	if l.State() != StateActive {
		return l
	}
	next := l
	next.dispatch = DispatchState{Status: CurrentPlanned}
	return next
}

// Hold: ACTIVE -> ON_HOLD. Dispatch is dropped.
func (l Lifecycle) Hold() (Lifecycle, error) {
	if l.State() == StateOnHold {
		return l, illegal(string(StatusOnHold), string(StatusOnHold))
	}
	if err := l.RequireSchedulable(); err != nil {
		return l, err
	}
	return Lifecycle{state: StateOnHold, dispatch: DispatchState{Status: CurrentPlanned}, cut: l.cut.clone()}, nil
}

// Reactivate: ON_HOLD -> ACTIVE / PLANNED.
func (l Lifecycle) Reactivate() (Lifecycle, error) {
	if l.State() != StateOnHold {
		return l, errors.InvalidState(errors.CodeTransportNotOnHold, "transport is not on hold")
	}
	return Lifecycle{state: StateActive, dispatch: DispatchState{Status: CurrentPlanned}, cut: l.cut.clone()}, nil
}

// CutOff: ACTIVE -> CUT.
func (l Lifecycle) CutOff(info CutInfo) (Lifecycle, error) {
	if err := l.RequireSchedulable(); err != nil {
		return l, err
	}
	if !info.Type.Valid() {
		return l, errors.InvalidInput(errors.CodeInvalidInput, "unknown cut type %q", info.Type)
	}
	if info.CutDate.IsZero() {
		return l, errors.InvalidInput(errors.CodeInvalidInput, "cut date is required")
	}
	info.EndDate = nil
	return Lifecycle{state: StateCut, dispatch: DispatchState{Status: CurrentPlanned}, cut: info.clone()}, nil
}

// Restore: CUT -> ACTIVE with the cut end date recorded.
func (l Lifecycle) Restore(end Date) (Lifecycle, error) {
	if l.State() != StateCut {
		return l, errors.InvalidState(errors.CodeTransportNotCut, "transport is not cut")
	}
	if end.IsZero() {
		return l, errors.InvalidInput(errors.CodeInvalidInput, "restore date is required")
	}
	if end.Before(l.cut.CutDate) {
		return l, errors.SequenceViolation(errors.CodeRestoreBeforeCut,
			"restore date %s is before cut date %s", end, l.cut.CutDate)
	}
	cut := l.cut.clone()
	cut.EndDate = &end
	return Lifecycle{state: StateActive, dispatch: DispatchState{Status: CurrentPlanned}, cut: cut}, nil
}

// Delete is allowed from every state but Deleted.
func (l Lifecycle) Delete() (Lifecycle, error) {
	if l.State() == StateDeleted {
		return l, errors.InvalidState(errors.CodeTransportDeleted, "transport is already deleted")
	}
	return Lifecycle{state: StateDeleted, dispatch: DispatchState{Status: CurrentPlanned}, cut: l.cut.clone()}, nil
}

type lifecycleJSON struct {
	State         LifecycleState `json:"state"`
	Status        Status         `json:"status"`
	CurrentStatus CurrentStatus  `json:"current_status"`
	SentToDriver  bool           `json:"sent_to_driver"`
	IsCut         bool           `json:"is_cut"`
	IsRestored    bool           `json:"is_restored"`
	IsDeleted     bool           `json:"is_deleted"`
	Cut           *CutInfo       `json:"cut"`
}

// MarshalJSON exposes the derived flags next to the variant tag.
func (l Lifecycle) MarshalJSON() ([]byte, error) {
	return json.Marshal(lifecycleJSON{
		State:         l.State(),
		Status:        l.Status(),
		CurrentStatus: l.CurrentStatus(),
		SentToDriver:  l.SentToDriver(),
		IsCut:         l.IsCut(),
		IsRestored:    l.IsRestored(),
		IsDeleted:     l.IsDeleted(),
		Cut:           l.cut,
	})
}

func (l *Lifecycle) UnmarshalJSON(data []byte) error {
	var raw lifecycleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.State == "" {
		raw.State = StateActive
	}
	if raw.CurrentStatus == "" {
		raw.CurrentStatus = CurrentPlanned
	}
	restored, err := RestoreLifecycle(raw.State,
		DispatchState{Status: raw.CurrentStatus, SentToDriver: raw.SentToDriver}, raw.Cut)
	if err != nil {
		return fmt.Errorf("decode lifecycle: %w", err)
	}
	*l = restored
	return nil
}
