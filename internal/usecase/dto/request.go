package dto

import (
	"time"

	"github.com/dispatch-board/internal/domain"
)

// Ack - явные подтверждения, которые клиент присылает при повторе запроса
type Ack struct {
	DetachDispatched bool `json:"detach_dispatched"`
	Compatibility    bool `json:"compatibility"`
	OngoingChange    bool `json:"ongoing_change"`
}

// AssignRequest - назначение задания в слот (slot_id = null снимает назначение)
type AssignRequest struct {
	SlotID *int64 `json:"slot_id"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Ack    Ack    `json:"ack"`
}

// MoveRequest - перестановка задания внутри слота
type MoveRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// ReorderSlotsRequest - перестановка слотов даты (индексы с нуля)
type ReorderSlotsRequest struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	OldIndex int    `json:"old_index" validate:"min=0"`
	NewIndex int    `json:"new_index" validate:"min=0"`
}

// BindRequest - привязка водителя, тягача или прицепа (null отвязывает)
type BindRequest struct {
	ResourceID *int64 `json:"resource_id" validate:"omitempty,min=1"`
	Ack        Ack    `json:"ack"`
}

// DestinationInput - пункт назначения нового задания
type DestinationInput struct {
	Order       int     `json:"order" validate:"min=0"`
	LocationRef string  `json:"location_ref" validate:"required,max=255"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time        *string `json:"time" validate:"omitempty,datetime=15:04"`
}

// CreateTransportRequest - создание задания
type CreateTransportRequest struct {
	Reference        string             `json:"reference" validate:"required,max=64"`
	Type             string             `json:"type" validate:"required,oneof=IMPORT EXPORT SHUNT"`
	ContainerRef     *string            `json:"container_ref" validate:"omitempty,max=32"`
	ContainerSubtype string             `json:"container_subtype" validate:"max=16"`
	NeedsTrailer     bool               `json:"needs_trailer"`
	ADR              bool               `json:"adr"`
	Destinations     []DestinationInput `json:"destinations" validate:"required,min=1,max=20,dive"`
	DepartureDate    *string            `json:"departure_date" validate:"omitempty,datetime=2006-01-02"`
	ReturnDate       *string            `json:"return_date" validate:"omitempty,datetime=2006-01-02"`
	TrailerID        *int64             `json:"trailer_id" validate:"omitempty,min=1"`
	Notes            string             `json:"notes" validate:"max=4000"`
}

// ToDomain builds the transport; fields are already validated.
func (r CreateTransportRequest) ToDomain() *domain.Transport {
	t := &domain.Transport{
		Reference:        r.Reference,
		Type:             domain.TransportType(r.Type),
		ContainerRef:     r.ContainerRef,
		ContainerSubtype: r.ContainerSubtype,
		NeedsTrailer:     r.NeedsTrailer,
		ADR:              r.ADR,
		DepartureDate:    optionalDate(r.DepartureDate),
		ReturnDate:       optionalDate(r.ReturnDate),
		TrailerID:        r.TrailerID,
		Notes:            r.Notes,
	}
	for _, d := range r.Destinations {
		t.Destinations = append(t.Destinations, domain.Destination{
			Order:       d.Order,
			LocationRef: d.LocationRef,
			Date:        domain.Date(d.Date),
			Time:        d.Time,
		})
	}
	return t
}

// DestinationDateInput - новая дата пункта назначения
type DestinationDateInput struct {
	Order int     `json:"order" validate:"min=0"`
	Date  string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time  *string `json:"time" validate:"omitempty,datetime=15:04"`
}

// DatePlanRequest - новый план дат (реактивация, перепланирование)
type DatePlanRequest struct {
	Destinations  []DestinationDateInput `json:"destinations" validate:"dive"`
	DepartureDate *string                `json:"departure_date" validate:"omitempty,datetime=2006-01-02"`
	ReturnDate    *string                `json:"return_date" validate:"omitempty,datetime=2006-01-02"`
}

func (r DatePlanRequest) ToDomain() domain.DatePlan {
	plan := domain.DatePlan{
		DepartureDate: optionalDate(r.DepartureDate),
		ReturnDate:    optionalDate(r.ReturnDate),
	}
	for _, d := range r.Destinations {
		plan.Destinations = append(plan.Destinations, domain.DestinationDate{
			Order: d.Order,
			Date:  domain.Date(d.Date),
			Time:  d.Time,
		})
	}
	return plan
}

// SetETARequest - ETA пункта назначения (null сбрасывает)
type SetETARequest struct {
	Order int        `json:"order" validate:"min=0"`
	ETA   *time.Time `json:"eta"`
}

// UpdateNotesRequest - заметки к заданию или к слоту
type UpdateNotesRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

// AckRequest - тело запросов, которым нужны только подтверждения
type AckRequest struct {
	Ack Ack `json:"ack"`
}

// CutRequest - отцепка прицепа и/или контейнера
type CutRequest struct {
	Type         string `json:"type" validate:"required,oneof=TRAILER CONTAINER BOTH"`
	CutDate      string `json:"cut_date" validate:"required,datetime=2006-01-02"`
	LocationID   *int64 `json:"location_id" validate:"omitempty,min=1"`
	LocationText string `json:"location_text" validate:"max=255"`
	Notes        string `json:"notes" validate:"max=4000"`
	Ack          Ack    `json:"ack"`
}

// RestoreRequest - восстановление после отцепки
type RestoreRequest struct {
	EndDate string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// CreateSlotRequest - новый слот на дату
type CreateSlotRequest struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	DriverStartNote string `json:"driver_start_note" validate:"max=1000"`
}

// DeleteSlotRequest - удаление слота; force выселяет задания в пул
type DeleteSlotRequest struct {
	Force bool `json:"force"`
	Ack   Ack  `json:"ack"`
}

// DriverRequest - создание / изменение водителя
type DriverRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	ADR  bool   `json:"adr"`
}

// VehicleRequest - создание / изменение тягача или прицепа
type VehicleRequest struct {
	Name   string `json:"name" validate:"required,max=255"`
	Plate  string `json:"plate" validate:"max=32"`
	Genset bool   `json:"genset"`
}

func optionalDate(s *string) *domain.Date {
	if s == nil {
		return nil
	}
	d := domain.Date(*s)
	return &d
}
