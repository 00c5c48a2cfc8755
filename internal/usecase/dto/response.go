package dto

import "github.com/dispatch-board/internal/domain"

// MutationResponse - всё, что зафиксировала одна операция
type MutationResponse struct {
	Transports   []*domain.Transport `json:"transports"`
	Slots        []*domain.Slot      `json:"slots"`
	DeletedSlots []int64             `json:"deleted_slots"`
	// Changes - события операции с номерами последовательностей; реплика
	// применяет их как подтверждение своей мутации
	Changes []domain.ChangeEvent `json:"changes"`
}

// BoardDayResponse - доска на дату
type BoardDayResponse struct {
	*domain.BoardDay
}

// UnassignedResponse - пул неназначенных заданий даты
type UnassignedResponse struct {
	Date       domain.Date         `json:"date"`
	Transports []*domain.Transport `json:"transports"`
	Total      int                 `json:"total"`
}

// HealthResponse - состояние сервиса
type HealthResponse struct {
	Status    string            `json:"status"`
	Storage   string            `json:"storage"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}
