package errors

import "net/http"

var (
	ErrDatabaseError = New(
		"DATABASE_ERROR",
		"Database operation failed",
		http.StatusInternalServerError,
	)

	ErrCacheError = New(
		"CACHE_ERROR",
		"Cache operation failed",
		http.StatusInternalServerError,
	)

	ErrInvalidRequest = New(
		"INVALID_REQUEST",
		"Invalid request parameters",
		http.StatusBadRequest,
	)

	ErrInvalidDate = New(
		"INVALID_DATE",
		"Invalid date, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)

	ErrInternalServer = New(
		"INTERNAL_SERVER_ERROR",
		"Internal server error",
		http.StatusInternalServerError,
	)

	ErrConcurrentModification = New(
		"CONCURRENT_MODIFICATION",
		"Entity was modified concurrently, reload and retry",
		http.StatusConflict,
	)
)

// Rule codes. Every rejection names exactly one of these.
const (
	CodeTransportNotFound  = "TRANSPORT_NOT_FOUND"
	CodeSlotNotFound       = "SLOT_NOT_FOUND"
	CodeDriverNotFound     = "DRIVER_NOT_FOUND"
	CodeTruckNotFound      = "TRUCK_NOT_FOUND"
	CodeTrailerNotFound    = "TRAILER_NOT_FOUND"
	CodeAssignmentNotFound = "ASSIGNMENT_NOT_FOUND"
	CodeDestinationMissing = "DESTINATION_NOT_FOUND"

	CodeDriverBusy          = "DRIVER_ALREADY_ASSIGNED"
	CodeTruckBusy           = "TRUCK_ALREADY_ASSIGNED"
	CodeTrailerInUse        = "TRAILER_IN_USE"
	CodeTrailerBlockedByCut = "TRAILER_BLOCKED_BY_CUT"

	CodeDriverNotADR      = "DRIVER_NOT_ADR_CERTIFIED"
	CodeGensetUnavailable = "GENSET_UNAVAILABLE"

	CodeDetachRequired  = "DISPATCHED_DETACH_REQUIRED"
	CodeOngoingDispatch = "ONGOING_DISPATCH"

	CodeTransportOnHold     = "TRANSPORT_ON_HOLD"
	CodeTransportCut        = "TRANSPORT_CUT"
	CodeTransportDeleted    = "TRANSPORT_DELETED"
	CodeTransportNotOnHold  = "TRANSPORT_NOT_ON_HOLD"
	CodeTransportNotCut     = "TRANSPORT_NOT_CUT"
	CodeIllegalTransition   = "ILLEGAL_STATUS_TRANSITION"
	CodeNotPlannedOnDate    = "NOT_PLANNED_ON_DATE"
	CodeSlotDateMismatch    = "SLOT_DATE_MISMATCH"
	CodeSlotNotEmpty        = "SLOT_NOT_EMPTY"
	CodeNotReadyForDispatch = "NOT_READY_FOR_DISPATCH"
	CodeETARequiresDispatch = "ETA_REQUIRES_DISPATCH"
	CodeCutTypeIncompatible = "CUT_TYPE_INCOMPATIBLE"
	CodeFuturePlannings     = "FUTURE_PLANNINGS_EXIST"
	CodePlannedDatesInUse   = "PLANNED_DATES_IN_USE"
	CodeResourceInUse       = "RESOURCE_IN_USE"

	CodeDestinationOrder = "DESTINATION_DATES_OUT_OF_ORDER"
	CodeETAChain         = "ETA_PREDECESSOR_MISSING"
	CodeETASuccessorSet  = "ETA_SUCCESSOR_SET"
	CodePlanWindowOrder  = "RETURN_BEFORE_DEPARTURE"
	CodeRestoreBeforeCut = "RESTORE_BEFORE_CUT"

	CodeInvalidInput     = "INVALID_INPUT"
	CodeIndexOutOfRange  = "INDEX_OUT_OF_RANGE"
	CodeInvalidDirection = "INVALID_DIRECTION"
	CodeLocationRequired = "CUT_LOCATION_REQUIRED"
)
