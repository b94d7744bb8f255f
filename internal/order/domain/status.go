package domain

import "strings"

type Status string

const (
	StatusNew       Status = "NEW"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the allowed edge set. CANCELLED is reachable from every
// non-terminal state.
var transitions = map[Status][]Status{
	StatusNew:       {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted, StatusCancelled},
}

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case StatusNew, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from -> to is in the edge set.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// KitchenStatus tracks a single item on the kitchen display.
type KitchenStatus string

const (
	KitchenPending   KitchenStatus = "PENDING"
	KitchenPreparing KitchenStatus = "PREPARING"
	KitchenReady     KitchenStatus = "READY"
)

var kitchenRank = map[KitchenStatus]int{
	KitchenPending:   0,
	KitchenPreparing: 1,
	KitchenReady:     2,
}

func ParseKitchenStatus(raw string) (KitchenStatus, error) {
	status := KitchenStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := kitchenRank[status]; !ok {
		return "", ErrInvalidKitchenStatus
	}
	return status, nil
}

// CanAdvanceKitchen allows forward moves only. Skipping PREPARING is fine.
func CanAdvanceKitchen(from, to KitchenStatus) bool {
	fromRank, okFrom := kitchenRank[from]
	toRank, okTo := kitchenRank[to]
	return okFrom && okTo && toRank > fromRank
}

type OrderType string

const (
	OrderTypeDineIn   OrderType = "DINE_IN"
	OrderTypeTakeaway OrderType = "TAKEAWAY"
	OrderTypeDelivery OrderType = "DELIVERY"
)

func ParseOrderType(raw string) (OrderType, error) {
	t := OrderType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return t, nil
	default:
		return "", ErrInvalidOrderType
	}
}
