package handler

import (
	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/service"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	DeliveryStatus string `json:"deliveryStatus"`
	OrderCount     int    `json:"orderCount"`
}

func toUserDTO(u *domain.UserRecord) UserDTO {
	return UserDTO{
		Username:       u.Username,
		Email:          u.Email,
		DeliveryStatus: u.DeliveryStatus,
		OrderCount:     u.OrderCount(),
	}
}

// OrderDTO is the JSON representation of an order. Index is the position
// used to delete it.
type OrderDTO struct {
	Index          int    `json:"index"`
	PickupLocation string `json:"pickupLocation"`
	DropLocation   string `json:"dropLocation"`
}

func toOrderDTOs(list service.OrderList) []OrderDTO {
	dtos := make([]OrderDTO, 0, list.Len())
	for i, o := range list.All() {
		dtos = append(dtos, OrderDTO{Index: i, PickupLocation: o.Pickup, DropLocation: o.Drop})
	}
	return dtos
}
