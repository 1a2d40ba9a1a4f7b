package models

import "time"

type Client struct {
	ClientID  int64     `json:"id"`
	FullName  string    `json:"fullName"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
)

const (
	RoleClient = "client"
	RoleStaff  = "staff"
	RoleAdmin  = "admin"
)
