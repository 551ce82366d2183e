package models

import "time"

// Comment представляет комментарий к заявке. На переговоры не влияет.
type Comment struct {
	ID        string    `json:"id"`
	RequestID string    `json:"-"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Provider представляет исполнителя в справочнике.
type Provider struct {
	ID           string    `json:"id"`
	OwnerActorID string    `json:"ownerActorId"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
}
