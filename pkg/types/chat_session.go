package types

type ChatSession struct {
	ID           string `json:"id" db:"id"`
	OwnerID      string `json:"owner_id" db:"owner_id"`
	Title        string `json:"title" db:"title"`
	Archived     bool   `json:"archived" db:"archived"`
	MessageCount int64  `json:"message_count" db:"message_count"`
	CreatedAt    int64  `json:"created_at" db:"created_at"`
	UpdatedAt    int64  `json:"updated_at" db:"updated_at"`
}
