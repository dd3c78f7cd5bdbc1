package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is a registered account. Passwords are stored as bcrypt hashes.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"type:uuid,pk"`
	Username     string    `bun:",unique,notnull"`
	Email        string    `bun:",unique,notnull"`
	PasswordHash string    `bun:",notnull"`
	IsActive     bool      `bun:",notnull,default:true"`

	CreatedAt time.Time `bun:",notnull"`
}
