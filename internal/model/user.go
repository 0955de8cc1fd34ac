package model

import "time"

// RoleAdmin is the only role allowed into the back office.
const RoleAdmin = "ADMIN"

// User is a back-office account (restaurant staff).  Guests never log in;
// they book anonymously with their contact details.
type User struct {
    ID           uint64
    Email        string // unique, stored lower-case
    PasswordHash string // bcrypt
    Role         string
    IsActive     bool // inactive accounts cannot log in or refresh
    CreatedAt    time.Time
    UpdatedAt    time.Time
}

// RefreshToken is a stored refresh token.  Only the SHA-256 of the raw
// token handed to the client is kept.
type RefreshToken struct {
    ID        uint64
    UserID    uint64
    TokenHash string
    ExpiresAt time.Time
    RevokedAt *time.Time
    CreatedAt time.Time
}
