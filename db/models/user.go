package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// User : wallet-authenticated account
type User struct {
	ID            int64        `json:"id" bun:",pk,autoincrement"`
	WalletAddress string       `json:"wallet_address" bun:",unique,notnull"`
	DisplayName   string       `json:"display_name,omitempty" bun:",nullzero"`
	Email         string       `json:"email,omitempty" bun:",nullzero"`
	Role          string       `json:"role,omitempty" bun:",nullzero"`
	DesciOptIn    bool         `json:"desci_opt_in" bun:",notnull,default:false"`
	CreatedAt     time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt     bun.NullTime `json:"updated_at"`
}

func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		u.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*User)(nil)
