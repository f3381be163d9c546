package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/invoiceflow/invoiceflow/lib/security"
	"github.com/invoiceflow/invoiceflow/lib/tokens"
	"github.com/uptrace/bun"
)

type AuthRequest struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	Signature string `json:"signature" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

type UpdateUserRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=100"`
	Email       *string `json:"email" validate:"omitempty,email,max=320"`
	Role        *string `json:"role" validate:"omitempty,oneof=seller payer investor arbitrator"`
	DesciOptIn  *bool   `json:"desciOptIn"`
}

// GenerateToken verifies a signed login message and issues an access token
// for the wallet, creating the user on first login.
func (svc *InvoiceFlowService) GenerateToken(ctx context.Context, req *AuthRequest) (accessToken string, user *models.User, err error) {
	err = security.VerifyLogin(req.Address, req.Message, req.Signature,
		svc.Config.AuthMessage, time.Duration(svc.Config.AuthMaxSkew)*time.Second, svc.now())
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", err.Error(), ErrBadSignature)
	}

	user, err = svc.upsertUser(ctx, normalize(req.Address))
	if err != nil {
		return "", nil, err
	}

	accessToken, err = tokens.GenerateAccessToken(svc.Config.JWTSecret, svc.Config.JWTExpiry, user.WalletAddress)
	if err != nil {
		return "", nil, err
	}
	return accessToken, user, nil
}

func (svc *InvoiceFlowService) upsertUser(ctx context.Context, wallet string) (*models.User, error) {
	user := &models.User{
		WalletAddress: wallet,
		CreatedAt:     svc.now(),
		UpdatedAt:     bun.NullTime{Time: svc.now()},
	}
	_, err := svc.DB.NewInsert().Model(user).
		On("CONFLICT (wallet_address) DO UPDATE").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return svc.FindUserByWallet(ctx, wallet)
}

func (svc *InvoiceFlowService) FindUserByWallet(ctx context.Context, wallet string) (*models.User, error) {
	user := new(models.User)
	err := svc.DB.NewSelect().Model(user).Where("wallet_address = ?", normalize(wallet)).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", wallet, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (svc *InvoiceFlowService) UpdateUser(ctx context.Context, wallet string, req *UpdateUserRequest) (*models.User, error) {
	user, err := svc.FindUserByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	columns := []string{"updated_at"}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
		columns = append(columns, "display_name")
	}
	if req.Email != nil {
		user.Email = *req.Email
		columns = append(columns, "email")
	}
	if req.Role != nil {
		user.Role = *req.Role
		columns = append(columns, "role")
	}
	if req.DesciOptIn != nil {
		user.DesciOptIn = *req.DesciOptIn
		columns = append(columns, "desci_opt_in")
	}
	_, err = svc.DB.NewUpdate().Model(user).Column(columns...).WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}
	return user, nil
}
