package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/lib/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedLogin(t *testing.T, message string) *AuthRequest {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return &AuthRequest{
		Address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Signature: hexutil.Encode(sig),
		Message:   message,
	}
}

func TestGenerateToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	req := signedLogin(t, fmt.Sprintf("Sign in to InvoiceFlow\nTimestamp: %d", testNow.Unix()))

	token, user, err := svc.GenerateToken(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(req.Address), user.WalletAddress)

	wallet, err := tokens.ParseAccessToken(svc.Config.JWTSecret, token)
	require.NoError(t, err)
	assert.Equal(t, user.WalletAddress, wallet)

	// logging in again reuses the account
	_, again, err := svc.GenerateToken(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestGenerateTokenRejectsBadLogins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := signedLogin(t, "Sign in to InvoiceFlow")
	req.Address = sellerAddress.Hex()
	_, _, err := svc.GenerateToken(ctx, req)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, _, err = svc.GenerateToken(ctx, signedLogin(t, "Hello"))
	assert.ErrorIs(t, err, ErrBadSignature)

	stale := signedLogin(t, fmt.Sprintf("Sign in to InvoiceFlow\nTimestamp: %d", testNow.Unix()-3600))
	_, _, err = svc.GenerateToken(ctx, stale)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestUpdateUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, user, err := svc.GenerateToken(ctx, signedLogin(t, "Sign in to InvoiceFlow"))
	require.NoError(t, err)

	name := "Ada"
	role := common.UserRoleInvestor
	optIn := true
	updated, err := svc.UpdateUser(ctx, user.WalletAddress, &UpdateUserRequest{DisplayName: &name, Role: &role, DesciOptIn: &optIn})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.DisplayName)

	stored, err := svc.FindUserByWallet(ctx, strings.ToUpper(user.WalletAddress[2:]))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, stored)

	stored, err = svc.FindUserByWallet(ctx, user.WalletAddress)
	require.NoError(t, err)
	assert.Equal(t, common.UserRoleInvestor, stored.Role)
	assert.True(t, stored.DesciOptIn)
	assert.Empty(t, stored.Email)

	_, err = svc.UpdateUser(ctx, seller, &UpdateUserRequest{DisplayName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}
