package security

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personalSign(t *testing.T, message string) (address, signature string) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	// wallets return v as 27/28
	sig[crypto.RecoveryIDOffset] += 27
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), hexutil.Encode(sig)
}

func TestRecoverSigner(t *testing.T) {
	address, signature := personalSign(t, "Sign in to InvoiceFlow")
	signer, err := RecoverSigner("Sign in to InvoiceFlow", signature)
	require.NoError(t, err)
	assert.Equal(t, address, signer.Hex())

	_, err = RecoverSigner("Sign in to InvoiceFlow", "0x1234")
	assert.ErrorIs(t, err, ErrMalformedSignature)
}

func TestVerifyLogin(t *testing.T) {
	now := time.Unix(1700000000, 0)
	message := "Sign in to InvoiceFlow\nTimestamp: 1700000000"
	address, signature := personalSign(t, message)

	assert.NoError(t, VerifyLogin(address, message, signature, "Sign in to InvoiceFlow", 5*time.Minute, now))
	// addresses compare case-insensitively
	assert.NoError(t, VerifyLogin(hexutil.Encode(hexutil.MustDecode(address)), message, signature, "Sign in to InvoiceFlow", 5*time.Minute, now))

	err := VerifyLogin("0x000000000000000000000000000000000000dEaD", message, signature, "Sign in to InvoiceFlow", 5*time.Minute, now)
	assert.ErrorIs(t, err, ErrSignerMismatch)

	err = VerifyLogin(address, message, signature, "Welcome", 5*time.Minute, now)
	assert.ErrorIs(t, err, ErrUnexpectedMessage)

	err = VerifyLogin(address, message, signature, "Sign in to InvoiceFlow", 5*time.Minute, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrStaleMessage)
}
