package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const timestampPrefix = "Timestamp:"

var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrSignerMismatch     = errors.New("signature does not match the provided address")
	ErrUnexpectedMessage  = errors.New("unexpected login message")
	ErrStaleMessage       = errors.New("login message expired")
)

// RecoverSigner returns the address that produced an EIP-191 personal_sign
// signature over message. Wallets encode v as 27/28, go-ethereum expects 0/1.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrMalformedSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s", ErrMalformedSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyLogin checks a wallet login. The message must start with
// expectedPrefix. If it carries a "Timestamp: <unix seconds>" line that
// timestamp must be within maxSkew of now.
func VerifyLogin(address, message, signature, expectedPrefix string, maxSkew time.Duration, now time.Time) error {
	if expectedPrefix != "" && !strings.HasPrefix(message, expectedPrefix) {
		return ErrUnexpectedMessage
	}
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, timestampPrefix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, timestampPrefix)), 10, 64)
		if err != nil {
			return ErrUnexpectedMessage
		}
		skew := now.Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if maxSkew > 0 && skew > maxSkew {
			return ErrStaleMessage
		}
	}

	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(signer.Hex(), address) {
		return ErrSignerMismatch
	}
	return nil
}
