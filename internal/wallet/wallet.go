package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSignerMismatch   = errors.New("signature does not match address")
)

// Normalize returns the EIP-55 checksum form of a hex address.
func Normalize(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(address).Hex(), nil
}

// RecoverSigner returns the address that produced an EIP-191 personal_sign
// signature over message.
func RecoverSigner(message, signatureHex string) (common.Address, error) {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	// wallets send v as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that address signed message.
func VerifySignature(address, message, signatureHex string) error {
	if !common.IsHexAddress(address) {
		return ErrInvalidAddress
	}
	signer, err := RecoverSigner(message, signatureHex)
	if err != nil {
		return err
	}
	if signer != common.HexToAddress(address) {
		return ErrSignerMismatch
	}
	return nil
}
