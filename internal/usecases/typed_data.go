package usecases

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
)

const eip712DomainType = "EIP712Domain"

// toAPITypedData converts a payload into the go-ethereum representation.
// The EIP712Domain type is always rebuilt from the domain fields present,
// whatever the caller supplied.
func toAPITypedData(td entities.TypedData) (apitypes.TypedData, error) {
	if td.PrimaryType == "" || td.PrimaryType == eip712DomainType {
		return apitypes.TypedData{}, fmt.Errorf("%w: primary type %q", domainerrors.ErrInvalidInput, td.PrimaryType)
	}

	types := make(apitypes.Types, len(td.Types)+1)
	for name, fields := range td.Types {
		if name == eip712DomainType {
			continue
		}
		converted := make([]apitypes.Type, 0, len(fields))
		for _, f := range fields {
			converted = append(converted, apitypes.Type{Name: f.Name, Type: f.Type})
		}
		types[name] = converted
	}
	if _, ok := types[td.PrimaryType]; !ok {
		return apitypes.TypedData{}, fmt.Errorf("%w: primary type %q not declared", domainerrors.ErrInvalidInput, td.PrimaryType)
	}

	domain := apitypes.TypedDataDomain{
		Name:              td.Domain.Name,
		Version:           td.Domain.Version,
		VerifyingContract: td.Domain.VerifyingContract,
		Salt:              td.Domain.Salt,
	}
	var domainFields []apitypes.Type
	if td.Domain.Name != "" {
		domainFields = append(domainFields, apitypes.Type{Name: "name", Type: "string"})
	}
	if td.Domain.Version != "" {
		domainFields = append(domainFields, apitypes.Type{Name: "version", Type: "string"})
	}
	if td.Domain.ChainID != 0 {
		domain.ChainId = math.NewHexOrDecimal256(td.Domain.ChainID)
		domainFields = append(domainFields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if td.Domain.VerifyingContract != "" {
		domainFields = append(domainFields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if td.Domain.Salt != "" {
		domainFields = append(domainFields, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	types[eip712DomainType] = domainFields

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: td.PrimaryType,
		Domain:      domain,
		Message:     apitypes.TypedDataMessage(td.Message),
	}, nil
}

// HashTypedData returns the EIP-712 digest of td
func HashTypedData(td entities.TypedData) ([]byte, error) {
	typed, err := toAPITypedData(td)
	if err != nil {
		return nil, err
	}
	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInvalidInput, err)
	}
	return hash, nil
}

// signTypedData produces a 65 byte r||s||v signature with v in {27, 28}
func signTypedData(key *ecdsa.PrivateKey, td entities.TypedData) ([]byte, error) {
	hash, err := HashTypedData(td)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

func signedPayload(req entities.SigningRequest, sig []byte) entities.SignedPayload {
	return entities.SignedPayload{
		Kind:      req.Kind,
		Type:      req.Type,
		TypedData: req.TypedData,
		Signature: hexutil.Encode(sig),
		V:         sig[64],
		R:         hexutil.Encode(sig[:32]),
		S:         hexutil.Encode(sig[32:64]),
	}
}
