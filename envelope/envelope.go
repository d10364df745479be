// Package envelope implements the typed batch transaction envelope:
// a 0x76-prefixed RLP payload bundling independent calls for atomic
// execution, with the fee currency designated per transaction.
//
// The wire layout follows the usual typed-envelope convention: the type
// byte, then the RLP list of unsigned fields, with the signature fields
// appended for the signed form. The signing digest is the keccak hash of
// the unsigned serialization.
package envelope

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/tempopay/checkout/types"
)

// TxType is the envelope's transaction type byte.
const TxType = 0x76

// Call is one sub-call of the batch. A nil To is a contract creation,
// which the checkout flows never emit but the decoder tolerates.
type Call struct {
	To    *common.Address `rlp:"nil"`
	Value *big.Int
	Data  []byte
}

// Envelope is the unsigned batch transaction.
type Envelope struct {
	ChainID              uint64
	Nonce                uint64
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	Gas                  uint64
	FeeToken             common.Address
	Calls                []Call
}

// Signature is a decomposed secp256k1 signature.
type Signature struct {
	YParity uint8
	R       *big.Int
	S       *big.Int
}

type signedPayload struct {
	ChainID              uint64
	Nonce                uint64
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	Gas                  uint64
	FeeToken             common.Address
	Calls                []Call
	YParity              uint8
	R                    *big.Int
	S                    *big.Int
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// normalized returns a copy with nil big integers replaced by zero so
// RLP encoding is total.
func (e *Envelope) normalized() *Envelope {
	n := &Envelope{
		ChainID:              e.ChainID,
		Nonce:                e.Nonce,
		MaxPriorityFeePerGas: orZero(e.MaxPriorityFeePerGas),
		MaxFeePerGas:         orZero(e.MaxFeePerGas),
		Gas:                  e.Gas,
		FeeToken:             e.FeeToken,
		Calls:                make([]Call, len(e.Calls)),
	}
	for i, c := range e.Calls {
		n.Calls[i] = Call{To: c.To, Value: orZero(c.Value), Data: c.Data}
	}
	return n
}

// SignPayload returns the 32-byte digest the payer signs.
func (e *Envelope) SignPayload() []byte {
	enc, err := rlp.EncodeToBytes(e.normalized())
	if err != nil {
		// The field set is statically RLP-encodable; an error here is a
		// programming bug.
		panic(fmt.Sprintf("envelope: encode sign payload: %v", err))
	}
	return crypto.Keccak256([]byte{TxType}, enc)
}

// Serialize produces the 0x-hex signed transaction ready for raw
// broadcast.
func (e *Envelope) Serialize(sig *Signature) (string, error) {
	if sig == nil || sig.R == nil || sig.S == nil {
		return "", fmt.Errorf("envelope: missing signature")
	}

	n := e.normalized()
	enc, err := rlp.EncodeToBytes(&signedPayload{
		ChainID:              n.ChainID,
		Nonce:                n.Nonce,
		MaxPriorityFeePerGas: n.MaxPriorityFeePerGas,
		MaxFeePerGas:         n.MaxFeePerGas,
		Gas:                  n.Gas,
		FeeToken:             n.FeeToken,
		Calls:                n.Calls,
		YParity:              sig.YParity,
		R:                    sig.R,
		S:                    sig.S,
	})
	if err != nil {
		return "", fmt.Errorf("envelope: serialize: %w", err)
	}

	return hexutil.Encode(append([]byte{TxType}, enc...)), nil
}

// Decode parses a signed raw envelope back into its fields.
func Decode(rawHex string) (*Envelope, *Signature, error) {
	raw, err := hexutil.Decode(rawHex)
	if err != nil {
		return nil, nil, fmt.Errorf("envelope: invalid hex: %w", err)
	}
	if len(raw) < 2 || raw[0] != TxType {
		return nil, nil, fmt.Errorf("envelope: not a batch transaction")
	}

	var p signedPayload
	if err := rlp.DecodeBytes(raw[1:], &p); err != nil {
		return nil, nil, fmt.Errorf("envelope: decode: %w", err)
	}

	env := &Envelope{
		ChainID:              p.ChainID,
		Nonce:                p.Nonce,
		MaxPriorityFeePerGas: p.MaxPriorityFeePerGas,
		MaxFeePerGas:         p.MaxFeePerGas,
		Gas:                  p.Gas,
		FeeToken:             p.FeeToken,
		Calls:                p.Calls,
	}
	return env, &Signature{YParity: p.YParity, R: p.R, S: p.S}, nil
}

// DecodeCalls extracts the sub-call list of a raw batch envelope in the
// record form used by the scanning layer.
func DecodeCalls(rawHex string) ([]types.Call, error) {
	env, _, err := Decode(rawHex)
	if err != nil {
		return nil, err
	}

	calls := make([]types.Call, len(env.Calls))
	for i, c := range env.Calls {
		rc := types.Call{Data: hexutil.Encode(c.Data)}
		if c.To != nil {
			rc.To = c.To.Hex()
		}
		if c.Value != nil && c.Value.Sign() > 0 {
			rc.Value = hexutil.EncodeBig(c.Value)
		}
		calls[i] = rc
	}
	return calls, nil
}

// ParseSignature decomposes a 65-byte r‖s‖v signature, normalizing the
// recovery byte from the 27/28 convention to a y parity bit.
func ParseSignature(raw []byte) (*Signature, error) {
	if len(raw) != 65 {
		return nil, fmt.Errorf("envelope: invalid signature length: %d", len(raw))
	}

	v := raw[64]
	var yParity uint8
	if v == 27 || v == 0 {
		yParity = 0
	} else {
		yParity = 1
	}

	return &Signature{
		YParity: yParity,
		R:       new(big.Int).SetBytes(raw[:32]),
		S:       new(big.Int).SetBytes(raw[32:64]),
	}, nil
}
