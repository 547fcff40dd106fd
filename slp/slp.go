// Package slp parses Simple Ledger Protocol (token type 1) OP_RETURN
// messages out of transaction output scripts.
//
// The parser is deliberately strict: every rule of the SLP consensus spec
// about push opcodes, field counts and field sizes is enforced, because a
// script that fails any of them makes the whole transaction token-invalid
// rather than merely unparseable.
package slp

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/simpleledger/slpdag/errors"
)

// LokadID prefixes every SLP OP_RETURN payload.
var LokadID = []byte{0x00, 0x53, 0x4c, 0x50} // "\x00SLP"

// TokenType1 is the only token version this package understands.
const TokenType1 = 1

// TxType is the declared SLP transaction type.
type TxType string

const (
	TxTypeGenesis TxType = "GENESIS"
	TxTypeMint    TxType = "MINT"
	TxTypeSend    TxType = "SEND"
)

// Message is a fully parsed SLP OP_RETURN payload.
type Message struct {
	TokenType int
	Type      TxType

	// TokenID identifies the token for MINT and SEND. For GENESIS the token
	// id is the genesis txid itself and this field is unset.
	TokenID *chainhash.Hash

	// GENESIS metadata.
	Ticker       string
	Name         string
	DocumentURL  string
	DocumentHash []byte
	Decimals     int

	// MintBatonVout is the output index carrying the minting baton for
	// GENESIS and MINT, or 0 when no baton was issued. A real baton is
	// always at vout >= 2.
	MintBatonVout int

	// Quantity is the initial quantity for GENESIS and the additional
	// quantity for MINT, in base units.
	Quantity uint64

	// Amounts are the per-output token quantities for SEND, aligned with
	// outputs 1..len(Amounts).
	Amounts []uint64
}

// ParseSlpOutputScript parses script as an SLP token-type-1 OP_RETURN
// message. It returns ErrSlpNotSlp-coded errors when the script is not an
// SLP payload at all, ErrSlpUnsupportedType when the payload declares a
// token version this package does not understand, and ErrTxInvalid-coded
// errors for everything that is SLP but breaks a consensus rule.
func ParseSlpOutputScript(script *bscript.Script) (*Message, error) {
	if script == nil || len(*script) == 0 {
		return nil, errors.NewSlpNotSlpError("empty script")
	}

	sc := []byte(*script)
	if sc[0] != bscript.OpRETURN {
		return nil, errors.NewSlpNotSlpError("no OP_RETURN")
	}

	chunks, err := parsePushChunks(sc[1:])
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return nil, errors.NewSlpNotSlpError("empty OP_RETURN")
	}

	if !bytes.Equal(chunks[0], LokadID) {
		return nil, errors.NewSlpNotSlpError("lokad id mismatch")
	}

	if len(chunks) < 2 {
		return nil, errors.NewTxInvalidError("missing token_type")
	}

	tokenType, err := parseTokenType(chunks[1])
	if err != nil {
		return nil, err
	}

	if len(chunks) < 3 {
		return nil, errors.NewTxInvalidError("missing SLP command")
	}

	msg := &Message{TokenType: tokenType}

	switch string(chunks[2]) {
	case string(TxTypeGenesis):
		msg.Type = TxTypeGenesis
		err = parseGenesis(msg, chunks)
	case string(TxTypeMint):
		msg.Type = TxTypeMint
		err = parseMint(msg, chunks)
	case string(TxTypeSend):
		msg.Type = TxTypeSend
		err = parseSend(msg, chunks)
	default:
		return nil, errors.NewTxInvalidError("bad transaction type")
	}

	if err != nil {
		return nil, err
	}

	return msg, nil
}

// parsePushChunks splits the post-OP_RETURN script bytes into push payloads.
// SLP only permits plain pushes: OP_0, OP_1NEGATE..OP_16 and any non-push
// opcode invalidate the message.
func parsePushChunks(sc []byte) ([][]byte, error) {
	var chunks [][]byte

	for i := 0; i < len(sc); {
		op := sc[i]
		i++

		var size int

		switch {
		case op == 0x00:
			return nil, errors.NewTxInvalidError("OP_0 not allowed")
		case op >= 0x01 && op <= 0x4b:
			size = int(op)
		case op == bscript.OpPUSHDATA1:
			if i >= len(sc) {
				return nil, errors.NewTxInvalidError("script error")
			}
			size = int(sc[i])
			i++
		case op == bscript.OpPUSHDATA2:
			if i+2 > len(sc) {
				return nil, errors.NewTxInvalidError("script error")
			}
			size = int(binary.LittleEndian.Uint16(sc[i : i+2]))
			i += 2
		case op == bscript.OpPUSHDATA4:
			if i+4 > len(sc) {
				return nil, errors.NewTxInvalidError("script error")
			}
			size = int(binary.LittleEndian.Uint32(sc[i : i+4]))
			i += 4
		case op >= 0x4f && op <= 0x60:
			return nil, errors.NewTxInvalidError("OP_1NEGATE to OP_16 not allowed")
		default:
			return nil, errors.NewTxInvalidError("non-push opcode")
		}

		if i+size > len(sc) {
			return nil, errors.NewTxInvalidError("script error")
		}

		chunks = append(chunks, sc[i:i+size])
		i += size
	}

	return chunks, nil
}

func parseTokenType(field []byte) (int, error) {
	if len(field) != 1 && len(field) != 2 {
		return 0, errors.NewTxInvalidError("token_type field has wrong length")
	}

	tokenType := 0
	for _, b := range field {
		tokenType = tokenType<<8 | int(b)
	}

	if tokenType != TokenType1 {
		return 0, errors.NewSlpUnsupportedTypeError("token type %d not supported", tokenType)
	}

	return tokenType, nil
}

func parseGenesis(msg *Message, chunks [][]byte) error {
	if len(chunks) != 10 {
		return errors.NewTxInvalidError("GENESIS with incorrect number of parameters")
	}

	msg.Ticker = string(chunks[3])
	msg.Name = string(chunks[4])
	msg.DocumentURL = string(chunks[5])

	docHash := chunks[6]
	if len(docHash) != 0 && len(docHash) != 32 {
		return errors.NewTxInvalidError("token document hash is incorrect length")
	}
	msg.DocumentHash = docHash

	decimals := chunks[7]
	if len(decimals) != 1 {
		return errors.NewTxInvalidError("decimals field has wrong length")
	}
	if decimals[0] > 9 {
		return errors.NewTxInvalidError("too many decimals")
	}
	msg.Decimals = int(decimals[0])

	batonVout, err := parseBatonVout(chunks[8])
	if err != nil {
		return err
	}
	msg.MintBatonVout = batonVout

	qty, err := parseQuantity(chunks[9])
	if err != nil {
		return err
	}
	msg.Quantity = qty

	return nil
}

func parseMint(msg *Message, chunks [][]byte) error {
	if len(chunks) != 6 {
		return errors.NewTxInvalidError("MINT with incorrect number of parameters")
	}

	tokenID, err := parseTokenID(chunks[3])
	if err != nil {
		return err
	}
	msg.TokenID = tokenID

	batonVout, err := parseBatonVout(chunks[4])
	if err != nil {
		return err
	}
	msg.MintBatonVout = batonVout

	qty, err := parseQuantity(chunks[5])
	if err != nil {
		return err
	}
	msg.Quantity = qty

	return nil
}

func parseSend(msg *Message, chunks [][]byte) error {
	if len(chunks) < 5 {
		return errors.NewTxInvalidError("SEND with too few parameters")
	}

	tokenID, err := parseTokenID(chunks[3])
	if err != nil {
		return err
	}
	msg.TokenID = tokenID

	amounts := chunks[4:]
	if len(amounts) > 19 {
		return errors.NewTxInvalidError("more than 19 output amounts")
	}

	msg.Amounts = make([]uint64, 0, len(amounts))

	for _, field := range amounts {
		qty, err := parseQuantity(field)
		if err != nil {
			return err
		}

		msg.Amounts = append(msg.Amounts, qty)
	}

	return nil
}

func parseTokenID(field []byte) (*chainhash.Hash, error) {
	if len(field) != 32 {
		return nil, errors.NewTxInvalidError("token_id is wrong length")
	}

	// The script stores the token id in txid display order.
	hash, err := chainhash.NewHashFromStr(hex.EncodeToString(field))
	if err != nil {
		return nil, errors.NewTxInvalidError("token_id is unparseable", err)
	}

	return hash, nil
}

func parseBatonVout(field []byte) (int, error) {
	switch len(field) {
	case 0:
		return 0, nil
	case 1:
		if field[0] < 2 {
			return 0, errors.NewTxInvalidError("mint baton cannot be on vout=0 or 1")
		}

		return int(field[0]), nil
	default:
		return 0, errors.NewTxInvalidError("mint baton vout field has wrong length")
	}
}

func parseQuantity(field []byte) (uint64, error) {
	if len(field) != 8 {
		return 0, errors.NewTxInvalidError("token amount field has wrong length")
	}

	return binary.BigEndian.Uint64(field), nil
}
