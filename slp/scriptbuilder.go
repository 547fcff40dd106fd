package slp

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/simpleledger/slpdag/errors"
)

// maxOpReturnPayload is the SLP limit on the OP_RETURN script size.
const maxOpReturnPayload = 223

// NewGenesisScript builds the OP_RETURN locking script for a GENESIS
// transaction. batonVout of 0 means no minting baton is issued; a real
// baton must sit at vout >= 2.
func NewGenesisScript(ticker, name, documentURL string, documentHash []byte, decimals, batonVout int, quantity uint64) (*bscript.Script, error) {
	if len(documentHash) != 0 && len(documentHash) != 32 {
		return nil, errors.NewInvalidArgumentError("document hash must be empty or 32 bytes")
	}

	if decimals < 0 || decimals > 9 {
		return nil, errors.NewInvalidArgumentError("decimals must be 0-9")
	}

	baton, err := batonVoutField(batonVout)
	if err != nil {
		return nil, err
	}

	return buildScript([][]byte{
		LokadID,
		{TokenType1},
		[]byte(TxTypeGenesis),
		[]byte(ticker),
		[]byte(name),
		[]byte(documentURL),
		documentHash,
		{byte(decimals)},
		baton,
		quantityField(quantity),
	})
}

// NewMintScript builds the OP_RETURN locking script for a MINT transaction.
func NewMintScript(tokenID *chainhash.Hash, batonVout int, quantity uint64) (*bscript.Script, error) {
	baton, err := batonVoutField(batonVout)
	if err != nil {
		return nil, err
	}

	return buildScript([][]byte{
		LokadID,
		{TokenType1},
		[]byte(TxTypeMint),
		tokenIDField(tokenID),
		baton,
		quantityField(quantity),
	})
}

// NewSendScript builds the OP_RETURN locking script for a SEND transaction
// moving the given per-output amounts (aligned with outputs 1..n).
func NewSendScript(tokenID *chainhash.Hash, amounts []uint64) (*bscript.Script, error) {
	if len(amounts) == 0 {
		return nil, errors.NewInvalidArgumentError("SEND needs at least one output amount")
	}

	if len(amounts) > 19 {
		return nil, errors.NewInvalidArgumentError("SEND cannot have more than 19 output amounts")
	}

	chunks := [][]byte{
		LokadID,
		{TokenType1},
		[]byte(TxTypeSend),
		tokenIDField(tokenID),
	}

	for _, amount := range amounts {
		chunks = append(chunks, quantityField(amount))
	}

	return buildScript(chunks)
}

func buildScript(chunks [][]byte) (*bscript.Script, error) {
	sc := []byte{bscript.OpRETURN}

	for _, chunk := range chunks {
		sc = append(sc, pushField(chunk)...)
	}

	if len(sc) > maxOpReturnPayload {
		return nil, errors.NewInvalidArgumentError("OP_RETURN message too large, needs to be under 220 bytes")
	}

	s := bscript.Script(sc)

	return &s, nil
}

// pushField encodes a single SLP field push. Empty fields use PUSHDATA1
// with a zero length: OP_0 is not a valid SLP push.
func pushField(data []byte) []byte {
	switch {
	case len(data) == 0:
		return []byte{bscript.OpPUSHDATA1, 0x00}
	case len(data) < int(bscript.OpPUSHDATA1):
		return append([]byte{byte(len(data))}, data...)
	default:
		return append([]byte{bscript.OpPUSHDATA1, byte(len(data))}, data...)
	}
}

func quantityField(quantity uint64) []byte {
	field := make([]byte, 8)
	binary.BigEndian.PutUint64(field, quantity)

	return field
}

func tokenIDField(tokenID *chainhash.Hash) []byte {
	// token ids are serialized in txid display order
	raw, _ := hex.DecodeString(tokenID.String())

	return raw
}

func batonVoutField(batonVout int) ([]byte, error) {
	switch {
	case batonVout == 0:
		return nil, nil
	case batonVout >= 2 && batonVout <= 0xff:
		return []byte{byte(batonVout)}, nil
	default:
		return nil, errors.NewInvalidArgumentError("mint baton cannot be on vout=0 or 1")
	}
}
