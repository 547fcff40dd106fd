package slpvalidator

import (
	"context"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleledger/slpdag/dagging"
	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/settings"
	"github.com/simpleledger/slpdag/slp"
	"github.com/simpleledger/slpdag/ulogger"
)

type outpoint struct {
	txid chainhash.Hash
	vout uint32
}

// buildTx assembles a transaction whose first output carries script with
// zero satoshis, plus extraOuts throwaway payment outputs.
func buildTx(t *testing.T, script *bscript.Script, extraOuts int, parents ...outpoint) *bt.Tx {
	t.Helper()

	tx := &bt.Tx{Version: 1}

	for _, p := range parents {
		txid := p.txid
		input := &bt.Input{
			PreviousTxOutIndex: p.vout,
			UnlockingScript:    &bscript.Script{},
		}
		require.NoError(t, input.PreviousTxIDAdd(&txid))
		tx.Inputs = append(tx.Inputs, input)
	}

	tx.Outputs = append(tx.Outputs, &bt.Output{LockingScript: script})

	for i := 0; i < extraOuts; i++ {
		dummy := bscript.Script([]byte{bscript.OpTRUE, byte(i)})
		tx.Outputs = append(tx.Outputs, &bt.Output{Satoshis: 546, LockingScript: &dummy})
	}

	return tx
}

func genesisScript(t *testing.T, batonVout int, quantity uint64) *bscript.Script {
	t.Helper()

	script, err := slp.NewGenesisScript("TEST", "Test Token", "", nil, 0, batonVout, quantity)
	require.NoError(t, err)

	return script
}

func TestGetInfoGenesis(t *testing.T) {
	genesis := buildTx(t, genesisScript(t, 2, 1000), 2)
	tokenID := *genesis.TxIDChainHash()

	v := New(ulogger.TestLogger{}, tokenID)

	info, validity := v.GetInfo(genesis)
	require.NotNil(t, info)
	assert.Equal(t, dagging.ValidityUnknown, validity)

	assert.Empty(t, info.VinMask)
	require.Len(t, info.Outputs, 3)
	assert.Nil(t, info.Outputs[0])
	assert.Equal(t, uint64(1000), info.Outputs[1])
	assert.Equal(t, batonMarker{}, info.Outputs[2])

	self := info.Self.(*txSelf)
	assert.Equal(t, slp.TxTypeGenesis, self.txType)
}

func TestGetInfoGenesisForOtherTokenIsIrrelevant(t *testing.T) {
	genesis := buildTx(t, genesisScript(t, 0, 1000), 1)
	otherToken := chainhash.HashH([]byte("some other token"))

	v := New(ulogger.TestLogger{}, otherToken)

	info, validity := v.GetInfo(genesis)
	assert.Nil(t, info)
	assert.Equal(t, dagging.ValidityUnknown, validity)
}

func TestGetInfoNonSlpIsIrrelevant(t *testing.T) {
	script := bscript.Script([]byte{bscript.OpTRUE})
	tx := buildTx(t, &script, 1)

	v := New(ulogger.TestLogger{}, chainhash.HashH([]byte("token")))

	info, validity := v.GetInfo(tx)
	assert.Nil(t, info)
	assert.Equal(t, dagging.ValidityUnknown, validity)
}

func TestGetInfoMalformedSlpIsInvalid(t *testing.T) {
	full := *genesisScript(t, 2, 1000)
	truncated := bscript.Script(full[:len(full)-3])

	tx := buildTx(t, &truncated, 1)

	v := New(ulogger.TestLogger{}, chainhash.HashH([]byte("token")))

	info, validity := v.GetInfo(tx)
	assert.Nil(t, info)
	assert.Equal(t, dagging.ValidityInvalid, validity)
}

func TestGetInfoSecondOpReturnIsInvalid(t *testing.T) {
	tokenID := chainhash.HashH([]byte("my token"))

	script, err := slp.NewSendScript(&tokenID, []uint64{100})
	require.NoError(t, err)

	tx := buildTx(t, script, 2, outpoint{txid: chainhash.HashH([]byte("parent")), vout: 1})

	// Smuggle a second OP_RETURN in past the message output.
	second := bscript.Script([]byte{bscript.OpRETURN, 0x01})
	tx.Outputs[2].LockingScript = &second

	v := New(ulogger.TestLogger{}, tokenID)

	info, validity := v.GetInfo(tx)
	assert.Nil(t, info)
	assert.Equal(t, dagging.ValidityInvalid, validity)
}

func TestGetInfoNonzeroSatoshisOnMessageIsInvalid(t *testing.T) {
	tx := buildTx(t, genesisScript(t, 0, 1000), 1)
	tx.Outputs[0].Satoshis = 1

	v := New(ulogger.TestLogger{}, *tx.TxIDChainHash())

	info, validity := v.GetInfo(tx)
	assert.Nil(t, info)
	assert.Equal(t, dagging.ValidityInvalid, validity)
}

func TestGetInfoWrongTokenSendIsIrrelevant(t *testing.T) {
	tokenID := chainhash.HashH([]byte("my token"))
	otherID := chainhash.HashH([]byte("other token"))

	script, err := slp.NewSendScript(&otherID, []uint64{100})
	require.NoError(t, err)

	tx := buildTx(t, script, 1, outpoint{txid: chainhash.HashH([]byte("parent")), vout: 1})

	v := New(ulogger.TestLogger{}, tokenID)

	info, validity := v.GetInfo(tx)
	assert.Nil(t, info)
	assert.Equal(t, dagging.ValidityUnknown, validity)
}

func TestGetInfoSendOutputsAndVinMask(t *testing.T) {
	tokenID := chainhash.HashH([]byte("my token"))

	// Three amounts declared, but only two real outputs past the message:
	// the third is burned yet still counts against the inputs.
	script, err := slp.NewSendScript(&tokenID, []uint64{100, 200, 300})
	require.NoError(t, err)

	tx := buildTx(t, script, 2,
		outpoint{txid: chainhash.HashH([]byte("parent a")), vout: 1},
		outpoint{txid: chainhash.HashH([]byte("parent b")), vout: 1},
	)

	v := New(ulogger.TestLogger{}, tokenID)

	info, validity := v.GetInfo(tx)
	require.NotNil(t, info)
	assert.Equal(t, dagging.ValidityUnknown, validity)

	assert.Equal(t, []bool{true, true}, info.VinMask)
	require.Len(t, info.Outputs, 3)
	assert.Equal(t, uint64(100), info.Outputs[1])
	assert.Equal(t, uint64(200), info.Outputs[2])

	self := info.Self.(*txSelf)
	assert.Equal(t, uint64(600), self.outSum)
}

func TestGetInfoZeroAmountsStayUndescribed(t *testing.T) {
	tokenID := chainhash.HashH([]byte("my token"))

	script, err := slp.NewSendScript(&tokenID, []uint64{0, 100})
	require.NoError(t, err)

	tx := buildTx(t, script, 2, outpoint{txid: chainhash.HashH([]byte("parent")), vout: 1})

	v := New(ulogger.TestLogger{}, tokenID)

	info, validity := v.GetInfo(tx)
	require.NotNil(t, info)
	assert.Equal(t, dagging.ValidityUnknown, validity)

	// The zero amount contributes nothing, so no spender should ever wait
	// on that output.
	require.Len(t, info.Outputs, 3)
	assert.Nil(t, info.Outputs[1])
	assert.Equal(t, uint64(100), info.Outputs[2])

	self := info.Self.(*txSelf)
	assert.Equal(t, uint64(100), self.outSum)
}

func TestGetInfoZeroQuantityGenesis(t *testing.T) {
	genesis := buildTx(t, genesisScript(t, 0, 0), 1)
	tokenID := *genesis.TxIDChainHash()

	v := New(ulogger.TestLogger{}, tokenID)

	info, validity := v.GetInfo(genesis)
	require.NotNil(t, info)
	assert.Equal(t, dagging.ValidityUnknown, validity)
	require.Len(t, info.Outputs, 2)
	assert.Nil(t, info.Outputs[1])
}

func TestCheckNeeded(t *testing.T) {
	v := New(ulogger.TestLogger{}, chainhash.Hash{})

	mint := &txSelf{txType: slp.TxTypeMint}
	send := &txSelf{txType: slp.TxTypeSend}
	genesis := &txSelf{txType: slp.TxTypeGenesis}

	tests := []struct {
		name      string
		self      interface{}
		parentOut interface{}
		want      bool
	}{
		{"mint needs baton", mint, batonMarker{}, true},
		{"mint ignores quantity", mint, uint64(5), false},
		{"mint ignores pruned", mint, nil, false},
		{"send needs quantity", send, uint64(5), true},
		{"send ignores zero quantity", send, uint64(0), false},
		{"send ignores baton", send, batonMarker{}, false},
		{"send ignores pruned", send, nil, false},
		{"genesis needs nothing", genesis, uint64(5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.CheckNeeded(tt.self, tt.parentOut))
		})
	}
}

func TestValidateMint(t *testing.T) {
	v := New(ulogger.TestLogger{}, chainhash.Hash{})
	mint := &txSelf{txType: slp.TxTypeMint}

	tests := []struct {
		name         string
		inputs       []dagging.InputInfo
		wantDecided  bool
		wantValidity dagging.Validity
	}{
		{
			name: "any valid baton suffices",
			inputs: []dagging.InputInfo{
				{Vin: 0, Validity: dagging.ValidityInvalid, Out: batonMarker{}},
				{Vin: 1, Validity: dagging.ValidityValid, Out: batonMarker{}},
			},
			wantDecided:  true,
			wantValidity: dagging.ValidityValid,
		},
		{
			name: "undecided while a baton is open",
			inputs: []dagging.InputInfo{
				{Vin: 0, Validity: dagging.ValidityUnknown, Out: batonMarker{}},
			},
			wantDecided: false,
		},
		{
			name: "no baton left means no provenance",
			inputs: []dagging.InputInfo{
				{Vin: 0, Validity: dagging.ValidityInvalid, Out: batonMarker{}},
			},
			wantDecided:  true,
			wantValidity: dagging.ValidityInvalidProvenance,
		},
		{
			name:         "no baton inputs at all",
			inputs:       nil,
			wantDecided:  true,
			wantValidity: dagging.ValidityInvalidProvenance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decided, _, validity := v.Validate(mint, tt.inputs)
			assert.Equal(t, tt.wantDecided, decided)

			if tt.wantDecided {
				assert.Equal(t, tt.wantValidity, validity)
			}
		})
	}
}

func TestValidateSend(t *testing.T) {
	v := New(ulogger.TestLogger{}, chainhash.Hash{})

	tests := []struct {
		name         string
		outSum       uint64
		inputs       []dagging.InputInfo
		wantDecided  bool
		wantValidity dagging.Validity
	}{
		{
			name:   "covered by valid inputs",
			outSum: 100,
			inputs: []dagging.InputInfo{
				{Validity: dagging.ValidityValid, Out: uint64(60)},
				{Validity: dagging.ValidityValid, Out: uint64(40)},
			},
			wantDecided:  true,
			wantValidity: dagging.ValidityValid,
		},
		{
			name:         "zero output sum is trivially covered",
			outSum:       0,
			inputs:       nil,
			wantDecided:  true,
			wantValidity: dagging.ValidityValid,
		},
		{
			name:   "open inputs could still cover",
			outSum: 100,
			inputs: []dagging.InputInfo{
				{Validity: dagging.ValidityValid, Out: uint64(60)},
				{Validity: dagging.ValidityUnknown, Out: uint64(40)},
			},
			wantDecided: false,
		},
		{
			name:   "gap no longer closable",
			outSum: 100,
			inputs: []dagging.InputInfo{
				{Validity: dagging.ValidityValid, Out: uint64(60)},
				{Validity: dagging.ValidityInvalid, Out: uint64(4000)},
				{Validity: dagging.ValidityUnknown, Out: uint64(39)},
			},
			wantDecided:  true,
			wantValidity: dagging.ValidityInvalidProvenance,
		},
		{
			name:   "saturated sums still compare",
			outSum: 1<<64 - 1,
			inputs: []dagging.InputInfo{
				{Validity: dagging.ValidityValid, Out: uint64(1<<64 - 1)},
				{Validity: dagging.ValidityValid, Out: uint64(1)},
			},
			wantDecided:  true,
			wantValidity: dagging.ValidityValid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decided, _, validity := v.Validate(&txSelf{txType: slp.TxTypeSend, outSum: tt.outSum}, tt.inputs)
			assert.Equal(t, tt.wantDecided, decided)

			if tt.wantDecided {
				assert.Equal(t, tt.wantValidity, validity)
			}
		})
	}
}

// In-test transaction source backed by a map.
type testTxSource struct {
	txs map[chainhash.Hash]*bt.Tx
}

func newTestTxSource(txs ...*bt.Tx) *testTxSource {
	s := &testTxSource{txs: make(map[chainhash.Hash]*bt.Tx)}
	for _, tx := range txs {
		s.txs[*tx.TxIDChainHash()] = tx
	}

	return s
}

func (s *testTxSource) GetCached(_ context.Context, txid chainhash.Hash) (*bt.Tx, error) {
	return nil, errors.NewTxNotFoundError("%s not cached", txid.String())
}

func (s *testTxSource) BatchFetch(_ context.Context, txids []chainhash.Hash) (map[chainhash.Hash]*bt.Tx, error) {
	out := make(map[chainhash.Hash]*bt.Tx)

	for _, txid := range txids {
		if tx, ok := s.txs[txid]; ok {
			out[txid] = tx
		}
	}

	return out, nil
}

func testSettings() *settings.Settings {
	return &settings.Settings{
		Validation: settings.ValidationSettings{
			FetchBatchSize: 10,
			FetchTimeout:   time.Second,
		},
	}
}

// Full engine run over a real token history: genesis issues 1000 with a
// baton, a send splits it, a mint extends supply from the baton, and an
// overclaiming send fails on provenance.
func TestEndToEndTokenHistory(t *testing.T) {
	genesis := buildTx(t, genesisScript(t, 2, 1000), 2)
	tokenID := *genesis.TxIDChainHash()

	sendScript, err := slp.NewSendScript(&tokenID, []uint64{400, 600})
	require.NoError(t, err)
	send := buildTx(t, sendScript, 2, outpoint{txid: tokenID, vout: 1})

	mintScript, err := slp.NewMintScript(&tokenID, 0, 500)
	require.NoError(t, err)
	mint := buildTx(t, mintScript, 1, outpoint{txid: tokenID, vout: 2})

	overScript, err := slp.NewSendScript(&tokenID, []uint64{401})
	require.NoError(t, err)
	over := buildTx(t, overScript, 1, outpoint{txid: *send.TxIDChainHash(), vout: 1})

	// A mint trying to draw provenance from a quantity output instead of
	// the baton.
	badMintScript, err := slp.NewMintScript(&tokenID, 0, 500)
	require.NoError(t, err)
	badMint := buildTx(t, badMintScript, 1, outpoint{txid: *send.TxIDChainHash(), vout: 2})

	v := New(ulogger.TestLogger{}, tokenID)
	g := dagging.NewTokenGraph(ulogger.TestLogger{}, v)
	source := newTestTxSource(genesis, send, mint, over, badMint)

	targets := []chainhash.Hash{
		*send.TxIDChainHash(),
		*mint.TxIDChainHash(),
		*over.TxIDChainHash(),
		*badMint.TxIDChainHash(),
	}

	job := dagging.NewValidationJob(ulogger.NewVerboseTestLogger(t), testSettings(), g, targets, source, nil)

	reason, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, dagging.StopReasonDone, reason)

	assert.Equal(t, dagging.ValidityValid, g.Validity(*send.TxIDChainHash()))
	assert.Equal(t, dagging.ValidityValid, g.Validity(*mint.TxIDChainHash()))
	assert.Equal(t, dagging.ValidityInvalidProvenance, g.Validity(*over.TxIDChainHash()))
	assert.Equal(t, dagging.ValidityInvalidProvenance, g.Validity(*badMint.TxIDChainHash()))
}
