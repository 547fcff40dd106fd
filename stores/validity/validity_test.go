package validity

import (
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"

	"github.com/simpleledger/slpdag/dagging"
)

func TestStoreRemembersConclusiveVerdicts(t *testing.T) {
	s := New(0)

	valid := chainhash.HashH([]byte("valid"))
	invalid := chainhash.HashH([]byte("invalid"))

	s.Put(valid, dagging.ValidityValid)
	s.Put(invalid, dagging.ValidityInvalidProvenance)

	got, ok := s.Get(valid)
	assert.True(t, ok)
	assert.Equal(t, dagging.ValidityValid, got)

	got, ok = s.Get(invalid)
	assert.True(t, ok)
	assert.Equal(t, dagging.ValidityInvalidProvenance, got)

	_, ok = s.Get(chainhash.HashH([]byte("never seen")))
	assert.False(t, ok)

	assert.Equal(t, 2, s.Len())
}

func TestStoreIgnoresInconclusiveVerdicts(t *testing.T) {
	s := New(0)

	txid := chainhash.HashH([]byte("undecided"))
	s.Put(txid, dagging.ValidityUnknown)

	_, ok := s.Get(txid)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStoreExpiry(t *testing.T) {
	s := New(10 * time.Millisecond)

	txid := chainhash.HashH([]byte("fleeting"))
	s.Put(txid, dagging.ValidityValid)

	_, ok := s.Get(txid)
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = s.Get(txid)
	assert.False(t, ok)
}
