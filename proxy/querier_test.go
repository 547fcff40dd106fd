package proxy

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/settings"
	"github.com/simpleledger/slpdag/ulogger"
)

func testProxySettings(t *testing.T) *settings.Settings {
	t.Helper()

	endpoint, err := url.Parse("http://oracle.test")
	require.NoError(t, err)

	return &settings.Settings{
		Proxy: settings.ProxySettings{
			Endpoint: endpoint,
			Timeout:  time.Second,
			CacheTTL: time.Minute,
		},
	}
}

func newTestQuerier(t *testing.T) *Querier {
	t.Helper()

	q, err := NewQuerier(ulogger.TestLogger{}, testProxySettings(t))
	require.NoError(t, err)

	httpmock.ActivateNonDefault(q.client)
	t.Cleanup(httpmock.DeactivateAndReset)

	return q
}

func TestNewQuerierRequiresEndpoint(t *testing.T) {
	_, err := NewQuerier(ulogger.TestLogger{}, &settings.Settings{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestQueryParsesAnswers(t *testing.T) {
	q := newTestQuerier(t)

	valid := chainhash.HashH([]byte("valid tx"))
	invalid := chainhash.HashH([]byte("invalid tx"))
	unanswered := chainhash.HashH([]byte("unknown tx"))
	unsolicited := chainhash.HashH([]byte("never asked"))

	body := fmt.Sprintf(`{"response":[
		{"tx":"%s","errors":""},
		{"tx":"%s","errors":["bad provenance"]},
		{"tx":"%s","errors":""}
	]}`, valid.String(), invalid.String(), unsolicited.String())

	httpmock.RegisterResponder(
		"GET",
		`=~^http://oracle\.test/verify/.+`,
		httpmock.NewStringResponder(200, body),
	)

	answers, err := q.Query(context.Background(), []chainhash.Hash{valid, invalid, unanswered})
	require.NoError(t, err)

	require.Len(t, answers, 2)
	assert.True(t, answers[valid])
	assert.False(t, answers[invalid])

	_, ok := answers[unanswered]
	assert.False(t, ok)
}

func TestQueryRemembersAnswers(t *testing.T) {
	q := newTestQuerier(t)

	txid := chainhash.HashH([]byte("cached tx"))

	body := fmt.Sprintf(`{"response":[{"tx":"%s","errors":null}]}`, txid.String())

	httpmock.RegisterResponder(
		"GET",
		`=~^http://oracle\.test/verify/.+`,
		httpmock.NewStringResponder(200, body),
	)

	for i := 0; i < 3; i++ {
		answers, err := q.Query(context.Background(), []chainhash.Hash{txid})
		require.NoError(t, err)
		assert.True(t, answers[txid])
	}

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestQueryOracleFailure(t *testing.T) {
	q := newTestQuerier(t)

	httpmock.RegisterResponder(
		"GET",
		`=~^http://oracle\.test/verify/.+`,
		httpmock.NewStringResponder(500, "oops"),
	)

	txid := chainhash.HashH([]byte("some tx"))

	answers, err := q.Query(context.Background(), []chainhash.Hash{txid})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNetworkInvalidResponse)
	assert.Empty(t, answers)
}

func TestQueryGarbageResponse(t *testing.T) {
	q := newTestQuerier(t)

	httpmock.RegisterResponder(
		"GET",
		`=~^http://oracle\.test/verify/.+`,
		httpmock.NewStringResponder(200, "not json at all"),
	)

	txid := chainhash.HashH([]byte("some tx"))

	_, err := q.Query(context.Background(), []chainhash.Hash{txid})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNetworkInvalidResponse)
}

func TestQueueQueryDeliversOnWorker(t *testing.T) {
	q := newTestQuerier(t)

	txid := chainhash.HashH([]byte("queued tx"))

	body := fmt.Sprintf(`{"response":[{"tx":"%s","errors":""}]}`, txid.String())

	httpmock.RegisterResponder(
		"GET",
		`=~^http://oracle\.test/verify/.+`,
		httpmock.NewStringResponder(200, body),
	)

	q.Start()
	defer q.Stop()

	got := make(chan map[chainhash.Hash]bool, 1)

	q.QueueQuery([]chainhash.Hash{txid}, func(answers map[chainhash.Hash]bool) {
		got <- answers
	})

	select {
	case answers := <-got:
		assert.True(t, answers[txid])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for proxy callback")
	}
}
