package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"lotterychain/core"
	"lotterychain/core/genesis"
	"lotterychain/core/types"
	"lotterychain/crypto"
	"lotterychain/native/lottery"
	"lotterychain/storage"
)

const testDevSecret = "rpc-test-secret-0123456789"

type rpcFixture struct {
	t      *testing.T
	node   *core.Node
	server *Server
	owner  *crypto.PrivateKey
	player *crypto.PrivateKey
}

type testResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

func newFixture(t *testing.T, cfg ServerConfig) *rpcFixture {
	t.Helper()
	owner, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	player, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	spec := &genesis.GenesisSpec{
		ChainID: 9,
		Lottery: genesis.LotterySpec{
			Owner:    owner.PubKey().Address().String(),
			BetPrice: "50",
			BetFee:   "1",
		},
		Alloc: map[string]string{player.PubKey().Address().String(): "1000"},
	}
	seed := lottery.SeedFunc(func([20]byte) (*big.Int, error) { return big.NewInt(0), nil })
	node, err := core.NewNode(storage.NewMemDB(), spec,
		core.WithClock(core.NewManualClock(time.Unix(1_700_000_000, 0))),
		core.WithRandomSource(seed))
	require.NoError(t, err)
	return &rpcFixture{t: t, node: node, server: NewServer(node, cfg, nil), owner: owner, player: player}
}

func (f *rpcFixture) call(header http.Header, method string, params ...interface{}) (int, *testResponse) {
	f.t.Helper()
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(f.t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:5000"
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	resp := &testResponse{}
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), resp))
	return rec.Code, resp
}

func (f *rpcFixture) signed(key *crypto.PrivateKey, txType types.TxType, value int64, payload interface{}) *types.Transaction {
	f.t.Helper()
	nonce, err := f.node.Nonce(key.PubKey().Address().Array())
	require.NoError(f.t, err)
	tx := &types.Transaction{ChainID: f.node.ChainID(), Type: txType, Nonce: nonce}
	if value != 0 {
		tx.Value = big.NewInt(value)
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(f.t, err)
		tx.Data = data
	}
	require.NoError(f.t, tx.Sign(key.PrivateKey))
	return tx
}

func devToken(t *testing.T, secret string) http.Header {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dev",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return http.Header{"Authorization": []string{"Bearer " + signed}}
}

func TestSendTransactionAndQueryBalances(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	addr := f.player.PubKey().Address().String()

	status, resp := f.call(nil, "lottery_sendTransaction", f.signed(f.player, types.TxTypeSellTokens, 200, nil))
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	var receipt ReceiptJSON
	require.NoError(t, json.Unmarshal(resp.Result, &receipt))
	require.True(t, receipt.Success)
	require.Equal(t, uint64(1), receipt.Height)
	require.Equal(t, addr, receipt.Sender)
	require.Equal(t, "sell_tokens", receipt.Type)

	_, resp = f.call(nil, "token_balanceOf", addr)
	require.Nil(t, resp.Error)
	require.JSONEq(t, `"200"`, string(resp.Result))

	_, resp = f.call(nil, "bank_balance", addr)
	require.JSONEq(t, `"800"`, string(resp.Result))

	_, resp = f.call(nil, "account_nonce", addr)
	require.JSONEq(t, `1`, string(resp.Result))

	_, resp = f.call(nil, "chain_height")
	require.JSONEq(t, `1`, string(resp.Result))

	_, resp = f.call(nil, "chain_getReceipt", receipt.TxHash)
	require.Nil(t, resp.Error)
	var fetched ReceiptJSON
	require.NoError(t, json.Unmarshal(resp.Result, &fetched))
	require.Equal(t, receipt.TxHash, fetched.TxHash)

	_, resp = f.call(nil, "chain_getBlock", 1)
	require.Nil(t, resp.Error)
	var block BlockJSON
	require.NoError(t, json.Unmarshal(resp.Result, &block))
	require.Equal(t, receipt.TxHash, block.TxHash)
	require.NotEmpty(t, block.ParentHash)
}

func TestFailedTransactionCarriesKindAndReceipt(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	payload := types.StartLotteryPayload{ClosingEpoch: 1_700_000_600, BaseWinningFeeRate: "0"}

	status, resp := f.call(nil, "lottery_sendTransaction", f.signed(f.player, types.TxTypeStartLottery, 0, payload))
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeAuthorization, resp.Error.Code)
	var receipt ReceiptJSON
	require.NoError(t, json.Unmarshal(resp.Error.Data, &receipt))
	require.False(t, receipt.Success)
	require.Equal(t, "authorization", receipt.ErrorKind)

	// The failed transaction still consumed the nonce.
	_, resp = f.call(nil, "account_nonce", f.player.PubKey().Address().String())
	require.JSONEq(t, `1`, string(resp.Result))

	status, resp = f.call(nil, "lottery_sendTransaction", f.signed(f.owner, types.TxTypeStartLottery, 0, payload))
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	_, resp = f.call(nil, "lottery_open")
	require.JSONEq(t, `true`, string(resp.Result))

	_, resp = f.call(nil, "lottery_status")
	var lotteryStatus LotteryStatusResult
	require.NoError(t, json.Unmarshal(resp.Result, &lotteryStatus))
	require.Equal(t, uint64(1), lotteryStatus.Round)
	require.Equal(t, int64(1_700_000_600), lotteryStatus.ClosingEpoch)
	require.Equal(t, "50", lotteryStatus.BetPrice)
	require.Equal(t, f.owner.PubKey().Address().String(), lotteryStatus.Owner)
}

func TestInadmissibleTransactionIsInvalidParams(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	tx := f.signed(f.player, types.TxTypeSellTokens, 10, nil)
	tx.Nonce = 5
	require.NoError(t, tx.Sign(f.player.PrivateKey))

	status, resp := f.call(nil, "lottery_sendTransaction", tx)
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
	require.Contains(t, resp.Error.Message, "nonce")

	_, resp = f.call(nil, "chain_height")
	require.JSONEq(t, `0`, string(resp.Result))
}

func TestUnknownMethodAndBadParams(t *testing.T) {
	f := newFixture(t, ServerConfig{})

	status, resp := f.call(nil, "lottery_nope")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	status, resp = f.call(nil, "token_balanceOf", "not-an-address")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	status, resp = f.call(nil, "token_allowance", f.player.PubKey().Address().String())
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "-32700")
}

func TestDevIncreaseTimeRequiresToken(t *testing.T) {
	f := newFixture(t, ServerConfig{DevMode: true, DevJWTSecret: testDevSecret})

	status, resp := f.call(nil, "dev_increaseTime", 60)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, resp = f.call(devToken(t, "some-other-secret-value"), "dev_increaseTime", 60)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, resp = f.call(devToken(t, testDevSecret), "dev_increaseTime", 60)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	var result IncreaseTimeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, int64(1_700_000_060), result.Now)
}

func TestDevNamespaceDisabled(t *testing.T) {
	f := newFixture(t, ServerConfig{DevJWTSecret: testDevSecret})
	status, resp := f.call(devToken(t, testDevSecret), "dev_increaseTime", 60)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	f := newFixture(t, ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 2})
	for i := 0; i < 2; i++ {
		status, _ := f.call(nil, "chain_id")
		require.Equal(t, http.StatusOK, status)
	}
	status, resp := f.call(nil, "chain_id")
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestClientSourceIgnoresForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if source := clientSource(req); source != "10.0.0.5" {
		t.Fatalf("expected remote address, got %q", source)
	}
}

func TestLimiterSweepsIdleClientsPeriodically(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	now := start
	l := newClientLimiter(100, 10)
	l.now = func() time.Time { return now }

	require.True(t, l.allow("a"))
	now = start.Add(5 * time.Minute)
	require.True(t, l.allow("b"))
	require.Len(t, l.visitors, 2)

	// "a" is idle past the TTL, but the last sweep was only 9m ago.
	now = start.Add(9 * time.Minute)
	l.visitors["a"].lastSeen = start.Add(-2 * limiterIdleTTL)
	require.True(t, l.allow("b"))
	require.Contains(t, l.visitors, "a")

	now = start.Add(limiterIdleTTL + time.Minute)
	require.True(t, l.allow("b"))
	require.NotContains(t, l.visitors, "a")
	require.Contains(t, l.visitors, "b")
	require.Equal(t, now, l.lastSweep)
}

func TestEventStream(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for f.node.Feed().Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, err = f.node.SubmitTransaction(ctx, f.signed(f.player, types.TxTypeSellTokens, 25, nil))
	require.NoError(t, err)

	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var evt EventJSON
		require.NoError(t, json.Unmarshal(data, &evt))
		if evt.Type == lottery.EventTypeTokensSold {
			require.Equal(t, "25", evt.Attributes["amount"])
			return
		}
	}
}
