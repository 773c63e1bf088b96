package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"lotterychain/core"
	"lotterychain/core/genesis"
	"lotterychain/crypto"
	"lotterychain/rpc"
	"lotterychain/storage"
)

const cliDevSecret = "cli-test-secret-0123456789"

type cliHarness struct {
	t      *testing.T
	url    string
	token  string
	keys   map[string]*crypto.PrivateKey
	node   *core.Node
	player *crypto.PrivateKey
	owner  *crypto.PrivateKey
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	owner, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	player, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	spec := &genesis.GenesisSpec{
		ChainID: 11,
		Lottery: genesis.LotterySpec{
			Owner:    owner.PubKey().Address().String(),
			BetPrice: "50",
			BetFee:   "1",
		},
		Alloc: map[string]string{player.PubKey().Address().String(): "1000"},
	}
	node, err := core.NewNode(storage.NewMemDB(), spec, core.WithClock(core.NewManualClock(time.Unix(1_700_000_000, 0))))
	require.NoError(t, err)
	srv := httptest.NewServer(rpc.NewServer(node, rpc.ServerConfig{DevMode: true, DevJWTSecret: cliDevSecret}, nil).Handler())
	t.Cleanup(srv.Close)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(cliDevSecret))
	require.NoError(t, err)

	h := &cliHarness{
		t:      t,
		url:    srv.URL,
		token:  token,
		keys:   map[string]*crypto.PrivateKey{"owner": owner, "player": player},
		node:   node,
		player: player,
		owner:  owner,
	}
	prev := loadKey
	loadKey = func(path string) (*crypto.PrivateKey, error) {
		key, ok := h.keys[path]
		if !ok {
			return nil, fmt.Errorf("no key %q", path)
		}
		return key, nil
	}
	t.Cleanup(func() { loadKey = prev })
	return h
}

func (h *cliHarness) run(key string, args ...string) (string, string, int) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--rpc", h.url, "--token", h.token, "--key", key}, args...)
	code := run(full, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func (h *cliHarness) mustRun(key string, args ...string) string {
	h.t.Helper()
	out, errOut, code := h.run(key, args...)
	require.Equalf(h.t, 0, code, "%v failed: %s", args, errOut)
	return out
}

func (h *cliHarness) queryString(method string, params ...string) string {
	h.t.Helper()
	out := h.mustRun("", append([]string{"query", method}, params...)...)
	var v string
	require.NoError(h.t, json.Unmarshal([]byte(out), &v))
	return v
}

func TestFullRoundThroughCLI(t *testing.T) {
	h := newCLIHarness(t)
	player := h.player.PubKey().Address().String()

	require.Equal(t, player+"\n", h.mustRun("player", "address"))

	h.mustRun("player", "sell", "200")
	require.Equal(t, "200", h.queryString("token_balanceOf", player))

	h.mustRun("player", "approve", "custody", "1000")
	h.mustRun("owner", "start", "1700000600")
	h.mustRun("player", "bet")

	_, errOut, code := h.run("player", "end")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "-32042")

	h.mustRun("", "increase-time", "601")
	h.mustRun("player", "end")
	require.Equal(t, "50", h.queryString("lottery_winningStash", player))

	out := h.mustRun("player", "withdraw")
	require.Contains(t, out, `"success": true`)
	require.Equal(t, "0", h.queryString("lottery_winningStash", player))
}

func TestFailedTransactionPrintsReceipt(t *testing.T) {
	h := newCLIHarness(t)
	out, errOut, code := h.run("player", "start", "1700000600")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "-32041")
	require.Contains(t, out, `"errorKind": "authorization"`)
}

func TestUsageAndValidation(t *testing.T) {
	h := newCLIHarness(t)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 2, run(nil, &stdout, &stderr))
	require.Contains(t, stderr.String(), "usage: lottery-cli")

	_, errOut, code := h.run("player", "sell", "-5")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "invalid amount")

	_, errOut, code = h.run("player", "frobnicate")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "unknown command")

	_, errOut, code = h.run("player", "withdraw")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "no winnings")
}

func TestRawParams(t *testing.T) {
	params := rawParams([]string{"12", "lot1abc", `"quoted"`})
	require.Len(t, params, 3)
	require.Equal(t, json.RawMessage("12"), params[0])
	require.Equal(t, "lot1abc", params[1])
	require.True(t, strings.HasPrefix(string(params[2].(json.RawMessage)), `"`))
}
