package genesis

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lotterychain/core/state"
	"lotterychain/crypto"
	"lotterychain/storage"
)

func testAccount(fill byte) string {
	var raw [20]byte
	for i := range raw {
		raw[i] = fill
	}
	return crypto.AddressFromArray(raw).String()
}

func TestParseGenesisSpecRejectsUnknownFields(t *testing.T) {
	_, err := ParseGenesisSpec([]byte("lottery:\n  owner: x\njackpots: []\n"))
	require.Error(t, err)
}

func TestValidateAppliesDefaultsAndNormalises(t *testing.T) {
	raw := []byte(`
lottery:
  owner: ` + testAccount(0x01) + `
  betPrice: "500"
  betFee: "10"
token:
  name: "  ＬＯＴＴＯ  "
  symbol: lt
alloc:
  ` + testAccount(0x02) + `: "1000"
`)
	spec, err := ParseGenesisSpec(raw)
	require.NoError(t, err)
	require.NoError(t, spec.Validate())

	require.Equal(t, uint64(DefaultChainID), spec.ChainID)
	require.Equal(t, "LOTTO", spec.Token.Name)
	require.Equal(t, "LT", spec.Token.Symbol)
	require.Equal(t, int64(500), spec.BetPriceAmount().Int64())
	require.Len(t, spec.Allocations(), 1)
}

func TestValidateRequiresOwnerAndPrice(t *testing.T) {
	spec := &GenesisSpec{Lottery: LotterySpec{BetPrice: "1"}}
	require.ErrorContains(t, spec.Validate(), "owner")

	spec.FillOwner(testAccount(0x01))
	spec.Lottery.BetPrice = "0"
	require.ErrorContains(t, spec.Validate(), "betPrice")

	spec.Lottery.BetPrice = "-3"
	require.Error(t, spec.Validate())
}

func TestBuildGenesisWritesInitialState(t *testing.T) {
	spec := &GenesisSpec{
		Lottery: LotterySpec{Owner: testAccount(0x01), BetPrice: "50", BetFee: "1"},
		Alloc:   map[string]string{testAccount(0x02): "1000"},
	}
	mgr := state.NewManager(storage.NewMemDB())

	block, params, err := BuildGenesis(spec, mgr)
	require.NoError(t, err)
	require.Equal(t, uint64(0), block.Header.Height)
	require.Equal(t, CustodyAddress(), params.Address)

	stored, err := mgr.LotteryParams()
	require.NoError(t, err)
	require.Equal(t, params.Owner, stored.Owner)

	meta, err := mgr.TokenMetadata()
	require.NoError(t, err)
	require.Equal(t, DefaultTokenName, meta.Name)
	require.Equal(t, params.Address, meta.Minter)

	var funded [20]byte
	for i := range funded {
		funded[i] = 0x02
	}
	bal, err := mgr.CurrencyBalance(funded)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), bal)
}
