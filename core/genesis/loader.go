package genesis

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lotterychain/core/state"
	"lotterychain/core/types"
	"lotterychain/native/lottery"
	"lotterychain/native/token"
)

// CustodyAddress is the account that holds the lottery's escrowed currency
// and tokens. No private key exists for it.
func CustodyAddress() [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256([]byte("lotterychain/lottery/custody"))[12:])
	return out
}

// BuildGenesis writes the initial state described by spec into manager and
// returns the genesis block. The caller commits the manager.
func BuildGenesis(spec *GenesisSpec, manager *state.Manager) (*types.Block, lottery.Params, error) {
	var params lottery.Params
	if spec == nil {
		return nil, params, fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return nil, params, fmt.Errorf("state manager must not be nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, params, err
	}

	params = lottery.Params{
		Owner:    spec.OwnerAddress(),
		Address:  CustodyAddress(),
		BetPrice: spec.BetPriceAmount(),
		BetFee:   spec.BetFeeAmount(),
	}
	if err := params.Validate(); err != nil {
		return nil, params, err
	}
	if err := manager.SetChainID(spec.ChainID); err != nil {
		return nil, params, fmt.Errorf("store chain id: %w", err)
	}
	if err := manager.PutLotteryParams(params); err != nil {
		return nil, params, fmt.Errorf("store lottery params: %w", err)
	}
	if err := manager.PutLotteryRound(lottery.NewRound()); err != nil {
		return nil, params, fmt.Errorf("init round: %w", err)
	}
	if err := manager.SetTokenMetadata(&token.Metadata{
		Name:   spec.Token.Name,
		Symbol: spec.Token.Symbol,
		Minter: params.Address,
	}); err != nil {
		return nil, params, fmt.Errorf("token metadata: %w", err)
	}

	for _, alloc := range spec.Allocations() {
		if alloc.Address == params.Address {
			return nil, params, fmt.Errorf("alloc: custody address cannot be funded at genesis")
		}
		if err := manager.SetCurrencyBalance(alloc.Address, alloc.Amount); err != nil {
			return nil, params, fmt.Errorf("alloc: %w", err)
		}
	}

	block := types.NewBlock(&types.BlockHeader{
		Height:     0,
		Timestamp:  uint64(spec.GenesisTimestamp().Unix()),
		ParentHash: []byte{},
	}, nil, nil)
	if err := manager.AppendBlock(block); err != nil {
		return nil, params, fmt.Errorf("store genesis block: %w", err)
	}
	return block, params, nil
}
