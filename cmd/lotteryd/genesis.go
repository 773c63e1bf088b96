package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"lotterychain/config"
	"lotterychain/core/genesis"
)

const (
	devBetPrice   = "100"
	devBetFee     = "1"
	devOwnerFunds = "1000000"
)

// resolveGenesis loads the genesis spec named by the flag or the config.
// In dev mode a missing file yields a generated spec owned and funded by the
// node owner. It returns nil when no spec is available, which is only valid
// for an already initialised database.
func resolveGenesis(cfg *config.Config, flagPath, owner string) (*genesis.GenesisSpec, error) {
	path := strings.TrimSpace(flagPath)
	explicit := path != ""
	if !explicit {
		path = strings.TrimSpace(cfg.GenesisFile)
	}

	var spec *genesis.GenesisSpec
	if path != "" {
		loaded, err := genesis.LoadGenesisSpec(path)
		switch {
		case err == nil:
			spec = loaded
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("load genesis %s: %w", path, err)
		}
	}
	if spec == nil && cfg.DevMode {
		spec = &genesis.GenesisSpec{
			Lottery: genesis.LotterySpec{BetPrice: devBetPrice, BetFee: devBetFee},
			Alloc:   map[string]string{owner: devOwnerFunds},
		}
	}
	if spec == nil {
		return nil, nil
	}
	spec.FillOwner(owner)
	if spec.ChainID == 0 {
		spec.ChainID = cfg.ChainID
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}
