package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTokenName   = "Lottery Token"
	DefaultTokenSymbol = "LT"
	DefaultChainID     = 1337
)

type GenesisSpec struct {
	ChainID     uint64            `yaml:"chainId"`
	GenesisTime string            `yaml:"genesisTime"`
	Lottery     LotterySpec       `yaml:"lottery"`
	Token       TokenSpec         `yaml:"token"`
	Alloc       map[string]string `yaml:"alloc"` // addr -> currency amount

	genesisTimestamp time.Time
	owner            [20]byte
	betPrice         *big.Int
	betFee           *big.Int
	alloc            map[[20]byte]*big.Int
}

type LotterySpec struct {
	// Owner may be left empty and filled from the node key via FillOwner.
	Owner    string `yaml:"owner"`
	BetPrice string `yaml:"betPrice"`
	BetFee   string `yaml:"betFee"`
}

type TokenSpec struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
}

// LoadGenesisSpec reads and validates a YAML genesis file. Unknown fields are
// rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	return ParseGenesisSpec(raw)
}

func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	return &spec, nil
}

// FillOwner sets the lottery owner when the spec leaves it empty.
func (s *GenesisSpec) FillOwner(owner string) {
	if strings.TrimSpace(s.Lottery.Owner) == "" {
		s.Lottery.Owner = owner
	}
}

// Validate normalises the spec and parses every address and amount.
func (s *GenesisSpec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if s.ChainID == 0 {
		s.ChainID = DefaultChainID
	}
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	s.Token.Name = normalizeLabel(s.Token.Name, DefaultTokenName)
	s.Token.Symbol = strings.ToUpper(normalizeLabel(s.Token.Symbol, DefaultTokenSymbol))
	if strings.ContainsAny(s.Token.Symbol, " \t") {
		return fmt.Errorf("token.symbol must not contain whitespace")
	}

	owner := strings.TrimSpace(s.Lottery.Owner)
	if owner == "" {
		return fmt.Errorf("lottery.owner is required")
	}
	if s.owner, err = ParseBech32Account(owner); err != nil {
		return fmt.Errorf("lottery.owner: %w", err)
	}
	if s.betPrice, err = parseAmountString(s.Lottery.BetPrice); err != nil {
		return fmt.Errorf("lottery.betPrice: %w", err)
	}
	if s.betPrice.Sign() == 0 {
		return fmt.Errorf("lottery.betPrice must be positive")
	}
	if s.betFee, err = parseAmountString(s.Lottery.BetFee); err != nil {
		return fmt.Errorf("lottery.betFee: %w", err)
	}

	s.alloc = make(map[[20]byte]*big.Int, len(s.Alloc))
	for addr, amount := range s.Alloc {
		parsed, err := ParseBech32Account(strings.TrimSpace(addr))
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addr, err)
		}
		amt, err := parseAmountString(amount)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addr, err)
		}
		if _, dup := s.alloc[parsed]; dup {
			return fmt.Errorf("alloc %q: duplicate account", addr)
		}
		s.alloc[parsed] = amt
	}
	return nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }
func (s *GenesisSpec) OwnerAddress() [20]byte     { return s.owner }
func (s *GenesisSpec) BetPriceAmount() *big.Int   { return new(big.Int).Set(s.betPrice) }
func (s *GenesisSpec) BetFeeAmount() *big.Int     { return new(big.Int).Set(s.betFee) }

// Allocations returns parsed allocations sorted by address bytes.
func (s *GenesisSpec) Allocations() []Allocation {
	out := make([]Allocation, 0, len(s.alloc))
	for addr, amt := range s.alloc {
		out = append(out, Allocation{Address: addr, Amount: new(big.Int).Set(amt)})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

// normalizeLabel applies NFKC so visually identical names compare equal.
func normalizeLabel(v, fallback string) string {
	trimmed := strings.TrimSpace(norm.NFKC.String(v))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func parseAmountString(v string) (*big.Int, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amt, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", v)
	}
	if amt.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amt, nil
}

func parseGenesisTime(v string) (time.Time, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("genesisTime: %w", err)
	}
	return ts.UTC(), nil
}
