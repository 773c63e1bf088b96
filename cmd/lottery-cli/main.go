package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"lotterychain/cmd/internal/passphrase"
	"lotterychain/core/types"
	"lotterychain/crypto"
	"lotterychain/native/lottery"
)

const (
	keyPassEnv = "LOTTERY_KEY_PASS"
	usage      = `usage: lottery-cli [--rpc URL] [--key KEYSTORE] [--token JWT] <command> [args]

commands:
  keygen <keystore>              create a new key file
  address                        print the address of --key
  status                         show the current round
  sell <amount>                  exchange currency for tokens
  start <closingEpoch> [feeRate] open a round (owner)
  bet                            place one bet
  end                            close the round once the deadline passed
  withdraw [feeBps]              claim winnings split at feeBps (default 3000)
  track-burn <amount>            declare an upcoming token burn
  burn <amount>                  burn tokens
  redeem                         redeem the tracked burn for currency
  withdraw-fees                  collect accumulated fees (owner)
  approve <spender|custody> <n>  approve a token spender
  transfer <to> <amount>         transfer tokens
  send <to> <amount>             transfer currency
  increase-time <seconds>        advance the dev clock (needs --token)
  query <method> [params...]     raw JSON-RPC call
`
)

// loadKey is replaced in tests.
var loadKey = func(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--key is required for this command")
	}
	key, err := crypto.LoadFromKeystore(path, "")
	if err == nil {
		return key, nil
	}
	secret, perr := passphrase.NewSource(keyPassEnv, "wallet").Get()
	if perr != nil {
		return nil, errors.Join(err, perr)
	}
	return crypto.LoadFromKeystore(path, secret)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lottery-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rpcURL := fs.String("rpc", defaultRPCEndpoint(), "JSON-RPC endpoint")
	keyPath := fs.String("key", os.Getenv("LOTTERY_KEY"), "keystore of the signing account")
	token := fs.String("token", os.Getenv("LOTTERY_DEV_TOKEN"), "bearer token for dev methods")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	client := newRPCClient(*rpcURL, *token)
	if err := dispatch(client, *keyPath, rest[0], rest[1:], stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("LOTTERY_RPC_URL")); v != "" {
		return v
	}
	return "http://127.0.0.1:8545"
}

func need(args []string, n int, what string) error {
	if len(args) < n {
		return fmt.Errorf("missing %s", what)
	}
	return nil
}

func dispatch(client *rpcClient, keyPath, command string, args []string, out io.Writer) error {
	switch command {
	case "keygen":
		if err := need(args, 1, "keystore path"); err != nil {
			return err
		}
		return keygen(args[0], out)
	case "status":
		return query(client, "lottery_status", nil, out)
	case "query":
		if err := need(args, 1, "method"); err != nil {
			return err
		}
		return query(client, args[0], rawParams(args[1:]), out)
	case "increase-time":
		if err := need(args, 1, "seconds"); err != nil {
			return err
		}
		seconds, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seconds %q", args[0])
		}
		return query(client, "dev_increaseTime", []interface{}{seconds}, out)
	}

	key, err := loadKey(keyPath)
	if err != nil {
		return err
	}
	s := &signer{client: client, key: key}

	var (
		txType  types.TxType
		value   *big.Int
		to      []byte
		payload interface{}
	)
	switch command {
	case "address":
		_, err := fmt.Fprintln(out, s.address())
		return err
	case "sell":
		if err := need(args, 1, "amount"); err != nil {
			return err
		}
		if value, err = parseAmount(args[0]); err != nil {
			return err
		}
		txType = types.TxTypeSellTokens
	case "start":
		if err := need(args, 1, "closing epoch"); err != nil {
			return err
		}
		epoch, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid closing epoch %q", args[0])
		}
		p := types.StartLotteryPayload{ClosingEpoch: epoch}
		if len(args) > 1 {
			p.BaseWinningFeeRate = args[1]
		}
		txType, payload = types.TxTypeStartLottery, p
	case "bet":
		txType = types.TxTypeBet
	case "end":
		txType = types.TxTypeEndLottery
	case "withdraw":
		feeBps := uint64(lottery.DefaultWinningFeeBps)
		if len(args) > 0 {
			if feeBps, err = strconv.ParseUint(args[0], 10, 64); err != nil {
				return fmt.Errorf("invalid fee bps %q", args[0])
			}
		}
		split, err := s.withdrawSplit(feeBps)
		if err != nil {
			return err
		}
		txType, payload = types.TxTypeWithdrawWinning, split
	case "track-burn", "burn":
		if err := need(args, 1, "amount"); err != nil {
			return err
		}
		if _, err := parseAmount(args[0]); err != nil {
			return err
		}
		txType, payload = types.TxTypeTrackBurn, types.AmountPayload{Amount: args[0]}
		if command == "burn" {
			txType = types.TxTypeTokenBurn
		}
	case "redeem":
		txType = types.TxTypeRedeemBurn
	case "withdraw-fees":
		txType = types.TxTypeWithdrawFees
	case "approve":
		if err := need(args, 2, "spender and amount"); err != nil {
			return err
		}
		spender := args[0]
		if spender == "custody" {
			if err := client.call("lottery_custody", nil, &spender); err != nil {
				return err
			}
		}
		if _, err := crypto.ParseAddress(spender); err != nil {
			return err
		}
		if _, err := parseAmount(args[1]); err != nil {
			return err
		}
		txType, payload = types.TxTypeTokenApprove, types.TokenApprovePayload{Spender: spender, Amount: args[1]}
	case "transfer":
		if err := need(args, 2, "recipient and amount"); err != nil {
			return err
		}
		if _, err := crypto.ParseAddress(args[0]); err != nil {
			return err
		}
		if _, err := parseAmount(args[1]); err != nil {
			return err
		}
		txType, payload = types.TxTypeTokenTransfer, types.TokenTransferPayload{To: args[0], Amount: args[1]}
	case "send":
		if err := need(args, 2, "recipient and amount"); err != nil {
			return err
		}
		recipient, err := crypto.ParseAddress(args[0])
		if err != nil {
			return err
		}
		if value, err = parseAmount(args[1]); err != nil {
			return err
		}
		txType, to = types.TxTypeTransfer, recipient[:]
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	receipt, err := s.submit(txType, value, to, payload)
	if len(receipt) > 0 {
		printJSON(out, receipt)
	}
	return err
}

func keygen(path string, out io.Writer) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	secret, err := passphrase.NewSource(keyPassEnv, "new wallet").Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(path, key, secret); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved key to %s\nAddress: %s\n", path, key.PubKey().Address().String())
	return nil
}

func query(client *rpcClient, method string, params []interface{}, out io.Writer) error {
	var result json.RawMessage
	if err := client.call(method, params, &result); err != nil {
		return err
	}
	printJSON(out, result)
	return nil
}

// rawParams passes JSON literals through and treats anything else as a string.
func rawParams(args []string) []interface{} {
	params := make([]interface{}, 0, len(args))
	for _, arg := range args {
		if json.Valid([]byte(arg)) {
			params = append(params, json.RawMessage(arg))
			continue
		}
		params = append(params, arg)
	}
	return params
}

func printJSON(out io.Writer, raw json.RawMessage) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Fprintln(out, string(raw))
		return
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(out, string(raw))
		return
	}
	fmt.Fprintln(out, string(pretty))
}
