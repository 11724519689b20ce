// Command fundme operates a pooled-funding ledger.
//
// Usage:
//
//	fundme fund --from 0x... --value 0.1 [--config config.yaml]
//	fundme withdraw [--from 0x...]
//	fundme cheaper-withdraw [--from 0x...]
//	fundme status
//	fundme setup
//
// Environment variables:
//
//	DEPLOYER_PRIVATE_KEY  key of the ledger owner on live networks
//	FUNDME_STATE_DIR      account state directory when not configured
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/fundme/config"
	"github.com/vadiminshakov/fundme/internal/deploy"
	"github.com/vadiminshakov/fundme/internal/domain"
	"github.com/vadiminshakov/fundme/internal/events"
	"github.com/vadiminshakov/fundme/internal/ledger"
	"github.com/vadiminshakov/fundme/internal/setup"
	"go.uber.org/zap"
)

const usage = `usage: fundme <command> [flags]

commands:
  fund              contribute --value ether from --from
  withdraw          pay the pool to the owner
  cheaper-withdraw  withdraw reading the funder list once
  status            show the ledger state
  setup             run the configuration wizard`

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type commonFlags struct {
	configPath string
	network    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to yaml config")
	fs.StringVar(&c.network, "network", "", "network to use, overrides the config")
}

func (c *commonFlags) load() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if c.network != "" {
		cfg.Network = c.network
		cfg.ChainID = 0
		if n, ok := cfg.NetworkByName(c.network); ok {
			cfg.ChainID = n.ChainID
		}
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer, logger *zap.Logger, opts ...deploy.Option) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cmd, args := args[0], args[1:]
	if cmd == "setup" {
		path, err := setup.RunTUI()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "run commands with --config %s\n", path)
		return nil
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	var cf commonFlags
	cf.register(fs)

	var from, value string
	switch cmd {
	case "fund":
		fs.StringVar(&from, "from", "", "funder address")
		fs.StringVar(&value, "value", "", "amount in ether, e.g. 0.1")
	case "withdraw", "cheaper-withdraw":
		fs.StringVar(&from, "from", "", "caller address, defaults to the owner")
	case "status":
	default:
		return errors.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}

	d, err := deploy.Deploy(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer d.Close()

	sub := d.Events.Subscribe()
	defer d.Events.Unsubscribe(sub)

	switch cmd {
	case "fund":
		err = fund(ctx, d, out, from, value)
	case "withdraw":
		err = withdraw(ctx, d, out, from, d.Ledger.Withdraw)
	case "cheaper-withdraw":
		err = withdraw(ctx, d, out, from, d.Ledger.CheaperWithdraw)
	case "status":
		err = printStatus(ctx, d, cfg, out)
	}
	printEvents(out, sub)

	return err
}

func parseAddress(s, name string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Errorf("invalid --%s address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func fund(ctx context.Context, d *deploy.Deployment, out io.Writer, from, value string) error {
	funder, err := parseAddress(from, "from")
	if err != nil {
		return err
	}
	amount, err := domain.ParseEther(value)
	if err != nil {
		return errors.Wrap(err, "invalid --value")
	}

	fmt.Fprintln(out, "Funding contract...")
	if err := d.Fund(ctx, funder, amount); err != nil {
		return err
	}
	fmt.Fprintf(out, "Funded %s ETH from %s\n", domain.FormatEther(amount), funder.Hex())

	return nil
}

func withdraw(ctx context.Context, d *deploy.Deployment, out io.Writer, from string,
	fn func(context.Context, common.Address) (ledger.Receipt, error)) error {
	caller := d.Ledger.Owner()
	if from != "" {
		var err error
		if caller, err = parseAddress(from, "from"); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Contract balance before: %s ETH\n", domain.FormatEther(d.Ledger.Balance(ctx)))
	fmt.Fprintln(out, "Withdrawing from contract...")

	receipt, err := fn(ctx, caller)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Withdrew %s ETH, reset %d funders (reads %d, writes %d)\n",
		domain.FormatEther(receipt.Amount), receipt.Funders, receipt.StorageReads, receipt.StorageWrites)
	fmt.Fprintf(out, "Contract balance after: %s ETH\n", domain.FormatEther(d.Ledger.Balance(ctx)))
	fmt.Fprintf(out, "Owner balance: %s ETH\n", domain.FormatEther(d.Wallet.BalanceOf(d.Ledger.Owner())))

	return nil
}

func printEvents(out io.Writer, sub chan events.Event) {
	for {
		select {
		case e := <-sub:
			fmt.Fprintf(out, "event %s: account=%s amount=%s wei\n", e.Kind, e.Account.Hex(), e.Amount)
		default:
			return
		}
	}
}
