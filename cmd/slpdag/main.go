// Package main is the slpdag command line tool. It validates SLP token
// transactions against their on-chain ancestry using a remote transaction
// endpoint, and can decode individual SLP scripts for inspection.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/urfave/cli/v2"

	"github.com/simpleledger/slpdag/dagging"
	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/proxy"
	"github.com/simpleledger/slpdag/settings"
	"github.com/simpleledger/slpdag/slp"
	"github.com/simpleledger/slpdag/stores/txstore"
	"github.com/simpleledger/slpdag/stores/validity"
	"github.com/simpleledger/slpdag/ulogger"
	"github.com/simpleledger/slpdag/validator"
)

func main() {
	app := &cli.App{
		Name:  "slpdag",
		Usage: "SPV validation of SLP token transaction DAGs",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate target transactions of a token against their ancestry",
				ArgsUsage: "<target txid> [<target txid>...]",
				Action:    validateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Token id (the genesis txid)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "tx-endpoint",
						Usage: "Raw transaction REST endpoint (overrides txstore_httpEndpoint)",
					},
					&cli.StringFlag{
						Name:  "proxy",
						Usage: "Validation oracle endpoint; consulted before digging (overrides proxy_endpoint)",
					},
				},
			},
			{
				Name:      "decode",
				Usage:     "Decode the SLP message of a raw transaction",
				ArgsUsage: "<raw tx hex>",
				Action:    decodeCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func validateCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.NewInvalidArgumentError("at least one target txid is required")
	}

	tokenID, err := chainhash.NewHashFromStr(c.String("token"))
	if err != nil {
		return errors.NewInvalidArgumentError("invalid token id %q", c.String("token"), err)
	}

	targets := make([]chainhash.Hash, 0, c.NArg())

	for _, arg := range c.Args().Slice() {
		txid, err := chainhash.NewHashFromStr(arg)
		if err != nil {
			return errors.NewInvalidArgumentError("invalid target txid %q", arg, err)
		}

		targets = append(targets, *txid)
	}

	tSettings := settings.NewSettings()

	if s := c.String("tx-endpoint"); s != "" {
		u, err := url.Parse(s)
		if err != nil {
			return errors.NewInvalidArgumentError("invalid tx endpoint %q", s, err)
		}

		tSettings.TxStore.Endpoint = u
	}

	if s := c.String("proxy"); s != "" {
		u, err := url.Parse(s)
		if err != nil {
			return errors.NewInvalidArgumentError("invalid proxy endpoint %q", s, err)
		}

		tSettings.Proxy.Endpoint = u
		tSettings.Proxy.Enabled = true
	}

	logger := ulogger.New("slpdag", ulogger.WithLevel(tSettings.LogLevel))

	source, err := txstore.NewHTTP(logger, tSettings)
	if err != nil {
		return err
	}
	defer source.Close()

	manager := dagging.NewValidationJobManager(logger)
	defer func() {
		manager.Kill()
		manager.Wait()
	}()

	verdicts := validity.New(0)

	var oracle validator.OracleQuerier

	if tSettings.Proxy.Enabled {
		querier, err := proxy.NewQuerier(logger, tSettings)
		if err != nil {
			return err
		}

		querier.Start()
		defer querier.Stop()

		oracle = querier
	}

	v := validator.New(logger, tSettings, *tokenID, manager, source, verdicts, oracle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if oracle != nil {
		// Let the oracle settle what it can before the graph dig starts.
		done := make(chan struct{})

		if err = v.ConsultOracle(targets, func(int) { close(done) }); err != nil {
			return err
		}

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	results, reason, err := v.ValidateWait(ctx, targets)
	if err != nil {
		return err
	}

	fmt.Printf("job finished: %s\n", reason)

	allValid := true

	for _, txid := range targets {
		fmt.Printf("%s  %s\n", txid.String(), results[txid])

		if results[txid] != dagging.ValidityValid {
			allValid = false
		}
	}

	if reason != dagging.StopReasonDone {
		return errors.NewProcessingError("validation did not settle every target: %s", reason)
	}

	if !allValid {
		return errors.NewTxInvalidError("one or more targets are not valid")
	}

	return nil
}

func decodeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.NewInvalidArgumentError("exactly one raw tx hex argument is required")
	}

	tx, err := bt.NewTxFromString(strings.TrimSpace(c.Args().First()))
	if err != nil {
		return errors.NewInvalidArgumentError("invalid raw transaction", err)
	}

	if len(tx.Outputs) == 0 {
		return errors.NewTxInvalidError("transaction has no outputs")
	}

	msg, err := slp.ParseSlpOutputScript(tx.Outputs[0].LockingScript)
	if err != nil {
		return err
	}

	fmt.Printf("txid:       %s\n", tx.TxID())
	fmt.Printf("token type: %d\n", msg.TokenType)
	fmt.Printf("tx type:    %s\n", msg.Type)

	switch msg.Type {
	case slp.TxTypeGenesis:
		fmt.Printf("ticker:     %s\n", msg.Ticker)
		fmt.Printf("name:       %s\n", msg.Name)
		fmt.Printf("doc url:    %s\n", msg.DocumentURL)

		if len(msg.DocumentHash) > 0 {
			fmt.Printf("doc hash:   %s\n", hex.EncodeToString(msg.DocumentHash))
		}

		fmt.Printf("decimals:   %d\n", msg.Decimals)
		fmt.Printf("baton vout: %d\n", msg.MintBatonVout)
		fmt.Printf("quantity:   %d\n", msg.Quantity)
	case slp.TxTypeMint:
		fmt.Printf("token id:   %s\n", msg.TokenID.String())
		fmt.Printf("baton vout: %d\n", msg.MintBatonVout)
		fmt.Printf("quantity:   %d\n", msg.Quantity)
	case slp.TxTypeSend:
		fmt.Printf("token id:   %s\n", msg.TokenID.String())

		for i, amt := range msg.Amounts {
			fmt.Printf("amount %2d:  %d\n", i+1, amt)
		}
	}

	return nil
}
