package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/lukehollenback/neutrino/config"
	"github.com/lukehollenback/neutrino/constants"
	"github.com/lukehollenback/neutrino/exchange"
	"github.com/lukehollenback/neutrino/neutrino"
	"github.com/lukehollenback/neutrino/stream"
	"github.com/lukehollenback/neutrino/writer"
)

const usage = `Usage:
  neutrino [flags] get accounts|account <id>|ledger <id>|orders|transfers|fees|candles <product>
  neutrino [flags] stream <product>...

Flags:
`

var (
	cfgFile         *string
	cfgCSV          *string
	cfgExcludeEmpty *bool
	cfgGranularity  *string
	cfgStart        *string
	cfgEnd          *string
	cfgDescending   *bool
	cfgTimeout      *time.Duration
	cfgBestEffort   *bool
	cfgChannels     *string
)

func init() {
	cfgFile = flag.String("config", "", "Path to a YAML settings file. Defaults are used when omitted.")
	cfgCSV = flag.String("csv", "", "Path to a CSV file that streamed ticker messages should be written to.")
	cfgExcludeEmpty = flag.Bool("exclude-empty", true, "Whether or not accounts with a zero balance should be left out.")
	cfgGranularity = flag.String("granularity", "1h", "Candle granularity (1m, 5m, 15m, 1h, 6h, 1d).")
	cfgStart = flag.String("start", "", fmt.Sprintf("Start of the candle range, in local time (%s).", constants.TimeFormat))
	cfgEnd = flag.String("end", "", fmt.Sprintf("End of the candle range, in local time (%s).", constants.TimeFormat))
	cfgDescending = flag.Bool("descending", false, "Whether or not candles should be listed newest first.")
	cfgTimeout = flag.Duration("timeout", 0, "Per-request timeout. The configured default is used when zero.")
	cfgBestEffort = flag.Bool("best-effort", false, "Whether or not paginated pulls should keep the records gathered before a failure.")
	cfgChannels = flag.String("channels", "ticker", "Comma-separated feed channels to subscribe to.")

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	//
	// Load the configuration and build the coordinator from it.
	//
	cfg := config.Default()

	if *cfgFile != "" {
		var err error

		cfg, err = config.Load(*cfgFile)
		if err != nil {
			log.Fatalf("Failed to load the configuration. (Error: %s)", err)
		}
	}

	n, err := neutrino.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize. (Error: %s)", err)
	}

	//
	// Register a kill signal handler with the operating system so that we can gracefully shutdown if
	// necessary.
	//
	osInterrupt := make(chan os.Signal, 1)

	signal.Notify(osInterrupt, os.Interrupt)

	switch args[0] {
	case "get":
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			select {
			case <-osInterrupt:
				log.Print("An operating system interrupt has been received. Canceling...")
				cancel()
			case <-ctx.Done():
			}
		}()

		err = get(ctx, n, args[1:])

		cancel()

	case "stream":
		err = streamTickers(n, args[1:], osInterrupt)

	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}

	if closeErr := n.Close(); closeErr != nil {
		log.Printf("Failed to shut down cleanly. (Error: %s)", closeErr)
	}

	if err != nil {
		log.Fatalf("Failed. (Error: %s)", err)
	}

	log.Print("Goodbye.")
}

func callOptions() []exchange.CallOption {
	var opts []exchange.CallOption

	if *cfgTimeout > 0 {
		opts = append(opts, exchange.Timeout(*cfgTimeout))
	}

	if *cfgBestEffort {
		opts = append(opts, exchange.BestEffort())
	}

	return opts
}

func get(ctx context.Context, n *neutrino.Neutrino, args []string) error {
	if len(args) == 0 {
		return errors.New("get needs a resource")
	}

	opts := callOptions()

	var (
		ret any
		err error
	)

	switch args[0] {
	case "accounts":
		var accounts []exchange.Account

		accounts, err = n.Accounts(ctx, nil, opts...)
		if *cfgExcludeEmpty {
			accounts = exchange.NonEmptyAccounts(accounts)
		}

		ret = accounts

	case "account":
		if len(args) < 2 {
			return errors.New("get account needs an account id")
		}

		ret, err = n.Account(ctx, args[1], opts...)

	case "ledger":
		if len(args) < 2 {
			return errors.New("get ledger needs an account id")
		}

		ret, err = n.Ledger(ctx, args[1], nil, opts...)

	case "orders":
		ret, err = n.Orders(ctx, nil, opts...)

	case "transfers":
		ret, err = n.Transfers(ctx, nil, opts...)

	case "fees":
		ret, err = n.Fees(ctx, opts...)

	case "candles":
		if len(args) < 2 {
			return errors.New("get candles needs a product id")
		}

		return printCandles(ctx, n, args[1], opts)

	default:
		return fmt.Errorf("unknown resource %q", args[0])
	}

	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(ret, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}

func printCandles(ctx context.Context, n *neutrino.Neutrino, productID string, opts []exchange.CallOption) error {
	granularity, err := exchange.ParseGranularity(*cfgGranularity)
	if err != nil {
		return err
	}

	var r exchange.TimeRange

	if r.Start, err = parseLocal(*cfgStart); err != nil {
		return err
	}

	if r.End, err = parseLocal(*cfgEnd); err != nil {
		return err
	}

	candles, err := n.Candles(ctx, exchange.CandleQuery{
		ProductID:   productID,
		Granularity: granularity,
		Range:       r,
		Descending:  *cfgDescending,
	}, opts...)
	if err != nil {
		return err
	}

	for _, v := range candles {
		fmt.Println(v)
	}

	return nil
}

func parseLocal(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	return time.ParseInLocation(constants.TimeFormat, raw, time.Local)
}

//
// streamTickers prints every ticker of the provided products until the operating system interrupts
// us or the feed connection drops.
//
func streamTickers(n *neutrino.Neutrino, productIDs []string, osInterrupt <-chan os.Signal) error {
	if len(productIDs) == 0 {
		return errors.New("stream needs at least one product id")
	}

	const name = "cli"

	sub := stream.Subscription{
		Channels:   strings.Split(*cfgChannels, ","),
		ProductIDs: productIDs,
	}

	if err := n.ConfigureStream(name, sub); err != nil {
		return err
	}

	//
	// Start up the CSV writer, if one was asked for.
	//
	var csvWriter *writer.Service

	if *cfgCSV != "" {
		csvWriter = writer.New(*cfgCSV)

		chStarted, err := csvWriter.Start()
		if err != nil {
			return err
		}

		<-chStarted
	}

	printer := newTickerPrinter(os.Stdout)
	chFault := make(chan error, 1)

	handler := func(msg stream.Message) {
		printer.Handle(msg)

		if csvWriter != nil {
			csvWriter.Handle(msg)
		}

		if msg.Kind == stream.Fault {
			chFault <- msg.Err
		}
	}

	if err := n.StartStream(context.Background(), name, handler); err != nil {
		return err
	}

	//
	// Block until we are shut down by the operating system or the connection is lost.
	//
	var err error

	select {
	case <-osInterrupt:
		log.Print("An operating system interrupt has been received. Shutting down...")

		chStopped, stopErr := n.StopStream(name)
		if stopErr != nil {
			return stopErr
		}

		<-chStopped

	case err = <-chFault:
	}

	if csvWriter != nil {
		chStopped, stopErr := csvWriter.Stop()
		if stopErr != nil {
			return stopErr
		}

		<-chStopped
	}

	return err
}
