package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"portfolioexecutor/cmd/serve"
	"portfolioexecutor/cmd/simulate"
	"portfolioexecutor/src/allocator"
	"portfolioexecutor/src/auth"
	"portfolioexecutor/src/execution"
	"portfolioexecutor/src/utils"
)

var Version string

func main() {
	utils.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	app := cli.NewApp()
	app.Name = "Portfolio Executor CMD"
	app.Usage = "The portfolio executor command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		simulateCMD,
		allocateCMD,
		recommendCMD,
		hashTokenCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the portfolio executor service",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the ledger with its HTTP API, tick feed, signal inbox and event sinks`,
	}
	simulateCMD = cli.Command{
		Name:      "simulate",
		Usage:     "run an offline demo session",
		Action:    simulateAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.Uint64Flag{Name: "seed", Value: 42, Usage: "execution noise seed"},
		},
		Description: `Open, mark and close demo positions against an in-memory ledger and print the reports`,
	}
	allocateCMD = cli.Command{
		Name:      "allocate",
		Usage:     "compute capital allocations",
		Action:    allocateAction,
		ArgsUsage: "name[=value] ...",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "method", Value: "equal", Usage: "equal, risk-parity, performance or kelly"},
			cli.Float64Flag{Name: "total", Value: 500000, Usage: "total capital"},
			cli.Float64Flag{Name: "win-rate", Value: 50, Usage: "kelly: win rate in percent"},
			cli.Float64Flag{Name: "avg-win", Usage: "kelly: average win"},
			cli.Float64Flag{Name: "avg-loss", Usage: "kelly: average loss"},
		},
		Description: `equal takes strategy names, risk-parity takes name=volatility and
performance takes name=winRate:avgReturn:sharpe`,
	}
	recommendCMD = cli.Command{
		Name:      "recommend",
		Usage:     "recommend an execution algorithm",
		Action:    recommendAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.Int64Flag{Name: "size", Usage: "order quantity"},
			cli.Float64Flag{Name: "adv", Usage: "average daily volume"},
			cli.Float64Flag{Name: "volatility", Value: 1.5, Usage: "daily volatility in percent"},
			cli.StringFlag{Name: "urgency", Value: "normal", Usage: "low, normal or high"},
		},
		Description: `Print the slicing algorithm, its parameters and the estimated market impact`,
	}
	hashTokenCMD = cli.Command{
		Name:        "hash-token",
		Usage:       "hash an API token for API_TOKEN_HASHES",
		Action:      hashTokenAction,
		ArgsUsage:   "token",
		Flags:       []cli.Flag{},
		Description: `Print the bcrypt hash of an API bearer token`,
	}
)

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting serve CMD")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	service := &serve.Service{Log: logrus.WithField("cmd", "serve")}
	if err := service.Start(ctx); err != nil {
		logrus.WithError(err).Error("serve stopped with error")
		return err
	}
	return nil
}

func simulateAction(c *cli.Context) error {
	logrus.Info("Starting simulate CMD")

	sim := &simulate.Simulation{
		Log:  logrus.WithField("cmd", "simulate"),
		Out:  os.Stdout,
		Seed: c.Uint64("seed"),
		Now:  time.Now,
	}
	if err := sim.Start(context.Background()); err != nil {
		logrus.WithError(err).Error("simulation failed")
		return err
	}
	return nil
}

func allocateAction(c *cli.Context) error {
	return runAllocate(os.Stdout, c.String("method"), c.Float64("total"), c.Args(),
		c.Float64("win-rate"), c.Float64("avg-win"), c.Float64("avg-loss"))
}

func runAllocate(w io.Writer, method string, total float64, args []string, winRate, avgWin, avgLoss float64) error {
	switch method {
	case "kelly":
		kelly := allocator.KellyCriterion(winRate, avgWin, avgLoss)
		fmt.Fprintf(w, "Optimal allocation per trade: %.1f%% (%.2f of %.2f)\n", kelly, total*kelly/100, total)
		return nil

	case "equal":
		if len(args) == 0 {
			return errors.New("equal needs at least one strategy name")
		}
		weights := allocator.EqualWeight(len(args))
		pct := make(map[string]float64, len(args))
		for i, name := range args {
			pct[name] = weights[i]
		}
		simulate.WriteAllocations(w, "EQUAL WEIGHT ALLOCATION", total, pct)
		return nil

	case "risk-parity":
		vols := make(map[string]float64, len(args))
		for _, arg := range args {
			name, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected name=volatility, got %q", arg)
			}
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("volatility for %s: %w", name, err)
			}
			vols[name] = v
		}
		simulate.WriteAllocations(w, "RISK PARITY ALLOCATION", total, allocator.RiskParity(vols))
		return nil

	case "performance":
		perf := make(map[string]allocator.Performance, len(args))
		for _, arg := range args {
			name, p, err := parsePerformance(arg)
			if err != nil {
				return err
			}
			perf[name] = p
		}
		simulate.WriteAllocations(w, "PERFORMANCE-BASED ALLOCATION", total, allocator.PerformanceBased(perf))
		return nil
	}
	return fmt.Errorf("unknown allocation method %q", method)
}

// parsePerformance reads name=winRate:avgReturn:sharpe. An empty win rate
// means unknown.
func parsePerformance(arg string) (string, allocator.Performance, error) {
	var p allocator.Performance
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return "", p, fmt.Errorf("expected name=winRate:avgReturn:sharpe, got %q", arg)
	}
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return "", p, fmt.Errorf("expected name=winRate:avgReturn:sharpe, got %q", arg)
	}

	nums := make([]float64, 3)
	for i, part := range parts {
		if i == 0 && part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return "", p, fmt.Errorf("performance for %s: %w", name, err)
		}
		nums[i] = v
	}
	if parts[0] != "" {
		wr := nums[0]
		p.WinRate = &wr
	}
	p.AvgReturn = nums[1]
	p.SharpeRatio = nums[2]
	return name, p, nil
}

func recommendAction(c *cli.Context) error {
	return runRecommend(os.Stdout, c.Int64("size"), c.Float64("adv"), c.Float64("volatility"), c.String("urgency"))
}

func runRecommend(w io.Writer, size int64, adv, volatility float64, urgency string) error {
	if size <= 0 || adv <= 0 {
		return errors.New("size and adv must be positive")
	}
	rec := execution.NewOptimizer(execution.DefaultBands()).
		Recommend(size, adv, volatility, execution.Urgency(strings.ToLower(urgency)))

	fmt.Fprintf(w, "Algorithm:        %s\n", rec.Algorithm)
	fmt.Fprintf(w, "Reason:           %s\n", rec.Reason)
	fmt.Fprintf(w, "Size vs volume:   %.4f%%\n", rec.SizeVsVolumePct)
	fmt.Fprintf(w, "Estimated impact: %.4f%%\n", rec.EstimatedImpactPct)

	params := describeParams(rec.Params)
	if len(params) > 0 {
		fmt.Fprintf(w, "Params:           %s\n", strings.Join(params, " "))
	}
	return nil
}

func hashTokenAction(c *cli.Context) error {
	hashed, err := auth.HashToken(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(hashed)
	return nil
}

func describeParams(p execution.Params) []string {
	var out []string
	if p.NumSlices > 0 {
		out = append(out, fmt.Sprintf("slices=%d", p.NumSlices))
	}
	if p.DurationMinutes > 0 {
		out = append(out, fmt.Sprintf("duration=%dm", p.DurationMinutes))
	}
	if p.VisibleQuantity > 0 {
		out = append(out, fmt.Sprintf("visible=%d", p.VisibleQuantity))
	}
	if p.VisiblePct > 0 {
		out = append(out, fmt.Sprintf("visible_pct=%g", p.VisiblePct))
	}
	return out
}
