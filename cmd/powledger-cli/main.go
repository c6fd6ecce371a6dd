// powledger-cli is a command-line client for interacting with a powledgerd node.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Klingon-tech/powledger/internal/miner"
	"github.com/Klingon-tech/powledger/internal/rpcclient"
	"github.com/Klingon-tech/powledger/pkg/block"
)

var (
	good  = color.New(color.FgGreen, color.Bold).SprintFunc()
	bad   = color.New(color.FgRed, color.Bold).SprintFunc()
	label = color.New(color.FgCyan).SprintFunc()
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Colors only when writing to a terminal.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := "http://127.0.0.1:8545"
	args := os.Args[1:]
globals:
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--no-color":
			color.NoColor = true
			args = args[1:]
		default:
			break globals
		}
	}

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(client)
	case "chain":
		cmdChain(client)
	case "block":
		cmdBlock(client, cmdArgs)
	case "verify":
		cmdVerify(client)
	case "send":
		cmdSend(client, cmdArgs)
	case "pending":
		cmdPending(client)
	case "job":
		cmdJob(client, cmdArgs)
	case "submit":
		cmdSubmit(client, cmdArgs)
	case "mine":
		cmdMine(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: powledger-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8545)
  --no-color          Disable colored output

Commands:
  status                          Show chain status
  chain                           Print the full chain as JSON
  block <index|hash>              Show block details
  verify                          Re-check every block's hash and linkage
  send <sender> <recipient> <amount>
                                  Queue a transaction
  pending                         List pending transactions

  job <address>                   Request a mining job (replaces any outstanding job)
  submit <nonce> [--job <id>]     Submit a nonce for the outstanding job
  mine <address> [--threads n] [--blocks n]
                                  Fetch jobs, search nonces and submit until stopped
`)
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(client *rpcclient.Client) {
	info, err := client.ChainInfo()
	if err != nil {
		fatal("chain_getInfo: %v", err)
	}

	fmt.Printf("%s  %d\n", label("Length:    "), info.Length)
	fmt.Printf("%s  %s\n", label("Latest:    "), info.LatestHash)
	fmt.Printf("%s  %d\n", label("Difficulty:"), info.Difficulty)
	fmt.Printf("%s  %g\n", label("Reward:    "), info.Reward)
	fmt.Printf("%s  %s\n", label("Clear:     "), info.ClearPolicy)
	fmt.Printf("%s  %d\n", label("Pending:   "), info.Pending)
	fmt.Printf("%s  %t\n", label("Job active:"), info.JobActive)
}

// ── chain ───────────────────────────────────────────────────────────────

func cmdChain(client *rpcclient.Client) {
	res, err := client.Chain()
	if err != nil {
		fatal("chain_getChain: %v", err)
	}
	printJSON(res)
}

// ── block ───────────────────────────────────────────────────────────────

func cmdBlock(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: powledger-cli block <index|hash>")
	}

	var (
		blk *block.Block
		err error
	)
	// Try as index first (pure number).
	if index, parseErr := strconv.ParseUint(args[0], 10, 64); parseErr == nil {
		blk, err = client.BlockByIndex(index)
	} else {
		blk, err = client.BlockByHash(args[0])
	}
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("%s %d\n", label("Index:       "), blk.Index)
	fmt.Printf("%s %s\n", label("Hash:        "), blk.Hash)
	fmt.Printf("%s %s\n", label("Previous:    "), blk.PreviousHash)
	fmt.Printf("%s %d\n", label("Nonce:       "), blk.Nonce)
	fmt.Printf("%s %s\n", label("Miner:       "), blk.Miner)
	fmt.Printf("%s %s\n", label("Timestamp:   "), blk.Time().UTC().Format("2006-01-02 15:04:05.000 UTC"))
	fmt.Printf("%s %d\n", label("Transactions:"), len(blk.Transactions))
	for i, t := range blk.Transactions {
		fmt.Printf("  [%d] %s -> %s  %g\n", i, t.Sender, t.Recipient, t.Amount)
	}
}

// ── verify ──────────────────────────────────────────────────────────────

func cmdVerify(client *rpcclient.Client) {
	res, err := client.Verify()
	if err != nil {
		fatal("chain_verify: %v", err)
	}
	if res.Valid {
		fmt.Printf("%s (%d blocks)\n", good("Chain valid"), res.Length)
		return
	}
	fmt.Printf("%s: %s\n", bad("Chain invalid"), res.Error)
	os.Exit(2)
}

// ── send / pending ──────────────────────────────────────────────────────

func cmdSend(client *rpcclient.Client, args []string) {
	if len(args) != 3 {
		fatal("Usage: powledger-cli send <sender> <recipient> <amount>")
	}
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fatal("invalid amount %q: %v", args[2], err)
	}

	res, err := client.SubmitTransaction(args[0], args[1], amount)
	if err != nil {
		fatal("tx_submit: %v", err)
	}
	fmt.Println(good(res.Message))
	fmt.Printf("%s %s\n", label("TxID:"), res.TxID)
}

func cmdPending(client *rpcclient.Client) {
	res, err := client.Pending()
	if err != nil {
		fatal("mempool_getContent: %v", err)
	}
	fmt.Printf("%s %d\n", label("Pending:"), res.Count)
	for i, t := range res.Transactions {
		fmt.Printf("  [%d] %s -> %s  %g\n", i, t.Sender, t.Recipient, t.Amount)
	}
}

// ── mining ──────────────────────────────────────────────────────────────

func cmdJob(client *rpcclient.Client, args []string) {
	if len(args) != 1 {
		fatal("Usage: powledger-cli job <address>")
	}
	job, err := client.GetJob(args[0])
	if err != nil {
		fatal("mining_getJob: %v", err)
	}
	// Output as JSON for external miner consumption.
	printJSON(job)
}

func cmdSubmit(client *rpcclient.Client, args []string) {
	fs := pflag.NewFlagSet("submit", pflag.ExitOnError)
	jobID := fs.String("job", "", "Only accept the nonce for this job ID")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fatal("Usage: powledger-cli submit <nonce> [--job <id>]")
	}
	nonce, err := strconv.ParseUint(fs.Arg(0), 10, 64)
	if err != nil {
		fatal("invalid nonce %q: %v", fs.Arg(0), err)
	}

	var res *miner.Result
	if *jobID != "" {
		id, parseErr := uuid.Parse(*jobID)
		if parseErr != nil {
			fatal("invalid job id %q: %v", *jobID, parseErr)
		}
		res, err = client.SubmitSolutionFor(id, nonce)
	} else {
		res, err = client.SubmitSolution(nonce)
	}
	if err != nil {
		fatal("mining_submitSolution: %v", err)
	}

	if !res.Accepted {
		fmt.Println(bad("Nonce rejected; the job was discarded. Request a new job."))
		os.Exit(2)
	}
	fmt.Println(good("Block accepted!"))
	fmt.Printf("  %s %s\n", label("Hash: "), res.Hash)
	fmt.Printf("  %s %d\n", label("Index:"), res.Index)
}

func cmdMine(client *rpcclient.Client, args []string) {
	fs := pflag.NewFlagSet("mine", pflag.ExitOnError)
	threads := fs.IntP("threads", "t", 1, "Parallel search goroutines")
	blocks := fs.IntP("blocks", "n", 0, "Stop after this many accepted blocks (0 = until interrupted)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fatal("Usage: powledger-cli mine <address> [--threads n] [--blocks n]")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := miner.NewWorker(client, fs.Arg(0), *threads)
	w.OnBlock = func(job *miner.Job, res *miner.Result, elapsed time.Duration) {
		fmt.Printf("%s block %d  %s  (%s)\n",
			good("Mined"), res.Index, res.Hash, elapsed.Round(time.Millisecond))
	}

	fmt.Printf("Mining for %s with %d thread(s)...\n", fs.Arg(0), *threads)
	mined, err := w.Run(ctx, *blocks)
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal("mine: %v", err)
	}
	fmt.Printf("%s %d block(s)\n", label("Total:"), mined)
}

// ── Helpers ─────────────────────────────────────────────────────────────

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("marshal result: %v", err)
	}
	fmt.Println(string(data))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]interface{}{bad("Error:")}, args...)...)
	os.Exit(1)
}
