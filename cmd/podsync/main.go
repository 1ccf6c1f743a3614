package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vsinha/podsync/pkg/interfaces/cli/commands"
)

func main() {
	command := ""
	args := os.Args[1:]
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	flags := flag.NewFlagSet("podsync", flag.ExitOnError)
	var (
		store       = flags.String("store", commands.StoreMemory, "Store backend: memory or mongo")
		podsFile    = flags.String("pods", "", "Path to pod documents JSON (memory store)")
		itemsFile   = flags.String("items", "", "Path to items CSV file (memory store)")
		mongoURI    = flags.String("mongo-uri", envOr("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection string")
		mongoDB     = flags.String("mongo-db", envOr("MONGO_DB", "podsync"), "MongoDB database name")
		feedFile    = flags.String("feed", "", "Path to feed file, .csv or .xlsx")
		podBarcode  = flags.String("pod", "", "Pod barcode")
		podType     = flags.String("type", "", "Pod type: H8, H10, H11, H12")
		face        = flags.String("face", "", "Face letter")
		stockCode   = flags.String("stock", "", "Exact stock code")
		stockPrefix = flags.String("stock-prefix", "", "Stock code prefix")
		status      = flags.String("status", "", "Item status: available, missing, hunting")
		binID       = flags.String("bin", "", "Exact bin id")
		binPrefix   = flags.String("bin-prefix", "", "Bin id prefix")
		strategy    = flags.String("strategy", "auto", "Resolve strategy: join, pod, auto")
		outputDir   = flags.String("output", "", "Output directory for results (optional)")
		format      = flags.String("format", "text", "Output format: text, json")
		verbose     = flags.Bool("verbose", false, "Enable verbose output")
		help        = flags.Bool("help", false, "Show help message")
	)

	if err := flags.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Create command configuration
	config := commands.Config{
		Command:     command,
		Store:       *store,
		PodsFile:    *podsFile,
		ItemsFile:   *itemsFile,
		MongoURI:    *mongoURI,
		MongoDB:     *mongoDB,
		FeedFile:    *feedFile,
		PodBarcode:  *podBarcode,
		PodType:     *podType,
		Face:        *face,
		StockCode:   *stockCode,
		StockPrefix: *stockPrefix,
		Status:      *status,
		BinID:       *binID,
		BinPrefix:   *binPrefix,
		Strategy:    *strategy,
		OutputDir:   *outputDir,
		Format:      *format,
		Verbose:     *verbose,
		Help:        *help,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create and execute command
	cmd := commands.NewPodSyncCommand(config)
	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
