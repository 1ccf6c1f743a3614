package commands

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vsinha/podsync/pkg/application/services/ingestion"
	"github.com/vsinha/podsync/pkg/application/services/resolver"
	"github.com/vsinha/podsync/pkg/application/services/synchronization"
	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
	"github.com/vsinha/podsync/pkg/domain/services"
	"github.com/vsinha/podsync/pkg/infrastructure/repositories/feed"
	"github.com/vsinha/podsync/pkg/infrastructure/repositories/memory"
	mongorepo "github.com/vsinha/podsync/pkg/infrastructure/repositories/mongo"
	"github.com/vsinha/podsync/pkg/interfaces/cli/output"
)

// Store backends selectable with -store
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Config holds configuration for the podsync command
type Config struct {
	Command string

	Store     string
	PodsFile  string
	ItemsFile string
	MongoURI  string
	MongoDB   string

	FeedFile    string
	PodBarcode  string
	PodType     string
	Face        string
	StockCode   string
	StockPrefix string
	Status      string
	BinID       string
	BinPrefix   string
	Strategy    string

	OutputDir string
	Format    string
	Verbose   bool
	Help      bool

	// Out receives command output; stdout when nil
	Out io.Writer
}

// PodSyncCommand dispatches the podsync subcommands
type PodSyncCommand struct {
	config Config
	logger *log.Logger
}

// NewPodSyncCommand creates a new command with the given configuration
func NewPodSyncCommand(config Config) *PodSyncCommand {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.Store == "" {
		config.Store = StoreMemory
	}
	return &PodSyncCommand{
		config: config,
		logger: log.New(os.Stderr, "podsync ", log.LstdFlags),
	}
}

// stores bundles the repositories a subcommand runs against
type stores struct {
	items repositories.ItemRepository
	pods  repositories.PodRepository
	close func()
}

// Execute runs the configured subcommand
func (c *PodSyncCommand) Execute(ctx context.Context) error {
	if c.config.Help || c.config.Command == "" || c.config.Command == "help" {
		c.showHelp()
		return nil
	}

	// layout needs no store
	if c.config.Command == "layout" {
		return c.runLayout()
	}

	st, err := c.openStores(ctx)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer st.close()

	switch c.config.Command {
	case "ingest":
		return c.runIngest(ctx, st)
	case "sync":
		return c.runSync(ctx, st)
	case "resolve":
		return c.runResolve(ctx, st)
	case "check":
		return c.runCheck(ctx, st)
	default:
		return fmt.Errorf("unknown command %q (run with -help for usage)", c.config.Command)
	}
}

func (c *PodSyncCommand) outputConfig() output.Config {
	return output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
		Out:       c.config.Out,
	}
}

func (c *PodSyncCommand) progress(format string, args ...interface{}) {
	if c.config.Verbose {
		fmt.Fprintf(c.config.Out, format, args...)
	}
}

func (c *PodSyncCommand) runLayout() error {
	if c.config.PodType == "" {
		return fmt.Errorf("validation error: layout requires -type")
	}

	podType := entities.PodType(c.config.PodType)
	faces := []string{c.config.Face}
	if c.config.Face == "" {
		faces = services.LayoutFaces(podType)
		if len(faces) == 0 {
			return fmt.Errorf("pod type %q: %w", c.config.PodType, entities.ErrInvalidLayout)
		}
	}

	for _, face := range faces {
		specs, err := services.GenerateLayout(podType, face)
		if err != nil {
			return err
		}
		if err := output.Layout(podType, entities.NormalizeFaceLetter(face), specs, c.outputConfig()); err != nil {
			return fmt.Errorf("error generating output: %w", err)
		}
	}
	return nil
}

func (c *PodSyncCommand) runIngest(ctx context.Context, st *stores) error {
	if c.config.FeedFile == "" {
		return fmt.Errorf("validation error: ingest requires -feed")
	}

	c.progress("📂 Loading feed %s...\n", c.config.FeedFile)
	rows, err := feed.NewLoader().LoadFeed(c.config.FeedFile)
	if err != nil {
		return fmt.Errorf("error loading feed: %w", err)
	}
	c.progress("✅ %d rows loaded\n\n", len(rows))

	reconciler := ingestion.NewReconciler(st.items, nil, c.logger)
	result, err := reconciler.Reconcile(ctx, rows)
	if err != nil {
		return fmt.Errorf("error reconciling feed: %w", err)
	}

	if err := output.Reconcile(result, c.outputConfig()); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}
	return result.Err()
}

func (c *PodSyncCommand) runSync(ctx context.Context, st *stores) error {
	engine := synchronization.NewEngine(st.items, st.pods, nil, c.logger)

	if c.config.PodBarcode != "" {
		startTime := time.Now()
		result, err := engine.SyncPod(ctx, c.config.PodBarcode)
		if err != nil {
			return fmt.Errorf("error syncing pod %s: %w", c.config.PodBarcode, err)
		}
		c.progress("✅ Pod synced in %v\n\n", time.Since(startTime))
		if err := output.PodSync(result, c.outputConfig()); err != nil {
			return fmt.Errorf("error generating output: %w", err)
		}
		return nil
	}

	c.progress("🔄 Syncing all pods...\n")
	result, err := engine.SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("error running sync: %w", err)
	}
	if err := output.SyncAll(result, c.outputConfig()); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}
	return result.Err()
}

func (c *PodSyncCommand) runResolve(ctx context.Context, st *stores) error {
	strategy, err := resolver.ParseStrategy(c.config.Strategy)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	filter := resolver.LocateFilter{
		Items: repositories.ItemFilter{
			StockCode:       c.config.StockCode,
			StockCodePrefix: c.config.StockPrefix,
		},
		PodBarcode:  c.config.PodBarcode,
		FaceLetter:  c.config.Face,
		BinID:       c.config.BinID,
		BinIDPrefix: c.config.BinPrefix,
	}
	if c.config.Status != "" {
		status, err := entities.ParseItemStatus(c.config.Status)
		if err != nil {
			return fmt.Errorf("validation error: %w", err)
		}
		filter.Items.Status = status
	}

	r := resolver.NewResolver(st.items, st.pods, c.logger)
	startTime := time.Now()
	located, err := r.ResolveWith(ctx, strategy, filter)
	if err != nil {
		return fmt.Errorf("error resolving items: %w", err)
	}
	c.progress("✅ Resolved with strategy %s in %v\n\n", strategy, time.Since(startTime))

	if err := output.Located(located, c.outputConfig()); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}
	return nil
}

func (c *PodSyncCommand) runCheck(ctx context.Context, st *stores) error {
	barcodes, err := st.pods.Barcodes(ctx)
	if err != nil {
		return fmt.Errorf("error listing pods: %w", err)
	}

	pods := make([]*entities.Pod, 0, len(barcodes))
	for _, barcode := range barcodes {
		pod, err := st.pods.Get(ctx, barcode)
		if err != nil {
			return fmt.Errorf("error loading pod %s: %w", barcode, err)
		}
		pods = append(pods, pod)
	}

	items, err := st.items.Find(ctx, repositories.ItemFilter{})
	if err != nil {
		return fmt.Errorf("error loading items: %w", err)
	}

	report := services.NewIntegrityChecker().Check(pods, items)
	if err := output.Integrity(report, c.outputConfig()); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}
	if !report.Clean() {
		return fmt.Errorf("integrity check found %d issues", len(report.Issues()))
	}
	return nil
}

func (c *PodSyncCommand) openStores(ctx context.Context) (*stores, error) {
	switch c.config.Store {
	case StoreMemory:
		return c.openMemoryStores()
	case StoreMongo:
		return c.openMongoStores(ctx)
	default:
		return nil, fmt.Errorf("unsupported store %q (expected memory or mongo)", c.config.Store)
	}
}

func (c *PodSyncCommand) openMemoryStores() (*stores, error) {
	loader := feed.NewLoader()
	itemRepo := memory.NewItemRepository(0)
	podRepo := memory.NewPodRepository()

	if c.config.ItemsFile != "" {
		items, err := loader.LoadItems(c.config.ItemsFile)
		if err != nil {
			return nil, fmt.Errorf("error loading items: %w", err)
		}
		if err := itemRepo.LoadItems(items); err != nil {
			return nil, fmt.Errorf("failed to load items into repository: %w", err)
		}
		c.progress("  Items: %d\n", len(items))
	}

	if c.config.PodsFile != "" {
		pods, err := loader.LoadPods(c.config.PodsFile)
		if err != nil {
			return nil, fmt.Errorf("error loading pods: %w", err)
		}
		podRepo.LoadPods(pods)
		c.progress("  Pods: %d\n", len(pods))
	}

	return &stores{items: itemRepo, pods: podRepo, close: func() {}}, nil
}

func (c *PodSyncCommand) openMongoStores(ctx context.Context) (*stores, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongodriver.Connect(connectCtx, options.Client().ApplyURI(c.config.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	c.progress("Connected to MongoDB %s\n", c.config.MongoDB)

	db := client.Database(c.config.MongoDB)
	return &stores{
		items: mongorepo.NewItemRepository(db),
		pods:  mongorepo.NewPodRepository(db),
		close: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				c.logger.Printf("Failed to disconnect from MongoDB: %v", err)
			}
		},
	}, nil
}

// showHelp displays the help message
func (c *PodSyncCommand) showHelp() {
	fmt.Fprintf(c.config.Out, `podsync - pod structure synchronization for bin-based warehouses

USAGE:
    podsync <command> [options]

COMMANDS:
    layout      Print the generated bins for a pod type and face
    ingest      Reconcile a CSV or XLSX feed into the item store
    sync        Rebuild pod bins from the item store
    resolve     Locate items in pods
    check       Report divergence between pods and the item store

STORE OPTIONS:
    -store <name>       Backend: memory or mongo (default: memory)
    -pods <file>        Pod documents JSON for the memory store
    -items <file>       Items CSV for the memory store
    -mongo-uri <uri>    MongoDB connection string (default: mongodb://localhost:27017)
    -mongo-db <name>    MongoDB database (default: podsync)

COMMAND OPTIONS:
    -type <type>        Pod type: H8, H10, H11, H12 (layout)
    -face <letter>      Face letter (layout, resolve)
    -feed <file>        Feed file, .csv or .xlsx (ingest)
    -pod <barcode>      Restrict to one pod (sync, resolve)
    -stock <code>       Exact stock code (resolve)
    -stock-prefix <p>   Stock code prefix (resolve)
    -status <status>    available, missing or hunting (resolve)
    -bin <id>           Exact bin id (resolve)
    -bin-prefix <p>     Bin id prefix (resolve)
    -strategy <name>    join, pod or auto (resolve, default: auto)

OUTPUT OPTIONS:
    -format <fmt>       Output format: text, json (default: text)
    -output <dir>       Write JSON results to this directory
    -verbose            Enable verbose output
    -help               Show this help message

FILE FORMATS:

items.csv:
    stock_code,u_bin_id,status,quantity
    STK-001,U-0001-A_BIN_1A,available,1

feed (csv or first sheet of xlsx, header aliases accepted):
    stock_code,u_bin_id,location_barcode
    SKU1,P-6-R326Q053,HB12345678901 (moved)

EXAMPLES:
    # Show the H10 face A grid
    podsync layout -type H10 -face A

    # Reconcile a feed into MongoDB
    podsync ingest -store mongo -feed rows.xlsx -verbose

    # Rebuild every pod from local fixtures
    podsync sync -pods pods.json -items items.csv

    # Locate missing items on one pod face
    podsync resolve -store mongo -pod HB12345678901 -face A -status missing

    # Integrity report as JSON
    podsync check -store mongo -format json -output results/
`)
}
