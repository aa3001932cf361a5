package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/harunnryd/navi/internal/adapter"
	"github.com/harunnryd/navi/internal/agenda"
	"github.com/harunnryd/navi/internal/concurrency"
	"github.com/harunnryd/navi/internal/config"
	"github.com/harunnryd/navi/internal/idempotency"
	"github.com/harunnryd/navi/internal/model"
	"github.com/harunnryd/navi/internal/oracle"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/scheduler"
	"github.com/harunnryd/navi/internal/store"
	"github.com/harunnryd/navi/internal/tool"

	// Registers the agenda tools the oracle can call.
	_ "github.com/harunnryd/navi/internal/tool/builtin"
)

const (
	processedMessagesFile = "processed_messages.json"
	processedMessagesTTL  = 24 * time.Hour
)

// Stores are the on-disk collaborators. Commands that only read or edit
// documents need nothing else.
type Stores struct {
	Root            string
	Users           *store.UserStore
	Registry        *registry.Registry
	LinkCodes       *registry.LinkCodes
	DefaultLocation *time.Location
}

func OpenStores(cfg *config.Config) (*Stores, error) {
	root, err := store.ResolveDataRoot(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}
	lockCfg, err := store.FileLockConfigFrom(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store lock config: %w", err)
	}
	ttl, err := config.DurationOrDefault(cfg.Data.LinkCodeTTL, config.DefaultDataLinkCodeTTL)
	if err != nil {
		return nil, fmt.Errorf("link code ttl: %w", err)
	}

	registryFile := cfg.Data.RegistryFile
	if registryFile == "" {
		registryFile = filepath.Join(root, config.DefaultDataRegistryFile)
	}
	linkCodeFile := cfg.Data.LinkCodeFile
	if linkCodeFile == "" {
		linkCodeFile = filepath.Join(root, config.DefaultDataLinkCodeFile)
	}

	return &Stores{
		Root:            root,
		Users:           store.NewUserStore(root, lockCfg, concurrency.NewKeyedLocker()),
		Registry:        registry.New(registryFile, lockCfg),
		LinkCodes:       registry.NewLinkCodes(linkCodeFile, ttl, lockCfg),
		DefaultLocation: agenda.ResolveLocation(cfg.Scheduler.DefaultTimezone, time.Local),
	}, nil
}

// RuntimeComponents is everything the loops need, wired but not started.
// The daemon starts the adapters and loops through its own components.
type RuntimeComponents struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Config *config.Config
	*Stores

	Router       *model.DefaultModelRouter
	ToolRegistry *tool.Registry
	ToolRunner   *tool.Runner
	Oracle       *oracle.LLMOracle
	AdapterMgr   *adapter.RuntimeManager
	Delivery     scheduler.Deliverer

	Checkin    *scheduler.CheckinLoop
	Reflection *scheduler.ReflectionLoop
}

func NewRuntimeComponents(ctx context.Context, cfg *config.Config, opts Options) (*RuntimeComponents, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	components := &RuntimeComponents{
		Ctx:    ctx,
		Cancel: cancel,
		Config: cfg,
	}

	stores, err := OpenStores(cfg)
	if err != nil {
		components.cleanup()
		return nil, err
	}
	components.Stores = stores

	router, err := model.NewModelRouter(cfg.Models)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("init model router: %w", err)
	}
	components.Router = router

	toolRegistry, err := tool.NewBuiltinRegistry(tool.BuiltinOptions{
		DefaultLocation: stores.DefaultLocation,
		Disabled:        cfg.Oracle.DisabledTools,
	})
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("init tools: %w", err)
	}
	components.ToolRegistry = toolRegistry
	components.ToolRunner = tool.NewRunner(toolRegistry)

	llm, err := oracle.NewLLMOracle(router, components.ToolRunner, cfg.Models.Default, cfg.Oracle)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("init oracle: %w", err)
	}
	components.Oracle = llm

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	seen, err := idempotency.NewStore(filepath.Join(stores.Root, processedMessagesFile))
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("open processed message ids: %w", err)
	}
	commands := adapter.NewCommands(stores.Registry, stores.LinkCodes, stores.Users).WithDedup(seen, processedMessagesTTL)
	adapterMgr, err := adapter.NewRuntimeManager(cfg.Adapters, cfg.Delivery, commands.Handle, adapter.RuntimeAdapterOptions{
		IncludeCLI:  true,
		CLIOutput:   output,
		IncludeNull: opts.IncludeNull,
	})
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("init adapters: %w", err)
	}
	components.AdapterMgr = adapterMgr

	components.Delivery = adapterMgr
	if opts.Local {
		components.Delivery = terminalDelivery{cli: adapter.NewCLIAdapter(output)}
	}

	deps := scheduler.Deps{
		Users:           stores.Users,
		Registry:        stores.Registry,
		Oracle:          llm,
		Delivery:        components.Delivery,
		DefaultLocation: stores.DefaultLocation,
	}
	components.Checkin, err = scheduler.NewCheckinLoop(deps, cfg.Scheduler)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("init checkin loop: %w", err)
	}
	components.Reflection, err = scheduler.NewReflectionLoop(deps, cfg.Scheduler)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("init reflection loop: %w", err)
	}

	slog.Debug("Runtime components initialized", "data_root", stores.Root, "models", router.ListModels())
	return components, nil
}

func (r *RuntimeComponents) Stop() {
	r.Cancel()
	if r.AdapterMgr != nil {
		if err := r.AdapterMgr.Stop(context.Background()); err != nil {
			slog.Warn("Failed to stop adapter manager", "error", err)
		}
	}
}

func (r *RuntimeComponents) cleanup() {
	slog.Debug("Cleaning up runtime components...")
	r.Stop()
}

// terminalDelivery prints every message instead of sending it.
type terminalDelivery struct {
	cli *adapter.CLIAdapter
}

func (d terminalDelivery) Deliver(ctx context.Context, channel, address, text string) error {
	return d.cli.Send(ctx, address, text)
}
