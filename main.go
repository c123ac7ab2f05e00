package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"lead-harvester/classifier"
	"lead-harvester/config"
	"lead-harvester/models"
	"lead-harvester/pipeline"
	"lead-harvester/scraper"
	"lead-harvester/services"
	"lead-harvester/storage"
	"lead-harvester/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// run executes one invocation. Errors are logged here and returned so every
// deferred Close runs before the process exits.
func run(args []string) error {
	fs := flag.NewFlagSet("lead-harvester", flag.ContinueOnError)
	once := fs.Bool("once", false, "run a single cycle and exit")
	list := fs.Bool("list", false, "print the lead queue by priority and exit")
	reset := fs.Bool("reset", false, "delete all leads, agent listings and seen fingerprints")
	setStatus := fs.String("set-status", "", "update a lead status, e.g. 42=Contacted")
	health := fs.Bool("health", false, "check store and classifier reachability and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := utils.NewLogger()
	defer logger.Sync()
	cfg := config.Load()
	logger.SetDebug(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		return err
	}
	if cfg.DryRun {
		cfg.StoreDriver = "memory"
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open lead store: %v", err)
		if cfg.StoreDriver == "postgres" {
			logger.Error("Make sure Docker is running: docker compose up -d")
		}
		return err
	}
	defer store.Close()

	insights := services.NewInsightService(logger)

	switch {
	case *reset:
		if err := store.Reset(ctx); err != nil {
			logger.Error("Reset failed: %v", err)
			return err
		}
		logger.Info("Lead store cleared")
		return nil
	case *setStatus != "":
		if err := updateStatus(ctx, store, *setStatus); err != nil {
			logger.Error("Status update failed: %v", err)
			return err
		}
		logger.Info("Lead %s updated", *setStatus)
		return nil
	case *list:
		leads, err := store.ListLeadsByPriorityDesc(ctx, 0)
		if err != nil {
			logger.Error("Failed to list leads: %v", err)
			return err
		}
		insights.PrintQueue(insights.Generate(leads))
		return nil
	}

	shutdown := utils.NewShutdown()
	chain := classifier.BuildChain(cfg.LLMProviders, classifier.BackendOptions{
		OllamaURL:         cfg.OllamaURL,
		XAIURL:            cfg.XAIURL,
		XAIAPIKey:         cfg.XAIAPIKey,
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		Timeout:           cfg.LLMTimeout,
	}, logger)
	judge := classifier.New(chain, classifier.Config{
		Model:             cfg.LLMModel,
		Criteria:          cfg.Targets.Criteria,
		ViabilityCriteria: cfg.Targets.ViabilityCriteria,
		PrivateKeywords:   cfg.Targets.PrivateKeywords,
		AgentKeywords:     cfg.Targets.AgentKeywords,
		PhoneRegion:       cfg.PhoneRegion,
	}, logger, shutdown)

	if *health {
		if err := checkHealth(ctx, store, judge); err != nil {
			logger.Error("Health check failed: %v", err)
			return err
		}
		logger.Info("Store and classifier (%s) reachable", chain.Name())
		return nil
	}

	logger.Info("=== Lead harvester starting ===")
	logger.Info("Config: store=%s | parallel URLs: %d | %d req/min | scroll depth: %d | classifier: %s",
		cfg.StoreDriver, cfg.ParallelURLs, cfg.RequestsPerMinute, cfg.ScrollDepth, chain.Name())

	var archive storage.AgentArchive
	if cfg.AgentCSVPath != "" {
		a, err := storage.NewCSVArchive(cfg.AgentCSVPath)
		if err != nil {
			logger.Warn("Agent CSV archive disabled: %v", err)
		} else {
			archive = a
			defer a.Close()
		}
	}

	browser, err := scraper.NewChromeBrowser(scraper.ChromeOptions{
		Headless:  cfg.Headless,
		ChromeBin: cfg.ChromeBin,
	}, logger)
	if err != nil {
		logger.Error("Failed to start browser: %v", err)
		return err
	}

	proto := scraper.NewProtocol(judge, scraper.Options{
		NavTimeout:     cfg.NavTimeout,
		ScrollDepth:    cfg.ScrollDepth,
		ScrollDelayMin: cfg.ScrollDelayMin,
		ScrollDelayMax: cfg.ScrollDelayMax,
		SettleDelay:    time.Second,
		Selector:       cfg.Targets.ListingSelector,
		AtHomeLang:     cfg.Targets.AtHome.Lang,
		AtHomeSection:  cfg.Targets.AtHome.Section,
	}, logger, shutdown)

	orch := pipeline.New(pipeline.OptionsFrom(cfg), pipeline.Deps{
		Browser:  browser,
		Registry: scraper.NewRegistry(proto),
		Judge:    judge,
		Store:    store,
		Side:     storage.NewSideChannel(store, archive, logger),
		Limiter:  utils.NewRateLimiter(cfg.RequestsPerMinute, cfg.DomainBudgets, logger, shutdown),
		Reporter: insights,
		Logger:   logger,
		Shutdown: shutdown,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			logger.Warn("Received %s, finishing current step before exit", sig)
			shutdown.Request()
		case <-shutdown.Done():
		case <-gctx.Done():
			shutdown.Request()
		}
		return nil
	})
	g.Go(func() error {
		defer shutdown.Request()
		if *once {
			defer orch.Close()
			report, err := orch.RunCycle(gctx)
			if err != nil {
				return err
			}
			insights.PrintCycle(report)
			return nil
		}
		return orch.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Fatal: %v", err)
		return err
	}

	leads, err := store.ListLeadsByPriorityDesc(ctx, 0)
	if err != nil {
		logger.Warn("Failed to fetch leads for the queue overview: %v", err)
		return nil
	}
	insights.PrintQueue(insights.Generate(leads))
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.LeadStore, error) {
	if cfg.StoreDriver == "memory" {
		return storage.NewMemoryStore(), nil
	}
	return storage.NewPostgresStore(ctx, cfg.DSN())
}

// updateStatus applies "id=status".
func updateStatus(ctx context.Context, store storage.LeadStore, arg string) error {
	idStr, statusStr, ok := strings.Cut(arg, "=")
	if !ok {
		return fmt.Errorf("expected id=status, got %q", arg)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		return fmt.Errorf("bad lead id %q: %w", idStr, err)
	}
	status, err := models.ParseLeadStatus(statusStr)
	if err != nil {
		return err
	}
	return store.UpdateLeadStatus(ctx, id, status)
}

func checkHealth(ctx context.Context, store storage.LeadStore, judge *classifier.Classifier) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var errs []error
	if err := store.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := judge.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("classifier: %w", err))
	}
	return errors.Join(errs...)
}
