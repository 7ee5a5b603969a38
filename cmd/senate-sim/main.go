package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"go-senate-sim/internal/config"
	"go-senate-sim/internal/debate"
	"go-senate-sim/internal/eventbus"
	"go-senate-sim/internal/memory"
	"go-senate-sim/internal/senator"
	"go-senate-sim/internal/session"
	"go-senate-sim/internal/textgen"
)

var (
	cfgPath string
	topic   string
	rounds  int
)

var rootCmd = &cobra.Command{
	Use:   "senate-sim",
	Short: "Event-driven senate debate simulator",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single debate end to end",
	RunE:  runDebate,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled debates until interrupted",
	RunE:  serve,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	runCmd.Flags().StringVarP(&topic, "topic", "t", "Grain subsidies", "debate topic")
	runCmd.Flags().IntVarP(&rounds, "rounds", "r", 0, "speaking rounds (0 = from config)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// world holds the assembled object graph for one process.
type world struct {
	cfg       *config.Config
	bus       *eventbus.MemoryBus
	registry  *senator.Registry
	manager   *debate.Manager
	driver    *session.Driver
	snapshots *memory.SnapshotStore
}

func buildWorld(logger *log.Logger) (*world, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if len(cfg.Senators) == 0 {
		return nil, fmt.Errorf("no senators configured")
	}

	bus := eventbus.NewMemoryBus(cfg.Bus.HistoryLimit, logger)
	registry := senator.NewRegistry()
	manager := debate.NewManager(bus, registry.RankOf, logger)
	manager.Register()
	gen := textgen.NewFallback(textgen.Static{}, logger)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	for i, sc := range cfg.Senators {
		opts := senator.Options{
			NeutralVotePolicy: senator.NeutralVotePolicy(cfg.Vote.NeutralPolicy),
			FactionOf:         registry.FactionOf,
			Rand:              rand.New(rand.NewSource(seed + int64(i))),
		}
		registry.Add(senator.New(sc.ID, sc.Name, sc.Faction, sc.Rank, bus, gen, nil, opts, logger))
	}

	w := &world{
		cfg:      cfg,
		bus:      bus,
		registry: registry,
		manager:  manager,
		driver: session.NewDriver(bus, manager, registry, gen,
			time.Duration(cfg.Debate.PacingMs)*time.Millisecond, logger),
	}
	if cfg.Redis.Enabled {
		w.snapshots = memory.NewSnapshotStore(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB}, logger)
	}
	return w, nil
}

// restore reloads each senator's memory from its last snapshot.
func (w *world) restore(ctx context.Context, logger *log.Logger) {
	if w.snapshots == nil {
		return
	}
	for _, id := range w.registry.IDs() {
		ag, _ := w.registry.Get(id)
		sen, ok := ag.(*senator.Senator)
		if !ok {
			continue
		}
		ver, err := w.snapshots.Load(ctx, id, sen.Memory())
		if err != nil {
			logger.Printf("memory: restore for %s failed: %v", id, err)
			continue
		}
		if ver > 0 {
			logger.Printf("memory: restored %s from snapshot v%d", id, ver)
		}
	}
}

// persist consolidates and snapshots every senator's memory.
func (w *world) persist(ctx context.Context, logger *log.Logger) {
	for _, id := range w.registry.IDs() {
		ag, _ := w.registry.Get(id)
		sen, ok := ag.(*senator.Senator)
		if !ok {
			continue
		}
		removed := sen.Memory().Consolidate(w.cfg.Memory.MaxItems,
			memory.RetentionPolicy(w.cfg.Memory.RetentionPolicy))
		if removed > 0 {
			logger.Printf("memory: consolidated %d items for %s", removed, id)
		}
		if w.snapshots != nil {
			if _, err := w.snapshots.Save(ctx, id, sen.Memory()); err != nil {
				logger.Printf("memory: snapshot for %s failed: %v", id, err)
			}
		}
	}
}

func runDebate(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	w, err := buildWorld(logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := w.registry.StartAll(ctx); err != nil {
		return err
	}
	defer w.registry.StopAll(ctx)
	w.restore(ctx, logger)

	r := rounds
	if r <= 0 {
		r = w.cfg.Debate.Rounds
	}
	sum, err := w.driver.RunDebate(ctx, topic, r)
	if err != nil {
		return err
	}
	count := w.driver.Tally().Result(topic)
	fmt.Printf("Topic: %s\n", sum.Topic)
	fmt.Printf("Speeches: %d (most active: %s)\n", sum.SpeechCount, sum.MostActiveSpeaker)
	fmt.Printf("Interjections: %d\n", sum.Interjections)
	fmt.Printf("Votes: %d for, %d against, %d abstained\n", count.For, count.Against, count.Abstain)

	w.persist(ctx, logger)
	return nil
}

func serve(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	w, err := buildWorld(logger)
	if err != nil {
		return err
	}
	if len(w.cfg.Schedules) == 0 {
		return fmt.Errorf("no schedules configured")
	}
	ctx := cmd.Context()
	if err := w.registry.StartAll(ctx); err != nil {
		return err
	}
	defer w.registry.StopAll(ctx)
	w.restore(ctx, logger)

	sched := session.NewScheduler(w.driver, logger)
	for _, sc := range w.cfg.Schedules {
		if err := sched.Add(sc.Cron, sc.Topic, sc.Rounds); err != nil {
			return err
		}
	}
	sched.Start()
	logger.Printf("serving %d scheduled debates", len(w.cfg.Schedules))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	sched.Stop()
	w.persist(context.Background(), logger)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
