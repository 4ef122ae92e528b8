// Command baby-doll runs the newborn needs simulator on GPIO buttons and
// reports activity to MQTT, a CSV log, SQLite and an HTTP status page.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/baby-doll/internal/activity"
	"github.com/sweeney/baby-doll/internal/config"
	"github.com/sweeney/baby-doll/internal/engine"
	"github.com/sweeney/baby-doll/internal/gpio"
	"github.com/sweeney/baby-doll/internal/logic"
	"github.com/sweeney/baby-doll/internal/mqtt"
	"github.com/sweeney/baby-doll/internal/status"
	"github.com/sweeney/baby-doll/internal/store"
	"github.com/sweeney/baby-doll/internal/web"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "baby-doll",
	Short:        "Newborn needs simulator driven by GPIO buttons",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		if err := run(cfg, log); err != nil {
			log.Errorw("fatal", "error", err)
			return err
		}
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current button levels and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		buttons, err := gpio.NewRealButtons(cfg.Chip, cfg.Pins, cfg.Debounce)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer buttons.Close()
		return printState(cmd.OutOrStdout(), buttons, cfg.Pins)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print time-to-tend statistics and recent events from the history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.DBPath == "" {
			return fmt.Errorf("history database disabled")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		session, _ := cmd.Flags().GetString("session")

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		st, err := store.Open(ctx, cfg.DBPath, "")
		if err != nil {
			return err
		}
		defer st.Close()
		return printHistory(ctx, cmd.OutOrStdout(), st, session, limit)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "baby-doll.yaml", "YAML configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Development logging")
	rootCmd.PersistentFlags().String("db", "", "SQLite history path (overrides config, \"off\" disables)")

	rootCmd.Flags().String("broker", "", "MQTT broker address (overrides config, \"off\" disables)")
	rootCmd.Flags().String("http", "", "HTTP status address (overrides config, \"off\" disables)")
	rootCmd.Flags().String("csv", "", "CSV activity log path (overrides config, \"off\" disables)")
	rootCmd.Flags().Int64("seed", 0, "Random seed (0 seeds from the clock)")
	rootCmd.Flags().Duration("heartbeat", 0, "Heartbeat interval (overrides config, 0 disables)")

	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of events to show")
	historyCmd.Flags().String("session", "", "Only include this session")

	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(historyCmd)
}

func newLogger(cmd *cobra.Command) (*zap.SugaredLogger, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return l.Sugar(), nil
}

// loadConfig reads the config file and applies any flags set on the command
// line.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	overrides := []struct {
		name string
		dst  *string
	}{
		{"broker", &cfg.Broker},
		{"http", &cfg.HTTPAddr},
		{"csv", &cfg.CSVPath},
		{"db", &cfg.DBPath},
	}
	for _, o := range overrides {
		if flags.Lookup(o.name) == nil || !flags.Changed(o.name) {
			continue
		}
		v, _ := flags.GetString(o.name)
		if v == "off" {
			v = ""
		}
		*o.dst = v
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Lookup("heartbeat") != nil && flags.Changed("heartbeat") {
		cfg.Heartbeat, _ = flags.GetDuration("heartbeat")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(cfg config.Config, log *zap.SugaredLogger) error {
	session := uuid.New().String()
	log = log.With("session", session)

	buttons, err := gpio.NewRealButtons(cfg.Chip, cfg.Pins, cfg.Debounce)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer buttons.Close()

	tracker := status.NewTracker(time.Now(), session, status.Config{
		TickMs:      cfg.Tick.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPPort:    cfg.HTTPAddr,
		Pins:        cfg.Pins,
	})
	sinks := []engine.Sink{tracker}

	var publisher mqtt.Publisher
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID+"-"+session[:8], session, log)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher = p
		tracker.SetConnection(p.IsConnected)
		sinks = append(sinks, engine.SinkFunc(p.Publish))
	}

	if cfg.CSVPath != "" {
		w, err := activity.OpenCSV(cfg.CSVPath, cfg.Pins)
		if err != nil {
			return err
		}
		defer w.Close()
		sinks = append(sinks, w)
		log.Infow("activity log", "path", cfg.CSVPath)
	}

	var history web.History
	if cfg.DBPath != "" {
		st, err := store.Open(context.Background(), cfg.DBPath, session)
		if err != nil {
			return err
		}
		defer st.Close()
		sinks = append(sinks, st)
		history = st
		log.Infow("history database", "path", cfg.DBPath)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	eng := engine.New(engine.Options{
		Schedule:   cfg.Schedule,
		Holds:      cfg.Holds,
		Random:     logic.NewSeededRandom(seed),
		Pins:       buttons,
		PinNumbers: cfg.Pins,
		Logger:     log,
	}, sinks...)
	tracker.SetSources(eng.Baby().Snapshot, eng.Holds().Snapshot)

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, history)
		ln, err := srv.Listen()
		if err != nil {
			return fmt.Errorf("http status server: %w", err)
		}
		go func() {
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	log.Infow("started",
		"tick", cfg.Tick,
		"hunger_pin", cfg.Pins[logic.ChannelHunger],
		"hunger_hold", cfg.Holds[logic.ChannelHunger],
		"diaper_pin", cfg.Pins[logic.ChannelDiaper],
		"diaper_hold", cfg.Holds[logic.ChannelDiaper],
		"broker", cfg.Broker,
		"heartbeat", cfg.Heartbeat,
		"seed", seed,
	)

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		engine:    eng,
		edges:     buttons.Edges(),
		publisher: publisher,
		tracker:   tracker,
		log:       log,
		now:       time.Now,
		tick:      ticker.C,
		heartbeat: heartbeat,
		sig:       sigCh,
	})
}
