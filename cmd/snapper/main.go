// Snapper - MQTT device agent
//
// Snapper runs on a Linux board, registers it with an IO-style MQTT broker
// and then lets the broker configure, drive and sample the board's digital
// pins over a protobuf signal channel.
//
// Startup order:
//  1. Configuration and logging
//  2. Device identity (hardware id, UID, client id)
//  3. Local store and pin backend
//  4. Broker client, telemetry and the local API
//  5. Session bring-up and the run loop
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nerrad567/snapper/internal/api"
	"github.com/nerrad567/snapper/internal/audit"
	"github.com/nerrad567/snapper/internal/identity"
	"github.com/nerrad567/snapper/internal/infrastructure/config"
	"github.com/nerrad567/snapper/internal/infrastructure/database"
	"github.com/nerrad567/snapper/internal/infrastructure/gpio"
	"github.com/nerrad567/snapper/internal/infrastructure/influxdb"
	"github.com/nerrad567/snapper/internal/infrastructure/logging"
	"github.com/nerrad567/snapper/internal/infrastructure/mqtt"
	"github.com/nerrad567/snapper/internal/infrastructure/netif"
	"github.com/nerrad567/snapper/internal/pin"
	"github.com/nerrad567/snapper/internal/session"
	"github.com/nerrad567/snapper/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence
	log := logging.Default()
	log.Info("starting snapper",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	host := netif.NewHost(cfg.Device.Interface)
	id, err := deviceIdentity(cfg, host)
	if err != nil {
		return err
	}
	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = id.ClientID
	} else {
		id.ClientID = cfg.MQTT.Broker.ClientID
	}
	log.Info("device identity", "board_id", id.BoardID, "uid", id.UID, "client_id", id.ClientID)

	checks := make(map[string]api.HealthChecker)

	// Local store
	var (
		repo     pin.Repository
		journal  *audit.SQLiteRepository
		recorder *audit.Recorder
	)
	if cfg.Database.Enabled {
		db, dbErr := database.Open(cfg.Database)
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", db.Path())
		repo = pin.NewSQLiteRepository(db.DB)
		journal = audit.NewSQLiteRepository(db.DB)
		recorder = audit.NewRecorder(journal)
		recorder.SetLogger(log.Component("audit"))
		checks["database"] = db
	} else {
		log.Info("database disabled, pin configuration will not survive restarts")
	}

	// Pin backend
	hw, err := gpio.Open(cfg.Pins)
	if err != nil {
		return fmt.Errorf("opening pin backend: %w", err)
	}
	defer func() {
		if closeErr := hw.Close(); closeErr != nil {
			log.Error("error closing pin backend", "error", closeErr)
		}
	}()
	maxPins := cfg.Pins.MaxPins
	if n := hw.Lines(); n > 0 && n < maxPins {
		maxPins = n
	}
	dispatcher := pin.NewDispatcher(hw, pin.NewRegistry(maxPins))
	dispatcher.SetLogger(log.Component("pin"))
	if repo != nil {
		dispatcher.SetRepository(repo)
	}
	defer dispatcher.Release()
	log.Info("pin backend ready", "backend", cfg.Pins.Backend, "lines", hw.Lines(), "max_pins", maxPins)

	// Broker client
	broker, err := mqtt.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	broker.SetLogger(log.Component("mqtt"))
	broker.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	broker.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := broker.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	checks["mqtt"] = broker

	// Telemetry (optional)
	var telemetry session.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB, id.ClientID)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	notifiers := session.Notifiers{hub}
	if recorder != nil {
		notifiers = append(notifiers, recorder)
	}

	policy, err := session.ParsePolicy(cfg.Session.InboundPolicy)
	if err != nil {
		return err
	}

	sess, err := session.New(session.Config{
		Identity:       id,
		Username:       cfg.MQTT.Auth.Username,
		Version:        parseVersion(version),
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		KeepAlive:      cfg.KeepAliveInterval(),
		ServiceTimeout: cfg.ServiceTimeout(),
		NetworkTimeout: cfg.NetworkConnectTimeout(),
		NetworkPoll:    cfg.NetworkPollInterval(),
		Retries:        cfg.Registration.Retries,
		AttemptTimeout: cfg.AttemptTimeout(),
		FailureLog:     time.Duration(cfg.Registration.FailureLog) * time.Second,
		InboundPolicy:  policy,
		RestorePins:    cfg.Pins.Restore,
	}, session.Deps{
		Network:    host,
		Broker:     broker,
		Dispatcher: dispatcher,
		Logger:     log.Component("session"),
		Telemetry:  telemetry,
		Notifier:   notifiers,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	// Local API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Session: sess,
			Checks:  checks,
			Hub:     hub,
			Version: version,
		}
		if journal != nil {
			deps.Events = journal
		}
		srv, srvErr := api.New(deps)
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := runSession(ctx, sess); err != nil {
		return err
	}

	log.Info("snapper stopped")
	return nil
}

// runSession brings the session up and runs it until ctx ends. A fatal
// session error holds the agent in its failed state, still reporting,
// until the process is told to stop.
func runSession(ctx context.Context, sess *session.Session) error {
	err := sess.Start(ctx)
	if err == nil {
		err = sess.Run(ctx)
	}
	switch {
	case err == nil || ctx.Err() != nil:
		return nil
	case session.IsFatal(err):
		sess.Halt(ctx, err)
		return err
	default:
		return fmt.Errorf("session: %w", err)
	}
}

// deviceIdentity derives the identity from the configured hardware id, or
// from the MAC address of the network interface.
func deviceIdentity(cfg *config.Config, host *netif.Host) (identity.Identity, error) {
	var (
		hw  identity.HardwareID
		err error
	)
	if cfg.Device.HardwareID != "" {
		hw, err = identity.ParseHardwareID(cfg.Device.HardwareID)
	} else {
		hw, err = host.HardwareID()
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("reading hardware id: %w", err)
	}

	id, err := identity.Derive(cfg.Device.BoardID, hw)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("deriving identity: %w", err)
	}
	return id, nil
}

// parseVersion splits a "major.minor.micro" build version. Missing or
// non-numeric parts are zero, so "dev" reports 0.0.0.
func parseVersion(v string) session.Version {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var parts [3]int32
	for i, p := range strings.SplitN(v, ".", 3) { //nolint:mnd // major.minor.micro
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			break
		}
		parts[i] = int32(n)
	}
	return session.Version{Major: parts[0], Minor: parts[1], Micro: parts[2]}
}

// getConfigPath returns the configuration file path.
// Uses SNAPPER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SNAPPER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
