// Command gateway runs the LoRa station: it answers tracker packets heard by
// the station board, stores them, estimates where the tracker is and serves
// the results over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/catfinder/internal/api"
	"github.com/banshee-data/catfinder/internal/config"
	"github.com/banshee-data/catfinder/internal/db"
	"github.com/banshee-data/catfinder/internal/ingest"
	"github.com/banshee-data/catfinder/internal/locate"
	"github.com/banshee-data/catfinder/internal/radio"
	"github.com/banshee-data/catfinder/internal/serialmux"
	"github.com/banshee-data/catfinder/internal/version"
	"github.com/banshee-data/catfinder/internal/wigle"
)

var (
	configPath    = flag.String("config", "", "Path to a JSON gateway config")
	port          = flag.String("port", config.DefaultSerialPort, "Serial port of the station board (ignored in dev mode)")
	baud          = flag.Int("baud", config.DefaultBaudRate, "Serial baud rate")
	dbPath        = flag.String("db", config.DefaultDBPath, "Path to the sqlite database")
	listen        = flag.String("listen", config.DefaultListen, "Listen address")
	devMode       = flag.Bool("dev", false, "Replay fixture lines instead of opening the serial port")
	fixtures      = flag.String("fixtures", "fixtures.txt", "Fixture file replayed in dev mode")
	disableSerial = flag.Bool("disable-serial", false, "Run without a station board")
	waitTime      = flag.Int("wait-time", 0, "Seconds the tracker sleeps before its next report, sent in every station packet")
	beacon        = flag.Duration("beacon", 0, "Transmit the station packet on this interval even without tracker traffic (0 disables)")
	listPorts     = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// dev mode replays one fixture line per interval
const fixtureInterval = 2 * time.Second

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n       %s migrate <action>\n\n", os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

// loadConfig reads the optional config file and lets explicitly set flags
// override it.
func loadConfig(fs *flag.FlagSet, path string) (*config.GatewayConfig, error) {
	cfg := &config.GatewayConfig{}
	if path != "" {
		var err error
		if cfg, err = config.LoadGatewayConfig(path); err != nil {
			return nil, err
		}
	} else {
		cfg.ApplyEnv(os.Getenv)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			v := *port
			cfg.SerialPort = &v
		case "baud":
			v := *baud
			cfg.BaudRate = &v
		case "db":
			v := *dbPath
			cfg.DBPath = &v
		case "listen":
			v := *listen
			cfg.Listen = &v
		case "wait-time":
			v := *waitTime
			cfg.StationWaitTime = &v
		case "beacon":
			v := ""
			if *beacon > 0 {
				v = beacon.String()
			}
			cfg.BeaconInterval = &v
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readFixtures(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" && !strings.HasPrefix(l, "#") {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("fixtures file %s has no lines", path)
	}
	return lines, nil
}

func openSerial(cfg *config.GatewayConfig) (serialmux.SerialMuxInterface, error) {
	switch {
	case *disableSerial:
		return serialmux.NewDisabledSerialMux(), nil
	case *devMode:
		lines, err := readFixtures(*fixtures)
		if err != nil {
			return nil, err
		}
		return serialmux.NewMockSerialMux(lines, fixtureInterval), nil
	default:
		opts := serialmux.PortOptions{BaudRate: cfg.GetBaudRate()}
		log.Printf("opening %s at %s", cfg.GetSerialPort(), opts)
		m, err := serialmux.NewRealSerialMux(cfg.GetSerialPort(), opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Current())
		return
	}
	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig(flag.CommandLine, *configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(os.Stdout, flag.Args()[1:], cfg.GetDBPath()); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if flag.NArg() > 0 {
		usage()
		os.Exit(2)
	}

	if cfg.GetListen() == "" {
		log.Fatal("Listen address is required")
	}

	log.Printf("starting %s", version.Current())
	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
	log.Printf("Graceful shutdown complete")
}

func run(cfg *config.GatewayConfig) error {
	stationSerial, err := openSerial(cfg)
	if err != nil {
		return fmt.Errorf("failed to open station board: %w", err)
	}
	defer stationSerial.Close()

	if err := stationSerial.Initialise(); err != nil {
		return fmt.Errorf("failed to initialise station board: %w", err)
	}
	log.Printf("initialised station board")

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	var remote locate.RemoteLookup
	if cfg.WigleEnabled() {
		remote = wigle.NewClient(nil, cfg.GetWigleAPIURL(), cfg.GetWigleUser(), cfg.GetWigleToken())
	} else {
		log.Printf("WiGLE credentials not set, locating from cached access points only")
	}
	locator := locate.NewLocator(locate.NewResolver(database, remote, nil), database, nil, cfg.GetLocateMinAPs())
	station := radio.NewStation(stationSerial, nil, cfg.GetStationWaitTime())
	hub := api.NewHub()
	handler := ingest.NewHandler(database, locator, station, hub, ingest.Options{
		AcceptForeignUID: cfg.GetAcceptForeignUID(),
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := stationSerial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		handler.Run(ctx, stationSerial)
	}()

	if interval := cfg.GetBeaconInterval(); interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := station.RunBeacon(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("beacon stopped: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(stationSerial, database, api.Options{
			Locator:      locator,
			Station:      station,
			Board:        handler,
			Hub:          hub,
			MapWindow:    cfg.GetMapWindow(),
			ViewHalfSide: cfg.GetViewHalfSideM(),
		}).ServeMux()

		stationSerial.AttachAdminRoutes(mux)
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach db admin routes: %v", err)
		}

		server := &http.Server{
			Addr:              cfg.GetListen(),
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	return nil
}
