package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/w1xm/rccar_interface/config"
	"github.com/w1xm/rccar_interface/drive"
	"github.com/w1xm/rccar_interface/ipc"
	"github.com/w1xm/rccar_interface/motor"
	"github.com/w1xm/rccar_interface/simulator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	addr       = flag.String("addr", ":8080", "address to serve websocket and status API on")
	configPath = flag.String("config", "", "YAML hardware config; defaults to the reference wiring")
	sim        = flag.Bool("sim", false, "drive a simulated car instead of the configured backend")
	linesAddr  = flag.String("lines_addr", "", "address to accept newline-delimited commands on")
	serialPort = flag.String("serial", "", "serial port to read newline-delimited commands from")
	serialBaud = flag.Int("serial_baud", 115200, "serial command port baud rate")
	redisAddr  = flag.String("redis", "", "Redis server to mirror status to and take commands from")
	password   = flag.String("password", "", "password to require on remote connections")
	debug      = flag.Bool("debug", false, "enable debug logging")
)

func newLogger() (*zap.SugaredLogger, error) {
	var l *zap.Logger
	var err error
	if *debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// backend is whatever the controller actuates.
type backend struct {
	left, right motor.Motor
	closer      motor.Closer
	sim         *simulator.Simulator
}

func openBackend(ctx context.Context, logger *zap.SugaredLogger, cfg config.Config, s *Server) (*backend, error) {
	switch cfg.Backend {
	case config.BackendGPIO:
		b, err := motor.OpenBoard(logger.Named("board"), cfg.Board)
		if err != nil {
			return nil, err
		}
		return &backend{left: b.Left, right: b.Right, closer: b}, nil
	case config.BackendModbus:
		d, err := motor.ConnectModbus(ctx, logger.Named("modbus"), cfg.Modbus.Port, cfg.Modbus.Baud, cfg.Modbus.SlaveID, cfg.MaxMagnitude)
		if err != nil {
			return nil, err
		}
		return &backend{left: d.Channel(0), right: d.Channel(1), closer: d}, nil
	case config.BackendSim:
		sm := simulator.New(logger.Named("sim"), cfg.MaxMagnitude, s.simulatorStatusCallback)
		return &backend{left: sm.Left(), right: sm.Right(), sim: sm}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func fanout(callbacks ...drive.StatusCallback) drive.StatusCallback {
	return func(status drive.Status) {
		for _, cb := range callbacks {
			cb(status)
		}
	}
}

func main() {
	flag.Parse()
	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalw("loading config", "error", err)
	}
	if *sim {
		cfg.Backend = config.BackendSim
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := NewServer(logger.Named("server"), *password)
	be, err := openBackend(ctx, logger, cfg, server)
	if err != nil {
		logger.Fatalw("opening backend", "backend", cfg.Backend, "error", err)
	}

	callbacks := []drive.StatusCallback{server.driveStatusCallback}
	var rdb *redis.Client
	var pub *ipc.Publisher
	if *redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         *redisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		defer rdb.Close()
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Fatalw("connecting to redis", "addr", *redisAddr, "error", err)
		}
		pub = ipc.NewPublisher(ctx, logger.Named("ipc"), rdb)
		callbacks = append(callbacks, pub.StatusCallback())
	}

	magnitudes := cfg.Presets
	controller := drive.New(logger.Named("drive"), be.left, be.right, drive.Options{
		MaxMagnitude:   cfg.MaxMagnitude,
		Magnitudes:     &magnitudes,
		StatusCallback: fanout(callbacks...),
	})
	server.Attach(controller)

	r := mux.NewRouter()
	r.Handle("/ws", http.HandlerFunc(server.CommandSocketHandler))
	r.Handle("/api/status", http.HandlerFunc(server.StatusHandler)).Methods("GET")
	r.Handle("/api/ws", http.HandlerFunc(server.StatusSocketHandler))
	srv := &http.Server{
		Handler:     r,
		Addr:        *addr,
		ReadTimeout: 15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("listening", "addr", srv.Addr, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	if be.sim != nil {
		g.Go(func() error { return be.sim.Run(ctx) })
	}
	if *linesAddr != "" {
		if err := server.ListenLines(ctx, *linesAddr); err != nil {
			logger.Fatalw("listening for line commands", "addr", *linesAddr, "error", err)
		}
	}
	if *serialPort != "" {
		go server.SerialLoop(ctx, *serialPort, *serialBaud)
	}
	if rdb != nil {
		if err := ipc.Subscribe(ctx, logger.Named("ipc"), rdb, func(text string) { server.Handle("redis", text) }); err != nil {
			logger.Fatalw("subscribing to commands", "error", err)
		}
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Errorw("server stopped", "error", err)
	}
	server.Stop()
	if pub != nil {
		finishCtx, finishCancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := pub.Finish(finishCtx, server.DriveStatus()); err != nil {
			logger.Warnw("publishing final status", "error", err)
		}
		finishCancel()
	}
	if be.closer != nil {
		if err := be.closer.Close(); err != nil {
			logger.Warnw("closing backend", "error", err)
		}
	}
	logger.Info("stopped")
}
