package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/xellDart/ERC721-IP/config"
	"github.com/xellDart/ERC721-IP/routes"
	"github.com/xellDart/ERC721-IP/service"
	"github.com/xellDart/ERC721-IP/store"
	"github.com/xellDart/ERC721-IP/store/grpcledger"
	"github.com/xellDart/ERC721-IP/store/memory"
	"github.com/xellDart/ERC721-IP/store/mysql"
	"github.com/xellDart/ERC721-IP/store/postgres"
)

func main() {
	configPath := flag.String("config", "", "optional JSON config file; IPP_* env vars override it")
	flag.Parse()
	defer glog.Flush()

	//----------------------------------------------------------------------
	// 1. config
	//----------------------------------------------------------------------
	cfg, err := config.Load(*configPath)
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	opts, err := cfg.Options()
	if err != nil {
		glog.Exitf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//----------------------------------------------------------------------
	// 2. ledger
	//----------------------------------------------------------------------
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		glog.Exitf("%s ledger: %v", cfg.Backend, err)
	}
	defer closeStore()

	//----------------------------------------------------------------------
	// 3. registry → HTTP API (+ optional gRPC ledger)
	//----------------------------------------------------------------------
	reg := service.New(st, opts)
	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      routes.SetupRoutes(reg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var grpcSrv *grpc.Server
	if cfg.GRPCListen != "" {
		grpcSrv = grpc.NewServer()
		grpcledger.RegisterLedgerServer(grpcSrv, &grpcledger.Server{Store: st})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		glog.Infof("IPPBlock registry (%s, schema %s, chain %d) listening on %s",
			cfg.Backend, opts.Schema, opts.Domain.ChainID, cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPCListen)
			if err != nil {
				return err
			}
			glog.Infof("ledger gRPC service listening on %s", cfg.GRPCListen)
			return grpcSrv.Serve(lis)
		})
	}

	// CTRL-C → graceful stop
	g.Go(func() error {
		<-gctx.Done()
		glog.Info("shutting down …")
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		glog.Errorf("server: %v", err)
		glog.Flush()
		os.Exit(1)
	}
	s := reg.Stats()
	glog.Infof("stopped: minted=%d duplicates=%d rejected=%d", s.Minted, s.Duplicates, s.RejectedSignatures)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		pool, err := pgxpool.New(dialCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := postgres.Migrate(dialCtx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return postgres.NewStore(pool), pool.Close, nil

	case config.BackendMySQL:
		db, err := mysql.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := mysql.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return mysql.NewStore(db), func() { db.Close() }, nil

	case config.BackendGRPC:
		client, err := grpcledger.Dial(cfg.LedgerAddr, grpcledger.DialOptions{Timeout: cfg.LedgerTimeout})
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil

	default:
		glog.Warning("using the in-memory ledger; certificates are lost on restart")
		return memory.NewStore(), func() {}, nil
	}
}
