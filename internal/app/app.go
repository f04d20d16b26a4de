// Package app は設定からストアとサービスを組み立てる。
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"costura-backend/internal/attendance"
	"costura-backend/internal/cache"
	"costura-backend/internal/docstore"
	"costura-backend/internal/docstore/mongostore"
	"costura-backend/internal/docstore/sqlstore"
	"costura-backend/internal/machine"
	"costura-backend/internal/operation"
	"costura-backend/internal/platform/auth"
	"costura-backend/internal/platform/config"
	"costura-backend/internal/platform/db"
	"costura-backend/internal/platform/i18n"
	"costura-backend/internal/platform/ids"
	"costura-backend/internal/platform/metrics"
	"costura-backend/internal/platform/trace"
	"costura-backend/internal/production"
	"costura-backend/internal/report"
	"costura-backend/internal/scan"
	"costura-backend/internal/user"
)

type App struct {
	Cfg    *config.Config
	Log    *zap.Logger
	Remote docstore.Store
	Local  *cache.Store
	Ledger scan.Ledger
	Issuer *auth.Issuer
	Tr     *i18n.Translator

	Metrics  *metrics.Metrics // 無効なら nil
	recorder metrics.Recorder

	Users      *user.Service
	Operations *operation.Service
	Attendance *attendance.Service
	Production *production.Service
	Machines   *machine.Service
	Scan       *scan.Service
	Reports    *report.Service

	shutdownTrace func(context.Context) error
}

// New: 失敗時はそこまでに開いたものを閉じる
func New(ctx context.Context, cfg *config.Config, lg *zap.Logger) (a *App, err error) {
	a = &App{Cfg: cfg, Log: lg, recorder: metrics.Nop{}}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
			a = nil
		}
	}()

	if a.shutdownTrace, err = trace.Init(ctx, cfg.Tracing, lg); err != nil {
		return a, fmt.Errorf("init tracing: %w", err)
	}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New(cfg.Metrics)
		a.recorder = a.Metrics
	}
	if a.Tr, err = i18n.New(); err != nil {
		return a, fmt.Errorf("load translations: %w", err)
	}

	if a.Remote, err = OpenRemote(ctx, cfg.Remote); err != nil {
		return a, err
	}
	lg.Info("remote store connected", zap.String("type", cfg.Remote.Type))

	if a.Local, err = cache.Open(ctx, cfg.Cache.Path); err != nil {
		return a, fmt.Errorf("open cache: %w", err)
	}
	if a.Ledger, err = scan.NewLedger(ctx, cfg.Redis); err != nil {
		return a, fmt.Errorf("open scan ledger: %w", err)
	}

	authCfg := cfg.Auth
	if authCfg.JWTSecret == "" {
		// dev のみ。再起動でトークンは無効になる
		authCfg.JWTSecret = randomSecret()
		lg.Warn("auth.jwt_secret is empty, using a random secret")
	}
	a.Issuer = auth.NewIssuer(authCfg)

	loc, err := cfg.Location()
	if err != nil {
		return a, err
	}
	policy, err := attendance.NewPolicy(cfg.Attendance, loc)
	if err != nil {
		return a, err
	}

	clock := ids.RealClock{}
	gen := ids.NewULIDGen()
	a.Users = user.NewService(a.Remote, a.Local, clock, gen, lg)
	a.Operations = operation.NewService(a.Remote, a.Local, clock, gen, lg)
	a.Attendance = attendance.NewService(a.Remote, a.Local, policy, clock, gen, a.recorder, lg)
	a.Production = production.NewService(a.Remote, a.Local, loc, cfg.Production.OfflineQueue, clock, gen, a.recorder, lg)
	a.Machines = machine.NewService(a.Local, clock, lg)
	a.Scan = scan.NewService(a.Attendance, a.Ledger, cfg.Scan, a.recorder, lg)
	a.Reports = report.NewService(a.Local, loc, clock, lg)
	return a, nil
}

// OpenRemote: remote.type に応じた文書ストア
func OpenRemote(ctx context.Context, cfg config.RemoteConfig) (docstore.Store, error) {
	switch cfg.Type {
	case "mysql":
		conn, err := db.Connect(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		s := sqlstore.New(conn, sqlstore.MySQL)
		if err := s.Migrate(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return s, nil
	case "mongo":
		s, err := mongostore.Open(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		path := cfg.SQLite
		if path == "" {
			path = filepath.Join("data", "remote.db")
		}
		s, err := sqlstore.OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown remote type %q", cfg.Type)
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Ledger != nil {
		errs = append(errs, a.Ledger.Close())
	}
	if a.Local != nil {
		errs = append(errs, a.Local.Close())
	}
	if a.Remote != nil {
		errs = append(errs, a.Remote.Close(ctx))
	}
	if a.shutdownTrace != nil {
		tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		errs = append(errs, a.shutdownTrace(tctx))
	}
	return errors.Join(errs...)
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
