package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"costura-backend/internal/app"
	"costura-backend/internal/platform/config"
	"costura-backend/internal/platform/logger"
	"costura-backend/internal/qr"
	"costura-backend/internal/user"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "costura %s\n", version)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return serve(ctx, a)
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push unsynced records and refresh workers and operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			rep := a.Sync(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if len(rep.Errors) > 0 {
				return fmt.Errorf("sync finished with %d errors", len(rep.Errors))
			}
			return nil
		})
	},
}

var pruneBefore string

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete synced cache records older than a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := time.Parse("2006-01-02", pruneBefore)
		if err != nil {
			return fmt.Errorf("--before must be YYYY-MM-DD: %w", err)
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			na, err := a.Attendance.Prune(ctx, pruneBefore)
			if err != nil {
				return err
			}
			loc, err := a.Cfg.Location()
			if err != nil {
				return err
			}
			cutoff := time.Date(before.Year(), before.Month(), before.Day(), 0, 0, 0, 0, loc)
			np, err := a.Production.Prune(ctx, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d attendance and %d production records\n", na, np)
			return nil
		})
	},
}

var (
	qrLocation string
	qrKind     string
	qrSize     int
	qrOut      string
)

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Write an attendance QR code as PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := qr.Universal(qrLocation)
		switch k := qr.Kind(qrKind); k {
		case "":
		case qr.KindEntry, qr.KindExit:
			p = qr.OneTime(qrLocation, k)
		default:
			return fmt.Errorf("--kind must be ENTRY or EXIT")
		}
		png, err := qr.PNG(p, qrSize)
		if err != nil {
			return err
		}
		if err := os.WriteFile(qrOut, png, 0o644); err != nil {
			return err
		}
		text, _ := qr.Encode(p)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %s\n", qrOut, text)
		return nil
	},
}

var (
	adminUsername string
	adminPassword string
	adminName     string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative tasks",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminPassword == "" {
			adminPassword = os.Getenv("COSTURA_ADMIN_PASSWORD")
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			u, err := a.Users.Create(ctx, user.CreateUserRequest{
				Username: adminUsername,
				Password: adminPassword,
				Name:     adminName,
				Role:     user.RoleAdmin,
				Modality: user.ModalityDailyRate,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Username, u.ID)
			return nil
		})
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneBefore, "before", "", "cutoff date YYYY-MM-DD (exclusive)")
	_ = pruneCmd.MarkFlagRequired("before")

	qrCmd.Flags().StringVar(&qrLocation, "location", qr.DefaultLocation, "location id")
	qrCmd.Flags().StringVar(&qrKind, "kind", "", "legacy single-use code: ENTRY or EXIT")
	qrCmd.Flags().IntVar(&qrSize, "size", 512, "image size in pixels")
	qrCmd.Flags().StringVarP(&qrOut, "out", "o", "qr.png", "output file")

	adminCreateCmd.Flags().StringVar(&adminUsername, "username", "admin", "login name")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "password (or COSTURA_ADMIN_PASSWORD)")
	adminCreateCmd.Flags().StringVar(&adminName, "name", "Administrador", "display name")
	adminCmd.AddCommand(adminCreateCmd)
}

// withApp: 設定とロガーを用意し、終了時に後片付けする
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	lg, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()
	lg.Info("starting", zap.String("version", version), zap.String("mode", cfg.Mode))

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Error("init failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			lg.Warn("close failed", zap.Error(err))
		}
	}()
	return fn(ctx, a)
}

func serve(ctx context.Context, a *app.App) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.Cfg.Server.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		certs := a.Cfg.Server.Certificate
		var err error
		if certs.Cert != "" && certs.Key != "" {
			// 証明書は config/tls/<mode>/ に置く
			cert := fmt.Sprintf("config/tls/%s/%s", a.Cfg.Mode, certs.Cert)
			key := fmt.Sprintf("config/tls/%s/%s", a.Cfg.Mode, certs.Key)
			a.Log.Info("listening", zap.String("addr", "https://"+srv.Addr))
			err = srv.ListenAndServeTLS(cert, key)
		} else {
			a.Log.Warn("no certificate configured, serving plain HTTP", zap.String("addr", srv.Addr))
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.Log.Info("shutting down...")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
