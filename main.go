package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"freight-backend/internal/app"
	intconfig "freight-backend/internal/config"
	router "freight-backend/internal/http"
	"freight-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	env, err := intconfig.LoadEnv()
	if err != nil {
		utils.Log.Fatalf("Gagal membaca konfigurasi: %v", err)
	}
	utils.SetLogLevel(env.LogLevel)
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f := app.NewFactory(env)
	defer f.Close()

	if _, err := f.Migrate(ctx); err != nil {
		utils.Log.Fatalf("Gagal menyiapkan database: %v", err)
	}
	svc, err := f.Services(ctx)
	if err != nil {
		utils.Log.Fatalf("Gagal menyiapkan service: %v", err)
	}

	paystackHandler, bookingHandler := svc.Handlers(env)
	r := router.NewRouter(router.Deps{Env: env, System: svc.System(), Paystack: paystackHandler, Booking: bookingHandler})

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go svc.Sweeper.Run(ctx)

	go func() {
		utils.Log.Infof("Server berjalan di http://localhost%s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.Fatalf("Gagal menjalankan server: %v", err)
		}
	}()

	<-ctx.Done()
	utils.Log.Info("Mematikan server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Log.Errorf("Shutdown server gagal: %v", err)
		return
	}

	utils.Log.Info("Server berhenti dengan aman.")
}
