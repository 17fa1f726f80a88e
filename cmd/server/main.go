package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/linemk/order-payments/internal/app"
	"github.com/linemk/order-payments/internal/app/handlers"
	"github.com/linemk/order-payments/internal/config"
	"github.com/linemk/order-payments/internal/gateway"
	"github.com/linemk/order-payments/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/order-payments/internal/lib/logger"
	"github.com/linemk/order-payments/internal/lib/logger/handlers/urllog"
	"github.com/linemk/order-payments/internal/service"
	"github.com/linemk/order-payments/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	paymentRepo := storage.NewPaymentRepository(application.DB)

	// реестр платёжных шлюзов собирается один раз на старте и далее только читается
	registry := gateway.NewRegistry(cfg.Gateways)

	authService := service.NewAuthService(application.Logger, userRepo, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)
	orderService := service.NewOrderService(application.Logger, application.DB, orderRepo, paymentRepo)
	paymentService := service.NewPaymentService(application.Logger, application.DB, orderRepo, paymentRepo, registry, cfg.Gateways.Timeout)

	// эндпоинт для аутентификации
	router.Post("/api/auth", handlers.AuthHandler(application.Logger, authService))

	router.Group(func(r chi.Router) {
		jwtMW := jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret)
		r.Use(jwtMW)

		// эндпоинты заказов
		r.Post("/api/orders", handlers.CreateOrderHandler(application.Logger, orderService))
		r.Get("/api/orders", handlers.ListOrdersHandler(application.Logger, orderService))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(application.Logger, orderService))
		r.Put("/api/orders/{id}", handlers.UpdateOrderHandler(application.Logger, orderService))
		r.Delete("/api/orders/{id}", handlers.DeleteOrderHandler(application.Logger, orderService))

		// эндпоинты оплат
		r.Post("/api/payments/process", handlers.ProcessPaymentHandler(application.Logger, paymentService))
		r.Get("/api/payments", handlers.ListPaymentsHandler(application.Logger, paymentService))
		r.Get("/api/payments/{id}", handlers.GetPaymentHandler(application.Logger, paymentService))
		r.Post("/api/payments/{id}/refund", handlers.RefundPaymentHandler(application.Logger, paymentService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
