package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
)

// Webhook serves Bot API push delivery as an alternative to long polling.
// Telegram POSTs one update per request; a 200 acknowledges it.
type Webhook struct {
	Handler Handler
	Logger  *slog.Logger

	// SecretToken, when set, must match the X-Telegram-Bot-Api-Secret-Token
	// header on every request.
	SecretToken string

	echo  *echo.Echo
	httpd *http.Server
}

func NewWebhook(h Handler, logger *slog.Logger, bind, secretToken string) *Webhook {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	wh := &Webhook{
		Handler:     h,
		Logger:      logger,
		SecretToken: secretToken,
		echo:        e,
	}
	wh.httpd = &http.Server{
		Handler:      e,
		Addr:         bind,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	e.GET("/_health", wh.handleHealthCheck)
	e.POST("/webhook", wh.handleUpdate)
	return wh
}

type healthStatus struct {
	Status string `json:"status"`
}

func (wh *Webhook) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, healthStatus{Status: "ok"})
}

func (wh *Webhook) handleUpdate(c echo.Context) error {
	if wh.SecretToken != "" {
		got := c.Request().Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if got != wh.SecretToken {
			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var up Update
	if err := c.Bind(&up); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	updatesReceived.Inc()

	// acknowledge immediately; processing happens out of band so Telegram
	// never re-delivers because of a slow store. The request context dies
	// with the response, so the dispatch gets a detached one.
	go Dispatch(context.WithoutCancel(c.Request().Context()), wh.Handler, Translate(&up), wh.Logger)
	return c.NoContent(http.StatusOK)
}

func (wh *Webhook) Run() error {
	wh.Logger.Info("webhook listening", "bind", wh.httpd.Addr)
	if err := wh.httpd.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server: %w", err)
	}
	return nil
}

func (wh *Webhook) Shutdown(ctx context.Context) error {
	return wh.httpd.Shutdown(ctx)
}
