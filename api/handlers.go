package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"poshub-api/auth"
	"poshub-api/domain"
)

const (
	scopeOrdersWrite = "orders:write"

	detailUnauthorized = "could not validate credentials"
	detailInternal     = "internal error"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc OrderService, authn Authenticator, logger *log.Logger) {
	e.POST("/orders", createOrder(svc, authn, logger))
	e.GET("/orders", listOrders(svc))
	e.GET("/orders/:id", getOrder(svc))
	e.GET("/external-demo", externalDemo(http.DefaultClient, logger))
	e.GET("/healthz", healthz())
	e.GET("/", root())
}

func root() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Poshub API Service"})
	}
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

func createOrder(svc OrderService, authn Authenticator, logger *log.Logger) echo.HandlerFunc {
	requireWrite := auth.RequireScope(scopeOrdersWrite)
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newOrderRequestMetrics(ctx, logger, routeCreateOrder)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		claims, authErr := authn.ClaimsFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Detail: detailUnauthorized})
			return err
		}

		claims, scopeErr := requireWrite(claims)
		if scopeErr != nil {
			metrics.SetErrorStage("scope")
			err = c.JSON(http.StatusForbidden, errorResponse{Detail: scopeErr.Error()})
			return err
		}

		lr := io.LimitReader(c.Request().Body, createOrderMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var in domain.OrderInput
		if decErr := dec.Decode(&in); decErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid body"})
			return err
		}
		if valErr := in.Validate(); valErr != nil {
			metrics.SetErrorStage("validation")
			err = c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: valErr.Error()})
			return err
		}

		createStart := time.Now()
		order, createErr := svc.Create(ctx, in, &claims)
		metrics.ObserveCreate(time.Since(createStart))
		if createErr != nil {
			c.Logger().Error(createErr)
			metrics.SetErrorStage("internal")
			err = c.JSON(http.StatusInternalServerError, errorResponse{Detail: detailInternal})
			return err
		}

		err = c.JSON(http.StatusCreated, order)
		return err
	}
}

func listOrders(svc OrderService) echo.HandlerFunc {
	return func(c echo.Context) error {
		orders, err := svc.List(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: detailInternal})
		}
		return c.JSON(http.StatusOK, ordersResponse{Orders: orders})
	}
}

func getOrder(svc OrderService) echo.HandlerFunc {
	return func(c echo.Context) error {
		order, err := svc.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				return c.JSON(http.StatusNotFound, errorResponse{Detail: "order not found"})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: detailInternal})
		}
		return c.JSON(http.StatusOK, order)
	}
}
