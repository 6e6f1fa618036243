package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"poshub-api/authorizer"
	"poshub-api/secrets"
)

const (
	defaultJWTIssuer      = "poshub-api"
	defaultJWTSecretParam = "/poshub/jwt-secret"
	defaultSecretCacheTTL = 5 * time.Minute
)

type authorizeRequest struct {
	AuthorizationToken string `json:"authorizationToken"`
	Resource           string `json:"resource"`
}

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	secretsTable := os.Getenv("SECRETS_TABLE")
	if connStr == "" || secretsTable == "" {
		log.Fatal("missing secrets config")
	}
	source, err := secrets.NewTableSource(connStr, secretsTable)
	if err != nil {
		log.Fatalf("secrets table: %v", err)
	}

	cacheTTL := defaultSecretCacheTTL
	if v := os.Getenv("SECRET_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SECRET_CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}

	param := os.Getenv("JWT_SECRET_PARAM")
	if param == "" {
		param = defaultJWTSecretParam
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = defaultJWTIssuer
	}
	audience := os.Getenv("JWT_AUDIENCE")

	authz := authorizer.New(secrets.NewCached(source, cacheTTL), param, issuer, audience, logger)

	e := echo.New()
	e.POST("/authorize", func(c echo.Context) error {
		var req authorizeRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}
		decision, err := authz.Authorize(c.Request().Context(), req.AuthorizationToken, req.Resource)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}
		return c.JSON(http.StatusOK, decision)
	})

	listenAddr := ":8081"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
