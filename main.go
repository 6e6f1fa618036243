package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"poshub-api/api"
	"poshub-api/auth"
	"poshub-api/secrets"
	"poshub-api/service"
	"poshub-api/storage"
)

const (
	defaultJWTIssuer      = "poshub-api"
	defaultJWTSecretParam = "/poshub/jwt-secret"
	defaultSecretCacheTTL = 5 * time.Minute
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = defaultJWTIssuer
	}
	audience := os.Getenv("JWT_AUDIENCE")
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")

	verifier := buildVerifier(connStr, issuer, audience)

	store := storage.NewMemoryStore()

	var queue service.Queue
	if queueName := os.Getenv("ORDERS_QUEUE"); queueName != "" {
		if connStr == "" {
			log.Fatal("ORDERS_QUEUE requires STORAGE_CONNECTION_STRING")
		}
		sendTimeout := 5 * time.Second
		if v := os.Getenv("QUEUE_SEND_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid QUEUE_SEND_TIMEOUT: %v", err)
			}
			sendTimeout = d
		}
		q, err := storage.NewQueue(connStr, queueName, sendTimeout)
		if err != nil {
			log.Fatalf("orders queue: %v", err)
		}
		queue = q
	} else {
		logger.Warn("ORDERS_QUEUE not set; created orders will not be forwarded")
	}

	svc := service.NewOrders(store, queue, logger)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, api.HeaderCorrelationID},
	}))
	e.Use(api.CorrelationIDMiddleware())

	api.Register(e, svc, verifier, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// buildVerifier resolves the token verification mode from the environment:
// a local shared secret, a JWKS endpoint, or a secret fetched once from the
// parameter table.
func buildVerifier(connStr, issuer, audience string) *auth.Verifier {
	if secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET"); secret != "" {
		return auth.NewSharedSecretVerifier([]byte(secret), issuer, audience)
	}

	if jwksURL := os.Getenv("JWKS_URL"); jwksURL != "" {
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		return auth.NewJWKSVerifier(jwks, issuer, audience)
	}

	secretsTable := os.Getenv("SECRETS_TABLE")
	if connStr == "" || secretsTable == "" {
		log.Fatal("missing auth config: set LOCAL_AUTH_SHARED_SECRET, JWKS_URL, or STORAGE_CONNECTION_STRING with SECRETS_TABLE")
	}
	source, err := secrets.NewTableSource(connStr, secretsTable)
	if err != nil {
		log.Fatalf("secrets table: %v", err)
	}

	param := os.Getenv("JWT_SECRET_PARAM")
	if param == "" {
		param = defaultJWTSecretParam
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	secret, err := secrets.NewCached(source, defaultSecretCacheTTL).Get(ctx, param)
	if err != nil {
		log.Fatalf("resolve jwt secret: %v", err)
	}
	return auth.NewSharedSecretVerifier([]byte(secret), issuer, audience)
}
