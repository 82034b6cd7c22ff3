package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/justone-api/internal/application/otp"
	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/justone-api/internal/infrastructure/jwt"
	"github.com/justone-api/internal/infrastructure/mail"
	redisinfra "github.com/justone-api/internal/infrastructure/redis"
	s3infra "github.com/justone-api/internal/infrastructure/s3"
	"github.com/justone-api/internal/infrastructure/sns"
	"github.com/justone-api/internal/pkg/encryption"
	"github.com/justone-api/internal/pkg/logger"
	transporthttp "github.com/justone-api/internal/transport/http"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	if envErr != nil {
		logger.Info(context.Background(), "no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error(context.Background(), "server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	campusCfg, err := config.LoadCampusConfig(cfg.CampusConfigPath, cfg.AdminEmails)
	if err != nil {
		return err
	}

	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	// Creates missing tables; existing ones are left untouched.
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	cipher, err := encryption.NewCipher(cfg.EncryptionKey, []string{cfg.EncryptionKeyPrev}, cfg.PBKDF2Iterations)
	if err != nil {
		return fmt.Errorf("encryption: %w", err)
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return err
	}

	mailer, err := mail.NewSender(ctx, cfg)
	if err != nil {
		return err
	}

	limiter, err := newRateLimiter(ctx, cfg, dynamoClient)
	if err != nil {
		return err
	}

	deps := &transporthttp.Deps{
		CampusRepo:   dynamo.NewCampusRepo(dynamoClient, cfg.DynamoTables.Campuses),
		OTPCodeRepo:  dynamo.NewOTPCodeRepo(dynamoClient, cfg.DynamoTables.OTPCodes),
		RateLimiter:  limiter,
		UserRepo:     dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		ProfileRepo:  dynamo.NewProfileRepo(dynamoClient, cfg.DynamoTables.Profiles),
		SessionRepo:  dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		ResponseRepo: dynamo.NewResponseRepo(dynamoClient, cfg.DynamoTables.Responses),
		WaitlistRepo: dynamo.NewWaitlistRepo(dynamoClient, cfg.DynamoTables.Waitlist),
		CareerRepo:   dynamo.NewCareerApplicationRepo(dynamoClient, cfg.DynamoTables.CareerApplications),
		ObjectStore:  s3infra.NewStore(s3Client, cfg.S3BucketName),
		Cipher:       cipher,
		Mailer:       mailer,
		JWTProvider:  jwtProvider,
		CampusConfig: campusCfg,
	}

	// Career notifications are optional.
	if cfg.CareersTopicARN != "" {
		if pub, err := sns.NewPublisher(ctx, cfg, cfg.CareersTopicARN); err == nil {
			deps.Publisher = pub
		} else {
			logger.Warn(ctx, "SNS publisher not available", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info(context.Background(), "server stopped")
	return nil
}

// newRateLimiter keeps per-key windows in Redis when REDIS_URL is set, in DynamoDB otherwise.
func newRateLimiter(ctx context.Context, cfg *config.Config, dynamoClient *dynamodb.Client) (otp.RateLimiter, error) {
	if cfg.RedisURL == "" {
		return dynamo.NewRateLimitRepo(dynamoClient, cfg.DynamoTables.OTPRateLimits, cfg.OTP.RateMax, cfg.OTP.RateWindow), nil
	}
	client, err := redisinfra.NewClient(ctx, cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "rate limit windows kept in redis")
	return redisinfra.NewRateLimiter(client, cfg.OTP.RateMax, cfg.OTP.RateWindow), nil
}
