package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/resume-fit/internal/logger"
	"github.com/spigell/resume-fit/internal/secrets"
	"github.com/spigell/resume-fit/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume analysis requests from RabbitMQ",
	Run: func(_ *cobra.Command, _ []string) {
		runWorker()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().IntP("concurrency", "c", 0, "number of concurrent consumers")
	workerCmd.Flags().String("metrics-addr", "", "address to serve /metrics on, e.g. :9090")

	viper.BindPFlag("worker.concurrency", workerCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("worker.metrics-addr", workerCmd.Flags().Lookup("metrics-addr"))
}

func runWorker() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		config = &Config{}
	}
	if config.Worker == nil {
		config.Worker = &WorkerConfig{}
	}

	logger.Info("starting the worker", zap.String("version", version))

	if err := serve(ctx, config, logger); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func serve(ctx context.Context, config *Config, logger *zap.Logger) error {
	e, err := buildEngine(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("building the engine: %w", err)
	}
	defer e.Close()

	st, err := newStore(ctx, config.Store)
	if err != nil {
		return fmt.Errorf("opening the store: %w", err)
	}
	defer st.Close()

	url, err := secrets.Load(secrets.Source{
		Name: "rabbitmq url",
		Env:  "RABBITMQ_URL",
		File: config.Worker.RabbitMQURLFile,
	})
	if err != nil {
		return fmt.Errorf("%w (set worker.rabbitmq-url-file or RABBITMQ_URL)", err)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("connecting to rabbitmq: %w", err)
	}
	defer conn.Close()

	publisher, err := worker.NewAMQPPublisher(conn, config.Worker.Exchange)
	if err != nil {
		return err
	}

	opts := []worker.Option{
		worker.WithStore(st),
		worker.WithMetrics(e.metrics),
		worker.WithLogger(logger),
	}

	if s3cfg := config.Worker.S3; s3cfg != nil && s3cfg.Bucket != "" {
		fetcher, err := newFetcher(ctx, s3cfg)
		if err != nil {
			return err
		}
		opts = append(opts, worker.WithFetcher(fetcher))
	}

	if writer, err := newFeedbackWriter(ctx, config.AI, logger); err != nil {
		logger.Info("feedback generation disabled", zap.String("reason", err.Error()))
	} else {
		opts = append(opts, worker.WithFeedback(writer))
	}

	handler := worker.NewHandler(e.analyzer, publisher, opts...)
	pool := worker.NewPool(conn, worker.PoolConfig{
		Queue:       config.Worker.Queue,
		Concurrency: config.Worker.Concurrency,
		Prefetch:    config.Worker.Prefetch,
	}, handler, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(ctx) })
	if addr := config.Worker.MetricsAddr; addr != "" {
		g.Go(func() error { return worker.ServeMetrics(ctx, addr, e.registry, logger) })
	}

	return g.Wait()
}

func newFetcher(ctx context.Context, cfg *S3Config) (*worker.S3Fetcher, error) {
	accessKey, err := secrets.Load(secrets.Source{
		Name: "s3 access key",
		Env:  "S3_ACCESS_KEY",
		File: cfg.AccessKeyFile,
	})
	if err != nil {
		return nil, err
	}
	secretKey, err := secrets.Load(secrets.Source{
		Name: "s3 secret key",
		Env:  "S3_SECRET_KEY",
		File: cfg.SecretKeyFile,
	})
	if err != nil {
		return nil, err
	}

	return worker.NewS3Fetcher(ctx, worker.S3Config{
		Bucket:    cfg.Bucket,
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: accessKey,
		SecretKey: secretKey,
	})
}
