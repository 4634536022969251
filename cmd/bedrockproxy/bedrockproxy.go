// Package bedrockproxycmder provides the proxy's root command.
package bedrockproxycmder

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	versioncmder "github.com/papercomputeco/bedrock-chat-proxy/cmd/version"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/awssign"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/bedrockclient"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/config"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/logger"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/modelcache"
	"github.com/papercomputeco/bedrock-chat-proxy/pkg/retryhttp"
	"github.com/papercomputeco/bedrock-chat-proxy/proxy"
)

const rootLongDesc string = `bedrockproxy translates between the OpenAI Chat Completions API and the
Amazon Bedrock Runtime API.

Configuration is layered CLI flag > environment (BEDROCKPROXY_*) > JSON
config file > default. Pass --config to point at a config file.`

const rootShortDesc = "OpenAI-to-Bedrock chat completions proxy"

// maxRetryAttempts bounds the retry wrapper's attempts on 429/5xx
// responses, counting the first attempt.
const maxRetryAttempts = 3

type rootCommander struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func NewRootCmd() *cobra.Command {
	cmder := &rootCommander{}

	cmd := &cobra.Command{
		Use:   "bedrockproxy",
		Short: rootShortDesc,
		Long:  rootLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.InitViper(cmder.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, config.AllFlagKeys())

			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.configPath, "config", "", "Path to a JSON config file")

	config.AddStringFlag(cmd, config.Registry, config.FlagListenHost, new(string))
	config.AddIntFlag(cmd, config.Registry, config.FlagListenPort, new(int))
	config.AddStringFlag(cmd, config.Registry, config.FlagAWSRegion, new(string))
	config.AddStringFlag(cmd, config.Registry, config.FlagAPIKey, new(string))
	config.AddIntFlag(cmd, config.Registry, config.FlagModelCacheTTL, new(int))
	config.AddIntFlag(cmd, config.Registry, config.FlagRequestTimeout, new(int))
	config.AddIntFlag(cmd, config.Registry, config.FlagModelsTimeout, new(int))
	config.AddStringFlag(cmd, config.Registry, config.FlagLogLevel, new(string))

	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

func (c *rootCommander) run() error {
	log := logger.NewLogger(c.cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	signer, err := awssign.New(ctx, c.cfg.AWSRegion)
	if err != nil {
		return fmt.Errorf("loading AWS credentials: %w", err)
	}

	httpClient := &http.Client{Transport: retryhttp.RoundTripper{Client: retryhttp.New(&http.Client{Transport: http.DefaultTransport}, maxRetryAttempts)}}
	client := bedrockclient.New(
		httpClient,
		signer,
		c.cfg.AWSRegion,
		time.Duration(c.cfg.RequestTimeoutSeconds)*time.Second,
		time.Duration(c.cfg.ModelsTimeoutSeconds)*time.Second,
	)

	cache := modelcache.New(client, time.Duration(c.cfg.ModelCacheTTLSeconds)*time.Second)

	listenAddr := fmt.Sprintf("%s:%d", c.cfg.ListenHost, c.cfg.ListenPort)
	proxyCfg := proxy.NewConfig(listenAddr, c.cfg.APIKey, time.Duration(c.cfg.RequestTimeoutSeconds)*time.Second)

	p, err := proxy.New(proxyCfg, cache, client, log)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	log.Info("starting bedrockproxy",
		zap.String("listen", listenAddr),
		zap.String("aws_region", c.cfg.AWSRegion),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return p.Close()
	}
}
