package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-outbound-bridge/internal/config"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/bridge"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/model/openai"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/session"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/task"
	"github.com/ClareAI/astra-outbound-bridge/internal/core/tool"
	"github.com/ClareAI/astra-outbound-bridge/internal/persona"
	"github.com/ClareAI/astra-outbound-bridge/internal/repository"
	"github.com/ClareAI/astra-outbound-bridge/internal/services/call"
	"github.com/ClareAI/astra-outbound-bridge/internal/services/outcome"
	"github.com/ClareAI/astra-outbound-bridge/pkg/gcs"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/ClareAI/astra-outbound-bridge/pkg/pubsub"
	"github.com/ClareAI/astra-outbound-bridge/pkg/redis"
	"github.com/ClareAI/astra-outbound-bridge/pkg/twilio"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandlerManager manages all handlers and their initialization
type HandlerManager struct {
	config  *config.BridgeConfig
	service *call.Service
	bridge  StreamBridge

	// Owned resources released by Close
	store     *session.Store
	redisSvc  *redis.RedisService
	pubsubSvc *pubsub.PubSubService
	gcsClient *gcs.GCSClient
	cancel    context.CancelFunc
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg *config.BridgeConfig) (*HandlerManager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Redis is optional: without it the registry and task bus stay local
	var redisSvc *redis.RedisService
	if cfg.RedisHost != "" {
		svc, err := redis.NewRedisService(&redis.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize redis service, running without session registry", zap.Error(err))
		} else {
			redisSvc = svc
		}
	}

	var opts []call.Option
	var taskBus task.Bus
	if redisSvc != nil {
		opts = append(opts,
			call.WithSessionManager(session.NewManager(redisSvc, cfg.InstanceID)),
			call.WithRedis(redisSvc))
		taskBus = task.NewRedisBus(redisSvc, cfg.InstanceID)
		logger.Base().Info("session registry and task bus initialized", zap.String("pod_id", cfg.InstanceID))
	} else {
		taskBus = task.NewLocalBus(cfg.InstanceID)
	}

	if repository.IsDBConfigured() {
		repo, err := repository.NewCallRecordRepositoryFromEnv()
		if err != nil {
			logger.Base().Warn("failed to connect to database, call records will not be persisted", zap.Error(err))
		} else {
			opts = append(opts, call.WithRepository(repo))
			logger.Base().Info("call record persistence enabled")
		}
	}

	callService := twilio.NewCallService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	var messenger tool.Messenger
	if callService.IsEnabled() {
		messenger = callService
	} else {
		logger.Base().Warn("twilio credentials missing, outbound calls will fail")
	}

	var service *call.Service
	store := session.NewStore(cfg.CallGracePeriod, session.WithOnRemove(func(callID string) {
		service.HandleSessionRemoved(callID)
	}))
	service = call.NewService(call.Config{
		PublicBaseURL:    cfg.PublicBaseURL,
		InstanceID:       cfg.InstanceID,
		StaleCallTimeout: cfg.StaleCallTimeout,
	}, store, persona.NewResolver(), callService, opts...)

	if err := taskBus.Subscribe(ctx, service.HandleTask); err != nil {
		logger.Base().Error("failed to subscribe to task bus", zap.Error(err))
	}

	pubsubSvc, gcsClient := initOutcomeSinks(ctx, cfg)
	var publisher outcome.Publisher
	if pubsubSvc != nil {
		publisher = pubsubSvc
	}
	var uploader outcome.Uploader
	if gcsClient != nil {
		uploader = gcsClient
	}
	if reporter := outcome.NewReporter(publisher, uploader, cfg.InstanceID); reporter.Enabled() {
		if err := reporter.Subscribe(service.EventBus()); err != nil {
			logger.Base().Error("failed to subscribe outcome reporter", zap.Error(err))
		}
	}

	tools := tool.NewToolManager(service.SessionGetter, messenger, taskBus)
	callBridge := bridge.New(bridge.Config{
		Realtime:           cfg.Realtime,
		GreetingDelay:      cfg.GreetingDelay,
		AIConfigureTimeout: cfg.AIConfigureTimeout,
	}, bridge.NewOpenAIConnector(openai.NewDialer(cfg.Realtime)), service, tools, service.EventBus())

	// Sweep calls that never reached the media stage
	service.StartCleanupRoutine(ctx, cfg.SweepInterval)

	hm := NewHandlerManagerWith(cfg, service, callBridge)
	hm.store = store
	hm.redisSvc = redisSvc
	hm.pubsubSvc = pubsubSvc
	hm.gcsClient = gcsClient
	hm.cancel = cancel
	return hm, nil
}

// initOutcomeSinks connects the optional Pub/Sub topic and transcript bucket.
// A sink that fails to initialize is skipped.
func initOutcomeSinks(ctx context.Context, cfg *config.BridgeConfig) (*pubsub.PubSubService, *gcs.GCSClient) {
	var pubsubSvc *pubsub.PubSubService
	if cfg.PubSubProjectID != "" && cfg.PubSubCallTopic != "" {
		svc, err := pubsub.NewPubSubService(ctx, &pubsub.PubSubConfig{
			ProjectID:  cfg.PubSubProjectID,
			TopicName:  cfg.PubSubCallTopic,
			NamePrefix: cfg.PubSubNamePrefix,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize pubsub, call outcomes will not be published", zap.Error(err))
		} else {
			pubsubSvc = svc
			logger.Base().Info("call outcome publishing enabled", zap.String("topic", cfg.PubSubCallTopic))
		}
	}

	var gcsClient *gcs.GCSClient
	if cfg.TranscriptBucket != "" {
		client, err := gcs.NewGCSClient(ctx, cfg.TranscriptBucket)
		if err != nil {
			logger.Base().Warn("failed to initialize gcs, transcripts will not be archived", zap.Error(err))
		} else {
			gcsClient = client
			logger.Base().Info("transcript archive enabled", zap.String("bucket", cfg.TranscriptBucket))
		}
	}
	return pubsubSvc, gcsClient
}

// NewHandlerManagerWith wires handlers around an existing service and bridge.
func NewHandlerManagerWith(cfg *config.BridgeConfig, service *call.Service, streamBridge StreamBridge) *HandlerManager {
	return &HandlerManager{
		config:  cfg,
		service: service,
		bridge:  streamBridge,
	}
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	if hm.config.EnableCORS {
		router.Use(CORSMiddleware)
		// Preflight requests match no method-specific route otherwise
		router.PathPrefix("/").HandlerFunc(handleCORS).Methods(http.MethodOptions)
	}
	router.Use(LoggingMiddleware)

	router.HandleFunc("/health", hm.handleHealth).Methods(http.MethodGet)

	hm.SetupAPIRoutes(router)
	hm.SetupTwilioRoutes(router)
	NewMediaStreamHandler(hm.bridge).SetupMediaStreamRoutes(router)

	logger.Base().Info("all application routes registered")
}

// SetupAPIRoutes sets up the call management API
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(APIKeyMiddleware(hm.config.APISecretKey))

	callHandler := NewCallHandler(hm.service, RateLimitMiddleware(hm.config.RateLimitRPS, hm.config.RateLimitBurst))
	callHandler.SetupCallRoutes(apiRouter)

	if hm.config.APISecretKey == "" {
		logger.Base().Warn("API_SECRET_KEY not set, call api is unauthenticated")
	}
	logger.Base().Info("call api routes registered")
}

// SetupTwilioRoutes sets up the Twilio voice webhooks
func (hm *HandlerManager) SetupTwilioRoutes(router *mux.Router) {
	var validator *twilio.SignatureValidator
	if hm.config.TwilioValidateSignature && hm.config.TwilioAuthToken != "" {
		validator = twilio.NewSignatureValidator(hm.config.TwilioAuthToken)
	}
	NewTwilioWebhookHandler(hm.service, hm.config.PublicBaseURL, validator).SetupTwilioRoutes(router)
	logger.Base().Info("twilio webhook routes registered", zap.Bool("signature_validation", validator != nil))
}

func (hm *HandlerManager) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"instanceId":  hm.config.InstanceID,
		"activeCalls": len(hm.service.ListActive()),
	})
}

// GetService returns the call service
func (hm *HandlerManager) GetService() *call.Service {
	return hm.service
}

// Close stops background routines and releases owned resources
func (hm *HandlerManager) Close() {
	if hm.cancel != nil {
		hm.cancel()
	}
	if err := hm.service.Close(); err != nil {
		logger.Base().Warn("failed to close event bus", zap.Error(err))
	}
	if hm.store != nil {
		hm.store.Close()
	}
	if hm.pubsubSvc != nil {
		if err := hm.pubsubSvc.Close(); err != nil {
			logger.Base().Warn("failed to close pubsub", zap.Error(err))
		}
	}
	if hm.gcsClient != nil {
		if err := hm.gcsClient.Close(); err != nil {
			logger.Base().Warn("failed to close gcs", zap.Error(err))
		}
	}
	if hm.redisSvc != nil {
		if err := hm.redisSvc.Close(); err != nil {
			logger.Base().Warn("failed to close redis", zap.Error(err))
		}
	}
}

// handleCORS answers CORS preflight requests
func handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
