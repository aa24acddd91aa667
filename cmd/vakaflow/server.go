package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vakaflow-ai/vakaflow/api/handlers"
	"github.com/vakaflow-ai/vakaflow/config"
	"github.com/vakaflow-ai/vakaflow/flow"
	"github.com/vakaflow-ai/vakaflow/internal/database"
	"github.com/vakaflow-ai/vakaflow/internal/lease"
	"github.com/vakaflow-ai/vakaflow/internal/mail"
	"github.com/vakaflow-ai/vakaflow/internal/metrics"
	"github.com/vakaflow-ai/vakaflow/internal/server"
	"github.com/vakaflow-ai/vakaflow/internal/telemetry"
	"github.com/vakaflow-ai/vakaflow/persistence"
)

// =============================================================================
// 🏗️ 服务器组装
// =============================================================================

// Server 组装引擎、存储、租约与 HTTP 服务
type Server struct {
	cfg          *config.Config
	logger       *zap.Logger
	otel         *telemetry.Providers
	stores       *persistence.Stores
	leaser       *lease.Manager
	orchestrator *flow.Orchestrator
	httpServer   *server.Manager
}

// NewServer 按配置构建完整的服务依赖图
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) (*Server, error) {
	// 存储
	stores, err := persistence.NewStores(persistence.Config{
		Type: persistence.StoreType(cfg.Store.Type),
		Database: databaseConfig(cfg),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build stores: %w", err)
	}

	// 分布式租约（可选）
	var leaser *lease.Manager
	if cfg.Redis.Enabled {
		leaser, err = lease.NewManager(lease.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.LeaseTTL,
		}, logger)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("build lease manager: %w", err)
		}
	}

	// 指标
	collector := metrics.NewCollector("vakaflow", logger)

	// 集成动作协作者
	transport := flow.NewHTTPTransport(flow.HTTPTransportConfig{
		Timeout:           cfg.Transport.Timeout,
		RequestsPerSecond: cfg.Transport.RequestsPerSecond,
		Burst:             cfg.Transport.Burst,
	})
	var mailer flow.Mailer
	if cfg.Mail.Enabled {
		mailer = mail.NewMailer(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}, logger)
	}
	directory := flow.NewStaticDirectory(contactTable(cfg.Contacts))
	dispatcher := flow.NewDispatcher(directory, mailer, transport, logger)

	// 技能调用
	executor := flow.NewHTTPSkillExecutor(flow.HTTPSkillExecutorConfig{
		GatewayURL: cfg.Agents.GatewayURL,
		Timeout:    cfg.Agents.Timeout,
	}, logger)
	invoker := flow.NewSkillInvoker(executor, logger)

	// 编排器
	opts := flow.OrchestratorOptions{
		Store:      stores.Flows,
		Repository: stores.Executions,
		Invoker:    invoker,
		Dispatcher: dispatcher,
		Metrics:    collector,
		Logger:     logger,
		Config: flow.EngineConfig{
			DefaultExecutionTimeout: cfg.Engine.DefaultExecutionTimeout,
			DefaultNodeTimeout:      cfg.Engine.DefaultNodeTimeout,
			RetryBackoffInitial:     cfg.Engine.RetryBackoffInitial,
			RetryBackoffMax:         cfg.Engine.RetryBackoffMax,
		},
	}
	if leaser != nil {
		opts.Leaser = leaser
	}
	orchestrator := flow.NewOrchestrator(opts)

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		otel:         otelProviders,
		stores:       stores,
		leaser:       leaser,
		orchestrator: orchestrator,
	}
	s.httpServer = server.NewManager(s.buildRoutes(collector), server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	return s, nil
}

// buildRoutes 注册所有 HTTP 路由
func (s *Server) buildRoutes(collector *metrics.Collector) http.Handler {
	flowHandler := handlers.NewFlowHandler(s.stores.Flows, s.logger)
	execHandler := handlers.NewExecutionHandler(s.orchestrator, s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)
	if db := s.stores.DB(); db != nil {
		healthHandler.Register("database", db.Ping)
	}

	mux := http.NewServeMux()

	// 健康与指标
	mux.HandleFunc("GET /healthz", healthHandler.HandleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// 流程管理
	mux.HandleFunc("POST /v1/flows", flowHandler.HandleCreateFlow)
	mux.HandleFunc("POST /v1/flows/validate", flowHandler.HandleValidateFlow)
	mux.HandleFunc("GET /v1/flows", flowHandler.HandleListFlows)
	mux.HandleFunc("GET /v1/flows/{id}", flowHandler.HandleGetFlow)

	// 执行
	mux.HandleFunc("POST /v1/flows/{id}/execute", execHandler.HandleExecuteFlow)
	mux.HandleFunc("GET /v1/flows/{id}/executions", execHandler.HandleListExecutions)
	mux.HandleFunc("GET /v1/executions/{id}", execHandler.HandleGetExecution)
	mux.HandleFunc("POST /v1/executions/{id}/retry", execHandler.HandleRetryExecution)
	mux.HandleFunc("POST /v1/executions/{id}/cancel", execHandler.HandleCancelExecution)

	return Chain(mux,
		Recovery(s.logger),
		RequestLogger(s.logger),
		MetricsMiddleware(collector),
	)
}

// Start 启动 HTTP 服务
func (s *Server) Start() error {
	return s.httpServer.Start()
}

// WaitForShutdown 等待退出信号并按依赖顺序收尾
func (s *Server) WaitForShutdown() {
	s.httpServer.WaitForShutdown()

	// 先等在途执行落盘，再断开存储与租约
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.orchestrator.Shutdown(ctx); err != nil {
		s.logger.Warn("orchestrator shutdown incomplete", zap.Error(err))
	}
	if s.leaser != nil {
		if err := s.leaser.Close(); err != nil {
			s.logger.Warn("lease manager close failed", zap.Error(err))
		}
	}
	if err := s.stores.Close(); err != nil {
		s.logger.Warn("store close failed", zap.Error(err))
	}
	if err := s.otel.Shutdown(context.Background()); err != nil {
		s.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
}

// databaseConfig 将顶层配置映射为数据库组件配置
func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Driver:              cfg.Database.Driver,
		DSN:                 cfg.Database.DSN(),
		MaxIdleConns:        cfg.Database.MaxIdleConns,
		MaxOpenConns:        cfg.Database.MaxOpenConns,
		ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
		HealthCheckInterval: 30 * time.Second,
	}
}

// contactTable 将配置中的通讯录转换为引擎的接收者类型映射
func contactTable(contacts map[string]map[string]string) map[flow.RecipientType]map[string]string {
	out := make(map[flow.RecipientType]map[string]string, len(contacts))
	for typ, byID := range contacts {
		m := make(map[string]string, len(byID))
		for id, addr := range byID {
			m[id] = addr
		}
		out[flow.RecipientType(typ)] = m
	}
	return out
}
