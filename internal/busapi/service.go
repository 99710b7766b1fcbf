// Package busapi answers exercise requests over NATS request/reply.
package busapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/ortheloquence/internal/bus"
	"github.com/loqalabs/ortheloquence/internal/config"
	"github.com/loqalabs/ortheloquence/internal/exercise"
	"github.com/loqalabs/ortheloquence/internal/protocol"
	"github.com/nats-io/nats.go"
)

const queueGroup = "ortheloquence-busapi"

// Evaluator scores answers against a catalog. *pipeline.Pipeline satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, req protocol.EvaluationRequest) protocol.EvaluationResult
	Catalog() *exercise.Catalog
}

type Service struct {
	cfg       config.BusAPIConfig
	bus       *bus.Client
	evaluator Evaluator
	subs      []*nats.Subscription
	slots     chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	ready     bool
	logger    *slog.Logger
}

func NewService(parent context.Context, cfg config.BusAPIConfig, busClient *bus.Client, evaluator Evaluator, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		cfg:       cfg,
		bus:       busClient,
		evaluator: evaluator,
		slots:     make(chan struct{}, concurrency),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("component", "busapi")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	handlers := map[string]nats.MsgHandler{
		protocol.SubjectExerciseEvaluate: s.handleEvaluate,
		protocol.SubjectExerciseList:     s.handleList,
	}
	for subject, handler := range handlers {
		sub, err := s.bus.Conn().QueueSubscribe(subject, queueGroup, handler)
		if err != nil {
			s.drain()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	if err := s.bus.Conn().Flush(); err != nil {
		s.drain()
		return fmt.Errorf("flush subscriptions: %w", err)
	}
	s.ready = true
	s.logger.Info("bus api listening", slog.Int("concurrency", cap(s.slots)))
	return nil
}

func (s *Service) Close() {
	s.cancel()
	s.drain()
	s.wg.Wait()
}

func (s *Service) drain() {
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.subs = nil
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

func (s *Service) handleEvaluate(msg *nats.Msg) {
	var req protocol.EvaluationRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode evaluation request", slogError(err))
		s.respond(msg, protocol.EvaluationResult{
			Message:     "invalid request",
			Corrections: []protocol.Correction{},
			Kind:        protocol.KindInvalidRequest,
		})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case s.slots <- struct{}{}:
			defer func() { <-s.slots }()
		case <-s.ctx.Done():
			return
		}
		ctx, cancel := context.WithTimeout(s.ctx, 60*time.Second)
		defer cancel()

		start := time.Now()
		result := s.evaluator.Evaluate(ctx, req)
		s.respond(msg, result)
		s.logger.Debug("evaluation served",
			slog.String("category", req.Category),
			slog.Int("score", result.Score),
			slog.Duration("latency", time.Since(start)))
	}()
}

func (s *Service) handleList(msg *nats.Msg) {
	s.respond(msg, s.evaluator.Catalog().List())
}

func (s *Service) respond(msg *nats.Msg, payload any) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send reply", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
