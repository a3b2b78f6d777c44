// Package pipeline implements C8: three cooperating stages (validate,
// match, settle) joined by buffered Go channels standing in for the spec's
// bounded FIFO queues. Generalized from the teacher's single
// disruptor.EventProcessor.processLoop (which validated, matched and logged
// in one goroutine) into three goroutines, each with its own
// shutdownCh/shutdownDone pair in the teacher's graceful-shutdown idiom.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradingfloor/exchange-core/internal/constraints"
	"github.com/tradingfloor/exchange-core/internal/coordinator"
	"github.com/tradingfloor/exchange-core/internal/fanout"
	"github.com/tradingfloor/exchange-core/internal/obsv"
	"github.com/tradingfloor/exchange-core/internal/orders"
	"github.com/tradingfloor/exchange-core/internal/venue"
)

// jobKind distinguishes the two request shapes the pipeline carries.
type jobKind int

const (
	jobSubmit jobKind = iota
	jobCancel
)

// job is the unit of work passed between stages.
type job struct {
	kind      jobKind
	requestID string
	teamID    string
	role      constraints.Role

	order        *orders.Order // jobSubmit
	instrumentID string        // jobCancel
	orderID      string        // jobCancel
}

// Config controls pipeline timing.
type Config struct {
	QueueDepth         int
	PhaseCheckInterval time.Duration
}

func DefaultConfig() Config {
	return Config{QueueDepth: 1024, PhaseCheckInterval: 250 * time.Millisecond}
}

// Pipeline wires the validator, matcher and settler stages together.
type Pipeline struct {
	cfg         Config
	venue       *venue.Exchange
	validator   *constraints.Validator
	coordinator *coordinator.Coordinator
	fanout      *fanout.Hub
	metrics     *obsv.Collector
	logger      *zap.Logger

	toValidate chan job
	toMatch    chan job
	toSettle   chan settled

	validateShutdown stageShutdown
	matchShutdown    stageShutdown
	settleShutdown   stageShutdown
}

type stageShutdown struct {
	stop chan struct{}
	done chan struct{}
}

func newStageShutdown() stageShutdown {
	return stageShutdown{stop: make(chan struct{}), done: make(chan struct{})}
}

// settled is what the matcher hands the settler: the job plus whatever the
// venue produced for it.
type settled struct {
	job    job
	result *orders.ExecutionResult
	err    error
}

func New(cfg Config, ex *venue.Exchange, validator *constraints.Validator, coord *coordinator.Coordinator, hub *fanout.Hub, metrics *obsv.Collector, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:              cfg,
		venue:            ex,
		validator:        validator,
		coordinator:      coord,
		fanout:           hub,
		metrics:          metrics,
		logger:           logger,
		toValidate:       make(chan job, cfg.QueueDepth),
		toMatch:          make(chan job, cfg.QueueDepth),
		toSettle:         make(chan settled, cfg.QueueDepth),
		validateShutdown: newStageShutdown(),
		matchShutdown:    newStageShutdown(),
		settleShutdown:   newStageShutdown(),
	}
}

// Start launches the three stage goroutines.
func (p *Pipeline) Start(ctx context.Context) {
	go p.runValidator()
	go p.runMatcher(ctx)
	go p.runSettler()
}

// Stop signals the three stages to exit, in order, waiting for each to
// finish the job it is handling. Jobs still buffered in a stage's channel
// are not processed.
func (p *Pipeline) Stop() {
	close(p.validateShutdown.stop)
	<-p.validateShutdown.done
	close(p.matchShutdown.stop)
	<-p.matchShutdown.done
	close(p.settleShutdown.stop)
	<-p.settleShutdown.done
}

// SubmitOrder enqueues a new order for validation and returns the
// request id the caller should Wait on via the coordinator.
func (p *Pipeline) SubmitOrder(teamID string, role constraints.Role, o *orders.Order) (string, error) {
	req, err := p.coordinator.Register(teamID)
	if err != nil {
		return "", err
	}
	p.toValidate <- job{kind: jobSubmit, requestID: req.RequestID, teamID: teamID, role: role, order: o}
	return req.RequestID, nil
}

// SubmitCancel enqueues a cancellation for matching (cancellation skips
// constraint validation, per spec: only entry is constrained).
func (p *Pipeline) SubmitCancel(teamID, instrumentID, orderID string) (string, error) {
	req, err := p.coordinator.Register(teamID)
	if err != nil {
		return "", err
	}
	p.toMatch <- job{kind: jobCancel, requestID: req.RequestID, teamID: teamID, instrumentID: instrumentID, orderID: orderID}
	return req.RequestID, nil
}

func (p *Pipeline) runValidator() {
	defer close(p.validateShutdown.done)
	for {
		select {
		case <-p.validateShutdown.stop:
			return
		case j := <-p.toValidate:
			p.coordinator.Advance(j.requestID, coordinator.StageValidating)
			if j.kind == jobSubmit {
				now := time.Now()
				currentPhase := p.venue.PhaseOf(j.order.InstrumentID, now)
				res := p.validator.Validate(j.order, j.role, currentPhase, now)
				p.venue.Rates.Record(j.teamID, now)
				if !res.Passed {
					if p.metrics != nil {
						p.metrics.OrdersRejected(j.order.InstrumentID, res.Code)
					}
					p.coordinator.CompleteErr(j.requestID, 422, res.Code, res.Message)
					continue
				}
			}
			p.toMatch <- j
		}
	}
}

func (p *Pipeline) runMatcher(ctx context.Context) {
	defer close(p.matchShutdown.done)
	ticker := time.NewTicker(p.cfg.PhaseCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.matchShutdown.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.venue.CheckPhaseTransitions(time.Now())
		case j := <-p.toMatch:
			p.coordinator.Advance(j.requestID, coordinator.StageMatching)
			now := time.Now()
			switch j.kind {
			case jobSubmit:
				result, err := p.venue.Submit(j.order, now)
				p.toSettle <- settled{job: j, result: result, err: err}
			case jobCancel:
				o, err := p.venue.Cancel(j.instrumentID, j.orderID, now)
				var result *orders.ExecutionResult
				if o != nil {
					result = &orders.ExecutionResult{Order: o}
				}
				p.toSettle <- settled{job: j, result: result, err: err}
			}
		}
	}
}

func (p *Pipeline) runSettler() {
	defer close(p.settleShutdown.done)
	for {
		select {
		case <-p.settleShutdown.stop:
			return
		case s := <-p.toSettle:
			p.coordinator.Advance(s.job.requestID, coordinator.StageSettling)
			p.settle(s)
		}
	}
}

func (p *Pipeline) settle(s settled) {
	if s.err != nil {
		p.coordinator.CompleteErr(s.job.requestID, 400, "request_failed", s.err.Error())
		return
	}

	o := s.result.Order
	p.coordinator.CompleteOK(s.job.requestID, s.result)

	if p.fanout == nil {
		return
	}
	if s.job.kind == jobSubmit {
		p.fanout.Publish(o.TeamID, fanout.EventNewOrderAck, s.result)
		for _, t := range s.result.Trades {
			p.fanout.Publish(t.BuyerID, fanout.EventExecutionReport, t)
			p.fanout.Publish(t.SellerID, fanout.EventExecutionReport, t)
			if p.metrics != nil {
				p.metrics.TradeExecuted(t.InstrumentID)
			}
		}
	} else {
		p.fanout.Publish(o.TeamID, fanout.EventOrderCancelled, o)
	}
}
