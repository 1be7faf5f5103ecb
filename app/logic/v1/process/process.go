package process

import (
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/pkg/queue"
	"github.com/lapomascherj/atmo-core/pkg/register"
)

func ReconcileQueue() *queue.ReconcileQueue {
	return p.reconcileQueue
}

type Process struct {
	cron           *cron.Cron
	core           *core.Core
	asynqClient    *asynq.Client
	asynqServer    *asynq.Server
	asynqMux       *asynq.ServeMux
	reconcileQueue *queue.ReconcileQueue
}

var p *Process

type ProcessKey struct{}

func NewProcess(core *core.Core) *Process {
	p = &Process{
		cron: cron.New(),
		core: core,
	}

	cfg := core.Cfg().Redis
	redisOpt := asynq.RedisClientOpt{
		Network:  "tcp",
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	p.asynqClient = asynq.NewClient(redisOpt)

	p.asynqServer = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			queue.ReconcileQueueName: 1,
		},
	})

	p.asynqMux = asynq.NewServeMux()

	for _, h := range register.ResolveFuncHandlers[*Process](ProcessKey{}) {
		h(p)
	}

	return p
}

func (p *Process) Cron() *cron.Cron {
	return p.cron
}

func (p *Process) Core() *core.Core {
	return p.core
}

func (p *Process) AsynqClient() *asynq.Client {
	return p.asynqClient
}

func (p *Process) AsynqServerMux() *asynq.ServeMux {
	return p.asynqMux
}

func (p *Process) SetReconcileQueue(q *queue.ReconcileQueue) {
	p.reconcileQueue = q
}

func (p *Process) Start() {
	p.cron.Start()
	go p.asynqServer.Run(p.asynqMux)
}

func (p *Process) Stop() {
	if p.cron != nil {
		ctx := p.cron.Stop()
		<-ctx.Done()
	}

	if p.asynqServer != nil {
		p.asynqServer.Shutdown()
	}

	if p.reconcileQueue != nil {
		p.reconcileQueue.Shutdown()
	}
}
