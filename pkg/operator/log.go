package operator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-relayer/pkg/auth"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
	"github.com/chainsafe/bridge-relayer/pkg/relayer"
)

const serviceName = "OperatorService"

// logService wraps Service with logging of every call
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the operator Service.
// Read calls are logged at debug level, rescue actions at info.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) Stats(ctx context.Context) (snap *relayer.Snapshot, err error) {
	defer ls.done(ctx, "Stats", time.Now(), false, &err)
	return ls.svc.Stats(ctx)
}

func (ls *logService) ListJobs(ctx context.Context, filter queue.Filter) (jobs []*queue.Job, err error) {
	defer ls.done(ctx, "ListJobs", time.Now(), false, &err,
		zap.String("status", string(filter.Status)),
		zap.String("direction", string(filter.Direction)),
		zap.Int("limit", filter.Limit))
	return ls.svc.ListJobs(ctx, filter)
}

func (ls *logService) GetJob(ctx context.Context, id string) (job *queue.Job, err error) {
	defer ls.done(ctx, "GetJob", time.Now(), false, &err, zap.String("job_id", id))
	return ls.svc.GetJob(ctx, id)
}

func (ls *logService) Reverify(ctx context.Context, id string) (res *relayer.RescueResult, err error) {
	ls.started("Reverify", zap.String("job_id", id))
	defer func(start time.Time) {
		fields := []zap.Field{zap.String("job_id", id)}
		if res != nil {
			fields = append(fields, zap.String("result", res.Result))
		}
		ls.done(ctx, "Reverify", start, true, &err, fields...)
	}(time.Now())
	return ls.svc.Reverify(ctx, id)
}

func (ls *logService) ForceExecute(ctx context.Context, id string) (res *relayer.RescueResult, err error) {
	ls.started("ForceExecute", zap.String("job_id", id))
	defer func(start time.Time) {
		fields := []zap.Field{zap.String("job_id", id)}
		if res != nil {
			fields = append(fields, zap.String("result", res.Result))
		}
		ls.done(ctx, "ForceExecute", start, true, &err, fields...)
	}(time.Now())
	return ls.svc.ForceExecute(ctx, id)
}

func (ls *logService) MarkFailed(ctx context.Context, id, reason string) (job *queue.Job, err error) {
	ls.started("MarkFailed", zap.String("job_id", id), zap.String("reason", reason))
	defer ls.done(ctx, "MarkFailed", time.Now(), true, &err, zap.String("job_id", id))
	return ls.svc.MarkFailed(ctx, id, reason)
}

func (ls *logService) started(method string, fields ...zap.Field) {
	ls.logger.Info(method+" started", append([]zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
	}, fields...)...)
}

func (ls *logService) done(ctx context.Context, method string, start time.Time, action bool, errp *error, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	}, fields...)
	if who, ok := auth.OperatorFromContext(ctx); ok {
		fields = append(fields, zap.String("operator", who))
	}

	if *errp != nil {
		ls.logger.Error(method+" failed", append(fields, zap.Error(*errp))...)
		return
	}
	if action {
		ls.logger.Info(method+" completed", fields...)
		return
	}
	ls.logger.Debug(method+" completed", fields...)
}
