package cron

import (
	"context"
	"fmt"

	"github.com/skillquest-app/skillquest-backend/pkg/logger"
)

const expirySweepBatchSize = 500

type InvitationExpiryJobParams struct {
	Logger      *logger.Logger
	Invitations invitationExpirer
	BatchSize   int
}

type invitationExpirer interface {
	ExpireDue(ctx context.Context, batchSize int) (int64, error)
}

// NewInvitationExpiryJob sweeps overdue pending invitations to expired. The
// accept/decline paths already expire lazily on read; this sweep is the
// durable pass that catches invitations nobody touches.
func NewInvitationExpiryJob(params InvitationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invitations == nil {
		return nil, fmt.Errorf("invitations service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = expirySweepBatchSize
	}
	return &invitationExpiryJob{
		logg:        params.Logger,
		invitations: params.Invitations,
		batchSize:   batchSize,
	}, nil
}

type invitationExpiryJob struct {
	logg        *logger.Logger
	invitations invitationExpirer
	batchSize   int
}

func (j *invitationExpiryJob) Name() string { return "invitation-expiry" }

func (j *invitationExpiryJob) Run(ctx context.Context) error {
	var total int64
	for {
		expired, err := j.invitations.ExpireDue(ctx, j.batchSize)
		if err != nil {
			return fmt.Errorf("invitation expiry: %w", err)
		}
		total += expired
		if expired < int64(j.batchSize) {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"batch_size":   j.batchSize,
		"rows_expired": total,
	})
	j.logg.Info(logCtx, "invitation expiry sweep complete")
	return nil
}
