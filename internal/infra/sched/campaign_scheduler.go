package sched

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/config"
	"telegram-bulk-ops/internal/usecase"
)

// CampaignScheduler turns configured cron campaigns into broadcast jobs:
// on each firing it generates the campaign body and queues a mass-message job.
type CampaignScheduler struct {
	cron    *cron.Cron
	control usecase.JobControl
	content usecase.ContentUseCase
	log     *zerolog.Logger
}

func NewCampaignScheduler(control usecase.JobControl, content usecase.ContentUseCase, logger *zerolog.Logger) *CampaignScheduler {
	csLog := logger.With().Str("component", "CampaignScheduler").Logger()
	return &CampaignScheduler{
		cron:    cron.New(),
		control: control,
		content: content,
		log:     &csLog,
	}
}

// Register adds every configured campaign; a bad cron expression skips that
// campaign instead of failing startup.
func (s *CampaignScheduler) Register(campaigns []config.Campaign) {
	for _, c := range campaigns {
		campaign := c
		_, err := s.cron.AddFunc(campaign.Cron, func() { s.fire(campaign) })
		if err != nil {
			s.log.Error().Err(err).Str("campaign", campaign.Name).Str("cron", campaign.Cron).Msg("invalid campaign schedule")
			continue
		}
		s.log.Info().Str("campaign", campaign.Name).Str("cron", campaign.Cron).Msg("campaign scheduled")
	}
}

func (s *CampaignScheduler) fire(campaign config.Campaign) {
	ctx := context.Background()
	body, err := s.content.GroupPost(ctx, campaign.Theme)
	if err != nil {
		s.log.Error().Err(err).Str("campaign", campaign.Name).Msg("campaign content generation failed")
		return
	}
	jobID, err := s.control.StartBroadcast(ctx, campaign.Name, body)
	if err != nil {
		s.log.Error().Err(err).Str("campaign", campaign.Name).Msg("campaign broadcast not queued")
		return
	}
	s.log.Info().Str("campaign", campaign.Name).Str("job_id", jobID).Msg("campaign broadcast queued")
}

func (s *CampaignScheduler) Start() { s.cron.Start() }

func (s *CampaignScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
