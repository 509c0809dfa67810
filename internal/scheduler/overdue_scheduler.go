package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/inspection-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// DefaultOverdueSpec 매 정시마다 지연 점검을 확인한다
const DefaultOverdueSpec = "0 * * * *"

// OverdueSweeper 예정일이 지난 점검을 overdue 로 바꾼다
type OverdueSweeper interface {
	MarkOverdueInspections(ctx context.Context, now time.Time) (int, error)
}

// OverdueScheduler 지연 점검 스케줄러
type OverdueScheduler struct {
	cron    *cron.Cron
	sweeper OverdueSweeper
	spec    string
	timeout time.Duration
	now     func() time.Time
}

// NewOverdueScheduler 지연 점검 스케줄러 생성
func NewOverdueScheduler(sweeper OverdueSweeper, spec string) *OverdueScheduler {
	if spec == "" {
		spec = DefaultOverdueSpec
	}
	return &OverdueScheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		spec:    spec,
		timeout: 5 * time.Minute,
		now:     time.Now,
	}
}

// Start 스케줄러 시작
func (s *OverdueScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		logger.Error("Failed to add cron job for overdue inspections", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Overdue inspection scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// RunOnce 한 번의 sweep 을 실행하고 처리 건수를 돌려준다
func (s *OverdueScheduler) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger.Info("Starting scheduled overdue sweep", nil)

	marked, err := s.sweeper.MarkOverdueInspections(ctx, s.now())
	if err != nil {
		// 일부 점검은 이미 반영되었을 수 있다
		logger.Error("Overdue sweep finished with failures", err, map[string]interface{}{
			"marked": marked,
		})
		return marked
	}

	logger.Info("Overdue sweep finished", map[string]interface{}{
		"marked": marked,
	})
	return marked
}

// Stop 스케줄러 중지. 실행 중인 sweep 이 끝날 때까지 기다린다
func (s *OverdueScheduler) Stop() {
	logger.Info("Stopping overdue inspection scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Overdue inspection scheduler stopped", nil)
}
