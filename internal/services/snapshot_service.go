package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/codyseavey/cardvault/internal/collection"
	"github.com/codyseavey/cardvault/internal/metrics"
	"github.com/codyseavey/cardvault/internal/models"
)

// SnapshotService records each owner's daily collection totals
type SnapshotService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	now    func() time.Time

	mu            sync.Mutex
	lastSnapshot  time.Time
	snapshotHour  int // Hour of day (UTC) to take snapshots (0-23)
	checkInterval time.Duration
	workers       int
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(db *gorm.DB, logger *zap.SugaredLogger, snapshotHour, workers int) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if workers < 1 {
		workers = 1
	}
	return &SnapshotService{
		db:            db,
		logger:        logger,
		now:           time.Now,
		snapshotHour:  snapshotHour,
		checkInterval: 15 * time.Minute,
		workers:       workers,
	}
}

// Start begins the background snapshot worker
func (s *SnapshotService) Start(ctx context.Context) {
	s.logger.Infow("snapshot service started", "hour_utc", s.snapshotHour, "workers", s.workers)

	s.checkAndSnapshot(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("snapshot service stopping")
			return
		case <-ticker.C:
			s.checkAndSnapshot(ctx)
		}
	}
}

// checkAndSnapshot refreshes the gauges and, once the configured hour has passed, snapshots the day
func (s *SnapshotService) checkAndSnapshot(ctx context.Context) {
	if err := s.UpdateCollectionMetrics(ctx); err != nil {
		s.logger.Warnw("failed to update collection metrics", "error", err)
	}

	now := s.now().UTC()
	if now.Hour() < s.snapshotHour {
		return
	}
	s.mu.Lock()
	done := sameDay(s.lastSnapshot, now)
	s.mu.Unlock()
	if done {
		return
	}

	if _, err := s.TakeSnapshot(ctx); err != nil {
		s.logger.Errorw("failed to take snapshot", "error", err)
	}
}

// TakeSnapshot records today's totals for every owner that has cards and returns how many were written.
// Owners are processed concurrently, bounded by the worker count.
func (s *SnapshotService) TakeSnapshot(ctx context.Context) (int, error) {
	var owners []string
	if err := s.db.WithContext(ctx).Model(&models.CardRecord{}).Distinct().Pluck("user_id", &owners).Error; err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}

	now := s.now().UTC()
	day := startOfDay(now)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, owner := range owners {
		g.Go(func() error {
			if err := s.SnapshotOwner(gctx, owner, day); err != nil {
				metrics.SnapshotsTakenTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("snapshot owner %s: %w", owner, err)
			}
			metrics.SnapshotsTakenTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.lastSnapshot = now
	s.mu.Unlock()
	s.logger.Infow("recorded value snapshots", "date", day.Format("2006-01-02"), "owners", len(owners))
	return len(owners), nil
}

// SnapshotOwner writes (or overwrites) one owner's snapshot for day.
// Assign takes a map so zero totals still overwrite an earlier value.
func (s *SnapshotService) SnapshotOwner(ctx context.Context, ownerID string, day time.Time) error {
	var cards []models.CardRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Find(&cards).Error; err != nil {
		return err
	}
	totals := collection.ComputeTotals(cards)

	snapshot := models.CollectionValueSnapshot{
		OwnerID:      ownerID,
		SnapshotDate: startOfDay(day),
	}
	return s.db.WithContext(ctx).
		Where("user_id = ? AND snapshot_date = ?", ownerID, snapshot.SnapshotDate).
		Assign(map[string]any{
			"total_cards":      totals.TotalCards,
			"unique_players":   totals.UniquePlayers,
			"total_invested":   totals.TotalInvested,
			"collection_value": totals.CollectionValue,
			"for_sale_count":   totals.ForSaleCount,
			"sold_count":       totals.SoldCount,
			"revenue":          totals.Revenue,
			"realised_profit":  totals.RealisedProfit,
		}).
		FirstOrCreate(&snapshot).Error
}

// UpdateCollectionMetrics refreshes the collection gauges from the cards table
func (s *SnapshotService) UpdateCollectionMetrics(ctx context.Context) error {
	type statusCount struct {
		Status string
		Count  int
		Value  float64
	}
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(&models.CardRecord{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(value), 0) AS value").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	var total int
	var value float64
	for _, st := range models.AllCardStatuses() {
		metrics.CollectionCardsByStatus.WithLabelValues(string(st)).Set(0)
	}
	for _, r := range rows {
		total += r.Count
		value += r.Value
		metrics.CollectionCardsByStatus.WithLabelValues(r.Status).Set(float64(r.Count))
	}
	metrics.CollectionCardsTotal.Set(float64(total))
	metrics.CollectionValueGBP.Set(value)
	return nil
}

// GetHistory retrieves an owner's snapshots for a given period, oldest first
func (s *SnapshotService) GetHistory(ctx context.Context, ownerID, period string) ([]models.CollectionValueSnapshot, error) {
	var snapshots []models.CollectionValueSnapshot

	now := s.now().UTC()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = now.AddDate(0, -1, 0)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{} // No filter
	default:
		startDate = now.AddDate(0, -1, 0) // Default to 1 month
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("snapshot_date ASC")
	if !startDate.IsZero() {
		query = query.Where("snapshot_date >= ?", startOfDay(startDate))
	}

	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}

	return snapshots, nil
}

// GetLastSnapshot returns an owner's most recent snapshot, or nil
func (s *SnapshotService) GetLastSnapshot(ctx context.Context, ownerID string) *models.CollectionValueSnapshot {
	var snapshot models.CollectionValueSnapshot

	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("snapshot_date DESC").First(&snapshot).Error; err != nil {
		return nil
	}

	return &snapshot
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	return startOfDay(a).Equal(startOfDay(b))
}
