package cozy

import (
	"context"

	"cozy/internal/metrics"
)

// ReportPlace flags a place on behalf of a user and returns the report count.
func (s *Service) ReportPlace(ctx context.Context, userID, placeID string) (int, error) {
	if err := checkID("userId", userID); err != nil {
		return 0, err
	}
	if err := checkID("placeId", placeID); err != nil {
		return 0, err
	}

	count, err := s.places.AddReport(ctx, placeID, userID)
	if err != nil {
		return 0, fromStore(err)
	}
	metrics.ReportMutations.WithLabelValues("add").Inc()
	return count, nil
}

// UnreportPlace withdraws a user's report. Withdrawing a report that was
// never made succeeds and changes nothing.
func (s *Service) UnreportPlace(ctx context.Context, userID, placeID string) (int, error) {
	if err := checkID("userId", userID); err != nil {
		return 0, err
	}
	if err := checkID("placeId", placeID); err != nil {
		return 0, err
	}

	count, err := s.places.RemoveReport(ctx, placeID, userID)
	if err != nil {
		return 0, fromStore(err)
	}
	metrics.ReportMutations.WithLabelValues("remove").Inc()
	return count, nil
}

// ArchiveOverReportedPlaces archives every place whose report count reached
// the threshold and returns how many were archived by this call.
func (s *Service) ArchiveOverReportedPlaces(ctx context.Context) (int, error) {
	ids, err := s.places.ArchiveReported(ctx, s.archiveThreshold)
	if err != nil {
		return 0, fromStore(err)
	}
	if len(ids) > 0 {
		metrics.PlacesArchived.Add(float64(len(ids)))
		s.logger.Infow("archived over-reported places", "count", len(ids), "placeIds", ids)
	}
	return len(ids), nil
}
