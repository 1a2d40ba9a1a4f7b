package checkin

import (
	"context"

	"bailbond/checkin-service/internal/models"
)

// HistorySource lists a client's recorded check-ins.
type HistorySource interface {
	ListClientCheckIns(ctx context.Context, clientID int64) ([]models.CheckIn, error)
}

// detectFirstCheckIn treats both an empty history and a failed lookup as a
// first check-in, so a lookup failure can only make verification stricter.
func detectFirstCheckIn(ctx context.Context, source HistorySource, clientID int64) (bool, error) {
	checkIns, err := source.ListClientCheckIns(ctx, clientID)
	if err != nil {
		return true, err
	}
	return len(checkIns) == 0, nil
}
