package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"convo-relay/internal/domain/conversation"
	"convo-relay/internal/domain/message"
	"convo-relay/internal/repository"
	relay_errors "convo-relay/pkg/errors"
)

// Unix values above this are taken as milliseconds.
const millisThreshold = 1e12

type SyncService struct {
	reader repository.SyncReader
}

func NewSyncService(reader repository.SyncReader) *SyncService {
	return &SyncService{reader: reader}
}

// ParseSince reads a unix timestamp in seconds (fractions allowed) or
// milliseconds. Empty and "0" mean the epoch.
func ParseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return time.Unix(0, 0).UTC(), nil
	}
	ts, err := strconv.ParseFloat(raw, 64)
	if err != nil || ts < 0 || math.IsInf(ts, 0) || math.IsNaN(ts) {
		return time.Time{}, fmt.Errorf("%w: since must be a unix timestamp", relay_errors.ErrValidation)
	}
	if ts > millisThreshold {
		ts /= 1000
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

func (s *SyncService) Convos(ctx context.Context, userID string, since time.Time) ([]conversation.Convo, error) {
	return s.reader.ListConvosSince(ctx, userID, since)
}

func (s *SyncService) Messages(ctx context.Context, userID string, since time.Time) ([]message.Message, error) {
	return s.reader.ListMessagesSince(ctx, userID, since)
}
