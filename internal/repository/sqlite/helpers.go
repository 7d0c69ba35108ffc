package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"facter/internal/domain"
	"facter/internal/protocol"
	"facter/internal/repository"
)

// ============================================================================
// Time Helpers
// ============================================================================

// toUnixNano stores times as integers so they sort correctly
func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// ============================================================================
// Fact Encoding
// ============================================================================

// encodeTape records a fact as a JSON list of protocol messages
func encodeTape(name string, v domain.Value) ([]byte, error) {
	msgs, err := protocol.Record(name, v)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tape: %w", err)
	}
	return data, nil
}

// decodeTape replays a stored tape into sink
func decodeTape(data []byte, sink protocol.Sink) error {
	var msgs []protocol.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("failed to unmarshal tape: %w", err)
	}
	return protocol.Replay(msgs, sink)
}

// ============================================================================
// Result Helpers
// ============================================================================

// checkRowsAffected maps zero affected rows to repository.ErrNotFound
func checkRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
