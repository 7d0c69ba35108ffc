package service

import (
	"context"
	"os"

	"facter/internal/domain"
)

// hostnameQueries are tried in order to name the host of a snapshot
var hostnameQueries = []string{"networking.fqdn", "fqdn", "networking.hostname", "hostname"}

// Snapshot captures the current fact table, populating it if needed. ID
// and time are left for the repository to assign.
func (s *Store) Snapshot(ctx context.Context) *domain.Snapshot {
	facts := s.ToMap(ctx)
	return &domain.Snapshot{
		Hostname: hostnameOf(facts),
		Facts:    facts,
	}
}

func hostnameOf(facts *domain.FactSet) string {
	for _, q := range hostnameQueries {
		if v, ok := facts.Query(q); ok {
			if s, ok := v.(domain.String); ok && s != "" {
				return string(s)
			}
		}
	}
	name, _ := os.Hostname()
	return name
}
