package database

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

// AssignmentSink writes assignment events into Cassandra for the analytics
// pipeline. The decision path never reads from here.
type AssignmentSink struct {
	session *gocql.Session
}

func NewCassandraSession(hosts []string, keyspace string) (*gocql.Session, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second
	cluster.ProtoVersion = 4

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}
	return session, nil
}

func NewAssignmentSink(session *gocql.Session) *AssignmentSink {
	return &AssignmentSink{session: session}
}

// InsertAssignmentEvent appends one event. The partition key is the
// experiment key so per-experiment counting scans a single partition.
func (s *AssignmentSink) InsertAssignmentEvent(event types.AssignmentEvent) error {
	const q = `
		INSERT INTO assignment_events (experiment_key, subject_id, variant_key, assigned_at)
		VALUES (?, ?, ?, ?)`

	if err := s.session.Query(q,
		event.ExperimentKey, event.SubjectID, event.VariantKey, event.AssignedAt).Exec(); err != nil {
		return fmt.Errorf("insert assignment event: %w", err)
	}
	return nil
}

func (s *AssignmentSink) Close() {
	s.session.Close()
}
