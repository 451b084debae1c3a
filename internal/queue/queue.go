// Package queue wraps the NATS JetStream connection used to publish cluster
// lifecycle events (cluster.assigned, cluster.merged, article.unique) for
// external consumers such as search-index sync or cache invalidation. It is
// not the core Job Queue (FIFO of re-score jobs) — that is internal/jobqueue,
// backed by Redis. This is a supplemental, optional notifier: when NatsURL is
// empty, New returns a no-op Notifier and callers publish into the void.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Cluster lifecycle event subjects.
const (
	SubjectClusterAssigned = "cluster.assigned"
	SubjectClusterMerged   = "cluster.merged"
	SubjectArticleUnique   = "article.unique"
)

const streamClusters = "CLUSTERS"

// Notifier publishes cluster lifecycle events. A nil conn/js means the
// notifier is disabled and Publish is a silent no-op.
type Notifier struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Event is the payload published for every cluster lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	ArticleID  string    `json:"article_id"`
	ClusterID  string    `json:"cluster_id,omitempty"`
	MergedFrom []string  `json:"merged_from,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// New connects to NATS and ensures the CLUSTERS stream exists. An empty
// natsURL disables the notifier: Publish becomes a no-op and Close is safe.
func New(natsURL string) (*Notifier, error) {
	if natsURL == "" {
		log.Info("cluster event notifier disabled (no NATS_URL)")
		return &Notifier{}, nil
	}

	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("getting JetStream context: %w", err)
	}

	n := &Notifier{conn: conn, js: js}
	if err := n.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info("connected to NATS JetStream for cluster event notifications")
	return n, nil
}

func (n *Notifier) ensureStream() error {
	cfg := nats.StreamConfig{
		Name:      streamClusters,
		Subjects:  []string{"cluster.>", "article.>"},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    72 * time.Hour,
		Storage:   nats.FileStorage,
	}

	if _, err := n.js.StreamInfo(cfg.Name); err != nil {
		if _, err := n.js.AddStream(&cfg); err != nil {
			return fmt.Errorf("creating stream %s: %w", cfg.Name, err)
		}
		log.WithField("stream", cfg.Name).Info("created NATS stream")
	}
	return nil
}

// Publish emits a cluster lifecycle event. A disabled notifier returns nil
// immediately; a publish failure is logged by the caller's re-score worker,
// never fatal to clustering itself — notification is advisory.
func (n *Notifier) Publish(subject string, ev Event) error {
	if n.js == nil {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	if _, err := n.js.Publish(subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Close gracefully closes the NATS connection, if one was opened.
func (n *Notifier) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		log.WithError(err).Warn("failed to drain NATS connection")
	}
}
