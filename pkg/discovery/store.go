package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/opsforge/opsforge/pkg/telemetry"
)

// DefaultRecordPrefix is the etcd key prefix service records live under.
const DefaultRecordPrefix = "/opsforge/services/"

// RecordStore shares service records across processes. The monitor
// writes a record after every health check; peers read them to discover
// service addresses they have not registered themselves.
type RecordStore interface {
	// Put writes a record with a time-to-live.
	Put(ctx context.Context, record ServiceRecord, ttl time.Duration) error

	// Get reads one record by service name.
	Get(ctx context.Context, name string) (*ServiceRecord, error)

	// List reads all live records.
	List(ctx context.Context) ([]ServiceRecord, error)

	// Close releases the underlying connection.
	Close() error
}

// EtcdStore keeps service records in etcd under a key prefix. Every
// write rides a fresh lease sized to the TTL, so records of dead
// processes age out on their own.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
	logger *telemetry.Logger
}

// NewEtcdStore connects to etcd and returns a record store rooted at
// prefix. An empty prefix falls back to DefaultRecordPrefix.
func NewEtcdStore(endpoints []string, prefix string, logger *telemetry.Logger) (*EtcdStore, error) {
	if prefix == "" {
		prefix = DefaultRecordPrefix
	}
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdStore{
		client: client,
		prefix: prefix,
		logger: logger.NewComponentLogger("discovery"),
	}, nil
}

func (s *EtcdStore) key(name string) string {
	return s.prefix + name
}

// Put writes the record under a lease of roughly ttl seconds.
func (s *EtcdStore) Put(ctx context.Context, record ServiceRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode service record: %w", err)
	}

	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	lease, err := s.client.Grant(ctx, seconds)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}

	if _, err := s.client.Put(ctx, s.key(record.Name), string(data), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("failed to put service record: %w", err)
	}
	return nil
}

// Get reads one record by service name.
func (s *EtcdStore) Get(ctx context.Context, name string) (*ServiceRecord, error) {
	resp, err := s.client.Get(ctx, s.key(name))
	if err != nil {
		return nil, fmt.Errorf("failed to get service record: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("service record not found: %s", name)
	}

	var record ServiceRecord
	if err := json.Unmarshal(resp.Kvs[0].Value, &record); err != nil {
		return nil, fmt.Errorf("failed to decode service record: %w", err)
	}
	return &record, nil
}

// List reads all records under the prefix. Records that fail to decode
// are skipped with a warning rather than failing the whole listing.
func (s *EtcdStore) List(ctx context.Context) ([]ServiceRecord, error) {
	resp, err := s.client.Get(ctx, s.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list service records: %w", err)
	}

	records := make([]ServiceRecord, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var record ServiceRecord
		if err := json.Unmarshal(kv.Value, &record); err != nil {
			s.logger.WithError(err).WithField("key", string(kv.Key)).Warn("Skipping undecodable service record")
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Close closes the etcd client.
func (s *EtcdStore) Close() error {
	return s.client.Close()
}

// MemoryStore keeps service records in process. It backs single-node
// deployments and tests where running etcd would be overkill. Entries
// expire by TTL on read.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
}

type memoryEntry struct {
	record    ServiceRecord
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-process record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryEntry)}
}

// Put writes a record. A ttl of zero or less means the record never
// expires.
func (s *MemoryStore) Put(_ context.Context, record ServiceRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{record: record}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.records[record.Name] = entry
	return nil
}

// Get reads one record by service name, dropping it if expired.
func (s *MemoryStore) Get(_ context.Context, name string) (*ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[name]
	if !ok {
		return nil, fmt.Errorf("service record not found: %s", name)
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(s.records, name)
		return nil, fmt.Errorf("service record not found: %s", name)
	}
	record := entry.record
	return &record, nil
}

// List reads all live records.
func (s *MemoryStore) List(_ context.Context) ([]ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	records := make([]ServiceRecord, 0, len(s.records))
	for name, entry := range s.records {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.records, name)
			continue
		}
		records = append(records, entry.record)
	}
	return records, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
