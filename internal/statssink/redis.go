package statssink

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// RedisTLSConfig enables TLS for the backing Redis- or Valkey-compatible
// connection, optionally pinning a CA bundle.
type RedisTLSConfig struct {
	Enabled bool
	CAFile  string
}

// RedisConfig describes how to reach the backing store.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      RedisTLSConfig
}

type redisSink struct {
	client valkey.Client
	key    string
}

// NewRedis builds a Sink backed by a single Redis/Valkey key, namespaced by
// keyPrefix, holding the most recently saved snapshot as JSON.
func NewRedis(cfg RedisConfig, keyPrefix string) (Sink, error) {
	if cfg.Address == "" {
		return nil, errors.New("statssink: redis address required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("statssink: read redis ca file: %w", err)
				}
				return nil, fmt.Errorf("statssink: read redis ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("statssink: redis ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("statssink: redis client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("statssink: redis ping: %w", err)
	}

	if keyPrefix == "" {
		keyPrefix = "rulecore:stats"
	}
	return &redisSink{client: client, key: keyPrefix + ":snapshot"}, nil
}

func (s *redisSink) Save(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("statssink: marshal snapshot: %w", err)
	}
	cmd := s.client.B().Set().Key(s.key).Value(string(payload)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("statssink: redis set: %w", err)
	}
	return nil
}

func (s *redisSink) Load(ctx context.Context) (Snapshot, bool, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(s.key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("statssink: redis get: %w", err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("statssink: redis get bytes: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("statssink: redis unmarshal: %w", err)
	}
	return snap, true, nil
}

func (s *redisSink) Close(context.Context) error {
	s.client.Close()
	return nil
}
