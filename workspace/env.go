package workspace

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"collabhive-sync/remote"
	"collabhive-sync/store"
)

// FromEnv builds a workspace from the environment: COLLABHIVE_API_URL
// and PROJECT_ID are required; SNAPSHOT_REDIS enables the warm-start
// mirror, with SNAPSHOT_TTL bounding entry lifetime (default 24h);
// ACTING_USER sets the default task owner.
func FromEnv(logger *log.Logger, opts ...Option) (*Workspace, error) {
	baseURL := os.Getenv("COLLABHIVE_API_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("workspace: COLLABHIVE_API_URL is required")
	}
	projectID := os.Getenv("PROJECT_ID")
	if projectID == "" {
		return nil, fmt.Errorf("workspace: PROJECT_ID is required")
	}

	var clientOpts []remote.Option
	if logger != nil {
		clientOpts = append(clientOpts, remote.WithLogger(logger))
	}
	client := remote.New(baseURL, projectID, clientOpts...)

	envOpts := []Option{}
	if logger != nil {
		envOpts = append(envOpts, WithLogger(logger))
	}
	if actingUser := os.Getenv("ACTING_USER"); actingUser != "" {
		envOpts = append(envOpts, WithActingUser(actingUser))
	}
	if redisConn := os.Getenv("SNAPSHOT_REDIS"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			return nil, fmt.Errorf("workspace: invalid SNAPSHOT_REDIS: %w", err)
		}
		ttl := 24 * time.Hour
		if v := os.Getenv("SNAPSHOT_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("workspace: invalid SNAPSHOT_TTL: %v", v)
			}
			ttl = d
		}
		rc := redis.NewClient(redisOpts)
		envOpts = append(envOpts, WithSnapshots(store.NewSnapshots(rc, projectID, ttl)))
	}

	return New(client, append(envOpts, opts...)...), nil
}
