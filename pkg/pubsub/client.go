package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
)

// NewClient creates a Pub/Sub v2 client and ensures the configured topics exist.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: gcp.ProjectID,
		cfg:       cfg,
	}

	if err := c.ensureTopicsConfigured(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "pubsub client initialized")
	}

	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	if strings.TrimSpace(gcp.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	} else if strings.TrimSpace(gcp.ApplicationCredentials) != "" {
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

func (c *Client) ensureTopicsConfigured(ctx context.Context) error {
	names := topicNames(c.cfg)
	if len(names) == 0 {
		return errNoTopics
	}
	for _, name := range names {
		if err := c.ensureTopicExists(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func topicNames(cfg config.PubSubConfig) []string {
	seen := map[string]struct{}{}
	names := []string{}
	for _, name := range []string{cfg.OrdersTopic, cfg.DomainTopic} {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		names = append(names, trimmed)
	}
	return names
}

func (c *Client) ensureTopicExists(ctx context.Context, name string) error {
	fullName := c.topicResourceName(name)
	if fullName == "" {
		return fmt.Errorf("topic %q not configured", name)
	}

	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", name)
		}
		return fmt.Errorf("checking topic %q: %w", name, err)
	}
	return nil
}

// Publisher returns a publisher handle for the given topic ID/resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.topicResourceName(name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// Ping verifies Pub/Sub connectivity by checking configured topics exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensureTopicsConfigured(ctx)
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	if c == nil {
		return ""
	}
	return TopicResourceName(c.projectID, name)
}

// TopicResourceName expands a topic ID into projects/<p>/topics/<id>. Full
// resource names pass through unchanged.
func TopicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, n)
}
