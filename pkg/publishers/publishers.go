package publishers

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samvad-hq/samvad-list-loader/pkg/registryfile"
)

const (
	// Supported publisher types.
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeHTTP      = "http"
	TypeGCPPubSub = "gcp_pubsub"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

// configFile represents the structure of the publishers configuration file.
type configFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig represents a single publisher entry declared in config files.
type PublisherConfig struct {
	ID      string               `json:"id" yaml:"id"`
	Type    string               `json:"type" yaml:"type"`
	Enabled *bool                `json:"enabled" yaml:"enabled"`
	Sources []string             `json:"sources" yaml:"sources"`
	SQS     *SQSPublisherConfig  `json:"sqs" yaml:"sqs"`
	SNS     *SNSPublisherConfig  `json:"sns" yaml:"sns"`
	HTTP    *HTTPPublisherConfig `json:"http" yaml:"http"`
	GCP     *GCPPubSubConfig     `json:"gcp_pubsub" yaml:"gcp_pubsub"`
}

// AWSAccess carries optional static credentials and endpoint overrides.
// Without keys the default AWS credential chain is used.
type AWSAccess struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// SQSPublisherConfig holds AWS SQS specific settings.
type SQSPublisherConfig struct {
	QueueURL  string `json:"uri" yaml:"uri"`
	Region    string `json:"region" yaml:"region"`
	AWSAccess `yaml:",inline"`
}

// SNSPublisherConfig holds AWS SNS specific settings.
type SNSPublisherConfig struct {
	TopicARN  string `json:"topic_arn" yaml:"topic_arn"`
	Region    string `json:"region" yaml:"region"`
	AWSAccess `yaml:",inline"`
}

// GCPPubSubConfig holds Google Cloud Pub/Sub settings.
type GCPPubSubConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// HTTPPublisherConfig holds generic HTTP sink settings.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ConfigRegistry materializes publisher definitions loaded from config files.
type ConfigRegistry struct {
	mu         sync.RWMutex
	publishers []PublisherConfig
	idx        map[string]PublisherConfig
}

// LoadRegistry loads the publisher registry from a YAML/JSON file.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	file, err := registryfile.Decode[configFile](path, "publishers")
	if err != nil {
		return nil, err
	}
	return NewConfigRegistry(file.Publishers)
}

// NewConfigRegistry normalizes, validates and indexes publisher entries.
func NewConfigRegistry(list []PublisherConfig) (*ConfigRegistry, error) {
	if len(list) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	reg := &ConfigRegistry{
		publishers: make([]PublisherConfig, len(list)),
		idx:        make(map[string]PublisherConfig, len(list)),
	}
	for i := range list {
		cfg := sanitizePublisherConfig(list[i])
		if err := validatePublisherConfig(cfg); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		reg.publishers[i] = cfg
		reg.idx[cfg.ID] = cfg
	}
	return reg, nil
}

// sinkSettings is the type-specific block of a publisher entry.
type sinkSettings interface {
	normalize()
	missing() []string
}

// section returns the block named by cfg.Type and its YAML key. ok is false
// for types no publisher implements.
func (cfg *PublisherConfig) section() (key string, sink sinkSettings, ok bool) {
	switch cfg.Type {
	case TypeSQS:
		if cfg.SQS != nil {
			sink = cfg.SQS
		}
		return "sqs", sink, true
	case TypeSNS:
		if cfg.SNS != nil {
			sink = cfg.SNS
		}
		return "sns", sink, true
	case TypeHTTP:
		if cfg.HTTP != nil {
			sink = cfg.HTTP
		}
		return "http", sink, true
	case TypeGCPPubSub:
		if cfg.GCP != nil {
			sink = cfg.GCP
		}
		return "gcp_pubsub", sink, true
	}
	return "", nil, false
}

// sanitizePublisherConfig trims the common fields, defaults enabled to true,
// and normalizes the block the type selects. Blocks for other types are
// dropped.
func sanitizePublisherConfig(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	// An empty list subscribes the publisher to every source.
	cfg.Sources = registryfile.CleanList(cfg.Sources)

	out := PublisherConfig{ID: cfg.ID, Type: cfg.Type, Enabled: cfg.Enabled, Sources: cfg.Sources}
	switch cfg.Type {
	case TypeSQS:
		if cfg.SQS != nil {
			c := *cfg.SQS
			out.SQS = &c
		}
	case TypeSNS:
		if cfg.SNS != nil {
			c := *cfg.SNS
			out.SNS = &c
		}
	case TypeHTTP:
		if cfg.HTTP != nil {
			c := *cfg.HTTP
			out.HTTP = &c
		}
	case TypeGCPPubSub:
		if cfg.GCP != nil {
			c := *cfg.GCP
			out.GCP = &c
		}
	default:
		return cfg
	}
	if _, sink, _ := out.section(); sink != nil {
		sink.normalize()
	}
	return out
}

// validatePublisherConfig checks the common fields and the required fields
// of the selected block.
func validatePublisherConfig(cfg PublisherConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.Type == "" {
		return fmt.Errorf("type is required for publisher %q", cfg.ID)
	}
	key, sink, ok := cfg.section()
	if !ok {
		return fmt.Errorf("unknown publisher type %q for publisher %q", cfg.Type, cfg.ID)
	}
	if sink == nil {
		return fmt.Errorf("%s config required for publisher %q", key, cfg.ID)
	}
	if missing := sink.missing(); len(missing) > 0 {
		for i := range missing {
			missing[i] = key + "." + missing[i]
		}
		return fmt.Errorf("%s required for publisher %q", strings.Join(missing, ", "), cfg.ID)
	}
	return nil
}

func (a *AWSAccess) normalize() {
	a.AccessKeyID = strings.TrimSpace(a.AccessKeyID)
	a.SecretAccessKey = strings.TrimSpace(a.SecretAccessKey)
	a.Endpoint = strings.TrimSpace(a.Endpoint)
}

func (c *SQSPublisherConfig) normalize() {
	c.QueueURL = strings.TrimSpace(c.QueueURL)
	c.Region = strings.TrimSpace(c.Region)
	c.AWSAccess.normalize()
}

func (c *SQSPublisherConfig) missing() []string {
	return missingFields("uri", c.QueueURL, "region", c.Region)
}

func (c *SNSPublisherConfig) normalize() {
	c.TopicARN = strings.TrimSpace(c.TopicARN)
	c.Region = strings.TrimSpace(c.Region)
	c.AWSAccess.normalize()
}

func (c *SNSPublisherConfig) missing() []string {
	return missingFields("topic_arn", c.TopicARN, "region", c.Region)
}

func (c *HTTPPublisherConfig) normalize() {
	c.URL = strings.TrimSpace(c.URL)
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = httpDefaultMethod
	}
	c.Headers = registryfile.CleanHeaders(c.Headers)
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = httpDefaultTimeoutSeconds
	}
}

func (c *HTTPPublisherConfig) missing() []string {
	return missingFields("url", c.URL)
}

func (c *GCPPubSubConfig) normalize() {
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	c.Topic = strings.TrimSpace(c.Topic)
	c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
	c.Endpoint = strings.TrimSpace(c.Endpoint)
}

func (c *GCPPubSubConfig) missing() []string {
	return missingFields("project_id", c.ProjectID, "topic", c.Topic)
}

// missingFields takes name/value pairs and returns the names whose value is
// blank.
func missingFields(pairs ...string) []string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			out = append(out, pairs[i])
		}
	}
	return out
}

// Wants reports whether the publisher subscribes to events of sourceID.
func (cfg PublisherConfig) Wants(sourceID string) bool {
	if len(cfg.Sources) == 0 {
		return true
	}
	for _, id := range cfg.Sources {
		if id == sourceID {
			return true
		}
	}
	return false
}

// ByID returns the publisher config by id.
func (r *ConfigRegistry) ByID(id string) (PublisherConfig, bool) {
	if r == nil {
		return PublisherConfig{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return PublisherConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured publishers.
func (r *ConfigRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PublisherConfig, len(r.publishers))
	copy(out, r.publishers)
	return out
}

// Enabled returns publishers that are enabled.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	if r == nil {
		return nil
	}

	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]PublisherConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (cfg PublisherConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}
