package eventbus

import (
	"time"

	"github.com/creasty/defaults"
)

// DeliveryMode selects what Publish does when a subscriber's queue is full.
type DeliveryMode string

const (
	// DeliveryDrop discards the new event for that subscriber. Publishers
	// never wait, at the cost of gaps in a slow subscriber's sequence.
	DeliveryDrop DeliveryMode = "drop"
	// DeliveryBlock waits for queue space until the bus is stopped.
	DeliveryBlock DeliveryMode = "block"
	// DeliveryTimeout waits up to PublishTimeout and then drops.
	DeliveryTimeout DeliveryMode = "timeout"
)

// Config controls per-subscription queueing.
type Config struct {
	// BufferSize is the queue length of every subscription.
	BufferSize     int           `mapstructure:"buffer_size" json:"bufferSize" yaml:"buffer_size" default:"256" validate:"gte=1"`
	DeliveryMode   DeliveryMode  `mapstructure:"delivery_mode" json:"deliveryMode" yaml:"delivery_mode" default:"drop" validate:"oneof=drop block timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" json:"publishTimeout" yaml:"publish_timeout" default:"10ms"`
}

// DefaultConfig returns the drop-on-full configuration.
func DefaultConfig() Config {
	var cfg Config
	_ = defaults.Set(&cfg)
	return cfg
}
