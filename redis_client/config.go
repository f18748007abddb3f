package redis_client

import (
	"net"
	"time"
)

// Config describes the Redis server backing the durable record logger.
type Config struct {
	Host        string        `mapstructure:"host" json:"host" yaml:"host" toml:"host" default:"127.0.0.1"`
	Port        string        `mapstructure:"port" json:"port" yaml:"port" toml:"port" default:"6379"`
	Password    string        `mapstructure:"password" json:"password" yaml:"password" toml:"password"`
	DB          int           `mapstructure:"db" json:"db" yaml:"db" toml:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dialTimeout" yaml:"dial_timeout" toml:"dial_timeout" default:"3s"`
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
