package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Rides    RidesConfig    `yaml:"rides"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	ReservationsTopic string   `yaml:"reservations_topic"`
	GroupID           string   `yaml:"group_id"`
}

// RefundConfig parameterizes the cancellation refund policy. Thresholds are
// hours before estimated pickup; fractions are of the reservation amount.
type RefundConfig struct {
	FullBeforeHours    float64 `yaml:"full_before_hours"`
	PartialBeforeHours float64 `yaml:"partial_before_hours"`
	FullPct            float64 `yaml:"full_pct"`
	PartialPct         float64 `yaml:"partial_pct"`
}

type BookingConfig struct {
	MinDepartureLeadMinutes int          `yaml:"min_departure_lead_minutes"`
	PendingTTLMinutes       int          `yaml:"pending_ttl_minutes"`
	LockLeaseSeconds        int          `yaml:"lock_lease_seconds"`
	LockWaitSeconds         int          `yaml:"lock_wait_seconds"`
	Refund                  RefundConfig `yaml:"refund"`
}

type RidesConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

type WorkerConfig struct {
	RelayIntervalSeconds   int    `yaml:"relay_interval_seconds"`
	RelayBatchSize         int    `yaml:"relay_batch_size"`
	ExpirationSweepMinutes int    `yaml:"expiration_sweep_minutes"`
	PaymentGatewayURL      string `yaml:"payment_gateway_url"`
	NotifierURL            string `yaml:"notifier_url"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
