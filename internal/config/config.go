package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the monitoring process configuration.
// Defaults come from Load; cmd/monitor applies flags on top.
type Config struct {
	Artifacts struct {
		ModelPath  string // Serialized random forest
		ScalerPath string // Serialized standardization scaler
	}

	Serial struct {
		Port        string        // e.g. COM3, /dev/ttyUSB0; empty disables the probe
		BaudRate    int           // 9600 for the Arduino sketch
		OpenTimeout time.Duration // Bounded probe, falls back to simulation
	}

	Monitor struct {
		Interval time.Duration // Tick cadence
		SimSeed  int64         // Seed of the simulated heart-rate source
	}

	HTTP struct {
		Addr        string
		MetricsAddr string
	}

	Notify struct {
		Desktop  bool
		Debounce time.Duration
	}

	MQTT struct {
		Broker   string // Empty disables MQTT alerts
		ClientID string
		Username string
		Password string
		Topic    string
		QoS      byte
	}

	NATS struct {
		URL     string // Empty disables publishing
		Subject string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Artifacts.ModelPath = getEnv("MODEL_PATH", "epilepsy_model.bin")
	cfg.Artifacts.ScalerPath = getEnv("SCALER_PATH", "scaler.bin")

	cfg.Serial.Port = getEnv("SERIAL_PORT", "")
	cfg.Serial.BaudRate = getEnvAsInt("SERIAL_BAUD", 9600)
	cfg.Serial.OpenTimeout = getEnvAsDuration("SERIAL_OPEN_TIMEOUT", 3*time.Second)

	cfg.Monitor.Interval = getEnvAsDuration("MONITOR_INTERVAL", time.Second)
	cfg.Monitor.SimSeed = int64(getEnvAsInt("SIM_SEED", 42))

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	cfg.Notify.Desktop = getEnvAsBool("NOTIFY_DESKTOP", true)
	cfg.Notify.Debounce = getEnvAsDuration("NOTIFY_DEBOUNCE", 30*time.Second)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "epilepsy-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "home/epilepsy/alerts")
	cfg.MQTT.QoS = byte(getEnvAsInt("MQTT_QOS", 1))

	cfg.NATS.URL = getEnv("NATS_URL", "")
	cfg.NATS.Subject = getEnv("NATS_SUBJECT", "monitor.readings")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "console")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
