package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func floatField(key string, p func(c *Config) *float64) field {
	return field{
		get: func(c *Config) string { return strconv.FormatFloat(*p(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := parseFloat(key, v)
			if err != nil {
				return err
			}
			*p(c) = f
			return nil
		},
	}
}

func durationField(p func(c *Config) *time.Duration) field {
	return field{
		get: func(c *Config) string { return p(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid duration: %s", v)
			}
			*p(c) = d
			return nil
		},
	}
}

// fields maps dot-notation keys onto settings. Structured settings (house
// rooms, occupants) are edited in the YAML file directly.
var fields = map[string]field{
	"engine.command":       stringField(func(c *Config) *string { return &c.Engine.Command }),
	"engine.weather_file":  stringField(func(c *Config) *string { return &c.Engine.WeatherFile }),
	"engine.work_dir":      stringField(func(c *Config) *string { return &c.Engine.WorkDir }),
	"engine.step_delay":    durationField(func(c *Config) *time.Duration { return &c.Engine.StepDelay }),
	"engine.heating_off":   floatField("engine.heating_off", func(c *Config) *float64 { return &c.Engine.HeatingOff }),
	"engine.cooling_off":   floatField("engine.cooling_off", func(c *Config) *float64 { return &c.Engine.CoolingOff }),
	"engine.deadband":      floatField("engine.deadband", func(c *Config) *float64 { return &c.Engine.Deadband }),
	"engine.heuristic_kwh": floatField("engine.heuristic_kwh", func(c *Config) *float64 { return &c.Engine.HeuristicKWh }),

	"tariff.valley": floatField("tariff.valley", func(c *Config) *float64 { return &c.Tariff.Valley }),
	"tariff.flat":   floatField("tariff.flat", func(c *Config) *float64 { return &c.Tariff.Flat }),
	"tariff.peak":   floatField("tariff.peak", func(c *Config) *float64 { return &c.Tariff.Peak }),

	"household.tick":         durationField(func(c *Config) *time.Duration { return &c.Household.Tick }),
	"household.day_end_hour": floatField("household.day_end_hour", func(c *Config) *float64 { return &c.Household.DayEndHour }),
	"household.daily_budget": floatField("household.daily_budget", func(c *Config) *float64 { return &c.Household.DailyBudget }),
	"household.waste_rate":   floatField("household.waste_rate", func(c *Config) *float64 { return &c.Household.WasteRate }),

	"store.path":   stringField(func(c *Config) *string { return &c.Store.Path }),
	"channel.file": stringField(func(c *Config) *string { return &c.Channel.File }),

	"publish.mqtt.broker":    stringField(func(c *Config) *string { return &c.Publish.MQTT.Broker }),
	"publish.mqtt.topic":     stringField(func(c *Config) *string { return &c.Publish.MQTT.Topic }),
	"publish.mqtt.client_id": stringField(func(c *Config) *string { return &c.Publish.MQTT.ClientID }),
	"publish.kafka.topic":    stringField(func(c *Config) *string { return &c.Publish.Kafka.Topic }),
	"publish.state_interval": durationField(func(c *Config) *time.Duration { return &c.Publish.StateInterval }),

	"publish.mqtt.qos": {
		get: func(c *Config) string { return strconv.Itoa(int(c.Publish.MQTT.QoS)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 0 || n > 2 {
				return fmt.Errorf("invalid qos: %s (must be 0, 1 or 2)", v)
			}
			c.Publish.MQTT.QoS = byte(n)
			return nil
		},
	},
	"publish.kafka.brokers": {
		get: func(c *Config) string { return strings.Join(c.Publish.Kafka.Brokers, ",") },
		set: func(c *Config, v string) error {
			var brokers []string
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					brokers = append(brokers, b)
				}
			}
			c.Publish.Kafka.Brokers = brokers
			return nil
		},
	},

	"api.listen": stringField(func(c *Config) *string { return &c.API.Listen }),
	"logging.level": {
		get: func(c *Config) string { return c.Logging.Level },
		set: func(c *Config, v string) error {
			v = strings.ToLower(strings.TrimSpace(v))
			switch v {
			case "warn", "info", "debug", "trace":
				c.Logging.Level = v
				return nil
			}
			return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace)", v)
		},
	},
}

// Keys returns every settable key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a dot-notation key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	return f.get(c), nil
}

// Set parses value into a dot-notation key. The result is not validated
// as a whole; call Validate before saving.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return f.set(c, value)
}
