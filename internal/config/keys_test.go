package config

import (
	"sort"
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{"engine.weather_file", "/tmp/w.epw", "/tmp/w.epw", false},
		{"engine.step_delay", "250ms", "250ms", false},
		{"engine.step_delay", "fast", "", true},
		{"tariff.peak", "0.35", "0.35", false},
		{"tariff.peak", "cheap", "", true},
		{"household.daily_budget", " 18 ", "18", false},
		{"publish.mqtt.qos", "2", "2", false},
		{"publish.mqtt.qos", "3", "", true},
		{"publish.kafka.brokers", "a:1, ,b:2", "a:1,b:2", false},
		{"logging.level", "DEBUG", "debug", false},
		{"logging.level", "chatty", "", true},
		{"nope.key", "1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := Default()
			err := cfg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set() = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, err := cfg.Get(tt.key)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Get() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSet_WritesThroughToStruct(t *testing.T) {
	cfg := Default()
	if err := cfg.Set("household.tick", "1s"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("engine.deadband", "2.5"); err != nil {
		t.Fatal(err)
	}
	if cfg.Household.Tick != time.Second || cfg.Engine.Deadband != 2.5 {
		t.Errorf("tick %v deadband %v", cfg.Household.Tick, cfg.Engine.Deadband)
	}
}

func TestGet_UnknownKey(t *testing.T) {
	if _, err := Default().Get("llm.provider"); err == nil {
		t.Error("expected unknown key error")
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if !sort.StringsAreSorted(keys) {
		t.Error("Keys() not sorted")
	}
	for _, o := range envOverrides {
		if _, ok := fields[o.key]; !ok {
			t.Errorf("env override %s targets unknown key %s", o.env, o.key)
		}
	}
	cfg := Default()
	for _, k := range keys {
		if _, err := cfg.Get(k); err != nil {
			t.Errorf("Get(%s) = %v", k, err)
		}
	}
}
