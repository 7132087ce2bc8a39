package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewJSONComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug", "json")
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %s", logger.GetLevel())
	}

	Component(logger, "registry").Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if line["component"] != "registry" {
		t.Errorf("Expected component registry, got %v", line["component"])
	}
	if line["msg"] != "hello" {
		t.Errorf("Expected msg hello, got %v", line["msg"])
	}
}

func TestNewBadLevelDefaultsToInfo(t *testing.T) {
	logger := NewWithWriter(&bytes.Buffer{}, "chatty", "text")
	if logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("Expected info level, got %s", logger.GetLevel())
	}
}
