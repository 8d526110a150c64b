package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLogrusLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogrusLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLogrusLevel("warn"))
	assert.Equal(t, logrus.WarnLevel, ParseLogrusLevel("WARNING"))
	assert.Equal(t, logrus.ErrorLevel, ParseLogrusLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLogrusLevel("info"))
	assert.Equal(t, logrus.InfoLevel, ParseLogrusLevel("unknown"))
}

func TestNewFormatterByEnvironment(t *testing.T) {
	prod := New("info", "production")
	assert.IsType(t, &logrus.JSONFormatter{}, prod.Formatter)

	dev := New("debug", "development")
	assert.IsType(t, &logrus.TextFormatter{}, dev.Formatter)
	assert.Equal(t, logrus.DebugLevel, dev.GetLevel())
}

func TestWithProduct(t *testing.T) {
	entry := WithProduct(New("info", "test"), 42)
	assert.Equal(t, int64(42), entry.Data["product_id"])
}
