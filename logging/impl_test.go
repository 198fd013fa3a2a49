package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func newBufferLogger(name string, level Level) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := &impl{name, NewAtomicLevelAt(level), true, []Appender{NewWriterAppender(zapcore.AddSync(&buf))}}
	return logger, &buf
}

func TestConsoleOutputFormat(t *testing.T) {
	logger, buf := newBufferLogger("k2g", DEBUG)

	logger.Info("opened device")
	line := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.Split(line, "\t")
	test.That(t, len(parts), test.ShouldEqual, 5)
	test.That(t, parts[1], test.ShouldContainSubstring, "INFO")
	test.That(t, parts[2], test.ShouldEqual, "k2g")
	test.That(t, parts[3], test.ShouldStartWith, "logging/impl_test.go:")
	test.That(t, parts[4], test.ShouldEqual, "opened device")
}

func TestStructuredFields(t *testing.T) {
	logger, buf := newBufferLogger("k2g", DEBUG)

	logger.Infow("frame", "valid", 10, "serial", "abc")
	line := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.Split(line, "\t")
	test.That(t, len(parts), test.ShouldEqual, 6)

	fields := map[string]any{}
	test.That(t, json.Unmarshal([]byte(parts[5]), &fields), test.ShouldBeNil)
	test.That(t, fields["valid"], test.ShouldEqual, 10.0)
	test.That(t, fields["serial"], test.ShouldEqual, "abc")
}

func TestUnpairedKey(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Infow("oops", "lonely")

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["lonely"], test.ShouldEqual, "unpaired log key")
}

func TestLevels(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(WARN)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Errorf("kept %d", 2)
	test.That(t, observed.Len(), test.ShouldEqual, 2)
	test.That(t, observed.All()[1].Message, test.ShouldEqual, "kept 2")

	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
	test.That(t, logger.Level(), test.ShouldEqual, zapcore.WarnLevel)
}

func TestSubloggerNaming(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("session")
	sub.Sublogger("reproject").Info("hi")

	test.That(t, observed.All()[0].LoggerName, test.ShouldEqual, "session.reproject")

	named, buf := newBufferLogger("k2g", INFO)
	named.Sublogger("session").Info("x")
	test.That(t, buf.String(), test.ShouldContainSubstring, "k2g.session")
}

func TestLevelFromString(t *testing.T) {
	for str, expected := range map[string]Level{"debug": DEBUG, "INFO": INFO, "Warn": WARN, "error": ERROR} {
		level, err := LevelFromString(str)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	out, err := json.Marshal(ERROR)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"error"`)
}

func TestAsZap(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(INFO)
	zl := logger.Desugar()
	zl.Debug("dropped")
	zl.Info("through zap")
	test.That(t, observed.FilterMessage("through zap").Len(), test.ShouldEqual, 1)
	test.That(t, observed.FilterMessage("dropped").Len(), test.ShouldEqual, 0)
}
