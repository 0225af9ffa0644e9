package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

const enDoc = `{
  "locale": "en",
  "values": [{"key": "greeting", "value": "Hello"}, {"key": "farewell", "value": "Goodbye"}],
  "arrays": [{"key": "weekdays", "items": ["Mon", "Tue"]}],
  "plurals": [{"key": "apples", "quantities": {"one": "%d apple", "other": "%d apples"}}]
}`

const deDoc = `
locale: de
values:
  - key: greeting
    value: Hallo
`

type CLISuite struct {
	suite.Suite

	dir string
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.T().Setenv("DATABASE_URL", filepath.Join(s.dir, "lingua.db"))
	s.T().Setenv("LINGUA_LOCALE", "en")
	s.T().Setenv("LOG_LEVEL", "error")
	s.T().Setenv("REMOTE_BASE_URL", "")
	s.T().Setenv("REMOTE_USE_SAMPLE", "false")

	docs := filepath.Join(s.dir, "docs")
	s.Require().NoError(os.Mkdir(docs, 0o700))
	s.Require().NoError(os.WriteFile(filepath.Join(docs, "en.json"), []byte(enDoc), 0o600))
	s.Require().NoError(os.WriteFile(filepath.Join(docs, "de.yaml"), []byte(deDoc), 0o600))

	out := s.run("import", docs)
	s.Contains(out, "en.json: en values=2 arrays=1 plurals=1")
	s.Contains(out, "de.yaml: de values=1 arrays=0 plurals=0")
}

func (s *CLISuite) run(args ...string) string {
	var out bytes.Buffer
	s.Require().NoError(run(context.Background(), args, &out))
	return strings.TrimSpace(out.String())
}

func (s *CLISuite) TestGet() {
	s.Equal("Hello", s.run("get", "greeting"))
	s.Equal("Hallo", s.run("get", "--locale", "de-AT", "greeting"))
	s.Equal("Goodbye", s.run("get", "--locale", "de", "farewell"))
	s.Equal("missing.key", s.run("get", "missing.key"))
}

func (s *CLISuite) TestGetWithoutFallbackHit() {
	s.Equal("farewell", s.run("get", "--locale", "de", "--fallback", "fr", "farewell"))
}

func (s *CLISuite) TestArrayAndPlural() {
	s.Equal("Mon\nTue", s.run("array", "weekdays"))
	s.Equal("1 apple", s.run("plural", "apples", "1"))
	s.Equal("5 apples", s.run("plural", "apples", "5"))
}

func (s *CLISuite) TestLocales() {
	s.Equal("de\nen", s.run("locales"))
}

func (s *CLISuite) TestSampleRemote() {
	s.T().Setenv("REMOTE_USE_SAMPLE", "true")
	s.T().Setenv("BUNDLE_CACHE_URL", "mem://")

	s.Equal("Bonjour", s.run("get", "--locale", "fr", "greeting"))
}

func (s *CLISuite) TestPublish() {
	// mem:// topics outlive a run once shut down, so each run gets its own
	s.T().Setenv("EVENTS_QUEUE_URL", "mem://cli-publish-locale")
	s.Equal("published", s.run("publish", "locale", "fr"))

	s.T().Setenv("EVENTS_QUEUE_URL", "mem://cli-publish-update")
	s.Equal("published", s.run("publish", "update", "--description", "home", "greeting", "en", "Hi", "there"))
}

func (s *CLISuite) TestUsageErrors() {
	var out bytes.Buffer
	ctx := context.Background()

	s.Require().Error(run(ctx, []string{"unknown"}, &out))
	s.Contains(out.String(), "Commands:")

	s.ErrorIs(run(ctx, nil, &out), errUsage)
	s.ErrorIs(run(ctx, []string{"get"}, &out), errUsage)
	s.ErrorIs(run(ctx, []string{"plural", "apples", "many"}, &out), errUsage)
	s.T().Setenv("EVENTS_QUEUE_URL", "mem://cli-usage")
	s.ErrorIs(run(ctx, []string{"publish", "nothing", "x"}, &out), errUsage)
	s.NoError(run(ctx, []string{"help"}, &out))

	out.Reset()
	s.NoError(run(ctx, []string{"version"}, &out))
	s.Contains(out.String(), "lingua ")
}
