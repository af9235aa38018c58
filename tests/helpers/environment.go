package helpers

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bizmatters/agent-builder/studio-client/internal/auth"
	"github.com/bizmatters/agent-builder/studio-client/internal/config"
	"github.com/bizmatters/agent-builder/studio-client/internal/devserver"
	"github.com/bizmatters/agent-builder/studio-client/internal/studio"
)

// TestEnvironment is a dev server on a random port plus the settings a
// client needs to reach it
type TestEnvironment struct {
	Store      *devserver.Store
	Server     *httptest.Server
	JWTManager *auth.JWTManager
	Config     *config.Config
}

// Option customizes a TestEnvironment
type Option func(*options)

type options struct {
	secret string
}

// WithAuth makes the server require tokens signed with secret
func WithAuth(secret string) Option {
	return func(o *options) { o.secret = secret }
}

// NewTestEnvironment starts a fresh dev server that is shut down when the
// test ends
func NewTestEnvironment(t *testing.T, opts ...Option) *TestEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	env := &TestEnvironment{Store: devserver.NewStore()}
	if o.secret != "" {
		jm, err := auth.NewJWTManager(o.secret)
		require.NoError(t, err)
		env.JWTManager = jm
	}

	env.Server = httptest.NewServer(devserver.NewServer(env.Store, env.JWTManager, zaptest.NewLogger(t)).Handler())
	t.Cleanup(env.Server.Close)

	cfg := config.Default()
	cfg.API.BaseURL = env.Server.URL + "/api"
	cfg.API.Timeout = 5 * time.Second
	env.Config = cfg
	return env
}

// Token mints a valid token for the environment's server
func (e *TestEnvironment) Token(t *testing.T) string {
	t.Helper()
	require.NotNil(t, e.JWTManager, "environment was created without auth")
	token, err := e.JWTManager.GenerateToken(context.Background(), "integration", time.Hour)
	require.NoError(t, err)
	return token
}

// NewStudio builds a client against the environment. token may be empty.
func (e *TestEnvironment) NewStudio(t *testing.T, token string) *studio.Studio {
	t.Helper()
	cfg := *e.Config
	cfg.API.Token = token
	s, err := studio.New(&cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}
