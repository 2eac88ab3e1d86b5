package dispatch

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvarsson/xvdrd/internal/channelcache"
	"github.com/halvarsson/xvdrd/internal/channels"
	"github.com/halvarsson/xvdrd/internal/config"
	"github.com/halvarsson/xvdrd/internal/metadata"
	"github.com/halvarsson/xvdrd/internal/protocol"
)

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		LogLevel:        "silent",
	}
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	db, err := metadata.New(testDatabaseConfig(), nil, &metadata.Options{PrepareStmt: false})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := metadata.NewStore(db)
	chList := channels.NewList()
	cache := channelcache.New()
	cfg := &config.Config{
		Timeshift: config.TimeshiftConfig{Dir: t.TempDir(), MaxBytes: 1 << 20},
		Preferences: config.PreferencesConfig{
			Language:  "eng",
			AudioType: 0,
		},
	}

	return New(cfg, chList, store, cache, nil, "xvdrd-test", "0.0.0-test", slog.Default())
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })
	sess := NewSession(server, 1, config.TimeshiftConfig{Dir: t.TempDir(), MaxBytes: 1 << 20}, 0, slog.Default())
	t.Cleanup(sess.Close)
	return sess
}

func TestDispatch_UnknownOpcode(t *testing.T) {
	d := newTestDispatcher(t)
	sess := newTestSession(t)

	reply := d.Dispatch(context.Background(), sess, protocol.Request{Opcode: protocol.Opcode(9999)})
	r := protocol.NewPayloadReader(reply)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindNotSupported.Code(), code)
}

func TestDispatch_HandlerError(t *testing.T) {
	d := newTestDispatcher(t)
	sess := newTestSession(t)

	// OpLogin requires at least a U32 version field; an empty payload
	// fails to parse and the dispatcher must turn that into a coded reply
	// rather than propagate the *protocol.Error.
	reply := d.Dispatch(context.Background(), sess, protocol.Request{Opcode: protocol.OpLogin, Payload: nil})
	r := protocol.NewPayloadReader(reply)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindDataInvalid.Code(), code)
}

func TestCodedReply(t *testing.T) {
	reply := codedReply(protocol.KindDataLocked, []byte{0xAB})
	r := protocol.NewPayloadReader(reply)
	code, err := r.U32()
	require.NoError(t, err)
	assert.EqualValues(t, protocol.KindDataLocked.Code(), code)
	assert.Equal(t, 1, r.Remaining())
}
