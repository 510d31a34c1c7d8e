package helpers

import (
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/statement-ledger/internal/repository"
	xhttp "github.com/nimasrn/statement-ledger/pkg/http"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"github.com/nimasrn/statement-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SetupTestDB opens a migrated in-memory sqlite database. A single
// connection keeps every query on the same memory database.
func SetupTestDB(t *testing.T) *pg.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(repository.Entities()...))
	return pg.FromGorm(db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redis.NewFromClient(client, "test:")
}

type Response struct {
	Status int
	Header map[string]string
	Body   []byte
}

func (r *Response) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), string(r.Body))
}

// Do runs one request through h. A non-nil body is sent as JSON.
func Do(t *testing.T, h xhttp.RequestHandler, method, uri string, body any, headers map[string]string) *Response {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req.Header.SetContentType("application/json")
		req.SetBody(b)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	// Init attaches a server so the ctx works as a context.Context.
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	h(ctx)

	res := &Response{
		Status: ctx.Response.StatusCode(),
		Header: map[string]string{},
		Body:   append([]byte(nil), ctx.Response.Body()...),
	}
	for _, k := range []string{"Content-Type", "Content-Disposition"} {
		res.Header[k] = string(ctx.Response.Header.Peek(k))
	}
	return res
}

func Ptr[T any](v T) *T {
	return &v
}
